package orgsync

import (
	"context"
	"errors"

	"sdmox/internal/core/apperror"
	"sdmox/internal/domain/orgunit"
	"sdmox/pkg/logger"
)

// Submitter hands rendered documents to the publisher.
type Submitter struct {
	publisher orgunit.Publisher
}

// NewSubmitter creates a submitter. publisher may be nil for dry-run-only use.
func NewSubmitter(publisher orgunit.Publisher) *Submitter {
	return &Submitter{publisher: publisher}
}

// Submit publishes doc unless dryRun is set.
func (s *Submitter) Submit(ctx context.Context, doc []byte, dryRun bool) error {
	if dryRun {
		logger.Debug(ctx, "dry run, change message not published", "bytes", len(doc))
		return nil
	}
	if s.publisher == nil {
		return apperror.NewInternal(errors.New("no publisher configured"))
	}
	return s.publisher.Publish(ctx, doc)
}
