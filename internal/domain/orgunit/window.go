package orgunit

import (
	"time"

	"sdmox/internal/core/apperror"
)

// OpenEnd is the registry's "no end date" sentinel.
var OpenEnd = time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)

const (
	dateLayout        = "2006-01-02"
	registryDayLayout = "02.01.2006"
	timestampSuffix   = "T00:00:00.00"
)

// EffectiveWindow is the validity interval of a change, in whole days.
type EffectiveWindow struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// NewWindow builds a window starting at from. A nil to means open-ended.
// The registry only accepts changes that take effect on the first of a month.
func NewWindow(from time.Time, to *time.Time) (EffectiveWindow, error) {
	w := EffectiveWindow{From: truncateDay(from), To: OpenEnd}
	if to != nil {
		w.To = truncateDay(*to)
	}
	if w.From.Day() != 1 {
		return EffectiveWindow{}, apperror.NewEffectiveDate(
			"start date must be the first day of a month", w.From.Format(dateLayout))
	}
	if w.To.Before(w.From) {
		return EffectiveWindow{}, apperror.NewEffectiveDate(
			"end date precedes start date", w.To.Format(dateLayout))
	}
	return w, nil
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// FromTimestamp renders the start the way change messages carry it.
func (w EffectiveWindow) FromTimestamp() string { return FormatTimestamp(w.From) }

// ToTimestamp renders the end the way change messages carry it.
func (w EffectiveWindow) ToTimestamp() string { return FormatTimestamp(w.To) }

// FromDate renders the start as YYYY-MM-DD.
func (w EffectiveWindow) FromDate() string { return w.From.Format(dateLayout) }

// ToDate renders the end as YYYY-MM-DD.
func (w EffectiveWindow) ToDate() string { return w.To.Format(dateLayout) }

// FormatTimestamp renders t as YYYY-MM-DDT00:00:00.00.
func FormatTimestamp(t time.Time) string {
	return t.Format(dateLayout) + timestampSuffix
}

// FormatRegistryDate renders t as DD.MM.YYYY for registry queries.
func FormatRegistryDate(t time.Time) string {
	return t.Format(registryDayLayout)
}

// ParseDate parses YYYY-MM-DD, reporting failures as validation errors.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, apperror.NewValidation("date must be formatted YYYY-MM-DD").
			WithDetail("date", s).WithCause(err)
	}
	return t, nil
}
