package orgsync

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"sdmox/internal/core/apperror"
	"sdmox/internal/core/clock"
	"sdmox/internal/core/id"
	"sdmox/internal/domain/address"
	"sdmox/internal/domain/level"
	"sdmox/internal/domain/orgunit"
	"sdmox/internal/domain/payload"
	"sdmox/internal/domain/unitcode"
	"sdmox/internal/domain/verify"
	"sdmox/internal/infrastructure/sdxml"
)

const (
	unitUUID   = "12345-22-22-22-12345"
	parentUUID = "12345-11-11-11-12345"
	otherUUID  = "12345-33-33-33-12345"
)

type fakeDirectory struct {
	units     map[string]*orgunit.Unit
	addresses map[string][]orgunit.AddressRecord
	reads     int
}

func (d *fakeDirectory) ReadUnit(_ context.Context, unitUUID string, _ time.Time) (*orgunit.Unit, error) {
	d.reads++
	u, ok := d.units[unitUUID]
	if !ok {
		return nil, apperror.NewNotFound("organisation unit", unitUUID)
	}
	cp := *u
	return &cp, nil
}

func (d *fakeDirectory) ReadUnitAddresses(_ context.Context, unitUUID string, _ time.Time) ([]orgunit.AddressRecord, error) {
	d.reads++
	return d.addresses[unitUUID], nil
}

type fakeRegistry struct {
	byUUID  map[string]*orgunit.Department
	byCode  map[string]*orgunit.Department
	parents map[string]string
	queries []orgunit.DepartmentQuery
}

func (r *fakeRegistry) GetDepartment(_ context.Context, q orgunit.DepartmentQuery) (*orgunit.Department, error) {
	r.queries = append(r.queries, q)
	var dep *orgunit.Department
	if q.ByUUID {
		dep = r.byUUID[q.Identifier]
	} else {
		dep = r.byCode[q.Identifier]
	}
	if dep == nil || (q.Level != "" && dep.Level != q.Level) {
		return nil, nil
	}
	return dep, nil
}

func (r *fakeRegistry) GetDepartmentParent(_ context.Context, unitUUID string, _ time.Time) (*orgunit.DepartmentParent, error) {
	p, ok := r.parents[unitUUID]
	if !ok {
		return nil, nil
	}
	return &orgunit.DepartmentParent{UUID: p}, nil
}

type recordingPublisher struct {
	mu   sync.Mutex
	docs [][]byte
	err  error
}

func (p *recordingPublisher) Publish(_ context.Context, body []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.docs = append(p.docs, body)
	return nil
}

type memJournal struct {
	entries  map[id.ID]*JournalEntry
	outcomes map[id.ID]Outcome
}

func newMemJournal() *memJournal {
	return &memJournal{entries: map[id.ID]*JournalEntry{}, outcomes: map[id.ID]Outcome{}}
}

func (j *memJournal) Record(_ context.Context, entry *JournalEntry) error {
	j.entries[entry.ID] = entry
	return nil
}

func (j *memJournal) Complete(_ context.Context, entryID id.ID, outcome Outcome) error {
	j.outcomes[entryID] = outcome
	return nil
}

type mapLookup map[string]string

func (m mapLookup) Lookup(_ context.Context, addressID string) (string, error) {
	if label, ok := m[addressID]; ok {
		return label, nil
	}
	return "", apperror.NewNotFound("address", addressID)
}

type harness struct {
	svc       *Service
	directory *fakeDirectory
	registry  *fakeRegistry
	publisher *recordingPublisher
	journal   *memJournal
	clock     *clock.AutoFake
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	levels, err := level.New(
		[]string{"NY6-niveau", "NY5-niveau", "Afdelings-niveau"},
		map[string]string{"NY6-niveau": "uuid-6", "NY5-niveau": "uuid-5", "Afdelings-niveau": "uuid-b"},
	)
	require.NoError(t, err)

	h := &harness{
		directory: &fakeDirectory{
			units: map[string]*orgunit.Unit{
				unitUUID: {
					UUID: unitUUID, Name: "A-sdm2", UserKey: "AB12",
					Level: orgunit.ClassRef{UUID: "uuid-b"},
				},
				parentUUID: {
					UUID: parentUUID, Name: "A-sdm1", UserKey: "PA1",
					Level: orgunit.ClassRef{UUID: "uuid-5"},
				},
				otherUUID: {
					UUID: otherUUID, Name: "Other", UserKey: "OT1",
					Level: orgunit.ClassRef{UUID: "uuid-6"},
				},
			},
			addresses: map[string][]orgunit.AddressRecord{},
		},
		registry: &fakeRegistry{
			byUUID: map[string]*orgunit.Department{},
			byCode: map[string]*orgunit.Department{
				"PA1": {UUID: parentUUID, Code: "PA1", Level: "NY5-niveau"},
				"OT1": {UUID: otherUUID, Code: "OT1", Level: "NY6-niveau"},
			},
			parents: map[string]string{},
		},
		publisher: &recordingPublisher{},
		journal:   newMemJournal(),
		clock:     clock.NewAutoFake(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)),
	}

	resolver := address.NewResolver(mapLookup{
		"dar-1": "Banegårdspladsen 1, 2750 Ballerup",
		"dar-2": "Toftebjerghaven 4, 2750 Ballerup",
	})
	h.svc = NewService(ServiceConfig{
		Directory: h.directory,
		Registry:  h.registry,
		Levels:    levels,
		Builder:   payload.NewBuilder(levels, resolver, payload.DefaultConfig()),
		Codes:     unitcode.NewValidator(h.registry),
		Codec:     sdxml.NewCodec(),
		Submitter: NewSubmitter(h.publisher),
		Verifier:  verify.NewVerifier(h.registry, h.clock, verify.Config{Attempts: 3, Wait: 3 * time.Second}),
		Journal:   h.journal,
	})
	return h
}

func (h *harness) onlyOutcome(t *testing.T) Outcome {
	t.Helper()
	require.Len(t, h.journal.outcomes, 1)
	for _, o := range h.journal.outcomes {
		return o
	}
	return Outcome{}
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func str(s string) *string { return &s }
