package orgsync

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sdmox/internal/core/apperror"
	"sdmox/internal/domain/orgunit"
	"sdmox/internal/domain/verify"
	"sdmox/internal/infrastructure/sdxml"
)

func requireCode(t *testing.T, err error, code string) *apperror.AppError {
	t.Helper()
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok, "expected AppError, got %v", err)
	require.Equal(t, code, appErr.Code)
	return appErr
}

func TestRenameUnit_TruncatedRegistryNameConverges(t *testing.T) {
	h := newHarness(t)
	h.registry.byUUID[unitUUID] = &orgunit.Department{
		UUID: unitUUID, Code: "AB12", Level: "Afdelings-niveau",
		Name: "A-sdm", ActivationDate: "2020-01-01",
	}

	res, err := h.svc.RenameUnit(context.Background(), unitUUID, "A-sdm1", date(2020, 1, 1), false)
	require.NoError(t, err)

	require.Len(t, h.publisher.docs, 1)
	doc, err := sdxml.Parse(h.publisher.docs[0])
	require.NoError(t, err)
	assert.Equal(t, sdxml.LifecycleEdited, doc.Lifecycle)
	assert.Equal(t, "A-sdm1", doc.Name)
	assert.Equal(t, unitUUID, doc.UnitUUID)

	require.NotNil(t, res.Verification)
	assert.True(t, res.Verification.Converged())
	assert.Equal(t, 1, res.Verification.Attempts)
	assert.Equal(t, []time.Duration{3 * time.Second}, h.clock.Waits())

	out := h.onlyOutcome(t)
	assert.Equal(t, JournalVerified, out.Status)
	assert.Equal(t, res.JournalID, firstEntry(t, h.journal).ID)
}

func TestRenameUnit_EffectiveDateCheckedBeforeAnyRead(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.RenameUnit(context.Background(), unitUUID, "A-sdm1", date(2020, 1, 15), false)

	appErr := requireCode(t, err, apperror.CodeEffectiveDate)
	assert.Equal(t, apperror.StagePreSubmission, appErr.Stage)
	assert.Zero(t, h.directory.reads)
	assert.Empty(t, h.publisher.docs)
}

func TestRenameUnit_EmptyName(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.RenameUnit(context.Background(), unitUUID, "  ", date(2020, 1, 1), false)

	requireCode(t, err, apperror.CodeValidation)
	assert.Zero(t, h.directory.reads)
}

func TestRenameUnit_DryRunSkipsPublishAndVerify(t *testing.T) {
	h := newHarness(t)

	res, err := h.svc.RenameUnit(context.Background(), unitUUID, "A-sdm1", date(2020, 1, 1), true)
	require.NoError(t, err)

	assert.True(t, res.DryRun)
	require.Len(t, res.Documents, 1)
	assert.Contains(t, string(res.Documents[0]), "A-sdm1")
	assert.Nil(t, res.Verification)
	assert.Empty(t, h.publisher.docs)
	assert.Empty(t, h.registry.queries)
	assert.Empty(t, h.journal.entries)
}

func TestRenameUnit_ConvergenceFailureKeepsMismatches(t *testing.T) {
	h := newHarness(t)
	h.registry.byUUID[unitUUID] = &orgunit.Department{
		UUID: unitUUID, Code: "AB12", Name: "Something else", ActivationDate: "2020-01-01",
	}

	res, err := h.svc.RenameUnit(context.Background(), unitUUID, "A-sdm1", date(2020, 1, 1), false)

	appErr := requireCode(t, err, apperror.CodeConvergence)
	assert.Equal(t, apperror.StagePostSubmission, appErr.Stage)
	require.NotNil(t, res)
	require.NotNil(t, res.Verification)
	assert.Equal(t, 3, res.Verification.Attempts)
	require.Len(t, res.Verification.Mismatches, 1)
	assert.Equal(t, verify.FieldName, res.Verification.Mismatches[0].Field)
	assert.Len(t, h.clock.Waits(), 3)

	out := h.onlyOutcome(t)
	assert.Equal(t, JournalMismatched, out.Status)
	assert.Len(t, out.Mismatches, 1)
}

func TestRenameUnit_NeverFoundIsConvergenceError(t *testing.T) {
	h := newHarness(t)

	res, err := h.svc.RenameUnit(context.Background(), unitUUID, "A-sdm1", date(2020, 1, 1), false)

	assert.Nil(t, res)
	appErr := requireCode(t, err, apperror.CodeConvergence)
	assert.Equal(t, "department_not_found", appErr.Details["reason"])
	assert.Equal(t, apperror.StagePostSubmission, appErr.Stage)
	assert.Equal(t, JournalNotFound, h.onlyOutcome(t).Status)
}

func TestRenameUnit_PublishFailureIsSubmissionStage(t *testing.T) {
	h := newHarness(t)
	h.publisher.err = apperror.NewTransport("amqp", errors.New("connection reset"))

	_, err := h.svc.RenameUnit(context.Background(), unitUUID, "A-sdm1", date(2020, 1, 1), false)

	appErr := requireCode(t, err, apperror.CodeTransport)
	assert.Equal(t, apperror.StageSubmission, appErr.Stage)
	assert.Empty(t, h.registry.queries)

	out := h.onlyOutcome(t)
	assert.Equal(t, JournalFailed, out.Status)
	assert.NotEmpty(t, out.Error)
}

func TestMoveUnit_IgnoresNameAndChecksParent(t *testing.T) {
	h := newHarness(t)
	h.registry.byUUID[unitUUID] = &orgunit.Department{
		UUID: unitUUID, Code: "AB12", Level: "Afdelings-niveau", Name: "stale name",
	}
	h.registry.parents[unitUUID] = parentUUID

	res, err := h.svc.MoveUnit(context.Background(), unitUUID, parentUUID, date(2020, 2, 1), false)
	require.NoError(t, err)
	assert.True(t, res.Verification.Converged())

	require.Len(t, h.publisher.docs, 1)
	doc, err := sdxml.Parse(h.publisher.docs[0])
	require.NoError(t, err)
	assert.Equal(t, sdxml.LifecycleMoved, doc.Lifecycle)
	assert.Equal(t, parentUUID, doc.ParentUUID)
}

func TestMoveUnit_WrongParentInRegistryDoesNotConverge(t *testing.T) {
	h := newHarness(t)
	h.registry.byUUID[unitUUID] = &orgunit.Department{UUID: unitUUID, Code: "AB12", Level: "Afdelings-niveau"}
	h.registry.parents[unitUUID] = otherUUID

	res, err := h.svc.MoveUnit(context.Background(), unitUUID, parentUUID, date(2020, 2, 1), false)

	requireCode(t, err, apperror.CodeConvergence)
	require.Len(t, res.Verification.Mismatches, 1)
	assert.Equal(t, verify.FieldMismatch{Field: verify.FieldParent, Expected: parentUUID, Observed: otherUUID},
		res.Verification.Mismatches[0])
}

func TestMoveUnit_UnderLowerLevelIsStructuralViolation(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.MoveUnit(context.Background(), parentUUID, unitUUID, date(2020, 1, 1), false)

	requireCode(t, err, apperror.CodeStructural)
	assert.Empty(t, h.publisher.docs)
	assert.Empty(t, h.journal.entries)
}

func TestMoveUnit_UnderItself(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.MoveUnit(context.Background(), unitUUID, unitUUID, date(2020, 1, 1), false)

	requireCode(t, err, apperror.CodeValidation)
}

func TestMoveUnit_ParentMissingFromRegistry(t *testing.T) {
	h := newHarness(t)
	delete(h.registry.byCode, "PA1")

	_, err := h.svc.MoveUnit(context.Background(), unitUUID, parentUUID, date(2020, 1, 1), false)

	appErr := requireCode(t, err, apperror.CodeNotFound)
	assert.Equal(t, apperror.StagePreSubmission, appErr.Stage)
	assert.Empty(t, h.publisher.docs)
}

func newUnit() *orgunit.Unit {
	return &orgunit.Unit{
		Name:    "A-sdm4",
		UserKey: "NEW1",
		Level:   orgunit.ClassRef{UUID: "uuid-b"},
		Details: []orgunit.AddressRecord{
			{Scope: orgunit.ScopePhone, Value: "12345678"},
			{Scope: orgunit.ScopeDAR, Value: "dar-2"},
		},
	}
}

const newUUID = "12345-44-44-44-12345"

func TestCreateUnit_SendsCreateThenEditAndVerifiesBoth(t *testing.T) {
	h := newHarness(t)
	h.registry.byUUID[newUUID] = &orgunit.Department{
		UUID: newUUID, Code: "NEW1", Level: "Afdelings-niveau", Name: "A-sdm4",
		ActivationDate: "2020-01-01",
		Phones:         []string{"12345678"},
		Postal:         &orgunit.PostalAddress{Street: "Toftebjerghaven 4", PostalCode: "2750", City: "Ballerup"},
	}
	h.registry.parents[newUUID] = parentUUID
	parent := h.directory.units[parentUUID]

	res, err := h.svc.CreateUnit(context.Background(), newUUID, newUnit(), parent, date(2020, 1, 1), false)
	require.NoError(t, err)
	assert.True(t, res.Verification.Converged())

	require.Len(t, h.publisher.docs, 2)
	create, err := sdxml.Parse(h.publisher.docs[0])
	require.NoError(t, err)
	assert.Equal(t, sdxml.LifecycleImported, create.Lifecycle)
	assert.Equal(t, "NEW1", create.Code)
	assert.Equal(t, "Afdelings-niveau", create.Level)

	edit, err := sdxml.Parse(h.publisher.docs[1])
	require.NoError(t, err)
	assert.Equal(t, sdxml.LifecycleEdited, edit.Lifecycle)
	assert.Equal(t, "12345678", edit.Phone)
	require.NotNil(t, edit.Postal)
	assert.Equal(t, "Toftebjerghaven 4", edit.Postal.Street)

	require.NotNil(t, res.Expected.Phone)
	assert.Equal(t, "12345678", *res.Expected.Phone)
	assert.Equal(t, "Afdelings-niveau", res.Expected.Level)
}

func TestCreateUnit_CodeInUse(t *testing.T) {
	h := newHarness(t)
	h.registry.byCode["NEW1"] = &orgunit.Department{UUID: "someone-else", Code: "NEW1"}

	_, err := h.svc.CreateUnit(context.Background(), newUUID, newUnit(), h.directory.units[parentUUID], date(2020, 1, 1), false)

	appErr := requireCode(t, err, apperror.CodeUnitCode)
	assert.Equal(t, []string{"code_in_use"}, appErr.Details["violations"])
	assert.Empty(t, h.publisher.docs)
}

func TestCreateUnit_UnknownUnitLevel(t *testing.T) {
	h := newHarness(t)
	unit := newUnit()
	unit.Level = orgunit.ClassRef{UUID: "uuid-unknown"}

	_, err := h.svc.CreateUnit(context.Background(), newUUID, unit, h.directory.units[parentUUID], date(2020, 1, 1), false)

	appErr := requireCode(t, err, apperror.CodeUnknownLevel)
	assert.Equal(t, "unit", appErr.Details["role"])
}

func TestCreateAddress_PNumberWithoutPostalAddress(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.CreateAddress(context.Background(), unitUUID,
		orgunit.AddressRecord{Scope: orgunit.ScopePNumber, Value: "1234567890"}, date(2020, 1, 1), false)

	requireCode(t, err, apperror.CodeOrdering)
	assert.Empty(t, h.publisher.docs)
}

func TestCreateAddress_AfterExistingPostalAddress(t *testing.T) {
	h := newHarness(t)
	h.directory.addresses[unitUUID] = []orgunit.AddressRecord{{Scope: orgunit.ScopeDAR, Value: "dar-1"}}
	h.registry.byUUID[unitUUID] = &orgunit.Department{
		UUID: unitUUID, Code: "AB12", Name: "A-sdm2", ActivationDate: "2020-01-01",
		ProductionUnit: "1234567890",
		Postal:         &orgunit.PostalAddress{Street: "Banegårdspladsen 1", PostalCode: "2750", City: "Ballerup"},
	}

	_, err := h.svc.CreateAddress(context.Background(), unitUUID,
		orgunit.AddressRecord{Scope: orgunit.ScopePNumber, Value: "1234567890"}, date(2020, 1, 1), false)
	require.NoError(t, err)

	doc, err := sdxml.Parse(h.publisher.docs[0])
	require.NoError(t, err)
	assert.Equal(t, "1234567890", doc.PNumber)
	require.NotNil(t, doc.Postal)
	assert.Equal(t, "Banegårdspladsen 1", doc.Postal.Street)
}

func TestEditAddress_NewRecordWins(t *testing.T) {
	h := newHarness(t)
	h.directory.addresses[unitUUID] = []orgunit.AddressRecord{{Scope: orgunit.ScopePhone, Value: "11111111"}}
	h.registry.byUUID[unitUUID] = &orgunit.Department{
		UUID: unitUUID, Code: "AB12", Name: "A-sdm2", ActivationDate: "2020-01-01",
		Phones: []string{"22222222"},
	}

	res, err := h.svc.EditAddress(context.Background(), unitUUID,
		orgunit.AddressRecord{Scope: orgunit.ScopePhone, Value: "22222222"}, date(2020, 1, 1), false)
	require.NoError(t, err)

	require.NotNil(t, res.Expected.Phone)
	assert.Equal(t, "22222222", *res.Expected.Phone)
	doc, err := sdxml.Parse(h.publisher.docs[0])
	require.NoError(t, err)
	assert.Equal(t, "22222222", doc.Phone)
}

func TestEditAddress_UnresolvableAddressAbortsBeforePublish(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.EditAddress(context.Background(), unitUUID,
		orgunit.AddressRecord{Scope: orgunit.ScopeDAR, Value: "dar-missing"}, date(2020, 1, 1), false)

	requireCode(t, err, apperror.CodeAddressResolution)
	assert.Equal(t, apperror.StagePreSubmission, apperror.StageOf(err))
	assert.Equal(t, http.StatusUnprocessableEntity, apperror.GetHTTPStatus(err))
	assert.Empty(t, h.publisher.docs)
}

func TestSubmitter_WithoutPublisher(t *testing.T) {
	s := NewSubmitter(nil)

	assert.NoError(t, s.Submit(context.Background(), []byte("<x/>"), true))
	requireCode(t, s.Submit(context.Background(), []byte("<x/>"), false), apperror.CodeInternal)
}

func firstEntry(t *testing.T, j *memJournal) *JournalEntry {
	t.Helper()
	require.Len(t, j.entries, 1)
	for _, e := range j.entries {
		return e
	}
	return nil
}
