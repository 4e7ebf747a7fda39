package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasCode_FollowsWrapping(t *testing.T) {
	err := fmt.Errorf("lookup: %w", NewNonUnique("department", "abc", 2))

	assert.True(t, HasCode(err, CodeNonUnique))
	assert.False(t, HasCode(err, CodeNotFound))
	assert.Equal(t, http.StatusConflict, GetHTTPStatus(err))
}

func TestStageOf_DefaultsToPreSubmission(t *testing.T) {
	assert.Equal(t, StagePreSubmission, StageOf(NewValidation("bad")))
	assert.Equal(t, StagePreSubmission, StageOf(errors.New("plain")))
	assert.Equal(t, StagePostSubmission, StageOf(NewConvergence("u", 3, nil)))
}

func TestStamp_KeepsStageClosestToFailure(t *testing.T) {
	err := Stamp(NewUnexpectedReply("<nack/>"), StagePostSubmission)
	assert.Equal(t, StageSubmission, StageOf(err))

	err = Stamp(errors.New("boom"), StagePostSubmission)
	appErr, ok := AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, CodeInternal, appErr.Code)
	assert.Equal(t, StagePostSubmission, appErr.Stage)

	assert.NoError(t, Stamp(nil, StageSubmission))
}

func TestNewUnitCode_ListsAllViolations(t *testing.T) {
	err := NewUnitCode("a", []string{"code_too_short", "code_not_upper_case"})

	assert.Contains(t, err.Error(), "code_too_short, code_not_upper_case")
	assert.Equal(t, []string{"code_too_short", "code_not_upper_case"}, err.Details["violations"])
}
