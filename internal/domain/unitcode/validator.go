// Package unitcode checks that a unit code is acceptable to the registry.
package unitcode

import (
	"context"
	"unicode"
	"unicode/utf8"

	"sdmox/internal/core/apperror"
	"sdmox/internal/domain/orgunit"
)

// Violation names one reason a code is rejected.
type Violation string

const (
	ViolationMissing     Violation = "code_missing"
	ViolationTooShort    Violation = "code_too_short"
	ViolationTooLong     Violation = "code_too_long"
	ViolationInvalidChar Violation = "code_invalid_character"
	ViolationNotUpper    Violation = "code_not_upper_case"
	ViolationInUse       Violation = "code_in_use"
)

const (
	minLength = 2
	maxLength = 4
)

// Validator validates unit codes, optionally checking the registry for clashes.
type Validator struct {
	registry orgunit.RegistryReader
}

// NewValidator creates a validator. registry may be nil when only syntax is checked.
func NewValidator(registry orgunit.RegistryReader) *Validator {
	return &Validator{registry: registry}
}

// Validate returns every syntactic violation of code. When allowExisting is
// false and the code is syntactically valid, the registry is asked whether a
// department already holds it during window.
func (v *Validator) Validate(ctx context.Context, code string, allowExisting bool, window orgunit.EffectiveWindow) ([]Violation, error) {
	violations := Syntax(code)
	if len(violations) > 0 || allowExisting || v.registry == nil {
		return violations, nil
	}

	dep, err := v.registry.GetDepartment(ctx, orgunit.DepartmentQuery{
		Identifier: code,
		From:       window.From,
		To:         window.From,
	})
	switch {
	case apperror.HasCode(err, apperror.CodeNonUnique):
		violations = append(violations, ViolationInUse)
	case err != nil:
		return nil, err
	case dep != nil:
		violations = append(violations, ViolationInUse)
	}
	return violations, nil
}

// Syntax checks the code without consulting the registry.
func Syntax(code string) []Violation {
	if code == "" {
		return []Violation{ViolationMissing}
	}
	var violations []Violation
	n := utf8.RuneCountInString(code)
	if n < minLength {
		violations = append(violations, ViolationTooShort)
	}
	if n > maxLength {
		violations = append(violations, ViolationTooLong)
	}
	if !isAlnum(code) {
		violations = append(violations, ViolationInvalidChar)
	}
	if !isUpper(code) {
		violations = append(violations, ViolationNotUpper)
	}
	return violations
}

// isUpper rejects any lower- or title-case letter, including those such as
// ß whose upper-case form is a different string.
func isUpper(s string) bool {
	for _, r := range s {
		if unicode.IsLower(r) || unicode.IsTitle(r) {
			return false
		}
	}
	return true
}

func isAlnum(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// Err converts violations into an UNIT_CODE_INVALID error, or nil.
func Err(code string, violations []Violation) error {
	if len(violations) == 0 {
		return nil
	}
	names := make([]string, len(violations))
	for i, v := range violations {
		names[i] = string(v)
	}
	return apperror.NewUnitCode(code, names)
}
