package user

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/mateatletas/backend/core"
)

// password change policy
const (
	currentPwdMinLen = 4 // temporary & system-issued passwords may be short
	newPwdMinLen     = 8

	currentPasswordField = "current_password"
	newPasswordField     = "new_password"
)

// Violation codes
const (
	CodeRequired       = "required"
	CodeMinLength      = "min_length"
	CodeMissingLower   = "missing_lower"
	CodeMissingUpper   = "missing_upper"
	CodeMissingDigit   = "missing_digit"
	CodeMissingSpecial = "missing_special"
)

// PasswordViolation is a single unmet password change rule.
type PasswordViolation struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// PasswordCheck is the outcome of ValidatePasswordChange.
type PasswordCheck struct {
	Valid      bool                `json:"valid"`
	Violations []PasswordViolation `json:"violations"`
}

// Err returns a *WeakPasswordError listing every violation, or nil when the change is acceptable.
func (pc PasswordCheck) Err() error {
	if pc.Valid {
		return nil
	}
	return &WeakPasswordError{Violations: pc.Violations}
}

// Messages returns the human-readable violation messages.
func (pc PasswordCheck) Messages() []string {
	msgs := make([]string, 0, len(pc.Violations))
	for _, v := range pc.Violations {
		msgs = append(msgs, v.Message)
	}
	return msgs
}

// WeakPasswordError is returned when a password change breaks one or more rules.
type WeakPasswordError struct {
	Violations []PasswordViolation
}

func (err *WeakPasswordError) Error() string {
	msgs := make([]string, 0, len(err.Violations))
	for _, v := range err.Violations {
		msgs = append(msgs, v.Message)
	}
	return "weak password: " + strings.Join(msgs, "; ")
}

// ValidationError converts err for the API layer, one FieldError per violation.
func (err *WeakPasswordError) ValidationError() *core.ValidationError {
	flds := make([]core.FieldError, 0, len(err.Violations))
	for _, v := range err.Violations {
		flds = append(flds, core.FieldError{Field: v.Field, Error: v.Message})
	}
	return &core.ValidationError{Err: err, Fields: flds}
}

// ValidatePasswordChange checks a password change request against the policy:
//   - current password: required, at least 4 characters
//   - new password: at least 8 characters
//   - new password: 1 lower-case, 1 upper-case, 1 digit & 1 special character
//
// All violations are reported, not just the first one.
// It neither compares the new password with the current one nor rejects common passwords.
func ValidatePasswordChange(currentPassword, newPassword string) PasswordCheck {
	violations := make([]PasswordViolation, 0)
	report := func(field, code, msg string) {
		violations = append(violations, PasswordViolation{Field: field, Code: code, Message: msg})
	}

	switch {
	case currentPassword == "":
		report(currentPasswordField, CodeRequired, "current password is required")
	case utf8.RuneCountInString(currentPassword) < currentPwdMinLen:
		report(currentPasswordField, CodeMinLength,
			fmt.Sprintf("current password must contain at least %d characters", currentPwdMinLen))
	}

	violations = append(violations, newPasswordViolations(newPassword)...)

	return PasswordCheck{Valid: len(violations) == 0, Violations: violations}
}

// ValidateNewPassword applies the new password rules only. Used when there is no current password to check.
func ValidateNewPassword(newPassword string) PasswordCheck {
	violations := newPasswordViolations(newPassword)
	return PasswordCheck{Valid: len(violations) == 0, Violations: violations}
}

func newPasswordViolations(pwd string) []PasswordViolation {
	var hasLower, hasUpper, hasDigit, hasSpecial bool
	violations := make([]PasswordViolation, 0)
	report := func(code, msg string) {
		violations = append(violations, PasswordViolation{Field: newPasswordField, Code: code, Message: msg})
	}

	if utf8.RuneCountInString(pwd) < newPwdMinLen {
		report(CodeMinLength, fmt.Sprintf("new password must contain at least %d characters", newPwdMinLen))
	}

	for _, char := range pwd {
		switch {
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsDigit(char):
			hasDigit = true
		default:
			hasSpecial = true
		}
	}
	if !hasLower {
		report(CodeMissingLower, "new password must contain a lower-case letter")
	}
	if !hasUpper {
		report(CodeMissingUpper, "new password must contain an upper-case letter")
	}
	if !hasDigit {
		report(CodeMissingDigit, "new password must contain a digit")
	}
	if !hasSpecial {
		report(CodeMissingSpecial, "new password must contain a special character")
	}
	return violations
}
