// File: internal/session/validation.go
package session

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

// passwordSymbols is the accepted special-character set for passwords.
const passwordSymbols = "@#$%^&+=!"

// ValidationError is a local pre-flight validation failure. It is
// raised before any remote call is made.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Registration only fails on a non-function argument.
	_ = v.RegisterValidation("strongpassword", strongPassword)
	_ = v.RegisterValidation("handle", validHandle)
	return v
}

// ValidatePassword checks the password policy: at least 8 characters,
// one digit, one lowercase, one uppercase, one symbol from
// passwordSymbols and no whitespace.
func ValidatePassword(password string) error {
	if err := validate.Var(password, "strongpassword"); err != nil {
		return &ValidationError{
			Field:  "password",
			Reason: "must be at least 8 characters and include an uppercase letter, a lowercase letter, a digit and one of " + passwordSymbols + ", with no whitespace",
		}
	}
	return nil
}

// ValidateHandle checks the handle policy: at least 3 characters, no
// spaces.
func ValidateHandle(handle string) error {
	if err := validate.Var(handle, "handle"); err != nil {
		return &ValidationError{
			Field:  "nombreUsuario",
			Reason: "must be at least 3 characters and contain no spaces",
		}
	}
	return nil
}

func strongPassword(fl validator.FieldLevel) bool {
	password := fl.Field().String()
	runes := []rune(password)
	if len(runes) < 8 {
		return false
	}

	var hasDigit, hasLower, hasUpper, hasSymbol bool
	for _, r := range runes {
		switch {
		case unicode.IsSpace(r):
			return false
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsUpper(r):
			hasUpper = true
		case strings.ContainsRune(passwordSymbols, r):
			hasSymbol = true
		}
	}
	return hasDigit && hasLower && hasUpper && hasSymbol
}

func validHandle(fl validator.FieldLevel) bool {
	handle := fl.Field().String()
	return len([]rune(handle)) >= 3 && !strings.Contains(handle, " ")
}
