package types

import (
	"errors"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	ErrInvalidPhone = errors.New("invalid phone number")
	ErrShortProof   = errors.New("confirmation message is too short")
)

// proofMinLength guards against obviously-incomplete pastes; full message
// parsing is the verifier's job, not the client's.
const proofMinLength = 10

// Tanzanian subscriber numbers: trunk prefix 0 or country code 255
// (with or without +), followed by exactly 9 digits.
var phonePattern = regexp.MustCompile(`^(?:0|255|\+255)\d{9}$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("tzphone", func(fl validator.FieldLevel) bool {
		return ValidPhone(fl.Field().String())
	})
	return v
}

// Validator returns the shared instance with the tzphone rule registered,
// for use by the sandbox request binding.
func Validator() *validator.Validate {
	return validate
}

// NormalizePhone strips all whitespace from a user-entered phone number.
func NormalizePhone(phone string) string {
	return strings.Join(strings.Fields(phone), "")
}

// ValidPhone reports whether phone is an acceptable subscriber number
// after whitespace stripping.
func ValidPhone(phone string) bool {
	return phonePattern.MatchString(NormalizePhone(phone))
}

// CheckPhone normalizes and validates a phone number, returning the
// normalized form. Runs locally before any network call.
func CheckPhone(phone string) (string, error) {
	normalized := NormalizePhone(phone)
	if !phonePattern.MatchString(normalized) {
		return "", ErrInvalidPhone
	}
	return normalized, nil
}

// CheckProof trims and validates a manual-payment confirmation message,
// returning the trimmed form.
func CheckProof(proof string) (string, error) {
	trimmed := strings.TrimSpace(proof)
	if len(trimmed) < proofMinLength {
		return "", ErrShortProof
	}
	return trimmed, nil
}

func (r *CreatePushOrderRequest) Validate() error {
	r.PaymentPhone = NormalizePhone(r.PaymentPhone)
	r.ServiceID = strings.TrimSpace(r.ServiceID)
	return validate.Struct(r)
}

func (r *CreateManualOrderRequest) Validate() error {
	r.PaymentPhone = NormalizePhone(r.PaymentPhone)
	r.ServiceID = strings.TrimSpace(r.ServiceID)
	r.ProofText = strings.TrimSpace(r.ProofText)
	return validate.Struct(r)
}
