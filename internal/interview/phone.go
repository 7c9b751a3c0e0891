package interview

import (
	"errors"
	"regexp"
)

// ErrInvalidPhoneNumber is returned for numbers that fail E.164 validation.
var ErrInvalidPhoneNumber = errors.New("invalid phone number")

// phonePattern accepts an optional leading +, then 2 to 15 digits with a
// non-zero first digit (E.164).
var phonePattern = regexp.MustCompile(`^\+?[1-9][0-9]{1,14}$`)

// ValidatePhoneNumber rejects malformed destination numbers before any call
// is placed or record created.
func ValidatePhoneNumber(number string) error {
	if !phonePattern.MatchString(number) {
		return ErrInvalidPhoneNumber
	}
	return nil
}
