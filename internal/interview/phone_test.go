package interview

import "testing"

func TestValidatePhoneNumber(t *testing.T) {
	valid := []string{"+14155552671", "14155552671", "+442071838750", "49"}
	for _, number := range valid {
		if err := ValidatePhoneNumber(number); err != nil {
			t.Errorf("expected %q to be accepted: %v", number, err)
		}
	}

	invalid := []string{"abc123", "+0123456789", "", "+", "1", "+12345678901234567", "415-555-2671"}
	for _, number := range invalid {
		if err := ValidatePhoneNumber(number); err == nil {
			t.Errorf("expected %q to be rejected", number)
		}
	}
}
