package tool

import (
	"fmt"

	"walletchat/internal/domain"
)

// RequireField returns an error if the string value is empty.
func RequireField(name, value string) error {
	if value == "" {
		return fmt.Errorf("'%s' is required", name)
	}
	return nil
}

// ValidatePositiveAmount checks that value is a finite amount > 0.
func ValidatePositiveAmount(name string, value float64) error {
	if value <= 0 {
		return fmt.Errorf("'%s' must be greater than zero", name)
	}
	return nil
}

// ValidateCurrency checks that value is a supported currency symbol.
// An empty value is allowed (treated as "not set").
func ValidateCurrency(name, value string) error {
	if value == "" {
		return nil
	}
	if !domain.IsSupportedCurrency(value) {
		return fmt.Errorf("unsupported %s %q (want one of: %s)", name, value, joinComma(domain.SupportedCurrencies))
	}
	return nil
}

// ValidateAll returns the first non-nil error from the given list.
func ValidateAll(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func joinComma(ss []string) string {
	switch len(ss) {
	case 0:
		return ""
	case 1:
		return ss[0]
	}
	out := ss[0]
	for _, s := range ss[1:] {
		out += ", " + s
	}
	return out
}
