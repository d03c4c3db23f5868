package feature

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// validate is shared and concurrency-safe per the validator docs.
var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateInput checks a FeatureInput before detection. A failure wraps
// ErrInputInvalid so callers can branch with errors.Is.
func ValidateInput(in FeatureInput) error {
	if !ValidContext(in.Context) {
		return fmt.Errorf("%w: missing or unknown context tag %q", ErrInputInvalid, in.Context)
	}
	if err := validate.Struct(in); err != nil {
		return fmt.Errorf("%w: %v", ErrInputInvalid, err)
	}
	return nil
}

// ValidateProfile checks a UserProfile. Zero-value profiles are legal and
// resolve to the unspecified group.
func ValidateProfile(p UserProfile) error {
	if p.Age < 0 {
		return fmt.Errorf("%w: negative age %d", ErrInputInvalid, p.Age)
	}
	switch p.Category {
	case "", GroupChild, GroupTeen, GroupYoungAdult, GroupAdult, GroupSenior, GroupUnspecified:
		return nil
	default:
		return fmt.Errorf("%w: unknown profile category %q", ErrInputInvalid, p.Category)
	}
}
