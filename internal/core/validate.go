package core

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var draftValidator = newDraftValidator()

func newDraftValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	_ = v.RegisterValidation("category", func(fl validator.FieldLevel) bool {
		return Category(fl.Field().String()).IsValid()
	})
	return v
}

// validateDraft maps the first failing rule onto the package's sentinel errors.
func validateDraft(d ExpenseDraft) error {
	err := draftValidator.Struct(d)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}

	fe := verrs[0]
	switch fe.Field() {
	case "Location":
		if fe.Tag() == "max" {
			return ErrLocationTooLong
		}
		return ErrEmptyLocation
	case "Amount":
		return ErrMissingAmount
	case "Date":
		return ErrMissingDate
	case "Category":
		if fe.Tag() == "required" {
			return ErrMissingCategory
		}
		return fmt.Errorf("%w: %q", ErrInvalidCategory, d.Category)
	default:
		return fmt.Errorf("invalid %s: failed %q", fe.Field(), fe.Tag())
	}
}
