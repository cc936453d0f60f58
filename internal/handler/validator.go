package handler

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/iliyamo/title-reviews/internal/apperr"
	"github.com/iliyamo/title-reviews/internal/model"
)

// RequestValidator adapts go-playground/validator to echo.Validator.
// Failures come back as apperr validation errors keyed by JSON field name.
type RequestValidator struct {
	validate *validator.Validate
}

// NewValidator returns a validator with the username and slug tags
// registered.
func NewValidator() *RequestValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return model.UsernamePattern.MatchString(fl.Field().String())
	})
	// An empty slug is left to required/omitempty; on a title it clears
	// the category.
	_ = v.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return s == "" || model.SlugPattern.MatchString(s)
	})
	return &RequestValidator{validate: v}
}

// Validate implements echo.Validator.
func (rv *RequestValidator) Validate(i interface{}) error {
	err := rv.validate.Struct(i)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.Validation("body", "invalid request body")
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fieldMessage(fe)
	}
	return apperr.ValidationFields(fields)
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "max":
		return fe.Field() + " must be at most " + fe.Param() + " characters"
	case "email":
		return "enter a valid email address"
	case "username":
		return "username may contain only letters, digits and @/./+/-/_"
	case "slug":
		return "slug may contain only latin letters, digits, hyphens and underscores"
	case "oneof":
		return fe.Field() + " must be one of " + fe.Param()
	case "min", "gte", "lte":
		return fe.Field() + " is out of range"
	}
	return fe.Field() + " is invalid"
}
