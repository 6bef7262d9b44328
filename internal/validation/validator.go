package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// FieldError is a single failed rule, keyed by the request field name.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Errors is returned by Validator.Struct when one or more fields fail.
type Errors []FieldError

func (e Errors) Error() string {
	parts := make([]string, len(e))
	for i, fe := range e {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return strings.Join(parts, "; ")
}

// Validator wraps go-playground/validator with the request rules used by the API.
type Validator struct {
	validate          *validator.Validate
	minPasswordLength int
}

// New builds a Validator. Struct tags may use the custom "password" rule, which
// applies ValidatePassword with minPasswordLength.
func New(minPasswordLength int) *Validator {
	v := &Validator{
		validate:          validator.New(validator.WithRequiredStructEnabled()),
		minPasswordLength: minPasswordLength,
	}

	// Report json/form names instead of Go field names
	v.validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, tag := range []string{"json", "form"} {
			name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
			if name != "" && name != "-" {
				return name
			}
		}
		return f.Name
	})

	_ = v.validate.RegisterValidation("password", func(fl validator.FieldLevel) bool {
		return ValidatePassword(fl.Field().String(), v.minPasswordLength) == nil
	})

	return v
}

// Struct validates a request struct. Rule failures come back as Errors; any
// other error means the value could not be validated at all.
func (v *Validator) Struct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	out := make(Errors, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{Field: fe.Field(), Message: v.message(fe)})
	}
	return out
}

func (v *Validator) message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		return "must be at least " + fe.Param()
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		return "must be at most " + fe.Param()
	case "datetime":
		return "must match format " + fe.Param()
	case "password":
		if err := ValidatePassword(fmt.Sprint(fe.Value()), v.minPasswordLength); err != nil {
			return strings.TrimPrefix(err.Error(), "password ")
		}
	}
	return "is invalid"
}
