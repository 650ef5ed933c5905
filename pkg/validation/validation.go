package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/dmehra2102/checkout-service/pkg/apperr"
)

var indexPattern = regexp.MustCompile(`\[(\d+)\]`)

type Validator struct {
	v *validator.Validate
}

func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{v: v}
}

// Struct validates s and converts failures into an apperr validation error
// keyed by JSON path, e.g. "items.0.quantity".
func (v *Validator) Struct(s any) error {
	err := v.v.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		key := fieldKey(fe.Namespace())
		if _, exists := fields[key]; !exists {
			fields[key] = message(key, fe)
		}
	}
	return apperr.Validation(fields)
}

func fieldKey(namespace string) string {
	// Drop the root struct name.
	if i := strings.IndexByte(namespace, '.'); i >= 0 {
		namespace = namespace[i+1:]
	}
	return indexPattern.ReplaceAllString(namespace, ".$1")
}

func message(field string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("The %s field is required.", field)
	case "email":
		return fmt.Sprintf("The %s field must be a valid email address.", field)
	case "oneof":
		return fmt.Sprintf("The selected %s is invalid.", field)
	case "min":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("The %s field must have at least %s items.", field, fe.Param())
		}
		return fmt.Sprintf("The %s field must be at least %s.", field, fe.Param())
	case "max":
		return fmt.Sprintf("The %s field must not be greater than %s.", field, fe.Param())
	case "gt":
		return fmt.Sprintf("The %s field must be greater than %s.", field, fe.Param())
	default:
		return fmt.Sprintf("The %s field is invalid.", field)
	}
}

// Merge folds extra field errors into err. err may be nil.
func Merge(err error, extra map[string]string) error {
	if len(extra) == 0 {
		return err
	}
	var appErr *apperr.Error
	if err == nil {
		return apperr.Validation(extra)
	}
	if !errors.As(err, &appErr) || appErr.Kind != apperr.KindValidation {
		return err
	}
	for k, v := range extra {
		if _, exists := appErr.Fields[k]; !exists {
			appErr.Fields[k] = v
		}
	}
	return appErr
}
