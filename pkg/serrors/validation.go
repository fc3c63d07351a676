package serrors

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/iota-uz/go-i18n/v2/i18n"

	"github.com/iota-uz/servicedesk/pkg/constants"
)

const fieldKeyTemplate = "FieldKey"

// ValidationErrors maps a JSON field name to its failure.
type ValidationErrors map[string]*BaseError

func (v ValidationErrors) Error() string {
	fields := make([]string, 0, len(v))
	for field := range v {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, fmt.Sprintf("%s: %s", field, v[field].Message))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (v ValidationErrors) Fields() map[string]string {
	out := make(map[string]string, len(v))
	for field, err := range v {
		out[field] = err.Message
	}
	return out
}

func NewFieldError(field, code, message, localeKey string) *BaseError {
	return NewError(code, message, localeKey).WithTemplateData(map[string]string{
		"Field": field,
	})
}

// ProcessValidatorErrors converts validator failures into coded errors keyed
// by field name. fieldLocaleKey maps a Go struct field to its label key.
func ProcessValidatorErrors(errs validator.ValidationErrors, fieldLocaleKey func(field string) string) ValidationErrors {
	out := make(ValidationErrors, len(errs))
	for _, fe := range errs {
		data := map[string]string{
			"Field": fe.Field(),
			"Param": fe.Param(),
		}
		if fieldLocaleKey != nil {
			if key := fieldLocaleKey(fe.StructField()); key != "" {
				data[fieldKeyTemplate] = key
			}
		}
		out[fe.Field()] = NewError(
			"VALIDATION_"+strings.ToUpper(fe.Tag()),
			fe.Translate(constants.Translator),
			"ValidationErrors."+fe.Tag(),
		).WithTemplateData(data)
	}
	return out
}

func LocalizeValidationErrors(errs ValidationErrors, l *i18n.Localizer) map[string]string {
	out := make(map[string]string, len(errs))
	for field, err := range errs {
		out[field] = err.Localize(l)
	}
	return out
}
