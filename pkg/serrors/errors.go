package serrors

import (
	"errors"
	"maps"

	"github.com/iota-uz/go-i18n/v2/i18n"
)

// BaseError is a coded error that can be rendered through the i18n bundle.
type BaseError struct {
	Code         string
	Message      string
	LocaleKey    string
	TemplateData map[string]string
}

func NewError(code, message, localeKey string) *BaseError {
	return &BaseError{
		Code:      code,
		Message:   message,
		LocaleKey: localeKey,
	}
}

func (e *BaseError) Error() string {
	return e.Message
}

// Is matches any BaseError with the same code so that copies produced by
// WithTemplateData still compare equal to their sentinel.
func (e *BaseError) Is(target error) bool {
	var other *BaseError
	if !errors.As(target, &other) {
		return false
	}
	return other.Code == e.Code
}

func (e *BaseError) WithTemplateData(data map[string]string) *BaseError {
	cp := *e
	cp.TemplateData = maps.Clone(data)
	return &cp
}

// Localize renders the error for the given localizer, falling back to Message.
func (e *BaseError) Localize(l *i18n.Localizer) string {
	if l == nil || e.LocaleKey == "" {
		return e.Message
	}
	data := make(map[string]string, len(e.TemplateData))
	for k, v := range e.TemplateData {
		data[k] = v
	}
	if key, ok := data[fieldKeyTemplate]; ok {
		if field, err := l.Localize(&i18n.LocalizeConfig{MessageID: key}); err == nil {
			data["Field"] = field
		}
	}
	msg, err := l.Localize(&i18n.LocalizeConfig{
		MessageID:    e.LocaleKey,
		TemplateData: data,
	})
	if err != nil || msg == "" {
		return e.Message
	}
	return msg
}

// Code extracts the code of the first BaseError in the chain.
func Code(err error) string {
	var base *BaseError
	if errors.As(err, &base) {
		return base.Code
	}
	return ""
}
