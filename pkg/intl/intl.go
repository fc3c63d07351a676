package intl

import (
	"context"
	"errors"

	"github.com/iota-uz/go-i18n/v2/i18n"
	"golang.org/x/text/language"

	"github.com/iota-uz/servicedesk/pkg/constants"
)

var ErrNoLocalizer = errors.New("localizer not found in context")

type SupportedLanguage struct {
	Code string
	Tag  language.Tag
}

func GetSupportedLanguages(codes []string) []SupportedLanguage {
	out := make([]SupportedLanguage, 0, len(codes))
	for _, code := range codes {
		tag, err := language.Parse(code)
		if err != nil {
			continue
		}
		out = append(out, SupportedLanguage{Code: code, Tag: tag})
	}
	return out
}

func WithLocalizer(ctx context.Context, l *i18n.Localizer) context.Context {
	return context.WithValue(ctx, constants.LocalizerKey, l)
}

func UseLocalizer(ctx context.Context) (*i18n.Localizer, bool) {
	l, ok := ctx.Value(constants.LocalizerKey).(*i18n.Localizer)
	return l, ok && l != nil
}

func WithLocale(ctx context.Context, tag language.Tag) context.Context {
	return context.WithValue(ctx, constants.LocaleKey, tag)
}

func UseLocale(ctx context.Context) language.Tag {
	if tag, ok := ctx.Value(constants.LocaleKey).(language.Tag); ok {
		return tag
	}
	return language.English
}

// T localizes id with the context localizer, returning fallback when either
// the localizer or the message is missing.
func T(ctx context.Context, id, fallback string, data map[string]string) string {
	l, ok := UseLocalizer(ctx)
	if !ok {
		return fallback
	}
	msg, err := l.Localize(&i18n.LocalizeConfig{MessageID: id, TemplateData: data})
	if err != nil || msg == "" {
		return fallback
	}
	return msg
}
