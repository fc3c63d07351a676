package constants

import (
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	entranslations "github.com/go-playground/validator/v10/translations/en"
)

type ContextKey string

const (
	AppKey       ContextKey = "app"
	LoggerKey    ContextKey = "logger"
	PoolKey      ContextKey = "pool"
	TxKey        ContextKey = "tx"
	ActorKey     ContextKey = "actor"
	LocalizerKey ContextKey = "localizer"
	LocaleKey    ContextKey = "locale"
	RequestStart ContextKey = "requestStart"
	RequestIDKey ContextKey = "requestID"
)

var (
	Validate   = validator.New(validator.WithRequiredStructEnabled())
	Translator ut.Translator
)

func init() {
	enLocale := en.New()
	uni := ut.New(enLocale, enLocale)
	Translator, _ = uni.GetTranslator("en")
	if err := entranslations.RegisterDefaultTranslations(Validate, Translator); err != nil {
		panic(err)
	}
	// Field names in validation errors follow the JSON contract.
	Validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}
