// Package validation checks request payloads and configuration values.
//
// Struct payloads are validated with go-playground/validator using `validate`
// tags; failures are reported as Error values keyed by the JSON field name so
// they can be echoed back to API clients unchanged.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

// Error describes a single invalid field.
type Error struct {
	Field   string
	Message string
}

func (e Error) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// ClientSafe marks the message as fit for API responses.
func (e Error) ClientSafe() bool { return true }

const requiredText = "this field is required"

// Validator wraps a configured validator instance and its English translator.
type Validator struct {
	validate   *validator.Validate
	translator ut.Translator
}

// New returns a Validator reporting JSON field names with English messages.
func New() *Validator {
	english := en.New()
	uni := ut.New(english, english)
	translator, _ := uni.GetTranslator("en")

	validate := validator.New(validator.WithRequiredStructEnabled())
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	registerTranslation(validate, translator, "required", requiredText)

	return &Validator{validate: validate, translator: translator}
}

// Struct validates s and returns the first failing field as an Error.
func (v *Validator) Struct(s any) error {
	return v.convert(v.validate.Struct(s), "")
}

// Var validates a single value against tag, reporting failures under field.
func (v *Validator) Var(field string, value any, tag string) error {
	return v.convert(v.validate.Var(value, tag), field)
}

func (v *Validator) convert(err error, field string) error {
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return err
	}
	fe := fieldErrs[0]
	name := fe.Field()
	if field != "" {
		name = field
	}
	msg := fe.Translate(v.translator)
	if fe.Tag() != "required" {
		// Default translations lead with the field name; keep only the rule.
		msg = strings.TrimSpace(strings.TrimPrefix(msg, fe.Field()))
	}
	return Error{Field: name, Message: msg}
}

func registerTranslation(validate *validator.Validate, translator ut.Translator, tag, text string) {
	_ = validate.RegisterTranslation(
		tag, translator,
		func(t ut.Translator) error { return t.Add(tag, text, true) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(tag, fe.Field())
			return s
		},
	)
}
