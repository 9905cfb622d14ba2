// Package validate checks request structs with go-playground/validator and
// renders failures as English per-field messages keyed by JSON name.
package validate

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	govalidator "github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

var (
	once     sync.Once
	instance *govalidator.Validate
	trans    ut.Translator
)

func setup() {
	instance = govalidator.New(govalidator.WithRequiredStructEnabled())
	instance.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	enLocale := en.New()
	uni := ut.New(enLocale, enLocale)
	trans, _ = uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(instance, trans)
}

// FieldErrors maps a JSON field name to a human-readable message.
type FieldErrors map[string]string

func (f FieldErrors) Error() string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, f[k]))
	}
	return "invalid request: " + strings.Join(parts, "; ")
}

// Struct validates v against its `validate` tags. It returns nil or a
// FieldErrors.
func Struct(v any) error {
	once.Do(setup)

	err := instance.Struct(v)
	if err == nil {
		return nil
	}

	var ve govalidator.ValidationErrors
	if !errors.As(err, &ve) {
		return FieldErrors{"detail": err.Error()}
	}
	fields := make(FieldErrors, len(ve))
	for _, fe := range ve {
		fields[fieldPath(fe)] = fe.Translate(trans)
	}
	return fields
}

// fieldPath drops the root struct name from the namespace so nested
// fields read as "answers[0].user_answer".
func fieldPath(fe govalidator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}
