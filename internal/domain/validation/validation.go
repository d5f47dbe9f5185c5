// Package validation wraps a shared go-playground/validator instance and translates its
// failures into errs.ValidationError values keyed by the record's json field names.
package validation

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"cellule/internal/domain/errs"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func instance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
	})
	return validate
}

// Struct validates v and returns the first failure as *errs.ValidationError.
// PRE: v is a struct or pointer to struct carrying `validate` tags
// POST: nil when every rule passes
func Struct(v any) error {
	err := instance().Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return errs.Invalid("", err.Error())
	}
	fe := fieldErrs[0]
	switch fe.Tag() {
	case "required":
		return errs.Required(fe.Field())
	case "min":
		return errs.Invalid(fe.Field(), "doit contenir au moins "+fe.Param()+" caractères")
	case "email":
		return errs.Invalid(fe.Field(), "adresse email invalide")
	case "url", "http_url":
		return errs.Invalid(fe.Field(), "URL invalide")
	default:
		return errs.Invalid(fe.Field(), "valeur invalide ("+fe.Tag()+")")
	}
}
