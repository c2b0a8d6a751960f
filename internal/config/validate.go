package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	entrans "github.com/go-playground/validator/v10/translations/en"

	"elesrank/internal/ranking"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
	translator   ut.Translator
)

// validatorInstance builds the shared validator: json tag names in paths and
// the custom notblank, duration, period and unittype tags.
func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		enLoc := en.New()
		trans, _ := ut.New(enLoc, enLoc).GetTranslator("en")

		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			tag := fld.Tag.Get("json")
			if idx := strings.Index(tag, ","); idx >= 0 {
				tag = tag[:idx]
			}
			if tag == "" || tag == "-" {
				return fld.Name
			}
			return tag
		})
		_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
			return strings.TrimSpace(fl.Field().String()) != ""
		})
		_ = v.RegisterValidation("duration", func(fl validator.FieldLevel) bool {
			_, err := ParseDurationField("", fl.Field().String())
			return err == nil
		})
		_ = v.RegisterValidation("period", func(fl validator.FieldLevel) bool {
			_, err := ranking.ParsePeriod(fl.Field().String())
			return err == nil
		})
		_ = v.RegisterValidation("unittype", func(fl validator.FieldLevel) bool {
			_, err := ranking.ParseUnitTypeFilter(fl.Field().String())
			return err == nil
		})
		_ = entrans.RegisterDefaultTranslations(v, trans)
		validate = v
		translator = trans
	})
	return validate
}

// Validate rejects configs that would fail at runtime. It reports the first
// offending field by its config path, e.g. "delays.state_sync".
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	err := validatorInstance().Struct(cfg)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]
	path := strings.TrimPrefix(fe.Namespace(), "Config.")
	value := fmt.Sprint(fe.Value())
	switch fe.Tag() {
	case "required", "notblank":
		return fmt.Errorf("%s is required", path)
	case "gte":
		return fmt.Errorf("%s must be >= %s", path, fe.Param())
	case "duration":
		return fmt.Errorf("%s: invalid non-negative duration %q", path, value)
	case "period", "unittype":
		return fmt.Errorf("%s: invalid %s %q", path, fe.Tag(), value)
	default:
		return fmt.Errorf("%s: %s", path, fe.Translate(translator))
	}
}
