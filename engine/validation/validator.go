// Package validation centralizes request-shape validation for the API
// surface: struct-level checks via go-playground/validator (the same
// library gin's binding layer wraps) and JSON-schema checks against a
// trigger's declared input_schema via kaptinlin/jsonschema.
package validation

import (
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
)

var (
	once sync.Once
	v    *validator.Validate
)

// Struct validates s's `validate:"..."` tags, registering this package's
// custom rules on first use.
func Struct(s any) error {
	once.Do(initValidator)
	if err := v.Struct(s); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}

func initValidator() {
	v = validator.New()
	if err := v.RegisterValidation("cron", validateCron); err != nil {
		panic(fmt.Sprintf("register cron validator: %v", err))
	}
}

// validateCron accepts exactly what the scheduler's underlying cron.Cron
// accepts: standard five-field cron syntax or a "@every"/"@daily" style
// descriptor (engine/scheduler.Scheduler.cron is built with cron.New,
// which parses with this same grammar).
func validateCron(fl validator.FieldLevel) bool {
	expr := fl.Field().String()
	if expr == "" {
		return true
	}
	_, err := cron.ParseStandard(expr)
	return err == nil
}
