package timesheet

import (
	"math"
	"reflect"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func entryValidator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterValidation("finite", func(fl validator.FieldLevel) bool {
			f := fl.Field()
			if f.Kind() != reflect.Float64 && f.Kind() != reflect.Float32 {
				return false
			}
			x := f.Float()
			return !math.IsNaN(x) && !math.IsInf(x, 0)
		})
		v.RegisterValidation("category", func(fl validator.FieldLevel) bool {
			return Category(fl.Field().String()).Valid()
		})
		validate = v
	})
	return validate
}

// Validate checks e and returns a *ValidationError when it is not
// submittable.
func Validate(e Entry) error {
	if err := entryValidator().Struct(e); err != nil {
		return &ValidationError{Entry: e, Err: err}
	}
	return nil
}
