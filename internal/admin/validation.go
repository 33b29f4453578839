package admin

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"studytracker/internal/tracker"
)

var registerOnce sync.Once

// RegisterValidators installs the clock, isodate, span and subject tags on
// gin's validator and reports fields by their JSON names.
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("gin validator is not go-playground/validator")
	}
	var err error
	registerOnce.Do(func() {
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
		tags := map[string]validator.Func{
			"clock": func(fl validator.FieldLevel) bool {
				_, err := tracker.ParseTimeOfDay(fl.Field().String())
				return err == nil
			},
			"isodate": func(fl validator.FieldLevel) bool {
				_, err := tracker.ParseDate(fl.Field().String())
				return err == nil
			},
			"span": func(fl validator.FieldLevel) bool {
				s, err := tracker.ParseSpan(fl.Field().String())
				return err == nil && s >= 0
			},
			"subject": func(fl validator.FieldLevel) bool {
				return tracker.Subject(fl.Field().String()).Valid()
			},
		}
		for tag, fn := range tags {
			if err = v.RegisterValidation(tag, fn); err != nil {
				return
			}
		}
	})
	return err
}

// bindingErrors flattens validator errors to field -> failed tag.
func bindingErrors(err error) (map[string]string, bool) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil, false
	}
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		out[fe.Field()] = fe.Tag()
	}
	return out, true
}
