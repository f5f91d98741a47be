package middleware

import (
	stderrors "errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/jwalitptl/agenda-api/internal/model"
	"github.com/jwalitptl/agenda-api/pkg/errors"
)

var registerOnce sync.Once

var tagMessages = map[string]string{
	"required":           "is required",
	"required_without":   "is required",
	"excluded_with":      "must not be combined with %s",
	"email":              "must be a valid email",
	"min":                "must be at least %s",
	"max":                "must be at most %s",
	"gte":                "must be at least %s",
	"appointment_status": "is not a known appointment status",
}

// RegisterValidators installs the custom binding tags on gin's validator and
// reports fields by their JSON names. It is safe to call more than once.
func RegisterValidators() error {
	var err error
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			err = fmt.Errorf("unexpected binding validator engine")
			return
		}
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
		err = v.RegisterValidation("appointment_status", func(fl validator.FieldLevel) bool {
			return model.AppointmentStatus(fl.Field().String()).IsValid()
		})
	})
	return err
}

// BindingError converts a ShouldBind error into a Validation error naming
// the offending fields.
func BindingError(err error) error {
	var verrs validator.ValidationErrors
	if !stderrors.As(err, &verrs) {
		return errors.Validation("malformed request body", err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msg, ok := tagMessages[fe.Tag()]
		if !ok {
			msg = "is invalid"
		}
		if strings.Contains(msg, "%s") {
			msg = fmt.Sprintf(msg, fe.Param())
		}
		msgs = append(msgs, fe.Field()+" "+msg)
	}
	return errors.Validation(strings.Join(msgs, "; "), err)
}
