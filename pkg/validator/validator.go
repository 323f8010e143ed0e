package validator

import (
	"fmt"
	"strings"

	apperrors "SafeYatra/pkg/errors"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	RegisterCustomValidations(validate)
}

// RegisterCustomValidations installs the coordinate tags on v. gin's binding
// engine gets the same tags at startup.
func RegisterCustomValidations(v *validator.Validate) {
	// NaN and ±Inf fall outside both ranges and are rejected.
	_ = v.RegisterValidation("lat", func(fl validator.FieldLevel) bool {
		lat := fl.Field().Float()
		return lat >= -90 && lat <= 90
	})
	_ = v.RegisterValidation("lng", func(fl validator.FieldLevel) bool {
		lng := fl.Field().Float()
		return lng >= -180 && lng <= 180
	})
}

// ValidateStruct checks s and converts failures into a validation error
// naming every offending field.
func ValidateStruct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return apperrors.Validation("%v", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(fe))
	}
	return apperrors.Validation("%s", strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "lat":
		return fmt.Sprintf("%s must be a latitude between -90 and 90", field)
	case "lng":
		return fmt.Sprintf("%s must be a longitude between -180 and 180", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	}
	return fmt.Sprintf("%s failed %s", field, fe.Tag())
}
