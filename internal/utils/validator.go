// internal/utils/validator.go
package utils

import (
	"regexp"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

var territoryPattern = regexp.MustCompile(`^(GLOBAL|[A-Z]{2}(-[A-Z0-9]{1,3})?)$`)

func init() {
	validate = validator.New()
	validate.RegisterValidation("territory", validateTerritory)
	validate.RegisterValidation("ppm10000", validateShareFraction)
}

func ValidateStruct(s interface{}) error {
	return validate.Struct(s)
}

// validateTerritory accepts "GLOBAL" or ISO-3166 style codes ("US", "US-CA").
func validateTerritory(fl validator.FieldLevel) bool {
	return territoryPattern.MatchString(fl.Field().String())
}

// validateShareFraction bounds a parts-per-10000 share to 0..10000.
func validateShareFraction(fl validator.FieldLevel) bool {
	v := fl.Field().Int()
	return v >= 0 && v <= 10000
}

type ValidationError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

func GetValidationErrors(err error) []ValidationError {
	if err == nil {
		return nil
	}

	var result []ValidationError
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		for _, fieldErr := range validationErrors {
			result = append(result, ValidationError{
				Field:   fieldErr.Field(),
				Tag:     fieldErr.Tag(),
				Message: fieldErr.Error(),
			})
		}
	} else {
		result = append(result, ValidationError{Message: err.Error()})
	}
	return result
}
