package utils

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

var (
	hhmmPattern = regexp.MustCompile(`^([0-1]?[0-9]|2[0-3]):[0-5][0-9]$`)

	validateOnce sync.Once
	validate     *validator.Validate
)

// Validator returns the shared validator with the custom rules registered:
//
//	hhmm  "HH:MM" 24h wall-clock time
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		_ = validate.RegisterValidation("hhmm", func(fl validator.FieldLevel) bool {
			return hhmmPattern.MatchString(fl.Field().String())
		})
	})
	return validate
}

// Validate performs validation on a struct.
func Validate(s interface{}) error {
	return Validator().Struct(s)
}

// FormatValidationError formats validation errors into a readable string.
func FormatValidationError(err error) string {
	if errs, ok := err.(validator.ValidationErrors); ok {
		var errorMessages []string
		for _, e := range errs {
			switch e.Tag() {
			case "required":
				errorMessages = append(errorMessages, fmt.Sprintf("%s is required", e.Field()))
			case "hhmm":
				errorMessages = append(errorMessages, fmt.Sprintf("%s must be a time in HH:MM format", e.Field()))
			case "datetime":
				errorMessages = append(errorMessages, fmt.Sprintf("%s must be a date in YYYY-MM-DD format", e.Field()))
			case "oneof":
				errorMessages = append(errorMessages, fmt.Sprintf("%s must be one of [%s]", e.Field(), e.Param()))
			case "min":
				errorMessages = append(errorMessages, fmt.Sprintf("%s must be at least %s", e.Field(), e.Param()))
			case "max":
				errorMessages = append(errorMessages, fmt.Sprintf("%s must be at most %s", e.Field(), e.Param()))
			default:
				errorMessages = append(errorMessages, fmt.Sprintf("%s failed on %s", e.Field(), e.Tag()))
			}
		}
		return strings.Join(errorMessages, ", ")
	}
	return err.Error()
}

// BindAndValidate binds the request body to a struct and validates it.
// If validation fails, it sends a BadRequest response and returns false.
func BindAndValidate(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		BadRequest(c, "Invalid request payload: "+err.Error())
		return false
	}
	if err := Validate(obj); err != nil {
		BadRequest(c, "Validation failed: "+FormatValidationError(err))
		return false
	}
	return true
}
