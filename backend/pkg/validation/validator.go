// Package validation wraps go-playground/validator for struct-tag
// validation of request DTOs and envelope fields. internal/schema builds
// its structural envelope/state checks (additionalProperties closure,
// cross-field coexistence rules) on top of this wrapper rather than the
// raw validator package.
package validation

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/rpgengine/arbiter/backend/pkg/errors"
)

// Validator wraps the go-playground validator
type Validator struct {
	validator *validator.Validate
}

// New creates a new validator instance
func New() *Validator {
	v := validator.New()

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	registerCustomValidations(v)

	return &Validator{validator: v}
}

func registerCustomValidations(v *validator.Validate) {
	_ = v.RegisterValidation("dicenotation", validateDiceNotation)
}

// Validate validates a struct
func (v *Validator) Validate(i interface{}) error {
	if err := v.validator.Struct(i); err != nil {
		return v.formatValidationError(err)
	}
	return nil
}

// ValidateRequest decodes an HTTP request body and validates the result
func (v *Validator) ValidateRequest(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if err == io.EOF {
			return errors.NewBadRequestError("Request body is empty")
		}
		return errors.NewBadRequestError("Invalid JSON format").WithInternal(err)
	}

	return v.Validate(dst)
}

func (v *Validator) formatValidationError(err error) error {
	validationErrors := &errors.ValidationErrors{}

	if ve, ok := err.(validator.ValidationErrors); ok {
		for _, fe := range ve {
			field := fe.Field()
			tag := fe.Tag()
			param := fe.Param()

			message := v.getErrorMessage(field, tag, param)
			validationErrors.Add(field, message)
		}
	}

	return validationErrors.ToAppError()
}

func (v *Validator) getErrorMessage(field, tag, param string) string {
	messages := map[string]string{
		"required":     fmt.Sprintf("%s is required", field),
		"min":          fmt.Sprintf("%s must be at least %s", field, param),
		"max":          fmt.Sprintf("%s must be at most %s", field, param),
		"oneof":        fmt.Sprintf("%s must be one of: %s", field, param),
		"numeric":      fmt.Sprintf("%s must be a number", field),
		"alphanum":     fmt.Sprintf("%s must contain only letters and numbers", field),
		"dicenotation": fmt.Sprintf("%s must be valid dice notation (e.g., 2d6+3)", field),
	}

	if msg, ok := messages[tag]; ok {
		return msg
	}

	return fmt.Sprintf("%s failed %s validation", field, tag)
}

// validateDiceNotation validates dice notation (e.g., 2d6+3)
var diceNotationRegex = regexp.MustCompile(`^\d+d\d+(?:[+-]\d+)?$`)

func validateDiceNotation(fl validator.FieldLevel) bool {
	return diceNotationRegex.MatchString(fl.Field().String())
}

// Global validator instance

var defaultValidator *Validator

// Init initializes the global validator
func Init() {
	defaultValidator = New()
}

// GetValidator returns the global validator instance, initializing it on
// first use.
func GetValidator() *Validator {
	if defaultValidator == nil {
		Init()
	}
	return defaultValidator
}

// ValidateStruct validates a struct using the global validator
func ValidateStruct(s interface{}) error {
	return GetValidator().Validate(s)
}

// ValidateRequestBody validates and decodes a request body using the
// global validator
func ValidateRequestBody(r *http.Request, dst interface{}) error {
	return GetValidator().ValidateRequest(r, dst)
}
