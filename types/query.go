package types

import (
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type Validater interface {
	Validate() map[string]string
}

type ChatRequest struct {
	Question string `json:"question" query:"question" validate:"required,max=2000"`
}

type ModelParams struct {
	Model string `json:"model" validate:"required,max=200"`
}

type ModelInfo struct {
	Current   string   `json:"current"`
	Fallbacks []string `json:"fallbacks"`
}

func Validate(v Validater) map[string]string {
	return v.Validate()
}

func (params *ChatRequest) Validate() map[string]string {
	return validateStruct(params)
}

func (params *ModelParams) Validate() map[string]string {
	return validateStruct(params)
}

// ValidateStruct runs the shared validator against any tagged struct.
func ValidateStruct(v any) error {
	return validate.Struct(v)
}

func validateStruct(v any) map[string]string {
	if err := validate.Struct(v); err != nil {
		errs, ok := err.(validator.ValidationErrors)
		if !ok {
			return map[string]string{"request": err.Error()}
		}
		errors := make(map[string]string)
		for _, e := range errs {
			errors[e.Field()] = fmt.Sprintf("failed on '%s' tag", e.Tag())
		}
		return errors
	}
	return nil
}

func NewValidationError(errors map[string]string) ValidationError {
	return ValidationError{
		Status: http.StatusUnprocessableEntity,
		Errors: errors,
	}
}

type ValidationError struct {
	Status int               `json:"status"`
	Errors map[string]string `json:"errors"`
}

func (e ValidationError) Error() string {
	return "validation failed"
}
