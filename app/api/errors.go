package api

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/gofiber/fiber/v2"

	"umkmrag/types"
)

// NewErrorHandler maps domain errors to HTTP responses. The message text
// comes from types.Describe, which the terminal UI uses as well.
func NewErrorHandler(logger *log.Logger) fiber.ErrorHandler {
	if logger == nil {
		logger = log.Default()
	}
	return func(c *fiber.Ctx, err error) error {
		var apiErr Error
		if errors.As(err, &apiErr) {
			return c.Status(apiErr.Code).JSON(apiErr)
		}
		var valErr types.ValidationError
		if errors.As(err, &valErr) {
			return c.Status(valErr.Status).JSON(valErr)
		}
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return c.Status(fiberErr.Code).JSON(NewError(fiberErr.Code, fiberErr.Message))
		}

		p := types.Describe(err)
		resp := Error{
			Code:    statusFor(p.Kind),
			Kind:    p.Kind,
			Message: p.Message,
			Details: p.Details,
		}
		logger.Warn("request failed", "method", c.Method(), "path", c.Path(),
			"code", resp.Code, "kind", p.Kind, "err", err)
		return c.Status(resp.Code).JSON(resp)
	}
}

func statusFor(kind types.ProblemKind) int {
	switch kind {
	case types.KindInvalidFormat, types.KindUnreadableDocument, types.KindIndexNotReady:
		return fiber.StatusBadRequest
	case types.KindNoModelAvailable:
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

type Error struct {
	Code    int               `json:"code"`
	Kind    types.ProblemKind `json:"kind,omitempty"`
	Message string            `json:"error"`
	Details []string          `json:"details,omitempty"`
}

// Error implements the Error interface
func (e Error) Error() string {
	return e.Message
}

func NewError(code int, err string) Error {
	return Error{
		Code:    code,
		Message: err,
	}
}

func ErrBadRequest() Error {
	return Error{
		Code:    fiber.StatusBadRequest,
		Message: "invalid JSON request",
	}
}

func ErrMissingFile(field string) Error {
	return Error{
		Code:    fiber.StatusBadRequest,
		Message: fmt.Sprintf("multipart field %q with a PDF file is required", field),
	}
}
