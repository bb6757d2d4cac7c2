package api

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"

	"umkmrag/types"
)

type Asker interface {
	Ask(ctx context.Context, question string) (*types.Answer, error)
}

type ChatHandler struct {
	svc Asker
}

func NewChatHandler(svc Asker) *ChatHandler {
	return &ChatHandler{svc: svc}
}

// HandleChat serves both GET /chat?question= and POST /chat {"question"}.
func (h *ChatHandler) HandleChat(c *fiber.Ctx) error {
	var params types.ChatRequest
	if c.Method() == fiber.MethodGet {
		if c.QueryParser(&params) != nil {
			return ErrBadRequest()
		}
	} else if c.BodyParser(&params) != nil {
		return ErrBadRequest()
	}
	params.Question = strings.TrimSpace(params.Question)

	if errors := types.Validate(&params); len(errors) > 0 {
		return types.NewValidationError(errors)
	}

	answer, err := h.svc.Ask(c.UserContext(), params.Question)
	if err != nil {
		return err
	}
	return c.JSON(answer)
}
