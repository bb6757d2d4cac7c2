package api

import (
	"github.com/gofiber/fiber/v2"

	"umkmrag/types"
)

type ModelSwitcher interface {
	Models() types.ModelInfo
	SetModel(model string)
}

type ModelHandler struct {
	models ModelSwitcher
}

func NewModelHandler(models ModelSwitcher) *ModelHandler {
	return &ModelHandler{models: models}
}

func (h *ModelHandler) HandleGetModel(c *fiber.Ctx) error {
	return c.JSON(h.models.Models())
}

// HandleSetModel overrides the current model, including one remembered
// from a fallback.
func (h *ModelHandler) HandleSetModel(c *fiber.Ctx) error {
	var params types.ModelParams
	if c.BodyParser(&params) != nil {
		return ErrBadRequest()
	}

	if errors := types.Validate(&params); len(errors) > 0 {
		return types.NewValidationError(errors)
	}

	h.models.SetModel(params.Model)
	return c.JSON(h.models.Models())
}
