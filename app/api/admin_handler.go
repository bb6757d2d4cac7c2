package api

import (
	"context"
	"io"

	"github.com/gofiber/fiber/v2"

	"umkmrag/types"
)

type Admin interface {
	Ingest(ctx context.Context, name string, r io.Reader) (int, error)
	Status(ctx context.Context) (types.IndexStatus, error)
}

type AdminHandler struct {
	svc Admin
}

func NewAdminHandler(svc Admin) *AdminHandler {
	return &AdminHandler{svc: svc}
}

func (h *AdminHandler) HandleStatus(c *fiber.Ctx) error {
	st, err := h.svc.Status(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(st)
}

// HandleUpload indexes one PDF sent as multipart field "file".
func (h *AdminHandler) HandleUpload(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return ErrMissingFile("file")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return err
	}
	defer file.Close()

	added, err := h.svc.Ingest(c.UserContext(), fileHeader.Filename, file)
	if err != nil {
		return err
	}
	return c.JSON(types.UploadResult{Status: "ok", AddedChunks: added})
}
