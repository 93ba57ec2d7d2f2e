package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/campus-desk/internal/document"
)

// DocumentsHandler serves rendered artifacts.
type DocumentsHandler struct {
	renderer *document.Renderer
}

// NewDocumentsHandler constructs handler.
func NewDocumentsHandler(renderer *document.Renderer) *DocumentsHandler {
	return &DocumentsHandler{renderer: renderer}
}

// Get handles GET /public/certificates/:name.
func (h *DocumentsHandler) Get(c *fiber.Ctx) error {
	// read fully here; a streamed body would be drained after the request context is cancelled
	doc, err := h.renderer.Fetch(c.UserContext(), c.Params("name"))
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, doc.ContentType)
	c.Set(fiber.HeaderContentDisposition, `inline; filename="`+doc.Name+`"`)
	return c.Send(doc.Data)
}
