package handlers

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/gofiber/fiber/v2"

	"nbrender/internal/domain"
	"nbrender/internal/render"
)

var safeFilename = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)

// Renderer is the pipeline behind the render endpoints.
type Renderer interface {
	Render(ctx context.Context, notebookURL string) (domain.RenderResult, error)
	RenderPDF(ctx context.Context, notebookURL string) ([]byte, error)
}

// RenderHandler adapts a Renderer to fiber.
type RenderHandler struct {
	svc Renderer
}

func NewRenderHandler(svc Renderer) *RenderHandler {
	return &RenderHandler{svc: svc}
}

// HandleRender serves POST /render. Errors are returned unchanged; the app's
// ErrorHandler answers them with a 500 and the error text.
func (h *RenderHandler) HandleRender(c *fiber.Ctx) error {
	req, err := parseRenderRequest(c)
	if err != nil {
		return err
	}

	res, err := h.svc.Render(c.UserContext(), req.NotebookURL)
	if err != nil {
		return err
	}
	return c.JSON(res)
}

// HandleRenderPDF serves POST /render/pdf.
func (h *RenderHandler) HandleRenderPDF(c *fiber.Ctx) error {
	req, err := parseRenderRequest(c)
	if err != nil {
		return err
	}

	pdf, err := h.svc.RenderPDF(c.UserContext(), req.NotebookURL)
	if err != nil {
		return err
	}

	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, "inline; filename="+pdfFilename(req.NotebookURL))
	return c.Send(pdf)
}

func parseRenderRequest(c *fiber.Ctx) (domain.RenderRequest, error) {
	var req domain.RenderRequest
	if err := c.App().Config().JSONDecoder(c.Body(), &req); err != nil {
		return req, domain.NewServiceError(domain.StageInput,
			fmt.Errorf("request body must be a JSON object with a notebook_url field: %w", err))
	}
	return req, nil
}

// pdfFilename derives a download name from the notebook URL.
func pdfFilename(notebookURL string) string {
	parsed, err := render.ValidateURL(notebookURL)
	if err != nil {
		return "notebook.pdf"
	}
	base := strings.TrimSuffix(path.Base(parsed.Path), ".ipynb")
	if base == "" || base == "." || base == "/" || !safeFilename.MatchString(base) {
		return "notebook.pdf"
	}
	return base + ".pdf"
}
