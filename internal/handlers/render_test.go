package handlers

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nbrender/internal/domain"
)

type stubRenderer struct {
	gotURL string
	html   string
	pdf    []byte
	err    error
}

func (s *stubRenderer) Render(_ context.Context, notebookURL string) (domain.RenderResult, error) {
	s.gotURL = notebookURL
	if s.err != nil {
		return domain.RenderResult{}, s.err
	}
	return domain.RenderResult{HTML: s.html}, nil
}

func (s *stubRenderer) RenderPDF(_ context.Context, notebookURL string) ([]byte, error) {
	s.gotURL = notebookURL
	if s.err != nil {
		return nil, s.err
	}
	return s.pdf, nil
}

func newTestApp(svc Renderer) *fiber.App {
	h := NewRenderHandler(svc)
	app := fiber.New()
	app.Post("/render", h.HandleRender)
	app.Post("/render/pdf", h.HandleRenderPDF)
	return app
}

func post(t *testing.T, app *fiber.App, path, body string) (int, string, map[string][]string) {
	t.Helper()
	req := httptest.NewRequest("POST", path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(raw), resp.Header
}

func TestHandleRender_Success(t *testing.T) {
	svc := &stubRenderer{html: "<html>ok</html>"}
	code, body, _ := post(t, newTestApp(svc), "/render", `{"notebook_url":"https://example.com/nb.ipynb"}`)

	assert.Equal(t, fiber.StatusOK, code)
	assert.JSONEq(t, `{"html":"<html>ok</html>"}`, body)
	assert.Equal(t, "https://example.com/nb.ipynb", svc.gotURL)
}

func TestHandleRender_FailuresAre500(t *testing.T) {
	tests := []struct {
		name string
		body string
		err  error
		want string
	}{
		{"malformed body", `{"notebook_url":`, nil, "invalid input: request body must be a JSON object"},
		{"body is array", `[]`, nil, "invalid input: request body must be a JSON object"},
		{"fetch", `{"notebook_url":"https://example.com/x"}`, domain.NewServiceError(domain.StageFetch, errors.New("404 Not Found for url: x")), "fetch failed: 404 Not Found"},
		{"parse", `{"notebook_url":"https://example.com/x"}`, domain.NewServiceError(domain.StageParse, errors.New("bad")), "parse failed: bad"},
		{"render", `{"notebook_url":"https://example.com/x"}`, domain.NewServiceError(domain.StageRender, errors.New("bad")), "render failed: bad"},
		{"unclassified", `{"notebook_url":"https://example.com/x"}`, errors.New("surprise"), "surprise"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			app := newTestApp(&stubRenderer{err: tc.err})
			code, body, _ := post(t, app, "/render", tc.body)
			assert.Equal(t, fiber.StatusInternalServerError, code)
			assert.Contains(t, body, tc.want)
		})
	}
}

func TestHandleRenderPDF(t *testing.T) {
	svc := &stubRenderer{pdf: []byte("%PDF-1.4")}
	code, body, hdr := post(t, newTestApp(svc), "/render/pdf", `{"notebook_url":"https://example.com/course/lesson-1.ipynb"}`)

	assert.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, "%PDF-1.4", body)
	assert.Equal(t, "application/pdf", hdr["Content-Type"][0])
	assert.Equal(t, "inline; filename=lesson-1.pdf", hdr["Content-Disposition"][0])

	failing := &stubRenderer{err: domain.NewServiceError(domain.StageRender, errors.New("chrome gone"))}
	code, body, _ = post(t, newTestApp(failing), "/render/pdf", `{"notebook_url":"https://example.com/a.ipynb"}`)
	assert.Equal(t, fiber.StatusInternalServerError, code)
	assert.Contains(t, body, "render failed: chrome gone")

	code, _, _ = post(t, newTestApp(svc), "/render/pdf", `nope`)
	assert.Equal(t, fiber.StatusInternalServerError, code)
}

func TestPDFFilename(t *testing.T) {
	assert.Equal(t, "report.pdf", pdfFilename("https://example.com/a/report.ipynb"))
	assert.Equal(t, "data.v2.pdf", pdfFilename("https://example.com/data.v2.ipynb?raw=true"))
	assert.Equal(t, "notebook.pdf", pdfFilename("https://example.com/"))
	assert.Equal(t, "notebook.pdf", pdfFilename("https://example.com/bad%20name.ipynb"))
	assert.Equal(t, "notebook.pdf", pdfFilename("not a url"))
}
