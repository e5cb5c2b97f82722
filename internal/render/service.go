// Package render runs the fetch, parse and export pipeline for one notebook.
package render

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"nbrender/internal/domain"
	"nbrender/internal/notebook"
	u "nbrender/internal/utils"
)

// ErrPDFDisabled is returned by RenderPDF when no printer is configured.
var ErrPDFDisabled = errors.New("pdf export is not enabled")

type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

type Exporter interface {
	Export(nb *notebook.Notebook) (string, error)
}

type Printer interface {
	PrintPDF(ctx context.Context, html string) ([]byte, error)
}

// Observer receives per-stage timings and outcomes.
type Observer interface {
	ObserveStage(stage domain.Stage, d time.Duration, err error)
	ObserveHTMLSize(n int)
}

type nopObserver struct{}

func (nopObserver) ObserveStage(domain.Stage, time.Duration, error) {}
func (nopObserver) ObserveHTMLSize(int)                             {}

// Option customizes a Service.
type Option func(*Service)

// WithPrinter enables RenderPDF.
func WithPrinter(p Printer) Option {
	return func(s *Service) { s.printer = p }
}

// WithObserver reports stage metrics to o.
func WithObserver(o Observer) Option {
	return func(s *Service) {
		if o != nil {
			s.observer = o
		}
	}
}

// WithParser replaces notebook.Parse.
func WithParser(parse func([]byte) (*notebook.Notebook, error)) Option {
	return func(s *Service) { s.parse = parse }
}

// Service holds no per-request state and can serve concurrent requests.
type Service struct {
	fetcher  Fetcher
	parse    func([]byte) (*notebook.Notebook, error)
	exporter Exporter
	printer  Printer
	observer Observer
}

func NewService(fetcher Fetcher, exporter Exporter, opts ...Option) *Service {
	s := &Service{
		fetcher:  fetcher,
		parse:    notebook.Parse,
		exporter: exporter,
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Render fetches the notebook at notebookURL and returns it as HTML. Every
// failure is a *domain.ServiceError naming the stage that failed.
func (s *Service) Render(ctx context.Context, notebookURL string) (domain.RenderResult, error) {
	html, err := s.renderHTML(ctx, notebookURL)
	if err != nil {
		return domain.RenderResult{}, err
	}
	return domain.RenderResult{HTML: html}, nil
}

// RenderPDF runs the same pipeline as Render and prints the HTML to PDF.
func (s *Service) RenderPDF(ctx context.Context, notebookURL string) ([]byte, error) {
	if s.printer == nil {
		return nil, domain.NewServiceError(domain.StageRender, ErrPDFDisabled)
	}
	html, err := s.renderHTML(ctx, notebookURL)
	if err != nil {
		return nil, err
	}

	var pdf []byte
	err = s.stage(domain.StageRender, func() error {
		var perr error
		pdf, perr = s.printer.PrintPDF(ctx, html)
		if perr != nil {
			return fmt.Errorf("failed to print pdf: %w", perr)
		}
		return nil
	})
	if err != nil {
		u.Warn("Notebook render failed", "url", notebookURL, "stage", domain.StageRender, "error", err)
		return nil, err
	}
	u.Info("Notebook printed", "url", notebookURL, "pdf_bytes", len(pdf))
	return pdf, nil
}

func (s *Service) renderHTML(ctx context.Context, notebookURL string) (string, error) {
	start := time.Now()

	var target *url.URL
	err := s.stage(domain.StageInput, func() error {
		var verr error
		target, verr = ValidateURL(notebookURL)
		return verr
	})
	if err != nil {
		u.Warn("Notebook render rejected", "url", notebookURL, "error", err)
		return "", err
	}

	var raw []byte
	if err := s.stage(domain.StageFetch, func() error {
		var ferr error
		raw, ferr = s.fetcher.Fetch(ctx, target.String())
		return ferr
	}); err != nil {
		u.Warn("Notebook render failed", "url", notebookURL, "stage", domain.StageFetch, "error", err)
		return "", err
	}

	var nb *notebook.Notebook
	if err := s.stage(domain.StageParse, func() error {
		var perr error
		nb, perr = s.parse(raw)
		return perr
	}); err != nil {
		u.Warn("Notebook render failed", "url", notebookURL, "stage", domain.StageParse, "bytes", len(raw), "error", err)
		return "", err
	}

	var html string
	if err := s.stage(domain.StageRender, func() error {
		var eerr error
		html, eerr = s.exporter.Export(nb)
		return eerr
	}); err != nil {
		u.Warn("Notebook render failed", "url", notebookURL, "stage", domain.StageRender, "error", err)
		return "", err
	}

	s.observer.ObserveHTMLSize(len(html))
	u.Info("Notebook rendered",
		"url", notebookURL,
		"cells", len(nb.Cells),
		"html_bytes", len(html),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return html, nil
}

// stage runs fn, reports it, and wraps any error as a failure of stage.
func (s *Service) stage(stage domain.Stage, fn func() error) error {
	start := time.Now()
	err := fn()
	s.observer.ObserveStage(stage, time.Since(start), err)
	if err != nil {
		return domain.NewServiceError(stage, err)
	}
	return nil
}

// ValidateURL accepts absolute http and https URLs with a host.
func ValidateURL(raw string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("notebook_url is required")
	}
	parsed, err := url.ParseRequestURI(trimmed)
	if err != nil {
		return nil, fmt.Errorf("notebook_url %q is not a valid URL", raw)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("notebook_url %q must use http or https", raw)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("notebook_url %q has no host", raw)
	}
	return parsed, nil
}
