package render

import (
	"nbrender/internal/chrome"
	"nbrender/internal/export"
	"nbrender/internal/fetch"
	u "nbrender/internal/utils"
)

// NewFromConfig wires the production fetcher, exporter and, when enabled, the
// PDF printer. Rendered markup never carries execution-count prompts.
func NewFromConfig(cfg u.Config, opts ...Option) (*Service, error) {
	exporter, err := export.NewHTMLExporter(export.Config{
		ExcludeInputPrompt:  true,
		ExcludeOutputPrompt: true,
		Style:               cfg.Render.Style,
		MathJaxURL:          cfg.Render.MathJaxURL,
	})
	if err != nil {
		return nil, err
	}

	fetcher := fetch.NewFetcher(fetch.Options{
		Timeout:   cfg.Fetch.Timeout,
		MaxBytes:  cfg.Fetch.MaxNotebookBytes,
		UserAgent: cfg.Fetch.UserAgent,
	})

	if cfg.PDF.Enabled {
		opts = append([]Option{WithPrinter(chrome.NewPrinter(cfg.PDF))}, opts...)
	}
	return NewService(fetcher, exporter, opts...), nil
}
