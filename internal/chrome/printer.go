// Package chrome prints HTML documents to PDF with headless Chrome.
package chrome

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	u "nbrender/internal/utils"
)

// Printer starts a fresh Chrome instance per document.
type Printer struct {
	cfg u.PDFConfig
}

func NewPrinter(cfg u.PDFConfig) *Printer {
	return &Printer{cfg: cfg}
}

// PrintPDF loads html into a blank tab and prints it.
func (p *Printer) PrintPDF(ctx context.Context, html string) ([]byte, error) {
	tmpDir, err := os.MkdirTemp("", "nbrender-chrome-*")
	if err != nil {
		return nil, fmt.Errorf("cannot create temp profile dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	allocatorOptions := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserDataDir(tmpDir),
		// Software rendering keeps Chrome working in minimal containers.
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-gpu-compositing", true),
		chromedp.Flag("disable-features", "Vulkan,UseSkiaRenderer"),
		chromedp.Flag("use-gl", "swiftshader"),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if p.cfg.ChromePath != "" {
		allocatorOptions = append(allocatorOptions, chromedp.ExecPath(p.cfg.ChromePath))
	}
	if p.cfg.ChromeNoSandbox {
		allocatorOptions = append(allocatorOptions, chromedp.Flag("no-sandbox", true))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocatorOptions...)
	defer cancelAlloc()
	chromeCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	timeout := time.Duration(p.cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	chromeCtx, cancelTimeout := context.WithTimeout(chromeCtx, timeout)
	defer cancelTimeout()

	pdf, err := printInTab(chromeCtx, html, p.cfg.Paper, p.cfg.Margin)
	if err != nil {
		u.Error("PDF printing failed", "timeout_secs", p.cfg.TimeoutSecs, "error", err)
		return nil, err
	}
	return pdf, nil
}

// printInTab renders html inside the tab bound to ctx and returns the PDF bytes.
func printInTab(ctx context.Context, html string, paper u.PaperSize, margin float64) ([]byte, error) {
	var pdf []byte
	err := chromedp.Run(ctx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			frame, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(frame.Frame.ID, html).Do(ctx)
		}),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(200*time.Millisecond),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			pdf, _, err = page.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(paper.Width).
				WithPaperHeight(paper.Height).
				WithMarginTop(margin).
				WithMarginBottom(margin).
				WithMarginLeft(margin).
				WithMarginRight(margin).
				Do(ctx)
			return err
		}),
	)
	if err != nil {
		return nil, err
	}
	return pdf, nil
}
