package chrome

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	u "nbrender/internal/utils"
)

func testPDFConfig() u.PDFConfig {
	return u.PDFConfig{
		Enabled:     true,
		TimeoutSecs: 1,
		Paper:       u.PaperSize{Width: 8.27, Height: 11.69},
		Margin:      0.4,
	}
}

func TestPrintPDF_ErrorWhenBinaryMissing(t *testing.T) {
	cfg := testPDFConfig()
	cfg.ChromePath = "/definitely/missing/chrome"
	cfg.ChromeNoSandbox = true

	pdf, err := NewPrinter(cfg).PrintPDF(context.Background(), "<html><body>hello</body></html>")
	assert.Error(t, err)
	assert.Nil(t, pdf)
}

func TestPrintInTab_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := printInTab(ctx, "<html><body>hello</body></html>", testPDFConfig().Paper, 0.4)
	assert.Error(t, err)
}
