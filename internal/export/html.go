// Package export renders parsed notebooks as standalone HTML documents.
package export

import (
	"bytes"
	_ "embed"
	"encoding/base64"
	"fmt"
	"html/template"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"

	"nbrender/internal/notebook"
)

var (
	//go:embed notebook.html.tmpl
	pageTemplate string
	//go:embed style.css
	baseCSS string

	ansiEscape    = regexp.MustCompile(`\x1b\[[0-9;?]*[ -/]*[@-~]`)
	attachmentRef = regexp.MustCompile(`attachment:[^)\s"'<>]+`)
)

// outputPriority is the order in which mime types of a bundle are tried.
var outputPriority = []string{
	"text/html",
	"text/latex",
	"image/svg+xml",
	"image/png",
	"image/jpeg",
	"text/markdown",
	"application/json",
	"text/plain",
}

// Config controls the rendered markup.
type Config struct {
	ExcludeInputPrompt  bool
	ExcludeOutputPrompt bool
	// Style is a chroma style name; unknown names use chroma's fallback.
	Style string
	// MathJaxURL, when set, is loaded by the page to typeset LaTeX.
	MathJaxURL string
}

// HTMLExporter turns notebooks into HTML. It is immutable after construction
// and safe for concurrent use.
type HTMLExporter struct {
	cfg       Config
	md        goldmark.Markdown
	formatter *chromahtml.Formatter
	style     *chroma.Style
	css       template.CSS
	tmpl      *template.Template
}

// NewHTMLExporter builds an exporter for cfg.
func NewHTMLExporter(cfg Config) (*HTMLExporter, error) {
	style := styles.Get(cfg.Style)
	if style == nil {
		style = styles.Fallback
	}
	formatter := chromahtml.New(chromahtml.WithClasses(true), chromahtml.TabWidth(4))

	var css bytes.Buffer
	css.WriteString(baseCSS)
	if err := formatter.WriteCSS(&css, style); err != nil {
		return nil, fmt.Errorf("failed to build highlight stylesheet: %w", err)
	}

	tmpl, err := template.New("notebook").Parse(pageTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse page template: %w", err)
	}

	return &HTMLExporter{
		cfg: cfg,
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(gmhtml.WithUnsafe()),
		),
		formatter: formatter,
		style:     style,
		css:       template.CSS(css.String()),
		tmpl:      tmpl,
	}, nil
}

type page struct {
	Title      string
	CSS        template.CSS
	MathJaxURL string
	Cells      []cellView
}

type cellView struct {
	ID         string
	Class      string
	HasInput   bool
	ShowPrompt bool
	Prompt     template.HTML
	InputClass string
	Input      template.HTML
	Outputs    []outputView
}

type outputView struct {
	ExecuteResult bool
	ShowPrompt    bool
	Prompt        template.HTML
	Class         string
	MimeType      string
	Body          template.HTML
}

// Export renders nb. The result depends only on nb and the exporter config.
func (e *HTMLExporter) Export(nb *notebook.Notebook) (string, error) {
	if nb == nil {
		return "", fmt.Errorf("no notebook to export")
	}

	p := page{
		Title:      nb.Metadata.Title,
		CSS:        e.css,
		MathJaxURL: e.cfg.MathJaxURL,
	}
	lang := nb.Metadata.Language()

	for i, cell := range nb.Cells {
		view, err := e.cell(cell, lang)
		if err != nil {
			return "", fmt.Errorf("cell %d: %w", i, err)
		}
		if view == nil {
			continue
		}
		if p.Title == "" && cell.Type == notebook.CellMarkdown {
			p.Title = firstHeading(string(view.Input))
		}
		p.Cells = append(p.Cells, *view)
	}
	if p.Title == "" {
		p.Title = "Notebook"
	}

	var buf bytes.Buffer
	if err := e.tmpl.Execute(&buf, p); err != nil {
		return "", fmt.Errorf("failed to execute page template: %w", err)
	}
	return buf.String(), nil
}

func (e *HTMLExporter) cell(cell notebook.Cell, lang string) (*cellView, error) {
	switch cell.Type {
	case notebook.CellCode:
		return e.codeCell(cell, lang)
	case notebook.CellMarkdown:
		src, err := withAttachments(cell.Source, cell.Attachments)
		if err != nil {
			return nil, err
		}
		body, err := e.markdown(src)
		if err != nil {
			return nil, err
		}
		return &cellView{
			ID:         cell.ID,
			Class:      "jp-MarkdownCell",
			HasInput:   true,
			InputClass: "jp-RenderedHTMLCommon jp-RenderedMarkdown jp-MarkdownOutput",
			Input:      body,
		}, nil
	case notebook.CellRaw:
		var body template.HTML
		switch cell.RawFormat() {
		case "text/html":
			body = template.HTML(cell.Source)
		case "text/markdown":
			md, err := e.markdown(cell.Source)
			if err != nil {
				return nil, err
			}
			body = md
		default:
			// Raw cells aimed at other formats (LaTeX, reST) are not part of HTML output.
			return nil, nil
		}
		return &cellView{
			ID:         cell.ID,
			Class:      "jp-RawCell",
			HasInput:   true,
			InputClass: "jp-RenderedHTMLCommon",
			Input:      body,
		}, nil
	}
	return nil, fmt.Errorf("unsupported cell type %q", cell.Type)
}

func (e *HTMLExporter) codeCell(cell notebook.Cell, lang string) (*cellView, error) {
	input, err := e.highlight(cell.Source, lang)
	if err != nil {
		return nil, err
	}
	view := &cellView{
		ID:         cell.ID,
		Class:      "jp-CodeCell",
		HasInput:   true,
		ShowPrompt: !e.cfg.ExcludeInputPrompt,
		Prompt:     template.HTML("In&nbsp;[" + countText(cell.ExecutionCount) + "]:"),
		InputClass: "jp-CodeMirrorEditor jp-Editor jp-InputArea-editor",
		Input:      input,
	}
	for j, out := range cell.Outputs {
		ov, err := e.output(out)
		if err != nil {
			return nil, fmt.Errorf("output %d: %w", j, err)
		}
		if ov != nil {
			view.Outputs = append(view.Outputs, *ov)
		}
	}
	return view, nil
}

func (e *HTMLExporter) output(out notebook.Output) (*outputView, error) {
	ov := &outputView{ShowPrompt: !e.cfg.ExcludeOutputPrompt}

	switch out.Type {
	case notebook.OutputStream:
		ov.Class = "jp-RenderedText"
		ov.MimeType = "application/vnd.jupyter.stdout"
		if out.Name == "stderr" {
			ov.MimeType = "application/vnd.jupyter.stderr"
		}
		ov.Body = preformatted(stripANSI(out.Text))
		return ov, nil

	case notebook.OutputError:
		ov.Class = "jp-RenderedText"
		ov.MimeType = "application/vnd.jupyter.stderr"
		text := strings.Join(out.Traceback, "\n")
		if text == "" {
			text = out.EName + ": " + out.EValue
		}
		ov.Body = preformatted(stripANSI(text))
		return ov, nil

	case notebook.OutputExecuteResult, notebook.OutputDisplayData:
		if out.Type == notebook.OutputExecuteResult {
			ov.ExecuteResult = true
			ov.Prompt = template.HTML("Out[" + countText(out.ExecutionCount) + "]:")
		}
		for _, mime := range outputPriority {
			payload, ok := out.Data[mime]
			if !ok {
				continue
			}
			body, class, err := e.mimeBody(mime, payload, out.Metadata)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", mime, err)
			}
			ov.MimeType = mime
			ov.Class = class
			ov.Body = body
			return ov, nil
		}
		// Nothing displayable, e.g. only widget state.
		return nil, nil
	}
	return nil, fmt.Errorf("unsupported output type %q", out.Type)
}

func (e *HTMLExporter) mimeBody(mime, payload string, meta map[string]any) (template.HTML, string, error) {
	switch mime {
	case "text/html":
		return template.HTML(payload), "jp-RenderedHTMLCommon jp-RenderedHTML", nil
	case "image/svg+xml":
		return template.HTML(payload), "jp-RenderedSVG", nil
	case "image/png", "image/jpeg":
		data := strings.Join(strings.Fields(payload), "")
		if _, err := base64.StdEncoding.DecodeString(data); err != nil {
			return "", "", fmt.Errorf("invalid base64 image data: %w", err)
		}
		return template.HTML(`<img src="data:` + mime + `;base64,` + data + `"` + imageSize(mime, meta) + ` />`), "jp-RenderedImage", nil
	case "text/markdown":
		body, err := e.markdown(payload)
		return body, "jp-RenderedHTMLCommon jp-RenderedMarkdown", err
	case "text/latex":
		return template.HTML(template.HTMLEscapeString(payload)), "jp-RenderedLatex", nil
	case "application/json":
		return preformatted(payload), "jp-RenderedJSON", nil
	default:
		return preformatted(stripANSI(payload)), "jp-RenderedText", nil
	}
}

func (e *HTMLExporter) highlight(code, lang string) (template.HTML, error) {
	lexer := lexers.Get(lang)
	if lexer == nil {
		lexer = lexers.Fallback
	}
	it, err := chroma.Coalesce(lexer).Tokenise(nil, code)
	if err != nil {
		return "", fmt.Errorf("failed to tokenise source: %w", err)
	}
	var buf bytes.Buffer
	buf.WriteString(`<div class="highlight">`)
	if err := e.formatter.Format(&buf, e.style, it); err != nil {
		return "", fmt.Errorf("failed to highlight source: %w", err)
	}
	buf.WriteString(`</div>`)
	return template.HTML(buf.String()), nil
}

func (e *HTMLExporter) markdown(src string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := e.md.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("failed to convert markdown: %w", err)
	}
	return template.HTML(buf.String()), nil
}

// withAttachments rewrites attachment:NAME references to inline data URIs.
// Names must match exactly; unknown names are left as written.
func withAttachments(src string, attachments map[string]notebook.MimeBundle) (string, error) {
	if len(attachments) == 0 {
		return src, nil
	}
	var failed error
	out := attachmentRef.ReplaceAllStringFunc(src, func(ref string) string {
		name := strings.TrimPrefix(ref, "attachment:")
		bundle, ok := attachments[name]
		if !ok || failed != nil {
			return ref
		}
		for _, mime := range bundle.Types() {
			if !strings.HasPrefix(mime, "image/") {
				continue
			}
			if mime == "image/svg+xml" {
				return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString([]byte(bundle[mime]))
			}
			data := strings.Join(strings.Fields(bundle[mime]), "")
			if _, err := base64.StdEncoding.DecodeString(data); err != nil {
				failed = fmt.Errorf("attachment %q: %s: invalid base64 image data: %w", name, mime, err)
				return ref
			}
			return "data:" + mime + ";base64," + data
		}
		return ref
	})
	if failed != nil {
		return "", failed
	}
	return out, nil
}

// firstHeading returns the text of the first h1 in an HTML fragment.
func firstHeading(fragment string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Find("h1").First().Text())
}

func imageSize(mime string, meta map[string]any) string {
	m, ok := meta[mime].(map[string]any)
	if !ok {
		return ""
	}
	var attrs string
	for _, key := range []string{"width", "height"} {
		if v, ok := m[key].(float64); ok && v > 0 {
			attrs += fmt.Sprintf(` %s="%d"`, key, int(v))
		}
	}
	return attrs
}

func countText(n *int) string {
	if n == nil {
		return "&nbsp;"
	}
	return strconv.Itoa(*n)
}

func preformatted(text string) template.HTML {
	return template.HTML("<pre>" + template.HTMLEscapeString(text) + "</pre>")
}

func stripANSI(s string) string {
	return ansiEscape.ReplaceAllString(s, "")
}
