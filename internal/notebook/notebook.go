// Package notebook reads Jupyter notebook documents (nbformat 3 and 4) into an
// nbformat 4 model.
package notebook

import (
	"sort"
	"strings"
)

// CurrentMajor is the format version every parsed notebook is upgraded to.
const CurrentMajor = 4

type CellType string

const (
	CellCode     CellType = "code"
	CellMarkdown CellType = "markdown"
	CellRaw      CellType = "raw"
)

type OutputType string

const (
	OutputStream        OutputType = "stream"
	OutputDisplayData   OutputType = "display_data"
	OutputExecuteResult OutputType = "execute_result"
	OutputError         OutputType = "error"
)

// MimeBundle maps a mime type to its payload. Text payloads are joined from
// their multiline form; JSON payloads are kept as JSON text.
type MimeBundle map[string]string

// Types returns the bundle's mime types in sorted order.
func (b MimeBundle) Types() []string {
	keys := make([]string, 0, len(b))
	for k := range b {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Notebook is a parsed notebook document.
type Notebook struct {
	Format      int
	FormatMinor int
	Metadata    Metadata
	Cells       []Cell
}

// Metadata holds the notebook-level fields the exporter uses, plus the raw map.
type Metadata struct {
	Title        string
	KernelName   string
	KernelLang   string
	LanguageName string
	Raw          map[string]any
}

// Language returns the notebook's programming language, defaulting to python.
func (m Metadata) Language() string {
	switch {
	case m.LanguageName != "":
		return strings.ToLower(m.LanguageName)
	case m.KernelLang != "":
		return strings.ToLower(m.KernelLang)
	default:
		return "python"
	}
}

type Cell struct {
	ID             string
	Type           CellType
	Source         string
	Metadata       map[string]any
	Attachments    map[string]MimeBundle
	ExecutionCount *int
	Outputs        []Output
}

// RawFormat returns the target mime type of a raw cell, if declared.
func (c Cell) RawFormat() string {
	for _, key := range []string{"raw_mimetype", "format"} {
		if v, ok := c.Metadata[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

type Output struct {
	Type           OutputType
	Name           string
	Text           string
	Data           MimeBundle
	Metadata       map[string]any
	ExecutionCount *int
	EName          string
	EValue         string
	Traceback      []string
}
