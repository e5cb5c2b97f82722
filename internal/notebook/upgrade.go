package notebook

import (
	"encoding/json"
	"fmt"
	"strings"
)

// v3 stored mime payloads under short keys next to the output fields.
var v3MimeKeys = map[string]string{
	"text":       "text/plain",
	"html":       "text/html",
	"svg":        "image/svg+xml",
	"png":        "image/png",
	"jpeg":       "image/jpeg",
	"latex":      "text/latex",
	"json":       "application/json",
	"javascript": "application/javascript",
	"markdown":   "text/markdown",
	"pdf":        "application/pdf",
}

type rawV3Cell struct {
	CellType     string           `json:"cell_type"`
	Source       *multiline       `json:"source"`
	Input        *multiline       `json:"input"`
	Level        int              `json:"level"`
	Language     string           `json:"language"`
	PromptNumber *int             `json:"prompt_number"`
	Metadata     map[string]any   `json:"metadata"`
	Outputs      []map[string]any `json:"outputs"`
}

// upgradeV3 fills nb from a version 3 document, flattening worksheets.
func upgradeV3(nb *Notebook, top map[string]json.RawMessage) error {
	var worksheets []struct {
		Cells []json.RawMessage `json:"cells"`
	}
	if ws, ok := top["worksheets"]; ok {
		if err := json.Unmarshal(ws, &worksheets); err != nil {
			return fmt.Errorf("%w: worksheets: %v", ErrInvalidNotebook, err)
		}
	} else {
		return fmt.Errorf("%w: missing worksheets", ErrInvalidNotebook)
	}

	// Minor version after upgrade matches what nbformat writes for v4.0.
	nb.FormatMinor = 0

	idx := 0
	for _, ws := range worksheets {
		for _, raw := range ws.Cells {
			var rc rawV3Cell
			if err := json.Unmarshal(raw, &rc); err != nil {
				return fmt.Errorf("%w: cell %d: %v", ErrInvalidNotebook, idx, err)
			}
			cell, err := upgradeCell(rc)
			if err != nil {
				return fmt.Errorf("%w: cell %d: %v", ErrInvalidNotebook, idx, err)
			}
			if cell.Type == CellCode && nb.Metadata.LanguageName == "" && nb.Metadata.KernelLang == "" && rc.Language != "" {
				nb.Metadata.LanguageName = rc.Language
			}
			nb.Cells = append(nb.Cells, cell)
			idx++
		}
	}
	return nil
}

func upgradeCell(rc rawV3Cell) (Cell, error) {
	cell := Cell{Metadata: rc.Metadata}
	switch rc.CellType {
	case "code":
		if rc.Input == nil {
			return Cell{}, fmt.Errorf("missing input")
		}
		cell.Type = CellCode
		cell.Source = string(*rc.Input)
		cell.ExecutionCount = rc.PromptNumber
		for j, ro := range rc.Outputs {
			out, err := upgradeOutput(ro)
			if err != nil {
				return Cell{}, fmt.Errorf("output %d: %v", j, err)
			}
			cell.Outputs = append(cell.Outputs, out)
		}
	case "heading":
		if rc.Source == nil {
			return Cell{}, fmt.Errorf("missing source")
		}
		level := rc.Level
		if level < 1 {
			level = 1
		}
		if level > 6 {
			level = 6
		}
		lines := strings.Split(string(*rc.Source), "\n")
		cell.Type = CellMarkdown
		cell.Source = strings.Repeat("#", level) + " " + strings.Join(lines, " ")
	case "markdown", "raw":
		if rc.Source == nil {
			return Cell{}, fmt.Errorf("missing source")
		}
		cell.Type = CellType(rc.CellType)
		cell.Source = string(*rc.Source)
	case "":
		return Cell{}, fmt.Errorf("missing cell_type")
	default:
		return Cell{}, fmt.Errorf("unknown cell_type %q", rc.CellType)
	}
	return cell, nil
}

func upgradeOutput(ro map[string]any) (Output, error) {
	kind, _ := ro["output_type"].(string)
	switch kind {
	case "stream":
		name, _ := ro["stream"].(string)
		if name == "" {
			name = "stdout"
		}
		return Output{Type: OutputStream, Name: name, Text: joinAny(ro["text"])}, nil
	case "pyerr":
		out := Output{Type: OutputError}
		out.EName, _ = ro["ename"].(string)
		out.EValue, _ = ro["evalue"].(string)
		if tb, ok := ro["traceback"].([]any); ok {
			for _, line := range tb {
				if s, ok := line.(string); ok {
					out.Traceback = append(out.Traceback, s)
				}
			}
		}
		return out, nil
	case "pyout", "display_data":
		out := Output{Type: OutputDisplayData, Data: MimeBundle{}}
		if kind == "pyout" {
			out.Type = OutputExecuteResult
			if n, ok := ro["prompt_number"].(float64); ok {
				count := int(n)
				out.ExecutionCount = &count
			}
		}
		if md, ok := ro["metadata"].(map[string]any); ok {
			out.Metadata = md
		}
		for short, mime := range v3MimeKeys {
			v, ok := ro[short]
			if !ok {
				continue
			}
			if mime == "application/json" {
				if s, ok := v.(string); ok {
					out.Data[mime] = s
					continue
				}
				b, err := json.MarshalIndent(v, "", "  ")
				if err != nil {
					return Output{}, fmt.Errorf("%s: %v", mime, err)
				}
				out.Data[mime] = string(b)
				continue
			}
			out.Data[mime] = joinAny(v)
		}
		return out, nil
	case "":
		return Output{}, fmt.Errorf("missing output_type")
	default:
		return Output{}, fmt.Errorf("unknown output_type %q", kind)
	}
}

func joinAny(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []any:
		var b strings.Builder
		for _, p := range t {
			if s, ok := p.(string); ok {
				b.WriteString(s)
			}
		}
		return b.String()
	}
	return ""
}
