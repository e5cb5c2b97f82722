package notebook

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidNotebook is wrapped by every structural validation failure.
	ErrInvalidNotebook = errors.New("invalid notebook")
	// ErrUnsupportedVersion is returned for nbformat majors other than 3 and 4.
	ErrUnsupportedVersion = errors.New("unsupported nbformat version")
)

// multiline accepts nbformat's "string or list of strings" fields.
type multiline string

func (m *multiline) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*m = multiline(s)
		return nil
	}
	var parts []string
	if err := json.Unmarshal(b, &parts); err != nil {
		return fmt.Errorf("expected a string or a list of strings")
	}
	*m = multiline(strings.Join(parts, ""))
	return nil
}

type rawCell struct {
	ID             string                                `json:"id"`
	CellType       string                                `json:"cell_type"`
	Source         *multiline                            `json:"source"`
	Metadata       map[string]any                        `json:"metadata"`
	Attachments    map[string]map[string]json.RawMessage `json:"attachments"`
	ExecutionCount *int                                  `json:"execution_count"`
	Outputs        []rawOutput                           `json:"outputs"`
}

type rawOutput struct {
	OutputType     string                     `json:"output_type"`
	Name           string                     `json:"name"`
	Text           multiline                  `json:"text"`
	Data           map[string]json.RawMessage `json:"data"`
	Metadata       map[string]any             `json:"metadata"`
	ExecutionCount *int                       `json:"execution_count"`
	EName          string                     `json:"ename"`
	EValue         string                     `json:"evalue"`
	Traceback      []string                   `json:"traceback"`
}

// Parse reads raw notebook JSON and returns it as an nbformat 4 document.
// Version 3 documents are upgraded.
func Parse(raw []byte) (*Notebook, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, fmt.Errorf("%w: document is empty", ErrInvalidNotebook)
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return nil, fmt.Errorf("%w: not a JSON object: %v", ErrInvalidNotebook, err)
	}

	versionRaw, ok := top["nbformat"]
	if !ok {
		return nil, fmt.Errorf("%w: missing nbformat version", ErrInvalidNotebook)
	}
	var major int
	if err := json.Unmarshal(versionRaw, &major); err != nil {
		return nil, fmt.Errorf("%w: nbformat must be an integer, got %s", ErrInvalidNotebook, versionRaw)
	}
	var minor int
	if m, ok := top["nbformat_minor"]; ok {
		if err := json.Unmarshal(m, &minor); err != nil {
			return nil, fmt.Errorf("%w: nbformat_minor must be an integer, got %s", ErrInvalidNotebook, m)
		}
	}

	var meta map[string]any
	if m, ok := top["metadata"]; ok {
		if err := json.Unmarshal(m, &meta); err != nil {
			return nil, fmt.Errorf("%w: metadata must be an object", ErrInvalidNotebook)
		}
	}

	nb := &Notebook{Format: CurrentMajor, Metadata: parseMetadata(meta)}

	switch major {
	case 4:
		nb.FormatMinor = minor
		cellsRaw, ok := top["cells"]
		if !ok {
			return nil, fmt.Errorf("%w: missing cells", ErrInvalidNotebook)
		}
		var cells []rawCell
		if err := json.Unmarshal(cellsRaw, &cells); err != nil {
			return nil, fmt.Errorf("%w: cells: %v", ErrInvalidNotebook, err)
		}
		for i, rc := range cells {
			cell, err := convertCell(rc)
			if err != nil {
				return nil, fmt.Errorf("%w: cell %d: %v", ErrInvalidNotebook, i, err)
			}
			nb.Cells = append(nb.Cells, cell)
		}
	case 3:
		if err := upgradeV3(nb, top); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w %d", ErrUnsupportedVersion, major)
	}

	return nb, nil
}

func parseMetadata(raw map[string]any) Metadata {
	md := Metadata{Raw: raw}
	if raw == nil {
		return md
	}
	if s, ok := raw["title"].(string); ok {
		md.Title = s
	}
	if ks, ok := raw["kernelspec"].(map[string]any); ok {
		md.KernelName, _ = ks["name"].(string)
		md.KernelLang, _ = ks["language"].(string)
	}
	if li, ok := raw["language_info"].(map[string]any); ok {
		md.LanguageName, _ = li["name"].(string)
	}
	return md
}

func convertCell(rc rawCell) (Cell, error) {
	if rc.Source == nil {
		return Cell{}, fmt.Errorf("missing source")
	}
	cell := Cell{
		ID:       rc.ID,
		Type:     CellType(rc.CellType),
		Source:   string(*rc.Source),
		Metadata: rc.Metadata,
	}

	switch cell.Type {
	case CellCode:
		cell.ExecutionCount = rc.ExecutionCount
		for j, ro := range rc.Outputs {
			out, err := convertOutput(ro)
			if err != nil {
				return Cell{}, fmt.Errorf("output %d: %v", j, err)
			}
			cell.Outputs = append(cell.Outputs, out)
		}
	case CellMarkdown, CellRaw:
		if len(rc.Outputs) > 0 {
			return Cell{}, fmt.Errorf("%s cell must not have outputs", cell.Type)
		}
	case "":
		return Cell{}, fmt.Errorf("missing cell_type")
	default:
		return Cell{}, fmt.Errorf("unknown cell_type %q", rc.CellType)
	}

	if len(rc.Attachments) > 0 {
		cell.Attachments = make(map[string]MimeBundle, len(rc.Attachments))
		for name, data := range rc.Attachments {
			bundle, err := convertBundle(data)
			if err != nil {
				return Cell{}, fmt.Errorf("attachment %q: %v", name, err)
			}
			cell.Attachments[name] = bundle
		}
	}
	return cell, nil
}

func convertOutput(ro rawOutput) (Output, error) {
	out := Output{
		Type:     OutputType(ro.OutputType),
		Metadata: ro.Metadata,
	}
	switch out.Type {
	case OutputStream:
		out.Name = ro.Name
		out.Text = string(ro.Text)
	case OutputDisplayData, OutputExecuteResult:
		bundle, err := convertBundle(ro.Data)
		if err != nil {
			return Output{}, err
		}
		out.Data = bundle
		if out.Type == OutputExecuteResult {
			out.ExecutionCount = ro.ExecutionCount
		}
	case OutputError:
		out.EName = ro.EName
		out.EValue = ro.EValue
		out.Traceback = ro.Traceback
	case "":
		return Output{}, fmt.Errorf("missing output_type")
	default:
		return Output{}, fmt.Errorf("unknown output_type %q", ro.OutputType)
	}
	return out, nil
}

// convertBundle flattens a mime bundle. Text values may be split into lines;
// anything else, e.g. application/json, is kept as indented JSON.
func convertBundle(data map[string]json.RawMessage) (MimeBundle, error) {
	bundle := make(MimeBundle, len(data))
	for mime, raw := range data {
		var text multiline
		if !isJSONMime(mime) {
			if err := json.Unmarshal(raw, &text); err == nil {
				bundle[mime] = string(text)
				continue
			}
		}
		var buf bytes.Buffer
		if err := json.Indent(&buf, raw, "", "  "); err != nil {
			return nil, fmt.Errorf("%s: %v", mime, err)
		}
		bundle[mime] = buf.String()
	}
	return bundle, nil
}

func isJSONMime(mime string) bool {
	return mime == "application/json" || strings.HasSuffix(mime, "+json")
}
