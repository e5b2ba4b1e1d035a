package notebook

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/tidwall/gjson"
)

var (
	// ErrMalformed is wrapped by every structural decoding failure.
	ErrMalformed = errors.New("malformed notebook")
	// ErrUnsupportedVersion matches a *VersionError.
	ErrUnsupportedVersion = errors.New("unsupported notebook version")
	// ErrFileAccess is wrapped when the document cannot be read.
	ErrFileAccess = errors.New("cannot read notebook")
)

// VersionError reports a document whose format version is not Supported.
type VersionError struct {
	Got Version
}

func (e *VersionError) Error() string {
	return fmt.Sprintf("unsupported notebook format %s (only %s is supported)", e.Got, Supported)
}

func (e *VersionError) Is(target error) bool {
	return target == ErrUnsupportedVersion
}

func malformed(path, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrMalformed, path, fmt.Sprintf(format, args...))
}

// ParseFile reads and parses the notebook at path.
func ParseFile(path string) (*Notebook, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFileAccess, err)
	}
	return Parse(b)
}

// Parse decodes a notebook document. The version is checked before any cell
// is decoded.
func Parse(data []byte) (*Notebook, error) {
	root, err := decodeObject("$", data)
	if err != nil {
		return nil, err
	}

	var nb Notebook
	if err := root.required("nbformat", &nb.Version.Major); err != nil {
		return nil, err
	}
	if err := root.required("nbformat_minor", &nb.Version.Minor); err != nil {
		return nil, err
	}
	if nb.Version != Supported {
		return nil, &VersionError{Got: nb.Version}
	}

	if nb.Metadata, err = parseMetadata(root); err != nil {
		return nil, err
	}

	var cells []json.RawMessage
	if err := root.required("cells", &cells); err != nil {
		return nil, err
	}
	nb.Cells = make([]Cell, 0, len(cells))
	for i, raw := range cells {
		c, err := parseCell(fmt.Sprintf("$.cells[%d]", i), raw)
		if err != nil {
			return nil, err
		}
		nb.Cells = append(nb.Cells, c)
	}
	return &nb, nil
}

func parseMetadata(root object) (Metadata, error) {
	var raw json.RawMessage
	if err := root.required("metadata", &raw); err != nil {
		return Metadata{}, err
	}
	meta, err := decodeObject("$.metadata", raw)
	if err != nil {
		return Metadata{}, err
	}
	if err := meta.required("kernelspec", &raw); err != nil {
		return Metadata{}, err
	}
	ks, err := decodeObject("$.metadata.kernelspec", raw)
	if err != nil {
		return Metadata{}, err
	}

	var m Metadata
	if err := ks.required("display_name", &m.Kernel.DisplayName); err != nil {
		return Metadata{}, err
	}
	if err := ks.required("name", &m.Kernel.Name); err != nil {
		return Metadata{}, err
	}
	if err := ks.required("language", &m.Kernel.Language); err != nil {
		return Metadata{}, err
	}
	return m, nil
}

func parseCell(path string, raw []byte) (Cell, error) {
	obj, err := decodeObject(path, raw)
	if err != nil {
		return Cell{}, err
	}

	var kind string
	if err := obj.required("cell_type", &kind); err != nil {
		return Cell{}, err
	}

	var c Cell
	switch kind {
	case "code":
		c.Type = Code
	case "markdown":
		c.Type = Markdown
	case "raw":
		c.Type = Raw
	default:
		return Cell{}, malformed(path+".cell_type", "unknown cell type %q", kind)
	}

	// ids only became mandatory with nbformat 4.5; keep them when present.
	if _, err := obj.optional("id", &c.ID); err != nil {
		return Cell{}, err
	}

	var src multiline
	if err := obj.required("source", &src); err != nil {
		return Cell{}, err
	}
	c.Source = SplitLines(strings.Join(src, ""))

	if c.Type != Code {
		return c, nil
	}

	if c.ExecutionCount, err = obj.nullableInt("execution_count", true); err != nil {
		return Cell{}, err
	}

	var outputs []json.RawMessage
	if err := obj.required("outputs", &outputs); err != nil {
		return Cell{}, err
	}
	c.Outputs = make([]Output, 0, len(outputs))
	for i, raw := range outputs {
		o, err := parseOutput(fmt.Sprintf("%s.outputs[%d]", path, i), raw)
		if err != nil {
			return Cell{}, err
		}
		c.Outputs = append(c.Outputs, o)
	}
	return c, nil
}

func parseOutput(path string, raw []byte) (Output, error) {
	obj, err := decodeObject(path, raw)
	if err != nil {
		return Output{}, err
	}

	var kind string
	if err := obj.required("output_type", &kind); err != nil {
		return Output{}, err
	}

	var o Output
	switch kind {
	case "stream":
		o.Type = Stream
		if err := obj.required("name", &o.Name); err != nil {
			return Output{}, err
		}
		var text multiline
		if err := obj.required("text", &text); err != nil {
			return Output{}, err
		}
		o.Text = text

	case "display_data", "execute_result":
		o.Type = DisplayData
		if kind == "execute_result" {
			o.Type = ExecuteResult
			if o.ExecutionCount, err = obj.nullableInt("execution_count", false); err != nil {
				return Output{}, err
			}
		}
		var data json.RawMessage
		if err := obj.required("data", &data); err != nil {
			return Output{}, err
		}
		if o.Data, err = parseBundle(path+".data", data); err != nil {
			return Output{}, err
		}

	case "error":
		o.Type = Error
		if err := obj.required("ename", &o.ErrorName); err != nil {
			return Output{}, err
		}
		if err := obj.required("evalue", &o.ErrorValue); err != nil {
			return Output{}, err
		}
		if err := obj.required("traceback", &o.Traceback); err != nil {
			return Output{}, err
		}

	default:
		return Output{}, malformed(path+".output_type", "unknown output type %q", kind)
	}
	return o, nil
}

// parseBundle walks the MIME object with gjson, which visits members in the
// order they appear in the source, so render order is reproducible.
func parseBundle(path string, raw []byte) (MIMEBundle, error) {
	res := gjson.ParseBytes(raw)
	if !res.IsObject() {
		return nil, malformed(path, "expected object, got %s", res.Type)
	}
	bundle := MIMEBundle{}
	res.ForEach(func(key, value gjson.Result) bool {
		bundle = append(bundle, MIMEEntry{
			Type:  key.String(),
			Value: MIMEValue{raw: value.Raw},
		})
		return true
	})
	return bundle, nil
}

// multiline is the nbformat text type: a string or an array of strings.
type multiline []string

func (m *multiline) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*m = multiline{s}
		return nil
	}
	var parts []string
	if err := json.Unmarshal(b, &parts); err != nil {
		return errors.New("expected a string or an array of strings")
	}
	*m = parts
	return nil
}

// object is a JSON object whose members are decoded one at a time so that
// every failure names the exact path that broke.
type object struct {
	path   string
	fields map[string]json.RawMessage
}

func decodeObject(path string, raw []byte) (object, error) {
	if !json.Valid(raw) {
		return object{}, malformed(path, "invalid JSON")
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return object{}, malformed(path, "expected object")
	}
	return object{path: path, fields: fields}, nil
}

func (o object) field(key string) string {
	return o.path + "." + key
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// required decodes a member that must be present and non-null.
func (o object) required(key string, v any) error {
	raw, ok := o.fields[key]
	if !ok {
		return malformed(o.field(key), "missing required field")
	}
	if isNull(raw) {
		return malformed(o.field(key), "must not be null")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return malformed(o.field(key), "%v", err)
	}
	return nil
}

// optional decodes a member if it is present and non-null.
func (o object) optional(key string, v any) (bool, error) {
	raw, ok := o.fields[key]
	if !ok || isNull(raw) {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, malformed(o.field(key), "%v", err)
	}
	return true, nil
}

// nullableInt decodes an integer member where null means "no value".
func (o object) nullableInt(key string, mustExist bool) (*int, error) {
	raw, ok := o.fields[key]
	if !ok {
		if mustExist {
			return nil, malformed(o.field(key), "missing required field")
		}
		return nil, nil
	}
	if isNull(raw) {
		return nil, nil
	}
	var n int
	if err := json.Unmarshal(raw, &n); err != nil {
		return nil, malformed(o.field(key), "%v", err)
	}
	return &n, nil
}
