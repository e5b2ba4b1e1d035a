// Package notebook holds the typed, read-only model of a Jupyter notebook
// document (nbformat 4) and the strict decoder that builds it.
package notebook

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// Supported is the only document format version that can be rendered.
var Supported = Version{Major: 4, Minor: 5}

// Version is the nbformat major.minor pair of a document.
type Version struct {
	Major int
	Minor int
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// Notebook is a fully decoded document. It is never mutated after Parse.
type Notebook struct {
	Version  Version
	Metadata Metadata
	Cells    []Cell
}

// Metadata carries the parts of the notebook metadata that are rendered.
type Metadata struct {
	Kernel KernelSpec
}

// KernelSpec is the kernel a notebook was saved with.
type KernelSpec struct {
	DisplayName string
	Name        string
	Language    string
}

// CellType tags the variant of a Cell.
type CellType int

const (
	Code CellType = iota
	Markdown
	Raw
)

func (t CellType) String() string {
	switch t {
	case Code:
		return "code"
	case Markdown:
		return "markdown"
	default:
		return "raw"
	}
}

// Label is the short name shown in the label column.
func (t CellType) Label() string {
	switch t {
	case Code:
		return "Code"
	case Markdown:
		return "MD"
	default:
		return "Raw"
	}
}

// Cell is one unit of notebook content. ExecutionCount and Outputs are only
// ever set on Code cells.
type Cell struct {
	Type   CellType
	ID     string
	Source []string // newline-less lines

	ExecutionCount *int
	Outputs        []Output
}

// Text returns the cell source with its lines joined by newlines.
func (c Cell) Text() string {
	return strings.Join(c.Source, "\n")
}

// Badge is the execution marker shown next to a code cell's outputs:
// "[N]" once executed, "[*]" otherwise.
func (c Cell) Badge() string {
	if c.ExecutionCount == nil {
		return "[*]"
	}
	return fmt.Sprintf("[%d]", *c.ExecutionCount)
}

// OutputType tags the variant of an Output.
type OutputType int

const (
	Stream OutputType = iota
	DisplayData
	ExecuteResult
	Error
)

func (t OutputType) String() string {
	switch t {
	case Stream:
		return "stream"
	case DisplayData:
		return "display_data"
	case ExecuteResult:
		return "execute_result"
	default:
		return "error"
	}
}

// Output is a recorded result attached to a code cell.
type Output struct {
	Type OutputType

	// Stream
	Name string
	Text []string // fragments as stored; see Lines

	// DisplayData and ExecuteResult
	Data           MIMEBundle
	ExecutionCount *int

	// Error
	ErrorName  string
	ErrorValue string
	Traceback  []string
}

// Lines concatenates the stream fragments and re-splits them on line
// boundaries. The document may cut a logical line across fragments, so the
// fragments are never split individually.
func (o Output) Lines() []string {
	return SplitLines(strings.Join(o.Text, ""))
}

// SplitLines splits s on "\n", dropping a trailing "\r" from each line and
// the empty element after a final newline.
func SplitLines(s string) []string {
	if s == "" {
		return nil
	}
	s = strings.TrimSuffix(s, "\n")
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

// MIMEBundle is the data of a display output in document order.
type MIMEBundle []MIMEEntry

// MIMEEntry is one representation of a result.
type MIMEEntry struct {
	Type  string
	Value MIMEValue
}

// MIMEValue keeps the JSON of a bundle value untouched so that types with no
// renderer are still carried through to the layout.
type MIMEValue struct {
	raw string
}

// Raw returns the value's JSON text.
func (v MIMEValue) Raw() string { return v.raw }

// Text flattens a string or an array of strings. It reports false for any
// other JSON shape.
func (v MIMEValue) Text() (string, bool) {
	r := gjson.Parse(v.raw)
	switch {
	case r.Type == gjson.String:
		return r.String(), true
	case r.IsArray():
		var b strings.Builder
		ok := true
		r.ForEach(func(_, el gjson.Result) bool {
			if el.Type != gjson.String {
				ok = false
				return false
			}
			b.WriteString(el.String())
			return true
		})
		return b.String(), ok
	}
	return "", false
}
