package notebook

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const sample = `{
 "cells": [
  {
   "cell_type": "markdown",
   "id": "intro",
   "metadata": {"tags": []},
   "source": ["# Title\n", "\n", "Some *text*."]
  },
  {
   "cell_type": "code",
   "id": "calc",
   "metadata": {},
   "execution_count": 3,
   "source": ["x = 1\n", "print(x)"],
   "outputs": [
    {"output_type": "stream", "name": "stdout", "text": ["li", "ne1\n", "line2"]},
    {"output_type": "display_data", "metadata": {},
     "data": {"text/plain": ["<Figure>"], "image/png": "iVBORw0K\n", "application/json": {"a": 1}}}
   ]
  },
  {
   "cell_type": "code",
   "id": "pending",
   "metadata": {},
   "execution_count": null,
   "source": "y = 2",
   "outputs": []
  },
  {
   "cell_type": "raw",
   "id": "raw",
   "metadata": {},
   "source": []
  }
 ],
 "metadata": {
  "kernelspec": {"display_name": "Python 3", "language": "python", "name": "python3"},
  "language_info": {"name": "python", "version": "3.11"}
 },
 "nbformat": 4,
 "nbformat_minor": 5
}`

func intPtr(n int) *int { return &n }

func TestParse(t *testing.T) {
	nb, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if nb.Version != Supported {
		t.Errorf("Version = %v, want %v", nb.Version, Supported)
	}
	wantKernel := KernelSpec{DisplayName: "Python 3", Name: "python3", Language: "python"}
	if diff := cmp.Diff(wantKernel, nb.Metadata.Kernel); diff != "" {
		t.Errorf("kernel mismatch (-want +got):\n%s", diff)
	}

	if len(nb.Cells) != 4 {
		t.Fatalf("got %d cells, want 4", len(nb.Cells))
	}

	md := nb.Cells[0]
	if md.Type != Markdown || md.ID != "intro" {
		t.Errorf("cell 0 = %v %q", md.Type, md.ID)
	}
	if diff := cmp.Diff([]string{"# Title", "", "Some *text*."}, md.Source); diff != "" {
		t.Errorf("markdown source (-want +got):\n%s", diff)
	}
	if md.ExecutionCount != nil || md.Outputs != nil {
		t.Errorf("markdown cell carries code fields: %+v", md)
	}

	code := nb.Cells[1]
	if code.Type != Code || code.ExecutionCount == nil || *code.ExecutionCount != 3 {
		t.Fatalf("cell 1 = %+v", code)
	}
	if len(code.Outputs) != 2 {
		t.Fatalf("got %d outputs, want 2", len(code.Outputs))
	}
	if got := code.Outputs[0].Lines(); !cmp.Equal(got, []string{"line1", "line2"}) {
		t.Errorf("stream lines = %q", got)
	}

	var types []string
	for _, e := range code.Outputs[1].Data {
		types = append(types, e.Type)
	}
	if diff := cmp.Diff([]string{"text/plain", "image/png", "application/json"}, types); diff != "" {
		t.Errorf("MIME order (-want +got):\n%s", diff)
	}

	pending := nb.Cells[2]
	if pending.ExecutionCount != nil {
		t.Errorf("null execution_count decoded as %d", *pending.ExecutionCount)
	}
	if diff := cmp.Diff([]string{"y = 2"}, pending.Source); diff != "" {
		t.Errorf("string source (-want +got):\n%s", diff)
	}

	if raw := nb.Cells[3]; raw.Type != Raw || len(raw.Source) != 0 {
		t.Errorf("raw cell = %+v", raw)
	}
}

func TestParseVersion(t *testing.T) {
	for _, v := range []string{`"nbformat": 4, "nbformat_minor": 4`, `"nbformat": 3, "nbformat_minor": 5`, `"nbformat": 5, "nbformat_minor": 0`} {
		doc := `{` + v + `, "metadata": {}, "cells": [{"cell_type": "bogus"}]}`
		_, err := Parse([]byte(doc))
		if !errors.Is(err, ErrUnsupportedVersion) {
			t.Errorf("%s: err = %v, want ErrUnsupportedVersion", v, err)
		}
		if errors.Is(err, ErrMalformed) {
			t.Errorf("%s: version error also reports malformed", v)
		}
		var verr *VersionError
		if !errors.As(err, &verr) {
			t.Errorf("%s: err is not a *VersionError", v)
		}
	}
}

func TestParseMalformed(t *testing.T) {
	const head = `"nbformat": 4, "nbformat_minor": 5, "metadata": {"kernelspec": {"display_name": "P", "name": "p", "language": "python"}}`
	tests := []struct {
		name string
		doc  string
		path string
	}{
		{"not json", `{`, "$"},
		{"not object", `[]`, "$"},
		{"missing version", `{"cells": []}`, "$.nbformat"},
		{"version type", `{"nbformat": "4", "nbformat_minor": 5}`, "$.nbformat"},
		{"missing kernelspec", `{"nbformat": 4, "nbformat_minor": 5, "metadata": {}, "cells": []}`, "$.metadata.kernelspec"},
		{"missing cells", `{` + head + `}`, "$.cells"},
		{"unknown cell", `{` + head + `, "cells": [{"cell_type": "html", "source": []}]}`, "$.cells[0].cell_type"},
		{"missing source", `{` + head + `, "cells": [{"cell_type": "markdown"}]}`, "$.cells[0].source"},
		{"source type", `{` + head + `, "cells": [{"cell_type": "markdown", "source": 7}]}`, "$.cells[0].source"},
		{"missing execution_count", `{` + head + `, "cells": [{"cell_type": "code", "source": [], "outputs": []}]}`, "$.cells[0].execution_count"},
		{"missing outputs", `{` + head + `, "cells": [{"cell_type": "code", "source": [], "execution_count": 1}]}`, "$.cells[0].outputs"},
		{"unknown output", `{` + head + `, "cells": [{"cell_type": "code", "source": [], "execution_count": 1, "outputs": [{"output_type": "update"}]}]}`, "$.cells[0].outputs[0].output_type"},
		{"stream without text", `{` + head + `, "cells": [{"cell_type": "code", "source": [], "execution_count": 1, "outputs": [{"output_type": "stream", "name": "stdout"}]}]}`, "$.cells[0].outputs[0].text"},
		{"data not object", `{` + head + `, "cells": [{"cell_type": "code", "source": [], "execution_count": 1, "outputs": [{"output_type": "display_data", "data": []}]}]}`, "$.cells[0].outputs[0].data"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			if !errors.Is(err, ErrMalformed) {
				t.Fatalf("err = %v, want ErrMalformed", err)
			}
			if !strings.Contains(err.Error(), tt.path+":") {
				t.Errorf("error %q does not name %s", err, tt.path)
			}
		})
	}
}

func TestParseExtraOutputs(t *testing.T) {
	doc := `{"nbformat": 4, "nbformat_minor": 5,
	 "metadata": {"kernelspec": {"display_name": "P", "name": "p", "language": "python"}},
	 "cells": [{"cell_type": "code", "id": "a", "source": [], "execution_count": 2, "metadata": {}, "outputs": [
	   {"output_type": "execute_result", "execution_count": 2, "metadata": {}, "data": {"text/plain": "42"}},
	   {"output_type": "error", "ename": "ValueError", "evalue": "bad", "traceback": ["line a", "line b"]}
	 ]}]}`
	nb, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	outs := nb.Cells[0].Outputs
	if outs[0].Type != ExecuteResult || outs[0].ExecutionCount == nil || *outs[0].ExecutionCount != 2 {
		t.Errorf("execute_result = %+v", outs[0])
	}
	if len(outs[0].Data) != 1 || outs[0].Data[0].Type != "text/plain" {
		t.Errorf("data = %+v", outs[0].Data)
	} else if s, ok := outs[0].Data[0].Value.Text(); !ok || s != "42" {
		t.Errorf("Text() = %q, %v", s, ok)
	}
	want := Output{Type: Error, ErrorName: "ValueError", ErrorValue: "bad", Traceback: []string{"line a", "line b"}}
	if diff := cmp.Diff(want, outs[1], cmp.AllowUnexported(MIMEValue{})); diff != "" {
		t.Errorf("error output (-want +got):\n%s", diff)
	}
}

func TestParseFileMissing(t *testing.T) {
	_, err := ParseFile(filepath.Join(t.TempDir(), "nope.ipynb"))
	if !errors.Is(err, ErrFileAccess) {
		t.Errorf("err = %v, want ErrFileAccess", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("err = %v, want it to wrap os.ErrNotExist", err)
	}
}

func TestBadge(t *testing.T) {
	if got := (Cell{Type: Code}).Badge(); got != "[*]" {
		t.Errorf("Badge() = %q, want [*]", got)
	}
	if got := (Cell{Type: Code, ExecutionCount: intPtr(12)}).Badge(); got != "[12]" {
		t.Errorf("Badge() = %q, want [12]", got)
	}
}

func TestSplitLines(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"a", []string{"a"}},
		{"a\n", []string{"a"}},
		{"a\r\nb", []string{"a", "b"}},
		{"a\n\nb\n", []string{"a", "", "b"}},
	}
	for _, tt := range tests {
		if diff := cmp.Diff(tt.want, SplitLines(tt.in)); diff != "" {
			t.Errorf("SplitLines(%q) (-want +got):\n%s", tt.in, diff)
		}
	}
}

func TestMIMEValueText(t *testing.T) {
	tests := []struct {
		v    MIMEValue
		want string
		ok   bool
	}{
		{MIMEValue{raw: `["a\n", "b"]`}, "a\nb", true},
		{MIMEValue{raw: `"abc"`}, "abc", true},
		{MIMEValue{raw: `{"a": 1}`}, "", false},
		{MIMEValue{raw: `["a", 2]`}, "", false},
	}
	for _, tt := range tests {
		got, ok := tt.v.Text()
		if ok != tt.ok || (ok && got != tt.want) {
			t.Errorf("Text(%s) = %q, %v; want %q, %v", tt.v.Raw(), got, ok, tt.want, tt.ok)
		}
	}
}
