package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/termenv"

	"nbview/internal/layout"
	"nbview/internal/notebook"
	"nbview/internal/picture"
)

func TestListKernels(t *testing.T) {
	user, system := t.TempDir(), t.TempDir()
	write := func(dir, name, body string) {
		if err := os.MkdirAll(filepath.Join(dir, name), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, name, "kernel.json"), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write(user, "python3", `{"argv": ["python3"], "display_name": "Python 3", "language": "python"}`)
	write(system, "julia-1.10", `{"argv": ["julia"], "display_name": "Julia 1.10", "language": "julia"}`)

	var buf bytes.Buffer
	if err := listKernels(&buf, []string{user, system, filepath.Join(system, "none")}); err != nil {
		t.Fatalf("listKernels: %v", err)
	}
	want := user + ":\n   python3 (Python 3)\n" +
		system + ":\n   julia-1.10 (Julia 1.10)\n" +
		filepath.Join(system, "none") + ":\n"
	if got := ansi.Strip(buf.String()); got != want {
		t.Errorf("listKernels =\n%s\nwant\n%s", got, want)
	}
}

func execute(args ...string) (string, error) {
	cmd := newCommand()
	if args == nil {
		args = []string{}
	}
	var out bytes.Buffer
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	err := cmd.Execute()
	return out.String(), err
}

func TestCommandErrors(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "old.ipynb")
	if err := os.WriteFile(old, []byte(`{"nbformat": 4, "nbformat_minor": 2, "metadata": {}, "cells": []}`), 0o644); err != nil {
		t.Fatal(err)
	}
	broken := filepath.Join(dir, "broken.ipynb")
	if err := os.WriteFile(broken, []byte(`{"nbformat": 4, "nbformat_minor": 5, "cells": []}`), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		args []string
		is   error
		msg  string
	}{
		{name: "no file", msg: "please specify"},
		{name: "list with file", args: []string{"--list-kernels", "x.ipynb"}, msg: "--list-kernels"},
		{name: "run", args: []string{"--run", "x.ipynb"}, msg: "not supported"},
		{name: "bad images", args: []string{"--images", "sixel", "x.ipynb"}, msg: "unknown image protocol"},
		{name: "missing file", args: []string{filepath.Join(dir, "nope.ipynb")}, is: notebook.ErrFileAccess},
		{name: "old version", args: []string{old}, is: notebook.ErrUnsupportedVersion},
		{name: "malformed", args: []string{broken}, is: notebook.ErrMalformed},
		{name: "too many args", args: []string{"a", "b"}, msg: "accepts at most 1 arg"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(tt.args...)
			if err == nil {
				t.Fatal("expected an error")
			}
			if out != "" {
				t.Errorf("wrote %q before failing", out)
			}
			if tt.is != nil && !errors.Is(err, tt.is) {
				t.Errorf("err = %v, want %v", err, tt.is)
			}
			if tt.msg != "" && !strings.Contains(err.Error(), tt.msg) {
				t.Errorf("err = %q, want it to mention %q", err, tt.msg)
			}
		})
	}
}

func TestCommandRender(t *testing.T) {
	path := filepath.Join(t.TempDir(), "demo.ipynb")
	doc := `{"nbformat": 4, "nbformat_minor": 5,
	  "metadata": {"kernelspec": {"display_name": "Python 3", "name": "python3", "language": "python"}},
	  "cells": [{"cell_type": "code", "id": "c", "metadata": {}, "execution_count": 1, "source": ["1 + 1"],
	    "outputs": [
	      {"output_type": "execute_result", "execution_count": 1, "metadata": {}, "data": {"text/plain": ["2"]}},
	      {"output_type": "display_data", "metadata": {}, "data": {"image/png": "bm90IGFuIGltYWdl"}}
	    ]}]}`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := execute("--width", "60", "--style", "notty", path)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if out != ansi.Strip(out) {
		t.Error("output to a non-terminal carries escape sequences")
	}
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	if want := "───────┬" + strings.Repeat("─", 52); lines[0] != want {
		t.Errorf("first line = %q, want %q", lines[0], want)
	}
	for _, want := range []string{`File: "demo.ipynb"  Kernel: Python 3`, "  [1]  │ 2", layout.CorruptImage} {
		if !strings.Contains(out, want) {
			t.Errorf("output does not contain %q:\n%s", want, out)
		}
	}
}

func TestDrawProgressBar(t *testing.T) {
	tests := []struct {
		width int
		ratio float64
		label string
		want  string
	}{
		{2, 0.5, "", "██"},
		{10, 0, "", "░░░░░░░░░░"},
		{10, 1, "", "██████████"},
		{10, 0.5, " 1 ", "███ 1 ░░░░"},
	}
	for _, tt := range tests {
		if got := drawProgressBar(tt.width, tt.ratio, tt.label); got != tt.want {
			t.Errorf("drawProgressBar(%d, %v, %q) = %q, want %q", tt.width, tt.ratio, tt.label, got, tt.want)
		}
	}
}

func TestHumanSize(t *testing.T) {
	for n, want := range map[int64]string{0: "0B", 1023: "1023B", 1024: "1.00KB", 1536: "1.50KB", 5 << 20: "5.00MB"} {
		if got := humanSize(n); got != want {
			t.Errorf("humanSize(%d) = %q, want %q", n, got, want)
		}
	}
}

func TestPagerScroll(t *testing.T) {
	var cells []string
	for i := 0; i < 30; i++ {
		cells = append(cells, `{"cell_type": "markdown", "id": "m", "metadata": {}, "source": ["paragraph"]}`)
	}
	nb, err := notebook.Parse([]byte(`{"nbformat": 4, "nbformat_minor": 5,
	  "metadata": {"kernelspec": {"display_name": "P", "name": "p", "language": "python"}},
	  "cells": [` + strings.Join(cells, ",") + `]}`))
	if err != nil {
		t.Fatal(err)
	}

	r := lipgloss.NewRenderer(&bytes.Buffer{})
	r.SetColorProfile(termenv.Ascii)
	m := initialModel("demo.ipynb", nb, layout.Options{Style: "notty", Images: picture.Kitty, Renderer: r}, time.Unix(0, 0), 2048)
	if m.opts.Images != picture.Blocks {
		t.Errorf("pager kept the %v protocol", m.opts.Images)
	}

	next, _ := m.Update(tea.WindowSizeMsg{Width: 50, Height: 12})
	m = next.(model)
	if m.err != nil {
		t.Fatalf("render: %v", m.err)
	}
	if m.totalLines <= m.view.Height {
		t.Fatalf("only %d lines for a %d-line view", m.totalLines, m.view.Height)
	}

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnd})
	m = next.(model)
	if want := m.totalLines - m.view.Height; m.view.YOffset != want {
		t.Errorf("after End YOffset = %d, want %d", m.view.YOffset, want)
	}

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyUp})
	m = next.(model)
	if cmd == nil || !m.animating {
		t.Fatal("Up did not start a scroll")
	}
	for i := 0; i < 10 && m.animating; i++ {
		next, _ = m.Update(scrollTick{})
		m = next.(model)
	}
	if want := m.totalLines - m.view.Height - 1; m.view.YOffset != want {
		t.Errorf("after Up YOffset = %d, want %d", m.view.YOffset, want)
	}

	view := m.View()
	if !strings.Contains(view, "demo.ipynb") || !strings.Contains(view, "2.00KB [mono]") {
		t.Errorf("header missing file info:\n%s", view)
	}
	if lines := strings.Split(view, "\n"); len(lines) != m.view.Height+2 {
		t.Errorf("view has %d lines, want %d", len(lines), m.view.Height+2)
	}

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("q did not quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q did not return tea.Quit")
	}
}
