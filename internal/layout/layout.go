// Package layout draws a notebook as a two-column box: a narrow label column
// holding the cell type or execution badge, and a content column holding the
// reflowed cell and its outputs.
package layout

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/mattn/go-runewidth"

	"nbview/internal/markdown"
	"nbview/internal/notebook"
	"nbview/internal/picture"
)

// ErrUnsupportedMIME is logged for display data that has no renderer.
var ErrUnsupportedMIME = errors.New("unsupported output MIME type")

const imageMargin = 2

// Marker lines substituted for outputs that cannot be drawn.
const (
	UnsupportedOutput = "Unsupported data output"
	CorruptImage      = "Unsupported or corrupt image"
)

// Options configure an Engine. Kernel and Language override the values the
// notebook declares.
type Options struct {
	Geometry Geometry
	FileName string
	Kernel   string
	Language string
	Style    string // glamour style
	Images   picture.Protocol
	Renderer *lipgloss.Renderer
}

// Engine renders notebooks in a single forward pass.
type Engine struct {
	opts   Options
	out    *bufio.Writer
	reflow *markdown.Reflower
	placer *picture.Placer
	st     styles
	cur    cursor
	err    error
}

type styles struct {
	frame  lipgloss.Style
	bold   lipgloss.Style
	italic lipgloss.Style
	warn   lipgloss.Style
	fail   lipgloss.Style
}

// New prepares an engine writing to w. The geometry in opts is used as is
// for every cell.
func New(w io.Writer, opts Options) (*Engine, error) {
	opts.Geometry = opts.Geometry.normalized()
	if opts.Renderer == nil {
		opts.Renderer = lipgloss.NewRenderer(w)
	}
	r := opts.Renderer

	reflow, err := markdown.NewReflower(markdown.Options{
		Width:   opts.Geometry.TextWidth(),
		Style:   opts.Style,
		Profile: r.ColorProfile(),
	})
	if err != nil {
		return nil, err
	}

	return &Engine{
		opts:   opts,
		out:    bufio.NewWriter(w),
		reflow: reflow,
		placer: &picture.Placer{Protocol: opts.Images, Renderer: r},
		st: styles{
			frame:  r.NewStyle().Foreground(lipgloss.Color("238")),
			bold:   r.NewStyle().Bold(true),
			italic: r.NewStyle().Italic(true),
			warn:   r.NewStyle().Foreground(lipgloss.Color("11")),
			fail:   r.NewStyle().Foreground(lipgloss.Color("9")),
		},
	}, nil
}

// Lines is the number of text rows written so far. Overlays do not count.
func (e *Engine) Lines() int { return e.cur.row }

// Render draws nb. Outputs that cannot be drawn are replaced by a marker and
// rendering continues; the returned error is a markdown or write failure.
func (e *Engine) Render(nb *notebook.Notebook) error {
	kernel := e.opts.Kernel
	if kernel == "" {
		kernel = nb.Metadata.Kernel.DisplayName
	}
	lang := e.opts.Language
	if lang == "" {
		lang = nb.Metadata.Kernel.Language
	}
	tag := markdown.FenceTag(lang)

	e.border('┬')
	e.row("", e.fit(fmt.Sprintf("File: %s  Kernel: %s",
		e.st.bold.Render(fmt.Sprintf("%q", filepath.Base(e.opts.FileName))),
		e.st.bold.Render(kernel))))

	for i, cell := range nb.Cells {
		e.border('┼')
		if err := e.cell(i, cell, tag); err != nil {
			return err
		}
	}

	e.border('┴')
	if err := e.out.Flush(); err != nil && e.err == nil {
		e.err = err
	}
	return e.err
}

func (e *Engine) cell(index int, cell notebook.Cell, tag string) error {
	lines, err := e.reflow.Reflow(markdown.Format(cell, tag))
	if err != nil {
		return fmt.Errorf("cell %d: %w", index, err)
	}

	label := cell.Type.Label()
	for l := range lines {
		e.row(label, l.Text)
		label = ""
	}
	if label != "" {
		e.row(label, "")
	}

	if cell.Type != notebook.Code {
		return nil
	}
	badge := &badge{text: cell.Badge()}
	for j, out := range cell.Outputs {
		e.subBorder()
		e.output(slog.With("cell", index, "output", j), badge, out)
	}
	return nil
}

// badge hands out the execution count once; later rows get an empty label.
type badge struct {
	text string
	used bool
}

func (b *badge) take() string {
	if b.used {
		return ""
	}
	b.used = true
	return b.text
}

func (e *Engine) output(log *slog.Logger, b *badge, out notebook.Output) {
	switch out.Type {
	case notebook.Stream:
		for _, line := range out.Lines() {
			line = cleanStream(line)
			if out.Name == "stderr" {
				line = e.st.fail.Render(line)
			}
			e.wrapped(b, line)
		}

	case notebook.DisplayData, notebook.ExecuteResult:
		for _, entry := range out.Data {
			e.mime(log, b, entry)
		}

	case notebook.Error:
		// evalue is free text and may span lines of its own
		for _, line := range notebook.SplitLines(out.ErrorName + ": " + out.ErrorValue) {
			e.wrapped(b, e.st.fail.Render(cleanStream(line)))
		}
		for _, line := range notebook.SplitLines(strings.Join(out.Traceback, "\n")) {
			e.wrapped(b, cleanStream(ansi.Strip(line)))
		}
	}
}

func (e *Engine) mime(log *slog.Logger, b *badge, entry notebook.MIMEEntry) {
	switch {
	case isRaster(entry.Type):
		payload, ok := entry.Value.Text()
		if !ok {
			log.Debug("image payload is not a string", "mime", entry.Type)
			e.row(b.take(), e.st.warn.Render(CorruptImage))
			return
		}
		cols, rows := e.opts.Geometry.ImageBox()
		p, err := e.placer.Place(payload, cols, rows)
		if err != nil {
			log.Debug("skipping image", "mime", entry.Type, "err", err)
			e.row(b.take(), e.st.warn.Render(CorruptImage))
			return
		}
		e.image(b, p)

	case entry.Type == "text/plain":
		text, ok := entry.Value.Text()
		if !ok {
			log.Debug("text/plain is not text", "value", entry.Value.Raw())
			e.row(b.take(), e.st.warn.Render(UnsupportedOutput))
			return
		}
		e.row(b.take(), e.fit(e.st.italic.Render(escapeNewlines(text))))

	default:
		log.Debug("skipping output", "err", fmt.Errorf("%w: %s", ErrUnsupportedMIME, entry.Type))
		e.row(b.take(), e.fit(e.st.warn.Render(UnsupportedOutput+" ("+entry.Type+")")))
	}
}

// isRaster excludes SVG, which is XML rather than pixels.
func isRaster(mime string) bool {
	return strings.HasPrefix(mime, "image/") && !strings.HasPrefix(mime, "image/svg")
}

// escapeNewlines keeps a multi-line value on one table row.
func escapeNewlines(s string) string {
	return strings.NewReplacer("\r\n", `\n`, "\n", `\n`, "\r", `\r`).Replace(s)
}

const tabStop = 8

// cleanStream keeps what a terminal would show after carriage returns (as
// progress bars use them) and expands tabs to the next tab stop.
func cleanStream(line string) string {
	if i := strings.LastIndexByte(line, '\r'); i >= 0 {
		line = line[i+1:]
	}
	if !strings.ContainsRune(line, '\t') {
		return line
	}
	var b strings.Builder
	col := 0
	for _, r := range line {
		if r == '\t' {
			n := tabStop - col%tabStop
			b.WriteString(strings.Repeat(" ", n))
			col += n
			continue
		}
		b.WriteRune(r)
		col += runewidth.RuneWidth(r)
	}
	return b.String()
}

func (e *Engine) image(b *badge, p *picture.Placement) {
	if p.Overlay == "" {
		for _, l := range p.Lines {
			e.row(b.take(), e.fit(l))
		}
		return
	}
	// Reserve the rows with framed blank lines, lend the cursor to the
	// overlay at the top-left of the reserved area, then return it to the
	// baseline below before any further text.
	for i := 0; i < p.Size.Rows; i++ {
		e.row(b.take(), "")
	}
	e.raw(e.cur.lend(p.Size.Rows, LabelWidth+2, p.Overlay))
}

// wrapped writes a line that may be wider than the content column.
func (e *Engine) wrapped(b *badge, line string) {
	width := e.opts.Geometry.TextWidth()
	if ansi.StringWidth(line) <= width {
		e.row(b.take(), line)
		return
	}
	for _, piece := range strings.Split(ansi.Hardwrap(line, width, true), "\n") {
		e.row(b.take(), e.fit(piece))
	}
}

// fit truncates a single row to the text width.
func (e *Engine) fit(s string) string {
	return ansi.Truncate(s, e.opts.Geometry.TextWidth(), "…")
}

func (e *Engine) row(label, content string) {
	label = runewidth.Truncate(label, LabelWidth, "")
	e.printf("%s%s %s\n",
		lipgloss.PlaceHorizontal(LabelWidth, lipgloss.Center, label),
		e.st.frame.Render("│"),
		content)
}

func (e *Engine) border(junction rune) {
	w := e.opts.Geometry.ContentWidth()
	e.printf("%s\n", e.st.frame.Render(
		strings.Repeat("─", LabelWidth)+string(junction)+strings.Repeat("─", w)))
}

func (e *Engine) subBorder() {
	w := e.opts.Geometry.ContentWidth()
	e.printf("%s%s\n", strings.Repeat(" ", LabelWidth), e.st.frame.Render("├"+strings.Repeat("╌", w)))
}

// raw writes escape sequences that do not advance the baseline.
func (e *Engine) raw(s string) {
	if e.err != nil {
		return
	}
	if _, err := io.WriteString(e.out, s); err != nil {
		e.err = err
	}
}

func (e *Engine) printf(format string, args ...any) {
	if e.err != nil {
		return
	}
	if _, err := fmt.Fprintf(e.out, format, args...); err != nil {
		e.err = err
		return
	}
	e.cur.row++
}
