package markdown

import (
	"fmt"
	"iter"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/termenv"
)

// glamour subtracts block margins from the wrap width as unsigned integers,
// so it is never given less than this.
const minWrap = 20

const resetStyle = "\x1b[0m"

// Line is one wrapped display line with its inline styling as SGR codes.
type Line struct {
	Text string
}

// Plain is the line without escape sequences.
func (l Line) Plain() string { return ansi.Strip(l.Text) }

// Width is the number of terminal columns the line occupies.
func (l Line) Width() int { return ansi.StringWidth(l.Text) }

// Options configure a Reflower.
type Options struct {
	Width   int
	Style   string // glamour style name, "auto", or a JSON style file
	Profile termenv.Profile
}

// Reflower renders markdown with glamour and guarantees that no line is
// wider than its width: lines glamour leaves long (fenced code, long words)
// are hard-wrapped.
type Reflower struct {
	width int
	tr    *glamour.TermRenderer
}

func NewReflower(opts Options) (*Reflower, error) {
	width := max(opts.Width, 1)

	style, err := styleOption(opts.Style, opts.Profile)
	if err != nil {
		return nil, err
	}
	tr, err := glamour.NewTermRenderer(
		style,
		glamour.WithWordWrap(max(width, minWrap)),
		glamour.WithColorProfile(opts.Profile),
	)
	if err != nil {
		return nil, err
	}
	return &Reflower{width: width, tr: tr}, nil
}

// Reflow renders text and returns its lines. The sequence is single-use.
func (r *Reflower) Reflow(text string) (iter.Seq[Line], error) {
	out, err := r.tr.Render(text)
	if err != nil {
		return nil, fmt.Errorf("render markdown: %w", err)
	}

	rows := strings.Split(out, "\n")
	first, last := 0, len(rows)
	for first < last && isBlank(rows[first]) {
		first++
	}
	for last > first && isBlank(rows[last-1]) {
		last--
	}
	rows = rows[first:last]

	return func(yield func(Line) bool) {
		for _, row := range rows {
			for _, piece := range r.wrap(trimPadding(row)) {
				if !yield(Line{Text: piece}) {
					return
				}
			}
		}
	}, nil
}

func (r *Reflower) wrap(row string) []string {
	if ansi.StringWidth(row) <= r.width {
		return []string{row}
	}
	pieces := strings.Split(ansi.Hardwrap(row, r.width, true), "\n")
	for i, p := range pieces {
		// a double-width rune cannot be split at a width of one
		if ansi.StringWidth(p) > r.width {
			pieces[i] = ansi.Truncate(p, r.width, "")
		}
	}
	return pieces
}

func isBlank(s string) bool {
	return strings.TrimSpace(ansi.Strip(s)) == ""
}

// trimPadding drops the spaces glamour pads each block line with.
func trimPadding(s string) string {
	plain := ansi.Strip(s)
	trimmed := strings.TrimRight(plain, " ")
	if len(trimmed) == len(plain) {
		return s
	}
	out := ansi.Truncate(s, ansi.StringWidth(trimmed), "")
	if strings.Contains(s, "\x1b[") {
		out += resetStyle
	}
	return out
}

func styleOption(name string, profile termenv.Profile) (glamour.TermRendererOption, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || key == "auto" {
		switch {
		case profile == termenv.Ascii:
			key = styles.NoTTYStyle
		case termenv.HasDarkBackground():
			key = styles.DarkStyle
		default:
			key = styles.LightStyle
		}
	}

	if cfg, ok := styles.DefaultStyles[key]; ok {
		c := *cfg
		zero := uint(0)
		c.Document.Margin = &zero
		return glamour.WithStyles(c), nil
	}
	if _, err := os.Stat(name); err == nil {
		return glamour.WithStylesFromJSONFile(name), nil
	}
	return nil, fmt.Errorf("unknown style %q", name)
}
