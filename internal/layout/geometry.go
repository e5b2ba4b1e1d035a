package layout

import (
	"os"

	"github.com/mattn/go-isatty"
	"golang.org/x/term"
)

// Fallback geometry when the output is not a terminal.
const (
	DefaultWidth  = 80
	DefaultHeight = 24
)

// LabelWidth is the width of the label column.
const LabelWidth = 7

// the smallest frame that still leaves one content column
const minWidth = LabelWidth + 3

// Geometry is the terminal size, captured once per render.
type Geometry struct {
	Width  int
	Height int
}

// DetectGeometry reads the size of the terminal behind f, falling back to
// DefaultWidth×DefaultHeight.
func DetectGeometry(f *os.File) Geometry {
	g := Geometry{Width: DefaultWidth, Height: DefaultHeight}
	if !IsTerminal(f) {
		return g
	}
	if w, h, err := term.GetSize(int(f.Fd())); err == nil && w > 0 && h > 0 {
		g.Width, g.Height = w, h
	}
	return g
}

// IsTerminal reports whether f is a terminal, including cygwin ptys.
func IsTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (g Geometry) normalized() Geometry {
	return Geometry{Width: max(g.Width, minWidth), Height: max(g.Height, 2)}
}

// ContentWidth is the width right of the column separator.
func (g Geometry) ContentWidth() int {
	return g.Width - LabelWidth - 1
}

// TextWidth is the width available to text, which is preceded by a space.
func (g Geometry) TextWidth() int {
	return g.ContentWidth() - 1
}

// ImageBox is the largest image footprint: the content column less a
// margin, and half the terminal height so following cells stay in view.
func (g Geometry) ImageBox() (cols, rows int) {
	return max(g.ContentWidth()-imageMargin, 1), max(g.Height/2, 1)
}
