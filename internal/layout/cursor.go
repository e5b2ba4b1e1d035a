package layout

import "github.com/charmbracelet/x/ansi"

// cursor tracks the text baseline: the start of the row below the last one
// written. Text rows are the only thing that advance it.
type cursor struct {
	row int
}

// lend returns the sequence that moves the cursor from the baseline up rows
// rows and right to col, runs overlay there, and brings the cursor back to
// the baseline. The overlay must not move the cursor itself.
func (c *cursor) lend(rows, col int, overlay string) string {
	if rows <= 0 {
		return ""
	}
	return ansi.CursorUp(rows) + "\r" + ansi.CursorForward(col) +
		overlay +
		"\r" + ansi.CursorDown(rows)
}
