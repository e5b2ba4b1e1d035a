package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"github.com/muesli/termenv"

	"nbview/internal/layout"
	"nbview/internal/notebook"
	"nbview/internal/picture"
)

// ---------- model ----------

type model struct {
	filename string
	nb       *notebook.Notebook
	opts     layout.Options
	view     viewport.Model

	renderedLines []string
	totalLines    int
	err           error

	// file metadata (for header)
	fileMod  time.Time
	fileSize int64

	// smooth scroll animation
	animating    bool
	targetOffset int
}

func initialModel(filename string, nb *notebook.Notebook, opts layout.Options, mod time.Time, size int64) model {
	v := viewport.New(0, 0)
	v.YPosition = 1

	// Overlays are painted by the terminal, not the viewport, and would not
	// scroll with the text.
	if opts.Images == picture.Kitty {
		opts.Images = picture.Blocks
	}
	if opts.Renderer == nil {
		opts.Renderer = lipgloss.DefaultRenderer()
	}

	return model{
		filename: filename,
		nb:       nb,
		opts:     opts,
		view:     v,
		fileMod:  mod,
		fileSize: size,
	}
}

// ---------- rendering ----------

// recalcRendered lays the notebook out again for a new window size. The
// geometry is fixed for the whole pass, as for a plain render.
func (m *model) recalcRendered(width, height int) {
	bodyHeight := max(height-2, 1) // header + footer

	opts := m.opts
	opts.Geometry = layout.Geometry{Width: width, Height: height}
	var buf bytes.Buffer
	engine, err := layout.New(&buf, opts)
	if err == nil {
		err = engine.Render(m.nb)
	}
	if err != nil {
		m.err = err
		return
	}

	m.renderedLines = strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	m.totalLines = engine.Lines()

	m.view.Width = width
	m.view.Height = bodyHeight
	m.view.SetContent(strings.Join(m.renderedLines, "\n"))
}

// ---------- animation helpers ----------

type scrollTick struct{}

func scrollTicker() tea.Cmd {
	// ~60 FPS; smooth without cooking the CPU
	return tea.Tick(time.Second/60, func(time.Time) tea.Msg { return scrollTick{} })
}

func (m *model) startScrollTo(target int) tea.Cmd {
	maxOffset := max(0, m.totalLines-m.view.Height)
	m.targetOffset = clamp(target, 0, maxOffset)
	if m.view.YOffset == m.targetOffset {
		m.animating = false
		return nil
	}
	m.animating = true
	return scrollTicker()
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ---------- bubbletea plumbing ----------

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.recalcRendered(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case "up", "k":
			return m, m.startScrollTo(m.view.YOffset - 1)
		case "down", "j":
			return m, m.startScrollTo(m.view.YOffset + 1)
		case "pgup", "ctrl+b", "b":
			return m, m.startScrollTo(m.view.YOffset - m.view.Height)
		case "pgdown", "ctrl+f", " ", "f":
			return m, m.startScrollTo(m.view.YOffset + m.view.Height)
		case "home", "g":
			m.animating = false
			m.view.GotoTop()
			return m, nil
		case "end", "G":
			m.animating = false
			m.view.GotoBottom()
			return m, nil
		}

	case scrollTick:
		if !m.animating {
			return m, nil
		}
		cur, tgt := m.view.YOffset, m.targetOffset
		if cur == tgt {
			m.animating = false
			return m, nil
		}
		diff := tgt - cur
		step := diff / 5
		if step == 0 {
			if diff > 0 {
				step = 1
			} else {
				step = -1
			}
		}
		newOff := cur + step
		if (diff > 0 && newOff > tgt) || (diff < 0 && newOff < tgt) {
			newOff = tgt
		}
		m.view.SetYOffset(newOff)
		if newOff == tgt {
			m.animating = false
			return m, nil
		}
		return m, scrollTicker()
	}

	var cmd tea.Cmd
	m.view, cmd = m.view.Update(msg)
	return m, cmd
}

// ---------- view ----------

func (m model) View() string {
	if m.err != nil {
		return fmt.Sprintf("error: %v\n", m.err)
	}
	w := m.view.Width
	if w <= 0 {
		w = layout.DefaultWidth
	}

	right := fmt.Sprintf("%s %s [%s]", m.fileMod.Format(time.RFC3339), humanSize(m.fileSize), colorCaps(m.opts.Renderer.ColorProfile()))
	available := max(w-runewidth.StringWidth(right)-1, 1)
	left := runewidth.Truncate(m.filename, available, "…")
	header := runewidth.FillRight(left, available) + " " + right

	// current line = last visible line, capped at total
	current := min(m.view.YOffset+m.view.Height, m.totalLines)
	if current < 1 && m.totalLines > 0 {
		current = 1
	}
	total := max(1, m.totalLines)

	// progress ratio based on scroll offset (start 0, end 1 at bottom)
	ratio := float64(m.view.YOffset) / float64(max(1, m.totalLines-m.view.Height))
	ratio = min(max(ratio, 0), 1)
	footer := drawProgressBar(w, ratio, fmt.Sprintf(" %d / %d ", current, total))

	return header + "\n" + m.view.View() + "\n" + footer
}

func drawProgressBar(width int, ratio float64, label string) string {
	if width < 3 {
		return strings.Repeat("█", max(width, 0))
	}
	fill := clamp(int(float64(width)*ratio), 0, width)
	bar := []rune(strings.Repeat("█", fill) + strings.Repeat("░", width-fill))

	if len(label) > 0 && len(label) < width {
		start := (width - len(label)) / 2
		for i, r := range []rune(label) {
			if start+i < len(bar) {
				bar[start+i] = r
			}
		}
	}
	return string(bar)
}

// ---------- util ----------

func humanSize(n int64) string {
	u := []string{"B", "KB", "MB", "GB", "TB", "PB"}
	if n < 1024 {
		return fmt.Sprintf("%dB", n)
	}
	f := float64(n)
	i := 0
	for f >= 1024 && i < len(u)-1 {
		f /= 1024
		i++
	}
	return fmt.Sprintf("%.2f%s", f, u[i])
}

func colorCaps(p termenv.Profile) string {
	switch p {
	case termenv.TrueColor:
		return "TC"
	case termenv.ANSI256:
		return "256"
	case termenv.ANSI:
		return "16"
	default:
		return "mono"
	}
}

func runPager(path string, nb *notebook.Notebook, opts layout.Options) error {
	abs, _ := filepath.Abs(path)
	fi, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %w", notebook.ErrFileAccess, err)
	}

	m := initialModel(abs, nb, opts, fi.ModTime(), fi.Size())

	// size to the real terminal BEFORE starting Bubble Tea
	m.recalcRendered(opts.Geometry.Width, opts.Geometry.Height)

	prog := tea.NewProgram(m, tea.WithAltScreen())
	_, err = prog.Run()
	return err
}
