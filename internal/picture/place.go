package picture

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Protocol selects how pixels reach the terminal.
type Protocol int

const (
	// Blocks draws two pixels per cell with coloured half blocks. The result
	// is ordinary text and works in any colour terminal and in the pager.
	Blocks Protocol = iota
	// Kitty transmits a PNG with the kitty graphics protocol.
	Kitty
	// None prints a placeholder instead of the image.
	None
)

func (p Protocol) String() string {
	switch p {
	case Kitty:
		return "kitty"
	case None:
		return "none"
	default:
		return "blocks"
	}
}

// ParseProtocol parses a protocol name as accepted on the command line.
func ParseProtocol(s string) (Protocol, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "blocks":
		return Blocks, nil
	case "kitty":
		return Kitty, nil
	case "none":
		return None, nil
	}
	return Blocks, fmt.Errorf("unknown image protocol %q (use auto|kitty|blocks|none)", s)
}

// DetectProtocol picks Kitty for terminals known to speak the kitty graphics
// protocol and Blocks otherwise.
func DetectProtocol(getenv func(string) string) Protocol {
	if strings.Contains(getenv("TERM"), "kitty") || getenv("KITTY_WINDOW_ID") != "" {
		return Kitty
	}
	switch getenv("TERM_PROGRAM") {
	case "WezTerm", "ghostty":
		return Kitty
	}
	return Blocks
}

// Placement is an image ready to be written. Exactly one of Lines and
// Overlay is set: Lines are text rows to be framed like any other output,
// Overlay is an escape sequence that paints Size.Rows rows starting at the
// cursor without moving it.
type Placement struct {
	Size    Size
	Lines   []string
	Overlay string
}

// Placer turns payloads into placements.
type Placer struct {
	Protocol Protocol
	Renderer *lipgloss.Renderer
}

// Place decodes payload and fits it into maxCols×maxRows cells.
func (p *Placer) Place(payload string, maxCols, maxRows int) (*Placement, error) {
	img, err := Decode(payload)
	if err != nil {
		return nil, err
	}
	px, size := Fit(img.Bounds(), maxCols, maxRows)

	switch p.Protocol {
	case None:
		b := img.Bounds()
		text := fmt.Sprintf("[image %dx%d]", b.Dx(), b.Dy())
		return &Placement{Size: Size{Cols: len(text), Rows: 1}, Lines: []string{text}}, nil
	case Kitty:
		overlay, err := kittyOverlay(img, size)
		if err != nil {
			return nil, err
		}
		return &Placement{Size: size, Overlay: overlay}, nil
	default:
		return &Placement{Size: size, Lines: p.blocks(Resize(img, px.X, px.Y))}, nil
	}
}

const (
	upperHalf = "▀"
	lowerHalf = "▄"
	// pixels below this alpha are left to the terminal background
	opaque = 0x80
)

func (p *Placer) blocks(img *image.NRGBA) []string {
	r := p.Renderer
	if r == nil {
		r = lipgloss.DefaultRenderer()
	}

	b := img.Bounds()
	lines := make([]string, 0, (b.Dy()+1)/2)
	for y := b.Min.Y; y < b.Max.Y; y += 2 {
		var sb strings.Builder
		for x := b.Min.X; x < b.Max.X; x++ {
			top := img.NRGBAAt(x, y)
			var bottom color.NRGBA
			if y+1 < b.Max.Y {
				bottom = img.NRGBAAt(x, y+1)
			}
			switch {
			case top.A < opaque && bottom.A < opaque:
				sb.WriteByte(' ')
			case bottom.A < opaque:
				sb.WriteString(r.NewStyle().Foreground(hex(top)).Render(upperHalf))
			case top.A < opaque:
				sb.WriteString(r.NewStyle().Foreground(hex(bottom)).Render(lowerHalf))
			default:
				sb.WriteString(r.NewStyle().Foreground(hex(top)).Background(hex(bottom)).Render(upperHalf))
			}
		}
		lines = append(lines, sb.String())
	}
	return lines
}

func hex(c color.NRGBA) lipgloss.Color {
	return lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B))
}

// kitty rejects escape payloads longer than this
const kittyChunk = 4096

// Pixels sent per cell. The terminal scales the image into its cells, so
// anything beyond a typical cell size only grows the payload.
const (
	kittyCellWidth  = 10
	kittyCellHeight = 20
)

// kittyOverlay transmits img as PNG and asks the terminal to scale it into
// size cells, keeping the cursor where it is (C=1).
func kittyOverlay(img image.Image, size Size) (string, error) {
	// Fit counts two pixels per row
	px, _ := Fit(img.Bounds(), size.Cols*kittyCellWidth, size.Rows*kittyCellHeight/2)
	if b := img.Bounds(); px.X < b.Dx() || px.Y < b.Dy() {
		img = Resize(img, px.X, px.Y)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("%w: png: %v", ErrDecode, err)
	}
	data := base64.StdEncoding.EncodeToString(buf.Bytes())

	var sb strings.Builder
	for first := true; first || len(data) > 0; first = false {
		n := min(len(data), kittyChunk)
		chunk := data[:n]
		data = data[n:]
		more := 0
		if len(data) > 0 {
			more = 1
		}
		if first {
			fmt.Fprintf(&sb, "\x1b_Ga=T,f=100,q=2,C=1,c=%d,r=%d,m=%d;%s\x1b\\", size.Cols, size.Rows, more, chunk)
		} else {
			fmt.Fprintf(&sb, "\x1b_Gm=%d;%s\x1b\\", more, chunk)
		}
	}
	return sb.String(), nil
}
