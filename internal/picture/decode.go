// Package picture decodes the base64 raster payloads stored in notebook
// outputs and prepares them for display inside a terminal cell grid.
package picture

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder
	"math"
	"strings"
	"unicode"

	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"  // Register BMP decoder
	_ "golang.org/x/image/tiff" // Register TIFF decoder
	_ "golang.org/x/image/webp" // Register WebP decoder
)

// Image size limits to prevent memory exhaustion.
const (
	MaxImageWidth  = 8192
	MaxImageHeight = 8192
)

// ErrDecode wraps every failure to turn a payload into an image.
var ErrDecode = errors.New("cannot decode image")

// Decode base64-decodes payload and decodes the raster it holds. Whitespace
// is ignored: nbformat writers end payloads with a newline and some wrap
// them at 76 columns.
func Decode(payload string) (image.Image, error) {
	payload = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, payload)

	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: base64: %v", ErrDecode, err)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if cfg.Width > MaxImageWidth || cfg.Height > MaxImageHeight {
		return nil, fmt.Errorf("%w: image too large: %dx%d (max %dx%d)",
			ErrDecode, cfg.Width, cfg.Height, MaxImageWidth, MaxImageHeight)
	}
	if cfg.Width == 0 || cfg.Height == 0 {
		return nil, fmt.Errorf("%w: empty %s image", ErrDecode, format)
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecode, format, err)
	}
	return img, nil
}

// Size is a footprint in terminal cells.
type Size struct {
	Cols int
	Rows int
}

// Fit scales an image of the given bounds so that it fits within maxCols
// columns and maxRows rows, keeping its aspect ratio. A cell is taken to be
// one pixel wide and two pixels tall. Images are never enlarged.
func Fit(bounds image.Rectangle, maxCols, maxRows int) (image.Point, Size) {
	maxCols, maxRows = max(maxCols, 1), max(maxRows, 1)
	w, h := bounds.Dx(), bounds.Dy()
	if w <= 0 || h <= 0 {
		return image.Point{}, Size{}
	}

	maxW, maxH := float64(maxCols), float64(2*maxRows)
	scale := math.Min(1, math.Min(maxW/float64(w), maxH/float64(h)))

	px := image.Point{
		X: min(max(int(math.Round(float64(w)*scale)), 1), maxCols),
		Y: min(max(int(math.Round(float64(h)*scale)), 1), 2*maxRows),
	}
	return px, Size{Cols: px.X, Rows: (px.Y + 1) / 2}
}

// Resize scales img to exactly w×h pixels.
func Resize(img image.Image, w, h int) *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}
