package icon

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"strconv"
	"strings"

	"remix/internal/config"
)

// Default palette and geometry, matching the shipped app icon.
var (
	defaultBackgroundTop    = color.NRGBA{R: 0x2C, G: 0x2F, B: 0x38, A: 0xFF}
	defaultBackgroundBottom = color.NRGBA{R: 0x12, G: 0x15, B: 0x1B, A: 0xFF}
	defaultWave             = color.NRGBA{R: 0xE8, G: 0xEE, B: 0xF6, A: 0xFF}
)

const defaultCornerRatio = 0.2

// Bar layout relative to the icon size. The five bars are centered with
// rounded caps on both ends.
var barHeights = [5]float64{0.35, 0.6, 0.82, 0.6, 0.35}

const (
	barWidthRatio = 0.09
	barGapRatio   = 0.06
)

// Params control icon rendering. Zero values take the app defaults.
type Params struct {
	BackgroundTop    color.NRGBA
	BackgroundBottom color.NRGBA
	Wave             color.NRGBA
	CornerRatio      float64
}

func (p Params) withDefaults() Params {
	if p.BackgroundTop.A == 0 {
		p.BackgroundTop = defaultBackgroundTop
	}
	if p.BackgroundBottom.A == 0 {
		p.BackgroundBottom = defaultBackgroundBottom
	}
	if p.Wave.A == 0 {
		p.Wave = defaultWave
	}
	if p.CornerRatio <= 0 || p.CornerRatio > 0.5 {
		p.CornerRatio = defaultCornerRatio
	}
	return p
}

// ParamsFromConfig builds rendering parameters from the [icon] section.
func ParamsFromConfig(cfg *config.Config) (Params, error) {
	var params Params
	var err error
	if params.BackgroundTop, err = ParseHexColor(cfg.Icon.BackgroundTop); err != nil {
		return Params{}, err
	}
	if params.BackgroundBottom, err = ParseHexColor(cfg.Icon.BackgroundBottom); err != nil {
		return Params{}, err
	}
	if params.Wave, err = ParseHexColor(cfg.Icon.Wave); err != nil {
		return Params{}, err
	}
	params.CornerRatio = cfg.Icon.CornerRatio
	return params, nil
}

// ParseHexColor parses #RRGGBB into an opaque color.
func ParseHexColor(s string) (color.NRGBA, error) {
	raw := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(raw) != 6 {
		return color.NRGBA{}, fmt.Errorf("color %q: want #RRGGBB", s)
	}
	v, err := strconv.ParseUint(raw, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("color %q: %w", s, err)
	}
	return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xFF}, nil
}

// Draw renders the app icon at size x size pixels.
func Draw(size int, params Params) *image.RGBA {
	params = params.withDefaults()
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	if size <= 0 {
		return img
	}

	radius := params.CornerRatio * float64(size)
	bars := barGeometry(size)
	top, bottom, wave := params.BackgroundTop, params.BackgroundBottom, params.Wave

	for y := 0; y < size; y++ {
		t := 0.0
		if size > 1 {
			t = float64(y) / float64(size-1)
		}
		bgR := lerp(float64(top.R), float64(bottom.R), t)
		bgG := lerp(float64(top.G), float64(bottom.G), t)
		bgB := lerp(float64(top.B), float64(bottom.B), t)

		for x := 0; x < size; x++ {
			px := float64(x) + 0.5
			py := float64(y) + 0.5
			mask := roundedRectCoverage(px, py, float64(size), radius)
			if mask <= 0 {
				continue
			}
			r, g, b := bgR, bgG, bgB
			if a := barsCoverage(bars, px, py); a > 0 {
				r = lerp(r, float64(wave.R), a)
				g = lerp(g, float64(wave.G), a)
				b = lerp(b, float64(wave.B), a)
			}
			// Premultiplied by the rounded-rect coverage.
			img.SetRGBA(x, y, color.RGBA{
				R: uint8(r*mask + 0.5),
				G: uint8(g*mask + 0.5),
				B: uint8(b*mask + 0.5),
				A: uint8(mask*255 + 0.5),
			})
		}
	}
	return img
}

// capsule is one waveform bar: a vertical segment stroked with a round cap
// radius.
type capsule struct {
	cx     float64
	top    float64
	bottom float64
	radius float64
}

func barGeometry(size int) []capsule {
	s := float64(size)
	width := barWidthRatio * s
	gap := barGapRatio * s
	total := 5*width + 4*gap
	x := (s - total) / 2
	cy := s / 2

	bars := make([]capsule, 0, len(barHeights))
	for _, h := range barHeights {
		radius := width / 2
		half := h*s/2 - radius
		if half < 0 {
			half = 0
		}
		bars = append(bars, capsule{cx: x + radius, top: cy - half, bottom: cy + half, radius: radius})
		x += width + gap
	}
	return bars
}

func barsCoverage(bars []capsule, px, py float64) float64 {
	cover := 0.0
	for _, c := range bars {
		cy := py
		if cy < c.top {
			cy = c.top
		}
		if cy > c.bottom {
			cy = c.bottom
		}
		d := math.Hypot(px-c.cx, py-cy)
		if a := clamp(c.radius-d+0.5, 0, 1); a > cover {
			cover = a
		}
	}
	return cover
}

// roundedRectCoverage returns soft-edged coverage of the size x size rounded
// rectangle for the pixel centered at (px, py).
func roundedRectCoverage(px, py, size, radius float64) float64 {
	x, y := px, py
	if x > size/2 {
		x = size - x
	}
	if y > size/2 {
		y = size - y
	}
	if x >= radius || y >= radius {
		return clamp(math.Min(x, y)+0.5, 0, 1)
	}
	d := math.Hypot(radius-x, radius-y)
	return clamp(radius-d+0.5, 0, 1)
}

func lerp(a, b, t float64) float64 { return a + (b-a)*t }

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
