package operator

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Geometry is a parsed ImageMagick resize geometry such as "300x200>",
// "x220", "50%" or "640x480^".
type Geometry struct {
	Width  float64
	Height float64

	Percent     bool
	Exact       bool // !
	ShrinkOnly  bool // >
	EnlargeOnly bool // <
	Fill        bool // ^
}

var geometryPattern = regexp.MustCompile(`^(\d+(?:\.\d+)?)?(?:[xX](\d+(?:\.\d+)?))?([+-]\d+){0,2}$`)

// ParseGeometry accepts the resize subset of the ImageMagick geometry
// syntax. Offsets are accepted and ignored; area ("@") geometries are not
// supported.
func ParseGeometry(s string) (Geometry, error) {
	var g Geometry
	if strings.TrimSpace(s) == "" {
		return g, fmt.Errorf("empty geometry")
	}

	dims := strings.Map(func(r rune) rune {
		switch r {
		case '%':
			g.Percent = true
		case '!':
			g.Exact = true
		case '>':
			g.ShrinkOnly = true
		case '<':
			g.EnlargeOnly = true
		case '^':
			g.Fill = true
		case ' ':
		default:
			return r
		}
		return -1
	}, s)

	m := geometryPattern.FindStringSubmatch(dims)
	if m == nil || (m[1] == "" && m[2] == "") {
		return g, fmt.Errorf("invalid geometry %q", s)
	}
	if m[1] != "" {
		g.Width, _ = strconv.ParseFloat(m[1], 64)
	}
	if m[2] != "" {
		g.Height, _ = strconv.ParseFloat(m[2], 64)
	}
	if g.Width == 0 && g.Height == 0 {
		return g, fmt.Errorf("geometry %q has no usable dimension", s)
	}
	return g, nil
}

// Size computes the target size for an image of w by h pixels.
func (g Geometry) Size(w, h int) (int, int) {
	if w <= 0 || h <= 0 {
		return w, h
	}
	fw, fh := float64(w), float64(h)

	var tw, th float64
	switch {
	case g.Percent:
		sx, sy := g.Width, g.Height
		if sx == 0 {
			sx = sy
		}
		if sy == 0 {
			sy = sx
		}
		tw, th = fw*sx/100, fh*sy/100
	case g.Exact && g.Width > 0 && g.Height > 0:
		tw, th = g.Width, g.Height
	default:
		sx, sy := g.Width/fw, g.Height/fh
		var scale float64
		switch {
		case g.Width == 0:
			scale = sy
		case g.Height == 0:
			scale = sx
		case g.Fill:
			scale = math.Max(sx, sy)
		default:
			scale = math.Min(sx, sy)
		}
		tw, th = fw*scale, fh*scale
	}

	nw, nh := roundDim(tw), roundDim(th)
	if g.ShrinkOnly && nw >= w && nh >= h {
		return w, h
	}
	if g.EnlargeOnly && nw <= w && nh <= h {
		return w, h
	}
	return nw, nh
}

func roundDim(v float64) int {
	if v >= math.MaxInt32 {
		return math.MaxInt32
	}
	n := int(math.Floor(v + 0.5))
	if n < 1 {
		return 1
	}
	return n
}
