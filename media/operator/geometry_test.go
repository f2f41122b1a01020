package operator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeometrySize(t *testing.T) {
	tests := []struct {
		geometry string
		w, h     int
		wantW    int
		wantH    int
	}{
		{"50x50", 100, 50, 50, 25},
		{"50", 100, 50, 50, 25},
		{"x220", 440, 880, 110, 220},
		{"50x50!", 100, 50, 50, 50},
		{"50x50^", 100, 50, 100, 50},
		{"200x200>", 100, 50, 100, 50},
		{"50x50>", 100, 50, 50, 25},
		{"200x200<", 100, 50, 200, 100},
		{"50x50<", 100, 50, 100, 50},
		{"50%", 100, 50, 50, 25},
		{"50x200%", 100, 50, 50, 100},
		{"1x1", 1000, 10, 1, 1},
		{"512x512+10+10", 1024, 1024, 512, 512},
	}

	for _, tt := range tests {
		t.Run(tt.geometry, func(t *testing.T) {
			g, err := ParseGeometry(tt.geometry)
			require.NoError(t, err)
			w, h := g.Size(tt.w, tt.h)
			assert.Equal(t, tt.wantW, w, "width")
			assert.Equal(t, tt.wantH, h, "height")
		})
	}
}

func TestParseGeometryRejects(t *testing.T) {
	for _, s := range []string{"", "  ", "abc", "x", "0x0", "10x10x10", "@10000"} {
		_, err := ParseGeometry(s)
		assert.Error(t, err, s)
	}
}

func TestParseColor(t *testing.T) {
	c, err := ParseColor("White")
	require.NoError(t, err)
	assert.Equal(t, uint8(255), c.R)
	assert.Equal(t, uint8(255), c.A)

	c, err = ParseColor("#f00")
	require.NoError(t, err)
	assert.Equal(t, [4]uint8{255, 0, 0, 255}, [4]uint8{c.R, c.G, c.B, c.A})

	c, err = ParseColor("00ff0080")
	require.NoError(t, err)
	assert.Equal(t, [4]uint8{0, 255, 0, 128}, [4]uint8{c.R, c.G, c.B, c.A})

	c, err = ParseColor("transparent")
	require.NoError(t, err)
	assert.Equal(t, uint8(0), c.A)

	for _, s := range []string{"", "#12", "#gggggg", "not-a-color"} {
		_, err := ParseColor(s)
		assert.Error(t, err, s)
	}
}
