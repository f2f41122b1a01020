package processor

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solid(w, h int, c color.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func encodeJPEG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}))
	return buf.Bytes()
}

func encodeGIF(t *testing.T, frames int) []byte {
	t.Helper()
	palette := color.Palette{color.Black, color.White}
	anim := &gif.GIF{}
	for i := 0; i < frames; i++ {
		anim.Image = append(anim.Image, image.NewPaletted(image.Rect(0, 0, 4, 4), palette))
		anim.Delay = append(anim.Delay, 10)
	}
	var buf bytes.Buffer
	require.NoError(t, gif.EncodeAll(&buf, anim))
	return buf.Bytes()
}

// tiffWithOrientation builds a minimal little-endian TIFF header with one
// IFD entry for the orientation tag.
func tiffWithOrientation(orientation uint16) []byte {
	b := make([]byte, 0, 26)
	b = append(b, 'I', 'I')
	b = binary.LittleEndian.AppendUint16(b, 42)
	b = binary.LittleEndian.AppendUint32(b, 8)
	b = binary.LittleEndian.AppendUint16(b, 1)
	b = binary.LittleEndian.AppendUint16(b, tagOrientation)
	b = binary.LittleEndian.AppendUint16(b, typeShort)
	b = binary.LittleEndian.AppendUint32(b, 1)
	b = binary.LittleEndian.AppendUint16(b, orientation)
	b = binary.LittleEndian.AppendUint16(b, 0)
	b = binary.LittleEndian.AppendUint32(b, 0)
	return b
}

func TestDetect(t *testing.T) {
	tests := []struct {
		name   string
		data   []byte
		format Format
		frames int
	}{
		{"png", encodePNG(t, solid(3, 2, color.White)), FormatPNG, 1},
		{"jpeg", encodeJPEG(t, solid(3, 2, color.White)), FormatJPG, 1},
		{"gif", encodeGIF(t, 1), FormatGIF, 1},
		{"animated gif", encodeGIF(t, 3), FormatGIF, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			det, err := Detect(bytes.NewReader(tt.data))
			require.NoError(t, err)
			assert.Equal(t, tt.format, det.Format)
			assert.Equal(t, tt.format.MIME(), det.MIME)
			assert.Equal(t, tt.frames, det.Frames)
			assert.Equal(t, tt.frames > 1, det.MultiFrame())
		})
	}

	det, err := Detect(bytes.NewReader(encodePNG(t, solid(7, 5, color.White))))
	require.NoError(t, err)
	assert.Equal(t, 7, det.Width)
	assert.Equal(t, 5, det.Height)
}

func TestDetectUnknown(t *testing.T) {
	_, err := Detect(bytes.NewReader([]byte("this is just some text, not an image")))
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestDecodeLayers(t *testing.T) {
	eng := NewNativeEngine()

	data := encodeGIF(t, 3)
	r := bytes.NewReader(data)
	det, err := eng.Detect(r)
	require.NoError(t, err)
	layers, err := eng.Decode(r, det)
	require.NoError(t, err)
	assert.Len(t, layers, 3)

	data = encodePNG(t, solid(4, 4, color.White))
	r = bytes.NewReader(data)
	det, err = eng.Detect(r)
	require.NoError(t, err)
	layers, err = eng.Decode(r, det)
	require.NoError(t, err)
	require.Len(t, layers, 1)
	assert.Equal(t, 4, layers[0].Width())
}

func TestDecodePSDFails(t *testing.T) {
	_, err := NewNativeEngine().Decode(bytes.NewReader([]byte("8BPS")), &Detection{Format: FormatPSD})
	assert.Error(t, err)
}

func TestHasAlpha(t *testing.T) {
	assert.False(t, NewImage(solid(2, 2, color.White)).HasAlpha())
	assert.True(t, NewImage(solid(2, 2, color.NRGBA{R: 255, A: 10})).HasAlpha())
	assert.False(t, NewImage(nil).HasAlpha())
}

func TestAutoWriter(t *testing.T) {
	assert.Equal(t, FormatJPG, AutoWriter{}.Format(NewImage(solid(2, 2, color.White))))
	assert.Equal(t, FormatPNG, AutoWriter{}.Format(NewImage(solid(2, 2, color.Transparent))))
	assert.Equal(t, FormatJPG, JPGWriter{Quality: 30}.Format(NewImage(solid(2, 2, color.Transparent))))
	assert.Equal(t, 30, JPGWriter{Quality: 30}.Options().Quality)
	assert.Equal(t, FormatGIF, FormatWriter{Target: FormatGIF}.Format(nil))
}

func TestEncodeFormats(t *testing.T) {
	eng := NewNativeEngine()
	img := NewImage(solid(6, 6, color.White))

	for _, f := range []Format{FormatJPG, FormatPNG, FormatGIF, FormatBMP, FormatTIF} {
		var buf bytes.Buffer
		require.NoError(t, eng.Encode(&buf, img, f, EncodeOptions{}), f)

		det, err := Detect(bytes.NewReader(buf.Bytes()))
		require.NoError(t, err, f)
		assert.Equal(t, f, det.Format)
	}

	assert.Error(t, eng.Encode(&bytes.Buffer{}, img, FormatWEBP, EncodeOptions{}))
}

func TestJPEGQualityAffectsSize(t *testing.T) {
	eng := NewNativeEngine()
	src := image.NewNRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			src.Set(x, y, color.NRGBA{R: uint8(x * 4), G: uint8(y * 4), B: uint8(x ^ y), A: 255})
		}
	}
	img := NewImage(src)

	var hi, lo bytes.Buffer
	require.NoError(t, eng.Encode(&hi, img, FormatJPG, EncodeOptions{Quality: 95}))
	require.NoError(t, eng.Encode(&lo, img, FormatJPG, EncodeOptions{Quality: 5}))
	assert.Less(t, lo.Len(), hi.Len())
}

func TestExifRoundTrip(t *testing.T) {
	plain := encodeJPEG(t, solid(4, 2, color.White))
	withExif := embedExif(plain, parseExif(tiffWithOrientation(6)))

	x, err := ReadExif(bytes.NewReader(withExif))
	require.NoError(t, err)
	require.NotNil(t, x)
	assert.Equal(t, 6, x.Orientation())

	eng := NewNativeEngine()
	r := bytes.NewReader(withExif)
	det, err := eng.Detect(r)
	require.NoError(t, err)
	layers, err := eng.Decode(r, det)
	require.NoError(t, err)
	require.Len(t, layers, 1)
	assert.Equal(t, 6, layers[0].Orientation())

	layers[0].Exif.SetOrientation(1)
	var out bytes.Buffer
	require.NoError(t, eng.Encode(&out, layers[0], FormatJPG, EncodeOptions{}))

	x, err = ReadExif(bytes.NewReader(out.Bytes()))
	require.NoError(t, err)
	require.NotNil(t, x)
	assert.Equal(t, 1, x.Orientation())
}

func TestReadExifWithoutBlock(t *testing.T) {
	x, err := ReadExif(bytes.NewReader(encodeJPEG(t, solid(2, 2, color.White))))
	require.NoError(t, err)
	assert.Nil(t, x)
	assert.Equal(t, 1, x.Orientation())

	_, err = ReadExif(bytes.NewReader(encodePNG(t, solid(2, 2, color.White))))
	assert.Error(t, err)
}

func TestRelease(t *testing.T) {
	img := NewImage(solid(2, 2, color.White))
	calls := 0
	img.OnRelease(func() { calls++ })

	img.Release()
	img.Release()

	assert.True(t, img.Released())
	assert.Nil(t, img.Pixels())
	assert.Equal(t, 1, calls)
	assert.Error(t, NewNativeEngine().Encode(&bytes.Buffer{}, img, FormatPNG, EncodeOptions{}))
}

func TestParseFormat(t *testing.T) {
	f, ok := ParseFormat("JPEG")
	assert.True(t, ok)
	assert.Equal(t, FormatJPG, f)

	f, ok = ParseFormat(".tiff")
	assert.True(t, ok)
	assert.Equal(t, FormatTIF, f)

	_, ok = ParseFormat("heic")
	assert.False(t, ok)

	list, err := ParseFormats([]string{"png", "gif"})
	require.NoError(t, err)
	assert.Equal(t, []Format{FormatPNG, FormatGIF}, list)
	assert.True(t, ContainsFormat(list, FormatGIF))

	_, err = ParseFormats([]string{"png", "raw"})
	assert.Error(t, err)
}
