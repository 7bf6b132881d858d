package processor

import (
	"bytes"
	"context"
	"encoding/binary"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imagekit/src/common"
	"imagekit/src/config"
	"imagekit/src/imageservice"
)

func testImage(w, h int) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	return img
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, testImage(w, h)))
	return buf.Bytes()
}

func decodeSize(t *testing.T, data []byte) (int, int, string) {
	t.Helper()
	cfg, name, err := image.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	return cfg.Width, cfg.Height, name
}

// withOrientation inserts an EXIF APP1 segment carrying only the
// Orientation tag right after the JPEG SOI marker
func withOrientation(jpg []byte, orientation uint16) []byte {
	tiff := []byte{'M', 'M', 0, 0x2a, 0, 0, 0, 8}
	tiff = binary.BigEndian.AppendUint16(tiff, 1)
	tiff = binary.BigEndian.AppendUint16(tiff, 0x0112)
	tiff = binary.BigEndian.AppendUint16(tiff, 3)
	tiff = binary.BigEndian.AppendUint32(tiff, 1)
	tiff = binary.BigEndian.AppendUint16(tiff, orientation)
	tiff = append(tiff, 0, 0, 0, 0, 0, 0)

	payload := append([]byte("Exif\x00\x00"), tiff...)
	app1 := []byte{0xff, 0xe1}
	app1 = binary.BigEndian.AppendUint16(app1, uint16(len(payload)+2))
	app1 = append(app1, payload...)

	out := append([]byte{}, jpg[:2]...)
	out = append(out, app1...)
	return append(out, jpg[2:]...)
}

func jpegBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, testImage(w, h), nil))
	return buf.Bytes()
}

func testProcessor() *Processor {
	cfg := config.Default()
	cfg.Image.Service.Engine = config.EngineImaging
	return NewWithEngine(cfg, NewImagingEngine())
}

func TestNew(t *testing.T) {
	cfg := config.Default()
	cfg.Image.Service.Engine = config.EngineImaging
	p, err := New(cfg)
	require.NoError(t, err)
	assert.Equal(t, "imaging", p.EngineName())

	cfg.Image.Service.Engine = "gd"
	_, err = New(cfg)
	assert.Error(t, err)
}

func TestTransformResize(t *testing.T) {
	input := pngBytes(t, 200, 100)

	tests := []struct {
		name  string
		tr    imageservice.Transform
		wantW int
		wantH int
	}{
		{"width only", imageservice.Transform{Width: 50}, 50, 25},
		{"height only", imageservice.Transform{Height: 20}, 40, 20},
		{"both without fit uses width", imageservice.Transform{Width: 100, Height: 100}, 100, 50},
		{"never enlarges", imageservice.Transform{Width: 400}, 200, 100},
		{"cover crops", imageservice.Transform{Width: 40, Height: 40, Fit: "cover"}, 40, 40},
		{"contain fits inside", imageservice.Transform{Width: 40, Height: 40, Fit: "contain"}, 40, 20},
		{"fill stretches", imageservice.Transform{Width: 30, Height: 60, Fit: "fill"}, 30, 60},
		{"outside covers", imageservice.Transform{Width: 40, Height: 40, Fit: "outside"}, 80, 40},
		{"no resize", imageservice.Transform{}, 200, 100},
	}

	p := testProcessor()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := tt.tr
			tr.Src = "/test.png"
			tr.Format = imageservice.FormatPNG

			out, format, err := p.Transform(context.Background(), input, tr)
			require.NoError(t, err)
			assert.Equal(t, imageservice.FormatPNG, format)

			w, h, name := decodeSize(t, out)
			assert.Equal(t, "png", name)
			assert.Equal(t, tt.wantW, w)
			assert.Equal(t, tt.wantH, h)
		})
	}
}

func TestTransformAutoOrients(t *testing.T) {
	// stored 200x100, displayed 100x200
	input := withOrientation(jpegBytes(t, 200, 100), 6)
	p := testProcessor()

	tests := []struct {
		name  string
		tr    imageservice.Transform
		wantW int
		wantH int
	}{
		{"no resize", imageservice.Transform{}, 100, 200},
		{"width only", imageservice.Transform{Width: 50}, 50, 100},
		{"never enlarges", imageservice.Transform{Width: 150}, 100, 200},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := tt.tr
			tr.Src = "/rotated.jpg"
			tr.Format = imageservice.FormatPNG

			out, _, err := p.Transform(context.Background(), input, tr)
			require.NoError(t, err)
			w, h, _ := decodeSize(t, out)
			assert.Equal(t, tt.wantW, w)
			assert.Equal(t, tt.wantH, h)
		})
	}
}

func TestTransformFormats(t *testing.T) {
	p := testProcessor()
	input := pngBytes(t, 64, 64)

	out, format, err := p.Transform(context.Background(), input, imageservice.Transform{Src: "/a.png", Format: imageservice.FormatJPG, Quality: "low"})
	require.NoError(t, err)
	assert.Equal(t, imageservice.FormatJPEG, format)
	_, _, name := decodeSize(t, out)
	assert.Equal(t, "jpeg", name)

	// no format keeps the source format
	out, format, err = p.Transform(context.Background(), input, imageservice.Transform{Src: "/a.png", Width: 32})
	require.NoError(t, err)
	assert.Equal(t, imageservice.FormatPNG, format)
	_, _, name = decodeSize(t, out)
	assert.Equal(t, "png", name)

	var gifBuf bytes.Buffer
	require.NoError(t, gif.Encode(&gifBuf, testImage(10, 10), nil))
	out, format, err = p.Transform(context.Background(), gifBuf.Bytes(), imageservice.Transform{Src: "/a.gif", Format: imageservice.FormatGIF})
	require.NoError(t, err)
	assert.Equal(t, imageservice.FormatGIF, format)
	_, _, name = decodeSize(t, out)
	assert.Equal(t, "gif", name)

	_, _, err = p.Transform(context.Background(), input, imageservice.Transform{Src: "/a.png", Format: imageservice.FormatAVIF})
	assert.ErrorContains(t, err, "avif")
}

func TestTransformQuality(t *testing.T) {
	p := testProcessor()
	p.cfg.Image.Quality = map[string]int{"jpeg": 42}

	assert.Equal(t, 25, p.quality("low", imageservice.FormatJPEG))
	assert.Equal(t, 90, p.quality("90", imageservice.FormatJPEG))
	assert.Equal(t, 42, p.quality("", imageservice.FormatJPEG))
	assert.Equal(t, fallbackQuality, p.quality("", imageservice.FormatWebP))
	assert.Equal(t, 42, p.quality("bogus", imageservice.FormatJPEG))
}

func TestTransformSVG(t *testing.T) {
	p := testProcessor()
	input := []byte(`<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg"   width="100"   height="50">
  <!-- a comment -->
  <rect x="0" y="0" width="100" height="50" fill="#ff0000" />
</svg>`)

	out, format, err := p.Transform(context.Background(), input, imageservice.Transform{Src: "/logo.svg", Format: imageservice.FormatSVG})
	require.NoError(t, err)
	assert.Equal(t, imageservice.FormatSVG, format)
	assert.Less(t, len(out), len(input))
	assert.NotContains(t, string(out), "a comment")
	assert.Contains(t, string(out), "<svg")

	_, _, err = p.Transform(context.Background(), input, imageservice.Transform{Src: "/logo.svg", Format: imageservice.FormatPNG})
	assert.True(t, common.IsKind(err, common.KindUnsupportedImageConversion))

	_, _, err = p.Transform(context.Background(), pngBytes(t, 4, 4), imageservice.Transform{Src: "/a.png", Format: imageservice.FormatSVG})
	assert.True(t, common.IsKind(err, common.KindUnsupportedImageConversion))
}

func TestTransformErrors(t *testing.T) {
	p := testProcessor()

	_, _, err := p.Transform(context.Background(), []byte("not an image"), imageservice.Transform{Src: "/a.png"})
	assert.True(t, common.IsKind(err, common.KindNoImageMetadata))

	p.cfg.Image.Service.LimitInputPixels = 100
	_, _, err = p.Transform(context.Background(), pngBytes(t, 20, 20), imageservice.Transform{Src: "/a.png"})
	assert.True(t, common.IsKind(err, common.KindImageTooLarge))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err = p.Transform(ctx, pngBytes(t, 2, 2), imageservice.Transform{Src: "/a.png"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProbe(t *testing.T) {
	var jpg bytes.Buffer
	require.NoError(t, jpeg.Encode(&jpg, testImage(30, 20), nil))

	avif := []byte{0, 0, 0, 20, 'f', 't', 'y', 'p', 'a', 'v', 'i', 'f', 0, 0, 0, 0}
	avif = append(avif, []byte("meta....ispe")...)
	avif = append(avif, 0, 0, 0, 0)
	avif = binary.BigEndian.AppendUint32(avif, 640)
	avif = binary.BigEndian.AppendUint32(avif, 480)

	tests := []struct {
		name   string
		data   []byte
		width  int
		height int
		format imageservice.ImageFormat
	}{
		{"png", pngBytes(t, 12, 8), 12, 8, imageservice.FormatPNG},
		{"jpeg", jpg.Bytes(), 30, 20, imageservice.FormatJPEG},
		{"jpeg orientation 3 keeps size", withOrientation(jpg.Bytes(), 3), 30, 20, imageservice.FormatJPEG},
		{"jpeg orientation 6 swaps size", withOrientation(jpg.Bytes(), 6), 20, 30, imageservice.FormatJPEG},
		{"jpeg orientation 8 swaps size", withOrientation(jpg.Bytes(), 8), 20, 30, imageservice.FormatJPEG},
		{"avif", avif, 640, 480, imageservice.FormatAVIF},
		{"svg size", []byte(`<svg xmlns="http://www.w3.org/2000/svg" width="120px" height="60"></svg>`), 120, 60, imageservice.FormatSVG},
		{"svg viewBox", []byte(`<?xml version="1.0"?><svg viewBox="0 0 300 150"></svg>`), 300, 150, imageservice.FormatSVG},
		{"svg relative size", []byte(`<svg width="100%" height="100%" viewBox="0,0,30,10"></svg>`), 30, 10, imageservice.FormatSVG},
		{"svg one side", []byte(`<svg width="240" viewBox="0 0 300 150"></svg>`), 240, 120, imageservice.FormatSVG},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			meta, err := Probe(tt.data)
			require.NoError(t, err)
			assert.Equal(t, tt.width, meta.Width)
			assert.Equal(t, tt.height, meta.Height)
			assert.Equal(t, tt.format, meta.Format)
		})
	}

	meta, err := Probe(withOrientation(jpg.Bytes(), 6))
	require.NoError(t, err)
	assert.Equal(t, 6, meta.Orientation)
}

func TestProbeErrors(t *testing.T) {
	_, err := Probe([]byte("plain text"))
	assert.ErrorIs(t, err, ErrUnknownFormat)

	_, err = Probe([]byte(`<svg xmlns="http://www.w3.org/2000/svg"></svg>`))
	assert.Error(t, err)

	// truncated header
	data := pngBytes(t, 10, 10)
	_, err = Probe(data[:12])
	assert.Error(t, err)
}
