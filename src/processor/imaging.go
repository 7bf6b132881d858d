package processor

import (
	"bytes"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"github.com/kolesa-team/go-webp/encoder"
	"github.com/kolesa-team/go-webp/webp"

	"imagekit/src/imageservice"
)

// ImagingEngine transforms images in Go with disintegration/imaging.
// WebP output goes through libwebp; AVIF is not supported.
type ImagingEngine struct {
	filter imaging.ResampleFilter
}

func NewImagingEngine() *ImagingEngine {
	return &ImagingEngine{filter: imaging.Lanczos}
}

func (e *ImagingEngine) Name() string {
	return "imaging"
}

func (e *ImagingEngine) Transform(input []byte, plan resizePlan, format imageservice.ImageFormat, quality int) ([]byte, error) {
	if format == imageservice.FormatAVIF {
		return nil, fmt.Errorf("imaging engine cannot encode avif")
	}

	img, err := imaging.Decode(bytes.NewReader(input), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode: %w", err)
	}

	switch plan.Mode {
	case resizeScale, resizeFill:
		img = imaging.Resize(img, plan.Width, plan.Height, e.filter)
	case resizeCover:
		img = imaging.Fill(img, plan.Width, plan.Height, imagingAnchor(plan.Anchor), e.filter)
	}

	var buf bytes.Buffer
	if err := encode(&buf, img, format, quality); err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", format, err)
	}
	return buf.Bytes(), nil
}

func encode(buf *bytes.Buffer, img image.Image, format imageservice.ImageFormat, quality int) error {
	switch format {
	case imageservice.FormatWebP:
		opts, err := encoder.NewLossyEncoderOptions(encoder.PresetDefault, float32(quality))
		if err != nil {
			return err
		}
		return webp.Encode(buf, img, opts)
	case imageservice.FormatJPEG:
		return imaging.Encode(buf, img, imaging.JPEG, imaging.JPEGQuality(quality))
	case imageservice.FormatPNG:
		return imaging.Encode(buf, img, imaging.PNG)
	case imageservice.FormatGIF:
		return imaging.Encode(buf, img, imaging.GIF)
	case imageservice.FormatTIFF:
		return imaging.Encode(buf, img, imaging.TIFF)
	}
	return fmt.Errorf("unsupported output format %s", format)
}

func imagingAnchor(a anchor) imaging.Anchor {
	anchors := [3][3]imaging.Anchor{
		{imaging.TopLeft, imaging.Top, imaging.TopRight},
		{imaging.Left, imaging.Center, imaging.Right},
		{imaging.BottomLeft, imaging.Bottom, imaging.BottomRight},
	}
	return anchors[a.Vertical+1][a.Horizontal+1]
}
