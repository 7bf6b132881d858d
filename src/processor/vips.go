package processor

import (
	"fmt"

	"github.com/h2non/bimg"

	"imagekit/src/imageservice"
)

var vipsTypes = map[imageservice.ImageFormat]bimg.ImageType{
	imageservice.FormatJPEG: bimg.JPEG,
	imageservice.FormatPNG:  bimg.PNG,
	imageservice.FormatWebP: bimg.WEBP,
	imageservice.FormatAVIF: bimg.AVIF,
	imageservice.FormatGIF:  bimg.GIF,
	imageservice.FormatTIFF: bimg.TIFF,
}

// VipsEngine transforms images with libvips through bimg.
// EXIF orientation is applied by libvips before resizing.
type VipsEngine struct{}

func NewVipsEngine() *VipsEngine {
	return &VipsEngine{}
}

func (e *VipsEngine) Name() string {
	return "vips"
}

func (e *VipsEngine) Transform(input []byte, plan resizePlan, format imageservice.ImageFormat, quality int) ([]byte, error) {
	typ, ok := vipsTypes[format]
	if !ok {
		return nil, fmt.Errorf("vips cannot encode %s", format)
	}

	opts := bimg.Options{
		Type:          typ,
		Quality:       quality,
		StripMetadata: true,
	}
	switch plan.Mode {
	case resizeScale, resizeFill:
		opts.Width = plan.Width
		opts.Height = plan.Height
		opts.Force = true
	case resizeCover:
		opts.Width = plan.Width
		opts.Height = plan.Height
		opts.Crop = true
		opts.Gravity = vipsGravity(plan.Anchor)
	}
	out, err := bimg.NewImage(input).Process(opts)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// vipsGravity maps an anchor onto libvips' compass gravities. libvips has
// no corner gravities, so the vertical component wins.
func vipsGravity(a anchor) bimg.Gravity {
	switch {
	case a.Vertical < 0:
		return bimg.GravityNorth
	case a.Vertical > 0:
		return bimg.GravitySouth
	case a.Horizontal < 0:
		return bimg.GravityWest
	case a.Horizontal > 0:
		return bimg.GravityEast
	}
	return bimg.GravityCentre
}
