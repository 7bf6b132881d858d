package processor

import (
	"bytes"
	"encoding/binary"
	"encoding/xml"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strconv"
	"strings"

	"github.com/rwcarlsen/goexif/exif"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"imagekit/src/imageservice"
)

// ErrUnknownFormat is returned when the data is not a recognised image
var ErrUnknownFormat = errors.New("unknown image format")

// Probe reads the dimensions, format and EXIF orientation of an encoded
// image. Only the header is decoded. Orientations 5-8 are rotated by 90
// degrees, so width and height are reported as displayed.
func Probe(data []byte) (*imageservice.ImageMetadata, error) {
	if isSVG(data) {
		return probeSVG(data)
	}
	if isAVIF(data) {
		return probeAVIF(data)
	}

	cfg, name, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return nil, ErrUnknownFormat
		}
		return nil, fmt.Errorf("failed to decode image header: %w", err)
	}

	meta := &imageservice.ImageMetadata{
		Width:  cfg.Width,
		Height: cfg.Height,
		Format: imageservice.ImageFormat(name),
	}
	if name == "jpeg" || name == "tiff" {
		meta.Orientation = exifOrientation(data)
	}
	if meta.Orientation >= 5 && meta.Orientation <= 8 {
		meta.Width, meta.Height = meta.Height, meta.Width
	}
	return meta, nil
}

func exifOrientation(data []byte) int {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return 0
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 0
	}
	o, err := tag.Int(0)
	if err != nil {
		return 0
	}
	return o
}

func isAVIF(data []byte) bool {
	if len(data) < 12 || string(data[4:8]) != "ftyp" {
		return false
	}
	brand := string(data[8:12])
	return brand == "avif" || brand == "avis"
}

// probeAVIF reads the first image spatial extents (ispe) property
func probeAVIF(data []byte) (*imageservice.ImageMetadata, error) {
	i := bytes.Index(data, []byte("ispe"))
	if i < 0 || i+16 > len(data) {
		return nil, fmt.Errorf("failed to read avif size: %w", errors.New("ispe box not found"))
	}
	// 4 bytes of version and flags precede the sizes
	w := binary.BigEndian.Uint32(data[i+8 : i+12])
	h := binary.BigEndian.Uint32(data[i+12 : i+16])
	return &imageservice.ImageMetadata{
		Width:  int(w),
		Height: int(h),
		Format: imageservice.FormatAVIF,
	}, nil
}

func isSVG(data []byte) bool {
	head := data
	if len(head) > 1024 {
		head = head[:1024]
	}
	head = bytes.TrimSpace(bytes.TrimPrefix(head, []byte("\xef\xbb\xbf")))
	if !bytes.HasPrefix(head, []byte("<")) {
		return false
	}
	return bytes.Contains(head, []byte("<svg"))
}

// probeSVG reads the size from the root element's width and height, falling
// back to the viewBox for whichever is missing or relative.
func probeSVG(data []byte) (*imageservice.ImageMetadata, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = false
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("failed to read svg root: %w", err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if start.Name.Local != "svg" {
			return nil, ErrUnknownFormat
		}

		var width, height float64
		var viewBox []float64
		for _, attr := range start.Attr {
			switch attr.Name.Local {
			case "width":
				width = svgLength(attr.Value)
			case "height":
				height = svgLength(attr.Value)
			case "viewBox":
				viewBox = parseViewBox(attr.Value)
			}
		}
		if len(viewBox) == 4 {
			switch {
			case width == 0 && height == 0:
				width, height = viewBox[2], viewBox[3]
			case width == 0 && viewBox[3] > 0:
				width = height * viewBox[2] / viewBox[3]
			case height == 0 && viewBox[2] > 0:
				height = width * viewBox[3] / viewBox[2]
			}
		}
		if width <= 0 || height <= 0 {
			return nil, errors.New("svg has no width, height or viewBox")
		}
		return &imageservice.ImageMetadata{
			Width:  int(width + 0.5),
			Height: int(height + 0.5),
			Format: imageservice.FormatSVG,
		}, nil
	}
}

// svgLength reads absolute lengths; percentages and em units count as unset
func svgLength(v string) float64 {
	v = strings.TrimSpace(v)
	if strings.HasSuffix(v, "%") || strings.HasSuffix(v, "em") {
		return 0
	}
	v = strings.TrimSuffix(v, "px")
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 {
		return 0
	}
	return f
}

func parseViewBox(v string) []float64 {
	fields := strings.FieldsFunc(v, func(r rune) bool {
		return r == ' ' || r == ',' || r == '\t' || r == '\n'
	})
	if len(fields) != 4 {
		return nil
	}
	out := make([]float64, 0, 4)
	for _, f := range fields {
		n, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil
		}
		out = append(out, n)
	}
	return out
}
