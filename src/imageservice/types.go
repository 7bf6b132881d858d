// Package imageservice validates image transform options, encodes them into
// endpoint URLs and back, and computes the dimensions, srcset candidates and
// HTML attributes a page needs. Pixel work is delegated to a Transformer.
package imageservice

import (
	"context"
	"strings"
)

// ImageFormat is an image file format name as used in URLs and file extensions
type ImageFormat string

const (
	FormatJPEG ImageFormat = "jpeg"
	FormatJPG  ImageFormat = "jpg"
	FormatPNG  ImageFormat = "png"
	FormatTIFF ImageFormat = "tiff"
	FormatWebP ImageFormat = "webp"
	FormatGIF  ImageFormat = "gif"
	FormatSVG  ImageFormat = "svg"
	FormatAVIF ImageFormat = "avif"
)

// DefaultOutputFormat is used when no format is requested
const DefaultOutputFormat = FormatWebP

var (
	SupportedInputFormats = []ImageFormat{FormatJPEG, FormatJPG, FormatPNG, FormatTIFF, FormatWebP, FormatGIF, FormatSVG, FormatAVIF}
	ValidOutputFormats    = []ImageFormat{FormatAVIF, FormatPNG, FormatWebP, FormatJPEG, FormatJPG, FormatSVG}
)

func (f ImageFormat) IsSupportedInput() bool {
	return containsFormat(SupportedInputFormats, f)
}

func (f ImageFormat) IsValidOutput() bool {
	return containsFormat(ValidOutputFormats, f)
}

// Normalize maps aliases to their canonical name (jpg -> jpeg)
func (f ImageFormat) Normalize() ImageFormat {
	f = ImageFormat(strings.ToLower(string(f)))
	if f == FormatJPG {
		return FormatJPEG
	}
	return f
}

// MIMEType returns the Content-Type for the format
func (f ImageFormat) MIMEType() string {
	switch f.Normalize() {
	case FormatSVG:
		return "image/svg+xml"
	case "":
		return "application/octet-stream"
	default:
		return "image/" + string(f.Normalize())
	}
}

func containsFormat(list []ImageFormat, f ImageFormat) bool {
	for _, v := range list {
		if v == f {
			return true
		}
	}
	return false
}

func formatNames(list []ImageFormat) []string {
	names := make([]string, len(list))
	for i, f := range list {
		names[i] = string(f)
	}
	return names
}

// ImageMetadata describes a source image whose intrinsic size is known
type ImageMetadata struct {
	Src         string      `json:"src"`
	Width       int         `json:"width"`
	Height      int         `json:"height"`
	Format      ImageFormat `json:"format"`
	Orientation int         `json:"orientation,omitempty"`
}

// Source is either a local image with metadata or a remote/public path
type Source struct {
	Local  *ImageMetadata
	Remote string
}

func LocalSource(meta *ImageMetadata) Source { return Source{Local: meta} }

func RemoteSource(src string) Source { return Source{Remote: src} }

func (s Source) IsLocal() bool { return s.Local != nil }

func (s Source) IsZero() bool { return s.Local == nil && s.Remote == "" }

// String returns the path or URL the source refers to
func (s Source) String() string {
	if s.Local != nil {
		return s.Local.Src
	}
	return s.Remote
}

// Layout controls generated widths and the sizes attribute
type Layout string

const (
	LayoutNone        Layout = "none"
	LayoutConstrained Layout = "constrained"
	LayoutFullWidth   Layout = "full-width"
	LayoutFixed       Layout = "fixed"
)

// Options is what a page asks for when rendering an image
type Options struct {
	Src       Source
	Width     int
	Height    int
	Format    ImageFormat
	Quality   string
	Densities []string
	Widths    []int
	Layout    Layout
	Fit       string
	Position  string
	InferSize bool
	Priority  bool

	// Attributes are passed through to the rendered element (alt, class, sizes, ...)
	Attributes map[string]string
}

// Clone returns a deep copy of o
func (o Options) Clone() Options {
	c := o
	if o.Src.Local != nil {
		meta := *o.Src.Local
		c.Src.Local = &meta
	}
	if o.Densities != nil {
		c.Densities = append([]string(nil), o.Densities...)
	}
	if o.Widths != nil {
		c.Widths = append([]int(nil), o.Widths...)
	}
	if o.Attributes != nil {
		c.Attributes = make(map[string]string, len(o.Attributes))
		for k, v := range o.Attributes {
			c.Attributes[k] = v
		}
	}
	return c
}

// Transform returns the part of o that is encoded into an endpoint URL
func (o Options) Transform() Transform {
	return Transform{
		Src:      o.Src.String(),
		Width:    o.Width,
		Height:   o.Height,
		Format:   o.Format,
		Quality:  o.Quality,
		Fit:      o.Fit,
		Position: o.Position,
	}
}

// Transform is a single resize/convert request
type Transform struct {
	Src      string      `json:"src"`
	Width    int         `json:"width,omitempty"`
	Height   int         `json:"height,omitempty"`
	Format   ImageFormat `json:"format,omitempty"`
	Quality  string      `json:"quality,omitempty"`
	Fit      string      `json:"fit,omitempty"`
	Position string      `json:"position,omitempty"`
}

type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// SrcSetValue is one srcset candidate
type SrcSetValue struct {
	Options    Options           `json:"-"`
	Descriptor string            `json:"descriptor"`
	URL        string            `json:"url"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Transformer performs the actual pixel transform
type Transformer interface {
	Transform(ctx context.Context, input []byte, t Transform) ([]byte, ImageFormat, error)
}

// Prober reads image metadata from encoded bytes
type Prober interface {
	Probe(data []byte) (*ImageMetadata, error)
}

// RemoteSizer determines the intrinsic size of a remote image
type RemoteSizer interface {
	InferRemoteSize(ctx context.Context, src string) (*ImageMetadata, error)
}
