package imageservice

import (
	"context"
	"errors"
	"math"

	"imagekit/src/common"
)

// SrcSet holds the srcset candidates and the rendered attribute value
type SrcSet struct {
	Values    []SrcSetValue `json:"values"`
	Attribute string        `json:"attribute"`
}

// Image is everything needed to render an img element
type Image struct {
	RawOptions Options           `json:"-"`
	Options    Options           `json:"-"`
	Src        string            `json:"src"`
	SrcSet     SrcSet            `json:"srcset"`
	Attributes map[string]string `json:"attributes"`
}

// GetImage validates opts and resolves the URL, srcset and attributes
func (s *Service) GetImage(ctx context.Context, opts Options) (*Image, error) {
	raw := opts.Clone()

	resolved, err := s.resolveSize(ctx, opts.Clone())
	if err != nil {
		return nil, err
	}

	validated, err := s.ValidateOptions(resolved)
	if err != nil {
		return nil, err
	}

	values := s.GetSrcSet(validated)
	for i := range values {
		values[i].URL = s.GetURL(values[i].Options)
	}

	return &Image{
		RawOptions: raw,
		Options:    validated,
		Src:        s.GetURL(validated),
		SrcSet: SrcSet{
			Values:    values,
			Attribute: SrcSetAttribute(values),
		},
		Attributes: s.GetHTMLAttributes(validated),
	}, nil
}

// resolveSize fills missing remote dimensions when InferSize is set.
// A single given side is kept and the other follows the remote aspect ratio.
func (s *Service) resolveSize(ctx context.Context, opts Options) (Options, error) {
	if !opts.InferSize || opts.Src.IsLocal() || opts.Src.IsZero() {
		return opts, nil
	}
	opts.InferSize = false
	if opts.Width > 0 && opts.Height > 0 {
		return opts, nil
	}
	if s.sizer == nil {
		return opts, common.NewFailedToFetchRemoteImageDimensionsError(opts.Src.Remote, errors.New("no remote sizer configured"))
	}

	meta, err := s.sizer.InferRemoteSize(ctx, opts.Src.Remote)
	if err != nil {
		return opts, err
	}
	if meta.Width <= 0 || meta.Height <= 0 {
		return opts, common.NewFailedToFetchRemoteImageDimensionsError(opts.Src.Remote, errors.New("probe returned no size"))
	}

	switch {
	case opts.Width == 0 && opts.Height == 0:
		opts.Width, opts.Height = meta.Width, meta.Height
	case opts.Height == 0:
		opts.Height = int(math.Round(float64(opts.Width) * float64(meta.Height) / float64(meta.Width)))
	default:
		opts.Width = int(math.Round(float64(opts.Height) * float64(meta.Width) / float64(meta.Height)))
	}
	return opts, nil
}

// PictureSource is one source element of a picture
type PictureSource struct {
	Type   string `json:"type"`
	SrcSet string `json:"srcset"`
	Sizes  string `json:"sizes,omitempty"`
}

// Picture is a set of format alternatives plus a fallback img
type Picture struct {
	Sources  []PictureSource `json:"sources"`
	Fallback *Image          `json:"fallback"`
}

// formats that make a better fallback than png when the source already uses them
var specialFallbackFormats = []ImageFormat{FormatGIF, FormatSVG, FormatJPG, FormatJPEG}

// GetPicture resolves one source per format and a fallback image.
// formats defaults to the configured picture formats, fallback to png.
func (s *Service) GetPicture(ctx context.Context, opts Options, formats []ImageFormat, fallback ImageFormat) (*Picture, error) {
	if len(formats) == 0 {
		for _, f := range s.cfg.Image.Formats {
			formats = append(formats, ImageFormat(f))
		}
	}
	if fallback == "" {
		fallback = FormatPNG
		if opts.Src.IsLocal() && containsFormat(specialFallbackFormats, opts.Src.Local.Format) {
			fallback = opts.Src.Local.Format
		}
	}

	// probe once for every format
	resolved, err := s.resolveSize(ctx, opts.Clone())
	if err != nil {
		return nil, err
	}

	pic := &Picture{}
	for _, f := range formats {
		o := resolved.Clone()
		o.Format = f
		img, err := s.GetImage(ctx, o)
		if err != nil {
			return nil, err
		}

		srcset := img.SrcSet.Attribute
		if len(img.Options.Widths) == 0 {
			srcset = img.Src
			if img.SrcSet.Attribute != "" {
				srcset += ", " + img.SrcSet.Attribute
			}
		}
		pic.Sources = append(pic.Sources, PictureSource{
			Type:   img.Options.Format.MIMEType(),
			SrcSet: srcset,
			Sizes:  img.Attributes["sizes"],
		})
	}

	fb := resolved.Clone()
	fb.Format = fallback
	pic.Fallback, err = s.GetImage(ctx, fb)
	if err != nil {
		return nil, err
	}
	return pic, nil
}
