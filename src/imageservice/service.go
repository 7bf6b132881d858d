package imageservice

import (
	"strconv"
	"strings"

	"imagekit/src/common"
	"imagekit/src/config"
)

// Service implements option validation, URL encoding and srcset generation
type Service struct {
	cfg       *config.Config
	name      string
	collector *Collector
	sizer     RemoteSizer
}

// NewService creates a new image service named after the configured engine
func NewService(cfg *config.Config) *Service {
	return &Service{
		cfg:  cfg,
		name: cfg.Image.Service.Engine,
	}
}

// SetCollector switches the service into static build mode: URLs point at
// hashed output files and every transform is recorded in c.
func (s *Service) SetCollector(c *Collector) {
	s.collector = c
}

// SetRemoteSizer sets the sizer used for InferSize requests
func (s *Service) SetRemoteSizer(sizer RemoteSizer) {
	s.sizer = sizer
}

// Name identifies the service in transform hashes
func (s *Service) Name() string {
	return s.name
}

// IsRemoteAllowed reports whether src matches the configured domains or remote patterns
func (s *Service) IsRemoteAllowed(src string) bool {
	return common.IsRemoteAllowed(src, s.cfg.Image.Domains, s.cfg.Image.RemotePatterns)
}

// ValidateOptions checks opts and returns a normalized copy
func (s *Service) ValidateOptions(opts Options) (Options, error) {
	opts = opts.Clone()
	src := opts.Src

	if src.IsZero() {
		return opts, common.NewExpectedImageError("")
	}
	if opts.Width < 0 {
		return opts, common.NewInvalidImageDimensionError("width", opts.Width)
	}
	if opts.Height < 0 {
		return opts, common.NewInvalidImageDimensionError("height", opts.Height)
	}
	opts.Format = ImageFormat(strings.ToLower(string(opts.Format)))

	if !src.IsLocal() {
		remote := src.Remote
		if strings.HasPrefix(remote, "/@fs/") || (!common.IsRemotePath(remote) && !strings.HasPrefix(remote, "/")) {
			return opts, common.NewLocalImageUsedWronglyError(remote)
		}
		if missing := missingDimension(opts.Width, opts.Height); missing != "" {
			return opts, common.NewMissingImageDimensionError(missing, remote)
		}
	} else {
		meta := src.Local
		meta.Format = ImageFormat(strings.ToLower(string(meta.Format)))
		if !meta.Format.IsSupportedInput() {
			return opts, common.NewUnsupportedImageFormatError(string(meta.Format), meta.Src, formatNames(SupportedInputFormats))
		}
		if len(opts.Widths) > 0 && len(opts.Densities) > 0 {
			return opts, common.NewIncompatibleDescriptorOptionsError()
		}
		// SVGs are never rasterized
		if meta.Format == FormatSVG {
			opts.Format = FormatSVG
		}
		if opts.Format != "" && (meta.Format == FormatSVG) != (opts.Format == FormatSVG) {
			return opts, common.NewUnsupportedImageConversionError(string(meta.Format), string(opts.Format))
		}
		// a gif stays a gif when asked to
		if opts.Format == FormatGIF && meta.Format == FormatGIF {
			return s.finishValidation(opts)
		}
	}

	if opts.Format == "" {
		opts.Format = DefaultOutputFormat
	}
	if !opts.Format.IsValidOutput() {
		return opts, common.NewUnsupportedImageFormatError(string(opts.Format), src.String(), formatNames(ValidOutputFormats))
	}
	return s.finishValidation(opts)
}

func (s *Service) finishValidation(opts Options) (Options, error) {
	if opts.Quality != "" {
		if _, ok := ParseQuality(opts.Quality); !ok {
			return opts, common.NewInvalidImageQualityError(opts.Quality)
		}
	}
	for _, d := range opts.Densities {
		if _, ok := parseDensity(d); !ok {
			return opts, common.NewInvalidImageDensityError(d)
		}
	}
	s.applyLayout(&opts)
	return opts, nil
}

// ValidateTransform checks a transform decoded from an endpoint URL
func (s *Service) ValidateTransform(t *Transform) error {
	if t == nil || t.Src == "" {
		return common.NewExpectedImageError("")
	}
	if t.Width < 0 {
		return common.NewInvalidImageDimensionError("width", t.Width)
	}
	if t.Height < 0 {
		return common.NewInvalidImageDimensionError("height", t.Height)
	}
	t.Format = ImageFormat(strings.ToLower(string(t.Format)))
	if t.Format != "" && !t.Format.IsValidOutput() && t.Format != FormatGIF {
		return common.NewUnsupportedImageFormatError(string(t.Format), t.Src, formatNames(ValidOutputFormats))
	}
	if t.Quality != "" {
		if _, ok := ParseQuality(t.Quality); !ok {
			return common.NewInvalidImageQualityError(t.Quality)
		}
	}
	return nil
}

func missingDimension(width, height int) string {
	switch {
	case width == 0 && height == 0:
		return "both"
	case width == 0:
		return "width"
	case height == 0:
		return "height"
	}
	return ""
}

// parseDensity reads "2", "1.5x" or "2x" the way parseFloat would
func parseDensity(d string) (float64, bool) {
	d = strings.TrimSpace(d)
	d = strings.TrimSuffix(d, "x")
	v, err := strconv.ParseFloat(d, 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}
