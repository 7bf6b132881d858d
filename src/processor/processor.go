// Package processor performs the pixel work behind the image service:
// resizing, cropping and encoding rasters, and minifying SVGs.
package processor

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/svg"

	"imagekit/src/common"
	"imagekit/src/config"
	"imagekit/src/imageservice"
	"imagekit/src/observability"
)

const fallbackQuality = 80

// Engine resizes and encodes raster images
type Engine interface {
	Name() string
	// Transform applies plan to input and encodes it as format
	Transform(input []byte, plan resizePlan, format imageservice.ImageFormat, quality int) ([]byte, error)
}

// Processor turns source bytes into transformed image bytes
type Processor struct {
	cfg    *config.Config
	engine Engine
	svg    *minify.M
}

// New creates a processor using the engine named in the configuration
func New(cfg *config.Config) (*Processor, error) {
	var engine Engine
	switch cfg.Image.Service.Engine {
	case config.EngineVips:
		engine = NewVipsEngine()
	case config.EngineImaging:
		engine = NewImagingEngine()
	default:
		return nil, fmt.Errorf("unknown image engine %q", cfg.Image.Service.Engine)
	}
	return NewWithEngine(cfg, engine), nil
}

// NewWithEngine creates a processor around an explicit engine
func NewWithEngine(cfg *config.Config, engine Engine) *Processor {
	m := minify.New()
	m.AddFunc("image/svg+xml", svg.Minify)
	return &Processor{
		cfg:    cfg,
		engine: engine,
		svg:    m,
	}
}

// EngineName returns the name of the raster engine
func (p *Processor) EngineName() string {
	return p.engine.Name()
}

// Probe implements imageservice.Prober
func (p *Processor) Probe(data []byte) (*imageservice.ImageMetadata, error) {
	return Probe(data)
}

// Transform applies t to input and returns the encoded bytes and their format
func (p *Processor) Transform(ctx context.Context, input []byte, t imageservice.Transform) ([]byte, imageservice.ImageFormat, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}

	meta, err := Probe(input)
	if err != nil {
		return nil, "", common.NewNoImageMetadataError(t.Src, err)
	}

	format := t.Format.Normalize()
	if format == "" {
		format = meta.Format.Normalize()
	}

	// SVGs are never rasterized and rasters never become SVGs
	if (meta.Format == imageservice.FormatSVG) != (format == imageservice.FormatSVG) {
		return nil, "", common.NewUnsupportedImageConversionError(string(meta.Format), string(format))
	}

	start := time.Now()
	var out []byte
	if format == imageservice.FormatSVG {
		out, err = p.minifySVG(input)
	} else {
		out, err = p.transformRaster(input, meta, t, format)
	}
	engine := p.engine.Name()
	if format == imageservice.FormatSVG {
		engine = "minify"
	}
	if err != nil {
		observability.TransformsTotal.WithLabelValues(engine, string(format), "error").Inc()
		return nil, "", err
	}

	observability.TransformsTotal.WithLabelValues(engine, string(format), "ok").Inc()
	observability.TransformDuration.WithLabelValues(engine, string(format)).Observe(time.Since(start).Seconds())
	observability.BytesOut.WithLabelValues(string(format)).Add(float64(len(out)))

	slog.Debug("transformed image",
		"src", t.Src,
		"engine", engine,
		"format", format,
		"in_bytes", len(input),
		"out_bytes", len(out),
	)
	return out, format, nil
}

func (p *Processor) transformRaster(input []byte, meta *imageservice.ImageMetadata, t imageservice.Transform, format imageservice.ImageFormat) ([]byte, error) {
	limit := p.cfg.Image.Service.LimitInputPixels
	if pixels := meta.Width * meta.Height; limit > 0 && pixels > limit {
		return nil, common.NewImageTooLargeError(pixels, limit)
	}

	plan := planResize(meta.Width, meta.Height, t)
	out, err := p.engine.Transform(input, plan, format, p.quality(t.Quality, format))
	if err != nil {
		return nil, fmt.Errorf("failed to transform %s with %s: %w", t.Src, p.engine.Name(), err)
	}
	return out, nil
}

// quality resolves a numeric or preset quality, falling back to the
// configured default for the format
func (p *Processor) quality(q string, format imageservice.ImageFormat) int {
	if v, ok := imageservice.ParseQuality(q); ok {
		return v
	}
	if v := p.cfg.DefaultQuality(string(format)); v > 0 {
		return v
	}
	return fallbackQuality
}

func (p *Processor) minifySVG(input []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := p.svg.Minify("image/svg+xml", &buf, bytes.NewReader(input)); err != nil {
		return nil, fmt.Errorf("failed to minify svg: %w", err)
	}
	return buf.Bytes(), nil
}
