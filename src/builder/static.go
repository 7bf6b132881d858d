package builder

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"imagekit/src/common"
	"imagekit/src/config"
	"imagekit/src/imageservice"
	"imagekit/src/observability"
)

// Loader reads source images
type Loader interface {
	Load(ctx context.Context, src string) ([]byte, error)
}

// StaticBuilder renders the images referenced by content pages into the
// output directory and writes a manifest describing them
type StaticBuilder struct {
	cfg         *config.Config
	loader      Loader
	prober      imageservice.Prober
	transformer imageservice.Transformer
	sizer       imageservice.RemoteSizer
}

// Result summarizes a build
type Result struct {
	Pages    int
	Images   int
	Written  int
	Manifest string
	Duration time.Duration
}

// Manifest maps every page image to its rendered markup
type Manifest struct {
	Pages  []PageManifest             `json:"pages"`
	Images []imageservice.StaticImage `json:"images"`
}

type PageManifest struct {
	Path   string       `json:"path"`
	Slug   string       `json:"slug"`
	Title  string       `json:"title"`
	Images []ImageEntry `json:"images"`
}

// ImageEntry is one rendered frontmatter image. Picture is set when the
// image lists several formats.
type ImageEntry struct {
	Src     string                `json:"src"`
	Image   *imageservice.Image   `json:"image,omitempty"`
	Picture *imageservice.Picture `json:"picture,omitempty"`
}

// NewStaticBuilder creates a new static builder
func NewStaticBuilder(cfg *config.Config, loader Loader, prober imageservice.Prober, transformer imageservice.Transformer, sizer imageservice.RemoteSizer) *StaticBuilder {
	return &StaticBuilder{
		cfg:         cfg,
		loader:      loader,
		prober:      prober,
		transformer: transformer,
		sizer:       sizer,
	}
}

// Build parses the content directory, resolves every image in build mode
// and writes the transformed files and the manifest
func (b *StaticBuilder) Build(ctx context.Context) (*Result, error) {
	start := time.Now()

	pages, err := common.ParseContentDir(b.cfg.Site.ContentDir)
	if err != nil {
		return nil, fmt.Errorf("failed to parse content: %w", err)
	}

	collector := imageservice.NewCollector()
	service := imageservice.NewService(b.cfg)
	service.SetCollector(collector)
	if b.sizer != nil {
		service.SetRemoteSizer(b.sizer)
	}

	manifest := &Manifest{}
	metas := make(map[string]*imageservice.ImageMetadata)
	for _, page := range pages {
		pm := PageManifest{
			Path:  page.FilePath,
			Slug:  page.GetSlug(),
			Title: page.Title,
		}
		for _, ref := range page.Images {
			entry, err := b.renderImage(ctx, service, metas, ref)
			if err != nil {
				return nil, fmt.Errorf("%s: image %s: %w", page.FilePath, ref.Src, err)
			}
			pm.Images = append(pm.Images, *entry)
		}
		manifest.Pages = append(manifest.Pages, pm)
	}
	manifest.Images = collector.Images()

	written, err := b.generate(ctx, manifest.Images)
	if err != nil {
		return nil, err
	}

	manifestPath := filepath.Join(b.cfg.Site.OutDir, b.cfg.Build.Manifest)
	if err := writeManifest(manifestPath, manifest); err != nil {
		return nil, err
	}

	result := &Result{
		Pages:    len(pages),
		Images:   len(manifest.Images),
		Written:  written,
		Manifest: manifestPath,
		Duration: time.Since(start),
	}
	slog.Info("static build finished",
		"pages", result.Pages,
		"images", result.Images,
		"written", result.Written,
		"duration", result.Duration,
	)
	return result, nil
}

func (b *StaticBuilder) renderImage(ctx context.Context, service *imageservice.Service, metas map[string]*imageservice.ImageMetadata, ref common.ImageRef) (*ImageEntry, error) {
	opts, err := resolveOptions(ctx, b.loader, b.prober, metas, ref)
	if err != nil {
		return nil, err
	}

	entry := &ImageEntry{Src: ref.Src}
	if len(ref.Formats) > 0 {
		formats := make([]imageservice.ImageFormat, 0, len(ref.Formats))
		for _, f := range ref.Formats {
			formats = append(formats, imageservice.ImageFormat(f))
		}
		entry.Picture, err = service.GetPicture(ctx, opts, formats, "")
	} else {
		entry.Image, err = service.GetImage(ctx, opts)
	}
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// ResolveOptions converts a frontmatter reference into service options.
// Local sources are loaded and probed for their intrinsic size.
func ResolveOptions(ctx context.Context, loader Loader, prober imageservice.Prober, ref common.ImageRef) (imageservice.Options, error) {
	return resolveOptions(ctx, loader, prober, nil, ref)
}

// resolveOptions caches probe results in metas when it is not nil
func resolveOptions(ctx context.Context, loader Loader, prober imageservice.Prober, metas map[string]*imageservice.ImageMetadata, ref common.ImageRef) (imageservice.Options, error) {
	attrs := make(map[string]string, len(ref.Attrs)+1)
	for k, v := range ref.Attrs {
		attrs[k] = v
	}
	attrs["alt"] = ref.Alt

	opts := imageservice.Options{
		Width:      ref.RoundedWidth(),
		Height:     ref.RoundedHeight(),
		Format:     imageservice.ImageFormat(ref.Format),
		Quality:    ref.Quality,
		Densities:  ref.Densities,
		Widths:     ref.Widths,
		Layout:     imageservice.Layout(ref.Layout),
		Fit:        ref.Fit,
		Position:   ref.Position,
		InferSize:  ref.InferSize,
		Priority:   ref.Priority,
		Attributes: attrs,
	}

	if common.IsRemotePath(ref.Src) {
		opts.Src = imageservice.RemoteSource(ref.Src)
		return opts, nil
	}

	src := "/" + strings.TrimPrefix(ref.Src, "/")
	meta, ok := metas[src]
	if !ok {
		data, err := loader.Load(ctx, src)
		if err != nil {
			return opts, err
		}
		meta, err = prober.Probe(data)
		if err != nil {
			return opts, common.NewNoImageMetadataError(src, err)
		}
		meta.Src = src
		if metas != nil {
			metas[src] = meta
		}
	}
	opts.Src = imageservice.LocalSource(meta)
	return opts, nil
}

// generate transforms every collected image with a bounded worker pool
func (b *StaticBuilder) generate(ctx context.Context, images []imageservice.StaticImage) (int, error) {
	limit := b.cfg.Build.Concurrency
	if limit <= 0 {
		limit = runtime.NumCPU()
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	var mu sync.Mutex
	written := 0
	for _, img := range images {
		g.Go(func() error {
			if err := b.writeImage(ctx, img); err != nil {
				return fmt.Errorf("failed to generate %s: %w", img.Path, err)
			}
			mu.Lock()
			written++
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return written, err
	}
	return written, nil
}

func (b *StaticBuilder) writeImage(ctx context.Context, img imageservice.StaticImage) error {
	input, err := b.loader.Load(ctx, img.Transform.Src)
	if err != nil {
		return err
	}
	out, _, err := b.transformer.Transform(ctx, input, img.Transform)
	if err != nil {
		return err
	}

	dst := filepath.Join(b.cfg.Site.OutDir, filepath.FromSlash(img.Path))
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(dst, out, 0644); err != nil {
		return fmt.Errorf("failed to write image: %w", err)
	}
	observability.BuildImagesTotal.Inc()
	slog.Debug("wrote image", "path", dst, "bytes", len(out))
	return nil
}

func writeManifest(path string, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create manifest directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}
