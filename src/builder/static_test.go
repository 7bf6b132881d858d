package builder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imagekit/src/config"
	"imagekit/src/imageservice"
	"imagekit/src/source"
)

type pngProber struct{}

func (pngProber) Probe(data []byte) (*imageservice.ImageMetadata, error) {
	cfg, err := png.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return &imageservice.ImageMetadata{Width: cfg.Width, Height: cfg.Height, Format: imageservice.FormatPNG}, nil
}

type fakeTransformer struct{}

func (fakeTransformer) Transform(ctx context.Context, input []byte, t imageservice.Transform) ([]byte, imageservice.ImageFormat, error) {
	if t.Width == 13 {
		return nil, "", errors.New("encoder failed")
	}
	return []byte(fmt.Sprintf("%s %dx%d", t.Format, t.Width, t.Height)), t.Format, nil
}

const testPage = `---
title: Hello World
images:
  - src: /images/cat.png
    alt: A cat
    width: 50
    densities: ["1x", "2x"]
  - src: images/cat.png
    alt: Picture
    width: 25.4
    formats: [avif, webp]
  - src: https://elsewhere.test/x.jpg
    alt: Remote
    width: 10
    height: 10
---

Body text.
`

func setupSite(t *testing.T, page string) *config.Config {
	t.Helper()
	root := t.TempDir()

	cfg := config.Default()
	cfg.Site.PublicDir = filepath.Join(root, "public")
	cfg.Site.ContentDir = filepath.Join(root, "content")
	cfg.Site.OutDir = filepath.Join(root, "dist")
	cfg.Build.Concurrency = 2

	require.NoError(t, os.MkdirAll(filepath.Join(cfg.Site.PublicDir, "images"), 0755))
	require.NoError(t, os.MkdirAll(cfg.Site.ContentDir, 0755))

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 100, 50))))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Site.PublicDir, "images", "cat.png"), buf.Bytes(), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Site.ContentDir, "hello.md"), []byte(page), 0644))
	return cfg
}

func newBuilder(cfg *config.Config) *StaticBuilder {
	return NewStaticBuilder(cfg, source.NewLoader(cfg, pngProber{}), pngProber{}, fakeTransformer{}, nil)
}

func TestBuild(t *testing.T) {
	cfg := setupSite(t, testPage)

	result, err := newBuilder(cfg).Build(context.Background())
	require.NoError(t, err)

	// two density candidates plus avif, webp and the png fallback for the picture
	assert.Equal(t, 1, result.Pages)
	assert.Equal(t, 5, result.Images)
	assert.Equal(t, 5, result.Written)

	data, err := os.ReadFile(result.Manifest)
	require.NoError(t, err)
	var m Manifest
	require.NoError(t, json.Unmarshal(data, &m))

	require.Len(t, m.Pages, 1)
	page := m.Pages[0]
	assert.Equal(t, "hello-world", page.Slug)
	require.Len(t, page.Images, 3)

	first := page.Images[0].Image
	require.NotNil(t, first)
	assert.True(t, strings.HasPrefix(first.Src, "/_assets/images/cat_"), first.Src)
	assert.Equal(t, "A cat", first.Attributes["alt"])
	assert.Equal(t, "50", first.Attributes["width"])
	assert.Equal(t, "25", first.Attributes["height"])
	assert.Contains(t, first.SrcSet.Attribute, " 2x")

	pic := page.Images[1].Picture
	require.NotNil(t, pic)
	require.Len(t, pic.Sources, 2)
	assert.Equal(t, "image/avif", pic.Sources[0].Type)
	assert.True(t, strings.HasSuffix(pic.Fallback.Src, ".png"), pic.Fallback.Src)
	assert.Equal(t, "25", pic.Fallback.Attributes["width"])

	remote := page.Images[2].Image
	assert.Equal(t, "https://elsewhere.test/x.jpg", remote.Src)

	for _, img := range m.Images {
		out, err := os.ReadFile(filepath.Join(cfg.Site.OutDir, filepath.FromSlash(img.Path)))
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(string(out), string(img.Transform.Format)+" "), string(out))
	}
}

func TestBuildErrors(t *testing.T) {
	t.Run("missing source", func(t *testing.T) {
		cfg := setupSite(t, "---\ntitle: A\nimages:\n  - src: /images/dog.png\n    width: 10\n---\n")
		_, err := newBuilder(cfg).Build(context.Background())
		assert.ErrorContains(t, err, "/images/dog.png")
	})

	t.Run("invalid options", func(t *testing.T) {
		cfg := setupSite(t, "---\ntitle: A\nimages:\n  - src: /images/cat.png\n    quality: superb\n---\n")
		_, err := newBuilder(cfg).Build(context.Background())
		assert.ErrorContains(t, err, "InvalidImageQuality")
	})

	t.Run("transform failure", func(t *testing.T) {
		cfg := setupSite(t, "---\ntitle: A\nimages:\n  - src: /images/cat.png\n    width: 13\n---\n")
		_, err := newBuilder(cfg).Build(context.Background())
		assert.ErrorContains(t, err, "encoder failed")
	})

	t.Run("bad frontmatter", func(t *testing.T) {
		cfg := setupSite(t, "---\nimages: []\n---\n")
		_, err := newBuilder(cfg).Build(context.Background())
		assert.ErrorContains(t, err, "title")
	})
}
