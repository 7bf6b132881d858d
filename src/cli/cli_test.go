package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupSite writes a config file, one public image and one page
func setupSite(t *testing.T) string {
	t.Helper()
	root := t.TempDir()

	public := filepath.Join(root, "public")
	content := filepath.Join(root, "content")
	require.NoError(t, os.MkdirAll(filepath.Join(public, "images"), 0755))
	require.NoError(t, os.MkdirAll(content, 0755))

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 100, 50))))
	require.NoError(t, os.WriteFile(filepath.Join(public, "images", "cat.png"), buf.Bytes(), 0644))

	page := `---
title: Cats
images:
  - src: /images/cat.png
    alt: A cat
    width: 50
    format: png
---
`
	require.NoError(t, os.WriteFile(filepath.Join(content, "cats.md"), []byte(page), 0644))

	cfg := fmt.Sprintf(`
site:
  public_dir: %q
  content_dir: %q
  out_dir: %q
image:
  service:
    engine: imaging
`, public, content, filepath.Join(root, "dist"))
	path := filepath.Join(root, "imagekit.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0644))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := New()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestURLCommand(t *testing.T) {
	cfgPath := setupSite(t)

	out, err := run(t, "url", "/images/cat.png", "--width", "50", "--densities", "1x,2x", "--alt", "A cat", "--config", cfgPath)
	require.NoError(t, err)

	var img struct {
		Src    string `json:"src"`
		SrcSet struct {
			Attribute string `json:"attribute"`
		} `json:"srcset"`
		Attributes map[string]string `json:"attributes"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &img))
	assert.Contains(t, img.Src, "/_image?href=%2Fimages%2Fcat.png&w=50")
	assert.Contains(t, img.SrcSet.Attribute, " 2x")
	assert.Equal(t, "50", img.Attributes["width"])
	assert.Equal(t, "A cat", img.Attributes["alt"])
}

func TestURLCommandPicture(t *testing.T) {
	cfgPath := setupSite(t)

	out, err := run(t, "url", "/images/cat.png", "--width", "50", "--formats", "avif,webp", "--config", cfgPath)
	require.NoError(t, err)

	var pic struct {
		Sources []struct {
			Type string `json:"type"`
		} `json:"sources"`
		Fallback struct {
			Src string `json:"src"`
		} `json:"fallback"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &pic))
	require.Len(t, pic.Sources, 2)
	assert.Equal(t, "image/avif", pic.Sources[0].Type)
	assert.Contains(t, pic.Fallback.Src, "f=png")
}

func TestURLCommandErrors(t *testing.T) {
	cfgPath := setupSite(t)

	_, err := run(t, "url", "/images/missing.png", "--config", cfgPath)
	assert.Error(t, err)

	_, err = run(t, "url", "/images/cat.png", "--quality", "ultra", "--config", cfgPath)
	assert.Error(t, err)

	_, err = run(t, "url", "--config", cfgPath)
	assert.Error(t, err)
}

func TestProbeCommand(t *testing.T) {
	cfgPath := setupSite(t)

	out, err := run(t, "probe", "/images/cat.png", "--config", cfgPath)
	require.NoError(t, err)
	assert.JSONEq(t, `{"src":"/images/cat.png","width":100,"height":50,"format":"png"}`, out)
}

func TestBuildCommand(t *testing.T) {
	cfgPath := setupSite(t)

	out, err := run(t, "build", "--config", cfgPath, "--log-format", "json", "--log-level", "warn")
	require.NoError(t, err)
	assert.Contains(t, out, "built 1 images for 1 pages")

	dist := filepath.Join(filepath.Dir(cfgPath), "dist")
	assert.FileExists(t, filepath.Join(dist, "images.json"))
}

func TestConfigFlag(t *testing.T) {
	_, err := run(t, "probe", "/images/cat.png", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to load config")
}

func TestDefaultConfigUsesEnvironment(t *testing.T) {
	cfgPath := setupSite(t)
	root := filepath.Dir(cfgPath)
	require.NoError(t, os.Remove(cfgPath))
	t.Chdir(root)
	t.Setenv("IMAGEKIT_BASE", "/blog")
	t.Setenv("IMAGEKIT_ENGINE", "imaging")

	out, err := run(t, "url", "/images/cat.png", "--width", "50")
	require.NoError(t, err)

	var img struct {
		Src string `json:"src"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &img))
	assert.Contains(t, img.Src, "/blog/_image?href=%2Fimages%2Fcat.png")
}

func TestLoggingFlags(t *testing.T) {
	cfgPath := setupSite(t)

	_, err := run(t, "probe", "/images/cat.png", "--config", cfgPath, "--log-format", "xml")
	assert.ErrorContains(t, err, "invalid log format")

	_, err = run(t, "probe", "/images/cat.png", "--config", cfgPath, "--log-level", "loud")
	assert.ErrorContains(t, err, "invalid log level")
}
