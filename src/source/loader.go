// Package source loads original images from the public directory or from
// allowed remote hosts.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"imagekit/src/common"
	"imagekit/src/config"
	"imagekit/src/imageservice"
	"imagekit/src/observability"
)

const probeChunkSize = 4096

// Loader reads source images
type Loader struct {
	publicDir string
	maxBytes  int64
	client    *http.Client
	prober    imageservice.Prober
}

// NewLoader creates a loader for the configured public directory.
// prober is used by InferRemoteSize.
func NewLoader(cfg *config.Config, prober imageservice.Prober) *Loader {
	return &Loader{
		publicDir: cfg.Site.PublicDir,
		maxBytes:  cfg.Image.Service.MaxSourceBytes,
		client: &http.Client{
			Timeout: time.Duration(cfg.Image.Service.FetchTimeout) * time.Second,
		},
		prober: prober,
	}
}

// SetHTTPClient replaces the client used for remote sources
func (l *Loader) SetHTTPClient(c *http.Client) {
	l.client = c
}

// Load returns the bytes of src. Remote sources are fetched over HTTP, every
// other src is a path under the public directory.
func (l *Loader) Load(ctx context.Context, src string) ([]byte, error) {
	if common.IsRemotePath(src) {
		data, err := l.loadRemote(ctx, src)
		if err != nil {
			observability.SourceFetchFailures.WithLabelValues("remote").Inc()
		}
		return data, err
	}

	data, err := l.loadLocal(src)
	if err != nil {
		observability.SourceFetchFailures.WithLabelValues("local").Inc()
	}
	return data, err
}

// LocalPath maps src onto the public directory. The result never
// escapes the directory.
func (l *Loader) LocalPath(src string) string {
	if i := strings.IndexAny(src, "?#"); i >= 0 {
		src = src[:i]
	}
	clean := path.Clean("/" + src)
	return filepath.Join(l.publicDir, filepath.FromSlash(clean))
}

func (l *Loader) loadLocal(src string) ([]byte, error) {
	p := l.LocalPath(src)
	info, err := os.Stat(p)
	if err != nil {
		return nil, common.NewImageNotFoundError(src, err)
	}
	if info.IsDir() {
		return nil, common.NewImageNotFoundError(src, errors.New("is a directory"))
	}
	if l.maxBytes > 0 && info.Size() > l.maxBytes {
		return nil, common.NewImageNotFoundError(src, fmt.Errorf("file exceeds %d bytes", l.maxBytes))
	}

	data, err := os.ReadFile(p)
	if err != nil {
		return nil, common.NewImageNotFoundError(src, err)
	}
	return data, nil
}

func (l *Loader) loadRemote(ctx context.Context, src string) ([]byte, error) {
	resp, err := l.get(ctx, src)
	if err != nil {
		return nil, common.NewImageNotFoundError(src, err)
	}
	defer resp.Body.Close()

	body := io.Reader(resp.Body)
	if l.maxBytes > 0 {
		body = io.LimitReader(resp.Body, l.maxBytes+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, common.NewImageNotFoundError(src, fmt.Errorf("failed to read body: %w", err))
	}
	if l.maxBytes > 0 && int64(len(data)) > l.maxBytes {
		return nil, common.NewImageNotFoundError(src, fmt.Errorf("body exceeds %d bytes", l.maxBytes))
	}
	return data, nil
}

// InferRemoteSize fetches src just far enough to read its dimensions.
// The body is probed as it arrives and the download stops once the
// header has been read.
func (l *Loader) InferRemoteSize(ctx context.Context, src string) (*imageservice.ImageMetadata, error) {
	resp, err := l.get(ctx, src)
	if err != nil {
		return nil, common.NewFailedToFetchRemoteImageDimensionsError(src, err)
	}
	defer resp.Body.Close()

	var buf []byte
	chunk := make([]byte, probeChunkSize)
	for {
		n, readErr := resp.Body.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
			if meta, err := l.prober.Probe(buf); err == nil && meta.Width > 0 && meta.Height > 0 {
				meta.Src = src
				return meta, nil
			}
		}
		if l.maxBytes > 0 && int64(len(buf)) > l.maxBytes {
			return nil, common.NewFailedToFetchRemoteImageDimensionsError(src, fmt.Errorf("no size within %d bytes", l.maxBytes))
		}
		if readErr == io.EOF {
			return nil, common.NewFailedToFetchRemoteImageDimensionsError(src, errors.New("body ended before a size was found"))
		}
		if readErr != nil {
			return nil, common.NewFailedToFetchRemoteImageDimensionsError(src, readErr)
		}
	}
}

func (l *Loader) get(ctx context.Context, src string) (*http.Response, error) {
	if strings.HasPrefix(src, "//") {
		src = "https:" + src
	}
	if strings.HasPrefix(src, "data:") {
		return nil, errors.New("data URIs are not fetched")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	return resp, nil
}
