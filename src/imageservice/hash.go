package imageservice

import (
	"net/url"
	"path"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// DefaultHashProps are the transform fields that make an output file unique
var DefaultHashProps = []string{"src", "width", "height", "format", "quality", "fit", "position"}

// HashTransform returns a short deterministic hash of the selected fields
func HashTransform(t Transform, serviceName string, props []string) string {
	var b strings.Builder
	b.WriteString("imageService=")
	b.WriteString(serviceName)
	for _, p := range props {
		b.WriteByte(';')
		b.WriteString(p)
		b.WriteByte('=')
		b.WriteString(transformField(t, p))
	}
	return shortHash(b.String())
}

func transformField(t Transform, name string) string {
	switch name {
	case "src":
		return t.Src
	case "width":
		return strconv.Itoa(t.Width)
	case "height":
		return strconv.Itoa(t.Height)
	case "format":
		return string(t.Format)
	case "quality":
		return t.Quality
	case "fit":
		return t.Fit
	case "position":
		return t.Position
	}
	return ""
}

func shortHash(s string) string {
	return strconv.FormatUint(xxhash.Sum64String(s), 36)
}

// PropsToFilename returns the output file name for a transform:
// <dir>/<name>_<hash>.<format>. dir is kept only for local sources;
// data URIs are named by their own hash.
func PropsToFilename(src string, t Transform, hash string, local bool) string {
	var dir, name, ext string
	if strings.HasPrefix(src, "data:") {
		name = shortHash(src)
	} else {
		p := src
		if u, err := url.Parse(src); err == nil && u.Host != "" {
			p = u.Path
		}
		if i := strings.IndexAny(p, "?#"); i >= 0 {
			p = p[:i]
		}
		if unescaped, err := url.PathUnescape(p); err == nil {
			p = unescaped
		}
		ext = path.Ext(p)
		name = strings.TrimSuffix(path.Base(p), ext)
		if local {
			dir = path.Dir(p)
		}
	}

	outExt := ext
	if t.Format != "" {
		outExt = "." + string(t.Format)
	}
	return path.Join(dir, name+"_"+hash+outExt)
}

func (s *Service) staticURL(t Transform, local bool) string {
	hash := HashTransform(t, s.name, DefaultHashProps)
	filePath := path.Join("/", s.cfg.Build.AssetsDir, PropsToFilename(t.Src, t, hash, local))
	s.collector.Add(filePath, t)
	return path.Join("/", s.cfg.Site.Base, filePath)
}

// StaticImage is a transform scheduled for the static build
type StaticImage struct {
	Path      string    `json:"path"`
	Transform Transform `json:"transform"`
}

// Collector records the transforms a static build has to generate
type Collector struct {
	mu     sync.Mutex
	images map[string]Transform
}

// NewCollector creates an empty collector
func NewCollector() *Collector {
	return &Collector{images: make(map[string]Transform)}
}

// Add records a transform for outPath. It reports false if outPath was already known.
func (c *Collector) Add(outPath string, t Transform) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.images[outPath]; ok {
		return false
	}
	c.images[outPath] = t
	return true
}

// Images returns the collected transforms sorted by output path
func (c *Collector) Images() []StaticImage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]StaticImage, 0, len(c.images))
	for p, t := range c.images {
		out = append(out, StaticImage{Path: p, Transform: t})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.images)
}
