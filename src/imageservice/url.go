package imageservice

import (
	"math"
	"net/url"
	"path"
	"strconv"
	"strings"
)

// TargetDimensions returns the width and height the rendered image will have.
// Remote sizes are taken as given; local images fill a missing side from
// their aspect ratio, or use their intrinsic size when neither is set.
func TargetDimensions(opts Options) Dimensions {
	d := Dimensions{Width: opts.Width, Height: opts.Height}
	meta := opts.Src.Local
	if meta == nil || meta.Width <= 0 || meta.Height <= 0 {
		return d
	}

	aspect := float64(meta.Width) / float64(meta.Height)
	switch {
	case d.Height > 0 && d.Width == 0:
		d.Width = int(math.Round(float64(d.Height) * aspect))
	case d.Width > 0 && d.Height == 0:
		d.Height = int(math.Round(float64(d.Width) / aspect))
	case d.Width == 0 && d.Height == 0:
		d.Width = meta.Width
		d.Height = meta.Height
	}
	return d
}

// GetURL returns the URL a browser should load for opts. Remote images that
// are not allowed are returned unchanged.
func (s *Service) GetURL(opts Options) string {
	var href string
	switch {
	case opts.Src.IsLocal():
		href = opts.Src.Local.Src
	case isPublicPath(opts.Src.Remote) || s.IsRemoteAllowed(opts.Src.Remote):
		href = opts.Src.Remote
	default:
		return opts.Src.Remote
	}

	t := opts.Transform()
	t.Src = href
	if s.collector != nil {
		return s.staticURL(t, opts.Src.IsLocal())
	}
	return s.EndpointPath() + "?" + EncodeTransform(t)
}

// EndpointPath is the site-relative path of the image endpoint
func (s *Service) EndpointPath() string {
	return path.Join("/", s.cfg.Site.Base, s.cfg.Image.Endpoint)
}

// EncodeTransform builds the endpoint query string. Parameter order is fixed
// so equal transforms always produce equal URLs.
func EncodeTransform(t Transform) string {
	var b strings.Builder
	add := func(key, value string) {
		if value == "" {
			return
		}
		if b.Len() > 0 {
			b.WriteByte('&')
		}
		b.WriteString(key)
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(value))
	}

	add("href", t.Src)
	if t.Width > 0 {
		add("w", strconv.Itoa(t.Width))
	}
	if t.Height > 0 {
		add("h", strconv.Itoa(t.Height))
	}
	add("q", t.Quality)
	add("f", string(t.Format))
	add("fit", t.Fit)
	add("position", t.Position)
	return b.String()
}

// ParseURL decodes a transform from an endpoint URL.
// It returns nil when the URL carries no href.
func (s *Service) ParseURL(u *url.URL) *Transform {
	q := u.Query()
	if !q.Has("href") {
		return nil
	}

	t := &Transform{
		Src:      q.Get("href"),
		Format:   ImageFormat(q.Get("f")),
		Quality:  q.Get("q"),
		Fit:      q.Get("fit"),
		Position: q.Get("position"),
	}
	if q.Has("w") {
		t.Width = parseIntPrefix(q.Get("w"))
	}
	if q.Has("h") {
		t.Height = parseIntPrefix(q.Get("h"))
	}
	return t
}

// IsEndpoint reports whether p is the image endpoint path
func (s *Service) IsEndpoint(p string) bool {
	return p == s.EndpointPath()
}

// parseIntPrefix reads leading base-10 digits, ignoring anything after them.
// Input without digits yields 0.
func parseIntPrefix(v string) int {
	v = strings.TrimSpace(v)
	end := 0
	if end < len(v) && (v[end] == '-' || v[end] == '+') {
		end++
	}
	start := end
	for end < len(v) && v[end] >= '0' && v[end] <= '9' {
		end++
	}
	if end == start {
		return 0
	}
	n, err := strconv.Atoi(v[:end])
	if err != nil {
		return 0
	}
	return n
}

func isPublicPath(src string) bool {
	return strings.HasPrefix(src, "/") && !strings.HasPrefix(src, "//") && !strings.HasPrefix(src, "/@fs/")
}
