package common

import (
	"net/url"
	"regexp"
	"strings"
)

var remotePathRE = regexp.MustCompile(`^(?:http|ftp|https|ws):?//`)

// RemotePattern describes an allowed remote image location.
// Empty fields match anything. Hostname may start with "*." (exactly one
// extra label) or "**." (any depth); Pathname may end with "/*" (exactly
// one extra segment) or "/**" (any depth).
type RemotePattern struct {
	Protocol string `yaml:"protocol,omitempty"`
	Hostname string `yaml:"hostname,omitempty"`
	Port     string `yaml:"port,omitempty"`
	Pathname string `yaml:"pathname,omitempty"`
}

// IsRemotePath reports whether src points outside the site
func IsRemotePath(src string) bool {
	return strings.HasPrefix(src, "//") || remotePathRE.MatchString(src) || strings.HasPrefix(src, "data:")
}

// IsRemoteAllowed reports whether a remote src may be transformed
func IsRemoteAllowed(src string, domains []string, patterns []RemotePattern) bool {
	if !IsRemotePath(src) || strings.HasPrefix(src, "data:") {
		return false
	}
	if strings.HasPrefix(src, "//") {
		src = "https:" + src
	}

	u, err := url.Parse(src)
	if err != nil || u.Hostname() == "" {
		return false
	}

	for _, domain := range domains {
		if MatchHostname(u, domain, false) {
			return true
		}
	}
	for _, p := range patterns {
		if MatchPattern(u, p) {
			return true
		}
	}
	return false
}

// MatchPattern checks every field of p against u
func MatchPattern(u *url.URL, p RemotePattern) bool {
	return MatchProtocol(u, p.Protocol) &&
		MatchHostname(u, p.Hostname, true) &&
		MatchPort(u, p.Port) &&
		MatchPathname(u, p.Pathname, true)
}

func MatchPort(u *url.URL, port string) bool {
	return port == "" || port == u.Port()
}

func MatchProtocol(u *url.URL, protocol string) bool {
	return protocol == "" || strings.TrimSuffix(protocol, ":") == u.Scheme
}

func MatchHostname(u *url.URL, hostname string, allowWildcard bool) bool {
	host := u.Hostname()
	switch {
	case hostname == "":
		return true
	case !allowWildcard || !strings.HasPrefix(hostname, "*"):
		return strings.EqualFold(hostname, host)
	case strings.HasPrefix(hostname, "**."):
		suffix := hostname[2:]
		return host != suffix[1:] && strings.HasSuffix(host, suffix)
	case strings.HasPrefix(hostname, "*."):
		suffix := hostname[1:]
		if !strings.HasSuffix(host, suffix) {
			return false
		}
		label := strings.TrimSuffix(host, suffix)
		return label != "" && !strings.Contains(label, ".")
	}
	return false
}

func MatchPathname(u *url.URL, pathname string, allowWildcard bool) bool {
	p := u.EscapedPath()
	switch {
	case pathname == "":
		return true
	case !allowWildcard || !strings.HasSuffix(pathname, "*"):
		return pathname == p
	case strings.HasSuffix(pathname, "/**"):
		prefix := pathname[:len(pathname)-2]
		return prefix != p && strings.HasPrefix(p, prefix)
	case strings.HasSuffix(pathname, "/*"):
		prefix := pathname[:len(pathname)-1]
		if !strings.HasPrefix(p, prefix) {
			return false
		}
		rest := strings.Trim(strings.TrimPrefix(p, prefix), "/")
		return rest != "" && !strings.Contains(rest, "/")
	}
	return false
}
