package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/cespare/xxhash/v2"

	"imagekit/src/common"
	"imagekit/src/imageservice"
)

const cacheControl = "public, max-age=31536000"

func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	t := s.service.ParseURL(r.URL)
	if t == nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	if err := s.service.ValidateTransform(t); err != nil {
		http.Error(w, "Bad Request: "+err.Error(), http.StatusBadRequest)
		return
	}
	if common.IsRemotePath(t.Src) && !s.service.IsRemoteAllowed(t.Src) {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	input, err := s.loader.Load(r.Context(), t.Src)
	if err != nil {
		slog.Warn("image source not found", "src", t.Src, "error", err)
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}

	out, format, err := s.transformer.Transform(r.Context(), input, *t)
	if err != nil {
		slog.Error("image transform failed", "src", t.Src, "error", err)
		http.Error(w, "Server Error: "+err.Error(), http.StatusInternalServerError)
		return
	}

	etag := weakETag(out)
	h := w.Header()
	h.Set("Cache-Control", cacheControl)
	h.Set("ETag", etag)
	h.Set("Date", time.Now().UTC().Format(http.TimeFormat))
	if etagMatches(r.Header.Get("If-None-Match"), etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	h.Set("Content-Type", format.MIMEType())

	if format == imageservice.FormatSVG {
		cw := brotli.HTTPCompressor(w, r)
		defer cw.Close()
		if _, err := cw.Write(out); err != nil {
			slog.Debug("failed to write response", "error", err)
		}
		return
	}

	h.Set("Content-Length", strconv.Itoa(len(out)))
	if _, err := w.Write(out); err != nil {
		slog.Debug("failed to write response", "error", err)
	}
}

func weakETag(data []byte) string {
	return fmt.Sprintf(`W/"%x-%s"`, len(data), strconv.FormatUint(xxhash.Sum64(data), 36))
}

// etagMatches implements the weak comparison used by If-None-Match
func etagMatches(header, etag string) bool {
	if header == "" {
		return false
	}
	if strings.TrimSpace(header) == "*" {
		return true
	}
	want := strings.TrimPrefix(etag, "W/")
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimPrefix(strings.TrimSpace(candidate), "W/")
		if candidate == want {
			return true
		}
	}
	return false
}
