package imageservice

import (
	"math"
	"sort"
	"strconv"
	"strings"
)

type srcSetCandidate struct {
	width      int
	descriptor string
}

// GetSrcSet returns one candidate per requested density or width. URLs are
// left empty; GetImage fills them in.
func (s *Service) GetSrcSet(opts Options) []SrcSetValue {
	target := TargetDimensions(opts)
	format := opts.Format
	if format == "" {
		format = DefaultOutputFormat
	}

	// Remote sizes are unknown, so only local images cap candidate widths
	imageWidth := opts.Width
	maxWidth := math.MaxInt
	if opts.Src.IsLocal() {
		imageWidth = opts.Src.Local.Width
		maxWidth = imageWidth
	}

	var candidates []srcSetCandidate
	switch {
	case len(opts.Densities) > 0:
		densities := make([]float64, 0, len(opts.Densities))
		for _, d := range opts.Densities {
			if v, ok := parseDensity(d); ok {
				densities = append(densities, v)
			}
		}
		sort.Float64s(densities)
		for _, d := range densities {
			w := int(math.Round(float64(target.Width) * d))
			candidates = append(candidates, srcSetCandidate{
				width:      min(w, maxWidth),
				descriptor: strconv.FormatFloat(d, 'f', -1, 64) + "x",
			})
		}
	case len(opts.Widths) > 0:
		for _, w := range opts.Widths {
			candidates = append(candidates, srcSetCandidate{
				width:      min(w, maxWidth),
				descriptor: strconv.Itoa(w) + "w",
			})
		}
	}

	// Widths and densities decide the candidate dimensions
	base := opts.Clone()
	base.Width, base.Height = 0, 0
	base.Widths, base.Densities = nil, nil
	cropped := opts.Fit != "" && opts.Width > 0 && opts.Height > 0

	values := make([]SrcSetValue, 0, len(candidates))
	seen := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		if seen[c.descriptor] {
			continue
		}
		seen[c.descriptor] = true

		o := base.Clone()
		if c.width != imageWidth {
			o.Width = c.width
			if cropped {
				o.Height = int(math.Round(float64(c.width) * float64(opts.Height) / float64(opts.Width)))
			}
		} else if opts.Width > 0 && opts.Height > 0 {
			// same size as the original: reuse the requested box instead of regenerating the source
			o.Width = opts.Width
			o.Height = opts.Height
		}

		values = append(values, SrcSetValue{
			Options:    o,
			Descriptor: c.descriptor,
			Attributes: map[string]string{"type": format.MIMEType()},
		})
	}
	return values
}

// SrcSetAttribute joins candidates into a srcset attribute value
func SrcSetAttribute(values []SrcSetValue) string {
	parts := make([]string, 0, len(values))
	for _, v := range values {
		parts = append(parts, v.URL+" "+v.Descriptor)
	}
	return strings.Join(parts, ", ")
}
