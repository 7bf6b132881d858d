package imageservice

import (
	"fmt"
	"sort"
)

// Widths returns the srcset widths for a layout.
// originalWidth caps the result when the intrinsic size is known (0 = unknown).
func Widths(width int, layout Layout, breakpoints []int, originalWidth int) []int {
	if layout == LayoutFullWidth {
		var out []int
		for _, bp := range breakpoints {
			if originalWidth == 0 || bp <= originalWidth {
				out = append(out, bp)
			}
		}
		return sortedUnique(out)
	}
	if width <= 0 {
		return nil
	}

	double := width * 2
	maxSize := double
	if originalWidth > 0 && originalWidth < double {
		maxSize = originalWidth
	}

	switch layout {
	case LayoutFixed:
		if originalWidth > 0 && width > originalWidth {
			return []int{originalWidth}
		}
		return sortedUnique([]int{width, maxSize})
	case LayoutConstrained:
		candidates := append([]int{width, double}, breakpoints...)
		var out []int
		for _, w := range candidates {
			if w <= maxSize {
				out = append(out, w)
			}
		}
		return sortedUnique(out)
	}
	return nil
}

// SizesAttribute returns the sizes attribute for a layout, or "" when there is none
func SizesAttribute(width int, layout Layout) string {
	if width <= 0 && layout != LayoutFullWidth {
		return ""
	}
	switch layout {
	case LayoutFullWidth:
		return "100vw"
	case LayoutConstrained:
		return fmt.Sprintf("(min-width: %dpx) %dpx, 100vw", width, width)
	case LayoutFixed:
		return fmt.Sprintf("%dpx", width)
	}
	return ""
}

func sortedUnique(in []int) []int {
	if len(in) == 0 {
		return nil
	}
	out := append([]int(nil), in...)
	sort.Ints(out)
	n := 1
	for i := 1; i < len(out); i++ {
		if out[i] != out[n-1] {
			out[n] = out[i]
			n++
		}
	}
	return out[:n]
}

func (s *Service) applyLayout(opts *Options) {
	if opts.Layout == "" {
		opts.Layout = Layout(s.cfg.Image.Layout)
	}
	if opts.Layout == "" {
		opts.Layout = LayoutNone
	}
	if opts.Layout == LayoutNone {
		return
	}

	dims := TargetDimensions(*opts)
	original := 0
	if opts.Src.IsLocal() {
		original = opts.Src.Local.Width
	}

	// caller densities keep a density srcset; sizes only applies to widths
	if len(opts.Widths) == 0 && len(opts.Densities) == 0 {
		opts.Widths = Widths(dims.Width, opts.Layout, s.cfg.Image.Breakpoints, original)
	}

	if opts.Attributes == nil {
		opts.Attributes = make(map[string]string)
	}
	if len(opts.Widths) > 0 && opts.Attributes["sizes"] == "" {
		if sizes := SizesAttribute(dims.Width, opts.Layout); sizes != "" {
			opts.Attributes["sizes"] = sizes
		}
	}

	if opts.Fit == "" {
		opts.Fit = s.cfg.Image.ObjectFit
	}
	if opts.Fit == "" {
		opts.Fit = "cover"
	}
	if opts.Position == "" {
		opts.Position = s.cfg.Image.ObjectPosition
	}
	if opts.Position == "" {
		opts.Position = "center"
	}
}
