package processor

import (
	"math"
	"strings"

	"imagekit/src/imageservice"
)

type resizeMode int

const (
	resizeNone resizeMode = iota
	// scale to the computed size, aspect ratio kept
	resizeScale
	// resize to cover the box then crop at the anchor
	resizeCover
	// stretch to the box
	resizeFill
)

// resizePlan is the engine-independent result of a transform's geometry
type resizePlan struct {
	Mode   resizeMode
	Width  int
	Height int
	Anchor anchor
}

// anchor is a crop position: -1 top/left, 0 center, 1 bottom/right
type anchor struct {
	Vertical   int
	Horizontal int
}

// planResize works out the output size for a source of srcW x srcH.
// Output is never larger than the source.
func planResize(srcW, srcH int, t imageservice.Transform) resizePlan {
	w, h := t.Width, t.Height
	if srcW <= 0 || srcH <= 0 || (w <= 0 && h <= 0) {
		return resizePlan{Mode: resizeNone}
	}

	fit := strings.ToLower(t.Fit)
	if w > 0 && h > 0 && (fit == "" || fit == "none") {
		// both sides only count together with a fit
		h = 0
	}

	sw, sh := float64(srcW), float64(srcH)
	plan := resizePlan{Mode: resizeScale, Anchor: parseAnchor(t.Position)}

	switch {
	case h <= 0:
		plan.Width = min(w, srcW)
		plan.Height = scaled(sh, float64(plan.Width)/sw)
	case w <= 0:
		plan.Height = min(h, srcH)
		plan.Width = scaled(sw, float64(plan.Height)/sh)
	default:
		fw, fh := float64(w), float64(h)
		switch fit {
		case "cover", "fill":
			plan.Mode = resizeCover
			if fit == "fill" {
				plan.Mode = resizeFill
			}
			r := math.Min(1, math.Min(sw/fw, sh/fh))
			plan.Width, plan.Height = scaled(fw, r), scaled(fh, r)
		case "outside":
			r := math.Min(1, math.Max(fw/sw, fh/sh))
			plan.Width, plan.Height = scaled(sw, r), scaled(sh, r)
		default:
			// contain, inside, scale-down
			r := math.Min(1, math.Min(fw/sw, fh/sh))
			plan.Width, plan.Height = scaled(sw, r), scaled(sh, r)
		}
	}

	if plan.Mode != resizeCover && plan.Mode != resizeFill && plan.Width == srcW && plan.Height == srcH {
		plan.Mode = resizeNone
	}
	return plan
}

func scaled(v, r float64) int {
	return max(1, int(math.Round(v*r)))
}

// parseAnchor reads CSS object-position keywords ("top", "right bottom",
// "center") and compass names ("north", "southeast").
func parseAnchor(position string) anchor {
	var a anchor
	for _, word := range strings.Fields(strings.ToLower(position)) {
		switch word {
		case "top", "north":
			a.Vertical = -1
		case "bottom", "south":
			a.Vertical = 1
		case "left", "west":
			a.Horizontal = -1
		case "right", "east":
			a.Horizontal = 1
		case "northeast":
			a.Vertical, a.Horizontal = -1, 1
		case "northwest":
			a.Vertical, a.Horizontal = -1, -1
		case "southeast":
			a.Vertical, a.Horizontal = 1, 1
		case "southwest":
			a.Vertical, a.Horizontal = 1, -1
		}
	}
	return a
}
