package imageservice

import "strconv"

// transform-only keys never rendered as HTML attributes
var reservedAttributes = map[string]bool{
	"src":        true,
	"width":      true,
	"height":     true,
	"format":     true,
	"formats":    true,
	"quality":    true,
	"densities":  true,
	"widths":     true,
	"layout":     true,
	"fit":        true,
	"position":   true,
	"infer_size": true,
	"priority":   true,
}

// GetHTMLAttributes returns the attributes for the rendered img element
func (s *Service) GetHTMLAttributes(opts Options) map[string]string {
	dims := TargetDimensions(opts)

	attrs := make(map[string]string, len(opts.Attributes)+4)
	for k, v := range opts.Attributes {
		if !reservedAttributes[k] {
			attrs[k] = v
		}
	}
	if dims.Width > 0 {
		attrs["width"] = strconv.Itoa(dims.Width)
	}
	if dims.Height > 0 {
		attrs["height"] = strconv.Itoa(dims.Height)
	}

	if opts.Priority {
		setDefault(attrs, "loading", "eager")
		setDefault(attrs, "decoding", "sync")
		setDefault(attrs, "fetchpriority", "high")
	} else {
		setDefault(attrs, "loading", "lazy")
		setDefault(attrs, "decoding", "async")
	}

	if opts.Layout != "" && opts.Layout != LayoutNone {
		attrs["data-image-layout"] = string(opts.Layout)
		if opts.Fit != "" {
			attrs["data-image-fit"] = opts.Fit
		}
		if opts.Position != "" {
			attrs["data-image-pos"] = opts.Position
		}
	}
	return attrs
}

func setDefault(attrs map[string]string, key, value string) {
	if _, ok := attrs[key]; !ok {
		attrs[key] = value
	}
}
