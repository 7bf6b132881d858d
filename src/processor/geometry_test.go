package processor

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"imagekit/src/imageservice"
)

func TestPlanResize(t *testing.T) {
	tests := []struct {
		name string
		srcW int
		srcH int
		tr   imageservice.Transform
		want resizePlan
	}{
		{"nothing requested", 100, 50, imageservice.Transform{}, resizePlan{Mode: resizeNone}},
		{"same size", 100, 50, imageservice.Transform{Width: 100}, resizePlan{Mode: resizeNone, Width: 100, Height: 50}},
		{"width", 100, 50, imageservice.Transform{Width: 50}, resizePlan{Mode: resizeScale, Width: 50, Height: 25}},
		{"height", 100, 50, imageservice.Transform{Height: 10}, resizePlan{Mode: resizeScale, Width: 20, Height: 10}},
		{"width capped", 100, 50, imageservice.Transform{Width: 500}, resizePlan{Mode: resizeNone, Width: 100, Height: 50}},
		{"fit none ignores height", 100, 50, imageservice.Transform{Width: 50, Height: 50, Fit: "none"}, resizePlan{Mode: resizeScale, Width: 50, Height: 25}},
		{
			"cover",
			100, 50,
			imageservice.Transform{Width: 20, Height: 20, Fit: "cover", Position: "top left"},
			resizePlan{Mode: resizeCover, Width: 20, Height: 20, Anchor: anchor{-1, -1}},
		},
		{"cover box shrinks to source", 100, 50, imageservice.Transform{Width: 200, Height: 200, Fit: "cover"}, resizePlan{Mode: resizeCover, Width: 50, Height: 50}},
		{"fill", 100, 50, imageservice.Transform{Width: 10, Height: 40, Fit: "fill"}, resizePlan{Mode: resizeFill, Width: 10, Height: 40}},
		{"inside", 100, 50, imageservice.Transform{Width: 20, Height: 20, Fit: "inside"}, resizePlan{Mode: resizeScale, Width: 20, Height: 10}},
		{"scale-down", 100, 50, imageservice.Transform{Width: 20, Height: 20, Fit: "scale-down"}, resizePlan{Mode: resizeScale, Width: 20, Height: 10}},
		{"outside", 100, 50, imageservice.Transform{Width: 20, Height: 20, Fit: "outside"}, resizePlan{Mode: resizeScale, Width: 40, Height: 20}},
		{"tiny keeps one pixel", 1000, 1, imageservice.Transform{Width: 10}, resizePlan{Mode: resizeScale, Width: 10, Height: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, planResize(tt.srcW, tt.srcH, tt.tr))
		})
	}
}

func TestParseAnchor(t *testing.T) {
	tests := []struct {
		position string
		want     anchor
	}{
		{"", anchor{}},
		{"center", anchor{}},
		{"top", anchor{Vertical: -1}},
		{"right bottom", anchor{Vertical: 1, Horizontal: 1}},
		{"Left", anchor{Horizontal: -1}},
		{"northeast", anchor{Vertical: -1, Horizontal: 1}},
		{"south west", anchor{Vertical: 1, Horizontal: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.position, func(t *testing.T) {
			assert.Equal(t, tt.want, parseAnchor(tt.position))
		})
	}
}
