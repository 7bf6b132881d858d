package imageservice

import "strconv"

// QualityPresets maps named qualities to encoder quality values
var QualityPresets = map[string]int{
	"low":  25,
	"mid":  50,
	"high": 80,
	"max":  100,
}

// ParseQuality resolves a numeric or preset quality.
// ok is false for anything outside 1..100 or not a known preset.
func ParseQuality(q string) (int, bool) {
	if q == "" {
		return 0, false
	}
	if v, ok := QualityPresets[q]; ok {
		return v, true
	}
	v, err := strconv.Atoi(q)
	if err != nil || v < 1 || v > 100 {
		return 0, false
	}
	return v, true
}
