package providers

import (
	"fmt"
	"strconv"
	"strings"
)

// Size validation constants. The Ark upstream requires at least 921600
// pixels per image and caps either dimension at 2048.
const (
	MinPixels    = 921600
	MaxDimension = 2048
	DefaultSize  = "1024x1024"
)

// arkSizes is the fixed allow-list of supported WIDTHxHEIGHT pairs.
var arkSizes = []string{
	"1024x1024",
	"1152x896",
	"896x1152",
	"1344x768",
	"768x1344",
	"1536x640",
	"640x1536",
	"1280x720",
	"720x1280",
	"1600x576",
	"576x1600",
}

// wanxSizes is the wanx allow-list in its own WIDTH*HEIGHT convention.
var wanxSizes = []string{
	"512*512",
	"720*1280",
	"1024*1024",
	"1280*720",
	"1280*1920",
	"1920*1280",
}

// ArkSizes returns the Ark size allow-list.
func ArkSizes() []string {
	out := make([]string, len(arkSizes))
	copy(out, arkSizes)
	return out
}

// WanxSizes returns the wanx size allow-list.
func WanxSizes() []string {
	out := make([]string, len(wanxSizes))
	copy(out, wanxSizes)
	return out
}

// ParseSize splits a "WxH" (or "W*H") string into dimensions.
func ParseSize(size string) (width, height int, err error) {
	sep := "x"
	if strings.Contains(size, "*") {
		sep = "*"
	}
	parts := strings.Split(size, sep)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("malformed size %q", size)
	}
	width, err = strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, fmt.Errorf("malformed width in %q", size)
	}
	height, err = strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, fmt.Errorf("malformed height in %q", size)
	}
	return width, height, nil
}

// ValidSize reports whether a candidate "WxH" size is acceptable: either a
// member of the fixed allow-list, or satisfying the general rule (pixel
// count >= MinPixels, each dimension <= MaxDimension).
func ValidSize(size string) bool {
	w, h, err := ParseSize(size)
	if err != nil || w <= 0 || h <= 0 {
		return false
	}
	canonical := fmt.Sprintf("%dx%d", w, h)
	for _, s := range arkSizes {
		if s == canonical {
			return true
		}
	}
	return w*h >= MinPixels && w <= MaxDimension && h <= MaxDimension
}

// NormalizeSize validates width x height and renders the size in the given
// separator convention. Invalid sizes are silently replaced with the
// 1024x1024 default rather than rejected.
func NormalizeSize(width, height int, sep string) string {
	size := fmt.Sprintf("%dx%d", width, height)
	if !ValidSize(size) {
		return "1024" + sep + "1024"
	}
	return fmt.Sprintf("%d%s%d", width, sep, height)
}
