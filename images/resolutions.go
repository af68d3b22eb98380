// Package images provides the resolutions that decoded coordinates are expressed in:
// the model input resolution the decoder works in, and the video resolution the
// renderer and controller work in.
package images

import (
	"fmt"
	"math"
)

// ResolutionType names a known resolution.
type ResolutionType string

// Known model input and video resolutions.
const (
	ResolutionTypeSSD300   ResolutionType = "SSD 300x300"
	ResolutionTypePoseNet  ResolutionType = "PoseNet 257x257"
	ResolutionTypeVGA      ResolutionType = "VGA"
	ResolutionTypeHD720p   ResolutionType = "HD 720p"
	ResolutionTypeFHD1080p ResolutionType = "Full HD 1080p"
)

// Resolution is a width/height pair in pixels.
type Resolution struct {
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// GetMegaPixels returns the megapixel value rounded to two decimal places.
func (r Resolution) GetMegaPixels() float64 {
	if r.Width <= 0 || r.Height <= 0 {
		return 0.0
	}
	mp := float64(r.Width*r.Height) / 1_000_000.0
	return math.Round(mp*100) / 100
}

// Valid reports whether both dimensions are positive.
func (r Resolution) Valid() bool {
	return r.Width > 0 && r.Height > 0
}

func (r Resolution) String() string {
	return fmt.Sprintf("%dx%d", r.Width, r.Height)
}

var resolutions = map[ResolutionType]Resolution{
	ResolutionTypeSSD300:   {Width: 300, Height: 300},
	ResolutionTypePoseNet:  {Width: 257, Height: 257},
	ResolutionTypeVGA:      {Width: 640, Height: 480},
	ResolutionTypeHD720p:   {Width: 1280, Height: 720},
	ResolutionTypeFHD1080p: {Width: 1920, Height: 1080},
}

// GetResolution looks up a known resolution by type.
//
// Arguments:
//   - t: The resolution type.
//
// Returns:
//   - Resolution: The resolution.
//   - bool: False when the type is unknown.
func GetResolution(t ResolutionType) (Resolution, bool) {
	r, ok := resolutions[t]
	return r, ok
}
