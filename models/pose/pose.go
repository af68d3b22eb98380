// Package pose - extracts keypoints from PoseNet-style heatmap and offset tensors.
package pose

import (
	"github.com/chewxy/math32"
	"github.com/nvr-ai/go-tensordecode/models/labels"
	"github.com/nvr-ai/go-tensordecode/models/model"
	"github.com/nvr-ai/go-tensordecode/models/ssd"
	"github.com/nvr-ai/go-tensordecode/tensors"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// Reference PoseNet MobileNet export parameters.
const (
	DefaultKeypointCount = 17
	DefaultGrid          = 9
	DefaultModelSize     = 257
)

// Config describes one pose head.
type Config struct {
	KeypointCount int `json:"keypoint_count" yaml:"keypoint_count"`
	GridX         int `json:"grid_x" yaml:"grid_x"`
	GridY         int `json:"grid_y" yaml:"grid_y"`
	ModelWidth    int `json:"model_width" yaml:"model_width"`
	ModelHeight   int `json:"model_height" yaml:"model_height"`
	// Keypoint channels to extract. Empty extracts all of them.
	Channels []int `json:"channels,omitempty" yaml:"channels,omitempty"`
}

// DefaultConfig returns the 17-keypoint, 9x9 grid, 257x257 configuration.
func DefaultConfig() Config {
	return Config{
		KeypointCount: DefaultKeypointCount,
		GridX:         DefaultGrid,
		GridY:         DefaultGrid,
		ModelWidth:    DefaultModelSize,
		ModelHeight:   DefaultModelSize,
	}
}

// Extractor performs a per-channel grid argmax over a heatmap and refines the winning
// cell with the offset field.
type Extractor struct {
	cfg   Config
	names *labels.Table
}

// NewExtractor validates cfg and creates an extractor.
//
// Arguments:
//   - cfg: Head configuration.
//   - names: Optional keypoint names, index-aligned with channels. May be nil.
//
// Returns:
//   - *Extractor: The extractor.
//   - error: A *model.ConfigError when the configuration cannot be decoded.
func NewExtractor(cfg Config, names *labels.Table) (*Extractor, error) {
	if cfg.KeypointCount <= 0 {
		return nil, model.NewConfigError("", "keypoint count must be positive, got %d", cfg.KeypointCount)
	}
	// Position is normalized by grid-1.
	if cfg.GridX < 2 || cfg.GridY < 2 {
		return nil, model.NewConfigError("", "pose grid must be at least 2x2, got %dx%d", cfg.GridX, cfg.GridY)
	}
	if cfg.ModelWidth <= 0 || cfg.ModelHeight <= 0 {
		return nil, model.NewConfigError("", "model size must be positive, got %dx%d", cfg.ModelWidth, cfg.ModelHeight)
	}
	for _, c := range cfg.Channels {
		if c < 0 || c >= cfg.KeypointCount {
			return nil, model.NewConfigError("", "keypoint channel %d out of range [0, %d)", c, cfg.KeypointCount)
		}
	}
	cfg.Channels = append([]int(nil), cfg.Channels...)
	return &Extractor{cfg: cfg, names: names}, nil
}

// HeatmapCount returns the element count of the heatmap tensor.
func (e *Extractor) HeatmapCount() int {
	return e.cfg.GridY * e.cfg.GridX * e.cfg.KeypointCount
}

// OffsetCount returns the element count of the offset tensor.
func (e *Extractor) OffsetCount() int {
	return 2 * e.HeatmapCount()
}

// Channels returns the channels extracted when none are passed to Extract.
func (e *Extractor) Channels() []int {
	if len(e.cfg.Channels) > 0 {
		return append([]int(nil), e.cfg.Channels...)
	}
	all := make([]int, e.cfg.KeypointCount)
	for i := range all {
		all[i] = i
	}
	return all
}

// Extract decodes one frame's pose tensors. Both tensors are laid out cell-major with
// the channel innermost: heatmap[(y*GridX+x)*K + k], offsets[(y*GridX+x)*2K + k] for
// the y offset and + K for the x offset.
//
// Arguments:
//   - heatmap: GridY*GridX*K heatmap logits.
//   - offsets: GridY*GridX*2K offsets in model pixels.
//   - channels: Keypoint channels to extract. None uses the configured set.
//
// Returns:
//   - []model.Keypoint: One keypoint per channel, in channel argument order.
//   - error: A *model.FrameFormatError on a size mismatch, or an error for an unknown channel.
func (e *Extractor) Extract(heatmap, offsets []float32, channels ...int) ([]model.Keypoint, error) {
	k := e.cfg.KeypointCount
	hm, err := tensors.Dense(heatmap, "heatmap", e.cfg.GridY, e.cfg.GridX, k)
	if err != nil {
		return nil, err
	}
	off, err := tensors.Dense(offsets, "offsets", e.cfg.GridY, e.cfg.GridX, 2*k)
	if err != nil {
		return nil, err
	}
	if len(channels) == 0 {
		channels = e.Channels()
	}

	keypoints := make([]model.Keypoint, 0, len(channels))
	for _, c := range channels {
		if c < 0 || c >= k {
			return nil, errors.Errorf("keypoint channel %d out of range [0, %d)", c, k)
		}
		kp, err := e.channel(hm, off, c)
		if err != nil {
			return nil, errors.Wrapf(err, "keypoint %d", c)
		}
		keypoints = append(keypoints, kp)
	}
	return keypoints, nil
}

// ExtractBytes decodes little-endian float32 buffers. See Extract.
func (e *Extractor) ExtractBytes(heatmap, offsets []byte, channels ...int) ([]model.Keypoint, error) {
	hm, err := tensors.Float32s(heatmap, e.HeatmapCount(), "heatmap")
	if err != nil {
		return nil, err
	}
	off, err := tensors.Float32s(offsets, e.OffsetCount(), "offsets")
	if err != nil {
		return nil, err
	}
	return e.Extract(hm, off, channels...)
}

func (e *Extractor) channel(hm, off *tensor.Dense, c int) (model.Keypoint, error) {
	data := hm.Data().([]float32)
	k := e.cfg.KeypointCount

	best := math32.Inf(-1)
	bestX, bestY := 0, 0
	found := false
	for y := 0; y < e.cfg.GridY; y++ {
		for x := 0; x < e.cfg.GridX; x++ {
			score := ssd.Sigmoid(data[(y*e.cfg.GridX+x)*k+c])
			if score > best {
				best, bestX, bestY = score, x, y
				found = true
			}
		}
	}
	if !found {
		// Every cell was NaN.
		best = 0
	}

	yOff, err := off.At(bestY, bestX, c)
	if err != nil {
		return model.Keypoint{}, errors.Wrap(err, "read y offset")
	}
	xOff, err := off.At(bestY, bestX, c+k)
	if err != nil {
		return model.Keypoint{}, errors.Wrap(err, "read x offset")
	}

	name, _ := e.names.Name(c)
	return model.Keypoint{
		Label: c,
		Name:  name,
		X:     float32(bestX)/float32(e.cfg.GridX-1)*float32(e.cfg.ModelWidth) + xOff.(float32),
		Y:     float32(bestY)/float32(e.cfg.GridY-1)*float32(e.cfg.ModelHeight) + yOff.(float32),
		Score: best,
	}, nil
}
