// Package config - YAML configuration for the decoder with environment overrides.
package config

import (
	"bytes"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/chewxy/math32"
	"github.com/joho/godotenv"
	"github.com/nvr-ai/go-tensordecode/images"
	"github.com/nvr-ai/go-tensordecode/models/model"
	"github.com/nvr-ai/go-tensordecode/models/pose"
	"github.com/nvr-ai/go-tensordecode/models/postprocess"
	"github.com/nvr-ai/go-tensordecode/models/ssd"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Environment variables that override file values.
const (
	EnvLogLevel       = "TENSORDECODE_LOG_LEVEL"
	EnvLogFormat      = "TENSORDECODE_LOG_FORMAT"
	EnvScoreThreshold = "TENSORDECODE_SCORE_THRESHOLD"
	EnvIoUThreshold   = "TENSORDECODE_IOU_THRESHOLD"
)

// Log configures the logger.
type Log struct {
	// One of trace, debug, info, warn, error.
	Level string `json:"level" yaml:"level"`
	// Either text or json.
	Format string `json:"format" yaml:"format"`
}

// Config is the top-level decoder configuration.
type Config struct {
	Log Log `json:"log" yaml:"log"`
	// The video resolution decoded coordinates are scaled to for rendering and control.
	Video images.Resolution `json:"video" yaml:"video"`
	// Labels whose detections are dropped from the aggregated result, e.g. "person".
	Exclude []string `json:"exclude,omitempty" yaml:"exclude,omitempty"`
	// Decoder heads, one per model output group.
	Heads []Head `json:"heads" yaml:"heads"`
}

// Head configures one decoder head. Fields that do not apply to the head's kind are
// ignored.
type Head struct {
	Name string     `json:"name" yaml:"name"`
	Kind model.Kind `json:"kind" yaml:"kind"`

	// Label text file. Empty uses the built-in COCO classes or PoseNet keypoint names.
	LabelsPath  string `json:"labels_path,omitempty" yaml:"labels_path,omitempty"`
	ModelWidth  int    `json:"model_width" yaml:"model_width"`
	ModelHeight int    `json:"model_height" yaml:"model_height"`
	// Labels dropped from this head only, on top of the top-level exclude list.
	Exclude []string `json:"exclude,omitempty" yaml:"exclude,omitempty"`

	// SSD
	PriorsPath     string            `json:"priors_path,omitempty" yaml:"priors_path,omitempty"`
	DetectionMax   int               `json:"detection_max,omitempty" yaml:"detection_max,omitempty"`
	LabelSize      int               `json:"label_size,omitempty" yaml:"label_size,omitempty"`
	Scale          ssd.Scale         `json:"scale,omitempty" yaml:"scale,omitempty"`
	ScoreThreshold float32           `json:"score_threshold,omitempty" yaml:"score_threshold,omitempty"`
	IoUThreshold   float32           `json:"iou_threshold,omitempty" yaml:"iou_threshold,omitempty"`
	NMSOrder       postprocess.Order `json:"nms_order,omitempty" yaml:"nms_order,omitempty"`
	ClassAware     bool              `json:"class_aware,omitempty" yaml:"class_aware,omitempty"`
	MaxDetections  int               `json:"max_detections,omitempty" yaml:"max_detections,omitempty"`

	// Pose
	KeypointCount int   `json:"keypoint_count,omitempty" yaml:"keypoint_count,omitempty"`
	GridX         int   `json:"grid_x,omitempty" yaml:"grid_x,omitempty"`
	GridY         int   `json:"grid_y,omitempty" yaml:"grid_y,omitempty"`
	Channels      []int `json:"channels,omitempty" yaml:"channels,omitempty"`
}

// Default returns a configuration with no heads.
func Default() *Config {
	return &Config{
		Log:   Log{Level: "info", Format: "text"},
		Video: images.Resolution{Width: 640, Height: 480},
	}
}

// DefaultHead returns the reference parameters for a head kind: the 1917-anchor
// 300x300 SSD MobileNet for KindSSD and the 17-keypoint 257x257 PoseNet for KindPose.
func DefaultHead(kind model.Kind) Head {
	switch kind {
	case model.KindSSD:
		return Head{
			Kind:           kind,
			ModelWidth:     300,
			ModelHeight:    300,
			DetectionMax:   1917,
			LabelSize:      91,
			Scale:          ssd.DefaultScale,
			ScoreThreshold: ssd.DefaultScoreThreshold,
			IoUThreshold:   postprocess.DefaultNMSConfig().IoUThreshold,
		}
	case model.KindPose:
		return Head{
			Kind:          kind,
			ModelWidth:    pose.DefaultModelSize,
			ModelHeight:   pose.DefaultModelSize,
			KeypointCount: pose.DefaultKeypointCount,
			GridX:         pose.DefaultGrid,
			GridY:         pose.DefaultGrid,
		}
	default:
		return Head{Kind: kind}
	}
}

// UnmarshalYAML fills the kind's defaults before decoding so omitted fields keep them.
func (h *Head) UnmarshalYAML(node *yaml.Node) error {
	var probe struct {
		Kind model.Kind `yaml:"kind"`
	}
	if err := node.Decode(&probe); err != nil {
		return err
	}

	// node.Decode drops the parent decoder's KnownFields, so decode a strict copy.
	raw, err := yaml.Marshal(node)
	if err != nil {
		return err
	}
	type plain Head
	p := plain(DefaultHead(probe.Kind))
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil && !errors.Is(err, io.EOF) {
		return errors.Wrapf(err, "line %d", node.Line)
	}
	*h = Head(p)
	return nil
}

// SSD returns the SSD decoder parameters of the head.
func (h Head) SSD() ssd.Config {
	return ssd.Config{
		DetectionMax:   h.DetectionMax,
		LabelSize:      h.LabelSize,
		Scale:          h.Scale,
		ModelWidth:     h.ModelWidth,
		ModelHeight:    h.ModelHeight,
		ScoreThreshold: h.ScoreThreshold,
		NMS: postprocess.NMSConfig{
			IoUThreshold:  h.IoUThreshold,
			Order:         h.NMSOrder,
			ClassAware:    h.ClassAware,
			MaxDetections: h.MaxDetections,
		},
	}
}

// Pose returns the pose extractor parameters of the head.
func (h Head) Pose() pose.Config {
	return pose.Config{
		KeypointCount: h.KeypointCount,
		GridX:         h.GridX,
		GridY:         h.GridY,
		ModelWidth:    h.ModelWidth,
		ModelHeight:   h.ModelHeight,
		Channels:      h.Channels,
	}
}

// ModelResolution returns the head's model input resolution.
func (h Head) ModelResolution() images.Resolution {
	return images.Resolution{Width: h.ModelWidth, Height: h.ModelHeight}
}

// Load reads a YAML file, applies environment overrides and validates the result.
//
// Arguments:
//   - path: The YAML file.
//
// Returns:
//   - *Config: The validated configuration.
//   - error: A *model.ConfigError if the file is missing, malformed or invalid.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, model.NewConfigError(path, "cannot read config: %v", err)
	}
	cfg, err := parse(bytes.NewReader(data), path)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse reads YAML from r. See Load.
func Parse(r io.Reader) (*Config, error) {
	return parse(r, "config")
}

func parse(r io.Reader, source string) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, model.NewConfigError(source, "invalid yaml: %v", err)
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides file values with the TENSORDECODE_* environment variables. The
// threshold overrides apply to every SSD head.
func (c *Config) ApplyEnv() error {
	c.Log.Level = getEnv(EnvLogLevel, c.Log.Level)
	c.Log.Format = getEnv(EnvLogFormat, c.Log.Format)

	score, ok, err := getEnvAsFloat32(EnvScoreThreshold)
	if err != nil {
		return err
	}
	if ok {
		for i := range c.Heads {
			c.Heads[i].ScoreThreshold = score
		}
	}

	iou, ok, err := getEnvAsFloat32(EnvIoUThreshold)
	if err != nil {
		return err
	}
	if ok {
		for i := range c.Heads {
			c.Heads[i].IoUThreshold = iou
		}
	}
	return nil
}

// Validate checks the configuration for values no decoder could run with.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		return model.NewConfigError("log.format", "unknown format %q", c.Log.Format)
	}
	if !c.Video.Valid() {
		return model.NewConfigError("video", "resolution must be positive, got %s", c.Video)
	}
	if len(c.Heads) == 0 {
		return model.NewConfigError("heads", "at least one head is required")
	}

	seen := make(map[string]struct{}, len(c.Heads))
	for i, h := range c.Heads {
		if h.Name == "" {
			return model.NewConfigError("heads", "head %d has no name", i)
		}
		if _, dup := seen[h.Name]; dup {
			return model.NewConfigError("heads", "duplicate head name %q", h.Name)
		}
		seen[h.Name] = struct{}{}

		if err := h.Validate(); err != nil {
			return errors.Wrapf(err, "head %q", h.Name)
		}
	}
	return nil
}

// Validate checks the fields that apply to the head's kind.
func (h Head) Validate() error {
	if h.ModelWidth <= 0 || h.ModelHeight <= 0 {
		return model.NewConfigError(h.Name, "model size must be positive, got %dx%d", h.ModelWidth, h.ModelHeight)
	}
	switch h.Kind {
	case model.KindSSD:
		if h.PriorsPath == "" {
			return model.NewConfigError(h.Name, "ssd head requires priors_path")
		}
		if h.DetectionMax <= 0 {
			return model.NewConfigError(h.Name, "detection_max must be positive, got %d", h.DetectionMax)
		}
		if h.LabelSize < 2 {
			return model.NewConfigError(h.Name, "label_size must be at least 2, got %d", h.LabelSize)
		}
		if h.ScoreThreshold < 0 || h.ScoreThreshold > 1 || math32.IsNaN(h.ScoreThreshold) {
			return model.NewConfigError(h.Name, "score_threshold must be in [0, 1], got %v", h.ScoreThreshold)
		}
		if h.IoUThreshold < 0 || h.IoUThreshold > 1 || math32.IsNaN(h.IoUThreshold) {
			return model.NewConfigError(h.Name, "iou_threshold must be in [0, 1], got %v", h.IoUThreshold)
		}
		if h.MaxDetections < 0 {
			return model.NewConfigError(h.Name, "max_detections must not be negative, got %d", h.MaxDetections)
		}
	case model.KindPose:
		if h.KeypointCount <= 0 {
			return model.NewConfigError(h.Name, "keypoint_count must be positive, got %d", h.KeypointCount)
		}
		if h.GridX < 2 || h.GridY < 2 {
			return model.NewConfigError(h.Name, "grid must be at least 2x2, got %dx%d", h.GridX, h.GridY)
		}
		for _, c := range h.Channels {
			if c < 0 || c >= h.KeypointCount {
				return model.NewConfigError(h.Name, "channel %d out of range [0, %d)", c, h.KeypointCount)
			}
		}
	default:
		return model.NewConfigError(h.Name, "unknown head kind %q", h.Kind)
	}
	return nil
}

// LoadEnvFile sets TENSORDECODE_* and other variables from a dotenv file. Variables
// already present in the environment win.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		return model.NewConfigError(path, "cannot load env file: %v", err)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsFloat32(key string) (float32, bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return 0, false, nil
	}
	f, err := strconv.ParseFloat(value, 32)
	if err != nil {
		return 0, false, model.NewConfigError(key, "not a number: %q", value)
	}
	return float32(f), true, nil
}
