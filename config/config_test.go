package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nvr-ai/go-tensordecode/models/model"
	"github.com/nvr-ai/go-tensordecode/models/postprocess"
	"github.com/nvr-ai/go-tensordecode/models/ssd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const faceAndPose = `
log:
  level: debug
video:
  width: 640
  height: 480
exclude: [person]
heads:
  - name: face
    kind: ssd
    priors_path: box_priors.txt
    labels_path: labels_face.txt
    label_size: 2
    nms_order: descending
    max_detections: 2
    exclude: [background]
  - name: pose
    kind: pose
    channels: [0, 1, 2]
`

func TestParse_AppliesKindDefaults(t *testing.T) {
	cfg, err := Parse(strings.NewReader(faceAndPose))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, []string{"person"}, cfg.Exclude)
	require.Len(t, cfg.Heads, 2)

	face := cfg.Heads[0]
	assert.Equal(t, model.KindSSD, face.Kind)
	assert.Equal(t, 1917, face.DetectionMax)
	assert.Equal(t, 2, face.LabelSize)
	assert.Equal(t, ssd.DefaultScale, face.Scale)
	assert.Equal(t, float32(0.5), face.ScoreThreshold)
	assert.Equal(t, float32(0.5), face.IoUThreshold)
	assert.Equal(t, postprocess.OrderDescending, face.NMSOrder)
	assert.Equal(t, 300, face.ModelWidth)
	assert.Equal(t, []string{"background"}, face.Exclude)

	nms := face.SSD().NMS
	assert.Equal(t, 2, nms.MaxDetections)
	assert.Equal(t, postprocess.OrderDescending, nms.Order)

	p := cfg.Heads[1]
	assert.Equal(t, model.KindPose, p.Kind)
	assert.Equal(t, 17, p.KeypointCount)
	assert.Equal(t, 9, p.GridX)
	assert.Equal(t, 257, p.Pose().ModelHeight)
	assert.Equal(t, []int{0, 1, 2}, p.Pose().Channels)
}

func TestParse_EnvOverrides(t *testing.T) {
	t.Setenv(EnvLogFormat, "json")
	t.Setenv(EnvScoreThreshold, "0.7")
	t.Setenv(EnvIoUThreshold, "0.3")

	cfg, err := Parse(strings.NewReader(faceAndPose))
	require.NoError(t, err)

	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, float32(0.7), cfg.Heads[0].ScoreThreshold)
	assert.Equal(t, float32(0.3), cfg.Heads[0].IoUThreshold)
}

func TestParse_BadEnv(t *testing.T) {
	t.Setenv(EnvScoreThreshold, "high")

	_, err := Parse(strings.NewReader(faceAndPose))
	require.Error(t, err)
	assert.True(t, model.IsConfigError(err))
}

func TestParse_NaNEnvThreshold(t *testing.T) {
	t.Setenv(EnvIoUThreshold, "NaN")

	_, err := Parse(strings.NewReader(faceAndPose))
	require.Error(t, err)
	assert.True(t, model.IsConfigError(err), "got %v", err)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{name: "empty", yaml: ""},
		{name: "unknown field", yaml: "heads: []\nbogus: 1\n"},
		{name: "unknown kind", yaml: "heads:\n  - name: a\n    kind: yolo\n"},
		{name: "missing priors", yaml: "heads:\n  - name: a\n    kind: ssd\n"},
		{name: "missing name", yaml: "heads:\n  - kind: pose\n"},
		{name: "duplicate name", yaml: "heads:\n  - name: a\n    kind: pose\n  - name: a\n    kind: pose\n"},
		{name: "grid too small", yaml: "heads:\n  - name: a\n    kind: pose\n    grid_x: 1\n"},
		{name: "channel out of range", yaml: "heads:\n  - name: a\n    kind: pose\n    channels: [17]\n"},
		{name: "threshold out of range", yaml: "heads:\n  - name: a\n    kind: ssd\n    priors_path: p\n    score_threshold: 2\n"},
		{name: "nan iou threshold", yaml: "heads:\n  - name: a\n    kind: ssd\n    priors_path: p\n    iou_threshold: .nan\n"},
		{name: "unknown head field", yaml: "heads:\n  - name: a\n    kind: ssd\n    priors_path: p\n    score_treshold: 0.9\n"},
		{name: "unknown scale field", yaml: "heads:\n  - name: a\n    kind: ssd\n    priors_path: p\n    scale:\n      z: 1\n"},
		{name: "bad order", yaml: "heads:\n  - name: a\n    kind: ssd\n    priors_path: p\n    nms_order: sideways\n"},
		{name: "bad log format", yaml: "log:\n  format: xml\nheads:\n  - name: a\n    kind: pose\n"},
		{name: "bad video", yaml: "video:\n  width: 0\nheads:\n  - name: a\n    kind: pose\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.yaml))
			require.Error(t, err)
			assert.True(t, model.IsConfigError(err), "got %v", err)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tensordecode.yaml")
	require.NoError(t, os.WriteFile(path, []byte(faceAndPose), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, cfg.Heads, 2)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.True(t, model.IsConfigError(err))
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(EnvIoUThreshold+"=0.25\n"), 0o600))
	t.Setenv(EnvIoUThreshold, "")
	require.NoError(t, os.Unsetenv(EnvIoUThreshold))

	require.NoError(t, LoadEnvFile(path))
	cfg, err := Parse(strings.NewReader(faceAndPose))
	require.NoError(t, err)
	assert.Equal(t, float32(0.25), cfg.Heads[0].IoUThreshold)

	assert.True(t, model.IsConfigError(LoadEnvFile(filepath.Join(t.TempDir(), "missing.env"))))
}
