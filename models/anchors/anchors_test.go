package anchors

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nvr-ai/go-tensordecode/models/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const priors = `0.1 0.2 0.3
0.4 0.5 0.6
0.7 0.8 0.9
1.0 1.1 1.2
`

func TestParse(t *testing.T) {
	table, err := Parse(strings.NewReader(priors), 3)
	require.NoError(t, err)

	assert.Equal(t, 3, table.Len())
	assert.Equal(t, Prior{YCenter: 0.2, XCenter: 0.5, Height: 0.8, Width: 1.1}, table.At(1))
}

func TestParse_IgnoresExtraValuesAndBlankLines(t *testing.T) {
	src := "\n0.1 0.2 9\n\n0.3 0.4 9\n0.5 0.6 9\n0.7 0.8 9\nignored line\n"

	table, err := Parse(strings.NewReader(src), 2)
	require.NoError(t, err)

	assert.Equal(t, 2, table.Len())
	assert.Equal(t, Prior{YCenter: 0.2, XCenter: 0.4, Height: 0.6, Width: 0.8}, table.At(1))
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		max  int
	}{
		{name: "too few lines", src: "0.1 0.2\n0.3 0.4\n", max: 2},
		{name: "short line", src: "0.1 0.2\n0.3\n0.5 0.6\n0.7 0.8\n", max: 2},
		{name: "not a number", src: "0.1 x\n0.3 0.4\n0.5 0.6\n0.7 0.8\n", max: 2},
		{name: "empty source", src: "", max: 2},
		{name: "non-positive detection max", src: priors, max: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.src), tt.max)
			require.Error(t, err)
			assert.True(t, model.IsConfigError(err), "got %T", err)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "box_priors.txt")
	require.NoError(t, os.WriteFile(path, []byte(priors), 0o600))

	table, err := Load(path, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, table.Len())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.txt"), 3)
	require.Error(t, err)
	assert.True(t, model.IsConfigError(err))
}

func TestNew(t *testing.T) {
	y := []float32{0.5}
	table, err := New(y, []float32{0.5}, []float32{0.2}, []float32{0.2})
	require.NoError(t, err)

	y[0] = 9
	assert.Equal(t, float32(0.5), table.At(0).YCenter, "table must not alias caller slices")

	_, err = New([]float32{1}, nil, nil, nil)
	assert.True(t, model.IsConfigError(err))
}
