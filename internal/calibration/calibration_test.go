package calibration

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/lora_tracker/internal/heading"
)

func circleSweep(n int, cx, cy, rx, ry float64) *Sweep {
	s := NewSweep(n)
	for i := 0; i < n; i++ {
		a := 2 * math.Pi * float64(i) / float64(n)
		s.Add(heading.Sample{X: cx + rx*math.Cos(a), Y: cy + ry*math.Sin(a)})
	}
	return s
}

func TestSweepResult(t *testing.T) {
	s := circleSweep(360, 8, -12, 35, 36)
	require.Equal(t, 360, s.Len())

	r, err := s.Result()
	require.NoError(t, err)
	assert.InDelta(t, -27, r.Bounds.XMin, 1e-9)
	assert.InDelta(t, 43, r.Bounds.XMax, 1e-9)
	assert.InDelta(t, -48, r.Bounds.YMin, 1e-9)
	assert.InDelta(t, 24, r.Bounds.YMax, 1e-9)
	assert.InDelta(t, 8, r.OffsetX, 1e-9)
	assert.InDelta(t, -12, r.OffsetY, 1e-9)
	assert.InDelta(t, 70.0/72.0*100, r.Confidence, 1e-6)
	assert.Equal(t, 360, r.SampleCount)
	assert.Greater(t, r.MeanNorm, 0.0)
}

func TestSweepDegenerate(t *testing.T) {
	s := NewSweep(MinSamples)
	for i := 0; i < MinSamples; i++ {
		s.Add(heading.Sample{X: float64(i), Y: 4})
	}
	_, err := s.Result()
	assert.ErrorIs(t, err, heading.ErrCalibrationDegenerate)
}

func TestSweepTooFew(t *testing.T) {
	_, err := circleSweep(5, 0, 0, 1, 1).Result()
	assert.ErrorIs(t, err, ErrTooFewSamples)
}

func TestSaveLoad(t *testing.T) {
	r, err := circleSweep(100, 0, 0, 50, 40).Result()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "mag_calibration.json")
	require.NoError(t, Save(path, r))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, r.Bounds, got.Bounds)
	assert.Equal(t, r.SampleCount, got.SampleCount)

	assert.Contains(t, r.ConfigLines(), "MAG_X_MIN=-50\n")
}

func TestLoadRejectsDegenerateFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"bounds":{"x_min":1,"x_max":1,"y_min":0,"y_max":2}}`), 0644))
	_, err := Load(path)
	assert.ErrorIs(t, err, heading.ErrCalibrationDegenerate)
}
