package heading

import (
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var unitCal = Calibration{XMin: -100, XMax: 100, YMin: -100, YMax: 100}

const decl = 0.009

func repeat(s Sample, n int) []Sample {
	out := make([]Sample, n)
	for i := range out {
		out[i] = s
	}
	return out
}

func TestEstimateCardinalDirections(t *testing.T) {
	tests := []struct {
		name   string
		sample Sample
		want   Bearing
	}{
		{"north", Sample{X: 100, Y: 0}, 0},
		{"east", Sample{X: 0, Y: 100}, 90},
		{"south", Sample{X: -100, Y: 0}, 180},
		{"west", Sample{X: 0, Y: -100}, 270},
		{"north-east", Sample{X: 100, Y: 100}, 45},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Estimate(repeat(tt.sample, 10), unitCal, decl)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEstimateUsesCalibrationBounds(t *testing.T) {
	cal := Calibration{XMin: -27.64, XMax: 43.36, YMin: -47.82, YMax: 24.36}
	// X at its maximum, Y centred: normalised (1, ~0).
	got, err := Estimate(repeat(Sample{X: 43.36, Y: -11.73}, 10), cal, 0.2)
	require.NoError(t, err)
	assert.Equal(t, Bearing(11), got)
}

func TestEstimateTruncates(t *testing.T) {
	// atan2(1, 1) = 45°, plus 0.99° of declination still truncates to 45.
	got, err := Estimate(repeat(Sample{X: 100, Y: 100}, 3), unitCal, 0.99*math.Pi/180)
	require.NoError(t, err)
	assert.Equal(t, Bearing(45), got)
}

func TestEstimateAveragesArithmetically(t *testing.T) {
	samples := []Sample{{X: 100, Y: 0}, {X: 0, Y: 100}}
	got, err := Estimate(samples, unitCal, decl)
	require.NoError(t, err)
	assert.Equal(t, Bearing(45), got)
}

func TestEstimateRangeAndFullTurnInvariance(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		batch := make([]Sample, 10)
		for j := range batch {
			batch[j] = Sample{X: rng.Float64()*200 - 100, Y: rng.Float64()*200 - 100}
		}

		b, err := Estimate(batch, unitCal, decl)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, int(b), 0)
		assert.LessOrEqual(t, int(b), 359)

		turned, err := Estimate(batch, unitCal, decl+2*math.Pi)
		require.NoError(t, err)
		assert.Equal(t, b, turned, "batch %d", i)
	}
}

func TestEstimateDegenerateCalibration(t *testing.T) {
	cals := []Calibration{
		{XMin: 5, XMax: 5, YMin: -1, YMax: 1},
		{XMin: -1, XMax: 1, YMin: 3, YMax: 3},
		{XMin: 1, XMax: -1, YMin: -1, YMax: 1},
	}
	for _, cal := range cals {
		_, err := Estimate(repeat(Sample{X: 1, Y: 1}, 10), cal, 0)
		assert.True(t, errors.Is(err, ErrCalibrationDegenerate), "cal %+v", cal)

		_, err = NewEstimator(cal, 0, 10, 0)
		assert.ErrorIs(t, err, ErrCalibrationDegenerate)
	}
}

func TestEstimateEmptyBatch(t *testing.T) {
	_, err := Estimate(nil, unitCal, 0)
	assert.ErrorIs(t, err, ErrNoSamples)
}

type sliceSource struct {
	samples []Sample
	i       int
	err     error
}

func (s *sliceSource) ReadMag() (Sample, error) {
	if s.err != nil && s.i >= len(s.samples) {
		return Sample{}, s.err
	}
	v := s.samples[s.i%len(s.samples)]
	s.i++
	return v, nil
}

func TestEstimatorReadBatchAndDelay(t *testing.T) {
	est, err := NewEstimator(unitCal, decl, 0, 25*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, DefaultBatchSize, est.BatchSize())

	var waits []time.Duration
	est.Sleep = func(d time.Duration) { waits = append(waits, d) }

	src := &sliceSource{samples: []Sample{{X: 0, Y: 100}}}
	b, err := est.Read(src)
	require.NoError(t, err)
	assert.Equal(t, Bearing(90), b)
	assert.Equal(t, 10, src.i)
	assert.Len(t, waits, 9)
	for _, w := range waits {
		assert.Equal(t, 25*time.Millisecond, w)
	}
}

func TestEstimatorReadError(t *testing.T) {
	est, err := NewEstimator(unitCal, 0, 4, 0)
	require.NoError(t, err)

	boom := errors.New("i2c nack")
	src := &sliceSource{samples: []Sample{{X: 1, Y: 1}, {X: 1, Y: 1}}, err: boom}
	_, err = est.Read(src)
	assert.ErrorIs(t, err, boom)
}
