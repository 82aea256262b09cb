package sensors

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"

	"github.com/relabs-tech/lora_tracker/internal/heading"
	"github.com/relabs-tech/lora_tracker/internal/ranging"
)

// NewUltrasonic flushes pending edges, so tests queue edges afterwards.
func newTestRanger(t *testing.T, edges chan gpio.Level) (*Ultrasonic, *gpiotest.Pin) {
	t.Helper()
	trig := &gpiotest.Pin{N: "TRIG"}
	echo := &gpiotest.Pin{N: "ECHO", EdgesChan: edges}
	u, err := NewUltrasonic(trig, echo, 5*time.Millisecond)
	require.NoError(t, err)
	u.sleep = func(time.Duration) {}
	return u, trig
}

func TestUltrasonicEcho(t *testing.T) {
	edges := make(chan gpio.Level, 2)
	u, trig := newTestRanger(t, edges)
	edges <- gpio.High
	edges <- gpio.Low

	d, ok, err := u.Ping()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.GreaterOrEqual(t, d, time.Duration(0))
	assert.Equal(t, gpio.Low, trig.Read(), "trigger left low after the pulse")
}

func TestUltrasonicNoEcho(t *testing.T) {
	u, _ := newTestRanger(t, make(chan gpio.Level))
	_, ok, err := u.Ping()
	require.NoError(t, err)
	assert.False(t, ok)

	s := ranging.NewSampler(0)
	assert.Equal(t, ranging.NoEcho, s.Measure(0, ok))
}

func TestMockCompassStaysOnCalibration(t *testing.T) {
	cal := heading.Calibration{XMin: -27.64, XMax: 43.36, YMin: -47.82, YMax: 24.36}
	m := NewMockCompass(cal)
	for i := 0; i < 50; i++ {
		s, err := m.ReadMag()
		require.NoError(t, err)
		assert.InDelta(t, (cal.XMax+cal.XMin)/2, s.X, 37)
		assert.InDelta(t, (cal.YMax+cal.YMin)/2, s.Y, 38)
	}
}

func TestMockRanger(t *testing.T) {
	m := &MockRanger{}
	s := ranging.NewSampler(340)
	var noEcho int
	for i := 0; i < 10; i++ {
		d, ok, err := m.Ping()
		require.NoError(t, err)
		r := s.Measure(d, ok)
		if r.IsNoEcho() {
			noEcho++
			continue
		}
		assert.InDelta(t, 25, float64(r), 16)
	}
	assert.Equal(t, 2, noEcho)
}

func TestMockPositionAcquires(t *testing.T) {
	m := NewMockPosition(45.0, 7.0)
	for i := 0; i < m.Acquire; i++ {
		assert.False(t, m.Fix().Valid())
	}
	f := m.Fix()
	assert.True(t, f.Valid())
	assert.InDelta(t, 45.00001, f.Latitude, 1e-9)
}
