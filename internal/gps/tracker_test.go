package gps

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	rmcValid   = "$GPRMC,123519,A,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W*6A"
	rmcVoid    = "$GPRMC,123520,V,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W*77"
	ggaFix     = "$GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,*47"
	ggaNoFix   = "$GPGGA,123521,4807.038,N,01131.000,E,0,00,99.9,545.4,M,46.9,M,,*75"
	badSumLine = "$GPRMC,123519,A,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W*00"
)

func TestTrackerStartsInvalid(t *testing.T) {
	tr := NewTracker()
	assert.False(t, tr.Fix().Valid())
	assert.Zero(t, tr.Updates())
}

func TestTrackerValidRMC(t *testing.T) {
	tr := NewTracker()
	require.True(t, tr.HandleLine(rmcValid))

	f := tr.Fix()
	assert.True(t, f.Valid())
	assert.InDelta(t, 48.1173, f.Latitude, 1e-6)
	assert.InDelta(t, 11.516667, f.Longitude, 1e-6)
	assert.InDelta(t, 22.4, f.SpeedKnots, 1e-9)
	assert.Equal(t, "A", f.Validity)
}

func TestTrackerVoidAndNoFix(t *testing.T) {
	tr := NewTracker()
	require.True(t, tr.HandleLine(rmcVoid))
	assert.False(t, tr.Fix().Valid())
	assert.Zero(t, tr.Fix().Latitude)

	require.True(t, tr.HandleLine(rmcValid))
	require.True(t, tr.HandleLine(ggaFix))
	assert.True(t, tr.Fix().Valid())
	assert.EqualValues(t, 8, tr.Fix().Satellites)

	require.True(t, tr.HandleLine(ggaNoFix))
	assert.False(t, tr.Fix().Valid(), "GGA quality 0 invalidates the fix")
}

func TestTrackerIgnoresNoise(t *testing.T) {
	tr := NewTracker()
	assert.False(t, tr.HandleLine(""))
	assert.False(t, tr.HandleLine("garbage"))
	assert.False(t, tr.HandleLine(badSumLine))
	assert.False(t, tr.HandleLine("$GPRMC,1234"))
	assert.Zero(t, tr.Updates())
}

func TestTrackerRun(t *testing.T) {
	stream := strings.Join([]string{"noise", rmcVoid, ggaFix, rmcValid}, "\r\n")
	tr := NewTracker()
	require.NoError(t, tr.Run(context.Background(), strings.NewReader(stream)))
	assert.Equal(t, uint64(3), tr.Updates())
	assert.True(t, tr.Fix().Valid())
}

func TestTrackerRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewTracker().Run(ctx, strings.NewReader(rmcValid+"\n"))
	assert.ErrorIs(t, err, context.Canceled)
}
