package record

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/lora_tracker/internal/heading"
	"github.com/relabs-tech/lora_tracker/internal/ranging"
)

func TestFormatPath(t *testing.T) {
	tests := []struct {
		lat, lon float64
		heading  int
		want     string
	}{
		{40.123456, -70.654321, 275, "PATH,40.123456,-70.654321,275"},
		{1.5, 2.0, 0, "PATH,1.500000,2.000000,0"},
		{-12.3456789, 179.9999996, 359, "PATH,-12.345679,180.000000,359"},
		{51.5, -0.1275, 90, "PATH,51.500000,-0.127500,90"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatPath(tt.lat, tt.lon, heading.Bearing(tt.heading)))
		})
	}
}

func TestFormatObstacle(t *testing.T) {
	assert.Equal(t, "OBS,999", FormatObstacle(ranging.NoEcho))
	assert.Equal(t, "OBS,98.63", FormatObstacle(ranging.Reading(98.6295)))
	assert.Equal(t, "OBS,15.00", FormatObstacle(ranging.Reading(15)))
}

func TestRecordString(t *testing.T) {
	assert.Equal(t, "PATH,1.500000,2.000000,0", Path(1.5, 2, 0).String())
	assert.Equal(t, "OBS,999", Obstacle(ranging.NoEcho).String())
	assert.Equal(t, "", Record{Kind: "NOPE"}.String())
}

func TestParseRoundTrip(t *testing.T) {
	in := []Record{
		Path(40.123456, -70.654321, 275),
		Path(-33.868820, 151.209296, 1),
		Obstacle(ranging.Reading(22.5)),
		Obstacle(ranging.NoEcho),
	}

	for _, r := range in {
		got, err := Parse(r.String())
		require.NoError(t, err)
		if diff := cmp.Diff(r, got, cmpopts.EquateApprox(0, 1e-6)); diff != "" {
			t.Errorf("Parse(%q) mismatch (-want +got):\n%s", r.String(), diff)
		}
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		line string
		want error
	}{
		{"", ErrUnknownKind},
		{"GPS,1,2", ErrUnknownKind},
		{"PATH,1,2", ErrMalformed},
		{"PATH,a,2,3", ErrMalformed},
		{"PATH,1,b,3", ErrMalformed},
		{"PATH,1,2,360", ErrMalformed},
		{"PATH,1,2,x", ErrMalformed},
		{"OBS", ErrMalformed},
		{"OBS,-4", ErrMalformed},
		{"OBS,1,2,3,4,5", ErrMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			_, err := Parse(tt.line)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
