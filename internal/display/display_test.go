package display

import (
	"errors"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/devices/v3/ssd1306/image1bit"

	"github.com/relabs-tech/lora_tracker/internal/node"
	"github.com/relabs-tech/lora_tracker/internal/ranging"
)

type fakeDev struct {
	last image.Image
	err  error
}

func (f *fakeDev) Bounds() image.Rectangle { return image.Rect(0, 0, width, height) }

func (f *fakeDev) Draw(r image.Rectangle, src image.Image, sp image.Point) error {
	f.last = src
	return f.err
}

func litPixels(img *image1bit.VerticalLSB, y0, y1 int) int {
	n := 0
	for y := y0; y < y1; y++ {
		for x := 0; x < width; x++ {
			if img.BitAt(x, y) == image1bit.On {
				n++
			}
		}
	}
	return n
}

func TestLines(t *testing.T) {
	tests := []struct {
		name string
		s    node.Status
		want []string
	}{
		{
			name: "waiting",
			s:    node.Status{},
			want: []string{"GPS: no fix", "HDG: ---", "RNG: ---", "TX:0 ERR:0 PLN"},
		},
		{
			name: "tracking",
			s: node.Status{
				FixValid: true, Latitude: 45.123456, Longitude: 7.654321,
				HaveHeading: true, Heading: 275,
				HaveRange: true, Range: 20.04, Obstacle: true,
				Sent: 12, Failed: 1, Encrypted: true,
			},
			want: []string{"45.12346 7.65432", "HDG: 275 deg", "RNG: 20.0cm OBST", "TX:12 ERR:1 AES"},
		},
		{
			name: "no echo",
			s:    node.Status{HaveRange: true, Range: ranging.NoEcho},
			want: []string{"GPS: no fix", "HDG: ---", "RNG: no echo", "TX:0 ERR:0 PLN"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Lines(tt.s))
		})
	}
}

func TestRenderFillsFourRows(t *testing.T) {
	img := Render(node.Status{FixValid: true, Latitude: 1, Longitude: 2})
	assert.Equal(t, image.Rect(0, 0, width, height), img.Bounds())
	for row := 0; row < 4; row++ {
		assert.Positive(t, litPixels(img, row*13, (row+1)*13+3), "row %d", row)
	}
}

func TestShowDrawsOnDevice(t *testing.T) {
	dev := &fakeDev{}
	d := New(dev)
	require.NoError(t, d.Show(node.Status{}))
	require.NotNil(t, dev.last)

	dev.err = errors.New("i2c nack")
	assert.ErrorIs(t, d.Show(node.Status{}), dev.err)
}
