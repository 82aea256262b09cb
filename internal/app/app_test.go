package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/lora_tracker/internal/config"
	"github.com/relabs-tech/lora_tracker/internal/record"
	"github.com/relabs-tech/lora_tracker/internal/transport"
)

func TestConsoleLine(t *testing.T) {
	assert.Equal(t, "[PATH] lat=45.000001 lon=-7.500000 heading= 90°", consoleLine(record.Path(45.000001, -7.5, 90)))
	assert.Equal(t, "[OBS ] distance= 20.50 cm", consoleLine(record.Obstacle(20.5)))
	assert.Equal(t, "[OBS ] no echo", consoleLine(record.Obstacle(999)))
}

func TestOpenTransportsNone(t *testing.T) {
	f, err := openTransports(config.Default())
	require.NoError(t, err)
	assert.NoError(t, f.Send([]byte("OBS,999")))
	assert.NoError(t, f.Close())
}

type namedCloser struct {
	closed *[]string
	name   string
}

func (f namedCloser) Close() error {
	*f.closed = append(*f.closed, f.name)
	return nil
}

func TestClosersReverseOrder(t *testing.T) {
	var got []string
	c := closers{namedCloser{&got, "gps"}, namedCloser{&got, "i2c"}, namedCloser{&got, "radio"}}
	c.Close()
	assert.Equal(t, []string{"radio", "i2c", "gps"}, got)
}

var _ transport.Transport = (*transport.Fanout)(nil)
