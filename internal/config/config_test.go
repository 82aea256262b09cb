package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/lora_tracker/internal/calibration"
	"github.com/relabs-tech/lora_tracker/internal/framecipher"
	"github.com/relabs-tech/lora_tracker/internal/heading"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lora_tracker_config.txt")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

const nodeConfig = `
# node on the bench
MAG_X_MIN=-27.64
MAG_X_MAX=43.36
MAG_Y_MIN=-47.82
MAG_Y_MAX=24.36
DECLINATION_RAD=0.009
CIPHER_KEY=7365637265746b657931323334353637
TRANSPORTS=lora, mqtt
LORA_SERIAL_PORT=/dev/ttyUSB0
MQTT_BROKER=tcp://localhost:1883
PATH_INTERVAL_MS=2000
PULSE_TIMEOUT_US=12000
HEADING_SAMPLE_DELAY_MS=10
MAG_I2C_ADDR=0x1E
`

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, nodeConfig))
	require.NoError(t, err)

	assert.Equal(t, heading.Calibration{XMin: -27.64, XMax: 43.36, YMin: -47.82, YMax: 24.36}, cfg.Calibration)
	assert.Equal(t, 0.009, cfg.DeclinationRad)
	assert.True(t, cfg.Encrypt)
	require.NotNil(t, cfg.CipherKey)
	assert.Equal(t, "secretkey1234567", string(cfg.CipherKey[:]))
	assert.Equal(t, []string{"lora", "mqtt"}, cfg.Transports)
	assert.True(t, cfg.HasTransport("mqtt"))
	assert.Equal(t, 2000, cfg.PathInterval)
	assert.Equal(t, 1000, cfg.ObsInterval, "default kept")
	assert.Equal(t, 12*time.Millisecond, cfg.PulseTimeout())
	assert.Equal(t, 10*time.Millisecond, cfg.HeadingDelay())
	assert.Equal(t, uint16(0x1E), cfg.MagI2CAddr)
}

func TestLoadRawKey(t *testing.T) {
	cfg, err := Load(writeConfig(t, "CIPHER_KEY=secretkey1234567\n"))
	require.NoError(t, err)
	assert.Equal(t, "secretkey1234567", string(cfg.CipherKey[:]))
	assert.Equal(t, heading.Calibration{}, cfg.Calibration)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"degenerate calibration", "ENCRYPT=false\nMAG_X_MIN=10\nMAG_X_MAX=10\nMAG_Y_MIN=-5\nMAG_Y_MAX=5\n", "calibration"},
		{"unknown key", "ENCRYPT=false\nFOO=1\n", "unknown config key"},
		{"missing equals", "ENCRYPT=false\nMAG_X_MIN\n", "invalid config line 2"},
		{"encrypt without key", "ENCRYPT=true\n", "CIPHER_KEY is required"},
		{"short key", "CIPHER_KEY=abc\n", "CIPHER_KEY"},
		{"lora without port", "ENCRYPT=false\nTRANSPORTS=lora\n", "LORA_SERIAL_PORT"},
		{"unknown transport", "ENCRYPT=false\nTRANSPORTS=wifi\n", "unknown transport"},
		{"declination out of range", "ENCRYPT=false\nDECLINATION_RAD=4\n", "DECLINATION_RAD"},
		{"obstacle window", "ENCRYPT=false\nOBS_MIN_DISTANCE=40\n", "OBS_MIN_DISTANCE"},
		{"batch out of range", "ENCRYPT=false\nHEADING_BATCH_SIZE=0\n", "HEADING_BATCH_SIZE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestDegenerateCalibrationIsTyped(t *testing.T) {
	_, err := Load(writeConfig(t, "ENCRYPT=false\nMAG_X_MIN=1\nMAG_X_MAX=2\nMAG_Y_MIN=3\nMAG_Y_MAX=3\n"))
	assert.ErrorIs(t, err, heading.ErrCalibrationDegenerate)
}

func TestLoadCalibrationFile(t *testing.T) {
	dir := t.TempDir()
	calPath := filepath.Join(dir, "mag_calibration.json")
	bounds := heading.Calibration{XMin: -30, XMax: 40, YMin: -50, YMax: 20}
	require.NoError(t, calibration.Save(calPath, calibration.Result{Version: 1, Bounds: bounds, SampleCount: 100}))

	cfg, err := Load(writeConfig(t, "ENCRYPT=false\nMAG_X_MIN=1\nMAG_X_MAX=2\nCALIBRATION_FILE="+calPath+"\n"))
	require.NoError(t, err)
	assert.Equal(t, bounds, cfg.Calibration, "file overrides inline bounds")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.txt"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestGlobalShutdownZeroizesKey(t *testing.T) {
	require.NoError(t, InitGlobal(writeConfig(t, "CIPHER_KEY=secretkey1234567\n")))
	cfg := Get()
	require.NotNil(t, cfg)
	require.NotNil(t, cfg.CipherKey)

	Shutdown()
	assert.Equal(t, framecipher.Key{}, *cfg.CipherKey)
}
