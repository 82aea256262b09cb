package config

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/relabs-tech/lora_tracker/internal/calibration"
	"github.com/relabs-tech/lora_tracker/internal/framecipher"
	"github.com/relabs-tech/lora_tracker/internal/heading"
	"github.com/relabs-tech/lora_tracker/internal/ranging"
)

// Config holds all application configuration values.
type Config struct {
	// Magnetometer calibration
	Calibration     heading.Calibration
	CalibrationFile string
	DeclinationRad  float64

	// Heading sampling
	HeadingBatchSize   int
	HeadingSampleDelay int // milliseconds

	// Ranging
	SoundSpeed     float64 // m/s
	PulseTimeoutUS int
	ObsMinDistance float64 // cm
	ObsMaxDistance float64 // cm

	// Cipher
	Encrypt   bool
	CipherKey *framecipher.Key

	// Timing
	PathInterval int // milliseconds
	ObsInterval  int // milliseconds

	// GPS
	GPSSerialPort string
	GPSBaudRate   int

	// Magnetometer / ranger hardware
	MagI2CBus  string
	MagI2CAddr uint16
	TrigPin    string
	EchoPin    string

	// Transports: any of "lora", "mqtt"
	Transports []string

	// LoRa UART modem
	LoRaSerialPort  string
	LoRaBaudRate    int
	LoRaPacketGapMS int

	// MQTT
	MQTTBroker         string
	MQTTClientIDNode   string
	MQTTClientIDGround string
	TopicFrames        string

	// Display
	DisplayEnabled bool
	DisplayI2CBus  string

	// Ground station
	StationDBPath  string
	StationCSVDir  string
	WebServerPort  int
	StationHistory int
}

// Package-level unexported variables for the singleton: InitGlobal sets the
// config exactly once, Get reads it under a read lock.
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Default returns a Config with the field-deployment values. The cipher key
// has no default.
func Default() *Config {
	return &Config{
		DeclinationRad:     0.009,
		HeadingBatchSize:   heading.DefaultBatchSize,
		HeadingSampleDelay: int(heading.DefaultSampleDelay / time.Millisecond),
		SoundSpeed:         ranging.DefaultSpeedOfSound,
		PulseTimeoutUS:     int(ranging.DefaultPulseTimeout / time.Microsecond),
		ObsMinDistance:     15,
		ObsMaxDistance:     30,
		Encrypt:            true,
		PathInterval:       1000,
		ObsInterval:        1000,
		GPSBaudRate:        9600,
		MagI2CBus:          "1",
		MagI2CAddr:         0x1E,
		LoRaBaudRate:       9600,
		LoRaPacketGapMS:    50,
		MQTTClientIDNode:   "lora-tracker-node",
		MQTTClientIDGround: "lora-tracker-ground",
		TopicFrames:        "tracker/frames",
		StationDBPath:      "./tracker.db",
		StationCSVDir:      ".",
		WebServerPort:      8080,
		StationHistory:     500,
	}
}

// Load reads the configuration file and returns a Config struct.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	cfg := Default()
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if cfg.CalibrationFile != "" {
		res, err := calibration.Load(cfg.CalibrationFile)
		if err != nil {
			return nil, err
		}
		cfg.Calibration = res.Bounds
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func parseFloat(key, value string) (float64, error) {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return f, nil
}

func parseInt(key, value string, min, max int) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if n < min || n > max {
		return 0, fmt.Errorf("%s must be %d-%d, got %d", key, min, max, n)
	}
	return n, nil
}

func parseBool(key, value string) (bool, error) {
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return b, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	var err error
	switch key {
	// Calibration
	case "MAG_X_MIN":
		c.Calibration.XMin, err = parseFloat(key, value)
	case "MAG_X_MAX":
		c.Calibration.XMax, err = parseFloat(key, value)
	case "MAG_Y_MIN":
		c.Calibration.YMin, err = parseFloat(key, value)
	case "MAG_Y_MAX":
		c.Calibration.YMax, err = parseFloat(key, value)
	case "CALIBRATION_FILE":
		c.CalibrationFile = value
	case "DECLINATION_RAD":
		c.DeclinationRad, err = parseFloat(key, value)

	// Heading sampling
	case "HEADING_BATCH_SIZE":
		c.HeadingBatchSize, err = parseInt(key, value, 1, 100)
	case "HEADING_SAMPLE_DELAY_MS":
		c.HeadingSampleDelay, err = parseInt(key, value, 0, 1000)

	// Ranging
	case "SOUND_SPEED":
		c.SoundSpeed, err = parseFloat(key, value)
	case "PULSE_TIMEOUT_US":
		c.PulseTimeoutUS, err = parseInt(key, value, 1, 1_000_000)
	case "OBS_MIN_DISTANCE":
		c.ObsMinDistance, err = parseFloat(key, value)
	case "OBS_MAX_DISTANCE":
		c.ObsMaxDistance, err = parseFloat(key, value)

	// Cipher
	case "ENCRYPT":
		c.Encrypt, err = parseBool(key, value)
	case "CIPHER_KEY":
		c.CipherKey, err = framecipher.ParseKey(value)
		if err != nil {
			return fmt.Errorf("invalid CIPHER_KEY: %w", err)
		}

	// Timing
	case "PATH_INTERVAL_MS":
		c.PathInterval, err = parseInt(key, value, 10, 3_600_000)
	case "OBS_INTERVAL_MS":
		c.ObsInterval, err = parseInt(key, value, 10, 3_600_000)

	// GPS
	case "GPS_SERIAL_PORT":
		c.GPSSerialPort = value
	case "GPS_BAUD_RATE":
		c.GPSBaudRate, err = parseInt(key, value, 1, 4_000_000)

	// Hardware
	case "MAG_I2C_BUS":
		c.MagI2CBus = value
	case "MAG_I2C_ADDR":
		addr, perr := strconv.ParseUint(value, 0, 16)
		if perr != nil {
			return fmt.Errorf("invalid MAG_I2C_ADDR %q: %w", value, perr)
		}
		c.MagI2CAddr = uint16(addr)
	case "TRIG_PIN":
		c.TrigPin = value
	case "ECHO_PIN":
		c.EchoPin = value

	case "TRANSPORTS":
		c.Transports = nil
		for _, t := range strings.Split(value, ",") {
			t = strings.ToLower(strings.TrimSpace(t))
			switch t {
			case "":
			case "lora", "mqtt":
				c.Transports = append(c.Transports, t)
			default:
				return fmt.Errorf("unknown transport %q in TRANSPORTS", t)
			}
		}

	// LoRa
	case "LORA_SERIAL_PORT":
		c.LoRaSerialPort = value
	case "LORA_BAUD_RATE":
		c.LoRaBaudRate, err = parseInt(key, value, 1, 4_000_000)
	case "LORA_PACKET_GAP_MS":
		c.LoRaPacketGapMS, err = parseInt(key, value, 1, 10_000)

	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_NODE":
		c.MQTTClientIDNode = value
	case "MQTT_CLIENT_ID_GROUND":
		c.MQTTClientIDGround = value
	case "TOPIC_FRAMES":
		c.TopicFrames = value

	// Display
	case "DISPLAY_ENABLED":
		c.DisplayEnabled, err = parseBool(key, value)
	case "DISPLAY_I2C_BUS":
		c.DisplayI2CBus = value

	// Ground station
	case "STATION_DB_PATH":
		c.StationDBPath = value
	case "STATION_CSV_DIR":
		c.StationCSVDir = value
	case "WEB_SERVER_PORT":
		c.WebServerPort, err = parseInt(key, value, 1, 65535)
	case "STATION_HISTORY":
		c.StationHistory, err = parseInt(key, value, 1, 100_000)

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return err
}

// validate checks that all required fields are set and consistent.
func (c *Config) validate() error {
	// Zero bounds mean "not configured"; the node refuses to start without
	// them, the ground station does not need them.
	if c.Calibration != (heading.Calibration{}) {
		if err := c.Calibration.Validate(); err != nil {
			return fmt.Errorf("magnetometer calibration: %w", err)
		}
	}
	if math.Abs(c.DeclinationRad) > math.Pi {
		return fmt.Errorf("DECLINATION_RAD must be within ±π, got %g", c.DeclinationRad)
	}
	if c.SoundSpeed <= 0 {
		return fmt.Errorf("SOUND_SPEED must be positive, got %g", c.SoundSpeed)
	}
	if c.ObsMinDistance > c.ObsMaxDistance {
		return fmt.Errorf("OBS_MIN_DISTANCE %g exceeds OBS_MAX_DISTANCE %g", c.ObsMinDistance, c.ObsMaxDistance)
	}
	if c.Encrypt && c.CipherKey == nil {
		return fmt.Errorf("CIPHER_KEY is required when ENCRYPT=true")
	}
	for _, t := range c.Transports {
		switch t {
		case "lora":
			if c.LoRaSerialPort == "" {
				return fmt.Errorf("LORA_SERIAL_PORT is required for the lora transport")
			}
		case "mqtt":
			if c.MQTTBroker == "" {
				return fmt.Errorf("MQTT_BROKER is required for the mqtt transport")
			}
		}
	}
	return nil
}

// HeadingDelay returns the inter-sample delay as a duration.
func (c *Config) HeadingDelay() time.Duration {
	return time.Duration(c.HeadingSampleDelay) * time.Millisecond
}

// PulseTimeout returns the echo timeout as a duration.
func (c *Config) PulseTimeout() time.Duration {
	return time.Duration(c.PulseTimeoutUS) * time.Microsecond
}

// PacketGap returns the silence that separates two LoRa packets on the UART.
func (c *Config) PacketGap() time.Duration {
	return time.Duration(c.LoRaPacketGapMS) * time.Millisecond
}

// HasTransport reports whether name is among the configured transports.
func (c *Config) HasTransport(name string) bool {
	for _, t := range c.Transports {
		if t == name {
			return true
		}
	}
	return false
}

// InitGlobal initializes the global configuration from file.
// Uses sync.Once to ensure this only runs once, even if called multiple times.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}

// Shutdown zeroizes the cipher key held by the global configuration.
func Shutdown() {
	configMu.Lock()
	defer configMu.Unlock()
	if globalConfig != nil && globalConfig.CipherKey != nil {
		globalConfig.CipherKey.Zeroize()
	}
}
