package heading

import (
	"fmt"
	"time"
)

// Source is anything that can provide raw magnetometer samples.
type Source interface {
	ReadMag() (Sample, error)
}

// Estimator reads a fixed batch from a Source and reduces it to a Bearing.
// Calibration and declination are read-only after construction.
type Estimator struct {
	cal         Calibration
	declination float64
	batchSize   int
	delay       time.Duration

	// Sleep waits between two reads of a batch. Tests replace it.
	Sleep func(time.Duration)
}

// NewEstimator validates the calibration and applies batch defaults.
func NewEstimator(cal Calibration, declination float64, batchSize int, delay time.Duration) (*Estimator, error) {
	if err := cal.Validate(); err != nil {
		return nil, err
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if delay < 0 {
		delay = 0
	}
	return &Estimator{
		cal:         cal,
		declination: declination,
		batchSize:   batchSize,
		delay:       delay,
		Sleep:       time.Sleep,
	}, nil
}

func (e *Estimator) BatchSize() int             { return e.batchSize }
func (e *Estimator) SampleDelay() time.Duration { return e.delay }
func (e *Estimator) Calibration() Calibration   { return e.cal }

// Read pulls one batch from src and returns its bearing. A read error
// aborts the batch.
func (e *Estimator) Read(src Source) (Bearing, error) {
	samples := make([]Sample, 0, e.batchSize)
	for i := 0; i < e.batchSize; i++ {
		if i > 0 && e.delay > 0 && e.Sleep != nil {
			e.Sleep(e.delay)
		}
		s, err := src.ReadMag()
		if err != nil {
			return 0, fmt.Errorf("heading: sample %d/%d: %w", i+1, e.batchSize, err)
		}
		samples = append(samples, s)
	}
	return Estimate(samples, e.cal, e.declination)
}
