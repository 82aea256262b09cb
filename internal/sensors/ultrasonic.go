package sensors

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// Ultrasonic drives an HC-SR04 style trigger/echo ranger.
type Ultrasonic struct {
	trig    gpio.PinOut
	echo    gpio.PinIn
	timeout time.Duration

	// sleep spaces the trigger pulse. Tests replace it.
	sleep func(time.Duration)
}

// NewUltrasonic configures echo for edge detection.
func NewUltrasonic(trig gpio.PinOut, echo gpio.PinIn, timeout time.Duration) (*Ultrasonic, error) {
	if err := trig.Out(gpio.Low); err != nil {
		return nil, fmt.Errorf("ultrasonic: trigger pin %s: %w", trig, err)
	}
	if err := echo.In(gpio.PullDown, gpio.BothEdges); err != nil {
		return nil, fmt.Errorf("ultrasonic: echo pin %s: %w", echo, err)
	}
	return &Ultrasonic{trig: trig, echo: echo, timeout: timeout, sleep: time.Sleep}, nil
}

// OpenUltrasonic looks the pins up by name.
func OpenUltrasonic(trigName, echoName string, timeout time.Duration) (*Ultrasonic, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("ultrasonic: periph host init: %w", err)
	}
	trig := gpioreg.ByName(trigName)
	if trig == nil {
		return nil, fmt.Errorf("ultrasonic: trigger pin %q not found", trigName)
	}
	echo := gpioreg.ByName(echoName)
	if echo == nil {
		return nil, fmt.Errorf("ultrasonic: echo pin %q not found", echoName)
	}
	return NewUltrasonic(trig, echo, timeout)
}

// Ping sends a 10µs trigger pulse and times the echo. ok is false when the
// echo did not start or end within the pulse timeout.
func (u *Ultrasonic) Ping() (time.Duration, bool, error) {
	if err := u.trig.Out(gpio.Low); err != nil {
		return 0, false, fmt.Errorf("ultrasonic: trigger: %w", err)
	}
	u.sleep(2 * time.Microsecond)
	if err := u.trig.Out(gpio.High); err != nil {
		return 0, false, fmt.Errorf("ultrasonic: trigger: %w", err)
	}
	u.sleep(10 * time.Microsecond)
	if err := u.trig.Out(gpio.Low); err != nil {
		return 0, false, fmt.Errorf("ultrasonic: trigger: %w", err)
	}

	if !u.echo.WaitForEdge(u.timeout) {
		return 0, false, nil
	}
	start := time.Now()
	if u.echo.Read() != gpio.High {
		// Caught the tail of a previous echo.
		return 0, false, nil
	}
	if !u.echo.WaitForEdge(u.timeout) {
		return 0, false, nil
	}
	return time.Since(start), true, nil
}
