package device

import (
	"errors"
)

var (
	// ErrUnavailable means the sampler could not be claimed: absent, busy or not permitted.
	ErrUnavailable = errors.New("device unavailable")
	// ErrConfig means a register write was rejected. The device keeps its previous setting.
	ErrConfig = errors.New("device configuration rejected")
	// ErrRead means the sample stream has ended, either by transfer failure or end of input.
	ErrRead = errors.New("device read failed")

	ErrClosed = errors.New("device closed")
)

// Config is the acquisition state pushed to the sampler. Frequency is the PLL step,
// never Hz, and Bandwidth is the IF filter code.
type Config struct {
	Bias      int
	Antenna   int
	Frequency int
	Bandwidth int
	ZeroIF    int
}

// Driver is the capability set of one physical sampler variant.
// A Driver is not safe for concurrent use.
type Driver interface {
	Open(cfg Config) error
	Close() error
	// Read fills p with at most maxSamples I/Q pairs and returns how many it stored.
	// A short or zero count with a nil error is not end of stream.
	Read(p *Packet, maxSamples int) (int, error)
	SetBias(bias int) error
	SetAntenna(antenna int) error
	SetFrequency(step int) error
	SetBandwidth(code, zeroIFOffset int) error
}
