package gnmax

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/norasector/gnmax/pkg/gnmax/device"
	"github.com/norasector/gnmax/pkg/util"
)

const (
	// SampleRate is the sampler output rate: 16.368 MHz reference divided by two.
	SampleRate = 8184000
	// SamplesPer5ms is the most one USB read is asked to deliver.
	SamplesPer5ms = SampleRate / 200
)

// Options are the acquisition settings a Source is built with.
type Options struct {
	Bias      int
	Antenna   int
	Frequency float64 // Hz
	Bandwidth int     // Hz
	ZeroIF    bool
}

// Source pulls raw I/Q from a Driver and hands it out as complex64 samples.
// It is not safe for concurrent use; see Receiver.
type Source struct {
	driver     device.Driver
	opts       Options
	cfg        device.Config
	packet     *device.Packet
	chunkLimit int
	cycles     uint64
	logger     zerolog.Logger

	closeOnce sync.Once
	closeErr  error
	closed    bool
}

type SourceOption func(s *Source) error

func WithLogger(logger zerolog.Logger) SourceOption {
	return func(s *Source) error {
		s.logger = logger
		return nil
	}
}

// WithChunkLimit caps the number of samples requested from the driver per Pull.
func WithChunkLimit(limit int) SourceOption {
	return func(s *Source) error {
		if limit <= 0 {
			return fmt.Errorf("chunk limit must be positive, got %d", limit)
		}
		s.chunkLimit = limit
		return nil
	}
}

// NewSource opens driver with the configuration derived from options. If the driver
// cannot be opened it is closed again before the error is returned.
func NewSource(driver device.Driver, options Options, opts ...SourceOption) (*Source, error) {
	zeroIF := util.ZeroIFOffset(options.ZeroIF)
	s := &Source{
		driver: driver,
		opts:   options,
		cfg: device.Config{
			Bias:      options.Bias,
			Antenna:   options.Antenna,
			Frequency: util.FrequencyToStep(options.Frequency, zeroIF),
			Bandwidth: util.BandwidthCode(options.Bandwidth),
			ZeroIF:    zeroIF,
		},
		chunkLimit: SamplesPer5ms,
		logger:     log.Logger,
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	if err := driver.Open(s.cfg); err != nil {
		if cerr := driver.Close(); cerr != nil {
			s.logger.Warn().Err(cerr).Msg("failed to release device after open failure")
		}
		return nil, fmt.Errorf("opening MAX2769: %w", err)
	}

	s.packet = device.NewPacket(s.chunkLimit)
	runtime.SetFinalizer(s, (*Source).Close)

	s.logger.Info().
		Int("bias", s.cfg.Bias).
		Int("antenna", s.cfg.Antenna).
		Int("freq_step", s.cfg.Frequency).
		Str("center_freq", util.MHzToString(options.Frequency)).
		Int("bandwidth_code", s.cfg.Bandwidth).
		Bool("zero_if", options.ZeroIF).
		Int("chunk_limit", s.chunkLimit).
		Msg("MAX2769 started")

	return s, nil
}

// Pull fills out with at most min(requested, len(out), chunk limit) samples and returns
// how many it wrote. A zero count with a nil error is an idle cycle; callers retry on their
// own schedule. On error out is left untouched.
func (s *Source) Pull(out []complex64, requested int) (int, error) {
	if s.closed {
		return 0, device.ErrClosed
	}
	s.cycles++

	limit := requested
	if limit > len(out) {
		limit = len(out)
	}
	if limit > s.chunkLimit {
		limit = s.chunkLimit
	}
	if limit <= 0 {
		return 0, nil
	}

	n, err := s.driver.Read(s.packet, limit)
	if err != nil {
		return 0, err
	}
	if n > limit {
		n = limit
	}

	for k := 0; k < n; k++ {
		i, q := s.packet.Sample(k)
		out[k] = complex(float32(i), float32(q))
	}
	return n, nil
}

func (s *Source) SetBias(bias int) error {
	if s.closed {
		return device.ErrClosed
	}
	if err := s.driver.SetBias(bias); err != nil {
		return err
	}
	s.cfg.Bias = bias
	return nil
}

func (s *Source) SetAntenna(antenna int) error {
	if s.closed {
		return device.ErrClosed
	}
	if err := s.driver.SetAntenna(antenna); err != nil {
		return err
	}
	s.cfg.Antenna = antenna
	return nil
}

// SetFrequency retunes to freqHz, keeping the current zero-IF offset.
func (s *Source) SetFrequency(freqHz float64) error {
	if s.closed {
		return device.ErrClosed
	}
	step := util.FrequencyToStep(freqHz, s.cfg.ZeroIF)
	if err := s.driver.SetFrequency(step); err != nil {
		return err
	}
	s.cfg.Frequency = step
	s.opts.Frequency = freqHz
	return nil
}

func (s *Source) SetBandwidth(bwHz int) error {
	if s.closed {
		return device.ErrClosed
	}
	code := util.BandwidthCode(bwHz)
	if err := s.driver.SetBandwidth(code, s.cfg.ZeroIF); err != nil {
		return err
	}
	s.cfg.Bandwidth = code
	s.opts.Bandwidth = bwHz
	return nil
}

// Config returns the configuration last accepted by the device.
func (s *Source) Config() device.Config {
	return s.cfg
}

// Options returns the settings in user units as last accepted by the device.
func (s *Source) Options() Options {
	return s.opts
}

func (s *Source) Cycles() uint64 {
	return s.cycles
}

func (s *Source) ChunkLimit() int {
	return s.chunkLimit
}

// Close releases the device. Only the first call reaches the driver.
func (s *Source) Close() error {
	s.closeOnce.Do(func() {
		s.closed = true
		runtime.SetFinalizer(s, nil)
		s.logger.Info().Uint64("cycles", s.cycles).Msg("closing MAX2769")
		s.closeErr = s.driver.Close()
	})
	return s.closeErr
}
