package gnmax

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go"
	"github.com/influxdata/influxdb-client-go/api"
	"github.com/norasector/turbine-common/types"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/norasector/gnmax/pkg/dsp/monitor"
	"github.com/norasector/gnmax/pkg/gnmax/device"
	"github.com/norasector/gnmax/pkg/util"
)

// Receiver drives a Source from its own goroutine and serializes control calls against
// the pull loop, so setters may be called from any goroutine.
type Receiver struct {
	source    *Source
	writeAPI  api.WriteAPI
	logger    zerolog.Logger
	idleDelay time.Duration

	monitorInterval int
	fftSize         int
	sampleRate      float64

	mu       sync.Mutex
	stats    monitor.Stats
	segments int
	cancel   context.CancelFunc
	stopped  bool
	done     chan struct{}
	stopOnce sync.Once
	stopErr  error
}

type ReceiverOption func(r *Receiver)

func WithInfluxDB(writeAPI api.WriteAPI) ReceiverOption {
	return func(r *Receiver) {
		r.writeAPI = writeAPI
	}
}

func WithReceiverLogger(logger zerolog.Logger) ReceiverOption {
	return func(r *Receiver) {
		r.logger = logger
	}
}

// WithIdleDelay sets how long to wait after a pull that returned no samples.
func WithIdleDelay(d time.Duration) ReceiverOption {
	return func(r *Receiver) {
		r.idleDelay = d
	}
}

// WithMonitor analyzes every interval-th segment. Zero disables analysis.
func WithMonitor(interval, fftSize int, sampleRate float64) ReceiverOption {
	return func(r *Receiver) {
		r.monitorInterval = interval
		r.fftSize = fftSize
		r.sampleRate = sampleRate
	}
}

func NewReceiver(source *Source, opts ...ReceiverOption) *Receiver {
	r := &Receiver{
		source:     source,
		writeAPI:   &util.MockWriteAPI{}, // overwritten with option
		logger:     log.Logger,
		idleDelay:  time.Millisecond,
		sampleRate: SampleRate,
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start pulls segments into out until ctx ends, Stop is called, or the stream ends.
// The end of the stream is reported as an error wrapping device.ErrRead.
func (r *Receiver) Start(ctx context.Context, out chan<- *types.SegmentComplex64) error {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return fmt.Errorf("receiver stopped: %w", device.ErrClosed)
	}
	if r.cancel != nil {
		r.mu.Unlock()
		return errors.New("receiver already started")
	}
	ctx, r.cancel = context.WithCancel(ctx)
	r.mu.Unlock()
	defer close(r.done)

	chunk := r.source.ChunkLimit()
	segNum := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		buf := make([]complex64, chunk)
		var n int
		var err error
		var cycles uint64
		duration := util.TimeOperationMicroseconds(func() {
			r.mu.Lock()
			n, err = r.source.Pull(buf, len(buf))
			cycles = r.source.Cycles()
			r.mu.Unlock()
		})
		if err != nil {
			if errors.Is(err, device.ErrRead) {
				r.logger.Info().Err(err).Int("segments", segNum).Msg("sample stream ended")
			}
			return err
		}

		if n == 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(r.idleDelay):
			}
			continue
		}

		segNum++
		seg := &types.SegmentComplex64{
			Data:          buf[:n],
			SegmentNumber: segNum,
		}

		r.writeAPI.WritePoint(influxdb2.NewPoint("gnmax.source.pull",
			nil,
			map[string]interface{}{
				"samples":     n,
				"duration_us": duration,
				"rate_sps":    util.SamplesPerSecond(n, duration),
				"cycle":       int64(cycles),
			}, time.Now()))

		if r.monitorInterval > 0 && segNum%r.monitorInterval == 1%r.monitorInterval {
			r.analyze(seg.Data)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case out <- seg:
		}

		r.mu.Lock()
		r.segments = segNum
		r.mu.Unlock()
	}
}

func (r *Receiver) analyze(samples []complex64) {
	st := monitor.Analyze(samples, r.sampleRate, r.fftSize)

	r.mu.Lock()
	r.stats = st
	r.mu.Unlock()

	r.writeAPI.WritePoint(influxdb2.NewPoint("gnmax.source.iq",
		nil,
		map[string]interface{}{
			"mean_i":  st.MeanI,
			"mean_q":  st.MeanQ,
			"std_i":   st.StdI,
			"std_q":   st.StdQ,
			"power":   st.Power,
			"peak_hz": st.PeakHz,
			"clipped": st.Clipped,
		}, time.Now()))

	r.logger.Debug().
		Float64("mean_i", st.MeanI).
		Float64("mean_q", st.MeanQ).
		Float64("power", st.Power).
		Float64("peak_hz", st.PeakHz).
		Int("clipped", st.Clipped).
		Msg("iq stats")
}

// Stop ends the pull loop, waits for any pull in flight, then closes the source once.
func (r *Receiver) Stop() error {
	r.stopOnce.Do(func() {
		r.mu.Lock()
		r.stopped = true
		cancel := r.cancel
		if cancel == nil {
			// Never started; nothing will close done.
			r.cancel = func() {}
			close(r.done)
		}
		r.mu.Unlock()

		if cancel != nil {
			cancel()
		}
		<-r.done

		r.mu.Lock()
		r.stopErr = r.source.Close()
		r.mu.Unlock()
	})
	return r.stopErr
}

func (r *Receiver) SetBias(bias int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.logSet("bias", r.source.SetBias(bias))
}

func (r *Receiver) SetAntenna(antenna int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.logSet("antenna", r.source.SetAntenna(antenna))
}

func (r *Receiver) SetFrequency(freqHz float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.logSet("frequency", r.source.SetFrequency(freqHz))
}

func (r *Receiver) SetBandwidth(bwHz int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.logSet("bandwidth", r.source.SetBandwidth(bwHz))
}

func (r *Receiver) logSet(what string, err error) error {
	cfg := r.source.Config()
	if err != nil {
		r.logger.Warn().Err(err).Str("setting", what).Msg("device rejected setting")
		return err
	}
	r.logger.Info().
		Str("setting", what).
		Int("bias", cfg.Bias).
		Int("antenna", cfg.Antenna).
		Int("freq_step", cfg.Frequency).
		Int("bandwidth_code", cfg.Bandwidth).
		Msg("device reconfigured")
	return nil
}

// Status is a snapshot of the receiver for the control surface.
type Status struct {
	Bias          int           `json:"bias"`
	Antenna       int           `json:"antenna"`
	FrequencyHz   float64       `json:"frequency_hz"`
	FrequencyStep int           `json:"frequency_step"`
	BandwidthHz   int           `json:"bandwidth_hz"`
	BandwidthCode int           `json:"bandwidth_code"`
	ZeroIF        bool          `json:"zero_if"`
	Cycles        uint64        `json:"cycles"`
	Segments      int           `json:"segments"`
	IQ            monitor.Stats `json:"iq"`
}

func (r *Receiver) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	cfg := r.source.Config()
	opts := r.source.Options()
	return Status{
		Bias:          cfg.Bias,
		Antenna:       cfg.Antenna,
		FrequencyHz:   util.StepToFrequency(cfg.Frequency, cfg.ZeroIF),
		FrequencyStep: cfg.Frequency,
		BandwidthHz:   opts.Bandwidth,
		BandwidthCode: cfg.Bandwidth,
		ZeroIF:        cfg.ZeroIF != 0,
		Cycles:        r.source.Cycles(),
		Segments:      r.segments,
		IQ:            r.stats,
	}
}
