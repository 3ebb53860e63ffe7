package file

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/norasector/gnmax/pkg/gnmax/device"
	"github.com/norasector/gnmax/pkg/max2769"
)

// FileDevice plays back a capture of interleaved int8 I/Q as if it came from the sampler.
// Register writes are validated against the same register image but reach no hardware.
type FileDevice struct {
	path       string
	sampleRate int
	loop       bool

	readFile *os.File
	regs     max2769.Registers
	carry    []byte
	lastRead time.Time

	sleep func(time.Duration)
}

// NewFileDevice opens nothing yet. A sampleRate above zero paces reads to real time.
func NewFileDevice(path string, sampleRate int, loop bool) (*FileDevice, error) {
	if path == "" {
		return nil, fmt.Errorf("playback location must be set")
	}
	return &FileDevice{
		path:       path,
		sampleRate: sampleRate,
		loop:       loop,
		sleep:      time.Sleep,
	}, nil
}

func (f *FileDevice) Open(cfg device.Config) error {
	if f.readFile != nil {
		return fmt.Errorf("%w: already open", device.ErrUnavailable)
	}
	regs := max2769.New()
	if err := regs.Apply(cfg.Bias, cfg.Antenna, cfg.Frequency, cfg.Bandwidth, cfg.ZeroIF); err != nil {
		return fmt.Errorf("%w: %v", device.ErrConfig, err)
	}

	fh, err := os.Open(f.path)
	if err != nil {
		return fmt.Errorf("%w: %v", device.ErrUnavailable, err)
	}

	f.readFile = fh
	f.regs = *regs
	f.carry = f.carry[:0]
	f.lastRead = time.Time{}
	return nil
}

func (f *FileDevice) Close() error {
	if f.readFile == nil {
		return nil
	}
	fh := f.readFile
	f.readFile = nil
	return fh.Close()
}

func (f *FileDevice) update(set func(r *max2769.Registers) (int, error)) error {
	if f.readFile == nil {
		return device.ErrClosed
	}
	next := f.regs
	if _, err := set(&next); err != nil {
		return fmt.Errorf("%w: %v", device.ErrConfig, err)
	}
	f.regs = next
	return nil
}

func (f *FileDevice) SetBias(bias int) error {
	return f.update(func(r *max2769.Registers) (int, error) { return r.SetBias(bias) })
}

func (f *FileDevice) SetAntenna(antenna int) error {
	return f.update(func(r *max2769.Registers) (int, error) { return r.SetAntenna(antenna) })
}

func (f *FileDevice) SetFrequency(step int) error {
	return f.update(func(r *max2769.Registers) (int, error) { return r.SetStep(step) })
}

func (f *FileDevice) SetBandwidth(code, zeroIFOffset int) error {
	return f.update(func(r *max2769.Registers) (int, error) { return r.SetFilter(code, zeroIFOffset) })
}

// Read returns ErrRead once the capture is exhausted and looping is off.
func (f *FileDevice) Read(p *device.Packet, maxSamples int) (int, error) {
	if f.readFile == nil {
		return 0, device.ErrClosed
	}
	p.Reset()
	if maxSamples > p.Cap() {
		maxSamples = p.Cap()
	}
	if maxSamples <= 0 {
		return 0, nil
	}

	f.pace(maxSamples)

	dst := p.Bytes()[:2*maxSamples]
	got := copy(dst, f.carry)
	f.carry = f.carry[:0]

	for got < len(dst) {
		n, err := f.readFile.Read(dst[got:])
		got += n
		if err == io.EOF {
			if !f.loop || f.empty() {
				break
			}
			if _, err := f.readFile.Seek(0, io.SeekStart); err != nil {
				return 0, fmt.Errorf("%w: %v", device.ErrRead, err)
			}
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("%w: %v", device.ErrRead, err)
		}
	}

	if got%2 == 1 {
		got--
		f.carry = append(f.carry, dst[got])
	}
	if got == 0 {
		return 0, fmt.Errorf("%w: %v", device.ErrRead, io.EOF)
	}

	p.SetLen(got / 2)
	return got / 2, nil
}

// empty guards looping over a capture too short to hold one pair.
func (f *FileDevice) empty() bool {
	st, err := f.readFile.Stat()
	return err != nil || st.Size() < 2
}

func (f *FileDevice) pace(n int) {
	if f.sampleRate <= 0 {
		return
	}
	period := time.Duration(float64(n) / float64(f.sampleRate) * float64(time.Second))
	if !f.lastRead.IsZero() {
		if wait := period - time.Since(f.lastRead); wait > 0 {
			f.sleep(wait)
		}
	}
	f.lastRead = time.Now()
}
