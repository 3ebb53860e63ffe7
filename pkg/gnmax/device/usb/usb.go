package usb

import (
	"context"
	"fmt"
	"time"

	"github.com/norasector/gnmax/pkg/gnmax/device"
	"github.com/norasector/gnmax/pkg/max2769"
)

type Options struct {
	VendorID       uint16
	ProductID      uint16
	Endpoint       int
	ReadTimeout    time.Duration
	ControlTimeout time.Duration
}

func DefaultOptions() Options {
	return Options{
		VendorID:       DefaultVendorID,
		ProductID:      DefaultProductID,
		Endpoint:       DefaultEndpoint,
		ReadTimeout:    DefaultReadTimeout,
		ControlTimeout: DefaultControlTimeout,
	}
}

// MAX2769Device drives a MAX2769 sampler attached over USB.
type MAX2769Device struct {
	opts Options
	open func(Options) (transport, error)

	t    transport
	regs max2769.Registers

	// stage receives whole bulk packets; pending holds bytes not yet handed out.
	stage   []byte
	pending []byte
}

func NewMAX2769Device(opts Options) (*MAX2769Device, error) {
	def := DefaultOptions()
	if opts.VendorID == 0 && opts.ProductID == 0 {
		opts.VendorID, opts.ProductID = def.VendorID, def.ProductID
	}
	if opts.Endpoint == 0 {
		opts.Endpoint = def.Endpoint
	}
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = def.ReadTimeout
	}
	if opts.ControlTimeout == 0 {
		opts.ControlTimeout = def.ControlTimeout
	}
	if opts.ReadTimeout < 0 || opts.ControlTimeout < 0 {
		return nil, fmt.Errorf("usb timeouts must be positive")
	}

	return &MAX2769Device{
		opts: opts,
		open: openUSB,
	}, nil
}

func (d *MAX2769Device) Open(cfg device.Config) error {
	if d.t != nil {
		return fmt.Errorf("%w: already open", device.ErrUnavailable)
	}

	regs := max2769.New()
	if err := regs.Apply(cfg.Bias, cfg.Antenna, cfg.Frequency, cfg.Bandwidth, cfg.ZeroIF); err != nil {
		return fmt.Errorf("%w: %v", device.ErrConfig, err)
	}

	t, err := d.open(d.opts)
	if err != nil {
		return fmt.Errorf("%w: %v", device.ErrUnavailable, err)
	}

	for reg := 0; reg < max2769.NumRegisters; reg++ {
		if err := writeWord(t, regs.Word(reg)); err != nil {
			t.Close()
			return fmt.Errorf("%w: writing %s: %v", device.ErrConfig, max2769.Name(reg), err)
		}
	}

	if _, err := t.Control(requestTypeVendorOut, requestStartStream, 0, 0, nil); err != nil {
		t.Close()
		return fmt.Errorf("%w: starting stream: %v", device.ErrUnavailable, err)
	}

	d.t = t
	d.regs = *regs
	d.pending = d.pending[:0]
	return nil
}

// Close stops streaming and releases the device. Closing twice is a no-op.
func (d *MAX2769Device) Close() error {
	if d.t == nil {
		return nil
	}
	t := d.t
	d.t = nil
	d.pending = d.pending[:0]

	// Best effort, the firmware also stops when the interface is released.
	t.Control(requestTypeVendorOut, requestStopStream, 0, 0, nil)
	return t.Close()
}

func (d *MAX2769Device) String() string {
	if d.t == nil {
		return fmt.Sprintf("MAX2769 sampler %04x:%04x (closed)", d.opts.VendorID, d.opts.ProductID)
	}
	return d.t.String()
}

func writeWord(t transport, word uint32) error {
	_, err := t.Control(requestTypeVendorOut, requestWriteRegister, uint16(word), uint16(word>>16), nil)
	return err
}

// update stages a register change on a copy and commits it only once the device took the write.
func (d *MAX2769Device) update(set func(r *max2769.Registers) (int, error)) error {
	if d.t == nil {
		return device.ErrClosed
	}
	next := d.regs
	reg, err := set(&next)
	if err != nil {
		return fmt.Errorf("%w: %v", device.ErrConfig, err)
	}
	if err := writeWord(d.t, next.Word(reg)); err != nil {
		return fmt.Errorf("%w: writing %s: %v", device.ErrConfig, max2769.Name(reg), err)
	}
	d.regs = next
	return nil
}

func (d *MAX2769Device) SetBias(bias int) error {
	return d.update(func(r *max2769.Registers) (int, error) { return r.SetBias(bias) })
}

func (d *MAX2769Device) SetAntenna(antenna int) error {
	return d.update(func(r *max2769.Registers) (int, error) { return r.SetAntenna(antenna) })
}

func (d *MAX2769Device) SetFrequency(step int) error {
	return d.update(func(r *max2769.Registers) (int, error) { return r.SetStep(step) })
}

func (d *MAX2769Device) SetBandwidth(code, zeroIFOffset int) error {
	return d.update(func(r *max2769.Registers) (int, error) { return r.SetFilter(code, zeroIFOffset) })
}

func (d *MAX2769Device) stageFor(need int) []byte {
	size := (need + bulkPacketSize - 1) / bulkPacketSize * bulkPacketSize
	if cap(d.stage) < size {
		d.stage = make([]byte, size)
	}
	return d.stage[:size]
}

// Read collects up to maxSamples pairs within one read timeout. A timeout shortens the
// read; any other transfer error ends the stream.
func (d *MAX2769Device) Read(p *device.Packet, maxSamples int) (int, error) {
	if d.t == nil {
		return 0, device.ErrClosed
	}
	p.Reset()
	if maxSamples > p.Cap() {
		maxSamples = p.Cap()
	}
	if maxSamples <= 0 {
		return 0, nil
	}

	want := 2 * maxSamples
	dst := p.Bytes()[:want]
	got := copy(dst, d.pending)
	d.pending = d.pending[:copy(d.pending, d.pending[got:])]

	ctx, cancel := context.WithTimeout(context.Background(), d.opts.ReadTimeout)
	defer cancel()

	for got < want {
		stage := d.stageFor(want - got)
		n, err := d.t.ReadContext(ctx, stage)
		if n > 0 {
			c := copy(dst[got:], stage[:n])
			got += c
			d.pending = append(d.pending, stage[c:n]...)
		}
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			d.pending = d.pending[:0]
			return 0, fmt.Errorf("%w: %v", device.ErrRead, err)
		}
	}

	// An odd trailing byte is the I half of a pair still in flight.
	if got%2 == 1 {
		got--
		d.pending = append(d.pending, 0)
		copy(d.pending[1:], d.pending)
		d.pending[0] = dst[got]
	}

	p.SetLen(got / 2)
	return got / 2, nil
}
