// Package max2769 models the MAX2769 GNSS front-end register file as the host sees it:
// ten 28-bit registers shifted in over the 3-wire serial bus as 32-bit words.
package max2769

import (
	"errors"
	"fmt"
)

// Register addresses.
const (
	RegConf1 = iota
	RegConf2
	RegConf3
	RegPLLConf
	RegDiv
	RegFDiv
	RegStrm
	RegClk
	RegTest1
	RegTest2

	NumRegisters
)

var registerNames = [NumRegisters]string{
	"CONF1", "CONF2", "CONF3", "PLLCONF", "DIV", "FDIV", "STRM", "CLK", "TEST1", "TEST2",
}

// Power-on defaults from the datasheet.
var defaults = [NumRegisters]uint32{
	0xA2919A3,
	0x0550288,
	0xEAFF1DC,
	0x9EC0008,
	0x0C00080,
	0x8000070,
	0x8000000,
	0x10061B2,
	0x1E0F401,
	0x14C0402,
}

const dataMask = 0x0FFFFFFF

// Field layout.
const (
	// CONF1
	ilna1Shift   = 22
	ilna1Mask    = 0xF
	lnaModeShift = 13
	lnaModeMask  = 0x3
	fcenShift    = 5
	fcenMask     = 0x3F
	fbwShift     = 3
	fbwMask      = 0x3
	fcenxBit     = 1 << 1

	// DIV
	ndivShift = 13
	ndivMask  = 0x7FFF
	rdivShift = 3
	rdivMask  = 0x3FF
)

// Valid ranges.
const (
	MaxBias         = ilna1Mask
	MaxAntenna      = lnaModeMask
	MinStep         = 36
	MaxStep         = ndivMask
	MaxBandwidth    = fbwMask
	lowPassOnlyCode = 3

	// fcenLowIF centers the polyphase filter on the 4.092 MHz IF.
	fcenLowIF = 0x0D
	// DefaultRDIV gives a 1.023 MHz comparison frequency from a 16.368 MHz TCXO.
	DefaultRDIV = 16
)

var ErrOutOfRange = errors.New("register value out of range")

// Registers is a shadow copy of the chip's register file.
type Registers struct {
	regs [NumRegisters]uint32
}

func New() *Registers {
	r := &Registers{regs: defaults}
	r.regs[RegDiv] = setField(r.regs[RegDiv], DefaultRDIV, rdivShift, rdivMask)
	return r
}

func (r *Registers) Value(reg int) uint32 {
	return r.regs[reg]
}

// Word encodes reg as the 32-bit value clocked into the chip, address in the low nibble.
func (r *Registers) Word(reg int) uint32 {
	return (r.regs[reg]&dataMask)<<4 | uint32(reg)
}

func Name(reg int) string {
	if reg < 0 || reg >= NumRegisters {
		return fmt.Sprintf("REG%d", reg)
	}
	return registerNames[reg]
}

func setField(v uint32, field, shift, mask int) uint32 {
	v &^= uint32(mask) << shift
	return v | uint32(field&mask)<<shift
}

func getField(v uint32, shift, mask int) int {
	return int(v>>shift) & mask
}

func checkRange(name string, v, lo, hi int) error {
	if v < lo || v > hi {
		return fmt.Errorf("%w: %s=%d not in [%d, %d]", ErrOutOfRange, name, v, lo, hi)
	}
	return nil
}

// The setters below validate before mutating. Each returns the register that changed.

func (r *Registers) SetBias(bias int) (int, error) {
	if err := checkRange("bias", bias, 0, MaxBias); err != nil {
		return 0, err
	}
	r.regs[RegConf1] = setField(r.regs[RegConf1], bias, ilna1Shift, ilna1Mask)
	return RegConf1, nil
}

func (r *Registers) Bias() int {
	return getField(r.regs[RegConf1], ilna1Shift, ilna1Mask)
}

func (r *Registers) SetAntenna(ant int) (int, error) {
	if err := checkRange("antenna", ant, 0, MaxAntenna); err != nil {
		return 0, err
	}
	r.regs[RegConf1] = setField(r.regs[RegConf1], ant, lnaModeShift, lnaModeMask)
	return RegConf1, nil
}

func (r *Registers) Antenna() int {
	return getField(r.regs[RegConf1], lnaModeShift, lnaModeMask)
}

func (r *Registers) SetStep(step int) (int, error) {
	if err := checkRange("ndiv", step, MinStep, MaxStep); err != nil {
		return 0, err
	}
	r.regs[RegDiv] = setField(r.regs[RegDiv], step, ndivShift, ndivMask)
	return RegDiv, nil
}

func (r *Registers) Step() int {
	return getField(r.regs[RegDiv], ndivShift, ndivMask)
}

// SetFilter programs the IF filter. Zero-IF runs the filter as a low-pass centered at DC,
// otherwise it is a complex band-pass on the low IF. The 18 MHz code exists only as a low-pass.
func (r *Registers) SetFilter(code, zeroIFOffset int) (int, error) {
	if err := checkRange("bandwidth", code, 0, MaxBandwidth); err != nil {
		return 0, err
	}
	lowPass := zeroIFOffset != 0
	if code == lowPassOnlyCode && !lowPass {
		return 0, fmt.Errorf("%w: bandwidth code %d requires zero-IF", ErrOutOfRange, code)
	}

	v := setField(r.regs[RegConf1], code, fbwShift, fbwMask)
	if lowPass {
		v &^= fcenxBit
		v = setField(v, 0, fcenShift, fcenMask)
	} else {
		v |= fcenxBit
		v = setField(v, fcenLowIF, fcenShift, fcenMask)
	}
	r.regs[RegConf1] = v
	return RegConf1, nil
}

func (r *Registers) Bandwidth() int {
	return getField(r.regs[RegConf1], fbwShift, fbwMask)
}

func (r *Registers) LowPass() bool {
	return r.regs[RegConf1]&fcenxBit == 0
}

// Apply validates and stages a complete configuration. On error r is left untouched.
func (r *Registers) Apply(bias, antenna, step, bandwidth, zeroIFOffset int) error {
	next := *r
	if _, err := next.SetBias(bias); err != nil {
		return err
	}
	if _, err := next.SetAntenna(antenna); err != nil {
		return err
	}
	if _, err := next.SetStep(step); err != nil {
		return err
	}
	if _, err := next.SetFilter(bandwidth, zeroIFOffset); err != nil {
		return err
	}
	*r = next
	return nil
}
