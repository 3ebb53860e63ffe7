package util

import "fmt"

// StepHz is the MAX2769 synthesizer step with a 16.368 MHz reference and RDIV=16.
const StepHz = 1023000

const (
	stepCalibration = 4
	// ZeroIFOffsetSteps shifts the LO by the nominal low-IF (4 * 1.023 MHz) when running zero-IF.
	ZeroIFOffsetSteps = 4
)

// IF filter bandwidth codes as written to the CONF1 FBW field.
const (
	Bandwidth2_5MHz  = 0
	Bandwidth9_66MHz = 1
	Bandwidth4_2MHz  = 2
	Bandwidth18MHz   = 3
)

// FrequencyToStep converts a center frequency in Hz into the PLL integer divider.
// Rounding adds one half and truncates, so non-negative halves round up.
func FrequencyToStep(freqHz float64, zeroIFOffset int) int {
	return int(freqHz/StepHz+0.5) - stepCalibration + zeroIFOffset
}

// StepToFrequency is the inverse of FrequencyToStep for whole steps.
func StepToFrequency(step, zeroIFOffset int) float64 {
	return float64(step+stepCalibration-zeroIFOffset) * StepHz
}

func ZeroIFOffset(zeroIF bool) int {
	if zeroIF {
		return ZeroIFOffsetSteps
	}
	return 0
}

// BandwidthCode picks the narrowest IF filter that still passes bwHz.
func BandwidthCode(bwHz int) int {
	switch {
	case bwHz <= 2500000:
		return Bandwidth2_5MHz
	case bwHz <= 4200000:
		return Bandwidth4_2MHz
	case bwHz <= 9660000:
		return Bandwidth9_66MHz
	default:
		return Bandwidth18MHz
	}
}

func MHzToString(hz float64) string {
	return fmt.Sprintf("%.6f", hz/1e6)
}
