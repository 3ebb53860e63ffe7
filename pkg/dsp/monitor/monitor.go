// Package monitor computes coarse health figures for a block of raw I/Q samples.
package monitor

import (
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"gonum.org/v1/gonum/stat"
)

type Stats struct {
	Samples int     `json:"samples"`
	MeanI   float64 `json:"mean_i"`
	MeanQ   float64 `json:"mean_q"`
	StdI    float64 `json:"std_i"`
	StdQ    float64 `json:"std_q"`
	// Power is the mean of |x|^2 in raw units.
	Power float64 `json:"power"`
	// PeakHz is the offset from the LO of the strongest spectral bin.
	PeakHz float64 `json:"peak_hz"`
	// Clipped counts samples sitting on the int8 rails.
	Clipped int `json:"clipped"`
}

// Analyze reports DC offset, spread and power over samples and locates the spectral peak
// over at most fftSize leading samples.
func Analyze(samples []complex64, sampleRate float64, fftSize int) Stats {
	st := Stats{Samples: len(samples)}
	if len(samples) == 0 {
		return st
	}

	is := make([]float64, len(samples))
	qs := make([]float64, len(samples))
	var power float64
	for k, s := range samples {
		is[k] = float64(real(s))
		qs[k] = float64(imag(s))
		power += is[k]*is[k] + qs[k]*qs[k]
		if isRail(is[k]) || isRail(qs[k]) {
			st.Clipped++
		}
	}
	st.MeanI, st.StdI = stat.MeanStdDev(is, nil)
	st.MeanQ, st.StdQ = stat.MeanStdDev(qs, nil)
	if math.IsNaN(st.StdI) {
		st.StdI = 0
	}
	if math.IsNaN(st.StdQ) {
		st.StdQ = 0
	}
	st.Power = power / float64(len(samples))

	n := len(samples)
	if fftSize > 0 && fftSize < n {
		n = fftSize
	}
	if n < 2 || sampleRate <= 0 {
		return st
	}

	block := make([]complex128, n)
	for k := 0; k < n; k++ {
		// Remove DC so the LO leakage does not win every time.
		block[k] = complex(is[k]-st.MeanI, qs[k]-st.MeanQ)
	}
	spectrum := fft.FFT(block)

	peak, peakMag := 0, -1.0
	for k, c := range spectrum {
		if m := cmplx.Abs(c); m > peakMag {
			peak, peakMag = k, m
		}
	}
	if peak > n/2 {
		peak -= n
	}
	st.PeakHz = float64(peak) * sampleRate / float64(n)
	return st
}

func isRail(v float64) bool {
	return v <= math.MinInt8 || v >= math.MaxInt8
}
