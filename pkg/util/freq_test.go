package util

import "testing"

func TestFrequencyToStep(t *testing.T) {
	tests := []struct {
		name   string
		freq   float64
		offset int
		want   int
	}{
		{"gps l1 low-if", 1575420000, 0, 1536},
		{"gps l1 zero-if", 1575420000, 4, 1540},
		{"half rounds up", StepHz * 10.5, 0, 7},
		{"just below half", StepHz*10.5 - 1, 0, 6},
		{"zero", 0, 0, -4},
		{"glonass l1", 1602000000, 0, 1562},
		{"galileo e5a", 1176450000, 4, 1150},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FrequencyToStep(tt.freq, tt.offset); got != tt.want {
				t.Errorf("FrequencyToStep(%v, %d) = %d, want %d", tt.freq, tt.offset, got, tt.want)
			}
		})
	}
}

func TestFrequencyToStepDeterministic(t *testing.T) {
	for f := 0.0; f < 2e9; f += 12345678.9 {
		for _, off := range []int{0, ZeroIFOffsetSteps} {
			a := FrequencyToStep(f, off)
			b := FrequencyToStep(f, off)
			if a != b {
				t.Fatalf("FrequencyToStep(%v, %d) not deterministic: %d != %d", f, off, a, b)
			}
		}
	}
}

func TestStepToFrequencyRoundTrip(t *testing.T) {
	for _, off := range []int{0, ZeroIFOffsetSteps} {
		for step := 36; step < 4000; step += 7 {
			if got := FrequencyToStep(StepToFrequency(step, off), off); got != step {
				t.Errorf("round trip step %d offset %d = %d", step, off, got)
			}
		}
	}
}

func TestZeroIFOffset(t *testing.T) {
	if got := ZeroIFOffset(false); got != 0 {
		t.Errorf("ZeroIFOffset(false) = %d, want 0", got)
	}
	if got := ZeroIFOffset(true); got != 4 {
		t.Errorf("ZeroIFOffset(true) = %d, want 4", got)
	}
}

func TestBandwidthCode(t *testing.T) {
	tests := []struct {
		bw   int
		want int
	}{
		{0, Bandwidth2_5MHz},
		{2000000, Bandwidth2_5MHz},
		{2500000, Bandwidth2_5MHz},
		{2500001, Bandwidth4_2MHz},
		{4200000, Bandwidth4_2MHz},
		{8000000, Bandwidth9_66MHz},
		{9660000, Bandwidth9_66MHz},
		{16000000, Bandwidth18MHz},
	}
	for _, tt := range tests {
		if got := BandwidthCode(tt.bw); got != tt.want {
			t.Errorf("BandwidthCode(%d) = %d, want %d", tt.bw, got, tt.want)
		}
	}
}
