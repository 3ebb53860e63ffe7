package util

import "time"

// TimeOperationMicroseconds runs op and returns its wall time.
func TimeOperationMicroseconds(op func()) int64 {
	start := time.Now()
	op()
	return time.Since(start).Microseconds()
}

// SamplesPerSecond is the rate at which n samples arrived over durationUs microseconds.
func SamplesPerSecond(n int, durationUs int64) float64 {
	if durationUs <= 0 {
		return 0
	}
	return float64(n) * 1e6 / float64(durationUs)
}
