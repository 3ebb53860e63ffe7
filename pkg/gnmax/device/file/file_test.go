package file

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/norasector/gnmax/pkg/gnmax/device"
)

var testConfig = device.Config{Bias: 0, Antenna: 1, Frequency: 1536, Bandwidth: 0, ZeroIF: 0}

func writeCapture(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "capture.bin")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func openDevice(t *testing.T, data []byte, loop bool) *FileDevice {
	t.Helper()
	f, err := NewFileDevice(writeCapture(t, data), 0, loop)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.Open(testConfig); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { f.Close() })
	return f
}

func TestOpenMissingFile(t *testing.T) {
	f, err := NewFileDevice(filepath.Join(t.TempDir(), "missing.bin"), 0, false)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.Open(testConfig); !errors.Is(err, device.ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
}

func TestOpenRejectsConfig(t *testing.T) {
	f, err := NewFileDevice(writeCapture(t, []byte{1, 2}), 0, false)
	if err != nil {
		t.Fatal(err)
	}
	cfg := testConfig
	cfg.Antenna = 9
	if err := f.Open(cfg); !errors.Is(err, device.ErrConfig) {
		t.Fatalf("err = %v, want ErrConfig", err)
	}
	if f.readFile != nil {
		t.Errorf("file left open after rejected config")
	}
}

func TestReadUntilEOF(t *testing.T) {
	f := openDevice(t, []byte{1, 0xFF, 2, 0xFE, 3, 0xFD, 4}, false)
	p := device.NewPacket(2)

	n, err := f.Read(p, 2)
	if err != nil || n != 2 {
		t.Fatalf("first read = %d, %v", n, err)
	}
	if i, q := p.Sample(1); i != 2 || q != -2 {
		t.Errorf("Sample(1) = (%d, %d)", i, q)
	}

	// One whole pair left plus a dangling byte that never completes.
	n, err = f.Read(p, 2)
	if err != nil || n != 1 {
		t.Fatalf("second read = %d, %v", n, err)
	}

	n, err = f.Read(p, 2)
	if !errors.Is(err, device.ErrRead) || n != 0 {
		t.Fatalf("read at EOF = %d, %v; want ErrRead", n, err)
	}
}

func TestReadLoop(t *testing.T) {
	f := openDevice(t, []byte{1, 2, 3, 4}, true)
	p := device.NewPacket(5)

	n, err := f.Read(p, 5)
	if err != nil || n != 5 {
		t.Fatalf("looped read = %d, %v", n, err)
	}
	want := [][2]int8{{1, 2}, {3, 4}, {1, 2}, {3, 4}, {1, 2}}
	for k, w := range want {
		if i, q := p.Sample(k); i != w[0] || q != w[1] {
			t.Errorf("Sample(%d) = (%d, %d), want %v", k, i, q, w)
		}
	}
}

func TestReadLoopEmptyFile(t *testing.T) {
	f := openDevice(t, nil, true)
	if _, err := f.Read(device.NewPacket(4), 4); !errors.Is(err, device.ErrRead) {
		t.Fatalf("err = %v, want ErrRead", err)
	}
}

func TestReadZero(t *testing.T) {
	f := openDevice(t, []byte{1, 2}, false)
	n, err := f.Read(device.NewPacket(4), 0)
	if err != nil || n != 0 {
		t.Errorf("Read(0) = %d, %v", n, err)
	}
}

func TestSettersValidate(t *testing.T) {
	f := openDevice(t, []byte{1, 2}, false)
	if err := f.SetBias(4); err != nil {
		t.Fatal(err)
	}
	if err := f.SetBias(40); !errors.Is(err, device.ErrConfig) {
		t.Errorf("SetBias(40) err = %v", err)
	}
	if f.regs.Bias() != 4 {
		t.Errorf("bias = %d after rejected write, want 4", f.regs.Bias())
	}
	if err := f.SetFrequency(1540); err != nil {
		t.Fatal(err)
	}
	if err := f.SetBandwidth(3, 0); !errors.Is(err, device.ErrConfig) {
		t.Errorf("SetBandwidth(3, 0) err = %v", err)
	}
	if err := f.SetAntenna(2); err != nil {
		t.Fatal(err)
	}
}

func TestCloseIdempotent(t *testing.T) {
	f := openDevice(t, []byte{1, 2}, false)
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if _, err := f.Read(device.NewPacket(1), 1); !errors.Is(err, device.ErrClosed) {
		t.Errorf("Read after Close err = %v", err)
	}
}

func TestPacing(t *testing.T) {
	f, err := NewFileDevice(writeCapture(t, make([]byte, 64)), 1000, true)
	if err != nil {
		t.Fatal(err)
	}
	var slept time.Duration
	f.sleep = func(d time.Duration) { slept += d }
	if err := f.Open(testConfig); err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	p := device.NewPacket(10)
	for i := 0; i < 3; i++ {
		if _, err := f.Read(p, 10); err != nil {
			t.Fatal(err)
		}
	}
	// 10 samples at 1 kHz is 10ms per read; the first read is not delayed.
	if slept <= 0 || slept > 20*time.Millisecond {
		t.Errorf("slept %v, want (0, 20ms]", slept)
	}
}
