package gnmax

import (
	"testing"

	"github.com/norasector/gnmax/pkg/gnmax/config"
	"github.com/norasector/gnmax/pkg/gnmax/device/file"
	"github.com/norasector/gnmax/pkg/gnmax/device/usb"
)

func TestNewDriver(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *config.Config)
		wantUSB bool
		wantErr bool
	}{
		{"max2769", func(c *config.Config) {}, true, false},
		{"file", func(c *config.Config) {
			c.Device = config.DeviceFile
			c.PlaybackLocation = "capture.bin"
		}, false, false},
		{"file without path", func(c *config.Config) { c.Device = config.DeviceFile }, false, true},
		{"unknown", func(c *config.Config) { c.Device = "bladerf" }, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := config.Default()
			tt.mutate(&c)
			d, err := NewDriver(&c)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				if d != nil {
					t.Errorf("got driver %T with error", d)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			switch d.(type) {
			case *usb.MAX2769Device:
				if !tt.wantUSB {
					t.Errorf("got USB driver")
				}
			case *file.FileDevice:
				if tt.wantUSB {
					t.Errorf("got file driver")
				}
			default:
				t.Errorf("unexpected driver %T", d)
			}
		})
	}
}

func TestSourceOptions(t *testing.T) {
	c := config.Default()
	c.Bias = 3
	c.ZeroIF = true
	got := SourceOptions(&c)
	want := Options{Bias: 3, Antenna: 1, Frequency: 1575420000, Bandwidth: 2500000, ZeroIF: true}
	if got != want {
		t.Errorf("SourceOptions = %+v, want %+v", got, want)
	}
}
