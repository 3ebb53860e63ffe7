package gnmax

import (
	"fmt"

	"github.com/norasector/gnmax/pkg/gnmax/config"
	"github.com/norasector/gnmax/pkg/gnmax/device"
	"github.com/norasector/gnmax/pkg/gnmax/device/file"
	"github.com/norasector/gnmax/pkg/gnmax/device/usb"
)

// NewDriver builds the driver variant named by opts.Device. Nothing is opened yet.
func NewDriver(opts *config.Config) (device.Driver, error) {
	switch opts.Device {
	case config.DeviceMAX2769:
		d, err := usb.NewMAX2769Device(usb.Options{
			VendorID:       opts.USB.VendorID,
			ProductID:      opts.USB.ProductID,
			Endpoint:       opts.USB.Endpoint,
			ReadTimeout:    opts.USB.ReadTimeout,
			ControlTimeout: opts.USB.ControlTimeout,
		})
		if err != nil {
			return nil, err
		}
		return d, nil
	case config.DeviceFile:
		d, err := file.NewFileDevice(opts.PlaybackLocation, opts.SampleRate, opts.PlaybackLoop)
		if err != nil {
			return nil, err
		}
		return d, nil
	default:
		return nil, fmt.Errorf("unknown device %q", opts.Device)
	}
}

// SourceOptions maps the acquisition section of a config onto Options.
func SourceOptions(opts *config.Config) Options {
	return Options{
		Bias:      opts.Bias,
		Antenna:   opts.Antenna,
		Frequency: opts.CenterFreq,
		Bandwidth: opts.Bandwidth,
		ZeroIF:    opts.ZeroIF,
	}
}
