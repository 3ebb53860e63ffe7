package usb

import (
	"context"
	"fmt"

	"github.com/google/gousb"
)

type transport interface {
	Control(requestType uint8, request uint8, value uint16, index uint16, data []byte) (int, error)
	ReadContext(ctx context.Context, buf []byte) (int, error)
	Close() error
	String() string
}

type usbTransport struct {
	usbContext   *gousb.Context
	usbDevice    *gousb.Device
	usbConfig    *gousb.Config
	usbInterface *gousb.Interface
	epIn         *gousb.InEndpoint
	serial       string
}

func openUSB(opts Options) (transport, error) {
	usbContext := gousb.NewContext()

	usbDev, err := usbContext.OpenDeviceWithVIDPID(gousb.ID(opts.VendorID), gousb.ID(opts.ProductID))
	if err != nil {
		usbContext.Close()
		return nil, fmt.Errorf("failed to open device: %w", err)
	}
	if usbDev == nil {
		usbContext.Close()
		return nil, fmt.Errorf("device %04x:%04x not found", opts.VendorID, opts.ProductID)
	}

	usbDev.SetAutoDetach(true)
	usbDev.ControlTimeout = opts.ControlTimeout
	serial, _ := usbDev.SerialNumber()

	config, err := usbDev.Config(configNum)
	if err != nil {
		usbDev.Close()
		usbContext.Close()
		return nil, fmt.Errorf("failed to get configuration: %w", err)
	}

	iface, err := config.Interface(interfaceNum, altSetting)
	if err != nil {
		config.Close()
		usbDev.Close()
		usbContext.Close()
		return nil, fmt.Errorf("failed to claim interface: %w", err)
	}

	epIn, err := iface.InEndpoint(opts.Endpoint)
	if err != nil {
		iface.Close()
		config.Close()
		usbDev.Close()
		usbContext.Close()
		return nil, fmt.Errorf("failed to get IN endpoint %d: %w", opts.Endpoint, err)
	}

	return &usbTransport{
		usbContext:   usbContext,
		usbDevice:    usbDev,
		usbConfig:    config,
		usbInterface: iface,
		epIn:         epIn,
		serial:       serial,
	}, nil
}

func (u *usbTransport) Control(requestType uint8, request uint8, value uint16, index uint16, data []byte) (int, error) {
	return u.usbDevice.Control(requestType, request, value, index, data)
}

func (u *usbTransport) ReadContext(ctx context.Context, buf []byte) (int, error) {
	return u.epIn.ReadContext(ctx, buf)
}

func (u *usbTransport) Close() error {
	u.usbInterface.Close()
	u.usbConfig.Close()
	err := u.usbDevice.Close()
	u.usbContext.Close()
	return err
}

func (u *usbTransport) String() string {
	return fmt.Sprintf("MAX2769 sampler (Serial: %s)", u.serial)
}
