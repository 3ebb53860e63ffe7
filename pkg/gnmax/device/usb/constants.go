package usb

import "time"

// USB identifiers of the FX2-based MAX2769 sampler.
const (
	DefaultVendorID  = 0x04B4
	DefaultProductID = 0x8613
)

const (
	configNum    = 1
	interfaceNum = 0
	altSetting   = 0

	// DefaultEndpoint is the bulk IN endpoint carrying interleaved int8 I/Q.
	DefaultEndpoint = 6
	// Bulk transfers are requested in whole high-speed packets.
	bulkPacketSize = 512
)

// Vendor requests understood by the sampler firmware.
const (
	requestTypeVendorOut = 0x40

	requestWriteRegister = 0x01
	requestStartStream   = 0x02
	requestStopStream    = 0x03
)

const (
	DefaultReadTimeout    = 500 * time.Millisecond
	DefaultControlTimeout = 1000 * time.Millisecond
)
