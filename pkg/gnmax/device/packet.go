package device

// Packet holds raw interleaved int8 I/Q pairs read from a sampler.
// It is allocated once and refilled on every read.
type Packet struct {
	raw []byte
	n   int
}

func NewPacket(capacity int) *Packet {
	if capacity < 0 {
		capacity = 0
	}
	return &Packet{raw: make([]byte, 2*capacity)}
}

// Cap is the number of pairs the packet can hold.
func (p *Packet) Cap() int {
	return len(p.raw) / 2
}

// Len is the number of valid pairs from the last read.
func (p *Packet) Len() int {
	return p.n
}

// Bytes exposes the backing storage for drivers to fill.
func (p *Packet) Bytes() []byte {
	return p.raw
}

func (p *Packet) SetLen(n int) {
	if n < 0 {
		n = 0
	}
	if n > p.Cap() {
		n = p.Cap()
	}
	p.n = n
}

func (p *Packet) Reset() {
	p.n = 0
}

func (p *Packet) Sample(k int) (i, q int8) {
	return int8(p.raw[2*k]), int8(p.raw[2*k+1])
}
