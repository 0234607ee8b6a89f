package grapple

import "github.com/fieldrobotics/grapple-can-gateway/internal/bitio"

// FlexiCAN (I/O breakout) api_class values.
const apiClassFlexiCanBridge uint8 = 0

// FlexiCanMessage is the sealed oneof of I/O-breakout operations, selected
// by Context.APIClass. Only Bridge is currently defined: it tunnels an
// inner class/index/payload triple without growing the core schema,
// supplemented from original_source/src/grapple/flexican.rs.
type FlexiCanMessage interface {
	isFlexiCanMessage()
	apiClass() uint8
	marshalBody(w *bitio.Writer, ctx *Context) error
}

type flexiCanEnvelope struct{ msg FlexiCanMessage }

func (*flexiCanEnvelope) isPayload()        {}
func (*flexiCanEnvelope) isDeviceMessage()  {}
func (*flexiCanEnvelope) DeviceType() uint8 { return DeviceTypeIOBreakout }

func (e *flexiCanEnvelope) Validate() error {
	if v, ok := e.msg.(interface{ Validate() error }); ok {
		return v.Validate()
	}
	return nil
}

func (e *flexiCanEnvelope) marshalBody(w *bitio.Writer, ctx *Context) error {
	ctx.APIClass = e.msg.apiClass()
	return e.msg.marshalBody(w, ctx)
}

// NewFlexiCanMessage wraps a FlexiCanMessage variant as a DeviceMessage.
func NewFlexiCanMessage(m FlexiCanMessage) DeviceMessage { return &flexiCanEnvelope{msg: m} }

func decodeFlexiCanMessage(ctx *Context, body []byte) (DeviceMessage, error) {
	r := bitio.NewReader(body)
	var (
		m   FlexiCanMessage
		err error
	)
	switch ctx.APIClass {
	case apiClassFlexiCanBridge:
		m, err = decodeBridge(r)
	default:
		return nil, ErrNoMatch
	}
	if err != nil {
		return nil, err
	}
	return &flexiCanEnvelope{msg: m}, nil
}

// Bridge tunnels a device-specific I/O command as an inner class/index
// pair plus raw payload bytes, so device-specific breakout wiring never
// needs its own identifier subrange.
type Bridge struct {
	InnerClass uint8
	InnerIndex uint8
	Payload    []byte
}

func (Bridge) isFlexiCanMessage() {}
func (Bridge) apiClass() uint8    { return apiClassFlexiCanBridge }

func (b Bridge) Validate() error {
	if len(b.Payload) > maxBodyBytes-2 {
		return outOfBounds("bridge payload length %d exceeds %d", len(b.Payload), maxBodyBytes-2)
	}
	return nil
}

func (b Bridge) marshalBody(w *bitio.Writer, _ *Context) error {
	if err := w.WriteBits(uint32(b.InnerClass), 8); err != nil {
		return err
	}
	if err := w.WriteBits(uint32(b.InnerIndex), 8); err != nil {
		return err
	}
	if len(b.Payload) == 0 {
		return nil
	}
	dst, err := w.ReserveAlignedSlice(len(b.Payload))
	if err != nil {
		return err
	}
	copy(dst, b.Payload)
	return nil
}

func decodeBridge(r *bitio.Reader) (FlexiCanMessage, error) {
	var b Bridge
	class, err := r.ReadBits(8)
	if err != nil {
		return nil, err
	}
	b.InnerClass = uint8(class)
	idx, err := r.ReadBits(8)
	if err != nil {
		return nil, err
	}
	b.InnerIndex = uint8(idx)
	rest, err := r.TakeRestAligned()
	if err != nil {
		return nil, err
	}
	if len(rest) > 0 {
		b.Payload = append([]byte(nil), rest...)
	}
	return b, nil
}
