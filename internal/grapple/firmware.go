package grapple

import "github.com/fieldrobotics/grapple-can-gateway/internal/bitio"

// Firmware updater api_class values (device_type 31).
const (
	apiClassStartFieldUpgrade uint8 = 0
	apiClassUpdatePart        uint8 = 1
	apiClassUpdatePartAck     uint8 = 2
	apiClassUpdateDone        uint8 = 3
	apiClassUpdatePartV2      uint8 = 4
)

// FirmwareMessage is the sealed oneof of firmware-updater operations,
// selected by Context.APIClass.
type FirmwareMessage interface {
	isFirmwareMessage()
	apiClass() uint8
	marshalBody(w *bitio.Writer, ctx *Context) error
}

type firmwareEnvelope struct{ msg FirmwareMessage }

func (*firmwareEnvelope) isPayload()        {}
func (*firmwareEnvelope) isDeviceMessage()  {}
func (*firmwareEnvelope) DeviceType() uint8 { return DeviceTypeFirmware }

func (e *firmwareEnvelope) Validate() error {
	if v, ok := e.msg.(interface{ Validate() error }); ok {
		return v.Validate()
	}
	return nil
}

func (e *firmwareEnvelope) marshalBody(w *bitio.Writer, ctx *Context) error {
	ctx.APIClass = e.msg.apiClass()
	return e.msg.marshalBody(w, ctx)
}

// NewFirmwareMessage wraps a FirmwareMessage variant as a DeviceMessage.
func NewFirmwareMessage(m FirmwareMessage) DeviceMessage { return &firmwareEnvelope{msg: m} }

func decodeFirmwareMessage(ctx *Context, body []byte) (DeviceMessage, error) {
	r := bitio.NewReader(body)
	var (
		m   FirmwareMessage
		err error
	)
	switch ctx.APIClass {
	case apiClassStartFieldUpgrade:
		var serial uint32
		serial, err = r.ReadBits(32)
		m = StartFieldUpgrade{Serial: serial}
	case apiClassUpdatePart:
		m, err = decodeUpdatePart(r)
	case apiClassUpdatePartAck:
		m = UpdatePartAck{}
	case apiClassUpdateDone:
		m = UpdateDone{}
	case apiClassUpdatePartV2:
		m, err = decodeUpdatePartV2(r, ctx)
	default:
		return nil, ErrNoMatch
	}
	if err != nil {
		return nil, err
	}
	return &firmwareEnvelope{msg: m}, nil
}

// StartFieldUpgrade begins an over-the-air firmware update on the device
// identified by serial.
type StartFieldUpgrade struct{ Serial uint32 }

func (StartFieldUpgrade) isFirmwareMessage() {}
func (StartFieldUpgrade) apiClass() uint8    { return apiClassStartFieldUpgrade }
func (s StartFieldUpgrade) marshalBody(w *bitio.Writer, _ *Context) error {
	return w.WriteBits(s.Serial, 32)
}

// UpdatePart carries one chunk of firmware image, old-style: fixed 8-byte
// payload, no explicit offset or ack correlation.
type UpdatePart struct{ Payload [8]byte }

func (UpdatePart) isFirmwareMessage() {}
func (UpdatePart) apiClass() uint8    { return apiClassUpdatePart }
func (u UpdatePart) marshalBody(w *bitio.Writer, _ *Context) error {
	dst, err := w.ReserveAlignedSlice(8)
	if err != nil {
		return err
	}
	copy(dst, u.Payload[:])
	return nil
}
func decodeUpdatePart(r *bitio.Reader) (FirmwareMessage, error) {
	var u UpdatePart
	b, err := r.TakeAlignedSlice(8)
	if err != nil {
		return nil, err
	}
	copy(u.Payload[:], b)
	return u, nil
}

// UpdatePartAck acknowledges one UpdatePart frame.
type UpdatePartAck struct{}

func (UpdatePartAck) isFirmwareMessage()                          {}
func (UpdatePartAck) apiClass() uint8                              { return apiClassUpdatePartAck }
func (UpdatePartAck) marshalBody(*bitio.Writer, *Context) error { return nil }

// UpdateDone signals the firmware image transfer is complete.
type UpdateDone struct{}

func (UpdateDone) isFirmwareMessage()                          {}
func (UpdateDone) apiClass() uint8                              { return apiClassUpdateDone }
func (UpdateDone) marshalBody(*bitio.Writer, *Context) error { return nil }

// UpdatePartV2Req is the offset-addressed successor to UpdatePart,
// supplemented per SPEC_FULL's Request/Ack convention: an explicit byte
// offset lets the receiver detect and recover from dropped/reordered
// parts rather than relying on strict delivery order.
type UpdatePartV2Req struct {
	Offset  uint32
	Payload []byte // up to 4 bytes per frame; may span multiple frames via fragmentation
}

func (r UpdatePartV2Req) Validate() error {
	if len(r.Payload) > 4 {
		return outOfBounds("update part v2 payload length %d exceeds 4", len(r.Payload))
	}
	return nil
}

// UpdatePartV2Ack acknowledges receipt of the part at Offset.
type UpdatePartV2Ack struct{ Offset uint32 }

// UpdatePartV2 is a Request<UpdatePartV2Req, UpdatePartV2Ack> operation.
type UpdatePartV2 struct{ Op Request[UpdatePartV2Req, UpdatePartV2Ack] }

func (UpdatePartV2) isFirmwareMessage() {}
func (UpdatePartV2) apiClass() uint8    { return apiClassUpdatePartV2 }

func (v UpdatePartV2) Validate() error {
	if v.Op.IsAck {
		return nil
	}
	return v.Op.Req.Validate()
}

func (v UpdatePartV2) marshalBody(w *bitio.Writer, ctx *Context) error {
	return EncodeRequest(w, ctx, v.Op, UpdatePartV2Req.Validate,
		func(w *bitio.Writer, r UpdatePartV2Req) error {
			if err := w.WriteBits(r.Offset, 32); err != nil {
				return err
			}
			if err := w.WriteBits(uint32(len(r.Payload)), 8); err != nil {
				return err
			}
			if len(r.Payload) == 0 {
				return nil
			}
			dst, err := w.ReserveAlignedSlice(len(r.Payload))
			if err != nil {
				return err
			}
			copy(dst, r.Payload)
			return nil
		},
		func(w *bitio.Writer, a UpdatePartV2Ack) error { return w.WriteBits(a.Offset, 32) })
}

func decodeUpdatePartV2(r *bitio.Reader, ctx *Context) (FirmwareMessage, error) {
	op, err := DecodeRequest[UpdatePartV2Req, UpdatePartV2Ack](r, ctx,
		func(r *bitio.Reader) (UpdatePartV2Req, error) {
			var req UpdatePartV2Req
			var err error
			if req.Offset, err = r.ReadBits(32); err != nil {
				return req, err
			}
			n, err := r.ReadBits(8)
			if err != nil {
				return req, err
			}
			if n == 0 {
				return req, nil
			}
			b, err := r.TakeAlignedSlice(int(n))
			if err != nil {
				return req, err
			}
			req.Payload = append([]byte(nil), b...)
			return req, nil
		},
		func(r *bitio.Reader) (UpdatePartV2Ack, error) {
			off, err := r.ReadBits(32)
			return UpdatePartV2Ack{Offset: off}, err
		})
	return UpdatePartV2{Op: op}, err
}
