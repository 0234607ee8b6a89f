package grapple

import "github.com/fieldrobotics/grapple-can-gateway/internal/bitio"

// Mitocandria (power-distribution module) api_class values.
const (
	apiClassMitoStatusFrame    uint8 = 0
	apiClassMitoChannelRequest uint8 = 1
)

// Mitocandria channel-request api_index values.
const (
	apiIndexSetSwitchableChannel uint8 = 0
	apiIndexSetAdjustableChannel uint8 = 1
)

// MitoChannelKind tags which shape a ChannelStatus entry carries.
type MitoChannelKind uint8

const (
	MitoChannelSwitchable MitoChannelKind = iota
	MitoChannelNonSwitchable
	MitoChannelAdjustable
)

// MitoChannelCount is the fixed number of power channels on a Mitocandria module.
const MitoChannelCount = 5

// ChannelStatus is one power channel's status, one of three shapes
// selected by Kind (supplemented from
// original_source/src/grapple/mitocandria.rs's MitocandriaChannelStatus).
type ChannelStatus struct {
	Kind              MitoChannelKind
	Enabled           bool   // Switchable, Adjustable
	CurrentMA         uint16 // all kinds
	VoltageMV         uint16 // Adjustable
	VoltageSetpointMV uint16 // Adjustable
}

func (c ChannelStatus) marshal(w *bitio.Writer) error {
	if err := w.WriteBits(uint32(c.Kind), 2); err != nil {
		return err
	}
	switch c.Kind {
	case MitoChannelSwitchable:
		if err := w.WriteBool(c.Enabled); err != nil {
			return err
		}
		return w.WriteBits(uint32(c.CurrentMA), 13)
	case MitoChannelNonSwitchable:
		if err := w.WriteBits(0, 1); err != nil {
			return err
		}
		return w.WriteBits(uint32(c.CurrentMA), 13)
	case MitoChannelAdjustable:
		if err := w.WriteBool(c.Enabled); err != nil {
			return err
		}
		if err := w.WriteBits(uint32(c.VoltageMV), 16); err != nil {
			return err
		}
		if err := w.WriteBits(uint32(c.VoltageSetpointMV), 16); err != nil {
			return err
		}
		return w.WriteBits(uint32(c.CurrentMA), 16)
	default:
		return ErrNoMatch
	}
}

func unmarshalChannelStatus(r *bitio.Reader) (ChannelStatus, error) {
	var c ChannelStatus
	kind, err := r.ReadBits(2)
	if err != nil {
		return c, err
	}
	c.Kind = MitoChannelKind(kind)
	switch c.Kind {
	case MitoChannelSwitchable:
		if c.Enabled, err = r.ReadBool(); err != nil {
			return c, err
		}
		cur, err := r.ReadBits(13)
		c.CurrentMA = uint16(cur)
		return c, err
	case MitoChannelNonSwitchable:
		if _, err = r.ReadBits(1); err != nil {
			return c, err
		}
		cur, err := r.ReadBits(13)
		c.CurrentMA = uint16(cur)
		return c, err
	case MitoChannelAdjustable:
		if c.Enabled, err = r.ReadBool(); err != nil {
			return c, err
		}
		v, err := r.ReadBits(16)
		if err != nil {
			return c, err
		}
		c.VoltageMV = uint16(v)
		sp, err := r.ReadBits(16)
		if err != nil {
			return c, err
		}
		c.VoltageSetpointMV = uint16(sp)
		cur, err := r.ReadBits(16)
		c.CurrentMA = uint16(cur)
		return c, err
	default:
		return c, ErrNoMatch
	}
}

// MitocandriaMessage is the sealed oneof of power-distribution
// operations, selected by Context.APIClass.
type MitocandriaMessage interface {
	isMitocandriaMessage()
	apiClass() uint8
	marshalBody(w *bitio.Writer, ctx *Context) error
}

type mitocandriaEnvelope struct{ msg MitocandriaMessage }

func (*mitocandriaEnvelope) isPayload()        {}
func (*mitocandriaEnvelope) isDeviceMessage()  {}
func (*mitocandriaEnvelope) DeviceType() uint8 { return DeviceTypePowerDistribution }

func (e *mitocandriaEnvelope) Validate() error {
	if v, ok := e.msg.(interface{ Validate() error }); ok {
		return v.Validate()
	}
	return nil
}

func (e *mitocandriaEnvelope) marshalBody(w *bitio.Writer, ctx *Context) error {
	ctx.APIClass = e.msg.apiClass()
	return e.msg.marshalBody(w, ctx)
}

// NewMitocandriaMessage wraps a MitocandriaMessage variant as a DeviceMessage.
func NewMitocandriaMessage(m MitocandriaMessage) DeviceMessage {
	return &mitocandriaEnvelope{msg: m}
}

func decodeMitocandriaMessage(ctx *Context, body []byte) (DeviceMessage, error) {
	r := bitio.NewReader(body)
	var (
		m   MitocandriaMessage
		err error
	)
	switch ctx.APIClass {
	case apiClassMitoStatusFrame:
		m, err = decodeMitoStatusFrame(r)
	case apiClassMitoChannelRequest:
		m, err = decodeMitoChannelRequest(r, ctx)
	default:
		return nil, ErrNoMatch
	}
	if err != nil {
		return nil, err
	}
	return &mitocandriaEnvelope{msg: m}, nil
}

// MitoStatusFrame reports all channels' status in one message.
type MitoStatusFrame struct {
	Channels [MitoChannelCount]ChannelStatus
}

func (MitoStatusFrame) isMitocandriaMessage() {}
func (MitoStatusFrame) apiClass() uint8       { return apiClassMitoStatusFrame }
func (f MitoStatusFrame) marshalBody(w *bitio.Writer, _ *Context) error {
	for _, c := range f.Channels {
		if err := c.marshal(w); err != nil {
			return err
		}
	}
	return nil
}
func decodeMitoStatusFrame(r *bitio.Reader) (MitocandriaMessage, error) {
	var f MitoStatusFrame
	for i := range f.Channels {
		c, err := unmarshalChannelStatus(r)
		if err != nil {
			return nil, err
		}
		f.Channels[i] = c
	}
	return f, nil
}

// SwitchableChannelReq enables/disables a pass-through channel.
type SwitchableChannelReq struct {
	Channel uint8
	Enabled bool
}

func (r SwitchableChannelReq) Validate() error {
	if int(r.Channel) >= MitoChannelCount {
		return outOfBounds("channel %d out of range [0,%d)", r.Channel, MitoChannelCount)
	}
	return nil
}

// AdjustableChannelReq sets a regulated channel's output state and setpoint.
type AdjustableChannelReq struct {
	Channel    uint8
	Enabled    bool
	VoltageMV  uint16
}

func (r AdjustableChannelReq) Validate() error {
	if int(r.Channel) >= MitoChannelCount {
		return outOfBounds("channel %d out of range [0,%d)", r.Channel, MitoChannelCount)
	}
	return nil
}

// SetSwitchableChannel is a Request<SwitchableChannelReq, Empty> operation.
type SetSwitchableChannel struct{ Op Request[SwitchableChannelReq, Empty] }

func (SetSwitchableChannel) isMitocandriaMessage() {}
func (SetSwitchableChannel) apiClass() uint8       { return apiClassMitoChannelRequest }
func (v SetSwitchableChannel) Validate() error {
	if v.Op.IsAck {
		return nil
	}
	return v.Op.Req.Validate()
}
func (v SetSwitchableChannel) marshalBody(w *bitio.Writer, ctx *Context) error {
	ctx.APIIndex = apiIndexSetSwitchableChannel
	return EncodeRequest(w, ctx, v.Op, SwitchableChannelReq.Validate,
		func(w *bitio.Writer, r SwitchableChannelReq) error {
			if err := w.WriteBits(uint32(r.Channel), 8); err != nil {
				return err
			}
			return w.WriteBool(r.Enabled)
		},
		func(w *bitio.Writer, _ Empty) error { return nil })
}

// SetAdjustableChannel is a Request<AdjustableChannelReq, Empty> operation.
type SetAdjustableChannel struct{ Op Request[AdjustableChannelReq, Empty] }

func (SetAdjustableChannel) isMitocandriaMessage() {}
func (SetAdjustableChannel) apiClass() uint8       { return apiClassMitoChannelRequest }
func (v SetAdjustableChannel) Validate() error {
	if v.Op.IsAck {
		return nil
	}
	return v.Op.Req.Validate()
}
func (v SetAdjustableChannel) marshalBody(w *bitio.Writer, ctx *Context) error {
	ctx.APIIndex = apiIndexSetAdjustableChannel
	return EncodeRequest(w, ctx, v.Op, AdjustableChannelReq.Validate,
		func(w *bitio.Writer, r AdjustableChannelReq) error {
			if err := w.WriteBits(uint32(r.Channel), 8); err != nil {
				return err
			}
			if err := w.WriteBool(r.Enabled); err != nil {
				return err
			}
			return w.WriteBits(uint32(r.VoltageMV), 16)
		},
		func(w *bitio.Writer, _ Empty) error { return nil })
}

func decodeMitoChannelRequest(r *bitio.Reader, ctx *Context) (MitocandriaMessage, error) {
	switch ctx.APIIndex {
	case apiIndexSetSwitchableChannel:
		op, err := DecodeRequest[SwitchableChannelReq, Empty](r, ctx,
			func(r *bitio.Reader) (SwitchableChannelReq, error) {
				var req SwitchableChannelReq
				ch, err := r.ReadBits(8)
				if err != nil {
					return req, err
				}
				req.Channel = uint8(ch)
				req.Enabled, err = r.ReadBool()
				return req, err
			},
			unmarshalEmpty)
		return SetSwitchableChannel{Op: op}, err
	case apiIndexSetAdjustableChannel:
		op, err := DecodeRequest[AdjustableChannelReq, Empty](r, ctx,
			func(r *bitio.Reader) (AdjustableChannelReq, error) {
				var req AdjustableChannelReq
				ch, err := r.ReadBits(8)
				if err != nil {
					return req, err
				}
				req.Channel = uint8(ch)
				if req.Enabled, err = r.ReadBool(); err != nil {
					return req, err
				}
				v, err := r.ReadBits(16)
				req.VoltageMV = uint16(v)
				return req, err
			},
			unmarshalEmpty)
		return SetAdjustableChannel{Op: op}, err
	default:
		return nil, ErrNoMatch
	}
}
