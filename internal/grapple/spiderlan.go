package grapple

import "github.com/fieldrobotics/grapple-can-gateway/internal/bitio"

// SpiderLAN (Ethernet switch) api_class values. Trimmed from
// original_source/src/grapple/spiderlan.rs's full VLAN/failover config
// surface down to per-port link status and a flat IPv4 network
// configuration, per SPEC_FULL's scoping decision.
const (
	apiClassSpiderPortStatus    uint8 = 0
	apiClassSpiderNetworkConfig uint8 = 1
)

// SpiderLanPortCount is the number of switched Ethernet ports reported.
const SpiderLanPortCount = 6

// PortDuplex is the negotiated duplex mode of an up link.
type PortDuplex uint8

const (
	DuplexHalf PortDuplex = iota
	DuplexFull
	DuplexUnknown
)

// PortLinkState tags a port's link status, mirroring
// original_source/src/grapple/spiderlan.rs's PortStatus enum (NoLink /
// AutonegotiationInProgress / LinkUp{speed,duplex}).
type PortLinkState uint8

const (
	PortNoLink PortLinkState = iota
	PortNegotiating
	PortLinkUp
)

// PortStatus is one switch port's current link state.
type PortStatus struct {
	State     PortLinkState
	SpeedMbps uint16 // LinkUp only
	Duplex    PortDuplex
}

func (p PortStatus) marshal(w *bitio.Writer) error {
	if err := w.WriteBits(uint32(p.State), 2); err != nil {
		return err
	}
	if p.State != PortLinkUp {
		return w.WriteBits(0, 18) // pad to a fixed per-port width
	}
	if err := w.WriteBits(uint32(p.SpeedMbps), 16); err != nil {
		return err
	}
	return w.WriteBits(uint32(p.Duplex), 2)
}

func unmarshalPortStatus(r *bitio.Reader) (PortStatus, error) {
	var p PortStatus
	state, err := r.ReadBits(2)
	if err != nil {
		return p, err
	}
	p.State = PortLinkState(state)
	if p.State != PortLinkUp {
		_, err = r.ReadBits(18)
		return p, err
	}
	speed, err := r.ReadBits(16)
	if err != nil {
		return p, err
	}
	p.SpeedMbps = uint16(speed)
	duplex, err := r.ReadBits(2)
	p.Duplex = PortDuplex(duplex)
	return p, err
}

// SpiderLanMessage is the sealed oneof of Ethernet-switch operations,
// selected by Context.APIClass.
type SpiderLanMessage interface {
	isSpiderLanMessage()
	apiClass() uint8
	marshalBody(w *bitio.Writer, ctx *Context) error
}

type spiderLanEnvelope struct{ msg SpiderLanMessage }

func (*spiderLanEnvelope) isPayload()        {}
func (*spiderLanEnvelope) isDeviceMessage()  {}
func (*spiderLanEnvelope) DeviceType() uint8 { return DeviceTypeEthernetSwitch }

func (e *spiderLanEnvelope) Validate() error {
	if v, ok := e.msg.(interface{ Validate() error }); ok {
		return v.Validate()
	}
	return nil
}

func (e *spiderLanEnvelope) marshalBody(w *bitio.Writer, ctx *Context) error {
	ctx.APIClass = e.msg.apiClass()
	return e.msg.marshalBody(w, ctx)
}

// NewSpiderLanMessage wraps a SpiderLanMessage variant as a DeviceMessage.
func NewSpiderLanMessage(m SpiderLanMessage) DeviceMessage { return &spiderLanEnvelope{msg: m} }

func decodeSpiderLanMessage(ctx *Context, body []byte) (DeviceMessage, error) {
	r := bitio.NewReader(body)
	var (
		m   SpiderLanMessage
		err error
	)
	switch ctx.APIClass {
	case apiClassSpiderPortStatus:
		m, err = decodeSpiderPortStatusFrame(r)
	case apiClassSpiderNetworkConfig:
		m, err = decodeNetworkConfig(r, ctx)
	default:
		return nil, ErrNoMatch
	}
	if err != nil {
		return nil, err
	}
	return &spiderLanEnvelope{msg: m}, nil
}

// SpiderPortStatusFrame reports the link state of every switch port.
type SpiderPortStatusFrame struct {
	Ports [SpiderLanPortCount]PortStatus
}

func (SpiderPortStatusFrame) isSpiderLanMessage() {}
func (SpiderPortStatusFrame) apiClass() uint8     { return apiClassSpiderPortStatus }
func (f SpiderPortStatusFrame) marshalBody(w *bitio.Writer, _ *Context) error {
	for _, p := range f.Ports {
		if err := p.marshal(w); err != nil {
			return err
		}
	}
	return nil
}
func decodeSpiderPortStatusFrame(r *bitio.Reader) (SpiderLanMessage, error) {
	var f SpiderPortStatusFrame
	for i := range f.Ports {
		p, err := unmarshalPortStatus(r)
		if err != nil {
			return nil, err
		}
		f.Ports[i] = p
	}
	return f, nil
}

// IPv4Config is a flat (non-VLAN) IPv4 network configuration, trimmed
// from spiderlan.rs's FlatNetworkConfiguration/IPConfiguration.
type IPv4Config struct {
	IP     [4]byte
	Prefix uint8
}

func (c IPv4Config) Validate() error {
	if c.Prefix > 32 {
		return outOfBounds("ipv4 prefix %d exceeds 32", c.Prefix)
	}
	return nil
}

// NetworkConfig is a Request<IPv4Config, IPv4Config> operation: the
// request and the ack each carry a full IPv4Config. Either body is 5 bytes
// (4-byte address plus prefix) and fits a single frame.
type NetworkConfig struct{ Op Request[IPv4Config, IPv4Config] }

func (NetworkConfig) isSpiderLanMessage() {}
func (NetworkConfig) apiClass() uint8     { return apiClassSpiderNetworkConfig }

func (v NetworkConfig) Validate() error {
	if v.Op.IsAck {
		return nil
	}
	return v.Op.Req.Validate()
}

func (v NetworkConfig) marshalBody(w *bitio.Writer, ctx *Context) error {
	marshalCfg := func(w *bitio.Writer, c IPv4Config) error {
		dst, err := w.ReserveAlignedSlice(4)
		if err != nil {
			return err
		}
		copy(dst, c.IP[:])
		return w.WriteBits(uint32(c.Prefix), 8)
	}
	return EncodeRequest(w, ctx, v.Op, IPv4Config.Validate, marshalCfg, marshalCfg)
}

func decodeNetworkConfig(r *bitio.Reader, ctx *Context) (SpiderLanMessage, error) {
	unmarshalCfg := func(r *bitio.Reader) (IPv4Config, error) {
		var c IPv4Config
		ip, err := r.TakeAlignedSlice(4)
		if err != nil {
			return c, err
		}
		copy(c.IP[:], ip)
		prefix, err := r.ReadBits(8)
		c.Prefix = uint8(prefix)
		return c, err
	}
	op, err := DecodeRequest[IPv4Config, IPv4Config](r, ctx, unmarshalCfg, unmarshalCfg)
	return NetworkConfig{Op: op}, err
}
