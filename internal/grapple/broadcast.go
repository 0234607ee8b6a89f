package grapple

import (
	"github.com/fieldrobotics/grapple-can-gateway/internal/bitio"
)

// Broadcast api_index values (the DeviceInfo message group; api_class 0
// is the only group currently defined for device_type Broadcast).
const (
	apiIndexEnumerateRequest    uint8 = 0
	apiIndexEnumerateResponse   uint8 = 1
	apiIndexBlink               uint8 = 2
	apiIndexSetName             uint8 = 3
	apiIndexCommitConfig        uint8 = 4
	apiIndexSetID               uint8 = 5
	apiIndexArbitrationRequest  uint8 = 6
	apiIndexArbitrationReject   uint8 = 7
)

// GrappleModelID identifies the hardware model reported in EnumerateResponse.
type GrappleModelID uint8

const (
	ModelIDLaserCan  GrappleModelID = 0x10
	ModelIDSpiderLan GrappleModelID = 0x20
)

// DeviceInfo is the sealed oneof of broadcast device-info operations,
// selected by Context.APIIndex.
type DeviceInfo interface {
	isDeviceInfo()
	apiIndex() uint8
	marshalBody(w *bitio.Writer, ctx *Context) error
}

// BroadcastMessage is the Broadcast device-family message: device_type 0,
// api_class 0 (the only group), carrying one DeviceInfo operation.
type BroadcastMessage struct {
	Info DeviceInfo
}

func (*BroadcastMessage) isPayload()       {}
func (*BroadcastMessage) isDeviceMessage() {}
func (*BroadcastMessage) DeviceType() uint8 { return DeviceTypeBroadcast }

func (m *BroadcastMessage) Validate() error {
	if v, ok := m.Info.(interface{ Validate() error }); ok {
		return v.Validate()
	}
	return nil
}

func (m *BroadcastMessage) marshalBody(w *bitio.Writer, ctx *Context) error {
	ctx.APIClass = 0
	ctx.APIIndex = m.Info.apiIndex()
	return m.Info.marshalBody(w, ctx)
}

func decodeBroadcastMessage(ctx *Context, body []byte) (DeviceMessage, error) {
	if ctx.APIClass != 0 {
		return nil, ErrNoMatch
	}
	r := bitio.NewReader(body)
	info, err := decodeDeviceInfo(ctx, r)
	if err != nil {
		return nil, err
	}
	return &BroadcastMessage{Info: info}, nil
}

func decodeDeviceInfo(ctx *Context, r *bitio.Reader) (DeviceInfo, error) {
	switch ctx.APIIndex {
	case apiIndexEnumerateRequest:
		return EnumerateRequest{}, nil
	case apiIndexEnumerateResponse:
		return decodeEnumerateResponse(r)
	case apiIndexBlink:
		return decodeBlink(r)
	case apiIndexSetName:
		return decodeSetName(r)
	case apiIndexCommitConfig:
		return decodeCommitConfig(r)
	case apiIndexSetID:
		return decodeSetID(r)
	case apiIndexArbitrationRequest:
		return ArbitrationRequest{}, nil
	case apiIndexArbitrationReject:
		return ArbitrationReject{}, nil
	default:
		return nil, ErrNoMatch
	}
}

// EnumerateRequest asks every device on the bus to identify itself (sent
// to the broadcast device id).
type EnumerateRequest struct{}

func (EnumerateRequest) isDeviceInfo()   {}
func (EnumerateRequest) apiIndex() uint8 { return apiIndexEnumerateRequest }
func (EnumerateRequest) marshalBody(*bitio.Writer, *Context) error { return nil }

// EnumerateResponse answers an EnumerateRequest.
type EnumerateResponse struct {
	ModelID            GrappleModelID
	Serial             uint32
	IsDFU              bool
	IsDFUInProgress    bool
	Version            string
	Name               string
}

func (EnumerateResponse) isDeviceInfo()   {}
func (EnumerateResponse) apiIndex() uint8 { return apiIndexEnumerateResponse }

func (e EnumerateResponse) marshalBody(w *bitio.Writer, ctx *Context) error {
	if err := w.WriteBits(uint32(e.ModelID), 8); err != nil {
		return err
	}
	if err := w.WriteBits(e.Serial, 32); err != nil {
		return err
	}
	if err := w.WriteBool(e.IsDFU); err != nil {
		return err
	}
	if err := w.WriteBool(e.IsDFUInProgress); err != nil {
		return err
	}
	if err := w.WriteBits(0, 6); err != nil { // pad to byte boundary
		return err
	}
	if err := writeString(w, e.Version, NameMaxLen); err != nil {
		return err
	}
	return writeString(w, e.Name, NameMaxLen)
}

func decodeEnumerateResponse(r *bitio.Reader) (DeviceInfo, error) {
	var e EnumerateResponse
	model, err := r.ReadBits(8)
	if err != nil {
		return nil, err
	}
	e.ModelID = GrappleModelID(model)
	if e.Serial, err = r.ReadBits(32); err != nil {
		return nil, err
	}
	if e.IsDFU, err = r.ReadBool(); err != nil {
		return nil, err
	}
	if e.IsDFUInProgress, err = r.ReadBool(); err != nil {
		return nil, err
	}
	if _, err = r.ReadBits(6); err != nil {
		return nil, err
	}
	if e.Version, err = readString(r, NameMaxLen); err != nil {
		return nil, err
	}
	if e.Name, err = readString(r, NameMaxLen); err != nil {
		return nil, err
	}
	return e, nil
}

// Blink flashes a device's status LED for identification, addressed by serial.
type Blink struct{ Serial uint32 }

func (Blink) isDeviceInfo()   {}
func (Blink) apiIndex() uint8 { return apiIndexBlink }
func (b Blink) marshalBody(w *bitio.Writer, _ *Context) error {
	return w.WriteBits(b.Serial, 32)
}
func decodeBlink(r *bitio.Reader) (DeviceInfo, error) {
	s, err := r.ReadBits(32)
	return Blink{Serial: s}, err
}

// SetName assigns a human-readable name to the device with the given serial.
type SetName struct {
	Serial uint32
	Name   string
}

func (SetName) isDeviceInfo()   {}
func (SetName) apiIndex() uint8 { return apiIndexSetName }
func (s SetName) marshalBody(w *bitio.Writer, _ *Context) error {
	if err := w.WriteBits(s.Serial, 32); err != nil {
		return err
	}
	return writeString(w, s.Name, NameMaxLen)
}
func (s SetName) Validate() error {
	if len(s.Name) > NameMaxLen {
		return outOfBounds("name length %d exceeds %d", len(s.Name), NameMaxLen)
	}
	return nil
}
func decodeSetName(r *bitio.Reader) (DeviceInfo, error) {
	var s SetName
	var err error
	if s.Serial, err = r.ReadBits(32); err != nil {
		return nil, err
	}
	if s.Name, err = readString(r, NameMaxLen); err != nil {
		return nil, err
	}
	return s, nil
}

// CommitConfig persists a device's pending configuration to non-volatile storage.
type CommitConfig struct{ Serial uint32 }

func (CommitConfig) isDeviceInfo()   {}
func (CommitConfig) apiIndex() uint8 { return apiIndexCommitConfig }
func (c CommitConfig) marshalBody(w *bitio.Writer, _ *Context) error {
	return w.WriteBits(c.Serial, 32)
}
func decodeCommitConfig(r *bitio.Reader) (DeviceInfo, error) {
	s, err := r.ReadBits(32)
	return CommitConfig{Serial: s}, err
}

// SetID reassigns a device's bus address (device_id), addressed by serial.
type SetID struct {
	Serial uint32
	NewID  uint8
}

func (SetID) isDeviceInfo()   {}
func (SetID) apiIndex() uint8 { return apiIndexSetID }
func (s SetID) marshalBody(w *bitio.Writer, _ *Context) error {
	if err := w.WriteBits(s.Serial, 32); err != nil {
		return err
	}
	return w.WriteBits(uint32(s.NewID), 6)
}
func (s SetID) Validate() error {
	if s.NewID > 0x3F {
		return outOfBounds("device id %d exceeds 6-bit range", s.NewID)
	}
	return nil
}
func decodeSetID(r *bitio.Reader) (DeviceInfo, error) {
	var s SetID
	var err error
	if s.Serial, err = r.ReadBits(32); err != nil {
		return nil, err
	}
	id, err := r.ReadBits(6)
	s.NewID = uint8(id)
	return s, err
}

// ArbitrationRequest is broadcast by a device proposing a device_id for
// itself when its address is not yet fixed.
type ArbitrationRequest struct{}

func (ArbitrationRequest) isDeviceInfo()   {}
func (ArbitrationRequest) apiIndex() uint8 { return apiIndexArbitrationRequest }
func (ArbitrationRequest) marshalBody(*bitio.Writer, *Context) error { return nil }

// ArbitrationReject answers an ArbitrationRequest when the proposed
// device_id collides with one already on the bus.
type ArbitrationReject struct{}

func (ArbitrationReject) isDeviceInfo()   {}
func (ArbitrationReject) apiIndex() uint8 { return apiIndexArbitrationReject }
func (ArbitrationReject) marshalBody(*bitio.Writer, *Context) error { return nil }
