package grapple

import (
	"github.com/fieldrobotics/grapple-can-gateway/internal/bitio"
)

// LaserCAN (distance sensor) api_class values.
const (
	apiClassMeasurement     uint8 = 0
	apiClassSetRange        uint8 = 1
	apiClassSetRoi          uint8 = 2
	apiClassSetTimingBudget uint8 = 3
	apiClassSetLedThreshold uint8 = 4
)

// Empty is the ack-shape body for request/ack operations whose
// acknowledgement carries no payload.
type Empty struct{}

func unmarshalEmpty(*bitio.Reader) (Empty, error) { return Empty{}, nil }

// LaserCanMessage is the sealed oneof of distance-sensor operations,
// selected by Context.APIClass.
type LaserCanMessage interface {
	isLaserCanMessage()
	apiClass() uint8
	marshalBody(w *bitio.Writer, ctx *Context) error
}

type laserCanEnvelope struct {
	msg LaserCanMessage
}

func (*laserCanEnvelope) isPayload()        {}
func (*laserCanEnvelope) isDeviceMessage()  {}
func (*laserCanEnvelope) DeviceType() uint8 { return DeviceTypeDistanceSensor }

func (e *laserCanEnvelope) Validate() error {
	if v, ok := e.msg.(interface{ Validate() error }); ok {
		return v.Validate()
	}
	return nil
}

func (e *laserCanEnvelope) marshalBody(w *bitio.Writer, ctx *Context) error {
	ctx.APIClass = e.msg.apiClass()
	return e.msg.marshalBody(w, ctx)
}

// NewLaserCanMessage wraps a LaserCanMessage variant as a DeviceMessage
// ready for grapple.Encode.
func NewLaserCanMessage(m LaserCanMessage) DeviceMessage { return &laserCanEnvelope{msg: m} }

func decodeLaserCanMessage(ctx *Context, body []byte) (DeviceMessage, error) {
	r := bitio.NewReader(body)
	var (
		m   LaserCanMessage
		err error
	)
	switch ctx.APIClass {
	case apiClassMeasurement:
		m, err = decodeMeasurement(r)
	case apiClassSetRange:
		m, err = decodeSetRangeRequest(r, ctx)
	case apiClassSetRoi:
		m, err = decodeSetRoiRequest(r, ctx)
	case apiClassSetTimingBudget:
		m, err = decodeSetTimingBudgetRequest(r, ctx)
	case apiClassSetLedThreshold:
		m, err = decodeSetLedThresholdRequest(r, ctx)
	default:
		return nil, ErrNoMatch
	}
	if err != nil {
		return nil, err
	}
	return &laserCanEnvelope{msg: m}, nil
}

// Mode is the LaserCAN ranging mode (short or long distance).
type Mode uint8

const (
	ModeShort Mode = 0
	ModeLong  Mode = 1
)

// Roi is a region of interest on the sensor array: x/y center stored as-is,
// w/h dimensions offset by 4 (encoded 0 means 4), 4 bits each on the wire.
type Roi struct {
	X, Y, W, H uint8
}

// Validate enforces spec.md §4.7's ROI constraints (even dimensions,
// bounds 0..16) mirroring original_source/src/grapple/lasercan.rs's
// LaserCanRoi::validate.
func (roi Roi) Validate() error {
	if roi.W%2 != 0 || roi.H%2 != 0 {
		return outOfBounds("roi width/height must be even (w=%d h=%d)", roi.W, roi.H)
	}
	hw, hh := roi.W/2, roi.H/2
	if int(roi.X)+int(hw) > 16 || int(roi.X) < int(hw) {
		return outOfBounds("roi x=%d out of bounds for half-width %d", roi.X, hw)
	}
	if int(roi.Y)+int(hh) > 16 || int(roi.Y) < int(hh) {
		return outOfBounds("roi y=%d out of bounds for half-height %d", roi.Y, hh)
	}
	return nil
}

func (roi Roi) marshal(w *bitio.Writer) error {
	if err := w.WriteBits(uint32(roi.X), 4); err != nil {
		return err
	}
	if err := w.WriteBits(uint32(roi.Y), 4); err != nil {
		return err
	}
	if err := w.WriteBits(uint32(roi.W-4), 4); err != nil {
		return err
	}
	return w.WriteBits(uint32(roi.H-4), 4)
}

func unmarshalRoi(r *bitio.Reader) (Roi, error) {
	var roi Roi
	x, err := r.ReadBits(4)
	if err != nil {
		return roi, err
	}
	y, err := r.ReadBits(4)
	if err != nil {
		return roi, err
	}
	w, err := r.ReadBits(4)
	if err != nil {
		return roi, err
	}
	h, err := r.ReadBits(4)
	if err != nil {
		return roi, err
	}
	roi.X, roi.Y = uint8(x), uint8(y)
	roi.W, roi.H = uint8(w)+4, uint8(h)+4
	return roi, nil
}

// Measurement is the single-frame distance-sensor status report.
type Measurement struct {
	Status     uint8
	DistanceMM uint16
	Ambient    uint16
	Mode       Mode
	BudgetMS   uint8
	Roi        Roi
}

func (Measurement) isLaserCanMessage() {}
func (Measurement) apiClass() uint8    { return apiClassMeasurement }

func (m Measurement) marshalBody(w *bitio.Writer, _ *Context) error {
	if err := w.WriteBits(uint32(m.Status), 8); err != nil {
		return err
	}
	dist, err := w.ReserveAlignedSlice(2)
	if err != nil {
		return err
	}
	dist[0], dist[1] = byte(m.DistanceMM), byte(m.DistanceMM>>8)
	amb, err := w.ReserveAlignedSlice(2)
	if err != nil {
		return err
	}
	amb[0], amb[1] = byte(m.Ambient), byte(m.Ambient>>8)
	if err := w.WriteBits(uint32(m.Mode), 1); err != nil {
		return err
	}
	if err := w.WriteBits(uint32(m.BudgetMS), 7); err != nil {
		return err
	}
	return m.Roi.marshal(w)
}

func decodeMeasurement(r *bitio.Reader) (LaserCanMessage, error) {
	var m Measurement
	status, err := r.ReadBits(8)
	if err != nil {
		return nil, err
	}
	m.Status = uint8(status)
	dist, err := r.TakeAlignedSlice(2)
	if err != nil {
		return nil, err
	}
	m.DistanceMM = uint16(dist[0]) | uint16(dist[1])<<8
	amb, err := r.TakeAlignedSlice(2)
	if err != nil {
		return nil, err
	}
	m.Ambient = uint16(amb[0]) | uint16(amb[1])<<8
	mode, err := r.ReadBits(1)
	if err != nil {
		return nil, err
	}
	m.Mode = Mode(mode)
	budget, err := r.ReadBits(7)
	if err != nil {
		return nil, err
	}
	m.BudgetMS = uint8(budget)
	if m.Roi, err = unmarshalRoi(r); err != nil {
		return nil, err
	}
	return m, nil
}

// SetRangeRequest selects the ranging mode (short/long).
type SetRangeRequest struct{ Long bool }

// SetRange is a Request<SetRangeRequest, Empty> operation selecting ranging mode.
type SetRange struct{ Op Request[SetRangeRequest, Empty] }

func (SetRange) isLaserCanMessage() {}
func (SetRange) apiClass() uint8    { return apiClassSetRange }

func (v SetRange) Validate() error { return nil }

func (v SetRange) marshalBody(w *bitio.Writer, ctx *Context) error {
	return EncodeRequest(w, ctx, v.Op, nil,
		func(w *bitio.Writer, r SetRangeRequest) error { return w.WriteBool(r.Long) },
		func(w *bitio.Writer, _ Empty) error { return nil })
}

func decodeSetRangeRequest(r *bitio.Reader, ctx *Context) (LaserCanMessage, error) {
	op, err := DecodeRequest[SetRangeRequest, Empty](r, ctx,
		func(r *bitio.Reader) (SetRangeRequest, error) {
			long, err := r.ReadBool()
			return SetRangeRequest{Long: long}, err
		},
		unmarshalEmpty)
	return SetRange{Op: op}, err
}

// SetRoi is a Request<Roi, Empty> operation configuring the sensor's region of interest.
type SetRoi struct{ Op Request[Roi, Empty] }

func (SetRoi) isLaserCanMessage() {}
func (SetRoi) apiClass() uint8    { return apiClassSetRoi }

func (v SetRoi) Validate() error {
	if v.Op.IsAck {
		return nil
	}
	return v.Op.Req.Validate()
}

func (v SetRoi) marshalBody(w *bitio.Writer, ctx *Context) error {
	return EncodeRequest(w, ctx, v.Op, Roi.Validate,
		func(w *bitio.Writer, roi Roi) error { return roi.marshal(w) },
		func(w *bitio.Writer, _ Empty) error { return nil })
}

func decodeSetRoiRequest(r *bitio.Reader, ctx *Context) (LaserCanMessage, error) {
	op, err := DecodeRequest[Roi, Empty](r, ctx, unmarshalRoi, unmarshalEmpty)
	return SetRoi{Op: op}, err
}

// TimingBudget is one of the four supported exposure windows, in milliseconds.
type TimingBudget uint8

func (tb TimingBudget) Validate() error {
	switch tb {
	case 20, 33, 50, 100:
		return nil
	default:
		return outOfBounds("timing budget %dms not one of {20,33,50,100}", tb)
	}
}

// SetTimingBudget is a Request<TimingBudget, Empty> operation.
type SetTimingBudget struct{ Op Request[TimingBudget, Empty] }

func (SetTimingBudget) isLaserCanMessage() {}
func (SetTimingBudget) apiClass() uint8    { return apiClassSetTimingBudget }

func (v SetTimingBudget) Validate() error {
	if v.Op.IsAck {
		return nil
	}
	return v.Op.Req.Validate()
}

func (v SetTimingBudget) marshalBody(w *bitio.Writer, ctx *Context) error {
	return EncodeRequest(w, ctx, v.Op, TimingBudget.Validate,
		func(w *bitio.Writer, tb TimingBudget) error { return w.WriteBits(uint32(tb), 8) },
		func(w *bitio.Writer, _ Empty) error { return nil })
}

func decodeSetTimingBudgetRequest(r *bitio.Reader, ctx *Context) (LaserCanMessage, error) {
	op, err := DecodeRequest[TimingBudget, Empty](r, ctx,
		func(r *bitio.Reader) (TimingBudget, error) {
			v, err := r.ReadBits(8)
			return TimingBudget(v), err
		},
		unmarshalEmpty)
	return SetTimingBudget{Op: op}, err
}

// LedThreshold is the ambient-light distance at which the status LED
// changes behavior: 0 disables the feature; otherwise must be in [21, 4000].
type LedThreshold uint16

func (lt LedThreshold) Validate() error {
	if lt == 0 {
		return nil
	}
	if lt < 21 || lt > 4000 {
		return outOfBounds("led threshold %d not 0 or in [21, 4000]", uint16(lt))
	}
	return nil
}

// SetLedThreshold is a Request<LedThreshold, Empty> operation.
type SetLedThreshold struct{ Op Request[LedThreshold, Empty] }

func (SetLedThreshold) isLaserCanMessage() {}
func (SetLedThreshold) apiClass() uint8    { return apiClassSetLedThreshold }

func (v SetLedThreshold) Validate() error {
	if v.Op.IsAck {
		return nil
	}
	return v.Op.Req.Validate()
}

func (v SetLedThreshold) marshalBody(w *bitio.Writer, ctx *Context) error {
	return EncodeRequest(w, ctx, v.Op, LedThreshold.Validate,
		func(w *bitio.Writer, lt LedThreshold) error { return w.WriteBits(uint32(lt), 16) },
		func(w *bitio.Writer, _ Empty) error { return nil })
}

func decodeSetLedThresholdRequest(r *bitio.Reader, ctx *Context) (LaserCanMessage, error) {
	op, err := DecodeRequest[LedThreshold, Empty](r, ctx,
		func(r *bitio.Reader) (LedThreshold, error) {
			v, err := r.ReadBits(16)
			return LedThreshold(v), err
		},
		unmarshalEmpty)
	return SetLedThreshold{Op: op}, err
}
