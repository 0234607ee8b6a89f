package fragment

import "github.com/fieldrobotics/grapple-can-gateway/internal/canid"

// Frame is one outgoing CAN frame's identifier/payload pair, independent
// of internal/can.Frame so this package stays decoupled from transport
// plumbing (grapplebus adapts between the two).
type Frame struct {
	ID      canid.ID
	Payload []byte
}

// Splitter owns the rolling fragment_id counter used to tag concurrent
// oversize messages from this sender (spec.md §4.4).
type Splitter struct {
	nextFragmentID uint8
}

// NewSplitter returns a Splitter with its fragment_id counter starting at 0.
func NewSplitter() *Splitter { return &Splitter{} }

// Split marshals into at most one frame if body fits within maxFrameLen
// (typically 8, classic CAN), or splits it into a Start frame (carrying
// the original api_class/api_index/length as a 3-byte header) plus
// Continuation frames otherwise. id is the pre-fragmentation identifier
// of the message (its APIClass/APIIndex/AckFlag already reflect the
// variant being sent); Split only ever touches FragmentFlag/APIClass's
// fragment_id carve-out and APIIndex for envelope frames, never the
// caller-supplied DeviceType/DeviceID.
func (s *Splitter) Split(id canid.ID, body []byte, maxFrameLen int) []Frame {
	if len(body) <= maxFrameLen {
		out := id
		out.Manufacturer = canid.ManufacturerGrapple
		v := out.AsVendor()
		v.FragmentFlag = false
		return []Frame{{ID: v.ToID(), Payload: body}}
	}

	fragmentID := s.nextFragmentID
	s.nextFragmentID++ // 8-bit wrap; only the low nibble is wire-visible

	envelopeClass := fragmentID & effClassMask

	frames := make([]Frame, 0, (len(body)/maxFrameLen)+2)

	firstChunkLen := maxFrameLen - 3
	if firstChunkLen > len(body) {
		firstChunkLen = len(body)
	}
	startPayload := make([]byte, 0, 3+firstChunkLen)
	startPayload = append(startPayload, id.APIClass, id.APIIndex, uint8(len(body)))
	startPayload = append(startPayload, body[:firstChunkLen]...)

	startID := canid.Vendor{
		DeviceType:   id.DeviceType,
		FragmentFlag: true,
		AckFlag:      false,
		APIClass:     envelopeClass,
		APIIndex:     0,
		DeviceID:     id.DeviceID,
	}.ToID()
	frames = append(frames, Frame{ID: startID, Payload: startPayload})

	rest := body[firstChunkLen:]
	var idx uint8 = 1
	for len(rest) > 0 {
		n := maxFrameLen
		if n > len(rest) {
			n = len(rest)
		}
		contID := canid.Vendor{
			DeviceType:   id.DeviceType,
			FragmentFlag: true,
			AckFlag:      false,
			APIClass:     envelopeClass,
			APIIndex:     idx,
			DeviceID:     id.DeviceID,
		}.ToID()
		frames = append(frames, Frame{ID: contID, Payload: append([]byte(nil), rest[:n]...)})
		rest = rest[n:]
		idx++
	}
	return frames
}
