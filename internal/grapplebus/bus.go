// Package grapplebus wires the identifier codec (internal/canid), the
// message tree (internal/grapple) and the fragment splitter/reassembler
// (internal/fragment) into a single façade over raw CAN frames, and is the
// only package in the tree that decodes a fragment-flagged frame's body —
// internal/fragment stays payload-agnostic by design.
package grapplebus

import (
	"fmt"

	"github.com/fieldrobotics/grapple-can-gateway/internal/can"
	"github.com/fieldrobotics/grapple-can-gateway/internal/canid"
	"github.com/fieldrobotics/grapple-can-gateway/internal/fragment"
	"github.com/fieldrobotics/grapple-can-gateway/internal/grapple"
	"github.com/fieldrobotics/grapple-can-gateway/internal/logging"
	"github.com/fieldrobotics/grapple-can-gateway/internal/metrics"
)

// DefaultAgeOff is the number of Receive ticks an incomplete fragment
// reassembly set survives before being dropped, absent an explicit
// --protocol-age-off override (cmd/can-gateway flag).
const DefaultAgeOff = 100

// DefaultMaxFragmentSets bounds concurrent in-progress reassembly sets per
// Bus, absent an explicit --protocol-max-fragment-sets override. 0 means
// unbounded.
const DefaultMaxFragmentSets = 64

// maxFrameLen is the classic-CAN payload ceiling the Splitter fragments
// against; the gateway never emits CAN FD frames (SPEC_FULL §2 scope).
const maxFrameLen = 8

// Bus decodes raw CAN frames into grapple.Message values and encodes
// grapple.DeviceMessage values back into the frame(s) needed to send them,
// transparently reassembling/splitting fragmented payloads either side.
//
// Not safe for concurrent use; callers that share a Bus across goroutines
// must serialize access themselves (mirrors internal/fragment.Reassembler's
// own single-owner contract).
type Bus struct {
	reassembler *fragment.Reassembler
	splitter    *fragment.Splitter
}

// New returns a Bus whose reassembler expires incomplete fragment sets
// after ageOff ticks of Receive's now clock and bounds concurrent
// in-progress sets at maxFragmentSets (0 = unbounded).
func New(ageOff int64, maxFragmentSets int) *Bus {
	return &Bus{
		reassembler: fragment.NewReassembler(ageOff, maxFragmentSets),
		splitter:    fragment.NewSplitter(),
	}
}

// Receive classifies one raw CAN frame: a non-Grapple or non-fragmented
// frame decodes immediately; a fragment-flagged Grapple frame is handed to
// the reassembler, which returns ok=false until the set completes. now is
// an opaque, monotonically non-decreasing tick used only for age-off (the
// caller may pass wall-clock seconds or a logical sequence counter).
func (b *Bus) Receive(now int64, canID uint32, payload []byte) (*grapple.Message, bool, error) {
	id := canid.Unpack(canID)

	if id.Manufacturer != canid.ManufacturerGrapple || !id.AsVendor().FragmentFlag {
		msg, err := grapple.Decode(id, payload)
		if err != nil {
			metrics.IncCodecError()
			return nil, false, err
		}
		return msg, true, nil
	}

	if expired := b.reassembler.EvictExpired(now); expired > 0 {
		for i := 0; i < expired; i++ {
			metrics.IncFragmentExpired()
		}
	}

	reassembledID, body, done := b.reassembler.Receive(now, id, payload)
	if !done {
		return nil, false, nil
	}
	metrics.IncFragmentComplete()

	msg, err := grapple.Decode(reassembledID, body)
	if err != nil {
		metrics.IncCodecError()
		return nil, false, fmt.Errorf("grapplebus: reassembled frame: %w", err)
	}
	return msg, true, nil
}

// Send validates and marshals msg, splitting it into one or more outgoing
// CAN frames addressed to deviceID.
func (b *Bus) Send(deviceID uint8, msg grapple.DeviceMessage) ([]can.Frame, error) {
	if err := msg.Validate(); err != nil {
		metrics.IncValidationFailed()
		return nil, fmt.Errorf("grapplebus: validate: %w", err)
	}
	id, body, err := grapple.Encode(deviceID, msg)
	if err != nil {
		metrics.IncCodecError()
		return nil, fmt.Errorf("grapplebus: encode: %w", err)
	}

	frames := b.splitter.Split(id, body, maxFrameLen)
	out := make([]can.Frame, 0, len(frames))
	for _, f := range frames {
		raw := f.ID.Pack() | can.CAN_EFF_FLAG
		var data [8]byte
		n := copy(data[:], f.Payload)
		if n != len(f.Payload) {
			logging.L().Warn("grapplebus_frame_overlong", "len", len(f.Payload))
		}
		out = append(out, can.Frame{CANID: raw, Len: uint8(n), Data: data})
	}
	return out, nil
}

// InFlight reports the number of fragment reassembly sets currently in progress.
func (b *Bus) InFlight() int { return b.reassembler.InFlight() }
