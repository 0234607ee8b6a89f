package grapplebus

import (
	"testing"

	"github.com/fieldrobotics/grapple-can-gateway/internal/canid"
	"github.com/fieldrobotics/grapple-can-gateway/internal/grapple"
)

func TestSendReceiveSingleFrameRoundTrip(t *testing.T) {
	bus := New(DefaultAgeOff, DefaultMaxFragmentSets)

	msg := grapple.NewLaserCanMessage(grapple.Measurement{
		Status: 0, DistanceMM: 500, Ambient: 10, Mode: grapple.ModeShort, BudgetMS: 20,
		Roi: grapple.Roi{X: 8, Y: 8, W: 8, H: 8},
	})
	frames, err := bus.Send(3, msg)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(frames) != 1 {
		t.Fatalf("expected 1 frame for an 8-byte measurement, got %d", len(frames))
	}

	decoded, ok, err := bus.Receive(0, frames[0].CANID&canid.IDMask, frames[0].Data[:frames[0].Len])
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if !ok {
		t.Fatalf("expected immediate decode for a non-fragmented frame")
	}
	if _, ok := decoded.Payload.(grapple.DeviceMessage); !ok {
		t.Fatalf("decoded payload is not a DeviceMessage: %T", decoded.Payload)
	}
}

func TestSendReceiveFragmentedRoundTrip(t *testing.T) {
	bus := New(DefaultAgeOff, DefaultMaxFragmentSets)

	longName := ""
	for i := 0; i < 16; i++ {
		longName += "x"
	}
	msg := &grapple.BroadcastMessage{Info: grapple.SetName{Serial: 99, Name: longName}}
	frames, err := bus.Send(grapple.BroadcastDeviceID, msg)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(frames) < 2 {
		t.Fatalf("expected a fragmented send for a 20+ byte body, got %d frame(s)", len(frames))
	}

	var decoded *grapple.Message
	for i, f := range frames {
		var ok bool
		decoded, ok, err = bus.Receive(int64(i), f.CANID&canid.IDMask, f.Data[:f.Len])
		if err != nil {
			t.Fatalf("Receive frame %d: %v", i, err)
		}
		if ok {
			break
		}
	}
	if decoded == nil {
		t.Fatalf("fragmented message never reassembled")
	}
	got, ok := decoded.Payload.(*grapple.BroadcastMessage)
	if !ok {
		t.Fatalf("decoded payload is %T, not *BroadcastMessage", decoded.Payload)
	}
	name, ok := got.Info.(grapple.SetName)
	if !ok {
		t.Fatalf("decoded info is %T, not SetName", got.Info)
	}
	if name.Name != longName || name.Serial != 99 {
		t.Fatalf("reassembled SetName mismatch: %+v", name)
	}
}

func TestReceiveNonGrappleFrameOpaqueErrors(t *testing.T) {
	bus := New(DefaultAgeOff, DefaultMaxFragmentSets)
	id := canid.ID{DeviceType: 5, Manufacturer: 3, APIClass: 1, APIIndex: 1, DeviceID: 0}
	_, ok, err := bus.Receive(0, id.Pack(), nil)
	if ok || err == nil {
		t.Fatalf("expected an error decoding an unrecognized manufacturer, got ok=%v err=%v", ok, err)
	}
}

func TestSendRejectsInvalidPayload(t *testing.T) {
	bus := New(DefaultAgeOff, DefaultMaxFragmentSets)
	msg := grapple.NewLaserCanMessage(grapple.SetRoi{Op: grapple.NewRequest[grapple.Roi, grapple.Empty](grapple.Roi{X: 8, Y: 8, W: 7, H: 8})})
	if _, err := bus.Send(2, msg); err == nil {
		t.Fatalf("expected Send to reject an invalid ROI")
	}
}

func TestInFlightTracksPendingFragmentSets(t *testing.T) {
	bus := New(DefaultAgeOff, DefaultMaxFragmentSets)
	longName := ""
	for i := 0; i < 16; i++ {
		longName += "y"
	}
	msg := &grapple.BroadcastMessage{Info: grapple.SetName{Serial: 1, Name: longName}}
	frames, err := bus.Send(grapple.BroadcastDeviceID, msg)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(frames) < 2 {
		t.Fatalf("expected fragmentation")
	}
	if _, _, err := bus.Receive(0, frames[0].CANID&canid.IDMask, frames[0].Data[:frames[0].Len]); err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if bus.InFlight() != 1 {
		t.Fatalf("expected 1 in-flight fragment set after only the Start frame, got %d", bus.InFlight())
	}
}
