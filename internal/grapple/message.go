package grapple

import (
	"fmt"

	"github.com/fieldrobotics/grapple-can-gateway/internal/bitio"
	"github.com/fieldrobotics/grapple-can-gateway/internal/canid"
)

// maxBodyBytes bounds the scratch buffer used to marshal a message before
// the fragment splitter decides whether it fits a single frame. spec.md
// §4.4 step 2: "marshal it into a scratch buffer up to 253 bytes."
const maxBodyBytes = 253

// Payload is the sealed top-level oneof: either a decoded Grapple device
// message or an opaque Ni robot-controller frame.
type Payload interface {
	isPayload()
}

// DeviceMessage is the sealed oneof selected by Context.DeviceType.
type DeviceMessage interface {
	Payload
	isDeviceMessage()
	// DeviceType returns the device-type tag this variant marshals under.
	DeviceType() uint8
	// Validate enforces spec.md §4.7's per-variant checks. Mandatory before transmit.
	Validate() error
	marshalBody(w *bitio.Writer, ctx *Context) error
}

// NiHeartbeat is the only Ni-family payload this codec recognizes by
// shape; all other Ni traffic is opaque (spec.md §6).
type NiHeartbeat struct{}

func (NiHeartbeat) isPayload() {}

// Message is the logical top-level unit: an identifier plus its typed
// payload (spec.md §3).
type Message struct {
	ID      canid.ID
	Payload Payload
}

// Encode marshals a device message into its wire body and returns the
// frame identifier to pair with it. Manufacturer, FragmentFlag and
// AckFlag are all derived, not supplied by the caller — per spec.md
// §4.3's "update pass," the application only supplies the payload value
// and the addressing fields (DeviceID).
func Encode(deviceID uint8, msg DeviceMessage) (canid.ID, []byte, error) {
	ctx := &Context{
		Manufacturer: canid.ManufacturerGrapple,
		DeviceType:   msg.DeviceType(),
		DeviceID:     deviceID,
	}
	buf := make([]byte, maxBodyBytes)
	w := bitio.NewWriter(buf)
	if err := msg.marshalBody(w, ctx); err != nil {
		return canid.ID{}, nil, err
	}
	out := make([]byte, w.Len())
	copy(out, w.Bytes())
	return ctx.ToID(), out, nil
}

// Decode dispatches on id's vendor view (or recognizes the Ni heartbeat)
// and decodes body into the matching Payload.
func Decode(id canid.ID, body []byte) (*Message, error) {
	if id.Manufacturer == canid.ManufacturerNi {
		if canid.IsNiHeartbeat(id) {
			return &Message{ID: id, Payload: NiHeartbeat{}}, nil
		}
		return nil, fmt.Errorf("grapple: %w (unrecognized Ni frame)", ErrNoMatch)
	}
	if id.Manufacturer != canid.ManufacturerGrapple {
		return nil, fmt.Errorf("grapple: %w (manufacturer %d)", ErrNoMatch, id.Manufacturer)
	}
	ctx := FromID(id)
	dm, err := decodeDeviceMessage(ctx, body)
	if err != nil {
		return nil, err
	}
	return &Message{ID: id, Payload: dm}, nil
}

func decodeDeviceMessage(ctx *Context, body []byte) (DeviceMessage, error) {
	switch ctx.DeviceType {
	case DeviceTypeBroadcast:
		return decodeBroadcastMessage(ctx, body)
	case DeviceTypeDistanceSensor:
		return decodeLaserCanMessage(ctx, body)
	case DeviceTypePowerDistribution:
		return decodeMitocandriaMessage(ctx, body)
	case DeviceTypeIOBreakout:
		return decodeFlexiCanMessage(ctx, body)
	case DeviceTypeEthernetSwitch:
		return decodeSpiderLanMessage(ctx, body)
	case DeviceTypeFirmware:
		return decodeFirmwareMessage(ctx, body)
	default:
		return nil, fmt.Errorf("grapple: %w (device_type %d)", ErrNoMatch, ctx.DeviceType)
	}
}
