// Package canid packs and unpacks the 29-bit extended CAN arbitration
// identifier used by the Grapple device family, and projects it into the
// vendor-specific view that splits api_class into fragment/ack flags.
package canid

import "fmt"

const (
	deviceTypeBits = 5
	manufBits      = 8
	apiClassBits   = 6
	apiIndexBits   = 4
	deviceIDBits   = 6

	deviceTypeShift = 24
	manufShift      = 16
	apiClassShift   = 10
	apiIndexShift   = 6
	deviceIDShift   = 0

	deviceTypeMask = (1 << deviceTypeBits) - 1
	manufMask      = (1 << manufBits) - 1
	apiClassMask   = (1 << apiClassBits) - 1
	apiIndexMask   = (1 << apiIndexBits) - 1
	deviceIDMask   = (1 << deviceIDBits) - 1

	// IDMask covers the 29 valid bits of an extended identifier.
	IDMask uint32 = (1 << 29) - 1

	// ManufacturerGrapple is the manufacturer id that owns the
	// fragment_flag/ack_flag carve-out of api_class.
	ManufacturerGrapple uint8 = 6
	// ManufacturerNi identifies robot-controller (roboRIO) messages,
	// opaque to this package beyond the heartbeat constants in this file.
	ManufacturerNi uint8 = 1

	fragmentFlagBit = 5 // bit within api_class (0-indexed from LSB)
	ackFlagBit      = 4
	effClassMask    = 0x0F
)

// ID is the plain five-field view of an arbitration identifier.
type ID struct {
	DeviceType   uint8
	Manufacturer uint8
	APIClass     uint8
	APIIndex     uint8
	DeviceID     uint8
}

// Pack encodes the identifier into its 29-bit wire value.
func (id ID) Pack() uint32 {
	return uint32(id.DeviceType&deviceTypeMask)<<deviceTypeShift |
		uint32(id.Manufacturer&manufMask)<<manufShift |
		uint32(id.APIClass&apiClassMask)<<apiClassShift |
		uint32(id.APIIndex&apiIndexMask)<<apiIndexShift |
		uint32(id.DeviceID&deviceIDMask)<<deviceIDShift
}

// Unpack decodes a raw 29-bit (or wider, masked) arbitration identifier.
func Unpack(raw uint32) ID {
	raw &= IDMask
	return ID{
		DeviceType:   uint8((raw >> deviceTypeShift) & deviceTypeMask),
		Manufacturer: uint8((raw >> manufShift) & manufMask),
		APIClass:     uint8((raw >> apiClassShift) & apiClassMask),
		APIIndex:     uint8((raw >> apiIndexShift) & apiIndexMask),
		DeviceID:     uint8((raw >> deviceIDShift) & deviceIDMask),
	}
}

// Vendor is the Grapple-namespace projection of ID: api_class's top two
// bits are split out as FragmentFlag and AckFlag, leaving a 4-bit
// effective class.
type Vendor struct {
	DeviceType   uint8
	FragmentFlag bool
	AckFlag      bool
	APIClass     uint8 // effective, 4 bits
	APIIndex     uint8
	DeviceID     uint8
}

// ToID projects the vendor view back into the generic five-field ID,
// reassembling api_class from FragmentFlag, AckFlag and the effective
// class nibble. Manufacturer is always set to ManufacturerGrapple.
func (v Vendor) ToID() ID {
	class := v.APIClass & effClassMask
	if v.FragmentFlag {
		class |= 1 << fragmentFlagBit
	}
	if v.AckFlag {
		class |= 1 << ackFlagBit
	}
	return ID{
		DeviceType:   v.DeviceType,
		Manufacturer: ManufacturerGrapple,
		APIClass:     class,
		APIIndex:     v.APIIndex,
		DeviceID:     v.DeviceID,
	}
}

// Pack is a convenience that projects to ID and packs in one step.
func (v Vendor) Pack() uint32 {
	return v.ToID().Pack()
}

// AsVendor projects a generic ID into the vendor view. It does not check
// Manufacturer; callers that care should check id.Manufacturer ==
// ManufacturerGrapple first.
func (id ID) AsVendor() Vendor {
	return Vendor{
		DeviceType:   id.DeviceType,
		FragmentFlag: (id.APIClass>>fragmentFlagBit)&1 != 0,
		AckFlag:      (id.APIClass>>ackFlagBit)&1 != 0,
		APIClass:     id.APIClass & effClassMask,
		APIIndex:     id.APIIndex,
		DeviceID:     id.DeviceID,
	}
}

// UnpackVendor unpacks a raw identifier straight into the vendor view.
func UnpackVendor(raw uint32) Vendor {
	return Unpack(raw).AsVendor()
}

func (id ID) String() string {
	return fmt.Sprintf("ID{type=%d mfr=%d class=%#02x index=%d dev=%d}",
		id.DeviceType, id.Manufacturer, id.APIClass, id.APIIndex, id.DeviceID)
}

func (v Vendor) String() string {
	return fmt.Sprintf("Vendor{type=%d frag=%t ack=%t class=%#x index=%d dev=%d}",
		v.DeviceType, v.FragmentFlag, v.AckFlag, v.APIClass, v.APIIndex, v.DeviceID)
}

// Ni robot-controller (roboRIO) identifiers are opaque to this package
// beyond the periodic heartbeat, which devices use to detect field
// disable/enable and loss of robot communication.
const (
	NiHeartbeatDeviceType uint8 = 1
	NiHeartbeatAPIClass   uint8 = 6
	NiHeartbeatAPIIndex   uint8 = 2
)

// IsNiHeartbeat reports whether id identifies the roboRIO heartbeat frame.
func IsNiHeartbeat(id ID) bool {
	return id.Manufacturer == ManufacturerNi &&
		id.DeviceType == NiHeartbeatDeviceType &&
		id.APIClass == NiHeartbeatAPIClass &&
		id.APIIndex == NiHeartbeatAPIIndex
}
