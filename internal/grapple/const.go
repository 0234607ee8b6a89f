package grapple

// Device types, scoped within the Grapple vendor namespace (manufacturer == 6).
const (
	DeviceTypeBroadcast         uint8 = 0
	DeviceTypeDistanceSensor    uint8 = 6
	DeviceTypePowerDistribution uint8 = 8
	DeviceTypeIOBreakout        uint8 = 11
	DeviceTypeEthernetSwitch    uint8 = 12
	DeviceTypeFirmware          uint8 = 31
)

// BroadcastDeviceID is the reserved device_id meaning "all devices".
const BroadcastDeviceID uint8 = 0x3F

// NameMaxLen is the declared maximum for length-tagged name fields.
const NameMaxLen = 16
