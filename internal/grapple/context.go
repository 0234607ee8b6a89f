// Package grapple implements the context-driven message tree spoken by
// Grapple vendor devices: the nested enum family selected by identifier
// fields (manufacturer, device_type, api_class, api_index) rather than an
// in-band discriminator byte.
package grapple

import "github.com/fieldrobotics/grapple-can-gateway/internal/canid"

// Context is threaded through every Marshal/Unmarshal call. It mirrors the
// identifier fields (plus the vendor-projected flags) that double as the
// out-of-band enum discriminator at every level of the message tree.
// Encoding a variant sets the relevant Context field(s) for the level
// below; decoding reads them to pick the variant.
type Context struct {
	DeviceType   uint8
	Manufacturer uint8
	APIClass     uint8 // effective (4-bit) class within the vendor namespace
	APIIndex     uint8
	DeviceID     uint8
	FragmentFlag bool
	AckFlag      bool
}

// FromID seeds a Context from a decoded identifier. Non-Grapple
// manufacturers keep APIClass as the raw (unsplit) field.
func FromID(id canid.ID) *Context {
	ctx := &Context{
		DeviceType:   id.DeviceType,
		Manufacturer: id.Manufacturer,
		APIIndex:     id.APIIndex,
		DeviceID:     id.DeviceID,
	}
	if id.Manufacturer == canid.ManufacturerGrapple {
		v := id.AsVendor()
		ctx.APIClass = v.APIClass
		ctx.FragmentFlag = v.FragmentFlag
		ctx.AckFlag = v.AckFlag
	} else {
		ctx.APIClass = id.APIClass
	}
	return ctx
}

// ToID projects the context back into a wire identifier, the "update
// pass" spec.md §4.3 describes: the application never sets identifier
// bytes by hand, Marshal does it via Context as it walks the tree.
func (c *Context) ToID() canid.ID {
	if c.Manufacturer == canid.ManufacturerGrapple {
		return canid.Vendor{
			DeviceType:   c.DeviceType,
			FragmentFlag: c.FragmentFlag,
			AckFlag:      c.AckFlag,
			APIClass:     c.APIClass,
			APIIndex:     c.APIIndex,
			DeviceID:     c.DeviceID,
		}.ToID()
	}
	return canid.ID{
		DeviceType:   c.DeviceType,
		Manufacturer: c.Manufacturer,
		APIClass:     c.APIClass,
		APIIndex:     c.APIIndex,
		DeviceID:     c.DeviceID,
	}
}
