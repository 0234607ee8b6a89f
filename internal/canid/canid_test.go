package canid

import "testing"

func TestPackUnpackRoundTrip(t *testing.T) {
	cases := []ID{
		{DeviceType: 0, Manufacturer: 6, APIClass: 0, APIIndex: 0, DeviceID: 0x3F},
		{DeviceType: 6, Manufacturer: 6, APIClass: 0x3F, APIIndex: 0xF, DeviceID: 0x3F},
		{DeviceType: 31, Manufacturer: 6, APIClass: 2, APIIndex: 1, DeviceID: 5},
		{DeviceType: 1, Manufacturer: 1, APIClass: 6, APIIndex: 2, DeviceID: 0},
	}
	for _, c := range cases {
		raw := c.Pack()
		got := Unpack(raw)
		if got != c {
			t.Fatalf("round trip mismatch: got %+v want %+v (raw=%#x)", got, c, raw)
		}
	}
}

func TestPackMatchesSpecFormula(t *testing.T) {
	id := ID{DeviceType: 6, Manufacturer: 6, APIClass: 0x2A, APIIndex: 0x9, DeviceID: 0x3F}
	want := uint32(id.DeviceType&0x1F)<<24 |
		uint32(id.Manufacturer&0xFF)<<16 |
		uint32(id.APIClass&0x3F)<<10 |
		uint32(id.APIIndex&0x0F)<<6 |
		uint32(id.DeviceID&0x3F)
	if got := id.Pack(); got != want {
		t.Fatalf("got %#x want %#x", got, want)
	}
}

func TestVendorProjectionRoundTrip(t *testing.T) {
	cases := []Vendor{
		{DeviceType: 6, FragmentFlag: false, AckFlag: false, APIClass: 0, APIIndex: 0, DeviceID: 1},
		{DeviceType: 6, FragmentFlag: true, AckFlag: false, APIClass: 0xF, APIIndex: 3, DeviceID: 2},
		{DeviceType: 8, FragmentFlag: false, AckFlag: true, APIClass: 0x5, APIIndex: 0, DeviceID: 0x3F},
		{DeviceType: 31, FragmentFlag: true, AckFlag: true, APIClass: 0x0, APIIndex: 7, DeviceID: 9},
	}
	for _, v := range cases {
		id := v.ToID()
		if id.Manufacturer != ManufacturerGrapple {
			t.Fatalf("expected grapple manufacturer, got %d", id.Manufacturer)
		}
		got := id.AsVendor()
		if got != v {
			t.Fatalf("vendor round trip mismatch: got %+v want %+v", got, v)
		}
		// Round trip through the raw u32 as well.
		raw := v.Pack()
		if gotRaw := UnpackVendor(raw); gotRaw != v {
			t.Fatalf("raw vendor round trip mismatch: got %+v want %+v (raw=%#x)", gotRaw, v, raw)
		}
	}
}

func TestFragmentAndAckFlagBits(t *testing.T) {
	v := Vendor{DeviceType: 6, FragmentFlag: true, AckFlag: false, APIClass: 0x3, APIIndex: 0, DeviceID: 0}
	id := v.ToID()
	if id.APIClass&0x20 == 0 {
		t.Fatalf("expected bit 5 (fragment_flag) set in api_class %#x", id.APIClass)
	}
	if id.APIClass&0x10 != 0 {
		t.Fatalf("expected bit 4 (ack_flag) clear in api_class %#x", id.APIClass)
	}
	if id.APIClass&0x0F != 0x3 {
		t.Fatalf("expected effective class preserved, got %#x", id.APIClass&0x0F)
	}
}

func TestIsNiHeartbeat(t *testing.T) {
	hb := ID{DeviceType: NiHeartbeatDeviceType, Manufacturer: ManufacturerNi, APIClass: NiHeartbeatAPIClass, APIIndex: NiHeartbeatAPIIndex, DeviceID: 0}
	if !IsNiHeartbeat(hb) {
		t.Fatalf("expected heartbeat id to be recognized")
	}
	notHB := hb
	notHB.APIIndex = 0
	if IsNiHeartbeat(notHB) {
		t.Fatalf("expected non-heartbeat id to be rejected")
	}
}

func FuzzPackUnpack(f *testing.F) {
	f.Add(uint8(0), uint8(6), uint8(0), uint8(0), uint8(0x3F))
	f.Add(uint8(31), uint8(1), uint8(0x3F), uint8(0xF), uint8(0x3F))
	f.Fuzz(func(t *testing.T, dt, mfr, class, idx, dev uint8) {
		id := ID{DeviceType: dt, Manufacturer: mfr, APIClass: class, APIIndex: idx, DeviceID: dev}
		raw := id.Pack()
		if raw > IDMask {
			t.Fatalf("packed value %#x exceeds 29-bit mask", raw)
		}
		got := Unpack(raw)
		want := ID{
			DeviceType:   dt & 0x1F,
			Manufacturer: mfr,
			APIClass:     class & 0x3F,
			APIIndex:     idx & 0x0F,
			DeviceID:     dev & 0x3F,
		}
		if got != want {
			t.Fatalf("got %+v want %+v", got, want)
		}
	})
}
