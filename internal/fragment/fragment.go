// Package fragment implements the transmit-side splitter and
// receive-side reassembler for payloads that exceed one CAN frame's
// 8-byte capacity. Both sides are grounded line-for-line on
// original_source/src/grapple/fragments.rs's FragmentReassemblerTx/Rx.
package fragment

import "github.com/fieldrobotics/grapple-can-gateway/internal/canid"

// fragmentFlagBit / effClassMask mirror canid's vendor-namespace carve-out:
// bit 5 of api_class marks a fragment frame, and the low 4 bits carry the
// fragment_id (16 concurrent streams per sender).
const (
	fragmentFlagBit uint8 = 0x20
	effClassMask    uint8 = 0x0F
)

// MaxPayloadLen is the largest total (pre-fragmentation) message length
// the Start header can describe, per spec.md's 255-byte ceiling on
// fragmented payloads (one byte of total_length in the Start header).
// Split does not check it: a longer body gets total_length len(body) mod 256.
const MaxPayloadLen = 255

type key struct {
	deviceType uint8
	deviceID   uint8
	fragmentID uint8
}

type header struct {
	origAPIClass uint8
	origAPIIndex uint8
	totalLen     uint8
}

type recordSet struct {
	header   *header
	slots    [][]byte
	lastSeen int64
}

func (s *recordSet) received() int {
	n := 0
	for _, c := range s.slots {
		n += len(c)
	}
	return n
}

func (s *recordSet) ensureSlot(i int) {
	for len(s.slots) <= i {
		s.slots = append(s.slots, nil)
	}
}

// Reassembler accumulates fragment frames for a key until a complete
// message is available, or drops them after ageOff ticks of inactivity.
// Not safe for concurrent use (spec.md §5: caller-exclusive ownership).
type Reassembler struct {
	ageOff  int64
	maxSets int
	sets    map[key]*recordSet
}

// NewReassembler returns a Reassembler that expires in-progress sets
// after ageOff ticks and bounds concurrent in-flight sets at maxSets
// (new Starts beyond the bound are silently dropped, per spec.md §9's
// "reassembly storage bound" note). maxSets <= 0 means unbounded.
func NewReassembler(ageOff int64, maxSets int) *Reassembler {
	return &Reassembler{ageOff: ageOff, maxSets: maxSets, sets: make(map[key]*recordSet)}
}

// Receive processes one fragment-flagged frame. id must already have its
// fragment_flag set (callers classify that upstream — spec.md §2's "raw
// frame -> identifier unpack -> fragment classifier" data flow). It
// returns (reassembledID, reassembledPayload, true) the moment a set
// completes, or (_, nil, false) while more fragments are still needed.
func (r *Reassembler) Receive(now int64, id canid.ID, payload []byte) (canid.ID, []byte, bool) {
	r.evict(now)

	v := id.AsVendor()
	fragmentID := v.APIClass & effClassMask
	k := key{deviceType: id.DeviceType, deviceID: id.DeviceID, fragmentID: fragmentID}

	set, exists := r.sets[k]
	if !exists && r.maxSets > 0 && len(r.sets) >= r.maxSets {
		return canid.ID{}, nil, false // bound exceeded: drop silently
	}

	if v.APIIndex == 0 {
		// Start. If a Start was already recorded for this key, this is a
		// sender restart (spec.md §4.5: "a restarted fragment set...
		// replaces the previous record"). If no Start was recorded yet —
		// either this key is brand new, or out-of-order Continuations
		// arrived first — merge in rather than discard what's there.
		if len(payload) < 3 {
			return canid.ID{}, nil, false // malformed Start; drop this frame only
		}
		if !exists || set.header != nil {
			set = &recordSet{} // fresh key, or a restart of a completed Start
		}
		set.header = &header{
			origAPIClass: payload[0],
			origAPIIndex: payload[1],
			totalLen:     payload[2],
		}
		set.ensureSlot(0)
		set.slots[0] = payload[3:]
		r.sets[k] = set
	} else {
		if !exists {
			set = &recordSet{}
			r.sets[k] = set
		}
		set.ensureSlot(int(v.APIIndex))
		set.slots[v.APIIndex] = payload
	}
	set.lastSeen = now

	if set.header == nil || set.received() < int(set.header.totalLen) {
		return canid.ID{}, nil, false
	}

	// Complete: concatenate in index order, truncate to total_len (spec.md
	// §9 open question: truncate rather than reject on overrun), remove
	// the record regardless of what the caller does with the bytes next.
	buf := make([]byte, 0, set.header.totalLen)
	for _, c := range set.slots {
		buf = append(buf, c...)
	}
	if len(buf) > int(set.header.totalLen) {
		buf = buf[:set.header.totalLen]
	}
	delete(r.sets, k)

	reassembled := canid.ID{
		DeviceType:   id.DeviceType,
		Manufacturer: canid.ManufacturerGrapple,
		APIClass:     set.header.origAPIClass,
		APIIndex:     set.header.origAPIIndex,
		DeviceID:     id.DeviceID,
	}
	return reassembled, buf, true
}

func (r *Reassembler) evict(now int64) int {
	n := 0
	cutoff := now - r.ageOff
	for k, s := range r.sets {
		if s.lastSeen < cutoff {
			delete(r.sets, k)
			n++
		}
	}
	return n
}

// EvictExpired runs the same age-off sweep Receive performs internally and
// reports how many in-progress sets were dropped, so a caller (grapplebus)
// can drive a metrics counter without this package depending on metrics.
func (r *Reassembler) EvictExpired(now int64) int { return r.evict(now) }

// InFlight reports the number of reassembly sets currently in progress (for metrics/tests).
func (r *Reassembler) InFlight() int { return len(r.sets) }
