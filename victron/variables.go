package victron

import "time"

// variableIDs lists the ids the registry fetches at startup, in
// issuance order. id 6 is intentionally skipped; its meaning is
// undocumented.
var variableIDs = [...]int{0, 1, 2, 3, 4, 5, 7, 8}

const variableInfoRequestTimeout = 2 * time.Second

// VariableInfo is the per-variable scaling metadata bootstrapped from
// the device: whether the raw field is two's-complement signed, the
// multiplicative scale, and an additive offset applied before
// scaling.
type VariableInfo struct {
	Signed bool
	Scale  float64
	Offset int32
}

// parse decodes a little-endian raw field of width 1, 2, or 3 bytes
// into a physical value, per spec §4.2.
func (v VariableInfo) parse(raw []byte) float64 {
	var n int64
	for i, b := range raw {
		n |= int64(b) << (8 * i)
	}
	bits := uint(8 * len(raw))
	if v.Signed && bits < 64 {
		signBit := int64(1) << (bits - 1)
		if n&signBit != 0 {
			n -= int64(1) << bits
		}
	}
	return v.Scale * float64(n+int64(v.Offset))
}

// parseVariableInfo decodes a reply to a variable-info query
// (sub-subcommand 0x36) per spec §4.2. ok is false if msg does not
// look like a variable-info reply.
func parseVariableInfo(msg []byte) (info VariableInfo, ok bool) {
	if len(msg) < 8 || msg[2] != 0x8E || msg[5] != 0x8F {
		return VariableInfo{}, false
	}
	scaleRaw := int(msg[3]) | int(msg[4])<<8
	signed := false
	if scaleRaw >= 0x8000 {
		scaleRaw = 0x10000 - scaleRaw
		signed = true
	}
	var scale float64
	if scaleRaw >= 0x4000 {
		scale = 1 / float64(0x8000-scaleRaw)
	} else {
		scale = float64(scaleRaw)
	}
	offset := int32(msg[6]) | int32(msg[7])<<8
	return VariableInfo{Signed: signed, Scale: scale, Offset: offset}, true
}

// variableRegistry tracks the bootstrap progress of fetching
// VariableInfo for every id in variableIDs. It is owned exclusively by
// the driver loop.
type variableRegistry struct {
	pending     []int
	info        map[int]VariableInfo
	requestedAt time.Time
	hasRequest  bool
}

func newVariableRegistry() *variableRegistry {
	pending := make([]int, len(variableIDs))
	copy(pending, variableIDs[:])
	return &variableRegistry{
		pending: pending,
		info:    make(map[int]VariableInfo, len(variableIDs)),
	}
}

// ready reports whether every required id has been populated, i.e.
// whether Info frames can now be decoded (spec §4.2, §4.4 "Bootstrap
// gate").
func (r *variableRegistry) ready() bool {
	return len(r.pending) == 0
}

func (r *variableRegistry) get(id int) VariableInfo {
	return r.info[id]
}

// pump sends the next outstanding variable-info request, if any is
// due, using send to transmit the address frame and sendW to issue the
// W-family request and install a completion that the nonce slot
// invokes when the matching reply arrives.
func (r *variableRegistry) pump(now time.Time, send func(cmd byte, data []byte), sendW func(data []byte, completion func([]byte))) {
	if r.ready() {
		return
	}
	if r.hasRequest && r.requestedAt.Add(variableInfoRequestTimeout).After(now) {
		return
	}
	r.hasRequest = true
	r.requestedAt = now
	id := r.pending[0]
	// The address frame may be forgotten across power cycles of the
	// equipment, so it is resent on every bootstrap iteration.
	send('A', []byte{0x01, 0x00})
	sendW([]byte{0x36, byte(id & 0xFF), byte(id >> 8)}, func(msg []byte) {
		r.handleReply(msg)
	})
}

func (r *variableRegistry) handleReply(msg []byte) {
	r.hasRequest = false
	info, ok := parseVariableInfo(msg)
	if !ok {
		return
	}
	id := r.pending[0]
	r.pending = r.pending[1:]
	// Known-hardware correction: the Multiplus II has been observed to
	// emit negative AC inverter current values despite declaring the
	// variable unsigned.
	if id == 3 {
		info.Signed = true
	}
	r.info[id] = info
}
