package wecs

import (
	"math/bits"
	"strconv"
	"strings"
)

// Bitmask is a 256-bit set over registered identifiers.
// It supports up to MaxComponents unique registrations per world.
type Bitmask [4]uint64

// Set sets the bit at the given index.
func (m *Bitmask) Set(id ComponentID) {
	m[id/64] |= 1 << (id % 64)
}

// Clear clears the bit at the given index.
func (m *Bitmask) Clear(id ComponentID) {
	m[id/64] &^= 1 << (id % 64)
}

// Has returns true if the bit at the given index is set.
func (m *Bitmask) Has(id ComponentID) bool {
	return m[id/64]&(1<<(id%64)) != 0
}

// ContainsAll returns true if all bits set in other are also set in m.
// This is used to check required component sets against an archetype.
func (m *Bitmask) ContainsAll(other Bitmask) bool {
	return (m[0]&other[0] == other[0]) &&
		(m[1]&other[1] == other[1]) &&
		(m[2]&other[2] == other[2]) &&
		(m[3]&other[3] == other[3])
}

// ContainsAny returns true if any bit set in other is also set in m.
// This is used to check exclusion filters against an archetype.
func (m *Bitmask) ContainsAny(other Bitmask) bool {
	return (m[0]&other[0] != 0) ||
		(m[1]&other[1] != 0) ||
		(m[2]&other[2] != 0) ||
		(m[3]&other[3] != 0)
}

// IsZero returns true if no bits are set.
func (m *Bitmask) IsZero() bool {
	return m[0] == 0 && m[1] == 0 && m[2] == 0 && m[3] == 0
}

// Or returns a new bitmask with bits set from both m and other.
func (m Bitmask) Or(other Bitmask) Bitmask {
	return Bitmask{
		m[0] | other[0],
		m[1] | other[1],
		m[2] | other[2],
		m[3] | other[3],
	}
}

// And returns a new bitmask with only bits set in both m and other.
func (m Bitmask) And(other Bitmask) Bitmask {
	return Bitmask{
		m[0] & other[0],
		m[1] & other[1],
		m[2] & other[2],
		m[3] & other[3],
	}
}

// AndNot returns a new bitmask with bits set in m but not in other.
func (m Bitmask) AndNot(other Bitmask) Bitmask {
	return Bitmask{
		m[0] &^ other[0],
		m[1] &^ other[1],
		m[2] &^ other[2],
		m[3] &^ other[3],
	}
}

// Count returns the number of bits set.
func (m *Bitmask) Count() int {
	return bits.OnesCount64(m[0]) +
		bits.OnesCount64(m[1]) +
		bits.OnesCount64(m[2]) +
		bits.OnesCount64(m[3])
}

// Equals returns true if both bitmasks are identical.
func (m *Bitmask) Equals(other Bitmask) bool {
	return m[0] == other[0] &&
		m[1] == other[1] &&
		m[2] == other[2] &&
		m[3] == other[3]
}

// IsDisjoint returns true if no bits are set in both m and other.
func (m *Bitmask) IsDisjoint(other Bitmask) bool {
	return !m.ContainsAny(other)
}

// First returns the lowest set bit index, or false if no bit is set.
func (m *Bitmask) First() (ComponentID, bool) {
	for w := 0; w < 4; w++ {
		if m[w] != 0 {
			return ComponentID(w*64 + bits.TrailingZeros64(m[w])), true
		}
	}
	return 0, false
}

// Bits appends the indexes of all set bits to dst in ascending order.
func (m *Bitmask) Bits(dst []ComponentID) []ComponentID {
	for w := 0; w < 4; w++ {
		word := m[w]
		for word != 0 {
			dst = append(dst, ComponentID(w*64+bits.TrailingZeros64(word)))
			word &= word - 1
		}
	}
	return dst
}

// String renders the set bit indexes, e.g. "{0, 3, 17}".
func (m Bitmask) String() string {
	var sb strings.Builder
	sb.WriteByte('{')
	for i, id := range m.Bits(nil) {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(strconv.Itoa(int(id)))
	}
	sb.WriteByte('}')
	return sb.String()
}
