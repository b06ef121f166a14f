// Package gesture turns the flag register of a PAJ7620 gesture sensor into
// gesture tags.
//
// The sensor is mounted upside down behind the mirror, so the axis labels
// are swapped with respect to the datasheet: bit 0 (datasheet "up") is
// reported as DOWN, bit 2 (datasheet "left") as RIGHT and so on.
package gesture

import "fmt"

// Flags is the 9 bit gesture register sampled once per poll.
type Flags uint16

// Tag is one recognized gesture.
type Tag string

const (
	Down             Tag = "DOWN"
	Up               Tag = "UP"
	Right            Tag = "RIGHT"
	Left             Tag = "LEFT"
	Near             Tag = "NEAR"
	Far              Tag = "FAR"
	Clockwise        Tag = "CLOCKWISE"
	CounterClockwise Tag = "COUNTERCLOCKWISE"
	Wave             Tag = "WAVE"
)

// order maps bit n of the flag register to its tag. The position in this
// slice is also the priority when several bits are set in the same poll.
var order = [...]Tag{Down, Up, Right, Left, Near, Far, Clockwise, CounterClockwise, Wave}

// NearBit is the flag that, besides being a gesture, affirms that someone
// stands in front of the sensor.
const NearBit Flags = 1 << 4

// Mask covers all meaningful bits of the register.
const Mask Flags = 1<<len(order) - 1

// FromRegisters assembles the flag value from the two interrupt flag
// registers of the sensor (0x43 holds bits 0..7, bit 0 of 0x44 is WAVE).
func FromRegisters(lo, hi byte) Flags {
	return Flags(hi&1)<<8 | Flags(lo)
}

// Bit returns the flag value whose only set bit is the one for tag.
func Bit(tag Tag) (Flags, bool) {
	for i, t := range order {
		if t == tag {
			return 1 << i, true
		}
	}
	return 0, false
}

// Tags returns all tags in priority order.
func Tags() []Tag {
	ret := make([]Tag, len(order))
	copy(ret, order[:])
	return ret
}

// Valid reports whether t is one of the known tags.
func (t Tag) Valid() bool {
	_, ok := Bit(t)
	return ok
}

// ParseTag converts a string to a Tag.
func ParseTag(s string) (Tag, error) {
	t := Tag(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown gesture %q", s)
	}
	return t, nil
}

// Decoded is the result of decoding one poll.
type Decoded struct {
	// Tags holds one entry per set bit, in priority order.
	Tags []Tag
	// Near is set when the NEAR bit was present.
	Near bool
}

// Decode projects f onto the ordered list of tags. Bits above 8 are ignored.
func Decode(f Flags) Decoded {
	var d Decoded
	for i, t := range order {
		if f&(1<<i) != 0 {
			d.Tags = append(d.Tags, t)
		}
	}
	d.Near = f&NearBit != 0
	return d
}

// Winner returns the gesture reported for the poll: the first set bit in
// priority order.
func (d Decoded) Winner() (Tag, bool) {
	if len(d.Tags) == 0 {
		return "", false
	}
	return d.Tags[0], true
}

// Empty reports whether no gesture was recognized.
func (d Decoded) Empty() bool {
	return len(d.Tags) == 0
}
