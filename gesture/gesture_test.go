package gesture

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecode_SingleBit(t *testing.T) {
	expected := []Tag{Down, Up, Right, Left, Near, Far, Clockwise, CounterClockwise, Wave}
	for bit, tag := range expected {
		d := Decode(Flags(1) << bit)
		assert.Equal(t, []Tag{tag}, d.Tags, "bit %d", bit)
		winner, ok := d.Winner()
		assert.True(t, ok)
		assert.Equal(t, tag, winner, "bit %d", bit)
		assert.Equal(t, bit == 4, d.Near, "bit %d", bit)
	}
}

func TestDecode_DownWinsOverNear(t *testing.T) {
	d := Decode(1<<0 | 1<<4)

	assert.Equal(t, []Tag{Down, Near}, d.Tags)
	winner, ok := d.Winner()
	assert.True(t, ok)
	assert.Equal(t, Down, winner, "lower bit must win")
	assert.True(t, d.Near, "NEAR must still affirm presence")
}

func TestDecode_Zero(t *testing.T) {
	d := Decode(0)

	assert.True(t, d.Empty())
	assert.False(t, d.Near)
	_, ok := d.Winner()
	assert.False(t, ok)
}

func TestDecode_AllBitsKeepPriorityOrder(t *testing.T) {
	d := Decode(Mask)

	assert.Equal(t, Tags(), d.Tags)
	winner, _ := d.Winner()
	assert.Equal(t, Down, winner)
}

func TestDecode_IgnoresUnknownBits(t *testing.T) {
	d := Decode(1<<9 | 1<<15)
	assert.True(t, d.Empty())

	d = Decode(1<<9 | 1<<8)
	assert.Equal(t, []Tag{Wave}, d.Tags)
}

func TestFromRegisters(t *testing.T) {
	assert.Equal(t, Flags(0x0001), FromRegisters(0x01, 0x00))
	assert.Equal(t, Flags(0x0100), FromRegisters(0x00, 0x01))
	// Only bit 0 of the second register is meaningful.
	assert.Equal(t, Flags(0x01ff), FromRegisters(0xff, 0xff))
}

func TestBitAndParse(t *testing.T) {
	f, ok := Bit(Left)
	assert.True(t, ok)
	assert.Equal(t, Flags(1<<3), f)

	_, ok = Bit(Tag("JUMP"))
	assert.False(t, ok)

	tag, err := ParseTag("WAVE")
	assert.NoError(t, err)
	assert.Equal(t, Wave, tag)

	_, err = ParseTag("wave")
	assert.Error(t, err)
}
