// Package driver talks to the two I2C sensors behind the mirror: the
// PAJ7620 gesture sensor and the GP2Y0E03 distance sensor.
package driver

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"periph.io/x/conn/v3/i2c"

	"github.com/T-REX-XP/MMM-Gestures-Modern/gesture"
)

// ErrUnknownDevice is returned when the part id read from the bus does not
// belong to the expected sensor.
var ErrUnknownDevice = errors.New("unknown device")

// ErrHalted is returned by reads after Halt; the bus may already be closed.
var ErrHalted = errors.New("device halted")

const (
	PAJ7620Addr uint16 = 0x73

	pajRegBankSel = 0xEF
	pajRegPartIDL = 0x00
	pajRegFlagLo  = 0x43
	pajRegSuspend = 0x03
	pajRegEnable  = 0x72

	pajPartIDLo = 0x20
	pajPartIDHi = 0x76
)

type regval struct {
	reg, val byte
}

// pajInitRegisters is the power-up sequence from the vendor reference
// driver. Both register banks are written; 0xEF selects the bank.
var pajInitRegisters = []regval{
	{0xEF, 0x00}, {0x32, 0x29}, {0x33, 0x01}, {0x34, 0x00}, {0x35, 0x01}, {0x36, 0x00}, {0x37, 0x07}, {0x38, 0x17},
	{0x39, 0x06}, {0x3A, 0x12}, {0x3F, 0x00}, {0x40, 0x02}, {0x41, 0xFF}, {0x42, 0x01}, {0x46, 0x2D}, {0x47, 0x0F},
	{0x48, 0x3C}, {0x49, 0x00}, {0x4A, 0x1E}, {0x4B, 0x00}, {0x4C, 0x20}, {0x4D, 0x00}, {0x4E, 0x1A}, {0x4F, 0x14},
	{0x50, 0x00}, {0x51, 0x10}, {0x52, 0x00}, {0x5C, 0x02}, {0x5D, 0x00}, {0x5E, 0x10}, {0x5F, 0x3F}, {0x60, 0x27},
	{0x61, 0x28}, {0x62, 0x00}, {0x63, 0x03}, {0x64, 0xF7}, {0x65, 0x03}, {0x66, 0xD9}, {0x67, 0x03}, {0x68, 0x01},
	{0x69, 0xC8}, {0x6A, 0x40}, {0x6D, 0x04}, {0x6E, 0x00}, {0x6F, 0x00}, {0x70, 0x80}, {0x71, 0x00}, {0x72, 0x00},
	{0x73, 0x00}, {0x74, 0xF0}, {0x75, 0x00}, {0x80, 0x42}, {0x81, 0x44}, {0x82, 0x04}, {0x83, 0x20}, {0x84, 0x20},
	{0x85, 0x00}, {0x86, 0x10}, {0x87, 0x00}, {0x88, 0x05}, {0x89, 0x18}, {0x8A, 0x10}, {0x8B, 0x01}, {0x8C, 0x37},
	{0x8D, 0x00}, {0x8E, 0xF0}, {0x8F, 0x81}, {0x90, 0x06}, {0x91, 0x06}, {0x92, 0x1E}, {0x93, 0x0D}, {0x94, 0x0A},
	{0x95, 0x0A}, {0x96, 0x0C}, {0x97, 0x05}, {0x98, 0x0A}, {0x99, 0x41}, {0x9A, 0x14}, {0x9B, 0x0A}, {0x9C, 0x3F},
	{0x9D, 0x33}, {0x9E, 0xAE}, {0x9F, 0xF9}, {0xA0, 0x48}, {0xA1, 0x13}, {0xA2, 0x10}, {0xA3, 0x08}, {0xA4, 0x30},
	{0xA5, 0x19}, {0xA6, 0x10}, {0xA7, 0x08}, {0xA8, 0x24}, {0xA9, 0x04}, {0xAA, 0x1E}, {0xAB, 0x1E}, {0xCC, 0x19},
	{0xCD, 0x0B}, {0xCE, 0x13}, {0xCF, 0x64}, {0xD0, 0x21}, {0xD1, 0x0F}, {0xD2, 0x88}, {0xE0, 0x01}, {0xE1, 0x04},
	{0xE2, 0x41}, {0xE3, 0xD6}, {0xE4, 0x00}, {0xE5, 0x0C}, {0xE6, 0x0A}, {0xE7, 0x00}, {0xE8, 0x00}, {0xE9, 0x00},
	{0xEE, 0x07},
	{0xEF, 0x01}, {0x00, 0x1E}, {0x01, 0x1E}, {0x02, 0x0F}, {0x03, 0x10}, {0x04, 0x02}, {0x05, 0x00}, {0x06, 0xB0},
	{0x07, 0x04}, {0x08, 0x0D}, {0x09, 0x0E}, {0x0A, 0x9C}, {0x0B, 0x04}, {0x0C, 0x05}, {0x0D, 0x0F}, {0x0E, 0x02},
	{0x0F, 0x12}, {0x10, 0x02}, {0x11, 0x02}, {0x12, 0x00}, {0x13, 0x01}, {0x14, 0x05}, {0x15, 0x07}, {0x16, 0x05},
	{0x17, 0x07}, {0x18, 0x01}, {0x19, 0x04}, {0x1A, 0x05}, {0x1B, 0x0C}, {0x1C, 0x2A}, {0x1D, 0x01}, {0x1E, 0x00},
	{0x21, 0x00}, {0x22, 0x00}, {0x23, 0x00}, {0x25, 0x01}, {0x26, 0x00}, {0x27, 0x39}, {0x28, 0x7F}, {0x29, 0x08},
	{0x30, 0x03}, {0x31, 0x00}, {0x32, 0x1A}, {0x33, 0x1A}, {0x34, 0x07}, {0x35, 0x07}, {0x36, 0x01}, {0x37, 0xFF},
	{0x38, 0x36}, {0x39, 0x07}, {0x3A, 0x00}, {0x3E, 0xFF}, {0x3F, 0x00}, {0x40, 0x77}, {0x41, 0x40}, {0x42, 0x00},
	{0x43, 0x30}, {0x44, 0xA0}, {0x45, 0x5C}, {0x46, 0x00}, {0x47, 0x00}, {0x48, 0x58}, {0x4A, 0x1E}, {0x4B, 0x1E},
	{0x4C, 0x00}, {0x4D, 0x00}, {0x4E, 0xA0}, {0x4F, 0x80}, {0x50, 0x00}, {0x51, 0x00}, {0x52, 0x00}, {0x53, 0x00},
	{0x54, 0x00}, {0x57, 0x80}, {0x59, 0x10}, {0x5A, 0x08}, {0x5B, 0x94}, {0x5C, 0xE8}, {0x5D, 0x08}, {0x5E, 0x3D},
	{0x5F, 0x99}, {0x60, 0x45}, {0x61, 0x40}, {0x63, 0x2D}, {0x64, 0x02}, {0x65, 0x96}, {0x66, 0x00}, {0x67, 0x97},
	{0x68, 0x01}, {0x69, 0xCD}, {0x6A, 0x01}, {0x6B, 0xB0}, {0x6C, 0x04}, {0x6D, 0x2C}, {0x6E, 0x01}, {0x6F, 0x32},
	{0x71, 0x00}, {0x72, 0x01}, {0x73, 0x35}, {0x74, 0x00}, {0x75, 0x33}, {0x76, 0x31}, {0x77, 0x01}, {0x7C, 0x84},
	{0x7D, 0x03}, {0x7E, 0x01},
}

// pajGestureMode switches the sensor from proximity to gesture detection.
var pajGestureMode = []regval{
	{0xEF, 0x00}, {0x41, 0x00}, {0x42, 0x00}, {0xEF, 0x00}, {0x48, 0x3C}, {0x49, 0x00}, {0x51, 0x10}, {0x83, 0x20},
	{0x9F, 0xF9}, {0xEF, 0x01}, {0x01, 0x1E}, {0x02, 0x0F}, {0x03, 0x10}, {0x04, 0x02}, {0x41, 0x40}, {0x43, 0x30},
	{0x65, 0x96}, {0x66, 0x00}, {0x67, 0x97}, {0x68, 0x01}, {0x69, 0xCD}, {0x6A, 0x01}, {0x6B, 0xB0}, {0x6C, 0x04},
	{0x6D, 0x2C}, {0x6E, 0x01}, {0x74, 0x00}, {0xEF, 0x00}, {0x41, 0xFF}, {0x42, 0x01},
}

// PAJ7620 is a gesture sensor on an I2C bus.
type PAJ7620 struct {
	mu     sync.Mutex
	dev    *i2c.Dev
	halted bool
}

// NewPAJ7620 wakes the sensor, checks its part id and puts it into gesture
// mode.
func NewPAJ7620(bus i2c.Bus, addr uint16) (*PAJ7620, error) {
	if addr == 0 {
		addr = PAJ7620Addr
	}
	d := &PAJ7620{dev: &i2c.Dev{Addr: addr, Bus: bus}}

	// The first access only wakes the chip up and may not be acknowledged.
	_ = d.selectBank(0)
	time.Sleep(time.Millisecond)
	if err := d.selectBank(0); err != nil {
		return nil, fmt.Errorf("paj7620: wake up: %w", err)
	}

	id := make([]byte, 2)
	if err := d.dev.Tx([]byte{pajRegPartIDL}, id); err != nil {
		return nil, fmt.Errorf("paj7620: read part id: %w", err)
	}
	if id[0] != pajPartIDLo || id[1] != pajPartIDHi {
		return nil, fmt.Errorf("paj7620: part id %#02x%02x: %w", id[1], id[0], ErrUnknownDevice)
	}

	if err := d.writeAll(pajInitRegisters); err != nil {
		return nil, fmt.Errorf("paj7620: init: %w", err)
	}
	if err := d.writeAll(pajGestureMode); err != nil {
		return nil, fmt.Errorf("paj7620: gesture mode: %w", err)
	}
	if err := d.selectBank(0); err != nil {
		return nil, fmt.Errorf("paj7620: %w", err)
	}
	return d, nil
}

// ReadFlags reads and clears the gesture interrupt flags.
func (d *PAJ7620) ReadFlags(ctx context.Context) (gesture.Flags, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.halted {
		return 0, ErrHalted
	}

	flags := make([]byte, 2)
	if err := d.dev.Tx([]byte{pajRegFlagLo}, flags); err != nil {
		return 0, fmt.Errorf("paj7620: read flags: %w", err)
	}
	return gesture.FromRegisters(flags[0], flags[1]), nil
}

// Halt disables gesture detection and suspends the chip. It waits for a
// running read; later reads fail with ErrHalted.
func (d *PAJ7620) Halt() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.halted = true
	return d.writeAll([]regval{
		{pajRegBankSel, 0x01}, {pajRegEnable, 0x00},
		{pajRegBankSel, 0x00}, {pajRegSuspend, 0x01},
	})
}

func (d *PAJ7620) String() string {
	return fmt.Sprintf("PAJ7620(%s)", d.dev)
}

func (d *PAJ7620) selectBank(bank byte) error {
	return d.write(pajRegBankSel, bank)
}

func (d *PAJ7620) write(reg, val byte) error {
	_, err := d.dev.Write([]byte{reg, val})
	return err
}

func (d *PAJ7620) writeAll(regs []regval) error {
	for _, r := range regs {
		if err := d.write(r.reg, r.val); err != nil {
			return fmt.Errorf("write %#02x: %w", r.reg, err)
		}
	}
	return nil
}
