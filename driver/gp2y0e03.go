package driver

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"periph.io/x/conn/v3/i2c"
)

// ErrOutOfRange is returned by Centimeters when nothing reflects within the
// measuring range of the sensor.
var ErrOutOfRange = errors.New("distance out of range")

const (
	GP2Y0E03Addr uint16 = 0x40

	gpRegShift    = 0x35
	gpRegDistance = 0x5E
)

// GP2Y0E03 is a Sharp infrared distance sensor with I2C output.
type GP2Y0E03 struct {
	mu     sync.Mutex
	dev    *i2c.Dev
	shift  byte
	halted bool
}

// NewGP2Y0E03 reads the range shift register once; it determines the scale
// of all following measurements.
func NewGP2Y0E03(bus i2c.Bus, addr uint16) (*GP2Y0E03, error) {
	if addr == 0 {
		addr = GP2Y0E03Addr
	}
	d := &GP2Y0E03{dev: &i2c.Dev{Addr: addr, Bus: bus}}

	shift := make([]byte, 1)
	if err := d.dev.Tx([]byte{gpRegShift}, shift); err != nil {
		return nil, fmt.Errorf("gp2y0e03: read shift: %w", err)
	}
	d.shift = shift[0] & 0x07
	if d.shift != 1 && d.shift != 2 {
		return nil, fmt.Errorf("gp2y0e03: shift %d: %w", d.shift, ErrUnknownDevice)
	}
	return d, nil
}

// MaxDistance is the largest distance in cm the sensor reports with its
// current shift setting (63 cm for the factory default).
func (d *GP2Y0E03) MaxDistance() float64 {
	return float64(0x1000)/16/float64(uint(1)<<d.shift) - 1
}

// Centimeters performs one measurement.
func (d *GP2Y0E03) Centimeters(ctx context.Context) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.halted {
		return 0, ErrHalted
	}

	raw := make([]byte, 2)
	if err := d.dev.Tx([]byte{gpRegDistance}, raw); err != nil {
		return 0, fmt.Errorf("gp2y0e03: read distance: %w", err)
	}
	value := int(raw[0])<<4 | int(raw[1]&0x0F)
	cm := float64(value) / 16 / float64(uint(1)<<d.shift)
	if cm >= d.MaxDistance() {
		return cm, ErrOutOfRange
	}
	return cm, nil
}

// ReadDistance is Centimeters with out-of-range readings reported as NaN
// instead of an error, so they count as "nobody there".
func (d *GP2Y0E03) ReadDistance(ctx context.Context) (float64, error) {
	cm, err := d.Centimeters(ctx)
	if errors.Is(err, ErrOutOfRange) {
		return math.NaN(), nil
	}
	return cm, err
}

// Halt waits for a running measurement and rejects all later ones, so the
// bus can be closed safely.
func (d *GP2Y0E03) Halt() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.halted = true
}

func (d *GP2Y0E03) String() string {
	return fmt.Sprintf("GP2Y0E03(%s)", d.dev)
}
