package platform

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/stianeikeland/go-rpio/v4"

	"github.com/T-REX-XP/MMM-Gestures-Modern/power"
)

// CommandDisplay switches the display by running an external command, by
// default "vcgencmd display_power 0|1".
type CommandDisplay struct {
	on  []string
	off []string
}

func NewCommandDisplay(on, off []string) *CommandDisplay {
	return &CommandDisplay{on: on, off: off}
}

func (d *CommandDisplay) SetPower(ctx context.Context, state power.State) error {
	argv := d.off
	if state == power.On {
		argv = d.on
	}
	if len(argv) == 0 {
		return fmt.Errorf("no command configured for display %s", state)
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %w: %s", strings.Join(argv, " "), err, strings.TrimSpace(out.String()))
	}
	slog.Debug("Display command done", "command", strings.Join(argv, " "), "output", strings.TrimSpace(out.String()))
	return nil
}

// GPIODisplay drives a relay or backlight enable line.
type GPIODisplay struct {
	pin       rpio.Pin
	activeLow bool
}

// NewGPIODisplay maps the GPIO memory and configures pin as output. Close
// must be called to unmap it again.
func NewGPIODisplay(pin int, activeLow bool) (*GPIODisplay, error) {
	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("failed to open gpio: %w", err)
	}
	p := rpio.Pin(pin)
	p.Output()
	return &GPIODisplay{pin: p, activeLow: activeLow}, nil
}

func (d *GPIODisplay) SetPower(ctx context.Context, state power.State) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if (state == power.On) != d.activeLow {
		d.pin.High()
	} else {
		d.pin.Low()
	}
	return nil
}

func (d *GPIODisplay) Close() error {
	return rpio.Close()
}

// noDisplay is used when the display is not switched at all.
type noDisplay struct{}

func (noDisplay) SetPower(_ context.Context, state power.State) error {
	slog.Info("Display power switching disabled", "requested", state.String())
	return nil
}
