package platform

import (
	"errors"
	"fmt"
	"log/slog"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/T-REX-XP/MMM-Gestures-Modern/config"
	"github.com/T-REX-XP/MMM-Gestures-Modern/driver"
	"github.com/T-REX-XP/MMM-Gestures-Modern/poll"
	"github.com/T-REX-XP/MMM-Gestures-Modern/util"
)

type RaspberryPiPlatform struct {
	*AbstractPlatform
	bus         i2c.BusCloser
	gestureDev  *driver.PAJ7620
	distanceDev *driver.GP2Y0E03
	gpioDisplay *GPIODisplay
}

func NewRaspberryPiPlatform(conf *config.Config) *RaspberryPiPlatform {
	return &RaspberryPiPlatform{
		AbstractPlatform: newAbstractPlatform(conf),
	}
}

func (s *RaspberryPiPlatform) Start() error {
	hw := s.config.Hardware

	slog.Info("Initialise I2C...")
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("failed to init periph: %w", err)
	}

	var err error
	s.bus, err = i2creg.Open(hw.I2CBus)
	if err != nil {
		return fmt.Errorf("failed to open i2c bus %q: %w", hw.I2CBus, err)
	}

	// A sensor that cannot be initialised disables only its own subsystem.
	if dev, err := driver.NewPAJ7620(s.bus, hw.GestureAddr); err != nil {
		slog.Error("Gesture sensor unavailable, gestures disabled", "addr", fmt.Sprintf("%#02x", hw.GestureAddr), "error", err)
	} else {
		slog.Info("Gesture sensor ready", "device", dev.String())
		s.gestureDev = dev
		s.gestures = dev
	}
	if dev, err := driver.NewGP2Y0E03(s.bus, hw.DistanceAddr); err != nil {
		slog.Error("Distance sensor unavailable, presence detection disabled", "addr", fmt.Sprintf("%#02x", hw.DistanceAddr), "error", err)
	} else {
		slog.Info("Distance sensor ready", "device", dev.String(), "maxDistance", dev.MaxDistance())
		s.distanceDev = dev
		s.distance = dev
	}
	if s.gestureDev == nil && s.distanceDev == nil {
		s.closeBus()
		return errors.New("neither gesture nor distance sensor could be initialised")
	}

	switch hw.Display.Type {
	case config.DisplayGPIO:
		d, err := NewGPIODisplay(hw.Display.GPIOPin, hw.Display.ActiveLow)
		if err != nil {
			s.Stop()
			return err
		}
		s.gpioDisplay = d
		s.display = d
	case config.DisplayNone:
		s.display = noDisplay{}
	default:
		s.display = NewCommandDisplay(hw.Display.OnCommand, hw.Display.OffCommand)
	}

	close(s.readyChan) // For RPi, we are ready immediately.
	return nil
}

// ShowStatus logs presence and power changes. The TUI renders every
// status, a headless device only needs the transitions.
func (s *RaspberryPiPlatform) ShowStatus(status *util.Latest[poll.Status]) {
	var last poll.Status
	first := true
	s.followStatus(status, func(st poll.Status) {
		if first || st.Presence != last.Presence || st.Power != last.Power || st.PowerOffPending != last.PowerOffPending {
			slog.Debug("Status", "presence", st.Presence.String(), "power", st.Power.String(),
				"offPending", st.PowerOffPending, "median", st.Median)
		}
		first = false
		last = st
	})
}

func (s *RaspberryPiPlatform) Stop() {
	s.stopStatus()

	if s.gestureDev != nil {
		if err := s.gestureDev.Halt(); err != nil {
			slog.Error("Error suspending gesture sensor", "error", err)
		}
		s.gestureDev = nil
	}
	if s.distanceDev != nil {
		// a timed out read may still be on the bus
		s.distanceDev.Halt()
		s.distanceDev = nil
	}
	s.closeBus()

	if s.gpioDisplay != nil {
		if err := s.gpioDisplay.Close(); err != nil {
			slog.Error("Error closing gpio", "error", err)
		}
		s.gpioDisplay = nil
	}
}

func (s *RaspberryPiPlatform) closeBus() {
	if s.bus != nil {
		if err := s.bus.Close(); err != nil {
			slog.Error("Error closing i2c bus", "error", err)
		}
		s.bus = nil
	}
}
