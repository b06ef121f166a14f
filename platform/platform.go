package platform

import (
	"github.com/T-REX-XP/MMM-Gestures-Modern/poll"
	"github.com/T-REX-XP/MMM-Gestures-Modern/power"
	"github.com/T-REX-XP/MMM-Gestures-Modern/util"
)

// Platform defines the interface for abstracting away the real hardware
// from the TUI simulation.
type Platform interface {
	// Start initializes the platform (opens the I2C bus, or starts the TUI).
	Start() error

	// Stop cleans up all platform resources.
	Stop()

	// Ready is closed once the platform can be used; for the TUI this is
	// after the first draw.
	Ready() <-chan bool

	// GestureReader returns nil when no gesture sensor is available.
	GestureReader() poll.GestureReader

	// DistanceReader returns nil when no distance sensor is available.
	DistanceReader() poll.DistanceReader

	// Display returns the display power switch.
	Display() power.Display

	// ShowStatus hands the loop status to the platform for display.
	ShowStatus(status *util.Latest[poll.Status])
}
