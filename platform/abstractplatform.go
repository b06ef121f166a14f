package platform

import (
	"log/slog"
	"sync"

	"github.com/T-REX-XP/MMM-Gestures-Modern/config"
	"github.com/T-REX-XP/MMM-Gestures-Modern/poll"
	"github.com/T-REX-XP/MMM-Gestures-Modern/power"
	"github.com/T-REX-XP/MMM-Gestures-Modern/util"
)

type AbstractPlatform struct {
	config         *config.Config
	gestures       poll.GestureReader
	distance       poll.DistanceReader
	display        power.Display
	readyChan      chan bool
	statusWg       sync.WaitGroup
	statusStopChan chan bool
	statusOnce     sync.Once
	shutdownMutex  sync.RWMutex
	isShuttingDown bool
}

func newAbstractPlatform(conf *config.Config) *AbstractPlatform {
	return &AbstractPlatform{
		config:         conf,
		readyChan:      make(chan bool),
		statusStopChan: make(chan bool),
	}
}

func (s *AbstractPlatform) Ready() <-chan bool {
	return s.readyChan
}

func (s *AbstractPlatform) GestureReader() poll.GestureReader {
	return s.gestures
}

func (s *AbstractPlatform) DistanceReader() poll.DistanceReader {
	return s.distance
}

func (s *AbstractPlatform) Display() power.Display {
	return s.display
}

func (s *AbstractPlatform) setInShutdown() {
	s.shutdownMutex.Lock()
	s.isShuttingDown = true
	s.shutdownMutex.Unlock()
}

// followStatus calls render with every newly published status until the
// platform is stopped.
func (s *AbstractPlatform) followStatus(status *util.Latest[poll.Status], render func(poll.Status)) {
	s.statusWg.Add(1)
	go func() {
		defer s.statusWg.Done()
		for {
			select {
			case <-s.statusStopChan:
				slog.Info("Ending status go-routine...")
				return
			case <-status.Changed():
				s.shutdownMutex.RLock()
				if !s.isShuttingDown {
					render(status.Value())
				}
				s.shutdownMutex.RUnlock()
			}
		}
	}()
}

// stopStatus ends the status go-routine. It is safe to call more than once.
func (s *AbstractPlatform) stopStatus() {
	s.setInShutdown()
	s.statusOnce.Do(func() {
		close(s.statusStopChan)
	})
	s.statusWg.Wait()
}
