package platform

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"syscall"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/T-REX-XP/MMM-Gestures-Modern/config"
	"github.com/T-REX-XP/MMM-Gestures-Modern/gesture"
	"github.com/T-REX-XP/MMM-Gestures-Modern/logging"
	"github.com/T-REX-XP/MMM-Gestures-Modern/poll"
	"github.com/T-REX-XP/MMM-Gestures-Modern/power"
	"github.com/T-REX-XP/MMM-Gestures-Modern/presence"
	"github.com/T-REX-XP/MMM-Gestures-Modern/util"
)

const sparkWidth = 60

// keyGestures maps arrow keys to the gesture the sensor would report.
var keyGestures = map[tcell.Key]gesture.Tag{
	tcell.KeyUp:    gesture.Up,
	tcell.KeyDown:  gesture.Down,
	tcell.KeyLeft:  gesture.Left,
	tcell.KeyRight: gesture.Right,
}

var runeGestures = map[rune]gesture.Tag{
	'n': gesture.Near,
	'f': gesture.Far,
	'c': gesture.Clockwise,
	'a': gesture.CounterClockwise,
	'w': gesture.Wave,
}

type TUIPlatform struct {
	*AbstractPlatform
	tviewapp     *tview.Application
	intro        *tview.TextView
	statusView   *tview.TextView
	logView      *tview.TextView
	ossignalChan chan os.Signal
	sim          *simulator
	logFlushOnce sync.Once
}

func NewTUIPlatform(conf *config.Config, ossignalchan chan os.Signal) *TUIPlatform {
	inst := &TUIPlatform{
		AbstractPlatform: newAbstractPlatform(conf),
		ossignalChan:     ossignalchan,
		sim:              newSimulator(),
	}
	inst.gestures = inst.sim
	inst.distance = inst.sim
	inst.display = inst.sim
	return inst
}

func (s *TUIPlatform) Start() error {
	s.initSimulationTUI()
	return nil
}

func (s *TUIPlatform) Stop() {
	s.stopStatus()
	if s.tviewapp != nil {
		s.tviewapp.Stop()
	}
}

func (s *TUIPlatform) ShowStatus(status *util.Latest[poll.Status]) {
	s.followStatus(status, func(st poll.Status) {
		text := s.statusText(st)
		s.tviewapp.QueueUpdateDraw(func() {
			s.statusView.SetText(text)
		})
	})
}

func (s *TUIPlatform) getIntroText() string {
	line1 := "Hit [#ffff00]Space[-] to step in front of the mirror or leave, [#ffff00]e[-] to toggle a sensor fault"
	line2 := "Gestures: [blue]arrows[-], [blue]n[-]ear, [blue]f[-]ar, [blue]c[-]lockwise, [blue]a[-]nticlockwise, [blue]w[-]ave"
	line3 := "Hit [#ff0000]q[-] to exit, [#ff0000]r[-] to reload, [#ff0000]PgUp/PgDn[-] to scroll logs"
	return fmt.Sprintf("%s\n%s\n%s", line1, line2, line3)
}

func colorFor(ok bool) string {
	if ok {
		return "[#00ff00]"
	}
	return "[#ff0000]"
}

// statusText renders st and the simulator state. It does not touch any
// tview primitive and may be called from any go-routine.
func (s *TUIPlatform) statusText(st poll.Status) string {
	present, fault, display := s.sim.state()
	spark, stats := s.sim.history.render(sparkWidth, 2*simDistance)

	var buf strings.Builder
	fmt.Fprintf(&buf, " Person:   %-8s  Sensors: %s%-5s[-]   Display: %s%-3s[-]",
		map[bool]string{true: "present", false: "away"}[present],
		colorFor(!fault), map[bool]string{true: "FAULT", false: "ok"}[fault],
		colorFor(display == power.On), display.String())
	fmt.Fprintf(&buf, "\n Presence: %s%-8s[-]  Power: %-3s  off pending: %-5v  median: %5.1f cm  samples: %2d",
		colorFor(st.Presence == presence.Present), st.Presence.String(), st.Power.String(),
		st.PowerOffPending, st.Median, st.Samples)
	fmt.Fprintf(&buf, "\n Last gesture: [#ffff00]%-16s[-] failures gesture/distance: %d/%d  ticks: %d",
		string(st.LastGesture), st.GestureFailures, st.DistanceFailures, st.Ticks)
	fmt.Fprintf(&buf, "\n [blue]%s[-]\n %s", spark, stats)
	return buf.String()
}

func (s *TUIPlatform) handleKey(event *tcell.EventKey) *tcell.EventKey {
	if tag, ok := keyGestures[event.Key()]; ok {
		s.sim.inject(tag)
		return nil
	}
	switch event.Key() {
	case tcell.KeyCtrlC:
		s.ossignalChan <- os.Interrupt
		return nil
	case tcell.KeyPgUp:
		row, col := s.logView.GetScrollOffset()
		s.logView.ScrollTo(row-1, col)
		return nil
	case tcell.KeyPgDn:
		row, col := s.logView.GetScrollOffset()
		s.logView.ScrollTo(row+1, col)
		return nil
	case tcell.KeyRune:
		r := event.Rune()
		if tag, ok := runeGestures[r]; ok {
			s.sim.inject(tag)
			return nil
		}
		switch r {
		case ' ':
			slog.Info("Simulated person", "present", s.sim.togglePresent())
			return nil
		case 'e', 'E':
			slog.Info("Simulated sensor fault", "active", s.sim.toggleFault())
			return nil
		case 'q', 'Q':
			s.ossignalChan <- os.Interrupt
			return nil
		case 'r', 'R':
			s.ossignalChan <- syscall.SIGHUP
			return nil
		}
	}
	return event
}

func (s *TUIPlatform) initSimulationTUI() {
	s.tviewapp = tview.NewApplication()

	s.intro = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	s.intro.SetText(s.getIntroText())
	s.intro.SetBorder(true).SetTitle(" Gestures Simulation ").SetTitleColor(tcell.ColorLightBlue)
	s.intro.SetBackgroundColor(tcell.NewRGBColor(20, 20, 20))

	s.statusView = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	s.statusView.SetBorder(true).SetTitle(" Status ").SetTitleColor(tcell.ColorLightBlue)
	s.statusView.SetBackgroundColor(tcell.NewRGBColor(30, 30, 30))

	s.logView = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetChangedFunc(func() {
			s.logView.ScrollToEnd()
			s.tviewapp.Draw()
		})
	s.logView.SetBorder(true).SetTitle(" Logs ").SetTitleColor(tcell.ColorLightBlue)
	s.logView.SetBackgroundColor(tcell.NewRGBColor(40, 40, 40))

	layout := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(s.intro, 5, 0, false).
		AddItem(s.statusView, 7, 0, false).
		AddItem(s.logView, 0, 1, true)

	// Flush logs after first draw
	s.tviewapp.SetAfterDrawFunc(func(screen tcell.Screen) {
		s.logFlushOnce.Do(func() {
			logWriter := tview.ANSIWriter(s.logView)
			if err := logging.SetOutput(logWriter); err != nil {
				slog.Error("Failed to attach log pane", "error", err)
			}
			close(s.readyChan)
		})
	})

	s.tviewapp.SetInputCapture(s.handleKey)

	go func() {
		if err := s.tviewapp.SetRoot(layout, true).Run(); err != nil {
			slog.Error("Error running TUI", "error", err)
			s.ossignalChan <- os.Interrupt
		}
	}()
}
