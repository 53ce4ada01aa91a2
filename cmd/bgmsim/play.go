package main

import (
	"context"
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/combatbgm/internal/app/notification"
	"github.com/osa030/combatbgm/internal/app/playback"
	"github.com/osa030/combatbgm/internal/app/session"
	"github.com/osa030/combatbgm/internal/app/signal"
	"github.com/osa030/combatbgm/internal/domain/music"
	"github.com/osa030/combatbgm/internal/infra/config"
)

const (
	redrawInterval = 100 * time.Millisecond
	eventLogSize   = 8
)

var keyHelp = []string{
	"t  toggle threat       +/-  add/remove threat",
	"m  menu   g  game      b    battle   s  silence",
	"p  pause/resume        r    reset playlists",
	"v  reset volume        q/Esc quit",
}

// console is the keyboard front end of a session driven by a manual source.
type console struct {
	screen tcell.Screen
	mgr    *session.Manager
	src    *signal.Manual
	events chan string
	log    []string
}

// runInteractive runs a session with a manual source until the user quits.
func runInteractive(cfg *config.Config) error {
	cfg.Simulation.Scenario, cfg.Simulation.Script = "", ""

	src := signal.NewManual()
	mgr, err := session.NewManager(context.Background(), cfg, session.Deps{Source: src})
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	defer func() {
		if err := mgr.Close(); err != nil {
			zlog.Error().Msgf("Failed to close session: %v", err)
		}
	}()

	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("failed to create screen: %w", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("failed to initialize screen: %w", err)
	}
	defer screen.Fini()

	c := &console{
		screen: screen,
		mgr:    mgr,
		src:    src,
		events: make(chan string, 64),
	}
	mgr.Subscribe(notification.StreamFunc(func(n *notification.Notification) error {
		select {
		case c.events <- formatEvent(n):
		default:
		}
		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runErr := make(chan error, 1)
	go func() { runErr <- mgr.Run(ctx) }()

	return c.loop(cancel, runErr)
}

func (c *console) loop(cancel context.CancelFunc, runErr <-chan error) error {
	eventChan := make(chan tcell.Event, 100)
	go func() {
		for {
			ev := c.screen.PollEvent()
			if ev == nil {
				return
			}
			eventChan <- ev
		}
	}()

	ticker := time.NewTicker(redrawInterval)
	defer ticker.Stop()

	for {
		c.draw()

		select {
		case ev := <-eventChan:
			if !c.handleInput(ev) {
				cancel()
				return <-runErr
			}
		case line := <-c.events:
			c.log = append(c.log, line)
			if len(c.log) > eventLogSize {
				c.log = c.log[len(c.log)-eventLogSize:]
			}
		case err := <-runErr:
			return err
		case <-ticker.C:
		}
	}
}

// handleInput applies one key. It returns false when the user quits.
func (c *console) handleInput(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC {
			return false
		}
		if ev.Key() != tcell.KeyRune {
			return true
		}
		switch ev.Rune() {
		case 'q':
			return false
		case 't':
			c.src.ToggleThreat()
		case '+', '=':
			c.src.Queue(signal.Action{Kind: signal.ActionAddThreat, Weight: 1})
		case '-':
			c.src.Queue(signal.Action{Kind: signal.ActionRemoveThreat, Weight: 1})
		case 'm':
			c.src.Queue(signal.Switch(music.StateMenu))
		case 'g':
			c.src.Queue(signal.Switch(music.StateGame))
		case 'b':
			c.src.Queue(signal.Switch(music.StateBattle))
		case 's':
			c.src.Queue(signal.Switch(music.StateSilent))
		case 'p':
			if c.mgr.Info().Soundtrack.PlaybackState == playback.StatePaused {
				c.src.Queue(signal.Action{Kind: signal.ActionResume})
			} else {
				c.src.Queue(signal.Action{Kind: signal.ActionPause})
			}
		case 'r':
			c.src.Queue(signal.Action{Kind: signal.ActionResetPlaylists})
		case 'v':
			c.src.Queue(signal.Action{Kind: signal.ActionResetVolume})
		}
	case *tcell.EventResize:
		c.screen.Sync()
	}
	return true
}

func (c *console) draw() {
	info := c.mgr.Info()
	st := info.Soundtrack

	c.screen.Clear()
	bold := tcell.StyleDefault.Bold(true)
	dim := tcell.StyleDefault.Foreground(tcell.ColorGray)

	threat := "clear"
	threatStyle := tcell.StyleDefault.Foreground(tcell.ColorGreen)
	if c.src.Threat() {
		threat = "DETECTED"
		threatStyle = tcell.StyleDefault.Foreground(tcell.ColorRed).Bold(true)
	}

	y := 0
	c.text(0, y, bold, "combat soundtrack  session "+info.Session.SessionID)
	y += 2
	c.text(0, y, tcell.StyleDefault, "state    ")
	c.text(9, y, stateStyle(st.State), st.State.String())
	y++
	c.text(0, y, tcell.StyleDefault, "threat   ")
	c.text(9, y, threatStyle, threat)
	y++
	c.text(0, y, tcell.StyleDefault, fmt.Sprintf("bucket   %d/%d  enter=%s exit=%s", st.Bucket, st.Threshold, pending(st.EnterPending), pending(st.ExitPending)))
	y++
	c.text(0, y, tcell.StyleDefault, fmt.Sprintf("track    %s (%s, volume %.2f)", orNone(st.CurrentTrack), st.PlaybackState, st.Volume))
	y++
	c.text(0, y, tcell.StyleDefault, fmt.Sprintf("cursors  game=%d battle=%d  ticks=%d", st.GameIndex, st.BattleIndex, info.Session.Ticks))
	y += 2

	for _, line := range keyHelp {
		c.text(0, y, dim, line)
		y++
	}
	y++
	for _, line := range c.log {
		c.text(0, y, tcell.StyleDefault, line)
		y++
	}

	c.screen.Show()
}

func (c *console) text(x, y int, style tcell.Style, s string) {
	for _, r := range s {
		c.screen.SetContent(x, y, r, nil, style)
		x++
	}
}

func stateStyle(s music.State) tcell.Style {
	switch s {
	case music.StateBattle:
		return tcell.StyleDefault.Foreground(tcell.ColorRed).Bold(true)
	case music.StateGame:
		return tcell.StyleDefault.Foreground(tcell.ColorGreen)
	case music.StateMenu:
		return tcell.StyleDefault.Foreground(tcell.ColorBlue)
	default:
		return tcell.StyleDefault.Foreground(tcell.ColorGray)
	}
}

func pending(b bool) string {
	if b {
		return "armed"
	}
	return "-"
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}

func formatEvent(n *notification.Notification) string {
	return fmt.Sprintf("%s %-21s %s", n.Event.At.Format("15:04:05.000"), n.Event.Type, eventDetail(n.Event))
}
