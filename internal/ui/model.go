// Package ui is the terminal front end of the player
package ui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/audiolibrelab/singalong/internal/api"
	"github.com/audiolibrelab/singalong/internal/keymap"
	"github.com/audiolibrelab/singalong/internal/player"
)

const (
	SeekStep     = 5.0
	MixStep      = 10
	tickInterval = 50 * time.Millisecond
)

// Controller is the part of the engine the UI drives
type Controller interface {
	Activate(ctx context.Context) error
	WaitLoaded(ctx context.Context) error
	Toggle(ctx context.Context) error
	Seek(target float64)
	SetVocalMix(percent int)
	SetSemitones(s int)
	Snapshot() player.PlaybackState
}

type tickMsg struct{}

// toggledMsg refreshes the screen after play/pause without touching the tick chain
type toggledMsg struct{}

type activatedMsg struct {
	err     error
	pending tea.KeyMsg
}

type errMsg struct{ err error }

// Model is the bubbletea model of the player screen
type Model struct {
	ctx   context.Context
	ctl   Controller
	track api.Track

	activating bool
	activated  bool
	state      player.PlaybackState
	lastErr    error
	width      int
}

// New creates the player model. Audio stays off until the first key press.
func New(ctx context.Context, ctl Controller, track api.Track) Model {
	return Model{ctx: ctx, ctl: ctl, track: track, state: ctl.Snapshot(), width: 80}
}

func (m Model) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(time.Time) tea.Msg { return tickMsg{} })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		}
		if !m.activated {
			if m.activating {
				return m, nil
			}
			m.activating = true
			return m, m.activate(msg)
		}
		return m.handleKey(msg)

	case activatedMsg:
		m.activating = false
		m.activated = true
		m.state = m.ctl.Snapshot()
		if msg.err != nil {
			m.lastErr = msg.err
			return m, nil
		}
		return m.handleKey(msg.pending)

	case errMsg:
		m.lastErr = msg.err
		return m, nil

	case tickMsg:
		m.state = m.ctl.Snapshot()
		return m, tick()

	case toggledMsg:
		m.state = m.ctl.Snapshot()
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
	}
	return m, nil
}

// activate runs the gesture-gated activation off the UI goroutine and
// replays the key that triggered it
func (m Model) activate(key tea.KeyMsg) tea.Cmd {
	ctx, ctl := m.ctx, m.ctl
	return func() tea.Msg {
		return activatedMsg{err: ctl.Activate(ctx), pending: key}
	}
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	s := m.ctl.Snapshot()
	switch msg.String() {
	case " ":
		ctx, ctl := m.ctx, m.ctl
		return m, func() tea.Msg {
			if err := ctl.Toggle(ctx); err != nil {
				return errMsg{err}
			}
			return toggledMsg{}
		}
	case "left":
		m.ctl.Seek(s.Elapsed - SeekStep)
	case "right":
		m.ctl.Seek(s.Elapsed + SeekStep)
	case "home":
		m.ctl.Seek(0)
	case "up":
		m.ctl.SetVocalMix(s.Mix.VocalPercent + MixStep)
	case "down":
		m.ctl.SetVocalMix(s.Mix.VocalPercent - MixStep)
	case "+", "=":
		m.ctl.SetSemitones(keymap.ClampSemitones(s.Semitones + 1))
	case "-", "_":
		m.ctl.SetSemitones(keymap.ClampSemitones(s.Semitones - 1))
	}
	m.state = m.ctl.Snapshot()
	return m, nil
}

func (m Model) View() string {
	return Render(m.track, m.state, m.width, !m.activated, m.lastErr)
}

// Run shows the player until the user quits
func Run(ctx context.Context, ctl Controller, track api.Track) error {
	p := tea.NewProgram(New(ctx, ctl, track), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
