// Package tui provides the Bubble Tea replay of a synthetic delivery.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/gwlsn/hawkeye/internal/playback"
	"github.com/gwlsn/hawkeye/internal/scene"
	"github.com/gwlsn/hawkeye/internal/trajectory"
)

// scrubStep is how far one arrow key moves the replay
const scrubStep = 0.05

const (
	defaultWidth  = 80
	defaultHeight = 24
	sceneHeight   = 14
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#F0F0F0"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A")).Bold(true)
	footerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
)

type phase int

const (
	phaseAnalyzing phase = iota
	phaseReplay
)

type progressMsg struct {
	done, total int
}

type analysisMsg struct {
	analysis *trajectory.Analysis
	err      error
}

type tickMsg struct{}

// Options configure the replay
type Options struct {
	Increment    float64
	Interval     time.Duration
	BounceHeight float64
}

// Model runs an analysis with a progress bar, then replays it.
type Model struct {
	name   string
	gen    *trajectory.Generator
	opts   Options
	ctx    context.Context
	cancel context.CancelFunc
	msgs   chan tea.Msg

	phase    phase
	bar      progress.Model
	done     int
	total    int
	analysis *trajectory.Analysis
	err      error

	player   *playback.Player
	viewport Viewport
	ticking  bool

	width  int
	height int
}

// NewModel constructs a model that analyzes name with gen. Quitting before
// the analysis finishes cancels it.
func NewModel(ctx context.Context, name string, gen *trajectory.Generator, opts Options) *Model {
	if opts.Interval <= 0 {
		opts.Interval = playback.DefaultInterval
	}
	ctx, cancel := context.WithCancel(ctx)
	return &Model{
		name:   name,
		gen:    gen,
		opts:   opts,
		ctx:    ctx,
		cancel: cancel,
		bar:    progress.New(progress.WithDefaultGradient()),
		total:  gen.Steps,
		width:  defaultWidth,
		height: defaultHeight,
	}
}

// Init implements tea.Model. It starts the generator.
func (m *Model) Init() tea.Cmd {
	// Buffered for every progress report plus the result, so the generator
	// never blocks once the program has quit
	m.msgs = make(chan tea.Msg, m.total+1)
	go func() {
		a, err := trajectory.Analyze(m.ctx, m.gen, func(done, total int) {
			m.msgs <- progressMsg{done: done, total: total}
		})
		m.msgs <- analysisMsg{analysis: a, err: err}
	}()
	return m.listen()
}

func (m *Model) listen() tea.Cmd {
	ch := m.msgs
	return func() tea.Msg {
		return <-ch
	}
}

func (m *Model) tick() tea.Cmd {
	return tea.Tick(m.opts.Interval, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.bar.Width = max(msg.Width-4, 10)
		return m, nil
	case progressMsg:
		m.done, m.total = msg.done, msg.total
		return m, m.listen()
	case analysisMsg:
		return m.finishAnalysis(msg)
	case tickMsg:
		return m.onTick()
	case tea.KeyMsg:
		return m.onKey(msg)
	default:
		return m, nil
	}
}

func (m *Model) finishAnalysis(msg analysisMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.err = msg.err
		return m, tea.Quit
	}
	m.analysis = msg.analysis
	m.player = playback.NewPlayer(len(msg.analysis.Trajectory), m.opts.Increment)
	m.viewport = FitViewport(msg.analysis.Trajectory)
	m.phase = phaseReplay
	return m, nil
}

func (m *Model) onTick() (tea.Model, tea.Cmd) {
	if m.player == nil {
		m.ticking = false
		return m, nil
	}
	st := m.player.Tick()
	if !st.Playing {
		m.ticking = false
		return m, nil
	}
	return m, m.tick()
}

func (m *Model) onKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		m.cancel()
		if m.phase == phaseAnalyzing {
			m.err = context.Canceled
		}
		return m, tea.Quit
	}

	if m.phase != phaseReplay {
		return m, nil
	}

	switch msg.String() {
	case " ", "p":
		if m.player.State().Playing {
			m.player.Pause()
			return m, nil
		}
		return m, m.play()
	case "r":
		m.player.Reset()
	case "left", "h":
		m.player.Scrub(m.player.State().Progress - scrubStep)
	case "right", "l":
		m.player.Scrub(m.player.State().Progress + scrubStep)
	case "f":
		m.player.ToggleFullscreen()
	case "esc":
		if m.player.State().Fullscreen {
			m.player.ToggleFullscreen()
		}
	}
	return m, nil
}

// play starts the player and the tick loop if it is not already running
func (m *Model) play() tea.Cmd {
	m.player.Play()
	if m.ticking {
		return nil
	}
	m.ticking = true
	return m.tick()
}

// Result returns the finished analysis, or why there is none
func (m *Model) Result() (*trajectory.Analysis, error) {
	if m.analysis != nil {
		return m.analysis, nil
	}
	if m.err != nil {
		return nil, m.err
	}
	return nil, errors.New("analysis did not finish")
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.phase == phaseAnalyzing {
		return m.analyzingView()
	}
	return m.replayView()
}

func (m *Model) analyzingView() string {
	percent := 0.0
	if m.total > 0 {
		percent = float64(m.done) / float64(m.total)
	}
	lines := []string{
		titleStyle.Render("Analyzing " + m.name),
		"",
		m.bar.ViewAs(percent),
		labelStyle.Render(fmt.Sprintf("Frame %d/%d", m.done, m.total)),
		"",
		footerStyle.Render("q cancel"),
	}
	if m.err != nil {
		lines = append(lines, errorStyle.Render(m.err.Error()))
	}
	return strings.Join(lines, "\n")
}

func (m *Model) replayView() string {
	st := m.player.State()
	frame := scene.Render(m.analysis.Trajectory, st.Progress, scene.Options{BounceHeight: m.opts.BounceHeight})

	if st.Fullscreen {
		return renderGrid(Rasterize(frame, m.viewport, m.width, max(m.height, 2)))
	}

	width := min(m.width, defaultWidth)
	grid := renderGrid(Rasterize(frame, m.viewport, width, sceneHeight))

	parts := []string{
		titleStyle.Render("Hawk-Eye replay: " + m.name),
		m.statsLine(),
		"",
		grid,
		"",
		m.statusLine(st, frame),
		footerStyle.Render("space play/pause  r reset  ←/→ scrub  f fullscreen  q quit"),
	}
	return strings.Join(parts, "\n")
}

func (m *Model) statsLine() string {
	s := m.analysis.Stats
	field := func(label, value string) string {
		return labelStyle.Render(label+" ") + valueStyle.Render(value)
	}
	return strings.Join([]string{
		field("Max", fmt.Sprintf("%.1f km/h", s.MaxSpeed)),
		field("Avg", fmt.Sprintf("%.1f km/h", s.AvgSpeed)),
		field("Spin", fmt.Sprintf("%.0f rpm", s.MaxSpin)),
		field("Swing", s.SwingType),
		field("Release", fmt.Sprintf("%.1f m @ %.0f°", s.ReleaseHeight, s.ReleaseAngle)),
	}, "  ")
}

func (m *Model) statusLine(st playback.State, f scene.Frame) string {
	icon := "⏸"
	if st.Playing {
		icon = "▶"
	}
	line := fmt.Sprintf("%s %3.0f%%  frame %d/%d", icon, st.Progress*100, st.Index+1, len(m.analysis.Trajectory))
	if f.Bounce {
		line += "  " + errorStyle.Render("BOUNCE")
	}
	return line
}
