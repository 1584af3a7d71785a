package viz

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/bmiview/internal/mesh"
	"github.com/san-kum/bmiview/internal/session"
)

const (
	canvasWidth     = 48
	canvasHeight    = 18
	historyCapacity = 600
	tickRate        = time.Second / 30
)

var (
	canvasStyle = lipgloss.NewStyle().Padding(1, 2)
	statsStyle  = lipgloss.NewStyle().Border(lipgloss.NormalBorder(), false, false, false, true).BorderForeground(lipgloss.Color("240")).Padding(1, 2).Width(50)
	graphStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("49")).Padding(1, 0)
)

type tickMsg time.Time

// LiveModel advances a session one step per frame and shows how the tracked
// variable evolves.
type LiveModel struct {
	ctx     context.Context
	session *session.Session
	label   string

	start, now  float64
	until, step float64
	timeUnits   string

	canvas  *Canvas
	means   []float64
	metrics map[string]float64

	running bool
	done    bool
	err     error
}

// NewLiveModel prepares a live view that advances s to until in increments
// of step, drawing m as the mesh preview. A non-positive step uses the
// model's own time step.
func NewLiveModel(ctx context.Context, s *session.Session, m *mesh.TriMesh, label string, until, step float64) (*LiveModel, error) {
	model := s.Model()
	now, err := model.GetCurrentTime()
	if err != nil {
		return nil, err
	}
	if step <= 0 {
		if step, err = model.GetTimeStep(); err != nil {
			return nil, err
		}
		if step <= 0 {
			return nil, session.ErrInvalidStep
		}
	}
	units, _ := model.GetTimeUnits()

	canvas := NewCanvas(canvasWidth, canvasHeight)
	if m != nil {
		DrawMesh(canvas, m)
	}

	return &LiveModel{
		ctx:       ctx,
		session:   s,
		label:     label,
		start:     now,
		now:       now,
		until:     until,
		step:      step,
		timeUnits: units,
		canvas:    canvas,
		means:     make([]float64, 0, historyCapacity),
		metrics:   s.Metrics(),
		running:   true,
		done:      now >= until,
	}, nil
}

func tick() tea.Cmd {
	return tea.Tick(tickRate, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m *LiveModel) Init() tea.Cmd {
	return tick()
}

func (m *LiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case " ":
			m.running = !m.running
		}
	case tickMsg:
		if m.running && !m.done {
			m.advance()
		}
		return m, tick()
	}
	return m, nil
}

// advance moves the session forward by one step.
func (m *LiveModel) advance() {
	next := min(m.now+m.step, m.until)
	err := m.session.Advance(m.ctx, next, m.step, func(t float64, _ []float64) error {
		m.now = t
		return nil
	})
	if err != nil {
		m.err = err
		m.done = true
		return
	}

	m.metrics = m.session.Metrics()
	m.means = append(m.means, m.metrics["mean"])
	if len(m.means) > historyCapacity {
		m.means = m.means[1:]
	}
	if m.now >= m.until {
		m.done = true
	}
}

// Err is the error that stopped the run, if any.
func (m *LiveModel) Err() error { return m.err }

// Time is the model time the view has reached.
func (m *LiveModel) Time() float64 { return m.now }

// Done reports whether the run reached its end time or failed.
func (m *LiveModel) Done() bool { return m.done }

func (m *LiveModel) progress() float64 {
	if m.until <= m.start {
		return 1
	}
	return (m.now - m.start) / (m.until - m.start)
}

func (m *LiveModel) View() string {
	var s strings.Builder
	s.WriteString(HeaderStyle.Render(m.label) + "\n")

	switch {
	case m.err != nil:
		s.WriteString(StatusFailed.Render("FAILED") + "\n" + Subtle.Render(m.err.Error()) + "\n\n")
	case m.done:
		s.WriteString(StatusRunning.Render("DONE") + "\n\n")
	case !m.running:
		s.WriteString(StatusPaused.Render("PAUSED") + "\n\n")
	default:
		s.WriteString(StatusRunning.Render("RUNNING") + "\n\n")
	}

	s.WriteString(MetricLabel.Render("time") + MetricValue.Render(fmt.Sprintf("%g / %g %s", m.now, m.until, m.timeUnits)) + "\n")
	s.WriteString(ProgressBar(m.progress(), 30) + fmt.Sprintf(" %3.0f%%", 100*m.progress()) + "\n")

	if len(m.means) > 1 {
		chart := asciigraph.Plot(m.means, asciigraph.Height(5), asciigraph.Width(30), asciigraph.Caption("mean"))
		s.WriteString(graphStyle.Render(chart) + "\n")
		s.WriteString(Sparkline(m.means, 30) + "\n\n")
	}

	names := make([]string, 0, len(m.metrics))
	for k := range m.metrics {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		s.WriteString(MetricLabel.Render(k) + MetricValue.Render(fmt.Sprintf("%.4g", m.metrics[k])) + "\n")
	}

	s.WriteString("\n" + KeyHint.Render("SPACE: pause  Q: quit"))

	canvasView := canvasStyle.Render(m.canvas.String())
	return lipgloss.JoinHorizontal(lipgloss.Top, canvasView, statsStyle.Render(s.String()))
}

// RunLive runs the live view until the user quits and returns the error
// that stopped the run, if any.
func RunLive(lm *LiveModel) error {
	if _, err := tea.NewProgram(lm, tea.WithAltScreen()).Run(); err != nil {
		return err
	}
	return lm.Err()
}
