package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/fiply/internal/tasks"
)

const (
	progressBuffer = 64
	recentLines    = 5
	maxBarWidth    = 60
)

// Job is the long-running operation the view reports on. It must return once ctx is cancelled and
// must not block sending progress.
type Job func(ctx context.Context, progress chan<- tasks.ProgressUpdate) error

// Model is the progress view: a spinner while the phase has no known length and a bar while it
// does, followed by the most recent messages.
type Model struct {
	ctx       context.Context
	cancel    context.CancelFunc
	title     string
	job       Job
	updates   chan tasks.ProgressUpdate
	finished  chan struct{}
	jobErr    error
	current   tasks.ProgressUpdate
	recent    []string
	spinner   spinner.Model
	bar       progress.Model
	help      help.Model
	keys      keyMap
	started   bool
	done      bool
	cancelled bool
	err       error
}

// NewModel creates a progress view for job. cancel is called when the user asks to stop.
func NewModel(ctx context.Context, cancel context.CancelFunc, title string, job Job) *Model {
	return &Model{
		ctx:     ctx,
		cancel:  cancel,
		title:   title,
		job:     job,
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(styles.title.UnsetMarginBottom())),
		bar:     progress.New(progress.WithGradient("#E2007A", "#FFA500"), progress.WithWidth(40)),
		help:    help.New(),
		keys:    newKeyMap(),
	}
}

// Init starts the job and the spinner.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.start())
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.bar.Width = min(msg.Width-4, maxBarWidth)
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.force):
			m.cancel()
			return m, tea.Quit
		case key.Matches(msg, m.keys.quit):
			if !m.cancelled {
				m.cancelled = true
				m.cancel()
			}
		}
		return m, nil

	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case Msg:
		switch msg.kind {
		case MsgProgressUpdate:
			m.record(msg.update())
			return m, m.waitForProgress()
		case MsgJobDone:
			m.done = true
			m.err = msg.err()
			return m, tea.Quit
		}
	}

	return m, nil
}

func (m *Model) record(u tasks.ProgressUpdate) {
	if u.Phase != m.current.Phase {
		m.recent = nil
	}
	m.current = u
	if u.Message == "" {
		return
	}
	m.recent = append(m.recent, u.Message)
	if len(m.recent) > recentLines {
		m.recent = m.recent[len(m.recent)-recentLines:]
	}
}

// Err returns the job's error once the view has finished.
func (m *Model) Err() error {
	return m.err
}

// View renders the current phase.
func (m *Model) View() string {
	var b strings.Builder
	b.WriteString(styles.title.Render(m.title))
	b.WriteString("\n")

	if m.done {
		if m.err != nil {
			b.WriteString(styles.err.Render(fmt.Sprintf("✗ %v", m.err)))
		} else {
			b.WriteString(styles.ok.Render("✓ Done"))
		}
		b.WriteString("\n")
		return b.String()
	}

	label := phaseLabel(m.current.Phase)
	if m.current.Total > 0 && m.current.Phase == tasks.ResolveTracks {
		b.WriteString(fmt.Sprintf("%s (%d/%d)\n", label, m.current.Step, m.current.Total))
		b.WriteString(m.bar.ViewAs(m.fraction()))
	} else {
		b.WriteString(fmt.Sprintf("%s %s", m.spinner.View(), label))
	}
	b.WriteString("\n\n")

	for _, line := range m.recent {
		if strings.Contains(line, "✗") {
			line = styles.warn.Render(line)
		}
		b.WriteString(line + "\n")
	}

	if m.cancelled {
		b.WriteString(styles.warn.Render("\nCancelling, waiting for the current request...") + "\n")
	}
	b.WriteString("\n" + styles.help.Render(m.help.View(m.keys)))
	return b.String()
}

func (m *Model) fraction() float64 {
	if m.current.Total <= 0 {
		return 0
	}
	return float64(m.current.Step) / float64(m.current.Total)
}

func phaseLabel(p tasks.Phase) string {
	switch p {
	case tasks.FetchHistory:
		return "Walking play history"
	case tasks.RankTracks:
		return "Ranking titles"
	case tasks.CheckPlaylists:
		return "Checking playlists"
	case tasks.ResolveTracks:
		return "Resolving tracks"
	case tasks.PublishPlaylist:
		return "Publishing playlists"
	default:
		return "Working"
	}
}

func (m *Model) start() tea.Cmd {
	if m.started {
		return nil
	}
	m.started = true
	m.updates = make(chan tasks.ProgressUpdate, progressBuffer)
	m.finished = make(chan struct{})

	go func() {
		defer close(m.finished)
		m.jobErr = m.job(m.ctx, m.updates)
		close(m.updates)
	}()

	return m.waitForProgress()
}

func (m *Model) waitForProgress() tea.Cmd {
	updates := m.updates
	return func() tea.Msg {
		update, ok := <-updates
		if !ok {
			return jobDoneMsg(m.jobErr)
		}
		return progressUpdateMsg(update)
	}
}

// result returns the job's error. When the view closed before the job reported back, the job is
// cancelled and awaited so nothing it writes is read concurrently by the caller.
func (m *Model) result() error {
	if m.done {
		return m.err
	}
	m.cancel()
	if m.finished != nil {
		<-m.finished
	}
	return context.Canceled
}

// Run shows the progress view while job runs and returns the job's error.
//
// Quitting the view cancels the job's context; Run returns only after the job has returned.
func Run(ctx context.Context, title string, job Job, opts ...tea.ProgramOption) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := NewModel(ctx, cancel, title, job)
	_, err := tea.NewProgram(m, opts...).Run()
	if err != nil {
		m.result()
		return fmt.Errorf("progress view failed: %w", err)
	}
	return m.result()
}
