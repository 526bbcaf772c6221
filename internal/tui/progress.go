package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

type queueSizeMsg int

type progressDoneMsg struct {
	err error
}

type progressModel struct {
	label   string
	spinner spinner.Model
	queued  int
	run     func() error
	done    bool
	err     error
}

func (m *progressModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, func() tea.Msg {
		return progressDoneMsg{err: m.run()}
	})
}

func (m *progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	case queueSizeMsg:
		m.queued = int(msg)
	case progressDoneMsg:
		m.done = true
		m.err = msg.err
		return m, tea.Quit
	}

	var cmd tea.Cmd
	m.spinner, cmd = m.spinner.Update(msg)
	return m, cmd
}

func (m *progressModel) View() string {
	if m.done {
		if m.err != nil {
			return errorStyle.Render("✗ ") + m.label + ": " + m.err.Error() + "\n"
		}
		return successStyle.Render("✓ ") + m.label + "\n"
	}
	line := m.spinner.View() + " " + m.label + "..."
	if m.queued > 1 {
		line += dimStyle.Render(fmt.Sprintf(" (%d jobs queued)", m.queued))
	}
	return line + "\n"
}

// Progress shows a spinner while a job runs.
type Progress struct {
	model   *progressModel
	program *tea.Program
}

func NewProgress(label string) *Progress {
	s := spinner.New()
	s.Spinner = spinner.Dot
	m := &progressModel{label: label, spinner: s}
	return &Progress{model: m, program: tea.NewProgram(m)}
}

// QueueChanged updates the queued job count. It is safe to call from any
// goroutine.
func (p *Progress) QueueChanged(size int) {
	go p.program.Send(queueSizeMsg(size))
}

// Run executes fn while the spinner is shown and returns fn's error.
// Interrupting the view does not stop fn.
func (p *Progress) Run(fn func() error) error {
	p.model.run = fn
	if _, err := p.program.Run(); err != nil {
		return err
	}
	if !p.model.done {
		return fmt.Errorf("%s: interrupted", p.model.label)
	}
	return p.model.err
}
