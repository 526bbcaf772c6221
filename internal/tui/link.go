package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// LinkSubmitFunc verifies credentials and returns a display name for the
// linked account.
type LinkSubmitFunc func(apiKey, employeeID string) (string, error)

// LinkResult is the outcome of the link form.
type LinkResult struct {
	Cancelled bool
	Name      string
}

type linkField int

const (
	linkAPIKey linkField = iota
	linkEmployeeID
)

type linkState int

const (
	linkEditing linkState = iota
	linkVerifying
	linkDone
)

type linkVerifiedMsg struct {
	name string
	err  error
}

// LinkForm asks for a BambooHR API key and employee id and verifies them
// before finishing.
type LinkForm struct {
	inputs  []textinput.Model
	focus   linkField
	state   linkState
	spinner spinner.Model
	submit  LinkSubmitFunc
	errMsg  string
	result  *LinkResult
}

func NewLinkForm(submit LinkSubmitFunc) *LinkForm {
	apiKey := textinput.New()
	apiKey.Placeholder = "API key"
	apiKey.EchoMode = textinput.EchoPassword
	apiKey.EchoCharacter = '•'
	apiKey.CharLimit = 200
	apiKey.Width = 50
	apiKey.Focus()

	employeeID := textinput.New()
	employeeID.Placeholder = "Employee ID"
	employeeID.CharLimit = 20
	employeeID.Width = 20

	s := spinner.New()
	s.Spinner = spinner.Dot

	return &LinkForm{
		inputs:  []textinput.Model{apiKey, employeeID},
		spinner: s,
		submit:  submit,
	}
}

func (f *LinkForm) Init() tea.Cmd {
	return textinput.Blink
}

func (f *LinkForm) Result() *LinkResult {
	return f.result
}

func (f *LinkForm) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || (msg.String() == "esc" && f.state != linkVerifying) {
			f.result = &LinkResult{Cancelled: true}
			return f, tea.Quit
		}
	case linkVerifiedMsg:
		if msg.err != nil {
			f.state = linkEditing
			f.errMsg = msg.err.Error()
			return f, f.inputs[f.focus].Focus()
		}
		f.state = linkDone
		f.result = &LinkResult{Name: msg.name}
		return f, tea.Quit
	}

	switch f.state {
	case linkVerifying:
		var cmd tea.Cmd
		f.spinner, cmd = f.spinner.Update(msg)
		return f, cmd
	case linkEditing:
		return f.updateEditing(msg)
	}
	return f, nil
}

func (f *LinkForm) updateEditing(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.String() {
		case "tab", "shift+tab", "up", "down":
			return f, f.setFocus((f.focus + 1) % 2)
		case "enter":
			if f.focus == linkAPIKey {
				return f, f.setFocus(linkEmployeeID)
			}
			apiKey := strings.TrimSpace(f.inputs[linkAPIKey].Value())
			employeeID := strings.TrimSpace(f.inputs[linkEmployeeID].Value())
			if apiKey == "" || employeeID == "" {
				f.errMsg = "Both the API key and the employee ID are required."
				return f, nil
			}
			f.errMsg = ""
			f.state = linkVerifying
			return f, tea.Batch(f.spinner.Tick, f.verify(apiKey, employeeID))
		}
	}

	var cmd tea.Cmd
	f.inputs[f.focus], cmd = f.inputs[f.focus].Update(msg)
	return f, cmd
}

func (f *LinkForm) setFocus(field linkField) tea.Cmd {
	f.inputs[f.focus].Blur()
	f.focus = field
	return f.inputs[f.focus].Focus()
}

func (f *LinkForm) verify(apiKey, employeeID string) tea.Cmd {
	return func() tea.Msg {
		name, err := f.submit(apiKey, employeeID)
		return linkVerifiedMsg{name: name, err: err}
	}
}

func (f *LinkForm) View() string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render("Link BambooHR"))
	sb.WriteString("\n")
	sb.WriteString(subtitleStyle.Render("Create an API key under your BambooHR profile > API Keys."))
	sb.WriteString("\n")

	labels := []string{"API key", "Employee ID"}
	for i, in := range f.inputs {
		label := labels[i]
		if linkField(i) == f.focus {
			label = highlightStyle.Render(label)
		}
		sb.WriteString(label + "\n" + in.View() + "\n\n")
	}

	switch {
	case f.state == linkVerifying:
		sb.WriteString(f.spinner.View() + " Verifying credentials...\n")
	case f.errMsg != "":
		sb.WriteString(errorStyle.Render("Error: ") + f.errMsg + "\n")
	}

	sb.WriteString(helpStyle.Render("Tab: next field • Enter: submit • Esc: cancel"))
	return boxStyle.Render(sb.String())
}

// RunLinkForm shows the form until the user submits valid credentials or
// cancels.
func RunLinkForm(submit LinkSubmitFunc) (*LinkResult, error) {
	form := NewLinkForm(submit)
	if _, err := tea.NewProgram(form).Run(); err != nil {
		return nil, err
	}
	if form.result == nil {
		return &LinkResult{Cancelled: true}, nil
	}
	return form.result, nil
}
