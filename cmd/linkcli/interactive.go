package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/wasmlink/wasmlink/protocol"
	"github.com/wasmlink/wasmlink/runtime"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#5F5FD7")).
			Padding(0, 1)

	funcStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	typeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#5F5FD7"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

func newInteractiveCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "interactive <wasm-file>",
		Short: "Pick and call declared exports in a TUI",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := tea.NewProgram(newInteractiveModel(*cfgPath, args[0]), tea.WithAltScreen())
			_, err := p.Run()
			return err
		},
	}
}

type modelState int

const (
	stateSelectFunc modelState = iota
	stateInputArgs
	stateShowResult
)

type interactiveModel struct {
	err      error
	cfgPath  string
	wasmFile string

	session  *session
	instance *runtime.Instance
	funcs    protocol.FunctionList

	inputs   []textinput.Model
	selected int
	focusIdx int
	result   string
	state    modelState
}

func newInteractiveModel(cfgPath, wasmFile string) *interactiveModel {
	return &interactiveModel{
		cfgPath:  cfgPath,
		wasmFile: wasmFile,
		state:    stateSelectFunc,
	}
}

type loadedMsg struct {
	err      error
	session  *session
	instance *runtime.Instance
}

type callResultMsg struct {
	err    error
	result string
}

func (m *interactiveModel) Init() tea.Cmd {
	return m.loadGuest
}

func (m *interactiveModel) loadGuest() tea.Msg {
	ctx := context.Background()

	s, err := openSession(ctx, m.cfgPath)
	if err != nil {
		return loadedMsg{err: err}
	}

	data, err := os.ReadFile(m.wasmFile)
	if err != nil {
		s.close(ctx)
		return loadedMsg{err: err}
	}
	mod, err := s.rt.Load(ctx, data)
	if err != nil {
		s.close(ctx)
		return loadedMsg{err: err}
	}
	inst, err := mod.Instantiate(ctx)
	if err != nil {
		s.close(ctx)
		return loadedMsg{err: err}
	}

	return loadedMsg{session: s, instance: inst}
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			ctx := context.Background()
			if m.instance != nil {
				m.instance.Close(ctx)
			}
			if m.session != nil {
				m.session.close(ctx)
			}
			return m, tea.Quit

		case "up", "k":
			if m.state == stateSelectFunc && m.selected > 0 {
				m.selected--
			}

		case "down", "j":
			if m.state == stateSelectFunc && m.selected < len(m.funcs)-1 {
				m.selected++
			}

		case "enter":
			switch m.state {
			case stateSelectFunc:
				m.prepareInputs()
				if len(m.inputs) == 0 {
					return m, m.callFunction
				}
				m.state = stateInputArgs

			case stateInputArgs:
				return m, m.callFunction

			case stateShowResult:
				m.state = stateSelectFunc
				m.result = ""
				m.err = nil
			}

		case "tab":
			if m.state == stateInputArgs && len(m.inputs) > 1 {
				m.inputs[m.focusIdx].Blur()
				m.focusIdx = (m.focusIdx + 1) % len(m.inputs)
				m.inputs[m.focusIdx].Focus()
			}

		case "esc":
			switch m.state {
			case stateInputArgs:
				m.state = stateSelectFunc
				m.inputs = nil
			case stateShowResult:
				m.state = stateSelectFunc
				m.result = ""
				m.err = nil
			}
		}

	case loadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.session = msg.session
		m.instance = msg.instance
		m.funcs = m.session.rt.Protocol().Exports()

	case callResultMsg:
		m.result = msg.result
		m.err = msg.err
		m.state = stateShowResult
	}

	if m.state == stateInputArgs {
		var cmds []tea.Cmd
		for i := range m.inputs {
			var cmd tea.Cmd
			m.inputs[i], cmd = m.inputs[i].Update(msg)
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)
	}

	return m, nil
}

func (m *interactiveModel) prepareInputs() {
	fn := m.funcs[m.selected]
	m.inputs = make([]textinput.Model, len(fn.Args))
	for i, arg := range fn.Args {
		ti := textinput.New()
		ti.Placeholder = arg.Type.String()
		ti.Prompt = arg.Name + ": "
		ti.Width = 40
		if i == 0 {
			ti.Focus()
		}
		m.inputs[i] = ti
	}
	m.focusIdx = 0
}

func (m *interactiveModel) callFunction() tea.Msg {
	ctx := context.Background()

	fn := m.funcs[m.selected]
	tm := m.session.rt.Protocol().Types()
	args := make([]any, len(m.inputs))
	for i, input := range m.inputs {
		v, err := parseArg(input.Value(), fn.Args[i].Type, tm)
		if err != nil {
			return callResultMsg{err: err}
		}
		args[i] = v
	}

	result, err := m.instance.Call(ctx, fn.Name, args...)
	if err != nil {
		return callResultMsg{err: err}
	}
	if fn.Ret == nil {
		return callResultMsg{result: "ok"}
	}
	return callResultMsg{result: fmt.Sprintf("%v", result)}
}

func (m *interactiveModel) View() string {
	if m.err != nil && m.state != stateShowResult {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err))
	}

	if m.session == nil {
		return "Loading guest..."
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("wasmlink"))
	b.WriteString(" ")
	b.WriteString(m.wasmFile)
	b.WriteString("\n\n")

	switch m.state {
	case stateSelectFunc:
		if len(m.funcs) == 0 {
			b.WriteString("The protocol declares no exports.\n\n")
			b.WriteString(helpStyle.Render("q quit"))
			break
		}
		b.WriteString("Select a function to call:\n\n")
		for i, fn := range m.funcs {
			line := m.styledFunc(fn)
			if i == m.selected {
				b.WriteString(selectedStyle.Render("> " + line))
			} else {
				b.WriteString("  " + line)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter call • q quit"))

	case stateInputArgs:
		fn := m.funcs[m.selected]
		b.WriteString(fmt.Sprintf("Calling %s\n\n", funcStyle.Render(fn.Name)))
		for i, input := range m.inputs {
			b.WriteString(input.View())
			b.WriteString(" ")
			b.WriteString(typeStyle.Render(fn.Args[i].Type.String()))
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("tab next field • enter call • esc back"))

	case stateShowResult:
		fn := m.funcs[m.selected]
		b.WriteString(fmt.Sprintf("Result of %s:\n\n", funcStyle.Render(fn.Name)))
		if m.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		} else {
			b.WriteString(resultStyle.Render(m.result))
		}
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter continue • q quit"))
	}

	return b.String()
}

func (m *interactiveModel) styledFunc(fn protocol.Function) string {
	var params []string
	for _, arg := range fn.Args {
		params = append(params, arg.Name+": "+typeStyle.Render(arg.Type.String()))
	}
	ret := ""
	if fn.Ret != nil {
		ret = " -> " + typeStyle.Render(fn.Ret.String())
	}
	if fn.IsAsync {
		ret += helpStyle.Render(" [async]")
	}
	return funcStyle.Render(fn.Name) + "(" + strings.Join(params, ", ") + ")" + ret
}
