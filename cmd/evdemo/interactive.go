package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/wippyai/callbridge"
	"github.com/wippyai/callbridge/config"
	"github.com/wippyai/callbridge/event"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	kindStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	offStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	logStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#87CEEB"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type modelState int

const (
	stateSelectKind modelState = iota
	stateEditPaths
)

type interactiveModel struct {
	err      error
	demo     *demo
	cfg      *config.Config
	log      viewport.Model
	paths    textinput.Model
	kinds    []event.Kind
	window   callbridge.Handle
	selected int
	state    modelState
	veto     bool
}

type loadedMsg struct {
	err  error
	demo *demo
}

func newInteractiveModel(cfg *config.Config, h callbridge.Handle, veto bool) *interactiveModel {
	paths := textinput.New()
	paths.Prompt = "paths: "
	paths.Placeholder = "/tmp/a.txt,/tmp/b.png"
	paths.Width = 50

	return &interactiveModel{
		cfg:    cfg,
		kinds:  event.Kinds(),
		log:    viewport.New(72, 12),
		paths:  paths,
		window: h,
		veto:   veto,
	}
}

func (m *interactiveModel) Init() tea.Cmd {
	return m.load
}

func (m *interactiveModel) load() tea.Msg {
	d, err := newDemo(context.Background(), m.cfg, zap.NewNop(), m.window)
	if err != nil {
		return loadedMsg{err: err}
	}
	d.veto = m.veto
	return loadedMsg{demo: d}
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case loadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.demo = msg.demo
		m.refresh()
		return m, nil

	case tea.WindowSizeMsg:
		m.log.Width = max(msg.Width-4, 20)
		m.log.Height = max(msg.Height-len(m.kinds)-10, 5)
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		if m.state == stateEditPaths {
			return m.updatePaths(msg)
		}
		return m.updateSelect(msg)
	}

	var cmd tea.Cmd
	m.log, cmd = m.log.Update(msg)
	return m, cmd
}

func (m *interactiveModel) updateSelect(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	ctx := context.Background()
	switch msg.String() {
	case "ctrl+c", "q":
		if m.demo != nil {
			_ = m.demo.close(ctx)
		}
		return m, tea.Quit

	case "up", "k":
		if m.selected > 0 {
			m.selected--
		}

	case "down", "j":
		if m.selected < len(m.kinds)-1 {
			m.selected++
		}

	case " ":
		if m.demo != nil {
			m.err = m.demo.toggle(ctx, m.kinds[m.selected])
		}

	case "a":
		if m.demo != nil {
			m.err = m.demo.subscribeAll(ctx)
		}

	case "v":
		m.veto = !m.veto
		if m.demo != nil {
			m.demo.veto = m.veto
		}

	case "enter":
		if m.demo == nil {
			break
		}
		kind := m.kinds[m.selected]
		if kind == event.KindDrop {
			m.state = stateEditPaths
			m.paths.SetValue("")
			return m, m.paths.Focus()
		}
		m.err = m.demo.fire(ctx, kind)

	default:
		var cmd tea.Cmd
		m.log, cmd = m.log.Update(msg)
		return m, cmd
	}

	m.refresh()
	return m, nil
}

func (m *interactiveModel) updatePaths(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.paths.Blur()
		m.state = stateSelectKind
		return m, nil

	case "enter":
		m.paths.Blur()
		m.state = stateSelectKind
		var paths []string
		for _, p := range strings.Split(m.paths.Value(), ",") {
			if p = strings.TrimSpace(p); p != "" {
				paths = append(paths, p)
			}
		}
		m.err = m.demo.lib.EmitDrop(context.Background(), m.window, paths)
		m.refresh()
		return m, nil
	}

	var cmd tea.Cmd
	m.paths, cmd = m.paths.Update(msg)
	return m, cmd
}

func (m *interactiveModel) refresh() {
	if m.demo == nil {
		return
	}
	m.log.SetContent(strings.Join(m.demo.log, "\n"))
	m.log.GotoBottom()
}

func (m *interactiveModel) View() string {
	if m.demo == nil {
		if m.err != nil {
			return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err))
		}
		return "Loading guest..."
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("Event Bridge"))
	b.WriteString(fmt.Sprintf(" window %s  veto %t\n\n", m.window, m.veto))

	for i, kind := range m.kinds {
		mark := "[ ]"
		if m.demo.subscribed(kind) {
			mark = "[x]"
		}
		line := fmt.Sprintf("%s %-20s %s", mark, kind, m.demo.bridge.State(m.demo.handleFor(kind), kind))
		switch {
		case i == m.selected:
			b.WriteString(selectedStyle.Render("> " + line))
		case m.demo.subscribed(kind):
			b.WriteString("  " + kindStyle.Render(line))
		default:
			b.WriteString("  " + offStyle.Render(line))
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")

	if m.state == stateEditPaths {
		b.WriteString(m.paths.View())
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("enter drop • esc back"))
		b.WriteString("\n")
	}

	b.WriteString(logStyle.Render(m.log.View()))
	b.WriteString("\n")
	if m.err != nil {
		b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		b.WriteString("\n")
	}
	b.WriteString(helpStyle.Render("↑/↓ select • enter fire • space toggle • a subscribe all • v veto • q quit"))

	return b.String()
}

func runInteractive(cfg *config.Config, h callbridge.Handle, veto bool) error {
	p := tea.NewProgram(newInteractiveModel(cfg, h, veto), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
