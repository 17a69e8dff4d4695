package cmd

import (
	"fmt"
	"strings"

	"github.com/DRCRecoveryData/MXF-Repair-Tool/pkg/batch"
	"github.com/DRCRecoveryData/MXF-Repair-Tool/pkg/splice"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

// Styles
var (
	focusedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	blurredStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42")) // Green
	logBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240"))
	docStyle     = lipgloss.NewStyle().Margin(1, 2)
)

const (
	fieldReference = iota
	fieldFolder
)

const helpText = "tab: switch field • enter: repair • esc: quit"

type keyMap struct {
	Next  key.Binding
	Start key.Binding
	Quit  key.Binding
}

var keys = keyMap{
	Next: key.NewBinding(
		key.WithKeys("tab", "shift+tab", "up", "down"),
		key.WithHelp("tab", "switch field"),
	),
	Start: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "repair"),
	),
	Quit: key.NewBinding(
		key.WithKeys("ctrl+c", "esc"),
		key.WithHelp("esc", "quit"),
	),
}

// batchEventMsg carries one event from the running batch.
type batchEventMsg batch.Event

// batchDoneMsg is sent once the event stream is closed.
type batchDoneMsg struct {
	report *batch.Report
	err    error
}

type model struct {
	inputs  []textinput.Model
	focus   int
	bar     progress.Model
	logView viewport.Model
	lines   []string
	percent float64

	status    string
	statusErr bool

	handle  *batch.Handle
	splicer *splice.Splicer
	pattern string

	quitting bool
}

func newModel(reference, folder string, s *splice.Splicer, pattern string) model {
	ref := textinput.New()
	ref.Prompt = "Reference file:   "
	ref.Placeholder = "/path/to/healthy.MXF"
	ref.SetValue(reference)

	dir := textinput.New()
	dir.Prompt = "Corrupted folder: "
	dir.Placeholder = "/path/to/Corrupted"
	dir.SetValue(folder)

	m := model{
		inputs:  []textinput.Model{ref, dir},
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithWidth(60)),
		logView: viewport.New(72, 10),
		splicer: s,
		pattern: pattern,
		status:  "Select a reference file and the folder holding the corrupted files.",
	}
	m.updateFocus()
	return m
}

func (m model) Init() tea.Cmd {
	return textinput.Blink
}

// busy reports whether a batch worker is still in flight.
func (m model) busy() bool {
	return m.handle != nil && m.handle.Running()
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		w := msg.Width - docStyle.GetHorizontalFrameSize()
		m.bar.Width = min(w, 80)
		m.logView.Width = max(w-logBoxStyle.GetHorizontalFrameSize(), 10)
		m.logView.Height = max(msg.Height-16, 3)
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			if m.busy() {
				m.setStatus("Cannot quit while the repair is running.", true)
				return m, nil
			}
			m.quitting = true
			return m, tea.Quit

		case key.Matches(msg, keys.Next):
			if m.handle == nil {
				m.focus = (m.focus + 1) % len(m.inputs)
				return m, m.updateFocus()
			}
			return m, nil

		case key.Matches(msg, keys.Start):
			return m.start()
		}

	case batchEventMsg:
		m.apply(batch.Event(msg))
		return m, waitForEvent(m.handle)

	case batchDoneMsg:
		m.handle = nil
		switch {
		case msg.err != nil:
			m.statusErr = true
		case msg.report != nil && !msg.report.OK():
			m.statusErr = true
		}
		return m, nil
	}

	// Inputs are locked while a batch runs.
	if m.handle != nil {
		return m, nil
	}
	return m, m.updateInputs(msg)
}

// start validates the inputs and launches the batch worker.
func (m model) start() (tea.Model, tea.Cmd) {
	if m.handle != nil {
		m.setStatus("A repair is already running.", true)
		return m, nil
	}

	reference := strings.TrimSpace(m.inputs[fieldReference].Value())
	folder := strings.TrimSpace(m.inputs[fieldFolder].Value())

	if err := batch.CheckReference(reference); err != nil {
		m.setStatus(fmt.Sprintf("Error: %v", err), true)
		return m, nil
	}
	files, err := batch.Discover(folder, m.pattern)
	if err != nil {
		m.setStatus(fmt.Sprintf("Error: %v", err), true)
		return m, nil
	}
	if len(files) == 0 {
		m.setStatus(fmt.Sprintf("No files matching %s found in %s.", m.pattern, folder), true)
		return m, nil
	}

	h, err := batch.Start(batch.Config{
		Reference: reference,
		Files:     files,
		OutputDir: batch.OutputDirFor(folder),
		Splicer:   m.splicer,
	})
	if err != nil {
		m.setStatus(fmt.Sprintf("Error: %v", err), true)
		return m, nil
	}

	m.handle = h
	m.lines = nil
	m.percent = 0
	m.logView.SetContent("")
	m.setStatus(fmt.Sprintf("Repairing %d files...", len(files)), false)
	return m, waitForEvent(h)
}

func (m *model) apply(ev batch.Event) {
	switch ev.Kind {
	case batch.EventProgress:
		m.percent = float64(ev.Percent) / 100
	case batch.EventLog:
		m.lines = append(m.lines, ev.Text)
		m.logView.SetContent(strings.Join(m.lines, "\n"))
		m.logView.GotoBottom()
	case batch.EventComplete:
		m.setStatus(ev.Text, false)
	}
}

func (m *model) setStatus(s string, isErr bool) {
	m.status = s
	m.statusErr = isErr
}

func (m *model) updateFocus() tea.Cmd {
	cmds := make([]tea.Cmd, len(m.inputs))
	for i := range m.inputs {
		if i == m.focus {
			cmds[i] = m.inputs[i].Focus()
			m.inputs[i].PromptStyle = focusedStyle
			m.inputs[i].TextStyle = focusedStyle
			continue
		}
		m.inputs[i].Blur()
		m.inputs[i].PromptStyle = blurredStyle
		m.inputs[i].TextStyle = lipgloss.NewStyle()
	}
	return tea.Batch(cmds...)
}

func (m *model) updateInputs(msg tea.Msg) tea.Cmd {
	cmds := make([]tea.Cmd, len(m.inputs))
	for i := range m.inputs {
		m.inputs[i], cmds[i] = m.inputs[i].Update(msg)
	}
	return tea.Batch(cmds...)
}

// waitForEvent reads the next event off the worker's stream.
func waitForEvent(h *batch.Handle) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-h.Events()
		if !ok {
			report, err := h.Wait()
			return batchDoneMsg{report: report, err: err}
		}
		return batchEventMsg(ev)
	}
}

func (m model) View() string {
	if m.quitting {
		return "Bye!\n"
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("MXF Repair Tool") + "\n\n")

	for _, in := range m.inputs {
		b.WriteString(in.View() + "\n")
	}

	b.WriteString("\n" + m.bar.ViewAs(m.percent) + "\n\n")
	b.WriteString(logBoxStyle.Render(m.logView.View()) + "\n\n")

	status := m.status
	switch {
	case m.statusErr:
		status = errorStyle.Render(status)
	case m.handle == nil && m.status == batch.DoneMessage:
		status = successStyle.Render(status)
	}
	b.WriteString(status + "\n")
	b.WriteString(blurredStyle.Render(helpText))

	return docStyle.Render(b.String())
}

var interactiveFolder string

// Cobra command setup
var interactiveCmd = &cobra.Command{
	Use:   "interactive",
	Short: "Interactive terminal UI for repairing a folder of MXF files",
	RunE: func(cmd *cobra.Command, args []string) error {
		splicer, err := newSplicer()
		if err != nil {
			return err
		}

		p := tea.NewProgram(newModel(referencePath, interactiveFolder, splicer, pattern))
		if _, err := p.Run(); err != nil {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(interactiveCmd)

	interactiveCmd.Flags().StringVarP(&referencePath, "reference", "r", "", "Prefill the reference file")
	interactiveCmd.Flags().StringVarP(&interactiveFolder, "folder", "f", "", "Prefill the corrupted folder")
	addSpliceFlags(interactiveCmd)
}
