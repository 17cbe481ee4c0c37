// Package live provides the Bubble Tea front end that lets a person run
// reaction rounds from the keyboard.
package live

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/reflex/internal/model"
)

const minLogHeight = 3

var (
	titleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	stateStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A"))
	ledOffStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#4A4A4A"))
	ledOnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#52C41A")).Bold(true)
	bestStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A")).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	footerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	segmentStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF4D4F")).
			Bold(true).
			Padding(0, 2).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#4A4A4A"))
)

// Model implements the live tester UI.
type Model struct {
	keys   *Keys
	cancel context.CancelFunc

	width  int
	height int

	round    uint32
	state    model.RoundState
	stimulus bool
	alert    bool
	label    string
	value    model.Millis
	best     model.Millis

	log  table.Model
	rows []table.Row

	done    bool
	summary model.Summary
	err     error
}

// NewModel constructs the live UI. cancel stops the running session.
func NewModel(keys *Keys, cancel context.CancelFunc) *Model {
	columns := []table.Column{
		{Title: "Round", Width: 5},
		{Title: "Diff", Width: 4},
		{Title: "Wait", Width: 5},
		{Title: "Visual", Width: 6},
		{Title: "Tactile", Width: 7},
		{Title: "Total", Width: 5},
		{Title: "Best", Width: 5},
	}
	return &Model{
		keys:   keys,
		cancel: cancel,
		log: table.New(
			table.WithColumns(columns),
			table.WithHeight(minLogHeight),
		),
	}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.log.SetHeight(max(minLogHeight, msg.Height-12))
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(msg)
	case transitionMsg:
		m.round = msg.round
		m.state = msg.to
		switch msg.to {
		case model.StateArmed:
			m.stimulus = false
			m.alert = false
			m.label = ""
			m.value = model.Millis{}
		case model.StateAbortRetry:
			m.stimulus = false
		}
		return m, nil
	case stimulusMsg:
		m.stimulus = true
		return m, nil
	case displayMsg:
		m.label = msg.label
		m.value = msg.value
		return m, nil
	case alertMsg:
		m.alert = true
		return m, nil
	case resultMsg:
		m.best = msg.best
		m.rows = append(m.rows, table.Row{
			fmt.Sprintf("%d", msg.rec.RoundIndex),
			fmt.Sprintf("%d", msg.rec.Difficulty),
			fmt.Sprintf("%d", msg.rec.WaitMs),
			msg.rec.VisualMs.String(),
			msg.rec.TactileMs.String(),
			msg.rec.TotalMs.String(),
			msg.best.String(),
		})
		m.log.SetRows(m.rows)
		m.log.GotoBottom()
		return m, nil
	case doneMsg:
		m.done = true
		m.summary = msg.summary
		m.err = msg.err
		return m, nil
	default:
		return m, nil
	}
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q", "esc":
		m.cancel()
		return m, tea.Quit
	}
	if m.done {
		return m, tea.Quit
	}
	switch msg.String() {
	case " ":
		m.keys.RequestStart()
	case "v":
		m.keys.Cross()
	case "p":
		m.keys.Press()
	case "+", "=":
		m.keys.Adjust(1)
	case "-":
		m.keys.Adjust(-1)
	}
	return m, nil
}

// View implements tea.Model.
func (m *Model) View() string {
	sections := []string{
		m.renderHeader(),
		lipgloss.JoinHorizontal(lipgloss.Center, m.renderLED(), "  ", segmentStyle.Render(m.renderSegment())),
		m.renderBest(),
		m.log.View(),
	}
	if m.done {
		sections = append(sections, m.renderDone())
	}
	sections = append(sections, m.renderFooter())
	content := strings.Join(sections, "\n\n")
	if m.width == 0 || m.height == 0 {
		return content
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
}

func (m *Model) renderHeader() string {
	return fmt.Sprintf("%s  round %d  %s  difficulty %d",
		titleStyle.Render("REFLEX"), m.round, stateStyle.Render(m.state.String()), m.keys.Difficulty())
}

func (m *Model) renderLED() string {
	if m.stimulus {
		return ledOnStyle.Render("● GO")
	}
	return ledOffStyle.Render("○ --")
}

func (m *Model) renderSegment() string {
	switch {
	case m.label == "":
		return "----"
	case m.value.Valid:
		return fmt.Sprintf("%s %4d", m.label, m.value.Value)
	default:
		return m.label
	}
}

func (m *Model) renderBest() string {
	line := "Best " + m.best.String()
	if m.best.Valid {
		line += " ms"
	}
	if m.alert {
		return bestStyle.Render(line + "  new best!")
	}
	return line
}

func (m *Model) renderDone() string {
	if m.err != nil {
		return errorStyle.Render("Session stopped: " + m.err.Error())
	}
	return fmt.Sprintf("Session complete: %d rounds (completed %d, aborted %d)",
		m.summary.Rounds, m.summary.Completed, m.summary.Aborted)
}

func (m *Model) renderFooter() string {
	if m.done {
		return footerStyle.Render("press any key to exit")
	}
	return footerStyle.Render("space start · v cross · p press · +/- difficulty · q quit")
}
