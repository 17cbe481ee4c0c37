// Package statsui provides the Bubble Tea browser for stored results.
package statsui

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/reflex/internal/model"
	"github.com/verte-zerg/reflex/internal/stats"
)

const (
	tabOverview = iota
	tabResults
	tabCurves
)

const (
	plotHeight   = 10
	defaultWidth = 80
	dateLayout   = "2006-01-02"
)

var (
	activeNavStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F0F0F0")).
			Bold(true).
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#C89A3A"))
	inactiveNavStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#B0B0B0")).
				Padding(0, 1).
				Border(lipgloss.RoundedBorder(), true).
				BorderForeground(lipgloss.Color("#4A4A4A"))
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	cardStyle   = lipgloss.NewStyle().
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#4A4A4A"))
	cardTitleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	cardValueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
)

// Loader fetches stored results; *store.Store satisfies it.
type Loader interface {
	ListResults(ctx context.Context, cfg model.HistoryConfig) ([]model.ResultRecord, error)
}

// Model implements the Bubble Tea result browser.
type Model struct {
	loader Loader
	cfg    model.HistoryConfig

	results []model.ResultRecord
	errMsg  string

	tabs      []string
	activeTab int
	viewports []viewport.Model
	table     table.Model

	width  int
	height int

	filterMode   bool
	filterInputs []textinput.Model
	filterIndex  int
	filterError  string
}

// NewModel constructs a result browser and loads the first page.
func NewModel(loader Loader, cfg model.HistoryConfig) *Model {
	m := &Model{
		loader: loader,
		cfg:    cfg,
		tabs:   []string{"Overview", "Results", "Curves"},
	}
	m.viewports = make([]viewport.Model, len(m.tabs))
	for i := range m.viewports {
		m.viewports[i] = viewport.New(0, 0)
	}
	m.table = table.New(table.WithColumns(resultColumns()), table.WithHeight(1))
	m.initInputs()
	m.refresh()
	return m
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
		m.updateLayout()
		m.renderTabContents()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || (!m.filterMode && msg.String() == "q") {
			return m, tea.Quit
		}
		if m.filterMode {
			return m.updateFilter(msg)
		}
		switch msg.String() {
		case "left", "h":
			m.moveTab(-1)
			return m, tea.ClearScreen
		case "right", "l":
			m.moveTab(1)
			return m, tea.ClearScreen
		case "/":
			m.filterMode = true
			m.filterError = ""
			m.setInputsFromConfig()
			return m, m.setFilterIndex(0)
		case "r":
			m.refresh()
			return m, nil
		}
		if m.activeTab == tabResults {
			var cmd tea.Cmd
			m.table, cmd = m.table.Update(msg)
			return m, cmd
		}
		var cmd tea.Cmd
		m.viewports[m.activeTab], cmd = m.viewports[m.activeTab].Update(msg)
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	headerHeight, bodyHeight, footerHeight := m.layoutHeights()
	header := fitLines(m.renderTabs()+"\n"+m.renderFilterSummary(), m.width, headerHeight)
	body := fitLines(m.renderBody(), m.width, bodyHeight)
	footer := fitLines(m.renderFooter(), m.width, footerHeight)
	return strings.Join([]string{header, body, footer}, "\n")
}

func (m *Model) initInputs() {
	m.filterInputs = []textinput.Model{
		newFilterInput("Session: "),
		newFilterInput("Since (YYYY-MM-DD): "),
		newFilterInput("Last: "),
	}
}

func newFilterInput(prompt string) textinput.Model {
	input := textinput.New()
	input.Prompt = prompt
	input.CharLimit = 0
	input.Cursor.SetMode(cursor.CursorBlink)
	return input
}

func (m *Model) setInputsFromConfig() {
	m.filterInputs[0].SetValue(m.cfg.SessionID)
	m.filterInputs[1].SetValue("")
	if m.cfg.Since != nil {
		m.filterInputs[1].SetValue(m.cfg.Since.Format(dateLayout))
	}
	m.filterInputs[2].SetValue("")
	if m.cfg.Last > 0 {
		m.filterInputs[2].SetValue(strconv.Itoa(m.cfg.Last))
	}
}

func (m *Model) setFilterIndex(idx int) tea.Cmd {
	m.filterIndex = (idx + len(m.filterInputs)) % len(m.filterInputs)
	var cmd tea.Cmd
	for i := range m.filterInputs {
		if i == m.filterIndex {
			cmd = m.filterInputs[i].Focus()
		} else {
			m.filterInputs[i].Blur()
		}
	}
	return cmd
}

func (m *Model) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.filterMode = false
		return m, nil
	case "tab", "down":
		return m, m.setFilterIndex(m.filterIndex + 1)
	case "shift+tab", "up":
		return m, m.setFilterIndex(m.filterIndex - 1)
	case "enter":
		if err := m.applyFilter(); err != nil {
			m.filterError = err.Error()
			return m, nil
		}
		m.filterMode = false
		m.refresh()
		return m, nil
	}
	var cmd tea.Cmd
	m.filterInputs[m.filterIndex], cmd = m.filterInputs[m.filterIndex].Update(msg)
	return m, cmd
}

func (m *Model) applyFilter() error {
	cfg := model.HistoryConfig{SessionID: strings.TrimSpace(m.filterInputs[0].Value())}
	if since := strings.TrimSpace(m.filterInputs[1].Value()); since != "" {
		parsed, err := time.ParseInLocation(dateLayout, since, time.Local)
		if err != nil {
			return fmt.Errorf("invalid since date %q", since)
		}
		cfg.Since = &parsed
	}
	if last := strings.TrimSpace(m.filterInputs[2].Value()); last != "" {
		n, err := strconv.Atoi(last)
		if err != nil || n < 0 {
			return fmt.Errorf("last must be a non-negative number")
		}
		cfg.Last = n
	}
	m.cfg = cfg
	return nil
}

func (m *Model) refresh() {
	results, err := m.loader.ListResults(context.Background(), m.cfg)
	if err != nil {
		m.errMsg = err.Error()
		m.results = nil
	} else {
		m.errMsg = ""
		m.results = results
	}
	m.table.SetRows(resultRows(m.results))
	m.renderTabContents()
}

func (m *Model) layoutHeights() (headerHeight, bodyHeight, footerHeight int) {
	headerHeight = max(1, lipgloss.Height(activeNavStyle.Render("X"))) + 1
	footerHeight = 1
	if m.errMsg != "" || m.filterError != "" {
		footerHeight++
	}
	bodyHeight = max(1, m.height-headerHeight-footerHeight)
	return headerHeight, bodyHeight, footerHeight
}

func (m *Model) updateLayout() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	_, bodyHeight, _ := m.layoutHeights()
	for i := range m.viewports {
		m.viewports[i].Width = m.width
		m.viewports[i].Height = bodyHeight
	}
	m.table.SetWidth(m.width)
	m.table.SetHeight(max(1, bodyHeight-1))
	for i := range m.filterInputs {
		m.filterInputs[i].Width = max(10, m.width-lipgloss.Width(m.filterInputs[i].Prompt)-2)
	}
}

func (m *Model) moveTab(delta int) {
	m.activeTab = (m.activeTab + delta + len(m.tabs)) % len(m.tabs)
	if m.activeTab == tabResults {
		m.table.Focus()
	} else {
		m.table.Blur()
	}
}

func (m *Model) renderTabs() string {
	parts := make([]string, 0, len(m.tabs))
	for i, tab := range m.tabs {
		if i == m.activeTab {
			parts = append(parts, activeNavStyle.Render(tab))
		} else {
			parts = append(parts, inactiveNavStyle.Render(tab))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m *Model) renderFilterSummary() string {
	session := m.cfg.SessionID
	if session == "" {
		session = "any"
	}
	since := "any"
	if m.cfg.Since != nil {
		since = m.cfg.Since.Format(dateLayout)
	}
	last := "all"
	if m.cfg.Last > 0 {
		last = strconv.Itoa(m.cfg.Last)
	}
	return headerStyle.Render(fmt.Sprintf("Filter: session=%s  since=%s  last=%s", session, since, last))
}

func (m *Model) renderBody() string {
	if m.filterMode {
		lines := []string{"Filter (enter to apply, esc to cancel)"}
		for _, input := range m.filterInputs {
			lines = append(lines, input.View())
		}
		return strings.Join(lines, "\n")
	}
	if m.activeTab == tabResults {
		if len(m.results) == 0 {
			return "No results found."
		}
		return m.table.View()
	}
	return m.viewports[m.activeTab].View()
}

func (m *Model) renderFooter() string {
	help := "Nav: left/right  Scroll: up/down/pgup/pgdn  Filter: /  Reload: r  Quit: q"
	if m.filterMode {
		help = "tab/shift+tab: next field  enter: apply  esc: cancel"
	}
	footer := headerStyle.Render(help)
	if msg := m.filterError + m.errMsg; msg != "" {
		footer += "\n" + errorStyle.Render(msg)
	}
	return footer
}

func (m *Model) renderTabContents() {
	if m.errMsg != "" {
		for i := range m.viewports {
			m.viewports[i].SetContent("Failed to load results.")
		}
		return
	}
	width := m.width
	if width <= 0 {
		width = defaultWidth
	}
	m.viewports[tabOverview].SetContent(renderOverview(m.results, width))
	m.viewports[tabCurves].SetContent(renderCurves(m.results, width))
}

func renderOverview(results []model.ResultRecord, width int) string {
	if len(results) == 0 {
		return "No results found."
	}
	sessions := map[string]struct{}{}
	best := results[0].TotalMs
	var visual, tactile, total uint64
	for _, r := range results {
		sessions[r.SessionID] = struct{}{}
		best = min(best, r.TotalMs)
		visual += uint64(r.VisualMs)
		tactile += uint64(r.TactileMs)
		total += uint64(r.TotalMs)
	}
	n := uint64(len(results))
	cards := []string{
		metricCard("Rounds", strconv.Itoa(len(results))),
		metricCard("Sessions", strconv.Itoa(len(sessions))),
		metricCard("Best total", fmt.Sprintf("%d ms", best)),
		metricCard("Mean total", fmt.Sprintf("%d ms", total/n)),
		metricCard("Mean visual", fmt.Sprintf("%d ms", visual/n)),
		metricCard("Mean tactile", fmt.Sprintf("%d ms", tactile/n)),
	}
	var rows []string
	var row []string
	rowWidth := 0
	for _, card := range cards {
		w := lipgloss.Width(card)
		if len(row) > 0 && rowWidth+w > width {
			rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, row...))
			row, rowWidth = nil, 0
		}
		row = append(row, card)
		rowWidth += w
	}
	rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, row...))
	return strings.Join(rows, "\n")
}

func metricCard(label, value string) string {
	return cardStyle.Render(cardTitleStyle.Render(label) + "\n" + cardValueStyle.Render(value))
}

func renderCurves(results []model.ResultRecord, width int) string {
	if len(results) == 0 {
		return "No results found."
	}
	curves := stats.HistoryCurves(results)
	var buf bytes.Buffer
	if err := stats.PlotCurves(&buf, curves, stats.PlotWidthFor(width, curves), plotHeight, true); err != nil {
		return fmt.Sprintf("Failed to render curves: %v", err)
	}
	return strings.TrimRight(buf.String(), "\n")
}

func resultColumns() []table.Column {
	return []table.Column{
		{Title: "Session", Width: 8},
		{Title: "Round", Width: 5},
		{Title: "Diff", Width: 4},
		{Title: "Wait", Width: 5},
		{Title: "Visual", Width: 6},
		{Title: "Tactile", Width: 7},
		{Title: "Total", Width: 5},
		{Title: "Best", Width: 5},
		{Title: "Recorded", Width: 16},
	}
}

func resultRows(results []model.ResultRecord) []table.Row {
	rows := make([]table.Row, 0, len(results))
	for _, r := range results {
		session := r.SessionID
		if len(session) > 8 {
			session = session[:8]
		}
		rows = append(rows, table.Row{
			session,
			strconv.FormatUint(uint64(r.RoundIndex), 10),
			strconv.FormatUint(uint64(r.Difficulty), 10),
			strconv.FormatUint(uint64(r.WaitMs), 10),
			strconv.FormatUint(uint64(r.VisualMs), 10),
			strconv.FormatUint(uint64(r.TactileMs), 10),
			strconv.FormatUint(uint64(r.TotalMs), 10),
			strconv.FormatUint(uint64(r.BestMs), 10),
			r.RecordedAt.Local().Format("2006-01-02 15:04"),
		})
	}
	return rows
}

func padLine(line string, width int) string {
	lineWidth := lipgloss.Width(line)
	if lineWidth < width {
		return line + strings.Repeat(" ", width-lineWidth)
	}
	return line
}

func fitLines(s string, width, height int) string {
	if width <= 0 || height <= 0 {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = padLine(line, width)
	}
	if len(lines) > height {
		lines = lines[:height]
	}
	for len(lines) < height {
		lines = append(lines, strings.Repeat(" ", width))
	}
	return strings.Join(lines, "\n")
}
