package statsui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/verte-zerg/reflex/internal/model"
)

type stubLoader struct {
	results []model.ResultRecord
	err     error
	calls   []model.HistoryConfig
}

func (s *stubLoader) ListResults(_ context.Context, cfg model.HistoryConfig) ([]model.ResultRecord, error) {
	s.calls = append(s.calls, cfg)
	return s.results, s.err
}

func sampleResults() []model.ResultRecord {
	at := time.Date(2026, 10, 19, 8, 0, 0, 0, time.Local)
	return []model.ResultRecord{
		{SessionID: "aaaaaaaa-1", RoundIndex: 1, VisualMs: 300, TactileMs: 250, TotalMs: 550, BestMs: 550, RecordedAt: at},
		{SessionID: "aaaaaaaa-1", RoundIndex: 2, VisualMs: 200, TactileMs: 200, TotalMs: 400, BestMs: 400, RecordedAt: at},
		{SessionID: "bbbbbbbb-2", RoundIndex: 1, VisualMs: 250, TactileMs: 210, TotalMs: 460, BestMs: 460, RecordedAt: at},
	}
}

func sized(m *Model) *Model {
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return m
}

func TestOverviewCards(t *testing.T) {
	m := sized(NewModel(&stubLoader{results: sampleResults()}, model.HistoryConfig{}))
	view := m.View()
	for _, want := range []string{"Overview", "Rounds", "3", "Sessions", "Best total", "400 ms", "Mean total", "470 ms"} {
		if !strings.Contains(view, want) {
			t.Fatalf("expected %q in overview:\n%s", want, view)
		}
	}
}

func TestTabsCycle(t *testing.T) {
	m := sized(NewModel(&stubLoader{results: sampleResults()}, model.HistoryConfig{}))
	m.Update(tea.KeyMsg{Type: tea.KeyRight})
	if m.activeTab != tabResults {
		t.Fatalf("expected results tab, got %d", m.activeTab)
	}
	if !strings.Contains(m.View(), "bbbbbbbb") {
		t.Fatalf("expected result rows in view:\n%s", m.View())
	}
	m.Update(tea.KeyMsg{Type: tea.KeyRight})
	if m.activeTab != tabCurves || !strings.Contains(m.View(), "(ms)") {
		t.Fatalf("expected curves tab with legend:\n%s", m.View())
	}
	m.Update(tea.KeyMsg{Type: tea.KeyRight})
	if m.activeTab != tabOverview {
		t.Fatalf("expected wrap to overview, got %d", m.activeTab)
	}
	m.Update(tea.KeyMsg{Type: tea.KeyLeft})
	if m.activeTab != tabCurves {
		t.Fatalf("expected wrap back to curves, got %d", m.activeTab)
	}
}

func TestFilterAppliesAndReloads(t *testing.T) {
	loader := &stubLoader{results: sampleResults()}
	m := sized(NewModel(loader, model.HistoryConfig{}))

	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'/'}})
	if !m.filterMode {
		t.Fatalf("expected filter mode")
	}
	m.filterInputs[0].SetValue("aaaaaaaa-1")
	m.filterInputs[1].SetValue("2026-10-01")
	m.filterInputs[2].SetValue("5")
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})

	if m.filterMode {
		t.Fatalf("expected filter mode to close")
	}
	last := loader.calls[len(loader.calls)-1]
	if last.SessionID != "aaaaaaaa-1" || last.Last != 5 || last.Since == nil || last.Since.Day() != 1 {
		t.Fatalf("unexpected reload config %+v", last)
	}
	if !strings.Contains(m.View(), "session=aaaaaaaa-1") {
		t.Fatalf("expected filter summary in header:\n%s", m.View())
	}
}

func TestFilterRejectsBadInput(t *testing.T) {
	m := sized(NewModel(&stubLoader{}, model.HistoryConfig{}))
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'/'}})
	m.filterInputs[1].SetValue("yesterday")
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if !m.filterMode || !strings.Contains(m.filterError, "yesterday") {
		t.Fatalf("expected filter error, mode=%v err=%q", m.filterMode, m.filterError)
	}
	m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if m.filterMode {
		t.Fatalf("expected esc to leave filter mode")
	}
}

func TestLoadError(t *testing.T) {
	m := sized(NewModel(&stubLoader{err: errors.New("database is locked")}, model.HistoryConfig{}))
	view := m.View()
	if !strings.Contains(view, "Failed to load results.") || !strings.Contains(view, "database is locked") {
		t.Fatalf("expected load error in view:\n%s", view)
	}
}

func TestQuit(t *testing.T) {
	m := NewModel(&stubLoader{}, model.HistoryConfig{})
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if cmd == nil {
		t.Fatalf("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("expected tea.QuitMsg")
	}
}
