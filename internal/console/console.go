// Package console renders the device actuators on a terminal: the go
// LED and vibration cue, the 7-segment readout, the new-best alert and
// the serial result line.
package console

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/verte-zerg/reflex/internal/model"
)

// DefaultBaud labels the serial report line.
const DefaultBaud = 115200

const labelWidth = 5

var (
	stimStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#52C41A")).Bold(true)
	segStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F")).Bold(true)
	msgStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A"))
	bestStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Background(lipgloss.Color("#C89A3A")).Bold(true)
	uartStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
)

// Console writes actuator output to w. It implements capability.Stimulus,
// capability.Display, capability.Feedback and capability.Reporter.
type Console struct {
	mu     sync.Mutex
	w      io.Writer
	styled bool
	baud   int
}

// New returns a Console. Styling is applied only when styled is set.
func New(w io.Writer, styled bool) *Console {
	return &Console{w: w, styled: styled, baud: DefaultBaud}
}

func (c *Console) println(s lipgloss.Style, line string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.styled {
		line = s.Render(line)
	}
	_, err := fmt.Fprintln(c.w, line)
	return err
}

// ActivateStimulus implements capability.Stimulus.
func (c *Console) ActivateStimulus(context.Context) error {
	return c.println(stimStyle, "STIM  LED=GREEN vibration=short buzz")
}

// DisplayValue implements capability.Display.
func (c *Console) DisplayValue(_ context.Context, label string, value uint32) error {
	return c.println(segStyle, fmt.Sprintf("7SEG  %s = %d ms", runewidth.FillRight(label, labelWidth), value))
}

// DisplayMessage implements capability.Display.
func (c *Console) DisplayMessage(_ context.Context, label string) error {
	return c.println(msgStyle, "7SEG  "+label)
}

// FeedbackAlert implements capability.Feedback.
func (c *Console) FeedbackAlert(context.Context) error {
	return c.println(bestStyle, "BEST  improved: LED blink + buzzer")
}

// ReportResult implements capability.Reporter with the serial line format.
func (c *Console) ReportResult(_ context.Context, rec model.TrialRecord, best model.Millis) error {
	return c.println(uartStyle, FormatResultLine(c.baud, rec, best))
}

// FormatResultLine renders a result the way the serial link sends it.
func FormatResultLine(baud int, rec model.TrialRecord, best model.Millis) string {
	return fmt.Sprintf("UART %d bps  Rnd=%d, Wait=%d, Vis=%s, Tact=%s, Total=%s, Best=%s",
		baud, rec.RoundIndex, rec.WaitMs, rec.VisualMs, rec.TactileMs, rec.TotalMs, best)
}

// FormatSummary renders the end-of-session summary.
func FormatSummary(s model.Summary) []string {
	best := "none"
	if s.Best.Valid {
		best = fmt.Sprintf("%d ms", s.Best.Value)
	}
	return []string{
		fmt.Sprintf("Session %s", s.SessionID),
		fmt.Sprintf("Rounds: %d (completed %d, aborted %d)", s.Rounds, s.Completed, s.Aborted),
		fmt.Sprintf("Best total so far = %s", best),
	}
}

// RenderSummary writes the summary lines to w.
func RenderSummary(w io.Writer, s model.Summary) error {
	for _, line := range FormatSummary(s) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}
