package live

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/verte-zerg/reflex/internal/model"
)

type transitionMsg struct {
	round    uint32
	from, to model.RoundState
}

type stimulusMsg struct{}

type displayMsg struct {
	label string
	value model.Millis
}

type alertMsg struct{}

type resultMsg struct {
	rec  model.TrialRecord
	best model.Millis
}

type doneMsg struct {
	summary model.Summary
	err     error
}

// Panel is the output side of the live device. It forwards stimulus,
// display, feedback and reports to the running program as messages.
type Panel struct {
	send func(tea.Msg)
}

// NewPanel returns a Panel delivering messages through send,
// normally (*tea.Program).Send.
func NewPanel(send func(tea.Msg)) *Panel {
	return &Panel{send: send}
}

func (p *Panel) ActivateStimulus(context.Context) error {
	p.send(stimulusMsg{})
	return nil
}

func (p *Panel) DisplayValue(_ context.Context, label string, value uint32) error {
	p.send(displayMsg{label: label, value: model.Millis{Value: value, Valid: true}})
	return nil
}

func (p *Panel) DisplayMessage(_ context.Context, label string) error {
	p.send(displayMsg{label: label})
	return nil
}

func (p *Panel) FeedbackAlert(context.Context) error {
	p.send(alertMsg{})
	return nil
}

func (p *Panel) ReportResult(_ context.Context, rec model.TrialRecord, best model.Millis) error {
	p.send(resultMsg{rec: rec, best: best})
	return nil
}

// Observe forwards round state changes; it fits round.WithObserver.
func (p *Panel) Observe(round uint32, from, to model.RoundState) {
	p.send(transitionMsg{round: round, from: from, to: to})
}
