package live

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/verte-zerg/reflex/internal/capability"
	"github.com/verte-zerg/reflex/internal/model"
	"github.com/verte-zerg/reflex/internal/round"
)

// Runner executes a session on dev. opts must be handed to the round
// engine so the UI can follow state changes.
type Runner func(ctx context.Context, dev capability.Device, opts ...round.Option) (model.Summary, error)

// Device assembles a capability set from keyboard input and the panel.
func Device(keys *Keys, panel *Panel) capability.Device {
	return capability.Device{
		Start:      keys,
		Difficulty: keys,
		Visual:     keys,
		Pressure:   keys,
		Stimulus:   panel,
		Display:    panel,
		Feedback:   panel,
		Reporter:   panel,
	}
}

// Run starts the live UI and drives runner until the session ends or
// the user quits, returning the session summary.
func Run(ctx context.Context, difficulty uint8, runner Runner) (model.Summary, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	keys := NewKeys(difficulty, time.Now)
	program := tea.NewProgram(NewModel(keys, cancel), tea.WithAltScreen())
	panel := NewPanel(program.Send)

	type result struct {
		summary model.Summary
		err     error
	}
	done := make(chan result, 1)
	go func() {
		summary, err := runner(ctx, Device(keys, panel), round.WithObserver(panel.Observe))
		program.Send(doneMsg{summary: summary, err: err})
		done <- result{summary: summary, err: err}
	}()

	if _, err := program.Run(); err != nil {
		cancel()
		<-done
		return model.Summary{}, fmt.Errorf("failed to run live TUI: %w", err)
	}
	cancel()
	res := <-done
	return res.summary, res.err
}
