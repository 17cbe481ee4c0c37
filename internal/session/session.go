// Package session runs the trial loop: repeated rounds against one
// device, carrying the best score and round counter between them.
package session

import (
	"context"
	"errors"

	"go.viam.com/rdk/logging"

	"github.com/verte-zerg/reflex/internal/clock"
	"github.com/verte-zerg/reflex/internal/model"
	"github.com/verte-zerg/reflex/internal/round"
	"github.com/verte-zerg/reflex/internal/score"
)

// Session owns the per-device state that outlives a round. Sessions on
// different devices never share a tracker.
type Session struct {
	id      string
	machine *round.Machine
	tracker *score.Tracker
	clk     clock.Clock
	logger  logging.Logger

	progress []func(model.Summary)

	next    uint32
	summary model.Summary
}

// Option configures a Session.
type Option func(*Session)

// WithProgress registers fn to receive the running tally after every
// started round. fn runs on the session goroutine.
func WithProgress(fn func(model.Summary)) Option {
	return func(s *Session) {
		s.progress = append(s.progress, fn)
	}
}

// New returns a session whose first round has index 1.
func New(id string, machine *round.Machine, clk clock.Clock, logger logging.Logger, opts ...Option) *Session {
	s := &Session{
		id:      id,
		machine: machine,
		tracker: score.NewTracker(),
		clk:     clk,
		logger:  logger,
		next:    1,
		summary: model.Summary{SessionID: id},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run plays rounds until the given number have started, or until ctx is
// done when rounds is zero. Polls without a start signal do not consume
// a round. Cancellation stops the session normally; a capability fault
// ends it with an error. The summary is valid in both cases.
func (s *Session) Run(ctx context.Context, rounds uint32) (model.Summary, error) {
	s.logger.Infof("session %s starting (rounds=%d)", s.id, rounds)
	for rounds == 0 || s.summary.Rounds < rounds {
		if ctx.Err() != nil {
			s.logger.Infof("session %s stopped after %d rounds", s.id, s.summary.Rounds)
			break
		}
		res, err := s.machine.Run(ctx, s.next, s.tracker)
		if err != nil {
			if stopped(ctx, err) {
				s.logger.Infof("session %s stopped during round %d; round discarded", s.id, s.next)
				break
			}
			return s.summary, err
		}
		if !res.Started {
			if err := s.clk.Advance(ctx); err != nil {
				if stopped(ctx, err) {
					continue
				}
				return s.summary, err
			}
			continue
		}
		s.record(res)
	}
	s.logger.Infof("session %s finished: %d rounds, %d completed, best=%s", s.id, s.summary.Rounds, s.summary.Completed, s.summary.Best)
	return s.summary, nil
}

func (s *Session) record(res round.Result) {
	s.next++
	s.summary.Rounds++
	if res.Record.Outcome.Aborted() {
		s.summary.Aborted++
	} else {
		s.summary.Completed++
	}
	s.summary.Best = s.tracker.Best()
	for _, fn := range s.progress {
		fn(s.summary)
	}
}

func stopped(ctx context.Context, err error) bool {
	return ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded))
}
