// Package score keeps the best completed total of a session.
package score

import (
	"fmt"

	"github.com/verte-zerg/reflex/internal/model"
)

// Tracker holds the best total and whether the last submission
// improved it. The zero value has no score yet. Not safe for
// concurrent use; one Tracker belongs to one device session.
type Tracker struct {
	best     model.Millis
	improved bool
}

// NewTracker returns a Tracker with no score yet.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Submit records a completed round and reports whether its total is
// strictly below the previous best (or the first one).
func (t *Tracker) Submit(rec model.TrialRecord) (bool, error) {
	if rec.Outcome != model.OutcomeCompleted || !rec.TotalMs.Valid {
		return false, fmt.Errorf("round %d: only completed rounds with a total can be scored (outcome %s)", rec.RoundIndex, rec.Outcome)
	}
	t.improved = !t.best.Valid || rec.TotalMs.Value < t.best.Value
	if t.improved {
		t.best = rec.TotalMs
	}
	return t.improved, nil
}

// Best returns the best total so far.
func (t *Tracker) Best() model.Millis {
	return t.best
}

// ImprovedThisRound reports the result of the last Submit.
func (t *Tracker) ImprovedThisRound() bool {
	return t.improved
}
