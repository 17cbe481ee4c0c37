// Package report delivers completed trials to external channels: the
// local result log and an MQTT broker.
package report

import (
	"context"
	"errors"
	"time"

	"github.com/verte-zerg/reflex/internal/capability"
	"github.com/verte-zerg/reflex/internal/model"
	"github.com/verte-zerg/reflex/internal/store"
)

// Multi fans a result out to every reporter and joins their errors.
type Multi []capability.Reporter

// ReportResult implements capability.Reporter.
func (m Multi) ReportResult(ctx context.Context, rec model.TrialRecord, best model.Millis) error {
	var errs []error
	for _, r := range m {
		if err := r.ReportResult(ctx, rec, best); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Source stamps outgoing results with their origin.
type Source struct {
	SessionID string
	DeviceID  string
	Now       func() time.Time
}

// Result converts a completed trial into its transmitted form.
func (s Source) Result(rec model.TrialRecord, best model.Millis) model.ResultRecord {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	return model.ResultRecord{
		SessionID:  s.SessionID,
		DeviceID:   s.DeviceID,
		RoundIndex: rec.RoundIndex,
		Difficulty: rec.Difficulty,
		WaitMs:     rec.WaitMs,
		VisualMs:   rec.VisualMs.Value,
		TactileMs:  rec.TactileMs.Value,
		TotalMs:    rec.TotalMs.Value,
		BestMs:     best.Value,
		RecordedAt: now(),
	}
}

// StoreReporter appends results to the SQLite log.
type StoreReporter struct {
	store  *store.Store
	source Source
}

// NewStoreReporter returns a reporter writing to st.
func NewStoreReporter(st *store.Store, source Source) *StoreReporter {
	return &StoreReporter{store: st, source: source}
}

// ReportResult implements capability.Reporter.
func (r *StoreReporter) ReportResult(ctx context.Context, rec model.TrialRecord, best model.Millis) error {
	_, err := r.store.InsertResult(ctx, r.source.Result(rec, best))
	return err
}
