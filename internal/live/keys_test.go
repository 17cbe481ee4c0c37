package live

import (
	"context"
	"testing"
	"time"

	"github.com/verte-zerg/reflex/internal/model"
)

type fakeNow struct{ t time.Time }

func (f *fakeNow) now() time.Time { return f.t }

func TestKeysStartConsumesAndClearsStaleInput(t *testing.T) {
	ctx := context.Background()
	clk := &fakeNow{t: time.Unix(0, 0)}
	k := NewKeys(40, clk.now)

	if ok, _ := k.StartRequested(ctx); ok {
		t.Fatalf("expected no start before request")
	}
	k.Cross()
	k.Press()
	k.RequestStart()
	if ok, _ := k.StartRequested(ctx); !ok {
		t.Fatalf("expected start after request")
	}
	if ok, _ := k.StartRequested(ctx); ok {
		t.Fatalf("expected start to be consumed")
	}
	if hit, _ := k.PollVisualCrossing(ctx, 0); hit {
		t.Fatalf("expected crossing before start to be dropped")
	}
	if v, _ := k.PollPressure(ctx, 0); v != 0 {
		t.Fatalf("expected press before start to be dropped, got %d", v)
	}
}

func TestKeysCrossingIsEdgeTriggered(t *testing.T) {
	ctx := context.Background()
	k := NewKeys(0, nil)
	k.Cross()
	if hit, _ := k.PollVisualCrossing(ctx, 0); !hit {
		t.Fatalf("expected crossing")
	}
	if hit, _ := k.PollVisualCrossing(ctx, 1); hit {
		t.Fatalf("expected crossing to be consumed")
	}
}

func TestKeysPressureHold(t *testing.T) {
	ctx := context.Background()
	clk := &fakeNow{t: time.Unix(100, 0)}
	k := NewKeys(0, clk.now)
	k.Press()
	if v, _ := k.PollPressure(ctx, 0); v != model.PressureMax {
		t.Fatalf("expected full-scale pressure, got %d", v)
	}
	clk.t = clk.t.Add(DefaultHold - time.Millisecond)
	if v, _ := k.PollPressure(ctx, 1); v != model.PressureMax {
		t.Fatalf("expected pressure still held, got %d", v)
	}
	clk.t = clk.t.Add(time.Millisecond)
	if v, _ := k.PollPressure(ctx, 2); v != 0 {
		t.Fatalf("expected released pressure, got %d", v)
	}
}

func TestKeysAdjustClamps(t *testing.T) {
	k := NewKeys(150, nil)
	if got := k.Difficulty(); got != 100 {
		t.Fatalf("expected clamp to 100, got %d", got)
	}
	if got := k.Adjust(-3); got != 85 {
		t.Fatalf("expected 85, got %d", got)
	}
	if got := k.Adjust(-100); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
	if got := k.Adjust(1); got != 5 {
		t.Fatalf("expected 5, got %d", got)
	}
	if d, _ := k.ReadDifficulty(context.Background()); d != 5 {
		t.Fatalf("expected provider to report 5, got %d", d)
	}
}
