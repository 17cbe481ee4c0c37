package generator

import (
	"testing"

	"github.com/verte-zerg/reflex/internal/model"
)

func TestRandomWaitWithinBoundsForAllDifficulties(t *testing.T) {
	for _, shrink := range []uint8{0, 50, 100} {
		tun := model.DefaultTunables()
		tun.DifficultyShrink = shrink
		g := NewSeeded(7)
		for d := 0; d <= 100; d++ {
			for i := 0; i < 50; i++ {
				w := g.RandomWaitMs(uint8(d), tun)
				if w < model.DefaultWaitMinMs || w > model.DefaultWaitMaxMs {
					t.Fatalf("shrink=%d difficulty=%d: wait %d out of range", shrink, d, w)
				}
			}
		}
	}
}

func TestWaitSpanShrinksWithDifficulty(t *testing.T) {
	tun := model.DefaultTunables()
	tun.DifficultyShrink = 50
	easy := WaitSpan(0, tun)
	hard := WaitSpan(100, tun)
	if easy != 2000 {
		t.Fatalf("expected full span 2000 at difficulty 0, got %d", easy)
	}
	if hard != 1000 {
		t.Fatalf("expected half span at difficulty 100, got %d", hard)
	}
	if WaitSpan(250, tun) != hard {
		t.Fatalf("expected difficulty above 100 to clamp")
	}
}

func TestWaitSpanFlatWithoutShrink(t *testing.T) {
	tun := model.DefaultTunables()
	tun.DifficultyShrink = 0
	for _, d := range []uint8{0, 30, 100} {
		if got := WaitSpan(d, tun); got != 2000 {
			t.Fatalf("difficulty %d: expected flat span 2000, got %d", d, got)
		}
	}
}

func TestSeededGeneratorIsReproducible(t *testing.T) {
	tun := model.DefaultTunables()
	a := NewSeeded(42)
	b := NewSeeded(42)
	for i := 0; i < 10; i++ {
		if x, y := a.RandomWaitMs(50, tun), b.RandomWaitMs(50, tun); x != y {
			t.Fatalf("draw %d differs: %d vs %d", i, x, y)
		}
	}
}
