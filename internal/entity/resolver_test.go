package entity

import "testing"

func TestDiceCoefficient(t *testing.T) {
	cases := []struct {
		name string
		a, b string
		want float64
	}{
		{"identical", "alice", "alice", 1.0},
		{"empty vs non-empty", "", "alice", 0},
		{"no overlap", "ab", "xy", 0},
		{"single char both", "a", "a", 1.0},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := diceCoefficient(c.a, c.b)
			if got != c.want {
				t.Errorf("diceCoefficient(%q, %q) = %v, want %v", c.a, c.b, got, c.want)
			}
		})
	}
}

func TestDiceCoefficientSimilarNames(t *testing.T) {
	// "alice" (4 bigrams) and "alicia" (5 bigrams) share al, li and ic, so
	// they score 2*3/(4+5) ~= 0.67.
	got := diceCoefficient("alice", "alicia")
	if got <= 0.5 {
		t.Errorf("expected alice/alicia to score above 0.5, got %v", got)
	}
}

func TestLinearRecencyDecay(t *testing.T) {
	if got := linearRecencyDecay(0); got != 1.0 {
		t.Errorf("expected no-age decay to be 1.0, got %v", got)
	}

	halfway := linearRecencyDecay(millisPerDay * 7 / 2)
	if halfway < 0.49 || halfway > 0.51 {
		t.Errorf("expected decay at 3.5 of 7 days to be ~0.5, got %v", halfway)
	}

	if got := linearRecencyDecay(millisPerDay * 7); got != 0 {
		t.Errorf("expected decay to floor at 0 at the window edge, got %v", got)
	}
	if got := linearRecencyDecay(millisPerDay * 30); got != 0 {
		t.Errorf("expected decay to floor at 0 beyond the window, got %v", got)
	}
}
