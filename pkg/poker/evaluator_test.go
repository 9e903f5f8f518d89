package poker

import (
	"testing"

	"github.com/feltcraft/dealerd/pkg/cards"
)

func solve(t *testing.T, codes ...string) Hand {
	t.Helper()
	h, err := Solve(mustCards(t, codes...))
	if err != nil {
		t.Fatalf("Solve(%v) failed: %v", codes, err)
	}
	return h
}

func TestSolveCategories(t *testing.T) {
	cases := []struct {
		name  string
		codes []string
		descr string
	}{
		{"royal flush", []string{"As", "Ks", "Qs", "Js", "Ts"}, "Royal Flush"},
		{"straight flush", []string{"9h", "8h", "7h", "6h", "5h"}, "Straight Flush"},
		{"four of a kind", []string{"Ac", "Ad", "Ah", "As", "2c"}, "Four of a Kind"},
		{"full house", []string{"Kc", "Kd", "Kh", "2s", "2c"}, "Full House"},
		{"pair", []string{"Ac", "Ad", "9h", "7s", "2c"}, "Pair"},
	}
	for _, tc := range cases {
		h := solve(t, tc.codes...)
		if h.Descr != tc.descr {
			t.Errorf("%s: got descr %q, want %q", tc.name, h.Descr, tc.descr)
		}
	}
}

func TestSolveOrdering(t *testing.T) {
	flush := solve(t, "As", "Ks", "9s", "7s", "2s")
	straight := solve(t, "9h", "8c", "7d", "6s", "5h")
	pair := solve(t, "Ac", "Ad", "9h", "7s", "2c")

	if flush.Rank <= straight.Rank {
		t.Error("flush should outrank straight")
	}
	if straight.Rank <= pair.Rank {
		t.Error("straight should outrank pair")
	}
}

func TestSolveBestFiveFromSeven(t *testing.T) {
	// Hole Ah Kh with a heart-heavy board; the flush is the best five.
	h := solve(t, "Ah", "Kh", "9h", "7h", "2h", "Ac", "Ad")
	if h.Descr != "Flush" {
		t.Fatalf("expected a flush, got %q", h.Descr)
	}
	if len(h.BestFive) != 5 {
		t.Fatalf("expected 5 best cards, got %d", len(h.BestFive))
	}
	for _, c := range h.BestFive {
		if c.Suit() != 'h' {
			t.Errorf("best five should be all hearts, got %s", c)
		}
	}
}

func TestSolveCardCountBounds(t *testing.T) {
	if _, err := Solve(mustCards(t, "As", "Ks")); err == nil {
		t.Error("2 cards should not evaluate")
	}
	if _, err := Solve(mustCards(t, "As", "Ks", "Qs", "Js", "Ts", "9s", "8s", "7s")); err == nil {
		t.Error("8 cards should not evaluate")
	}
}

func TestWinnersTie(t *testing.T) {
	community := mustCards(t, "2c", "7d", "9h", "Jc", "3s")
	s1 := testSeat("a", 0, 0, 100, SeatAllIn, "Ks", "Kh")
	s2 := testSeat("b", 1, 0, 100, SeatAllIn, "Kd", "Kc")
	s3 := testSeat("c", 2, 0, 100, SeatAllIn, "Qs", "Qh")

	hands := map[string]Hand{}
	for _, s := range []*Seat{s1, s2, s3} {
		h, err := Solve(append(append([]cards.Card(nil), s.Cards...), community...))
		if err != nil {
			t.Fatal(err)
		}
		hands[s.ID] = h
	}

	winners := Winners([]*Seat{s1, s2, s3}, hands)
	if len(winners) != 2 {
		t.Fatalf("expected 2 tied winners, got %d", len(winners))
	}
	if winners[0].ID != "a" || winners[1].ID != "b" {
		t.Errorf("winners should preserve seat order, got %s, %s", winners[0].ID, winners[1].ID)
	}
}
