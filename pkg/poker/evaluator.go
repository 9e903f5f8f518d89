package poker

import (
	evalpoker "github.com/chehsunliu/poker"

	"github.com/feltcraft/dealerd/pkg/cards"
)

// Hand is the evaluation of a seat's best five cards out of five to seven.
// Rank is comparable across hands: higher is better.
type Hand struct {
	Rank     int
	Descr    string
	BestFive []cards.Card
}

// worstEvalRank is the weakest rank the underlying evaluator can produce
// (7-5-4-3-2 unsuited). The library ranks hands 1..7462 with lower better;
// we invert so Rank compares naturally.
const worstEvalRank = 7462

func toEvalCards(cs []cards.Card) []evalpoker.Card {
	out := make([]evalpoker.Card, len(cs))
	for i, c := range cs {
		out[i] = evalpoker.NewCard(string(c))
	}
	return out
}

// Solve evaluates the best five-card hand from 5 to 7 cards.
func Solve(cs []cards.Card) (Hand, error) {
	if len(cs) < 5 || len(cs) > 7 {
		return Hand{}, E(KindInvalidState, "cannot evaluate %d cards", len(cs))
	}
	raw := evalpoker.Evaluate(toEvalCards(cs))

	descr := evalpoker.RankString(raw)
	if raw == 1 {
		// The top straight flush is its own category for display purposes.
		descr = "Royal Flush"
	}

	return Hand{
		Rank:     worstEvalRank - int(raw),
		Descr:    descr,
		BestFive: bestFive(cs, raw),
	}, nil
}

// bestFive finds the five-card subset that produces the winning rank.
func bestFive(cs []cards.Card, target int32) []cards.Card {
	if len(cs) == 5 {
		return append([]cards.Card(nil), cs...)
	}
	var found []cards.Card
	combinations(cs, 5, func(combo []cards.Card) bool {
		if evalpoker.Evaluate(toEvalCards(combo)) == target {
			found = append([]cards.Card(nil), combo...)
			return true
		}
		return false
	})
	return found
}

// combinations calls fn for each k-subset of cs until fn returns true.
func combinations(cs []cards.Card, k int, fn func([]cards.Card) bool) {
	combo := make([]cards.Card, 0, k)
	var walk func(start int) bool
	walk = func(start int) bool {
		if len(combo) == k {
			return fn(combo)
		}
		for i := start; i <= len(cs)-(k-len(combo)); i++ {
			combo = append(combo, cs[i])
			if walk(i + 1) {
				return true
			}
			combo = combo[:len(combo)-1]
		}
		return false
	}
	walk(0)
}

// Winners selects the seats whose evaluated hands tie for the best rank,
// preserving the seat order of eligible.
func Winners(eligible []*Seat, hands map[string]Hand) []*Seat {
	best := -1
	for _, s := range eligible {
		if h, ok := hands[s.ID]; ok && h.Rank > best {
			best = h.Rank
		}
	}
	var out []*Seat
	for _, s := range eligible {
		if h, ok := hands[s.ID]; ok && h.Rank == best {
			out = append(out, s)
		}
	}
	return out
}
