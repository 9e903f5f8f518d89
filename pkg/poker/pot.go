package poker

import (
	"sort"

	"github.com/feltcraft/dealerd/pkg/cards"
)

// MergeBets closes a betting round: every seat's CurrentBet is folded into
// the game's pot and the round counters are cleared.
func MergeBets(g *Game, seats []*Seat) {
	for _, s := range seats {
		g.PotTotal += s.CurrentBet
		s.CurrentBet = 0
	}
	g.BetCount = 0
	g.RequiredBetCount = 0
}

// BuildSidePots rebuilds the pot layering from scratch out of cumulative
// contributions. Contributors at each level include folded and eliminated
// seats; eligibility does not. Pots with no chips or no eligible seat are
// dropped.
func BuildSidePots(seats []*Seat) []SidePot {
	levelSet := map[int64]bool{}
	for _, s := range seats {
		if cc := s.Contribution(); cc > 0 {
			levelSet[cc] = true
		}
	}
	levels := make([]int64, 0, len(levelSet))
	for lvl := range levelSet {
		levels = append(levels, lvl)
	}
	sort.Slice(levels, func(i, j int) bool { return levels[i] < levels[j] })

	var pots []SidePot
	prev := int64(0)
	for _, lvl := range levels {
		increment := lvl - prev
		pot := SidePot{
			PotNumber: len(pots),
			RangeFrom: prev,
			RangeTo:   lvl,
			Winners:   []PotWinner{},
		}
		for _, s := range seats {
			if s.Contribution() < lvl {
				continue
			}
			pot.Contributors = append(pot.Contributors, s.ID)
			if s.InHand() {
				pot.Eligible = append(pot.Eligible, s.ID)
			}
		}
		pot.Amount = increment * int64(len(pot.Contributors))
		prev = lvl

		if pot.Amount == 0 || len(pot.Eligible) == 0 {
			continue
		}
		pot.PotNumber = len(pots)
		pots = append(pots, pot)
	}
	return pots
}

// PotsTotal sums the amounts across pots.
func PotsTotal(pots []SidePot) int64 {
	var total int64
	for _, p := range pots {
		total += p.Amount
	}
	return total
}

// DistributePots evaluates each pot's eligible seats against the community
// cards, splits each pot evenly among the tied winners and credits
// WinAmount on the seats. The remainder of an uneven split goes to the
// winner seated closest after the dealer button, so every chip in the pot
// is paid out.
func DistributePots(pots []SidePot, seats []*Seat, community []cards.Card, buttonSeatID string) error {
	// A hand that ends with one contender left is won uncontested. There
	// may be fewer than five board cards, so no evaluation happens and the
	// winning hand stays private.
	var contenders []*Seat
	for _, s := range seats {
		if s.InHand() {
			contenders = append(contenders, s)
		}
	}
	if len(contenders) == 1 {
		w := contenders[0]
		for i := range pots {
			pot := &pots[i]
			w.WinAmount += pot.Amount
			pot.Winners = append(pot.Winners, PotWinner{SeatID: w.ID, Amount: pot.Amount})
		}
		return nil
	}

	hands := make(map[string]Hand)
	for _, s := range seats {
		if !s.InHand() {
			continue
		}
		h, err := Solve(append(append([]cards.Card(nil), s.Cards...), community...))
		if err != nil {
			return err
		}
		hands[s.ID] = h
		s.HandType = h.Descr
		s.HandDescription = h.Descr
		s.WinningCards = h.BestFive
	}

	for i := range pots {
		pot := &pots[i]
		eligible := make([]*Seat, 0, len(pot.Eligible))
		for _, id := range pot.Eligible {
			if s := SeatByID(seats, id); s != nil && s.InHand() {
				eligible = append(eligible, s)
			}
		}
		if len(eligible) == 0 {
			return E(KindConservationError, "pot %d (%d chips) has no eligible seats", pot.PotNumber, pot.Amount)
		}

		winners := Winners(eligible, hands)
		share := pot.Amount / int64(len(winners))
		remainder := pot.Amount - share*int64(len(winners))
		oddChipSeat := firstAfterButton(seats, winners, buttonSeatID)

		for _, w := range winners {
			amount := share
			if remainder > 0 && w.ID == oddChipSeat {
				amount += remainder
			}
			w.WinAmount += amount
			pot.Winners = append(pot.Winners, PotWinner{
				SeatID:   w.ID,
				Amount:   amount,
				HandType: hands[w.ID].Descr,
				Cards:    hands[w.ID].BestFive,
			})
		}
	}
	return nil
}

// firstAfterButton picks the winner with the smallest clockwise distance
// from the seat after the button.
func firstAfterButton(seats []*Seat, winners []*Seat, buttonSeatID string) string {
	if len(winners) == 0 {
		return ""
	}
	start := indexOf(seats, buttonSeatID)
	best := winners[0].ID
	bestDist := len(seats) + 1
	for _, w := range winners {
		pos := indexOf(seats, w.ID)
		if pos < 0 {
			continue
		}
		dist := (pos - start - 1 + len(seats)) % len(seats)
		if dist < bestDist {
			bestDist = dist
			best = w.ID
		}
	}
	return best
}
