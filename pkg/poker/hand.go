package poker

import (
	"sort"
	"time"

	"github.com/feltcraft/dealerd/pkg/cards"
)

// StartHand begins a new hand at the table: per-hand seat state is reset,
// the button advances, blinds are posted and a fresh Game in
// DEAL_HOLE_CARDS is returned together with its START_GAME event. prev is
// the table's latest game, or nil.
func StartHand(t *Table, prev *Game, seats []*Seat, now time.Time) (*Game, Event, error) {
	if prev != nil && !prev.IsCompleted {
		return nil, Event{}, E(KindInvalidState, "table %s already has an active game %s", t.ID, prev.ID)
	}

	mult := t.BlindMultiplier(now)
	effSmall := t.SmallBlind * mult
	effBig := t.BigBlind * mult

	funded := 0
	for _, s := range seats {
		if s.Status != SeatEliminated && s.BuyIn >= effBig {
			funded++
		}
	}
	if funded < 2 {
		return nil, Event{}, E(KindInvalidState, "need at least 2 seats with %d chips to start a hand, have %d", effBig, funded)
	}

	// Per-hand reset. Eliminated seats stay eliminated; everyone else,
	// including players who were all-in last hand, starts active.
	for _, s := range seats {
		s.Cards = nil
		s.CurrentBet = 0
		s.LastAction = ""
		s.HandType = ""
		s.HandDescription = ""
		s.WinAmount = 0
		s.WinningCards = nil
		if s.Status != SeatEliminated {
			s.Status = SeatActive
		}
		s.StartingBalance = s.BuyIn
	}

	button := advanceButton(prev, seats)

	// Blind seats. Heads-up the button posts the small blind.
	var sbSeat, bbSeat string
	if NonEliminatedCount(seats) == 2 {
		sbSeat = button
		bbSeat = NextNonEliminated(seats, button)
	} else {
		sbSeat = NextNonEliminated(seats, button)
		bbSeat = NextNonEliminated(seats, sbSeat)
	}
	blinds := postBlind(SeatByID(seats, sbSeat), effSmall)
	blinds += postBlind(SeatByID(seats, bbSeat), effBig)

	g := &Game{
		TableID:             t.ID,
		State:               StateDealHoleCards,
		DealerButtonSeatID:  button,
		AssignedSeatID:      NextDealable(seats, button),
		PotTotal:            blinds,
		EffectiveSmallBlind: effSmall,
		EffectiveBigBlind:   effBig,
		CreatedAt:           now,
	}

	ev, err := NewEvent(t.ID, "", EventStartGame, StartGamePayload{DealerButtonSeatID: button})
	if err != nil {
		return nil, Event{}, err
	}
	return g, ev, nil
}

// advanceButton moves the dealer button to the next non-eliminated seat
// after the previous hand's button, or to the first non-eliminated seat for
// the table's first hand.
func advanceButton(prev *Game, seats []*Seat) string {
	if prev != nil && prev.DealerButtonSeatID != "" && SeatByID(seats, prev.DealerButtonSeatID) != nil {
		return NextNonEliminated(seats, prev.DealerButtonSeatID)
	}
	for _, s := range seats {
		if s.Status != SeatEliminated {
			return s.ID
		}
	}
	return ""
}

// postBlind debits the blind from the seat straight into the pot, capped at
// the stack, and returns what was paid. Blinds are not live bets: they do
// not raise the round's max bet, so the small blind owes nothing extra to
// see the flop. A seat that posts its whole stack is all-in before the
// first card is dealt.
func postBlind(s *Seat, amount int64) int64 {
	if s == nil {
		return 0
	}
	if amount > s.BuyIn {
		amount = s.BuyIn
	}
	s.BuyIn -= amount
	if s.BuyIn == 0 {
		s.Status = SeatAllIn
	}
	return amount
}

// DealCard applies one card from the dealer or the scan path. In
// DEAL_HOLE_CARDS the card goes to the assigned seat; in the community
// states it goes to the board. A street-completing community card yields
// the corresponding FLOP/TURN/RIVER event; hole cards yield no event.
func DealCard(g *Game, seats []*Seat, card cards.Card, now time.Time) (*Event, error) {
	if !card.Valid() {
		return nil, E(KindInvalidState, "malformed card code %q", card)
	}
	if err := checkDuplicate(g, seats, card); err != nil {
		return nil, err
	}

	switch g.State {
	case StateDealHoleCards:
		seat := SeatByID(seats, g.AssignedSeatID)
		if seat == nil {
			return nil, E(KindNotFound, "assigned seat %s not found", g.AssignedSeatID)
		}
		seat.Cards = append(seat.Cards, card)
		if holeCardsRemain(seats) {
			g.AssignedSeatID = NextDealable(seats, g.AssignedSeatID)
			return nil, nil
		}
		openBetting(g, seats, preflopFirstActor(g, seats), now)
		return nil, nil

	case StateDealFlop, StateDealTurn, StateDealRiver:
		g.CommunityCards = append(g.CommunityCards, card)
		threshold, evType := streetTarget(g.State)
		if len(g.CommunityCards) < threshold {
			return nil, nil
		}
		ev, err := NewEvent(g.TableID, g.ID, evType, CommunityPayload{CommunityAll: g.CommunityCards})
		if err != nil {
			return nil, err
		}
		openBetting(g, seats, NextActive(seats, g.DealerButtonSeatID), now)
		return &ev, nil

	default:
		return nil, E(KindInvalidState, "cannot deal a card while game is in %s", g.State)
	}
}

func checkDuplicate(g *Game, seats []*Seat, card cards.Card) error {
	if cards.Contains(g.CommunityCards, card) {
		return E(KindDuplicateCard, "card %s is already on the board", card)
	}
	for _, s := range seats {
		if cards.Contains(s.Cards, card) {
			return E(KindDuplicateCard, "card %s is already held by seat %s", card, s.ID)
		}
	}
	return nil
}

// holeCardsRemain reports whether any seat still contesting the hand is
// short of two hole cards.
func holeCardsRemain(seats []*Seat) bool {
	for _, s := range seats {
		if s.InHand() && len(s.Cards) < 2 {
			return true
		}
	}
	return false
}

func streetTarget(state GameState) (int, EventType) {
	switch state {
	case StateDealFlop:
		return 3, EventFlop
	case StateDealTurn:
		return 4, EventTurn
	default:
		return 5, EventRiver
	}
}

// preflopFirstActor is the seat that opens the pre-flop betting round: next
// active after the big blind, or the button (small blind) heads-up.
func preflopFirstActor(g *Game, seats []*Seat) string {
	button := g.DealerButtonSeatID
	if NonEliminatedCount(seats) == 2 {
		if s := SeatByID(seats, button); s != nil && s.Status == SeatActive {
			return button
		}
		return NextActive(seats, button)
	}
	sb := NextNonEliminated(seats, button)
	bb := NextNonEliminated(seats, sb)
	return NextActive(seats, bb)
}

func openBetting(g *Game, seats []*Seat, firstActor string, now time.Time) {
	g.State = StateBetting
	g.AssignedSeatID = firstActor
	g.RequiredBetCount = ActiveCount(seats)
	g.BetCount = 0
	if s := SeatByID(seats, firstActor); s != nil && s.Status == SeatActive {
		t := now
		g.TurnStartTime = &t
	} else {
		g.TurnStartTime = nil
	}
}

// RoundResult reports what the round-close evaluator did.
type RoundResult struct {
	Closed   bool
	Showdown bool
	Events   []Event
}

// MaybeCloseRound runs the round-close predicate and, when it holds, merges
// bets and advances the hand: on to the next street, or into showdown when
// one contender remains or the board is complete. Call it after every
// betting action and after any deal that lands in BETTING.
func MaybeCloseRound(g *Game, seats []*Seat) (RoundResult, error) {
	if g.State != StateBetting {
		return RoundResult{}, nil
	}
	active := ActiveCount(seats)
	if !AllActiveBetsEqual(seats) || (active > 1 && g.BetCount < g.RequiredBetCount) {
		return RoundResult{}, nil
	}

	MergeBets(g, seats)
	g.TurnStartTime = nil

	if NonFoldedCount(seats) <= 1 || len(g.CommunityCards) == 5 {
		ev, err := runShowdown(g, seats)
		if err != nil {
			return RoundResult{}, err
		}
		return RoundResult{Closed: true, Showdown: true, Events: []Event{ev}}, nil
	}

	switch len(g.CommunityCards) {
	case 0:
		g.State = StateDealFlop
	case 3:
		g.State = StateDealTurn
	case 4:
		g.State = StateDealRiver
	default:
		return RoundResult{}, E(KindInvalidState, "betting closed with %d community cards", len(g.CommunityCards))
	}
	return RoundResult{Closed: true}, nil
}

// runShowdown builds and distributes the side pots, credits winnings,
// eliminates busted seats, verifies chip conservation and completes the
// game. PotTotal is left in place for inspection until the next hand.
func runShowdown(g *Game, seats []*Seat) (Event, error) {
	pots := BuildSidePots(seats)

	var contributed int64
	for _, s := range seats {
		contributed += s.Contribution()
	}
	if PotsTotal(pots) != contributed {
		return Event{}, E(KindConservationError,
			"side pots total %d but seats contributed %d", PotsTotal(pots), contributed)
	}

	if err := DistributePots(pots, seats, g.CommunityCards, g.DealerButtonSeatID); err != nil {
		return Event{}, err
	}

	var startSum, buySum int64
	for _, s := range seats {
		s.BuyIn += s.WinAmount
		if s.BuyIn == 0 {
			s.Status = SeatEliminated
		}
		startSum += s.StartingBalance
		buySum += s.BuyIn
	}
	if startSum != buySum {
		return Event{}, E(KindConservationError,
			"chips not conserved at showdown: starting %d != stacks %d", startSum, buySum)
	}

	g.SidePots = pots
	g.State = StateShowdown
	g.IsCompleted = true
	g.TurnStartTime = nil

	return NewEvent(g.TableID, g.ID, EventEndGame, EndGamePayload{Winners: orderedWinners(pots, seats)})
}

// orderedWinners aggregates per-seat winnings across pots, ordered by seat
// number.
func orderedWinners(pots []SidePot, seats []*Seat) []PotWinner {
	totals := map[string]*PotWinner{}
	for _, pot := range pots {
		for _, w := range pot.Winners {
			if agg, ok := totals[w.SeatID]; ok {
				agg.Amount += w.Amount
			} else {
				cp := w
				totals[w.SeatID] = &cp
			}
		}
	}
	out := make([]PotWinner, 0, len(totals))
	for _, s := range seats {
		if w, ok := totals[s.ID]; ok {
			out = append(out, *w)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return SeatByID(seats, out[i].SeatID).SeatNumber < SeatByID(seats, out[j].SeatID).SeatNumber
	})
	return out
}

// ResetTable is the operator escape hatch: the current game, active or not,
// is marked completed, per-hand seat state is cleared and every
// non-eliminated stack is restored to its hand-start value. The END_GAME
// marker carries no winners.
func ResetTable(g *Game, seats []*Seat) (Event, error) {
	if g == nil {
		return Event{}, E(KindNotFound, "no game to reset")
	}
	for _, s := range seats {
		s.Cards = nil
		s.CurrentBet = 0
		s.LastAction = ""
		s.HandType = ""
		s.HandDescription = ""
		s.WinAmount = 0
		s.WinningCards = nil
		if s.Status != SeatEliminated {
			s.Status = SeatActive
			s.BuyIn = s.StartingBalance
		}
	}
	g.State = StateShowdown
	g.IsCompleted = true
	g.TurnStartTime = nil

	return NewEvent(g.TableID, g.ID, EventEndGame, EndGamePayload{Winners: []PotWinner{}})
}
