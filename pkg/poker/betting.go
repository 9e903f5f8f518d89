package poker

import "time"

// BetAction is a player-facing betting verb. There is no CALL verb on the
// wire: a CHECK with a bet owed is promoted to a call.
type BetAction string

const (
	BetRaise BetAction = "RAISE"
	BetCheck BetAction = "CHECK"
	BetFold  BetAction = "FOLD"
)

// ApplyBetting validates and applies one betting action for the assigned
// seat, mutating the game and seat in place and returning the event to
// append. The caller runs the round-close evaluator afterwards and persists
// whatever changed.
//
// Seats must be the fresh in-transaction rows: the debit arithmetic below
// trusts BuyIn and CurrentBet as loaded, never caller-supplied copies.
func ApplyBetting(g *Game, seats []*Seat, actorSeatID string, action BetAction, raiseAmount int64, now time.Time) (Event, error) {
	if g.State != StateBetting {
		return Event{}, E(KindInvalidState, "game %s is in %s, not BETTING", g.ID, g.State)
	}
	if g.AssignedSeatID != actorSeatID {
		return Event{}, E(KindWrongTurn, "seat %s acted but the turn belongs to %s", actorSeatID, g.AssignedSeatID)
	}
	seat := SeatByID(seats, actorSeatID)
	if seat == nil {
		return Event{}, E(KindNotFound, "seat %s not found at table %s", actorSeatID, g.TableID)
	}
	if seat.Status != SeatActive {
		return Event{}, E(KindInvalidState, "seat %s is %s and cannot act", seat.ID, seat.Status)
	}

	maxBet := MaxBet(seats)

	var fundsRequested int64
	var eventType EventType
	switch action {
	case BetRaise:
		if raiseAmount <= 0 || raiseAmount <= maxBet {
			return Event{}, E(KindInvalidRaise, "raise to %d must exceed the current max bet %d", raiseAmount, maxBet)
		}
		fundsRequested = raiseAmount - seat.CurrentBet
		seat.LastAction = ActionRaise
		eventType = EventRaise
	case BetCheck:
		if maxBet > seat.CurrentBet {
			// A bet is owed; the check becomes a call.
			fundsRequested = maxBet - seat.CurrentBet
			seat.LastAction = ActionCall
			eventType = EventCall
		} else {
			seat.LastAction = ActionCheck
			eventType = EventCheck
		}
	case BetFold:
		seat.Status = SeatFolded
		seat.LastAction = ActionFold
		eventType = EventFold
	default:
		return Event{}, E(KindInvalidState, "unknown betting action %q", action)
	}

	if action != BetFold {
		debit := fundsRequested
		if debit > seat.BuyIn {
			debit = seat.BuyIn
		}
		seat.BuyIn -= debit
		seat.CurrentBet += debit
		if seat.BuyIn == 0 {
			seat.Status = SeatAllIn
		}
	}

	var ev Event
	var err error
	if eventType == EventFold {
		ev, err = NewEvent(g.TableID, g.ID, eventType, FoldPayload{SeatID: seat.ID})
	} else {
		ev, err = NewEvent(g.TableID, g.ID, eventType, BetPayload{SeatID: seat.ID, Total: seat.CurrentBet})
	}
	if err != nil {
		return Event{}, err
	}

	g.AssignedSeatID = NextActive(seats, actorSeatID)
	g.BetCount++
	if next := SeatByID(seats, g.AssignedSeatID); next != nil && next.Status == SeatActive {
		t := now
		g.TurnStartTime = &t
	} else {
		g.TurnStartTime = nil
	}

	return ev, nil
}
