package poker

import (
	"encoding/json"
	"testing"
	"time"
)

func bettingGame(seats []*Seat) *Game {
	return &Game{
		ID:               "g1",
		TableID:          "t1",
		State:            StateBetting,
		AssignedSeatID:   seats[0].ID,
		RequiredBetCount: ActiveCount(seats),
	}
}

func threeActiveSeats() []*Seat {
	return []*Seat{
		testSeat("s0", 0, 300, 300, SeatActive),
		testSeat("s1", 1, 300, 300, SeatActive),
		testSeat("s2", 2, 300, 300, SeatActive),
	}
}

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestBettingWrongTurn(t *testing.T) {
	seats := threeActiveSeats()
	g := bettingGame(seats)

	_, err := ApplyBetting(g, seats, "s1", BetCheck, 0, testNow)
	if !IsKind(err, KindWrongTurn) {
		t.Fatalf("expected WrongTurn, got %v", err)
	}
	if g.BetCount != 0 || seats[1].CurrentBet != 0 {
		t.Error("a rejected action must not change state")
	}
}

func TestBettingOutsideBettingState(t *testing.T) {
	seats := threeActiveSeats()
	g := bettingGame(seats)
	g.State = StateDealFlop

	_, err := ApplyBetting(g, seats, "s0", BetCheck, 0, testNow)
	if !IsKind(err, KindInvalidState) {
		t.Fatalf("expected InvalidState, got %v", err)
	}
}

func TestRaiseMustExceedMaxBet(t *testing.T) {
	seats := threeActiveSeats()
	seats[1].CurrentBet = 50
	g := bettingGame(seats)

	for _, amount := range []int64{0, -10, 49, 50} {
		_, err := ApplyBetting(g, seats, "s0", BetRaise, amount, testNow)
		if !IsKind(err, KindInvalidRaise) {
			t.Errorf("raise to %d: expected InvalidRaise, got %v", amount, err)
		}
	}
}

func TestRaiseDebitsToTotal(t *testing.T) {
	seats := threeActiveSeats()
	g := bettingGame(seats)

	ev, err := ApplyBetting(g, seats, "s0", BetRaise, 50, testNow)
	if err != nil {
		t.Fatalf("raise failed: %v", err)
	}
	if seats[0].CurrentBet != 50 || seats[0].BuyIn != 250 {
		t.Errorf("raise should set bet 50 and stack 250, got %d/%d", seats[0].CurrentBet, seats[0].BuyIn)
	}
	if ev.Type != EventRaise {
		t.Errorf("expected RAISE event, got %s", ev.Type)
	}
	var p BetPayload
	if err := json.Unmarshal(ev.Details, &p); err != nil {
		t.Fatal(err)
	}
	if p.SeatID != "s0" || p.Total != 50 {
		t.Errorf("unexpected payload %+v", p)
	}
	if g.AssignedSeatID != "s1" {
		t.Errorf("turn should pass to s1, got %s", g.AssignedSeatID)
	}
	if g.BetCount != 1 {
		t.Errorf("bet count should be 1, got %d", g.BetCount)
	}
	if g.TurnStartTime == nil || !g.TurnStartTime.Equal(testNow) {
		t.Error("turn start time should be stamped for the next active seat")
	}
}

func TestCheckPromotedToCall(t *testing.T) {
	seats := threeActiveSeats()
	seats[2].CurrentBet = 50
	g := bettingGame(seats)

	ev, err := ApplyBetting(g, seats, "s0", BetCheck, 0, testNow)
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if ev.Type != EventCall {
		t.Errorf("check with a bet owed should become CALL, got %s", ev.Type)
	}
	if seats[0].CurrentBet != 50 || seats[0].BuyIn != 250 {
		t.Errorf("call should match 50, got bet %d stack %d", seats[0].CurrentBet, seats[0].BuyIn)
	}
	if seats[0].LastAction != ActionCall {
		t.Errorf("last action should be CALL, got %s", seats[0].LastAction)
	}
}

func TestCheckWithNothingOwed(t *testing.T) {
	seats := threeActiveSeats()
	g := bettingGame(seats)

	ev, err := ApplyBetting(g, seats, "s0", BetCheck, 0, testNow)
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if ev.Type != EventCheck {
		t.Errorf("expected CHECK event, got %s", ev.Type)
	}
	if seats[0].BuyIn != 300 {
		t.Errorf("check must not debit the stack, got %d", seats[0].BuyIn)
	}
}

func TestCallCappedAtStackGoesAllIn(t *testing.T) {
	seats := threeActiveSeats()
	seats[0].BuyIn = 30
	seats[2].CurrentBet = 50
	g := bettingGame(seats)

	_, err := ApplyBetting(g, seats, "s0", BetCheck, 0, testNow)
	if err != nil {
		t.Fatalf("call failed: %v", err)
	}
	if seats[0].BuyIn != 0 {
		t.Errorf("stack should be empty, got %d", seats[0].BuyIn)
	}
	if seats[0].CurrentBet != 30 {
		t.Errorf("short call commits the whole stack, got %d", seats[0].CurrentBet)
	}
	if seats[0].Status != SeatAllIn {
		t.Errorf("seat should be all-in, got %s", seats[0].Status)
	}
}

func TestFold(t *testing.T) {
	seats := threeActiveSeats()
	g := bettingGame(seats)

	ev, err := ApplyBetting(g, seats, "s0", BetFold, 0, testNow)
	if err != nil {
		t.Fatalf("fold failed: %v", err)
	}
	if seats[0].Status != SeatFolded {
		t.Errorf("seat should be folded, got %s", seats[0].Status)
	}
	if ev.Type != EventFold {
		t.Errorf("expected FOLD event, got %s", ev.Type)
	}
	var p FoldPayload
	if err := json.Unmarshal(ev.Details, &p); err != nil {
		t.Fatal(err)
	}
	if p.SeatID != "s0" {
		t.Errorf("unexpected payload %+v", p)
	}
}

func TestFoldedSeatCannotAct(t *testing.T) {
	seats := threeActiveSeats()
	seats[0].Status = SeatFolded
	g := bettingGame(seats)

	_, err := ApplyBetting(g, seats, "s0", BetCheck, 0, testNow)
	if !IsKind(err, KindInvalidState) {
		t.Fatalf("expected InvalidState, got %v", err)
	}
}

func TestRoundCloseWaitsForAllBets(t *testing.T) {
	seats := threeActiveSeats()
	g := bettingGame(seats)

	// Two of three checked: bets are equal but the third has not acted.
	g.BetCount = 2

	res, err := MaybeCloseRound(g, seats)
	if err != nil {
		t.Fatal(err)
	}
	if res.Closed {
		t.Error("round must not close before every active seat acted")
	}

	g.BetCount = 3
	res, err = MaybeCloseRound(g, seats)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Closed {
		t.Error("round should close once counts and bets line up")
	}
	if g.State != StateDealFlop {
		t.Errorf("pre-flop close should advance to DEAL_FLOP, got %s", g.State)
	}
}

func TestRoundStaysOpenOnUnequalBets(t *testing.T) {
	seats := threeActiveSeats()
	seats[0].CurrentBet = 50
	g := bettingGame(seats)
	g.BetCount = 3

	res, err := MaybeCloseRound(g, seats)
	if err != nil {
		t.Fatal(err)
	}
	if res.Closed {
		t.Error("round must not close while an active bet is unmatched")
	}
}
