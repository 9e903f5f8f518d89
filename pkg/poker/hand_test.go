package poker

import (
	"testing"
	"time"

	"github.com/feltcraft/dealerd/pkg/cards"
)

func testTable() *Table {
	return &Table{ID: "t1", Name: "test", SmallBlind: 5, BigBlind: 10, MaxSeats: 9}
}

func deal(t *testing.T, g *Game, seats []*Seat, code string) *Event {
	t.Helper()
	c, err := cards.Parse(code)
	if err != nil {
		t.Fatal(err)
	}
	ev, err := DealCard(g, seats, c, testNow)
	if err != nil {
		t.Fatalf("dealing %s failed: %v", code, err)
	}
	return ev
}

func act(t *testing.T, g *Game, seats []*Seat, seatID string, action BetAction, amount int64) {
	t.Helper()
	if _, err := ApplyBetting(g, seats, seatID, action, amount, testNow); err != nil {
		t.Fatalf("%s by %s failed: %v", action, seatID, err)
	}
	if _, err := MaybeCloseRound(g, seats); err != nil {
		t.Fatalf("round close after %s by %s failed: %v", action, seatID, err)
	}
}

func closeAfterDeal(t *testing.T, g *Game, seats []*Seat) {
	t.Helper()
	if _, err := MaybeCloseRound(g, seats); err != nil {
		t.Fatalf("round close after deal failed: %v", err)
	}
}

func sumStacks(seats []*Seat) int64 {
	var sum int64
	for _, s := range seats {
		sum += s.BuyIn
	}
	return sum
}

func TestStartHandBlindsAndButton(t *testing.T) {
	seats := []*Seat{
		testSeat("s0", 0, 300, 300, SeatActive),
		testSeat("s1", 1, 300, 300, SeatActive),
		testSeat("s2", 2, 300, 300, SeatActive),
	}
	g, ev, err := StartHand(testTable(), nil, seats, testNow)
	if err != nil {
		t.Fatalf("StartHand failed: %v", err)
	}
	if g.DealerButtonSeatID != "s0" {
		t.Errorf("first hand button should be s0, got %s", g.DealerButtonSeatID)
	}
	if seats[1].BuyIn != 295 || seats[2].BuyIn != 290 {
		t.Errorf("blinds should debit sb/bb, got stacks %d/%d", seats[1].BuyIn, seats[2].BuyIn)
	}
	if g.PotTotal != 15 {
		t.Errorf("blinds go straight to the pot, got %d", g.PotTotal)
	}
	if g.State != StateDealHoleCards {
		t.Errorf("expected DEAL_HOLE_CARDS, got %s", g.State)
	}
	if g.AssignedSeatID != "s1" {
		t.Errorf("hole dealing starts left of the button, got %s", g.AssignedSeatID)
	}
	if ev.Type != EventStartGame {
		t.Errorf("expected START_GAME event, got %s", ev.Type)
	}
}

func TestStartHandButtonAdvances(t *testing.T) {
	seats := []*Seat{
		testSeat("s0", 0, 300, 300, SeatActive),
		testSeat("s1", 1, 300, 300, SeatActive),
		testSeat("s2", 2, 300, 300, SeatActive),
	}
	prev := &Game{ID: "old", IsCompleted: true, DealerButtonSeatID: "s0"}
	g, _, err := StartHand(testTable(), prev, seats, testNow)
	if err != nil {
		t.Fatal(err)
	}
	if g.DealerButtonSeatID != "s1" {
		t.Errorf("button should advance to s1, got %s", g.DealerButtonSeatID)
	}
}

func TestStartHandRejectsActiveGame(t *testing.T) {
	seats := []*Seat{
		testSeat("s0", 0, 300, 300, SeatActive),
		testSeat("s1", 1, 300, 300, SeatActive),
	}
	prev := &Game{ID: "old", IsCompleted: false}
	_, _, err := StartHand(testTable(), prev, seats, testNow)
	if !IsKind(err, KindInvalidState) {
		t.Fatalf("expected InvalidState, got %v", err)
	}
}

func TestStartHandNeedsTwoFundedSeats(t *testing.T) {
	seats := []*Seat{
		testSeat("s0", 0, 300, 300, SeatActive),
		testSeat("s1", 1, 5, 5, SeatActive),
	}
	_, _, err := StartHand(testTable(), nil, seats, testNow)
	if !IsKind(err, KindInvalidState) {
		t.Fatalf("expected InvalidState, got %v", err)
	}
}

func TestStartHandBlindMultiplier(t *testing.T) {
	tbl := testTable()
	started := testNow.Add(-25 * time.Minute)
	tbl.BlindStepSeconds = 600
	tbl.BlindStartedAt = &started

	seats := []*Seat{
		testSeat("s0", 0, 300, 300, SeatActive),
		testSeat("s1", 1, 300, 300, SeatActive),
		testSeat("s2", 2, 300, 300, SeatActive),
	}
	g, _, err := StartHand(tbl, nil, seats, testNow)
	if err != nil {
		t.Fatal(err)
	}
	// 25 minutes at a 10 minute step is level 3.
	if g.EffectiveSmallBlind != 15 || g.EffectiveBigBlind != 30 {
		t.Errorf("expected blinds 15/30, got %d/%d", g.EffectiveSmallBlind, g.EffectiveBigBlind)
	}
	if g.PotTotal != 45 {
		t.Errorf("expected pot 45, got %d", g.PotTotal)
	}
}

// Heads-up check-down: the button posts the small blind and acts first
// pre-flop; the board plays for both and the layered blinds return to their
// owners.
func TestHeadsUpCheckDown(t *testing.T) {
	seats := []*Seat{
		testSeat("s0", 0, 200, 200, SeatActive),
		testSeat("s1", 1, 200, 200, SeatActive),
	}
	g, _, err := StartHand(testTable(), nil, seats, testNow)
	if err != nil {
		t.Fatal(err)
	}
	if seats[0].BuyIn != 195 || seats[1].BuyIn != 190 {
		t.Fatalf("heads-up button posts the small blind, got %d/%d", seats[0].BuyIn, seats[1].BuyIn)
	}

	// Hole cards alternate starting left of the button.
	deal(t, g, seats, "As")
	deal(t, g, seats, "Ks")
	deal(t, g, seats, "Qs")
	deal(t, g, seats, "Js")
	if g.State != StateBetting {
		t.Fatalf("hole cards complete, expected BETTING, got %s", g.State)
	}
	if g.AssignedSeatID != "s0" {
		t.Fatalf("heads-up pre-flop first actor is the button, got %s", g.AssignedSeatID)
	}

	act(t, g, seats, "s0", BetCheck, 0)
	act(t, g, seats, "s1", BetCheck, 0)
	if g.State != StateDealFlop {
		t.Fatalf("expected DEAL_FLOP, got %s", g.State)
	}

	deal(t, g, seats, "2h")
	deal(t, g, seats, "3h")
	if ev := deal(t, g, seats, "4h"); ev == nil || ev.Type != EventFlop {
		t.Fatal("third flop card should emit a FLOP event")
	}
	closeAfterDeal(t, g, seats)
	if g.AssignedSeatID != "s1" {
		t.Fatalf("post-flop first actor is left of the button, got %s", g.AssignedSeatID)
	}
	act(t, g, seats, "s1", BetCheck, 0)
	act(t, g, seats, "s0", BetCheck, 0)

	if ev := deal(t, g, seats, "5h"); ev == nil || ev.Type != EventTurn {
		t.Fatal("turn card should emit a TURN event")
	}
	closeAfterDeal(t, g, seats)
	act(t, g, seats, "s1", BetCheck, 0)
	act(t, g, seats, "s0", BetCheck, 0)

	if ev := deal(t, g, seats, "6h"); ev == nil || ev.Type != EventRiver {
		t.Fatal("river card should emit a RIVER event")
	}
	closeAfterDeal(t, g, seats)
	act(t, g, seats, "s1", BetCheck, 0)

	if _, err := ApplyBetting(g, seats, "s0", BetCheck, 0, testNow); err != nil {
		t.Fatal(err)
	}
	res, err := MaybeCloseRound(g, seats)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Showdown {
		t.Fatal("final check should reach showdown")
	}
	if len(res.Events) != 1 || res.Events[0].Type != EventEndGame {
		t.Fatal("showdown should emit END_GAME")
	}

	if g.State != StateShowdown || !g.IsCompleted {
		t.Errorf("game should be completed in SHOWDOWN, got %s completed=%v", g.State, g.IsCompleted)
	}
	if g.PotTotal != 15 {
		t.Errorf("pot stays at 15 until the next hand, got %d", g.PotTotal)
	}
	// The straight flush on the board ties; the layered pots hand each
	// blind back.
	if sumStacks(seats) != 400 {
		t.Errorf("chips must be conserved, got %d", sumStacks(seats))
	}
	if seats[0].BuyIn != 200 || seats[1].BuyIn != 200 {
		t.Errorf("board plays for both, stacks should return to 200/200, got %d/%d", seats[0].BuyIn, seats[1].BuyIn)
	}
}

// Raise, call, fold pre-flop: the round closes at 115 in the pot and the
// hand advances to the flop.
func TestRaiseCallFoldPreflop(t *testing.T) {
	seats := []*Seat{
		testSeat("s0", 0, 300, 300, SeatActive),
		testSeat("s1", 1, 300, 300, SeatActive),
		testSeat("s2", 2, 300, 300, SeatActive),
	}
	g, _, err := StartHand(testTable(), nil, seats, testNow)
	if err != nil {
		t.Fatal(err)
	}

	for _, code := range []string{"As", "Ks", "Qs", "Js", "Ts", "9s"} {
		deal(t, g, seats, code)
	}
	if g.State != StateBetting {
		t.Fatalf("expected BETTING, got %s", g.State)
	}
	if g.AssignedSeatID != "s0" {
		t.Fatalf("first actor should be left of the big blind, got %s", g.AssignedSeatID)
	}

	act(t, g, seats, "s0", BetRaise, 50)
	act(t, g, seats, "s1", BetCheck, 0) // promoted to a call of 50
	act(t, g, seats, "s2", BetFold, 0)

	if g.State != StateDealFlop {
		t.Fatalf("round should close into DEAL_FLOP, got %s", g.State)
	}
	if g.PotTotal != 115 {
		t.Errorf("pot should be 115 after the merge, got %d", g.PotTotal)
	}
	if seats[2].Status != SeatFolded {
		t.Errorf("s2 should be folded, got %s", seats[2].Status)
	}
}

// Both players all-in pre-flop: every street deals and closes with no
// betting, the short stack loses and is eliminated.
func TestAllInRunout(t *testing.T) {
	seats := []*Seat{
		testSeat("s0", 0, 200, 200, SeatActive),
		testSeat("s1", 1, 200, 200, SeatActive),
	}
	g, _, err := StartHand(testTable(), nil, seats, testNow)
	if err != nil {
		t.Fatal(err)
	}

	deal(t, g, seats, "Ks") // s1
	deal(t, g, seats, "As") // s0
	deal(t, g, seats, "Kd") // s1
	deal(t, g, seats, "Ad") // s0

	act(t, g, seats, "s0", BetRaise, 195)
	if seats[0].Status != SeatAllIn {
		t.Fatalf("s0 should be all-in, got %s", seats[0].Status)
	}
	act(t, g, seats, "s1", BetCheck, 0) // promoted call, capped at stack
	if seats[1].Status != SeatAllIn {
		t.Fatalf("s1 should be all-in, got %s", seats[1].Status)
	}
	if g.State != StateDealFlop {
		t.Fatalf("round should close into DEAL_FLOP, got %s", g.State)
	}
	if g.PotTotal != 400 {
		t.Fatalf("every chip should be in the pot, got %d", g.PotTotal)
	}

	for _, code := range []string{"7h", "8h", "2s"} {
		deal(t, g, seats, code)
	}
	closeAfterDeal(t, g, seats)
	if g.State != StateDealTurn {
		t.Fatalf("run-out should advance to DEAL_TURN with no betting, got %s", g.State)
	}
	deal(t, g, seats, "Jc")
	closeAfterDeal(t, g, seats)
	if g.State != StateDealRiver {
		t.Fatalf("run-out should advance to DEAL_RIVER, got %s", g.State)
	}
	deal(t, g, seats, "5d")
	closeAfterDeal(t, g, seats)

	if g.State != StateShowdown || !g.IsCompleted {
		t.Fatalf("run-out should end in SHOWDOWN, got %s", g.State)
	}
	if seats[0].BuyIn != 400 {
		t.Errorf("s0's aces should win everything, got %d", seats[0].BuyIn)
	}
	if seats[1].Status != SeatEliminated {
		t.Errorf("busted seat should be eliminated, got %s", seats[1].Status)
	}

	// One funded seat left: the next hand cannot start.
	if _, _, err := StartHand(testTable(), g, seats, testNow); !IsKind(err, KindInvalidState) {
		t.Errorf("expected InvalidState starting with one funded seat, got %v", err)
	}
}

// A pre-flop fold leaves one contender: the pot is won uncontested with no
// hand evaluation and the winner's cards stay private.
func TestFoldOutWinsUncontested(t *testing.T) {
	seats := []*Seat{
		testSeat("s0", 0, 200, 200, SeatActive),
		testSeat("s1", 1, 200, 200, SeatActive),
	}
	g, _, err := StartHand(testTable(), nil, seats, testNow)
	if err != nil {
		t.Fatal(err)
	}
	deal(t, g, seats, "Ks") // s1
	deal(t, g, seats, "As") // s0
	deal(t, g, seats, "Kd") // s1
	deal(t, g, seats, "Ad") // s0

	if _, err := ApplyBetting(g, seats, "s0", BetFold, 0, testNow); err != nil {
		t.Fatal(err)
	}
	res, err := MaybeCloseRound(g, seats)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Showdown {
		t.Fatal("a fold leaving one contender should end the hand")
	}
	if seats[1].BuyIn != 205 {
		t.Errorf("s1 should collect both blinds, got %d", seats[1].BuyIn)
	}
	if seats[1].HandType != "" {
		t.Errorf("an uncontested win must not reveal a hand type, got %q", seats[1].HandType)
	}
	if sumStacks(seats) != 400 {
		t.Errorf("chips must be conserved, got %d", sumStacks(seats))
	}
}

func TestDuplicateCardRejected(t *testing.T) {
	seats := []*Seat{
		testSeat("s0", 0, 300, 300, SeatActive),
		testSeat("s1", 1, 300, 300, SeatActive),
		testSeat("s2", 2, 300, 300, SeatActive),
	}
	g, _, err := StartHand(testTable(), nil, seats, testNow)
	if err != nil {
		t.Fatal(err)
	}
	deal(t, g, seats, "As")

	assignedBefore := g.AssignedSeatID
	_, err = DealCard(g, seats, "As", testNow)
	if !IsKind(err, KindDuplicateCard) {
		t.Fatalf("expected DuplicateCard, got %v", err)
	}
	if g.AssignedSeatID != assignedBefore {
		t.Error("a rejected card must not advance the deal")
	}
	total := 0
	for _, s := range seats {
		total += len(s.Cards)
	}
	if total != 1 {
		t.Errorf("exactly one card should have been dealt, got %d", total)
	}
}

func TestResetTableRestoresStacks(t *testing.T) {
	seats := []*Seat{
		testSeat("s0", 0, 300, 300, SeatActive),
		testSeat("s1", 1, 300, 300, SeatActive),
		testSeat("s2", 2, 300, 300, SeatActive),
	}
	g, _, err := StartHand(testTable(), nil, seats, testNow)
	if err != nil {
		t.Fatal(err)
	}
	for _, code := range []string{"As", "Ks", "Qs", "Js", "Ts", "9s"} {
		deal(t, g, seats, code)
	}
	act(t, g, seats, "s0", BetRaise, 50)

	ev, err := ResetTable(g, seats)
	if err != nil {
		t.Fatal(err)
	}
	if !g.IsCompleted {
		t.Error("reset should complete the game")
	}
	if ev.Type != EventEndGame {
		t.Errorf("reset should emit END_GAME, got %s", ev.Type)
	}
	for _, s := range seats {
		if s.BuyIn != 300 {
			t.Errorf("seat %s stack should be restored to 300, got %d", s.ID, s.BuyIn)
		}
		if len(s.Cards) != 0 || s.CurrentBet != 0 {
			t.Errorf("seat %s per-hand state should be cleared", s.ID)
		}
	}
}
