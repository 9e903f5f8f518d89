package poker

import (
	"time"

	"github.com/feltcraft/dealerd/pkg/cards"
)

// Role distinguishes the two caller roles the engine authorizes against.
type Role string

const (
	RolePlayer Role = "player"
	RoleDealer Role = "dealer"
)

// SeatStatus tracks a seat's participation in the current hand.
type SeatStatus string

const (
	SeatActive     SeatStatus = "active"
	SeatAllIn      SeatStatus = "all-in"
	SeatFolded     SeatStatus = "folded"
	SeatEliminated SeatStatus = "eliminated"
)

// GameState is the hand state machine's current phase.
type GameState string

const (
	StateDealHoleCards GameState = "DEAL_HOLE_CARDS"
	StateBetting       GameState = "BETTING"
	StateDealFlop      GameState = "DEAL_FLOP"
	StateDealTurn      GameState = "DEAL_TURN"
	StateDealRiver     GameState = "DEAL_RIVER"
	StateShowdown      GameState = "SHOWDOWN"
)

// LastAction records the most recent betting action a seat took this round.
const (
	ActionRaise = "RAISE"
	ActionCall  = "CALL"
	ActionCheck = "CHECK"
	ActionFold  = "FOLD"
)

// User is an account that can own a table (dealer) or occupy a seat (player).
// Balance is the bank balance in chips, debited on join and refunded on
// leave or kick. It never goes negative.
type User struct {
	ID      string
	Name    string
	Role    Role
	Balance int64
}

// Table is a poker table owned by a dealer. Blind step fields drive the
// blind multiplier applied at hand start; enforcement of the timer itself
// is external.
type Table struct {
	ID               string
	Name             string
	DealerID         string
	SmallBlind       int64
	BigBlind         int64
	MinBuyIn         int64
	MaxBuyIn         int64
	MaxSeats         int
	BlindStepSeconds int64
	BlindStartedAt   *time.Time
	CreatedAt        time.Time
}

// BlindMultiplier returns the blind level multiplier at the given instant:
// 1 before the timer starts, then one step per elapsed BlindStepSeconds.
func (t *Table) BlindMultiplier(now time.Time) int64 {
	if t.BlindStartedAt == nil || t.BlindStepSeconds <= 0 {
		return 1
	}
	elapsed := int64(now.Sub(*t.BlindStartedAt).Seconds())
	if elapsed < 0 {
		return 1
	}
	return 1 + elapsed/t.BlindStepSeconds
}

// Seat is a player's position at a table. BuyIn is the live stack,
// StartingBalance the stack at hand start, CurrentBet the chips committed
// in the open betting round. Bets and blinds debit BuyIn the moment they
// are made, so StartingBalance - BuyIn is the cumulative contribution at
// any point in the hand.
type Seat struct {
	ID         string
	TableID    string
	PlayerID   string
	SeatNumber int

	BuyIn           int64
	StartingBalance int64
	CurrentBet      int64
	Cards           []cards.Card
	Status          SeatStatus
	LastAction      string

	// Showdown results, cleared at hand start.
	HandType        string
	HandDescription string
	WinAmount       int64
	WinningCards    []cards.Card
}

// Contribution is the seat's cumulative chip contribution since hand start.
// Valid after the final bet merge (CurrentBet == 0).
func (s *Seat) Contribution() int64 {
	return s.StartingBalance - s.BuyIn
}

// InHand reports whether the seat still contests the pot.
func (s *Seat) InHand() bool {
	return s.Status == SeatActive || s.Status == SeatAllIn
}

// Game is one hand of play at a table. At most one game per table has
// IsCompleted == false.
type Game struct {
	ID          string
	TableID     string
	State       GameState
	IsCompleted bool

	DealerButtonSeatID string
	AssignedSeatID     string

	CommunityCards []cards.Card
	PotTotal       int64

	BetCount         int
	RequiredBetCount int

	EffectiveSmallBlind int64
	EffectiveBigBlind   int64

	TurnStartTime *time.Time
	SidePots      []SidePot

	CreatedAt time.Time
}

// SidePot is one layer of the pot, restricted to seats that contributed at
// least its upper bet level. Contributors includes folded and eliminated
// seats; Eligible does not.
type SidePot struct {
	PotNumber    int         `json:"potNumber"`
	Amount       int64       `json:"amount"`
	RangeFrom    int64       `json:"rangeFrom"`
	RangeTo      int64       `json:"rangeTo"`
	Contributors []string    `json:"contributors"`
	Eligible     []string    `json:"eligible"`
	Winners      []PotWinner `json:"winners"`
}

// PotWinner records one seat's share of one pot at showdown.
type PotWinner struct {
	SeatID   string       `json:"seatId"`
	Amount   int64        `json:"amount"`
	HandType string       `json:"handType,omitempty"`
	Cards    []cards.Card `json:"cards,omitempty"`
}

// Device is a registered piece of table hardware, resolved by serial when
// scan messages arrive.
type Device struct {
	ID         string
	TableID    string
	Serial     string
	Kind       string
	LastSeenAt time.Time
}

// DeviceKindScanner is the only device kind the scan ingester accepts.
const DeviceKindScanner = "scanner"
