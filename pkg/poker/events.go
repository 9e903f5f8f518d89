package poker

import (
	"encoding/json"
	"time"

	"github.com/feltcraft/dealerd/pkg/cards"
)

// EventType identifies an append-only game event.
type EventType string

const (
	EventStartGame EventType = "START_GAME"
	EventRaise     EventType = "RAISE"
	EventCall      EventType = "CALL"
	EventCheck     EventType = "CHECK"
	EventFold      EventType = "FOLD"
	EventFlop      EventType = "FLOP"
	EventTurn      EventType = "TURN"
	EventRiver     EventType = "RIVER"
	EventEndGame   EventType = "END_GAME"
)

// Event is one row of the append-only event log. ID is assigned by the
// store's monotonic sequence on insert; GameID is empty for table-level
// events.
type Event struct {
	ID        int64
	TableID   string
	GameID    string
	Type      EventType
	Details   json.RawMessage
	CreatedAt time.Time
}

// StartGamePayload is the START_GAME event body.
type StartGamePayload struct {
	DealerButtonSeatID string `json:"dealerButtonSeatId"`
}

// BetPayload is the RAISE/CALL/CHECK event body. Total is the seat's
// current-round bet after the action.
type BetPayload struct {
	SeatID string `json:"seatId"`
	Total  int64  `json:"total"`
}

// FoldPayload is the FOLD event body.
type FoldPayload struct {
	SeatID string `json:"seatId"`
}

// CommunityPayload is the FLOP/TURN/RIVER event body: the full community
// snapshot after the street, not the delta.
type CommunityPayload struct {
	CommunityAll []cards.Card `json:"communityAll"`
}

// EndGamePayload is the END_GAME event body.
type EndGamePayload struct {
	Winners []PotWinner `json:"winners"`
}

// NewEvent marshals and validates a typed payload into an Event ready for
// insertion.
func NewEvent(tableID, gameID string, typ EventType, payload interface{}) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	ev := Event{TableID: tableID, GameID: gameID, Type: typ, Details: raw}
	if err := ValidateDetails(typ, raw); err != nil {
		return Event{}, err
	}
	return ev, nil
}

// ValidateDetails checks an event body against its per-type schema. The
// store runs this before every insert so the log never carries a malformed
// payload.
func ValidateDetails(typ EventType, raw json.RawMessage) error {
	switch typ {
	case EventStartGame:
		var p StartGamePayload
		if err := strictUnmarshal(raw, &p); err != nil {
			return err
		}
		if p.DealerButtonSeatID == "" {
			return E(KindInvalidState, "START_GAME details missing dealerButtonSeatId")
		}
	case EventRaise:
		var p BetPayload
		if err := strictUnmarshal(raw, &p); err != nil {
			return err
		}
		if p.SeatID == "" || p.Total <= 0 {
			return E(KindInvalidState, "RAISE details require seatId and total > 0")
		}
	case EventCall, EventCheck:
		var p BetPayload
		if err := strictUnmarshal(raw, &p); err != nil {
			return err
		}
		if p.SeatID == "" || p.Total < 0 {
			return E(KindInvalidState, "%s details require seatId and total >= 0", typ)
		}
	case EventFold:
		var p FoldPayload
		if err := strictUnmarshal(raw, &p); err != nil {
			return err
		}
		if p.SeatID == "" {
			return E(KindInvalidState, "FOLD details missing seatId")
		}
	case EventFlop, EventTurn, EventRiver:
		var p CommunityPayload
		if err := strictUnmarshal(raw, &p); err != nil {
			return err
		}
		want := map[EventType]int{EventFlop: 3, EventTurn: 4, EventRiver: 5}[typ]
		if len(p.CommunityAll) != want {
			return E(KindInvalidState, "%s details must carry %d community cards, got %d", typ, want, len(p.CommunityAll))
		}
	case EventEndGame:
		var p EndGamePayload
		if err := strictUnmarshal(raw, &p); err != nil {
			return err
		}
		for _, w := range p.Winners {
			if w.SeatID == "" || w.Amount < 0 {
				return E(KindInvalidState, "END_GAME winner entries require seatId and amount >= 0")
			}
		}
	default:
		return E(KindInvalidState, "unknown event type %q", typ)
	}
	return nil
}

func strictUnmarshal(raw json.RawMessage, v interface{}) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return Wrap(KindInvalidState, err, "malformed event details")
	}
	return nil
}
