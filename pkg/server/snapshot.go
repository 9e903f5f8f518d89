package server

import (
	"context"
	"time"

	"github.com/feltcraft/dealerd/pkg/cards"
	"github.com/feltcraft/dealerd/pkg/poker"
)

// TableSnapshot is the client-facing view of a table, redacted for one
// viewer. LastEventID lets the client resume the event stream from the
// exact point the snapshot was taken.
type TableSnapshot struct {
	TableID     string     `json:"tableId"`
	Name        string     `json:"name"`
	DealerID    string     `json:"dealerId"`
	SmallBlind  int64      `json:"smallBlind"`
	BigBlind    int64      `json:"bigBlind"`
	MaxSeats    int        `json:"maxSeats"`
	Seats       []SeatView `json:"seats"`
	Game        *GameView  `json:"game,omitempty"`
	LastEventID int64      `json:"lastEventId"`
}

// SeatView is one seat as a given viewer may see it. Hole cards belonging
// to other players are replaced by the face-down placeholder until
// showdown.
type SeatView struct {
	ID              string           `json:"id"`
	SeatNumber      int              `json:"seatNumber"`
	PlayerID        string           `json:"playerId"`
	BuyIn           int64            `json:"buyIn"`
	StartingBalance int64            `json:"startingBalance"`
	CurrentBet      int64            `json:"currentBet"`
	Cards           []cards.Card     `json:"cards"`
	Status          poker.SeatStatus `json:"status"`
	LastAction      string           `json:"lastAction,omitempty"`
	HandType        string           `json:"handType,omitempty"`
	WinAmount       int64            `json:"winAmount,omitempty"`
	WinningCards    []cards.Card     `json:"winningCards,omitempty"`
}

// GameView is the hand in progress (or the last completed one).
type GameView struct {
	ID                  string          `json:"id"`
	State               poker.GameState `json:"state"`
	IsCompleted         bool            `json:"isCompleted"`
	DealerButtonSeatID  string          `json:"dealerButtonSeatId"`
	AssignedSeatID      string          `json:"assignedSeatId"`
	CommunityCards      []cards.Card    `json:"communityCards"`
	PotTotal            int64           `json:"potTotal"`
	BetCount            int             `json:"betCount"`
	RequiredBetCount    int             `json:"requiredBetCount"`
	EffectiveSmallBlind int64           `json:"effectiveSmallBlind"`
	EffectiveBigBlind   int64           `json:"effectiveBigBlind"`
	TurnStartTime       *time.Time      `json:"turnStartTime,omitempty"`
	SidePots            []poker.SidePot `json:"sidePots,omitempty"`
}

// Snapshot renders the table for one viewer. The viewer sees their own
// hole cards; everyone else's stay face down until the hand reaches
// showdown, where every non-folded hand is revealed.
func (s *Server) Snapshot(ctx context.Context, tableID, viewerID string) (*TableSnapshot, error) {
	tx, err := s.store.BeginGlobal(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	tbl, err := tx.GetTable(tableID)
	if err != nil {
		return nil, err
	}
	seats, err := tx.SeatsByTable(tableID)
	if err != nil {
		return nil, err
	}
	game, err := tx.LatestGame(tableID)
	if err != nil {
		return nil, err
	}
	lastEventID, err := tx.LastEventID(tableID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	snap := &TableSnapshot{
		TableID:     tbl.ID,
		Name:        tbl.Name,
		DealerID:    tbl.DealerID,
		SmallBlind:  tbl.SmallBlind,
		BigBlind:    tbl.BigBlind,
		MaxSeats:    tbl.MaxSeats,
		Seats:       make([]SeatView, 0, len(seats)),
		LastEventID: lastEventID,
	}

	atShowdown := game != nil && game.State == poker.StateShowdown
	runOut := game != nil && !game.IsCompleted && allInRunOut(seats)
	for _, seat := range seats {
		view := SeatView{
			ID:              seat.ID,
			SeatNumber:      seat.SeatNumber,
			PlayerID:        seat.PlayerID,
			BuyIn:           seat.BuyIn,
			StartingBalance: seat.StartingBalance,
			CurrentBet:      seat.CurrentBet,
			Status:          seat.Status,
			LastAction:      seat.LastAction,
		}
		reveal := seat.PlayerID == viewerID ||
			(atShowdown && seat.Status != poker.SeatFolded) ||
			(runOut && seat.InHand())
		view.Cards = redactCards(seat.Cards, reveal)
		if atShowdown {
			view.HandType = seat.HandType
			view.WinAmount = seat.WinAmount
			view.WinningCards = seat.WinningCards
		}
		snap.Seats = append(snap.Seats, view)
	}

	if game != nil {
		snap.Game = &GameView{
			ID:                  game.ID,
			State:               game.State,
			IsCompleted:         game.IsCompleted,
			DealerButtonSeatID:  game.DealerButtonSeatID,
			AssignedSeatID:      game.AssignedSeatID,
			CommunityCards:      game.CommunityCards,
			PotTotal:            game.PotTotal,
			BetCount:            game.BetCount,
			RequiredBetCount:    game.RequiredBetCount,
			EffectiveSmallBlind: game.EffectiveSmallBlind,
			EffectiveBigBlind:   game.EffectiveBigBlind,
			TurnStartTime:       game.TurnStartTime,
			SidePots:            game.SidePots,
		}
	}
	return snap, nil
}

// allInRunOut reports whether every seat still contesting the hand is
// all-in. No betting remains, so the contenders' cards are open while the
// board runs out.
func allInRunOut(seats []*poker.Seat) bool {
	contenders := 0
	for _, s := range seats {
		if !s.InHand() {
			continue
		}
		if s.Status != poker.SeatAllIn {
			return false
		}
		contenders++
	}
	return contenders > 0
}

func redactCards(cs []cards.Card, reveal bool) []cards.Card {
	out := make([]cards.Card, len(cs))
	for i, c := range cs {
		if reveal {
			out[i] = c
		} else {
			out[i] = cards.Hidden
		}
	}
	return out
}

// EventsSince returns the table's event log after the given id, capped at
// limit rows. The delta covers the active hand plus table-level events;
// completed games are snapshot territory.
func (s *Server) EventsSince(ctx context.Context, tableID string, afterID int64, limit int) ([]poker.Event, error) {
	tx, err := s.store.BeginGlobal(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()
	var gameID string
	game, err := tx.ActiveGame(tableID)
	if err != nil {
		return nil, err
	}
	if game != nil {
		gameID = game.ID
	}
	evs, err := tx.EventsSince(tableID, gameID, afterID, limit)
	if err != nil {
		return nil, err
	}
	return evs, tx.Commit()
}
