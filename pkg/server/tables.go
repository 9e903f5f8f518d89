package server

import (
	"context"

	"github.com/google/uuid"

	"github.com/feltcraft/dealerd/pkg/poker"
	"github.com/feltcraft/dealerd/pkg/server/internal/db"
)

// TableParams are the dealer-chosen settings for a new table.
type TableParams struct {
	Name             string
	SmallBlind       int64
	BigBlind         int64
	MinBuyIn         int64
	MaxBuyIn         int64
	MaxSeats         int
	BlindStepSeconds int64
}

// CreateUser registers an account. Balance is the opening bank balance.
func (s *Server) CreateUser(ctx context.Context, u *poker.User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.Role != poker.RoleDealer {
		u.Role = poker.RolePlayer
	}
	tx, err := s.store.BeginGlobal(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := tx.UpsertUser(u); err != nil {
		return err
	}
	return tx.Commit()
}

// CreateTable opens a new table owned by the dealer.
func (s *Server) CreateTable(ctx context.Context, dealerID string, params TableParams) (*poker.Table, error) {
	if params.SmallBlind <= 0 || params.BigBlind < params.SmallBlind {
		return nil, poker.E(poker.KindInvalidState, "blinds %d/%d are not valid", params.SmallBlind, params.BigBlind)
	}
	if params.MaxSeats < 2 {
		return nil, poker.E(poker.KindInvalidState, "a table needs at least 2 seats, got %d", params.MaxSeats)
	}
	if params.MinBuyIn <= 0 || params.MaxBuyIn < params.MinBuyIn {
		return nil, poker.E(poker.KindInvalidState, "buy-in range %d..%d is not valid", params.MinBuyIn, params.MaxBuyIn)
	}

	tbl := &poker.Table{
		ID:               uuid.NewString(),
		Name:             params.Name,
		DealerID:         dealerID,
		SmallBlind:       params.SmallBlind,
		BigBlind:         params.BigBlind,
		MinBuyIn:         params.MinBuyIn,
		MaxBuyIn:         params.MaxBuyIn,
		MaxSeats:         params.MaxSeats,
		BlindStepSeconds: params.BlindStepSeconds,
		CreatedAt:        s.clock.Now().UTC(),
	}

	tx, err := s.store.BeginGlobal(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	dealer, err := tx.GetUser(dealerID)
	if err != nil {
		return nil, err
	}
	if dealer.Role != poker.RoleDealer {
		return nil, poker.E(poker.KindForbidden, "user %s is not a dealer", dealerID)
	}
	if err := tx.InsertTable(tbl); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	s.log.Infof("Dealer %s created table %s (%s)", dealerID, tbl.ID, tbl.Name)
	return tbl, nil
}

// ListTables returns every table id.
func (s *Server) ListTables(ctx context.Context) ([]string, error) {
	tx, err := s.store.BeginGlobal(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()
	ids, err := tx.ListTableIDs()
	if err != nil {
		return nil, err
	}
	return ids, tx.Commit()
}

// JoinTable seats a player at the smallest free seat number, moving buyIn
// chips from their bank balance onto the table. Joining is rejected while a
// hand is in progress.
func (s *Server) JoinTable(ctx context.Context, tableID, playerID string, buyIn int64) (*poker.Seat, error) {
	var seat *poker.Seat
	err := s.withTableTx(ctx, tableID, func(tx *db.Tx) error {
		tbl, err := tx.GetTable(tableID)
		if err != nil {
			return err
		}
		user, err := tx.GetUser(playerID)
		if err != nil {
			return err
		}
		if buyIn < tbl.MinBuyIn || buyIn > tbl.MaxBuyIn {
			return poker.E(poker.KindInvalidState, "buy-in %d outside table range %d..%d", buyIn, tbl.MinBuyIn, tbl.MaxBuyIn)
		}
		if user.Balance < buyIn {
			return poker.E(poker.KindInsufficientBalance, "user %s has %d, needs %d", playerID, user.Balance, buyIn)
		}

		seated, err := tx.PlayerSeated(playerID)
		if err != nil {
			return err
		}
		if seated {
			return poker.E(poker.KindJoined, "player %s already occupies a seat", playerID)
		}

		game, err := tx.ActiveGame(tableID)
		if err != nil {
			return err
		}
		if game != nil {
			return poker.E(poker.KindInvalidState, "table %s has a hand in progress; join between hands", tableID)
		}

		seats, err := tx.SeatsByTable(tableID)
		if err != nil {
			return err
		}
		seatNumber := smallestFreeSeat(seats, tbl.MaxSeats)
		if seatNumber < 0 {
			return poker.E(poker.KindTableFull, "table %s has all %d seats taken", tableID, tbl.MaxSeats)
		}

		if err := tx.AdjustUserBalance(playerID, -buyIn); err != nil {
			return err
		}
		seat = &poker.Seat{
			ID:              uuid.NewString(),
			TableID:         tableID,
			PlayerID:        playerID,
			SeatNumber:      seatNumber,
			BuyIn:           buyIn,
			StartingBalance: buyIn,
			Status:          poker.SeatActive,
		}
		return tx.InsertSeat(seat)
	})
	if err != nil {
		return nil, err
	}
	s.notifyTable(tableID)
	return seat, nil
}

// smallestFreeSeat returns the lowest unoccupied seat number, or -1 when
// the table is full.
func smallestFreeSeat(seats []*poker.Seat, maxSeats int) int {
	used := make(map[int]bool, len(seats))
	for _, s := range seats {
		used[s.SeatNumber] = true
	}
	for n := 0; n < maxSeats; n++ {
		if !used[n] {
			return n
		}
	}
	return -1
}

// LeaveTable stands a player up and refunds their stack to the bank. A seat
// still contesting an active hand must fold first.
func (s *Server) LeaveTable(ctx context.Context, tableID, playerID string) error {
	err := s.withTableTx(ctx, tableID, func(tx *db.Tx) error {
		seat, err := tx.SeatByPlayer(tableID, playerID)
		if err != nil {
			return err
		}
		if err := seatMayVacate(tx, tableID, seat); err != nil {
			return err
		}
		if seat.BuyIn > 0 {
			if err := tx.AdjustUserBalance(playerID, seat.BuyIn); err != nil {
				return err
			}
		}
		return tx.DeleteSeat(seat.ID)
	})
	if err != nil {
		return err
	}
	s.notifyTable(tableID)
	return nil
}

// RemovePlayer is the dealer kicking a seat. The stack is refunded to the
// player's bank.
func (s *Server) RemovePlayer(ctx context.Context, tableID, dealerID, seatID string) error {
	err := s.withTableTx(ctx, tableID, func(tx *db.Tx) error {
		if _, err := requireDealer(tx, tableID, dealerID); err != nil {
			return err
		}
		seats, err := tx.SeatsByTable(tableID)
		if err != nil {
			return err
		}
		seat := poker.SeatByID(seats, seatID)
		if seat == nil {
			return poker.E(poker.KindNotFound, "seat %s not found at table %s", seatID, tableID)
		}
		if err := seatMayVacate(tx, tableID, seat); err != nil {
			return err
		}
		if seat.BuyIn > 0 {
			if err := tx.AdjustUserBalance(seat.PlayerID, seat.BuyIn); err != nil {
				return err
			}
		}
		return tx.DeleteSeat(seat.ID)
	})
	if err != nil {
		return err
	}
	s.notifyTable(tableID)
	return nil
}

// seatMayVacate rejects standing up while the seat still contests an active
// hand.
func seatMayVacate(tx *db.Tx, tableID string, seat *poker.Seat) error {
	game, err := tx.ActiveGame(tableID)
	if err != nil {
		return err
	}
	if game != nil && seat.InHand() {
		return poker.E(poker.KindInvalidState, "seat %d is still in the hand; fold first", seat.SeatNumber)
	}
	return nil
}

// StartHand begins the next hand. Dealer only.
func (s *Server) StartHand(ctx context.Context, tableID, dealerID string) (*poker.Game, error) {
	var game *poker.Game
	err := s.withTableTx(ctx, tableID, func(tx *db.Tx) error {
		tbl, err := requireDealer(tx, tableID, dealerID)
		if err != nil {
			return err
		}
		seats, err := tx.SeatsByTable(tableID)
		if err != nil {
			return err
		}
		prev, err := tx.LatestGame(tableID)
		if err != nil {
			return err
		}

		now := s.clock.Now().UTC()
		if tbl.BlindStepSeconds > 0 && tbl.BlindStartedAt == nil {
			// The blind timer starts ticking with the first hand.
			tbl.BlindStartedAt = &now
			if err := tx.UpdateTable(tbl); err != nil {
				return err
			}
		}

		g, ev, err := poker.StartHand(tbl, prev, seats, now)
		if err != nil {
			return err
		}
		g.ID = uuid.NewString()
		ev.GameID = g.ID

		if err := tx.InsertGame(g); err != nil {
			return err
		}
		if err := tx.UpdateSeats(seats); err != nil {
			return err
		}
		if err := tx.AppendEvent(&ev); err != nil {
			return err
		}
		game = g
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.HandsStarted.Inc()
	s.notifyTable(tableID)
	return game, nil
}

// ResetTable abandons the current hand and restores every stack to its
// hand-start value. Dealer only.
func (s *Server) ResetTable(ctx context.Context, tableID, dealerID string) error {
	err := s.withTableTx(ctx, tableID, func(tx *db.Tx) error {
		if _, err := requireDealer(tx, tableID, dealerID); err != nil {
			return err
		}
		game, err := tx.ActiveGame(tableID)
		if err != nil {
			return err
		}
		if game == nil {
			game, err = tx.LatestGame(tableID)
			if err != nil {
				return err
			}
		}
		seats, err := tx.SeatsByTable(tableID)
		if err != nil {
			return err
		}
		ev, err := poker.ResetTable(game, seats)
		if err != nil {
			return err
		}
		if err := tx.UpdateGame(game); err != nil {
			return err
		}
		if err := tx.UpdateSeats(seats); err != nil {
			return err
		}
		return tx.AppendEvent(&ev)
	})
	if err != nil {
		return err
	}
	s.log.Warnf("Table %s was reset by dealer %s", tableID, dealerID)
	s.notifyTable(tableID)
	return nil
}

// RegisterDevice binds a scanner serial to a table. Dealer only.
func (s *Server) RegisterDevice(ctx context.Context, dealerID string, dev *poker.Device) error {
	if dev.Kind != poker.DeviceKindScanner {
		return poker.E(poker.KindDeviceMisconfigured, "unsupported device kind %q", dev.Kind)
	}
	if dev.ID == "" {
		dev.ID = uuid.NewString()
	}
	return s.withTableTx(ctx, dev.TableID, func(tx *db.Tx) error {
		if _, err := requireDealer(tx, dev.TableID, dealerID); err != nil {
			return err
		}
		return tx.UpsertDevice(dev)
	})
}
