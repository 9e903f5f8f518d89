package server

import (
	"context"

	"github.com/feltcraft/dealerd/pkg/cards"
	"github.com/feltcraft/dealerd/pkg/poker"
	"github.com/feltcraft/dealerd/pkg/server/internal/db"
)

// PlayerAction applies one betting action for the player's seat and runs
// the round-close evaluator. Re-submitting after the turn moved on fails
// with WrongTurn and changes nothing, so duplicate deliveries are safe.
func (s *Server) PlayerAction(ctx context.Context, tableID, playerID string, action poker.BetAction, raiseAmount int64) error {
	var showdown bool
	err := s.withTableTx(ctx, tableID, func(tx *db.Tx) error {
		showdown = false
		game, err := tx.ActiveGame(tableID)
		if err != nil {
			return err
		}
		if game == nil {
			return poker.E(poker.KindInvalidState, "table %s has no hand in progress", tableID)
		}
		seats, err := tx.SeatsByTable(tableID)
		if err != nil {
			return err
		}
		seat, err := tx.SeatByPlayer(tableID, playerID)
		if err != nil {
			return err
		}

		ev, err := poker.ApplyBetting(game, seats, seat.ID, action, raiseAmount, s.clock.Now().UTC())
		if err != nil {
			return err
		}
		events := []poker.Event{ev}

		res, err := poker.MaybeCloseRound(game, seats)
		if err != nil {
			if poker.IsKind(err, poker.KindConservationError) {
				s.metrics.ConservationFailures.Inc()
			}
			return err
		}
		events = append(events, res.Events...)
		showdown = res.Showdown

		if err := tx.UpdateGame(game); err != nil {
			return err
		}
		if err := tx.UpdateSeats(seats); err != nil {
			return err
		}
		_, err = tx.AppendEvents(events)
		return err
	})
	if err != nil {
		return err
	}
	s.metrics.Actions.WithLabelValues(string(action)).Inc()
	if showdown {
		s.metrics.HandsCompleted.Inc()
	}
	s.notifyTable(tableID)
	return nil
}

// DealCard is the dealer keying a card in by hand.
func (s *Server) DealCard(ctx context.Context, tableID, dealerID string, card cards.Card) error {
	var showdown bool
	err := s.withTableTx(ctx, tableID, func(tx *db.Tx) error {
		if _, err := requireDealer(tx, tableID, dealerID); err != nil {
			return err
		}
		var err error
		showdown, err = s.applyDeal(tx, tableID, card)
		return err
	})
	if err != nil {
		if poker.IsKind(err, poker.KindDuplicateCard) {
			s.metrics.DuplicateCards.Inc()
		}
		return err
	}
	if showdown {
		s.metrics.HandsCompleted.Inc()
	}
	s.notifyTable(tableID)
	return nil
}

// DealScannedCard is the hardware scan path: the device serial resolves to
// the table, so no caller identity is involved.
func (s *Server) DealScannedCard(ctx context.Context, serial string, card cards.Card) error {
	var tableID string
	var showdown bool
	err := s.withDeviceTx(ctx, serial, func(tx *db.Tx, dev *poker.Device) error {
		tableID = dev.TableID
		if err := tx.TouchDevice(serial, s.clock.Now().UTC()); err != nil {
			return err
		}
		var err error
		showdown, err = s.applyDeal(tx, dev.TableID, card)
		return err
	})
	if err != nil {
		if poker.IsKind(err, poker.KindDuplicateCard) {
			s.metrics.DuplicateCards.Inc()
		}
		return err
	}
	if showdown {
		s.metrics.HandsCompleted.Inc()
	}
	s.notifyTable(tableID)
	return nil
}

// withDeviceTx resolves a scanner serial to its table, then runs fn inside
// that table's transaction. The device row is re-read inside the table
// transaction so a concurrent re-bind cannot route the card to a stale
// table.
func (s *Server) withDeviceTx(ctx context.Context, serial string, fn func(tx *db.Tx, dev *poker.Device) error) error {
	lookup, err := s.store.BeginGlobal(ctx)
	if err != nil {
		return err
	}
	dev, err := lookup.DeviceBySerial(serial)
	lookup.Rollback()
	if err != nil {
		return err
	}
	if dev.Kind != poker.DeviceKindScanner {
		return poker.E(poker.KindDeviceMisconfigured, "device %s is a %s, not a scanner", serial, dev.Kind)
	}

	return s.withTableTx(ctx, dev.TableID, func(tx *db.Tx) error {
		fresh, err := tx.DeviceBySerial(serial)
		if err != nil {
			return err
		}
		if fresh.TableID != dev.TableID {
			return poker.E(poker.KindStoreConflict, "device %s moved tables mid-operation", serial)
		}
		return fn(tx, fresh)
	})
}

// applyDeal feeds one card into the hand state machine and persists the
// result, including any round close the deal triggered (an all-in run-out
// closes the round with no betting).
func (s *Server) applyDeal(tx *db.Tx, tableID string, card cards.Card) (bool, error) {
	game, err := tx.ActiveGame(tableID)
	if err != nil {
		return false, err
	}
	if game == nil {
		return false, poker.E(poker.KindInvalidState, "table %s has no hand in progress", tableID)
	}
	seats, err := tx.SeatsByTable(tableID)
	if err != nil {
		return false, err
	}

	ev, err := poker.DealCard(game, seats, card, s.clock.Now().UTC())
	if err != nil {
		return false, err
	}
	var events []poker.Event
	if ev != nil {
		events = append(events, *ev)
	}

	res, err := poker.MaybeCloseRound(game, seats)
	if err != nil {
		if poker.IsKind(err, poker.KindConservationError) {
			s.metrics.ConservationFailures.Inc()
		}
		return false, err
	}
	events = append(events, res.Events...)

	if err := tx.UpdateGame(game); err != nil {
		return false, err
	}
	if err := tx.UpdateSeats(seats); err != nil {
		return false, err
	}
	if _, err := tx.AppendEvents(events); err != nil {
		return false, err
	}
	return res.Showdown, nil
}
