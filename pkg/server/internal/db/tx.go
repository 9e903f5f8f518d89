package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/feltcraft/dealerd/pkg/cards"
	"github.com/feltcraft/dealerd/pkg/poker"
)

func marshalCards(cs []cards.Card) string {
	if cs == nil {
		cs = []cards.Card{}
	}
	raw, _ := json.Marshal(cs)
	return string(raw)
}

func unmarshalCards(raw string, dst *[]cards.Card) error {
	if raw == "" || raw == "[]" {
		*dst = nil
		return nil
	}
	return json.Unmarshal([]byte(raw), dst)
}

// GetUser loads one user row.
func (t *Tx) GetUser(id string) (*poker.User, error) {
	u := &poker.User{}
	err := t.queryRow(`SELECT id, name, role, balance FROM users WHERE id = ?`, id).
		Scan(&u.ID, &u.Name, &u.Role, &u.Balance)
	if err == sql.ErrNoRows {
		return nil, poker.E(poker.KindNotFound, "user %s not found", id)
	}
	if err != nil {
		return nil, mapError(err, "failed to get user %s", id)
	}
	return u, nil
}

// UpsertUser inserts or updates a user account.
func (t *Tx) UpsertUser(u *poker.User) error {
	_, err := t.exec(`
		INSERT INTO users (id, name, role, balance) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, role = excluded.role, balance = excluded.balance`,
		u.ID, u.Name, string(u.Role), u.Balance)
	return mapError(err, "failed to upsert user %s", u.ID)
}

// AdjustUserBalance applies a signed delta to a user's bank balance. The
// balance >= 0 schema check rejects overdrafts at the database layer; the
// caller is expected to have validated first and to treat a violation here
// as InsufficientBalance.
func (t *Tx) AdjustUserBalance(id string, delta int64) error {
	res, err := t.exec(`UPDATE users SET balance = balance + ? WHERE id = ?`, delta, id)
	if err != nil {
		if isCheckViolation(err) {
			return poker.Wrap(poker.KindInsufficientBalance, err, "user %s cannot afford %d", id, -delta)
		}
		return mapError(err, "failed to adjust balance of user %s by %d", id, delta)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return mapError(err, "failed to adjust balance of user %s", id)
	}
	if n == 0 {
		return poker.E(poker.KindNotFound, "user %s not found", id)
	}
	return nil
}

// InsertTable creates a table row.
func (t *Tx) InsertTable(tbl *poker.Table) error {
	_, err := t.exec(`
		INSERT INTO poker_tables (id, name, dealer_id, small_blind, big_blind, min_buy_in, max_buy_in,
			max_seats, blind_step_seconds, blind_started_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tbl.ID, tbl.Name, tbl.DealerID, tbl.SmallBlind, tbl.BigBlind, tbl.MinBuyIn, tbl.MaxBuyIn,
		tbl.MaxSeats, tbl.BlindStepSeconds, tbl.BlindStartedAt, tbl.CreatedAt)
	return mapError(err, "failed to insert table %s", tbl.ID)
}

// GetTable loads one table row.
func (t *Tx) GetTable(id string) (*poker.Table, error) {
	tbl := &poker.Table{}
	var started sql.NullTime
	err := t.queryRow(`
		SELECT id, name, dealer_id, small_blind, big_blind, min_buy_in, max_buy_in,
			max_seats, blind_step_seconds, blind_started_at, created_at
		FROM poker_tables WHERE id = ?`, id).
		Scan(&tbl.ID, &tbl.Name, &tbl.DealerID, &tbl.SmallBlind, &tbl.BigBlind, &tbl.MinBuyIn,
			&tbl.MaxBuyIn, &tbl.MaxSeats, &tbl.BlindStepSeconds, &started, &tbl.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, poker.E(poker.KindNotFound, "table %s not found", id)
	}
	if err != nil {
		return nil, mapError(err, "failed to get table %s", id)
	}
	if started.Valid {
		tbl.BlindStartedAt = &started.Time
	}
	return tbl, nil
}

// UpdateTable rewrites the mutable table columns.
func (t *Tx) UpdateTable(tbl *poker.Table) error {
	_, err := t.exec(`
		UPDATE poker_tables SET name = ?, small_blind = ?, big_blind = ?, min_buy_in = ?,
			max_buy_in = ?, max_seats = ?, blind_step_seconds = ?, blind_started_at = ?
		WHERE id = ?`,
		tbl.Name, tbl.SmallBlind, tbl.BigBlind, tbl.MinBuyIn, tbl.MaxBuyIn,
		tbl.MaxSeats, tbl.BlindStepSeconds, tbl.BlindStartedAt, tbl.ID)
	return mapError(err, "failed to update table %s", tbl.ID)
}

// ListTableIDs returns every table id, oldest first.
func (t *Tx) ListTableIDs() ([]string, error) {
	rows, err := t.query(`SELECT id FROM poker_tables ORDER BY created_at, id`)
	if err != nil {
		return nil, mapError(err, "failed to list tables")
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, mapError(err, "failed to scan table id")
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

const seatColumns = `id, table_id, seat_number, player_id, buy_in, starting_balance, current_bet,
	cards, status, last_action, hand_type, hand_description, win_amount, winning_cards`

func scanSeat(scan func(...interface{}) error) (*poker.Seat, error) {
	s := &poker.Seat{}
	var cardsRaw, winningRaw string
	err := scan(&s.ID, &s.TableID, &s.SeatNumber, &s.PlayerID, &s.BuyIn, &s.StartingBalance,
		&s.CurrentBet, &cardsRaw, &s.Status, &s.LastAction, &s.HandType, &s.HandDescription,
		&s.WinAmount, &winningRaw)
	if err != nil {
		return nil, err
	}
	if err := unmarshalCards(cardsRaw, &s.Cards); err != nil {
		return nil, fmt.Errorf("failed to decode cards of seat %s: %v", s.ID, err)
	}
	if err := unmarshalCards(winningRaw, &s.WinningCards); err != nil {
		return nil, fmt.Errorf("failed to decode winning cards of seat %s: %v", s.ID, err)
	}
	return s, nil
}

// SeatsByTable loads every seat at the table ordered by seat number. This
// ordering is the rotation order the engine depends on.
func (t *Tx) SeatsByTable(tableID string) ([]*poker.Seat, error) {
	rows, err := t.query(`SELECT `+seatColumns+` FROM seats WHERE table_id = ? ORDER BY seat_number`, tableID)
	if err != nil {
		return nil, mapError(err, "failed to load seats of table %s", tableID)
	}
	defer rows.Close()
	var seats []*poker.Seat
	for rows.Next() {
		s, err := scanSeat(rows.Scan)
		if err != nil {
			return nil, mapError(err, "failed to scan seat")
		}
		seats = append(seats, s)
	}
	return seats, rows.Err()
}

// PlayerSeated reports whether the player occupies a seat at any table.
func (t *Tx) PlayerSeated(playerID string) (bool, error) {
	var n int
	err := t.queryRow(`SELECT COUNT(*) FROM seats WHERE player_id = ?`, playerID).Scan(&n)
	if err != nil {
		return false, mapError(err, "failed to count seats of player %s", playerID)
	}
	return n > 0, nil
}

// SeatByPlayer finds the player's seat at the table, if any.
func (t *Tx) SeatByPlayer(tableID, playerID string) (*poker.Seat, error) {
	s, err := scanSeat(t.queryRow(`SELECT `+seatColumns+` FROM seats WHERE table_id = ? AND player_id = ?`,
		tableID, playerID).Scan)
	if err == sql.ErrNoRows {
		return nil, poker.E(poker.KindNotFound, "player %s has no seat at table %s", playerID, tableID)
	}
	if err != nil {
		return nil, mapError(err, "failed to get seat of player %s", playerID)
	}
	return s, nil
}

// InsertSeat creates a seat row. Unique constraints on (table_id,
// seat_number) and player_id enforce one body per chair and at most one
// chair per player across all tables.
func (t *Tx) InsertSeat(s *poker.Seat) error {
	_, err := t.exec(`
		INSERT INTO seats (`+seatColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.TableID, s.SeatNumber, s.PlayerID, s.BuyIn, s.StartingBalance, s.CurrentBet,
		marshalCards(s.Cards), string(s.Status), s.LastAction, s.HandType, s.HandDescription,
		s.WinAmount, marshalCards(s.WinningCards))
	return mapError(err, "failed to insert seat %s", s.ID)
}

// UpdateSeat rewrites every mutable seat column.
func (t *Tx) UpdateSeat(s *poker.Seat) error {
	_, err := t.exec(`
		UPDATE seats SET buy_in = ?, starting_balance = ?, current_bet = ?, cards = ?, status = ?,
			last_action = ?, hand_type = ?, hand_description = ?, win_amount = ?, winning_cards = ?
		WHERE id = ?`,
		s.BuyIn, s.StartingBalance, s.CurrentBet, marshalCards(s.Cards), string(s.Status),
		s.LastAction, s.HandType, s.HandDescription, s.WinAmount, marshalCards(s.WinningCards), s.ID)
	return mapError(err, "failed to update seat %s", s.ID)
}

// UpdateSeats persists a batch of seats.
func (t *Tx) UpdateSeats(seats []*poker.Seat) error {
	for _, s := range seats {
		if err := t.UpdateSeat(s); err != nil {
			return err
		}
	}
	return nil
}

// DeleteSeat removes a seat row.
func (t *Tx) DeleteSeat(id string) error {
	_, err := t.exec(`DELETE FROM seats WHERE id = ?`, id)
	return mapError(err, "failed to delete seat %s", id)
}

const gameColumns = `id, table_id, state, is_completed, dealer_button_seat_id, assigned_seat_id,
	community_cards, pot_total, bet_count, required_bet_count, effective_small_blind,
	effective_big_blind, turn_start_time, side_pots, created_at`

func scanGame(scan func(...interface{}) error) (*poker.Game, error) {
	g := &poker.Game{}
	var communityRaw, sidePotsRaw string
	var turnStart sql.NullTime
	err := scan(&g.ID, &g.TableID, &g.State, &g.IsCompleted, &g.DealerButtonSeatID,
		&g.AssignedSeatID, &communityRaw, &g.PotTotal, &g.BetCount, &g.RequiredBetCount,
		&g.EffectiveSmallBlind, &g.EffectiveBigBlind, &turnStart, &sidePotsRaw, &g.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := unmarshalCards(communityRaw, &g.CommunityCards); err != nil {
		return nil, fmt.Errorf("failed to decode community cards of game %s: %v", g.ID, err)
	}
	if sidePotsRaw != "" && sidePotsRaw != "[]" {
		if err := json.Unmarshal([]byte(sidePotsRaw), &g.SidePots); err != nil {
			return nil, fmt.Errorf("failed to decode side pots of game %s: %v", g.ID, err)
		}
	}
	if turnStart.Valid {
		g.TurnStartTime = &turnStart.Time
	}
	return g, nil
}

// LatestGame returns the table's most recent game, or nil when the table
// has never dealt a hand.
func (t *Tx) LatestGame(tableID string) (*poker.Game, error) {
	g, err := scanGame(t.queryRow(`SELECT `+gameColumns+` FROM games WHERE table_id = ?
		ORDER BY created_at DESC, id DESC LIMIT 1`, tableID).Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, mapError(err, "failed to get latest game of table %s", tableID)
	}
	return g, nil
}

// ActiveGame returns the table's uncompleted game, or nil.
func (t *Tx) ActiveGame(tableID string) (*poker.Game, error) {
	g, err := scanGame(t.queryRow(`SELECT `+gameColumns+` FROM games
		WHERE table_id = ? AND is_completed = FALSE
		ORDER BY created_at DESC, id DESC LIMIT 1`, tableID).Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, mapError(err, "failed to get active game of table %s", tableID)
	}
	return g, nil
}

func marshalSidePots(pots []poker.SidePot) string {
	if pots == nil {
		pots = []poker.SidePot{}
	}
	raw, _ := json.Marshal(pots)
	return string(raw)
}

// InsertGame creates a game row.
func (t *Tx) InsertGame(g *poker.Game) error {
	_, err := t.exec(`
		INSERT INTO games (`+gameColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		g.ID, g.TableID, string(g.State), g.IsCompleted, g.DealerButtonSeatID, g.AssignedSeatID,
		marshalCards(g.CommunityCards), g.PotTotal, g.BetCount, g.RequiredBetCount,
		g.EffectiveSmallBlind, g.EffectiveBigBlind, g.TurnStartTime, marshalSidePots(g.SidePots),
		g.CreatedAt)
	return mapError(err, "failed to insert game %s", g.ID)
}

// UpdateGame rewrites every mutable game column.
func (t *Tx) UpdateGame(g *poker.Game) error {
	_, err := t.exec(`
		UPDATE games SET state = ?, is_completed = ?, dealer_button_seat_id = ?, assigned_seat_id = ?,
			community_cards = ?, pot_total = ?, bet_count = ?, required_bet_count = ?,
			effective_small_blind = ?, effective_big_blind = ?, turn_start_time = ?, side_pots = ?
		WHERE id = ?`,
		string(g.State), g.IsCompleted, g.DealerButtonSeatID, g.AssignedSeatID,
		marshalCards(g.CommunityCards), g.PotTotal, g.BetCount, g.RequiredBetCount,
		g.EffectiveSmallBlind, g.EffectiveBigBlind, g.TurnStartTime, marshalSidePots(g.SidePots), g.ID)
	return mapError(err, "failed to update game %s", g.ID)
}

// AppendEvent validates the event payload against its schema and appends
// it to the log, filling in the store-assigned sequence id and timestamp.
func (t *Tx) AppendEvent(ev *poker.Event) error {
	if err := poker.ValidateDetails(ev.Type, ev.Details); err != nil {
		return err
	}
	now := time.Now().UTC()
	if t.store.driver == DriverPostgres {
		err := t.queryRow(`INSERT INTO game_events (table_id, game_id, type, details, created_at)
			VALUES (?, ?, ?, ?, ?) RETURNING id`,
			ev.TableID, ev.GameID, string(ev.Type), string(ev.Details), now).Scan(&ev.ID)
		if err != nil {
			return mapError(err, "failed to append %s event", ev.Type)
		}
	} else {
		res, err := t.exec(`INSERT INTO game_events (table_id, game_id, type, details, created_at)
			VALUES (?, ?, ?, ?, ?)`,
			ev.TableID, ev.GameID, string(ev.Type), string(ev.Details), now)
		if err != nil {
			return mapError(err, "failed to append %s event", ev.Type)
		}
		ev.ID, err = res.LastInsertId()
		if err != nil {
			return mapError(err, "failed to read event id")
		}
	}
	ev.CreatedAt = now
	return nil
}

// AppendEvents appends a batch in order.
func (t *Tx) AppendEvents(evs []poker.Event) ([]poker.Event, error) {
	for i := range evs {
		if err := t.AppendEvent(&evs[i]); err != nil {
			return nil, err
		}
	}
	return evs, nil
}

// EventsSince returns events with id > afterID, ascending, up to limit
// rows; limit <= 0 means no cap. The delta is scoped to one game plus the
// table-level events (empty game_id); pass an empty gameID when no hand is
// active to get table-level events only.
func (t *Tx) EventsSince(tableID, gameID string, afterID int64, limit int) ([]poker.Event, error) {
	q := `SELECT id, table_id, game_id, type, details, created_at FROM game_events
		WHERE table_id = ? AND (game_id = ? OR game_id = '') AND id > ? ORDER BY id`
	args := []interface{}{tableID, gameID, afterID}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := t.query(q, args...)
	if err != nil {
		return nil, mapError(err, "failed to load events of table %s", tableID)
	}
	defer rows.Close()
	var evs []poker.Event
	for rows.Next() {
		var ev poker.Event
		var details string
		if err := rows.Scan(&ev.ID, &ev.TableID, &ev.GameID, &ev.Type, &details, &ev.CreatedAt); err != nil {
			return nil, mapError(err, "failed to scan event")
		}
		ev.Details = json.RawMessage(details)
		evs = append(evs, ev)
	}
	return evs, rows.Err()
}

// LastEventID returns the table's newest event id, 0 when the log is
// empty.
func (t *Tx) LastEventID(tableID string) (int64, error) {
	var id int64
	err := t.queryRow(`SELECT COALESCE(MAX(id), 0) FROM game_events WHERE table_id = ?`, tableID).Scan(&id)
	if err != nil {
		return 0, mapError(err, "failed to read last event id of table %s", tableID)
	}
	return id, nil
}

// DeviceBySerial resolves a registered device. An unknown serial is a
// DeviceMisconfigured condition, not NotFound: the hardware exists, the
// registry entry does not.
func (t *Tx) DeviceBySerial(serial string) (*poker.Device, error) {
	d := &poker.Device{}
	var lastSeen sql.NullTime
	err := t.queryRow(`SELECT id, serial, kind, table_id, last_seen_at FROM pi_devices WHERE serial = ?`, serial).
		Scan(&d.ID, &d.Serial, &d.Kind, &d.TableID, &lastSeen)
	if err == sql.ErrNoRows {
		return nil, poker.E(poker.KindDeviceMisconfigured, "device serial %s is not registered", serial)
	}
	if err != nil {
		return nil, mapError(err, "failed to get device %s", serial)
	}
	if lastSeen.Valid {
		d.LastSeenAt = lastSeen.Time
	}
	return d, nil
}

// UpsertDevice registers or re-binds a device.
func (t *Tx) UpsertDevice(d *poker.Device) error {
	_, err := t.exec(`
		INSERT INTO pi_devices (id, serial, kind, table_id, last_seen_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(serial) DO UPDATE SET kind = excluded.kind, table_id = excluded.table_id`,
		d.ID, d.Serial, d.Kind, d.TableID, nullableTime(d.LastSeenAt))
	return mapError(err, "failed to upsert device %s", d.Serial)
}

// TouchDevice stamps the device's last-seen time.
func (t *Tx) TouchDevice(serial string, now time.Time) error {
	_, err := t.exec(`UPDATE pi_devices SET last_seen_at = ? WHERE serial = ?`, now, serial)
	return mapError(err, "failed to touch device %s", serial)
}

func nullableTime(tm time.Time) interface{} {
	if tm.IsZero() {
		return nil
	}
	return tm
}
