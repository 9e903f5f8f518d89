package poker

// Turn-order helpers. All of them expect seats ordered by seat number
// ascending, which is how the store returns them.

func indexOf(seats []*Seat, seatID string) int {
	for i, s := range seats {
		if s.ID == seatID {
			return i
		}
	}
	return -1
}

// SeatByID returns the seat with the given id, or nil.
func SeatByID(seats []*Seat, seatID string) *Seat {
	if i := indexOf(seats, seatID); i >= 0 {
		return seats[i]
	}
	return nil
}

// nextMatching walks clockwise from the seat after fromSeatID and returns
// the first seat satisfying pred. If one full cycle finds nothing it falls
// back to fromSeatID.
func nextMatching(seats []*Seat, fromSeatID string, pred func(*Seat) bool) string {
	start := indexOf(seats, fromSeatID)
	if start < 0 || len(seats) == 0 {
		return fromSeatID
	}
	for i := 1; i <= len(seats); i++ {
		s := seats[(start+i)%len(seats)]
		if pred(s) {
			return s.ID
		}
	}
	return fromSeatID
}

// NextActive returns the next seat in rotation with status active.
func NextActive(seats []*Seat, fromSeatID string) string {
	return nextMatching(seats, fromSeatID, func(s *Seat) bool {
		return s.Status == SeatActive
	})
}

// NextDealable returns the next seat in rotation that receives hole cards:
// active or all-in.
func NextDealable(seats []*Seat, fromSeatID string) string {
	return nextMatching(seats, fromSeatID, func(s *Seat) bool {
		return s.Status == SeatActive || s.Status == SeatAllIn
	})
}

// NextNonEliminated returns the next seat in rotation that is still in the
// session, used for button and blind placement.
func NextNonEliminated(seats []*Seat, fromSeatID string) string {
	return nextMatching(seats, fromSeatID, func(s *Seat) bool {
		return s.Status != SeatEliminated
	})
}

// MaxBet returns the highest CurrentBet among non-folded, non-eliminated
// seats.
func MaxBet(seats []*Seat) int64 {
	var max int64
	for _, s := range seats {
		if s.Status == SeatFolded || s.Status == SeatEliminated {
			continue
		}
		if s.CurrentBet > max {
			max = s.CurrentBet
		}
	}
	return max
}

// AllActiveBetsEqual reports whether every active seat has matched the
// highest non-folded bet. Vacuously true with no active seats.
func AllActiveBetsEqual(seats []*Seat) bool {
	max := MaxBet(seats)
	for _, s := range seats {
		if s.Status == SeatActive && s.CurrentBet != max {
			return false
		}
	}
	return true
}

// ActiveCount counts seats that can still act this round.
func ActiveCount(seats []*Seat) int {
	n := 0
	for _, s := range seats {
		if s.Status == SeatActive {
			n++
		}
	}
	return n
}

// NonFoldedCount counts seats still contesting the hand, all-in included.
func NonFoldedCount(seats []*Seat) int {
	n := 0
	for _, s := range seats {
		if s.InHand() {
			n++
		}
	}
	return n
}

// NonEliminatedCount counts seats still in the session.
func NonEliminatedCount(seats []*Seat) int {
	n := 0
	for _, s := range seats {
		if s.Status != SeatEliminated {
			n++
		}
	}
	return n
}
