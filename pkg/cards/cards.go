package cards

import (
	"fmt"
	"strings"
)

// Card is a two-character card code: rank followed by suit, e.g. "As", "Td".
// Ranks are 2-9, T, J, Q, K, A; suits are s, h, c, d.
type Card string

// Hidden is the placeholder code used in place of hole cards the viewer is
// not allowed to see.
const Hidden Card = "FD"

const (
	ranks = "23456789TJQKA"
	suits = "shcd"
)

// Parse normalizes and validates a card code. Input is case-insensitive and
// the rank "10" is accepted as an alias for "T".
func Parse(s string) (Card, error) {
	if len(s) == 3 && strings.HasPrefix(s, "10") {
		s = "T" + s[2:]
	}
	if len(s) != 2 {
		return "", fmt.Errorf("invalid card code %q", s)
	}
	r := strings.ToUpper(s[:1])
	suit := strings.ToLower(s[1:])
	if !strings.Contains(ranks, r) || !strings.Contains(suits, suit) {
		return "", fmt.Errorf("invalid card code %q", s)
	}
	return Card(r + suit), nil
}

// Make builds a card code from separate rank and suit strings, applying the
// same normalization rules as Parse.
func Make(rank, suit string) (Card, error) {
	return Parse(rank + suit)
}

// Rank returns the rank character of the card ('2'..'9', 'T', 'J', 'Q', 'K', 'A').
func (c Card) Rank() byte {
	return c[0]
}

// Suit returns the suit character of the card ('s', 'h', 'c', 'd').
func (c Card) Suit() byte {
	return c[1]
}

// String returns the card code.
func (c Card) String() string {
	return string(c)
}

// Valid reports whether the card is a well-formed, visible card code.
func (c Card) Valid() bool {
	_, err := Parse(string(c))
	return err == nil
}

// ParseMany parses a slice of card codes, failing on the first invalid one.
func ParseMany(codes []string) ([]Card, error) {
	out := make([]Card, 0, len(codes))
	for _, s := range codes {
		c, err := Parse(s)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// Contains reports whether the card appears in the slice.
func Contains(cs []Card, c Card) bool {
	for _, x := range cs {
		if x == c {
			return true
		}
	}
	return false
}
