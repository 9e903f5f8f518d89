package cards

import (
	"testing"
)

func TestParse(t *testing.T) {
	cases := []struct {
		in   string
		want Card
		ok   bool
	}{
		{"As", "As", true},
		{"as", "As", true},
		{"AS", "As", true},
		{"Td", "Td", true},
		{"10d", "Td", true},
		{"2c", "2c", true},
		{"kh", "Kh", true},
		{"", "", false},
		{"A", "", false},
		{"Ax", "", false},
		{"1s", "", false},
		{"11s", "", false},
	}
	for _, tc := range cases {
		got, err := Parse(tc.in)
		if tc.ok && err != nil {
			t.Errorf("Parse(%q) failed: %v", tc.in, err)
			continue
		}
		if !tc.ok {
			if err == nil {
				t.Errorf("Parse(%q) = %q, expected error", tc.in, got)
			}
			continue
		}
		if got != tc.want {
			t.Errorf("Parse(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestMake(t *testing.T) {
	c, err := Make("A", "s")
	if err != nil {
		t.Fatalf("Make failed: %v", err)
	}
	if c != "As" {
		t.Errorf("Make(A, s) = %q, want As", c)
	}
	if _, err := Make("A", "x"); err == nil {
		t.Error("Make(A, x) should fail")
	}
}

func TestDecodeBarcode(t *testing.T) {
	cases := []struct {
		in   string
		want Card
		ok   bool
	}{
		{"1010", "As", true},  // spades, ace
		{"2020", "2h", true},  // hearts, deuce
		{"3100", "Tc", true},  // clubs, ten
		{"4130", "Kd", true},  // diamonds, king
		{"1110", "Js", true},  // spades, jack
		{"2120", "Qh", true},  // hearts, queen
		{"1090", "9s", true},  // spades, nine
		{"5010", "", false},   // bad suit digit
		{"1140", "", false},   // bad rank code
		{"101", "", false},    // too short
		{"10100", "", false},  // too long
		{"abcd", "", false},   // garbage
	}
	for _, tc := range cases {
		got, err := DecodeBarcode(tc.in)
		if tc.ok {
			if err != nil {
				t.Errorf("DecodeBarcode(%q) failed: %v", tc.in, err)
			} else if got != tc.want {
				t.Errorf("DecodeBarcode(%q) = %q, want %q", tc.in, got, tc.want)
			}
			continue
		}
		if err == nil {
			t.Errorf("DecodeBarcode(%q) = %q, expected error", tc.in, got)
		}
	}
}

func TestContains(t *testing.T) {
	cs := []Card{"As", "Kd", "2c"}
	if !Contains(cs, "Kd") {
		t.Error("Contains should find Kd")
	}
	if Contains(cs, "Kh") {
		t.Error("Contains should not find Kh")
	}
}
