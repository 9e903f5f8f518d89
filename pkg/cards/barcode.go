package cards

import "fmt"

// ErrInvalidBarcode is returned when a scanned barcode does not match the
// card barcode grammar.
var ErrInvalidBarcode = fmt.Errorf("invalid card barcode")

// barcodeSuits maps the leading barcode digit to a suit character.
var barcodeSuits = map[byte]byte{
	'1': 's',
	'2': 'h',
	'3': 'c',
	'4': 'd',
}

// barcodeRanks maps the trailing three barcode digits to a rank character.
var barcodeRanks = map[string]byte{
	"010": 'A',
	"020": '2',
	"030": '3',
	"040": '4',
	"050": '5',
	"060": '6',
	"070": '7',
	"080": '8',
	"090": '9',
	"100": 'T',
	"110": 'J',
	"120": 'Q',
	"130": 'K',
}

// DecodeBarcode translates a hardware scanner barcode into a card code.
// The grammar is one suit digit (1=s, 2=h, 3=c, 4=d) followed by a
// three-digit rank code (010=A, 020..090=2..9, 100=T, 110=J, 120=Q, 130=K).
func DecodeBarcode(code string) (Card, error) {
	if len(code) != 4 {
		return "", fmt.Errorf("%w: %q", ErrInvalidBarcode, code)
	}
	suit, ok := barcodeSuits[code[0]]
	if !ok {
		return "", fmt.Errorf("%w: unknown suit digit in %q", ErrInvalidBarcode, code)
	}
	rank, ok := barcodeRanks[code[1:]]
	if !ok {
		return "", fmt.Errorf("%w: unknown rank code in %q", ErrInvalidBarcode, code)
	}
	return Card([]byte{rank, suit}), nil
}
