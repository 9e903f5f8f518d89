package scanner

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/decred/slog"
	"github.com/stretchr/testify/require"

	"github.com/feltcraft/dealerd/pkg/cards"
	"github.com/feltcraft/dealerd/pkg/poker"
)

type fakeSink struct {
	calls []cards.Card
	errs  []error
}

func (f *fakeSink) DealScannedCard(_ context.Context, serial string, card cards.Card) error {
	f.calls = append(f.calls, card)
	if len(f.errs) == 0 {
		return nil
	}
	err := f.errs[0]
	f.errs = f.errs[1:]
	return err
}

func testIngester(sink Sink) *Ingester {
	return &Ingester{sink: sink, log: slog.Disabled, maxRetries: 3}
}

func scanMsg(t *testing.T, serial, barcode string) *sarama.ConsumerMessage {
	t.Helper()
	raw, err := json.Marshal(Message{Serial: serial, Barcode: barcode, ScannedAt: time.Now().UTC()})
	require.NoError(t, err)
	return &sarama.ConsumerMessage{Topic: "dealerd.scans", Value: raw}
}

func TestProcessApplied(t *testing.T) {
	sink := &fakeSink{}
	ing := testIngester(sink)

	// Barcode 1010 is the ace of spades.
	result := ing.process(context.Background(), scanMsg(t, "PI-001", "1010"))
	require.Equal(t, "applied", result)
	require.Equal(t, []cards.Card{"As"}, sink.calls)
}

func TestProcessMalformed(t *testing.T) {
	sink := &fakeSink{}
	ing := testIngester(sink)

	msg := &sarama.ConsumerMessage{Topic: "dealerd.scans", Value: []byte("not json")}
	require.Equal(t, "malformed", ing.process(context.Background(), msg))
	require.Empty(t, sink.calls, "malformed messages never reach the sink")
}

func TestProcessInvalidBarcode(t *testing.T) {
	sink := &fakeSink{}
	ing := testIngester(sink)

	for _, barcode := range []string{"", "10", "5010", "1140", "garbage"} {
		result := ing.process(context.Background(), scanMsg(t, "PI-001", barcode))
		require.Equal(t, "invalid_barcode", result, "barcode %q", barcode)
	}
	require.Empty(t, sink.calls)
}

func TestProcessDomainRejections(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"duplicate", poker.E(poker.KindDuplicateCard, "card already dealt"), "duplicate"},
		{"no hand", poker.E(poker.KindInvalidState, "no hand in progress"), "rejected"},
		{"unknown device", poker.E(poker.KindDeviceMisconfigured, "unknown serial"), "rejected"},
		{"other failure", context.DeadlineExceeded, "error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sink := &fakeSink{errs: []error{tc.err}}
			ing := testIngester(sink)
			result := ing.process(context.Background(), scanMsg(t, "PI-001", "2020"))
			require.Equal(t, tc.want, result)
			require.Len(t, sink.calls, 1, "domain failures are not retried")
		})
	}
}

func TestProcessRetriesStoreConflicts(t *testing.T) {
	conflict := poker.E(poker.KindStoreConflict, "table busy")
	sink := &fakeSink{errs: []error{conflict, conflict}}
	ing := testIngester(sink)

	result := ing.process(context.Background(), scanMsg(t, "PI-001", "3100"))
	require.Equal(t, "applied", result)
	require.Len(t, sink.calls, 3, "two conflicts then success")
}

func TestProcessRetryBound(t *testing.T) {
	conflict := poker.E(poker.KindStoreConflict, "table busy")
	sink := &fakeSink{errs: []error{conflict, conflict, conflict, conflict, conflict}}
	ing := testIngester(sink)
	ing.maxRetries = 2

	result := ing.process(context.Background(), scanMsg(t, "PI-001", "4130"))
	require.Equal(t, "error", result)
	require.Len(t, sink.calls, 3, "initial attempt plus two retries")
}
