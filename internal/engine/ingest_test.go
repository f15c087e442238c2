package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Scotty108/Cascadian-sub010/internal/domain"
)

func TestNormalizeAddress(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "checksummed hex address",
			in:   "0x000000000000000000000000000000000000dEaD",
			want: "0x000000000000000000000000000000000000dead",
		},
		{
			name: "surrounding whitespace",
			in:   "  0x000000000000000000000000000000000000DEAD ",
			want: "0x000000000000000000000000000000000000dead",
		},
		{
			name: "non-address passes through lowercased",
			in:   "Proxy-Wallet-1",
			want: "proxy-wallet-1",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeAddress(tt.in))
		})
	}
}

func TestIngestDeduplicatesByEventID(t *testing.T) {
	dup := rawTrade("e1", "tok1", domain.SideBuy, 10e6, 5e6, 1000)
	events := &fakeEventSource{
		trades: []domain.RawEvent{dup, dup},
	}
	tokens := &fakeTokenResolver{refs: map[string]domain.TokenRef{
		"tok1": {ConditionID: "c1", OutcomeIndex: 0, OutcomeCount: 2},
	}}
	eng := newTestEngine(t, events, tokens, &fakeResolutionSource{}, &fakeMarkSource{})

	normalized, stats, err := eng.ingest(context.Background(), testWallet)
	require.NoError(t, err)

	assert.Len(t, normalized, 1)
	assert.Equal(t, 1, stats.total)
	assert.Equal(t, 1, stats.duplicates)
	assert.Equal(t, 1, stats.mapped)
}

func TestIngestOrdersByTimestampThenEventID(t *testing.T) {
	events := &fakeEventSource{
		trades: []domain.RawEvent{
			rawTrade("b", "tok1", domain.SideBuy, 10e6, 5e6, 2000),
			rawTrade("c", "tok1", domain.SideBuy, 10e6, 5e6, 1000),
			rawTrade("a", "tok1", domain.SideBuy, 10e6, 5e6, 2000),
		},
	}
	tokens := &fakeTokenResolver{refs: map[string]domain.TokenRef{
		"tok1": {ConditionID: "c1", OutcomeIndex: 0, OutcomeCount: 2},
	}}
	eng := newTestEngine(t, events, tokens, &fakeResolutionSource{}, &fakeMarkSource{})

	normalized, _, err := eng.ingest(context.Background(), testWallet)
	require.NoError(t, err)

	require.Len(t, normalized, 3)
	assert.Equal(t, "c", normalized[0].EventID)
	assert.Equal(t, "a", normalized[1].EventID)
	assert.Equal(t, "b", normalized[2].EventID)
}

func TestIngestConvertsMicroUnits(t *testing.T) {
	events := &fakeEventSource{
		trades: []domain.RawEvent{
			rawTrade("e1", "tok1", domain.SideBuy, 1_500_000, 750_000, 1000),
		},
	}
	tokens := &fakeTokenResolver{refs: map[string]domain.TokenRef{
		"tok1": {ConditionID: "c1", OutcomeIndex: 1, OutcomeCount: 2},
	}}
	eng := newTestEngine(t, events, tokens, &fakeResolutionSource{}, &fakeMarkSource{})

	normalized, _, err := eng.ingest(context.Background(), testWallet)
	require.NoError(t, err)

	require.Len(t, normalized, 1)
	ne := normalized[0]
	assert.InDelta(t, 1.5, ne.Qty, 1e-9)
	assert.InDelta(t, 0.75, ne.USDC, 1e-9)
	assert.InDelta(t, 0.50, ne.Price, 1e-9) // derived from usdc/qty
	assert.Equal(t, 1, ne.OutcomeIndex)
}

func TestIngestExcludesUnmappedTokens(t *testing.T) {
	events := &fakeEventSource{
		trades: []domain.RawEvent{
			rawTrade("e1", "tok-known", domain.SideBuy, 10e6, 5e6, 1000),
			rawTrade("e2", "tok-unknown", domain.SideBuy, 10e6, 5e6, 2000),
		},
	}
	tokens := &fakeTokenResolver{refs: map[string]domain.TokenRef{
		"tok-known": {ConditionID: "c1", OutcomeIndex: 0, OutcomeCount: 2},
	}}
	eng := newTestEngine(t, events, tokens, &fakeResolutionSource{}, &fakeMarkSource{})

	normalized, stats, err := eng.ingest(context.Background(), testWallet)
	require.NoError(t, err)

	// Unmapped events are dropped from accounting but stay in the totals
	// that feed mapped_ratio.
	assert.Len(t, normalized, 1)
	assert.Equal(t, 2, stats.total)
	assert.Equal(t, 1, stats.mapped)
	assert.Zero(t, stats.skipped)
}

func TestIngestSkipsMalformedEvents(t *testing.T) {
	noTimestamp := rawTrade("e1", "tok1", domain.SideBuy, 10e6, 5e6, 1000)
	noTimestamp.Timestamp = time.Time{}
	noAmounts := rawTrade("e2", "tok1", domain.SideBuy, 0, 0, 1000)
	noSide := rawTrade("e3", "tok1", "", 10e6, 5e6, 1000)
	noID := rawTrade("", "tok1", domain.SideBuy, 10e6, 5e6, 1000)

	events := &fakeEventSource{
		trades: []domain.RawEvent{noTimestamp, noAmounts, noSide, noID},
	}
	tokens := &fakeTokenResolver{refs: map[string]domain.TokenRef{
		"tok1": {ConditionID: "c1", OutcomeIndex: 0, OutcomeCount: 2},
	}}
	eng := newTestEngine(t, events, tokens, &fakeResolutionSource{}, &fakeMarkSource{})

	normalized, stats, err := eng.ingest(context.Background(), testWallet)
	require.NoError(t, err)

	assert.Empty(t, normalized)
	assert.Equal(t, 4, stats.total)
	assert.Equal(t, 4, stats.skipped)
}

func TestIngestLifecycleEventsAreConditionLevel(t *testing.T) {
	events := &fakeEventSource{
		trades: []domain.RawEvent{
			rawTrade("e1", "tok1", domain.SideBuy, 10e6, 5e6, 1000),
		},
		lifecycle: []domain.RawEvent{{
			EventID:     "e2",
			TxHash:      "0xtx-e2",
			Wallet:      testWallet,
			Type:        domain.EventTypeSplit,
			ConditionID: "C1", // mixed case collapses
			QtyMicros:   20e6,
			USDCMicros:  20e6,
			Timestamp:   time.Unix(2000, 0),
		}},
	}
	tokens := &fakeTokenResolver{refs: map[string]domain.TokenRef{
		"tok1": {ConditionID: "c1", OutcomeIndex: 0, OutcomeCount: 2},
	}}
	eng := newTestEngine(t, events, tokens, &fakeResolutionSource{}, &fakeMarkSource{})

	normalized, _, err := eng.ingest(context.Background(), testWallet)
	require.NoError(t, err)

	require.Len(t, normalized, 2)
	split := normalized[1]
	assert.Equal(t, domain.EventTypeSplit, split.Type)
	assert.Equal(t, "c1", split.ConditionID)
	assert.Equal(t, -1, split.OutcomeIndex)
	// Outcome count learned from the trade leg's token resolution.
	assert.Equal(t, 2, split.OutcomeCount)
}

func TestIngestChunksTokenLookups(t *testing.T) {
	var trades []domain.RawEvent
	refs := make(map[string]domain.TokenRef)
	for i := 0; i < 7; i++ {
		token := string(rune('a' + i))
		trades = append(trades, rawTrade("e"+token, token, domain.SideBuy, 10e6, 5e6, int64(1000+i)))
		refs[token] = domain.TokenRef{ConditionID: "c-" + token, OutcomeIndex: 0, OutcomeCount: 2}
	}

	tokens := &fakeTokenResolver{refs: refs}
	opts := DefaultOptions()
	opts.LookupChunkSize = 3
	eng, err := New(&fakeEventSource{trades: trades}, tokens,
		&fakeResolutionSource{}, &fakeMarkSource{}, opts, discardLogger())
	require.NoError(t, err)

	normalized, _, err := eng.ingest(context.Background(), testWallet)
	require.NoError(t, err)

	assert.Len(t, normalized, 7)
	require.Len(t, tokens.calls, 3) // 3 + 3 + 1
	assert.Len(t, tokens.calls[0], 3)
	assert.Len(t, tokens.calls[2], 1)
}

func TestChunkKeys(t *testing.T) {
	keys := []string{"a", "b", "c", "d", "e"}

	chunks := chunkKeys(keys, 2)
	require.Len(t, chunks, 3)
	assert.Equal(t, []string{"a", "b"}, chunks[0])
	assert.Equal(t, []string{"e"}, chunks[2])

	assert.Nil(t, chunkKeys(nil, 2))
	assert.Len(t, chunkKeys(keys, 10), 1)
}
