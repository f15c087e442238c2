package engine

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Scotty108/Cascadian-sub010/internal/domain"
)

const microUnit = 1e6

// ingestStats counts what happened to the raw ledger during normalization.
type ingestStats struct {
	total      int
	mapped     int
	duplicates int
	skipped    int
}

// NormalizeAddress lowercases a hex address, round-tripping through the
// checksummed form so mixed-case inputs collapse to one canonical spelling.
func NormalizeAddress(addr string) string {
	addr = strings.TrimSpace(addr)
	if common.IsHexAddress(addr) {
		return strings.ToLower(common.HexToAddress(addr).Hex())
	}
	return strings.ToLower(addr)
}

// ingest loads a wallet's raw events from both sources, deduplicates them,
// resolves token identifiers to market terms, and returns a time-ordered
// sequence of normalized events. Malformed or unmapped single events are
// skipped with a counter; only collaborator I/O aborts the wallet.
func (e *Engine) ingest(ctx context.Context, wallet string) ([]domain.NormalizedEvent, ingestStats, error) {
	var stats ingestStats

	trades, err := e.events.GetTradeEvents(ctx, wallet)
	if err != nil {
		return nil, stats, domain.CollaboratorFailure("get trade events", err)
	}
	lifecycle, err := e.events.GetLifecycleEvents(ctx, wallet)
	if err != nil {
		return nil, stats, domain.CollaboratorFailure("get lifecycle events", err)
	}

	// Upstream logs can repeat a row; keep the first occurrence per event ID.
	seen := make(map[string]bool, len(trades)+len(lifecycle))
	raw := make([]domain.RawEvent, 0, len(trades)+len(lifecycle))
	for _, ev := range append(trades, lifecycle...) {
		if ev.EventID == "" {
			stats.total++
			stats.skipped++
			continue
		}
		if seen[ev.EventID] {
			stats.duplicates++
			continue
		}
		seen[ev.EventID] = true
		raw = append(raw, ev)
		stats.total++
	}

	refs, err := e.resolveTokenRefs(ctx, raw)
	if err != nil {
		return nil, stats, err
	}

	// Outcome counts learned from token resolution, reused for lifecycle
	// events that only carry a condition ID.
	outcomeCounts := make(map[string]int)
	for _, ref := range refs {
		if ref.OutcomeCount > outcomeCounts[ref.ConditionID] {
			outcomeCounts[ref.ConditionID] = ref.OutcomeCount
		}
	}

	normalized := make([]domain.NormalizedEvent, 0, len(raw))
	for _, ev := range raw {
		ne, ok := e.normalizeOne(ev, refs, outcomeCounts)
		if !ok {
			stats.skipped++
			continue
		}
		if ne.ConditionID == "" {
			// Unmapped token: dropped from accounting but counted toward
			// the mapped_ratio metric.
			continue
		}
		stats.mapped++
		normalized = append(normalized, ne)
	}

	sort.SliceStable(normalized, func(i, j int) bool {
		if !normalized[i].Timestamp.Equal(normalized[j].Timestamp) {
			return normalized[i].Timestamp.Before(normalized[j].Timestamp)
		}
		return normalized[i].EventID < normalized[j].EventID
	})

	e.logger.DebugContext(ctx, "engine: ingestion complete",
		slog.String("wallet", wallet),
		slog.Int("total", stats.total),
		slog.Int("mapped", stats.mapped),
		slog.Int("duplicates", stats.duplicates),
		slog.Int("skipped", stats.skipped),
	)

	return normalized, stats, nil
}

// resolveTokenRefs batches token lookups in chunks to respect the
// collaborator's query-size limit.
func (e *Engine) resolveTokenRefs(ctx context.Context, raw []domain.RawEvent) (map[string]domain.TokenRef, error) {
	uniq := make(map[string]bool)
	var ids []string
	for _, ev := range raw {
		if ev.TokenID != "" && !uniq[ev.TokenID] {
			uniq[ev.TokenID] = true
			ids = append(ids, ev.TokenID)
		}
	}

	refs := make(map[string]domain.TokenRef, len(ids))
	for _, chunk := range chunkKeys(ids, e.opts.LookupChunkSize) {
		m, err := e.tokens.ResolveTokens(ctx, chunk)
		if err != nil {
			return nil, domain.CollaboratorFailure("resolve tokens", err)
		}
		for id, ref := range m {
			refs[id] = ref
		}
	}
	return refs, nil
}

// normalizeOne converts a single raw event. The second return value is false
// when the event is malformed and must be skipped.
func (e *Engine) normalizeOne(ev domain.RawEvent, refs map[string]domain.TokenRef, outcomeCounts map[string]int) (domain.NormalizedEvent, bool) {
	if ev.Timestamp.IsZero() {
		return domain.NormalizedEvent{}, false
	}

	qty := float64(ev.QtyMicros) / microUnit
	usdc := float64(ev.USDCMicros) / microUnit
	if qty <= 0 && usdc <= 0 {
		return domain.NormalizedEvent{}, false
	}

	price := ev.Price
	if price == 0 && qty > 0 {
		price = usdc / qty
	}
	if usdc == 0 && qty > 0 {
		usdc = qty * price
	}

	ne := domain.NormalizedEvent{
		EventID:   ev.EventID,
		TxHash:    strings.ToLower(ev.TxHash),
		Wallet:    NormalizeAddress(ev.Wallet),
		Type:      ev.Type,
		Side:      ev.Side,
		Qty:       qty,
		USDC:      usdc,
		Price:     price,
		Timestamp: ev.Timestamp,
	}

	switch ev.Type {
	case domain.EventTypeTrade:
		if ev.Side != domain.SideBuy && ev.Side != domain.SideSell {
			return domain.NormalizedEvent{}, false
		}
		ref, ok := refs[ev.TokenID]
		if !ok {
			// Unmapped token: emitted with empty condition so the caller can
			// count it against mapped_ratio.
			return ne, true
		}
		ne.ConditionID = ref.ConditionID
		ne.OutcomeIndex = ref.OutcomeIndex
		ne.OutcomeCount = ref.OutcomeCount
	case domain.EventTypeSplit, domain.EventTypeMerge, domain.EventTypeRedeem, domain.EventTypeConvert:
		if ev.ConditionID == "" {
			return domain.NormalizedEvent{}, false
		}
		ne.ConditionID = strings.ToLower(ev.ConditionID)
		ne.OutcomeIndex = -1 // condition-level
		ne.OutcomeCount = outcomeCounts[ne.ConditionID]
	default:
		return domain.NormalizedEvent{}, false
	}

	if ne.OutcomeCount < 2 {
		ne.OutcomeCount = 2
	}
	return ne, true
}

// chunkKeys splits keys into slices of at most size entries.
func chunkKeys(keys []string, size int) [][]string {
	if size <= 0 {
		size = 500
	}
	var chunks [][]string
	for len(keys) > size {
		chunks = append(chunks, keys[:size])
		keys = keys[size:]
	}
	if len(keys) > 0 {
		chunks = append(chunks, keys)
	}
	return chunks
}
