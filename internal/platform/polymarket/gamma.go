// Package polymarket implements the market-terms collaborators against the
// Polymarket Gamma and data APIs: token-to-market resolution, final payout
// vectors, latest mark prices, and reference P&L figures.
package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Scotty108/Cascadian-sub010/internal/domain"
)

// GammaClient is the REST client for the Polymarket Gamma API, which serves
// market metadata keyed by CLOB token ID or condition ID.
type GammaClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewGammaClient creates a Gamma API client.
//
// baseURL is the Gamma API root, e.g. "https://gamma-api.polymarket.com".
func NewGammaClient(baseURL string, timeout time.Duration) *GammaClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &GammaClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// ResolveTokens maps CLOB token IDs to their market terms. The outcome index
// of a token is its position in the market's clobTokenIds array. Tokens the
// API does not know are absent from the result; callers chunk their own
// requests, so the full ID list goes into one query.
func (g *GammaClient) ResolveTokens(ctx context.Context, tokenIDs []string) (map[string]domain.TokenRef, error) {
	if len(tokenIDs) == 0 {
		return map[string]domain.TokenRef{}, nil
	}

	markets, err := g.fetchMarkets(ctx, "clob_token_ids", tokenIDs)
	if err != nil {
		return nil, fmt.Errorf("polymarket/gamma: resolve tokens: %w", err)
	}

	refs := make(map[string]domain.TokenRef, len(tokenIDs))
	for i := range markets {
		m := &markets[i]
		ids, err := parseStringArray(m.ClobTokenIDs)
		if err != nil || m.ConditionID == "" {
			continue
		}
		for idx, id := range ids {
			refs[id] = domain.TokenRef{
				ConditionID:  m.ConditionID,
				OutcomeIndex: idx,
				OutcomeCount: len(ids),
			}
		}
	}

	// Keep only the tokens that were asked for; a market row can carry
	// sibling tokens the caller never traded.
	out := make(map[string]domain.TokenRef, len(tokenIDs))
	for _, id := range tokenIDs {
		if ref, ok := refs[id]; ok {
			out[id] = ref
		}
	}
	return out, nil
}

// GetResolutions returns payout vectors for the conditions that have closed.
// A closed market's outcomePrices carry the final payouts ("1"/"0" for a
// normal resolution, fractional for a split). Open conditions are absent
// from the result.
func (g *GammaClient) GetResolutions(ctx context.Context, conditionIDs []string) (map[string]domain.Resolution, error) {
	if len(conditionIDs) == 0 {
		return map[string]domain.Resolution{}, nil
	}

	markets, err := g.fetchMarkets(ctx, "condition_ids", conditionIDs)
	if err != nil {
		return nil, fmt.Errorf("polymarket/gamma: get resolutions: %w", err)
	}

	resolutions := make(map[string]domain.Resolution)
	for i := range markets {
		m := &markets[i]
		if !bool(m.Closed) || m.ConditionID == "" {
			continue
		}
		payouts, err := parseFloatArray(m.OutcomePrices)
		if err != nil || len(payouts) == 0 {
			continue
		}
		// The snapshot prices of a closed market may not sum to exactly 1;
		// normalize so a stale quote cannot inflate settlement.
		var sum float64
		negative := false
		for _, p := range payouts {
			if p < 0 {
				negative = true
			}
			sum += p
		}
		if negative || sum <= 0 {
			continue
		}
		for j := range payouts {
			payouts[j] /= sum
		}
		resolutions[m.ConditionID] = domain.Resolution{
			ConditionID: m.ConditionID,
			Payouts:     payouts,
		}
	}
	return resolutions, nil
}

// GetMarkPrices returns the latest outcome price snapshot for each condition
// the API knows. Conditions without a quote are absent from the result.
func (g *GammaClient) GetMarkPrices(ctx context.Context, conditionIDs []string) (map[string]domain.MarkPrices, error) {
	if len(conditionIDs) == 0 {
		return map[string]domain.MarkPrices{}, nil
	}

	markets, err := g.fetchMarkets(ctx, "condition_ids", conditionIDs)
	if err != nil {
		return nil, fmt.Errorf("polymarket/gamma: get mark prices: %w", err)
	}

	marks := make(map[string]domain.MarkPrices)
	for i := range markets {
		m := &markets[i]
		if m.ConditionID == "" {
			continue
		}
		prices, err := parseFloatArray(m.OutcomePrices)
		if err != nil || len(prices) == 0 {
			continue
		}
		mp := make(domain.MarkPrices, len(prices))
		for idx, p := range prices {
			mp[idx] = p
		}
		marks[m.ConditionID] = mp
	}
	return marks, nil
}

// fetchMarkets queries /markets with one repeated filter parameter per value.
func (g *GammaClient) fetchMarkets(ctx context.Context, param string, values []string) ([]APIMarket, error) {
	params := url.Values{}
	for _, v := range values {
		params.Add(param, v)
	}
	params.Set("limit", fmt.Sprintf("%d", len(values)*2))

	body, err := g.doGet(ctx, "/markets?"+params.Encode())
	if err != nil {
		return nil, err
	}

	var markets []APIMarket
	if err := json.Unmarshal(body, &markets); err != nil {
		return nil, fmt.Errorf("decode markets: %w", err)
	}
	return markets, nil
}

// doGet sends an unauthenticated GET request to the Gamma API.
func (g *GammaClient) doGet(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}

// Compile-time interface checks.
var (
	_ domain.TokenResolver    = (*GammaClient)(nil)
	_ domain.ResolutionSource = (*GammaClient)(nil)
	_ domain.MarkPriceSource  = (*GammaClient)(nil)
)
