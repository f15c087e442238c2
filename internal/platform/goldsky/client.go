// Package goldsky implements domain.EventSource against the Goldsky subgraph
// indexers for the Polymarket CTF Exchange and Conditional Tokens contracts.
package goldsky

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Scotty108/Cascadian-sub010/internal/domain"
)

// collateralAssetID is the asset ID the CTF Exchange uses for USDC
// collateral in order fill events.
const collateralAssetID = "0"

// Client is a GraphQL client for the Goldsky subgraph indexers. Fill events
// come from the orderbook subgraph; split/merge/redeem activity comes from
// the activity subgraph at the same endpoint family.
type Client struct {
	graphqlURL string
	apiKey     string
	httpClient *http.Client
	pageSize   int
	maxRetries int
	backoff    time.Duration
}

// ClientConfig carries the Goldsky endpoint settings.
type ClientConfig struct {
	GraphQLURL string
	APIKey     string
	Timeout    time.Duration
	PageSize   int
	MaxRetries int
	Backoff    time.Duration
}

// NewClient creates a Goldsky client. Zero-value config fields fall back to
// sane defaults (30s timeout, 1000-row pages, 3 retries, 500ms base backoff).
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 1000
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 500 * time.Millisecond
	}
	return &Client{
		graphqlURL: cfg.GraphQLURL,
		apiKey:     strings.TrimSpace(cfg.APIKey),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		pageSize:   cfg.PageSize,
		maxRetries: cfg.MaxRetries,
		backoff:    cfg.Backoff,
	}
}

// graphqlRequest is the standard GraphQL request envelope.
type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

// graphqlResponse is the standard GraphQL response envelope.
type graphqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// fillRow is one orderFilledEvents row from the orderbook subgraph.
type fillRow struct {
	ID                string `json:"id"`
	TransactionHash   string `json:"transactionHash"`
	Timestamp         string `json:"timestamp"`
	Maker             string `json:"maker"`
	MakerAssetID      string `json:"makerAssetId"`
	MakerAmountFilled string `json:"makerAmountFilled"`
	Taker             string `json:"taker"`
	TakerAssetID      string `json:"takerAssetId"`
	TakerAmountFilled string `json:"takerAmountFilled"`
}

// GetTradeEvents returns the wallet's CLOB order fills as raw trade events.
// The subgraph has no OR filter, so maker-side and taker-side fills are
// fetched separately; the engine dedupes by event ID downstream.
func (c *Client) GetTradeEvents(ctx context.Context, wallet string) ([]domain.RawEvent, error) {
	wallet = strings.ToLower(wallet)

	var events []domain.RawEvent
	for _, role := range []string{"maker", "taker"} {
		rows, err := c.fetchFills(ctx, wallet, role)
		if err != nil {
			return nil, fmt.Errorf("goldsky: fetch %s fills: %w", role, err)
		}
		for _, row := range rows {
			ev, ok := fillToEvent(row, wallet)
			if !ok {
				continue
			}
			events = append(events, ev)
		}
	}
	return events, nil
}

// fetchFills pages through orderFilledEvents for one side of the book,
// cursoring on the row ID.
func (c *Client) fetchFills(ctx context.Context, wallet, role string) ([]fillRow, error) {
	query := fmt.Sprintf(`
		query Fills($wallet: String!, $cursor: String!, $first: Int!) {
			orderFilledEvents(
				first: $first
				orderBy: id
				orderDirection: asc
				where: { %s: $wallet, id_gt: $cursor }
			) {
				id
				transactionHash
				timestamp
				maker
				makerAssetId
				makerAmountFilled
				taker
				takerAssetId
				takerAmountFilled
			}
		}
	`, role)

	var (
		rows   []fillRow
		cursor string
	)
	for {
		variables := map[string]any{
			"wallet": wallet,
			"cursor": cursor,
			"first":  c.pageSize,
		}
		respData, err := c.doQuery(ctx, query, variables)
		if err != nil {
			return nil, err
		}

		var result struct {
			OrderFilledEvents []fillRow `json:"orderFilledEvents"`
		}
		if err := json.Unmarshal(respData, &result); err != nil {
			return nil, fmt.Errorf("decode fills: %w", err)
		}

		rows = append(rows, result.OrderFilledEvents...)
		if len(result.OrderFilledEvents) < c.pageSize {
			return rows, nil
		}
		cursor = result.OrderFilledEvents[len(result.OrderFilledEvents)-1].ID
	}
}

// fillToEvent converts one fill row into a raw trade event from the wallet's
// perspective. The side the wallet gave collateral on is a buy; the side it
// gave tokens on is a sell. Fills where neither asset is collateral are
// token-for-token and skipped.
func fillToEvent(row fillRow, wallet string) (domain.RawEvent, bool) {
	walletIsMaker := strings.ToLower(row.Maker) == wallet

	gaveAsset, gaveAmt := row.MakerAssetID, row.MakerAmountFilled
	gotAsset, gotAmt := row.TakerAssetID, row.TakerAmountFilled
	if !walletIsMaker {
		gaveAsset, gaveAmt = row.TakerAssetID, row.TakerAmountFilled
		gotAsset, gotAmt = row.MakerAssetID, row.MakerAmountFilled
	}

	ev := domain.RawEvent{
		EventID:   row.ID,
		TxHash:    row.TransactionHash,
		Wallet:    wallet,
		Type:      domain.EventTypeTrade,
		Timestamp: time.Unix(parseInt64(row.Timestamp), 0).UTC(),
	}

	switch {
	case gaveAsset == collateralAssetID && gotAsset != collateralAssetID:
		ev.Side = domain.SideBuy
		ev.TokenID = gotAsset
		ev.QtyMicros = parseInt64(gotAmt)
		ev.USDCMicros = parseInt64(gaveAmt)
	case gotAsset == collateralAssetID && gaveAsset != collateralAssetID:
		ev.Side = domain.SideSell
		ev.TokenID = gaveAsset
		ev.QtyMicros = parseInt64(gaveAmt)
		ev.USDCMicros = parseInt64(gotAmt)
	default:
		return domain.RawEvent{}, false
	}
	return ev, true
}

// activityRow is one split/merge/redemption row from the activity subgraph.
type activityRow struct {
	ID          string `json:"id"`
	Timestamp   string `json:"timestamp"`
	Stakeholder string `json:"stakeholder"`
	Condition   string `json:"condition"`
	Amount      string `json:"amount"`
	Payout      string `json:"payout"`
}

// GetLifecycleEvents returns the wallet's split, merge and redeem activity.
func (c *Client) GetLifecycleEvents(ctx context.Context, wallet string) ([]domain.RawEvent, error) {
	wallet = strings.ToLower(wallet)

	var events []domain.RawEvent
	for _, spec := range []struct {
		entity string
		typ    domain.EventType
	}{
		{"splits", domain.EventTypeSplit},
		{"merges", domain.EventTypeMerge},
		{"redemptions", domain.EventTypeRedeem},
	} {
		rows, err := c.fetchActivity(ctx, wallet, spec.entity)
		if err != nil {
			return nil, fmt.Errorf("goldsky: fetch %s: %w", spec.entity, err)
		}
		for _, row := range rows {
			usdc := parseInt64(row.Amount)
			qty := usdc
			if spec.typ == domain.EventTypeRedeem {
				// Redemptions report the collateral payout, not the
				// burned quantity; the quantity is derived downstream
				// from the payout vector.
				usdc = parseInt64(row.Payout)
				qty = 0
			}
			events = append(events, domain.RawEvent{
				EventID:     row.ID,
				TxHash:      txHashFromID(row.ID),
				Wallet:      wallet,
				Type:        spec.typ,
				ConditionID: row.Condition,
				QtyMicros:   qty,
				USDCMicros:  usdc,
				Timestamp:   time.Unix(parseInt64(row.Timestamp), 0).UTC(),
			})
		}
	}
	return events, nil
}

// fetchActivity pages through one activity entity for the wallet.
func (c *Client) fetchActivity(ctx context.Context, wallet, entity string) ([]activityRow, error) {
	payoutField := ""
	if entity == "redemptions" {
		payoutField = "payout"
	}
	query := fmt.Sprintf(`
		query Activity($wallet: String!, $cursor: String!, $first: Int!) {
			%s(
				first: $first
				orderBy: id
				orderDirection: asc
				where: { stakeholder: $wallet, id_gt: $cursor }
			) {
				id
				timestamp
				stakeholder
				condition
				amount
				%s
			}
		}
	`, entity, payoutField)

	var (
		rows   []activityRow
		cursor string
	)
	for {
		variables := map[string]any{
			"wallet": wallet,
			"cursor": cursor,
			"first":  c.pageSize,
		}
		respData, err := c.doQuery(ctx, query, variables)
		if err != nil {
			return nil, err
		}

		var result map[string][]activityRow
		if err := json.Unmarshal(respData, &result); err != nil {
			return nil, fmt.Errorf("decode %s: %w", entity, err)
		}

		page := result[entity]
		rows = append(rows, page...)
		if len(page) < c.pageSize {
			return rows, nil
		}
		cursor = page[len(page)-1].ID
	}
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

// doQuery executes a GraphQL query with bounded retries and returns the raw
// "data" field from the response. Transport errors and 5xx responses are
// retried with linear backoff; GraphQL-level errors are not.
func (c *Client) doQuery(ctx context.Context, query string, variables map[string]any) (json.RawMessage, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * c.backoff):
			}
		}

		data, retryable, err := c.doQueryOnce(ctx, query, variables)
		if err == nil {
			return data, nil
		}
		lastErr = err
		if !retryable {
			return nil, err
		}
	}
	return nil, fmt.Errorf("after %d attempts: %w", c.maxRetries+1, lastErr)
}

func (c *Client) doQueryOnce(ctx context.Context, query string, variables map[string]any) (json.RawMessage, bool, error) {
	reqBody := graphqlRequest{Query: query, Variables: variables}
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, false, fmt.Errorf("marshal graphql request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.graphqlURL, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, false, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		retryable := resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests
		return nil, retryable, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}

	var gqlResp graphqlResponse
	if err := json.Unmarshal(body, &gqlResp); err != nil {
		return nil, false, fmt.Errorf("decode graphql response: %w", err)
	}
	if len(gqlResp.Errors) > 0 {
		return nil, false, fmt.Errorf("graphql error: %s", gqlResp.Errors[0].Message)
	}
	return gqlResp.Data, false, nil
}

// parseInt64 parses a subgraph BigInt string, returning 0 on garbage.
func parseInt64(s string) int64 {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return v
}

// txHashFromID extracts the transaction hash from a subgraph row ID of the
// form "0xhash-logIndex". IDs without a suffix pass through unchanged.
func txHashFromID(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	return id
}

// Compile-time interface check.
var _ domain.EventSource = (*Client)(nil)
