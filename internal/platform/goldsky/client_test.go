package goldsky

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Scotty108/Cascadian-sub010/internal/domain"
)

const wallet = "0x1111111111111111111111111111111111111111"

func TestFillToEventMakerBuy(t *testing.T) {
	// The wallet is the maker giving collateral for tokens.
	row := fillRow{
		ID:                "0xabc-1",
		TransactionHash:   "0xabc",
		Timestamp:         "1700000000",
		Maker:             wallet,
		MakerAssetID:      "0",
		MakerAmountFilled: "50000000",
		Taker:             "0x2222222222222222222222222222222222222222",
		TakerAssetID:      "7000123",
		TakerAmountFilled: "100000000",
	}

	ev, ok := fillToEvent(row, wallet)
	require.True(t, ok)
	assert.Equal(t, domain.SideBuy, ev.Side)
	assert.Equal(t, "7000123", ev.TokenID)
	assert.Equal(t, int64(100000000), ev.QtyMicros)
	assert.Equal(t, int64(50000000), ev.USDCMicros)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), ev.Timestamp)
}

func TestFillToEventMakerSell(t *testing.T) {
	row := fillRow{
		ID:                "0xdef-2",
		Maker:             wallet,
		MakerAssetID:      "7000123",
		MakerAmountFilled: "100000000",
		TakerAssetID:      "0",
		TakerAmountFilled: "60000000",
		Timestamp:         "1700000000",
	}

	ev, ok := fillToEvent(row, wallet)
	require.True(t, ok)
	assert.Equal(t, domain.SideSell, ev.Side)
	assert.Equal(t, "7000123", ev.TokenID)
	assert.Equal(t, int64(100000000), ev.QtyMicros)
	assert.Equal(t, int64(60000000), ev.USDCMicros)
}

func TestFillToEventTakerPerspective(t *testing.T) {
	// Same fill, opposite viewpoint: the taker gave collateral, so from the
	// taker's perspective this is a buy.
	row := fillRow{
		ID:                "0xdef-2",
		Maker:             "0x2222222222222222222222222222222222222222",
		MakerAssetID:      "7000123",
		MakerAmountFilled: "100000000",
		Taker:             wallet,
		TakerAssetID:      "0",
		TakerAmountFilled: "60000000",
		Timestamp:         "1700000000",
	}

	ev, ok := fillToEvent(row, wallet)
	require.True(t, ok)
	assert.Equal(t, domain.SideBuy, ev.Side)
	assert.Equal(t, "7000123", ev.TokenID)
	assert.Equal(t, int64(100000000), ev.QtyMicros)
}

func TestFillToEventSkipsTokenForToken(t *testing.T) {
	row := fillRow{
		ID:                "0xeee-1",
		Maker:             wallet,
		MakerAssetID:      "7000123",
		MakerAmountFilled: "10",
		TakerAssetID:      "7000124",
		TakerAmountFilled: "10",
		Timestamp:         "1700000000",
	}

	_, ok := fillToEvent(row, wallet)
	assert.False(t, ok)
}

func TestTxHashFromID(t *testing.T) {
	assert.Equal(t, "0xabc", txHashFromID("0xabc-12"))
	assert.Equal(t, "0xabc", txHashFromID("0xabc"))
}

func TestParseInt64(t *testing.T) {
	assert.Equal(t, int64(12345), parseInt64("12345"))
	assert.Zero(t, parseInt64("not-a-number"))
	assert.Zero(t, parseInt64(""))
}

// graphqlHandler decodes the request envelope and routes on query content.
func graphqlHandler(t *testing.T, fn func(query string, variables map[string]any) any) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		var req graphqlRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		data := fn(req.Query, req.Variables)
		resp := map[string]any{"data": data}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}
}

func TestGetTradeEventsQueriesBothRoles(t *testing.T) {
	var roles []string
	srv := httptest.NewServer(graphqlHandler(t, func(query string, _ map[string]any) any {
		switch {
		case strings.Contains(query, "maker: $wallet"):
			roles = append(roles, "maker")
			return map[string]any{"orderFilledEvents": []fillRow{{
				ID:                "0xaaa-0",
				TransactionHash:   "0xaaa",
				Timestamp:         "1700000000",
				Maker:             wallet,
				MakerAssetID:      "0",
				MakerAmountFilled: "50000000",
				TakerAssetID:      "7000123",
				TakerAmountFilled: "100000000",
			}}}
		default:
			roles = append(roles, "taker")
			return map[string]any{"orderFilledEvents": []fillRow{}}
		}
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{GraphQLURL: srv.URL})
	events, err := c.GetTradeEvents(context.Background(), strings.ToUpper(wallet))
	require.NoError(t, err)

	require.Len(t, events, 1)
	assert.Equal(t, domain.SideBuy, events[0].Side)
	assert.Equal(t, []string{"maker", "taker"}, roles)
}

func TestFetchFillsPaginatesOnCursor(t *testing.T) {
	var cursors []string
	srv := httptest.NewServer(graphqlHandler(t, func(query string, vars map[string]any) any {
		cursor, _ := vars["cursor"].(string)
		cursors = append(cursors, cursor)
		page := []fillRow{}
		if cursor == "" {
			page = []fillRow{
				{ID: "0xaaa-0", Maker: wallet, MakerAssetID: "0", MakerAmountFilled: "1", TakerAssetID: "7", TakerAmountFilled: "1", Timestamp: "1"},
				{ID: "0xaaa-1", Maker: wallet, MakerAssetID: "0", MakerAmountFilled: "1", TakerAssetID: "7", TakerAmountFilled: "1", Timestamp: "1"},
			}
		}
		return map[string]any{"orderFilledEvents": page}
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{GraphQLURL: srv.URL, PageSize: 2})
	rows, err := c.fetchFills(context.Background(), wallet, "maker")
	require.NoError(t, err)

	assert.Len(t, rows, 2)
	assert.Equal(t, []string{"", "0xaaa-1"}, cursors)
}

func TestGetLifecycleEventsDerivesRedemptionShape(t *testing.T) {
	srv := httptest.NewServer(graphqlHandler(t, func(query string, _ map[string]any) any {
		switch {
		case strings.Contains(query, "redemptions("):
			return map[string]any{"redemptions": []activityRow{{
				ID:          "0xccc-3",
				Timestamp:   "1700000100",
				Stakeholder: wallet,
				Condition:   "0xcond1",
				Amount:      "100000000",
				Payout:      "75000000",
			}}}
		case strings.Contains(query, "splits("):
			return map[string]any{"splits": []activityRow{{
				ID:          "0xbbb-1",
				Timestamp:   "1700000000",
				Stakeholder: wallet,
				Condition:   "0xcond1",
				Amount:      "200000000",
			}}}
		case strings.Contains(query, "merges("):
			return map[string]any{"merges": []activityRow{}}
		default:
			t.Errorf("unexpected query: %s", query)
			return nil
		}
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{GraphQLURL: srv.URL})
	events, err := c.GetLifecycleEvents(context.Background(), wallet)
	require.NoError(t, err)
	require.Len(t, events, 2)

	split := events[0]
	assert.Equal(t, domain.EventTypeSplit, split.Type)
	assert.Equal(t, "0xbbb", split.TxHash)
	assert.Equal(t, int64(200000000), split.QtyMicros)
	assert.Equal(t, int64(200000000), split.USDCMicros)

	// Redemptions carry the collateral payout; the burned quantity is
	// derived downstream from the payout vector.
	redeem := events[1]
	assert.Equal(t, domain.EventTypeRedeem, redeem.Type)
	assert.Zero(t, redeem.QtyMicros)
	assert.Equal(t, int64(75000000), redeem.USDCMicros)
}

func TestDoQueryRetriesServerErrors(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `{"data":{"ok":true}}`)
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{GraphQLURL: srv.URL, MaxRetries: 3, Backoff: time.Millisecond})
	data, err := c.doQuery(context.Background(), "query {}", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(data))
	assert.Equal(t, 3, calls)
}

func TestDoQueryDoesNotRetryGraphQLErrors(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		fmt.Fprint(w, `{"errors":[{"message":"undefined field"}]}`)
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{GraphQLURL: srv.URL, MaxRetries: 3, Backoff: time.Millisecond})
	_, err := c.doQuery(context.Background(), "query {}", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "undefined field")
	assert.Equal(t, 1, calls)
}

func TestDoQueryGivesUpAfterMaxRetries(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{GraphQLURL: srv.URL, MaxRetries: 2, Backoff: time.Millisecond})
	_, err := c.doQuery(context.Background(), "query {}", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.Equal(t, 3, calls)
}

func TestNewClientSendsAuthorizationHeader(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		fmt.Fprint(w, `{"data":{}}`)
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{GraphQLURL: srv.URL, APIKey: " secret "})
	_, err := c.doQuery(context.Background(), "query {}", nil)
	require.NoError(t, err)
	assert.Equal(t, "Bearer secret", got)
}
