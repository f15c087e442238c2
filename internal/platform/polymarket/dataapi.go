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

// DataClient is the REST client for the Polymarket leaderboard/data API,
// used only to pull reference P&L figures for verification runs.
type DataClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewDataClient creates a data API client.
//
// baseURL is the leaderboard API root, e.g. "https://lb-api.polymarket.com".
func NewDataClient(baseURL string, timeout time.Duration) *DataClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &DataClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// profitRow is one entry from the /profit endpoint.
type profitRow struct {
	ProxyWallet string  `json:"proxyWallet"`
	Amount      float64 `json:"amount"`
}

// GetReferencePnL returns the wallet's all-time profit as the platform
// reports it. Wallets unknown to the API map to domain.ErrNotFound.
func (d *DataClient) GetReferencePnL(ctx context.Context, wallet string) (domain.ReferencePnL, error) {
	params := url.Values{}
	params.Set("address", strings.ToLower(wallet))
	params.Set("window", "all")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+"/profit?"+params.Encode(), nil)
	if err != nil {
		return domain.ReferencePnL{}, fmt.Errorf("polymarket/data: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return domain.ReferencePnL{}, fmt.Errorf("polymarket/data: http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.ReferencePnL{}, fmt.Errorf("polymarket/data: read response: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return domain.ReferencePnL{}, domain.ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return domain.ReferencePnL{}, fmt.Errorf("polymarket/data: HTTP %d: %s", resp.StatusCode, string(body))
	}

	var rows []profitRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return domain.ReferencePnL{}, fmt.Errorf("polymarket/data: decode profit: %w", err)
	}
	if len(rows) == 0 {
		return domain.ReferencePnL{}, domain.ErrNotFound
	}

	return domain.ReferencePnL{
		Wallet:   strings.ToLower(wallet),
		TotalPnL: rows[0].Amount,
	}, nil
}

// Compile-time interface check.
var _ domain.ReferencePnLSource = (*DataClient)(nil)
