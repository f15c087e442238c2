package polymarket

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Scotty108/Cascadian-sub010/internal/domain"
)

func TestGetReferencePnL(t *testing.T) {
	var query string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		fmt.Fprint(w, `[{"proxyWallet":"0xabc","amount":1234.56}]`)
	}))
	defer srv.Close()

	d := NewDataClient(srv.URL, time.Second)
	ref, err := d.GetReferencePnL(context.Background(), "0xABC")
	require.NoError(t, err)

	assert.Equal(t, "0xabc", ref.Wallet)
	assert.InDelta(t, 1234.56, ref.TotalPnL, 1e-9)
	assert.Equal(t, "address=0xabc&window=all", query)
}

func TestGetReferencePnLUnknownWallet(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"404 response", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}},
		{"empty rows", func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `[]`)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			d := NewDataClient(srv.URL, time.Second)
			_, err := d.GetReferencePnL(context.Background(), "0xabc")
			assert.ErrorIs(t, err, domain.ErrNotFound)
		})
	}
}

func TestGetReferencePnLServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	d := NewDataClient(srv.URL, time.Second)
	_, err := d.GetReferencePnL(context.Background(), "0xabc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 500")
	assert.NotErrorIs(t, err, domain.ErrNotFound)
}
