package polymarket

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polyagents/internal/domain"
)

const marketsPage = `[
  {"id": "501", "question": "Will BTC close above 100k?", "slug": "btc-100k", "category": "Crypto",
   "active": true, "closed": false, "volumeNum": 250000.5, "liquidityNum": 42000,
   "outcomePrices": "[\"0.63\", \"0.37\"]", "oneDayPriceChange": -0.04, "endDate": "2026-12-31T00:00:00Z"},
  {"id": "502", "question": "Will it rain?", "active": "true", "closed": false,
   "volume": "1200.25", "liquidity": "300", "outcomePrices": "[0.2,0.8]",
   "events": [{"category": "Weather"}]},
  {"id": "503", "question": "Closed market", "active": true, "closed": true}
]`

func TestGetMarketsMapsFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/markets", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("active"))
		_, _ = io.WriteString(w, marketsPage)
	}))
	defer srv.Close()

	g := NewGammaClient(GammaConfig{BaseURL: srv.URL})
	markets, err := g.GetMarkets(context.Background(), 10, 0)
	require.NoError(t, err)
	require.Len(t, markets, 2)

	btc := markets[0]
	assert.Equal(t, "501", btc.ID)
	assert.Equal(t, "Crypto", btc.Category)
	assert.InDelta(t, 250000.5, btc.VolumeUSD, 1e-9)
	assert.InDelta(t, 42000.0, btc.LiquidityUSD, 1e-9)
	assert.InDelta(t, 0.63, btc.CurrentProbability, 1e-9)
	assert.InDelta(t, -0.04, btc.PriceChange24h, 1e-9)
	require.NotNil(t, btc.EndDate)
	assert.Equal(t, 2026, btc.EndDate.Year())

	rain := markets[1]
	assert.Equal(t, "Weather", rain.Category)
	assert.InDelta(t, 1200.25, rain.VolumeUSD, 1e-9)
	assert.InDelta(t, 300.0, rain.LiquidityUSD, 1e-9)
	assert.InDelta(t, 0.2, rain.CurrentProbability, 1e-9)
}

func TestFetchAllMarketsPaginates(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		if offset >= 4 {
			_, _ = io.WriteString(w, `[{"id":"last","active":true}]`)
			return
		}
		_, _ = fmt.Fprintf(w, `[{"id":"m%d","active":true},{"id":"m%d","active":true}]`, offset, offset+1)
	}))
	defer srv.Close()

	g := NewGammaClient(GammaConfig{BaseURL: srv.URL, PageSize: 2})
	markets, err := g.FetchAllMarkets(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"m0", "m1", "m2", "m3", "last"}, domain.MarketIDs(markets))
	assert.Equal(t, 3, calls)
}

func TestGammaStatusMapping(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewGammaClient(GammaConfig{BaseURL: srv.URL}).GetMarket(context.Background(), "x")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestYesPriceClamps(t *testing.T) {
	assert.Equal(t, 0.0, yesPrice(""))
	assert.Equal(t, 0.0, yesPrice("garbage"))
	assert.Equal(t, 1.0, yesPrice(`["1.5"]`))
}
