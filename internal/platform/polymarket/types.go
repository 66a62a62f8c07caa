package polymarket

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/polyagents/internal/domain"
)

// flexBool unmarshals from JSON bool or string ("true"/"false") so Gamma API
// responses work whether "active" is sent as bool or string.
type flexBool bool

func (f *flexBool) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = flexBool(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*f = flexBool(strings.EqualFold(s, "true") || s == "1")
	return nil
}

// flexFloat accepts a JSON number, a numeric string or null.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = 0
		return nil
	}
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexFloat(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*f = flexFloat(n)
	return nil
}

// APIMarket is the subset of a Gamma API market the agents consume.
type APIMarket struct {
	ID                string    `json:"id"`
	Question          string    `json:"question"`
	Slug              string    `json:"slug"`
	Category          string    `json:"category"`
	Active            flexBool  `json:"active"` // API may send bool or "true"/"false" string
	Closed            flexBool  `json:"closed"`
	Volume            flexFloat `json:"volume"`
	VolumeNum         flexFloat `json:"volumeNum"`
	Liquidity         flexFloat `json:"liquidity"`
	LiquidityNum      flexFloat `json:"liquidityNum"`
	OutcomePrices     string    `json:"outcomePrices"` // JSON-encoded: e.g. "[\"0.5\",\"0.5\"]"
	OneDayPriceChange flexFloat `json:"oneDayPriceChange"`
	EndDate           string    `json:"endDate"`
	EndDateISO        string    `json:"end_date_iso"`
	Events            []struct {
		Category string `json:"category"`
	} `json:"events"`
	Tags []struct {
		Label string `json:"label"`
	} `json:"tags"`
}

// ToDomainMarket converts a Gamma APIMarket to a domain.Market. Numeric
// fields prefer the *Num variants and fall back to the string forms.
func (m *APIMarket) ToDomainMarket() domain.Market {
	dm := domain.Market{
		ID:                 strings.TrimSpace(m.ID),
		Question:           m.Question,
		Slug:               m.Slug,
		Category:           m.category(),
		VolumeUSD:          firstNonZero(m.VolumeNum, m.Volume),
		LiquidityUSD:       firstNonZero(m.LiquidityNum, m.Liquidity),
		CurrentProbability: yesPrice(m.OutcomePrices),
		PriceChange24h:     float64(m.OneDayPriceChange),
	}

	for _, raw := range []string{m.EndDate, m.EndDateISO} {
		if raw == "" {
			continue
		}
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			dm.EndDate = &t
			break
		}
		if t, err := time.Parse("2006-01-02", raw); err == nil {
			dm.EndDate = &t
			break
		}
	}
	return dm
}

// Tradable reports whether the market is open for trading.
func (m *APIMarket) Tradable() bool {
	return bool(m.Active) && !bool(m.Closed)
}

func (m *APIMarket) category() string {
	if m.Category != "" {
		return m.Category
	}
	for _, e := range m.Events {
		if e.Category != "" {
			return e.Category
		}
	}
	for _, t := range m.Tags {
		if t.Label != "" {
			return t.Label
		}
	}
	return "Other"
}

func firstNonZero(vals ...flexFloat) float64 {
	for _, v := range vals {
		if v != 0 {
			return float64(v)
		}
	}
	return 0
}

// yesPrice decodes the first entry of the outcomePrices JSON string.
func yesPrice(encoded string) float64 {
	if encoded == "" {
		return 0
	}
	var prices []flexFloat
	if err := json.Unmarshal([]byte(encoded), &prices); err != nil || len(prices) == 0 {
		return 0
	}
	p := float64(prices[0])
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}
