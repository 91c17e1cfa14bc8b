package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// MarketOptions parameterise the GeckoTerminal fetcher.
type MarketOptions struct {
	BaseURL     string
	Network     string
	PoolAddress string
	Timeout     time.Duration
	UserAgent   string
}

// Market fetches pool data from GeckoTerminal.
type Market struct {
	opts    MarketOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewMarket constructs a market fetcher.
func NewMarket(opts MarketOptions, logger zerolog.Logger) *Market {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.geckoterminal.com/api/v2"
	}

	return &Market{
		opts:    opts,
		logger:  logger.With().Str("component", "market_fetcher").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// FetchMarket retrieves the pool and its base token and returns the price view.
func (m *Market) FetchMarket(ctx context.Context) (MarketSnapshot, error) {
	if m.opts.Network == "" || m.opts.PoolAddress == "" {
		return MarketSnapshot{}, errors.New("market network and pool address required")
	}

	endpoint := fmt.Sprintf("%s/networks/%s/pools/%s?include=base_token,quote_token", m.baseURL, m.opts.Network, m.opts.PoolAddress)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return MarketSnapshot{}, err
	}
	m.setHeaders(req)

	resp, err := m.client.Do(req)
	if err != nil {
		return MarketSnapshot{}, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return MarketSnapshot{}, err
	}

	if resp.StatusCode != http.StatusOK {
		return MarketSnapshot{}, parseHTTPError(resp.StatusCode, payload)
	}

	var poolRes poolResponse
	if err := json.Unmarshal(payload, &poolRes); err != nil {
		return MarketSnapshot{}, fmt.Errorf("decode pool response: %w", err)
	}

	attrs := poolRes.Data.Attributes
	price, err := decimal.NewFromString(attrs.BaseTokenPriceUSD)
	if err != nil {
		return MarketSnapshot{}, fmt.Errorf("parse base token price: %w", err)
	}

	snap := MarketSnapshot{
		Symbol:          "AIR",
		Name:            "Ethereum OS",
		Address:         attrs.Address,
		PriceUSD:        price,
		PriceChange24h:  decimalOrZero(attrs.PriceChangePercentage.H24),
		MarketCapUSD:    decimalOrZero(attrs.MarketCapUSD),
		Volume24hUSD:    decimalOrZero(attrs.VolumeUSD.H24),
		Transactions24h: attrs.Transactions.H24.Buys + attrs.Transactions.H24.Sells,
		FetchedAt:       time.Now().UTC(),
	}

	baseID := poolRes.Data.Relationships.BaseToken.Data.ID
	for _, token := range poolRes.Included {
		if token.ID != baseID {
			continue
		}
		if token.Attributes.Symbol != "" {
			snap.Symbol = token.Attributes.Symbol
		}
		if token.Attributes.Name != "" {
			snap.Name = token.Attributes.Name
		}
		if token.Attributes.Address != "" {
			snap.Address = token.Attributes.Address
		}
	}

	m.logger.Debug().Str("price_usd", snap.PriceUSD.String()).Msg("pool fetched")
	return snap, nil
}

func (m *Market) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(m.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	} else {
		req.Header.Set("User-Agent", "airdash/1.0")
	}
}

// decimalOrZero treats missing or malformed optional fields as zero.
func decimalOrZero(raw *string) decimal.Decimal {
	if raw == nil {
		return decimal.Zero
	}
	value, err := decimal.NewFromString(*raw)
	if err != nil {
		return decimal.Zero
	}
	return value
}

type poolResponse struct {
	Data struct {
		ID         string `json:"id"`
		Attributes struct {
			Name                  string  `json:"name"`
			Address               string  `json:"address"`
			BaseTokenPriceUSD     string  `json:"base_token_price_usd"`
			MarketCapUSD          *string `json:"market_cap_usd"`
			PriceChangePercentage struct {
				H24 *string `json:"h24"`
			} `json:"price_change_percentage"`
			Transactions struct {
				H24 struct {
					Buys  int64 `json:"buys"`
					Sells int64 `json:"sells"`
				} `json:"h24"`
			} `json:"transactions"`
			VolumeUSD struct {
				H24 *string `json:"h24"`
			} `json:"volume_usd"`
		} `json:"attributes"`
		Relationships struct {
			BaseToken struct {
				Data struct {
					ID string `json:"id"`
				} `json:"data"`
			} `json:"base_token"`
		} `json:"relationships"`
	} `json:"data"`
	Included []struct {
		ID         string `json:"id"`
		Attributes struct {
			Address string `json:"address"`
			Name    string `json:"name"`
			Symbol  string `json:"symbol"`
		} `json:"attributes"`
	} `json:"included"`
}

type errorResponse struct {
	Errors []struct {
		Status string `json:"status"`
		Title  string `json:"title"`
	} `json:"errors"`
}

func parseHTTPError(status int, payload []byte) error {
	var apiErr errorResponse
	if err := json.Unmarshal(payload, &apiErr); err == nil && len(apiErr.Errors) > 0 && apiErr.Errors[0].Title != "" {
		return fmt.Errorf("geckoterminal api error (%d): %s", status, apiErr.Errors[0].Title)
	}
	if len(payload) > 0 {
		return fmt.Errorf("geckoterminal api error (%d): %s", status, strings.TrimSpace(string(payload)))
	}
	return fmt.Errorf("geckoterminal api error (%d)", status)
}

var _ MarketFetcher = (*Market)(nil)
