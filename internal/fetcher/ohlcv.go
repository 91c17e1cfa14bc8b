package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrInvalidTimeframe is returned for a timeframe outside Timeframes.
var ErrInvalidTimeframe = errors.New("unsupported timeframe")

const (
	// DefaultCandleLimit is used when no limit is requested.
	DefaultCandleLimit = 100
	// MaxCandleLimit is the largest page GeckoTerminal serves.
	MaxCandleLimit = 1000
)

// Timeframes lists the supported candle widths.
var Timeframes = []string{"1m", "5m", "15m", "1h", "4h", "1d"}

// GeckoTerminal takes a unit path segment plus an aggregate multiplier.
var timeframeParams = map[string]struct {
	unit      string
	aggregate int
}{
	"1m":  {"minute", 1},
	"5m":  {"minute", 5},
	"15m": {"minute", 15},
	"1h":  {"hour", 1},
	"4h":  {"hour", 4},
	"1d":  {"day", 1},
}

// Candle is one OHLCV bucket of the pool price in USD.
type Candle struct {
	Time   time.Time       `json:"time"`
	Open   decimal.Decimal `json:"open"`
	High   decimal.Decimal `json:"high"`
	Low    decimal.Decimal `json:"low"`
	Close  decimal.Decimal `json:"close"`
	Volume decimal.Decimal `json:"volume"`
}

// CandleFetcher retrieves price history.
type CandleFetcher interface {
	FetchOHLCV(ctx context.Context, timeframe string, limit int) ([]Candle, error)
}

// NormalizeCandleQuery applies the defaults and bounds shared by every caller.
func NormalizeCandleQuery(timeframe string, limit int) (string, int, error) {
	timeframe = strings.ToLower(strings.TrimSpace(timeframe))
	if timeframe == "" {
		timeframe = "1h"
	}
	if _, ok := timeframeParams[timeframe]; !ok {
		return "", 0, fmt.Errorf("%w: %q (want one of %s)", ErrInvalidTimeframe, timeframe, strings.Join(Timeframes, ", "))
	}
	if limit <= 0 {
		limit = DefaultCandleLimit
	}
	if limit > MaxCandleLimit {
		limit = MaxCandleLimit
	}
	return timeframe, limit, nil
}

// FetchOHLCV retrieves up to limit candles for the pool, oldest first.
func (m *Market) FetchOHLCV(ctx context.Context, timeframe string, limit int) ([]Candle, error) {
	if m.opts.Network == "" || m.opts.PoolAddress == "" {
		return nil, errors.New("market network and pool address required")
	}
	timeframe, limit, err := NormalizeCandleQuery(timeframe, limit)
	if err != nil {
		return nil, err
	}
	params := timeframeParams[timeframe]

	endpoint := fmt.Sprintf("%s/networks/%s/pools/%s/ohlcv/%s?aggregate=%d&limit=%d&currency=usd",
		m.baseURL, m.opts.Network, m.opts.PoolAddress, params.unit, params.aggregate, limit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	m.setHeaders(req)

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, parseHTTPError(resp.StatusCode, payload)
	}

	var res ohlcvResponse
	if err := json.Unmarshal(payload, &res); err != nil {
		return nil, fmt.Errorf("decode ohlcv response: %w", err)
	}

	candles := make([]Candle, 0, len(res.Data.Attributes.OHLCVList))
	for i, row := range res.Data.Attributes.OHLCVList {
		candle, err := parseCandle(row)
		if err != nil {
			return nil, fmt.Errorf("ohlcv row %d: %w", i, err)
		}
		candles = append(candles, candle)
	}
	sort.Slice(candles, func(i, j int) bool { return candles[i].Time.Before(candles[j].Time) })

	m.logger.Debug().Str("timeframe", timeframe).Int("candles", len(candles)).Msg("ohlcv fetched")
	return candles, nil
}

// parseCandle reads [timestamp, open, high, low, close, volume].
func parseCandle(row []json.Number) (Candle, error) {
	if len(row) != 6 {
		return Candle{}, fmt.Errorf("expected 6 fields, got %d", len(row))
	}
	ts, err := row[0].Int64()
	if err != nil {
		return Candle{}, fmt.Errorf("timestamp: %w", err)
	}

	values := make([]decimal.Decimal, 5)
	for i, raw := range row[1:] {
		v, err := decimal.NewFromString(raw.String())
		if err != nil {
			return Candle{}, fmt.Errorf("field %d: %w", i+1, err)
		}
		values[i] = v
	}

	return Candle{
		Time:   time.Unix(ts, 0).UTC(),
		Open:   values[0],
		High:   values[1],
		Low:    values[2],
		Close:  values[3],
		Volume: values[4],
	}, nil
}

type ohlcvResponse struct {
	Data struct {
		Attributes struct {
			OHLCVList [][]json.Number `json:"ohlcv_list"`
		} `json:"attributes"`
	} `json:"data"`
}

var _ CandleFetcher = (*Market)(nil)
