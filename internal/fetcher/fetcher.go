package fetcher

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// MarketSnapshot is the read-only price view of the $AIR pool.
type MarketSnapshot struct {
	Symbol          string          `json:"symbol"`
	Name            string          `json:"name"`
	Address         string          `json:"address"`
	PriceUSD        decimal.Decimal `json:"price_usd"`
	PriceChange24h  decimal.Decimal `json:"price_change_24h"`
	MarketCapUSD    decimal.Decimal `json:"market_cap_usd"`
	Volume24hUSD    decimal.Decimal `json:"volume_24h_usd"`
	Transactions24h int64           `json:"transactions_24h"`
	FetchedAt       time.Time       `json:"fetched_at"`
}

// HolderStats is the holder count and circulating supply of the token.
type HolderStats struct {
	Holders     int64           `json:"holders"`
	TotalSupply decimal.Decimal `json:"total_supply"`
	FetchedAt   time.Time       `json:"fetched_at"`
}

// MarketFetcher retrieves price, volume and market cap.
type MarketFetcher interface {
	FetchMarket(ctx context.Context) (MarketSnapshot, error)
}

// HolderFetcher retrieves holder statistics.
type HolderFetcher interface {
	FetchHolders(ctx context.Context) (HolderStats, error)
}

// StaticMarket serves a fixed snapshot. The app uses it when market.pool_address
// is empty and market.static is enabled.
type StaticMarket struct {
	Snapshot MarketSnapshot
}

// FetchMarket returns the configured snapshot.
func (s *StaticMarket) FetchMarket(ctx context.Context) (MarketSnapshot, error) {
	snap := s.Snapshot
	snap.FetchedAt = time.Now().UTC()
	return snap, nil
}

// StaticHolders serves fixed holder statistics when holders.api_key is empty
// and holders.static is enabled.
type StaticHolders struct {
	Stats HolderStats
}

// FetchHolders returns the configured stats.
func (s *StaticHolders) FetchHolders(ctx context.Context) (HolderStats, error) {
	stats := s.Stats
	stats.FetchedAt = time.Now().UTC()
	return stats, nil
}

var _ MarketFetcher = (*StaticMarket)(nil)
var _ HolderFetcher = (*StaticHolders)(nil)
