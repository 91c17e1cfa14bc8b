package leaderboard

import (
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Holder is a raw address and token balance.
type Holder struct {
	Address string
	Balance decimal.Decimal
}

// Entry is a ranked leaderboard row.
type Entry struct {
	Rank     int             `json:"rank"`
	Address  string          `json:"address"`
	Short    string          `json:"short"`
	Balance  decimal.Decimal `json:"balance"`
	SharePct decimal.Decimal `json:"share_pct"`
}

// ParseHolder validates an address and a decimal balance string.
func ParseHolder(address, balance string) (Holder, error) {
	if !common.IsHexAddress(address) {
		return Holder{}, fmt.Errorf("invalid holder address %q", address)
	}
	amount, err := decimal.NewFromString(balance)
	if err != nil {
		return Holder{}, fmt.Errorf("holder %s balance: %w", address, err)
	}
	if amount.IsNegative() {
		return Holder{}, fmt.Errorf("holder %s balance is negative", address)
	}
	return Holder{Address: address, Balance: amount}, nil
}

// Build ranks holders by balance, descending, and keeps at most limit rows.
// Share of supply is left at zero when totalSupply is not positive.
func Build(holders []Holder, totalSupply decimal.Decimal, limit int) []Entry {
	sorted := make([]Holder, len(holders))
	copy(sorted, holders)
	sort.SliceStable(sorted, func(i, j int) bool {
		if c := sorted[i].Balance.Cmp(sorted[j].Balance); c != 0 {
			return c > 0
		}
		return sorted[i].Address < sorted[j].Address
	})

	if limit > 0 && len(sorted) > limit {
		sorted = sorted[:limit]
	}

	hundred := decimal.NewFromInt(100)
	entries := make([]Entry, 0, len(sorted))
	for i, h := range sorted {
		checksum := common.HexToAddress(h.Address).Hex()
		share := decimal.Zero
		if totalSupply.IsPositive() {
			share = h.Balance.Mul(hundred).DivRound(totalSupply, 2)
		}
		entries = append(entries, Entry{
			Rank:     i + 1,
			Address:  checksum,
			Short:    Shorten(checksum),
			Balance:  h.Balance,
			SharePct: share,
		})
	}
	return entries
}

// Shorten renders an address as 0x1234...abcd.
func Shorten(address string) string {
	if len(address) <= 10 {
		return address
	}
	return address[:6] + "..." + address[len(address)-4:]
}
