package epoch

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrInvalidConfig is returned when epoch or schedule parameters cannot produce a valid result.
var ErrInvalidConfig = errors.New("invalid epoch configuration")

// ScheduleParams parameterise the APY/reward formula.
type ScheduleParams struct {
	TotalEpochs         int
	BaseAPY             decimal.Decimal
	APYStep             decimal.Decimal
	BaseReward          decimal.Decimal
	TotalRewardDecrease decimal.Decimal
	FloorReward         decimal.Decimal
}

// DefaultScheduleParams returns the $AIR airdrop schedule.
func DefaultScheduleParams() ScheduleParams {
	return ScheduleParams{
		TotalEpochs:         11,
		BaseAPY:             decimal.RequireFromString("6.6"),
		APYStep:             decimal.NewFromInt(3),
		BaseReward:          decimal.NewFromInt(200_000),
		TotalRewardDecrease: decimal.NewFromInt(107_000),
		FloorReward:         decimal.NewFromInt(25_000),
	}
}

// Validate checks the parameters once, before any schedule is generated.
func (p ScheduleParams) Validate() error {
	if p.TotalEpochs < 1 {
		return fmt.Errorf("%w: total epochs must be at least 1", ErrInvalidConfig)
	}
	if p.BaseAPY.IsNegative() || p.APYStep.IsNegative() {
		return fmt.Errorf("%w: apy values cannot be negative", ErrInvalidConfig)
	}
	if p.BaseReward.IsNegative() || p.TotalRewardDecrease.IsNegative() || p.FloorReward.IsNegative() {
		return fmt.Errorf("%w: reward values cannot be negative", ErrInvalidConfig)
	}
	if p.FloorReward.GreaterThan(p.BaseReward) {
		return fmt.Errorf("%w: floor reward %s exceeds base reward %s", ErrInvalidConfig, p.FloorReward, p.BaseReward)
	}
	return nil
}

// StepReward is the per-epoch reduction of the reward pool.
func (p ScheduleParams) StepReward() decimal.Decimal {
	return p.TotalRewardDecrease.Div(decimal.NewFromInt(int64(p.TotalEpochs)))
}

// Definition is one row of the schedule.
type Definition struct {
	Number     int             `json:"epoch"`
	APYPercent decimal.Decimal `json:"apy_percent"`
	RewardPool decimal.Decimal `json:"reward_pool"`
}

// GenerateSchedule derives every epoch row from p. RewardPool is rounded to a
// whole token.
func GenerateSchedule(p ScheduleParams) ([]Definition, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	step := p.StepReward()
	rows := make([]Definition, 0, p.TotalEpochs)
	for n := 1; n <= p.TotalEpochs; n++ {
		offset := decimal.NewFromInt(int64(n - 1))
		apy := p.BaseAPY.Add(offset.Mul(p.APYStep))
		reward := decimal.Max(p.BaseReward.Sub(offset.Mul(step)), p.FloorReward)
		rows = append(rows, Definition{
			Number:     n,
			APYPercent: apy,
			RewardPool: reward.Round(0),
		})
	}
	return rows, nil
}

// Schedule is a precomputed, read-only table of epoch definitions.
type Schedule struct {
	params ScheduleParams
	rows   []Definition
}

// NewSchedule validates p and precomputes all rows.
func NewSchedule(p ScheduleParams) (*Schedule, error) {
	rows, err := GenerateSchedule(p)
	if err != nil {
		return nil, err
	}
	return &Schedule{params: p, rows: rows}, nil
}

// Params returns the parameters the schedule was built from.
func (s *Schedule) Params() ScheduleParams {
	return s.params
}

// Len returns the number of epochs.
func (s *Schedule) Len() int {
	return len(s.rows)
}

// Epochs returns a copy of all rows ordered by epoch number.
func (s *Schedule) Epochs() []Definition {
	out := make([]Definition, len(s.rows))
	copy(out, s.rows)
	return out
}

// ForEpoch returns the row for epoch n.
func (s *Schedule) ForEpoch(n int) (Definition, bool) {
	if n < 1 || n > len(s.rows) {
		return Definition{}, false
	}
	return s.rows[n-1], true
}
