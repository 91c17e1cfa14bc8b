package app

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"airdash/internal/epoch"
	"airdash/internal/fetcher"
)

// ExportOptions hold output paths for the schedule and price exports.
type ExportOptions struct {
	CSVPath      string
	PNGPath      string
	PricePNGPath string
	Timeframe    string
	Limit        int
}

// Export renders the epoch schedule as CSV and/or PNG, and the pool price
// history as PNG when PricePNGPath is set.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" && opts.PricePNGPath == "" {
		return errors.New("at least one of --csv, --png or --price-png must be provided")
	}

	clock, schedule, err := a.newTimeline()
	if err != nil {
		return err
	}
	defs := schedule.Epochs()
	a.Logger.Info().Int("epochs", len(defs)).Msg("exporting schedule")

	if opts.CSVPath != "" {
		if err := writeScheduleCSV(opts.CSVPath, clock, defs); err != nil {
			return err
		}
	}

	width, height := a.Config.Export.ChartWidth, a.Config.Export.ChartHeight
	if opts.PNGPath != "" {
		if err := writeSchedulePNG(opts.PNGPath, defs, width, height); err != nil {
			return err
		}
	}

	if opts.PricePNGPath != "" {
		sources, err := a.newFetchers()
		if err != nil {
			return err
		}
		if sources.candles == nil {
			return errors.New("price export requires market.pool_address")
		}
		candles, err := sources.candles.FetchOHLCV(ctx, opts.Timeframe, opts.Limit)
		if err != nil {
			return fmt.Errorf("fetch price history: %w", err)
		}
		a.Logger.Info().Int("candles", len(candles)).Msg("exporting price history")
		if err := writePricePNG(opts.PricePNGPath, candles, width, height); err != nil {
			return err
		}
	}

	return nil
}

func writeScheduleCSV(path string, clock *epoch.Clock, defs []epoch.Definition) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)

	header := []string{"epoch", "apy_percent", "reward_pool", "start", "end"}
	if err := writer.Write(header); err != nil {
		return err
	}

	minEpoch := clock.Config().MinEpoch
	for _, def := range defs {
		start, end := "", ""
		if def.Number >= minEpoch {
			s, e := clock.Bounds(def.Number)
			start, end = s.Format(time.RFC3339), e.Format(time.RFC3339)
		}
		record := []string{
			strconv.Itoa(def.Number),
			def.APYPercent.String(),
			def.RewardPool.String(),
			start,
			end,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func writeSchedulePNG(path string, defs []epoch.Definition, width, height int) error {
	if err := ensureDir(path); err != nil {
		return err
	}
	if width <= 0 {
		width = 1280
	}
	if height <= 0 {
		height = 720
	}

	x := make([]float64, len(defs))
	apy := make([]float64, len(defs))
	reward := make([]float64, len(defs))
	for i, def := range defs {
		x[i] = float64(def.Number)
		apy[i] = def.APYPercent.InexactFloat64()
		reward[i] = def.RewardPool.InexactFloat64()
	}

	graph := chart.Chart{
		Width:  width,
		Height: height,
		XAxis: chart.XAxis{
			Name: "Epoch",
			ValueFormatter: func(v interface{}) string {
				return chart.FloatValueFormatterWithFormat(v, "%.0f")
			},
		},
		YAxis: chart.YAxis{
			Name: "APY (%)",
			ValueFormatter: func(v interface{}) string {
				return chart.FloatValueFormatterWithFormat(v, "%.1f")
			},
		},
		YAxisSecondary: chart.YAxis{
			Name: "Reward pool ($AIR)",
			ValueFormatter: func(v interface{}) string {
				return chart.FloatValueFormatterWithFormat(v, "%.0f")
			},
		},
		Series: []chart.Series{
			chart.ContinuousSeries{
				Name:    "APY %",
				XValues: x,
				YValues: apy,
			},
			chart.ContinuousSeries{
				Name:    "Reward pool",
				XValues: x,
				YValues: reward,
				YAxis:   chart.YAxisSecondary,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func writePricePNG(path string, candles []fetcher.Candle, width, height int) error {
	if len(candles) < 2 {
		return fmt.Errorf("price chart needs at least 2 candles, got %d", len(candles))
	}
	if err := ensureDir(path); err != nil {
		return err
	}
	if width <= 0 {
		width = 1280
	}
	if height <= 0 {
		height = 720
	}

	x := make([]time.Time, len(candles))
	closes := make([]float64, len(candles))
	volume := make([]float64, len(candles))
	for i, c := range candles {
		x[i] = c.Time
		closes[i] = c.Close.InexactFloat64()
		volume[i] = c.Volume.InexactFloat64()
	}

	graph := chart.Chart{
		Width:  width,
		Height: height,
		XAxis: chart.XAxis{
			Name:           "Time (UTC)",
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name: "Price (USD)",
			ValueFormatter: func(v interface{}) string {
				return chart.FloatValueFormatterWithFormat(v, "%.5f")
			},
		},
		YAxisSecondary: chart.YAxis{
			Name: "Volume (USD)",
			ValueFormatter: func(v interface{}) string {
				return chart.FloatValueFormatterWithFormat(v, "%.0f")
			},
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Close",
				XValues: x,
				YValues: closes,
			},
			chart.TimeSeries{
				Name:    "Volume",
				XValues: x,
				YValues: volume,
				YAxis:   chart.YAxisSecondary,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
