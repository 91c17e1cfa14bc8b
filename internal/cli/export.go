package cli

import (
	"github.com/spf13/cobra"

	"airdash/internal/app"
	"airdash/internal/fetcher"
)

var (
	exportPNGPath      string
	exportCSVPath      string
	exportPricePNGPath string
	exportTimeframe    string
	exportLimit        int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the epoch schedule as CSV and/or PNG chart, and the pool price history",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Export(cmd.Context(), app.ExportOptions{
			PNGPath:      exportPNGPath,
			CSVPath:      exportCSVPath,
			PricePNGPath: exportPricePNGPath,
			Timeframe:    exportTimeframe,
			Limit:        exportLimit,
		})
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportPNGPath, "png", "", "Path to write PNG chart")
	exportCmd.Flags().StringVar(&exportCSVPath, "csv", "", "Path to write CSV data")
	exportCmd.Flags().StringVar(&exportPricePNGPath, "price-png", "", "Path to write the pool price chart")
	exportCmd.Flags().StringVar(&exportTimeframe, "timeframe", "1h", "Candle width for --price-png (1m, 5m, 15m, 1h, 4h, 1d)")
	exportCmd.Flags().IntVar(&exportLimit, "limit", fetcher.DefaultCandleLimit, "Number of candles for --price-png")
}
