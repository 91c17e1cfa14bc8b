package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"airdash/internal/alerting"
	"airdash/internal/api"
	"airdash/internal/config"
	"airdash/internal/epoch"
	"airdash/internal/fetcher"
	"airdash/internal/leaderboard"
	"airdash/internal/metrics"
	"airdash/internal/sentiment"
	"airdash/internal/service"
	"airdash/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	Out    io.Writer
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{
		Config: cfg,
		Logger: logger.With().Str("component", "app").Logger(),
		Out:    os.Stdout,
	}
}

func (a *App) newTimeline() (*epoch.Clock, *epoch.Schedule, error) {
	clock, err := epoch.NewClock(a.Config.ClockConfig())
	if err != nil {
		return nil, nil, err
	}
	params, err := a.Config.ScheduleParams()
	if err != nil {
		return nil, nil, err
	}
	schedule, err := epoch.NewSchedule(params)
	if err != nil {
		return nil, nil, err
	}
	return clock, schedule, nil
}

// fetchers bundles the upstream sources chosen from configuration.
type fetchers struct {
	market  fetcher.MarketFetcher
	holders fetcher.HolderFetcher
	candles fetcher.CandleFetcher
}

// newFetchers prefers the live APIs and falls back to the configured static
// values when pool_address or api_key is empty. Candles need a live pool.
func (a *App) newFetchers() (fetchers, error) {
	var f fetchers

	switch mc := a.Config.Market; {
	case mc.PoolAddress != "":
		live := fetcher.NewMarket(fetcher.MarketOptions{
			BaseURL:     mc.BaseURL,
			Network:     mc.Network,
			PoolAddress: mc.PoolAddress,
			Timeout:     mc.RequestTimeout,
			UserAgent:   mc.UserAgent,
		}, a.Logger)
		f.market = live
		f.candles = live
	case mc.Static.Enabled:
		snap, err := mc.Static.Snapshot()
		if err != nil {
			return fetchers{}, err
		}
		f.market = &fetcher.StaticMarket{Snapshot: snap}
		a.Logger.Warn().Str("price_usd", snap.PriceUSD.String()).Msg("market.pool_address not configured; serving static market data")
	default:
		a.Logger.Warn().Msg("market.pool_address not configured; market data disabled")
	}

	switch hc := a.Config.Holders; {
	case hc.APIKey != "":
		f.holders = fetcher.NewHolders(fetcher.HoldersOptions{
			BaseURL:         hc.BaseURL,
			APIKey:          hc.APIKey,
			ChainID:         hc.ChainID,
			ContractAddress: hc.ContractAddress,
			Decimals:        hc.Decimals,
			Timeout:         hc.RequestTimeout,
		}, a.Logger)
	case hc.Static.Enabled:
		stats, err := hc.Static.Stats()
		if err != nil {
			return fetchers{}, err
		}
		f.holders = &fetcher.StaticHolders{Stats: stats}
		a.Logger.Warn().Int64("holders", stats.Holders).Msg("holders.api_key not configured; serving static holder stats")
	default:
		a.Logger.Warn().Msg("holders.api_key not configured; holder stats disabled")
	}

	return f, nil
}

func (a *App) newNotifier() alerting.Notifier {
	if a.Config.Alerting.Enabled && a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, cfg.Timeout, a.Logger)
	}
	return nil
}

// openStore returns the Postgres preference store when a DSN is configured
// and an in-memory one otherwise.
func (a *App) openStore(ctx context.Context) (storage.PreferenceStore, func(), error) {
	if a.Config.Database.DSN == "" {
		a.Logger.Warn().Msg("database.dsn not configured; votes kept in memory")
		return storage.NewMemoryStore(), func() {}, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	if err := store.EnsureSchema(ctx); err != nil {
		store.Close()
		return nil, nil, err
	}
	return store, store.Close, nil
}

func (a *App) newPoll(store storage.PreferenceStore) *sentiment.Poll {
	return sentiment.NewPoll(store, sentiment.Baseline{
		Bullish: a.Config.Sentiment.BaselineBullish,
		Bearish: a.Config.Sentiment.BaselineBearish,
	}, a.Logger)
}

func (a *App) leaderboardHolders() ([]leaderboard.Holder, error) {
	holders := make([]leaderboard.Holder, 0, len(a.Config.Leaderboard.Holders))
	for _, h := range a.Config.Leaderboard.Holders {
		holder, err := leaderboard.ParseHolder(h.Address, h.Balance)
		if err != nil {
			return nil, fmt.Errorf("leaderboard: %w", err)
		}
		holders = append(holders, holder)
	}
	return holders, nil
}

// Run executes the dashboard service and its API until interrupted.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	clock, schedule, err := a.newTimeline()
	if err != nil {
		return err
	}
	holders, err := a.leaderboardHolders()
	if err != nil {
		return err
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	sources, err := a.newFetchers()
	if err != nil {
		return err
	}
	m := metrics.New()

	svc, err := service.New(service.Deps{
		Clock:    clock,
		Schedule: schedule,
		Market:   sources.market,
		Holders:  sources.holders,
		Notifier: a.newNotifier(),
		Metrics:  m,
	}, service.Options{
		TickInterval: a.Config.Scheduler.TickInterval,
		PollInterval: a.Config.Scheduler.PollInterval,
		StartupDelay: a.Config.Scheduler.StartupDelay,
	}, a.Logger)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return svc.Run(gctx) })

	if a.Config.API.Enabled {
		server, err := api.New(api.Options{
			Listen:         a.Config.API.Listen,
			AllowedOrigins: a.Config.API.AllowedOrigins,
		}, api.Deps{
			Dashboard:        svc,
			Poll:             a.newPoll(store),
			Holders:          holders,
			LeaderboardLimit: a.Config.Leaderboard.Limit,
			Candles:          sources.candles,
			Metrics:          m.Handler(),
		}, a.Logger)
		if err != nil {
			return err
		}
		g.Go(func() error { return server.Run(gctx) })
	}

	a.Logger.Info().
		Int("epochs", schedule.Len()).
		Bool("api", a.Config.API.Enabled).
		Msg("starting dashboard service")

	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("dashboard terminated with error")
		return err
	}

	a.Logger.Info().Msg("dashboard service stopped")
	return nil
}
