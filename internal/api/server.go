package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"airdash/internal/epoch"
	"airdash/internal/fetcher"
	"airdash/internal/leaderboard"
	"airdash/internal/sentiment"
	"airdash/internal/service"
)

// Dashboard is the read side of the dashboard service.
type Dashboard interface {
	Snapshot() service.Snapshot
	Schedule() *epoch.Schedule
	Subscribe() (<-chan service.Snapshot, func())
}

// Voting is the sentiment poll.
type Voting interface {
	View(ctx context.Context, voter string, epoch int) (sentiment.View, error)
	Cast(ctx context.Context, voter string, epoch int, vote sentiment.Vote) (sentiment.View, error)
}

// Options configures the HTTP surface.
type Options struct {
	Listen          string
	AllowedOrigins  []string
	ShutdownTimeout time.Duration
}

// Deps are the handlers' collaborators. Poll, Candles and Metrics are optional.
type Deps struct {
	Dashboard        Dashboard
	Poll             Voting
	Holders          []leaderboard.Holder
	LeaderboardLimit int
	Candles          fetcher.CandleFetcher
	Metrics          http.Handler
}

// Server exposes the dashboard snapshot over HTTP and websocket.
type Server struct {
	opts   Options
	deps   Deps
	engine *gin.Engine
	logger zerolog.Logger
}

// New wires routes onto a fresh gin engine.
func New(opts Options, deps Deps, logger zerolog.Logger) (*Server, error) {
	if deps.Dashboard == nil {
		return nil, errors.New("api requires a dashboard")
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 5 * time.Second
	}

	s := &Server{
		opts:   opts,
		deps:   deps,
		logger: logger.With().Str("component", "api").Logger(),
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), s.requestLogger())
	engine.Use(cors.New(corsConfig(opts.AllowedOrigins)))

	engine.GET("/healthz", s.health)
	if deps.Metrics != nil {
		engine.GET("/metrics", gin.WrapH(deps.Metrics))
	}

	v1 := engine.Group("/api/v1")
	v1.GET("/snapshot", s.snapshot)
	v1.GET("/epoch", s.epoch)
	v1.GET("/schedule", s.schedule)
	v1.GET("/leaderboard", s.leaderboard)
	v1.GET("/chart", s.chart)
	v1.GET("/sentiment/:epoch", s.sentimentView)
	v1.POST("/sentiment/:epoch", s.sentimentCast)
	v1.GET("/stream", s.stream)

	s.engine = engine
	return s, nil
}

// Handler returns the router for embedding or tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Listen,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("listen", s.opts.Listen).Msg("api server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("api server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown api server: %w", err)
	}
	s.logger.Info().Msg("api server stopped")
	return ctx.Err()
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.DefaultConfig()
	cfg.AllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	if len(origins) == 0 || allowsAll(origins) {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

func allowsAll(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("request served")
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) snapshot(c *gin.Context) {
	c.JSON(http.StatusOK, s.deps.Dashboard.Snapshot())
}

type epochResponse struct {
	epoch.State
	Active      epoch.Definition `json:"active"`
	TotalEpochs int              `json:"total_epochs"`
}

func (s *Server) epoch(c *gin.Context) {
	snap := s.deps.Dashboard.Snapshot()
	c.JSON(http.StatusOK, epochResponse{
		State:       snap.Clock,
		Active:      snap.Active,
		TotalEpochs: snap.TotalEpochs,
	})
}

func (s *Server) schedule(c *gin.Context) {
	snap := s.deps.Dashboard.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"current_epoch": snap.Clock.CurrentEpoch,
		"epochs":        s.deps.Dashboard.Schedule().Epochs(),
	})
}

func (s *Server) leaderboard(c *gin.Context) {
	supply := decimal.Zero
	if data := s.deps.Dashboard.Snapshot().Holders.Data; data != nil {
		supply = data.TotalSupply
	}
	c.JSON(http.StatusOK, gin.H{
		"total_supply": supply,
		"entries":      leaderboard.Build(s.deps.Holders, supply, s.deps.LeaderboardLimit),
	})
}

type chartResponse struct {
	Timeframe string           `json:"timeframe"`
	Limit     int              `json:"limit"`
	Candles   []fetcher.Candle `json:"candles"`
}

func (s *Server) chart(c *gin.Context) {
	if s.deps.Candles == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "price chart disabled"})
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}
	timeframe, limit, err := fetcher.NormalizeCandleQuery(c.Query("timeframe"), limit)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	candles, err := s.deps.Candles.FetchOHLCV(c.Request.Context(), timeframe, limit)
	if err != nil {
		s.logger.Warn().Err(err).Str("timeframe", timeframe).Msg("failed to fetch candles")
		c.JSON(http.StatusBadGateway, gin.H{"error": "price history unavailable"})
		return
	}
	if candles == nil {
		candles = []fetcher.Candle{}
	}
	c.JSON(http.StatusOK, chartResponse{Timeframe: timeframe, Limit: limit, Candles: candles})
}

type sentimentResponse struct {
	sentiment.View
	Total      int64           `json:"total"`
	BullishPct decimal.Decimal `json:"bullish_pct"`
	BearishPct decimal.Decimal `json:"bearish_pct"`
}

func newSentimentResponse(view sentiment.View) sentimentResponse {
	return sentimentResponse{
		View:       view,
		Total:      view.Total(),
		BullishPct: view.BullishPercent(),
		BearishPct: view.BearishPercent(),
	}
}

type castRequest struct {
	Voter string `json:"voter" binding:"required"`
	Vote  string `json:"vote" binding:"required"`
}

func (s *Server) sentimentView(c *gin.Context) {
	n, ok := s.epochParam(c)
	if !ok {
		return
	}
	view, err := s.deps.Poll.View(c.Request.Context(), c.Query("voter"), n)
	if err != nil {
		s.logger.Error().Err(err).Int("epoch", n).Msg("failed to load sentiment")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load sentiment"})
		return
	}
	c.JSON(http.StatusOK, newSentimentResponse(view))
}

func (s *Server) sentimentCast(c *gin.Context) {
	n, ok := s.epochParam(c)
	if !ok {
		return
	}

	var req castRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "voter and vote are required"})
		return
	}
	vote, err := sentiment.ParseVote(req.Vote)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	view, err := s.deps.Poll.Cast(c.Request.Context(), req.Voter, n, vote)
	if err != nil {
		s.logger.Error().Err(err).Int("epoch", n).Msg("failed to record vote")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record vote"})
		return
	}
	c.JSON(http.StatusOK, newSentimentResponse(view))
}

// epochParam parses :epoch and checks it against the schedule. It writes the
// error response itself.
func (s *Server) epochParam(c *gin.Context) (int, bool) {
	if s.deps.Poll == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "sentiment poll disabled"})
		return 0, false
	}
	n, err := strconv.Atoi(c.Param("epoch"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "epoch must be an integer"})
		return 0, false
	}
	if _, ok := s.deps.Dashboard.Schedule().ForEpoch(n); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("epoch %d not in schedule", n)})
		return 0, false
	}
	return n, true
}
