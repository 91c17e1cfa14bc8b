package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// HoldersOptions parameterise the Etherscan fetcher.
type HoldersOptions struct {
	BaseURL         string
	APIKey          string
	ChainID         int64
	ContractAddress string
	Decimals        int32
	Timeout         time.Duration
}

// Holders fetches holder count and supply from Etherscan.
type Holders struct {
	opts    HoldersOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewHolders constructs a holder fetcher.
func NewHolders(opts HoldersOptions, logger zerolog.Logger) *Holders {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.etherscan.io/v2/api"
	}
	if opts.ChainID == 0 {
		opts.ChainID = 1
	}
	return &Holders{
		opts:    opts,
		logger:  logger.With().Str("component", "holders_fetcher").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// FetchHolders calls tokenholdercount and tokensupply.
func (h *Holders) FetchHolders(ctx context.Context) (HolderStats, error) {
	if h.opts.APIKey == "" {
		return HolderStats{}, errors.New("etherscan api key not configured")
	}
	if h.opts.ContractAddress == "" {
		return HolderStats{}, errors.New("token contract address not configured")
	}

	countRaw, err := h.call(ctx, "tokenholdercount")
	if err != nil {
		return HolderStats{}, fmt.Errorf("fetch holder count: %w", err)
	}
	count, err := strconv.ParseInt(countRaw, 10, 64)
	if err != nil {
		return HolderStats{}, fmt.Errorf("parse holder count: %w", err)
	}

	supplyRaw, err := h.call(ctx, "tokensupply")
	if err != nil {
		return HolderStats{}, fmt.Errorf("fetch token supply: %w", err)
	}
	supplyAtoms, err := decimal.NewFromString(supplyRaw)
	if err != nil {
		return HolderStats{}, fmt.Errorf("parse token supply: %w", err)
	}

	return HolderStats{
		Holders:     count,
		TotalSupply: supplyAtoms.Shift(-h.opts.Decimals),
		FetchedAt:   time.Now().UTC(),
	}, nil
}

func (h *Holders) call(ctx context.Context, action string) (string, error) {
	module := "token"
	if action == "tokensupply" {
		module = "stats"
	}

	q := url.Values{}
	q.Set("chainid", strconv.FormatInt(h.opts.ChainID, 10))
	q.Set("module", module)
	q.Set("action", action)
	q.Set("contractaddress", h.opts.ContractAddress)
	q.Set("apikey", h.opts.APIKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("etherscan http status %d", resp.StatusCode)
	}

	var res etherscanResponse
	if err := json.Unmarshal(payload, &res); err != nil {
		return "", fmt.Errorf("decode etherscan response: %w", err)
	}
	if res.Status != "1" {
		return "", fmt.Errorf("etherscan %s: %s (%s)", action, res.Message, res.Result)
	}

	h.logger.Debug().Str("action", action).Str("result", res.Result).Msg("etherscan call")
	return res.Result, nil
}

type etherscanResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Result  string `json:"result"`
}

var _ HolderFetcher = (*Holders)(nil)
