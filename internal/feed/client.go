package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/fiply/internal/models"
	"github.com/desertthunder/fiply/internal/shared"
	"github.com/go-resty/resty/v2"
)

const (
	DefaultEndpoint  = "https://www.fip.fr/latest/api/graphql"
	DefaultOperation = "History"
	DefaultStationID = 7
	DefaultPageSize  = 100
	DefaultQueryHash = "ce6791c62408f27b9338f58c2a4b6fdfd9d1afc992ebae874063f714784d4129"
	defaultTimeout   = 30 * time.Second
)

// Options configures a [Client]. Zero values fall back to the package defaults.
type Options struct {
	Endpoint   string
	Operation  string
	StationID  int
	PageSize   int
	QueryHash  string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *log.Logger
}

// Client fetches pages of the station's play history.
type Client struct {
	http      *resty.Client
	endpoint  string
	operation string
	stationID int
	pageSize  int
	queryHash string
	logger    *log.Logger
}

type historyVariables struct {
	First     int    `json:"first"`
	After     string `json:"after"`
	StationID int    `json:"stationId"`
}

type persistedQuery struct {
	Version    int    `json:"version"`
	SHA256Hash string `json:"sha256Hash"`
}

type historyExtensions struct {
	PersistedQuery persistedQuery `json:"persistedQuery"`
}

// NewClient creates a feed [Client].
func NewClient(opts Options) *Client {
	if opts.Endpoint == "" {
		opts.Endpoint = DefaultEndpoint
	}
	if opts.Operation == "" {
		opts.Operation = DefaultOperation
	}
	if opts.StationID == 0 {
		opts.StationID = DefaultStationID
	}
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.QueryHash == "" {
		opts.QueryHash = DefaultQueryHash
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	var rc *resty.Client
	if opts.HTTPClient != nil {
		rc = resty.NewWithClient(opts.HTTPClient)
	} else {
		rc = resty.New()
	}
	rc.SetTimeout(opts.Timeout).
		SetHeader("Accept", "application/json").
		SetLogger(opts.Logger)

	return &Client{
		http:      rc,
		endpoint:  opts.Endpoint,
		operation: opts.Operation,
		stationID: opts.StationID,
		pageSize:  opts.PageSize,
		queryHash: opts.QueryHash,
		logger:    opts.Logger,
	}
}

// NewClientFromConfig creates a [Client] from the [shared.FeedConfig] section.
func NewClientFromConfig(cfg shared.FeedConfig, logger *log.Logger) *Client {
	return NewClient(Options{
		Endpoint:  cfg.Endpoint,
		Operation: cfg.Operation,
		StationID: cfg.StationID,
		PageSize:  cfg.PageSize,
		QueryHash: cfg.QueryHash,
		Timeout:   cfg.Timeout.Duration,
		Logger:    logger,
	})
}

// queryParams builds the persisted-query parameters for a page ending at `at`.
func (c *Client) queryParams(at time.Time) (map[string]string, error) {
	variables, err := json.Marshal(historyVariables{
		First:     c.pageSize,
		After:     string(EncodeCursor(at)),
		StationID: c.stationID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode variables: %w", err)
	}

	extensions, err := json.Marshal(historyExtensions{
		PersistedQuery: persistedQuery{Version: 1, SHA256Hash: c.queryHash},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode extensions: %w", err)
	}

	return map[string]string{
		"operationName": c.operation,
		"variables":     string(variables),
		"extensions":    string(extensions),
	}, nil
}

// Fetch requests one page of events played at or before `at`.
func (c *Client) Fetch(ctx context.Context, at time.Time) (*models.Page, error) {
	params, err := c.queryParams(at)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("fetching history page", "at", at.UTC().Format(time.RFC3339))

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(params).
		Get(c.endpoint)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("history request cancelled: %w", ctx.Err())
		}
		return nil, fmt.Errorf("%w: %v", shared.ErrTransport, err)
	}

	if !resp.IsSuccess() {
		return nil, fmt.Errorf("%w: status %d", shared.ErrTransport, resp.StatusCode())
	}

	page, dropped, err := parseHistory(resp.Body(), c.logger)
	if err != nil {
		return nil, err
	}

	if dropped > 0 {
		c.logger.Warn("dropped malformed records", "dropped", dropped, "kept", len(page.Events))
	}

	return page, nil
}
