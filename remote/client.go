// Package remote talks to the tabular content store over HTTP/JSON.
//
// Fetch and FindOne return categorised errors. List is the fail-open variant used by
// rendering code: it never fails, it logs and returns an empty page instead.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// DefaultBaseURL is the public API root of the store.
	DefaultBaseURL = "https://api.airtable.com/v0"
	// DefaultTimeout bounds a single request.
	DefaultTimeout = 15 * time.Second

	requestIDHeader = "X-Request-Id"
	maxErrorBody    = 2048
)

// Config carries the connection settings of a Client.
type Config struct {
	BaseURL   string
	BaseID    string
	Token     string
	Timeout   time.Duration
	UserAgent string
}

// Configured reports whether the credentials and base identifier are present.
func (c Config) Configured() bool {
	return strings.TrimSpace(c.Token) != "" && strings.TrimSpace(c.BaseID) != ""
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLogger sets the logger used for fail-open warnings.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Client issues list requests against one store base.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient builds a Client. Missing configuration is not an error here; every call
// reports ErrNotConfigured instead.
func NewClient(cfg Config, opts ...Option) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured reports whether calls can reach the store at all.
func (c *Client) Configured() bool {
	return c.cfg.Configured()
}

// Fetch performs one list request and returns the raw page.
func (c *Client) Fetch(ctx context.Context, req ListRequest) (Page, error) {
	if !c.Configured() || strings.TrimSpace(req.Table) == "" {
		return Page{}, ErrNotConfigured
	}

	endpoint, err := c.endpoint(req)
	if err != nil {
		return Page{}, errors.Wrap(err, errors.CategoryBadInput, "building list url").
			WithMetadata(map[string]any{"table": req.Table})
	}

	requestID := uuid.NewString()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Page{}, errors.Wrap(err, errors.CategoryInternal, "creating list request").
			WithRequestID(requestID)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set(requestIDHeader, requestID)
	if c.cfg.UserAgent != "" {
		httpReq.Header.Set("User-Agent", c.cfg.UserAgent)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Page{}, errors.Wrap(err, errors.CategoryExternal, "requesting "+req.Table).
			WithRequestID(requestID).
			WithMetadata(map[string]any{"table": req.Table})
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return Page{}, statusError(resp.StatusCode, req.Table, body).WithRequestID(requestID)
	}

	var page Page
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return Page{}, errors.Wrap(err, errors.CategoryExternal, "decoding "+req.Table+" page").
			WithRequestID(requestID).
			WithMetadata(map[string]any{"table": req.Table})
	}

	for i := range page.Records {
		if page.Records[i].Fields == nil {
			page.Records[i].Fields = map[string]any{}
		}
	}
	return page, nil
}

// List is the fail-open variant of Fetch: failures are logged and yield an empty page.
func (c *Client) List(ctx context.Context, req ListRequest) Page {
	page, err := c.Fetch(ctx, req)
	if err != nil {
		c.warn("list request failed", req.Table, err)
		return Page{}
	}
	return page
}

// FindOne returns the first record matching formula, or nil when there is none.
func (c *Client) FindOne(ctx context.Context, table, formula string, fields []string) (*Record, error) {
	page, err := c.Fetch(ctx, ListRequest{
		Table:      table,
		PageSize:   1,
		MaxRecords: 1,
		Formula:    formula,
		Fields:     fields,
	})
	if err != nil {
		return nil, err
	}
	if len(page.Records) == 0 {
		return nil, nil
	}
	rec := page.Records[0]
	return &rec, nil
}

func (c *Client) warn(msg, table string, err error) {
	if IsNotConfigured(err) {
		return
	}
	fields := []zap.Field{zap.String("table", table), zap.Error(err)}
	var e *errors.Error
	if errors.As(err, &e) && e.RequestID != "" {
		fields = append(fields, zap.String("request_id", e.RequestID))
	}
	c.logger.Warn(msg, fields...)
}

func (c *Client) endpoint(req ListRequest) (string, error) {
	base, err := url.Parse(strings.TrimRight(c.cfg.BaseURL, "/"))
	if err != nil {
		return "", err
	}
	base = base.JoinPath(c.cfg.BaseID, req.Table)

	q := url.Values{}
	q.Set("pageSize", strconv.Itoa(ClampPageSize(req.PageSize)))
	if req.Offset != "" {
		q.Set("offset", req.Offset)
	}
	if req.Formula != "" {
		q.Set("filterByFormula", req.Formula)
	}
	if req.MaxRecords > 0 {
		q.Set("maxRecords", strconv.Itoa(req.MaxRecords))
	}
	for i, s := range req.Sort {
		if s.Field == "" {
			continue
		}
		q.Set(fmt.Sprintf("sort[%d][field]", i), s.Field)
		dir := strings.ToLower(s.Direction)
		if dir != "desc" {
			dir = "asc"
		}
		q.Set(fmt.Sprintf("sort[%d][direction]", i), dir)
	}
	for _, f := range req.Fields {
		q.Add("fields[]", f)
	}

	base.RawQuery = q.Encode()
	return base.String(), nil
}

func statusError(status int, table string, body []byte) *errors.Error {
	category := errors.CategoryExternal
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		category = errors.CategoryAuth
	case http.StatusNotFound:
		category = errors.CategoryNotFound
	case http.StatusTooManyRequests:
		category = errors.CategoryRateLimit
	}

	meta := map[string]any{"table": table, "status": status}
	if msg := apiMessage(body); msg != "" {
		meta["api_error"] = msg
	}
	return errors.New(fmt.Sprintf("%s responded %d", table, status), category).
		WithCode(status).
		WithMetadata(meta)
}

// apiMessage extracts {"error": {"type", "message"}} or {"error": "TYPE"} bodies.
func apiMessage(body []byte) string {
	var envelope struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Error) == 0 {
		return ""
	}
	var detailed struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(envelope.Error, &detailed); err == nil {
		return strings.TrimSpace(detailed.Type + " " + detailed.Message)
	}
	var plain string
	if err := json.Unmarshal(envelope.Error, &plain); err == nil {
		return plain
	}
	return ""
}

// IsNotConfigured reports whether err signals missing store configuration.
func IsNotConfigured(err error) bool {
	var e *errors.Error
	return errors.As(err, &e) && e.TextCode == ErrNotConfigured.TextCode
}
