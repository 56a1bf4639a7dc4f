// Package erp is a JSON-RPC client for the ERP object interface.
package erp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
)

// Caller executes a model method on the ERP.
type Caller interface {
	Call(ctx context.Context, model, method string, args []any, kwargs map[string]any, out any) error
}

// Observer receives the outcome of every object call.
type Observer interface {
	ObserveCall(model, method string, elapsed time.Duration, err error)
}

// Config holds connection settings.
type Config struct {
	URL        string
	Database   string
	Username   string
	Password   string
	Timeout    time.Duration
	SessionTTL time.Duration
}

// Client talks to the ERP over JSON-RPC and keeps the login uid cached.
type Client struct {
	cfg        Config
	endpoint   string
	httpClient *http.Client
	logger     *slog.Logger
	observer   Observer
	cache      redis.UniversalClient
	creds      *credentials
	seq        atomic.Int64
}

// Option customises the client.
type Option func(*Client)

// WithHTTPClient overrides the transport.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger used for call tracing.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithObserver registers a call observer.
func WithObserver(o Observer) Option {
	return func(c *Client) { c.observer = o }
}

// WithCredentialCache shares the login uid across replicas through redis.
func WithCredentialCache(rdb redis.UniversalClient) Option {
	return func(c *Client) { c.cache = rdb }
}

// New constructs a client.
func New(cfg Config, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("erp: url required")
	}
	if cfg.Database == "" || cfg.Username == "" {
		return nil, errors.New("erp: database and username required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 10 * time.Minute
	}
	c := &Client{
		cfg:      cfg,
		endpoint: strings.TrimRight(cfg.URL, "/") + "/jsonrpc",
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	c.creds = newCredentials(c.authenticate, c.cache, cacheKey(cfg), cfg.SessionTTL)
	return c, nil
}

func cacheKey(cfg Config) string {
	return fmt.Sprintf("erp:uid:%s:%s", cfg.Database, cfg.Username)
}

// UID returns the authenticated user id, logging in when needed.
func (c *Client) UID(ctx context.Context) (int64, error) {
	return c.creds.uid(ctx)
}

// Call runs execute_kw and decodes the result into out when non-nil.
func (c *Client) Call(ctx context.Context, model, method string, args []any, kwargs map[string]any, out any) error {
	start := time.Now()
	err := c.call(ctx, model, method, args, kwargs, out)
	elapsed := time.Since(start)
	if c.observer != nil {
		c.observer.ObserveCall(model, method, elapsed, err)
	}
	c.logger.DebugContext(ctx, "erp call",
		slog.String("model", model),
		slog.String("method", method),
		slog.Duration("elapsed", elapsed),
		slog.String("request_id", middleware.GetReqID(ctx)),
		slog.Any("error", err),
	)
	return err
}

func (c *Client) call(ctx context.Context, model, method string, args []any, kwargs map[string]any, out any) error {
	uid, err := c.creds.uid(ctx)
	if err != nil {
		return err
	}
	err = c.executeKW(ctx, uid, model, method, args, kwargs, out)
	if !errors.Is(err, ErrAccessDenied) {
		return err
	}
	// The cached uid may have outlived the ERP session; log in again once.
	c.creds.invalidate(ctx)
	uid, err = c.creds.uid(ctx)
	if err != nil {
		return err
	}
	return c.executeKW(ctx, uid, model, method, args, kwargs, out)
}

func (c *Client) executeKW(ctx context.Context, uid int64, model, method string, args []any, kwargs map[string]any, out any) error {
	if args == nil {
		args = []any{}
	}
	if kwargs == nil {
		kwargs = map[string]any{}
	}
	params := []any{c.cfg.Database, uid, c.cfg.Password, model, method, args, kwargs}
	if err := c.rpc(ctx, "object", "execute_kw", params, out); err != nil {
		return fmt.Errorf("%s.%s: %w", model, method, err)
	}
	return nil
}

func (c *Client) authenticate(ctx context.Context) (int64, error) {
	var raw json.RawMessage
	params := []any{c.cfg.Database, c.cfg.Username, c.cfg.Password, map[string]any{}}
	if err := c.rpc(ctx, "common", "authenticate", params, &raw); err != nil {
		return 0, fmt.Errorf("authenticate: %w", err)
	}
	var uid float64
	if isEmpty(raw) || json.Unmarshal(raw, &uid) != nil || uid <= 0 {
		return 0, fmt.Errorf("authenticate %s@%s: %w", c.cfg.Username, c.cfg.Database, ErrAccessDenied)
	}
	c.logger.InfoContext(ctx, "erp login", slog.String("db", c.cfg.Database), slog.Int64("uid", int64(uid)))
	return int64(uid), nil
}

type rpcRequest struct {
	JSONRPC string    `json:"jsonrpc"`
	Method  string    `json:"method"`
	Params  rpcParams `json:"params"`
	ID      int64     `json:"id"`
}

type rpcParams struct {
	Service string `json:"service"`
	Method  string `json:"method"`
	Args    []any  `json:"args"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *RemoteError    `json:"error"`
}

func (c *Client) rpc(ctx context.Context, service, method string, args []any, out any) error {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		Method:  "call",
		Params:  rpcParams{Service: service, Method: method, Args: args},
		ID:      c.seq.Add(1),
	})
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var envelope rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	if envelope.Error != nil {
		return envelope.Error
	}
	if out == nil {
		return nil
	}
	if raw, ok := out.(*json.RawMessage); ok {
		*raw = envelope.Result
		return nil
	}
	if err := json.Unmarshal(envelope.Result, out); err != nil {
		return fmt.Errorf("decode result: %w", err)
	}
	return nil
}
