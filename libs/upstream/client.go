// Package upstream executes one logical request against an ordered pair of
// service base URLs (primary, then fallback) and normalizes the heterogeneous
// response shapes our services emit.
package upstream

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
	"time"
)

var (
	ErrNetwork     = errors.New("upstream unreachable")
	ErrServer      = errors.New("upstream server error")
	ErrApplication = errors.New("upstream application error")
	ErrParse       = errors.New("upstream response unparsable")
)

// TokenSource yields a bearer token, or "" when none is available. Sources are
// read on every call, so a rotated token applies on the very next request.
type TokenSource interface {
	Token() string
}

type TokenFunc func() string

func (f TokenFunc) Token() string { return f() }

// FirstOf probes sources in order and returns the first non-empty token.
func FirstOf(sources ...TokenSource) TokenSource {
	return TokenFunc(func() string {
		for _, s := range sources {
			if s == nil {
				continue
			}
			if t := strings.TrimSpace(s.Token()); t != "" {
				return t
			}
		}
		return ""
	})
}

type Client struct {
	primary        string
	fallback       string
	apiKey         string
	tokens         TokenSource
	attemptTimeout time.Duration
	httpClient     *http.Client
	logger         *slog.Logger
}

type Config struct {
	Primary        string
	Fallback       string
	APIKey         string // attached as X-Api-Key when no bearer token resolves
	Tokens         TokenSource
	AttemptTimeout time.Duration
	Logger         *slog.Logger
}

type Options struct {
	Method      string
	Body        []byte
	ContentType string
	Headers     http.Header
	BearerToken string // overrides the client's token source for this call
}

// Result is the normalized outcome of a call. Data holds the payload with any
// {"data": ...} envelope already unwrapped.
type Result struct {
	Success    bool
	StatusCode int
	Data       json.RawMessage
	Message    string
	ErrorCode  string
	Target     string // base URL that produced this result
}

func NewClient(cfg Config) *Client {
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = 8 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Client{
		primary:        strings.TrimRight(cfg.Primary, "/"),
		fallback:       strings.TrimRight(cfg.Fallback, "/"),
		apiKey:         cfg.APIKey,
		tokens:         cfg.Tokens,
		attemptTimeout: cfg.AttemptTimeout,
		httpClient:     &http.Client{},
		logger:         cfg.Logger,
	}
}

// Execute runs the request against the primary target and, when the primary
// attempt fails in a retriable way (transport error, 5xx, or a 2xx body that
// does not parse / carries success:false), retries once against the fallback.
// 4xx responses are application-level failures and never trigger the fallback.
func (c *Client) Execute(ctx context.Context, endpoint string, opts Options) (*Result, error) {
	targets := []string{c.primary}
	if c.fallback != "" {
		targets = append(targets, c.fallback)
	}

	var lastErr error
	for i, base := range targets {
		res, err := c.attempt(ctx, base, endpoint, opts)
		if err == nil {
			return res, nil
		}
		if ctx.Err() != nil {
			// Caller cancellation propagates; it is not a reason to fall back.
			return nil, fmt.Errorf("%s%s: %w", base, endpoint, err)
		}
		lastErr = fmt.Errorf("%s%s: %w", base, endpoint, err)
		if !retriable(err) {
			return res, lastErr
		}
		if i+1 < len(targets) {
			c.logger.Warn("primary attempt failed, trying fallback",
				"endpoint", endpoint, "target", base, "err", err)
			continue
		}
		return res, lastErr
	}
	return nil, lastErr
}

func (c *Client) attempt(ctx context.Context, base, endpoint string, opts Options) (*Result, error) {
	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}

	attemptCtx, cancel := context.WithTimeout(ctx, c.attemptTimeout)
	defer cancel()

	var body io.Reader
	if len(opts.Body) > 0 {
		body = bytes.NewReader(opts.Body)
	}
	req, err := http.NewRequestWithContext(attemptCtx, method, base+endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}

	for key, values := range opts.Headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	contentType := opts.ContentType
	if contentType == "" && len(opts.Body) > 0 {
		contentType = "application/json"
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	c.attachAuth(req, opts)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrNetwork, err)
	}

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("%w: status %d", ErrServer, resp.StatusCode)
	}

	res, err := normalize(resp.StatusCode, raw)
	if err != nil {
		return nil, err
	}
	res.Target = base

	if resp.StatusCode >= 400 {
		res.Success = false
		return res, fmt.Errorf("%w: status %d", ErrApplication, resp.StatusCode)
	}
	if !res.Success {
		// 2xx with an explicit success:false marker.
		return res, errSuccessFalse
	}
	return res, nil
}

func (c *Client) attachAuth(req *http.Request, opts Options) {
	token := strings.TrimSpace(opts.BearerToken)
	if token == "" && c.tokens != nil {
		token = strings.TrimSpace(c.tokens.Token())
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
		return
	}
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}
}

// errSuccessFalse marks a 2xx reply whose payload carries success:false. It is
// an application error, but unlike a 4xx it still moves a primary attempt to
// the fallback.
var errSuccessFalse = fmt.Errorf("%w: success flag false", ErrApplication)

// retriable reports whether a primary-attempt failure should move the call to
// the fallback target. 4xx application failures are returned to the caller
// immediately.
func retriable(err error) bool {
	if errors.Is(err, errSuccessFalse) {
		return true
	}
	return errors.Is(err, ErrNetwork) || errors.Is(err, ErrServer) || errors.Is(err, ErrParse)
}

type envelope struct {
	Success *bool           `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
}

// normalize is the single place that inspects raw response shape: payloads
// arrive either bare or wrapped in a {success, data, message, error} envelope.
func normalize(status int, raw []byte) (*Result, error) {
	res := &Result{StatusCode: status, Success: status < 400}

	if len(bytes.TrimSpace(raw)) == 0 {
		return res, nil
	}
	if !json.Valid(raw) {
		return nil, fmt.Errorf("%w: body is not json", ErrParse)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		// Valid JSON that is not an object (array, string, number): pass through.
		res.Data = json.RawMessage(raw)
		return res, nil
	}
	if env.Success == nil && env.Data == nil && env.Message == "" && env.Error == "" {
		res.Data = json.RawMessage(raw)
		return res, nil
	}

	if env.Success != nil {
		res.Success = *env.Success && status < 400
	}
	if env.Data != nil {
		res.Data = env.Data
	}
	res.Message = env.Message
	res.ErrorCode = env.Error
	return res, nil
}
