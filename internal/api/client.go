package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/five82/toolroom/internal/logger"
	"github.com/five82/toolroom/internal/metrics"
)

const (
	defaultBaseURL   = "http://127.0.0.1:5000/api"
	defaultUserAgent = "toolroom/0.1"
	requestTimeout   = 15 * time.Second
	maxResponseBytes = 32 << 20

	headerRequestID = "X-Request-ID"
	headerAPIKey    = "X-API-Key"
)

// Options configure a Client.
type Options struct {
	BaseURL    string
	APIKey     string // sent as X-API-Key on admin calls
	Timeout    time.Duration
	RateLimit  float64 // requests per second; zero disables pacing
	RateBurst  int
	Tokens     TokenStore // nil keeps credentials in memory only
	Logger     *zap.Logger
	Metrics    *metrics.Metrics
	HTTPClient *http.Client

	// OnSessionExpired fires after a failed token refresh cleared the
	// stored credentials. Views use it to route to the login screen.
	OnSessionExpired func()
}

// Client is the single point of egress to the maintenance backend. It
// carries the base URL, default headers, and the current bearer token.
type Client struct {
	base      string
	http      *http.Client
	userAgent string
	apiKey    string
	limiter   *rate.Limiter
	log       *zap.Logger
	metrics   *metrics.Metrics
	tokens    TokenStore
	timeout   time.Duration

	refreshGroup singleflight.Group

	mu        sync.RWMutex
	session   Credentials
	onExpired func()
}

// NewClient builds a Client and restores any saved session from the token store.
func NewClient(opts Options) (*Client, error) {
	base, err := parseBaseURL(opts.BaseURL)
	if err != nil {
		return nil, err
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = requestTimeout
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	tokens := opts.Tokens
	if tokens == nil {
		tokens = &MemoryTokenStore{}
	}

	c := &Client{
		base:      strings.TrimRight(base.String(), "/"),
		http:      httpClient,
		userAgent: defaultUserAgent,
		apiKey:    strings.TrimSpace(opts.APIKey),
		log:       logger.OrNop(opts.Logger).Named("api"),
		metrics:   opts.Metrics,
		tokens:    tokens,
		timeout:   timeout,
		onExpired: opts.OnSessionExpired,
	}
	if opts.RateLimit > 0 {
		burst := opts.RateBurst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	saved, err := tokens.Load()
	if err != nil {
		c.log.Warn("load saved session", logger.ErrorF(err))
	} else if saved.Valid() {
		c.session = saved
	}
	return c, nil
}

// BaseURL returns the normalized backend base URL.
func (c *Client) BaseURL() string { return c.base }

// SetSessionExpiredHandler replaces the callback fired when the session cannot be refreshed.
func (c *Client) SetSessionExpiredHandler(fn func()) {
	c.mu.Lock()
	c.onExpired = fn
	c.mu.Unlock()
}

// Session returns the current credentials.
func (c *Client) Session() Credentials {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

// Authenticated reports whether a bearer token is present.
func (c *Client) Authenticated() bool {
	return c.Session().Valid()
}

func (c *Client) setSession(creds Credentials) {
	c.mu.Lock()
	c.session = creds
	c.mu.Unlock()
	if err := c.tokens.Save(creds); err != nil {
		c.log.Warn("save session", logger.ErrorF(err))
	}
}

func (c *Client) clearSession() {
	c.mu.Lock()
	c.session = Credentials{}
	c.mu.Unlock()
	if err := c.tokens.Clear(); err != nil {
		c.log.Warn("clear session", logger.ErrorF(err))
	}
}

// Send performs one JSON request against path (relative to the base URL).
// body, when non-nil, is JSON encoded. dest, when non-nil, receives the
// decoded response; a *[]byte dest receives the raw body.
func (c *Client) Send(ctx context.Context, method, path string, body, dest any) error {
	return c.send(ctx, request{method: method, path: path, body: body, dest: dest})
}

// SendAdmin is Send with the X-API-Key header attached.
func (c *Client) SendAdmin(ctx context.Context, method, path string, body, dest any) error {
	return c.send(ctx, request{method: method, path: path, body: body, dest: dest, admin: true})
}

type request struct {
	method string
	path   string
	query  url.Values
	body   any
	dest   any
	admin  bool
}

func (c *Client) send(ctx context.Context, r request) error {
	if c == nil {
		return ErrNilClient
	}
	var payload []byte
	if r.body != nil {
		encoded, err := json.Marshal(r.body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		payload = encoded
	}
	return c.roundTrip(ctx, r, payload, uuid.NewString(), false)
}

// roundTrip executes r. On a 401 it refreshes the token at most once and
// replays with retried set, so a request never loops.
func (c *Client) roundTrip(ctx context.Context, r request, payload []byte, requestID string, retried bool) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("wait for rate limiter: %w", err)
		}
	}

	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, r.method, c.resolve(r.path, r.query), bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set(headerRequestID, requestID)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	token := c.Session().AccessToken
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if r.admin && c.apiKey != "" {
		req.Header.Set(headerAPIKey, c.apiKey)
	}

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.ObserveRequest(r.method, 0, time.Since(started))
		c.log.Warn("request failed",
			logger.String("method", r.method),
			logger.String("path", r.path),
			logger.String("request_id", requestID),
			logger.ErrorF(err),
		)
		return fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	elapsed := time.Since(started)
	c.metrics.ObserveRequest(r.method, resp.StatusCode, elapsed)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized && !isAuthPath(r.path) {
		apiErr := parseAPIError(r.method, r.path, resp.StatusCode, data)
		if retried {
			c.log.Warn("request unauthorized after refresh",
				logger.String("path", r.path),
				logger.String("request_id", requestID),
			)
			c.expire()
			return fmt.Errorf("%w: %w", ErrSessionExpired, apiErr)
		}
		if err := c.refresh(ctx, token); err != nil {
			// A caller that gave up has not seen the refresh fail.
			if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return fmt.Errorf("refresh token: %w", err)
			}
			c.log.Warn("token refresh failed", logger.ErrorF(err))
			c.expire()
			return fmt.Errorf("%w: %w", ErrSessionExpired, apiErr)
		}
		return c.roundTrip(ctx, r, payload, requestID, true)
	}

	if resp.StatusCode >= 400 {
		apiErr := parseAPIError(r.method, r.path, resp.StatusCode, data)
		c.log.Warn("request rejected",
			logger.String("method", r.method),
			logger.String("path", r.path),
			logger.Int("status", resp.StatusCode),
			logger.String("message", apiErr.Message),
			logger.String("request_id", requestID),
			logger.Duration("elapsed", elapsed),
		)
		return apiErr
	}

	c.log.Debug("request ok",
		logger.String("method", r.method),
		logger.String("path", r.path),
		logger.Int("status", resp.StatusCode),
		logger.Duration("elapsed", elapsed),
	)

	if r.dest == nil {
		return nil
	}
	if raw, ok := r.dest.(*[]byte); ok {
		*raw = data
		return nil
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, r.dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// refresh exchanges the refresh token for a new session. Concurrent callers
// that saw the same stale token share one refresh call. The shared call runs
// detached from the caller that started it, bounded by the client timeout, so
// one cancelled caller does not fail the others.
func (c *Client) refresh(ctx context.Context, staleToken string) error {
	ch := c.refreshGroup.DoChan("refresh", func() (any, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()

		current := c.Session()
		if current.AccessToken != "" && current.AccessToken != staleToken {
			return nil, nil
		}
		if strings.TrimSpace(current.RefreshToken) == "" {
			return nil, errors.New("no refresh token")
		}

		var creds Credentials
		body := map[string]string{"refreshToken": current.RefreshToken}
		if err := c.roundTrip(ctx, request{method: http.MethodPost, path: pathRefresh, dest: &creds}, mustJSON(body), uuid.NewString(), true); err != nil {
			c.metrics.TokenRefresh(false)
			return nil, err
		}
		if !creds.Valid() {
			c.metrics.TokenRefresh(false)
			return nil, errors.New("refresh returned no access token")
		}
		if creds.Username == "" {
			creds.Username = current.Username
		}
		if creds.RefreshToken == "" {
			creds.RefreshToken = current.RefreshToken
		}
		c.setSession(creds)
		c.metrics.TokenRefresh(true)
		return nil, nil
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) expire() {
	c.clearSession()
	c.mu.RLock()
	fn := c.onExpired
	c.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

func (c *Client) resolve(path string, query url.Values) string {
	full := c.base + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		full += "?" + query.Encode()
	}
	return full
}

func isAuthPath(path string) bool {
	return strings.HasPrefix(strings.TrimLeft(path, "/"), "auth/")
}

func mustJSON(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}

func parseBaseURL(raw string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		trimmed = defaultBaseURL
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse api url %q: %w", raw, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("parse api url %q: missing host", raw)
	}
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawPath = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
