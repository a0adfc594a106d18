// Package apiclient executes backend operations with the credentials held in
// a session store. A 401 on the first attempt triggers one refresh of the
// access token and one retry of the operation. A failed refresh logs the
// session out.
package apiclient

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
	"time"

	"github.com/google/uuid"
	errs "github.com/jrsteele09/school-portal/internal/errors"
	"github.com/jrsteele09/school-portal/sessions"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

const (
	defaultTimeout     = 15 * time.Second
	defaultRefreshPath = "auth/refresh"
	maxResponseBytes   = 32 << 20
	requestIDHeader    = "X-Request-ID"
)

// SessionStore is the session the client reads credentials from and writes
// refreshed credentials to. *sessions.Store satisfies it.
type SessionStore interface {
	AccessToken() string
	RefreshToken() string
	Credentials() sessions.Credentials
	SetCredentials(c sessions.Credentials)
	Logout()
}

// Response is a successful backend response. Body is returned verbatim.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

type Client struct {
	baseURL     *url.URL
	session     SessionStore
	httpClient  *http.Client
	timeout     time.Duration
	refreshPath string
	userAgent   string
	maxBody     int64
	logger      zerolog.Logger
	metrics     *Metrics
	refreshes   singleflight.Group
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTimeout bounds every network call, including the refresh call.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

func WithRefreshPath(path string) Option {
	return func(c *Client) {
		c.refreshPath = strings.TrimPrefix(path, "/")
	}
}

func WithUserAgent(userAgent string) Option {
	return func(c *Client) {
		c.userAgent = userAgent
	}
}

// WithMaxResponseBytes caps the size of a response body. A larger body fails
// the call with errs.ErrResponseTooLarge.
func WithMaxResponseBytes(n int64) Option {
	return func(c *Client) {
		c.maxBody = n
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func WithMetrics(metrics *Metrics) Option {
	return func(c *Client) {
		c.metrics = metrics
	}
}

// New creates a client for the backend at baseURL.
func New(baseURL string, session SessionStore, options ...Option) (*Client, error) {
	if session == nil {
		return nil, errs.Wrapf(errs.ErrInvalidRequest, "apiclient.New: session store is required")
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("apiclient.New parse base URL: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, errs.Wrapf(errs.ErrInvalidRequest, "apiclient.New: base URL %q must be absolute http(s)", baseURL)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}

	c := &Client{
		baseURL:     u,
		session:     session,
		httpClient:  http.DefaultClient,
		timeout:     defaultTimeout,
		refreshPath: defaultRefreshPath,
		maxBody:     maxResponseBytes,
		logger:      log.Logger,
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the endpoint operation paths are resolved against.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// pendingRequest is the state of one logical call.
type pendingRequest struct {
	op        Operation
	payload   payload
	requestID string
	sentToken string // access token carried by the latest attempt
	retried   bool   // a refresh-triggered retry has been made
}

// Do executes op. A 2xx response is returned as is. Any other status is a
// *RequestError, a transport failure is a *NetworkError, and an
// unrecoverable 401 is a *SessionExpiredError.
func (c *Client) Do(ctx context.Context, op Operation) (*Response, error) {
	data, err := op.encode()
	if err != nil {
		return nil, err
	}
	req := &pendingRequest{
		op:        op,
		payload:   data,
		requestID: uuid.NewString(),
	}

	start := time.Now()
	resp, err := c.execute(ctx, req)
	c.metrics.observeRequest(op.name(), outcomeOf(err), time.Since(start))
	return resp, err
}

// DoJSON executes op and decodes a JSON response body into out. A nil out
// or an empty body skips decoding.
func (c *Client) DoJSON(ctx context.Context, op Operation, out any) error {
	resp, err := c.Do(ctx, op)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(resp.Body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op.name(), err)
	}
	return nil
}

func (c *Client) execute(ctx context.Context, req *pendingRequest) (*Response, error) {
	resp, err := c.attempt(ctx, req)

	var reqErr *RequestError
	if req.op.SkipAuth || req.retried || !errors.As(err, &reqErr) || reqErr.StatusCode != http.StatusUnauthorized {
		return resp, err
	}

	req.retried = true
	if err := c.recoverSession(ctx, req, reqErr); err != nil {
		return nil, err
	}

	c.logger.Debug().
		Str("request_id", req.requestID).
		Str("operation", req.op.name()).
		Msg("Retrying with refreshed access token")
	return c.attempt(ctx, req)
}

// attempt sends req once with the current access token.
func (c *Client) attempt(ctx context.Context, req *pendingRequest) (*Response, error) {
	req.sentToken = ""
	if !req.op.SkipAuth {
		req.sentToken = c.session.AccessToken()
	}

	resp, err := c.roundTrip(ctx, req.op.Method, req.op.Path, req.op.Query, req.payload, req.sentToken, req.requestID)
	if errs.Is(err, errs.ErrResponseTooLarge) {
		return nil, errs.Wrapf(err, "%s", req.op.name())
	}
	if err != nil {
		c.logger.Debug().Err(err).
			Str("request_id", req.requestID).
			Str("operation", req.op.name()).
			Msg("Request failed without response")
		return nil, &NetworkError{Operation: req.op.name(), Err: err}
	}

	c.logger.Debug().
		Str("request_id", req.requestID).
		Str("operation", req.op.name()).
		Int("status", resp.StatusCode).
		Bool("retry", req.retried).
		Msg("Request completed")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &RequestError{
			Operation:  req.op.name(),
			Method:     req.op.Method,
			Path:       req.op.Path,
			StatusCode: resp.StatusCode,
			Body:       resp.Body,
		}
	}
	return resp, nil
}

// roundTrip performs one HTTP exchange bounded by the client timeout. A
// bearer header is only set when token is non-empty.
func (c *Client) roundTrip(ctx context.Context, method, path string, query url.Values, body payload, token, requestID string) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	target := c.baseURL.ResolveReference(&url.URL{
		Path:     strings.TrimPrefix(path, "/"),
		RawQuery: query.Encode(),
	})

	var reader io.Reader
	if body.data != nil {
		reader = bytes.NewReader(body.data)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, target.String(), reader)
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set(requestIDHeader, requestID)
	if body.contentType != "" {
		httpReq.Header.Set("Content-Type", body.contentType)
	}
	if c.userAgent != "" {
		httpReq.Header.Set("User-Agent", c.userAgent)
	}
	if token != "" {
		(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}).SetAuthHeader(httpReq)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, c.maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if int64(len(data)) > c.maxBody {
		return nil, errs.Wrapf(errs.ErrResponseTooLarge, "%s %s: body exceeds %d bytes", method, path, c.maxBody)
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       data,
	}, nil
}

func outcomeOf(err error) string {
	var (
		reqErr     *RequestError
		netErr     *NetworkError
		expiredErr *SessionExpiredError
	)
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.As(err, &expiredErr):
		return OutcomeSessionExpired
	case errors.As(err, &netErr):
		return OutcomeNetworkError
	case errors.As(err, &reqErr) && reqErr.StatusCode == http.StatusUnauthorized:
		return OutcomeUnauthorized
	default:
		return OutcomeFailed
	}
}
