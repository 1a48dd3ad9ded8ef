package salus

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/salusconnect/internal/logging"
	"github.com/muurk/salusconnect/internal/version"
)

// DefaultTimeout bounds every HTTP exchange with the cloud
const DefaultTimeout = 30 * time.Second

// Client talks to the Salus Connect cloud API on behalf of one account.
//
// A Client is single-owner: its methods are not safe for concurrent use
// because Login replaces the held session. Callers that share a Client
// across goroutines must serialize access.
type Client struct {
	baseURL       string
	creds         Credentials
	httpClient    *http.Client
	timeout       time.Duration
	acceptedModel string
	now           func() time.Time
	logger        *zap.Logger

	// reuseTTL > 0 lets authenticated calls reuse the held session
	reuseTTL time.Duration
	session  Session
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL sets a custom base URL (scheme and host, no trailing slash).
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithHTTPClient sets a custom HTTP client. The client is not modified; when
// a different timeout applies, NewClient uses a copy.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTimeout sets the HTTP request timeout. It wins over the timeout of a
// client given to WithHTTPClient, whatever the option order. Zero or less
// leaves the default in place.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithAcceptedModel overrides the OEM model kept by ListDevices.
func WithAcceptedModel(model string) Option {
	return func(c *Client) {
		if model != "" {
			c.acceptedModel = model
		}
	}
}

// WithClock sets the time source used for request timestamps and session age.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// WithSessionReuse keeps the session from Login for up to ttl instead of
// signing in again before every operation. A 401 drops the held session.
func WithSessionReuse(ttl time.Duration) Option {
	return func(c *Client) {
		c.reuseTTL = ttl
	}
}

// WithLogger sets the logger for request tracing. Defaults to the package logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// NewClient creates a client for the given account.
func NewClient(creds Credentials, opts ...Option) (*Client, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}

	c := &Client{
		baseURL:       DefaultBaseURL,
		creds:         creds,
		httpClient:    &http.Client{},
		acceptedModel: AcceptedModel,
		now:           time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}
	c.httpClient = boundedClient(c.httpClient, c.timeout)

	if _, err := url.Parse(c.baseURL); err != nil {
		return nil, NewValidationError("invalid base URL: " + err.Error())
	}

	return c, nil
}

// boundedClient returns hc with a non-zero timeout: timeout if set, else the
// client's own, else DefaultTimeout. hc is copied rather than modified.
func boundedClient(hc *http.Client, timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = hc.Timeout
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if hc.Timeout == timeout {
		return hc
	}
	bounded := *hc
	bounded.Timeout = timeout
	return &bounded
}

// BaseURL returns the API base URL in use.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Session returns the currently held session, which may be empty.
func (c *Client) Session() Session {
	return c.session
}

// InvalidateSession drops the held session so the next call signs in again.
func (c *Client) InvalidateSession() {
	c.session = Session{}
}

func (c *Client) log() *zap.Logger {
	if c.logger != nil {
		return c.logger
	}
	return logging.GetLogger()
}

// endpoint builds an absolute URL for path with the cache-busting timestamp
// the API expects on every request.
func (c *Client) endpoint(path string) (*url.URL, error) {
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return nil, NewValidationError("invalid request URL: " + err.Error())
	}
	q := u.Query()
	q.Set("timestamp", strconv.FormatInt(c.now().UnixMilli(), 10))
	u.RawQuery = q.Encode()
	return u, nil
}

// response is a fully read HTTP response
type response struct {
	StatusCode int
	Body       []byte
}

// do performs one HTTP exchange and reads the whole body. Only transport
// failures are errors here; status handling belongs to the caller.
func (c *Client) do(ctx context.Context, hc *http.Client, method, path string, body any) (*response, error) {
	u, err := c.endpoint(path)
	if err != nil {
		return nil, err
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, NewValidationError("failed to encode request body: " + err.Error())
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reqBody)
	if err != nil {
		return nil, NewNetworkError("failed to create request", path, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	logging.LogAPIRequest(c.log(), method, u)
	start := time.Now()

	resp, err := hc.Do(req)
	if err != nil {
		c.log().Error("API request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, NewNetworkError(method+" "+path+" failed", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewNetworkError("failed to read response body", path, err)
	}

	logging.LogAPIResponse(c.log(), method, u, resp.StatusCode, time.Since(start))

	return &response{StatusCode: resp.StatusCode, Body: data}, nil
}

// getJSON performs an authenticated GET and decodes a 2xx body into out.
func (c *Client) getJSON(ctx context.Context, session Session, path string, out any) error {
	resp, err := c.do(ctx, c.authorized(session), http.MethodGet, path, nil)
	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		c.InvalidateSession()
		return &APIError{
			Type:       ErrTypeAuth,
			Message:    "session rejected",
			StatusCode: resp.StatusCode,
			Endpoint:   path,
		}
	}
	if !isSuccess(resp.StatusCode) {
		return NewHTTPError(resp.StatusCode, path, "unexpected status code: "+strconv.Itoa(resp.StatusCode))
	}

	if err := json.Unmarshal(resp.Body, out); err != nil {
		return NewParseError("failed to parse JSON response", path, err)
	}
	return nil
}

// freshSession returns a session for an operation that signs in per call.
// With session reuse enabled a young enough held session is returned instead.
func (c *Client) freshSession(ctx context.Context) (Session, error) {
	if c.reuseTTL > 0 && c.sessionUsable() {
		return c.session, nil
	}
	return c.Login(ctx)
}

// heldSession returns the held session, signing in only if there is none.
func (c *Client) heldSession(ctx context.Context) (Session, error) {
	if c.session.Valid() && (c.reuseTTL == 0 || c.sessionUsable()) {
		return c.session, nil
	}
	return c.Login(ctx)
}

func (c *Client) sessionUsable() bool {
	if !c.session.Valid() {
		return false
	}
	return c.now().Sub(c.session.IssuedAt) < c.reuseTTL
}

func isSuccess(code int) bool {
	return code >= 200 && code < 300
}
