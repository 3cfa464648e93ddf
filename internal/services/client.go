package services

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

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/isaac-jh/ym-library/internal/models"
	"github.com/isaac-jh/ym-library/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL      = "http://localhost:8000/api/v1"
	defaultListLimit    = 9999
	defaultCatalogLimit = 10000

	requestIDHeader = "X-Request-ID"
)

// Client talks to the tracking backend.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	limiter      *rate.Limiter
	logger       *log.Logger
	listLimit    int
	catalogLimit int
}

// ClientOption configures a [Client].
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			hc := *c.httpClient
			hc.Timeout = d
			c.httpClient = &hc
		}
	}
}

// WithRateLimit paces outgoing requests. Zero disables pacing.
func WithRateLimit(rps float64) ClientOption {
	return func(c *Client) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		} else {
			c.limiter = nil
		}
	}
}

// WithLimits sets the limit query parameter for record and catalog listings.
func WithLimits(list, catalog int) ClientOption {
	return func(c *Client) {
		if list > 0 {
			c.listLimit = list
		}
		if catalog > 0 {
			c.catalogLimit = catalog
		}
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(logger *log.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a client for the backend rooted at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	c := &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		httpClient:   &http.Client{},
		logger:       log.New(io.Discard),
		listLimit:    defaultListLimit,
		catalogLimit: defaultCatalogLimit,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewClientFromConfig creates a client from the [api] config section.
func NewClientFromConfig(cfg shared.APIConfig, logger *log.Logger) *Client {
	return NewClient(cfg.BaseURL,
		WithTimeout(cfg.Timeout()),
		WithRateLimit(cfg.RequestsPerSecond),
		WithLimits(cfg.ListLimit, cfg.CatalogLimit),
		WithLogger(logger),
	)
}

// WithToken returns a copy of the client that authenticates every request with the given token.
func (c *Client) WithToken(tokenType, accessToken string) *Client {
	clone := *c
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, c.httpClient)
	hc := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: accessToken,
		TokenType:   tokenType,
	}))
	hc.Timeout = c.httpClient.Timeout
	clone.httpClient = hc
	return &clone
}

// WithSession returns a client authenticated for session. Sessions without a token get c back unchanged.
func (c *Client) WithSession(session *models.Session) *Client {
	if session == nil || session.AccessToken == "" {
		return c
	}
	return c.WithToken(session.TokenType, session.AccessToken)
}

// APIError is a non-2xx response from the backend.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.StatusCode)
}

// Unwrap maps the status code to the matching sentinel error.
func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusNotFound:
		return shared.ErrNotFound
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return shared.ErrValidation
	case http.StatusConflict, http.StatusPreconditionFailed:
		return shared.ErrConflictLost
	case http.StatusUnauthorized, http.StatusForbidden:
		return shared.ErrAuthFailed
	default:
		return shared.ErrAPIRequest
	}
}

// doRequest performs one JSON request. query and body may be nil; result may be nil to discard the response body.
func (c *Client) doRequest(ctx context.Context, method, endpoint string, query url.Values, body, result any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%w: %w", shared.ErrTransport, err)
		}
	}

	apiURL := c.baseURL + endpoint
	if len(query) > 0 {
		apiURL += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, apiURL, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	requestID := uuid.NewString()
	req.Header.Set(requestIDHeader, requestID)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("request failed", "method", method, "path", endpoint, "request_id", requestID, "error", err)
		return fmt.Errorf("%w: %s %s: %w", shared.ErrTransport, method, endpoint, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("request", "method", method, "path", endpoint, "status", resp.StatusCode,
		"request_id", requestID, "elapsed", time.Since(start))

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: failed to read response: %w", shared.ErrTransport, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{Method: method, Path: endpoint, StatusCode: resp.StatusCode, Detail: errorDetail(data)}
	}

	if result == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, result); err != nil {
		return fmt.Errorf("%w: failed to decode response: %w", shared.ErrUnrecognizedResponse, err)
	}
	return nil
}

// errorDetail extracts a readable message from an error body: {"detail": ...}, {"message": ...} or raw text.
func errorDetail(data []byte) string {
	var errResp struct {
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(data, &errResp); err != nil {
		return strings.TrimSpace(string(data))
	}

	if len(errResp.Detail) > 0 {
		var s string
		if err := json.Unmarshal(errResp.Detail, &s); err == nil {
			return s
		}
		return string(errResp.Detail)
	}
	return errResp.Message
}

// actorQuery is the query string identifying the acting user on mutating calls.
func actorQuery(actor models.UserID) url.Values {
	return url.Values{"user_id": {actor.String()}}
}

// IsTransport reports whether err means the server could not be reached.
func IsTransport(err error) bool {
	return errors.Is(err, shared.ErrTransport)
}
