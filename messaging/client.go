// Copyright 2026 The Ember Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/emberworks/ember/lib/clock"
	"github.com/emberworks/ember/lib/netutil"
	"github.com/emberworks/ember/lib/ref"
)

// API path prefixes for the Matrix HTTP API families. A Request's
// APIPath selects the family; the zero value means the client-server
// r0 API.
const (
	APIPathClient = "/_matrix/client/r0"
	APIPathMedia  = "/_matrix/media/r0"
)

// allowedMethods is the closed set of HTTP methods the Matrix
// client-server API uses. Anything else is a caller bug.
var allowedMethods = map[string]bool{
	http.MethodGet:    true,
	http.MethodPut:    true,
	http.MethodDelete: true,
	http.MethodPost:   true,
}

// Request describes one logical Matrix API call for Send.
type Request struct {
	// Method is the HTTP method: one of GET, PUT, DELETE, POST
	// (case-insensitive). Any other value fails the call with
	// *UnsupportedMethodError before any network attempt.
	Method string

	// Path is the endpoint path relative to APIPath (e.g.,
	// "/profile/@neo:matrix.org/displayname"). Path segments must
	// already be URL-escaped by the caller.
	Path string

	// Content is the request body. When the content type is JSON
	// (the default), Content is JSON-serialized. For any other
	// content type, Content must be a []byte sent verbatim (media
	// upload). Nil means no body.
	Content any

	// Query holds extra query parameters. The session's access token
	// is appended automatically.
	Query url.Values

	// Header holds extra request headers. Content-Type defaults to
	// application/json when unset.
	Header http.Header

	// APIPath is the API family prefix. Empty means APIPathClient.
	APIPath string
}

// ClientConfig holds configuration for creating a Client.
type ClientConfig struct {
	// HomeserverURL is the base URL of the Matrix homeserver
	// (e.g., "https://matrix.org").
	HomeserverURL string

	// HTTPClient is used for all requests. If nil, http.DefaultClient
	// is used.
	HTTPClient *http.Client

	// Logger is used for structured logging. If nil, slog.Default()
	// is used.
	Logger *slog.Logger

	// Clock supplies time for rate-limit suspensions and transaction
	// IDs. If nil, clock.Real() is used. Tests inject clock.Fake.
	Clock clock.Clock

	// MaxRetryWait caps the cumulative rate-limit suspension per
	// logical call. Zero means no cap: server-dictated waits are
	// honored indefinitely and the only bound is the caller's
	// context.
	MaxRetryWait time.Duration
}

// Client is an unauthenticated Matrix client. It holds the homeserver
// URL and HTTP transport, shared across Sessions.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	logger       *slog.Logger
	clock        clock.Clock
	maxRetryWait time.Duration
}

// NewClient creates a new unauthenticated Matrix client.
func NewClient(config ClientConfig) (*Client, error) {
	if config.HomeserverURL == "" {
		return nil, fmt.Errorf("messaging: HomeserverURL is required")
	}

	// Validate the URL structure. We store the string form (with
	// trailing slash stripped) and build request URLs by direct
	// concatenation — url.URL.String() re-encodes already-escaped
	// path segments.
	if _, err := url.Parse(config.HomeserverURL); err != nil {
		return nil, fmt.Errorf("messaging: invalid HomeserverURL %q: %w", config.HomeserverURL, err)
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeSource := config.Clock
	if timeSource == nil {
		timeSource = clock.Real()
	}

	return &Client{
		baseURL:      strings.TrimRight(config.HomeserverURL, "/"),
		httpClient:   httpClient,
		logger:       logger,
		clock:        timeSource,
		maxRetryWait: config.MaxRetryWait,
	}, nil
}

// CloseIdleConnections closes idle HTTP connections in the underlying
// transport's connection pool. Call this after a network disruption to
// force subsequent requests to establish fresh TCP connections instead
// of reusing a poisoned pooled connection.
func (c *Client) CloseIdleConnections() {
	c.httpClient.CloseIdleConnections()
}

// Login authenticates with the m.login.password flow and returns an
// authenticated DirectSession. deviceName labels the session in the
// user's device list; empty uses "ember".
func (c *Client) Login(ctx context.Context, user, password, deviceName string) (*DirectSession, error) {
	if user == "" {
		return nil, fmt.Errorf("messaging: user is required for login")
	}
	if password == "" {
		return nil, fmt.Errorf("messaging: password is required for login")
	}
	if deviceName == "" {
		deviceName = "ember"
	}

	body, err := c.send(ctx, "", Request{
		Method: http.MethodPost,
		Path:   "/login",
		Content: LoginRequest{
			Type:                     "m.login.password",
			User:                     user,
			Password:                 password,
			InitialDeviceDisplayName: deviceName,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("messaging: login failed: %w", err)
	}

	var response AuthResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("messaging: failed to parse login response: %w", err)
	}

	c.logger.Info("logged in to matrix",
		"user_id", response.UserID,
		"device_id", response.DeviceID,
	)

	return &DirectSession{
		client:      c,
		accessToken: response.AccessToken,
		userID:      response.UserID,
		deviceID:    response.DeviceID,
	}, nil
}

// SessionFromToken creates a DirectSession from an existing access
// token. The token is not validated — the first API call fails if it
// is invalid. userID must be the fully-qualified Matrix user ID the
// token belongs to.
func (c *Client) SessionFromToken(userID ref.UserID, accessToken string) *DirectSession {
	return &DirectSession{
		client:      c,
		accessToken: accessToken,
		userID:      userID,
	}
}

// send performs one logical API call as one or more physical HTTP
// attempts. Rate-limited responses (429) suspend for the
// server-dictated retry_after_ms and re-issue the identical request;
// any other non-2xx response fails immediately with *RequestError.
// On success the raw JSON body is returned for the caller to decode.
//
// accessToken may be empty for unauthenticated endpoints; otherwise
// it is appended as the access_token query parameter per the r0
// convention.
func (c *Client) send(ctx context.Context, accessToken string, request Request) (json.RawMessage, error) {
	method := strings.ToUpper(request.Method)
	if !allowedMethods[method] {
		return nil, &UnsupportedMethodError{Method: request.Method}
	}

	apiPath := request.APIPath
	if apiPath == "" {
		apiPath = APIPathClient
	}

	header := http.Header{}
	for name, values := range request.Header {
		header[name] = values
	}
	if header.Get("Content-Type") == "" {
		header.Set("Content-Type", "application/json")
	}

	query := url.Values{}
	for name, values := range request.Query {
		query[name] = values
	}
	if accessToken != "" {
		query.Set("access_token", accessToken)
	}

	body, err := encodeContent(request.Content, header.Get("Content-Type"))
	if err != nil {
		return nil, err
	}

	requestURL := c.baseURL + apiPath + request.Path
	if len(query) > 0 {
		requestURL += "?" + query.Encode()
	}

	// The retry loop is intentionally unbounded: the server dictates
	// the wait on every 429, and trusting it to self-limit matches
	// the protocol's contract. The caller's ctx and the optional
	// MaxRetryWait budget are the only bounds.
	var suspended time.Duration
	for {
		httpRequest, err := http.NewRequestWithContext(ctx, method, requestURL, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("messaging: failed to create request: %w", err)
		}
		for name, values := range header {
			httpRequest.Header[name] = values
		}

		response, err := c.httpClient.Do(httpRequest)
		if err != nil {
			return nil, fmt.Errorf("messaging: request to %s %s failed: %w", method, request.Path, err)
		}
		responseBody, err := netutil.ReadResponse(response.Body)
		response.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("messaging: failed to read response body: %w", err)
		}

		if response.StatusCode == http.StatusTooManyRequests {
			suspension, err := parseRetryAfter(responseBody)
			if err != nil {
				// A 429 without a usable retry_after_ms must fail
				// loudly, never loop silently.
				return nil, fmt.Errorf("messaging: rate-limited response from %s %s: %w", method, request.Path, err)
			}
			suspended += suspension
			if c.maxRetryWait > 0 && suspended > c.maxRetryWait {
				return nil, fmt.Errorf("messaging: %s %s suspended %s (budget %s): %w",
					method, request.Path, suspended, c.maxRetryWait, ErrRetryBudgetExceeded)
			}
			c.logger.Debug("rate limited, suspending",
				"method", method,
				"path", request.Path,
				"retry_after", suspension,
			)
			select {
			case <-c.clock.After(suspension):
			case <-ctx.Done():
				return nil, fmt.Errorf("messaging: %s %s cancelled during rate-limit suspension: %w", method, request.Path, ctx.Err())
			}
			continue
		}

		if response.StatusCode < 200 || response.StatusCode >= 300 {
			return nil, &RequestError{StatusCode: response.StatusCode, Body: string(responseBody)}
		}
		return json.RawMessage(responseBody), nil
	}
}

// encodeContent converts a Request's Content into the wire body.
// JSON content types get JSON serialization; anything else must
// already be raw bytes.
func encodeContent(content any, contentType string) ([]byte, error) {
	if content == nil {
		return nil, nil
	}
	if strings.HasPrefix(contentType, "application/json") {
		encoded, err := json.Marshal(content)
		if err != nil {
			return nil, fmt.Errorf("messaging: failed to encode request body: %w", err)
		}
		return encoded, nil
	}
	raw, ok := content.([]byte)
	if !ok {
		return nil, fmt.Errorf("messaging: content for %s must be []byte, got %T", contentType, content)
	}
	return raw, nil
}

// parseRetryAfter decodes the rate-limit directive from a 429 response
// body. The directive is consumed immediately to compute a suspension
// and never persisted.
func parseRetryAfter(body []byte) (time.Duration, error) {
	var directive struct {
		RetryAfterMS *int64 `json:"retry_after_ms"`
	}
	if err := json.Unmarshal(body, &directive); err != nil {
		return 0, fmt.Errorf("decoding rate-limit body: %w", err)
	}
	if directive.RetryAfterMS == nil {
		return 0, fmt.Errorf("rate-limit body missing retry_after_ms: %s", body)
	}
	return time.Duration(*directive.RetryAfterMS) * time.Millisecond, nil
}
