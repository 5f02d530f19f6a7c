// Package platform is the authenticated adapter to the remote content
// platform. It issues the four primitive calls the recovery engine
// needs: fetch an admin-event page, restore a trashed item, list a
// file's version history, and promote a stored version to current.
//
// The client holds a single service-account session that is safe to
// share across batch workers; per-call state is limited to the request
// itself. Outbound calls are throttled client-side so the engine leans
// on the platform's rate limiter as little as possible.
package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/jamesainslie/rewind/pkg/rewind/logging"
)

// Default endpoints and tuning for the hosted platform.
const (
	DefaultBaseURL  = "https://api.box.com/2.0"
	DefaultTokenURL = "https://api.box.com/oauth2/token"

	// DefaultRequestsPerSecond is the client-side throttle. The platform
	// allows bursts well above this; staying under it keeps batch runs
	// out of 429 territory most of the time.
	DefaultRequestsPerSecond = 8

	requestTimeout = 60 * time.Second
)

// Options configures a Client. Zero values use defaults.
type Options struct {
	// BaseURL is the API root. Defaults to DefaultBaseURL.
	BaseURL string

	// TokenURL is the OAuth2 token endpoint. Defaults to DefaultTokenURL.
	TokenURL string

	// AsUser is the admin user id impersonated for file-scoped calls
	// (restore, versions, promote). Empty disables impersonation.
	AsUser string

	// RequestsPerSecond caps outbound call rate. Zero uses the default.
	RequestsPerSecond float64

	// HTTPClient overrides the transport, mainly for tests.
	HTTPClient *http.Client
}

// Client is the authenticated handle to the platform. One Client is
// constructed per run and shared read-only across workers.
type Client struct {
	settings *Settings
	baseURL  string
	tokenURL string
	asUser   string

	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *logging.Logger

	tokenMu sync.Mutex
	token   token
}

// New creates a Client from service-account settings. The client is not
// usable until Authenticate succeeds.
func New(settings *Settings, opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.TokenURL == "" {
		opts.TokenURL = DefaultTokenURL
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = DefaultRequestsPerSecond
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: requestTimeout}
	}

	return &Client{
		settings:   settings,
		baseURL:    opts.BaseURL,
		tokenURL:   opts.TokenURL,
		asUser:     opts.AsUser,
		httpClient: opts.HTTPClient,
		limiter:    rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), int(opts.RequestsPerSecond)+1),
		logger:     logging.Get("platform"),
	}
}

// apiErrorBody is the wire shape of platform error responses.
type apiErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// decodeAPIError converts a non-2xx response into an *APIError.
func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return apiErr
	}

	var eb apiErrorBody
	if json.Unmarshal(body, &eb) == nil {
		apiErr.Code = eb.Code
		apiErr.Message = eb.Message
	}
	return apiErr
}

// do issues an authenticated request and decodes a JSON response into
// out. impersonate attaches the As-User header for file-scoped calls.
func (c *Client) do(ctx context.Context, method, url string, body io.Reader, impersonate bool, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	tok, err := c.bearer(ctx)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if impersonate && c.asUser != "" {
		req.Header.Set("As-User", c.asUser)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s %s response: %w", method, url, err)
	}
	return nil
}
