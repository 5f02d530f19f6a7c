package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// jwtGrantType is the OAuth2 grant used for service-account assertions.
const jwtGrantType = "urn:ietf:params:oauth:grant-type:jwt-bearer"

// assertionTTL is the lifetime of the signed JWT assertion. The platform
// rejects assertions valid for more than 60 seconds.
const assertionTTL = 45 * time.Second

// AppAuth holds the signing material for the service-account key pair.
type AppAuth struct {
	PublicKeyID string `json:"publicKeyID"`
	PrivateKey  string `json:"privateKey"`
}

// Settings is the service-account configuration issued by the platform's
// developer console, loaded verbatim from a JSON file.
type Settings struct {
	ClientID     string  `json:"clientID"`
	ClientSecret string  `json:"clientSecret"`
	EnterpriseID string  `json:"enterpriseID"`
	AppAuth      AppAuth `json:"appAuth"`
}

// LoadSettings reads service-account settings from a JSON file.
func LoadSettings(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading platform settings: %w", err)
	}

	var s Settings
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing platform settings: %w", err)
	}

	if s.ClientID == "" || s.EnterpriseID == "" {
		return nil, fmt.Errorf("platform settings %s missing client or enterprise id", path)
	}

	return &s, nil
}

// token is a bearer token with its expiry.
type token struct {
	value   string
	expires time.Time
}

// valid reports whether the token can still be used, with a safety
// margin so calls in flight do not race expiry.
func (t token) valid(now time.Time) bool {
	return t.value != "" && now.Add(30*time.Second).Before(t.expires)
}

// tokenResponse is the wire shape of the token endpoint response.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// buildAssertion signs an RS256 enterprise assertion for the settings.
func buildAssertion(s *Settings, tokenURL string, now time.Time) (string, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(s.AppAuth.PrivateKey))
	if err != nil {
		return "", fmt.Errorf("parsing service-account private key: %w", err)
	}

	claims := jwt.MapClaims{
		"iss":          s.ClientID,
		"sub":          s.EnterpriseID,
		"box_sub_type": "enterprise",
		"aud":          tokenURL,
		"jti":          uuid.NewString(),
		"exp":          now.Add(assertionTTL).Unix(),
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = s.AppAuth.PublicKeyID

	signed, err := tok.SignedString(key)
	if err != nil {
		return "", fmt.Errorf("signing assertion: %w", err)
	}
	return signed, nil
}

// Authenticate establishes a service-account session by exchanging a
// signed JWT assertion for a bearer token. It must succeed before any
// other call; an unauthenticated client fails every call with
// ErrNotAuthenticated.
func (c *Client) Authenticate(ctx context.Context) error {
	return c.refreshToken(ctx)
}

// refreshToken performs the assertion exchange and stores the session.
func (c *Client) refreshToken(ctx context.Context) error {
	now := time.Now()

	assertion, err := buildAssertion(c.settings, c.tokenURL, now)
	if err != nil {
		return err
	}

	form := url.Values{
		"grant_type":    {jwtGrantType},
		"assertion":     {assertion},
		"client_id":     {c.settings.ClientID},
		"client_secret": {c.settings.ClientSecret},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("building token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("token exchange: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeAPIError(resp)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading token response: %w", err)
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return fmt.Errorf("parsing token response: %w", err)
	}
	if tr.AccessToken == "" {
		return fmt.Errorf("token endpoint returned empty access token")
	}

	c.tokenMu.Lock()
	c.token = token{
		value:   tr.AccessToken,
		expires: now.Add(time.Duration(tr.ExpiresIn) * time.Second),
	}
	c.tokenMu.Unlock()

	c.logger.Info("platform session established", "enterprise_id", c.settings.EnterpriseID)
	return nil
}

// bearer returns the current bearer token, refreshing it when close to
// expiry. Returns ErrNotAuthenticated if no session was ever established.
func (c *Client) bearer(ctx context.Context) (string, error) {
	c.tokenMu.Lock()
	tok := c.token
	c.tokenMu.Unlock()

	if tok.value == "" {
		return "", ErrNotAuthenticated
	}
	if tok.valid(time.Now()) {
		return tok.value, nil
	}

	if err := c.refreshToken(ctx); err != nil {
		return "", err
	}

	c.tokenMu.Lock()
	tok = c.token
	c.tokenMu.Unlock()
	return tok.value, nil
}
