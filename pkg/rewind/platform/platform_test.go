package platform

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/rewind/pkg/rewind/types"
)

// testSettings builds service-account settings with a freshly generated
// signing key.
func testSettings(t *testing.T) *Settings {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	keyPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})

	return &Settings{
		ClientID:     "client-1",
		ClientSecret: "secret-1",
		EnterpriseID: "ent-1",
		AppAuth: AppAuth{
			PublicKeyID: "kid-1",
			PrivateKey:  string(keyPEM),
		},
	}
}

// tokenHandler serves a minimal token endpoint at /token.
func tokenHandler(t *testing.T) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, jwtGrantType, r.FormValue("grant_type"))
		assert.NotEmpty(t, r.FormValue("assertion"))
		assert.Equal(t, "client-1", r.FormValue("client_id"))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "tok-123",
			"expires_in":   3600,
		})
	}
}

// newTestClient spins up a server with the given API mux plus a token
// endpoint, and returns an authenticated client against it.
func newTestClient(t *testing.T, mux *http.ServeMux) *Client {
	t.Helper()

	mux.HandleFunc("/token", tokenHandler(t))
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	c := New(testSettings(t), Options{
		BaseURL:           srv.URL,
		TokenURL:          srv.URL + "/token",
		AsUser:            "admin-9",
		RequestsPerSecond: 1000,
		HTTPClient:        srv.Client(),
	})
	require.NoError(t, c.Authenticate(context.Background()))
	return c
}

func TestAuthenticate(t *testing.T) {
	c := newTestClient(t, http.NewServeMux())

	tok, err := c.bearer(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-123", tok)
}

func TestCallsBeforeAuthenticateFail(t *testing.T) {
	c := New(testSettings(t), Options{BaseURL: "http://127.0.0.1:0"})

	_, err := c.ListVersions(context.Background(), "f1")
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestGetEvents(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/events", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "admin_logs", q.Get("stream_type"))
		assert.Equal(t, "UPLOAD,DELETE", q.Get("event_type"))
		assert.Equal(t, "500", q.Get("limit"))
		assert.Empty(t, r.Header.Get("As-User"), "event queries are enterprise-scoped")
		assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))

		// next_stream_position arrives as a JSON number; one entry is
		// malformed and must be dropped without failing the page.
		_, _ = w.Write([]byte(`{
			"chunk_size": 2,
			"next_stream_position": 1152922976252290800,
			"entries": [
				{
					"event_type": "UPLOAD",
					"created_at": "2026-03-01T09:00:00Z",
					"created_by": {"id": "7", "login": "victim@example.com"},
					"source": {"item_type": "file", "item_id": "f1", "item_name": "budget.xlsx"}
				},
				{
					"event_type": "UPLOAD",
					"created_at": "not-a-timestamp",
					"created_by": {"id": "7", "login": "victim@example.com"},
					"source": {"item_type": "file", "item_id": "f2", "item_name": "bad"}
				}
			]
		}`))
	})

	c := newTestClient(t, mux)
	page, err := c.GetEvents(context.Background(), EventQuery{
		EventTypes: []types.EventType{types.EventUpload, types.EventDelete},
		Limit:      500,
	})
	require.NoError(t, err)

	assert.Equal(t, "1152922976252290800", page.NextCursor)
	assert.Equal(t, 2, page.ChunkSize, "reported chunk size is preserved even when entries are dropped")
	require.Len(t, page.Entries, 1)
	ev := page.Entries[0]
	assert.Equal(t, "f1", ev.Source.ID)
	assert.Equal(t, "victim@example.com", ev.CreatedBy.Login)
}

func TestGetEventsStreamEnd(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/events", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"chunk_size": 0, "next_stream_position": null, "entries": []}`))
	})

	c := newTestClient(t, mux)
	page, err := c.GetEvents(context.Background(), EventQuery{})
	require.NoError(t, err)
	assert.Empty(t, page.NextCursor)
	assert.Zero(t, page.ChunkSize)
}

func TestRestoreItem(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/files/f1", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "admin-9", r.Header.Get("As-User"), "file calls impersonate the admin")
		_, _ = w.Write([]byte(`{"id": "f1-new", "name": "budget.xlsx"}`))
	})

	c := newTestClient(t, mux)
	restored, err := c.RestoreItem(context.Background(), "f1")
	require.NoError(t, err)
	assert.Equal(t, "f1-new", restored.ID)
	assert.Equal(t, "budget.xlsx", restored.Name)
}

func TestRestoreItemErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		code   string
		check  func(error) bool
	}{
		{name: "purged", status: http.StatusNotFound, code: "not_found", check: IsNotFound},
		{name: "out of reach", status: http.StatusForbidden, code: "forbidden_by_policy", check: IsForbidden},
		{name: "throttled", status: http.StatusTooManyRequests, code: "rate_limit_exceeded", check: IsRateLimited},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("/files/f1", func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_ = json.NewEncoder(w).Encode(map[string]string{
					"code":    tt.code,
					"message": "nope",
				})
			})

			c := newTestClient(t, mux)
			_, err := c.RestoreItem(context.Background(), "f1")
			require.Error(t, err)
			assert.True(t, tt.check(err))

			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.code, apiErr.Code)
		})
	}
}

func TestListVersions(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/files/f1/versions", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		_, _ = w.Write([]byte(`{
			"entries": [
				{"id": "v2", "name": "budget.xlsx", "created_at": "2026-03-01T10:00:00Z"},
				{"id": "v1", "name": "budget.xlsx", "created_at": "2026-03-01T09:00:00Z"}
			]
		}`))
	})

	c := newTestClient(t, mux)
	versions, err := c.ListVersions(context.Background(), "f1")
	require.NoError(t, err)
	require.Len(t, versions, 2)

	// Platform order is preserved, never re-sorted.
	assert.Equal(t, "v2", versions[0].VersionID)
	assert.Equal(t, "v1", versions[1].VersionID)
}

func TestPromoteVersion(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/files/f1/versions/current", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "file_version", body["type"])
		assert.Equal(t, "v1", body["id"])

		_, _ = w.Write([]byte(`{"id": "v9"}`))
	})

	c := newTestClient(t, mux)
	newID, err := c.PromoteVersion(context.Background(), "f1", "v1")
	require.NoError(t, err)
	assert.Equal(t, "v9", newID)
}

func TestDecodeCursor(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{raw: `1152922976252290800`, want: "1152922976252290800"},
		{raw: `"abc"`, want: "abc"},
		{raw: `null`, want: ""},
		{raw: `0`, want: ""},
		{raw: ``, want: ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, decodeCursor(json.RawMessage(tt.raw)), "raw %q", tt.raw)
	}
}

func TestLoadSettings(t *testing.T) {
	dir := t.TempDir()

	t.Run("valid settings", func(t *testing.T) {
		path := filepath.Join(dir, "ok.json")
		require.NoError(t, os.WriteFile(path, []byte(`{
			"clientID": "c1",
			"clientSecret": "s1",
			"enterpriseID": "e1",
			"appAuth": {"publicKeyID": "k1", "privateKey": "pem"}
		}`), 0o600))

		s, err := LoadSettings(path)
		require.NoError(t, err)
		assert.Equal(t, "c1", s.ClientID)
		assert.Equal(t, "e1", s.EnterpriseID)
		assert.Equal(t, "k1", s.AppAuth.PublicKeyID)
	})

	t.Run("missing ids rejected", func(t *testing.T) {
		path := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"clientSecret": "s1"}`), 0o600))

		_, err := LoadSettings(path)
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadSettings(filepath.Join(dir, "absent.json"))
		assert.Error(t, err)
	})
}
