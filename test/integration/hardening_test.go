//go:build integration

package integration

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSecurityHeadersOnResponses(t *testing.T) {
	t.Parallel()

	server := newServer(t, testConfig())
	token := server.login(t, "admin", adminPassword)

	resp, _ := server.call(t, http.MethodGet, "/api/v1/mmp", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	require.Equal(t, "DENY", resp.Header.Get("X-Frame-Options"))
	require.Equal(t, "no-referrer", resp.Header.Get("Referrer-Policy"))
	require.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestAuthRateLimitReturns429(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.AuthRateLimitRPM = 2
	server := newServer(t, cfg)

	loginPayload, err := json.Marshal(map[string]string{"username": "admin", "password": adminPassword})
	require.NoError(t, err)

	for attempt := 0; attempt < 2; attempt++ {
		resp, reqErr := http.Post(server.URL+"/api/v1/auth/login", "application/json", bytes.NewReader(loginPayload))
		require.NoError(t, reqErr)
		_ = resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	resp, err := http.Post(server.URL+"/api/v1/auth/login", "application/json", bytes.NewReader(loginPayload))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	require.NotEmpty(t, resp.Header.Get("Retry-After"))

	// Other routes keep their own budget.
	health, err := http.Get(server.URL + "/health")
	require.NoError(t, err)
	_ = health.Body.Close()
	require.Equal(t, http.StatusOK, health.StatusCode)
}

func TestOversizedBodyIsRejected(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.MaxBodyBytes = 64
	server := newServer(t, cfg)
	token := server.login(t, "admin", adminPassword)

	resp, env := server.call(t, http.MethodPost, "/api/v1/mmp", token, map[string]string{"name": strings.Repeat("x", 256)})
	require.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
	require.Equal(t, "PAYLOAD_TOO_LARGE", env.Error.Code)
}
