package middleware

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mmp-tracker/internal/model"
)

type fakeValidator struct {
	claims *model.AuthClaims
}

func (f fakeValidator) ValidateToken(token string, expectedType string) (*model.AuthClaims, error) {
	if token != "good" || expectedType != "access" {
		return nil, errors.New("invalid")
	}
	return f.claims, nil
}

func TestAuthMiddleware(t *testing.T) {
	mw := NewAuthMiddleware(fakeValidator{claims: &model.AuthClaims{UserID: "u-1", Role: model.RoleFOM, Hub: "Kassala"}})
	protected := mw.RequireAuth(mw.RequireRoles(model.RoleAdmin, model.RoleFOM)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		require.True(t, ok)
		_, _ = io.WriteString(w, claims.Hub)
	})))

	tests := []struct {
		name   string
		setup  func(r *http.Request)
		target string
		status int
	}{
		{name: "missing header", setup: func(r *http.Request) {}, target: "/api/v1/mmp", status: http.StatusUnauthorized},
		{name: "wrong scheme", setup: func(r *http.Request) { r.Header.Set("Authorization", "Basic abc") }, target: "/api/v1/mmp", status: http.StatusUnauthorized},
		{name: "bad token", setup: func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") }, target: "/api/v1/mmp", status: http.StatusUnauthorized},
		{name: "valid token", setup: func(r *http.Request) { r.Header.Set("Authorization", "Bearer good") }, target: "/api/v1/mmp", status: http.StatusOK},
		{name: "query token only on upgrade", setup: func(r *http.Request) {}, target: "/ws?token=good", status: http.StatusUnauthorized},
		{name: "websocket query token", setup: func(r *http.Request) { r.Header.Set("Upgrade", "websocket") }, target: "/ws?token=good", status: http.StatusOK},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.target, nil)
			tc.setup(req)
			rec := httptest.NewRecorder()
			protected.ServeHTTP(rec, req)
			assert.Equal(t, tc.status, rec.Code)
		})
	}

	t.Run("role not allowed", func(t *testing.T) {
		strict := NewAuthMiddleware(fakeValidator{claims: &model.AuthClaims{UserID: "u-3", Role: model.RoleDataCollector}})
		h := strict.RequireAuth(strict.RequireRoles(model.RoleAdmin)(okHandler()))
		req := httptest.NewRequest(http.MethodPost, "/api/v1/mmp/1/approve", nil)
		req.Header.Set("Authorization", "Bearer good")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Contains(t, rec.Body.String(), "FORBIDDEN")
	})
}

func TestRecovery(t *testing.T) {
	h := Recovery(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "INTERNAL_ERROR")
}

func TestLoggingAssignsRequestID(t *testing.T) {
	var seen string
	h := Logging(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
		writeError(w, http.StatusNotFound, "NOT_FOUND", "mmp file not found")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/mmp/x", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get(requestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get(requestIDHeader))
}

func TestSecurityHeadersAndMaxBody(t *testing.T) {
	h := SecurityHeaders(MaxBody(8)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := io.ReadAll(r.Body); err != nil {
			w.WriteHeader(http.StatusRequestEntityTooLarge)
			return
		}
		w.WriteHeader(http.StatusOK)
	})))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("tiny")))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("this body is too long")))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestCORS(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })

	preflight := func(h http.Handler, origin string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodOptions, "/api/v1/mmp", nil)
		req.Header.Set("Origin", origin)
		req.Header.Set("Access-Control-Request-Method", http.MethodPut)
		req.Header.Set("Access-Control-Request-Headers", "Authorization")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	t.Run("allow-list is normalized and sends credentials", func(t *testing.T) {
		opts := corsOptions([]string{" https://Dash.Example.org/ ", "https://dash.example.org", ""})
		assert.Equal(t, []string{"https://dash.example.org"}, opts.AllowedOrigins)
		assert.True(t, opts.AllowCredentials)

		h := CORS([]string{"https://dash.example.org/"})(ok)
		rec := preflight(h, "https://dash.example.org")
		assert.Equal(t, "https://dash.example.org", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

		rec = preflight(h, "https://evil.example.com")
		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("wildcard never sends credentials", func(t *testing.T) {
		for _, origins := range [][]string{nil, {"*"}, {"https://a.example.org", "*"}} {
			opts := corsOptions(origins)
			assert.Equal(t, []string{"*"}, opts.AllowedOrigins)
			assert.False(t, opts.AllowCredentials)
		}

		req := httptest.NewRequest(http.MethodGet, "/api/v1/mmp", nil)
		req.Header.Set("Origin", "https://anywhere.example.net")
		rec := httptest.NewRecorder()
		CORS(nil)(ok).ServeHTTP(rec, req)
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Contains(t, rec.Header().Get("Access-Control-Expose-Headers"), "X-Export-Count")
	})
}
