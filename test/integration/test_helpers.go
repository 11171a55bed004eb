//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"mmp-tracker/internal/cache"
	"mmp-tracker/internal/config"
	"mmp-tracker/internal/event"
	"mmp-tracker/internal/fallback"
	"mmp-tracker/internal/handler"
	"mmp-tracker/internal/middleware"
	"mmp-tracker/internal/model"
	"mmp-tracker/internal/repository"
	"mmp-tracker/internal/router"
	"mmp-tracker/internal/service"
	"mmp-tracker/internal/websocket"
)

const adminPassword = "admin-pass-123"

// memoryStores stand in for Postgres so the whole router can run in-process.
type memoryStores struct {
	mu     sync.Mutex
	files  map[string]model.MMPFile
	users  map[string]model.User
	tokens map[string]string
	audit  []model.AuditEntry
}

func newMemoryStores() *memoryStores {
	return &memoryStores{
		files:  map[string]model.MMPFile{},
		users:  map[string]model.User{},
		tokens: map[string]string{},
	}
}

type mmpStore struct{ *memoryStores }

func (s mmpStore) Create(_ context.Context, f model.MMPFile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[f.ID] = f.Clone()
	return nil
}

func (s mmpStore) Save(_ context.Context, f model.MMPFile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.files[f.ID]; !ok {
		return model.ErrMMPNotFound
	}
	s.files[f.ID] = f.Clone()
	return nil
}

func (s mmpStore) Get(_ context.Context, id string) (model.MMPFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.files[id]
	if !ok {
		return model.MMPFile{}, model.ErrMMPNotFound
	}
	return f.Clone(), nil
}

func (s mmpStore) List(_ context.Context) ([]model.MMPFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.MMPFile, 0, len(s.files))
	for _, f := range s.files {
		out = append(out, f.Clone())
	}
	return out, nil
}

type userStore struct{ *memoryStores }

func (s userStore) FindByID(_ context.Context, id string) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.ID == id {
			return u, nil
		}
	}
	return model.User{}, model.ErrUserNotFound
}

func (s userStore) FindByUsername(_ context.Context, username string) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[username]
	if !ok {
		return model.User{}, model.ErrUserNotFound
	}
	return u, nil
}

func (s userStore) Create(_ context.Context, u model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.Username]; ok {
		return model.ErrUserAlreadyExists
	}
	s.users[u.Username] = u
	return nil
}

func (s userStore) List(_ context.Context) ([]model.AuthUser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.AuthUser, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, model.AuthUser{ID: u.ID, Username: u.Username, Role: u.Role, Hub: u.Hub})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (s userStore) Count(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users), nil
}

type tokenStore struct{ *memoryStores }

func (s tokenStore) Store(_ context.Context, token, userID string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[token] = userID
	return nil
}

func (s tokenStore) Validate(_ context.Context, token string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	userID, ok := s.tokens[token]
	if !ok {
		return "", model.ErrTokenNotFound
	}
	return userID, nil
}

func (s tokenStore) Revoke(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, token)
	return nil
}

func (s tokenStore) CleanExpired(context.Context) (int64, error) { return 0, nil }

type auditStore struct{ *memoryStores }

func (s auditStore) Log(_ context.Context, entry model.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audit = append(s.audit, entry)
	return nil
}

func (s auditStore) Query(ctx context.Context, query model.AuditQuery) ([]model.AuditEntry, model.Meta, error) {
	items, _ := s.QueryAll(ctx, query)
	return items, model.Meta{Page: 1, Limit: len(items), Total: len(items), TotalPages: 1}, nil
}

func (s auditStore) QueryAll(_ context.Context, query model.AuditQuery) ([]model.AuditEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.AuditEntry
	for _, e := range s.audit {
		if query.Action != "" && e.Action != query.Action {
			continue
		}
		if query.Resource != "" && e.Resource != query.Resource {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

type testServer struct {
	*httptest.Server
	stores *memoryStores
	auth   *service.AuthService
}

func testConfig() *config.Config {
	return &config.Config{
		ServerPort:       "8080",
		RequestTimeout:   5 * time.Second,
		MaxBodyBytes:     1 << 20,
		JWTSecret:        "integration-secret",
		JWTAccessTTL:     15 * time.Minute,
		JWTRefreshTTL:    24 * time.Hour,
		CORSOrigins:      []string{"*"},
		RateLimitRPM:     1000,
		AuthRateLimitRPM: 1000,
	}
}

func newServer(t *testing.T, cfg *config.Config) *testServer {
	t.Helper()

	stores := newMemoryStores()
	mirror, err := fallback.NewMirror(t.TempDir())
	require.NoError(t, err)

	bus := event.NewBus()
	hub := websocket.NewHub(bus)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	auditService := service.NewAuditService(auditStore{stores}, nil)
	authService := service.NewAuthService(userStore{stores}, tokenStore{stores}, auditService, cfg.JWTSecret, cfg.JWTAccessTTL, cfg.JWTRefreshTTL)
	require.NoError(t, authService.BootstrapAdmin(context.Background(), adminPassword))

	mmpService := service.NewMMPService(mmpStore{stores}, cache.NewMMPCache(), mirror, auditService, bus, nil)
	budgetService := service.NewBudgetService(new(repository.MockBudgetRepository), mmpService, auditService, bus, nil)

	h := router.New(cfg, middleware.NewAuthMiddleware(authService), router.Handlers{
		Auth:         handler.NewAuthHandler(authService),
		User:         handler.NewUserHandler(authService),
		MMP:          handler.NewMMPHandler(mmpService),
		Verification: handler.NewVerificationHandler(mmpService),
		Budget:       handler.NewBudgetHandler(budgetService),
		Audit:        handler.NewAuditHandler(auditService),
		Dashboard:    handler.NewDashboardHandler(service.NewDashboardService(mmpService, budgetService, auditService)),
		WS:           handler.NewWSHandler(hub, cfg.CORSOrigins),
	}, nil, nil)

	server := httptest.NewServer(h)
	t.Cleanup(server.Close)
	return &testServer{Server: server, stores: stores, auth: authService}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *model.APIError `json:"error"`
	Meta    *model.Meta     `json:"meta"`
}

func (s *testServer) login(t *testing.T, username, password string) string {
	t.Helper()

	resp, env := s.call(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"username": username, "password": password})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var pair model.TokenPair
	require.NoError(t, json.Unmarshal(env.Data, &pair))
	require.NotEmpty(t, pair.AccessToken)
	return pair.AccessToken
}

// userToken registers a user through the admin API and logs in as them.
func (s *testServer) userToken(t *testing.T, adminToken, username, role, hub string) string {
	t.Helper()

	resp, _ := s.call(t, http.MethodPost, "/api/v1/auth/register", adminToken, map[string]string{
		"username": username,
		"password": "Password123!",
		"role":     role,
		"hub":      hub,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return s.login(t, username, "Password123!")
}

func (s *testServer) call(t *testing.T, method, path, token string, body any) (*http.Response, envelope) {
	t.Helper()

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		require.NoError(t, err)
	}

	req, err := http.NewRequest(method, s.URL+path, bytes.NewReader(payload))
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	var env envelope
	if resp.Header.Get("Content-Type") == "application/json" {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	}
	return resp, env
}

func decode[T any](t *testing.T, env envelope) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}
