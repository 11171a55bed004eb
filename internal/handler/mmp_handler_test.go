package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"mmp-tracker/internal/cache"
	"mmp-tracker/internal/event"
	"mmp-tracker/internal/fallback"
	"mmp-tracker/internal/middleware"
	"mmp-tracker/internal/model"
	"mmp-tracker/internal/repository"
	"mmp-tracker/internal/service"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *model.APIError `json:"error"`
	Meta    *model.Meta     `json:"meta"`
}

type mmpRig struct {
	router http.Handler
	store  *repository.MockMMPRepository
}

func newMMPRig(t *testing.T, claims *model.AuthClaims) mmpRig {
	t.Helper()
	mirror, err := fallback.NewMirror(t.TempDir())
	require.NoError(t, err)

	store := new(repository.MockMMPRepository)
	auditRepo := new(repository.MockAuditRepository)
	auditRepo.On("Log", mock.Anything, mock.Anything).Return(nil).Maybe()

	svc := service.NewMMPService(store, cache.NewMMPCache(), mirror, service.NewAuditService(auditRepo, nil), event.NewBus(), nil)
	h := NewMMPHandler(svc)
	v := NewVerificationHandler(svc)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if claims != nil {
				r = r.WithContext(middleware.WithClaims(r.Context(), claims))
			}
			next.ServeHTTP(w, r)
		})
	})
	r.Get("/mmp", h.List)
	r.Post("/mmp", h.Create)
	r.Get("/mmp/{id}", h.Get)
	r.Post("/mmp/{id}/review", h.Review)
	r.Post("/mmp/{id}/approve", h.Approve)
	r.Post("/mmp/{id}/reject", h.Reject)
	r.Get("/mmp/{id}/sites/export", h.ExportSites)
	r.Get("/mmp/{id}/verification", v.Get)
	r.Put("/mmp/{id}/sites/{site_id}/verification", v.DecideSite)

	return mmpRig{router: r, store: store}
}

func (rig mmpRig) do(t *testing.T, method, target, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	rig.router.ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

var coordinator = &model.AuthClaims{UserID: "u-1", Username: "amal", Role: model.RoleCoordinator}

func sampleFile(id, hub string) model.MMPFile {
	at := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	return model.MMPFile{
		ID:          id,
		MMPID:       "M-032026-V1.0-" + strings.ToUpper(hub[:3]),
		Name:        hub + " plan",
		Hub:         hub,
		Status:      model.MMPStatusPending,
		Version:     model.Version{Major: 1},
		UploadedBy:  "amal",
		UploadedAt:  at,
		SiteEntries: []model.SiteEntry{{ID: "s-1", MMPFileID: id, SiteCode: "S-01", SiteName: "Wad Madani"}},
		CreatedAt:   at,
		UpdatedAt:   at,
	}
}

func TestMMPHandler_List(t *testing.T) {
	rig := newMMPRig(t, coordinator)
	rig.store.On("List", mock.Anything).Return([]model.MMPFile{sampleFile("f-1", "Kassala"), sampleFile("f-2", "Khartoum")}, nil)

	rec, env := rig.do(t, http.MethodGet, "/mmp?search=kassala&limit=10", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, env.Success)

	var list model.MMPList
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Equal(t, "1 of 2", list.Summary)
	require.Len(t, list.Items, 1)
	assert.Equal(t, "f-1", list.Items[0].ID)
	require.NotNil(t, env.Meta)
	assert.Equal(t, 10, env.Meta.Limit)
}

func TestMMPHandler_ListRejectsBadStatus(t *testing.T) {
	rig := newMMPRig(t, coordinator)

	rec, env := rig.do(t, http.MethodGet, "/mmp?status=bogus", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, env.Success)
	rig.store.AssertNotCalled(t, "List", mock.Anything)
}

func TestMMPHandler_Create(t *testing.T) {
	t.Run("created", func(t *testing.T) {
		rig := newMMPRig(t, coordinator)
		rig.store.On("Create", mock.Anything, mock.AnythingOfType("model.MMPFile")).Return(nil)

		rec, env := rig.do(t, http.MethodPost, "/mmp", `{"name":"Kassala April","hub":"Kassala","site_entries":[{"site_code":"K-1"}]}`)
		require.Equal(t, http.StatusCreated, rec.Code)
		assert.Nil(t, env.Meta)

		var res model.MMPMutation
		require.NoError(t, json.Unmarshal(env.Data, &res))
		assert.True(t, res.Persisted)
		assert.Equal(t, "amal", res.File.UploadedBy)
		assert.Len(t, res.File.SiteEntries, 1)
	})

	t.Run("database down still answers with a warning", func(t *testing.T) {
		rig := newMMPRig(t, coordinator)
		rig.store.On("Create", mock.Anything, mock.Anything).Return(errors.New("connection refused"))

		rec, env := rig.do(t, http.MethodPost, "/mmp", `{"name":"Kassala April"}`)
		require.Equal(t, http.StatusCreated, rec.Code)
		require.NotNil(t, env.Meta)
		assert.NotEmpty(t, env.Meta.Warning)
	})

	t.Run("malformed body", func(t *testing.T) {
		rig := newMMPRig(t, coordinator)

		rec, env := rig.do(t, http.MethodPost, "/mmp", `{"name":`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "BAD_REQUEST", env.Error.Code)
	})

	t.Run("missing name", func(t *testing.T) {
		rig := newMMPRig(t, coordinator)

		rec, env := rig.do(t, http.MethodPost, "/mmp", `{"hub":"Kassala"}`)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Equal(t, "VALIDATION_FAILED", env.Error.Code)
	})
}

func TestMMPHandler_Get(t *testing.T) {
	t.Run("not found", func(t *testing.T) {
		rig := newMMPRig(t, coordinator)
		rig.store.On("Get", mock.Anything, "missing").Return(model.MMPFile{}, model.ErrMMPNotFound)

		rec, env := rig.do(t, http.MethodGet, "/mmp/missing", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "NOT_FOUND", env.Error.Code)
	})

	t.Run("other hub hidden from FOM", func(t *testing.T) {
		rig := newMMPRig(t, &model.AuthClaims{UserID: "u-2", Role: model.RoleFOM, Hub: "Kassala"})
		rig.store.On("Get", mock.Anything, "f-2").Return(sampleFile("f-2", "Khartoum"), nil)

		rec, _ := rig.do(t, http.MethodGet, "/mmp/f-2", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestMMPHandler_Transitions(t *testing.T) {
	t.Run("approve before verification conflicts", func(t *testing.T) {
		rig := newMMPRig(t, coordinator)
		rig.store.On("Get", mock.Anything, "f-1").Return(sampleFile("f-1", "Kassala"), nil)

		rec, env := rig.do(t, http.MethodPost, "/mmp/f-1/approve", `{"comments":"ok"}`)
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "INVALID_TRANSITION", env.Error.Code)
		rig.store.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})

	t.Run("reject needs a reason", func(t *testing.T) {
		rig := newMMPRig(t, coordinator)
		rig.store.On("Get", mock.Anything, "f-1").Return(sampleFile("f-1", "Kassala"), nil)

		rec, _ := rig.do(t, http.MethodPost, "/mmp/f-1/reject", `{}`)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("review marks the file viewed", func(t *testing.T) {
		rig := newMMPRig(t, coordinator)
		rig.store.On("Get", mock.Anything, "f-1").Return(sampleFile("f-1", "Kassala"), nil)
		rig.store.On("Save", mock.Anything, mock.AnythingOfType("model.MMPFile")).Return(nil)

		rec, env := rig.do(t, http.MethodPost, "/mmp/f-1/review", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var res model.MMPMutation
		require.NoError(t, json.Unmarshal(env.Data, &res))
		assert.Equal(t, "amal", res.File.ReviewedBy)
	})
}

func TestVerificationHandler_DecideSite(t *testing.T) {
	rig := newMMPRig(t, coordinator)
	rig.store.On("Get", mock.Anything, "f-1").Return(sampleFile("f-1", "Kassala"), nil)
	rig.store.On("Save", mock.Anything, mock.AnythingOfType("model.MMPFile")).Return(nil)

	rec, _ := rig.do(t, http.MethodPut, "/mmp/f-1/sites/s-1/verification", `{"status":"verified","notes":"checked"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = rig.do(t, http.MethodPut, "/mmp/f-1/sites/nope/verification", `{"status":"verified"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = rig.do(t, http.MethodPut, "/mmp/f-1/sites/s-1/verification", `{"status":"maybe"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestMMPHandler_ExportSites(t *testing.T) {
	rig := newMMPRig(t, coordinator)
	rig.store.On("Get", mock.Anything, "f-1").Return(sampleFile("f-1", "Kassala"), nil)

	req := httptest.NewRequest(http.MethodGet, "/mmp/f-1/sites/export", nil)
	req = req.WithContext(middleware.WithClaims(context.Background(), coordinator))
	rec := httptest.NewRecorder()
	rig.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment;")
	assert.Equal(t, "1", rec.Header().Get("X-Export-Count"))
	assert.Contains(t, rec.Body.String(), `"Wad Madani"`)
}
