package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"mmp-tracker/internal/event"
	"mmp-tracker/internal/middleware"
	"mmp-tracker/internal/model"
	"mmp-tracker/internal/repository"
	"mmp-tracker/internal/service"
)

type stubFiles map[string]model.MMPFile

func (s stubFiles) Get(_ context.Context, id string) (model.MMPFile, error) {
	f, ok := s[id]
	if !ok {
		return model.MMPFile{}, model.ErrMMPNotFound
	}
	return f, nil
}

func newBudgetRouter(t *testing.T, store *repository.MockBudgetRepository) http.Handler {
	t.Helper()
	auditRepo := new(repository.MockAuditRepository)
	auditRepo.On("Log", mock.Anything, mock.Anything).Return(nil).Maybe()

	files := stubFiles{"f-1": sampleFile("f-1", "Kassala")}
	h := NewBudgetHandler(service.NewBudgetService(store, files, service.NewAuditService(auditRepo, nil), event.NewBus(), nil))

	claims := &model.AuthClaims{UserID: "u-9", Username: "salma", Role: model.RoleFinancialAdmin}
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(middleware.WithClaims(r.Context(), claims)))
		})
	})
	r.Post("/budgets/mmp", h.CreateMMP)
	r.Get("/budgets/summary", h.Summary)
	r.Get("/budgets/export", h.Export)
	r.Post("/budgets/{kind}/{id}/spend", h.Spend)
	return r
}

func serve(h http.Handler, method, target, body string) (*httptest.ResponseRecorder, envelope) {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env envelope
	_ = json.Unmarshal(rec.Body.Bytes(), &env)
	return rec, env
}

func TestBudgetHandler_CreateMMP(t *testing.T) {
	t.Run("category overrun is a warning, not an error", func(t *testing.T) {
		store := new(repository.MockBudgetRepository)
		store.On("CreateMMPBudget", mock.Anything, mock.AnythingOfType("model.MMPBudget"), mock.AnythingOfType("model.BudgetTransaction")).Return(nil)

		rec, env := serve(newBudgetRouter(t, store), http.MethodPost, "/budgets/mmp",
			`{"mmp_file_id":"f-1","allocated_budget":"100.00","category_breakdown":{"transportation":"80","accommodation":"40"}}`)
		require.Equal(t, http.StatusCreated, rec.Code)

		var res model.MMPBudgetResult
		require.NoError(t, json.Unmarshal(env.Data, &res))
		assert.Equal(t, int64(10000), res.Budget.AllocatedBudgetCents)
		assert.NotEmpty(t, res.Warnings)
	})

	t.Run("unknown file", func(t *testing.T) {
		store := new(repository.MockBudgetRepository)

		rec, _ := serve(newBudgetRouter(t, store), http.MethodPost, "/budgets/mmp", `{"mmp_file_id":"nope","allocated_budget":"10"}`)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		store.AssertNotCalled(t, "CreateMMPBudget", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestBudgetHandler_SpendUnknownKind(t *testing.T) {
	store := new(repository.MockBudgetRepository)

	rec, env := serve(newBudgetRouter(t, store), http.MethodPost, "/budgets/region/b-1/spend", `{"amount":"5","category":"other"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, env.Success)
}

func TestBudgetHandler_Export(t *testing.T) {
	store := new(repository.MockBudgetRepository)
	store.On("ListProjectBudgets", mock.Anything).Return([]model.ProjectBudget{{ID: "p-1", Name: "Q2 monitoring"}}, nil)
	store.On("ListMMPBudgets", mock.Anything, "").Return([]model.MMPBudget{}, nil)

	rec, _ := serve(newBudgetRouter(t, store), http.MethodGet, "/budgets/export", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("X-Export-Count"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "budget-report-")
	assert.Contains(t, rec.Body.String(), `"p-1"`)
}
