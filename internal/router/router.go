package router

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"mmp-tracker/internal/config"
	"mmp-tracker/internal/handler"
	"mmp-tracker/internal/metrics"
	"mmp-tracker/internal/middleware"
	"mmp-tracker/internal/model"
)

type Handlers struct {
	Auth         *handler.AuthHandler
	User         *handler.UserHandler
	MMP          *handler.MMPHandler
	Verification *handler.VerificationHandler
	Budget       *handler.BudgetHandler
	Audit        *handler.AuditHandler
	Dashboard    *handler.DashboardHandler
	WS           *handler.WSHandler
}

// HealthFunc reports whether the database is reachable. A nil HealthFunc is always healthy.
type HealthFunc func(ctx context.Context) error

var (
	editors    = []string{model.RoleAdmin, model.RoleICT, model.RoleFOM, model.RoleSupervisor, model.RoleCoordinator}
	approvers  = []string{model.RoleAdmin, model.RoleICT, model.RoleFOM}
	verifiers  = []string{model.RoleAdmin, model.RoleICT, model.RoleFOM, model.RoleSupervisor}
	finance    = []string{model.RoleAdmin, model.RoleFinancialAdmin}
	auditors   = []string{model.RoleAdmin, model.RoleICT}
	adminsOnly = []string{model.RoleAdmin}
)

func New(cfg *config.Config, auth *middleware.AuthMiddleware, h Handlers, m *metrics.Metrics, health HealthFunc) http.Handler {
	r := chi.NewRouter()
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(cfg.RateLimitRPM, cfg.AuthRateLimitRPM)

	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)
	if m != nil {
		r.Use(m.Middleware)
	}
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(middleware.SecurityHeaders)
	r.Use(rateLimitMiddleware.Handler)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if health != nil {
			if err := health(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte("degraded"))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if m != nil {
		r.Method(http.MethodGet, "/metrics", m.Handler())
	}

	// Long-lived connection; must stay outside the timeout middleware.
	r.With(auth.RequireAuth).Get("/ws", h.WS.Serve)

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(middleware.Timeout(cfg.RequestTimeout))
		api.Use(middleware.MaxBody(cfg.MaxBodyBytes))

		api.Route("/auth", func(a chi.Router) {
			a.Post("/login", h.Auth.Login)
			a.Post("/refresh", h.Auth.Refresh)
			a.With(auth.RequireAuth, auth.RequireRoles(adminsOnly...)).Post("/register", h.Auth.Register)
			a.With(auth.RequireAuth).Post("/logout", h.Auth.Logout)
			a.With(auth.RequireAuth).Get("/me", h.Auth.Me)
		})

		api.Group(func(p chi.Router) {
			p.Use(auth.RequireAuth)

			p.With(auth.RequireRoles(adminsOnly...)).Get("/users", h.User.List)
			p.With(auth.RequireRoles(adminsOnly...)).Get("/users/{id}", h.User.Get)

			p.Get("/dashboard", h.Dashboard.Get)

			p.Route("/mmp", func(mr chi.Router) {
				mr.Get("/", h.MMP.List)
				mr.With(auth.RequireRoles(editors...)).Post("/", h.MMP.Create)

				mr.Route("/{id}", func(one chi.Router) {
					one.Get("/", h.MMP.Get)
					one.Get("/sites/export", h.MMP.ExportSites)
					one.Get("/verification", h.Verification.Get)

					one.Group(func(w chi.Router) {
						w.Use(auth.RequireRoles(editors...))
						w.Put("/", h.MMP.Update)
						w.Post("/sites", h.MMP.AddSites)
						w.Post("/review", h.MMP.Review)
						w.Post("/permits", h.Verification.AddPermit)
					})

					one.Group(func(v chi.Router) {
						v.Use(auth.RequireRoles(verifiers...))
						v.Post("/verify", h.MMP.Verify)
						v.Put("/verification/content", h.Verification.CompleteContent)
						v.Put("/sites/{site_id}/verification", h.Verification.DecideSite)
						v.Put("/sites/{site_id}/flag", h.Verification.FlagSite)
						v.Put("/permits/{permit_id}", h.Verification.DecidePermit)
					})

					one.Group(func(a chi.Router) {
						a.Use(auth.RequireRoles(approvers...))
						a.Post("/approve", h.MMP.Approve)
						a.Post("/reject", h.MMP.Reject)
						a.Post("/reset", h.MMP.Reset)
					})

					one.Group(func(a chi.Router) {
						a.Use(auth.RequireRoles(auditors...))
						a.Post("/archive", h.MMP.Archive)
						a.Delete("/", h.MMP.Delete)
						a.Post("/restore", h.MMP.Restore)
					})
				})
			})

			p.Route("/budgets", func(b chi.Router) {
				b.Get("/projects", h.Budget.ListProjects)
				b.Get("/mmp", h.Budget.ListMMP)
				b.Get("/summary", h.Budget.Summary)
				b.Get("/{kind}/{id}/transactions", h.Budget.Transactions)

				b.Group(func(f chi.Router) {
					f.Use(auth.RequireRoles(finance...))
					f.Post("/projects", h.Budget.CreateProject)
					f.Post("/mmp", h.Budget.CreateMMP)
					f.Post("/{kind}/{id}/top-up", h.Budget.TopUp)
					f.Post("/{kind}/{id}/spend", h.Budget.Spend)
					f.Get("/export", h.Budget.Export)
				})
			})

			p.Route("/audit", func(a chi.Router) {
				a.Use(auth.RequireRoles(auditors...))
				a.Get("/", h.Audit.List)
				a.Get("/export", h.Audit.Export)
			})
		})
	})

	return r
}
