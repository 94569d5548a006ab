package app

import (
	"database/sql"
	"net/http"
	"time"

	"entrytest/internal/app/observability"
	"entrytest/internal/auth"
	"entrytest/internal/exam"
	"entrytest/internal/question"
	"entrytest/internal/report"
	"entrytest/internal/settings"
	"entrytest/internal/student"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(cfg Config, db *sql.DB) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)

	metrics := observability.NewCollector(db)
	r.Use(metrics.Middleware)
	r.Use(CSRFMiddleware(cfg.CSRFEnforced, cfg.IsProduction()))

	authSvc := auth.NewService(db, auth.ServiceConfig{
		SessionTTL:     cfg.SessionTTL,
		BootstrapToken: cfg.BootstrapToken,
	})
	authHandler := auth.NewHandler(authSvc, cfg.IsProduction())

	questionSvc := question.NewService(db)
	settingsSvc := settings.NewService(db)
	studentSvc := student.NewService(db)
	sessionStore := exam.NewStore(db)

	examSvc := exam.NewService(exam.Deps{
		Sessions:  sessionStore,
		Students:  studentSvc,
		Settings:  settingsSvc,
		Questions: questionSvc,
		Composer:  exam.NewComposer(questionSvc, time.Now().UnixNano()),
		Clock:     exam.NewClock(time.Now),
		Policy: exam.Policy{
			EnforceDuration: cfg.EnforceExamDuration,
			LateGrace:       cfg.LateSubmitGrace,
		},
	})
	reportSvc := report.NewService(db, sessionStore, studentSvc, questionSvc)

	examHandler := exam.NewHandler(examSvc)
	questionHandler := question.NewHandler(questionSvc)
	settingsHandler := settings.NewHandler(settingsSvc)
	studentHandler := student.NewHandler(studentSvc)
	reportHandler := report.NewHandler(reportSvc)

	authLimiter := RateLimitMiddleware(NewIPRateLimiter(cfg.AuthRateLimitPerMin, time.Minute))
	accessCodeLimiter := RateLimitMiddleware(NewIPRateLimiter(cfg.AccessCodeRateLimitPerMin, time.Minute))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	r.Route("/api/v1", func(api chi.Router) {
		api.With(accessCodeLimiter).Post("/test/start", examHandler.Start)
		api.Get("/sessions/{id}", examHandler.GetSession)
		api.Put("/sessions/{id}/answers", examHandler.SaveAnswers)
		api.Post("/sessions/{id}/submit", examHandler.Submit)
		api.Get("/sessions/{id}/result", examHandler.Result)
		api.Get("/settings/public", settingsHandler.Public)

		api.With(authLimiter).Post("/bootstrap/init", authHandler.BootstrapInit)
		api.With(authLimiter).Post("/auth/login", authHandler.Login)
		api.Post("/auth/logout", authHandler.Logout)

		api.Group(func(secure chi.Router) {
			secure.Use(authHandler.RequireAuth)
			secure.Use(metrics.AnnotateAdmin)

			secure.Get("/auth/me", authHandler.Me)
			secure.With(authLimiter).Post("/auth/password", authHandler.ChangePassword)

			secure.Route("/admin", func(admin chi.Router) {
				admin.Get("/dashboard", reportHandler.Dashboard)

				admin.Get("/questions", questionHandler.List)
				admin.Post("/questions", questionHandler.Create)
				admin.Get("/questions/stats", questionHandler.Stats)
				admin.Get("/questions/{id}", questionHandler.Get)
				admin.Put("/questions/{id}", questionHandler.Update)
				admin.Delete("/questions/{id}", questionHandler.Delete)

				admin.Get("/students", studentHandler.List)
				admin.Post("/students", studentHandler.Create)
				admin.Get("/students/{id}", studentHandler.Get)
				admin.Delete("/students/{id}", studentHandler.Delete)

				admin.Get("/settings", settingsHandler.Get)
				admin.Put("/settings", settingsHandler.Update)

				admin.Get("/results", reportHandler.ListResults)
				admin.Get("/results/export.xlsx", reportHandler.ExportResults)
				admin.Get("/results/{studentID}", reportHandler.StudentResult)
			})
		})
	})

	r.With(authHandler.RequireAuth).Get("/metrics", metrics.MetricsHandler)

	return r
}
