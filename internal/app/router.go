package app

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"auth-serverless/internal/auth"
	"auth-serverless/internal/config"
	"auth-serverless/internal/maintenance"
	"auth-serverless/internal/observability"
)

// HealthCheck is a named dependency probed by GET /health.
type HealthCheck struct {
	Name string
	Ping func(ctx context.Context) error
}

type RouterDeps struct {
	Config  config.Config
	Logger  *observability.Logger
	Service *auth.Service
	Purger  maintenance.DenylistPurger
	Checks  []HealthCheck
}

func NewRouter(deps RouterDeps) http.Handler {
	authHandler := auth.NewHandler(deps.Service, deps.Logger)
	purgeHandler := maintenance.NewPurgeHandler(deps.Purger, deps.Logger, deps.Config.CronSecret, deps.Config.DenylistPurgeBatchSize)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", authHandler.Login)
	mux.HandleFunc("POST /auth/refresh", authHandler.Refresh)
	mux.HandleFunc("POST /auth/logout", authHandler.Logout)
	mux.Handle("GET /auth/me", auth.Middleware(deps.Service, http.HandlerFunc(authHandler.Me)))
	mux.Handle("GET /admin/me", auth.Middleware(deps.Service, auth.RequireRole("admin", http.HandlerFunc(authHandler.Me))))
	mux.HandleFunc("GET /internal/maintenance/purge-denylist", purgeHandler.Handle)
	mux.HandleFunc("POST /internal/maintenance/purge-denylist", purgeHandler.Handle)
	mux.HandleFunc("GET /health", healthHandler(deps.Checks))
	mux.HandleFunc("GET /{$}", rootHandler(deps.Config))

	return observability.RecoverMiddleware(deps.Logger, observability.RequestLoggingMiddleware(deps.Logger, mux))
}

func healthHandler(checks []HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		body := map[string]any{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)}
		for _, check := range checks {
			if err := check.Ping(ctx); err != nil {
				status = http.StatusServiceUnavailable
				body["status"] = "degraded"
				body[check.Name] = "unavailable"
			}
		}

		writeJSON(w, status, body)
	}
}

func rootHandler(cfg config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"app":         cfg.AppName,
			"environment": cfg.Environment,
			"status":      "running",
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
