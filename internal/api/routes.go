// Package api is the process's ops-facing HTTP surface: liveness/readiness,
// Prometheus metrics, and the authenticated webhook the out-of-scope
// parsing/bot-UI boundary calls into the Creation Service through. The full
// CRUD API the lineage exposed for managing exchanges, pairs, and settings
// has no home here — this process has no end-user API surface, and
// auth/CORS concerns that only make sense for a browser-facing API go with it.
package api

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/eng540/CapitalGuard-Pro-v2-sub000/internal/api/middleware"
)

// Dependencies carries whatever the ops surface and webhook handler need.
type Dependencies struct {
	DB                *sql.DB
	Creation          RecommendationCreator
	WebhookSecretHash string
}

// SetupRoutes builds the process router: /healthz and /metrics unauthenticated,
// plus the shared-secret-authenticated recommendation ingestion webhook.
func SetupRoutes(deps *Dependencies) *mux.Router {
	router := mux.NewRouter()

	router.Use(middleware.Recovery)
	router.Use(middleware.Logging)

	router.HandleFunc("/healthz", healthzHandler(deps)).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	if deps != nil && deps.Creation != nil {
		webhooks := router.PathPrefix("/webhooks").Subrouter()
		webhooks.Use(middleware.WebhookAuth(deps.WebhookSecretHash))
		webhooks.HandleFunc("/recommendations", recommendationWebhookHandler(deps.Creation)).Methods(http.MethodPost)
	}

	return router
}

// healthzHandler reports 200 once the store is reachable, 503 otherwise —
// the one dependency this process cannot run without.
func healthzHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps == nil || deps.DB == nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := deps.DB.PingContext(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("store unreachable"))
			return
		}

		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}
}
