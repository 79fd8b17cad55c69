package handler

import (
	"net/http"
	"time"

	"github.com/boddenberg/globalsend-bfa-go/internal/infra/observability"
	"github.com/boddenberg/globalsend-bfa-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// NewRouter creates the HTTP router with all routes and middleware.
// sessions and verifier may be nil, in which case only the operational
// endpoints and the catalog are served.
func NewRouter(sessions *service.SessionManager, verifier *service.TokenVerifier, metrics *observability.Metrics, logger *zap.Logger, requestTimeout time.Duration) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(sessions))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {
		if requestTimeout > 0 {
			r.Use(middleware.Timeout(requestTimeout))
		}

		// Reference data needs no session.
		r.Get("/catalog/currencies", currenciesHandler())
		r.Get("/catalog/countries", countriesHandler())
		r.Get("/metrics/cache", cacheStatsHandler(metrics))

		if sessions == nil || verifier == nil {
			return
		}

		r.Group(func(r chi.Router) {
			r.Use(JWTAuthMiddleware(verifier, logger))

			// Login / logout.
			r.Post("/session", openSessionHandler(sessions, logger))
			r.Delete("/session", closeSessionHandler(sessions))

			r.Group(func(r chi.Router) {
				r.Use(SessionMiddleware(sessions, logger))

				r.Get("/dashboard", dashboardHandler())
				r.Get("/profile", getProfileHandler())
				r.Put("/profile", saveProfileHandler(logger))
				r.Get("/role", roleHandler(logger))
				r.Get("/balance", balanceHandler())
				r.Post("/balance/refresh", refreshBalanceHandler())
				r.Get("/recipients", listRecipientsHandler())
				r.Post("/recipients", addRecipientHandler(logger))
				r.Get("/exchange-rates", exchangeRatesHandler())
				r.Get("/transfers", transfersHandler())
				r.Post("/quote", quoteHandler(logger))

				// Send-money wizard.
				r.Post("/drafts", createDraftHandler())
				r.Route("/drafts/{draftId}", func(r chi.Router) {
					r.Get("/", getDraftHandler())
					r.Delete("/", deleteDraftHandler())
					r.Post("/recipient", selectRecipientHandler(logger))
					r.Post("/recipients", addDraftRecipientHandler(logger))
					r.Put("/amount", setAmountHandler(logger))
					r.Put("/currencies", setCurrenciesHandler(logger))
					r.Post("/next", nextHandler(logger))
					r.Post("/back", backHandler(logger))
					r.Post("/confirm", confirmHandler(logger))
					r.Post("/done", doneHandler(logger))
				})
			})
		})
	})

	return r
}

// ============================================================
// Operational
// ============================================================

type healthResponse struct {
	Status   string `json:"status"`
	Sessions int    `json:"sessions"`
	Time     string `json:"time"`
}

func healthzHandler(sessions *service.SessionManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{Status: "healthy", Time: time.Now().UTC().Format(time.RFC3339)}
		if sessions != nil {
			resp.Sessions = sessions.Len()
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func cacheStatsHandler(metrics *observability.Metrics) http.HandlerFunc {
	keys := make([]string, 0, len(service.CacheKeys))
	for _, k := range service.CacheKeys {
		keys = append(keys, string(k))
	}
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.CacheSnapshot(keys...))
	}
}
