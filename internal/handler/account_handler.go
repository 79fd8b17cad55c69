package handler

import (
	"net/http"

	"github.com/boddenberg/globalsend-bfa-go/internal/domain"
	"github.com/boddenberg/globalsend-bfa-go/internal/service"

	"go.uber.org/zap"
)

// ============================================================
// Session: login / logout
// ============================================================

type sessionResponse struct {
	PrincipalID string            `json:"principalId"`
	Dashboard   service.Dashboard `json:"dashboard"`
}

func openSessionHandler(sessions *service.SessionManager, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, ok := domain.PrincipalFrom(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "not authenticated")
			return
		}
		sess := sessions.Open(principal)
		logger.Debug("session ready", zap.String("principal", principal.ID))

		writeJSON(w, http.StatusCreated, sessionResponse{
			PrincipalID: principal.ID,
			Dashboard:   sess.Reader.Dashboard(r.Context()),
		})
	}
}

func closeSessionHandler(sessions *service.SessionManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, _ := domain.PrincipalFrom(r.Context())
		sessions.Close(principal.ID)
		w.WriteHeader(http.StatusNoContent)
	}
}

// ============================================================
// Ledger entities
// ============================================================

func dashboardHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := SessionFromContext(r.Context())
		writeJSON(w, http.StatusOK, sess.Reader.Dashboard(r.Context()))
	}
}

func getProfileHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := SessionFromContext(r.Context())
		writeJSON(w, http.StatusOK, sess.Reader.Profile(r.Context()))
	}
}

func saveProfileHandler(logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := SessionFromContext(r.Context())

		var profile domain.UserProfile
		if err := decodeJSON(r, &profile); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if err := sess.Mutator.SaveProfile(r.Context(), profile); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, sess.Reader.Profile(r.Context()))
	}
}

func roleHandler(logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := SessionFromContext(r.Context())
		role, err := sess.Reader.Role(r.Context())
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]domain.UserRole{"role": role})
	}
}

func balanceHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := SessionFromContext(r.Context())
		writeJSON(w, http.StatusOK, sess.Reader.Balance(r.Context()))
	}
}

func refreshBalanceHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := SessionFromContext(r.Context())
		writeJSON(w, http.StatusOK, sess.Reader.RefreshBalance(r.Context()))
	}
}

func listRecipientsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := SessionFromContext(r.Context())
		writeJSON(w, http.StatusOK, sess.Reader.Recipients(r.Context()))
	}
}

func addRecipientHandler(logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := SessionFromContext(r.Context())

		var recipient domain.Recipient
		if err := decodeJSON(r, &recipient); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if err := sess.Mutator.AddRecipient(r.Context(), recipient); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, sess.Reader.Recipients(r.Context()))
	}
}

func exchangeRatesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := SessionFromContext(r.Context())
		writeJSON(w, http.StatusOK, sess.Reader.ExchangeRates(r.Context()))
	}
}

func transfersHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := SessionFromContext(r.Context())
		writeJSON(w, http.StatusOK, sess.Reader.HistoryRows(r.Context()))
	}
}

type quoteRequest struct {
	Amount         string `json:"amount"`
	SourceCurrency string `json:"sourceCurrency"`
	DestCurrency   string `json:"destCurrency"`
}

func quoteHandler(logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := SessionFromContext(r.Context())

		var req quoteRequest
		if err := decodeJSON(r, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		q, err := sess.Reader.Quote(r.Context(), req.Amount, req.SourceCurrency, req.DestCurrency)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, q)
	}
}

// ============================================================
// Reference data
// ============================================================

func currenciesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if code := r.URL.Query().Get("code"); code != "" {
			writeJSON(w, http.StatusOK, domain.LookupCurrency(code))
			return
		}
		writeJSON(w, http.StatusOK, domain.Currencies)
	}
}

func countriesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if code := r.URL.Query().Get("code"); code != "" {
			writeJSON(w, http.StatusOK, domain.LookupCountry(code))
			return
		}
		writeJSON(w, http.StatusOK, domain.Countries)
	}
}
