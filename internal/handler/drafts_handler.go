package handler

import (
	"net/http"

	"github.com/boddenberg/globalsend-bfa-go/internal/domain"
	"github.com/boddenberg/globalsend-bfa-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Send-money wizard
// POST /v1/drafts and /v1/drafts/{draftId}/...
// ============================================================

type amountRequest struct {
	Amount string `json:"amount"`
}

type currenciesRequest struct {
	SourceCurrency string `json:"sourceCurrency"`
	DestCurrency   string `json:"destCurrency"`
}

type backResponse struct {
	Exit bool                `json:"exit"`
	View *service.WizardView `json:"view,omitempty"`
}

// draftFrom resolves the draft named in the path, writing 404 when it is not open.
func draftFrom(w http.ResponseWriter, r *http.Request) (*service.Session, *service.TransferWizard, bool) {
	sess := SessionFromContext(r.Context())
	id := chi.URLParam(r, "draftId")
	wiz, ok := sess.Draft(id)
	if !ok {
		writeError(w, http.StatusNotFound, (&domain.ErrNotFound{Resource: "draft", ID: id}).Error())
		return nil, nil, false
	}
	return sess, wiz, true
}

// respond writes the wizard view after a transition, or maps its error.
func respond(w http.ResponseWriter, r *http.Request, wiz *service.TransferWizard, err error, logger *zap.Logger) {
	if err != nil {
		handleServiceError(w, err, logger)
		return
	}
	writeJSON(w, http.StatusOK, wiz.View(r.Context()))
}

func createDraftHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := SessionFromContext(r.Context())
		wiz := sess.NewDraft()

		// Warm what the wizard reads without waiting for it.
		sess.Reader.PeekRecipients(r.Context())
		sess.Reader.PeekExchangeRates(r.Context())

		w.Header().Set("Location", "/v1/drafts/"+wiz.Draft().ID)
		writeJSON(w, http.StatusCreated, wiz.View(r.Context()))
	}
}

func getDraftHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, wiz, ok := draftFrom(w, r)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, wiz.View(r.Context()))
	}
}

func deleteDraftHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, wiz, ok := draftFrom(w, r)
		if !ok {
			return
		}
		sess.DiscardDraft(wiz.Draft().ID)
		w.WriteHeader(http.StatusNoContent)
	}
}

func selectRecipientHandler(logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, wiz, ok := draftFrom(w, r)
		if !ok {
			return
		}
		var recipient domain.Recipient
		if err := decodeJSON(r, &recipient); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		_, err := wiz.SelectRecipient(recipient)
		respond(w, r, wiz, err, logger)
	}
}

func addDraftRecipientHandler(logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, wiz, ok := draftFrom(w, r)
		if !ok {
			return
		}
		var recipient domain.Recipient
		if err := decodeJSON(r, &recipient); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		_, err := wiz.AddRecipient(r.Context(), recipient)
		respond(w, r, wiz, err, logger)
	}
}

func setAmountHandler(logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, wiz, ok := draftFrom(w, r)
		if !ok {
			return
		}
		var req amountRequest
		if err := decodeJSON(r, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		_, err := wiz.SetAmount(req.Amount)
		respond(w, r, wiz, err, logger)
	}
}

func setCurrenciesHandler(logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, wiz, ok := draftFrom(w, r)
		if !ok {
			return
		}
		var req currenciesRequest
		if err := decodeJSON(r, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		_, err := wiz.SetCurrencies(req.SourceCurrency, req.DestCurrency)
		respond(w, r, wiz, err, logger)
	}
}

func nextHandler(logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, wiz, ok := draftFrom(w, r)
		if !ok {
			return
		}
		_, err := wiz.Next()
		respond(w, r, wiz, err, logger)
	}
}

func backHandler(logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, wiz, ok := draftFrom(w, r)
		if !ok {
			return
		}
		d, exit, err := wiz.Back()
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if exit {
			// Leaving from the first step abandons the draft.
			sess.DiscardDraft(d.ID)
			writeJSON(w, http.StatusOK, backResponse{Exit: true})
			return
		}
		view := wiz.View(r.Context())
		writeJSON(w, http.StatusOK, backResponse{View: &view})
	}
}

func confirmHandler(logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, wiz, ok := draftFrom(w, r)
		if !ok {
			return
		}
		ctx, span := tracer.Start(r.Context(), "handler.Confirm")
		defer span.End()
		span.SetAttributes(attribute.String("draft.id", wiz.Draft().ID))

		_, err := wiz.Confirm(ctx)
		respond(w, r, wiz, err, logger)
	}
}

func doneHandler(logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, wiz, ok := draftFrom(w, r)
		if !ok {
			return
		}
		if err := sess.FinishDraft(wiz.Draft().ID); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
