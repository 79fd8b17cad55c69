package service

import (
	"context"
	"errors"
	"sync"

	"github.com/boddenberg/globalsend-bfa-go/internal/domain"
	"github.com/boddenberg/globalsend-bfa-go/internal/money"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// WizardRecorder counts wizard transitions.
type WizardRecorder interface {
	RecordWizardTransition(action, result string)
}

// TransferWizard drives one send-money draft through its steps. Quotes are
// derived from cached rates only; the single remote call it makes is the
// submission on Confirm, of which at most one is in flight.
type TransferWizard struct {
	mu         sync.Mutex
	draft      domain.Draft
	submitting bool

	reader  *Reader
	mutator *Mutator
	metrics WizardRecorder
	logger  *zap.Logger
}

// NewTransferWizard opens a draft with the given id. metrics may be nil.
func NewTransferWizard(id string, reader *Reader, mutator *Mutator, metrics WizardRecorder, logger *zap.Logger) *TransferWizard {
	return &TransferWizard{
		draft:   domain.NewDraft(id),
		reader:  reader,
		mutator: mutator,
		metrics: metrics,
		logger:  logger.With(zap.String("draft_id", id)),
	}
}

// WizardView is a draft together with its live quote.
type WizardView struct {
	Draft      domain.Draft `json:"draft"`
	Submitting bool         `json:"submitting"`
	Quote      money.Quote  `json:"quote"`
}

// Draft returns a copy of the current draft.
func (w *TransferWizard) Draft() domain.Draft {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.draft
}

// View returns the draft and a quote computed from the cached rate table.
func (w *TransferWizard) View(ctx context.Context) WizardView {
	w.mu.Lock()
	d, submitting := w.draft, w.submitting
	w.mu.Unlock()

	return WizardView{Draft: d, Submitting: submitting, Quote: w.quote(ctx, d)}
}

// Quote recomputes fee, total and conversion for the current draft. It never
// waits on the network: until rates are cached the quote reports RatesReady false.
func (w *TransferWizard) Quote(ctx context.Context) money.Quote {
	return w.quote(ctx, w.Draft())
}

func (w *TransferWizard) quote(ctx context.Context, d domain.Draft) money.Quote {
	rates := w.reader.PeekExchangeRates(ctx)
	return money.NewQuote(d.AmountValue(), d.SourceCurrency, d.DestCurrency, rates.Value, rates.Loaded)
}

// SelectRecipient picks an existing recipient. The step does not change.
func (w *TransferWizard) SelectRecipient(r domain.Recipient) (domain.Draft, error) {
	return w.apply("select_recipient", func(d domain.Draft) (domain.Draft, error) {
		return d.SelectRecipient(r)
	})
}

// AddRecipient saves a new recipient and selects the ledger's copy of it. The
// draft stays on the recipient step. A failed save leaves the draft untouched;
// if the draft moved on while the save ran, the recipient stays saved and the
// selection is rejected.
func (w *TransferWizard) AddRecipient(ctx context.Context, r domain.Recipient) (domain.Draft, error) {
	ctx, span := tracer.Start(ctx, "TransferWizard.AddRecipient")
	defer span.End()

	w.mu.Lock()
	err := w.editableLocked()
	if err == nil {
		err = w.draft.CheckAddRecipient()
	}
	if err != nil {
		d := w.draft
		w.mu.Unlock()
		w.record("add_recipient", err)
		return d, err
	}
	w.mu.Unlock()

	if err := w.mutator.AddRecipient(ctx, r); err != nil {
		w.record("add_recipient", err)
		return w.Draft(), err
	}

	saved := r
	for _, c := range w.reader.Recipients(ctx).Value {
		if c.SameAs(r) {
			saved = c
			break
		}
	}
	return w.apply("add_recipient", func(d domain.Draft) (domain.Draft, error) {
		return d.SelectRecipient(saved)
	})
}

// SetAmount records the raw amount input.
func (w *TransferWizard) SetAmount(raw string) (domain.Draft, error) {
	return w.apply("set_amount", func(d domain.Draft) (domain.Draft, error) {
		return d.SetAmount(raw)
	})
}

// SetCurrencies changes the currency pair.
func (w *TransferWizard) SetCurrencies(src, dst string) (domain.Draft, error) {
	return w.apply("set_currencies", func(d domain.Draft) (domain.Draft, error) {
		return d.SetCurrencies(src, dst)
	})
}

// Next advances to the following step when its precondition holds.
func (w *TransferWizard) Next() (domain.Draft, error) {
	return w.apply("next", func(d domain.Draft) (domain.Draft, error) {
		return d.Next()
	})
}

// Back steps backwards. exit reports that the wizard should be left.
func (w *TransferWizard) Back() (domain.Draft, bool, error) {
	var exit bool
	d, err := w.apply("back", func(d domain.Draft) (domain.Draft, error) {
		next, leave, err := d.Back()
		exit = leave
		return next, err
	})
	return d, exit, err
}

// Confirm submits the draft. On success the draft moves to Result with the
// transfer id; on failure it stays in Review with its data intact and the
// error is returned so the caller may confirm again.
func (w *TransferWizard) Confirm(ctx context.Context) (domain.Draft, error) {
	ctx, span := tracer.Start(ctx, "TransferWizard.Confirm")
	defer span.End()

	w.mu.Lock()
	if err := w.editableLocked(); err != nil {
		d := w.draft
		w.mu.Unlock()
		w.record("confirm", err)
		return d, err
	}
	req, err := w.draft.Request()
	if err != nil {
		d := w.draft
		w.mu.Unlock()
		w.record("confirm", err)
		return d, err
	}
	w.submitting = true
	w.mu.Unlock()

	// The submission outlives the caller so the draft always learns its outcome.
	id, err := w.mutator.SubmitTransfer(context.WithoutCancel(ctx), req)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.submitting = false
	if err != nil {
		w.logger.Warn("transfer submission failed", zap.Error(err))
		w.record("confirm", err)
		return w.draft, err
	}

	done, cerr := w.draft.Complete(id)
	if cerr != nil {
		w.record("confirm", cerr)
		return w.draft, cerr
	}
	w.draft = done
	span.SetAttributes(attribute.Int64("transfer.id", int64(id)))
	w.logger.Info("transfer submitted", zap.Uint64("transfer_id", id))
	w.record("confirm", nil)
	return done, nil
}

// Done closes a finished draft. It is only valid from the Result step.
func (w *TransferWizard) Done() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	var err error
	if w.draft.Step != domain.StepResult {
		err = &domain.Rejection{Reason: domain.RejectWrongStep, Step: w.draft.Step}
	}
	w.record("done", err)
	return err
}

func (w *TransferWizard) apply(action string, fn func(domain.Draft) (domain.Draft, error)) (domain.Draft, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.editableLocked(); err != nil {
		w.record(action, err)
		return w.draft, err
	}
	next, err := fn(w.draft)
	w.record(action, err)
	if err != nil {
		return w.draft, err
	}
	w.draft = next
	return next, nil
}

func (w *TransferWizard) editableLocked() error {
	if w.submitting {
		return &domain.Rejection{Reason: domain.RejectSubmissionInFlight, Step: w.draft.Step}
	}
	return nil
}

func (w *TransferWizard) record(action string, err error) {
	if w.metrics == nil {
		return
	}
	result := "ok"
	var rej *domain.Rejection
	switch {
	case errors.As(err, &rej):
		result = string(rej.Reason)
	case err != nil:
		result = "error"
	}
	w.metrics.RecordWizardTransition(action, result)
}
