package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ============================================================
// Send-money wizard: draft + state machine
// ============================================================

// Step is a state of the send-money wizard.
type Step int

const (
	StepSelectRecipient Step = iota + 1
	StepAmount
	StepReview
	StepResult
)

func (s Step) String() string {
	switch s {
	case StepSelectRecipient:
		return "select_recipient"
	case StepAmount:
		return "amount"
	case StepReview:
		return "review"
	case StepResult:
		return "result"
	default:
		return fmt.Sprintf("step(%d)", int(s))
	}
}

// MarshalText encodes the step by name.
func (s Step) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Default currencies of a new draft.
const (
	DefaultSourceCurrency = "USD"
	DefaultDestCurrency   = "EUR"
)

// RejectionReason names why a wizard transition was refused.
type RejectionReason string

const (
	RejectNoRecipient        RejectionReason = "no_recipient"
	RejectInvalidAmount      RejectionReason = "invalid_amount"
	RejectInvalidCurrency    RejectionReason = "invalid_currency"
	RejectWrongStep          RejectionReason = "wrong_step"
	RejectTerminal           RejectionReason = "terminal"
	RejectSubmissionInFlight RejectionReason = "submission_in_flight"
)

// Rejection is returned by a transition whose local precondition does not hold.
// The draft is left unchanged.
type Rejection struct {
	Reason RejectionReason
	Step   Step
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("transition rejected at %s: %s", r.Step, r.Reason)
}

func reject(step Step, reason RejectionReason) *Rejection {
	return &Rejection{Reason: reason, Step: step}
}

// Draft is the in-progress transfer composed by the wizard. It is a value:
// every transition returns a new Draft and leaves the receiver untouched.
type Draft struct {
	ID             string     `json:"id"`
	Step           Step       `json:"step"`
	Recipient      *Recipient `json:"recipient,omitempty"`
	Amount         string     `json:"amount"`
	SourceCurrency string     `json:"sourceCurrency"`
	DestCurrency   string     `json:"destCurrency"`
	TransferID     *uint64    `json:"transferId,omitempty"`
}

// NewDraft opens a draft at the first step.
func NewDraft(id string) Draft {
	return Draft{
		ID:             id,
		Step:           StepSelectRecipient,
		SourceCurrency: DefaultSourceCurrency,
		DestCurrency:   DefaultDestCurrency,
	}
}

// ParseAmount parses raw user input. ok is false unless it is a number > 0.
func ParseAmount(raw string) (decimal.Decimal, bool) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil || !d.IsPositive() {
		return decimal.Zero, false
	}
	return d, true
}

// AmountValue is the parsed amount, zero when the input is not a positive number.
func (d Draft) AmountValue() decimal.Decimal {
	v, _ := ParseAmount(d.Amount)
	return v
}

// SelectRecipient sets the payee. It never advances the step.
func (d Draft) SelectRecipient(r Recipient) (Draft, error) {
	if err := d.CheckAddRecipient(); err != nil {
		return d, err
	}
	sel := r
	d.Recipient = &sel
	return d, nil
}

// CheckAddRecipient reports whether a recipient may be chosen or created from
// the current step.
func (d Draft) CheckAddRecipient() error {
	switch d.Step {
	case StepSelectRecipient:
		return nil
	case StepResult:
		return reject(d.Step, RejectTerminal)
	default:
		return reject(d.Step, RejectWrongStep)
	}
}

// SetAmount records raw amount input. Validation happens on Next.
func (d Draft) SetAmount(raw string) (Draft, error) {
	switch d.Step {
	case StepAmount, StepReview:
		d.Amount = raw
		return d, nil
	case StepResult:
		return d, reject(d.Step, RejectTerminal)
	default:
		return d, reject(d.Step, RejectWrongStep)
	}
}

// SetCurrencies changes the source and destination currency.
func (d Draft) SetCurrencies(src, dst string) (Draft, error) {
	switch d.Step {
	case StepAmount, StepReview:
	case StepResult:
		return d, reject(d.Step, RejectTerminal)
	default:
		return d, reject(d.Step, RejectWrongStep)
	}
	src = strings.ToUpper(strings.TrimSpace(src))
	dst = strings.ToUpper(strings.TrimSpace(dst))
	if src == "" || dst == "" {
		return d, reject(d.Step, RejectInvalidCurrency)
	}
	d.SourceCurrency = src
	d.DestCurrency = dst
	return d, nil
}

// Next advances SelectRecipient -> Amount -> Review. Review -> Result only
// happens through Complete after a successful submission.
func (d Draft) Next() (Draft, error) {
	switch d.Step {
	case StepSelectRecipient:
		if d.Recipient == nil {
			return d, reject(d.Step, RejectNoRecipient)
		}
		d.Step = StepAmount
		return d, nil
	case StepAmount:
		if _, ok := ParseAmount(d.Amount); !ok {
			return d, reject(d.Step, RejectInvalidAmount)
		}
		d.Step = StepReview
		return d, nil
	case StepReview:
		return d, reject(d.Step, RejectWrongStep)
	case StepResult:
		return d, reject(d.Step, RejectTerminal)
	default:
		return d, reject(d.Step, RejectWrongStep)
	}
}

// Back steps one state backwards. exit is true when the draft is at the first
// step, which means leaving the wizard altogether.
func (d Draft) Back() (next Draft, exit bool, err error) {
	switch d.Step {
	case StepSelectRecipient:
		return d, true, nil
	case StepAmount:
		d.Step = StepSelectRecipient
		return d, false, nil
	case StepReview:
		d.Step = StepAmount
		return d, false, nil
	case StepResult:
		return d, false, reject(d.Step, RejectTerminal)
	default:
		return d, false, reject(d.Step, RejectWrongStep)
	}
}

// ReadyToSubmit checks that the draft may be confirmed.
func (d Draft) ReadyToSubmit() error {
	if d.Step != StepReview {
		if d.Step == StepResult {
			return reject(d.Step, RejectTerminal)
		}
		return reject(d.Step, RejectWrongStep)
	}
	if d.Recipient == nil {
		return reject(d.Step, RejectNoRecipient)
	}
	if _, ok := ParseAmount(d.Amount); !ok {
		return reject(d.Step, RejectInvalidAmount)
	}
	return nil
}

// Complete moves a submitted draft to Result and records the transfer id.
func (d Draft) Complete(transferID uint64) (Draft, error) {
	if err := d.ReadyToSubmit(); err != nil {
		return d, err
	}
	id := transferID
	d.TransferID = &id
	d.Step = StepResult
	return d, nil
}

// Request builds the submission payload from the draft.
func (d Draft) Request() (TransferRequest, error) {
	if err := d.ReadyToSubmit(); err != nil {
		return TransferRequest{}, err
	}
	return TransferRequest{
		Recipient:      *d.Recipient,
		Amount:         d.AmountValue().InexactFloat64(),
		SourceCurrency: d.SourceCurrency,
		DestCurrency:   d.DestCurrency,
	}, nil
}
