package domain_test

import (
	"errors"
	"testing"

	"github.com/boddenberg/globalsend-bfa-go/internal/domain"
)

var jane = domain.Recipient{
	Name:          "Jane Smith",
	Country:       "UK",
	BankName:      "Barclays",
	AccountNumber: "GB29NWBK60161331926819",
}

func rejectionReason(t *testing.T, err error) domain.RejectionReason {
	t.Helper()
	var rej *domain.Rejection
	if !errors.As(err, &rej) {
		t.Fatalf("expected *domain.Rejection, got %v", err)
	}
	return rej.Reason
}

func TestNewDraft_Defaults(t *testing.T) {
	d := domain.NewDraft("d-1")
	if d.Step != domain.StepSelectRecipient {
		t.Errorf("expected select_recipient, got %s", d.Step)
	}
	if d.SourceCurrency != "USD" || d.DestCurrency != "EUR" {
		t.Errorf("expected USD->EUR, got %s->%s", d.SourceCurrency, d.DestCurrency)
	}
	if d.Recipient != nil || d.TransferID != nil {
		t.Error("expected empty recipient and transfer id")
	}
}

func TestDraft_NextWithoutRecipientRejected(t *testing.T) {
	d := domain.NewDraft("d-1")

	next, err := d.Next()
	if got := rejectionReason(t, err); got != domain.RejectNoRecipient {
		t.Errorf("expected no_recipient, got %s", got)
	}
	if next.Step != domain.StepSelectRecipient {
		t.Errorf("step changed on rejection: %s", next.Step)
	}

	d, err = d.SelectRecipient(jane)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if d.Step != domain.StepSelectRecipient {
		t.Fatal("selecting a recipient must not advance")
	}
	d, err = d.Next()
	if err != nil {
		t.Fatalf("expected 1->2, got %v", err)
	}
	if d.Step != domain.StepAmount {
		t.Errorf("expected amount, got %s", d.Step)
	}
}

func TestDraft_AmountValidation(t *testing.T) {
	d := domain.NewDraft("d-1")
	d, _ = d.SelectRecipient(jane)
	d, _ = d.Next()

	for _, raw := range []string{"", "0", "-5", "abc", "  "} {
		withAmount, err := d.SetAmount(raw)
		if err != nil {
			t.Fatalf("set amount %q: %v", raw, err)
		}
		if _, err := withAmount.Next(); rejectionReason(t, err) != domain.RejectInvalidAmount {
			t.Errorf("amount %q: expected invalid_amount", raw)
		}
	}

	d, _ = d.SetAmount(" 250 ")
	d, err := d.Next()
	if err != nil {
		t.Fatalf("expected 2->3, got %v", err)
	}
	if d.Step != domain.StepReview {
		t.Errorf("expected review, got %s", d.Step)
	}
	if d.AmountValue().String() != "250" {
		t.Errorf("expected parsed 250, got %s", d.AmountValue())
	}
}

func TestDraft_NoSkippingReview(t *testing.T) {
	d := domain.NewDraft("d-1")
	d, _ = d.SelectRecipient(jane)
	d, _ = d.Next()
	d, _ = d.SetAmount("10")
	d, _ = d.Next()

	if _, err := d.Next(); rejectionReason(t, err) != domain.RejectWrongStep {
		t.Error("review must only advance through Complete")
	}
}

func TestDraft_Back(t *testing.T) {
	d := domain.NewDraft("d-1")

	_, exit, err := d.Back()
	if err != nil || !exit {
		t.Fatalf("expected exit from first step, got exit=%v err=%v", exit, err)
	}

	d, _ = d.SelectRecipient(jane)
	d, _ = d.Next()
	d, _ = d.SetAmount("10")
	d, _ = d.Next()

	d, exit, err = d.Back()
	if err != nil || exit || d.Step != domain.StepAmount {
		t.Fatalf("expected review->amount, got %s exit=%v err=%v", d.Step, exit, err)
	}
	d, _, _ = d.Back()
	if d.Step != domain.StepSelectRecipient {
		t.Fatalf("expected amount->select_recipient, got %s", d.Step)
	}
	if d.Amount != "10" || d.Recipient == nil {
		t.Error("going back must keep the draft data")
	}
}

func TestDraft_CompleteIsTerminal(t *testing.T) {
	d := domain.NewDraft("d-1")
	d, _ = d.SelectRecipient(jane)
	d, _ = d.Next()
	d, _ = d.SetAmount("250")
	d, _ = d.Next()

	d, err := d.Complete(42)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if d.Step != domain.StepResult || d.TransferID == nil || *d.TransferID != 42 {
		t.Fatalf("expected result with id 42, got %+v", d)
	}

	if _, _, err := d.Back(); rejectionReason(t, err) != domain.RejectTerminal {
		t.Error("expected no way back from result")
	}
	if _, err := d.SetAmount("1"); rejectionReason(t, err) != domain.RejectTerminal {
		t.Error("expected amount edits rejected in result")
	}
	if _, err := d.Complete(43); rejectionReason(t, err) != domain.RejectTerminal {
		t.Error("expected a second completion to be rejected")
	}
	if _, err := d.SelectRecipient(jane); rejectionReason(t, err) != domain.RejectTerminal {
		t.Error("expected recipient changes rejected in result")
	}
	if err := d.CheckAddRecipient(); rejectionReason(t, err) != domain.RejectTerminal {
		t.Error("expected adding recipients rejected in result")
	}
}

func TestDraft_SetCurrencies(t *testing.T) {
	d := domain.NewDraft("d-1")
	if _, err := d.SetCurrencies("USD", "GBP"); rejectionReason(t, err) != domain.RejectWrongStep {
		t.Error("currencies are chosen on the amount step")
	}

	d, _ = d.SelectRecipient(jane)
	d, _ = d.Next()
	d, err := d.SetCurrencies(" usd", "gbp ")
	if err != nil {
		t.Fatalf("set currencies: %v", err)
	}
	if d.SourceCurrency != "USD" || d.DestCurrency != "GBP" {
		t.Errorf("expected USD->GBP, got %s->%s", d.SourceCurrency, d.DestCurrency)
	}
	if _, err := d.SetCurrencies("", "GBP"); rejectionReason(t, err) != domain.RejectInvalidCurrency {
		t.Error("expected empty currency rejected")
	}
}

func TestDraft_Request(t *testing.T) {
	d := domain.NewDraft("d-1")
	if _, err := d.Request(); err == nil {
		t.Fatal("expected request from first step to fail")
	}

	d, _ = d.SelectRecipient(jane)
	d, _ = d.Next()
	d, _ = d.SetAmount("250")
	d, _ = d.SetCurrencies("USD", "GBP")
	d, _ = d.Next()

	req, err := d.Request()
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if req.Amount != 250 || req.SourceCurrency != "USD" || req.DestCurrency != "GBP" || !req.Recipient.SameAs(jane) {
		t.Errorf("unexpected request %+v", req)
	}
}

func TestLookupFallbacks(t *testing.T) {
	if c := domain.LookupCurrency("GBP"); c.Symbol != "£" {
		t.Errorf("expected £, got %s", c.Symbol)
	}
	c := domain.LookupCurrency("XAU")
	if c.Symbol != "XAU" || c.Name != "XAU" {
		t.Errorf("expected code fallback, got %+v", c)
	}
	if f := domain.LookupCountry("ZZ").Flag; f != "🌍" {
		t.Errorf("expected globe fallback, got %s", f)
	}
	if n := domain.LookupCountry("UK").Name; n != "United Kingdom" {
		t.Errorf("expected United Kingdom, got %s", n)
	}
}

func TestTransfer_Derived(t *testing.T) {
	tr := domain.Transfer{Amount: 250, ExchangeRate: 0.79, Status: false}
	if tr.StatusLabel() != "Pending" || tr.Settled() {
		t.Error("expected pending")
	}
	tr.Status = true
	if tr.StatusLabel() != "Completed" {
		t.Error("expected completed")
	}
	if got := tr.ReceivedAmount(); got < 197.4999 || got > 197.5001 {
		t.Errorf("expected ~197.5, got %f", got)
	}
}
