package domain

// ============================================================
// Ledger entities (as exposed by the remote ledger service)
// ============================================================

// UserProfile is the caller's profile. Absent until first saved.
type UserProfile struct {
	Name    string `json:"name"`
	Country string `json:"country"`
}

// Recipient is a saved payee. The ledger issues no id for it; two recipients
// with the same name and account number are the same recipient to the client.
type Recipient struct {
	Name          string `json:"name"`
	Country       string `json:"country"`
	BankName      string `json:"bankName"`
	AccountNumber string `json:"accountNumber"`
}

// SameAs reports whether r and o identify the same payee.
func (r Recipient) SameAs(o Recipient) bool {
	return r.Name == o.Name && r.AccountNumber == o.AccountNumber
}

// ExchangeRateTable maps a currency code to its rate against the base unit.
// A table is an immutable snapshot and is replaced wholesale on refresh.
type ExchangeRateTable map[string]float64

// Transfer is a submitted transfer. Rate and fee are locked at submission.
type Transfer struct {
	ID                  uint64    `json:"id"`
	Fee                 float64   `json:"fee"`
	Status              bool      `json:"status"`
	SourceCurrency      string    `json:"sourceCurrency"`
	DestinationCurrency string    `json:"destinationCurrency"`
	Recipient           Recipient `json:"recipient"`
	Sender              string    `json:"sender"`
	ExchangeRate        float64   `json:"exchangeRate"`
	Timestamp           int64     `json:"timestamp"` // nanoseconds since epoch
	Amount              float64   `json:"amount"`
}

// Settled reports the only two observable states a transfer has: settled or pending.
func (t Transfer) Settled() bool { return t.Status }

// StatusLabel is the display label for the transfer status.
func (t Transfer) StatusLabel() string {
	if t.Settled() {
		return "Completed"
	}
	return "Pending"
}

// ReceivedAmount is what the recipient got, in the destination currency.
func (t Transfer) ReceivedAmount() float64 {
	return t.Amount * t.ExchangeRate
}

// UserRole is the caller's role on the ledger, passed through as the ledger
// names it. Not consumed by the transfer flow.
type UserRole string

// TransferRequest is the payload of a transfer submission.
type TransferRequest struct {
	Recipient      Recipient `json:"recipient"`
	Amount         float64   `json:"amount"`
	SourceCurrency string    `json:"sourceCurrency"`
	DestCurrency   string    `json:"destCurrency"`
}
