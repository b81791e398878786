package domain

import (
	"fmt"
	"time"
)

// Direction indicates whether a transaction debits or credits the
// source account's customer.
type Direction string

const (
	DirectionDebit  Direction = "debit"
	DirectionCredit Direction = "credit"
)

// Transaction is a single money movement between two accounts.
// Immutable once recorded. DestAccount may be empty when the
// counterparty is external or unknown.
type Transaction struct {
	ID            string    `json:"id"`
	SourceAccount string    `json:"sourceAccount"`
	DestAccount   string    `json:"destAccount,omitempty"`
	Amount        float64   `json:"amount"`
	Currency      string    `json:"currency"`
	Timestamp     time.Time `json:"timestamp"`
	Direction     Direction `json:"direction"`
	Category      string    `json:"category,omitempty"`
}

// External reports whether the counterparty is outside the monitored
// population. External transactions carry no graph edge but still count
// for structuring detection.
func (t *Transaction) External() bool {
	return t.DestAccount == "" || t.DestAccount == "UNKNOWN"
}

// SelfTransfer reports whether source and destination are the same account.
func (t *Transaction) SelfTransfer() bool {
	return t.DestAccount != "" && t.SourceAccount == t.DestAccount
}

// Validate checks the record-level invariants. Offending records are
// skipped and counted, never fatal to an analysis pass.
func (t *Transaction) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("%w: transaction id is required", ErrInvalidRecord)
	}
	if t.SourceAccount == "" {
		return fmt.Errorf("%w: transaction %s has no source account", ErrInvalidRecord, t.ID)
	}
	if t.Amount <= 0 {
		return fmt.Errorf("%w: transaction %s amount must be positive, got %v", ErrInvalidRecord, t.ID, t.Amount)
	}
	if t.Timestamp.IsZero() {
		return fmt.Errorf("%w: transaction %s has no timestamp", ErrInvalidRecord, t.ID)
	}
	return nil
}

// Window bounds an analysis pass. Transactions with Start <= ts < End are
// in scope. ID keys derived artifacts (clusters, alerts) to the pass.
type Window struct {
	ID    string    `json:"id"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether a timestamp falls inside the window.
// A zero window contains everything.
func (w Window) Contains(ts time.Time) bool {
	if w.Start.IsZero() && w.End.IsZero() {
		return true
	}
	if !w.Start.IsZero() && ts.Before(w.Start) {
		return false
	}
	if !w.End.IsZero() && !ts.Before(w.End) {
		return false
	}
	return true
}

// Snapshot is the immutable input to one analysis pass. The engine never
// mutates it; per-customer work reads only its own slice of it.
type Snapshot struct {
	Customers    []*Customer
	Accounts     []*Account
	Transactions []*Transaction
}

// OwnerIndex maps account id to owning customer id.
func (s *Snapshot) OwnerIndex() map[string]string {
	owners := make(map[string]string, len(s.Accounts))
	for _, a := range s.Accounts {
		owners[a.ID] = a.CustomerID
	}
	return owners
}

// AccountsByCustomer groups account ids by owning customer.
func (s *Snapshot) AccountsByCustomer() map[string][]string {
	byCustomer := make(map[string][]string, len(s.Customers))
	for _, a := range s.Accounts {
		byCustomer[a.CustomerID] = append(byCustomer[a.CustomerID], a.ID)
	}
	return byCustomer
}
