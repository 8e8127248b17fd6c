// Package models defines the records the reconciliation engine operates on.
//
// A Record is either a bank transaction (statement entry) or a receipt; the
// engine treats both polymorphically and only ever matches a record against
// the complementary kind. Records are produced by external ingestion
// pipelines (bank sync, OCR extraction); this package owns their shape and
// parsing helpers, not their storage.
package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	apperrors "receipt-reconciliation-service/pkg/errors"
)

// RecordKind distinguishes the two sides of a reconciliation.
type RecordKind string

const (
	// KindTransaction is a bank transaction or statement entry.
	KindTransaction RecordKind = "TRANSACTION"
	// KindReceipt is a receipt or itemized purchase record.
	KindReceipt RecordKind = "RECEIPT"
)

// String returns the string representation of the kind.
func (k RecordKind) String() string {
	return string(k)
}

// IsValid checks whether the kind is one of the two known kinds.
func (k RecordKind) IsValid() bool {
	return k == KindTransaction || k == KindReceipt
}

// Complement returns the opposite kind. A transaction is only ever matched
// against receipts and vice versa.
func (k RecordKind) Complement() RecordKind {
	if k == KindTransaction {
		return KindReceipt
	}
	return KindTransaction
}

// Record is a matchable record: one side of a potential reconciliation
// link. Amount is a signed decimal; currency is assumed uniform within a
// session. Merchant may be empty, which is common for bank data and is
// handled by the scorers rather than rejected here. MatchedTo carries a
// counterpart id persisted by a prior session; a non-empty value excludes
// the record from all candidate pools until it is explicitly unlinked.
type Record struct {
	ID         string          `json:"id"`
	Kind       RecordKind      `json:"kind"`
	Amount     decimal.Decimal `json:"amount"`
	OccurredAt time.Time       `json:"occurred_at"`
	Merchant   string          `json:"merchant,omitempty"`
	MatchedTo  string          `json:"matched_to,omitempty"`
}

// NewTransaction creates a transaction-kind record.
func NewTransaction(id string, amount decimal.Decimal, occurredAt time.Time, merchant string) *Record {
	return &Record{
		ID:         id,
		Kind:       KindTransaction,
		Amount:     amount,
		OccurredAt: occurredAt,
		Merchant:   merchant,
	}
}

// NewReceipt creates a receipt-kind record.
func NewReceipt(id string, amount decimal.Decimal, occurredAt time.Time, merchant string) *Record {
	return &Record{
		ID:         id,
		Kind:       KindReceipt,
		Amount:     amount,
		OccurredAt: occurredAt,
		Merchant:   merchant,
	}
}

// Validate performs basic validation. An empty merchant is legal.
func (r *Record) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return apperrors.ValidationError(apperrors.CodeMissingField, "id", r.ID)
	}

	if !r.Kind.IsValid() {
		return apperrors.ValidationError(apperrors.CodeInvalidKind, "kind", string(r.Kind))
	}

	if r.Amount.IsZero() {
		return apperrors.ValidationError(apperrors.CodeInvalidAmount, "amount", r.Amount.String())
	}

	if r.OccurredAt.IsZero() {
		return apperrors.ValidationError(apperrors.CodeInvalidDate, "occurred_at", r.OccurredAt)
	}

	return nil
}

// IsMatched reports whether the record is already bound to a counterpart.
func (r *Record) IsMatched() bool {
	return r.MatchedTo != ""
}

// DateKey returns the record's calendar date as a YYYY-MM-DD bucket key.
func (r *Record) DateKey() string {
	return r.OccurredAt.Format("2006-01-02")
}

// AbsAmount returns the absolute value of the record's amount.
func (r *Record) AbsAmount() decimal.Decimal {
	return r.Amount.Abs()
}

// String returns a human-readable representation of the record.
func (r *Record) String() string {
	return fmt.Sprintf("Record{ID: %s, Kind: %s, Amount: %s, Date: %s, Merchant: %q}",
		r.ID, r.Kind, r.Amount.String(), r.OccurredAt.Format("2006-01-02"), r.Merchant)
}

// Equals compares two records field by field. Dates compare on the
// calendar day.
func (r *Record) Equals(other *Record) bool {
	if other == nil {
		return false
	}
	return r.ID == other.ID &&
		r.Kind == other.Kind &&
		r.Amount.Equal(other.Amount) &&
		r.DateKey() == other.DateKey() &&
		r.Merchant == other.Merchant
}

// MarshalJSON renders the amount as a string and the date as RFC3339.
func (r *Record) MarshalJSON() ([]byte, error) {
	type alias Record
	return json.Marshal(&struct {
		Amount     string `json:"amount"`
		OccurredAt string `json:"occurred_at"`
		*alias
	}{
		Amount:     r.Amount.String(),
		OccurredAt: r.OccurredAt.Format(time.RFC3339),
		alias:      (*alias)(r),
	})
}

// UnmarshalJSON parses string amounts and multi-format dates.
func (r *Record) UnmarshalJSON(data []byte) error {
	type alias Record
	aux := &struct {
		Amount     string `json:"amount"`
		OccurredAt string `json:"occurred_at"`
		*alias
	}{
		alias: (*alias)(r),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	var err error
	r.Amount, err = ParseDecimal(aux.Amount)
	if err != nil {
		return fmt.Errorf("invalid amount format: %w", err)
	}

	r.OccurredAt, err = ParseTime(aux.OccurredAt)
	if err != nil {
		return fmt.Errorf("invalid occurred_at format: %w", err)
	}

	return nil
}

// ParseDecimal parses a monetary amount from a string, tolerating currency
// symbols and thousands separators.
func ParseDecimal(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("amount string cannot be empty")
	}

	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid decimal format '%s': %w", s, err)
	}

	return d, nil
}

// ParseTime attempts to parse a timestamp using the formats commonly found
// in bank exports and receipt extracts.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("time string cannot be empty")
	}

	formats := []string{
		time.RFC3339,
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02",
		"01/02/2006 15:04:05",
		"01/02/2006",
		"2006/01/02",
		"Jan 2, 2006",
	}

	var lastErr error
	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		} else {
			lastErr = err
		}
	}

	return time.Time{}, fmt.Errorf("unable to parse time '%s': %w", s, lastErr)
}

// ParseRecordKind parses and validates a record kind from a string.
func ParseRecordKind(s string) (RecordKind, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRANSACTION", "TX", "STATEMENT", "STATEMENT_ENTRY":
		return KindTransaction, nil
	case "RECEIPT", "RCPT":
		return KindReceipt, nil
	default:
		return "", fmt.Errorf("invalid record kind '%s': must be TRANSACTION or RECEIPT", s)
	}
}

// TransactionFromCSV builds a validated transaction record from raw CSV
// field values.
func TransactionFromCSV(id, amountStr, dateStr, merchant string) (*Record, error) {
	return recordFromCSV(KindTransaction, id, amountStr, dateStr, merchant)
}

// ReceiptFromCSV builds a validated receipt record from raw CSV field
// values.
func ReceiptFromCSV(id, amountStr, dateStr, merchant string) (*Record, error) {
	return recordFromCSV(KindReceipt, id, amountStr, dateStr, merchant)
}

func recordFromCSV(kind RecordKind, id, amountStr, dateStr, merchant string) (*Record, error) {
	amount, err := ParseDecimal(amountStr)
	if err != nil {
		return nil, fmt.Errorf("invalid amount: %w", err)
	}

	occurredAt, err := ParseTime(dateStr)
	if err != nil {
		return nil, fmt.Errorf("invalid date: %w", err)
	}

	record := &Record{
		ID:         strings.TrimSpace(id),
		Kind:       kind,
		Amount:     amount,
		OccurredAt: occurredAt,
		Merchant:   strings.TrimSpace(merchant),
	}

	if err := record.Validate(); err != nil {
		return nil, err
	}

	return record, nil
}
