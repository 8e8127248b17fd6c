package parsers

import (
	"fmt"
	"strings"
)

// RecordParserConfig describes the column layout of a record CSV file.
// ColumnAliases maps the standard names (id, amount, date, merchant) to
// whatever the export actually calls them.
type RecordParserConfig struct {
	IDColumn        string            `json:"id_column"`
	AmountColumn    string            `json:"amount_column"`
	DateColumn      string            `json:"date_column"`
	MerchantColumn  string            `json:"merchant_column"`
	HasHeader       bool              `json:"has_header"`
	Delimiter       rune              `json:"delimiter"`
	ColumnAliases   map[string]string `json:"column_aliases,omitempty"`
	SkipInvalidRows bool              `json:"skip_invalid_rows"`
}

// Validate checks the configuration for empty column names.
func (c *RecordParserConfig) Validate() error {
	if strings.TrimSpace(c.IDColumn) == "" {
		return fmt.Errorf("id column cannot be empty")
	}
	if strings.TrimSpace(c.AmountColumn) == "" {
		return fmt.Errorf("amount column cannot be empty")
	}
	if strings.TrimSpace(c.DateColumn) == "" {
		return fmt.Errorf("date column cannot be empty")
	}
	if strings.TrimSpace(c.MerchantColumn) == "" {
		return fmt.Errorf("merchant column cannot be empty")
	}
	return nil
}

// GetColumnName resolves a standard name through the alias map first.
func (c *RecordParserConfig) GetColumnName(standardName string) string {
	if alias, exists := c.ColumnAliases[standardName]; exists {
		return alias
	}
	switch standardName {
	case "id":
		return c.IDColumn
	case "amount":
		return c.AmountColumn
	case "date":
		return c.DateColumn
	case "merchant":
		return c.MerchantColumn
	default:
		return standardName
	}
}

// DefaultTransactionParserConfig matches a common card export layout.
func DefaultTransactionParserConfig() *RecordParserConfig {
	return &RecordParserConfig{
		IDColumn:        "transaction_id",
		AmountColumn:    "amount",
		DateColumn:      "date",
		MerchantColumn:  "merchant",
		HasHeader:       true,
		Delimiter:       ',',
		ColumnAliases:   make(map[string]string),
		SkipInvalidRows: true,
	}
}

// DefaultReceiptParserConfig matches a common receipt export layout.
func DefaultReceiptParserConfig() *RecordParserConfig {
	return &RecordParserConfig{
		IDColumn:        "receipt_id",
		AmountColumn:    "total",
		DateColumn:      "date",
		MerchantColumn:  "vendor",
		HasHeader:       true,
		Delimiter:       ',',
		ColumnAliases:   make(map[string]string),
		SkipInvalidRows: true,
	}
}
