package parsers

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"receipt-reconciliation-service/internal/models"
	apperrors "receipt-reconciliation-service/pkg/errors"
)

func writeTempCSV(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseTransactionsFile(t *testing.T) {
	path := writeTempCSV(t, "transactions.csv", `transaction_id,amount,date,merchant
TX001,42.50,2024-04-07,Trader Joe's
TX002,15.00,2024-04-08,Blue Bottle Coffee
`)

	parser, err := NewTransactionParser(nil)
	require.NoError(t, err)

	records, stats, err := parser.ParseFile(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, 2, stats.RecordsValid)
	assert.False(t, stats.HasErrors())

	assert.Equal(t, "TX001", records[0].ID)
	assert.Equal(t, models.KindTransaction, records[0].Kind)
	assert.Equal(t, "42.5", records[0].Amount.String())
	assert.Equal(t, "2024-04-07", records[0].DateKey())
	assert.Equal(t, "Trader Joe's", records[0].Merchant)
}

func TestParseReceiptsFile(t *testing.T) {
	path := writeTempCSV(t, "receipts.csv", `receipt_id,total,date,vendor
RC001,42.50,2024-04-07,TRADER JOES #123
`)

	parser, err := NewReceiptParser(nil)
	require.NoError(t, err)

	records, _, err := parser.ParseFile(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, models.KindReceipt, records[0].Kind)
	assert.Equal(t, "TRADER JOES #123", records[0].Merchant)
}

func TestParseWithColumnAliases(t *testing.T) {
	path := writeTempCSV(t, "export.csv", `ref,value,posted_on,payee
TX001,"$1,234.56",2024-04-07,Acme Corp
`)

	config := DefaultTransactionParserConfig()
	config.ColumnAliases = map[string]string{
		"id":       "ref",
		"amount":   "value",
		"date":     "posted_on",
		"merchant": "payee",
	}

	parser, err := NewTransactionParser(config)
	require.NoError(t, err)

	records, _, err := parser.ParseFile(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "TX001", records[0].ID)
	assert.Equal(t, "Acme Corp", records[0].Merchant)
}

func TestParseMissingMerchantColumn(t *testing.T) {
	path := writeTempCSV(t, "thin.csv", `transaction_id,amount,date
TX001,42.50,2024-04-07
`)

	parser, err := NewTransactionParser(nil)
	require.NoError(t, err)

	records, _, err := parser.ParseFile(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Empty(t, records[0].Merchant)
}

func TestParseMissingRequiredColumn(t *testing.T) {
	path := writeTempCSV(t, "broken.csv", `transaction_id,merchant
TX001,Store
`)

	parser, err := NewTransactionParser(nil)
	require.NoError(t, err)

	_, _, err = parser.ParseFile(context.Background(), path)
	require.Error(t, err)
	assert.True(t, apperrors.IsCategory(err, apperrors.CategoryParse))
}

func TestParseSkipsInvalidRows(t *testing.T) {
	path := writeTempCSV(t, "dirty.csv", `transaction_id,amount,date,merchant
TX001,42.50,2024-04-07,Store
TX002,not-a-number,2024-04-08,Store
TX003,10.00,never,Store
TX004,7.25,2024-04-09,Store
`)

	parser, err := NewTransactionParser(nil)
	require.NoError(t, err)

	records, stats, err := parser.ParseFile(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "TX001", records[0].ID)
	assert.Equal(t, "TX004", records[1].ID)
	assert.Equal(t, 2, stats.Skipped)
	assert.True(t, stats.HasErrors())
	assert.NotEmpty(t, stats.SampleErrors(3))
}

func TestParseFailFastOnInvalidRow(t *testing.T) {
	path := writeTempCSV(t, "dirty.csv", `transaction_id,amount,date,merchant
TX001,not-a-number,2024-04-07,Store
`)

	config := DefaultTransactionParserConfig()
	config.SkipInvalidRows = false

	parser, err := NewTransactionParser(config)
	require.NoError(t, err)

	_, _, err = parser.ParseFile(context.Background(), path)
	require.Error(t, err)
	assert.True(t, apperrors.IsCategory(err, apperrors.CategoryParse))
}

func TestParseHeaderlessFile(t *testing.T) {
	path := writeTempCSV(t, "bare.csv", `TX001,42.50,2024-04-07,Store
TX002,10.00,2024-04-08,Other Store
`)

	config := DefaultTransactionParserConfig()
	config.HasHeader = false

	parser, err := NewTransactionParser(config)
	require.NoError(t, err)

	records, _, err := parser.ParseFile(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "TX002", records[1].ID)
}

func TestParseMissingFile(t *testing.T) {
	parser, err := NewTransactionParser(nil)
	require.NoError(t, err)

	_, _, err = parser.ParseFile(context.Background(), filepath.Join(t.TempDir(), "absent.csv"))
	require.Error(t, err)
	assert.True(t, apperrors.IsCategory(err, apperrors.CategoryFile))
}

func TestParseEmptyFile(t *testing.T) {
	path := writeTempCSV(t, "empty.csv", "")

	parser, err := NewTransactionParser(nil)
	require.NoError(t, err)

	_, _, err = parser.ParseFile(context.Background(), path)
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

func TestParserConfigValidation(t *testing.T) {
	config := DefaultTransactionParserConfig()
	config.AmountColumn = ""

	_, err := NewTransactionParser(config)
	require.Error(t, err)
	assert.True(t, apperrors.IsConfiguration(err))
}

func TestParseSemicolonDelimiter(t *testing.T) {
	path := writeTempCSV(t, "euro.csv", `transaction_id;amount;date;merchant
TX001;42.50;2024-04-07;Store
`)

	config := DefaultTransactionParserConfig()
	config.Delimiter = ';'

	parser, err := NewTransactionParser(config)
	require.NoError(t, err)

	records, _, err := parser.ParseFile(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "42.5", records[0].Amount.String())
}
