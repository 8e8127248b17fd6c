package parsers

import (
	"context"
	"io"

	"receipt-reconciliation-service/internal/models"
	apperrors "receipt-reconciliation-service/pkg/errors"
	"receipt-reconciliation-service/pkg/logger"
)

// recordParser reads one CSV file into records of a fixed kind. The
// exported TransactionParser and ReceiptParser are thin bindings of the
// kind and default config.
type recordParser struct {
	*baseParser
	kind   models.RecordKind
	config *RecordParserConfig
	log    logger.Logger
}

func newRecordParser(kind models.RecordKind, config *RecordParserConfig, defaults func() *RecordParserConfig, component string) (*recordParser, error) {
	if config == nil {
		config = defaults()
	}
	if err := config.Validate(); err != nil {
		return nil, apperrors.ConfigurationError(apperrors.CodeInvalidConfig, component, err.Error())
	}

	log := logger.Global().WithComponent(component)
	return &recordParser{
		baseParser: newBaseParser(config.HasHeader, config.Delimiter, log),
		kind:       kind,
		config:     config,
		log:        log,
	}, nil
}

// requiredHeaders lists the columns the file must carry. The merchant
// column is optional; records without one still match on amount and date.
func (rp *recordParser) requiredHeaders() []string {
	return []string{
		rp.config.GetColumnName("id"),
		rp.config.GetColumnName("amount"),
		rp.config.GetColumnName("date"),
	}
}

// defaultHeaders is the assumed column order for header-less files.
func (rp *recordParser) defaultHeaders() []string {
	return []string{
		rp.config.GetColumnName("id"),
		rp.config.GetColumnName("amount"),
		rp.config.GetColumnName("date"),
		rp.config.GetColumnName("merchant"),
	}
}

// ParseFile reads every row of the file into validated records. Invalid
// rows are skipped and counted when SkipInvalidRows is set, otherwise the
// first bad row aborts the parse.
func (rp *recordParser) ParseFile(ctx context.Context, path string) ([]*models.Record, *ParseStats, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	rp.log.WithFields(logger.Fields{
		"file_path": path,
		"kind":      rp.kind,
	}).Info("parsing record file")

	file, reader, err := rp.openFile(path)
	if err != nil {
		return nil, nil, err
	}
	defer file.Close()

	st := &parseState{}
	stats := &ParseStats{}

	if err := rp.readHeaders(reader, st, rp.requiredHeaders(), rp.defaultHeaders()); err != nil {
		return nil, stats, rp.annotate(err, path, st)
	}

	var records []*models.Record
	for {
		select {
		case <-ctx.Done():
			return records, stats, apperrors.ReconciliationError(
				apperrors.CodeProcessingError, "parse_records", ctx.Err())
		default:
		}

		row, err := rp.readRow(reader, st)
		if err != nil {
			if err == io.EOF {
				break
			}
			rowErr := &RowError{
				Line:    st.lineNumber + 1,
				Message: "malformed CSV row",
				Err:     err,
			}
			if !rp.config.SkipInvalidRows {
				return records, stats, apperrors.ParseError(
					apperrors.CodeInvalidFormat, path, rowErr.Line, "", "", err)
			}
			stats.AddError(rowErr)
			continue
		}

		stats.RecordsRead++

		record, rowErr := rp.recordFromRow(row, st, path)
		if rowErr != nil {
			if !rp.config.SkipInvalidRows {
				return records, stats, rowErr.Err
			}
			rp.log.WithError(rowErr).WithField("line_number", rowErr.Line).Warn("skipping invalid row")
			stats.AddError(rowErr)
			continue
		}

		records = append(records, record)
		stats.RecordsValid++
	}

	stats.TotalLines = st.lineNumber

	rp.log.WithFields(logger.Fields{
		"file_path":     path,
		"total_lines":   stats.TotalLines,
		"records_valid": stats.RecordsValid,
		"skipped":       stats.Skipped,
	}).Info("record parsing completed")

	if stats.HasErrors() {
		rp.log.WithField("sample_errors", stats.SampleErrors(3)).Warn("rows were skipped during parsing")
	}

	return records, stats, nil
}

// recordFromRow extracts the configured columns and builds a record.
func (rp *recordParser) recordFromRow(row []string, st *parseState, path string) (*models.Record, *RowError) {
	id, err := rp.fieldValue(row, st, rp.config.GetColumnName("id"), true)
	if err != nil {
		return nil, rp.rowError(st, rp.config.GetColumnName("id"), "", "missing id column", err)
	}
	amountStr, err := rp.fieldValue(row, st, rp.config.GetColumnName("amount"), true)
	if err != nil {
		return nil, rp.rowError(st, rp.config.GetColumnName("amount"), "", "missing amount column", err)
	}
	dateStr, err := rp.fieldValue(row, st, rp.config.GetColumnName("date"), true)
	if err != nil {
		return nil, rp.rowError(st, rp.config.GetColumnName("date"), "", "missing date column", err)
	}
	merchant, _ := rp.fieldValue(row, st, rp.config.GetColumnName("merchant"), false)

	var record *models.Record
	if rp.kind == models.KindTransaction {
		record, err = models.TransactionFromCSV(id, amountStr, dateStr, merchant)
	} else {
		record, err = models.ReceiptFromCSV(id, amountStr, dateStr, merchant)
	}
	if err != nil {
		wrapped := apperrors.ParseError(apperrors.CodeInvalidData, path, st.lineNumber,
			"record", id, err)
		return nil, rp.rowError(st, "record", id, "invalid record data", wrapped)
	}

	return record, nil
}

func (rp *recordParser) rowError(st *parseState, column, value, message string, err error) *RowError {
	return &RowError{
		Line:    st.lineNumber,
		Column:  column,
		Value:   value,
		Message: message,
		Err:     err,
	}
}

// annotate attaches file position context to a header-stage error.
func (rp *recordParser) annotate(err error, path string, st *parseState) error {
	if appErr, ok := apperrors.As(err); ok {
		return appErr.WithContext("file", path).WithContext("line", st.lineNumber)
	}
	return err
}

// TransactionParser reads transaction CSV exports.
type TransactionParser struct {
	*recordParser
}

// NewTransactionParser creates a parser for transaction files. A nil
// config uses DefaultTransactionParserConfig.
func NewTransactionParser(config *RecordParserConfig) (*TransactionParser, error) {
	rp, err := newRecordParser(models.KindTransaction, config,
		DefaultTransactionParserConfig, "transaction_parser")
	if err != nil {
		return nil, err
	}
	return &TransactionParser{recordParser: rp}, nil
}

// ReceiptParser reads receipt CSV exports.
type ReceiptParser struct {
	*recordParser
}

// NewReceiptParser creates a parser for receipt files. A nil config uses
// DefaultReceiptParserConfig.
func NewReceiptParser(config *RecordParserConfig) (*ReceiptParser, error) {
	rp, err := newRecordParser(models.KindReceipt, config,
		DefaultReceiptParserConfig, "receipt_parser")
	if err != nil {
		return nil, err
	}
	return &ReceiptParser{recordParser: rp}, nil
}
