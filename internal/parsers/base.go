// Package parsers reads transaction and receipt CSV files into records.
//
// Real-world exports vary in header naming, delimiter, and data hygiene,
// so each parser takes a config describing the file's column layout plus
// optional aliases, and can either skip or fail on invalid rows.
//
// Parser types:
//   - TransactionParser: card or ledger transaction exports
//   - ReceiptParser: receipt or expense exports
//
// Example:
//
//	parser, err := parsers.NewTransactionParser(nil)
//	records, stats, err := parser.ParseFile(ctx, "transactions.csv")
package parsers

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	apperrors "receipt-reconciliation-service/pkg/errors"
	"receipt-reconciliation-service/pkg/logger"
)

// RowError records a single bad row encountered during parsing.
type RowError struct {
	Line    int
	Column  string
	Value   string
	Message string
	Err     error
}

func (e *RowError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("row error at line %d (%s='%s'): %s: %v",
			e.Line, e.Column, e.Value, e.Message, e.Err)
	}
	return fmt.Sprintf("row error at line %d (%s='%s'): %s",
		e.Line, e.Column, e.Value, e.Message)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

// ParseStats summarizes a parsing run.
type ParseStats struct {
	TotalLines   int
	RecordsRead  int
	RecordsValid int
	Skipped      int
	Errors       []*RowError
}

// AddError records a skipped row.
func (ps *ParseStats) AddError(err *RowError) {
	ps.Errors = append(ps.Errors, err)
	ps.Skipped++
}

// HasErrors reports whether any rows were rejected.
func (ps *ParseStats) HasErrors() bool {
	return len(ps.Errors) > 0
}

// SampleErrors returns up to max row errors for logging.
func (ps *ParseStats) SampleErrors(max int) []string {
	limit := len(ps.Errors)
	if max > 0 && max < limit {
		limit = max
	}
	samples := make([]string, 0, limit)
	for i := 0; i < limit; i++ {
		samples = append(samples, ps.Errors[i].Error())
	}
	return samples
}

func (ps *ParseStats) String() string {
	return fmt.Sprintf("read %d lines, %d records (%d valid, %d skipped)",
		ps.TotalLines, ps.RecordsRead, ps.RecordsValid, ps.Skipped)
}

// parseState tracks position and header layout while reading one file.
type parseState struct {
	lineNumber int
	headers    []string
	headerMap  map[string]int
}

// columnIndex resolves a header name case-insensitively, -1 when absent.
func (st *parseState) columnIndex(name string) int {
	if index, exists := st.headerMap[name]; exists {
		return index
	}
	lower := strings.ToLower(name)
	for header, index := range st.headerMap {
		if strings.ToLower(header) == lower {
			return index
		}
	}
	return -1
}

// baseParser holds the CSV mechanics shared by both record parsers.
type baseParser struct {
	hasHeader bool
	delimiter rune
	log       logger.Logger
}

func newBaseParser(hasHeader bool, delimiter rune, log logger.Logger) *baseParser {
	if delimiter == 0 {
		delimiter = ','
	}
	return &baseParser{
		hasHeader: hasHeader,
		delimiter: delimiter,
		log:       log,
	}
}

// openFile opens path and returns a configured csv.Reader.
func (bp *baseParser) openFile(path string) (*os.File, *csv.Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		bp.log.WithError(err).WithField("file_path", path).Error("failed to open CSV file")
		if os.IsNotExist(err) {
			return nil, nil, apperrors.FileError(apperrors.CodeFileNotFound, path, err)
		}
		if os.IsPermission(err) {
			return nil, nil, apperrors.FileError(apperrors.CodeFilePermission, path, err)
		}
		return nil, nil, apperrors.FileError(apperrors.CodeFileNotFound, path, err)
	}

	reader := csv.NewReader(file)
	reader.Comma = bp.delimiter
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	return file, reader, nil
}

// readHeaders consumes the header row (or synthesizes one when the file
// has none) and verifies the required columns are present.
func (bp *baseParser) readHeaders(reader *csv.Reader, st *parseState, required, defaults []string) error {
	if !bp.hasHeader {
		st.headers = append([]string(nil), defaults...)
		bp.buildHeaderMap(st)
		return nil
	}

	headers, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return apperrors.ValidationError(apperrors.CodeMissingField, "file_content", "empty").
				WithSuggestion("ensure the file contains header and data rows")
		}
		return apperrors.ParseError(apperrors.CodeInvalidFormat, "", 1, "headers", "", err)
	}

	st.lineNumber++
	st.headers = make([]string, len(headers))
	for i, header := range headers {
		st.headers[i] = strings.TrimSpace(header)
	}
	bp.buildHeaderMap(st)

	var missing []string
	for _, name := range required {
		if st.columnIndex(name) == -1 {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		bp.log.WithFields(logger.Fields{
			"missing_headers":   missing,
			"available_headers": st.headers,
		}).Error("required headers are missing")
		return apperrors.ParseError(apperrors.CodeMissingColumn, "", st.lineNumber,
			strings.Join(missing, ", "), "", nil)
	}

	return nil
}

func (bp *baseParser) buildHeaderMap(st *parseState) {
	st.headerMap = make(map[string]int, len(st.headers))
	for i, header := range st.headers {
		st.headerMap[header] = i
	}
}

// readRow returns the next non-empty row, io.EOF at end of file.
func (bp *baseParser) readRow(reader *csv.Reader, st *parseState) ([]string, error) {
	for {
		row, err := reader.Read()
		if err != nil {
			return nil, err
		}
		st.lineNumber++

		empty := true
		for _, field := range row {
			if strings.TrimSpace(field) != "" {
				empty = false
				break
			}
		}
		if empty {
			continue
		}
		return row, nil
	}
}

// fieldValue retrieves a named column's value from a row, "" when the
// column is absent and required is false.
func (bp *baseParser) fieldValue(row []string, st *parseState, name string, required bool) (string, error) {
	index := st.columnIndex(name)
	if index == -1 || index >= len(row) {
		if !required {
			return "", nil
		}
		return "", apperrors.ParseError(apperrors.CodeMissingColumn, "", st.lineNumber, name, "",
			fmt.Errorf("column '%s' not present in row with %d fields", name, len(row)))
	}
	return strings.TrimSpace(row[index]), nil
}
