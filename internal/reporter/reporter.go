// Package reporter renders reconciliation results for people and
// pipelines.
//
// Supported output formats:
//   - Console: human-readable summary for terminal display
//   - JSON: structured output for programmatic consumption
//   - CSV: link and unmatched listings for spreadsheets
package reporter

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"receipt-reconciliation-service/internal/models"
	"receipt-reconciliation-service/internal/reconciler"
	apperrors "receipt-reconciliation-service/pkg/errors"
)

// OutputFormat selects how a result is rendered.
type OutputFormat string

const (
	FormatConsole OutputFormat = "console"
	FormatJSON    OutputFormat = "json"
	FormatCSV     OutputFormat = "csv"
)

// IsValid checks if the output format is supported.
func (f OutputFormat) IsValid() bool {
	switch f {
	case FormatConsole, FormatJSON, FormatCSV:
		return true
	default:
		return false
	}
}

// Config holds report rendering options. The Include toggles control the
// per-record listing sections; summary counts are always printed.
type Config struct {
	Format           OutputFormat `json:"format"`
	IncludeProposals bool         `json:"include_proposals"`
	IncludeUnmatched bool         `json:"include_unmatched"`
	CSVDelimiter     rune         `json:"csv_delimiter"`
}

// DefaultConfig returns the standard console configuration.
func DefaultConfig() *Config {
	return &Config{
		Format:           FormatConsole,
		IncludeProposals: true,
		IncludeUnmatched: true,
		CSVDelimiter:     ',',
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if !c.Format.IsValid() {
		return apperrors.ConfigurationError(apperrors.CodeInvalidConfig,
			"output_format", string(c.Format))
	}
	return nil
}

// Reporter renders reconciliation results to a writer.
type Reporter struct {
	config *Config
}

// New creates a Reporter. A nil config uses DefaultConfig.
func New(config *Config) (*Reporter, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Reporter{config: config}, nil
}

// Render writes the result in the configured format.
func (r *Reporter) Render(w io.Writer, result *reconciler.Result) error {
	if result == nil {
		return apperrors.ValidationError(apperrors.CodeMissingField, "result", nil)
	}

	switch r.config.Format {
	case FormatJSON:
		return r.renderJSON(w, result)
	case FormatCSV:
		return r.renderCSV(w, result)
	default:
		return r.renderConsole(w, result)
	}
}

func (r *Reporter) renderJSON(w io.Writer, result *reconciler.Result) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

func (r *Reporter) renderConsole(w io.Writer, result *reconciler.Result) error {
	var b strings.Builder

	b.WriteString("Reconciliation Report\n")
	b.WriteString("=====================\n\n")
	fmt.Fprintf(&b, "Session:      %s\n", result.SessionID)
	fmt.Fprintf(&b, "Processed at: %s\n", result.ProcessedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&b, "Duration:     %s\n\n", result.Duration.Round(1e6).String())

	s := result.Summary
	b.WriteString("Summary\n")
	b.WriteString("-------\n")
	fmt.Fprintf(&b, "  Transactions:         %d\n", s.TransactionsTotal)
	fmt.Fprintf(&b, "  Receipts:             %d\n", s.ReceiptsTotal)
	fmt.Fprintf(&b, "  Linked:               %d\n", s.Linked)
	fmt.Fprintf(&b, "  Unmatched (tx):       %d\n", s.UnmatchedTransactions)
	fmt.Fprintf(&b, "  Unmatched (receipts): %d\n", s.UnmatchedReceipts)
	fmt.Fprintf(&b, "  Linked amount:        %s\n", s.LinkedAmount.StringFixed(2))
	if s.Linked > 0 {
		fmt.Fprintf(&b, "  Avg confidence:       %.2f\n", s.AverageConfidence)
	}
	if s.RowsSkipped > 0 {
		fmt.Fprintf(&b, "  Rows skipped:         %d\n", s.RowsSkipped)
	}
	b.WriteString("\n")

	if len(result.Links) > 0 {
		b.WriteString("Links\n")
		b.WriteString("-----\n")
		for _, link := range result.Links {
			fmt.Fprintf(&b, "  %s -> %s  (confidence %.2f)\n",
				link.TargetID, link.CandidateID, link.Confidence)
		}
		b.WriteString("\n")
	}

	if r.config.IncludeProposals && len(result.Proposals) > 0 {
		b.WriteString("Proposals\n")
		b.WriteString("---------\n")
		for _, proposal := range result.Proposals {
			fmt.Fprintf(&b, "  %s:\n", proposal.TargetID)
			for _, candidate := range proposal.Candidates {
				fmt.Fprintf(&b, "    %s  (confidence %.2f, amount %.2f date %.2f merchant %.2f)\n",
					candidate.Record.ID, candidate.Confidence,
					candidate.AmountSimilarity, candidate.DateSimilarity,
					candidate.MerchantSimilarity)
			}
		}
		b.WriteString("\n")
	}

	if r.config.IncludeUnmatched {
		r.writeUnmatchedSection(&b, "Unmatched Transactions", result.UnmatchedTransactions)
		r.writeUnmatchedSection(&b, "Unmatched Receipts", result.UnmatchedReceipts)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func (r *Reporter) writeUnmatchedSection(b *strings.Builder, title string, records []*models.Record) {
	if len(records) == 0 {
		return
	}
	b.WriteString(title + "\n")
	b.WriteString(strings.Repeat("-", len(title)) + "\n")
	for _, record := range records {
		fmt.Fprintf(b, "  %s  %s  %s  %s\n",
			record.ID, record.Amount.StringFixed(2), record.DateKey(), record.Merchant)
	}
	b.WriteString("\n")
}

// renderCSV writes one row per link plus one per unmatched record, with
// a row_type discriminator so the file round-trips through spreadsheets.
func (r *Reporter) renderCSV(w io.Writer, result *reconciler.Result) error {
	writer := csv.NewWriter(w)
	writer.Comma = r.config.CSVDelimiter
	defer writer.Flush()

	header := []string{"row_type", "target_id", "candidate_id", "confidence", "amount", "date", "merchant"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, link := range result.Links {
		row := []string{
			"link",
			link.TargetID,
			link.CandidateID,
			strconv.FormatFloat(link.Confidence, 'f', 4, 64),
			"", "", "",
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	if r.config.IncludeUnmatched {
		unmatched := append([]*models.Record(nil), result.UnmatchedTransactions...)
		unmatched = append(unmatched, result.UnmatchedReceipts...)
		for _, record := range unmatched {
			row := []string{
				"unmatched",
				record.ID,
				"", "",
				record.Amount.StringFixed(2),
				record.DateKey(),
				record.Merchant,
			}
			if err := writer.Write(row); err != nil {
				return err
			}
		}
	}

	writer.Flush()
	return writer.Error()
}
