package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"receipt-reconciliation-service/cmd/reconciler/config"
	"receipt-reconciliation-service/internal/matcher"
	"receipt-reconciliation-service/internal/models"
	"receipt-reconciliation-service/internal/parsers"
	"receipt-reconciliation-service/internal/reconciler"
)

var (
	proposeTransactionsFile string
	proposeReceiptsFile     string
	proposeTargetID         string
	proposeLimit            int
)

var proposeCmd = &cobra.Command{
	Use:   "propose",
	Short: "Show ranked match candidates for one record",
	Long: `Propose loads both files and prints the ranked candidates for a single
target record, with per-dimension similarity scores. No confidence floor
is applied, so weak candidates are visible for manual review.

Examples:
  reconciler propose -t transactions.csv -r receipts.csv --target-id TX001
  reconciler propose -t tx.csv -r receipts.csv --target-id RC007 --limit 10`,

	PreRunE: validateProposeFlags,
	RunE:    runPropose,
}

func init() {
	rootCmd.AddCommand(proposeCmd)

	proposeCmd.Flags().StringVarP(&proposeTransactionsFile, "transactions", "t", "", "path to transaction CSV file (required)")
	proposeCmd.Flags().StringVarP(&proposeReceiptsFile, "receipts", "r", "", "path to receipt CSV file (required)")
	proposeCmd.Flags().StringVar(&proposeTargetID, "target-id", "", "id of the record to propose matches for (required)")
	proposeCmd.Flags().IntVar(&proposeLimit, "limit", 0, "maximum candidates to show (default: policy limit)")

	proposeCmd.MarkFlagRequired("transactions")
	proposeCmd.MarkFlagRequired("receipts")
	proposeCmd.MarkFlagRequired("target-id")
}

func validateProposeFlags(cmd *cobra.Command, args []string) error {
	if err := validateFileExists(proposeTransactionsFile, "transaction file"); err != nil {
		return err
	}
	if err := validateFileExists(proposeReceiptsFile, "receipt file"); err != nil {
		return err
	}
	if proposeTargetID == "" {
		return fmt.Errorf("target-id cannot be empty")
	}
	return nil
}

func runPropose(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	engine, err := matcher.NewEngine(nil)
	if err != nil {
		return err
	}

	txParser, err := parsers.NewTransactionParser(config.CreateTransactionParserConfig(nil))
	if err != nil {
		return err
	}
	rcParser, err := parsers.NewReceiptParser(config.CreateReceiptParserConfig(nil))
	if err != nil {
		return err
	}

	transactions, _, err := txParser.ParseFile(ctx, proposeTransactionsFile)
	if err != nil {
		return err
	}
	receipts, _, err := rcParser.ParseFile(ctx, proposeReceiptsFile)
	if err != nil {
		return err
	}

	combined := make([]*models.Record, 0, len(transactions)+len(receipts))
	combined = append(combined, transactions...)
	combined = append(combined, receipts...)

	session, err := reconciler.NewSession(engine, combined)
	if err != nil {
		return err
	}

	target, err := session.Record(proposeTargetID)
	if err != nil {
		return err
	}

	candidates, err := session.Proposals(proposeTargetID, proposeLimit)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "Target %s: %s %s %q\n\n",
		target.ID, target.Amount.StringFixed(2), target.DateKey(), target.Merchant)

	if len(candidates) == 0 {
		fmt.Fprintln(os.Stdout, "No candidates within the matching windows.")
		return nil
	}

	for i, candidate := range candidates {
		fmt.Fprintf(os.Stdout, "%2d. %s  %s %s %q\n    confidence %.2f (amount %.2f, date %.2f, merchant %.2f)\n",
			i+1, candidate.Record.ID,
			candidate.Record.Amount.StringFixed(2), candidate.Record.DateKey(), candidate.Record.Merchant,
			candidate.Confidence, candidate.AmountSimilarity,
			candidate.DateSimilarity, candidate.MerchantSimilarity)
	}

	return nil
}
