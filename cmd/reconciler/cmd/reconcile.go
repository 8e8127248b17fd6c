package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"receipt-reconciliation-service/cmd/reconciler/config"
	"receipt-reconciliation-service/internal/matcher"
	"receipt-reconciliation-service/internal/parsers"
	"receipt-reconciliation-service/internal/reconciler"
	"receipt-reconciliation-service/internal/reporter"
)

var (
	transactionsFile string
	receiptsFile     string
	outputFormat     string
	outputFile       string
	amountTolerance  float64
	dateTolerance    int
	minConfidence    float64
	merchantMetric   string
	commitThreshold  float64
	proposalsOnly    bool
	proposalLimit    int
	showProgress     bool
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Match receipts against transactions in batch",
	Long: `Reconcile loads a transaction file and a receipt file, scores every
candidate pair, commits matches above the commit threshold, and reports
ranked proposals for the targets that remain.

Examples:
  # Basic run with auto-commit
  reconciler reconcile -t transactions.csv -r receipts.csv

  # Review mode: propose only, commit nothing
  reconciler reconcile -t tx.csv -r receipts.csv --proposals-only

  # Looser matching with JSON output
  reconciler reconcile -t tx.csv -r receipts.csv \
    --amount-tolerance 0.05 --date-tolerance 5 \
    --output-format json --output-file report.json`,

	PreRunE: validateReconcileFlags,
	RunE:    runReconcile,
}

func init() {
	rootCmd.AddCommand(reconcileCmd)

	reconcileCmd.Flags().StringVarP(&transactionsFile, "transactions", "t", "", "path to transaction CSV file (required)")
	reconcileCmd.Flags().StringVarP(&receiptsFile, "receipts", "r", "", "path to receipt CSV file (required)")

	reconcileCmd.Flags().StringVarP(&outputFormat, "output-format", "f", "console", "output format: console, json, csv")
	reconcileCmd.Flags().StringVarP(&outputFile, "output-file", "o", "", "output file path (default: stdout)")

	reconcileCmd.Flags().Float64VarP(&amountTolerance, "amount-tolerance", "a", -1, "amount tolerance as a fraction of the target amount (e.g. 0.01)")
	reconcileCmd.Flags().IntVarP(&dateTolerance, "date-tolerance", "d", -1, "date tolerance in days")
	reconcileCmd.Flags().Float64Var(&minConfidence, "min-confidence", -1, "confidence floor for best-match selection (0.0-1.0)")
	reconcileCmd.Flags().StringVar(&merchantMetric, "merchant-metric", "", "merchant similarity metric: levenshtein, token_set, blended")
	reconcileCmd.Flags().Float64Var(&commitThreshold, "commit-threshold", -1, "minimum confidence for automatic commits (0.0-1.0)")
	reconcileCmd.Flags().BoolVar(&proposalsOnly, "proposals-only", false, "propose matches without committing any")
	reconcileCmd.Flags().IntVar(&proposalLimit, "proposal-limit", 0, "maximum proposals per unmatched target")

	reconcileCmd.Flags().BoolVar(&showProgress, "progress", false, "log progress during matching")

	reconcileCmd.MarkFlagRequired("transactions")
	reconcileCmd.MarkFlagRequired("receipts")

	viper.BindPFlag("transactions", reconcileCmd.Flags().Lookup("transactions"))
	viper.BindPFlag("receipts", reconcileCmd.Flags().Lookup("receipts"))
	viper.BindPFlag("output-format", reconcileCmd.Flags().Lookup("output-format"))
	viper.BindPFlag("output-file", reconcileCmd.Flags().Lookup("output-file"))
	viper.BindPFlag("amount-tolerance", reconcileCmd.Flags().Lookup("amount-tolerance"))
	viper.BindPFlag("date-tolerance", reconcileCmd.Flags().Lookup("date-tolerance"))
	viper.BindPFlag("min-confidence", reconcileCmd.Flags().Lookup("min-confidence"))
	viper.BindPFlag("merchant-metric", reconcileCmd.Flags().Lookup("merchant-metric"))
	viper.BindPFlag("commit-threshold", reconcileCmd.Flags().Lookup("commit-threshold"))
	viper.BindPFlag("proposals-only", reconcileCmd.Flags().Lookup("proposals-only"))
	viper.BindPFlag("proposal-limit", reconcileCmd.Flags().Lookup("proposal-limit"))
	viper.BindPFlag("progress", reconcileCmd.Flags().Lookup("progress"))
}

func validateReconcileFlags(cmd *cobra.Command, args []string) error {
	transactionsFile = viper.GetString("transactions")
	receiptsFile = viper.GetString("receipts")
	outputFormat = viper.GetString("output-format")
	outputFile = viper.GetString("output-file")
	amountTolerance = viper.GetFloat64("amount-tolerance")
	dateTolerance = viper.GetInt("date-tolerance")
	minConfidence = viper.GetFloat64("min-confidence")
	merchantMetric = viper.GetString("merchant-metric")
	commitThreshold = viper.GetFloat64("commit-threshold")
	proposalsOnly = viper.GetBool("proposals-only")
	proposalLimit = viper.GetInt("proposal-limit")
	showProgress = viper.GetBool("progress")

	if err := validateFileExists(transactionsFile, "transaction file"); err != nil {
		return err
	}
	if err := validateFileExists(receiptsFile, "receipt file"); err != nil {
		return err
	}

	if !reporter.OutputFormat(outputFormat).IsValid() {
		return fmt.Errorf("invalid output format '%s'. Valid formats: console, json, csv", outputFormat)
	}

	if outputFile != "" {
		dir := filepath.Dir(outputFile)
		if dir != "." {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				return fmt.Errorf("output directory does not exist: %s", dir)
			}
		}
	}

	return nil
}

func validateFileExists(path, description string) error {
	if path == "" {
		return fmt.Errorf("%s path cannot be empty", description)
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return fmt.Errorf("%s does not exist: %s", description, path)
	}
	if err != nil {
		return fmt.Errorf("error accessing %s: %w", description, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory, expected a file: %s", description, path)
	}

	return nil
}

// buildService assembles the matching engine, parsers, and service from
// the parsed flag values. Shared with the propose command.
func buildService(autoCommit bool) (*reconciler.Service, error) {
	policy := config.CreateMatchingPolicy(config.PolicyOverrides{
		AmountToleranceFraction: amountTolerance,
		DateToleranceDays:       dateTolerance,
		MinConfidence:           minConfidence,
		MerchantMetric:          merchantMetric,
	})

	engine, err := matcher.NewEngine(policy)
	if err != nil {
		return nil, err
	}

	txParser, err := parsers.NewTransactionParser(config.CreateTransactionParserConfig(nil))
	if err != nil {
		return nil, err
	}
	rcParser, err := parsers.NewReceiptParser(config.CreateReceiptParserConfig(nil))
	if err != nil {
		return nil, err
	}

	serviceConfig := config.CreateServiceConfig(autoCommit, commitThreshold, proposalLimit, showProgress)
	return reconciler.NewService(engine, txParser, rcParser, serviceConfig)
}

func runReconcile(cmd *cobra.Command, args []string) error {
	service, err := buildService(!proposalsOnly)
	if err != nil {
		return err
	}

	result, err := service.Reconcile(context.Background(), &reconciler.Request{
		TransactionsFile: transactionsFile,
		ReceiptsFile:     receiptsFile,
	})
	if err != nil {
		return err
	}

	reportGen, err := reporter.New(config.CreateReportConfig(outputFormat))
	if err != nil {
		return err
	}

	output := os.Stdout
	if outputFile != "" {
		output, err = os.Create(outputFile)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer output.Close()
	}

	if err := reportGen.Render(output, result); err != nil {
		return err
	}

	if viper.GetBool("verbose") {
		fmt.Fprintf(os.Stderr, "Reconciliation completed: %d linked, %d proposals, %d unmatched transactions.\n",
			result.Summary.Linked, len(result.Proposals), result.Summary.UnmatchedTransactions)
	}

	return nil
}
