// Package config builds the component configurations the CLI hands to
// the parsers, matching engine, and reconciliation service.
package config

import (
	"receipt-reconciliation-service/internal/matcher"
	"receipt-reconciliation-service/internal/parsers"
	"receipt-reconciliation-service/internal/reconciler"
	"receipt-reconciliation-service/internal/reporter"
)

// CreateTransactionParserConfig returns the transaction parser layout.
// Alias resolution in the parser is case-insensitive, so these cover the
// common export header variants.
func CreateTransactionParserConfig(aliases map[string]string) *parsers.RecordParserConfig {
	config := parsers.DefaultTransactionParserConfig()
	for standard, header := range aliases {
		config.ColumnAliases[standard] = header
	}
	return config
}

// CreateReceiptParserConfig returns the receipt parser layout.
func CreateReceiptParserConfig(aliases map[string]string) *parsers.RecordParserConfig {
	config := parsers.DefaultReceiptParserConfig()
	for standard, header := range aliases {
		config.ColumnAliases[standard] = header
	}
	return config
}

// PolicyOverrides holds the CLI flag values that adjust the matching
// policy. Negative numeric fields mean "keep the default".
type PolicyOverrides struct {
	AmountToleranceFraction float64
	DateToleranceDays       int
	MinConfidence           float64
	MerchantMetric          string
}

// CreateMatchingPolicy applies CLI overrides on top of the default
// policy.
func CreateMatchingPolicy(overrides PolicyOverrides) *matcher.MatchingPolicy {
	policy := matcher.DefaultMatchingPolicy()

	if overrides.AmountToleranceFraction >= 0 {
		policy.AmountToleranceFraction = overrides.AmountToleranceFraction
	}
	if overrides.DateToleranceDays >= 0 {
		policy.DateToleranceDays = overrides.DateToleranceDays
	}
	if overrides.MinConfidence >= 0 {
		policy.MinConfidence = overrides.MinConfidence
	}
	if overrides.MerchantMetric != "" {
		policy.MerchantMetric = matcher.MerchantMetric(overrides.MerchantMetric)
	}

	return policy
}

// CreateServiceConfig builds the batch run configuration.
func CreateServiceConfig(autoCommit bool, commitThreshold float64, proposalLimit int, showProgress bool) *reconciler.Config {
	config := reconciler.DefaultConfig()
	config.AutoCommit = autoCommit
	if commitThreshold >= 0 {
		config.CommitThreshold = commitThreshold
	}
	if proposalLimit > 0 {
		config.ProposalLimit = proposalLimit
	}
	config.ProgressReporting = showProgress
	return config
}

// CreateReportConfig builds the reporter configuration for a format
// name.
func CreateReportConfig(format string) *reporter.Config {
	config := reporter.DefaultConfig()
	config.Format = reporter.OutputFormat(format)
	return config
}
