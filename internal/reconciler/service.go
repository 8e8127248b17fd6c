package reconciler

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"receipt-reconciliation-service/internal/matcher"
	"receipt-reconciliation-service/internal/models"
	"receipt-reconciliation-service/internal/parsers"
	apperrors "receipt-reconciliation-service/pkg/errors"
	"receipt-reconciliation-service/pkg/logger"
)

// Config controls how a batch reconciliation run behaves.
type Config struct {
	// AutoCommit links each target to its best match when the match
	// clears CommitThreshold. When false every target gets proposals
	// instead and nothing is committed.
	AutoCommit bool

	// CommitThreshold is the minimum confidence for an automatic
	// commit. Targets whose best match falls below it get proposals.
	CommitThreshold float64

	// ProposalLimit caps the candidates reported per unmatched target.
	ProposalLimit int

	// ProgressReporting enables periodic progress log lines.
	ProgressReporting bool
}

// DefaultConfig returns a conservative batch configuration.
func DefaultConfig() *Config {
	return &Config{
		AutoCommit:        true,
		CommitThreshold:   0.85,
		ProposalLimit:     5,
		ProgressReporting: false,
	}
}

// Validate checks the configuration values.
func (c *Config) Validate() error {
	if c.CommitThreshold < 0 || c.CommitThreshold > 1 {
		return apperrors.ConfigurationError(apperrors.CodeInvalidConfig,
			"commit_threshold", c.CommitThreshold)
	}
	if c.ProposalLimit <= 0 {
		return apperrors.ConfigurationError(apperrors.CodeInvalidConfig,
			"proposal_limit", c.ProposalLimit)
	}
	return nil
}

// Request names the input files for one reconciliation run. TargetKind
// selects which side drives the matching; it defaults to transactions.
type Request struct {
	TransactionsFile string
	ReceiptsFile     string
	TargetKind       models.RecordKind
}

// TargetProposals holds the ranked candidates for one unmatched target.
type TargetProposals struct {
	TargetID   string                    `json:"target_id"`
	Candidates []*matcher.MatchCandidate `json:"candidates"`
}

// Summary aggregates the counts and totals of a run.
type Summary struct {
	TransactionsTotal     int             `json:"transactions_total"`
	ReceiptsTotal         int             `json:"receipts_total"`
	Linked                int             `json:"linked"`
	UnmatchedTransactions int             `json:"unmatched_transactions"`
	UnmatchedReceipts     int             `json:"unmatched_receipts"`
	LinkedAmount          decimal.Decimal `json:"linked_amount"`
	AverageConfidence     float64         `json:"average_confidence"`
	RowsSkipped           int             `json:"rows_skipped"`
}

// Result is the full outcome of a batch run.
type Result struct {
	SessionID             string            `json:"session_id"`
	Links                 []Link            `json:"links"`
	Proposals             []TargetProposals `json:"proposals"`
	UnmatchedTransactions []*models.Record  `json:"unmatched_transactions"`
	UnmatchedReceipts     []*models.Record  `json:"unmatched_receipts"`
	Summary               Summary           `json:"summary"`
	ProcessedAt           time.Time         `json:"processed_at"`
	Duration              time.Duration     `json:"duration"`
}

// Service wires parsers, the matching engine, and session bookkeeping
// into a single batch operation.
type Service struct {
	engine   *matcher.Engine
	txParser *parsers.TransactionParser
	rcParser *parsers.ReceiptParser
	config   *Config
	log      logger.Logger
}

// NewService builds a Service. Nil arguments fall back to defaults.
func NewService(engine *matcher.Engine, txParser *parsers.TransactionParser, rcParser *parsers.ReceiptParser, config *Config) (*Service, error) {
	var err error
	if engine == nil {
		engine, err = matcher.NewEngine(nil)
		if err != nil {
			return nil, err
		}
	}
	if txParser == nil {
		txParser, err = parsers.NewTransactionParser(nil)
		if err != nil {
			return nil, err
		}
	}
	if rcParser == nil {
		rcParser, err = parsers.NewReceiptParser(nil)
		if err != nil {
			return nil, err
		}
	}
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &Service{
		engine:   engine,
		txParser: txParser,
		rcParser: rcParser,
		config:   config,
		log:      logger.Global().WithComponent("reconciler"),
	}, nil
}

// Reconcile parses both files, matches every target record, and returns
// the committed links, remaining proposals, and run summary.
func (s *Service) Reconcile(ctx context.Context, req *Request) (*Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if req == nil {
		return nil, apperrors.ValidationError(apperrors.CodeMissingField, "request", nil)
	}

	start := time.Now()

	s.log.WithFields(logger.Fields{
		"transactions_file": req.TransactionsFile,
		"receipts_file":     req.ReceiptsFile,
		"auto_commit":       s.config.AutoCommit,
	}).Info("starting reconciliation")

	transactions, txStats, err := s.txParser.ParseFile(ctx, req.TransactionsFile)
	if err != nil {
		return nil, err
	}
	receipts, rcStats, err := s.rcParser.ParseFile(ctx, req.ReceiptsFile)
	if err != nil {
		return nil, err
	}

	session, err := s.NewSessionFromRecords(transactions, receipts)
	if err != nil {
		return nil, err
	}

	targetKind := req.TargetKind
	if targetKind == "" {
		targetKind = models.KindTransaction
	}

	proposals, err := s.matchTargets(ctx, session, targetKind)
	if err != nil {
		return nil, err
	}

	result := s.buildResult(session, proposals, len(transactions), len(receipts),
		txStats.Skipped+rcStats.Skipped)
	result.ProcessedAt = start.UTC()
	result.Duration = time.Since(start)

	s.log.WithFields(logger.Fields{
		"session_id": result.SessionID,
		"linked":     result.Summary.Linked,
		"proposals":  len(result.Proposals),
		"duration":   result.Duration.String(),
	}).Info("reconciliation completed")

	return result, nil
}

// NewSessionFromRecords builds a session over already-parsed records.
// Callers that manage their own parsing use this instead of Reconcile.
func (s *Service) NewSessionFromRecords(transactions, receipts []*models.Record) (*Session, error) {
	combined := make([]*models.Record, 0, len(transactions)+len(receipts))
	combined = append(combined, transactions...)
	combined = append(combined, receipts...)
	return NewSession(s.engine, combined)
}

// matchTargets walks the targets in id order, auto-committing confident
// matches and collecting proposals for the rest.
func (s *Service) matchTargets(ctx context.Context, session *Session, targetKind models.RecordKind) ([]TargetProposals, error) {
	targets := session.Unmatched(targetKind)

	var progress *logger.ProgressTracker
	if s.config.ProgressReporting {
		progress = logger.NewProgressTracker(s.log, "matching", len(targets))
	}

	var proposals []TargetProposals
	for _, target := range targets {
		select {
		case <-ctx.Done():
			return nil, apperrors.ReconciliationError(
				apperrors.CodeProcessingError, "match_targets", ctx.Err())
		default:
		}

		if s.config.AutoCommit {
			best, err := session.BestMatch(target.ID)
			if err != nil {
				return nil, err
			}
			if best != nil && best.Confidence >= s.config.CommitThreshold {
				if _, err := session.Commit(target.ID, best.Record.ID); err != nil {
					return nil, apperrors.ReconciliationError(apperrors.CodeMatchingFailed,
						fmt.Sprintf("commit %s", target.ID), err)
				}
				if progress != nil {
					progress.Increment()
				}
				continue
			}
		}

		candidates, err := session.Proposals(target.ID, s.config.ProposalLimit)
		if err != nil {
			return nil, err
		}
		if len(candidates) > 0 {
			proposals = append(proposals, TargetProposals{
				TargetID:   target.ID,
				Candidates: candidates,
			})
		}
		if progress != nil {
			progress.Increment()
		}
	}

	if progress != nil {
		progress.Finish()
	}

	return proposals, nil
}

// buildResult assembles the report for a finished run.
func (s *Service) buildResult(session *Session, proposals []TargetProposals, txTotal, rcTotal, skipped int) *Result {
	links := session.Outcomes()
	unmatchedTx := session.Unmatched(models.KindTransaction)
	unmatchedRc := session.Unmatched(models.KindReceipt)

	linkedAmount := decimal.Zero
	totalConfidence := 0.0
	for _, link := range links {
		if record, err := session.Record(link.TargetID); err == nil {
			linkedAmount = linkedAmount.Add(record.AbsAmount())
		}
		totalConfidence += link.Confidence
	}

	avgConfidence := 0.0
	if len(links) > 0 {
		avgConfidence = totalConfidence / float64(len(links))
	}

	return &Result{
		SessionID:             session.ID(),
		Links:                 links,
		Proposals:             proposals,
		UnmatchedTransactions: unmatchedTx,
		UnmatchedReceipts:     unmatchedRc,
		Summary: Summary{
			TransactionsTotal:     txTotal,
			ReceiptsTotal:         rcTotal,
			Linked:                len(links),
			UnmatchedTransactions: len(unmatchedTx),
			UnmatchedReceipts:     len(unmatchedRc),
			LinkedAmount:          linkedAmount,
			AverageConfidence:     avgConfidence,
			RowsSkipped:           skipped,
		},
	}
}
