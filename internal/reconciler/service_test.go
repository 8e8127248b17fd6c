package reconciler

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

func writeTempCSV(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func serviceFixtures(t *testing.T) *Request {
	t.Helper()
	dir := t.TempDir()
	return &Request{
		TransactionsFile: writeTempCSV(t, dir, "transactions.csv", `transaction_id,amount,date,merchant
TX001,42.50,2024-04-07,Trader Joe's
TX002,15.00,2024-04-08,Blue Bottle Coffee
TX003,20.00,2024-04-10,Shell Gas
`),
		ReceiptsFile: writeTempCSV(t, dir, "receipts.csv", `receipt_id,total,date,vendor
RC001,42.50,2024-04-07,TRADER JOES #123
RC002,45.00,2024-04-20,Walmart
RC003,15.00,2024-04-08,Blue Bottle Coffee
RC004,20.10,2024-04-12,Chevron
`),
	}
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	bad := DefaultConfig()
	bad.CommitThreshold = 1.5
	err := bad.Validate()
	require.Error(t, err)
	assert.True(t, apperrors.IsConfiguration(err))

	bad = DefaultConfig()
	bad.ProposalLimit = 0
	require.Error(t, bad.Validate())
}

func TestNewServiceDefaults(t *testing.T) {
	service, err := NewService(nil, nil, nil, nil)
	require.NoError(t, err)
	assert.NotNil(t, service)
}

func TestNewServiceRejectsBadConfig(t *testing.T) {
	config := DefaultConfig()
	config.CommitThreshold = -1

	_, err := NewService(nil, nil, nil, config)
	require.Error(t, err)
	assert.True(t, apperrors.IsConfiguration(err))
}

func TestReconcileAutoCommit(t *testing.T) {
	service, err := NewService(nil, nil, nil, nil)
	require.NoError(t, err)

	result, err := service.Reconcile(context.Background(), serviceFixtures(t))
	require.NoError(t, err)

	assert.NotEmpty(t, result.SessionID)
	assert.Equal(t, 3, result.Summary.TransactionsTotal)
	assert.Equal(t, 4, result.Summary.ReceiptsTotal)

	// The exact Blue Bottle pair and the strong Trader Joe's pair commit;
	// the fuzzy Shell/Chevron pair stays a proposal.
	require.Len(t, result.Links, 2)
	assert.Equal(t, "TX001", result.Links[0].TargetID)
	assert.Equal(t, "RC001", result.Links[0].CandidateID)
	assert.Equal(t, "TX002", result.Links[1].TargetID)
	assert.Equal(t, "RC003", result.Links[1].CandidateID)

	require.Len(t, result.Proposals, 1)
	assert.Equal(t, "TX003", result.Proposals[0].TargetID)
	require.NotEmpty(t, result.Proposals[0].Candidates)
	assert.Equal(t, "RC004", result.Proposals[0].Candidates[0].Record.ID)

	assert.Equal(t, 2, result.Summary.Linked)
	assert.Equal(t, 1, result.Summary.UnmatchedTransactions)
	assert.Equal(t, 2, result.Summary.UnmatchedReceipts)
	assert.Equal(t, "57.5", result.Summary.LinkedAmount.String())
	assert.Greater(t, result.Summary.AverageConfidence, 0.85)
	assert.False(t, result.ProcessedAt.IsZero())
}

func TestReconcileProposalOnlyMode(t *testing.T) {
	config := DefaultConfig()
	config.AutoCommit = false

	service, err := NewService(nil, nil, nil, config)
	require.NoError(t, err)

	result, err := service.Reconcile(context.Background(), serviceFixtures(t))
	require.NoError(t, err)

	assert.Empty(t, result.Links)
	assert.Equal(t, 0, result.Summary.Linked)
	require.Len(t, result.Proposals, 3)
	assert.Equal(t, "TX001", result.Proposals[0].TargetID)
	assert.Equal(t, "RC001", result.Proposals[0].Candidates[0].Record.ID)
}

func TestReconcileProposalLimit(t *testing.T) {
	dir := t.TempDir()
	req := &Request{
		TransactionsFile: writeTempCSV(t, dir, "transactions.csv", `transaction_id,amount,date,merchant
TX001,10.00,2024-04-07,Store
`),
		ReceiptsFile: writeTempCSV(t, dir, "receipts.csv", `receipt_id,total,date,vendor
RC001,10.00,2024-04-08,Shop A
RC002,10.00,2024-04-08,Shop B
RC003,10.00,2024-04-08,Shop C
`),
	}

	config := DefaultConfig()
	config.AutoCommit = false
	config.ProposalLimit = 2

	service, err := NewService(nil, nil, nil, config)
	require.NoError(t, err)

	result, err := service.Reconcile(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, result.Proposals, 1)
	assert.Len(t, result.Proposals[0].Candidates, 2)
}

func TestReconcileReceiptTargets(t *testing.T) {
	req := serviceFixtures(t)
	req.TargetKind = models.KindReceipt

	service, err := NewService(nil, nil, nil, nil)
	require.NoError(t, err)

	result, err := service.Reconcile(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, result.Links, 2)
	assert.Equal(t, "RC001", result.Links[0].TargetID)
	assert.Equal(t, "TX001", result.Links[0].CandidateID)
}

func TestReconcileMissingFile(t *testing.T) {
	service, err := NewService(nil, nil, nil, nil)
	require.NoError(t, err)

	req := serviceFixtures(t)
	req.ReceiptsFile = filepath.Join(t.TempDir(), "absent.csv")

	_, err = service.Reconcile(context.Background(), req)
	require.Error(t, err)
	assert.True(t, apperrors.IsCategory(err, apperrors.CategoryFile))
}

func TestReconcileNilRequest(t *testing.T) {
	service, err := NewService(nil, nil, nil, nil)
	require.NoError(t, err)

	_, err = service.Reconcile(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

func TestReconcileCancelledContext(t *testing.T) {
	service, err := NewService(nil, nil, nil, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = service.Reconcile(ctx, serviceFixtures(t))
	require.Error(t, err)
}

func TestReconcileDeterministicAcrossRuns(t *testing.T) {
	service, err := NewService(nil, nil, nil, nil)
	require.NoError(t, err)

	req := serviceFixtures(t)
	first, err := service.Reconcile(context.Background(), req)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		again, err := service.Reconcile(context.Background(), req)
		require.NoError(t, err)
		require.Equal(t, len(first.Links), len(again.Links))
		for j := range first.Links {
			assert.Equal(t, first.Links[j].TargetID, again.Links[j].TargetID)
			assert.Equal(t, first.Links[j].CandidateID, again.Links[j].CandidateID)
			assert.Equal(t, first.Links[j].Confidence, again.Links[j].Confidence)
		}
	}
}
