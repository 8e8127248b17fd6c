package matcher

import (
	"sort"

	"github.com/shopspring/decimal"

	"receipt-reconciliation-service/internal/models"
)

// CandidatePool indexes matchable records for efficient candidate
// selection. The pool is the performance gate in front of scoring: most
// candidates are trivially out of range and are pruned by coarse amount
// and date envelopes before any similarity computation runs.
//
// Records that arrive already matched (MatchedTo set) are excluded at
// build time; records committed during a session are excluded at query
// time via the caller-supplied exclusion set. The pool itself is
// immutable after construction and safe for concurrent reads.
type CandidatePool struct {
	// amountIndex holds unique amounts sorted ascending for binary-search
	// range lookups.
	amountIndex []*amountEntry

	// dateIndex buckets records by calendar day (YYYY-MM-DD).
	dateIndex map[string][]*models.Record

	// byID resolves record ids.
	byID map[string]*models.Record

	// records holds every unmatched record, sorted by id.
	records []*models.Record

	// excludedAtBuild counts pre-matched records skipped at construction.
	excludedAtBuild int
}

type amountEntry struct {
	amount  decimal.Decimal
	records []*models.Record
}

// PoolStats summarizes an indexed pool for logging.
type PoolStats struct {
	Records       int
	Excluded      int
	UniqueAmounts int
	UniqueDates   int
}

// NewCandidatePool indexes the given records, skipping any that are
// already bound to a counterpart.
func NewCandidatePool(records []*models.Record) *CandidatePool {
	pool := &CandidatePool{
		dateIndex: make(map[string][]*models.Record),
		byID:      make(map[string]*models.Record),
	}

	excluded := 0
	for _, record := range records {
		if record.IsMatched() {
			excluded++
			continue
		}
		pool.records = append(pool.records, record)
		pool.byID[record.ID] = record
		pool.dateIndex[record.DateKey()] = append(pool.dateIndex[record.DateKey()], record)
	}
	pool.excludedAtBuild = excluded

	sort.Slice(pool.records, func(i, j int) bool {
		return pool.records[i].ID < pool.records[j].ID
	})

	pool.buildAmountIndex()
	return pool
}

func (p *CandidatePool) buildAmountIndex() {
	entries := make(map[string]*amountEntry)

	for _, record := range p.records {
		key := record.Amount.String()
		if entry, ok := entries[key]; ok {
			entry.records = append(entry.records, record)
		} else {
			entries[key] = &amountEntry{
				amount:  record.Amount,
				records: []*models.Record{record},
			}
		}
	}

	p.amountIndex = make([]*amountEntry, 0, len(entries))
	for _, entry := range entries {
		p.amountIndex = append(p.amountIndex, entry)
	}

	sort.Slice(p.amountIndex, func(i, j int) bool {
		return p.amountIndex[i].amount.LessThan(p.amountIndex[j].amount)
	})
}

// Lookup resolves a record by id; the second return is false for records
// the pool never held or skipped as pre-matched.
func (p *CandidatePool) Lookup(id string) (*models.Record, bool) {
	record, ok := p.byID[id]
	return record, ok
}

// All returns every unmatched record in the pool, sorted by id.
func (p *CandidatePool) All() []*models.Record {
	return p.records
}

// ByDate returns the records bucketed on the given calendar day key
// (YYYY-MM-DD).
func (p *CandidatePool) ByDate(dateKey string) []*models.Record {
	return p.dateIndex[dateKey]
}

// ByAmountRange returns records with amounts in [min, max], via binary
// search over the sorted amount index.
func (p *CandidatePool) ByAmountRange(min, max decimal.Decimal) []*models.Record {
	var result []*models.Record

	start := sort.Search(len(p.amountIndex), func(i int) bool {
		return p.amountIndex[i].amount.GreaterThanOrEqual(min)
	})

	for i := start; i < len(p.amountIndex); i++ {
		entry := p.amountIndex[i]
		if entry.amount.GreaterThan(max) {
			break
		}
		result = append(result, entry.records...)
	}

	return result
}

// Candidates returns the records eligible for scoring against the target:
// complementary kind only, not the target itself, not in the exclusion
// set, and within the coarse amount and date envelopes of the policy.
// Results are ordered by id and truncated at MaxCandidatesPerTarget so
// the selection is deterministic.
func (p *CandidatePool) Candidates(target *models.Record, policy *MatchingPolicy, excluded map[string]bool) []*models.Record {
	tolerance := policy.AmountTolerance(target.Amount)
	min := target.Amount.Sub(tolerance)
	max := target.Amount.Add(tolerance)

	wantKind := target.Kind.Complement()

	var candidates []*models.Record
	for _, record := range p.ByAmountRange(min, max) {
		if record.Kind != wantKind {
			continue
		}
		if record.ID == target.ID {
			continue
		}
		if excluded != nil && excluded[record.ID] {
			continue
		}
		if DaysApart(target.OccurredAt, record.OccurredAt) > policy.DateToleranceDays {
			continue
		}
		candidates = append(candidates, record)
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].ID < candidates[j].ID
	})

	if policy.MaxCandidatesPerTarget > 0 && len(candidates) > policy.MaxCandidatesPerTarget {
		candidates = candidates[:policy.MaxCandidatesPerTarget]
	}

	return candidates
}

// Stats returns statistics about the indexed pool.
func (p *CandidatePool) Stats() PoolStats {
	return PoolStats{
		Records:       len(p.records),
		Excluded:      p.excludedAtBuild,
		UniqueAmounts: len(p.amountIndex),
		UniqueDates:   len(p.dateIndex),
	}
}
