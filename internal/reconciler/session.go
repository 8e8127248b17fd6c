// Package reconciler coordinates matching over a loaded record set. A
// Session owns the candidate pool and the commit ledger; the Service
// layers file parsing and batch orchestration on top of it.
package reconciler

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"receipt-reconciliation-service/internal/matcher"
	"receipt-reconciliation-service/internal/models"
	apperrors "receipt-reconciliation-service/pkg/errors"
	"receipt-reconciliation-service/pkg/logger"
)

// Link is a committed pairing between two records of opposite kinds.
type Link struct {
	TargetID    string    `json:"target_id"`
	CandidateID string    `json:"candidate_id"`
	Confidence  float64   `json:"confidence"`
	CommittedAt time.Time `json:"committed_at"`
}

// Session holds the mutable state of one reconciliation run: the full
// record set, a rebuilt candidate pool, and the set of committed links.
// All exported methods are safe for concurrent use.
type Session struct {
	id     string
	engine *matcher.Engine
	log    logger.Logger

	mu        sync.Mutex
	records   map[string]*models.Record
	pool      *matcher.CandidatePool
	committed map[string]string // record id -> partner id, both directions
	links     []Link
}

// NewSession validates and indexes the given records. Records that
// arrive already matched (MatchedTo set) are registered as committed so
// they never surface as candidates.
func NewSession(engine *matcher.Engine, records []*models.Record) (*Session, error) {
	if engine == nil {
		var err error
		engine, err = matcher.NewEngine(nil)
		if err != nil {
			return nil, err
		}
	}

	s := &Session{
		id:        uuid.New().String(),
		engine:    engine,
		log:       logger.Global().WithComponent("session"),
		records:   make(map[string]*models.Record, len(records)),
		committed: make(map[string]string),
	}

	for _, record := range records {
		if record == nil {
			continue
		}
		if err := record.Validate(); err != nil {
			return nil, err
		}
		if _, exists := s.records[record.ID]; exists {
			return nil, apperrors.ValidationError(apperrors.CodeDuplicateID, "id", record.ID)
		}
		s.records[record.ID] = record
	}

	for _, record := range s.records {
		if record.IsMatched() {
			s.committed[record.ID] = record.MatchedTo
		}
	}

	s.rebuildPool()

	s.log.WithFields(logger.Fields{
		"session_id": s.id,
		"records":    len(s.records),
		"pre_linked": len(s.committed),
	}).Debug("session created")

	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Record looks up a record by id.
func (s *Session) Record(id string) (*models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lookup(id)
}

func (s *Session) lookup(id string) (*models.Record, error) {
	record, ok := s.records[id]
	if !ok {
		return nil, apperrors.NotFoundError(apperrors.CodeRecordNotFound, id)
	}
	return record, nil
}

// excludedSet returns the ids currently unavailable as candidates.
// Caller must hold s.mu.
func (s *Session) excludedSet() map[string]bool {
	excluded := make(map[string]bool, len(s.committed))
	for id := range s.committed {
		excluded[id] = true
	}
	return excluded
}

// BestMatch returns the highest-confidence candidate for the target that
// clears the policy's confidence floor, or nil when none does. A target
// that is already committed yields (nil, nil): asking again is not an
// error, it just has nothing left to offer.
func (s *Session) BestMatch(targetID string) (*matcher.MatchCandidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	target, err := s.lookup(targetID)
	if err != nil {
		return nil, err
	}
	if _, done := s.committed[targetID]; done {
		return nil, nil
	}

	return s.engine.BestMatch(target, s.pool, s.excludedSet()), nil
}

// Proposals returns up to limit ranked candidates for the target with no
// confidence floor applied. limit <= 0 falls back to the policy default.
// A committed target gets an empty slice.
func (s *Session) Proposals(targetID string, limit int) ([]*matcher.MatchCandidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	target, err := s.lookup(targetID)
	if err != nil {
		return nil, err
	}
	if _, done := s.committed[targetID]; done {
		return nil, nil
	}

	return s.engine.Proposals(target, s.pool, s.excludedSet(), limit), nil
}

// Commit links target and candidate. Both records must exist, be of
// opposite kinds, and be uncommitted; violating the last constraint is a
// conflict, not a validation failure, so callers can distinguish a stale
// proposal from a malformed request.
func (s *Session) Commit(targetID, candidateID string) (*Link, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	target, err := s.lookup(targetID)
	if err != nil {
		return nil, err
	}
	candidate, err := s.lookup(candidateID)
	if err != nil {
		return nil, err
	}

	if target.Kind == candidate.Kind {
		return nil, apperrors.ValidationError(apperrors.CodeSameKindLink, "candidate_id", candidateID)
	}
	if partner, done := s.committed[targetID]; done {
		return nil, apperrors.ConflictError(apperrors.CodeAlreadyCommitted, targetID, partner)
	}
	if partner, done := s.committed[candidateID]; done {
		return nil, apperrors.ConflictError(apperrors.CodeAlreadyMatched, candidateID, partner)
	}

	scored := s.engine.Score(target, candidate)

	link := Link{
		TargetID:    targetID,
		CandidateID: candidateID,
		Confidence:  scored.Confidence,
		CommittedAt: time.Now().UTC(),
	}

	s.committed[targetID] = candidateID
	s.committed[candidateID] = targetID
	s.links = append(s.links, link)
	target.MatchedTo = candidateID
	candidate.MatchedTo = targetID

	s.log.WithFields(logger.Fields{
		"target_id":    targetID,
		"candidate_id": candidateID,
		"confidence":   link.Confidence,
	}).Debug("link committed")

	return &link, nil
}

// Unlink removes the committed link involving the given record and
// returns both sides to the candidate pool.
func (s *Session) Unlink(recordID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.lookup(recordID)
	if err != nil {
		return err
	}

	partnerID, done := s.committed[recordID]
	if !done {
		return apperrors.NotFoundError(apperrors.CodeLinkNotFound, recordID)
	}

	delete(s.committed, recordID)
	delete(s.committed, partnerID)
	record.MatchedTo = ""
	if partner, ok := s.records[partnerID]; ok {
		partner.MatchedTo = ""
	}

	for i := range s.links {
		if s.links[i].TargetID == recordID || s.links[i].CandidateID == recordID {
			s.links = append(s.links[:i], s.links[i+1:]...)
			break
		}
	}

	// Records matched before the session started were left out of the
	// pool at build time; reindex so both sides are candidates again.
	s.rebuildPool()

	s.log.WithFields(logger.Fields{
		"record_id":  recordID,
		"partner_id": partnerID,
	}).Debug("link removed")

	return nil
}

// Outcomes returns the committed links ordered by target id.
func (s *Session) Outcomes() []Link {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Link, len(s.links))
	copy(out, s.links)
	sort.Slice(out, func(i, j int) bool {
		return out[i].TargetID < out[j].TargetID
	})
	return out
}

// Unmatched returns the uncommitted records of the given kind, ordered
// by id.
func (s *Session) Unmatched(kind models.RecordKind) []*models.Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*models.Record
	for _, record := range s.records {
		if record.Kind != kind {
			continue
		}
		if _, done := s.committed[record.ID]; done {
			continue
		}
		out = append(out, record)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ID < out[j].ID
	})
	return out
}

// rebuildPool reindexes every record in the session. Caller must hold
// s.mu or have exclusive access during construction.
func (s *Session) rebuildPool() {
	all := make([]*models.Record, 0, len(s.records))
	for _, record := range s.records {
		all = append(all, record)
	}
	s.pool = matcher.NewCandidatePool(all)
}

// CommittedCount returns the number of active links.
func (s *Session) CommittedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.links)
}
