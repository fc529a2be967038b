// Package edgestore implements the Bi-Temporal Edge Store (spec §4.3): an
// append-only graph where every edge carries both a valid-time window and
// a record-time window, letting callers ask "what did we believe was true
// at time T, as of what we knew at time R". Grounded on the teacher's
// append-only, mutex-guarded in-memory stores (pkg/knowledge/graph/*.go
// and pkg/memory/*.go use the same "slice + secondary index map, RWMutex"
// shape); the SQL-backed variant in sqlstore.go follows the teacher's
// database/sql bootstrap idiom (pkg/databases/postgres.go).
package edgestore

import (
	"math"
	"sort"
	"strconv"
	"sync"
	"time"
)

// Edge is the spec's GraphEdge: a directed, typed, weighted relation with
// both a valid-time window (when the fact holds in the world) and a
// record-time window (when the store believed it).
type Edge struct {
	ID            string
	Source        string
	Target        string
	Relationship  string
	Weight        float64
	ValidFrom     time.Time
	ValidUntil    *time.Time
	RecordedAt    time.Time
	SupersededAt  *time.Time
}

// isCurrent reports whether this edge is the live (non-superseded) version
// of its (source,target,relationship) triple.
func (e Edge) isCurrent() bool { return e.SupersededAt == nil }

func (e Edge) key() triple { return triple{e.Source, e.Target, e.Relationship} }

type triple struct{ source, target, relationship string }

// Clock abstracts "now" so tests can pin timestamps; production code
// passes time.Now.
type Clock func() time.Time

// Store is the append-only in-memory edge store. All operations are
// read-consistent snapshots at the moment of the call: new versions are
// only appended, and the sole in-place changes to a stored Edge are
// Supersede setting superseded_at and Expire setting valid_until.
type Store struct {
	mu      sync.RWMutex
	edges   []Edge
	byID    map[string]int // index into edges
	current map[triple]string
	nextID  int
	clock   Clock
}

// New builds an empty Store. clock defaults to time.Now.
func New(clock Clock) *Store {
	if clock == nil {
		clock = time.Now
	}
	return &Store{
		byID:    make(map[string]int),
		current: make(map[triple]string),
		clock:   clock,
	}
}

func (s *Store) genID() string {
	s.nextID++
	return "edge-" + strconv.Itoa(s.nextID)
}

// CreateEdge appends a new current edge, per spec §4.3. validFrom
// defaults to now when zero.
func (s *Store) CreateEdge(source, target, relationship string, weight float64, validFrom time.Time) Edge {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	if validFrom.IsZero() {
		validFrom = now
	}
	e := Edge{
		ID:           s.genID(),
		Source:       source,
		Target:       target,
		Relationship: relationship,
		Weight:       weight,
		ValidFrom:    validFrom,
		RecordedAt:   now,
	}
	s.append(e)
	return e
}

func (s *Store) append(e Edge) {
	s.byID[e.ID] = len(s.edges)
	s.edges = append(s.edges, e)
	if e.isCurrent() {
		s.current[e.key()] = e.ID
	}
}

// Supersede marks old with superseded_at=now and appends a fresh edge
// sharing old's valid window, per spec §4.3. newWeight/newRelationship
// nil means "keep old's value". Returns the superseded copy and the new
// edge; old must be the current version of its triple or ErrNotCurrent
// is returned.
func (s *Store) Supersede(oldID string, newWeight *float64, newRelationship *string) (Edge, Edge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.byID[oldID]
	if !ok {
		return Edge{}, Edge{}, ErrEdgeNotFound
	}
	old := s.edges[idx]
	if !old.isCurrent() {
		return Edge{}, Edge{}, ErrNotCurrent
	}

	now := s.clock()
	supersededOld := old
	supersededOld.SupersededAt = &now
	s.edges[idx] = supersededOld

	weight := old.Weight
	if newWeight != nil {
		weight = *newWeight
	}
	rel := old.Relationship
	if newRelationship != nil {
		rel = *newRelationship
	}

	fresh := Edge{
		ID:           s.genID(),
		Source:       old.Source,
		Target:       old.Target,
		Relationship: rel,
		Weight:       weight,
		ValidFrom:    old.ValidFrom,
		ValidUntil:   old.ValidUntil,
		RecordedAt:   now,
	}
	s.append(fresh)
	return supersededOld, fresh, nil
}

// Expire sets valid_until on edge to at (or now if at is zero), per spec
// §4.3. This mutates the stored copy in place (valid_until is not part of
// the append-only identity the way supersession is — the spec treats
// expire as annotating an edge's own lifetime, not replacing it).
func (s *Store) Expire(edgeID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.byID[edgeID]
	if !ok {
		return ErrEdgeNotFound
	}
	if at.IsZero() {
		at = s.clock()
	}
	e := s.edges[idx]
	e.ValidUntil = &at
	s.edges[idx] = e
	return nil
}

// QueryAt returns every edge valid at validTime, optionally also
// constrained to what the store believed as of recordTime, per spec
// §4.3's bitemporal predicate. A zero recordTime means "no record-time
// constraint" (i.e. use the full history, not just what's current now).
func (s *Store) QueryAt(validTime time.Time, recordTime time.Time) []Edge {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Edge
	for _, e := range s.edges {
		if !validAt(e, validTime) {
			continue
		}
		if !recordTime.IsZero() && !recordedAt(e, recordTime) {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RecordedAt.Before(out[j].RecordedAt) })
	return out
}

func validAt(e Edge, t time.Time) bool {
	if t.Before(e.ValidFrom) {
		return false
	}
	if e.ValidUntil != nil && !t.Before(*e.ValidUntil) {
		return false
	}
	return true
}

func recordedAt(e Edge, t time.Time) bool {
	if t.Before(e.RecordedAt) {
		return false
	}
	if e.SupersededAt != nil && !t.Before(*e.SupersededAt) {
		return false
	}
	return true
}

// History returns every version of the (source,target) pair across all
// relationships, sorted by recorded_at, per spec §4.3.
func (s *Store) History(source, target string) []Edge {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Edge
	for _, e := range s.edges {
		if e.Source == source && e.Target == target {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RecordedAt.Before(out[j].RecordedAt) })
	return out
}

// Current returns the live edge for a (source,target,relationship)
// triple, if any.
func (s *Store) Current(source, target, relationship string) (Edge, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.current[triple{source, target, relationship}]
	if !ok {
		return Edge{}, false
	}
	return s.edges[s.byID[id]], true
}

// Compact drops edges whose superseded_at is older than now-retention,
// always keeping current (non-superseded) edges, per spec §4.3. Returns
// the count of dropped edges.
func (s *Store) Compact(retention time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	cutoff := now.Add(-retention)

	kept := s.edges[:0:0]
	for _, e := range s.edges {
		if e.SupersededAt != nil && e.SupersededAt.Before(cutoff) {
			continue
		}
		kept = append(kept, e)
	}
	dropped := len(s.edges) - len(kept)
	s.edges = kept

	s.byID = make(map[string]int, len(s.edges))
	s.current = make(map[triple]string)
	for i, e := range s.edges {
		s.byID[e.ID] = i
		if e.isCurrent() {
			s.current[e.key()] = e.ID
		}
	}
	return dropped
}

// TemporalDecay computes weight' = weight * 2^(-elapsed/halfLife), per
// spec §4.3, where elapsed is measured from valid_until (or valid_from if
// still open-ended).
func TemporalDecay(e Edge, now time.Time, halfLife time.Duration) float64 {
	anchor := e.ValidFrom
	if e.ValidUntil != nil {
		anchor = *e.ValidUntil
	}
	elapsed := now.Sub(anchor)
	if elapsed < 0 {
		elapsed = 0
	}
	if halfLife <= 0 {
		return e.Weight
	}
	return e.Weight * math.Pow(2, -float64(elapsed)/float64(halfLife))
}
