package discovery

import (
	"github.com/sells-group/maps-cli/internal/model"
)

// Aggregator merges candidates and places across query variants. Candidates
// are unique by listing key and places by exact name. It is owned by a
// single run and is not safe for concurrent use.
type Aggregator struct {
	limit      int
	seenIDs    map[string]bool
	candidates []model.CandidateRef
	seenNames  map[string]bool
	places     []model.Place
}

// NewAggregator creates an Aggregator whose outputs are capped at limit.
func NewAggregator(limit int) *Aggregator {
	return &Aggregator{
		limit:     limit,
		seenIDs:   make(map[string]bool),
		seenNames: make(map[string]bool),
	}
}

// AddCandidates merges refs in order and returns how many were new.
func (a *Aggregator) AddCandidates(refs []model.CandidateRef) int {
	added := 0
	for _, ref := range refs {
		if ref.ID == "" || a.seenIDs[ref.ID] {
			continue
		}
		a.seenIDs[ref.ID] = true
		a.candidates = append(a.candidates, ref)
		added++
	}
	return added
}

// CandidateCount returns the number of unique candidates seen.
func (a *Aggregator) CandidateCount() int {
	return len(a.candidates)
}

// Satisfied reports whether enough candidates have been found.
func (a *Aggregator) Satisfied() bool {
	return len(a.candidates) >= a.limit
}

// Candidates returns the unique candidates in discovery order, capped at limit.
func (a *Aggregator) Candidates() []model.CandidateRef {
	return capSlice(a.candidates, a.limit)
}

// AddPlace keeps p unless its name is empty or already kept. It reports
// whether p was kept.
func (a *Aggregator) AddPlace(p model.Place) bool {
	if !p.Viable() || a.seenNames[p.Name] {
		return false
	}
	a.seenNames[p.Name] = true
	a.places = append(a.places, p)
	return true
}

// Finalize returns kept places in visit order, capped at limit.
func (a *Aggregator) Finalize() []model.Place {
	return capSlice(a.places, a.limit)
}

func capSlice[T any](s []T, limit int) []T {
	if limit < 0 {
		limit = 0
	}
	out := make([]T, min(len(s), limit))
	copy(out, s)
	return out
}
