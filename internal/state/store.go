package state

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
)

// #region store-struct

// Store owns all probabilistic states, keyed by id. Mutating operations
// serialize on the write lock so each state's history stays a strictly
// ordered sequence of snapshots; read-only operations share the read
// lock and hand out deep copies.
type Store struct {
	mu     sync.RWMutex
	states map[string]*ProbabilisticState
	rng    *rand.Rand
}

// #endregion store-struct

// #region constructor

// NewStore creates an empty store with a time-seeded sampling source.
func NewStore() *Store {
	return NewStoreWithRand(rand.New(rand.NewSource(time.Now().UnixNano())))
}

// NewStoreWithRand creates a store with an injected sampling source.
// Used for deterministic collapse in tests and replays.
func NewStoreWithRand(rng *rand.Rand) *Store {
	return &Store{
		states: make(map[string]*ProbabilisticState),
		rng:    rng,
	}
}

// #endregion constructor

// #region create

// CreateState constructs a state from the given outcome weights,
// normalizes them, seeds the history with the initial vector, and adds
// the state to the store. Rules and entanglements are optional.
func (s *Store) CreateState(name string, initial map[string]float64, rules []CollapseRule, entanglements []Entanglement) (*ProbabilisticState, error) {
	vec, err := NewVector(initial)
	if err != nil {
		return nil, fmt.Errorf("create state %q: %w", name, err)
	}
	vec.normalize()

	now := time.Now().UTC()
	st := &ProbabilisticState{
		ID:       uuid.New().String(),
		Name:     name,
		Vector:   vec,
		Metadata: Metadata{CreatedAt: now},
	}
	if len(rules) > 0 {
		st.CollapseRules = append([]CollapseRule(nil), rules...)
	}
	if len(entanglements) > 0 {
		st.Entanglements = append([]Entanglement(nil), entanglements...)
	}
	st.History = []Snapshot{{Timestamp: now, Vector: vec.Clone()}}

	s.mu.Lock()
	s.states[st.ID] = st
	s.mu.Unlock()

	return st.clone(), nil
}

// #endregion create

// #region observe

// ObserveState returns a deep copy of the current vector. Observation is
// side-effect-free: it never consults collapse rules. Callers treating
// observation as a collapse trigger must call CollapseState themselves.
func (s *Store) ObserveState(id string) (Vector, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.states[id]
	if !ok {
		return Vector{}, fmt.Errorf("observe state %s: %w", id, ErrNotFound)
	}
	return st.Vector.Clone(), nil
}

// GetMostLikelyState returns the outcome with the highest weight. Ties
// break to the earliest outcome in vector order.
func (s *Store) GetMostLikelyState(id string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.states[id]
	if !ok {
		return "", fmt.Errorf("most likely state %s: %w", id, ErrNotFound)
	}
	return st.Vector.MostLikely(), nil
}

// #endregion observe

// #region update

// UpdateProbabilities merges the given weights into the current vector
// (existing outcomes are overwritten, unseen outcomes added, untouched
// outcomes keep their prior weight), re-normalizes, and appends a
// history snapshot. Entangled peers are not notified; propagation only
// happens on collapse.
func (s *Store) UpdateProbabilities(id string, updates map[string]float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.states[id]
	if !ok {
		return fmt.Errorf("update state %s: %w", id, ErrNotFound)
	}

	merged := st.Vector.Clone()
	if err := merged.merge(updates); err != nil {
		return fmt.Errorf("update state %s: %w", id, err)
	}
	merged.normalize()

	st.Vector = merged
	st.History = append(st.History, Snapshot{
		Timestamp: time.Now().UTC(),
		Vector:    merged.Clone(),
	})
	return nil
}

// #endregion update

// #region collapse

// CollapseState reduces the state to a single certain outcome and
// returns it. Resolution order: a non-empty force value (which must name
// a current outcome), then the first rule matching the trigger (its
// handler if present, weighted sampling otherwise). After the collapse,
// adjusted probability nudges propagate one hop to entangled peers.
func (s *Store) CollapseState(id string, trigger Trigger, force string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.states[id]
	if !ok {
		return "", fmt.Errorf("collapse state %s: %w", id, ErrNotFound)
	}

	var collapsed string
	switch {
	case force != "":
		if !st.Vector.Has(force) {
			return "", fmt.Errorf("collapse state %s: forced outcome %q: %w", id, force, ErrInvalidOutcome)
		}
		collapsed = force
	default:
		rule, ok := matchRule(st.CollapseRules, trigger)
		if !ok {
			return "", fmt.Errorf("collapse state %s: trigger %q: %w", id, trigger, ErrNoCollapseRule)
		}
		if rule.Handler != nil {
			// The handler sees a copy; its return value is trusted.
			collapsed = rule.Handler(st.clone())
		} else {
			collapsed = st.Vector.sample(s.rng.Float64())
		}
	}

	now := time.Now().UTC()
	st.Vector = collapsedVector(collapsed)
	st.Metadata.LastCollapsed = now
	st.Metadata.CollapseCount++
	st.History = append(st.History, Snapshot{
		Timestamp:   now,
		Vector:      st.Vector.Clone(),
		Trigger:     string(trigger),
		CollapsedTo: collapsed,
	})

	s.propagate(st)

	return collapsed, nil
}

// matchRule returns the first rule whose trigger matches.
func matchRule(rules []CollapseRule, trigger Trigger) (CollapseRule, bool) {
	for _, r := range rules {
		if r.Trigger == trigger {
			return r, true
		}
	}
	return CollapseRule{}, false
}

// #endregion collapse

// #region propagation

// propagationTrigger tags snapshots appended to entangled peers.
func propagationTrigger(sourceID string) string {
	return "entangled:" + sourceID
}

// propagate nudges every entangled peer of the collapsed state: each
// weight in the peer's vector scales by 1.2 for positive correlation or
// 0.8 otherwise, then re-normalizes. The correlation magnitude beyond
// its sign is not used. Single hop only — peers' own entanglements are
// not followed, and peers are never collapsed. Missing peers are
// skipped without error. Caller holds the write lock.
func (s *Store) propagate(source *ProbabilisticState) {
	for _, edge := range source.Entanglements {
		target, ok := s.states[edge.TargetStateID]
		if !ok {
			continue
		}

		factor := 0.8
		if edge.Correlation > 0 {
			factor = 1.2
		}

		nudged := target.Vector.Clone()
		for _, outcome := range nudged.order {
			nudged.weights[outcome] *= factor
		}
		nudged.normalize()

		target.Vector = nudged
		target.History = append(target.History, Snapshot{
			Timestamp: time.Now().UTC(),
			Vector:    nudged.Clone(),
			Trigger:   propagationTrigger(source.ID),
		})
	}
}

// #endregion propagation

// #region entangle

// EntangleStates adds a symmetric pair of influence edges between two
// states with the same correlation. Each edge is stored and traversed
// independently afterwards.
func (s *Store) EntangleStates(idA, idB string, correlation float64) error {
	if correlation < -1 || correlation > 1 {
		return fmt.Errorf("entangle %s with %s: correlation %v: %w", idA, idB, correlation, ErrInvalidCorrelation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.states[idA]
	if !ok {
		return fmt.Errorf("entangle state %s: %w", idA, ErrNotFound)
	}
	b, ok := s.states[idB]
	if !ok {
		return fmt.Errorf("entangle state %s: %w", idB, ErrNotFound)
	}

	a.Entanglements = append(a.Entanglements, Entanglement{
		TargetStateID: b.ID,
		Correlation:   correlation,
		Type:          EntanglementDirect,
	})
	b.Entanglements = append(b.Entanglements, Entanglement{
		TargetStateID: a.ID,
		Correlation:   correlation,
		Type:          EntanglementDirect,
	})
	return nil
}

// #endregion entangle

// #region history

// GetHistory returns a deep copy of the full ordered history.
func (s *Store) GetHistory(id string) ([]Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.states[id]
	if !ok {
		return nil, fmt.Errorf("history of state %s: %w", id, ErrNotFound)
	}
	return cloneHistory(st.History), nil
}

// #endregion history

// #region delete

// DeleteState removes the state from the index and reports whether it
// existed. Entanglement edges held by peers are left in place; they
// become dangling references that propagation skips.
func (s *Store) DeleteState(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.states[id]
	if ok {
		delete(s.states, id)
	}
	return ok
}

// #endregion delete

// #region list

// StateIDs returns the ids of all live states in no particular order.
func (s *Store) StateIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.states))
	for id := range s.states {
		ids = append(ids, id)
	}
	return ids
}

// GetState returns a deep copy of the full state object.
func (s *Store) GetState(id string) (*ProbabilisticState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.states[id]
	if !ok {
		return nil, fmt.Errorf("get state %s: %w", id, ErrNotFound)
	}
	return st.clone(), nil
}

// #endregion list
