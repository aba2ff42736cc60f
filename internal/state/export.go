package state

import (
	"fmt"
	"sort"
)

// #region export-types

// OutcomeWeight pairs an outcome with its weight for export.
type OutcomeWeight struct {
	Outcome string  `json:"outcome"`
	Weight  float64 `json:"weight"`
}

// EdgeSummary is the reduced entanglement view for export: target id and
// correlation only.
type EdgeSummary struct {
	TargetStateID string  `json:"target_state_id"`
	Correlation   float64 `json:"correlation"`
}

// Export is a structured summary of one state for visualization.
type Export struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Outcomes      []OutcomeWeight `json:"outcomes"`
	Entanglements []EdgeSummary   `json:"entanglements,omitempty"`
	Collapsed     bool            `json:"collapsed"`
	MostLikely    string          `json:"most_likely"`
}

// #endregion export-types

// #region export

// ExportForVisualization summarizes a state: outcomes sorted by
// descending weight (ties keep vector order), entanglement edges reduced
// to target and correlation, and a collapsed flag that is true when a
// single outcome remains or the top outcome holds the full weight.
func (s *Store) ExportForVisualization(id string) (Export, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.states[id]
	if !ok {
		return Export{}, fmt.Errorf("export state %s: %w", id, ErrNotFound)
	}

	outcomes := make([]OutcomeWeight, 0, st.Vector.Len())
	for _, name := range st.Vector.order {
		outcomes = append(outcomes, OutcomeWeight{Outcome: name, Weight: st.Vector.weights[name]})
	}
	sort.SliceStable(outcomes, func(i, j int) bool {
		return outcomes[i].Weight > outcomes[j].Weight
	})

	edges := make([]EdgeSummary, 0, len(st.Entanglements))
	for _, e := range st.Entanglements {
		edges = append(edges, EdgeSummary{TargetStateID: e.TargetStateID, Correlation: e.Correlation})
	}

	exp := Export{
		ID:            st.ID,
		Name:          st.Name,
		Outcomes:      outcomes,
		Entanglements: edges,
		MostLikely:    st.Vector.MostLikely(),
	}
	if len(outcomes) == 1 {
		exp.Collapsed = true
	} else if len(outcomes) > 0 && outcomes[0].Weight == 1.0 {
		exp.Collapsed = true
	}
	return exp, nil
}

// #endregion export
