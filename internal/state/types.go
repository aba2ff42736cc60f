package state

import "time"

// #region triggers

// Trigger is a tagged reason code that gates which collapse rule applies.
type Trigger string

const (
	TriggerUIObservation Trigger = "ui_observation"
	TriggerAPIRead       Trigger = "api_read"
	TriggerTimeout       Trigger = "timeout"
	TriggerManual        Trigger = "manual"
	TriggerThreshold     Trigger = "threshold"
)

// #endregion triggers

// #region collapse-rule

// CollapseMode distinguishes immediate from eventual collapse. The two
// modes are accepted but not differentiated operationally; no deferred
// scheduling exists.
type CollapseMode string

const (
	ModeImmediate CollapseMode = "immediate"
	ModeEventual  CollapseMode = "eventual"
)

// CollapseHandler picks the collapsed outcome for a state instead of
// weighted sampling. It receives a deep copy of the state and is trusted
// to return an outcome present in the vector.
type CollapseHandler func(st *ProbabilisticState) string

// CollapseRule binds a trigger to a collapse behavior. The first rule
// whose trigger matches wins; a nil Handler means weighted sampling.
type CollapseRule struct {
	Trigger Trigger
	Mode    CollapseMode
	Handler CollapseHandler
}

// #endregion collapse-rule

// #region entanglement

// EntanglementType tags an influence edge. Only direct semantics are
// exercised by propagation.
type EntanglementType string

const (
	EntanglementDirect      EntanglementType = "direct"
	EntanglementConditional EntanglementType = "conditional"
)

// Entanglement is a one-directional influence edge to another state,
// held by id only. A dangling target is tolerated and skipped during
// propagation.
type Entanglement struct {
	TargetStateID string           `json:"target_state_id"`
	Correlation   float64          `json:"correlation"`
	Type          EntanglementType `json:"type"`
}

// #endregion entanglement

// #region snapshot

// Snapshot is an immutable record of the vector at one point in time.
// Trigger and CollapsedTo are empty for plain updates.
type Snapshot struct {
	Timestamp   time.Time `json:"timestamp"`
	Vector      Vector    `json:"vector"`
	Trigger     string    `json:"trigger,omitempty"`
	CollapsedTo string    `json:"collapsed_to,omitempty"`
}

// #endregion snapshot

// #region metadata

// Metadata tracks creation and collapse bookkeeping for a state.
// LastCollapsed is the zero time until the first collapse.
type Metadata struct {
	CreatedAt     time.Time `json:"created_at"`
	LastCollapsed time.Time `json:"last_collapsed,omitzero"`
	CollapseCount int       `json:"collapse_count"`
}

// #endregion metadata

// #region probabilistic-state

// ProbabilisticState is a weighted multi-value state container. It is
// owned by a Store and mutated only through store operations; all values
// handed out by the store are deep copies.
type ProbabilisticState struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Vector        Vector         `json:"vector"`
	Entanglements []Entanglement `json:"entanglements,omitempty"`
	CollapseRules []CollapseRule `json:"-"`
	History       []Snapshot     `json:"history"`
	Metadata      Metadata       `json:"metadata"`
}

// clone returns a deep copy. CollapseRules share the same handler
// function values; everything else is independent.
func (st *ProbabilisticState) clone() *ProbabilisticState {
	cp := &ProbabilisticState{
		ID:       st.ID,
		Name:     st.Name,
		Vector:   st.Vector.Clone(),
		Metadata: st.Metadata,
	}
	if len(st.Entanglements) > 0 {
		cp.Entanglements = append([]Entanglement(nil), st.Entanglements...)
	}
	if len(st.CollapseRules) > 0 {
		cp.CollapseRules = append([]CollapseRule(nil), st.CollapseRules...)
	}
	cp.History = cloneHistory(st.History)
	return cp
}

func cloneHistory(h []Snapshot) []Snapshot {
	if len(h) == 0 {
		return nil
	}
	out := make([]Snapshot, len(h))
	for i, snap := range h {
		out[i] = Snapshot{
			Timestamp:   snap.Timestamp,
			Vector:      snap.Vector.Clone(),
			Trigger:     snap.Trigger,
			CollapsedTo: snap.CollapsedTo,
		}
	}
	return out
}

// #endregion probabilistic-state
