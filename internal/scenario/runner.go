package scenario

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/danielpatrickdp/probabilistic-state/internal/state"
)

// #region result-types

// StepResult captures the outcome of one fixture step. Failed steps
// record the error and the run continues; setup failures abort the run.
type StepResult struct {
	Index    int           `json:"index"`
	Op       string        `json:"op"`
	StateKey string        `json:"state"`
	StateID  string        `json:"state_id,omitempty"`
	Outcome  string        `json:"outcome,omitempty"`
	Vector   *state.Vector `json:"vector,omitempty"`
	Export   *state.Export `json:"export,omitempty"`
	Deleted  bool          `json:"deleted,omitempty"`
	Err      string        `json:"error,omitempty"`
}

// Summary aggregates a run's step outcomes.
type Summary struct {
	TotalSteps int `json:"total_steps"`
	Collapses  int `json:"collapses"`
	Updates    int `json:"updates"`
	Failures   int `json:"failures"`
}

// RunResult is the full output of a scenario run.
type RunResult struct {
	RunID       string            `json:"run_id"`
	Description string            `json:"description"`
	StateIDs    map[string]string `json:"state_ids"`
	Steps       []StepResult      `json:"steps"`
	Summary     Summary           `json:"summary"`
}

// #endregion result-types

// #region run

// Run creates the fixture's states and entanglements on the given
// store, then applies every step in order. Unknown state keys and
// unknown ops are recorded as step failures, as are errors returned by
// the store; creation and entanglement failures abort with an error
// since later steps would be meaningless.
func Run(store *state.Store, f *Fixture) (*RunResult, error) {
	ids := make(map[string]string, len(f.States))

	for _, fs := range f.States {
		if _, dup := ids[fs.Key]; dup {
			return nil, fmt.Errorf("duplicate state key %q", fs.Key)
		}
		rules := make([]state.CollapseRule, 0, len(fs.Rules))
		for _, r := range fs.Rules {
			rules = append(rules, r.ToRule())
		}
		st, err := store.CreateState(fs.Name, fs.Weights, rules, nil)
		if err != nil {
			return nil, fmt.Errorf("create %q: %w", fs.Key, err)
		}
		ids[fs.Key] = st.ID
	}

	for _, e := range f.Entanglements {
		idA, okA := ids[e.A]
		idB, okB := ids[e.B]
		if !okA || !okB {
			return nil, fmt.Errorf("entanglement references unknown key %q/%q", e.A, e.B)
		}
		if err := store.EntangleStates(idA, idB, e.Correlation); err != nil {
			return nil, fmt.Errorf("entangle %q with %q: %w", e.A, e.B, err)
		}
	}

	result := &RunResult{
		RunID:       uuid.New().String(),
		Description: f.Description,
		StateIDs:    ids,
		Steps:       make([]StepResult, 0, len(f.Steps)),
	}

	for i, step := range f.Steps {
		res := StepResult{Index: i, Op: step.Op, StateKey: step.State}
		id, ok := ids[step.State]
		if !ok {
			res.Err = fmt.Sprintf("unknown state key %q", step.State)
			result.Steps = append(result.Steps, res)
			continue
		}
		res.StateID = id

		switch step.Op {
		case "update":
			if err := store.UpdateProbabilities(id, step.Updates); err != nil {
				res.Err = err.Error()
			}
		case "collapse":
			outcome, err := store.CollapseState(id, state.Trigger(step.Trigger), step.Force)
			if err != nil {
				res.Err = err.Error()
			} else {
				res.Outcome = outcome
			}
		case "observe":
			vec, err := store.ObserveState(id)
			if err != nil {
				res.Err = err.Error()
			} else {
				res.Vector = &vec
			}
		case "most_likely":
			outcome, err := store.GetMostLikelyState(id)
			if err != nil {
				res.Err = err.Error()
			} else {
				res.Outcome = outcome
			}
		case "export":
			exp, err := store.ExportForVisualization(id)
			if err != nil {
				res.Err = err.Error()
			} else {
				res.Export = &exp
			}
		case "delete":
			res.Deleted = store.DeleteState(id)
		default:
			res.Err = fmt.Sprintf("unknown op %q", step.Op)
		}
		result.Steps = append(result.Steps, res)
	}

	result.Summary = summarize(result.Steps)
	return result, nil
}

func summarize(steps []StepResult) Summary {
	s := Summary{TotalSteps: len(steps)}
	for _, r := range steps {
		if r.Err != "" {
			s.Failures++
			continue
		}
		switch r.Op {
		case "collapse":
			s.Collapses++
		case "update":
			s.Updates++
		}
	}
	return s
}

// #endregion run
