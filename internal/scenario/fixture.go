// Package scenario drives a state store through a recorded sequence of
// operations loaded from a JSON fixture. Fixtures make collapse and
// propagation behavior reproducible: states are minted fresh per run
// and referenced by fixture-local keys, and the sampling seed is pinned.
package scenario

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/danielpatrickdp/probabilistic-state/internal/state"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a scenario.
type Fixture struct {
	Description   string                `json:"description"`
	Seed          int64                 `json:"seed"`
	States        []FixtureState        `json:"states"`
	Entanglements []FixtureEntanglement `json:"entanglements"`
	Steps         []FixtureStep         `json:"steps"`
}

// FixtureState declares one state to create before the steps run. Key
// is the fixture-local handle steps refer to; the store mints the real
// id at run time.
type FixtureState struct {
	Key     string             `json:"key"`
	Name    string             `json:"name"`
	Weights map[string]float64 `json:"weights"`
	Rules   []FixtureRule      `json:"rules,omitempty"`
}

// FixtureRule is a JSON-serializable collapse rule. Handler functions
// are not representable in a fixture; rules loaded this way always
// sample.
type FixtureRule struct {
	Trigger string `json:"trigger"`
	Mode    string `json:"mode"`
}

// ToRule converts to a domain collapse rule.
func (r FixtureRule) ToRule() state.CollapseRule {
	mode := state.CollapseMode(r.Mode)
	if mode == "" {
		mode = state.ModeImmediate
	}
	return state.CollapseRule{
		Trigger: state.Trigger(r.Trigger),
		Mode:    mode,
	}
}

// FixtureEntanglement declares a symmetric entanglement between two
// fixture states.
type FixtureEntanglement struct {
	A           string  `json:"a"`
	B           string  `json:"b"`
	Correlation float64 `json:"correlation"`
}

// FixtureStep is one operation against the store. Op is one of
// "update", "collapse", "observe", "most_likely", "export", "delete".
type FixtureStep struct {
	Op      string             `json:"op"`
	State   string             `json:"state"`
	Trigger string             `json:"trigger,omitempty"`
	Force   string             `json:"force,omitempty"`
	Updates map[string]float64 `json:"updates,omitempty"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return &f, nil
}

// #endregion fixture-loader
