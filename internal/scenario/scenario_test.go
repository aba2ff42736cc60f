package scenario

import (
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/danielpatrickdp/probabilistic-state/internal/state"
)

func testStore(t *testing.T) *state.Store {
	t.Helper()
	return state.NewStoreWithRand(rand.New(rand.NewSource(99)))
}

func writeFixture(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixture.json")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

const demoFixture = `{
  "description": "entangled doors",
  "seed": 99,
  "states": [
    {
      "key": "front",
      "name": "front door",
      "weights": {"open": 1, "closed": 3},
      "rules": [{"trigger": "manual", "mode": "immediate"}]
    },
    {
      "key": "back",
      "name": "back door",
      "weights": {"open": 1, "closed": 1}
    }
  ],
  "entanglements": [
    {"a": "front", "b": "back", "correlation": 0.8}
  ],
  "steps": [
    {"op": "observe", "state": "front"},
    {"op": "update", "state": "back", "updates": {"open": 3}},
    {"op": "most_likely", "state": "back"},
    {"op": "collapse", "state": "front", "trigger": "manual", "force": "closed"},
    {"op": "observe", "state": "back"},
    {"op": "export", "state": "front"},
    {"op": "delete", "state": "back"}
  ]
}`

func TestLoadFixture(t *testing.T) {
	path := writeFixture(t, demoFixture)
	f, err := LoadFixture(path)
	if err != nil {
		t.Fatalf("LoadFixture: %v", err)
	}
	if f.Description != "entangled doors" {
		t.Fatalf("unexpected description %q", f.Description)
	}
	if f.Seed != 99 {
		t.Fatalf("expected seed 99, got %d", f.Seed)
	}
	if len(f.States) != 2 || len(f.Entanglements) != 1 || len(f.Steps) != 7 {
		t.Fatalf("unexpected fixture shape: %d states, %d entanglements, %d steps",
			len(f.States), len(f.Entanglements), len(f.Steps))
	}
}

func TestLoadFixtureMissingFile(t *testing.T) {
	if _, err := LoadFixture(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadFixtureBadJSON(t *testing.T) {
	path := writeFixture(t, "{not json")
	if _, err := LoadFixture(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestFixtureRuleDefaultsToImmediate(t *testing.T) {
	rule := FixtureRule{Trigger: "manual"}.ToRule()
	if rule.Mode != state.ModeImmediate {
		t.Fatalf("expected immediate default, got %s", rule.Mode)
	}
	if rule.Trigger != state.TriggerManual {
		t.Fatalf("expected manual trigger, got %s", rule.Trigger)
	}
}

func TestRunFullScenario(t *testing.T) {
	path := writeFixture(t, demoFixture)
	f, err := LoadFixture(path)
	if err != nil {
		t.Fatalf("LoadFixture: %v", err)
	}

	store := testStore(t)
	result, err := Run(store, f)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.RunID == "" {
		t.Fatal("expected a run id")
	}
	if len(result.StateIDs) != 2 {
		t.Fatalf("expected 2 minted ids, got %d", len(result.StateIDs))
	}
	if len(result.Steps) != 7 {
		t.Fatalf("expected 7 step results, got %d", len(result.Steps))
	}
	for _, step := range result.Steps {
		if step.Err != "" {
			t.Fatalf("step %d (%s) failed: %s", step.Index, step.Op, step.Err)
		}
	}

	// Step 0: observe normalized creation weights.
	if step := result.Steps[0]; step.Vector == nil {
		t.Fatal("observe step produced no vector")
	} else if w, _ := step.Vector.Weight("closed"); math.Abs(w-0.75) > 1e-9 {
		t.Fatalf("expected closed=0.75, got %v", w)
	}

	// Step 2: most likely after the back door update {open:3, closed:0.5}.
	if got := result.Steps[2].Outcome; got != "open" {
		t.Fatalf("expected most likely open, got %s", got)
	}

	// Step 3: forced collapse.
	if got := result.Steps[3].Outcome; got != "closed" {
		t.Fatalf("expected forced collapse to closed, got %s", got)
	}

	// Step 4: the peer's ratios survive the positive nudge.
	peer := result.Steps[4].Vector
	if peer == nil {
		t.Fatal("observe step produced no vector")
	}
	if w, _ := peer.Weight("open"); math.Abs(w-6.0/7.0) > 1e-9 {
		t.Fatalf("expected peer open=6/7 after nudge, got %v", w)
	}

	// Step 5: export of the collapsed state.
	exp := result.Steps[5].Export
	if exp == nil || !exp.Collapsed || exp.MostLikely != "closed" {
		t.Fatalf("unexpected export: %+v", exp)
	}

	// Step 6: delete reports existence.
	if !result.Steps[6].Deleted {
		t.Fatal("expected delete to report true")
	}

	sum := result.Summary
	if sum.TotalSteps != 7 || sum.Collapses != 1 || sum.Updates != 1 || sum.Failures != 0 {
		t.Fatalf("unexpected summary: %+v", sum)
	}
}

func TestRunRecordsStepFailures(t *testing.T) {
	f := &Fixture{
		States: []FixtureState{
			{Key: "a", Name: "a", Weights: map[string]float64{"x": 1}},
		},
		Steps: []FixtureStep{
			{Op: "collapse", State: "a", Trigger: "timeout"}, // no rule
			{Op: "observe", State: "ghost"},                  // unknown key
			{Op: "teleport", State: "a"},                     // unknown op
			{Op: "observe", State: "a"},                      // still runs
		},
	}

	result, err := Run(testStore(t), f)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Steps[0].Err == "" {
		t.Fatal("expected rule-less collapse to record an error")
	}
	if result.Steps[1].Err == "" {
		t.Fatal("expected unknown key to record an error")
	}
	if result.Steps[2].Err == "" {
		t.Fatal("expected unknown op to record an error")
	}
	if result.Steps[3].Err != "" {
		t.Fatalf("later step must still run, got error %s", result.Steps[3].Err)
	}
	if result.Summary.Failures != 3 {
		t.Fatalf("expected 3 failures, got %d", result.Summary.Failures)
	}
}

func TestRunDuplicateStateKey(t *testing.T) {
	f := &Fixture{
		States: []FixtureState{
			{Key: "a", Name: "first", Weights: map[string]float64{"x": 1}},
			{Key: "a", Name: "second", Weights: map[string]float64{"x": 1}},
		},
	}
	if _, err := Run(testStore(t), f); err == nil {
		t.Fatal("expected error for duplicate key")
	}
}

func TestRunBadCreateAborts(t *testing.T) {
	f := &Fixture{
		States: []FixtureState{
			{Key: "a", Name: "bad", Weights: map[string]float64{"x": -1}},
		},
	}
	if _, err := Run(testStore(t), f); err == nil {
		t.Fatal("expected error for negative weight")
	}
}

func TestRunBadEntanglementAborts(t *testing.T) {
	f := &Fixture{
		States: []FixtureState{
			{Key: "a", Name: "a", Weights: map[string]float64{"x": 1}},
			{Key: "b", Name: "b", Weights: map[string]float64{"x": 1}},
		},
		Entanglements: []FixtureEntanglement{
			{A: "a", B: "b", Correlation: 2.0},
		},
	}
	if _, err := Run(testStore(t), f); err == nil {
		t.Fatal("expected error for correlation out of range")
	}

	f.Entanglements = []FixtureEntanglement{{A: "a", B: "ghost", Correlation: 0.5}}
	if _, err := Run(testStore(t), f); err == nil {
		t.Fatal("expected error for unknown entanglement key")
	}
}

func TestRunSampledCollapseIsDeterministic(t *testing.T) {
	f := &Fixture{
		States: []FixtureState{
			{
				Key:     "s",
				Name:    "s",
				Weights: map[string]float64{"a": 0.5, "b": 0.5},
				Rules:   []FixtureRule{{Trigger: "api_read"}},
			},
		},
		Steps: []FixtureStep{
			{Op: "collapse", State: "s", Trigger: "api_read"},
		},
	}

	first, err := Run(state.NewStoreWithRand(rand.New(rand.NewSource(1))), f)
	if err != nil {
		t.Fatalf("first Run: %v", err)
	}
	second, err := Run(state.NewStoreWithRand(rand.New(rand.NewSource(1))), f)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if first.Steps[0].Outcome != second.Steps[0].Outcome {
		t.Fatalf("same seed must collapse identically: %s != %s",
			first.Steps[0].Outcome, second.Steps[0].Outcome)
	}
	if first.Steps[0].Outcome == "" {
		t.Fatal("expected a sampled outcome")
	}
}
