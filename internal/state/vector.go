package state

import (
	"encoding/json"
	"fmt"
	"sort"
)

// #region vector

// Vector is a weighted distribution over named outcomes with a
// deterministic iteration order. Outcomes supplied at construction are
// ordered by ascending name; outcomes merged in later keep their
// position, with new names appended in sorted order among themselves.
// Sampling walks and tie-breaks follow this order.
type Vector struct {
	order      []string
	weights    map[string]float64
	normalized bool
}

// NewVector builds a vector from the given weights without normalizing.
// Negative weights are rejected.
func NewVector(weights map[string]float64) (Vector, error) {
	v := Vector{
		order:   make([]string, 0, len(weights)),
		weights: make(map[string]float64, len(weights)),
	}
	for name := range weights {
		v.order = append(v.order, name)
	}
	sort.Strings(v.order)
	for _, name := range v.order {
		w := weights[name]
		if w < 0 {
			return Vector{}, fmt.Errorf("outcome %q: weight %v: %w", name, w, ErrInvalidWeight)
		}
		v.weights[name] = w
	}
	return v, nil
}

// collapsedVector returns a certain vector: the one outcome at weight 1.
func collapsedVector(outcome string) Vector {
	return Vector{
		order:      []string{outcome},
		weights:    map[string]float64{outcome: 1.0},
		normalized: true,
	}
}

// #endregion vector

// #region accessors

// Len returns the number of outcomes.
func (v Vector) Len() int { return len(v.order) }

// Outcomes returns the outcome names in vector order.
func (v Vector) Outcomes() []string {
	return append([]string(nil), v.order...)
}

// Weight returns the weight of an outcome and whether it is present.
func (v Vector) Weight(outcome string) (float64, bool) {
	w, ok := v.weights[outcome]
	return w, ok
}

// Has reports whether the outcome is a member of the vector.
func (v Vector) Has(outcome string) bool {
	_, ok := v.weights[outcome]
	return ok
}

// Normalized reports whether the vector has been through normalization.
func (v Vector) Normalized() bool { return v.normalized }

// Sum returns the total weight.
func (v Vector) Sum() float64 {
	var total float64
	for _, name := range v.order {
		total += v.weights[name]
	}
	return total
}

// Clone returns an independent deep copy.
func (v Vector) Clone() Vector {
	cp := Vector{
		order:      append([]string(nil), v.order...),
		weights:    make(map[string]float64, len(v.weights)),
		normalized: v.normalized,
	}
	for name, w := range v.weights {
		cp.weights[name] = w
	}
	return cp
}

// #endregion accessors

// #region normalize

// normalize divides every weight by the total so the vector sums to 1.
// A zero-sum vector is left all-zero but still marked normalized; do not
// reject or uniform-distribute the degenerate case.
func (v *Vector) normalize() {
	total := v.Sum()
	if total > 0 {
		for name, w := range v.weights {
			v.weights[name] = w / total
		}
	}
	v.normalized = true
}

// merge overwrites existing weights and appends unseen outcomes, keeping
// prior outcomes in place. Updates apply in ascending-name order so new
// outcomes land deterministically.
func (v *Vector) merge(updates map[string]float64) error {
	names := make([]string, 0, len(updates))
	for name := range updates {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		w := updates[name]
		if w < 0 {
			return fmt.Errorf("outcome %q: weight %v: %w", name, w, ErrInvalidWeight)
		}
	}
	for _, name := range names {
		if _, ok := v.weights[name]; !ok {
			v.order = append(v.order, name)
		}
		v.weights[name] = updates[name]
	}
	return nil
}

// #endregion normalize

// #region most-likely

// MostLikely returns the outcome with the highest weight. Ties break to
// the earliest outcome in vector order. Empty vectors return "".
func (v Vector) MostLikely() string {
	best := ""
	bestWeight := -1.0
	for _, name := range v.order {
		if w := v.weights[name]; w > bestWeight {
			best, bestWeight = name, w
		}
	}
	return best
}

// #endregion most-likely

// #region sample

// sample walks outcomes in vector order accumulating weight and returns
// the first outcome whose cumulative weight reaches draw. If rounding
// leaves no outcome selected, it falls back to the highest weight.
func (v Vector) sample(draw float64) string {
	var cumulative float64
	for _, name := range v.order {
		cumulative += v.weights[name]
		if cumulative >= draw {
			return name
		}
	}
	return v.MostLikely()
}

// #endregion sample

// #region json

// outcomeWeight is the JSON element for a vector entry. The array form
// preserves outcome order, which a JSON object would not.
type outcomeWeight struct {
	Outcome string  `json:"outcome"`
	Weight  float64 `json:"weight"`
}

type vectorJSON struct {
	Outcomes   []outcomeWeight `json:"outcomes"`
	Normalized bool            `json:"normalized"`
}

// MarshalJSON encodes the vector as an ordered outcome array.
func (v Vector) MarshalJSON() ([]byte, error) {
	enc := vectorJSON{
		Outcomes:   make([]outcomeWeight, 0, len(v.order)),
		Normalized: v.normalized,
	}
	for _, name := range v.order {
		enc.Outcomes = append(enc.Outcomes, outcomeWeight{Outcome: name, Weight: v.weights[name]})
	}
	return json.Marshal(enc)
}

// UnmarshalJSON decodes the ordered outcome array form.
func (v *Vector) UnmarshalJSON(data []byte) error {
	var dec vectorJSON
	if err := json.Unmarshal(data, &dec); err != nil {
		return err
	}
	v.order = make([]string, 0, len(dec.Outcomes))
	v.weights = make(map[string]float64, len(dec.Outcomes))
	v.normalized = dec.Normalized
	for _, ow := range dec.Outcomes {
		if _, ok := v.weights[ow.Outcome]; !ok {
			v.order = append(v.order, ow.Outcome)
		}
		v.weights[ow.Outcome] = ow.Weight
	}
	return nil
}

// #endregion json
