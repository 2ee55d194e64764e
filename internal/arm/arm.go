package arm

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownArm is returned when an id is not registered.
	ErrUnknownArm = errors.New("unknown arm")
	// ErrShapeMismatch is returned when decisions and rewards differ in length.
	ErrShapeMismatch = errors.New("decisions and rewards length mismatch")
)

// Arm is a decision option with a growing history of observed rewards.
type Arm struct {
	ID      string
	samples []float64
}

// New creates an Arm with an empty history.
func New(id string) *Arm {
	return &Arm{ID: id}
}

// N returns the number of observed rewards.
func (a *Arm) N() int {
	return len(a.samples)
}

// SampleMean returns the arithmetic mean of the history, or 0 if empty.
func (a *Arm) SampleMean() float64 {
	if len(a.samples) == 0 {
		return 0.0
	}
	sum := 0.0
	for _, s := range a.samples {
		sum += s
	}
	return sum / float64(len(a.samples))
}

// AddSample appends one reward.
func (a *Arm) AddSample(sample float64) {
	a.samples = append(a.samples, sample)
}

// AddSamples appends rewards in order.
func (a *Arm) AddSamples(samples ...float64) {
	a.samples = append(a.samples, samples...)
}

// Samples returns a copy of the history.
func (a *Arm) Samples() []float64 {
	out := make([]float64, len(a.samples))
	copy(out, a.samples)
	return out
}

// Registry tracks the live arms of an experiment in registration order.
// Removal is permanent. Registry is not safe for concurrent use.
type Registry struct {
	arms   []*Arm
	armMap map[string]*Arm
}

// NewRegistry creates a registry over the given arms. Later duplicates of an
// id are dropped.
func NewRegistry(arms []*Arm) *Registry {
	r := &Registry{
		arms:   make([]*Arm, 0, len(arms)),
		armMap: make(map[string]*Arm, len(arms)),
	}
	for _, a := range arms {
		if _, exists := r.armMap[a.ID]; exists {
			continue
		}
		r.arms = append(r.arms, a)
		r.armMap[a.ID] = a
	}
	return r
}

// NewRegistryFromIDs creates a registry with one empty arm per id.
func NewRegistryFromIDs(ids []string) *Registry {
	arms := make([]*Arm, len(ids))
	for i, id := range ids {
		arms[i] = New(id)
	}
	return NewRegistry(arms)
}

// K returns the number of live arms.
func (r *Registry) K() int {
	return len(r.arms)
}

// T returns the total number of observations across live arms.
func (r *Registry) T() int {
	t := 0
	for _, a := range r.arms {
		t += a.N()
	}
	return t
}

// Get returns the arm registered under id.
func (r *Registry) Get(id string) (*Arm, error) {
	a, ok := r.armMap[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownArm, id)
	}
	return a, nil
}

// Arms returns the live arms in registration order.
func (r *Registry) Arms() []*Arm {
	out := make([]*Arm, len(r.arms))
	copy(out, r.arms)
	return out
}

// IDs returns the live arm ids in registration order.
func (r *Registry) IDs() []string {
	ids := make([]string, len(r.arms))
	for i, a := range r.arms {
		ids[i] = a.ID
	}
	return ids
}

// Sample records rewards[i] on the arm decisions[i]. Every id is checked
// before anything is recorded.
func (r *Registry) Sample(decisions []string, rewards []float64) error {
	if len(decisions) != len(rewards) {
		return fmt.Errorf("%w: %d decisions, %d rewards", ErrShapeMismatch, len(decisions), len(rewards))
	}

	targets := make([]*Arm, len(decisions))
	for i, d := range decisions {
		a, err := r.Get(d)
		if err != nil {
			return err
		}
		targets[i] = a
	}

	for i, a := range targets {
		a.AddSample(rewards[i])
	}
	return nil
}

// bestIndex returns the index of the maximum sample mean. The first
// registered arm wins ties.
func (r *Registry) bestIndex() int {
	best := -1
	bestMean := 0.0
	for i, a := range r.arms {
		m := a.SampleMean()
		if best < 0 || m > bestMean {
			best = i
			bestMean = m
		}
	}
	return best
}

// BestArm returns the arm with the highest sample mean, or nil if the
// registry is empty.
func (r *Registry) BestArm() *Arm {
	i := r.bestIndex()
	if i < 0 {
		return nil
	}
	return r.arms[i]
}

// SuboptimalArms returns every arm except BestArm.
func (r *Registry) SuboptimalArms() []*Arm {
	i := r.bestIndex()
	out := make([]*Arm, 0, len(r.arms))
	for j, a := range r.arms {
		if j != i {
			out = append(out, a)
		}
	}
	return out
}

// Remove eliminates an arm permanently.
func (r *Registry) Remove(id string) error {
	a, ok := r.armMap[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownArm, id)
	}
	for i, x := range r.arms {
		if x == a {
			r.arms = append(r.arms[:i], r.arms[i+1:]...)
			break
		}
	}
	delete(r.armMap, id)
	return nil
}

// RemoveAll removes each id in order, stopping at the first unknown id.
func (r *Registry) RemoveAll(ids []string) error {
	for _, id := range ids {
		if err := r.Remove(id); err != nil {
			return err
		}
	}
	return nil
}

// AllSampleMean returns id -> sample mean for every live arm.
func (r *Registry) AllSampleMean() map[string]float64 {
	out := make(map[string]float64, len(r.armMap))
	for id, a := range r.armMap {
		out[id] = a.SampleMean()
	}
	return out
}

// AllNSamples returns id -> observation count for every live arm.
func (r *Registry) AllNSamples() map[string]int {
	out := make(map[string]int, len(r.armMap))
	for id, a := range r.armMap {
		out[id] = a.N()
	}
	return out
}
