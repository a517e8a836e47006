package assessor

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/mbd888/glycoscreen/internal/validation"
)

// Bounds for the integer-valued features.
const (
	MaxAge         = 120
	MaxPregnancies = 20
)

var ErrInvalidFeatureSpec = errors.New("invalid feature list")

// Constraint describes the values a feature accepts. Every feature is
// bounded below by Min; Max is nil when there is no upper bound.
type Constraint struct {
	Integer bool     `json:"integer"`
	Min     float64  `json:"min"`
	Max     *float64 `json:"max,omitempty"`
}

// ConstraintFor returns the constraint for a feature name. Age and
// Pregnancies are matched case-insensitively; everything else is a
// non-negative real.
func ConstraintFor(name string) Constraint {
	switch strings.ToLower(name) {
	case "age":
		return Constraint{Integer: true, Max: bound(MaxAge)}
	case "pregnancies":
		return Constraint{Integer: true, Max: bound(MaxPregnancies)}
	default:
		return Constraint{}
	}
}

func bound(v float64) *float64 {
	return &v
}

// FeatureSpec is the ordered list of features the classifier was trained
// on. It is immutable once built.
type FeatureSpec struct {
	names []string
	index map[string]int
}

// NewFeatureSpec validates and freezes an ordered feature list.
func NewFeatureSpec(names []string) (*FeatureSpec, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: no features", ErrInvalidFeatureSpec)
	}
	s := &FeatureSpec{
		names: make([]string, len(names)),
		index: make(map[string]int, len(names)),
	}
	folded := make(map[string]string, len(names))
	for i, name := range names {
		if strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("%w: feature %d has an empty name", ErrInvalidFeatureSpec, i)
		}
		if prev, dup := folded[strings.ToLower(name)]; dup {
			return nil, fmt.Errorf("%w: %q duplicates %q", ErrInvalidFeatureSpec, name, prev)
		}
		folded[strings.ToLower(name)] = name
		s.names[i] = name
		s.index[name] = i
	}
	return s, nil
}

// Names returns a copy of the feature names in classifier order.
func (s *FeatureSpec) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// Len is the number of features a classifier row carries.
func (s *FeatureSpec) Len() int {
	return len(s.names)
}

// Contains reports whether name is an accepted feature (exact match).
func (s *FeatureSpec) Contains(name string) bool {
	_, ok := s.index[name]
	return ok
}

// Validate checks input against the feature contract. Every violation is
// reported, one per field; unknown fields are listed after the contract's
// own fields in lexical order. The returned input holds exactly the
// FeatureSpec members.
func (s *FeatureSpec) Validate(input PatientInput) (PatientInput, error) {
	rules := make([]func() *validation.ValidationError, 0, len(s.names))
	for _, name := range s.names {
		v, ok := input[name]
		c := ConstraintFor(name)
		checks := []func() *validation.ValidationError{
			validation.Present(name, ok),
			validation.Finite(name, v),
			validation.AtLeast(name, v, c.Min),
		}
		if c.Max != nil {
			checks = append(checks, validation.AtMost(name, v, *c.Max))
		}
		if c.Integer {
			checks = append(checks, validation.Whole(name, v))
		}
		rules = append(rules, validation.First(checks...))
	}

	var unknown []string
	for name := range input {
		if !s.Contains(name) {
			unknown = append(unknown, name)
		}
	}
	sort.Strings(unknown)
	for _, name := range unknown {
		rules = append(rules, validation.Known(name, false))
	}

	if errs := validation.Validate(rules...); len(errs) > 0 {
		return nil, errs
	}

	out := make(PatientInput, len(s.names))
	for _, name := range s.names {
		out[name] = input[name]
	}
	return out, nil
}

// Vector lays input out as a single row in classifier order.
func (s *FeatureSpec) Vector(input PatientInput) ([]float64, error) {
	row := make([]float64, len(s.names))
	for i, name := range s.names {
		v, ok := input[name]
		if !ok {
			return nil, validation.Validate(validation.Present(name, false))
		}
		row[i] = v
	}
	return row, nil
}

// FeatureInfo is one entry of the contract as shown to form renderers.
type FeatureInfo struct {
	Name     string `json:"name"`
	Position int    `json:"position"`
	Constraint
}

// Info describes each feature in row order with its range constraint.
func (s *FeatureSpec) Info() []FeatureInfo {
	out := make([]FeatureInfo, len(s.names))
	for i, name := range s.names {
		out[i] = FeatureInfo{Name: name, Position: i, Constraint: ConstraintFor(name)}
	}
	return out
}
