// Package model loads pre-trained binary classifiers from JSON artifacts.
//
// Every classifier answers Predict with a class label. Classifiers that can
// also estimate class probabilities implement ProbabilisticPredictor; callers
// detect that capability with a type assertion rather than by trial.
package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

var (
	ErrMalformed = errors.New("malformed model artifact")
	ErrDimension = errors.New("feature vector dimension mismatch")
)

// Artifact kinds.
const (
	KindLogisticRegression = "logistic_regression"
	KindTreeEnsemble       = "tree_ensemble"
)

// BasicPredictor classifies a single row of features into 0 or 1.
type BasicPredictor interface {
	Predict(row []float64) (int, error)
	NumFeatures() int
}

// ProbabilisticPredictor additionally returns [p_negative, p_positive].
type ProbabilisticPredictor interface {
	BasicPredictor
	PredictProba(row []float64) ([]float64, error)
}

// Info describes a loaded classifier.
type Info struct {
	Kind          string `json:"kind"`
	Objective     string `json:"objective,omitempty"`
	Features      int    `json:"features"`
	Probabilistic bool   `json:"probabilistic"`
}

// Describe reports what kind of classifier p is and what it can do.
func Describe(p BasicPredictor) Info {
	_, probabilistic := p.(ProbabilisticPredictor)
	info := Info{
		Kind:          "custom",
		Features:      p.NumFeatures(),
		Probabilistic: probabilistic,
	}
	switch m := p.(type) {
	case *LogisticRegression:
		info.Kind = KindLogisticRegression
	case *LogisticEnsemble:
		info.Kind = KindTreeEnsemble
		info.Objective = m.Objective
	case *HingeEnsemble:
		info.Kind = KindTreeEnsemble
		info.Objective = m.Objective
	}
	return info
}

// Load reads a classifier artifact from path.
func Load(path string) (BasicPredictor, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path comes from operator configuration
	if err != nil {
		return nil, fmt.Errorf("read model %s: %w", path, err)
	}
	p, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse model %s: %w", path, err)
	}
	return p, nil
}

// Parse decodes a classifier artifact, dispatching on its "kind" field.
func Parse(data []byte) (BasicPredictor, error) {
	var header struct {
		Kind     string `json:"kind"`
		Features *int   `json:"n_features"`
	}
	if err := json.Unmarshal(data, &header); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	var (
		p   BasicPredictor
		err error
	)
	switch header.Kind {
	case KindLogisticRegression:
		p, err = parseLogistic(data)
	case KindTreeEnsemble:
		p, err = parseEnsemble(data)
	case "":
		return nil, fmt.Errorf("%w: missing kind", ErrMalformed)
	default:
		return nil, fmt.Errorf("%w: unsupported kind %q", ErrMalformed, header.Kind)
	}
	if err != nil {
		return nil, err
	}

	if header.Features != nil && *header.Features != p.NumFeatures() {
		return nil, fmt.Errorf("%w: n_features is %d but model uses %d",
			ErrMalformed, *header.Features, p.NumFeatures())
	}
	return p, nil
}

// LoadFeatureNames reads the ordered feature list the classifier was trained on.
func LoadFeatureNames(path string) ([]string, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path comes from operator configuration
	if err != nil {
		return nil, fmt.Errorf("read feature list %s: %w", path, err)
	}
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return nil, fmt.Errorf("parse feature list %s: %w: %v", path, ErrMalformed, err)
	}
	return names, nil
}

func checkRow(row []float64, want int) error {
	if len(row) != want {
		return fmt.Errorf("%w: got %d values, want %d", ErrDimension, len(row), want)
	}
	return nil
}
