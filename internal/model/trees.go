package model

import (
	"encoding/json"
	"fmt"
	"math"
)

// Boosted tree objectives.
const (
	ObjectiveLogistic = "binary:logistic"
	ObjectiveHinge    = "binary:hinge"
)

// Node is one entry of a tree. A node with Leaf set is terminal; otherwise
// rows with row[Feature] < Threshold go Left, the rest go Right, and NaN
// goes to Missing (Left when unset). Children are indexes into Tree.Nodes
// and the root is node 0.
type Node struct {
	Feature   int      `json:"feature"`
	Threshold float64  `json:"threshold"`
	Left      int      `json:"left"`
	Right     int      `json:"right"`
	Missing   *int     `json:"missing,omitempty"`
	Leaf      *float64 `json:"leaf,omitempty"`
}

// Tree is a single regression tree contributing a margin.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// Ensemble sums the leaf margins of gradient-boosted trees. It does not
// classify on its own; the objective decides which wrapper is returned.
type Ensemble struct {
	Objective string   `json:"objective"`
	BaseScore *float64 `json:"base_score,omitempty"`
	Features  int      `json:"n_features"`
	Trees     []Tree   `json:"trees"`

	baseMargin float64
}

// LogisticEnsemble maps the summed margin through the logistic function.
type LogisticEnsemble struct {
	*Ensemble
}

// HingeEnsemble labels by the sign of the margin and has no probability
// entry point.
type HingeEnsemble struct {
	*Ensemble
}

func parseEnsemble(data []byte) (BasicPredictor, error) {
	var e Ensemble
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if e.Features <= 0 {
		return nil, fmt.Errorf("%w: tree ensemble needs a positive n_features", ErrMalformed)
	}
	if len(e.Trees) == 0 {
		return nil, fmt.Errorf("%w: tree ensemble has no trees", ErrMalformed)
	}
	for i := range e.Trees {
		if err := e.Trees[i].check(e.Features); err != nil {
			return nil, fmt.Errorf("%w: tree %d: %v", ErrMalformed, i, err)
		}
	}

	if e.Objective == "" {
		e.Objective = ObjectiveLogistic
	}
	switch e.Objective {
	case ObjectiveLogistic:
		if e.BaseScore != nil {
			p := *e.BaseScore
			if !(p > 0 && p < 1) {
				return nil, fmt.Errorf("%w: base_score %v must lie in (0, 1)", ErrMalformed, p)
			}
			e.baseMargin = math.Log(p / (1 - p))
		}
		return &LogisticEnsemble{Ensemble: &e}, nil
	case ObjectiveHinge:
		if e.BaseScore != nil {
			if math.IsNaN(*e.BaseScore) || math.IsInf(*e.BaseScore, 0) {
				return nil, fmt.Errorf("%w: base_score is not finite", ErrMalformed)
			}
			e.baseMargin = *e.BaseScore
		}
		return &HingeEnsemble{Ensemble: &e}, nil
	default:
		return nil, fmt.Errorf("%w: unsupported objective %q", ErrMalformed, e.Objective)
	}
}

// NumFeatures is the row width the trees were trained on.
func (e *Ensemble) NumFeatures() int {
	return e.Features
}

// Margin returns the raw boosted score for row.
func (e *Ensemble) Margin(row []float64) (float64, error) {
	if err := checkRow(row, e.Features); err != nil {
		return 0, err
	}
	m := e.baseMargin
	for i := range e.Trees {
		m += e.Trees[i].leaf(row)
	}
	return m, nil
}

func (m *LogisticEnsemble) Predict(row []float64) (int, error) {
	proba, err := m.PredictProba(row)
	if err != nil {
		return 0, err
	}
	if proba[1] > 0.5 {
		return 1, nil
	}
	return 0, nil
}

// PredictProba applies the sigmoid to the margin.
func (m *LogisticEnsemble) PredictProba(row []float64) ([]float64, error) {
	margin, err := m.Margin(row)
	if err != nil {
		return nil, err
	}
	p := sigmoid(margin)
	return []float64{1 - p, p}, nil
}

func (m *HingeEnsemble) Predict(row []float64) (int, error) {
	margin, err := m.Margin(row)
	if err != nil {
		return 0, err
	}
	if margin > 0 {
		return 1, nil
	}
	return 0, nil
}

// leaf walks from the root to a terminal node. check guarantees termination.
func (t *Tree) leaf(row []float64) float64 {
	i := 0
	for {
		n := &t.Nodes[i]
		if n.Leaf != nil {
			return *n.Leaf
		}
		x := row[n.Feature]
		switch {
		case math.IsNaN(x):
			if n.Missing != nil {
				i = *n.Missing
			} else {
				i = n.Left
			}
		case x < n.Threshold:
			i = n.Left
		default:
			i = n.Right
		}
	}
}

func (t *Tree) check(features int) error {
	if len(t.Nodes) == 0 {
		return fmt.Errorf("no nodes")
	}
	for i, n := range t.Nodes {
		if n.Leaf != nil {
			if math.IsNaN(*n.Leaf) || math.IsInf(*n.Leaf, 0) {
				return fmt.Errorf("node %d: leaf is not finite", i)
			}
			continue
		}
		if n.Feature < 0 || n.Feature >= features {
			return fmt.Errorf("node %d: feature %d out of range [0, %d)", i, n.Feature, features)
		}
		if math.IsNaN(n.Threshold) {
			return fmt.Errorf("node %d: threshold is NaN", i)
		}
		for _, c := range n.children() {
			if c < 0 || c >= len(t.Nodes) {
				return fmt.Errorf("node %d: child %d does not exist", i, c)
			}
		}
	}
	return t.checkAcyclic()
}

func (t *Tree) checkAcyclic() error {
	const (
		unvisited = iota
		onPath
		done
	)
	state := make([]uint8, len(t.Nodes))
	var visit func(i int) error
	visit = func(i int) error {
		switch state[i] {
		case onPath:
			return fmt.Errorf("node %d is part of a cycle", i)
		case done:
			return nil
		}
		state[i] = onPath
		if t.Nodes[i].Leaf == nil {
			for _, c := range t.Nodes[i].children() {
				if err := visit(c); err != nil {
					return err
				}
			}
		}
		state[i] = done
		return nil
	}
	return visit(0)
}

func (n *Node) children() []int {
	if n.Missing != nil {
		return []int{n.Left, n.Right, *n.Missing}
	}
	return []int{n.Left, n.Right}
}
