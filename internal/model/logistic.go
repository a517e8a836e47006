package model

import (
	"encoding/json"
	"fmt"
	"math"
)

// LogisticRegression is a linear model squashed through the logistic function.
type LogisticRegression struct {
	Coefficients []float64 `json:"coefficients"`
	Intercept    float64   `json:"intercept"`
}

func parseLogistic(data []byte) (*LogisticRegression, error) {
	var m LogisticRegression
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(m.Coefficients) == 0 {
		return nil, fmt.Errorf("%w: logistic regression has no coefficients", ErrMalformed)
	}
	for i, c := range m.Coefficients {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return nil, fmt.Errorf("%w: coefficient %d is not finite", ErrMalformed, i)
		}
	}
	if math.IsNaN(m.Intercept) || math.IsInf(m.Intercept, 0) {
		return nil, fmt.Errorf("%w: intercept is not finite", ErrMalformed)
	}
	return &m, nil
}

// NumFeatures is the number of coefficients.
func (m *LogisticRegression) NumFeatures() int {
	return len(m.Coefficients)
}

// Predict returns 1 when the decision function is positive (P(positive) > 0.5).
func (m *LogisticRegression) Predict(row []float64) (int, error) {
	z, err := m.decision(row)
	if err != nil {
		return 0, err
	}
	if z > 0 {
		return 1, nil
	}
	return 0, nil
}

// PredictProba returns [P(negative), P(positive)] for row.
func (m *LogisticRegression) PredictProba(row []float64) ([]float64, error) {
	z, err := m.decision(row)
	if err != nil {
		return nil, err
	}
	p := sigmoid(z)
	return []float64{1 - p, p}, nil
}

func (m *LogisticRegression) decision(row []float64) (float64, error) {
	if err := checkRow(row, len(m.Coefficients)); err != nil {
		return 0, err
	}
	z := m.Intercept
	for i, x := range row {
		z += m.Coefficients[i] * x
	}
	return z, nil
}

// sigmoid avoids overflow in exp for large |z|.
func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}
