// Package assessor turns a patient's clinical measurements into a diabetes
// risk verdict.
//
// An Assessor owns the feature contract (which measurements, in which
// order, within which ranges) and a pre-trained classifier. Both are loaded
// once at startup into an immutable Artifacts value. When loading fails the
// process keeps running with an Assessor that refuses every prediction with
// ErrModelUnavailable instead of inventing a verdict.
package assessor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/mbd888/glycoscreen/internal/logging"
	"github.com/mbd888/glycoscreen/internal/metrics"
	"github.com/mbd888/glycoscreen/internal/model"
	"github.com/mbd888/glycoscreen/internal/traces"
	"github.com/mbd888/glycoscreen/internal/validation"
)

var (
	ErrModelUnavailable       = errors.New("model unavailable")
	ErrMissingFeature         = validation.ErrMissing
	ErrOutOfRange             = validation.ErrOutOfRange
	ErrUnknownFeature         = validation.ErrUnknown
	ErrProbabilityUnavailable = errors.New("probability unavailable")
)

// Label is the binary outcome of a classification.
type Label string

const (
	LabelPositive Label = "positive"
	LabelNegative Label = "negative"
)

// PatientInput maps feature name to measured value.
type PatientInput map[string]float64

// Verdict is the result of one classification. Probability is the
// classifier's estimate for the positive class and is nil when the
// classifier cannot provide one.
type Verdict struct {
	Label       Label    `json:"label"`
	Probability *float64 `json:"probability,omitempty"`
}

func (v *Verdict) Positive() bool {
	return v.Label == LabelPositive
}

// Artifacts is the immutable model state shared by every request.
type Artifacts struct {
	Features   *FeatureSpec
	Classifier model.BasicPredictor

	ModelPath    string
	FeaturesPath string
}

// NewArtifacts pairs a feature list with a classifier, refusing pairs whose
// dimensions disagree.
func NewArtifacts(features *FeatureSpec, classifier model.BasicPredictor) (*Artifacts, error) {
	if features == nil || classifier == nil {
		return nil, fmt.Errorf("%w: classifier and feature list are both required", ErrModelUnavailable)
	}
	if classifier.NumFeatures() != features.Len() {
		return nil, fmt.Errorf("%w: classifier expects %d features but the feature list has %d",
			ErrModelUnavailable, classifier.NumFeatures(), features.Len())
	}
	return &Artifacts{Features: features, Classifier: classifier}, nil
}

// LoadArtifacts reads the feature list and classifier from disk. Every
// failure wraps ErrModelUnavailable together with its cause.
func LoadArtifacts(modelPath, featuresPath string) (*Artifacts, error) {
	names, err := model.LoadFeatureNames(featuresPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrModelUnavailable, err)
	}
	spec, err := NewFeatureSpec(names)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrModelUnavailable, featuresPath, err)
	}
	classifier, err := model.Load(modelPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrModelUnavailable, err)
	}
	a, err := NewArtifacts(spec, classifier)
	if err != nil {
		return nil, err
	}
	a.ModelPath = modelPath
	a.FeaturesPath = featuresPath
	return a, nil
}

// Assessor validates input and classifies it. It is safe for concurrent
// use because nothing it holds changes after construction.
type Assessor struct {
	artifacts *Artifacts
	cause     error
	logger    *slog.Logger
}

// Option configures an Assessor
type Option func(*Assessor)

// WithLogger sets the logger used outside request contexts
func WithLogger(logger *slog.Logger) Option {
	return func(a *Assessor) {
		a.logger = logger
	}
}

// New creates an Assessor over loaded artifacts. A nil artifacts value
// yields an unavailable Assessor.
func New(artifacts *Artifacts, opts ...Option) *Assessor {
	if artifacts == nil {
		return Unavailable(nil, opts...)
	}
	a := &Assessor{artifacts: artifacts, logger: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Unavailable creates an Assessor that refuses all predictions with an
// error wrapping ErrModelUnavailable and cause.
func Unavailable(cause error, opts ...Option) *Assessor {
	switch {
	case cause == nil:
		cause = fmt.Errorf("%w: no artifacts loaded", ErrModelUnavailable)
	case !errors.Is(cause, ErrModelUnavailable):
		cause = fmt.Errorf("%w: %w", ErrModelUnavailable, cause)
	}
	a := &Assessor{cause: cause, logger: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Open loads the artifacts and returns a ready Assessor, or an unavailable
// one when loading fails. The outcome is logged and exported as a gauge.
func Open(modelPath, featuresPath string, opts ...Option) *Assessor {
	artifacts, err := LoadArtifacts(modelPath, featuresPath)
	if err != nil {
		a := Unavailable(err, opts...)
		a.logger.Error("model artifacts unavailable, predictions disabled",
			"model_path", modelPath,
			"features_path", featuresPath,
			"error", err,
		)
		metrics.SetModelAvailable(false)
		return a
	}

	a := New(artifacts, opts...)
	info := model.Describe(artifacts.Classifier)
	a.logger.Info("model artifacts loaded",
		"model_path", modelPath,
		"features_path", featuresPath,
		"kind", info.Kind,
		"features", artifacts.Features.Names(),
		"probabilistic", info.Probabilistic,
	)
	metrics.SetModelAvailable(true)
	return a
}

// Available reports whether predictions can be served.
func (a *Assessor) Available() bool {
	return a.artifacts != nil
}

// Err returns why predictions are refused, or nil when available.
func (a *Assessor) Err() error {
	if a.artifacts != nil {
		return nil
	}
	return a.cause
}

// FeatureSpec returns the loaded feature contract, or nil when unavailable.
func (a *Assessor) FeatureSpec() *FeatureSpec {
	if a.artifacts == nil {
		return nil
	}
	return a.artifacts.Features
}

// Features describes the contract for form renderers; empty when unavailable.
func (a *Assessor) Features() []FeatureInfo {
	if a.artifacts == nil {
		return nil
	}
	return a.artifacts.Features.Info()
}

// ModelInfo describes the loaded classifier.
func (a *Assessor) ModelInfo() (model.Info, error) {
	if a.artifacts == nil {
		return model.Info{}, a.cause
	}
	return model.Describe(a.artifacts.Classifier), nil
}

// Validate checks input against the feature contract without side effects.
// Failures are validation.ValidationErrors matching ErrMissingFeature,
// ErrOutOfRange or ErrUnknownFeature.
func (a *Assessor) Validate(input PatientInput) (PatientInput, error) {
	if a.artifacts == nil {
		return nil, a.cause
	}
	return a.artifacts.Features.Validate(input)
}

// Classify runs the classifier on already validated input. The verdict
// carries a probability only when the classifier offers one and it can be
// computed; a probability failure never fails the verdict.
func (a *Assessor) Classify(ctx context.Context, input PatientInput) (*Verdict, error) {
	if a.artifacts == nil {
		metrics.ModelUnavailableTotal.Inc()
		return nil, a.cause
	}

	info := model.Describe(a.artifacts.Classifier)
	ctx, span := traces.StartClassify(ctx, a.artifacts.Features.Len(), info.Kind)
	defer span.End()

	row, err := a.artifacts.Features.Vector(input)
	if err != nil {
		traces.Fail(span, err)
		return nil, err
	}

	start := time.Now()
	out, err := a.artifacts.Classifier.Predict(row)
	if err != nil {
		traces.Fail(span, err)
		return nil, fmt.Errorf("classifier predict: %w", err)
	}

	verdict := &Verdict{Label: labelFor(out)}
	if p, err := a.probability(row); err != nil {
		a.probabilityFailed(ctx, err)
	} else {
		verdict.Probability = &p
	}
	metrics.ClassificationDuration.Observe(time.Since(start).Seconds())
	metrics.AssessmentsTotal.WithLabelValues(string(verdict.Label)).Inc()

	traces.RecordVerdict(span, string(verdict.Label), verdict.Probability != nil)
	return verdict, nil
}

// Assess validates input and classifies it: the single predict action
// behind every form renderer.
func (a *Assessor) Assess(ctx context.Context, input PatientInput) (*Verdict, error) {
	valid, err := a.Validate(input)
	if err != nil {
		recordRejection(err)
		return nil, err
	}
	return a.Classify(ctx, valid)
}

func labelFor(out int) Label {
	if out == 1 {
		return LabelPositive
	}
	return LabelNegative
}

// probability asks a classifier with the probabilistic capability for
// P(positive). Classifiers without the capability are not probed.
func (a *Assessor) probability(row []float64) (float64, error) {
	pp, ok := a.artifacts.Classifier.(model.ProbabilisticPredictor)
	if !ok {
		return 0, errUnsupported
	}
	proba, err := predictProba(pp, row)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrProbabilityUnavailable, err)
	}
	if len(proba) < 2 {
		return 0, fmt.Errorf("%w: expected 2 class probabilities, got %d", ErrProbabilityUnavailable, len(proba))
	}
	p := proba[1]
	if math.IsNaN(p) || p < 0 || p > 1 {
		return 0, fmt.Errorf("%w: P(positive) = %v is not a probability", ErrProbabilityUnavailable, p)
	}
	return p, nil
}

// predictProba turns a panicking probability entry point into an error so the
// label survives.
func predictProba(pp model.ProbabilisticPredictor, row []float64) (proba []float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			proba, err = nil, fmt.Errorf("predict_proba panicked: %v", r)
		}
	}()
	return pp.PredictProba(row)
}

var errUnsupported = fmt.Errorf("%w: classifier has no probability entry point", ErrProbabilityUnavailable)

func (a *Assessor) probabilityFailed(ctx context.Context, err error) {
	logger := logging.LOr(ctx, a.logger)
	if errors.Is(err, errUnsupported) {
		metrics.ProbabilityUnavailableTotal.WithLabelValues("unsupported").Inc()
		logger.Debug("verdict without probability", "reason", err)
		return
	}
	metrics.ProbabilityUnavailableTotal.WithLabelValues("failed").Inc()
	logger.Warn("probability unavailable, returning label only", "error", err)
}

func recordRejection(err error) {
	if errors.Is(err, ErrModelUnavailable) {
		metrics.ModelUnavailableTotal.Inc()
		return
	}
	var errs validation.ValidationErrors
	if errors.As(err, &errs) {
		for _, e := range errs {
			metrics.ValidationFailuresTotal.WithLabelValues(e.Reason).Inc()
		}
	}
}
