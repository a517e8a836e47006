package assessor

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mbd888/glycoscreen/internal/guidance"
	"github.com/mbd888/glycoscreen/internal/idgen"
	"github.com/mbd888/glycoscreen/internal/logging"
	"github.com/mbd888/glycoscreen/internal/model"
	"github.com/mbd888/glycoscreen/internal/validation"
)

// Handler provides HTTP endpoints for risk assessment
type Handler struct {
	assessor *Assessor
}

// NewHandler creates a new assessment handler
func NewHandler(a *Assessor) *Handler {
	return &Handler{assessor: a}
}

// RegisterRoutes sets up assessment routes
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/features", h.ListFeatures)
	r.GET("/model", h.GetModel)
	r.POST("/assessments", h.CreateAssessment)
}

// AssessRequest carries one value per feature. A null value counts as missing;
// a value that is not a number is reported against its field.
type AssessRequest struct {
	Features map[string]json.RawMessage `json:"features" binding:"required"`
}

// Input decodes the submitted values. Non-numeric entries are returned as
// field errors, sorted by name.
func (r *AssessRequest) Input() (PatientInput, validation.ValidationErrors) {
	input := make(PatientInput, len(r.Features))
	var errs validation.ValidationErrors
	for name, raw := range r.Features {
		if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
			continue
		}
		var v float64
		err := json.Unmarshal(raw, &v)
		if verr := validation.Numeric(name, err == nil)(); verr != nil {
			errs = append(errs, *verr)
			continue
		}
		input[name] = v
	}
	sort.Slice(errs, func(i, j int) bool { return errs[i].Field < errs[j].Field })
	return input, errs
}

// Assessment is the API view of a verdict.
type Assessment struct {
	ID             string    `json:"id"`
	Verdict        *Verdict  `json:"verdict"`
	RiskPercentage *float64  `json:"riskPercentage,omitempty"`
	Summary        string    `json:"summary"`
	NextSteps      []string  `json:"nextSteps"`
	Disclaimer     string    `json:"disclaimer"`
	EvaluatedAt    time.Time `json:"evaluatedAt"`
}

// FeatureView is a contract entry with its measurement guide.
type FeatureView struct {
	FeatureInfo
	Guide *guidance.Guide `json:"guide,omitempty"`
}

// ListFeatures handles GET /features
func (h *Handler) ListFeatures(c *gin.Context) {
	infos := h.assessor.Features()
	views := make([]FeatureView, len(infos))
	for i, info := range infos {
		views[i] = FeatureView{FeatureInfo: info}
		if g, ok := guidance.For(info.Name); ok {
			views[i].Guide = &g
		}
	}

	resp := gin.H{
		"features":       views,
		"modelAvailable": h.assessor.Available(),
	}
	if !h.assessor.Available() {
		resp["message"] = unavailableMessage
	}
	c.JSON(http.StatusOK, resp)
}

// GetModel handles GET /model
func (h *Handler) GetModel(c *gin.Context) {
	info, err := h.assessor.ModelInfo()
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"model": modelView{Info: info, Features: h.assessor.FeatureSpec().Names()}})
}

type modelView struct {
	model.Info
	Features []string `json:"featureOrder"`
}

// CreateAssessment handles POST /assessments
func (h *Handler) CreateAssessment(c *gin.Context) {
	var req AssessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Request body must be {\"features\": {name: number}}",
		})
		return
	}

	input, verrs := req.Input()
	if len(verrs) > 0 {
		h.writeError(c, verrs)
		return
	}

	verdict, err := h.assessor.Assess(c.Request.Context(), input)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"assessment": newAssessment(verdict),
	})
}

func newAssessment(v *Verdict) *Assessment {
	a := &Assessment{
		ID:          idgen.WithPrefix("asmt_"),
		Verdict:     v,
		Summary:     guidance.Summary(v.Positive()),
		NextSteps:   guidance.NextSteps(v.Positive()),
		Disclaimer:  guidance.Disclaimer,
		EvaluatedAt: time.Now().UTC(),
	}
	if v.Probability != nil {
		pct := math.Round(*v.Probability*1000) / 10
		a.RiskPercentage = &pct
	}
	return a
}

const unavailableMessage = "Predictions are unavailable: the model artifacts could not be loaded."

func (h *Handler) writeError(c *gin.Context, err error) {
	var verrs validation.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		c.JSON(http.StatusBadRequest, validation.ErrorResponse(verrs))
	case errors.Is(err, ErrModelUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "model_unavailable",
			"message": unavailableMessage,
		})
	default:
		logging.L(c.Request.Context()).Error("assessment failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "assessment_failed",
			"message": "The classifier could not produce a verdict",
		})
	}
}
