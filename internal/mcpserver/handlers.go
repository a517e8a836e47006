package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/mbd888/glycoscreen/internal/assessor"
	"github.com/mbd888/glycoscreen/internal/guidance"
	"github.com/mbd888/glycoscreen/internal/validation"
)

// Handlers holds the handler functions for each MCP tool.
type Handlers struct {
	assessor *assessor.Assessor
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(a *assessor.Assessor) *Handlers {
	return &Handlers{assessor: a}
}

const unavailableText = "The diabetes risk model is not loaded on this server, so no assessment can be made. " +
	"Ask the operator to check the model artifacts."

// HandleListRiskFeatures describes the measurements the model expects.
func (h *Handlers) HandleListRiskFeatures(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if !h.assessor.Available() {
		return mcp.NewToolResultError(unavailableText), nil
	}

	var sb strings.Builder
	sb.WriteString("Measurements required, in model order:\n")
	for _, info := range h.assessor.Features() {
		fmt.Fprintf(&sb, "\n%d. %s (%s)\n", info.Position+1, info.Name, formatRange(info.Constraint))
		if g, ok := guidance.For(info.Name); ok {
			fmt.Fprintf(&sb, "   %s\n", g.Description)
			fmt.Fprintf(&sb, "   How to measure: %s\n", g.HowToMeasure)
			fmt.Fprintf(&sb, "   Reference: %s\n", g.NormalRange)
		}
	}
	return mcp.NewToolResultText(sb.String()), nil
}

// HandleAssessDiabetesRisk validates the measurements and classifies them.
func (h *Handlers) HandleAssessDiabetesRisk(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := patientInput(req.GetArguments())
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	verdict, err := h.assessor.Assess(ctx, input)
	if err != nil {
		return mcp.NewToolResultError(describeError(err)), nil
	}

	return mcp.NewToolResultText(formatVerdict(verdict)), nil
}

// patientInput converts tool arguments to measurements. Null arguments are
// treated as not supplied; anything else must be a number.
func patientInput(args map[string]any) (assessor.PatientInput, error) {
	input := make(assessor.PatientInput, len(args))
	var bad []string
	for name, raw := range args {
		if raw == nil {
			continue
		}
		v, ok := getFloat(raw)
		if !ok {
			bad = append(bad, name)
			continue
		}
		input[name] = v
	}
	if len(bad) > 0 {
		sort.Strings(bad)
		return nil, fmt.Errorf("These arguments must be numbers: %s", strings.Join(bad, ", "))
	}
	return input, nil
}

func getFloat(raw any) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

func describeError(err error) string {
	var verrs validation.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		var sb strings.Builder
		sb.WriteString("The measurements were rejected:\n")
		for _, e := range verrs {
			fmt.Fprintf(&sb, "- %s %s (%s)\n", e.Field, e.Message, e.Reason)
		}
		sb.WriteString("Correct these values and try again.")
		return sb.String()
	case errors.Is(err, assessor.ErrModelUnavailable):
		return unavailableText
	default:
		return fmt.Sprintf("Assessment failed: %v", err)
	}
}

func formatVerdict(v *assessor.Verdict) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Verdict: %s\n", strings.ToUpper(string(v.Label)))
	if v.Probability != nil {
		fmt.Fprintf(&sb, "Estimated probability of diabetes: %.1f%%\n", *v.Probability*100)
	} else {
		sb.WriteString("Estimated probability of diabetes: not available for this model\n")
	}
	fmt.Fprintf(&sb, "\n%s\n\nRecommended next steps:\n", guidance.Summary(v.Positive()))
	for _, step := range guidance.NextSteps(v.Positive()) {
		fmt.Fprintf(&sb, "- %s\n", step)
	}
	fmt.Fprintf(&sb, "\n%s", guidance.Disclaimer)
	return sb.String()
}

func formatRange(c assessor.Constraint) string {
	kind := "number"
	if c.Integer {
		kind = "whole number"
	}
	if c.Max != nil {
		return fmt.Sprintf("%s, %g to %g", kind, c.Min, *c.Max)
	}
	return fmt.Sprintf("%s, at least %g", kind, c.Min)
}
