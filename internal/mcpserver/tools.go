package mcpserver

import (
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/mbd888/glycoscreen/internal/assessor"
	"github.com/mbd888/glycoscreen/internal/guidance"
)

// Tool definitions for the glycoscreen MCP server.
// Descriptions are what the LLM reads to decide which tool to use.

const (
	toolListFeatures = "list_risk_features"
	toolAssess       = "assess_diabetes_risk"
)

var ToolListRiskFeatures = mcp.NewTool(toolListFeatures,
	mcp.WithDescription(
		"List the clinical measurements the diabetes risk model needs, in model order, "+
			"with accepted ranges and how to measure each one. "+
			"Call this before assess_diabetes_risk if you are unsure which values to collect."),
)

// NewAssessTool builds the assessment tool with one required numeric
// argument per feature of the loaded contract. Without a contract the tool
// takes no arguments and every call reports the model as unavailable.
func NewAssessTool(spec *assessor.FeatureSpec) mcp.Tool {
	opts := []mcp.ToolOption{
		mcp.WithDescription(
			"Screen a patient for diabetes from routine clinical measurements. " +
				"Returns a positive or negative risk verdict, the estimated probability when the model provides one, " +
				"and recommended next steps. This is a screening aid, not a diagnosis."),
	}
	if spec == nil {
		return mcp.NewTool(toolAssess, opts...)
	}

	for _, info := range spec.Info() {
		props := []mcp.PropertyOption{
			mcp.Required(),
			mcp.Description(describeFeature(info)),
			mcp.Min(info.Min),
		}
		if info.Max != nil {
			props = append(props, mcp.Max(*info.Max))
		}
		opts = append(opts, mcp.WithNumber(info.Name, props...))
	}
	return mcp.NewTool(toolAssess, opts...)
}

func describeFeature(info assessor.FeatureInfo) string {
	desc := info.Name
	if g, ok := guidance.For(info.Name); ok {
		desc = fmt.Sprintf("%s: %s. Typical range %s", g.Title, g.Description, g.NormalRange)
	}
	if info.Integer {
		desc += ". Whole number"
	}
	return desc
}
