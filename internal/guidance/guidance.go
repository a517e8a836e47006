// Package guidance holds the clinical reference text shown next to each
// measurement and the follow-up advice attached to a verdict.
package guidance

import "strings"

// Guide explains how to obtain one measurement.
type Guide struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	HowToMeasure string `json:"howToMeasure"`
	NormalRange  string `json:"normalRange"`
	Tips         string `json:"tips"`
}

// Disclaimer accompanies every verdict.
const Disclaimer = "For educational and screening purposes only. " +
	"Not a substitute for professional medical diagnosis."

var guides = map[string]Guide{
	"pregnancies": {
		Title:        "Number of Pregnancies",
		Description:  "Total number of times the patient has been pregnant",
		HowToMeasure: "Ask the patient directly about their pregnancy history",
		NormalRange:  "0-17 pregnancies",
		Tips:         "Include all pregnancies (live births, stillbirths, miscarriages, abortions)",
	},
	"glucose": {
		Title:        "Plasma Glucose Concentration",
		Description:  "Blood glucose level after 2-hour oral glucose tolerance test",
		HowToMeasure: "OGTT: Patient fasts overnight, drinks glucose solution, blood drawn after 2 hours",
		NormalRange:  "<140 mg/dL (normal), 140-199 mg/dL (prediabetes), ≥200 mg/dL (diabetes)",
		Tips:         "Ensure patient fasts 8-12 hours before test. Avoid during illness or stress.",
	},
	"bloodpressure": {
		Title:        "Diastolic Blood Pressure",
		Description:  "Blood pressure measurement (mmHg) - bottom number in BP reading",
		HowToMeasure: "Use calibrated sphygmomanometer. Patient seated, arm at heart level",
		NormalRange:  "<80 mmHg (normal), 80-89 mmHg (stage 1), ≥90 mmHg (stage 2)",
		Tips:         "Take multiple readings, avoid caffeine/exercise 30 min before measurement",
	},
	"insulin": {
		Title:        "2-Hour Serum Insulin",
		Description:  "Insulin level 2 hours after glucose load (mu U/ml)",
		HowToMeasure: "Blood draw 2 hours after glucose tolerance test",
		NormalRange:  "16-166 mu U/ml (normal response)",
		Tips:         "Coordinate with glucose tolerance test, ensure proper sample handling",
	},
	"bmi": {
		Title:        "Body Mass Index",
		Description:  "Weight in kg divided by height in meters squared",
		HowToMeasure: "BMI = weight (kg) / height (m)²",
		NormalRange:  "<25 (normal), 25-29.9 (overweight), ≥30 (obese)",
		Tips:         "Use calibrated scale, measure height without shoes, consistent timing",
	},
	"age": {
		Title:        "Age",
		Description:  "Patient age in years",
		HowToMeasure: "Verify with identification document",
		NormalRange:  "Any age (risk increases with age)",
		Tips:         "Use actual age, not rounded. Consider screening frequency based on age",
	},
}

// For returns the guide for a feature, matching the name case-insensitively.
func For(feature string) (Guide, bool) {
	g, ok := guides[strings.ToLower(feature)]
	return g, ok
}

// Summary is the one-line reading of a verdict.
func Summary(positive bool) string {
	if positive {
		return "High risk: the patient is likely to have diabetes."
	}
	return "Low risk: the patient is unlikely to have diabetes."
}

// NextSteps lists the recommended follow-up for a verdict.
func NextSteps(positive bool) []string {
	if positive {
		return []string{
			"Perform confirmatory testing (HbA1c, fasting glucose)",
			"Provide lifestyle counseling",
			"Consider referral to endocrinologist",
			"Schedule regular monitoring",
		}
	}
	return []string{
		"Continue regular health screenings",
		"Maintain healthy lifestyle habits",
		"Annual diabetes risk assessment",
		"Monitor for risk factor changes",
	}
}
