// Package model defines the grading report contract shared by the pipeline stages.
package model

// Report field names used by the grading tool contract.
const (
	FieldError       = "error"
	FieldDetails     = "details"
	FieldRawOutput   = "rawOutput"
	FieldTotalPoints = "totalPointsAchieved"
	FieldMaxPoints   = "maxTotalPoints"
	FieldTestResults = "testResults"
	FieldFeedback    = "feedback"
)

// Report is one grading report as produced by the external grading tool.
// It is kept as a decoded JSON object so that tool-produced reports pass
// through to the client unchanged, extra fields included.
type Report map[string]any

// HasError reports whether the grading tool flagged an intentional error.
func (r Report) HasError() bool {
	_, ok := r[FieldError]
	return ok
}

// Conforms reports whether the report satisfies the success contract:
// numeric point totals and a testResults array.
func (r Report) Conforms() bool {
	if !isNumber(r[FieldTotalPoints]) || !isNumber(r[FieldMaxPoints]) {
		return false
	}
	_, ok := r[FieldTestResults].([]any)
	return ok
}

// TotalPoints returns totalPointsAchieved, or 0 when absent or non-numeric.
func (r Report) TotalPoints() float64 {
	return asNumber(r[FieldTotalPoints])
}

// MaxPoints returns maxTotalPoints, or 0 when absent or non-numeric.
func (r Report) MaxPoints() float64 {
	return asNumber(r[FieldMaxPoints])
}

// TestResults returns the testResults array, possibly nil.
func (r Report) TestResults() []any {
	results, _ := r[FieldTestResults].([]any)
	return results
}

// ErrorMessage returns the error field as a string, or "" when absent.
func (r Report) ErrorMessage() string {
	msg, _ := r[FieldError].(string)
	return msg
}

// FallbackReport builds the fully-shaped diagnostic report returned when the
// grading tool produced no usable results.json. Every field the client may
// destructure is present.
func FallbackReport(details, rawOutput string) Report {
	if rawOutput == "" {
		rawOutput = "No output captured"
	}
	return Report{
		FieldError:       "Autograder execution failed",
		FieldDetails:     details,
		FieldRawOutput:   rawOutput,
		FieldTotalPoints: float64(0),
		FieldMaxPoints:   float64(1),
		FieldTestResults: []any{},
		FieldFeedback:    "Grading failed - please check your code and try again",
	}
}

func isNumber(v any) bool {
	switch v.(type) {
	case float64, float32, int, int32, int64:
		return true
	}
	return false
}

func asNumber(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	}
	return 0
}
