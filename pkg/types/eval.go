// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// EvaluationCase is one fixed scoping input with the points a good brief
// must contain.
type EvaluationCase struct {
	ID             string   `json:"id" yaml:"id"`
	Input          string   `json:"input" yaml:"input"`
	ExpectedPoints []string `json:"expected_points" yaml:"expected_points"`
}

// PointResult is the judge's verdict for one expected point.
type PointResult struct {
	Point     string `json:"point" yaml:"point"`
	Included  bool   `json:"included" yaml:"included"`
	Reasoning string `json:"reasoning" yaml:"reasoning"`
}

// TestResult is the scored outcome of one evaluation case.
type TestResult struct {
	Case           EvaluationCase `json:"case" yaml:"case"`
	GeneratedBrief string         `json:"generated_brief" yaml:"generated_brief"`
	PointResults   []PointResult  `json:"point_results" yaml:"point_results"`
	Score          float64        `json:"score" yaml:"score"`

	// Error records a brief generation failure. Empty on success.
	Error string `json:"error,omitempty" yaml:"error,omitempty"`
}

// ScorePoints returns the fraction of results marked included. An empty
// slice scores 0.
func ScorePoints(results []PointResult) float64 {
	if len(results) == 0 {
		return 0
	}
	included := 0
	for _, r := range results {
		if r.Included {
			included++
		}
	}
	return float64(included) / float64(len(results))
}
