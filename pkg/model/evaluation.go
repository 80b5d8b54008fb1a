package model

import "time"

// EvaluationResult holds the scores comparing one generated policy against
// a reference corpus. Every score is clamped to [0, 1]. Incomplete marks
// results computed from empty generated or reference text; those score 0.0
// rather than raising an error.
type EvaluationResult struct {
	Framework       Framework `json:"framework"`
	BLEUScore       float64   `json:"bleu_score"`
	RougeLScore     float64   `json:"rouge_l_score"`
	ComplianceScore float64   `json:"compliance_score"`
	CoverageScore   float64   `json:"coverage_score"`
	QualityScore    float64   `json:"quality_score"`
	Incomplete      bool      `json:"incomplete"`
	EvaluatedAt     time.Time `json:"evaluated_at"`
}
