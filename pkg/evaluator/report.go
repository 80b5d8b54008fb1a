package evaluator

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/user/policygen/pkg/model"
)

// WriteResults persists one evaluation run: a structured JSON summary plus
// a human-readable Markdown report with per-metric interpretation bands.
func WriteResults(dir string, results []model.EvaluationResult) (jsonPath, mdPath string, err error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", fmt.Errorf("creating evaluation output directory: %w", err)
	}

	stamp := time.Now().UTC().Format("20060102_150405")
	jsonPath = filepath.Join(dir, fmt.Sprintf("evaluation_%s.json", stamp))
	mdPath = filepath.Join(dir, fmt.Sprintf("evaluation_%s.md", stamp))

	summary := struct {
		Timestamp time.Time                `json:"timestamp"`
		Count     int                      `json:"count"`
		Results   []model.EvaluationResult `json:"results"`
	}{
		Timestamp: time.Now().UTC(),
		Count:     len(results),
		Results:   results,
	}

	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return "", "", err
	}
	if err := os.WriteFile(jsonPath, data, 0o644); err != nil {
		return "", "", err
	}

	var sb strings.Builder
	sb.WriteString("# Security Policy Evaluation Report\n\n")
	fmt.Fprintf(&sb, "**Generated:** %s\n\n", summary.Timestamp.Format(time.RFC3339))
	fmt.Fprintf(&sb, "**Policies Evaluated:** %d\n\n", len(results))

	for i, r := range results {
		fmt.Fprintf(&sb, "## %s (policy %d)\n\n", r.Framework, i+1)
		if r.Incomplete {
			sb.WriteString("_Result incomplete: empty generated text or reference set._\n\n")
		}
		fmt.Fprintf(&sb, "- **BLEU**: %.4f\n", r.BLEUScore)
		fmt.Fprintf(&sb, "- **ROUGE-L**: %.4f\n", r.RougeLScore)
		fmt.Fprintf(&sb, "- **Compliance**: %.4f\n", r.ComplianceScore)
		fmt.Fprintf(&sb, "- **Coverage**: %.4f\n", r.CoverageScore)
		fmt.Fprintf(&sb, "- **Quality**: %.4f\n\n", r.QualityScore)
		sb.WriteString("### Interpretation\n\n")
		sb.WriteString(interpret("BLEU", r.BLEUScore, 0.5, 0.3, "similarity to reference policies"))
		sb.WriteString(interpret("ROUGE-L", r.RougeLScore, 0.5, 0.3, "content overlap with references"))
		sb.WriteString(interpret("Compliance", r.ComplianceScore, 0.8, 0.6, "framework adherence"))
		sb.WriteString("\n")
	}

	if err := os.WriteFile(mdPath, []byte(sb.String()), 0o644); err != nil {
		return "", "", err
	}
	return jsonPath, mdPath, nil
}

func interpret(metric string, score, good, fair float64, what string) string {
	switch {
	case score >= good:
		return fmt.Sprintf("- ✅ **%s**: strong %s\n", metric, what)
	case score >= fair:
		return fmt.Sprintf("- ⚠️ **%s**: moderate %s\n", metric, what)
	default:
		return fmt.Sprintf("- ❌ **%s**: low %s\n", metric, what)
	}
}
