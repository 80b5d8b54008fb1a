package evaluator

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/user/policygen/pkg/model"
)

const nistPolicy = `Risk Assessment: Identify all assets through asset management.
Protect systems with security controls and access restrictions.
Detect intrusions with continuous monitoring.
Respond to incidents via the incident response plan, then recover operations.`

func newEvaluator(t *testing.T) *Evaluator {
	t.Helper()
	eval, err := New(DefaultWeights, zerolog.Nop())
	require.NoError(t, err)
	return eval
}

func policyDoc(text string) model.PolicyDocument {
	return model.PolicyDocument{
		Framework:     model.FrameworkNISTCSF,
		BatchKey:      "SAST",
		GeneratedText: text,
	}
}

func TestDefaultWeights(t *testing.T) {
	assert.Equal(t, Weights{BLEU: 0.4, RougeL: 0.3, Compliance: 0.3}, DefaultWeights)
}

func TestEvaluateIdenticalTexts(t *testing.T) {
	eval := newEvaluator(t)

	result := eval.Evaluate(policyDoc(nistPolicy), []string{nistPolicy})
	assert.InDelta(t, 1.0, result.BLEUScore, 1e-9)
	assert.InDelta(t, 1.0, result.RougeLScore, 1e-9)
	assert.False(t, result.Incomplete)
	assert.Equal(t, model.FrameworkNISTCSF, result.Framework)
	assert.False(t, result.EvaluatedAt.IsZero())
}

func TestEvaluatePicksBestReference(t *testing.T) {
	eval := newEvaluator(t)

	references := []string{
		"Completely unrelated cooking instructions about pasta and tomatoes.",
		nistPolicy,
	}
	result := eval.Evaluate(policyDoc(nistPolicy), references)
	assert.InDelta(t, 1.0, result.BLEUScore, 1e-9, "scored against the best-matching reference")
	assert.InDelta(t, 1.0, result.RougeLScore, 1e-9)
}

func TestEvaluateEmptyGeneratedText(t *testing.T) {
	eval := newEvaluator(t)

	for _, text := range []string{"", "   \n\t", "!!! ... ---"} {
		result := eval.Evaluate(policyDoc(text), []string{nistPolicy})
		assert.True(t, result.Incomplete, "text %q", text)
		assert.Zero(t, result.BLEUScore)
		assert.Zero(t, result.RougeLScore)
		assert.Zero(t, result.QualityScore)
	}
}

func TestEvaluateNoReferences(t *testing.T) {
	eval := newEvaluator(t)

	result := eval.Evaluate(policyDoc(nistPolicy), nil)
	assert.True(t, result.Incomplete)
	assert.Zero(t, result.BLEUScore)
	assert.Zero(t, result.RougeLScore)
	assert.Greater(t, result.ComplianceScore, 0.0,
		"compliance depends only on the generated text")
	assert.Greater(t, result.QualityScore, 0.0)
}

func TestComplianceScore(t *testing.T) {
	eval := newEvaluator(t)

	full := `Identify, protect, detect, respond, recover. Risk assessment drives
security controls, monitoring, incident response, and asset management.`
	result := eval.Evaluate(policyDoc(full), []string{nistPolicy})
	assert.InDelta(t, 1.0, result.ComplianceScore, 1e-9, "all keywords present")

	none := eval.Evaluate(policyDoc("the quick brown fox jumps over the lazy dog"), []string{nistPolicy})
	assert.Zero(t, none.ComplianceScore)
}

func TestCoverageScoreCountsControlIDs(t *testing.T) {
	eval := newEvaluator(t)

	cited := "Apply PR.AC access control and DE.CM continuous monitoring. See also id.am inventories."
	result := eval.Evaluate(policyDoc(cited), []string{nistPolicy})
	// 3 of the 7 NIST control identifiers are cited, case-insensitively.
	assert.InDelta(t, 3.0/7.0, result.CoverageScore, 1e-9)
}

func TestQualityScoreWeighting(t *testing.T) {
	eval := newEvaluator(t)

	result := eval.Evaluate(policyDoc(nistPolicy), []string{nistPolicy})
	expected := DefaultWeights.BLEU*result.BLEUScore +
		DefaultWeights.RougeL*result.RougeLScore +
		DefaultWeights.Compliance*result.ComplianceScore
	assert.InDelta(t, expected, result.QualityScore, 1e-9)
	assert.LessOrEqual(t, result.QualityScore, 1.0)
	assert.GreaterOrEqual(t, result.QualityScore, 0.0)
}

func TestBleuScore(t *testing.T) {
	t.Run("identical", func(t *testing.T) {
		tokens := tokenize(nistPolicy)
		assert.InDelta(t, 1.0, bleuScore(tokens, tokens), 1e-9)
	})

	t.Run("disjoint stays above zero with smoothing", func(t *testing.T) {
		a := tokenize("alpha beta gamma delta epsilon")
		b := tokenize("one two three four five")
		score := bleuScore(a, b)
		assert.Greater(t, score, 0.0)
		assert.Less(t, score, 0.2)
	})

	t.Run("short candidate is brevity-penalized", func(t *testing.T) {
		ref := tokenize("access control policy covering identification authentication and authorization requirements")
		full := bleuScore(ref, ref)
		truncated := bleuScore(ref[:3], ref)
		assert.Less(t, truncated, full)
	})

	t.Run("empty inputs", func(t *testing.T) {
		assert.Zero(t, bleuScore(nil, tokenize("reference")))
		assert.Zero(t, bleuScore(tokenize("candidate"), nil))
	})

	t.Run("clipping caps repeated tokens", func(t *testing.T) {
		candidate := tokenize("the the the the the the")
		reference := tokenize("the cat sat on the mat")
		matched, total := nGramMatches(candidate, reference, 1)
		assert.Equal(t, 2, matched, "candidate unigram credit is clipped at the reference count")
		assert.Equal(t, 6, total)
	})
}

func TestRougeLScore(t *testing.T) {
	t.Run("identical", func(t *testing.T) {
		tokens := tokenize(nistPolicy)
		assert.InDelta(t, 1.0, rougeLScore(tokens, tokens), 1e-9)
	})

	t.Run("subsequence recall", func(t *testing.T) {
		candidate := tokenize("access shall be logged")
		reference := tokenize("all access to systems shall always be logged")
		// LCS is "access shall be logged" = 4 of 8 reference tokens.
		assert.InDelta(t, 0.5, rougeLScore(candidate, reference), 1e-9)
	})

	t.Run("empty inputs", func(t *testing.T) {
		assert.Zero(t, rougeLScore(nil, tokenize("reference")))
	})
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"risk", "assessment", "drives", "controls"},
		tokenize("Risk-Assessment:   drives,\n(controls)!"))
	assert.Empty(t, tokenize("!!! --- ..."))
}

func TestLoadReferences(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b_policy.md"), []byte("# Markdown policy"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a_policy.txt"), []byte("Plain text policy"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "c_policy.json"),
		[]byte(`{"generated_text": "JSON policy body"}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ignored.yaml"), []byte("not: loaded"), 0o644))

	refs, err := LoadReferences(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"Plain text policy", "# Markdown policy", "JSON policy body"}, refs)
}

func TestLoadReferencesMissingDir(t *testing.T) {
	_, err := LoadReferences(filepath.Join(t.TempDir(), "absent"))
	require.Error(t, err)
}

func TestWriteResults(t *testing.T) {
	dir := t.TempDir()
	results := []model.EvaluationResult{
		{Framework: model.FrameworkNISTCSF, BLEUScore: 0.62, RougeLScore: 0.55, ComplianceScore: 0.9, QualityScore: 0.68},
		{Framework: model.FrameworkISO27001, Incomplete: true},
	}

	jsonPath, mdPath, err := WriteResults(dir, results)
	require.NoError(t, err)

	data, err := os.ReadFile(jsonPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"count": 2`)

	md, err := os.ReadFile(mdPath)
	require.NoError(t, err)
	report := string(md)
	assert.Contains(t, report, "NIST_CSF")
	assert.Contains(t, report, "✅")
	assert.True(t, strings.Contains(report, "incomplete"), "incomplete results are flagged in the report")
}
