package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/user/policygen/pkg/aggregator"
	"github.com/user/policygen/pkg/llm"
	"github.com/user/policygen/pkg/model"
	"github.com/user/policygen/pkg/prompt"
)

// scriptedGenerator succeeds unless the prompt mentions a poisoned marker,
// in which case it returns empty text like a silently failing backend.
type scriptedGenerator struct {
	mu       sync.Mutex
	calls    int
	failWhen string
}

func (g *scriptedGenerator) Generate(ctx context.Context, promptText string, params llm.Params) (string, error) {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()
	if g.failWhen != "" && strings.Contains(promptText, g.failWhen) {
		return "", nil
	}
	return "Generated security policy body.", nil
}

func (g *scriptedGenerator) Model() string { return "stub-model" }

func testSummary() *aggregator.Summary {
	sast := model.VulnerabilityBatch{Key: "SAST", Records: []model.VulnerabilityRecord{
		{ID: "B201:app.py:10", Severity: model.SeverityHigh, Description: "debug mode enabled", Category: model.CategorySAST},
		{ID: "B105:config.py:4", Severity: model.SeverityLow, Description: "hardcoded password", Category: model.CategorySAST},
	}}
	sca := model.VulnerabilityBatch{Key: "SCA", Records: []model.VulnerabilityRecord{
		{ID: "CVE-2023-1234", Severity: model.SeverityMedium, Description: "sql injection in orm", Category: model.CategorySCA},
	}}
	return &aggregator.Summary{
		Batches: map[string]model.VulnerabilityBatch{
			"SAST": sast,
			"SCA":  sca,
		},
		TotalRecords: 3,
	}
}

func newTestOrchestrator(t *testing.T, gen llm.Generator, outputDir string) *Orchestrator {
	t.Helper()
	engine, err := prompt.NewEngine(prompt.Options{})
	require.NoError(t, err)
	client := llm.NewClient(gen, nil, llm.Options{
		MaxRetries: 1, BaseDelay: time.Millisecond, Timeout: time.Second,
	}, zerolog.Nop())
	return New(engine, client, Options{OutputDir: outputDir, Workers: 2}, zerolog.Nop())
}

func TestGeneratePolicies(t *testing.T) {
	dir := t.TempDir()
	gen := &scriptedGenerator{}
	orch := newTestOrchestrator(t, gen, dir)

	frameworks := []model.Framework{model.FrameworkNISTCSF, model.FrameworkISO27001}
	result, err := orch.GeneratePolicies(context.Background(), testSummary(), frameworks)
	require.NoError(t, err)

	require.Len(t, result.Documents, 4, "2 batches x 2 frameworks")
	assert.Empty(t, result.Failures)
	assert.Len(t, result.Files, 4)

	// Output order is (framework, batch key), independent of completion order.
	type pair struct {
		fw  model.Framework
		key string
	}
	var got []pair
	for _, doc := range result.Documents {
		got = append(got, pair{doc.Framework, doc.BatchKey})
	}
	assert.Equal(t, []pair{
		{model.FrameworkISO27001, "SAST"},
		{model.FrameworkISO27001, "SCA"},
		{model.FrameworkNISTCSF, "SAST"},
		{model.FrameworkNISTCSF, "SCA"},
	}, got)

	doc := result.Documents[0]
	assert.Equal(t, 1, doc.Version)
	assert.Equal(t, "stub-model", doc.ModelIdentifier)
	assert.Equal(t, "Generated security policy body.", doc.GeneratedText)
	assert.ElementsMatch(t, []string{"B201:app.py:10", "B105:config.py:4"}, doc.VulnerabilitiesAddressed)
	assert.False(t, doc.GeneratedAt.IsZero())

	for _, file := range result.Files {
		_, err := os.Stat(file)
		require.NoError(t, err)
		_, err = os.Stat(strings.TrimSuffix(file, ".json") + ".md")
		require.NoError(t, err, "every policy gets a Markdown rendering")
	}
}

func TestGeneratePoliciesPartialFailure(t *testing.T) {
	dir := t.TempDir()
	// Only the SCA batch's prompt mentions this description; its generations
	// come back empty until the retry bound is exhausted.
	gen := &scriptedGenerator{failWhen: "sql injection in orm"}
	orch := newTestOrchestrator(t, gen, dir)

	frameworks := []model.Framework{model.FrameworkNISTCSF}
	result, err := orch.GeneratePolicies(context.Background(), testSummary(), frameworks)
	require.NoError(t, err, "a failed batch must not fail the run")

	require.Len(t, result.Documents, 1)
	assert.Equal(t, "SAST", result.Documents[0].BatchKey)

	require.Len(t, result.Failures, 1)
	failure := result.Failures[0]
	assert.Equal(t, "SCA", failure.BatchKey)
	assert.Equal(t, model.FrameworkNISTCSF, failure.Framework)
	assert.Contains(t, failure.Reason, "empty response")
}

func TestGeneratePoliciesSkipsEmptyBatches(t *testing.T) {
	dir := t.TempDir()
	gen := &scriptedGenerator{}
	orch := newTestOrchestrator(t, gen, dir)

	summary := testSummary()
	summary.Batches["EMPTY"] = model.VulnerabilityBatch{Key: "EMPTY"}

	result, err := orch.GeneratePolicies(context.Background(), summary,
		[]model.Framework{model.FrameworkCISControls})
	require.NoError(t, err)
	assert.Len(t, result.Documents, 2, "the empty batch produces neither a document nor a failure")
	assert.Empty(t, result.Failures)
}

func TestRefineVersionsDocument(t *testing.T) {
	dir := t.TempDir()
	gen := &scriptedGenerator{}
	orch := newTestOrchestrator(t, gen, dir)

	summary := testSummary()
	result, err := orch.GeneratePolicies(context.Background(), summary,
		[]model.Framework{model.FrameworkNISTCSF})
	require.NoError(t, err)
	require.NotEmpty(t, result.Documents)

	original := result.Documents[0]
	refined, err := orch.Refine(context.Background(), original, summary.Batches[original.BatchKey])
	require.NoError(t, err)

	assert.Equal(t, original.Version+1, refined.Version)
	assert.Equal(t, original.BatchKey, refined.BatchKey)
	assert.Equal(t, original.Framework, refined.Framework)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var v2 int
	for _, entry := range entries {
		if strings.Contains(entry.Name(), "_v2") {
			v2++
		}
	}
	assert.Equal(t, 2, v2, "refined policy written as JSON and Markdown, original untouched")
}

func TestWriteDocumentFilename(t *testing.T) {
	dir := t.TempDir()
	orch := newTestOrchestrator(t, &scriptedGenerator{}, dir)

	doc := model.PolicyDocument{
		Framework:     model.FrameworkISO27001,
		BatchKey:      "SCA/HIGH",
		GeneratedText: "body",
		GeneratedAt:   time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
		Version:       1,
	}
	path, err := orch.writeDocument(doc)
	require.NoError(t, err)

	assert.Equal(t, "iso_27001_sca_high_policy_20260314_093000.json", filepath.Base(path))
}
