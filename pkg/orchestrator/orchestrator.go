// Package orchestrator drives end-to-end policy generation across
// vulnerability batches and target frameworks.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/user/policygen/pkg/aggregator"
	"github.com/user/policygen/pkg/llm"
	"github.com/user/policygen/pkg/model"
	"github.com/user/policygen/pkg/prompt"
)

const DefaultWorkers = 3

// Options configure one orchestrator instance.
type Options struct {
	OutputDir string
	// Workers bounds concurrent LLM calls, to respect backend rate limits.
	Workers int
	Params  llm.Params
}

// BatchFailure records one batch whose generation failed after the LLM
// client exhausted its retries. Failed batches are skipped, not fatal.
type BatchFailure struct {
	BatchKey  string          `json:"batch_key"`
	Framework model.Framework `json:"framework"`
	Reason    string          `json:"reason"`
}

// RunResult is the outcome of one generation run: the documents produced,
// where they were written, and which batches failed and why.
type RunResult struct {
	Documents []model.PolicyDocument
	Files     []string
	Failures  []BatchFailure
}

type Orchestrator struct {
	engine *prompt.Engine
	client *llm.Client
	opts   Options
	logger zerolog.Logger
}

func New(engine *prompt.Engine, client *llm.Client, opts Options, logger zerolog.Logger) *Orchestrator {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	return &Orchestrator{
		engine: engine,
		client: client,
		opts:   opts,
		logger: logger.With().Str("component", "orchestrator").Logger(),
	}
}

type job struct {
	batch     model.VulnerabilityBatch
	framework model.Framework
}

// GeneratePolicies renders a prompt and calls the LLM for every
// (batch, framework) pair, with at most opts.Workers calls in flight.
// Batches are independent: one failed batch is recorded and skipped while
// the rest proceed. All dispatched calls finish before assembly, and the
// final document list is sorted by (framework, batch key) so output is
// deterministic regardless of completion order.
func (o *Orchestrator) GeneratePolicies(ctx context.Context, summary *aggregator.Summary, frameworks []model.Framework) (*RunResult, error) {
	var jobs []job
	for _, key := range summary.SortedKeys() {
		batch := summary.Batches[key]
		if len(batch.Records) == 0 {
			continue
		}
		for _, fw := range frameworks {
			jobs = append(jobs, job{batch: batch, framework: fw})
		}
	}

	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		sem    = make(chan struct{}, o.opts.Workers)
		result = &RunResult{}
	)

	for _, j := range jobs {
		wg.Add(1)
		go func(j job) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			doc, err := o.generateOne(ctx, j.batch, j.framework)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				o.logger.Error().Err(err).
					Str("batch", j.batch.Key).
					Str("framework", j.framework.String()).
					Msg("policy generation failed, skipping batch")
				result.Failures = append(result.Failures, BatchFailure{
					BatchKey:  j.batch.Key,
					Framework: j.framework,
					Reason:    err.Error(),
				})
				return
			}
			result.Documents = append(result.Documents, doc)
		}(j)
	}
	wg.Wait()

	sort.Slice(result.Documents, func(i, k int) bool {
		a, b := result.Documents[i], result.Documents[k]
		if a.Framework != b.Framework {
			return a.Framework < b.Framework
		}
		return a.BatchKey < b.BatchKey
	})
	sort.Slice(result.Failures, func(i, k int) bool {
		a, b := result.Failures[i], result.Failures[k]
		if a.Framework != b.Framework {
			return a.Framework < b.Framework
		}
		return a.BatchKey < b.BatchKey
	})

	for i := range result.Documents {
		file, err := o.writeDocument(result.Documents[i])
		if err != nil {
			return nil, err
		}
		result.Files = append(result.Files, file)
	}

	o.logger.Info().
		Int("generated", len(result.Documents)).
		Int("failed", len(result.Failures)).
		Msg("policy generation run complete")
	return result, nil
}

func (o *Orchestrator) generateOne(ctx context.Context, batch model.VulnerabilityBatch, framework model.Framework) (model.PolicyDocument, error) {
	promptText, err := o.engine.PolicyPrompt(batch, framework)
	if err != nil {
		return model.PolicyDocument{}, err
	}

	text, err := o.client.Generate(ctx, promptText, o.opts.Params)
	if err != nil {
		return model.PolicyDocument{}, err
	}

	ids := make([]string, 0, len(batch.Records))
	for _, rec := range batch.Records {
		ids = append(ids, rec.ID)
	}

	return model.PolicyDocument{
		Framework:                framework,
		BatchKey:                 batch.Key,
		VulnerabilitiesAddressed: ids,
		GeneratedText:            text,
		GeneratedAt:              time.Now().UTC(),
		ModelIdentifier:          o.client.Model(),
		Version:                  1,
	}, nil
}

// Refine produces a new, versioned document from an existing one; the
// original is never edited in place.
func (o *Orchestrator) Refine(ctx context.Context, doc model.PolicyDocument, batch model.VulnerabilityBatch) (model.PolicyDocument, error) {
	promptText, err := o.engine.RefinementPrompt(doc.GeneratedText, batch, doc.Framework)
	if err != nil {
		return model.PolicyDocument{}, err
	}

	text, err := o.client.Generate(ctx, promptText, o.opts.Params)
	if err != nil {
		return model.PolicyDocument{}, err
	}

	refined := doc
	refined.GeneratedText = text
	refined.GeneratedAt = time.Now().UTC()
	refined.ModelIdentifier = o.client.Model()
	refined.Version = doc.Version + 1

	if _, err := o.writeDocument(refined); err != nil {
		return model.PolicyDocument{}, err
	}
	return refined, nil
}

// writeDocument persists a policy as structured JSON plus a Markdown
// rendering. Filenames embed the framework, batch key, timestamp, and
// version so prior runs are never overwritten.
func (o *Orchestrator) writeDocument(doc model.PolicyDocument) (string, error) {
	if err := os.MkdirAll(o.opts.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("creating policy output directory: %w", err)
	}

	stem := fmt.Sprintf("%s_%s_policy_%s",
		strings.ToLower(doc.Framework.String()),
		sanitize(doc.BatchKey),
		doc.GeneratedAt.Format("20060102_150405"))
	if doc.Version > 1 {
		stem += fmt.Sprintf("_v%d", doc.Version)
	}

	jsonPath := filepath.Join(o.opts.OutputDir, stem+".json")
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(jsonPath, data, 0o644); err != nil {
		return "", err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "# Security Policy - %s\n\n", doc.Framework)
	fmt.Fprintf(&sb, "**Generated:** %s\n\n", doc.GeneratedAt.Format(time.RFC3339))
	fmt.Fprintf(&sb, "**Batch:** %s\n\n", doc.BatchKey)
	fmt.Fprintf(&sb, "**Vulnerabilities Addressed:** %d\n\n", len(doc.VulnerabilitiesAddressed))
	fmt.Fprintf(&sb, "**Model:** %s\n\n", doc.ModelIdentifier)
	sb.WriteString("---\n\n")
	sb.WriteString(doc.GeneratedText)
	sb.WriteString("\n")
	if err := os.WriteFile(filepath.Join(o.opts.OutputDir, stem+".md"), []byte(sb.String()), 0o644); err != nil {
		return "", err
	}

	return jsonPath, nil
}

func sanitize(key string) string {
	key = strings.ToLower(key)
	return strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			return r
		}
		return '_'
	}, key)
}
