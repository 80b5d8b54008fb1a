// Package aggregator merges normalized records from multiple scanner
// reports into deduplicated, grouped vulnerability batches.
package aggregator

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/user/policygen/pkg/model"
	"github.com/user/policygen/pkg/parser"
)

// GroupBy selects the batch partitioning key.
type GroupBy string

const (
	GroupByCategory GroupBy = "category"
	GroupBySeverity GroupBy = "severity"
	GroupByBoth     GroupBy = "category+severity"
)

// NoReportsFoundError signals that aggregation found no parseable input.
// A single bad file is skipped; this fires only when nothing parses.
type NoReportsFoundError struct {
	Dir string
}

func (e *NoReportsFoundError) Error() string {
	return fmt.Sprintf("no parseable vulnerability reports found in %s", e.Dir)
}

// Summary is the aggregation output: grouped batches plus the counts and
// per-file status the dashboard and run report consume.
type Summary struct {
	Batches        map[string]model.VulnerabilityBatch
	SeverityCounts map[model.Severity]int
	TotalRecords   int
	ParsedFiles    []string
	SkippedFiles   map[string]string
}

// SortedKeys returns the batch keys in lexicographic order, used to keep
// downstream output deterministic regardless of map iteration.
func (s *Summary) SortedKeys() []string {
	keys := make([]string, 0, len(s.Batches))
	for k := range s.Batches {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

type Aggregator struct {
	parser *parser.Parser
	logger zerolog.Logger
}

func New(p *parser.Parser, logger zerolog.Logger) *Aggregator {
	return &Aggregator{
		parser: p,
		logger: logger.With().Str("component", "aggregator").Logger(),
	}
}

// AggregateDir parses every report file in dir and groups the results.
// Files are visited in lexicographic order, which fixes the dedup
// tie-break: the first file processed wins. Non-report files are ignored;
// unparsable report files are logged and skipped.
func (a *Aggregator) AggregateDir(dir string, groupBy GroupBy) (*Summary, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading report directory: %w", err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".json" && ext != ".xml" {
			continue
		}
		if _, ok := parser.DetectScanner(entry.Name()); !ok {
			continue
		}
		paths = append(paths, filepath.Join(dir, entry.Name()))
	}

	summary, err := a.AggregateFiles(paths, groupBy)
	if err != nil {
		return nil, err
	}
	if len(summary.ParsedFiles) == 0 {
		return nil, &NoReportsFoundError{Dir: dir}
	}
	return summary, nil
}

// AggregateFiles parses the given report files in order, deduplicates by
// record id keeping the first occurrence, and partitions into batches.
// Empty batches are never produced.
func (a *Aggregator) AggregateFiles(paths []string, groupBy GroupBy) (*Summary, error) {
	summary := &Summary{
		Batches:        make(map[string]model.VulnerabilityBatch),
		SeverityCounts: make(map[model.Severity]int),
		SkippedFiles:   make(map[string]string),
	}

	seen := make(map[string]bool)
	var records []model.VulnerabilityRecord

	for _, path := range paths {
		parsed, err := a.parser.ParseFileAuto(path)
		if err != nil {
			a.logger.Warn().Err(err).Str("path", path).Msg("skipping unparsable report")
			summary.SkippedFiles[path] = err.Error()
			continue
		}
		summary.ParsedFiles = append(summary.ParsedFiles, path)
		for _, rec := range parsed {
			if seen[rec.ID] {
				continue
			}
			seen[rec.ID] = true
			records = append(records, rec)
		}
	}

	for _, rec := range records {
		key, err := batchKey(rec, groupBy)
		if err != nil {
			return nil, err
		}
		batch := summary.Batches[key]
		batch.Key = key
		batch.Records = append(batch.Records, rec)
		summary.Batches[key] = batch
		summary.SeverityCounts[rec.Severity]++
	}
	summary.TotalRecords = len(records)

	a.logger.Info().
		Int("files", len(summary.ParsedFiles)).
		Int("skipped", len(summary.SkippedFiles)).
		Int("records", summary.TotalRecords).
		Int("batches", len(summary.Batches)).
		Msg("aggregation complete")
	return summary, nil
}

func batchKey(rec model.VulnerabilityRecord, groupBy GroupBy) (string, error) {
	switch groupBy {
	case GroupByCategory:
		return string(rec.Category), nil
	case GroupBySeverity:
		return string(rec.Severity), nil
	case GroupByBoth:
		return string(rec.Category) + "/" + string(rec.Severity), nil
	default:
		return "", &model.ConfigurationError{Msg: fmt.Sprintf("unknown grouping key %q", groupBy)}
	}
}
