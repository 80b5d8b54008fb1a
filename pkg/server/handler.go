package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/user/policygen/pkg/aggregator"
	"github.com/user/policygen/pkg/model"
)

type handler struct {
	agg *aggregator.Aggregator
	cfg Config
}

func newHandler(agg *aggregator.Aggregator, cfg Config) *handler {
	return &handler{agg: agg, cfg: cfg}
}

func (h *handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, map[string]string{"status": "ok"})
}

// Summary reports severity counts and per-file parse status for the
// current report directory.
func (h *handler) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.agg.AggregateDir(h.cfg.ReportsDir, aggregator.GroupByCategory)
	if err != nil {
		var notFound *aggregator.NoReportsFoundError
		if errors.As(err, &notFound) {
			writeJSON(w, r, map[string]any{
				"total_records":   0,
				"severity_counts": map[model.Severity]int{},
			})
			return
		}
		writeError(w, r, err)
		return
	}

	batchSizes := make(map[string]int, len(summary.Batches))
	for key, batch := range summary.Batches {
		batchSizes[key] = len(batch.Records)
	}
	writeJSON(w, r, map[string]any{
		"total_records":   summary.TotalRecords,
		"severity_counts": summary.SeverityCounts,
		"batches":         batchSizes,
		"parsed_files":    summary.ParsedFiles,
		"skipped_files":   summary.SkippedFiles,
	})
}

func (h *handler) Vulnerabilities(w http.ResponseWriter, r *http.Request) {
	summary, err := h.agg.AggregateDir(h.cfg.ReportsDir, aggregator.GroupByCategory)
	if err != nil {
		var notFound *aggregator.NoReportsFoundError
		if errors.As(err, &notFound) {
			writeJSON(w, r, []model.VulnerabilityRecord{})
			return
		}
		writeError(w, r, err)
		return
	}

	var records []model.VulnerabilityRecord
	for _, key := range summary.SortedKeys() {
		records = append(records, summary.Batches[key].Records...)
	}
	writeJSON(w, r, records)
}

func (h *handler) Policies(w http.ResponseWriter, r *http.Request) {
	docs, err := loadJSONFiles[model.PolicyDocument](h.cfg.PoliciesDir)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, docs)
}

func (h *handler) Evaluations(w http.ResponseWriter, r *http.Request) {
	type evaluationRun struct {
		Results []model.EvaluationResult `json:"results"`
	}
	runs, err := loadJSONFiles[evaluationRun](h.cfg.EvaluationDir)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, runs)
}

// loadJSONFiles decodes every .json file in dir, in lexicographic order.
// A missing directory is an empty result, not an error.
func loadJSONFiles[T any](dir string) ([]T, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []T{}, nil
		}
		return nil, err
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".json") {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	out := make([]T, 0, len(names))
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		var item T
		if err := json.Unmarshal(data, &item); err != nil {
			// Skip files other tools may have dropped into the directory.
			continue
		}
		out = append(out, item)
	}
	return out, nil
}

func writeJSON(w http.ResponseWriter, r *http.Request, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	zerolog.Ctx(r.Context()).Error().Err(err).Msg("request failed")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
