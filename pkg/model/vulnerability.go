package model

import (
	"fmt"
	"sort"
)

// Category classifies the kind of analysis that produced a finding.
type Category string

const (
	CategorySAST Category = "SAST"
	CategorySCA  Category = "SCA"
	CategoryDAST Category = "DAST"
)

func (c Category) String() string {
	return string(c)
}

// VulnerabilityRecord is one normalized finding from one scanner. Records
// are immutable after parsing; downstream stages only read them.
type VulnerabilityRecord struct {
	ID             string   `json:"id"`
	Severity       Severity `json:"severity"`
	Description    string   `json:"description"`
	Location       string   `json:"location"`
	CWE            string   `json:"cwe,omitempty"`
	CVSS           float64  `json:"cvss,omitempty"`
	Category       Category `json:"category"`
	SourceScanner  string   `json:"source_scanner"`
	Recommendation string   `json:"recommendation,omitempty"`
}

// VulnerabilityBatch is a named, ordered group of records sharing one
// grouping key (category or severity). Batches are never empty.
type VulnerabilityBatch struct {
	Key     string
	Records []VulnerabilityRecord
}

// SortedBySeverity returns the batch records ordered most severe first.
// The sort is stable so records of equal severity keep their source order.
func (b VulnerabilityBatch) SortedBySeverity() []VulnerabilityRecord {
	out := make([]VulnerabilityRecord, len(b.Records))
	copy(out, b.Records)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Severity.Weight() > out[j].Severity.Weight()
	})
	return out
}

// SeverityCounts tallies the batch by severity level.
func (b VulnerabilityBatch) SeverityCounts() map[Severity]int {
	counts := make(map[Severity]int)
	for _, r := range b.Records {
		counts[r.Severity]++
	}
	return counts
}

func (b VulnerabilityBatch) String() string {
	return fmt.Sprintf("batch %s (%d records)", b.Key, len(b.Records))
}
