package parser

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/user/policygen/pkg/model"
)

type npmAuditReport struct {
	Vulnerabilities map[string]npmAuditEntry `json:"vulnerabilities"`
}

type npmAuditEntry struct {
	Name     string            `json:"name"`
	Severity string            `json:"severity"`
	Range    string            `json:"range"`
	Via      []json.RawMessage `json:"via"`
}

type npmAuditAdvisory struct {
	Title string   `json:"title"`
	URL   string   `json:"url"`
	CWE   []string `json:"cwe"`
	CVSS  struct {
		Score float64 `json:"score"`
	} `json:"cvss"`
}

// parseNpmAudit handles the npm audit v7+ JSON format, where findings are
// keyed by package name. Keys are visited in sorted order so parsing the
// same file twice yields identical record lists.
func (p *Parser) parseNpmAudit(path string, data []byte) ([]model.VulnerabilityRecord, error) {
	var report npmAuditReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}

	names := make([]string, 0, len(report.Vulnerabilities))
	for name := range report.Vulnerabilities {
		names = append(names, name)
	}
	sort.Strings(names)

	var records []model.VulnerabilityRecord
	for _, name := range names {
		entry := report.Vulnerabilities[name]

		// The "via" list mixes advisory objects with bare strings naming
		// transitively vulnerable packages; only the objects carry detail.
		advisory := firstAdvisory(entry.Via)
		description := fmt.Sprintf("Vulnerable dependency %s (%s)", name, entry.Range)
		if advisory != nil && advisory.Title != "" {
			description = advisory.Title
		}

		rec := model.VulnerabilityRecord{
			ID:            fmt.Sprintf("npm:%s", name),
			Severity:      model.ParseSeverity(entry.Severity),
			Description:   description,
			Location:      fmt.Sprintf("%s@%s", name, entry.Range),
			Category:      model.CategorySCA,
			SourceScanner: ScannerNpmAudit,
		}
		if advisory != nil {
			rec.CVSS = advisory.CVSS.Score
			rec.CWE = firstCWE(advisory.CWE)
			if advisory.URL != "" {
				rec.Recommendation = "See " + advisory.URL
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

func firstAdvisory(via []json.RawMessage) *npmAuditAdvisory {
	for _, raw := range via {
		var adv npmAuditAdvisory
		if err := json.Unmarshal(raw, &adv); err == nil && adv.Title != "" {
			return &adv
		}
	}
	return nil
}
