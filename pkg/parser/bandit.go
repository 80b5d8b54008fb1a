package parser

import (
	"encoding/json"
	"fmt"

	"github.com/user/policygen/pkg/model"
)

type banditReport struct {
	Results []banditResult `json:"results"`
}

type banditResult struct {
	TestID          string `json:"test_id"`
	TestName        string `json:"test_name"`
	IssueText       string `json:"issue_text"`
	IssueSeverity   string `json:"issue_severity"`
	IssueConfidence string `json:"issue_confidence"`
	Filename        string `json:"filename"`
	LineNumber      int    `json:"line_number"`
	IssueCWE        *struct {
		ID int `json:"id"`
	} `json:"issue_cwe"`
	MoreInfo string `json:"more_info"`
}

// parseBandit handles Bandit's JSON output. Bandit reports HIGH/MEDIUM/LOW
// severities only; anything else coerces to INFO.
func (p *Parser) parseBandit(path string, data []byte) ([]model.VulnerabilityRecord, error) {
	var report banditReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}

	var records []model.VulnerabilityRecord
	for _, r := range report.Results {
		if r.TestID == "" {
			p.logger.Warn().Str("path", path).Msg("skipping bandit result without test_id")
			continue
		}
		rec := model.VulnerabilityRecord{
			ID:            fmt.Sprintf("%s:%s:%d", r.TestID, r.Filename, r.LineNumber),
			Severity:      model.ParseSeverity(r.IssueSeverity),
			Description:   r.IssueText,
			Location:      fmt.Sprintf("%s:%d", r.Filename, r.LineNumber),
			Category:      model.CategorySAST,
			SourceScanner: ScannerBandit,
		}
		if r.IssueCWE != nil && r.IssueCWE.ID > 0 {
			rec.CWE = fmt.Sprintf("CWE-%d", r.IssueCWE.ID)
		}
		if r.MoreInfo != "" {
			rec.Recommendation = "See " + r.MoreInfo
		}
		records = append(records, rec)
	}
	return records, nil
}
