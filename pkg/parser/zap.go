package parser

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/user/policygen/pkg/model"
)

type zapReport struct {
	Sites []zapSite `json:"site"`
}

type zapSite struct {
	Name   string     `json:"@name"`
	Alerts []zapAlert `json:"alerts"`
}

type zapAlert struct {
	PluginID  string `json:"pluginid"`
	Alert     string `json:"alert"`
	RiskDesc  string `json:"riskdesc"`
	Desc      string `json:"desc"`
	Solution  string `json:"solution"`
	CWEID     string `json:"cweid"`
	Instances []struct {
		URI    string `json:"uri"`
		Method string `json:"method"`
	} `json:"instances"`
}

// parseZAP handles the OWASP ZAP JSON report. ZAP encodes severity as a
// "riskdesc" like "High (Medium)"; the leading word is the risk level.
func (p *Parser) parseZAP(path string, data []byte) ([]model.VulnerabilityRecord, error) {
	var report zapReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}

	var records []model.VulnerabilityRecord
	for _, site := range report.Sites {
		for _, alert := range site.Alerts {
			if alert.PluginID == "" {
				p.logger.Warn().Str("path", path).Str("site", site.Name).
					Msg("skipping zap alert without pluginid")
				continue
			}

			location := site.Name
			if len(alert.Instances) > 0 {
				location = alert.Instances[0].URI
			}

			rec := model.VulnerabilityRecord{
				ID:             fmt.Sprintf("zap:%s:%s", alert.PluginID, site.Name),
				Severity:       model.ParseSeverity(zapRisk(alert.RiskDesc)),
				Description:    strings.TrimSpace(alert.Alert + ": " + stripTags(alert.Desc)),
				Location:       location,
				Category:       model.CategoryDAST,
				SourceScanner:  ScannerZAP,
				Recommendation: stripTags(alert.Solution),
			}
			if alert.CWEID != "" && alert.CWEID != "-1" {
				rec.CWE = "CWE-" + alert.CWEID
			}
			records = append(records, rec)
		}
	}
	return records, nil
}

func zapRisk(riskDesc string) string {
	fields := strings.Fields(riskDesc)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// stripTags removes the simple HTML markup ZAP embeds in descriptions.
func stripTags(s string) string {
	var sb strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			sb.WriteRune(r)
		}
	}
	return strings.TrimSpace(sb.String())
}
