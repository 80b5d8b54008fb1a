package parser

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/user/policygen/pkg/model"
)

type depCheckReport struct {
	Dependencies []depCheckDependency `json:"dependencies"`
}

type depCheckDependency struct {
	FileName        string `json:"fileName"`
	Vulnerabilities []struct {
		Name        string   `json:"name"`
		Severity    string   `json:"severity"`
		Description string   `json:"description"`
		CWEs        []string `json:"cwes"`
		CVSSV3      *struct {
			BaseScore float64 `json:"baseScore"`
		} `json:"cvssv3"`
		CVSSV2 *struct {
			Score float64 `json:"score"`
		} `json:"cvssv2"`
	} `json:"vulnerabilities"`
}

type depCheckXMLReport struct {
	XMLName      xml.Name `xml:"analysis"`
	Dependencies []struct {
		FileName        string `xml:"fileName"`
		Vulnerabilities []struct {
			Name        string   `xml:"name"`
			Severity    string   `xml:"severity"`
			Description string   `xml:"description"`
			CWEs        []string `xml:"cwes>cwe"`
		} `xml:"vulnerabilities>vulnerability"`
	} `xml:"dependencies>dependency"`
}

// parseDependencyCheck handles OWASP Dependency-Check output in both its
// JSON and XML report formats, chosen by file extension.
func (p *Parser) parseDependencyCheck(path string, data []byte) ([]model.VulnerabilityRecord, error) {
	if strings.HasSuffix(strings.ToLower(path), ".xml") {
		return p.parseDependencyCheckXML(path, data)
	}

	var report depCheckReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}

	var records []model.VulnerabilityRecord
	for _, dep := range report.Dependencies {
		for _, v := range dep.Vulnerabilities {
			if v.Name == "" {
				p.logger.Warn().Str("path", path).Str("dependency", dep.FileName).
					Msg("skipping dependency-check entry without a vulnerability name")
				continue
			}

			var cvss float64
			if v.CVSSV3 != nil {
				cvss = v.CVSSV3.BaseScore
			} else if v.CVSSV2 != nil {
				cvss = v.CVSSV2.Score
			}

			severity := model.ParseSeverity(v.Severity)
			if v.Severity == "" && cvss > 0 {
				severity = model.SeverityFromCVSS(cvss)
			}

			records = append(records, model.VulnerabilityRecord{
				ID:             fmt.Sprintf("%s:%s", v.Name, dep.FileName),
				Severity:       severity,
				Description:    v.Description,
				Location:       dep.FileName,
				CWE:            firstCWE(v.CWEs),
				CVSS:           cvss,
				Category:       model.CategorySCA,
				SourceScanner:  ScannerDependencyCheck,
				Recommendation: fmt.Sprintf("Upgrade %s to a version not affected by %s.", dep.FileName, v.Name),
			})
		}
	}
	return records, nil
}

func (p *Parser) parseDependencyCheckXML(path string, data []byte) ([]model.VulnerabilityRecord, error) {
	var report depCheckXMLReport
	if err := xml.Unmarshal(data, &report); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}

	var records []model.VulnerabilityRecord
	for _, dep := range report.Dependencies {
		for _, v := range dep.Vulnerabilities {
			if v.Name == "" {
				p.logger.Warn().Str("path", path).Str("dependency", dep.FileName).
					Msg("skipping dependency-check entry without a vulnerability name")
				continue
			}
			records = append(records, model.VulnerabilityRecord{
				ID:             fmt.Sprintf("%s:%s", v.Name, dep.FileName),
				Severity:       model.ParseSeverity(v.Severity),
				Description:    v.Description,
				Location:       dep.FileName,
				CWE:            firstCWE(v.CWEs),
				Category:       model.CategorySCA,
				SourceScanner:  ScannerDependencyCheck,
				Recommendation: fmt.Sprintf("Upgrade %s to a version not affected by %s.", dep.FileName, v.Name),
			})
		}
	}
	return records, nil
}

func firstCWE(cwes []string) string {
	if len(cwes) == 0 {
		return ""
	}
	return cwes[0]
}
