package parser

import (
	"encoding/json"
	"fmt"

	"github.com/user/policygen/pkg/model"
)

type safetyVulnerability struct {
	PackageName      string `json:"package_name"`
	VulnerabilityID  string `json:"vulnerability_id"`
	Advisory         string `json:"advisory"`
	Severity         string `json:"severity"`
	InstalledVersion string `json:"installed_version"`
	AffectedVersions string `json:"affected_versions"`
	MoreInfoURL      string `json:"more_info_url"`
}

// parseSafety handles Safety's JSON output. Safety 2.x wraps findings in a
// "vulnerabilities" object; older versions emit a bare list. Safety does
// not always report a severity, in which case the record coerces to INFO.
func (p *Parser) parseSafety(path string, data []byte) ([]model.VulnerabilityRecord, error) {
	var vulns []safetyVulnerability
	var wrapped struct {
		Vulnerabilities []safetyVulnerability `json:"vulnerabilities"`
	}
	if err := json.Unmarshal(data, &wrapped); err == nil && wrapped.Vulnerabilities != nil {
		vulns = wrapped.Vulnerabilities
	} else {
		var list []safetyVulnerability
		if listErr := json.Unmarshal(data, &list); listErr != nil {
			return nil, &ParseError{Path: path, Err: listErr}
		}
		vulns = list
	}

	var records []model.VulnerabilityRecord
	for _, v := range vulns {
		if v.PackageName == "" {
			p.logger.Warn().Str("path", path).Msg("skipping safety entry without package_name")
			continue
		}
		id := v.VulnerabilityID
		if id == "" {
			id = fmt.Sprintf("safety:%s:%s", v.PackageName, v.InstalledVersion)
		}
		rec := model.VulnerabilityRecord{
			ID:            id,
			Severity:      model.ParseSeverity(v.Severity),
			Description:   v.Advisory,
			Location:      fmt.Sprintf("%s %s", v.PackageName, v.InstalledVersion),
			Category:      model.CategorySCA,
			SourceScanner: ScannerSafety,
		}
		if v.AffectedVersions != "" {
			rec.Recommendation = fmt.Sprintf("Upgrade %s out of affected range %s.", v.PackageName, v.AffectedVersions)
		}
		records = append(records, rec)
	}
	return records, nil
}
