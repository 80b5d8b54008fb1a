package model

import "strings"

// Severity is the normalized severity level shared by all scanners.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
	SeverityInfo     Severity = "INFO"
)

// Severities lists all levels from most to least severe.
var Severities = []Severity{
	SeverityCritical,
	SeverityHigh,
	SeverityMedium,
	SeverityLow,
	SeverityInfo,
}

// Weight returns a numeric weight for sorting and thresholding (higher = more severe).
func (s Severity) Weight() int {
	switch s {
	case SeverityCritical:
		return 5
	case SeverityHigh:
		return 4
	case SeverityMedium:
		return 3
	case SeverityLow:
		return 2
	case SeverityInfo:
		return 1
	default:
		return 0
	}
}

func (s Severity) String() string {
	return string(s)
}

// ParseSeverity normalizes scanner-specific severity vocabularies to the
// five-level enum. Unrecognized values coerce to INFO so that partial or
// malformed scanner output never aborts a run.
func ParseSeverity(raw string) Severity {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "CRITICAL", "BLOCKER":
		return SeverityCritical
	case "HIGH", "ERROR", "IMPORTANT":
		return SeverityHigh
	case "MEDIUM", "MODERATE", "WARNING":
		return SeverityMedium
	case "LOW", "MINOR":
		return SeverityLow
	case "INFO", "INFORMATIONAL", "NEGLIGIBLE", "NOTE":
		return SeverityInfo
	default:
		return SeverityInfo
	}
}

// SeverityFromCVSS maps a CVSS base score to the severity bands used by
// NVD and Dependency-Check.
func SeverityFromCVSS(score float64) Severity {
	switch {
	case score >= 9.0:
		return SeverityCritical
	case score >= 7.0:
		return SeverityHigh
	case score >= 4.0:
		return SeverityMedium
	case score > 0.0:
		return SeverityLow
	default:
		return SeverityInfo
	}
}
