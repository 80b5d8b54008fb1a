package parser

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/user/policygen/pkg/model"
)

const banditFixture = `{
  "results": [
    {
      "test_id": "B201",
      "test_name": "flask_debug_true",
      "issue_text": "A Flask app appears to be run with debug=True.",
      "issue_severity": "HIGH",
      "issue_confidence": "MEDIUM",
      "filename": "app.py",
      "line_number": 10,
      "issue_cwe": {"id": 94},
      "more_info": "https://bandit.readthedocs.io/en/latest/plugins/b201_flask_debug_true.html"
    },
    {
      "test_id": "B105",
      "test_name": "hardcoded_password_string",
      "issue_text": "Possible hardcoded password.",
      "issue_severity": "LOW",
      "issue_confidence": "MEDIUM",
      "filename": "config.py",
      "line_number": 4
    },
    {
      "test_name": "orphan_without_id",
      "issue_text": "should be skipped",
      "issue_severity": "HIGH",
      "filename": "x.py",
      "line_number": 1
    }
  ]
}`

func writeFixture(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseBandit(t *testing.T) {
	p := New(zerolog.Nop())
	path := writeFixture(t, "bandit_report.json", banditFixture)

	records, err := p.ParseFile(path, ScannerBandit)
	require.NoError(t, err)
	require.Len(t, records, 2, "result without test_id must be skipped")

	first := records[0]
	assert.Equal(t, "B201:app.py:10", first.ID)
	assert.Equal(t, model.SeverityHigh, first.Severity)
	assert.Equal(t, "app.py:10", first.Location)
	assert.Equal(t, "CWE-94", first.CWE)
	assert.Equal(t, model.CategorySAST, first.Category)
	assert.Equal(t, ScannerBandit, first.SourceScanner)
	assert.Contains(t, first.Recommendation, "bandit.readthedocs.io")

	assert.Equal(t, "B105:config.py:4", records[1].ID)
	assert.Equal(t, model.SeverityLow, records[1].Severity)
	assert.Empty(t, records[1].CWE)
}

func TestParseSafetyWrappedAndBare(t *testing.T) {
	p := New(zerolog.Nop())

	wrapped := `{"vulnerabilities": [
		{"package_name": "django", "vulnerability_id": "CVE-2023-1234",
		 "advisory": "SQL injection in ORM", "severity": "high",
		 "installed_version": "3.2.0", "affected_versions": "<3.2.18"}
	]}`
	bare := `[
		{"package_name": "requests", "advisory": "CRLF injection",
		 "installed_version": "2.19.0"}
	]`

	records, err := p.ParseFile(writeFixture(t, "safety_report.json", wrapped), ScannerSafety)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "CVE-2023-1234", records[0].ID)
	assert.Equal(t, model.SeverityHigh, records[0].Severity)
	assert.Equal(t, model.CategorySCA, records[0].Category)
	assert.Contains(t, records[0].Recommendation, "<3.2.18")

	records, err = p.ParseFile(writeFixture(t, "safety_old.json", bare), ScannerSafety)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "safety:requests:2.19.0", records[0].ID, "missing vulnerability_id gets a synthetic one")
	assert.Equal(t, model.SeverityInfo, records[0].Severity, "missing severity coerces to INFO")
}

func TestParseNpmAuditDeterministic(t *testing.T) {
	p := New(zerolog.Nop())
	fixture := `{"vulnerabilities": {
		"lodash": {
			"name": "lodash", "severity": "critical", "range": "<4.17.21",
			"via": [
				{"title": "Prototype Pollution", "url": "https://github.com/advisories/GHSA-x", "cwe": ["CWE-1321"], "cvss": {"score": 9.8}}
			]
		},
		"axios": {
			"name": "axios", "severity": "moderate", "range": "<1.6.0",
			"via": ["follow-redirects"]
		}
	}}`
	path := writeFixture(t, "npm_audit_report.json", fixture)

	records, err := p.ParseFile(path, ScannerNpmAudit)
	require.NoError(t, err)
	require.Len(t, records, 2)

	// Map iteration must not leak into the output order.
	assert.Equal(t, "npm:axios", records[0].ID)
	assert.Equal(t, "npm:lodash", records[1].ID)
	assert.Equal(t, model.SeverityMedium, records[0].Severity, "npm \"moderate\" maps to MEDIUM")
	assert.Equal(t, model.SeverityCritical, records[1].Severity)
	assert.Equal(t, 9.8, records[1].CVSS)
	assert.Equal(t, "CWE-1321", records[1].CWE)

	again, err := p.ParseFile(path, ScannerNpmAudit)
	require.NoError(t, err)
	assert.Equal(t, records, again)
}

func TestParseZAP(t *testing.T) {
	p := New(zerolog.Nop())
	fixture := `{"site": [{
		"@name": "https://example.test",
		"alerts": [
			{
				"pluginid": "10038",
				"alert": "Content Security Policy Header Not Set",
				"riskdesc": "Medium (High)",
				"desc": "<p>CSP is an added layer of security.</p>",
				"solution": "<p>Set the CSP header.</p>",
				"cweid": "693",
				"instances": [{"uri": "https://example.test/login", "method": "GET"}]
			},
			{"alert": "no plugin id, skipped", "riskdesc": "High"}
		]
	}]}`

	records, err := p.ParseFile(writeFixture(t, "zap_report.json", fixture), ScannerZAP)
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, "zap:10038:https://example.test", rec.ID)
	assert.Equal(t, model.SeverityMedium, rec.Severity, "leading word of riskdesc is the risk level")
	assert.Equal(t, "https://example.test/login", rec.Location)
	assert.Equal(t, model.CategoryDAST, rec.Category)
	assert.Equal(t, "CWE-693", rec.CWE)
	assert.NotContains(t, rec.Description, "<p>", "HTML markup is stripped")
	assert.Equal(t, "Set the CSP header.", rec.Recommendation)
}

func TestParseDependencyCheckJSON(t *testing.T) {
	p := New(zerolog.Nop())
	fixture := `{"dependencies": [{
		"fileName": "log4j-core-2.14.1.jar",
		"vulnerabilities": [
			{
				"name": "CVE-2021-44228",
				"description": "JNDI lookup remote code execution.",
				"cwes": ["CWE-502", "CWE-400"],
				"cvssv3": {"baseScore": 10.0}
			}
		]
	}]}`

	records, err := p.ParseFile(writeFixture(t, "dependency_check_report.json", fixture), ScannerDependencyCheck)
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, "CVE-2021-44228:log4j-core-2.14.1.jar", rec.ID)
	assert.Equal(t, model.SeverityCritical, rec.Severity, "missing severity derives from the CVSS score")
	assert.Equal(t, 10.0, rec.CVSS)
	assert.Equal(t, "CWE-502", rec.CWE)
	assert.Equal(t, model.CategorySCA, rec.Category)
}

func TestParseDependencyCheckXML(t *testing.T) {
	p := New(zerolog.Nop())
	fixture := `<?xml version="1.0"?>
<analysis xmlns="https://jeremylong.github.io/DependencyCheck/dependency-check.2.5.xsd">
  <dependencies>
    <dependency>
      <fileName>jackson-databind-2.9.8.jar</fileName>
      <vulnerabilities>
        <vulnerability>
          <name>CVE-2019-12086</name>
          <severity>HIGH</severity>
          <description>Polymorphic typing issue.</description>
          <cwes><cwe>CWE-200</cwe></cwes>
        </vulnerability>
      </vulnerabilities>
    </dependency>
  </dependencies>
</analysis>`

	records, err := p.ParseFile(writeFixture(t, "dependency_check_report.xml", fixture), ScannerDependencyCheck)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "CVE-2019-12086:jackson-databind-2.9.8.jar", records[0].ID)
	assert.Equal(t, model.SeverityHigh, records[0].Severity)
	assert.Equal(t, "CWE-200", records[0].CWE)
}

func TestParseFileErrors(t *testing.T) {
	p := New(zerolog.Nop())

	t.Run("unknown scanner tag", func(t *testing.T) {
		_, err := p.ParseFile("whatever.json", "fortify")
		var cfgErr *model.ConfigurationError
		require.ErrorAs(t, err, &cfgErr)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := p.ParseFile(filepath.Join(t.TempDir(), "absent.json"), ScannerBandit)
		var parseErr *ParseError
		require.ErrorAs(t, err, &parseErr)
		assert.True(t, errors.Is(err, os.ErrNotExist))
	})

	t.Run("malformed json", func(t *testing.T) {
		path := writeFixture(t, "bandit_report.json", "{not json")
		_, err := p.ParseFile(path, ScannerBandit)
		var parseErr *ParseError
		require.ErrorAs(t, err, &parseErr)
		assert.Equal(t, path, parseErr.Path)
	})
}

func TestDetectScanner(t *testing.T) {
	cases := map[string]string{
		"bandit_report.json":           ScannerBandit,
		"reports/dependency_check.xml": ScannerDependencyCheck,
		"owasp-report.json":            ScannerDependencyCheck,
		"safety_report.json":           ScannerSafety,
		"npm_audit_report.json":        ScannerNpmAudit,
		"ZAP_Report.json":              ScannerZAP,
	}
	for path, want := range cases {
		got, ok := DetectScanner(path)
		require.True(t, ok, path)
		assert.Equal(t, want, got, path)
	}

	_, ok := DetectScanner("mystery_scan.json")
	assert.False(t, ok)
}

func TestParseFileAuto(t *testing.T) {
	p := New(zerolog.Nop())
	path := writeFixture(t, "bandit_results.json", banditFixture)

	records, err := p.ParseFileAuto(path)
	require.NoError(t, err)
	assert.Len(t, records, 2)

	_, err = p.ParseFileAuto("unrecognizable.json")
	var cfgErr *model.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
}
