// Package prompt renders framework-specific LLM prompts from vulnerability
// batches, within a fixed character budget.
package prompt

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/user/policygen/pkg/model"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

const (
	DefaultMaxRecords = 10
	DefaultMaxChars   = 8000
)

var templateNames = map[model.Framework]string{
	model.FrameworkNISTCSF:     "nist_csf.tmpl",
	model.FrameworkISO27001:    "iso_27001.tmpl",
	model.FrameworkCISControls: "cis_controls.tmpl",
}

// Options bound how much of a batch makes it into a prompt, to respect the
// backend's context limits.
type Options struct {
	MaxRecords int
	MaxChars   int
}

type recordLine struct {
	Severity model.Severity
	Title    string
}

type policyData struct {
	Framework string
	Summary   string
	Records   []recordLine
	Omitted   int
}

type refinementData struct {
	Framework string
	Draft     string
	Summary   string
}

// Engine renders prompts from the fixed embedded template set. It performs
// no I/O beyond that set and has no side effects.
type Engine struct {
	opts       Options
	templates  *template.Template
	refinement *template.Template
}

func NewEngine(opts Options) (*Engine, error) {
	if opts.MaxRecords <= 0 {
		opts.MaxRecords = DefaultMaxRecords
	}
	if opts.MaxChars <= 0 {
		opts.MaxChars = DefaultMaxChars
	}

	templates, err := template.ParseFS(templateFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parsing prompt templates: %w", err)
	}
	return &Engine{
		opts:       opts,
		templates:  templates,
		refinement: templates.Lookup("refinement.tmpl"),
	}, nil
}

// PolicyPrompt renders the prompt for one batch and framework. When a batch
// exceeds MaxRecords, the highest-severity records are kept (stable order
// within equal severity) and the remainder is summarized by count, so the
// truncation is deterministic. The result never exceeds MaxChars.
func (e *Engine) PolicyPrompt(batch model.VulnerabilityBatch, framework model.Framework) (string, error) {
	tmplName, ok := templateNames[framework]
	if !ok {
		return "", &model.ConfigurationError{Msg: fmt.Sprintf("unknown framework %q", framework)}
	}
	if len(batch.Records) == 0 {
		return "", fmt.Errorf("empty batch %q submitted for prompt rendering", batch.Key)
	}

	sorted := batch.SortedBySeverity()
	limit := e.opts.MaxRecords
	if limit > len(sorted) {
		limit = len(sorted)
	}

	// Shrink the record list until the rendered prompt fits the budget.
	for n := limit; n >= 0; n-- {
		data := policyData{
			Framework: framework.String(),
			Summary:   summarize(batch),
			Records:   recordLines(sorted[:n]),
			Omitted:   len(sorted) - n,
		}
		var buf bytes.Buffer
		if err := e.templates.ExecuteTemplate(&buf, tmplName, data); err != nil {
			return "", fmt.Errorf("rendering %s prompt: %w", framework, err)
		}
		if buf.Len() <= e.opts.MaxChars {
			return buf.String(), nil
		}
	}

	// Even the record-free rendering is over budget; hard trim.
	var buf bytes.Buffer
	if err := e.templates.ExecuteTemplate(&buf, tmplName, policyData{
		Framework: framework.String(),
		Summary:   summarize(batch),
		Omitted:   len(sorted),
	}); err != nil {
		return "", fmt.Errorf("rendering %s prompt: %w", framework, err)
	}
	return buf.String()[:e.opts.MaxChars], nil
}

// RefinementPrompt renders a prompt asking the model to improve an existing
// policy draft against the batch it was generated from.
func (e *Engine) RefinementPrompt(draft string, batch model.VulnerabilityBatch, framework model.Framework) (string, error) {
	if _, ok := templateNames[framework]; !ok {
		return "", &model.ConfigurationError{Msg: fmt.Sprintf("unknown framework %q", framework)}
	}

	var buf bytes.Buffer
	err := e.refinement.Execute(&buf, refinementData{
		Framework: framework.String(),
		Draft:     draft,
		Summary:   summarize(batch),
	})
	if err != nil {
		return "", fmt.Errorf("rendering refinement prompt: %w", err)
	}
	if buf.Len() > e.opts.MaxChars {
		return buf.String()[:e.opts.MaxChars], nil
	}
	return buf.String(), nil
}

func recordLines(records []model.VulnerabilityRecord) []recordLine {
	lines := make([]recordLine, 0, len(records))
	for _, r := range records {
		title := r.Description
		if title == "" {
			title = r.ID
		}
		if len(title) > 120 {
			title = title[:120] + "..."
		}
		lines = append(lines, recordLine{Severity: r.Severity, Title: title})
	}
	return lines
}

// summarize produces the compact severity breakdown that heads every prompt.
func summarize(batch model.VulnerabilityBatch) string {
	counts := batch.SeverityCounts()
	var sb strings.Builder
	fmt.Fprintf(&sb, "Total Vulnerabilities: %d\n", len(batch.Records))
	sb.WriteString("By Severity:\n")
	for _, sev := range model.Severities {
		if counts[sev] > 0 {
			fmt.Fprintf(&sb, "  - %s: %d\n", sev, counts[sev])
		}
	}
	return sb.String()
}
