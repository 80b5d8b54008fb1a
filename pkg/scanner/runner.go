// Package scanner shells out to third-party security scanners and collects
// their report files for the parsing pipeline. Scanners are opaque
// subprocesses; only their output files are consumed downstream.
package scanner

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/user/policygen/pkg/model"
)

// Tool describes one external scanner invocation.
type Tool struct {
	Name     string
	Binary   string
	Category model.Category
	// ReportName is the filename written under the output directory; it
	// must match the parser's filename-based scanner detection.
	ReportName string
	// Args builds the command line. Tools that only write to stdout leave
	// reportPath out of their args and set CaptureStdout.
	Args          func(target, reportPath string) []string
	CaptureStdout bool
}

// Tools is the fixed set of supported scanners, in run order.
var Tools = []Tool{
	{
		Name:       "bandit",
		Binary:     "bandit",
		Category:   model.CategorySAST,
		ReportName: "bandit_report.json",
		Args: func(target, reportPath string) []string {
			return []string{"-r", target, "-f", "json", "-o", reportPath}
		},
	},
	{
		Name:       "safety",
		Binary:     "safety",
		Category:   model.CategorySCA,
		ReportName: "safety_report.json",
		Args: func(target, _ string) []string {
			return []string{"check", "--json", "-r", filepath.Join(target, "requirements.txt")}
		},
		CaptureStdout: true,
	},
	{
		Name:       "npm_audit",
		Binary:     "npm",
		Category:   model.CategorySCA,
		ReportName: "npm_audit_report.json",
		Args: func(target, _ string) []string {
			return []string{"audit", "--json", "--prefix", target}
		},
		CaptureStdout: true,
	},
	{
		Name:       "dependency_check",
		Binary:     "dependency-check",
		Category:   model.CategorySCA,
		ReportName: "dependency_check_report.json",
		Args: func(target, reportPath string) []string {
			return []string{"--scan", target, "--format", "JSON", "--out", reportPath, "--prettyPrint"}
		},
	},
	{
		Name:       "zap",
		Binary:     "zap-baseline.py",
		Category:   model.CategoryDAST,
		ReportName: "zap_report.json",
		Args: func(target, reportPath string) []string {
			return []string{"-t", target, "-J", reportPath}
		},
	},
}

type Runner struct {
	outputDir string
	logger    zerolog.Logger
}

func NewRunner(outputDir string, logger zerolog.Logger) *Runner {
	return &Runner{
		outputDir: outputDir,
		logger:    logger.With().Str("component", "scanner").Logger(),
	}
}

// Run invokes every requested scanner sequentially against target and
// returns a map of tool name to report path. A missing binary or failed
// scan is logged and skipped; the scan run only fails if the output
// directory cannot be created.
func (r *Runner) Run(ctx context.Context, target string, categories []model.Category) (map[string]string, error) {
	if err := os.MkdirAll(r.outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating report directory: %w", err)
	}

	wanted := make(map[model.Category]bool, len(categories))
	for _, c := range categories {
		wanted[c] = true
	}

	reports := make(map[string]string)
	for _, tool := range Tools {
		if len(wanted) > 0 && !wanted[tool.Category] {
			continue
		}
		path, err := r.runTool(ctx, tool, target)
		if err != nil {
			r.logger.Warn().Err(err).Str("tool", tool.Name).Msg("scanner skipped")
			continue
		}
		reports[tool.Name] = path
	}
	return reports, nil
}

func (r *Runner) runTool(ctx context.Context, tool Tool, target string) (string, error) {
	if _, err := exec.LookPath(tool.Binary); err != nil {
		return "", fmt.Errorf("%q binary not found, install it to enable the %s scanner", tool.Binary, tool.Name)
	}

	reportPath := filepath.Join(r.outputDir, tool.ReportName)
	r.logger.Info().Str("tool", tool.Name).Str("target", target).Msg("running scanner")

	cmd := exec.CommandContext(ctx, tool.Binary, tool.Args(target, reportPath)...)

	if tool.CaptureStdout {
		out, err := cmd.Output()
		// Most scanners exit non-zero when findings exist; the output is
		// still a valid report.
		if err != nil && len(out) == 0 {
			return "", fmt.Errorf("%s failed with no output: %w", tool.Name, err)
		}
		if writeErr := os.WriteFile(reportPath, out, 0o644); writeErr != nil {
			return "", writeErr
		}
		return reportPath, nil
	}

	if out, err := cmd.CombinedOutput(); err != nil {
		if _, statErr := os.Stat(reportPath); statErr != nil {
			return "", fmt.Errorf("%s failed: %w (output: %s)", tool.Name, err, string(out))
		}
		// Report written despite the findings exit code.
	}
	return reportPath, nil
}
