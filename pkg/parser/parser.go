// Package parser converts scanner-native report files (JSON or XML, schema
// varying per tool) into normalized vulnerability records.
package parser

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/user/policygen/pkg/model"
)

// Supported scanner tags.
const (
	ScannerBandit          = "bandit"
	ScannerDependencyCheck = "dependency_check"
	ScannerSafety          = "safety"
	ScannerNpmAudit        = "npm_audit"
	ScannerZAP             = "zap"
)

// ParseError signals a malformed or unreadable report file. It is local to
// one file and never aborts a directory aggregation on its own.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse report %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

type parseFunc func(p *Parser, path string, data []byte) ([]model.VulnerabilityRecord, error)

var parsers = map[string]parseFunc{
	ScannerBandit:          (*Parser).parseBandit,
	ScannerDependencyCheck: (*Parser).parseDependencyCheck,
	ScannerSafety:          (*Parser).parseSafety,
	ScannerNpmAudit:        (*Parser).parseNpmAudit,
	ScannerZAP:             (*Parser).parseZAP,
}

// Parser reads one scanner's report file and emits normalized records.
// It is a pure read-and-transform component with no other side effects.
type Parser struct {
	logger zerolog.Logger
}

func New(logger zerolog.Logger) *Parser {
	return &Parser{logger: logger.With().Str("component", "parser").Logger()}
}

// ParseFile parses the report at path for the given scanner tag. Record
// order preserves the source file's order. Unknown or malformed entries
// within an otherwise valid report are skipped with a logged warning.
func (p *Parser) ParseFile(path, scanner string) ([]model.VulnerabilityRecord, error) {
	parse, ok := parsers[scanner]
	if !ok {
		return nil, &model.ConfigurationError{Msg: fmt.Sprintf("unsupported scanner tag %q", scanner)}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}

	records, err := parse(p, path, data)
	if err != nil {
		return nil, err
	}

	p.logger.Debug().
		Str("scanner", scanner).
		Str("path", path).
		Int("records", len(records)).
		Msg("parsed report")
	return records, nil
}

// ParseFileAuto infers the scanner tag from the filename before parsing.
func (p *Parser) ParseFileAuto(path string) ([]model.VulnerabilityRecord, error) {
	scanner, ok := DetectScanner(path)
	if !ok {
		return nil, &model.ConfigurationError{Msg: fmt.Sprintf("cannot infer scanner from filename %q", path)}
	}
	return p.ParseFile(path, scanner)
}

// DetectScanner infers the producing tool from the report filename, the
// same convention the scanner runners use when writing reports.
func DetectScanner(path string) (string, bool) {
	name := strings.ToLower(path)
	switch {
	case strings.Contains(name, "bandit"):
		return ScannerBandit, true
	case strings.Contains(name, "dependency") || strings.Contains(name, "owasp"):
		return ScannerDependencyCheck, true
	case strings.Contains(name, "safety"):
		return ScannerSafety, true
	case strings.Contains(name, "npm"):
		return ScannerNpmAudit, true
	case strings.Contains(name, "zap"):
		return ScannerZAP, true
	}
	return "", false
}
