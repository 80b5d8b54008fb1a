// Package evaluator scores generated policy text against reference
// documents using BLEU, ROUGE-L, and framework control coverage.
package evaluator

import (
	_ "embed"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/user/policygen/pkg/model"
	"gopkg.in/yaml.v3"
)

//go:embed controls/frameworks.yaml
var controlsYAML []byte

// Weights is the fixed quality-score weighting. It is deliberately a named
// struct rather than inline constants so tests can assert on the exact
// documented values.
type Weights struct {
	BLEU       float64
	RougeL     float64
	Compliance float64
}

// DefaultWeights is the documented quality weighting, kept constant for
// reproducibility across runs.
var DefaultWeights = Weights{BLEU: 0.4, RougeL: 0.3, Compliance: 0.3}

type frameworkControls struct {
	Keywords   []string
	ControlIDs []string
}

type controlsFile struct {
	Frameworks []struct {
		Name       string   `yaml:"name"`
		Keywords   []string `yaml:"keywords"`
		ControlIDs []string `yaml:"control_ids"`
	} `yaml:"frameworks"`
}

type Evaluator struct {
	weights  Weights
	controls map[model.Framework]frameworkControls
	logger   zerolog.Logger
}

func New(weights Weights, logger zerolog.Logger) (*Evaluator, error) {
	var file controlsFile
	if err := yaml.Unmarshal(controlsYAML, &file); err != nil {
		return nil, fmt.Errorf("parsing framework controls: %w", err)
	}

	controls := make(map[model.Framework]frameworkControls, len(file.Frameworks))
	for _, fw := range file.Frameworks {
		framework, err := model.ParseFramework(fw.Name)
		if err != nil {
			return nil, err
		}
		controls[framework] = frameworkControls{
			Keywords:   fw.Keywords,
			ControlIDs: fw.ControlIDs,
		}
	}

	return &Evaluator{
		weights:  weights,
		controls: controls,
		logger:   logger.With().Str("component", "evaluator").Logger(),
	}, nil
}

// Evaluate scores one policy document against the reference texts for the
// same framework. Empty generated text or an empty reference set yields
// 0.0 scores flagged Incomplete rather than an error.
func (e *Evaluator) Evaluate(doc model.PolicyDocument, references []string) model.EvaluationResult {
	result := model.EvaluationResult{
		Framework:   doc.Framework,
		EvaluatedAt: time.Now().UTC(),
	}

	candidate := tokenize(doc.GeneratedText)
	if len(candidate) == 0 {
		result.Incomplete = true
		e.logger.Warn().Str("batch", doc.BatchKey).Msg("empty generated text, evaluation incomplete")
		return result
	}

	// Compliance and coverage depend only on the generated text, so they
	// are computed even when no references are available.
	result.ComplianceScore = e.keywordCoverage(doc.Framework, doc.GeneratedText, false)
	result.CoverageScore = e.keywordCoverage(doc.Framework, doc.GeneratedText, true)

	var usable [][]string
	for _, ref := range references {
		if tokens := tokenize(ref); len(tokens) > 0 {
			usable = append(usable, tokens)
		}
	}
	if len(usable) == 0 {
		result.Incomplete = true
		e.logger.Warn().Str("batch", doc.BatchKey).Msg("no usable references, evaluation incomplete")
	} else {
		// Against the best-matching reference.
		for _, ref := range usable {
			if s := bleuScore(candidate, ref); s > result.BLEUScore {
				result.BLEUScore = s
			}
			if s := rougeLScore(candidate, ref); s > result.RougeLScore {
				result.RougeLScore = s
			}
		}
	}

	result.QualityScore = clamp(e.weights.BLEU*result.BLEUScore +
		e.weights.RougeL*result.RougeLScore +
		e.weights.Compliance*result.ComplianceScore)

	e.logger.Info().
		Str("framework", doc.Framework.String()).
		Str("batch", doc.BatchKey).
		Float64("bleu", result.BLEUScore).
		Float64("rouge_l", result.RougeLScore).
		Float64("compliance", result.ComplianceScore).
		Float64("quality", result.QualityScore).
		Bool("incomplete", result.Incomplete).
		Msg("policy evaluated")
	return result
}

// keywordCoverage is the heuristic compliance check: the fraction of the
// framework's reference vocabulary found in the text by substring match.
func (e *Evaluator) keywordCoverage(framework model.Framework, text string, controlIDs bool) float64 {
	fc, ok := e.controls[framework]
	if !ok {
		return 0.0
	}
	terms := fc.Keywords
	if controlIDs {
		terms = fc.ControlIDs
	}
	if len(terms) == 0 {
		return 0.0
	}

	lower := strings.ToLower(text)
	present := 0
	for _, term := range terms {
		if strings.Contains(lower, strings.ToLower(term)) {
			present++
		}
	}
	return clamp(float64(present) / float64(len(terms)))
}
