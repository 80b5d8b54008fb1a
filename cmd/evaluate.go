package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/user/policygen/pkg/evaluator"
	"github.com/user/policygen/pkg/model"
)

var (
	evalPolicies  string
	evalReference string
	evalOutput    string
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Score generated policies against reference documents",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger()
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		policiesDir := evalPolicies
		if policiesDir == "" {
			policiesDir = cfg.PoliciesDir
		}
		referenceDir := evalReference
		if referenceDir == "" {
			referenceDir = cfg.ReferenceDir
		}
		outputDir := evalOutput
		if outputDir == "" {
			outputDir = cfg.EvaluationDir
		}

		docs, err := loadPolicyDocuments(policiesDir)
		if err != nil {
			return err
		}
		if len(docs) == 0 {
			return fmt.Errorf("no policy documents found in %s", policiesDir)
		}

		references, err := evaluator.LoadReferences(referenceDir)
		if err != nil {
			logger.Warn().Err(err).Str("dir", referenceDir).
				Msg("reference corpus unavailable, scores will be incomplete")
		}

		eval, err := evaluator.New(evaluator.DefaultWeights, logger)
		if err != nil {
			return err
		}

		results := make([]model.EvaluationResult, 0, len(docs))
		for _, doc := range docs {
			results = append(results, eval.Evaluate(doc, references))
		}

		jsonPath, mdPath, err := evaluator.WriteResults(outputDir, results)
		if err != nil {
			return err
		}

		fmt.Printf("Evaluated %d policy document(s)\n", len(results))
		for _, r := range results {
			status := ""
			if r.Incomplete {
				status = " (incomplete)"
			}
			fmt.Printf("  - %s: quality %.4f (BLEU %.4f, ROUGE-L %.4f, compliance %.4f)%s\n",
				r.Framework, r.QualityScore, r.BLEUScore, r.RougeLScore, r.ComplianceScore, status)
		}
		fmt.Printf("\nReports written:\n  - %s\n  - %s\n", jsonPath, mdPath)
		return nil
	},
}

func init() {
	evaluateCmd.Flags().StringVar(&evalPolicies, "policies", "", "Directory containing generated policy JSON files")
	evaluateCmd.Flags().StringVar(&evalReference, "reference", "", "Directory containing reference policies")
	evaluateCmd.Flags().StringVar(&evalOutput, "output", "", "Directory for evaluation reports")
	rootCmd.AddCommand(evaluateCmd)
}

func loadPolicyDocuments(dir string) ([]model.PolicyDocument, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading policy directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".json") {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	docs := make([]model.PolicyDocument, 0, len(names))
	for _, name := range names {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading policy %s: %w", path, err)
		}
		var doc model.PolicyDocument
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parsing policy %s: %w", path, err)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}
