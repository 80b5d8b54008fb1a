package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/user/policygen/pkg/aggregator"
	"github.com/user/policygen/pkg/llm"
	"github.com/user/policygen/pkg/model"
	"github.com/user/policygen/pkg/orchestrator"
	"github.com/user/policygen/pkg/parser"
	"github.com/user/policygen/pkg/prompt"
)

var (
	genInput      string
	genOutput     string
	genFrameworks []string
	genGroupBy    string
	genProvider   string
	genModel      string
	genNoCache    bool
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Parse scanner reports and generate security policies with an LLM",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger()
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		input := genInput
		if input == "" {
			input = cfg.ReportsDir
		}
		output := genOutput
		if output == "" {
			output = cfg.PoliciesDir
		}
		if genProvider != "" {
			cfg.Provider = genProvider
		}
		if genModel != "" {
			cfg.Model = genModel
		}

		frameworks, err := resolveFrameworks(genFrameworks)
		if err != nil {
			return err
		}

		groupBy, err := resolveGroupBy(genGroupBy)
		if err != nil {
			return err
		}

		agg := aggregator.New(parser.New(logger), logger)
		summary, err := agg.AggregateDir(input, groupBy)
		if err != nil {
			return err
		}
		fmt.Printf("Parsed %d report file(s), %d unique finding(s)\n",
			len(summary.ParsedFiles), summary.TotalRecords)
		for path, reason := range summary.SkippedFiles {
			fmt.Printf("  skipped %s: %s\n", path, reason)
		}

		engine, err := prompt.NewEngine(prompt.Options{
			MaxRecords: cfg.PromptMaxRecords,
			MaxChars:   cfg.PromptMaxChars,
		})
		if err != nil {
			return err
		}

		gen, err := llm.NewGenerator(cmd.Context(), llm.Config{
			Provider:  cfg.Provider,
			Model:     cfg.Model,
			APIKey:    cfg.APIKey,
			OllamaURL: cfg.OllamaURL,
		})
		if err != nil {
			return err
		}

		var cache *llm.Cache
		if !genNoCache {
			cache, err = llm.NewCache(cfg.CacheDir)
			if err != nil {
				return err
			}
		}

		client := llm.NewClient(gen, cache, llm.Options{
			MaxRetries: cfg.MaxRetries,
			Timeout:    time.Duration(cfg.TimeoutSeconds) * time.Second,
		}, logger)

		orch := orchestrator.New(engine, client, orchestrator.Options{
			OutputDir: output,
			Workers:   cfg.Workers,
			Params: llm.Params{
				Temperature: cfg.Temperature,
				MaxTokens:   cfg.MaxTokens,
			},
		}, logger)

		result, err := orch.GeneratePolicies(cmd.Context(), summary, frameworks)
		if err != nil {
			return err
		}

		fmt.Printf("\nGenerated %d policy document(s) in %s\n", len(result.Documents), output)
		for _, file := range result.Files {
			fmt.Printf("  - %s\n", file)
		}
		if len(result.Failures) > 0 {
			fmt.Printf("\n%d batch(es) failed:\n", len(result.Failures))
			for _, f := range result.Failures {
				fmt.Printf("  - %s / %s: %s\n", f.Framework, f.BatchKey, f.Reason)
			}
		}
		return nil
	},
}

func init() {
	generateCmd.Flags().StringVar(&genInput, "input", "", "Directory containing scanner reports")
	generateCmd.Flags().StringVar(&genOutput, "output", "", "Directory for generated policies")
	generateCmd.Flags().StringSliceVar(&genFrameworks, "framework", nil,
		"Target framework(s): nist_csf, iso_27001, cis_controls (default all)")
	generateCmd.Flags().StringVar(&genGroupBy, "group-by", "category",
		"Batch grouping: category, severity, or category+severity")
	generateCmd.Flags().StringVar(&genProvider, "provider", "", "LLM provider: ollama, openai, anthropic, gemini")
	generateCmd.Flags().StringVar(&genModel, "model", "", "Model identifier for the chosen provider")
	generateCmd.Flags().BoolVar(&genNoCache, "no-cache", false, "Bypass the LLM response cache")
	rootCmd.AddCommand(generateCmd)
}

func resolveFrameworks(names []string) ([]model.Framework, error) {
	if len(names) == 0 {
		return model.Frameworks, nil
	}
	out := make([]model.Framework, 0, len(names))
	for _, name := range names {
		fw, err := model.ParseFramework(strings.ToUpper(name))
		if err != nil {
			return nil, err
		}
		out = append(out, fw)
	}
	return out, nil
}

func resolveGroupBy(name string) (aggregator.GroupBy, error) {
	switch strings.ToLower(name) {
	case "category":
		return aggregator.GroupByCategory, nil
	case "severity":
		return aggregator.GroupBySeverity, nil
	case "category+severity", "both":
		return aggregator.GroupByBoth, nil
	}
	return "", fmt.Errorf("unknown grouping %q (expected category, severity, or category+severity)", name)
}
