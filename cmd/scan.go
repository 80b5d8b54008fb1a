package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/user/policygen/pkg/model"
	"github.com/user/policygen/pkg/scanner"
)

var (
	scanTarget string
	scanTypes  string
	scanOutput string
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run security scanners (SAST, SCA, DAST) against a target",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger()
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		output := scanOutput
		if output == "" {
			output = cfg.ReportsDir
		}

		var categories []model.Category
		if scanTypes != "all" {
			for _, t := range strings.Split(scanTypes, ",") {
				switch strings.ToLower(strings.TrimSpace(t)) {
				case "sast":
					categories = append(categories, model.CategorySAST)
				case "sca":
					categories = append(categories, model.CategorySCA)
				case "dast":
					categories = append(categories, model.CategoryDAST)
				default:
					return fmt.Errorf("unknown scanner type %q (expected sast, sca, dast, or all)", t)
				}
			}
		}

		runner := scanner.NewRunner(output, logger)
		reports, err := runner.Run(cmd.Context(), scanTarget, categories)
		if err != nil {
			return err
		}

		fmt.Printf("Scans completed, %d report(s) written to %s\n", len(reports), output)
		for tool, path := range reports {
			fmt.Printf("  - %s: %s\n", tool, path)
		}
		return nil
	},
}

func init() {
	scanCmd.Flags().StringVar(&scanTarget, "target", "", "Target application path or URL to scan")
	scanCmd.Flags().StringVar(&scanTypes, "scanners", "all", "Comma-separated list: sast,sca,dast or \"all\"")
	scanCmd.Flags().StringVar(&scanOutput, "output", "", "Output directory for scan reports")
	_ = scanCmd.MarkFlagRequired("target")
	rootCmd.AddCommand(scanCmd)
}
