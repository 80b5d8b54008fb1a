package cmd

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/user/policygen/pkg/config"
)

var (
	debugMode bool
	cfgPath   string
)

var rootCmd = &cobra.Command{
	Use:   "policygen",
	Short: "AI-assisted security policy generation from scanner reports",
	Long: `policygen chains security scanner output through a normalization
pipeline and an LLM to produce framework-aligned security policies,
then scores them against reference documents.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Optional .env for provider API keys, matching local dev setups.
		_ = godotenv.Load()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Path to a policygen.yaml config file")
}

func newLogger() zerolog.Logger {
	level := zerolog.InfoLevel
	if debugMode {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()
}

func loadConfig() (*config.Config, error) {
	return config.Load(cfgPath)
}
