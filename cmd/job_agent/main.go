// Package main provides the job_agent CLI: profile building sessions, job
// evaluation, corpus indexing and the REST server.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jonathan/job-matcher/internal/config"
	"github.com/jonathan/job-matcher/internal/logger"
)

var (
	cfgFile      string
	outputFormat string

	v         = config.NewViper()
	appConfig *config.Config
	appLogger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "job_agent",
	Short: "Job Matcher - build candidate profiles and rank jobs against them",
	Long: `A CLI tool that turns a CV and cover letter into a structured profile,
refined by human feedback, and ranks a job corpus against it using vector
search and LLM fit scoring.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
	PersistentPostRun: func(_ *cobra.Command, _ []string) {
		_ = appLogger.Sync()
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "Path to a JSON or YAML config file")
	flags.BoolP("debug", "d", false, "Enable debug logging")
	flags.BoolP("json", "j", false, "Log in JSON format")
	flags.String("database-url", "", "PostgreSQL connection string (overrides DATABASE_URL)")
	flags.StringVarP(&outputFormat, "output", "o", "text", "Output format: text or json")

	_ = v.BindPFlag("log.debug", flags.Lookup("debug"))
	_ = v.BindPFlag("log.json", flags.Lookup("json"))
	_ = v.BindPFlag("database_url", flags.Lookup("database-url"))
}

func loadConfig(_ *cobra.Command, _ []string) error {
	if outputFormat != "text" && outputFormat != "json" {
		return fmt.Errorf("invalid --output %q: must be text or json", outputFormat)
	}

	cfg, err := config.Load(v, cfgFile)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	l, err := logger.New(cfg.Log.JSON, cfg.Log.Debug)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	appConfig, appLogger = cfg, l
	return nil
}

func main() {
	// A missing .env file is fine.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
