package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"bunseki/pkg/aozora"
	"bunseki/pkg/config"
)

var (
	configPath string
	model      string
	resultsDir string
	logLevel   string
	noSave     bool
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "bunseki [work]",
	Short: "Extract characters, emotions and relationships from Aozora Bunko works",
	Long: "Fetches a work from Aozora Bunko, extracts its characters, emotional expressions\n" +
		"and relationships with a language model, and writes JSON, CSV and HTML reports.\n\n" +
		"Available works: " + fmt.Sprint(aozora.Titles()),
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		if cmd.Flags().Changed("model") {
			cfg.Model = model
		}
		if cmd.Flags().Changed("results-dir") {
			cfg.ResultsDir = resultsDir
		}
		if cmd.Flags().Changed("log-level") {
			cfg.LogLevel = logLevel
		}

		lvl, err := log.ParseLevel(cfg.LogLevel)
		if err != nil {
			return fmt.Errorf("log level: %w", err)
		}
		log.SetLevel(lvl)
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		title := aozora.DefaultWork
		if len(args) == 1 {
			title = args[0]
		}
		if _, err := aozora.Lookup(title); err != nil {
			fmt.Fprintf(os.Stderr, "エラー: 作品 %q は見つかりません\n\n", title)
			printWorks(os.Stderr)
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return analyze(ctx, cfg, title, !noSave, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "bunseki.toml", "Path to configuration file")
	rootCmd.PersistentFlags().StringVar(&model, "model", "", "Model id (gpt-* uses OpenAI, anything else Gemini)")
	rootCmd.PersistentFlags().StringVar(&resultsDir, "results-dir", "", "Directory results are written under")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.Flags().BoolVar(&noSave, "no-save", false, "Print results without writing files")
}

func Execute() error {
	err := rootCmd.ExecuteContext(context.Background())
	if err != nil {
		log.Error("bunseki failed", "error", err)
	}
	return err
}
