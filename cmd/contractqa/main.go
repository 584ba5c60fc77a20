package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/ternarybob/arbor"

	"contractqa/internal/config"
	"contractqa/internal/logging"
	"contractqa/internal/service"
)

var (
	cfgPath    string
	persistDir string
	verbose    bool

	cfg    *config.AppConfig
	logger arbor.ILogger
)

var rootCmd = &cobra.Command{
	Use:           "contractqa",
	Short:         "Answer questions about sponsorship contracts",
	Long:          `Ingest contract PDFs into a vector index and answer questions with page citations.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()

		var err error
		if cfgPath == "" {
			cfg, _, err = config.LoadDefault()
		} else {
			cfg, err = config.Load(cfgPath)
		}
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		config.ApplyEnv(cfg, os.LookupEnv)
		if verbose {
			cfg.Logging.Level = "debug"
		}
		if err := config.Validate(cfg); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
		logger = logging.New(cfg.Logging)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Path to YAML config file (default ./config.yaml or ~/.config/contractqa/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&persistDir, "persist-dir", "", "Directory for the local index snapshot")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.AddCommand(ingestCmd, askCmd, chatCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, userMessage(err))
		os.Exit(1)
	}
}

// userMessage turns pipeline errors into something a user can act on.
func userMessage(err error) string {
	switch service.Kind(err) {
	case "timeout":
		return "Error: a remote service took too long to respond. Try again. (" + err.Error() + ")"
	case "embedding":
		return "Error: could not embed the documents. Check the embedding API key and model. (" + err.Error() + ")"
	case "store":
		return "Error: the vector database rejected the request. (" + err.Error() + ")"
	case "synthesis":
		return "Error: could not generate an answer. (" + err.Error() + ")"
	case "invalid_input":
		return "Error: " + err.Error()
	case "canceled":
		return "Canceled."
	}
	return "Error: " + err.Error()
}
