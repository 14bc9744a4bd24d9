package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"kbrag/config"
	"kbrag/internal/logging"
	"kbrag/internal/metrics"
)

var (
	cfgFile     string
	cfg         *config.Config
	rootDir     string
	logLevel    string
	metricsFile string

	logger   *zap.Logger
	registry *prometheus.Registry
	appStats *metrics.Metrics
)

var rootCmd = &cobra.Command{
	Use:   "kbrag",
	Short: "Knowledge-base retrieval - vectorize documents and find relevant context",
	Long: `kbrag splits knowledge-base documents into overlapping chunks, embeds them
through an OpenAI-compatible embeddings endpoint and stores the vectors locally.
Queries are ranked by cosine similarity, grouped per document and filtered by a
relevance threshold to build prompt context.

Example usage:
  kbrag ingest ./kb                       # Vectorize a knowledge base
  kbrag search -q "refund policy"         # Find relevant documents
  kbrag search -q "refund policy" --prompt  # Render prompt context`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error

		if rootDir == "" {
			rootDir, err = os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get working directory: %w", err)
			}
		}

		if cfgFile != "" {
			cfg, err = config.Load(cfgFile)
		} else {
			cfg, err = config.LoadFromDir(rootDir)
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		level := cfg.Logging.Level
		if logLevel != "" {
			level = logLevel
		}
		logger, err = logging.New(level)
		if err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}

		registry = prometheus.NewRegistry()
		appStats = metrics.New(registry)

		cmd.SetContext(logging.WithLogger(cmd.Context(), logger))
		return nil
	},
}

// Execute runs the command line. Canceling ctx interrupts ingestion between
// chunks.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// finish writes the metrics file and flushes the logger. It runs after every
// command, including failed ones.
func finish() {
	if metricsFile != "" && registry != nil {
		if err := prometheus.WriteToTextfile(metricsFile, registry); err != nil && logger != nil {
			logger.Warn("failed to write metrics", zap.String("path", metricsFile), zap.Error(err))
		}
	}
	if logger != nil {
		_ = logger.Sync()
	}
}

func init() {
	cobra.OnFinalize(finish)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./kbrag.yaml)")
	rootCmd.PersistentFlags().StringVarP(&rootDir, "dir", "d", "", "knowledge-base directory holding .kbrag (default is current directory)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error (default from config)")
	rootCmd.PersistentFlags().StringVar(&metricsFile, "metrics-file", "", "write Prometheus metrics in text format to this file on exit")
}

func GetConfig() *config.Config {
	return cfg
}

func GetRootDir() string {
	return rootDir
}
