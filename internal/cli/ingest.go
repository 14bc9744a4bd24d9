package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"kbrag/internal/adapter/fs"
	"kbrag/internal/domain"
	"kbrag/internal/logging"
)

var ingestForce bool

var ingestCmd = &cobra.Command{
	Use:   "ingest [path]",
	Short: "Vectorize knowledge-base documents",
	Long: `Chunk, embed and store every matching document in the specified directory.
Vectors are stored in .kbrag/vectors.db within the --dir directory.
Documents whose vectors are newer than their file are skipped unless --force is
given; documents whose files disappeared are removed.

Examples:
  kbrag ingest .                 # Ingest current directory
  kbrag ingest ./kb --force      # Re-vectorize everything`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.Flags().BoolVar(&ingestForce, "force", false, "re-vectorize documents already in the store")
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := GetConfig()

	path := GetRootDir()
	if len(args) > 0 {
		var err error
		path, err = filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("invalid path: %w", err)
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("path does not exist: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}

	a, err := openApp(path, true)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.prepareStore(ctx); err != nil {
		return err
	}

	fmt.Printf("Scanning %s...\n", path)
	docs, err := fs.NewSource(cfg.Ingest.Includes, cfg.Ingest.Excludes).Documents(path)
	if err != nil {
		return fmt.Errorf("failed to read knowledge base: %w", err)
	}

	storedIDs, err := a.store.DocumentIDs(ctx)
	if err != nil {
		return err
	}
	stored := make(map[string]bool, len(storedIDs))
	for _, id := range storedIDs {
		stored[id] = true
	}

	seen := make(map[string]bool, len(docs))
	pending := make([]domain.Document, 0, len(docs))
	skipped := 0
	for _, doc := range docs {
		seen[doc.ID] = true
		if stored[doc.ID] && !ingestForce && a.vectorizer.IsCurrent(ctx, doc) {
			skipped++
			continue
		}
		pending = append(pending, doc)
	}

	removed := 0
	for _, id := range storedIDs {
		if !seen[id] && a.vectorizer.DeleteDocumentVectors(ctx, id) {
			removed++
		}
	}

	bar := newProgressBar(len(pending))
	startTime := time.Now()
	progress := func(p domain.VectorizeProgress) {
		bar.Set(p.Processed)
		if p.Processed > 0 {
			rate := float64(p.Processed) / time.Since(startTime).Seconds()
			if rate > 0 {
				eta := time.Duration(float64(p.Total-p.Processed)/rate) * time.Second
				bar.Describe(fmt.Sprintf("[cyan]Vectorizing[reset] ETA: %s", formatDuration(eta)))
			}
		}
	}

	result, err := a.vectorizer.VectorizeDocuments(ctx, pending, cfg.APIKey(), progress)
	if err != nil {
		logging.FromContext(ctx).Warn("ingestion interrupted", zap.Error(err))
	}
	bar.Finish()

	fmt.Printf("\nIngestion complete:\n")
	fmt.Printf("  Documents vectorized: %d\n", result.Succeeded)
	fmt.Printf("  Documents failed:     %d\n", result.Failed)
	fmt.Printf("  Documents skipped:    %d (unchanged)\n", skipped)
	fmt.Printf("  Documents removed:    %d\n", removed)
	fmt.Printf("  Chunks stored:        %d\n", result.Chunks)

	if len(result.Errors) > 0 {
		fmt.Printf("\nWarnings:\n")
		for _, e := range result.Errors {
			fmt.Printf("  - %s\n", e)
		}
	}

	return err
}

func newProgressBar(total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowBytes(false),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription("[cyan]Vectorizing[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			fmt.Println()
		}),
	)
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return "<1s"
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%dm", h, m)
}
