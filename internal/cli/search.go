package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"kbrag/internal/adapter/fs"
	"kbrag/internal/domain"
	"kbrag/internal/usecase"
)

var (
	searchText       string
	searchLimit      int
	searchThreshold  float64
	searchMaxResults int
	searchJSON       bool
	searchPrompt     bool
	searchExplain    bool
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Find knowledge-base documents relevant to a query",
	Long: `Embed the query, rank every stored chunk by cosine similarity, group the
matches per document and keep the documents above the relevance threshold.

Examples:
  kbrag search -q "refund policy"
  kbrag search -q "refund policy" --limit 10 --json   # raw chunk matches
  kbrag search -q "refund policy" --explain           # every document, flagged
  kbrag search -q "refund policy" --prompt            # prompt context block`,
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().StringVarP(&searchText, "query", "q", "", "search query (required)")
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 0, "return the top N chunk matches instead of documents")
	searchCmd.Flags().Float64Var(&searchThreshold, "threshold", 0, "relevance threshold (default from config)")
	searchCmd.Flags().IntVar(&searchMaxResults, "max-results", 0, "maximum documents (default from config)")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output as JSON")
	searchCmd.Flags().BoolVar(&searchPrompt, "prompt", false, "render the prompt context block")
	searchCmd.Flags().BoolVar(&searchExplain, "explain", false, "show every matched document, including those below the threshold")
	searchCmd.MarkFlagRequired("query")
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := GetConfig()

	if cmd.Flags().Changed("threshold") {
		cfg.Search.Threshold = searchThreshold
	}
	if cmd.Flags().Changed("max-results") {
		cfg.Search.MaxResults = searchMaxResults
	}

	a, err := openApp(GetRootDir(), false)
	if err != nil {
		return err
	}
	defer a.Close()

	if files, err := fs.NewSource(cfg.Ingest.Includes, cfg.Ingest.Excludes).Walk(GetRootDir()); err == nil {
		a.retrieval.SetKnownDocuments(len(files))
	}

	if searchLimit > 0 {
		chunks := a.retrieval.Search(ctx, searchText, cfg.APIKey(), searchLimit, cfg.Search.Threshold)
		if searchJSON {
			return printJSON(chunks)
		}
		if len(chunks) == 0 {
			fmt.Println("No results found.")
			return nil
		}
		fmt.Printf("Top %d chunk matches for: %s\n\n", len(chunks), searchText)
		for i, c := range chunks {
			flag := ""
			if c.BelowThreshold {
				flag = " below threshold"
			}
			fmt.Printf("--- [%d] %s part %d/%d (relevance: %.2f%s) ---\n",
				i+1, c.Record.Title, c.Record.ChunkIndex+1, c.Record.TotalChunks, c.Relevance, flag)
			fmt.Println(truncateText(c.Record.Content, 500))
			fmt.Println()
		}
		return nil
	}

	var results []domain.RetrievalResult
	if searchExplain {
		results = a.retrieval.Explain(ctx, searchText, cfg.APIKey())
	} else {
		results = a.retrieval.RetrieveContext(ctx, searchText, cfg.APIKey())
	}

	if searchPrompt {
		block, err := usecase.BuildPromptContext(results)
		if err != nil {
			return err
		}
		fmt.Print(block)
		return nil
	}
	if searchJSON {
		return printJSON(results)
	}

	if len(results) == 0 {
		fmt.Println("No relevant documents found.")
		return nil
	}
	fmt.Printf("Found %d documents for: %s\n\n", len(results), searchText)
	for i, r := range results {
		flag := ""
		if r.BelowThreshold {
			flag = ", below threshold"
		}
		fmt.Printf("--- [%d] %s (relevance: %.2f, max: %.2f, blocks: %d%s) ---\n",
			i+1, r.Title, r.Relevance, r.MaxRelevance, r.BlockCount, flag)
		fmt.Println(truncateText(r.Content, 500))
		fmt.Println()
	}
	return nil
}

func printJSON(v any) error {
	output, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(output))
	return nil
}

// truncateText shortens text for display.
func truncateText(text string, max int) string {
	runes := []rune(text)
	if len(runes) > max {
		return string(runes[:max]) + "..."
	}
	return text
}
