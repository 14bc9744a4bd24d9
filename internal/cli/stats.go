package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"kbrag/config"
)

var statsJSON bool

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show vector store statistics",
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "output as JSON")
}

func runStats(cmd *cobra.Command, args []string) error {
	a, err := openApp(GetRootDir(), false)
	if err != nil {
		return err
	}
	defer a.Close()

	stats, err := a.store.Stats(cmd.Context())
	if err != nil {
		return err
	}
	schema, err := a.store.GetSchemaInfo()
	if err != nil {
		return err
	}

	if statsJSON {
		return printJSON(map[string]any{
			"records":       stats.TotalRecords,
			"documents":     stats.TotalDocuments,
			"dimension":     stats.Dimension,
			"schemaVersion": schema.Version,
			"model":         a.embedder.ModelName(),
		})
	}

	fmt.Printf("Vector store: %s\n", config.StoreDBPath(GetRootDir()))
	fmt.Printf("  Records:        %d\n", stats.TotalRecords)
	fmt.Printf("  Documents:      %d\n", stats.TotalDocuments)
	fmt.Printf("  Dimension:      %d\n", stats.Dimension)
	fmt.Printf("  Schema version: %d\n", schema.Version)
	fmt.Printf("  Model:          %s\n", a.embedder.ModelName())
	return nil
}
