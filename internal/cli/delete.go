package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:   "delete <documentId>",
	Short: "Remove the stored vectors of a document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(GetRootDir(), false)
		if err != nil {
			return err
		}
		defer a.Close()

		if !a.vectorizer.DeleteDocumentVectors(cmd.Context(), args[0]) {
			return fmt.Errorf("failed to delete vectors of %s", args[0])
		}
		fmt.Printf("Deleted vectors of %s\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}
