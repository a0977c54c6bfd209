package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var categoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "List every category in use",
	Args:  cobra.NoArgs,
	RunE:  runCategories,
}

func runCategories(cmd *cobra.Command, args []string) error {
	store := openStore(loadConfig())

	for _, c := range store.ListCategories() {
		fmt.Println(c)
	}
	return nil
}
