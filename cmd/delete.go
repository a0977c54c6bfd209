package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/trivial-work-report/internal/model"
)

var deleteOwner string

var deleteCmd = &cobra.Command{
	Use:   "delete <date> <index>",
	Short: "Delete a report by its list address",
	Args:  cobra.ExactArgs(2),
	RunE:  runDelete,
}

func init() {
	deleteCmd.Flags().StringVar(&deleteOwner, "owner", string(model.Personal), "Namespace: personal or shared")
}

func runDelete(cmd *cobra.Command, args []string) error {
	date := args[0]
	index := mustIndex(args[1])
	owner := mustOwner(deleteOwner)

	store := openStore(loadConfig())

	if !store.DeleteReport(owner, date, index) {
		fmt.Printf("No %s report #%d on %s, nothing deleted.\n", owner, index, date)
		return nil
	}
	saveStore(store)

	fmt.Printf("Deleted %s report #%d on %s\n", owner, index, date)
	return nil
}
