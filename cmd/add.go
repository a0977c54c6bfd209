package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/trivial-work-report/internal/model"
)

var (
	addContent   string
	addCategory  string
	addLocation  string
	addAttendees string
	addEnd       string
	addOwner     string
)

var addCmd = &cobra.Command{
	Use:   "add <date>",
	Short: "Add a report starting on <date> (YYYY-MM-DD)",
	Args:  cobra.ExactArgs(1),
	RunE:  runAdd,
}

func init() {
	addCmd.Flags().StringVar(&addContent, "content", "", "Report text")
	addCmd.Flags().StringVar(&addCategory, "category", "", "Short category label")
	addCmd.Flags().StringVar(&addLocation, "location", "", "Where the work happened")
	addCmd.Flags().StringVar(&addAttendees, "attendees", "", "Who took part")
	addCmd.Flags().StringVar(&addEnd, "end", "", "Last day of a multi-day report (YYYY-MM-DD)")
	addCmd.Flags().StringVar(&addOwner, "owner", string(model.Personal), "Namespace: personal or shared")
}

func runAdd(cmd *cobra.Command, args []string) error {
	date := args[0]
	owner := mustOwner(addOwner)

	store := openStore(loadConfig())

	report := model.Report{
		Content:   addContent,
		Category:  addCategory,
		Location:  addLocation,
		Attendees: addAttendees,
		StartDate: date,
		EndDate:   addEnd,
	}
	index, err := store.AddReport(owner, date, report)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	saveStore(store)

	fmt.Printf("Added %s report #%d on %s\n", owner, index, date)
	return nil
}
