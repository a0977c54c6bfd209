package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/Tiliavir/trivial-work-report/internal/model"
	"github.com/Tiliavir/trivial-work-report/internal/storage"
)

var (
	editContent   string
	editCategory  string
	editLocation  string
	editAttendees string
	editStart     string
	editEnd       string
	editOwner     string
	editToOwner   string
)

var editCmd = &cobra.Command{
	Use:   "edit <date> <index>",
	Short: "Change a report; a new --start or --to-owner moves it",
	Long: `Change the fields given as flags and keep the others.
Changing --start moves the report to the bucket of its new start day,
--to-owner moves it to the other namespace. Pass --end "" to make a
multi-day report a single-day one again.`,
	Args: cobra.ExactArgs(2),
	RunE: runEdit,
}

func init() {
	editCmd.Flags().StringVar(&editContent, "content", "", "Report text")
	editCmd.Flags().StringVar(&editCategory, "category", "", "Short category label")
	editCmd.Flags().StringVar(&editLocation, "location", "", "Where the work happened")
	editCmd.Flags().StringVar(&editAttendees, "attendees", "", "Who took part")
	editCmd.Flags().StringVar(&editStart, "start", "", "New first day (YYYY-MM-DD)")
	editCmd.Flags().StringVar(&editEnd, "end", "", "New last day (YYYY-MM-DD)")
	editCmd.Flags().StringVar(&editOwner, "owner", string(model.Personal), "Namespace the report is in")
	editCmd.Flags().StringVar(&editToOwner, "to-owner", "", "Namespace to move the report to")
}

func runEdit(cmd *cobra.Command, args []string) error {
	date := args[0]
	index := mustIndex(args[1])
	owner := mustOwner(editOwner)
	target := owner
	if editToOwner != "" {
		target = mustOwner(editToOwner)
	}

	store := openStore(loadConfig())

	r, err := store.GetReport(owner, date, index)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	r = applyEdits(cmd.Flags(), r)
	if r.StartDate == "" {
		r.StartDate = date
	}

	newIndex, err := saveEdit(store, owner, date, index, r, target)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	saveStore(store)

	fmt.Printf("Saved %s report #%d on %s\n", target, newIndex, r.StartDate)
	return nil
}

// applyEdits copies every flag the user set onto r.
func applyEdits(flags *pflag.FlagSet, r model.Report) model.Report {
	if flags.Changed("content") {
		r.Content = editContent
	}
	if flags.Changed("category") {
		r.Category = editCategory
	}
	if flags.Changed("location") {
		r.Location = editLocation
	}
	if flags.Changed("attendees") {
		r.Attendees = editAttendees
	}
	if flags.Changed("start") {
		r.StartDate = editStart
	}
	if flags.Changed("end") {
		r.EndDate = editEnd
	}
	return r
}

// saveEdit updates the report in place when it stays in its bucket and moves
// it otherwise. The report is keyed by its start date, which must be set.
func saveEdit(store *storage.Store, owner model.Owner, date string, index int, r model.Report, target model.Owner) (int, error) {
	if r.StartDate == date && target == owner {
		return index, store.UpdateReport(owner, date, index, r)
	}
	return store.MoveReport(owner, date, r.StartDate, index, r, target)
}
