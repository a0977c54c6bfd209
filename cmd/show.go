package cmd

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/trivial-work-report/internal/model"
)

var showOwner string

var showCmd = &cobra.Command{
	Use:   "show <date> <index>",
	Short: "Show one report by its list address",
	Args:  cobra.ExactArgs(2),
	RunE:  runShow,
}

func init() {
	showCmd.Flags().StringVar(&showOwner, "owner", string(model.Personal), "Namespace: personal or shared")
}

func runShow(cmd *cobra.Command, args []string) error {
	date := args[0]
	index := mustIndex(args[1])
	owner := mustOwner(showOwner)

	store := openStore(loadConfig())

	r, err := store.GetReport(owner, date, index)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	printReport(os.Stdout, owner, date, r)
	return nil
}

// printReport writes every field of r, stored under (owner, date).
func printReport(w io.Writer, owner model.Owner, date string, r model.Report) {
	start, end := reportDates(r, date)
	fmt.Fprintf(w, "ID:        %s\n", r.ID)
	fmt.Fprintf(w, "Owner:     %s\n", owner)
	fmt.Fprintf(w, "Period:    %s – %s\n", start, end)
	fmt.Fprintf(w, "Category:  %s\n", r.Category)
	fmt.Fprintf(w, "Location:  %s\n", r.Location)
	fmt.Fprintf(w, "Attendees: %s\n", r.Attendees)
	if r.ExternalID != "" {
		fmt.Fprintf(w, "Imported:  %s\n", r.ExternalID)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, r.Content)
}

// mustIndex parses a bucket position or exits with a usage error.
func mustIndex(s string) int {
	index, err := strconv.Atoi(s)
	if err != nil || index < 0 {
		fmt.Fprintf(os.Stderr, "invalid index %q: want a non-negative number\n", s)
		os.Exit(1)
	}
	return index
}
