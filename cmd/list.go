package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/trivial-work-report/internal/datecalc"
	"github.com/Tiliavir/trivial-work-report/internal/model"
)

const previewLength = 40

var listOwner string

var listCmd = &cobra.Command{
	Use:   "list [date]",
	Short: "List reports covering a day (default today)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runList,
}

func init() {
	listCmd.Flags().StringVar(&listOwner, "owner", "", "Namespace: personal, shared or empty for both")
}

func runList(cmd *cobra.Command, args []string) error {
	date := datecalc.Today()
	if len(args) == 1 {
		date = args[0]
	}

	owners, err := parseOwner(listOwner, true)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	store := openStore(loadConfig())

	found, err := store.FindReportsForDate(date, owners...)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	fmt.Println(date)
	if len(found) == 0 {
		fmt.Println("No reports found.")
		return nil
	}
	for i, m := range found {
		fmt.Println(formatLabel(i+1, m))
	}
	return nil
}

// formatLabel renders one list line: position, period, category, the first
// line of the content and the address used by show/edit/delete.
func formatLabel(n int, m model.Match) string {
	r := m.Report
	start, end := reportDates(r, m.BucketDate)
	period := "[" + start + "]"
	if end != start {
		period = "[" + start + "~" + end + "]"
	}
	return fmt.Sprintf("%d. %s [%s] %s  (%s %s #%d)",
		n, period, r.Category, preview(r.Content), m.Owner, m.BucketDate, m.Index)
}

// preview returns the first line of s, cut to previewLength runes.
func preview(s string) string {
	first, _, _ := strings.Cut(s, "\n")
	runes := []rune(strings.TrimRight(first, "\r"))
	if len(runes) > previewLength {
		runes = runes[:previewLength]
	}
	return string(runes)
}
