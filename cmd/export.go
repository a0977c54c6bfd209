package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Tiliavir/trivial-work-report/internal/datecalc"
	"github.com/Tiliavir/trivial-work-report/internal/model"
)

var (
	exportFormat string
	exportFrom   string
	exportTo     string
	exportOwner  string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export reports overlapping a date range to stdout (default: this week)",
	Args:  cobra.NoArgs,
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "csv", "Output format: csv, json, md, yaml, ics")
	exportCmd.Flags().StringVar(&exportFrom, "from", "", "First day (YYYY-MM-DD); defaults to this week's Monday")
	exportCmd.Flags().StringVar(&exportTo, "to", "", "Last day (YYYY-MM-DD); defaults to --from's Sunday")
	exportCmd.Flags().StringVar(&exportOwner, "owner", "", "Namespace: personal, shared or empty for both")
}

func runExport(cmd *cobra.Command, args []string) error {
	from, to, err := exportRange(time.Now(), exportFrom, exportTo)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	owners, err := parseOwner(exportOwner, true)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	store := openStore(loadConfig())

	matches, err := store.ReportsBetween(from, to, owners...)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	switch exportFormat {
	case "json":
		data, err := json.MarshalIndent(matches, "", "  ")
		if err != nil {
			fmt.Fprintln(os.Stderr, "error encoding JSON:", err)
			os.Exit(2)
		}
		fmt.Println(string(data))
	case "yaml":
		data, err := yaml.Marshal(matches)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error encoding YAML:", err)
			os.Exit(2)
		}
		fmt.Print(string(data))
	case "md":
		printMarkdown(os.Stdout, from, to, matches)
	case "ics":
		fmt.Print(buildICS(matches, time.Now()))
	default: // csv
		printCSV(os.Stdout, matches)
	}

	return nil
}

// exportRange resolves the --from/--to flags. Without --from the ISO week
// containing now is used; without --to the week of --from ends the range.
func exportRange(now time.Time, from, to string) (string, string, error) {
	if from == "" {
		if to != "" {
			return "", "", fmt.Errorf("--from is required when --to is specified")
		}
		monday, sunday := datecalc.WeekRange(now)
		return datecalc.FormatDate(monday), datecalc.FormatDate(sunday), nil
	}

	start, err := datecalc.ParseDate(from)
	if err != nil {
		return "", "", fmt.Errorf("invalid --from value: %w", err)
	}
	if to == "" {
		_, sunday := datecalc.WeekRange(start)
		return from, datecalc.FormatDate(sunday), nil
	}
	if _, err := datecalc.ParseDate(to); err != nil {
		return "", "", fmt.Errorf("invalid --to value: %w", err)
	}
	return from, to, nil
}

func printCSV(w io.Writer, matches []model.Match) {
	fmt.Fprintln(w, "owner,start_date,end_date,category,location,attendees,content")
	for _, m := range matches {
		r := m.Report
		start, end := reportDates(r, m.BucketDate)
		fmt.Fprintf(w, "%s,%s,%s,%s,%s,%s,%s\n",
			csvEscape(string(m.Owner)),
			csvEscape(start),
			csvEscape(end),
			csvEscape(r.Category),
			csvEscape(r.Location),
			csvEscape(r.Attendees),
			csvEscape(r.Content),
		)
	}
}

// printMarkdown groups reports by owner under a heading for the range.
func printMarkdown(w io.Writer, from, to string, matches []model.Match) {
	title := from + " – " + to
	if start, err := datecalc.ParseDate(from); err == nil {
		if monday, sunday := datecalc.WeekRange(start); datecalc.FormatDate(monday) == from && datecalc.FormatDate(sunday) == to {
			title = "Week " + datecalc.ISOWeekLabel(start)
		}
	}
	fmt.Fprintf(w, "# %s\n", title)

	if len(matches) == 0 {
		fmt.Fprintln(w, "\nNo reports found.")
		return
	}

	var currentOwner model.Owner
	for _, m := range matches {
		if m.Owner != currentOwner {
			fmt.Fprintf(w, "\n## %s\n\n", m.Owner)
			currentOwner = m.Owner
		}
		r := m.Report
		start, end := reportDates(r, m.BucketDate)
		period := start
		if end != start {
			period += " – " + end
		}
		line := fmt.Sprintf("- **%s**", period)
		if r.Category != "" {
			line += " [" + r.Category + "]"
		}
		line += " " + strings.ReplaceAll(strings.TrimSpace(r.Content), "\n", " ")
		var details []string
		if r.Location != "" {
			details = append(details, "@ "+r.Location)
		}
		if r.Attendees != "" {
			details = append(details, "with "+r.Attendees)
		}
		if len(details) > 0 {
			line += " (" + strings.Join(details, ", ") + ")"
		}
		fmt.Fprintln(w, line)
	}
}

// buildICS renders every report as an all-day VEVENT. DTEND is the day after
// the report's last day since iCalendar end dates are exclusive.
func buildICS(matches []model.Match, stamp time.Time) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId("-//trivial-work-report//twr//EN")

	for _, m := range matches {
		r := m.Report
		from, to, err := datecalc.Interval(r.StartDate, r.EndDate, m.BucketDate)
		if err != nil {
			continue
		}
		uid := r.ID
		if uid == "" {
			uid = fmt.Sprintf("%s-%s-%d", m.Owner, m.BucketDate, m.Index)
		}

		event := cal.AddEvent(uid)
		event.SetDtStampTime(stamp)
		event.SetAllDayStartAt(from)
		event.SetAllDayEndAt(to.AddDate(0, 0, 1))
		event.SetSummary(preview(r.Content))

		description := r.Content
		if r.Attendees != "" {
			description += "\n\nAttendees: " + r.Attendees
		}
		event.SetDescription(description)
		if r.Location != "" {
			event.SetLocation(r.Location)
		}
		if r.Category != "" {
			event.AddProperty(ical.ComponentPropertyCategories, r.Category)
		}
	}

	return cal.Serialize()
}

// reportDates returns the first and last day of r. Records without a start
// date, as written by the legacy flat layout, start on the bucket they are
// stored under.
func reportDates(r model.Report, bucket string) (string, string) {
	start := r.StartDate
	if start == "" {
		start = bucket
	}
	end := r.EndDate
	if end == "" {
		end = start
	}
	return start, end
}

// csvEscape wraps a field in quotes if it contains a comma, quote, or newline.
func csvEscape(s string) string {
	if !strings.ContainsAny(s, ",\"\n\r") {
		return s
	}
	// Escape internal double quotes by doubling them.
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
