package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Tiliavir/trivial-work-report/internal/datecalc"
	"github.com/Tiliavir/trivial-work-report/internal/model"
	"github.com/Tiliavir/trivial-work-report/internal/msgraph"
)

var (
	outlookSyncFrom     string
	outlookSyncTo       string
	outlookSyncDate     string
	outlookSyncToday    bool
	outlookSyncDryRun   bool
	outlookSyncCategory string
	outlookSyncOwner    string
	outlookSyncTZ       string
)

var outlookCmd = &cobra.Command{
	Use:   "outlook",
	Short: "Outlook calendar integration",
}

var outlookSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Import Outlook calendar events as reports",
	Long: `Import the events of a date range (today by default) as reports.
Events already imported are updated in place, keeping any category or
namespace you changed. Cancelled, private and free events are skipped.`,
	Args: cobra.NoArgs,
	RunE: runOutlookSync,
}

func init() {
	outlookSyncCmd.Flags().StringVar(&outlookSyncFrom, "from", "", "Start date (YYYY-MM-DD); required when --to is specified")
	outlookSyncCmd.Flags().StringVar(&outlookSyncTo, "to", "", "End date (YYYY-MM-DD); defaults to today")
	outlookSyncCmd.Flags().StringVar(&outlookSyncDate, "date", "", "Sync a specific date (YYYY-MM-DD)")
	outlookSyncCmd.Flags().BoolVar(&outlookSyncToday, "today", false, "Sync only today (default)")
	outlookSyncCmd.Flags().BoolVar(&outlookSyncDryRun, "dry-run", false, "Print planned operations without writing")
	outlookSyncCmd.Flags().StringVar(&outlookSyncCategory, "category", "", "Category for imported events (default from config)")
	outlookSyncCmd.Flags().StringVar(&outlookSyncOwner, "owner", "", "Namespace for imported events (default from config)")
	outlookSyncCmd.Flags().StringVar(&outlookSyncTZ, "timezone", "", "IANA timezone for event times, e.g. Europe/Berlin (default from config)")
	outlookCmd.AddCommand(outlookSyncCmd)
}

// syncWindow resolves the date flags into the [from, to] window to request.
// to is the last nanosecond of its day.
func syncWindow(now time.Time, date, from, to string, today bool) (time.Time, time.Time, error) {
	endOfDay := func(t time.Time) time.Time {
		return datecalc.StartOfDay(t).AddDate(0, 0, 1).Add(-time.Nanosecond)
	}

	switch {
	case today || (date == "" && from == "" && to == ""):
		return datecalc.StartOfDay(now), endOfDay(now), nil

	case date != "":
		d, err := datecalc.ParseDate(date)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --date value: %w", err)
		}
		return d, endOfDay(d), nil

	default:
		if from == "" {
			return time.Time{}, time.Time{}, fmt.Errorf("--from is required when --to is specified")
		}
		start, err := datecalc.ParseDate(from)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --from value: %w", err)
		}
		end := endOfDay(now)
		if to != "" {
			t, err := datecalc.ParseDate(to)
			if err != nil {
				return time.Time{}, time.Time{}, fmt.Errorf("invalid --to value: %w", err)
			}
			end = endOfDay(t)
		}
		if end.Before(start) {
			return time.Time{}, time.Time{}, fmt.Errorf("--to %s is before --from %s", to, from)
		}
		return start, end, nil
	}
}

func runOutlookSync(cmd *cobra.Command, args []string) error {
	from, to, err := syncWindow(time.Now(), outlookSyncDate, outlookSyncFrom, outlookSyncTo, outlookSyncToday)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	cfg := loadConfig()

	opts := msgraph.SyncOptions{
		Owner:    model.Owner(firstNonEmpty(outlookSyncOwner, cfg.Outlook.DefaultOwner)),
		Category: firstNonEmpty(outlookSyncCategory, cfg.Outlook.DefaultCategory),
		Timezone: firstNonEmpty(outlookSyncTZ, cfg.Outlook.Timezone),
		DryRun:   outlookSyncDryRun,
	}
	mustOwner(string(opts.Owner))

	store := openStore(cfg)

	dryTag := ""
	if opts.DryRun {
		dryTag = " [dry-run]"
	}
	fmt.Printf("Syncing Outlook events (%s → %s) into %s%s...\n",
		datecalc.FormatDate(from), datecalc.FormatDate(to), opts.Owner, dryTag)
	fmt.Println()

	ctx := context.Background()

	tokens := msgraph.NewTokenStore(cfg.TokenFilePath(rootDir))
	auth := msgraph.NewAuthenticator(cfg.Outlook.TenantID, cfg.Outlook.ClientID, tokens, os.Stdout)
	client, err := auth.Client(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Authentication failed: %v\n", err)
		os.Exit(1)
	}

	events, err := client.GetCalendarView(ctx, from, to, opts.Timezone)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to fetch calendar events: %v\n", err)
		os.Exit(1)
	}
	log.Debug().Int("events", len(events)).Msg("fetched calendar view")

	result, err := msgraph.SyncEvents(store, events, opts, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Sync error: %v\n", err)
		os.Exit(1)
	}

	if !opts.DryRun && result.Imported+result.Updated > 0 {
		saveStore(store)
	}

	fmt.Println()
	fmt.Println("Summary:")
	fmt.Printf("  %d imported\n", result.Imported)
	fmt.Printf("  %d skipped\n", result.Skipped)
	fmt.Printf("  %d updated\n", result.Updated)
	if result.Errors > 0 {
		fmt.Printf("  %d errors\n", result.Errors)
		os.Exit(2)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
