package msgraph

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Tiliavir/trivial-work-report/internal/datecalc"
	"github.com/Tiliavir/trivial-work-report/internal/model"
	"github.com/Tiliavir/trivial-work-report/internal/storage"
)

// SyncResult holds counters for a sync operation.
type SyncResult struct {
	Imported int
	Skipped  int
	Updated  int
	Errors   int
}

// SyncOptions configures a sync run.
type SyncOptions struct {
	Owner    model.Owner
	Category string
	Timezone string
	DryRun   bool
}

// parseGraphTime parses a Graph API dateTime string in the given timezone.
// Graph returns times like "2026-02-27T09:00:00.0000000" without a zone suffix
// when a Prefer: outlook.timezone header is set.
func parseGraphTime(dt, tz string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, dt); err == nil {
		return t, nil
	}

	loc := time.UTC
	if tz != "" {
		if l, err := time.LoadLocation(tz); err == nil {
			loc = l
		}
	}

	for _, layout := range []string{
		"2006-01-02T15:04:05.0000000",
		"2006-01-02T15:04:05",
	} {
		if t, err := time.ParseInLocation(layout, dt, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse graph time %q", dt)
}

// buildContent combines the subject and bodyPreview.
func buildContent(event CalendarEvent) string {
	if event.BodyPreview == "" {
		return event.Subject
	}
	return event.Subject + "\n" + event.BodyPreview
}

// buildAttendees lists attendee names, falling back to their address.
func buildAttendees(event CalendarEvent) string {
	names := make([]string, 0, len(event.Attendees))
	for _, a := range event.Attendees {
		name := a.EmailAddress.Name
		if name == "" {
			name = a.EmailAddress.Address
		}
		if name != "" {
			names = append(names, name)
		}
	}
	return strings.Join(names, ", ")
}

// shouldSkip returns true if the event should not be imported.
func shouldSkip(event CalendarEvent) bool {
	if event.IsCancelled {
		return true
	}
	if event.Sensitivity == "private" {
		return true
	}
	if event.ShowAs == "free" {
		return true
	}
	if event.Start.DateTime == "" || event.End.DateTime == "" {
		return true
	}
	return false
}

// MapEventToReport converts a Graph CalendarEvent into a report. Events that
// end on a later day, including all-day events, become period reports. Graph
// event ends are exclusive, so an event ending exactly at midnight does not
// cover the following day.
func MapEventToReport(event CalendarEvent, opts SyncOptions) (model.Report, error) {
	start, err := parseGraphTime(event.Start.DateTime, opts.Timezone)
	if err != nil {
		return model.Report{}, fmt.Errorf("parsing start time: %w", err)
	}
	end, err := parseGraphTime(event.End.DateTime, opts.Timezone)
	if err != nil {
		return model.Report{}, fmt.Errorf("parsing end time: %w", err)
	}

	lastInstant := start
	if end.After(start) {
		lastInstant = end.Add(-time.Nanosecond)
	}

	startDate := datecalc.FormatDate(start)
	endDate := ""
	if !datecalc.SameDay(start, lastInstant) {
		endDate = datecalc.FormatDate(lastInstant)
	}

	return model.Report{
		Content:    buildContent(event),
		Category:   opts.Category,
		Location:   event.Location.DisplayName,
		Attendees:  buildAttendees(event),
		StartDate:  startDate,
		EndDate:    endDate,
		ExternalID: event.ID,
	}, nil
}

// unchanged reports whether an imported report already carries the event's data.
func unchanged(stored, fresh model.Report) bool {
	return stored.Content == fresh.Content &&
		stored.Location == fresh.Location &&
		stored.Attendees == fresh.Attendees &&
		stored.StartDate == fresh.StartDate &&
		stored.EndDate == fresh.EndDate
}

// SyncEvents stores a slice of Graph events as reports. Events already
// imported (matched by external id) are skipped when unchanged and otherwise
// updated where they currently live, keeping their owner and any category
// the user assigned. Progress is written to out. The caller saves the store.
func SyncEvents(store *storage.Store, events []CalendarEvent, opts SyncOptions, out io.Writer) (SyncResult, error) {
	var result SyncResult
	if !opts.Owner.Valid() {
		return result, fmt.Errorf("%w %q", storage.ErrUnknownOwner, opts.Owner)
	}

	for _, event := range events {
		if shouldSkip(event) {
			continue
		}

		report, err := MapEventToReport(event, opts)
		if err != nil {
			fmt.Fprintf(out, "  ! Error mapping event %q: %v\n", event.Subject, err)
			result.Errors++
			continue
		}

		existing, found := store.FindByExternalID(event.ID)
		if found {
			if unchanged(existing.Report, report) {
				fmt.Fprintf(out, "  – Skipped:  %s (already exists)\n", event.Subject)
				result.Skipped++
				continue
			}
			if existing.Report.Category != "" {
				report.Category = existing.Report.Category
			}
			if !opts.DryRun {
				if err := updateImported(store, existing, report); err != nil {
					fmt.Fprintf(out, "  ! Error updating %q: %v\n", event.Subject, err)
					result.Errors++
					continue
				}
			}
			fmt.Fprintf(out, "  ↑ Updated:  %s%s\n", event.Subject, periodLabel(report))
			result.Updated++
			continue
		}

		if !opts.DryRun {
			if _, err := store.AddReport(opts.Owner, report.StartDate, report); err != nil {
				fmt.Fprintf(out, "  ! Error saving %q: %v\n", event.Subject, err)
				result.Errors++
				continue
			}
		}
		fmt.Fprintf(out, "  ✓ Imported: %s%s\n", event.Subject, periodLabel(report))
		result.Imported++
	}

	return result, nil
}

// updateImported rewrites an imported report in place, or moves it when the
// event's start date changed.
func updateImported(store *storage.Store, existing model.Match, report model.Report) error {
	if existing.BucketDate == report.StartDate {
		return store.UpdateReport(existing.Owner, existing.BucketDate, existing.Index, report)
	}
	_, err := store.MoveReport(existing.Owner, existing.BucketDate, report.StartDate, existing.Index, report, "")
	return err
}

func periodLabel(r model.Report) string {
	if r.IsPeriod() {
		return fmt.Sprintf(" (%s~%s)", r.StartDate, r.EndDate)
	}
	return fmt.Sprintf(" (%s)", r.StartDate)
}
