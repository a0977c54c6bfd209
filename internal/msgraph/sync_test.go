package msgraph_test

import (
	"io"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tiliavir/trivial-work-report/internal/model"
	"github.com/Tiliavir/trivial-work-report/internal/msgraph"
	"github.com/Tiliavir/trivial-work-report/internal/storage"
)

func makeEvent(id, subject, start, end string) msgraph.CalendarEvent {
	return msgraph.CalendarEvent{
		ID:          id,
		Subject:     subject,
		Sensitivity: "normal",
		ShowAs:      "busy",
		Start:       msgraph.DateTimeZone{DateTime: start, TimeZone: "UTC"},
		End:         msgraph.DateTimeZone{DateTime: end, TimeZone: "UTC"},
	}
}

func newStore(t *testing.T) *storage.Store {
	t.Helper()
	return storage.New(filepath.Join(t.TempDir(), "reports.json"), storage.WithLogger(zerolog.Nop()))
}

func defaultOpts() msgraph.SyncOptions {
	return msgraph.SyncOptions{
		Owner:    model.Shared,
		Category: "Meetings",
		Timezone: "UTC",
	}
}

func TestMapEventToReport(t *testing.T) {
	event := makeEvent("ext-id-1", "Sprint Planning", "2026-02-27T09:00:00", "2026-02-27T10:30:00")
	r, err := msgraph.MapEventToReport(event, defaultOpts())
	require.NoError(t, err)

	assert.Equal(t, "ext-id-1", r.ExternalID)
	assert.Equal(t, "Sprint Planning", r.Content)
	assert.Equal(t, "Meetings", r.Category)
	assert.Equal(t, "2026-02-27", r.StartDate)
	assert.Empty(t, r.EndDate)
	assert.Empty(t, r.ID, "ids are assigned by the store")
}

func TestMapEventToReport_WithDetails(t *testing.T) {
	event := makeEvent("ext-id-2", "Standup", "2026-02-27T10:00:00", "2026-02-27T10:15:00")
	event.BodyPreview = "Daily standup"
	event.Location.DisplayName = "Zoom"
	event.Attendees = []msgraph.Attendee{
		{EmailAddress: msgraph.EmailAddress{Name: "Kim Min", Address: "kim@example.com"}},
		{EmailAddress: msgraph.EmailAddress{Address: "lee@example.com"}},
		{},
	}

	r, err := msgraph.MapEventToReport(event, defaultOpts())
	require.NoError(t, err)
	assert.Equal(t, "Standup\nDaily standup", r.Content)
	assert.Equal(t, "Zoom", r.Location)
	assert.Equal(t, "Kim Min, lee@example.com", r.Attendees)
}

func TestMapEventToReport_Periods(t *testing.T) {
	tests := []struct {
		name      string
		allDay    bool
		start     string
		end       string
		wantStart string
		wantEnd   string
	}{
		{"ends at midnight", false, "2026-02-27T22:00:00", "2026-02-28T00:00:00", "2026-02-27", ""},
		{"crosses midnight", false, "2026-02-27T22:00:00", "2026-02-28T01:00:00", "2026-02-27", "2026-02-28"},
		{"single all-day", true, "2026-02-27T00:00:00.0000000", "2026-02-28T00:00:00.0000000", "2026-02-27", ""},
		{"three all-days", true, "2026-02-27T00:00:00.0000000", "2026-03-02T00:00:00.0000000", "2026-02-27", "2026-03-01"},
		{"zero length", false, "2026-02-27T09:00:00", "2026-02-27T09:00:00", "2026-02-27", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := makeEvent("p", "Trip", tt.start, tt.end)
			event.IsAllDay = tt.allDay
			r, err := msgraph.MapEventToReport(event, defaultOpts())
			require.NoError(t, err)
			assert.Equal(t, tt.wantStart, r.StartDate)
			assert.Equal(t, tt.wantEnd, r.EndDate)
		})
	}
}

func TestMapEventToReport_Timezone(t *testing.T) {
	event := makeEvent("tz", "Late call", "2026-02-27T23:30:00Z", "2026-02-27T23:45:00Z")
	r, err := msgraph.MapEventToReport(event, defaultOpts())
	require.NoError(t, err)
	assert.Equal(t, "2026-02-27", r.StartDate)

	event = makeEvent("tz", "Late call", "2026-02-27T23:30:00", "2026-02-27T23:45:00")
	opts := defaultOpts()
	opts.Timezone = "Asia/Seoul"
	r, err = msgraph.MapEventToReport(event, opts)
	require.NoError(t, err)
	assert.Equal(t, "2026-02-27", r.StartDate, "wall-clock date in the requested zone")
}

func TestMapEventToReport_BadTime(t *testing.T) {
	event := makeEvent("bad", "Broken", "yesterday", "2026-02-27T10:00:00")
	_, err := msgraph.MapEventToReport(event, defaultOpts())
	assert.Error(t, err)
}

func TestSyncEvents_Import(t *testing.T) {
	store := newStore(t)
	events := []msgraph.CalendarEvent{
		makeEvent("ext-1", "Architecture Board", "2026-02-27T09:00:00", "2026-02-27T10:30:00"),
	}

	result, err := msgraph.SyncEvents(store, events, defaultOpts(), io.Discard)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Imported)
	assert.Equal(t, 0, result.Skipped)

	list := store.ListReportsFor(model.Shared, "2026-02-27")
	require.Len(t, list, 1)
	assert.Equal(t, "ext-1", list[0].ExternalID)
	assert.NotEmpty(t, list[0].ID)
	assert.Equal(t, []string{"Meetings"}, store.ListCategories())
}

func TestSyncEvents_Idempotent(t *testing.T) {
	store := newStore(t)
	events := []msgraph.CalendarEvent{
		makeEvent("ext-1", "Architecture Board", "2026-02-27T09:00:00", "2026-02-27T10:30:00"),
	}

	r1, err := msgraph.SyncEvents(store, events, defaultOpts(), io.Discard)
	require.NoError(t, err)
	assert.Equal(t, 1, r1.Imported)

	r2, err := msgraph.SyncEvents(store, events, defaultOpts(), io.Discard)
	require.NoError(t, err)
	assert.Equal(t, 0, r2.Imported, "second sync must not duplicate")
	assert.Equal(t, 1, r2.Skipped)

	assert.Len(t, store.ListReportsFor(model.Shared, "2026-02-27"), 1)
}

func TestSyncEvents_Update(t *testing.T) {
	store := newStore(t)
	event := makeEvent("ext-1", "Architecture Board", "2026-02-27T09:00:00", "2026-02-27T10:30:00")

	_, err := msgraph.SyncEvents(store, []msgraph.CalendarEvent{event}, defaultOpts(), io.Discard)
	require.NoError(t, err)
	before, ok := store.FindByExternalID("ext-1")
	require.True(t, ok)

	// The user recategorises the imported report.
	edited := before.Report
	edited.Category = "Architecture"
	require.NoError(t, store.UpdateReport(before.Owner, before.BucketDate, before.Index, edited))

	event.Subject = "Architecture Board (updated)"
	r2, err := msgraph.SyncEvents(store, []msgraph.CalendarEvent{event}, defaultOpts(), io.Discard)
	require.NoError(t, err)
	assert.Equal(t, 1, r2.Updated)

	list := store.ListReportsFor(model.Shared, "2026-02-27")
	require.Len(t, list, 1)
	assert.Equal(t, "Architecture Board (updated)", list[0].Content)
	assert.Equal(t, "Architecture", list[0].Category, "user category must survive re-import")
	assert.Equal(t, before.Report.ID, list[0].ID)
}

func TestSyncEvents_MovesRescheduledEvent(t *testing.T) {
	store := newStore(t)
	event := makeEvent("ext-1", "Retro", "2026-02-27T09:00:00", "2026-02-27T10:00:00")

	_, err := msgraph.SyncEvents(store, []msgraph.CalendarEvent{event}, defaultOpts(), io.Discard)
	require.NoError(t, err)

	event.Start.DateTime = "2026-03-02T09:00:00"
	event.End.DateTime = "2026-03-02T10:00:00"
	r2, err := msgraph.SyncEvents(store, []msgraph.CalendarEvent{event}, defaultOpts(), io.Discard)
	require.NoError(t, err)
	assert.Equal(t, 1, r2.Updated)

	assert.False(t, store.HasReports(model.Shared, "2026-02-27"))
	list := store.ListReportsFor(model.Shared, "2026-03-02")
	require.Len(t, list, 1)
	assert.Equal(t, "2026-03-02", list[0].StartDate)
}

func TestSyncEvents_KeepsOwnerOfMovedImport(t *testing.T) {
	store := newStore(t)
	event := makeEvent("ext-1", "1:1", "2026-02-27T09:00:00", "2026-02-27T09:30:00")

	_, err := msgraph.SyncEvents(store, []msgraph.CalendarEvent{event}, defaultOpts(), io.Discard)
	require.NoError(t, err)

	m, ok := store.FindByExternalID("ext-1")
	require.True(t, ok)
	_, err = store.MoveReport(m.Owner, m.BucketDate, m.BucketDate, m.Index, m.Report, model.Personal)
	require.NoError(t, err)

	event.BodyPreview = "agenda"
	_, err = msgraph.SyncEvents(store, []msgraph.CalendarEvent{event}, defaultOpts(), io.Discard)
	require.NoError(t, err)

	assert.False(t, store.HasReports(model.Shared, "2026-02-27"))
	list := store.ListReportsFor(model.Personal, "2026-02-27")
	require.Len(t, list, 1)
	assert.Equal(t, "1:1\nagenda", list[0].Content)
}

func TestSyncEvents_SkipFiltered(t *testing.T) {
	tests := []struct {
		name  string
		event msgraph.CalendarEvent
	}{
		{
			name: "cancelled",
			event: func() msgraph.CalendarEvent {
				e := makeEvent("c1", "Cancelled", "2026-02-27T09:00:00", "2026-02-27T10:00:00")
				e.IsCancelled = true
				return e
			}(),
		},
		{
			name: "private",
			event: func() msgraph.CalendarEvent {
				e := makeEvent("c3", "Private", "2026-02-27T09:00:00", "2026-02-27T10:00:00")
				e.Sensitivity = "private"
				return e
			}(),
		},
		{
			name: "free",
			event: func() msgraph.CalendarEvent {
				e := makeEvent("c4", "Free Block", "2026-02-27T09:00:00", "2026-02-27T10:00:00")
				e.ShowAs = "free"
				return e
			}(),
		},
		{
			name:  "missing times",
			event: makeEvent("c5", "No Times", "", ""),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newStore(t)
			r, err := msgraph.SyncEvents(store, []msgraph.CalendarEvent{tt.event}, defaultOpts(), io.Discard)
			require.NoError(t, err)
			assert.Equal(t, 0, r.Imported)
			assert.Empty(t, store.All())
		})
	}
}

func TestSyncEvents_ImportsAllDayAsPeriod(t *testing.T) {
	store := newStore(t)
	event := makeEvent("trip", "Conference", "2026-02-27T00:00:00.0000000", "2026-03-02T00:00:00.0000000")
	event.IsAllDay = true

	r, err := msgraph.SyncEvents(store, []msgraph.CalendarEvent{event}, defaultOpts(), io.Discard)
	require.NoError(t, err)
	assert.Equal(t, 1, r.Imported)

	found, err := store.FindReportsForDate("2026-03-01", model.Shared)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "2026-02-27", found[0].BucketDate)

	found, err = store.FindReportsForDate("2026-03-02", model.Shared)
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestSyncEvents_DryRun(t *testing.T) {
	store := newStore(t)
	events := []msgraph.CalendarEvent{
		makeEvent("ext-dry", "Dry Run Event", "2026-02-27T09:00:00", "2026-02-27T10:00:00"),
	}
	opts := defaultOpts()
	opts.DryRun = true

	result, err := msgraph.SyncEvents(store, events, opts, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Imported)
	assert.Empty(t, store.All(), "dry-run must not store anything")
}

func TestSyncEvents_UnknownOwner(t *testing.T) {
	store := newStore(t)
	opts := defaultOpts()
	opts.Owner = "team"

	_, err := msgraph.SyncEvents(store, nil, opts, io.Discard)
	assert.ErrorIs(t, err, storage.ErrUnknownOwner)
}

func TestSyncEvents_PreservesManualReports(t *testing.T) {
	store := newStore(t)
	_, err := store.AddReport(model.Shared, "2026-02-27", model.Report{Content: "manual", Category: "Work"})
	require.NoError(t, err)

	events := []msgraph.CalendarEvent{
		makeEvent("ext-1", "Meeting", "2026-02-27T11:00:00", "2026-02-27T12:00:00"),
	}
	_, err = msgraph.SyncEvents(store, events, defaultOpts(), io.Discard)
	require.NoError(t, err)

	list := store.ListReportsFor(model.Shared, "2026-02-27")
	require.Len(t, list, 2, "manual + imported")
	assert.Equal(t, "manual", list[0].Content)
	assert.Equal(t, "Work", list[0].Category)
	assert.Empty(t, list[0].ExternalID)
}
