package msgraph_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tiliavir/trivial-work-report/internal/msgraph"
)

func TestGetCalendarViewPaging(t *testing.T) {
	var srv *httptest.Server
	var prefer []string
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		prefer = append(prefer, r.Header.Get("Prefer"))
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("page") == "2" {
			fmt.Fprint(w, `{"value": [{"id": "b", "subject": "Second",
				"attendees": [{"emailAddress": {"name": "Kim", "address": "kim@example.com"}}]}]}`)
			return
		}
		assert.Equal(t, "/me/calendarView", r.URL.Path)
		assert.Equal(t, "2026-02-27T00:00:00Z", r.URL.Query().Get("startDateTime"))
		fmt.Fprintf(w, `{"value": [{"id": "a", "subject": "First", "location": {"displayName": "Room 1"}}],
			"@odata.nextLink": "%s/me/calendarView?page=2"}`, srv.URL)
	}))
	defer srv.Close()

	client := msgraph.NewClientWithHTTP(srv.Client(), srv.URL)
	from := time.Date(2026, 2, 27, 0, 0, 0, 0, time.UTC)
	events, err := client.GetCalendarView(context.Background(), from, from.AddDate(0, 0, 1), "Europe/Berlin")
	require.NoError(t, err)

	require.Len(t, events, 2)
	assert.Equal(t, "a", events[0].ID)
	assert.Equal(t, "Room 1", events[0].Location.DisplayName)
	assert.Equal(t, "Kim", events[1].Attendees[0].EmailAddress.Name)
	assert.Equal(t, []string{`outlook.timezone="Europe/Berlin"`, `outlook.timezone="Europe/Berlin"`}, prefer)
}

func TestGetCalendarViewError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": "denied"}`, http.StatusForbidden)
	}))
	defer srv.Close()

	client := msgraph.NewClientWithHTTP(srv.Client(), srv.URL)
	_, err := client.GetCalendarView(context.Background(), time.Now(), time.Now(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}
