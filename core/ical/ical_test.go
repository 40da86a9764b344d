package ical

import (
	"strings"
	"testing"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	created := time.Date(2024, 1, 10, 8, 0, 0, 0, time.UTC)
	start := time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)
	events := []Event{
		{UID: "b", Summary: "Second", Start: start.Add(time.Hour), End: start.Add(2 * time.Hour), Created: created, Modified: created},
		{UID: "c", Summary: "First, again", Start: start, End: start.Add(time.Hour), Created: created, Modified: created.Add(time.Hour)},
		{UID: "a", Summary: "First", Category: "lecture", Location: "Room 1", Start: start, End: start.Add(time.Hour), Created: created, Modified: created},
	}

	out := Render(Calendar{Name: "Ratiba", Timezone: "UTC", Events: events})
	doc := string(out)

	assert.True(t, strings.HasPrefix(doc, "BEGIN:VCALENDAR"))
	assert.Contains(t, doc, "PRODID:"+productID)
	assert.Contains(t, doc, "METHOD:PUBLISH")
	assert.Contains(t, doc, "X-WR-CALNAME:Ratiba")
	assert.Contains(t, doc, "DTSTART:20240201T090000Z")
	assert.Contains(t, doc, "CATEGORIES:LECTURE")
	assert.Contains(t, doc, "LOCATION:Room 1")
	assert.Equal(t, 3, strings.Count(doc, "BEGIN:VEVENT"))

	// sorted by start then uid
	ia, ic, ib := strings.Index(doc, "UID:a"), strings.Index(doc, "UID:c"), strings.Index(doc, "UID:b")
	require.True(t, ia > 0 && ic > 0 && ib > 0)
	assert.True(t, ia < ic && ic < ib)

	// same input, same bytes; input order does not matter
	reversed := []Event{events[2], events[1], events[0]}
	assert.Equal(t, out, Render(Calendar{Name: "Ratiba", Timezone: "UTC", Events: reversed}))
}

func TestRenderInvite(t *testing.T) {
	now := time.Date(2024, 1, 10, 8, 0, 0, 0, time.UTC)
	doc := string(Render(Calendar{
		Method: ics.MethodRequest,
		Events: []Event{{UID: "x", Summary: "Coaching", Start: now, End: now.Add(time.Hour), Created: now, Modified: now}},
	}))
	assert.Contains(t, doc, "METHOD:REQUEST")
	assert.NotContains(t, doc, "X-WR-CALNAME")
}

func TestLastModified(t *testing.T) {
	assert.True(t, LastModified(nil).IsZero())

	t1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)
	assert.Equal(t, t2, LastModified([]Event{{Modified: t1}, {Modified: t2}, {Modified: t1}}))
}
