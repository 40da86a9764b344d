// Package ical renders calendar events as iCalendar (RFC 5545) documents.
package ical

import (
	"sort"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
)

const (
	ContentType = "text/calendar; charset=utf-8"
	productID   = "-//Ratiba//Schedule//EN"
)

type Event struct {
	UID         string
	Summary     string
	Description string
	Location    string
	URL         string
	Category    string
	Start       time.Time
	End         time.Time
	Created     time.Time
	Modified    time.Time
}

// Calendar holds what is needed to render a document.
// Method is PUBLISH for feeds and REQUEST for invites.
type Calendar struct {
	Name     string
	Timezone string
	Method   ics.Method
	Events   []Event
}

// Render serializes cal. Events are written sorted by start then UID and each DTSTAMP is the event's
// modification time, so unchanged events always render to the same bytes.
func Render(cal Calendar) []byte {
	events := make([]Event, len(cal.Events))
	copy(events, cal.Events)
	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].Start.Equal(events[j].Start) {
			return events[i].Start.Before(events[j].Start)
		}
		return events[i].UID < events[j].UID
	})

	doc := ics.NewCalendar()
	doc.SetProductId(productID)
	if cal.Method == "" {
		cal.Method = ics.MethodPublish
	}
	doc.SetMethod(cal.Method)
	if cal.Name != "" {
		doc.SetXWRCalName(cal.Name)
	}
	if cal.Timezone != "" {
		doc.SetXWRTimezone(cal.Timezone)
	}

	for _, e := range events {
		ve := doc.AddEvent(e.UID)
		ve.SetDtStampTime(e.Modified.UTC())
		ve.SetCreatedTime(e.Created.UTC())
		ve.SetModifiedAt(e.Modified.UTC())
		ve.SetStartAt(e.Start.UTC())
		ve.SetEndAt(e.End.UTC())
		ve.SetSummary(e.Summary)
		if e.Description != "" {
			ve.SetDescription(e.Description)
		}
		if e.Location != "" {
			ve.SetLocation(e.Location)
		}
		if e.URL != "" {
			ve.SetURL(e.URL)
		}
		if e.Category != "" {
			ve.AddProperty(ics.ComponentPropertyCategories, strings.ToUpper(e.Category))
		}
		ve.SetStatus(ics.ObjectStatusConfirmed)
	}
	return []byte(doc.Serialize())
}

// LastModified is the most recent modification time among events, zero if there are none.
func LastModified(events []Event) time.Time {
	var last time.Time
	for _, e := range events {
		if e.Modified.After(last) {
			last = e.Modified
		}
	}
	return last.UTC()
}
