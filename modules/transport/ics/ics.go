// Package ics renders RFC 5545 calendar objects for invite mails. Only the
// small subset calendar clients need to create and update a single event is
// supported.
package ics

import (
	"fmt"
	"strings"
	"time"
)

const (
	// MIMEType is the content type for the calendar part of an invite mail.
	MIMEType = "text/calendar"

	prodID     = "-//inviteflow//scheduling engine//EN"
	timeLayout = "20060102T150405Z"
)

// Event is one meeting occurrence. Sequence must increase every time the
// event moves so clients replace the entry instead of duplicating it.
type Event struct {
	UID            string
	Summary        string
	Description    string
	Location       string
	OrganizerName  string
	OrganizerEmail string
	AttendeeName   string
	AttendeeEmail  string
	Start          time.Time
	End            time.Time
	Sequence       int
}

// Invite renders a METHOD:REQUEST calendar object.
func Invite(ev Event, now time.Time) string {
	return render(ev, now, "REQUEST", "CONFIRMED")
}

// Cancel renders a METHOD:CANCEL calendar object for the same UID.
func Cancel(ev Event, now time.Time) string {
	return render(ev, now, "CANCEL", "CANCELLED")
}

func render(ev Event, now time.Time, method, status string) string {
	var b strings.Builder

	line(&b, "BEGIN:VCALENDAR")
	line(&b, "VERSION:2.0")
	line(&b, "PRODID:"+prodID)
	line(&b, "CALSCALE:GREGORIAN")
	line(&b, "METHOD:"+method)
	line(&b, "BEGIN:VEVENT")
	line(&b, "UID:"+escape(ev.UID))
	line(&b, "DTSTAMP:"+now.UTC().Format(timeLayout))
	line(&b, "DTSTART:"+ev.Start.UTC().Format(timeLayout))
	line(&b, "DTEND:"+ev.End.UTC().Format(timeLayout))
	line(&b, fmt.Sprintf("SEQUENCE:%d", ev.Sequence))
	line(&b, "SUMMARY:"+escape(ev.Summary))
	if ev.Description != "" {
		line(&b, "DESCRIPTION:"+escape(ev.Description))
	}
	if ev.Location != "" {
		line(&b, "LOCATION:"+escape(ev.Location))
	}
	line(&b, organizer(ev))
	line(&b, attendee(ev))
	line(&b, "STATUS:"+status)
	line(&b, "END:VEVENT")
	line(&b, "END:VCALENDAR")

	return b.String()
}

func organizer(ev Event) string {
	if ev.OrganizerName != "" {
		return fmt.Sprintf("ORGANIZER;CN=%s:mailto:%s", escape(ev.OrganizerName), ev.OrganizerEmail)
	}
	return "ORGANIZER:mailto:" + ev.OrganizerEmail
}

func attendee(ev Event) string {
	params := "ROLE=REQ-PARTICIPANT;PARTSTAT=NEEDS-ACTION;RSVP=TRUE"
	if ev.AttendeeName != "" {
		return fmt.Sprintf("ATTENDEE;CN=%s;%s:mailto:%s", escape(ev.AttendeeName), params, ev.AttendeeEmail)
	}
	return fmt.Sprintf("ATTENDEE;%s:mailto:%s", params, ev.AttendeeEmail)
}

// line writes one content line with the CRLF ending the format requires.
func line(b *strings.Builder, s string) {
	b.WriteString(s)
	b.WriteString("\r\n")
}

// escape applies RFC 5545 text escaping to property values.
func escape(s string) string {
	r := strings.NewReplacer(
		`\`, `\\`,
		";", `\;`,
		",", `\,`,
		"\r\n", `\n`,
		"\n", `\n`,
	)
	return r.Replace(s)
}
