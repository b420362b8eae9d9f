package transport

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/smtp"
	"net/textproto"
	"strings"
	"time"

	"inviteflow/core/clock"
	"inviteflow/core/crypto"
	"inviteflow/core/logger"
	bookingEntity "inviteflow/modules/booking/entity"
	campaignEntity "inviteflow/modules/campaign/entity"
	inboxEntity "inviteflow/modules/inbox/entity"
	"inviteflow/modules/transport/ics"
)

// SMTPTransport delivers invites for app-password inboxes through the
// inbox's own SMTP submission endpoint. The invite travels as a
// multipart/alternative message: a plain-text part for humans and a
// text/calendar REQUEST part for the recipient's calendar client.
type SMTPTransport struct {
	sealer *crypto.Sealer
	clock  clock.Clock

	// send is swapped in tests; production uses net/smtp.
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPTransport(sealer *crypto.Sealer, clk clock.Clock) *SMTPTransport {
	return &SMTPTransport{
		sealer: sealer,
		clock:  clk,
		send:   smtp.SendMail,
	}
}

func (t *SMTPTransport) SendInvite(
	ctx context.Context,
	inbox *inboxEntity.Inbox,
	prospect *campaignEntity.Prospect,
	slot *bookingEntity.BookedSlot,
	campaign *campaignEntity.Campaign,
) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", Transient("send canceled", err)
	}
	if inbox.SMTPHost == "" || inbox.SMTPPort == 0 {
		return "", Permanent("inbox has no smtp endpoint configured", nil)
	}

	password, err := t.sealer.Open(inbox.Credential)
	if err != nil {
		return "", Permanent("failed to open inbox credential", err)
	}
	if password == "" {
		return "", Permanent("inbox has no app password stored", nil)
	}

	msg, eventID := t.buildMessage(inbox, prospect, slot, campaign)

	addr := net.JoinHostPort(inbox.SMTPHost, fmt.Sprintf("%d", inbox.SMTPPort))
	auth := smtp.PlainAuth("", inbox.Email, password, inbox.SMTPHost)

	logger.Info("SMTPTransport:SendInvite:Sending",
		"from", inbox.Email,
		"to", prospect.Email,
		"addr", addr,
		"invite_uid", slot.InviteUID,
	)

	if err := t.send(addr, auth, inbox.Email, []string{prospect.Email}, msg); err != nil {
		logger.Error("SMTPTransport:SendInvite:Error:", err)
		return "", classify(err)
	}

	return eventID, nil
}

// buildMessage assembles the RFC 822 invite mail. The event id doubles as the
// MIME boundary seed so the message is reproducible for a given slot.
func (t *SMTPTransport) buildMessage(
	inbox *inboxEntity.Inbox,
	prospect *campaignEntity.Prospect,
	slot *bookingEntity.BookedSlot,
	campaign *campaignEntity.Campaign,
) ([]byte, string) {
	now := t.clock.Now()
	eventID := "smtp-" + slot.InviteUID
	boundary := "inviteflow-" + slot.InviteUID

	start := slot.ScheduledTimeUTC
	end := start.Add(time.Duration(campaign.DurationMinutes) * time.Minute)

	calendar := ics.Invite(ics.Event{
		UID:            slot.InviteUID,
		Summary:        campaign.Subject,
		Description:    campaign.Body,
		Location:       campaign.Location,
		OrganizerName:  inbox.DisplayName,
		OrganizerEmail: inbox.Email,
		AttendeeName:   prospect.Name,
		AttendeeEmail:  prospect.Email,
		Start:          start,
		End:            end,
		Sequence:       slot.RescheduledCount,
	}, now)

	from := inbox.Email
	if inbox.DisplayName != "" {
		from = fmt.Sprintf("%s <%s>", inbox.DisplayName, inbox.Email)
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("From: %s\r\n", from))
	b.WriteString(fmt.Sprintf("To: %s\r\n", prospect.Email))
	b.WriteString(fmt.Sprintf("Subject: %s\r\n", campaign.Subject))
	b.WriteString(fmt.Sprintf("Date: %s\r\n", now.UTC().Format(time.RFC1123Z)))
	b.WriteString(fmt.Sprintf("Message-ID: <%s@%s>\r\n", slot.InviteUID, inbox.SMTPHost))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString(fmt.Sprintf("Content-Type: multipart/alternative; boundary=%q\r\n", boundary))
	b.WriteString("\r\n")

	b.WriteString(fmt.Sprintf("--%s\r\n", boundary))
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(campaign.Body)
	b.WriteString("\r\n")

	b.WriteString(fmt.Sprintf("--%s\r\n", boundary))
	b.WriteString(fmt.Sprintf("Content-Type: %s; charset=UTF-8; method=REQUEST\r\n", ics.MIMEType))
	b.WriteString("\r\n")
	b.WriteString(calendar)

	b.WriteString(fmt.Sprintf("--%s--\r\n", boundary))

	return []byte(b.String()), eventID
}

// classify tags an smtp failure. Protocol replies keep their class (4xx
// retry, 5xx reject); everything else, connection resets included, is
// treated as transient so another attempt stays worthwhile.
func classify(err error) *Error {
	var protoErr *textproto.Error
	if stderrors.As(err, &protoErr) {
		switch {
		case protoErr.Code >= 500:
			return Permanent(fmt.Sprintf("smtp server rejected the send (%d)", protoErr.Code), err)
		case protoErr.Code >= 400:
			return Transient(fmt.Sprintf("smtp server deferred the send (%d)", protoErr.Code), err)
		}
	}

	var netErr net.Error
	if stderrors.As(err, &netErr) {
		return Transient("smtp connection failed", err)
	}

	return Transient("smtp send failed", err)
}
