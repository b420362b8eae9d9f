package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	bookingEntity "inviteflow/modules/booking/entity"
	campaignEntity "inviteflow/modules/campaign/entity"
	inboxEntity "inviteflow/modules/inbox/entity"
)

// RecordedSend is one invite the Recorder accepted.
type RecordedSend struct {
	InboxEmail     string
	RecipientEmail string
	InviteUID      string
	ScheduledUTC   time.Time
	EventID        string
}

// Recorder is a Transport that records sends instead of delivering them.
// Outcomes can be scripted per recipient and are consumed in order; once a
// recipient's script runs out, sends succeed. Used by tests and by dry-run
// deployments that want the full pipeline without real mail.
type Recorder struct {
	mu       sync.Mutex
	sends    []RecordedSend
	scripts  map[string][]error
	eventSeq int
}

func NewRecorder() *Recorder {
	return &Recorder{scripts: make(map[string][]error)}
}

// Script queues outcomes for a recipient. A nil entry means success.
func (r *Recorder) Script(recipientEmail string, outcomes ...error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scripts[recipientEmail] = append(r.scripts[recipientEmail], outcomes...)
}

func (r *Recorder) SendInvite(
	_ context.Context,
	inbox *inboxEntity.Inbox,
	prospect *campaignEntity.Prospect,
	slot *bookingEntity.BookedSlot,
	_ *campaignEntity.Campaign,
) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if queue := r.scripts[prospect.Email]; len(queue) > 0 {
		next := queue[0]
		r.scripts[prospect.Email] = queue[1:]
		if next != nil {
			return "", next
		}
	}

	r.eventSeq++
	eventID := fmt.Sprintf("recorded-%d", r.eventSeq)
	r.sends = append(r.sends, RecordedSend{
		InboxEmail:     inbox.Email,
		RecipientEmail: prospect.Email,
		InviteUID:      slot.InviteUID,
		ScheduledUTC:   slot.ScheduledTimeUTC,
		EventID:        eventID,
	})
	return eventID, nil
}

// Sends returns a snapshot of everything accepted so far.
func (r *Recorder) Sends() []RecordedSend {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]RecordedSend, len(r.sends))
	copy(out, r.sends)
	return out
}
