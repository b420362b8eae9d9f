package transport

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"

	bookingEntity "inviteflow/modules/booking/entity"
	campaignEntity "inviteflow/modules/campaign/entity"
	inboxEntity "inviteflow/modules/inbox/entity"
)

type ErrorKind string

const (
	// KindTransient failures may succeed on a retry, possibly through a
	// different inbox.
	KindTransient ErrorKind = "transient"
	// KindPermanent failures are sender-side (bad credentials, revoked
	// access) and retrying cannot fix them.
	KindPermanent ErrorKind = "permanent"
)

// Error is the tagged failure every Transport returns, so callers can route
// the outcome without knowing the provider.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s send failure: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s send failure: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func Transient(message string, err error) *Error {
	return &Error{Kind: KindTransient, Message: message, Err: err}
}

func Permanent(message string, err error) *Error {
	return &Error{Kind: KindPermanent, Message: message, Err: err}
}

// IsPermanent reports whether err is tagged permanent. Untagged errors count
// as transient so an unknown failure never disables an inbox on its own.
func IsPermanent(err error) bool {
	var te *Error
	return stderrors.As(err, &te) && te.Kind == KindPermanent
}

// Transport delivers one calendar invite through a provider and returns the
// provider's event id.
type Transport interface {
	SendInvite(
		ctx context.Context,
		inbox *inboxEntity.Inbox,
		prospect *campaignEntity.Prospect,
		slot *bookingEntity.BookedSlot,
		campaign *campaignEntity.Campaign,
	) (string, error)
}

// Registry maps provider kinds to their transports. The host registers what
// it ships with; sends to an unregistered provider fail before any network
// call.
type Registry struct {
	mu         sync.RWMutex
	transports map[string]Transport
}

func NewRegistry() *Registry {
	return &Registry{transports: make(map[string]Transport)}
}

func (r *Registry) Register(providerKind string, t Transport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transports[providerKind] = t
}

func (r *Registry) Get(providerKind string) (Transport, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.transports[providerKind]
	return t, ok
}
