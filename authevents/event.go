package authevents

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	errs "github.com/jrsteele09/go-booking-session/internal/errors"
	"github.com/jrsteele09/go-booking-session/principal"
)

// EventType names what happened to a session.
type EventType string

const (
	EventLoggedOut EventType = "loggedOut"
)

var (
	ErrClosed       = errors.New("event bus closed")
	ErrInvalidScope = errs.ErrInvalidScope
)

// Event is a session change signalled to every tab of the same scope.
type Event struct {
	ID     string         `json:"id"`
	Scope  string         `json:"scope"`
	Kind   principal.Kind `json:"kind"`
	Type   EventType      `json:"event"`
	Origin string         `json:"origin"` // Tab that published the event
	At     time.Time      `json:"at"`
}

// LoggedOut builds the event published when origin logs kind out of scope.
func LoggedOut(scope string, kind principal.Kind, origin string) Event {
	return Event{
		ID:     uuid.NewString(),
		Scope:  scope,
		Kind:   kind,
		Type:   EventLoggedOut,
		Origin: origin,
		At:     time.Now().UTC(),
	}
}

// Subscription delivers the events of one scope until closed.
type Subscription interface {
	// C is closed once the subscription ends.
	C() <-chan Event
	Close() error
}

// Bus carries auth events between tabs. Delivery is best effort: a slow subscriber
// may miss events rather than block publishers.
type Bus interface {
	Publish(ctx context.Context, ev Event) error
	// Subscribe returns a subscription that also ends when ctx is cancelled.
	Subscribe(ctx context.Context, scope string) (Subscription, error)
	Close() error
}
