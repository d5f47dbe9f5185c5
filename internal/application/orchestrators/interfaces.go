package orchestrators

import (
	"context"

	"cellule/internal/domain/event"
	"cellule/internal/domain/member"
	"cellule/internal/domain/registration"
)

// RegistrationCreator stores new registrations.
type RegistrationCreator interface {
	Create(ctx context.Context, r registration.Registration) (registration.Registration, error)
}

// RegistrationLister lists registrations newest first.
type RegistrationLister interface {
	List(ctx context.Context) ([]registration.Registration, error)
}

// EventStore is the events collection as used by the media flows.
type EventStore interface {
	Get(ctx context.Context, id string) (event.Event, error)
	Create(ctx context.Context, e event.Event) (event.Event, error)
	Update(ctx context.Context, id string, fields map[string]any) (event.Event, error)
}

// MemberStore is the members collection as used by the media flows.
type MemberStore interface {
	Get(ctx context.Context, id string) (member.Member, error)
	Create(ctx context.Context, m member.Member) (member.Member, error)
	Update(ctx context.Context, id string, fields map[string]any) (member.Member, error)
}
