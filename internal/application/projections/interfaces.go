package projections

import (
	"context"

	"cellule/internal/domain/event"
	"cellule/internal/domain/member"
	"cellule/internal/domain/registration"
)

// RegistrationLister lists registrations in display order.
type RegistrationLister interface {
	List(ctx context.Context) ([]registration.Registration, error)
}

// EventLister lists events in display order.
type EventLister interface {
	List(ctx context.Context) ([]event.Event, error)
}

// MemberLister lists members in display order.
type MemberLister interface {
	List(ctx context.Context) ([]member.Member, error)
}
