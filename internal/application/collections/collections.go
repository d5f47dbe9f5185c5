package collections

import (
	"context"

	"cellule/internal/adapters/storage"
	"cellule/internal/adapters/upload"
	"cellule/internal/domain/event"
	"cellule/internal/domain/member"
	"cellule/internal/domain/registration"
)

// Registrations are membership applications, newest first.
type Registrations struct {
	*Collection[registration.Registration]
}

// Events are club events with photo and optional video, newest first.
type Events = Collection[event.Event]

// Members are the club's team members with a photo, oldest first.
type Members = Collection[member.Member]

// NewRegistrations returns the registrations collection.
func NewRegistrations(store storage.Store) *Registrations {
	return &Registrations{New[registration.Registration](store, registration.Path, NewestFirst, nil)}
}

// NewEvents returns the events collection. Deleting an event removes its media through uploader.
func NewEvents(store storage.Store, uploader upload.Uploader) *Events {
	return New[event.Event](store, event.Path, NewestFirst, uploader)
}

// NewMembers returns the members collection. Deleting a member removes its photo through uploader.
func NewMembers(store storage.Store, uploader upload.Uploader) *Members {
	return New[member.Member](store, member.Path, OldestFirst, uploader)
}

// ToggleValidated flips the validated flag of the registration with id.
// PRE: id exists
// POST: Returns the updated registration
func (r *Registrations) ToggleValidated(ctx context.Context, id string) (registration.Registration, error) {
	current, err := r.Get(ctx, id)
	if err != nil {
		return registration.Registration{}, err
	}
	return r.Update(ctx, id, map[string]any{"validated": !current.Validated})
}

// Set groups the three collections of the site.
type Set struct {
	Registrations *Registrations
	Events        *Events
	Members       *Members
}

// NewSet builds every collection over store.
func NewSet(store storage.Store, uploader upload.Uploader) Set {
	return Set{
		Registrations: NewRegistrations(store),
		Events:        NewEvents(store, uploader),
		Members:       NewMembers(store, uploader),
	}
}
