package orchestrators

import (
	"context"

	"cellule/internal/domain/errs"
	"cellule/internal/domain/event"
	"cellule/internal/domain/media"
)

// CreateEventInput carries a new event and its media.
type CreateEventInput struct {
	Name        string
	Description string
	Photo       *ImageInput // required
	Video       *VideoInput // optional
	OnProgress  StageProgress
}

// CreateEventDeps holds dependencies for CreateEvent.
type CreateEventDeps struct {
	Events EventStore
	Media  MediaDeps
}

// ExecuteCreateEvent crops and uploads the photo, uploads the optional video, then stores the event.
// PRE: Photo is set
// POST: Event stored with photoUrl (and videoUrl when a video was given)
// INVARIANT: Text fields are checked before any upload; uploads are discarded if the write fails
func ExecuteCreateEvent(ctx context.Context, input CreateEventInput, deps CreateEventDeps) (event.Event, error) {
	draft := event.Event{Name: input.Name, Description: input.Description, PhotoURL: "pending"}
	if err := draft.Validate(); err != nil {
		return event.Event{}, err
	}
	if input.Photo == nil {
		return event.Event{}, errs.Required("photoUrl")
	}

	photoURL, err := uploadImage(ctx, input.Photo, media.AspectWide, deps.Media, input.OnProgress)
	if err != nil {
		return event.Event{}, err
	}
	draft.PhotoURL = photoURL

	if input.Video != nil {
		videoURL, err := uploadVideo(ctx, input.Video, deps.Media, input.OnProgress)
		if err != nil {
			discardAssets(ctx, deps.Media.Uploader, "event_create_failed", photoURL)
			return event.Event{}, err
		}
		draft.VideoURL = videoURL
	}

	stored, err := deps.Events.Create(ctx, draft)
	if err != nil {
		discardAssets(ctx, deps.Media.Uploader, "event_create_failed", draft.AssetURLs()...)
		return event.Event{}, err
	}
	return stored, nil
}

// UpdateEventInput carries the changed fields of an event. Nil fields are left unchanged.
type UpdateEventInput struct {
	ID          string
	Name        *string
	Description *string
	Photo       *ImageInput
	Video       *VideoInput
	RemoveVideo bool
	OnProgress  StageProgress
}

// UpdateEventDeps holds dependencies for UpdateEvent.
type UpdateEventDeps struct {
	Events EventStore
	Media  MediaDeps
}

// ExecuteUpdateEvent uploads any replacement media, updates the event, then removes replaced assets.
// PRE: ID exists
// POST: Replaced assets are removed best-effort after the write succeeds
func ExecuteUpdateEvent(ctx context.Context, input UpdateEventInput, deps UpdateEventDeps) (event.Event, error) {
	current, err := deps.Events.Get(ctx, input.ID)
	if err != nil {
		return event.Event{}, err
	}
	fields := map[string]any{}
	setIfPresent(fields, "name", input.Name)
	setIfPresent(fields, "description", input.Description)

	// Reject emptied text fields before uploading anything.
	preview := current
	if input.Name != nil {
		preview.Name = *input.Name
	}
	if input.Description != nil {
		preview.Description = *input.Description
	}
	if err := preview.Validate(); err != nil {
		return event.Event{}, err
	}

	var uploaded, replaced []string
	if input.Photo != nil {
		url, err := uploadImage(ctx, input.Photo, media.AspectWide, deps.Media, input.OnProgress)
		if err != nil {
			return event.Event{}, err
		}
		fields["photoUrl"] = url
		uploaded = append(uploaded, url)
		replaced = append(replaced, current.PhotoURL)
	}
	switch {
	case input.Video != nil:
		url, err := uploadVideo(ctx, input.Video, deps.Media, input.OnProgress)
		if err != nil {
			discardAssets(ctx, deps.Media.Uploader, "event_update_failed", uploaded...)
			return event.Event{}, err
		}
		fields["videoUrl"] = url
		uploaded = append(uploaded, url)
		replaced = append(replaced, current.VideoURL)
	case input.RemoveVideo && current.HasVideo():
		fields["videoUrl"] = nil
		replaced = append(replaced, current.VideoURL)
	}

	updated, err := deps.Events.Update(ctx, input.ID, fields)
	if err != nil {
		discardAssets(ctx, deps.Media.Uploader, "event_update_failed", uploaded...)
		return event.Event{}, err
	}
	discardAssets(ctx, deps.Media.Uploader, "event_media_replaced", replaced...)
	return updated, nil
}
