package event

import (
	"strings"
	"time"

	"cellule/internal/domain/validation"
)

// Path is the store path of the events collection.
const Path = "events"

// Event is a club activity shown on the public page.
type Event struct {
	ID          string `json:"id"`
	Name        string `json:"name" validate:"required"`
	Description string `json:"description" validate:"required"`
	PhotoURL    string `json:"photoUrl" validate:"required"`
	VideoURL    string `json:"videoUrl,omitempty"`
	Timestamp   int64  `json:"timestamp"`
}

// Validate checks the required fields.
// PRE: none
// POST: Returns *errs.ValidationError naming the first missing field
func (e Event) Validate() error {
	e.Name = strings.TrimSpace(e.Name)
	e.Description = strings.TrimSpace(e.Description)
	return validation.Struct(e)
}

// Stamp assigns identity and creation time.
func (e Event) Stamp(id string, at time.Time) Event {
	e.ID = id
	e.Timestamp = at.UnixMilli()
	e.Name = strings.TrimSpace(e.Name)
	e.Description = strings.TrimSpace(e.Description)
	return e
}

// RecordID returns the identifier.
func (e Event) RecordID() string { return e.ID }

// RecordTime returns the sortable timestamp.
func (e Event) RecordTime() int64 { return e.Timestamp }

// AssetURLs lists the uploaded media to clean up when the event is deleted.
func (e Event) AssetURLs() []string {
	var urls []string
	if e.PhotoURL != "" {
		urls = append(urls, e.PhotoURL)
	}
	if e.VideoURL != "" {
		urls = append(urls, e.VideoURL)
	}
	return urls
}

// HasVideo reports whether a video was attached.
func (e Event) HasVideo() bool {
	return e.VideoURL != ""
}
