package member

import (
	"strings"
	"time"

	"cellule/internal/domain/validation"
)

// Path is the store path of the members collection.
const Path = "members"

// Max length constants for user-editable fields.
const (
	MaxNameLength = 100
	MaxRoleLength = 60
)

// Member is a club team member shown on the public page.
type Member struct {
	ID          string `json:"id"`
	Name        string `json:"name" validate:"required,max=100"`
	Role        string `json:"role" validate:"required,max=60"`
	Description string `json:"description"`
	PhotoURL    string `json:"photoUrl" validate:"required"`
	Timestamp   int64  `json:"timestamp"`
}

// Validate checks the Member has the fields the public card needs.
// PRE: Member struct is initialized
// POST: Returns *errs.ValidationError if validation fails, nil otherwise
// INVARIANT: Name, Role and PhotoURL must not be blank
func (m Member) Validate() error {
	m.Name = strings.TrimSpace(m.Name)
	m.Role = strings.TrimSpace(m.Role)
	return validation.Struct(m)
}

// Stamp assigns identity and creation time.
func (m Member) Stamp(id string, at time.Time) Member {
	m.ID = id
	m.Timestamp = at.UnixMilli()
	m.Name = strings.TrimSpace(m.Name)
	m.Role = strings.TrimSpace(m.Role)
	m.Description = strings.TrimSpace(m.Description)
	return m
}

// RecordID returns the identifier.
func (m Member) RecordID() string { return m.ID }

// RecordTime returns the sortable timestamp.
func (m Member) RecordTime() int64 { return m.Timestamp }

// AssetURLs lists the uploaded photo for cleanup on deletion.
func (m Member) AssetURLs() []string {
	if m.PhotoURL == "" {
		return nil
	}
	return []string{m.PhotoURL}
}
