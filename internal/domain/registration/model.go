package registration

import (
	"strings"
	"time"

	"cellule/internal/domain/validation"
)

// Path is the store path of the registrations collection.
const Path = "registrations"

// DateLayout is the dd/mm/yyyy submission date shown in the admin table and the CSV export.
const DateLayout = "02/01/2006"

// Registration is a membership application submitted from the public form.
// Fields keep the store's original names so existing data decodes unchanged.
type Registration struct {
	ID        string `json:"id"`
	Date      string `json:"date"`
	Timestamp int64  `json:"timestamp"`
	Nom       string `json:"nom" validate:"required"`
	Prenom    string `json:"prenom" validate:"required"`
	Filiere   string `json:"filiere" validate:"required"`
	Annee     string `json:"annee" validate:"required"`
	Telephone string `json:"telephone" validate:"required"`
	Email     string `json:"email" validate:"required"`
	Interet   string `json:"interet" validate:"required"`
	Validated bool   `json:"validated"`
}

// Validate checks that every form field is present.
// PRE: none
// POST: Returns *errs.ValidationError naming the first missing field
// INVARIANT: Only presence is checked
func (r Registration) Validate() error {
	return validation.Struct(r.normalized())
}

// Normalize trims surrounding whitespace from every text field.
func (r Registration) Normalize() Registration {
	return r.normalized()
}

func (r Registration) normalized() Registration {
	r.Nom = strings.TrimSpace(r.Nom)
	r.Prenom = strings.TrimSpace(r.Prenom)
	r.Filiere = strings.TrimSpace(r.Filiere)
	r.Annee = strings.TrimSpace(r.Annee)
	r.Telephone = strings.TrimSpace(r.Telephone)
	r.Email = strings.TrimSpace(r.Email)
	r.Interet = strings.TrimSpace(r.Interet)
	return r
}

// Stamp assigns identity and submission time. Validated always starts false.
// POST: ID, Timestamp and Date are set from the arguments
func (r Registration) Stamp(id string, at time.Time) Registration {
	r = r.normalized()
	r.ID = id
	r.Timestamp = at.UnixMilli()
	r.Date = at.Format(DateLayout)
	r.Validated = false
	return r
}

// RecordID returns the identifier.
func (r Registration) RecordID() string { return r.ID }

// RecordTime returns the sortable timestamp.
func (r Registration) RecordTime() int64 { return r.Timestamp }

// StatusLabel is the French label rendered for the validated flag.
func (r Registration) StatusLabel() string {
	if r.Validated {
		return "Validé"
	}
	return "Non validé"
}
