package orchestrators

import (
	"context"
	"log/slog"

	"cellule/internal/adapters/email"
	"cellule/internal/domain/registration"
)

// SuccessMessage is shown to the visitor after a stored registration.
const SuccessMessage = "Inscription enregistrée avec succès !"

// SubmitRegistrationInput carries the public form fields.
type SubmitRegistrationInput struct {
	Nom       string `json:"nom"`
	Prenom    string `json:"prenom"`
	Filiere   string `json:"filiere"`
	Annee     string `json:"annee"`
	Telephone string `json:"telephone"`
	Email     string `json:"email"`
	Interet   string `json:"interet"`
}

// SubmitRegistrationDeps holds dependencies for SubmitRegistration.
type SubmitRegistrationDeps struct {
	Registrations RegistrationCreator
	Sender        email.Sender // optional
	AdminEmail    string       // notification recipient; empty disables the notification
}

// ExecuteSubmitRegistration stores a visitor's registration and notifies the admin.
// PRE: none
// POST: On success the registration is stored with validated=false
// INVARIANT: A failed notification never fails the submission
func ExecuteSubmitRegistration(ctx context.Context, input SubmitRegistrationInput, deps SubmitRegistrationDeps) (registration.Registration, error) {
	stored, err := deps.Registrations.Create(ctx, registration.Registration{
		Nom:       input.Nom,
		Prenom:    input.Prenom,
		Filiere:   input.Filiere,
		Annee:     input.Annee,
		Telephone: input.Telephone,
		Email:     input.Email,
		Interet:   input.Interet,
	})
	if err != nil {
		return registration.Registration{}, err
	}
	slog.Info("registration_event", "event", "submitted", "id", stored.ID, "filiere", stored.Filiere)

	if deps.Sender != nil && deps.AdminEmail != "" {
		msg, err := email.NewRegistrationMessage(stored, deps.AdminEmail)
		if err == nil {
			_, err = deps.Sender.Send(ctx, msg)
		}
		if err != nil {
			slog.Warn("registration_notify_failed", "id", stored.ID, "error", err)
		}
	}
	return stored, nil
}
