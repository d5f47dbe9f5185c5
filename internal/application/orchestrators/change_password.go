package orchestrators

import (
	"context"
	"log/slog"

	"cellule/internal/adapters/storage"
	"cellule/internal/domain/adminsecret"
)

// ChangePasswordInput carries input for the password rotation.
type ChangePasswordInput struct {
	CurrentPassword string
	NewPassword     string
	ConfirmPassword string
}

// ChangePasswordDeps holds dependencies for ChangePassword.
type ChangePasswordDeps struct {
	Store storage.Store
}

// ExecuteChangePassword rotates the shared admin secret.
// PRE: The caller holds an admin session
// POST: adminPassword holds a bcrypt hash of the new secret
// INVARIANT: Nothing is written unless the current secret matches, the new one is long enough and confirmed
// INVARIANT: An unreadable store fails the rotation; the fallback secret never authorizes it
func ExecuteChangePassword(ctx context.Context, input ChangePasswordInput, deps ChangePasswordDeps) error {
	stored, err := LoadAdminSecret(ctx, deps.Store)
	if err != nil {
		slog.Warn("auth_event", "event", "password_change_failed", "error", err)
		return err
	}
	if err := adminsecret.ValidateRotation(stored, input.CurrentPassword, input.NewPassword, input.ConfirmPassword); err != nil {
		slog.Info("auth_event", "event", "password_change_rejected", "reason", err.Error())
		return err
	}

	hash, err := adminsecret.Hash(input.NewPassword)
	if err != nil {
		return err
	}
	if err := deps.Store.Write(ctx, adminsecret.Path, hash); err != nil {
		return err
	}
	slog.Info("auth_event", "event", "password_changed")
	return nil
}
