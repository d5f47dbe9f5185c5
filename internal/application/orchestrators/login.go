package orchestrators

import (
	"context"
	"log/slog"

	"cellule/internal/adapters/storage"
	"cellule/internal/domain/adminsecret"
)

// ReadAdminSecret returns the stored admin secret, or adminsecret.Fallback when it is absent,
// not a string, or cannot be read.
// POST: Never returns an empty secret
func ReadAdminSecret(ctx context.Context, store storage.Store) string {
	s, err := LoadAdminSecret(ctx, store)
	if err != nil {
		slog.Warn("admin_secret_read_failed", "error", err)
		return adminsecret.Fallback
	}
	return s
}

// LoadAdminSecret is ReadAdminSecret without the fallback on read errors.
// POST: Returns adminsecret.Fallback only when the secret is absent or not a string
func LoadAdminSecret(ctx context.Context, store storage.Store) (string, error) {
	v, err := store.Read(ctx, adminsecret.Path)
	if err != nil {
		return "", err
	}
	s, ok := v.String()
	if !ok || s == "" {
		return adminsecret.Fallback, nil
	}
	return s, nil
}

// AdminLoginInput carries the submitted secret.
type AdminLoginInput struct {
	Password string
}

// AdminLoginDeps holds dependencies for AdminLogin.
type AdminLoginDeps struct {
	Store storage.Store
}

// ExecuteAdminLogin checks the submitted secret against the stored one.
// PRE: none
// POST: Returns adminsecret.ErrWrongSecret on mismatch
// INVARIANT: Never writes to the store
func ExecuteAdminLogin(ctx context.Context, input AdminLoginInput, deps AdminLoginDeps) error {
	stored := ReadAdminSecret(ctx, deps.Store)
	if !adminsecret.Matches(stored, input.Password) {
		slog.Info("auth_event", "event", "login_failed")
		return adminsecret.ErrWrongSecret
	}
	slog.Info("auth_event", "event", "login_success")
	return nil
}
