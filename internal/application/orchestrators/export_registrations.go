package orchestrators

import (
	"context"
	"log/slog"
	"time"

	"cellule/internal/domain/export"
)

// ExportRegistrationsResult is a ready-to-download CSV.
type ExportRegistrationsResult struct {
	Filename string
	Data     []byte
	Rows     int
}

// ExportRegistrationsDeps holds dependencies for ExportRegistrations.
type ExportRegistrationsDeps struct {
	Registrations RegistrationLister
	Now           func() time.Time // nil uses time.Now
}

// ExecuteExportRegistrations renders every registration, newest first, as CSV.
// PRE: none
// POST: Returns export.ErrNothingToExport when there are no registrations
func ExecuteExportRegistrations(ctx context.Context, deps ExportRegistrationsDeps) (ExportRegistrationsResult, error) {
	regs, err := deps.Registrations.List(ctx)
	if err != nil {
		return ExportRegistrationsResult{}, err
	}
	data, err := export.RegistrationsCSV(regs)
	if err != nil {
		return ExportRegistrationsResult{}, err
	}
	now := time.Now
	if deps.Now != nil {
		now = deps.Now
	}
	slog.Info("export_event", "event", "registrations_csv", "rows", len(regs))
	return ExportRegistrationsResult{Filename: export.Filename(now()), Data: data, Rows: len(regs)}, nil
}
