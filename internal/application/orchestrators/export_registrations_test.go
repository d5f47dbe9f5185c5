package orchestrators

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"cellule/internal/domain/export"
	"cellule/internal/domain/registration"
)

type mockRegistrationLister struct {
	regs []registration.Registration
}

func (m *mockRegistrationLister) List(context.Context) ([]registration.Registration, error) {
	return m.regs, nil
}

func TestExecuteExportRegistrations_Empty(t *testing.T) {
	_, err := ExecuteExportRegistrations(context.Background(), ExportRegistrationsDeps{Registrations: &mockRegistrationLister{}})
	if !errors.Is(err, export.ErrNothingToExport) {
		t.Errorf("expected ErrNothingToExport, got %v", err)
	}
}

func TestExecuteExportRegistrations_TwoRows(t *testing.T) {
	lister := &mockRegistrationLister{regs: []registration.Registration{
		{Date: "02/01/2024", Nom: "Martin", Prenom: "Sara", Filiere: "DD", Annee: "1", Telephone: "06", Email: "s@x.ma", Interet: "Web", Validated: true},
		{Date: "01/01/2024", Nom: "Dupont", Prenom: "Jean", Filiere: "ID", Annee: "2", Telephone: "07", Email: "j@x.ma", Interet: "IA"},
	}}
	res, err := ExecuteExportRegistrations(context.Background(), ExportRegistrationsDeps{
		Registrations: lister,
		Now:           func() time.Time { return time.Date(2024, 1, 3, 9, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("ExecuteExportRegistrations: %v", err)
	}
	if res.Filename != "inscriptions_cmc_2024-01-03.csv" || res.Rows != 2 {
		t.Errorf("result = %s, %d rows", res.Filename, res.Rows)
	}
	lines := strings.Split(strings.TrimRight(string(res.Data), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("lines = %d, want 3", len(lines))
	}
	if lines[1] != "02/01/2024,Martin,Sara,DD,1,06,s@x.ma,Web,Oui" {
		t.Errorf("line 1 = %q", lines[1])
	}
	if lines[2] != "01/01/2024,Dupont,Jean,ID,2,07,j@x.ma,IA,Non" {
		t.Errorf("line 2 = %q", lines[2])
	}
}
