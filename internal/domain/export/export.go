package export

import (
	"bytes"
	"encoding/csv"
	"errors"
	"time"

	"cellule/internal/domain/registration"
)

// Header is the column order of the registrations CSV.
var Header = []string{"Date", "Nom", "Prénom", "Filière", "Année", "Téléphone", "Email", "Intérêt", "Validé"}

// ContentType is served with the CSV download.
const ContentType = "text/csv; charset=utf-8"

// Domain errors.
var (
	ErrNothingToExport = errors.New("aucune inscription à exporter")
)

// Filename returns inscriptions_cmc_<YYYY-MM-DD>.csv for the export day.
// PRE: at is the export time
// POST: Returns the download filename
func Filename(at time.Time) string {
	return "inscriptions_cmc_" + at.Format("2006-01-02") + ".csv"
}

// Row renders one registration in Header order.
func Row(r registration.Registration) []string {
	validated := "Non"
	if r.Validated {
		validated = "Oui"
	}
	return []string{r.Date, r.Nom, r.Prenom, r.Filiere, r.Annee, r.Telephone, r.Email, r.Interet, validated}
}

// RegistrationsCSV serializes registrations, in the given order, below the header row.
// PRE: regs is the ordered registration list
// POST: Returns header + one line per registration, or ErrNothingToExport when regs is empty
// INVARIANT: Column order always matches Header
func RegistrationsCSV(regs []registration.Registration) ([]byte, error) {
	if len(regs) == 0 {
		return nil, ErrNothingToExport
	}
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(Header); err != nil {
		return nil, err
	}
	for _, r := range regs {
		if err := w.Write(Row(r)); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
