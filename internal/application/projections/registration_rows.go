package projections

import (
	"context"
	"strings"

	"cellule/internal/application/listutil"
	"cellule/internal/domain/registration"
)

// Placeholder is shown for fields missing from a stored registration.
const Placeholder = "N/A"

// EmptyRegistrationsMessage is shown when the table has no rows at all.
const EmptyRegistrationsMessage = "Aucune inscription enregistrée."

// RegistrationRow is one rendered line of the admin registrations table.
type RegistrationRow struct {
	ID          string `json:"id"`
	Date        string `json:"date"`
	Nom         string `json:"nom"`
	Prenom      string `json:"prenom"`
	Filiere     string `json:"filiere"`
	Annee       string `json:"annee"`
	Telephone   string `json:"telephone"`
	Email       string `json:"email"`
	Interet     string `json:"interet"`
	Validated   bool   `json:"validated"`
	StatusLabel string `json:"statusLabel"`
}

// Text is the row's visible text, the haystack for search.
func (r RegistrationRow) Text() string {
	return strings.Join([]string{
		r.Date, r.Nom, r.Prenom, r.Filiere, r.Annee, r.Telephone, r.Email, r.Interet, r.StatusLabel,
	}, " ")
}

// BuildRegistrationRows renders registrations in the given order.
// POST: Missing fields render as Placeholder
func BuildRegistrationRows(regs []registration.Registration) []RegistrationRow {
	rows := make([]RegistrationRow, len(regs))
	for i, r := range regs {
		rows[i] = RegistrationRow{
			ID:          orPlaceholder(r.ID),
			Date:        orPlaceholder(r.Date),
			Nom:         orPlaceholder(r.Nom),
			Prenom:      orPlaceholder(r.Prenom),
			Filiere:     orPlaceholder(r.Filiere),
			Annee:       orPlaceholder(r.Annee),
			Telephone:   orPlaceholder(r.Telephone),
			Email:       orPlaceholder(r.Email),
			Interet:     orPlaceholder(r.Interet),
			Validated:   r.Validated,
			StatusLabel: r.StatusLabel(),
		}
	}
	return rows
}

func orPlaceholder(s string) string {
	if strings.TrimSpace(s) == "" {
		return Placeholder
	}
	return s
}

// FilterRows keeps the rows whose visible text contains query, ignoring case.
// INVARIANT: An empty query returns rows unchanged
func FilterRows(rows []RegistrationRow, query string) []RegistrationRow {
	return listutil.Filter(rows, query, RegistrationRow.Text)
}

// GetRegistrationTableQuery carries query parameters.
type GetRegistrationTableQuery struct {
	Search string
	Page   listutil.PageParams
}

// GetRegistrationTableResult carries the table and its counters.
type GetRegistrationTableResult struct {
	Rows      []RegistrationRow `json:"rows"`
	Total     int               `json:"total"`
	Validated int               `json:"validated"`
	Matching  int               `json:"matching"`
	Page      listutil.PageInfo `json:"page"`
	Message   string            `json:"message,omitempty"`
}

// GetRegistrationTableDeps holds dependencies for QueryGetRegistrationTable.
type GetRegistrationTableDeps struct {
	Registrations RegistrationLister
}

// QueryGetRegistrationTable lists, renders, filters and paginates registrations.
// PRE: deps.Registrations is set
// POST: Total and Validated count every registration; Rows holds the matching page
func QueryGetRegistrationTable(ctx context.Context, query GetRegistrationTableQuery, deps GetRegistrationTableDeps) (GetRegistrationTableResult, error) {
	regs, err := deps.Registrations.List(ctx)
	if err != nil {
		return GetRegistrationTableResult{}, err
	}
	return BuildRegistrationTable(regs, query), nil
}

// BuildRegistrationTable renders an already-listed snapshot. Used by live updates.
func BuildRegistrationTable(regs []registration.Registration, query GetRegistrationTableQuery) GetRegistrationTableResult {
	rows := BuildRegistrationRows(regs)
	validated := 0
	for _, r := range regs {
		if r.Validated {
			validated++
		}
	}
	matching := FilterRows(rows, query.Search)
	perPage := query.Page.PerPage
	info := listutil.NewPageInfo(query.Page.Page, perPage, len(matching))

	result := GetRegistrationTableResult{
		Rows:      listutil.Slice(matching, info),
		Total:     len(regs),
		Validated: validated,
		Matching:  len(matching),
		Page:      info,
	}
	if len(regs) == 0 {
		result.Message = EmptyRegistrationsMessage
	}
	return result
}
