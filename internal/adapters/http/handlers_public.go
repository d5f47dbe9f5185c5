package web

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"cellule/internal/adapters/storage"
	"cellule/internal/application/orchestrators"
	"cellule/internal/application/projections"
)

// publicPage is the data of index.html.
type publicPage struct {
	Events  []projections.EventCard
	Members []projections.MemberCard
	Form    orchestrators.SubmitRegistrationInput
	Success string
	Error   string
}

// handleIndex handles GET / (events, members and the registration form)
func handleIndex(w http.ResponseWriter, r *http.Request) {
	page := loadPublicPage(r.Context())
	if r.URL.Query().Get("inscription") == "ok" {
		page.Success = orchestrators.SuccessMessage
	}
	renderTemplate(w, r, "index.html", page)
}

func loadPublicPage(ctx context.Context) publicPage {
	result, err := projections.QueryGetPublicPage(ctx, projections.GetPublicPageDeps{
		Events:  records.Events,
		Members: records.Members,
	})
	if err != nil {
		// The form stays usable when the cards cannot be loaded.
		status, msg, ok := errorStatus(err)
		if !ok {
			msg = connectivityMessage
		}
		slog.Warn("public_page_load_failed", "status", status, "error", err)
		return publicPage{Error: msg}
	}
	return publicPage{Events: result.Events, Members: result.Members}
}

// handleRegister handles POST /register (public form or JSON)
func handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	input := orchestrators.SubmitRegistrationInput{}
	isForm := isFormRequest(r)

	if isForm {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form submission", http.StatusBadRequest)
			return
		}
		input = orchestrators.SubmitRegistrationInput{
			Nom:       r.FormValue("nom"),
			Prenom:    r.FormValue("prenom"),
			Filiere:   r.FormValue("filiere"),
			Annee:     r.FormValue("annee"),
			Telephone: r.FormValue("telephone"),
			Email:     r.FormValue("email"),
			Interet:   r.FormValue("interet"),
		}
	} else {
		if err := strictDecode(r, &input); err != nil {
			writeJSONError(w, http.StatusBadRequest, "Requête invalide")
			return
		}
	}

	stored, err := orchestrators.ExecuteSubmitRegistration(ctx, input, orchestrators.SubmitRegistrationDeps{
		Registrations: records.Registrations,
		Sender:        emailSender,
		AdminEmail:    adminEmail,
	})
	if err != nil {
		if isForm && isHTMLRequest(r) {
			status, msg, ok := errorStatus(err)
			if !ok {
				internalError(w, err)
				return
			}
			page := loadPublicPage(ctx)
			page.Form = input
			page.Error = msg
			renderTemplateStatus(w, r, status, "index.html", page)
			return
		}
		writeError(w, err)
		return
	}
	if appMetrics != nil {
		appMetrics.Registrations.Inc()
	}

	if isForm && isHTMLRequest(r) {
		http.Redirect(w, r, "/?inscription=ok#inscription", http.StatusSeeOther)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{
		"id":      stored.ID,
		"message": orchestrators.SuccessMessage,
	})
}

// handleHealthz handles GET /healthz (store connectivity probe)
func handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	if err := storage.Ping(ctx, store); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unreachable", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleListEvents handles GET /api/events (newest first)
func handleListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := records.Events.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, projections.BuildEventCards(events))
}

// handleListMembers handles GET /api/members (oldest first)
func handleListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := records.Members.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, projections.BuildMemberCards(members))
}
