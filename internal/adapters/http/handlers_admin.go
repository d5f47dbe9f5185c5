package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"cellule/internal/adapters/http/middleware"
	"cellule/internal/application/listutil"
	"cellule/internal/application/orchestrators"
	"cellule/internal/application/projections"
	"cellule/internal/application/session"
	"cellule/internal/domain/adminsecret"
	"cellule/internal/domain/export"
)

// Messages shown on the admin pages.
const (
	wrongPasswordMessage   = "❌ Mot de passe incorrect"
	wrongCurrentMessage    = "Mot de passe actuel incorrect"
	passwordChangedMessage = "Mot de passe modifié avec succès"
	nothingToExportMessage = "Aucune inscription à exporter"
)

// dashboardPage is the data of admin_dashboard.html.
type dashboardPage struct {
	Table          projections.GetRegistrationTableResult
	Search         string
	PerPage        int
	PerPageOptions []int
	Events         []projections.EventCard
	Members        []projections.MemberCard
	Success        string
	Error          string
}

// handleAdmin handles GET /admin and /admin.html (login form or dashboard)
func handleAdmin(w http.ResponseWriter, r *http.Request) {
	if _, ok := middleware.AdminFromContext(r.Context()); !ok {
		renderTemplate(w, r, "admin_login.html", map[string]any{})
		return
	}
	page := loadDashboard(r.Context(), r)
	if r.URL.Query().Get("password") == "ok" {
		page.Success = passwordChangedMessage
	}
	renderTemplate(w, r, "admin_dashboard.html", page)
}

func loadDashboard(ctx context.Context, r *http.Request) dashboardPage {
	q := r.URL.Query()
	query := projections.GetRegistrationTableQuery{
		Search: listutil.ParseSearch(q),
		Page:   listutil.ParsePageParams(q),
	}
	page := dashboardPage{
		Search:         query.Search,
		PerPage:        query.Page.PerPage,
		PerPageOptions: listutil.PerPageOptions,
	}

	table, err := projections.QueryGetRegistrationTable(ctx, query, projections.GetRegistrationTableDeps{
		Registrations: records.Registrations,
	})
	if err != nil {
		slog.Warn("dashboard_load_failed", "error", err)
		page.Error = connectivityMessage
		return page
	}
	page.Table = table

	cards, err := projections.QueryGetPublicPage(ctx, projections.GetPublicPageDeps{
		Events:  records.Events,
		Members: records.Members,
	})
	if err != nil {
		slog.Warn("dashboard_load_failed", "error", err)
		page.Error = connectivityMessage
		return page
	}
	page.Events = cards.Events
	page.Members = cards.Members
	return page
}

type loginRequest struct {
	Password string `json:"password"`
}

// handleAdminLogin handles POST /admin/login
func handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	isForm := isFormRequest(r)
	var input loginRequest
	if isForm {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form submission", http.StatusBadRequest)
			return
		}
		input.Password = r.FormValue("password")
	} else if err := strictDecode(r, &input); err != nil {
		writeJSONError(w, http.StatusBadRequest, "Requête invalide")
		return
	}

	token, _, err := sessions.Login(r.Context(), input.Password)
	if err != nil {
		status, msg := http.StatusUnauthorized, wrongPasswordMessage
		if !errors.Is(err, session.ErrInvalidPassword) {
			var ok bool
			if status, msg, ok = errorStatus(err); !ok {
				internalError(w, err)
				return
			}
		}
		if isForm {
			renderTemplateStatus(w, r, status, "admin_login.html", map[string]any{"Error": msg})
			return
		}
		writeJSONError(w, status, msg)
		return
	}

	middleware.SetSessionCookie(w, token, int(sessionTTL/time.Second))
	reportSessions()
	if isForm {
		http.Redirect(w, r, "/admin", http.StatusSeeOther)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleAdminLogout handles POST /admin/logout
func handleAdminLogout(w http.ResponseWriter, r *http.Request) {
	if admin, ok := middleware.AdminFromContext(r.Context()); ok {
		sessions.Logout(admin.Token)
		if liveHub != nil {
			liveHub.Disconnect(admin.Token)
		}
		reportSessions()
	}
	middleware.ClearSessionCookie(w)
	if isFormRequest(r) || isHTMLRequest(r) {
		http.Redirect(w, r, "/admin", http.StatusSeeOther)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func reportSessions() {
	if appMetrics != nil {
		appMetrics.AdminSessions.Set(float64(sessions.Count()))
	}
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword"`
}

// handleChangePassword handles POST /admin/password
func handleChangePassword(w http.ResponseWriter, r *http.Request) {
	admin, _ := middleware.AdminFromContext(r.Context())
	isForm := isFormRequest(r)
	var input changePasswordRequest
	if isForm {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form submission", http.StatusBadRequest)
			return
		}
		input = changePasswordRequest{
			CurrentPassword: r.FormValue("current_password"),
			NewPassword:     r.FormValue("new_password"),
			ConfirmPassword: r.FormValue("confirm_password"),
		}
	} else if err := strictDecode(r, &input); err != nil {
		writeJSONError(w, http.StatusBadRequest, "Requête invalide")
		return
	}

	err := admin.Session.ChangePassword(r.Context(), input.CurrentPassword, input.NewPassword, input.ConfirmPassword)
	if err != nil {
		status, msg, ok := http.StatusBadRequest, wrongCurrentMessage, true
		switch {
		case errors.Is(err, adminsecret.ErrWrongSecret):
		case errors.Is(err, session.ErrLoggedOut):
			status, msg = http.StatusUnauthorized, "authentification requise"
		default:
			status, msg, ok = errorStatus(err)
		}
		if !ok {
			internalError(w, err)
			return
		}
		if isForm {
			page := loadDashboard(r.Context(), r)
			page.Error = msg
			renderTemplateStatus(w, r, status, "admin_dashboard.html", page)
			return
		}
		writeJSONError(w, status, msg)
		return
	}

	if isForm {
		http.Redirect(w, r, "/admin?password=ok", http.StatusSeeOther)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": passwordChangedMessage})
}

// handleExportRegistrations handles GET /admin/export.csv
func handleExportRegistrations(w http.ResponseWriter, r *http.Request) {
	result, err := orchestrators.ExecuteExportRegistrations(r.Context(), orchestrators.ExportRegistrationsDeps{
		Registrations: records.Registrations,
		Now:           timeNow,
	})
	if errors.Is(err, export.ErrNothingToExport) {
		writeJSONError(w, http.StatusNotFound, nothingToExportMessage)
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+result.Filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(result.Data)))
	_, _ = w.Write(result.Data)
}

// handleLive handles GET /admin/live (websocket snapshot feed of the admin's session)
func handleLive(w http.ResponseWriter, r *http.Request) {
	admin, _ := middleware.AdminFromContext(r.Context())
	if liveHub == nil {
		http.Error(w, "live updates disabled", http.StatusServiceUnavailable)
		return
	}
	if err := liveHub.Serve(w, r, admin.Token, admin.Session.Snapshots()); err != nil {
		slog.Warn("live_connect_failed", "error", err)
	}
}

// handlePerf handles GET /admin/perf?minutes=N
func handlePerf(w http.ResponseWriter, r *http.Request) {
	if perfCollector == nil {
		writeJSONError(w, http.StatusNotFound, "performance collector disabled")
		return
	}
	minutes, err := strconv.Atoi(r.URL.Query().Get("minutes"))
	if err != nil || minutes <= 0 {
		minutes = 15
	}
	writeJSON(w, http.StatusOK, perfCollector.Snapshot(timeNow().Add(-time.Duration(minutes)*time.Minute), 10))
}
