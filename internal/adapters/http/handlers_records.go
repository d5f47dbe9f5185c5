package web

import (
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"

	"cellule/internal/application/listutil"
	"cellule/internal/application/orchestrators"
	"cellule/internal/application/projections"
	"cellule/internal/domain/errs"
	"cellule/internal/domain/event"
	"cellule/internal/domain/media"
	"cellule/internal/domain/member"
	"cellule/internal/domain/registration"
)

// maxFormMemory is the part of a multipart body kept in memory; larger files spill to disk.
const maxFormMemory = 32 << 20

// handleListRegistrations handles GET /api/registrations?q=&page=&per_page=
func handleListRegistrations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	result, err := projections.QueryGetRegistrationTable(r.Context(), projections.GetRegistrationTableQuery{
		Search: listutil.ParseSearch(q),
		Page:   listutil.ParsePageParams(q),
	}, projections.GetRegistrationTableDeps{Registrations: records.Registrations})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleToggleRegistration handles POST /api/registrations/{id}/validate
func handleToggleRegistration(w http.ResponseWriter, r *http.Request) {
	updated, err := records.Registrations.ToggleValidated(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, projections.BuildRegistrationRows([]registration.Registration{updated})[0])
}

// handleDeleteRegistration handles DELETE /api/registrations/{id}
func handleDeleteRegistration(w http.ResponseWriter, r *http.Request) {
	if err := records.Registrations.Remove(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// mediaForm is a parsed event or member form. Text fields are nil when absent.
type mediaForm struct {
	Name        *string `json:"name"`
	Role        *string `json:"role"`
	Description *string `json:"description"`
	RemoveVideo bool    `json:"removeVideo"`

	photo *orchestrators.ImageInput
	video *orchestrators.VideoInput
	files []multipart.File
}

func (f *mediaForm) close() {
	for _, file := range f.files {
		_ = file.Close()
	}
}

func stringValue(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// parseMediaForm reads a multipart form (photo, video, crop_x/y/w/h) or a JSON body with text fields only.
func parseMediaForm(r *http.Request) (*mediaForm, error) {
	form := &mediaForm{}
	if !isFormRequest(r) {
		if err := strictDecode(r, form); err != nil {
			return nil, errs.Invalid("", "Requête invalide")
		}
		return form, nil
	}
	if err := r.ParseMultipartForm(maxFormMemory); err != nil && err != http.ErrNotMultipart {
		return nil, errs.Invalid("", "Formulaire invalide")
	}
	if r.ParseForm() != nil {
		return nil, errs.Invalid("", "Formulaire invalide")
	}

	optional := func(key string) *string {
		if _, ok := r.Form[key]; !ok {
			return nil
		}
		v := r.Form.Get(key)
		return &v
	}
	form.Name = optional("name")
	form.Role = optional("role")
	form.Description = optional("description")
	form.RemoveVideo = r.Form.Get("remove_video") == "on" || r.Form.Get("remove_video") == "true"

	crop, err := parseCrop(r)
	if err != nil {
		return nil, err
	}

	if file, header, err := r.FormFile("photo"); err == nil {
		form.files = append(form.files, file)
		form.photo = &orchestrators.ImageInput{Name: header.Filename, Body: file, Crop: crop}
	}
	if file, header, err := r.FormFile("video"); err == nil {
		form.files = append(form.files, file)
		form.video = &orchestrators.VideoInput{
			Name:        header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Size:        header.Size,
			Body:        file,
		}
	}
	return form, nil
}

// parseCrop reads the crop rectangle chosen in the crop dialog. No fields means no rectangle.
func parseCrop(r *http.Request) (*media.Rect, error) {
	keys := []string{"crop_x", "crop_y", "crop_w", "crop_h"}
	vals := make([]int, len(keys))
	present := 0
	for i, key := range keys {
		raw := r.Form.Get(key)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, errs.Invalid(key, "cadrage invalide")
		}
		vals[i] = n
		present++
	}
	switch present {
	case 0:
		return nil, nil
	case len(keys):
		return &media.Rect{X: vals[0], Y: vals[1], W: vals[2], H: vals[3]}, nil
	default:
		return nil, errs.Invalid("crop", "cadrage incomplet")
	}
}

// progressLogger reports upload progress at debug level, once per stage and step of 25%.
func progressLogger(kind string) orchestrators.StageProgress {
	last := map[string]int{}
	return func(stage string, percent int) {
		step := percent / 25
		if prev, ok := last[stage]; ok && prev == step {
			return
		}
		last[stage] = step
		slog.Debug("upload_progress", "record", kind, "stage", stage, "percent", percent)
	}
}

// handleCreateEvent handles POST /api/events (multipart: name, description, photo, video, crop_*)
func handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	form, err := parseMediaForm(r)
	if err != nil {
		writeError(w, err)
		return
	}
	defer form.close()

	created, err := orchestrators.ExecuteCreateEvent(r.Context(), orchestrators.CreateEventInput{
		Name:        stringValue(form.Name),
		Description: stringValue(form.Description),
		Photo:       form.photo,
		Video:       form.video,
		OnProgress:  progressLogger("event"),
	}, orchestrators.CreateEventDeps{Events: records.Events, Media: mediaDeps})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, projections.BuildEventCards([]event.Event{created})[0])
}

// handleUpdateEvent handles PUT /api/events/{id}
func handleUpdateEvent(w http.ResponseWriter, r *http.Request) {
	form, err := parseMediaForm(r)
	if err != nil {
		writeError(w, err)
		return
	}
	defer form.close()

	updated, err := orchestrators.ExecuteUpdateEvent(r.Context(), orchestrators.UpdateEventInput{
		ID:          r.PathValue("id"),
		Name:        form.Name,
		Description: form.Description,
		Photo:       form.photo,
		Video:       form.video,
		RemoveVideo: form.RemoveVideo,
		OnProgress:  progressLogger("event"),
	}, orchestrators.UpdateEventDeps{Events: records.Events, Media: mediaDeps})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, projections.BuildEventCards([]event.Event{updated})[0])
}

// handleDeleteEvent handles DELETE /api/events/{id}. The photo and video are removed best-effort.
func handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	if err := records.Events.Remove(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleCreateMember handles POST /api/members (multipart: name, role, description, photo, crop_*)
func handleCreateMember(w http.ResponseWriter, r *http.Request) {
	form, err := parseMediaForm(r)
	if err != nil {
		writeError(w, err)
		return
	}
	defer form.close()

	created, err := orchestrators.ExecuteCreateMember(r.Context(), orchestrators.CreateMemberInput{
		Name:        stringValue(form.Name),
		Role:        stringValue(form.Role),
		Description: stringValue(form.Description),
		Photo:       form.photo,
		OnProgress:  progressLogger("member"),
	}, orchestrators.CreateMemberDeps{Members: records.Members, Media: mediaDeps})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, projections.BuildMemberCards([]member.Member{created})[0])
}

// handleUpdateMember handles PUT /api/members/{id}
func handleUpdateMember(w http.ResponseWriter, r *http.Request) {
	form, err := parseMediaForm(r)
	if err != nil {
		writeError(w, err)
		return
	}
	defer form.close()

	updated, err := orchestrators.ExecuteUpdateMember(r.Context(), orchestrators.UpdateMemberInput{
		ID:          r.PathValue("id"),
		Name:        form.Name,
		Role:        form.Role,
		Description: form.Description,
		Photo:       form.photo,
		OnProgress:  progressLogger("member"),
	}, orchestrators.UpdateMemberDeps{Members: records.Members, Media: mediaDeps})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, projections.BuildMemberCards([]member.Member{updated})[0])
}

// handleDeleteMember handles DELETE /api/members/{id}. The photo is removed best-effort.
func handleDeleteMember(w http.ResponseWriter, r *http.Request) {
	if err := records.Members.Remove(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
