package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"smart-notes-server/internal/domain"
	"smart-notes-server/internal/middleware"
	"smart-notes-server/internal/service"
	"smart-notes-server/pkg/response"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
)

type NoteHandler struct {
	service  *service.NoteService
	validate *validator.Validate
}

func NewNoteHandler(service *service.NoteService) *NoteHandler {
	return &NoteHandler{
		service:  service,
		validate: validator.New(),
	}
}

func (h *NoteHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)

	note, err := h.service.Create(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	response.Created(w, note)
}

func (h *NoteHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)

	notes, err := h.service.List(r.Context(), userID, r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	response.Success(w, notes)
}

func (h *NoteHandler) Get(w http.ResponseWriter, r *http.Request) {
	noteID := mux.Vars(r)["id"]
	userID := middleware.GetUserID(r)

	note, err := h.service.GetByID(r.Context(), userID, noteID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	response.Success(w, note)
}

func (h *NoteHandler) Update(w http.ResponseWriter, r *http.Request) {
	noteID := mux.Vars(r)["id"]

	var req domain.UpdateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request payload")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	userID := middleware.GetUserID(r)

	note, err := h.service.Save(r.Context(), userID, noteID, &req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	response.Success(w, note)
}

func (h *NoteHandler) Delete(w http.ResponseWriter, r *http.Request) {
	noteID := mux.Vars(r)["id"]
	userID := middleware.GetUserID(r)

	if err := h.service.Delete(r.Context(), userID, noteID); err != nil {
		writeError(w, r, err)
		return
	}

	response.Message(w, "Note deleted successfully")
}

func (h *NoteHandler) TogglePin(w http.ResponseWriter, r *http.Request) {
	noteID := mux.Vars(r)["id"]
	userID := middleware.GetUserID(r)

	note, err := h.service.TogglePin(r.Context(), userID, noteID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	response.Success(w, note)
}

func (h *NoteHandler) ListVersions(w http.ResponseWriter, r *http.Request) {
	noteID := mux.Vars(r)["id"]
	userID := middleware.GetUserID(r)

	versions, err := h.service.ListVersions(r.Context(), userID, noteID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	response.Success(w, versions)
}

func (h *NoteHandler) RestoreVersion(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	noteID := vars["id"]

	number, err := strconv.ParseInt(vars["version"], 10, 64)
	if err != nil || number < 1 {
		response.BadRequest(w, "Invalid version number")
		return
	}

	userID := middleware.GetUserID(r)

	note, err := h.service.RestoreVersion(r.Context(), userID, noteID, number)
	if err != nil {
		writeError(w, r, err)
		return
	}

	response.Success(w, note)
}
