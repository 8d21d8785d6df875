package handler

import (
	"encoding/json"
	"net/http"

	"smart-notes-server/internal/domain"
	"smart-notes-server/internal/middleware"
	"smart-notes-server/internal/service"
	"smart-notes-server/pkg/response"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
)

type EncryptionHandler struct {
	service  *service.EncryptionService
	validate *validator.Validate
}

func NewEncryptionHandler(service *service.EncryptionService) *EncryptionHandler {
	return &EncryptionHandler{
		service:  service,
		validate: validator.New(),
	}
}

func (h *EncryptionHandler) Encrypt(w http.ResponseWriter, r *http.Request) {
	var req domain.EncryptNoteRequest
	if !h.decode(w, r, &req) {
		return
	}

	note, err := h.service.Encrypt(r.Context(), middleware.GetUserID(r), mux.Vars(r)["id"], &req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	response.Success(w, note)
}

func (h *EncryptionHandler) Unlock(w http.ResponseWriter, r *http.Request) {
	var req domain.PasswordRequest
	if !h.decode(w, r, &req) {
		return
	}

	note, err := h.service.Unlock(r.Context(), middleware.GetUserID(r), mux.Vars(r)["id"], req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}

	response.Success(w, note)
}

func (h *EncryptionHandler) Decrypt(w http.ResponseWriter, r *http.Request) {
	var req domain.PasswordRequest
	if !h.decode(w, r, &req) {
		return
	}

	note, err := h.service.Decrypt(r.Context(), middleware.GetUserID(r), mux.Vars(r)["id"], req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}

	response.Success(w, note)
}

func (h *EncryptionHandler) decode(w http.ResponseWriter, r *http.Request, req any) bool {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		response.BadRequest(w, "Invalid request payload")
		return false
	}

	if err := h.validate.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return false
	}

	return true
}
