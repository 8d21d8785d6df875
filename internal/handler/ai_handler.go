package handler

import (
	"encoding/json"
	"net/http"

	"smart-notes-server/internal/domain"
	"smart-notes-server/internal/service"
	"smart-notes-server/pkg/response"

	"github.com/go-playground/validator/v10"
)

// AIHandler answers with a bare {result} or {error} body, without the
// envelope the note endpoints use.
type AIHandler struct {
	service  *service.AIService
	validate *validator.Validate
}

func NewAIHandler(service *service.AIService) *AIHandler {
	return &AIHandler{
		service:  service,
		validate: validator.New(),
	}
}

type aiError struct {
	Error string `json:"error"`
}

func (h *AIHandler) Invoke(w http.ResponseWriter, r *http.Request) {
	var req domain.AIRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Raw(w, http.StatusBadRequest, aiError{Error: "Invalid request payload"})
		return
	}

	if err := h.validate.Struct(req); err != nil {
		response.Raw(w, http.StatusBadRequest, aiError{Error: "Invalid action"})
		return
	}

	result, err := h.service.Run(r.Context(), &req)
	if err != nil {
		status, msg := errorStatus(err)
		if status >= http.StatusInternalServerError {
			logFailure(r, err)
		}
		response.Raw(w, status, aiError{Error: msg})
		return
	}

	response.Raw(w, http.StatusOK, result)
}
