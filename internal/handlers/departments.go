package handlers

import (
	"errors"
	"net/http"

	"github.com/anything-ai/anything-ai/internal/apperrors"
	"github.com/anything-ai/anything-ai/internal/services/auth"
	"github.com/anything-ai/anything-ai/internal/services/storage"
	"github.com/gorilla/mux"
)

type departmentView struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	RequiresAccessCode bool   `json:"requiresAccessCode"`
}

// ListDepartments returns every department without its secrets
func (h *Handler) ListDepartments(w http.ResponseWriter, r *http.Request) {
	depts, err := h.storage.ListDepartments(r.Context())
	if err != nil {
		h.responder.Error(w, r, err)
		return
	}

	views := make([]departmentView, 0, len(depts))
	for _, d := range depts {
		views = append(views, departmentView{ID: d.ID, Name: d.Name, RequiresAccessCode: d.RequiresAccessCode()})
	}
	h.responder.JSON(w, http.StatusOK, views)
}

// VerifyAccessCode checks a department access code without starting a chat
func (h *Handler) VerifyAccessCode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AccessCode string `json:"accessCode"`
	}
	if err := h.decode(w, r, &req); err != nil {
		h.responder.Error(w, r, err)
		return
	}
	if !auth.ValidAccessCodeFormat(req.AccessCode) {
		h.responder.Error(w, r, apperrors.NewBadRequest("%s", auth.ErrInvalidAccessCode.Error()))
		return
	}

	dept, err := h.storage.GetDepartment(r.Context(), mux.Vars(r)["id"])
	if errors.Is(err, storage.ErrNotFound) {
		h.responder.Error(w, r, apperrors.NewBadRequest("unknown department"))
		return
	}
	if err != nil {
		h.responder.Error(w, r, err)
		return
	}

	valid := !dept.RequiresAccessCode() || auth.CheckAccessCode(dept.AccessCodeHash, req.AccessCode)
	h.responder.JSON(w, http.StatusOK, map[string]bool{"valid": valid})
}
