package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/anything-ai/anything-ai/internal/apperrors"
	"github.com/anything-ai/anything-ai/internal/i18n"
	"github.com/anything-ai/anything-ai/internal/models"
	"github.com/anything-ai/anything-ai/internal/services/storage"
	"github.com/anything-ai/anything-ai/pkg/markdown"
	"github.com/gorilla/mux"
)

type conversationDetail struct {
	*models.Conversation
	Messages []*models.Message `json:"messages"`
}

// ListConversations returns the caller's conversations, newest first
func (h *Handler) ListConversations(w http.ResponseWriter, r *http.Request) {
	claims := h.claims(r.Context())
	convs, err := h.storage.ListConversations(r.Context(), claims.UserID, r.URL.Query().Get("departmentId"))
	if err != nil {
		h.responder.Error(w, r, err)
		return
	}
	if convs == nil {
		convs = []*models.Conversation{}
	}
	h.responder.JSON(w, http.StatusOK, convs)
}

// GetConversation returns one conversation with its messages
func (h *Handler) GetConversation(w http.ResponseWriter, r *http.Request) {
	conv, err := h.ownedConversation(r)
	if err != nil {
		h.responder.Error(w, r, err)
		return
	}

	msgs, err := h.storage.ListMessages(r.Context(), conv.ID)
	if err != nil {
		h.responder.Error(w, r, err)
		return
	}
	h.responder.JSON(w, http.StatusOK, conversationDetail{Conversation: conv, Messages: msgs})
}

// DeleteConversation removes a conversation and its messages
func (h *Handler) DeleteConversation(w http.ResponseWriter, r *http.Request) {
	conv, err := h.ownedConversation(r)
	if err != nil {
		h.responder.Error(w, r, err)
		return
	}

	if err := h.storage.DeleteConversation(r.Context(), conv.ID); err != nil && !errors.Is(err, storage.ErrNotFound) {
		h.responder.Error(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ExportConversation renders a conversation as an HTML page
func (h *Handler) ExportConversation(w http.ResponseWriter, r *http.Request) {
	conv, err := h.ownedConversation(r)
	if err != nil {
		h.responder.Error(w, r, err)
		return
	}

	msgs, err := h.storage.ListMessages(r.Context(), conv.ID)
	if err != nil {
		h.responder.Error(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"conversation-%s.html\"", conv.ID))
	w.WriteHeader(http.StatusOK)
	w.Write(markdown.RenderConversation(conv, msgs))
}

func (h *Handler) ownedConversation(r *http.Request) (*models.Conversation, error) {
	conv, err := h.storage.GetConversation(r.Context(), mux.Vars(r)["id"])
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperrors.NewBadRequest("conversation not found").WithMessageID(i18n.MsgConversationNotFound)
	}
	if err != nil {
		return nil, err
	}
	if conv.UserID != h.claims(r.Context()).UserID {
		return nil, apperrors.NewForbidden("conversation belongs to someone else")
	}
	return conv, nil
}
