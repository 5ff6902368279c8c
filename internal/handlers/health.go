package handlers

import (
	"net/http"

	"github.com/anything-ai/anything-ai/internal/queue"
)

type healthResponse struct {
	Status string      `json:"status"`
	Model  string      `json:"model"`
	Queue  queue.Stats `json:"queue"`
}

// Health reports liveness and queue occupancy
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.responder.JSON(w, http.StatusOK, healthResponse{
		Status: "ok",
		Model:  h.generator.Model(),
		Queue:  h.queue.Stats(),
	})
}
