package handlers

import (
	"net/http"
)

type lookupResponse struct {
	Available bool        `json:"available"`
	Data      interface{} `json:"data,omitempty"`
}

// Weather reports current conditions for ?query=
func (h *Handler) Weather(w http.ResponseWriter, r *http.Request) {
	data, err := h.providers.Weather.Lookup(r.Context(), r.URL.Query().Get("query"))
	if err != nil {
		h.logger.WithError(err).Debug("Weather unavailable")
		h.responder.JSON(w, http.StatusOK, lookupResponse{Available: false})
		return
	}
	h.responder.JSON(w, http.StatusOK, lookupResponse{Available: true, Data: data})
}

// Time reports the local time for ?query=
func (h *Handler) Time(w http.ResponseWriter, r *http.Request) {
	data, err := h.providers.Time.Lookup(r.Context(), r.URL.Query().Get("query"))
	if err != nil {
		h.logger.WithError(err).Debug("Time unavailable")
		h.responder.JSON(w, http.StatusOK, lookupResponse{Available: false})
		return
	}
	h.responder.JSON(w, http.StatusOK, lookupResponse{Available: true, Data: data})
}
