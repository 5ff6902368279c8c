package handlers

import (
	"net/http"

	"github.com/anything-ai/anything-ai/internal/middleware"
	"github.com/gorilla/mux"
)

// NewRouter wires the API routes. Public routes are rate limited per IP,
// authenticated ones per user. CORS and request logging wrap the router so
// they also see preflight and unmatched requests.
func NewRouter(h *Handler, limiter middleware.RateLimiter) http.Handler {
	router := mux.NewRouter()
	router.Use(h.metrics.Instrument)

	rateLimit := middleware.RateLimit(limiter, h.responder, h.metrics)

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", h.Health).Methods(http.MethodGet)

	public := api.NewRoute().Subrouter()
	public.Use(rateLimit)
	public.HandleFunc("/auth/register", h.Register).Methods(http.MethodPost)
	public.HandleFunc("/auth/login", h.Login).Methods(http.MethodPost)
	public.HandleFunc("/departments", h.ListDepartments).Methods(http.MethodGet)
	public.HandleFunc("/weather", h.Weather).Methods(http.MethodGet)
	public.HandleFunc("/time", h.Time).Methods(http.MethodGet)

	private := api.NewRoute().Subrouter()
	private.Use(middleware.Authenticate(h.tokens, h.responder))
	private.Use(rateLimit)
	private.HandleFunc("/chat/stream", h.ChatStream).Methods(http.MethodPost)
	private.HandleFunc("/auth/me", h.Me).Methods(http.MethodGet)
	private.HandleFunc("/departments/{id}/verify", h.VerifyAccessCode).Methods(http.MethodPost)
	private.HandleFunc("/conversations", h.ListConversations).Methods(http.MethodGet)
	private.HandleFunc("/conversations/{id}", h.GetConversation).Methods(http.MethodGet)
	private.HandleFunc("/conversations/{id}", h.DeleteConversation).Methods(http.MethodDelete)
	private.HandleFunc("/conversations/{id}/export", h.ExportConversation).Methods(http.MethodGet)

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.responder.JSON(w, http.StatusNotFound, map[string]interface{}{"error": true, "code": "NOT_FOUND", "message": "not found"})
	})

	return middleware.CORS(h.config.Server.CORSOrigins)(middleware.RequestLogger(h.logger)(router))
}
