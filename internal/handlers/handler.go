package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/anything-ai/anything-ai/internal/apperrors"
	"github.com/anything-ai/anything-ai/internal/config"
	"github.com/anything-ai/anything-ai/internal/i18n"
	"github.com/anything-ai/anything-ai/internal/middleware"
	"github.com/anything-ai/anything-ai/internal/models"
	"github.com/anything-ai/anything-ai/internal/queue"
	"github.com/anything-ai/anything-ai/internal/respond"
	"github.com/anything-ai/anything-ai/internal/services/ai"
	"github.com/anything-ai/anything-ai/internal/services/auth"
	"github.com/anything-ai/anything-ai/internal/services/lookup"
	"github.com/anything-ai/anything-ai/internal/services/storage"
	"github.com/sirupsen/logrus"
)

// UsageRecorder appends usage records
type UsageRecorder interface {
	Record(rec models.UsageRecord)
}

// Deps are the services shared by every handler
type Deps struct {
	Config    *config.Config
	Storage   storage.Storage
	Generator ai.Generator
	Providers *lookup.Providers
	Queue     *queue.Queue
	Tokens    *auth.Service
	Usage     UsageRecorder
	Responder *respond.Responder
	Metrics   *middleware.Metrics
	Logger    *logrus.Logger
}

// Handler serves the HTTP API
type Handler struct {
	config    *config.Config
	storage   storage.Storage
	generator ai.Generator
	providers *lookup.Providers
	queue     *queue.Queue
	tokens    *auth.Service
	usage     UsageRecorder
	responder *respond.Responder
	security  *middleware.SecurityMiddleware
	metrics   *middleware.Metrics
	logger    *logrus.Logger
}

// NewHandler creates a new API handler
func NewHandler(deps Deps) *Handler {
	return &Handler{
		config:    deps.Config,
		storage:   deps.Storage,
		generator: deps.Generator,
		providers: deps.Providers,
		queue:     deps.Queue,
		tokens:    deps.Tokens,
		usage:     deps.Usage,
		responder: deps.Responder,
		security:  middleware.NewSecurityMiddleware(deps.Logger),
		metrics:   deps.Metrics,
		logger:    deps.Logger,
	}
}

func (h *Handler) claims(ctx context.Context) *auth.Claims {
	return middleware.ClaimsFrom(ctx)
}

// decode reads a JSON body, bounded by the configured size
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v interface{}) error {
	if limit := h.config.Server.MaxBodyBytes; limit > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, limit)
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperrors.NewBadRequest("invalid request body").WithMessageID(i18n.MsgInvalidBody)
	}
	return nil
}
