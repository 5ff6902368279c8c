package handlers

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/anything-ai/anything-ai/internal/apperrors"
	"github.com/anything-ai/anything-ai/internal/i18n"
	"github.com/anything-ai/anything-ai/internal/models"
	"github.com/anything-ai/anything-ai/internal/services/ai"
	"github.com/anything-ai/anything-ai/internal/services/auth"
	"github.com/anything-ai/anything-ai/internal/services/storage"
	"github.com/anything-ai/anything-ai/pkg/logger"
	"github.com/sirupsen/logrus"
)

const titleMaxRunes = 50

type chatStreamRequest struct {
	Message           string               `json:"message"`
	SystemInstruction string               `json:"systemInstruction"`
	History           []models.HistoryTurn `json:"history"`
	ImageBase64       string               `json:"imageBase64"`
	MimeType          string               `json:"mimeType"`
	DepartmentID      string               `json:"departmentId"`
	ConversationID    string               `json:"conversationId"`
	AccessCode        string               `json:"accessCode"`
}

// ChatStream relays one chat turn to the model as Server-Sent Events.
// Everything up to the conversation lookup fails with a JSON error; once the
// stream is open failures become a terminal error event.
func (h *Handler) ChatStream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims := h.claims(ctx)

	var body chatStreamRequest
	if err := h.decode(w, r, &body); err != nil {
		h.responder.Error(w, r, err)
		return
	}

	chatReq, err := h.buildChatRequest(&body)
	if err != nil {
		h.responder.Error(w, r, err)
		return
	}

	// Authorization
	dept, err := h.authorizeDepartment(ctx, claims, body.DepartmentID, body.AccessCode)
	if err != nil {
		h.responder.Error(w, r, err)
		return
	}
	if chatReq.SystemInstruction == "" {
		chatReq.SystemInstruction = dept.SystemInstruction
	}
	if chatReq.SystemInstruction == "" {
		chatReq.SystemInstruction = h.config.Context.DefaultSystemInstruction
	}

	// Persist the user turn
	conv, created, err := h.conversationFor(ctx, claims, dept, body.ConversationID, chatReq.Message)
	if err != nil {
		h.responder.Error(w, r, err)
		return
	}

	log := logger.WithRequest(h.logger, claims.UserID, "")
	if conv != nil {
		log = logger.WithRequest(h.logger, claims.UserID, conv.ID)
		h.appendMessage(ctx, log, &models.Message{
			ConversationID: conv.ID,
			Role:           models.RoleUser,
			Text:           chatReq.Message,
			HasImage:       chatReq.Image != nil,
		})
	}

	// Headers go out before queueing so the client sees a live connection
	sse := newSSEWriter(w)
	sse.Open(ctx)
	defer sse.Close()

	if created {
		sse.Send(models.ConversationFrame{ConversationID: conv.ID, Title: conv.Title})
	}

	// The task runs to completion even if the client disconnects
	genCtx := context.WithoutCancel(ctx)
	err = h.queue.Submit(func() error {
		return h.generate(genCtx, r, sse, chatReq, conv, log)
	})
	if err != nil {
		appErr := apperrors.As(err)
		log.WithError(err).WithField("code", appErr.Kind).Warn("Chat stream failed")
		sse.Send(models.ErrorEvent{Code: string(appErr.Kind), Message: h.responder.Message(r, appErr)})
		h.metrics.RecordChatStream(strings.ToLower(string(appErr.Kind)))
		return
	}
	h.metrics.RecordChatStream("success")
}

// generate gathers context, streams the model reply and persists it
func (h *Handler) generate(ctx context.Context, r *http.Request, sse *sseWriter, req *models.ChatRequest, conv *models.Conversation, log *logrus.Entry) error {
	start := time.Now()

	lookupCtx := h.providers.Gather(ctx, req.Message)
	if !lookupCtx.Empty() {
		sse.Send(lookupCtx.Meta())
	}

	prompt := &ai.Prompt{
		Contents:          ai.BuildPromptContents(req, lookupCtx.PromptText(), h.config.Context.MaxHistoryTurns),
		SystemInstruction: req.SystemInstruction,
	}

	result, err := h.generator.Stream(ctx, prompt, func(text string) error {
		// A closed stream only stops delivery, never generation
		sse.Send(models.TokenEvent{Text: text})
		return nil
	})
	if err != nil {
		return err
	}

	if conv != nil {
		text := result.Text
		if strings.TrimSpace(text) == "" {
			text = h.responder.Text(r, i18n.MsgNoResponse)
		}
		h.appendMessage(ctx, log, &models.Message{
			ConversationID: conv.ID,
			Role:           models.RoleModel,
			Text:           text,
		})
	}

	usage := result.Usage
	sse.Send(models.DoneEvent{Usage: &usage})

	duration := time.Since(start)
	h.usage.Record(models.UsageRecord{
		Timestamp:    time.Now().UTC(),
		Model:        h.generator.Model(),
		InputTokens:  usage.InputTokens,
		OutputTokens: usage.OutputTokens,
		TotalTokens:  usage.InputTokens + usage.OutputTokens,
		DurationMs:   duration.Milliseconds(),
	})

	log.WithFields(logrus.Fields{
		"input_tokens":  usage.InputTokens,
		"output_tokens": usage.OutputTokens,
		"duration_ms":   duration.Milliseconds(),
	}).Info("Chat stream completed")
	return nil
}

func (h *Handler) buildChatRequest(body *chatStreamRequest) (*models.ChatRequest, error) {
	message := strings.TrimSpace(body.Message)
	if message == "" {
		return nil, apperrors.NewBadRequest("message is required").WithMessageID(i18n.MsgMessageRequired)
	}
	if err := h.security.ValidateInput(message); err != nil {
		return nil, apperrors.NewBadRequest("%s", err.Error())
	}

	history := make([]models.HistoryTurn, 0, len(body.History))
	for _, turn := range body.History {
		if turn.Role != models.RoleUser && turn.Role != models.RoleModel {
			return nil, apperrors.NewBadRequest("history role must be %q or %q", models.RoleUser, models.RoleModel)
		}
		history = append(history, turn)
	}

	req := &models.ChatRequest{
		Message:           message,
		SystemInstruction: strings.TrimSpace(body.SystemInstruction),
		History:           history,
	}

	if body.ImageBase64 != "" {
		image, err := decodeImage(body.ImageBase64, body.MimeType)
		if err != nil {
			return nil, err
		}
		req.Image = image
	}
	return req, nil
}

// decodeImage accepts raw base64 or a data URL
func decodeImage(encoded, mimeType string) (*models.ImageData, error) {
	if rest, ok := strings.CutPrefix(encoded, "data:"); ok {
		meta, payload, found := strings.Cut(rest, ",")
		if !found {
			return nil, apperrors.NewBadRequest("malformed image data URL")
		}
		if mimeType == "" {
			mimeType, _, _ = strings.Cut(meta, ";")
		}
		encoded = payload
	}
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	if !strings.HasPrefix(mimeType, "image/") {
		return nil, apperrors.NewBadRequest("unsupported image type %q", mimeType)
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, apperrors.NewBadRequest("image is not valid base64")
	}
	return &models.ImageData{Data: data, MimeType: mimeType}, nil
}

// authorizeDepartment checks that the caller may chat in departmentID.
// An empty departmentID means the caller's own department.
func (h *Handler) authorizeDepartment(ctx context.Context, claims *auth.Claims, departmentID, accessCode string) (*models.Department, error) {
	if departmentID == "" {
		departmentID = claims.DepartmentID
	}
	if departmentID != claims.DepartmentID {
		return nil, apperrors.NewForbidden("department mismatch").WithMessageID(i18n.MsgDepartmentMismatch)
	}

	dept, err := h.storage.GetDepartment(ctx, departmentID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperrors.NewForbidden("unknown department").WithMessageID(i18n.MsgDepartmentMismatch)
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ServerError, "failed to load department", err)
	}

	if dept.RequiresAccessCode() {
		if accessCode == "" {
			return nil, apperrors.NewForbidden("access code required").WithMessageID(i18n.MsgAccessCodeRequired)
		}
		if !auth.CheckAccessCode(dept.AccessCodeHash, accessCode) {
			return nil, apperrors.NewForbidden("invalid access code").WithMessageID(i18n.MsgAccessCodeInvalid)
		}
	}
	return dept, nil
}

// conversationFor returns the conversation to append to, creating one when
// conversationID is empty. A failed create is logged and yields nil: the
// chat still runs, unpersisted.
func (h *Handler) conversationFor(ctx context.Context, claims *auth.Claims, dept *models.Department, conversationID, message string) (*models.Conversation, bool, error) {
	if conversationID != "" {
		conv, err := h.storage.GetConversation(ctx, conversationID)
		if errors.Is(err, storage.ErrNotFound) {
			return nil, false, apperrors.NewBadRequest("conversation not found").WithMessageID(i18n.MsgConversationNotFound)
		}
		if err != nil {
			return nil, false, apperrors.Wrap(apperrors.ServerError, "failed to load conversation", err)
		}
		if conv.UserID != claims.UserID || conv.DepartmentID != dept.ID {
			return nil, false, apperrors.NewForbidden("conversation belongs to someone else")
		}
		return conv, false, nil
	}

	conv := &models.Conversation{
		UserID:       claims.UserID,
		DepartmentID: dept.ID,
		Title:        conversationTitle(message),
	}
	if err := h.storage.CreateConversation(ctx, conv); err != nil {
		h.logger.WithError(err).WithField("user_id", claims.UserID).Error("Failed to create conversation")
		return nil, false, nil
	}
	return conv, true, nil
}

// appendMessage persists msg; failures are logged and the relay continues
func (h *Handler) appendMessage(ctx context.Context, log *logrus.Entry, msg *models.Message) {
	if err := h.storage.AppendMessage(ctx, msg); err != nil {
		log.WithError(err).WithField("role", msg.Role).Error("Failed to persist message")
	}
}

// conversationTitle collapses whitespace in message and cuts it to titleMaxRunes
func conversationTitle(message string) string {
	title := strings.Join(strings.Fields(message), " ")
	if utf8.RuneCountInString(title) <= titleMaxRunes {
		return title
	}
	runes := []rune(title)
	return strings.TrimSpace(string(runes[:titleMaxRunes])) + "..."
}
