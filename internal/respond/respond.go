// Package respond writes JSON bodies and localized error responses.
package respond

import (
	"encoding/json"
	"net/http"

	"github.com/anything-ai/anything-ai/internal/apperrors"
	"github.com/anything-ai/anything-ai/internal/i18n"
	"github.com/sirupsen/logrus"
)

// ErrorBody is the JSON shape of every error response
type ErrorBody struct {
	Error   bool   `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Responder writes responses using the request's preferred language
type Responder struct {
	localizer *i18n.Localizer
	logger    *logrus.Logger
}

func New(localizer *i18n.Localizer, logger *logrus.Logger) *Responder {
	return &Responder{localizer: localizer, logger: logger}
}

// JSON writes v with the given status
func (rs *Responder) JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		rs.logger.WithError(err).Warn("Failed to encode response")
	}
}

// Error writes err as {"error":true,"code":...,"message":...}
func (rs *Responder) Error(w http.ResponseWriter, r *http.Request, err error) {
	appErr := apperrors.As(err)
	if appErr.Kind == apperrors.ServerError {
		rs.logger.WithError(err).WithField("path", r.URL.Path).Error("Request failed")
	}
	rs.JSON(w, appErr.HTTPStatus(), rs.Body(r, appErr))
}

// Body builds the localized error body for appErr
func (rs *Responder) Body(r *http.Request, appErr *apperrors.Error) ErrorBody {
	return ErrorBody{
		Error:   true,
		Code:    string(appErr.Kind),
		Message: rs.Message(r, appErr),
	}
}

// Message returns the client-facing text for appErr
func (rs *Responder) Message(r *http.Request, appErr *apperrors.Error) string {
	id := appErr.MessageID
	if id == "" && appErr.Kind == apperrors.ServerError {
		id = i18n.MsgServerError
	}
	if id != "" && rs.localizer != nil {
		if msg, ok := rs.localizer.Lookup(rs.localizer.LanguageFor(r), id, nil); ok {
			return msg
		}
	}
	return appErr.Message
}

// Text returns a localized message by ID
func (rs *Responder) Text(r *http.Request, messageID string) string {
	if rs.localizer == nil {
		return messageID
	}
	return rs.localizer.Get(rs.localizer.LanguageFor(r), messageID, nil)
}
