package handlers

import (
	"errors"
	"net/http"
	"regexp"
	"strings"

	"github.com/anything-ai/anything-ai/internal/apperrors"
	"github.com/anything-ai/anything-ai/internal/i18n"
	"github.com/anything-ai/anything-ai/internal/models"
	"github.com/anything-ai/anything-ai/internal/services/auth"
	"github.com/anything-ai/anything-ai/internal/services/storage"
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]{3,32}$`)

const minPasswordLength = 6

type registerRequest struct {
	Username     string `json:"username"`
	Password     string `json:"password"`
	DepartmentID string `json:"departmentId"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// Register creates an account in an existing department
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := h.decode(w, r, &req); err != nil {
		h.responder.Error(w, r, err)
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	if !usernamePattern.MatchString(req.Username) {
		h.responder.Error(w, r, apperrors.NewBadRequest("username must be 3-32 letters, digits, '.', '_' or '-'"))
		return
	}
	if len(req.Password) < minPasswordLength {
		h.responder.Error(w, r, apperrors.NewBadRequest("password must be at least %d characters", minPasswordLength))
		return
	}

	ctx := r.Context()
	if _, err := h.storage.GetDepartment(ctx, req.DepartmentID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			h.responder.Error(w, r, apperrors.NewBadRequest("unknown department %q", req.DepartmentID))
			return
		}
		h.responder.Error(w, r, err)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.responder.Error(w, r, err)
		return
	}

	user := &models.User{
		Username:     req.Username,
		PasswordHash: hash,
		DepartmentID: req.DepartmentID,
		Role:         "user",
	}
	if err := h.storage.CreateUser(ctx, user); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			h.responder.Error(w, r, apperrors.NewBadRequest("username %q is taken", req.Username))
			return
		}
		h.responder.Error(w, r, err)
		return
	}

	h.issue(w, r, http.StatusCreated, user)
}

// Login exchanges credentials for a bearer token
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := h.decode(w, r, &req); err != nil {
		h.responder.Error(w, r, err)
		return
	}

	invalid := apperrors.NewUnauthorized("invalid credentials").WithMessageID(i18n.MsgInvalidCredentials)

	user, err := h.storage.GetUserByUsername(r.Context(), strings.TrimSpace(req.Username))
	if errors.Is(err, storage.ErrNotFound) {
		h.responder.Error(w, r, invalid)
		return
	}
	if err != nil {
		h.responder.Error(w, r, err)
		return
	}
	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		h.responder.Error(w, r, invalid)
		return
	}

	h.issue(w, r, http.StatusOK, user)
}

// Me returns the authenticated user
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	claims := h.claims(r.Context())
	user, err := h.storage.GetUser(r.Context(), claims.UserID)
	if errors.Is(err, storage.ErrNotFound) {
		h.responder.Error(w, r, apperrors.NewUnauthorized("user no longer exists").WithMessageID(i18n.MsgInvalidToken))
		return
	}
	if err != nil {
		h.responder.Error(w, r, err)
		return
	}
	h.responder.JSON(w, http.StatusOK, user)
}

func (h *Handler) issue(w http.ResponseWriter, r *http.Request, status int, user *models.User) {
	token, err := h.tokens.IssueToken(user)
	if err != nil {
		h.responder.Error(w, r, err)
		return
	}
	h.responder.JSON(w, status, authResponse{Token: token, User: user})
}
