package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"go-user-accounts/internal/media"
	"go-user-accounts/internal/middleware"
	"go-user-accounts/internal/model"
	"go-user-accounts/internal/service"
	"go-user-accounts/pkg/apierror"
)

type UserHandler struct {
	responder
	accounts *service.AccountService
	channels *service.ChannelService
}

func NewUserHandler(accounts *service.AccountService, channels *service.ChannelService, exposeDetails bool) *UserHandler {
	return &UserHandler{
		responder: responder{exposeDetails: exposeDetails},
		accounts:  accounts,
		channels:  channels,
	}
}

func (h *UserHandler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.claims(w, r)
	if !ok {
		return
	}

	var payload model.UpdateAccountRequest
	if err := decodeJSON(r, &payload); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := validatePayload(payload); err != nil {
		h.writeError(w, r, err)
		return
	}

	user, err := h.accounts.UpdateAccountDetails(r.Context(), claims.UserID, payload.FullName, payload.Email)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, user, "Account details updated successfully")
}

func (h *UserHandler) UpdateAvatar(w http.ResponseWriter, r *http.Request) {
	h.updateImage(w, r, "avatar", h.accounts.UpdateAvatar, "Avatar image updated successfully")
}

func (h *UserHandler) UpdateCoverImage(w http.ResponseWriter, r *http.Request) {
	h.updateImage(w, r, "coverImage", h.accounts.UpdateCoverImage, "Cover image updated successfully")
}

func (h *UserHandler) Channel(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.claims(w, r)
	if !ok {
		return
	}

	profile, err := h.channels.ChannelProfile(r.Context(), chi.URLParam(r, "userName"), claims.UserID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, profile, "User channel fetched successfully")
}

func (h *UserHandler) WatchHistory(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.claims(w, r)
	if !ok {
		return
	}

	history, err := h.channels.WatchHistory(r.Context(), claims.UserID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, history, "Watch history fetched successfully")
}

func (h *UserHandler) updateImage(
	w http.ResponseWriter,
	r *http.Request,
	field string,
	update func(ctx context.Context, userID string, upload *media.Upload) (model.PublicUser, error),
	message string,
) {
	claims, ok := h.claims(w, r)
	if !ok {
		return
	}

	if err := parseMultipart(r); err != nil {
		h.writeError(w, r, err)
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	upload, err := formUpload(r, field)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	user, err := update(r.Context(), claims.UserID, upload)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, user, message)
}

func (h *UserHandler) claims(w http.ResponseWriter, r *http.Request) (*model.AuthClaims, bool) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		h.writeError(w, r, apierror.Unauthorized("Unauthorized request"))
	}
	return claims, ok
}
