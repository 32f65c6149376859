package handler

import (
	"net/http"
	"strings"

	"go-user-accounts/internal/middleware"
	"go-user-accounts/internal/model"
	"go-user-accounts/internal/service"
	"go-user-accounts/pkg/apierror"
)

type AuthHandler struct {
	responder
	sessions *service.SessionService
	accounts *service.AccountService
	cookies  CookieConfig
}

func NewAuthHandler(sessions *service.SessionService, accounts *service.AccountService, cookies CookieConfig, exposeDetails bool) *AuthHandler {
	return &AuthHandler{
		responder: responder{exposeDetails: exposeDetails},
		sessions:  sessions,
		accounts:  accounts,
		cookies:   cookies,
	}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	if err := parseMultipart(r); err != nil {
		h.writeError(w, r, err)
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	form := model.RegisterForm{
		FullName: r.FormValue("fullName"),
		Email:    strings.TrimSpace(r.FormValue("email")),
		UserName: strings.TrimSpace(r.FormValue("userName")),
		Password: r.FormValue("password"),
	}
	if err := validatePayload(form); err != nil {
		h.writeError(w, r, err)
		return
	}

	avatar, err := formUpload(r, "avatar")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	cover, err := formUpload(r, "coverImage")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	user, err := h.accounts.Register(r.Context(), service.RegisterInput{
		FullName:   form.FullName,
		Email:      form.Email,
		UserName:   form.UserName,
		Password:   form.Password,
		Avatar:     avatar,
		CoverImage: cover,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusCreated, user, "User registered successfully")
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var payload model.LoginRequest
	if err := decodeJSON(r, &payload); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := validatePayload(payload); err != nil {
		h.writeError(w, r, err)
		return
	}

	result, err := h.sessions.Login(r.Context(), service.LoginInput{
		UserName: payload.UserName,
		Email:    payload.Email,
		Password: payload.Password,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.cookies.setSession(w, model.TokenPair{AccessToken: result.AccessToken, RefreshToken: result.RefreshToken})
	writeSuccess(w, http.StatusOK, result, "User logged in successfully")
}

// Refresh reads the refresh token from its cookie, falling back to the body.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	presented := ""
	if cookie, err := r.Cookie(middleware.RefreshTokenCookie); err == nil {
		presented = strings.TrimSpace(cookie.Value)
	}

	if presented == "" && r.Body != nil && r.ContentLength != 0 {
		var payload model.RefreshRequest
		if err := decodeJSON(r, &payload); err != nil {
			h.writeError(w, r, err)
			return
		}
		presented = payload.RefreshToken
	}

	pair, err := h.sessions.Refresh(r.Context(), presented)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.cookies.setSession(w, pair)
	writeSuccess(w, http.StatusOK, pair, "Access token refreshed")
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		h.writeError(w, r, apierror.Unauthorized("Unauthorized request"))
		return
	}

	if err := h.sessions.Logout(r.Context(), claims.UserID); err != nil {
		h.writeError(w, r, err)
		return
	}

	h.cookies.clearSession(w)
	writeSuccess(w, http.StatusOK, map[string]any{}, "User logged out")
}

func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		h.writeError(w, r, apierror.Unauthorized("Unauthorized request"))
		return
	}

	var payload model.ChangePasswordRequest
	if err := decodeJSON(r, &payload); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := validatePayload(payload); err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.sessions.ChangePassword(r.Context(), claims.UserID, payload.CurrentPassword, payload.NewPassword); err != nil {
		h.writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{}, "Password changed successfully")
}

func (h *AuthHandler) CurrentUser(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		h.writeError(w, r, apierror.Unauthorized("Unauthorized request"))
		return
	}

	user, err := h.accounts.CurrentUser(r.Context(), claims.UserID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, user, "Current user fetched successfully")
}
