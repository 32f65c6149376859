package service

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"go-user-accounts/internal/event"
	"go-user-accounts/internal/model"
	"go-user-accounts/pkg/apierror"
)

const issueFailedMessage = "Something went wrong while generating access and refresh token"

// CredentialStore is the subset of user persistence the session lifecycle needs.
type CredentialStore interface {
	FindByID(ctx context.Context, id string) (model.User, error)
	FindByLogin(ctx context.Context, userName string, email string) (model.User, error)
	SetRefreshToken(ctx context.Context, userID string, token string) error
	RotateRefreshToken(ctx context.Context, userID string, expected string, next string) error
	ClearRefreshToken(ctx context.Context, userID string) error
	UpdatePassword(ctx context.Context, userID string, password string) error
}

type TokenCodec interface {
	IssueAccess(user model.User) (string, error)
	IssueRefresh(userID string) (string, error)
	VerifyRefresh(token string) (*model.AuthClaims, error)
}

type LoginInput struct {
	UserName string
	Email    string
	Password string
}

type SessionService struct {
	store CredentialStore
	codec TokenCodec
	bus   event.Bus
}

func NewSessionService(store CredentialStore, codec TokenCodec, bus event.Bus) *SessionService {
	if bus == nil {
		bus = event.Discard{}
	}
	return &SessionService{store: store, codec: codec, bus: bus}
}

// Issue derives a fresh pair for userID and overwrites the stored refresh token.
func (s *SessionService) Issue(ctx context.Context, userID string) (model.TokenPair, error) {
	user, err := s.store.FindByID(ctx, userID)
	if err != nil {
		if apierror.HasCode(err, apierror.CodeNotFound) {
			return model.TokenPair{}, err
		}
		return model.TokenPair{}, s.issueFailed(ctx, err)
	}

	pair, err := s.derive(user)
	if err != nil {
		return model.TokenPair{}, s.issueFailed(ctx, err)
	}

	if err := s.store.SetRefreshToken(ctx, user.ID, pair.RefreshToken); err != nil {
		return model.TokenPair{}, s.issueFailed(ctx, err)
	}

	return pair, nil
}

func (s *SessionService) Login(ctx context.Context, input LoginInput) (model.LoginResult, error) {
	userName := strings.TrimSpace(input.UserName)
	email := strings.TrimSpace(input.Email)

	if userName == "" && email == "" {
		return model.LoginResult{}, apierror.Validation("username or email is required")
	}
	if input.Password == "" {
		return model.LoginResult{}, apierror.Validation("password is required")
	}

	user, err := s.store.FindByLogin(ctx, userName, email)
	if err != nil {
		return model.LoginResult{}, err
	}

	if !user.PasswordMatches(input.Password) {
		return model.LoginResult{}, apierror.Unauthorized("Invalid user credentials")
	}

	pair, err := s.Issue(ctx, user.ID)
	if err != nil {
		return model.LoginResult{}, err
	}

	s.bus.Publish(event.New(event.TypeUserLoggedIn, user.ID, map[string]string{"userName": user.UserName}))

	return model.LoginResult{
		User:         user.Public(),
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	}, nil
}

// Logout clears the stored refresh token. It succeeds when there is none.
func (s *SessionService) Logout(ctx context.Context, userID string) error {
	if err := s.store.ClearRefreshToken(ctx, userID); err != nil {
		return err
	}

	s.bus.Publish(event.New(event.TypeUserLoggedOut, userID, nil))
	return nil
}

// Refresh rotates the session. The presented token must be the one currently
// stored; the swap is conditional so only one concurrent caller can win.
func (s *SessionService) Refresh(ctx context.Context, presented string) (model.TokenPair, error) {
	presented = strings.TrimSpace(presented)
	if presented == "" {
		return model.TokenPair{}, apierror.Unauthorized("Unauthorized request")
	}

	claims, err := s.codec.VerifyRefresh(presented)
	if err != nil {
		return model.TokenPair{}, apierror.Unauthorized("Invalid refresh token")
	}

	user, err := s.store.FindByID(ctx, claims.UserID)
	if err != nil {
		if apierror.HasCode(err, apierror.CodeNotFound) {
			return model.TokenPair{}, apierror.Unauthorized("Invalid refresh token")
		}
		return model.TokenPair{}, unauthorizedFrom(err)
	}

	if user.RefreshToken == "" || user.RefreshToken != presented {
		return model.TokenPair{}, apierror.Unauthorized("Refresh token used or expired")
	}

	pair, err := s.derive(user)
	if err != nil {
		return model.TokenPair{}, unauthorizedFrom(err)
	}

	if err := s.store.RotateRefreshToken(ctx, user.ID, presented, pair.RefreshToken); err != nil {
		if errors.Is(err, model.ErrRefreshTokenMismatch) {
			return model.TokenPair{}, apierror.Unauthorized("Refresh token used or expired")
		}
		return model.TokenPair{}, unauthorizedFrom(err)
	}

	s.bus.Publish(event.New(event.TypeSessionRefreshed, user.ID, nil))
	return pair, nil
}

func (s *SessionService) ChangePassword(ctx context.Context, userID string, current string, next string) error {
	if current == "" || next == "" {
		return apierror.Validation("All fields are required")
	}

	user, err := s.store.FindByID(ctx, userID)
	if err != nil {
		return err
	}

	if !user.PasswordMatches(current) {
		return apierror.Unauthorized("Invalid current password")
	}

	if err := s.store.UpdatePassword(ctx, user.ID, next); err != nil {
		return err
	}

	s.bus.Publish(event.New(event.TypeUserPasswordChanged, user.ID, nil))
	return nil
}

func (s *SessionService) derive(user model.User) (model.TokenPair, error) {
	access, err := s.codec.IssueAccess(user)
	if err != nil {
		return model.TokenPair{}, err
	}

	refresh, err := s.codec.IssueRefresh(user.ID)
	if err != nil {
		return model.TokenPair{}, err
	}

	return model.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *SessionService) issueFailed(ctx context.Context, cause error) error {
	slog.ErrorContext(ctx, "token issue failed", "error", cause)
	return apierror.Internal(issueFailedMessage, cause)
}

func unauthorizedFrom(err error) error {
	var apiErr *apierror.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatus == http.StatusUnauthorized {
		return apiErr
	}
	return apierror.Unauthorized(err.Error())
}
