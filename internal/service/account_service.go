package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"go-user-accounts/internal/event"
	"go-user-accounts/internal/media"
	"go-user-accounts/internal/model"
	"go-user-accounts/pkg/apierror"
)

type AccountStore interface {
	FindByID(ctx context.Context, id string) (model.User, error)
	ExistsByUserNameOrEmail(ctx context.Context, userName string, email string) (bool, error)
	EmailTakenByOther(ctx context.Context, email string, userID string) (bool, error)
	Create(ctx context.Context, nu model.NewUser) (model.User, error)
	UpdateAccount(ctx context.Context, userID string, fullName string, email string) (model.User, error)
	UpdateAvatar(ctx context.Context, userID string, url string) (model.User, error)
	UpdateCoverImage(ctx context.Context, userID string, url string) (model.User, error)
}

// ProfileEvicter drops cached channel profiles after a profile write.
type ProfileEvicter interface {
	Delete(ctx context.Context, userName string) error
}

type RegisterInput struct {
	FullName   string
	Email      string
	UserName   string
	Password   string
	Avatar     *media.Upload
	CoverImage *media.Upload
}

type AccountService struct {
	store      AccountStore
	media      media.Store
	normalizer *media.Normalizer
	cache      ProfileEvicter
	bus        event.Bus
}

func NewAccountService(store AccountStore, mediaStore media.Store, normalizer *media.Normalizer, cache ProfileEvicter, bus event.Bus) *AccountService {
	if cache == nil {
		cache = noopCache{}
	}
	if bus == nil {
		bus = event.Discard{}
	}
	return &AccountService{store: store, media: mediaStore, normalizer: normalizer, cache: cache, bus: bus}
}

func (s *AccountService) Register(ctx context.Context, input RegisterInput) (model.PublicUser, error) {
	fullName := strings.TrimSpace(input.FullName)
	email := strings.TrimSpace(input.Email)
	userName := strings.TrimSpace(input.UserName)

	if fullName == "" || email == "" || userName == "" || strings.TrimSpace(input.Password) == "" {
		return model.PublicUser{}, apierror.Validation("All fields are required")
	}

	exists, err := s.store.ExistsByUserNameOrEmail(ctx, userName, email)
	if err != nil {
		return model.PublicUser{}, err
	}
	if exists {
		return model.PublicUser{}, apierror.Conflict("User with email or username already exists", "")
	}

	if input.Avatar == nil || len(input.Avatar.Data) == 0 {
		return model.PublicUser{}, apierror.Validation("Avatar file is required")
	}

	avatarURL, err := s.upload(ctx, media.KindAvatar, "", *input.Avatar)
	if err != nil {
		return model.PublicUser{}, uploadFailed(ctx, "Error while uploading avatar", err)
	}

	var coverURL string
	if input.CoverImage != nil && len(input.CoverImage.Data) > 0 {
		coverURL, err = s.upload(ctx, media.KindCoverImage, "", *input.CoverImage)
		if err != nil {
			return model.PublicUser{}, uploadFailed(ctx, "Error while uploading cover image", err)
		}
	}

	user, err := s.store.Create(ctx, model.NewUser{
		UserName:   userName,
		Email:      email,
		FullName:   fullName,
		Password:   input.Password,
		Avatar:     avatarURL,
		CoverImage: coverURL,
	})
	if errors.Is(err, model.ErrUserAlreadyExists) {
		return model.PublicUser{}, apierror.Conflict("User with email or username already exists", "")
	}
	if err != nil {
		return model.PublicUser{}, apierror.Internal("Something went wrong while registering the user", err)
	}

	s.bus.Publish(event.New(event.TypeUserRegistered, user.ID, map[string]string{"userName": user.UserName}))
	return user.Public(), nil
}

func (s *AccountService) CurrentUser(ctx context.Context, userID string) (model.PublicUser, error) {
	user, err := s.store.FindByID(ctx, userID)
	if err != nil {
		return model.PublicUser{}, err
	}
	return user.Public(), nil
}

func (s *AccountService) UpdateAccountDetails(ctx context.Context, userID string, fullName string, email string) (model.PublicUser, error) {
	fullName = strings.TrimSpace(fullName)
	email = strings.TrimSpace(email)
	if fullName == "" || email == "" {
		return model.PublicUser{}, apierror.Validation("All fields are required")
	}

	taken, err := s.store.EmailTakenByOther(ctx, email, userID)
	if err != nil {
		return model.PublicUser{}, err
	}
	if taken {
		return model.PublicUser{}, apierror.Conflict("Email already in use", "")
	}

	user, err := s.store.UpdateAccount(ctx, userID, fullName, email)
	if errors.Is(err, model.ErrUserAlreadyExists) {
		return model.PublicUser{}, apierror.Conflict("Email already in use", "")
	}
	if err != nil {
		return model.PublicUser{}, err
	}

	s.profileChanged(ctx, user, "account")
	return user.Public(), nil
}

func (s *AccountService) UpdateAvatar(ctx context.Context, userID string, upload *media.Upload) (model.PublicUser, error) {
	if upload == nil || len(upload.Data) == 0 {
		return model.PublicUser{}, apierror.Validation("Avatar file is missing")
	}

	url, err := s.upload(ctx, media.KindAvatar, userID, *upload)
	if err != nil {
		return model.PublicUser{}, uploadFailed(ctx, "Error while uploading avatar", err)
	}

	user, err := s.store.UpdateAvatar(ctx, userID, url)
	if err != nil {
		return model.PublicUser{}, err
	}

	s.profileChanged(ctx, user, "avatar")
	return user.Public(), nil
}

func (s *AccountService) UpdateCoverImage(ctx context.Context, userID string, upload *media.Upload) (model.PublicUser, error) {
	if upload == nil || len(upload.Data) == 0 {
		return model.PublicUser{}, apierror.Validation("Cover image file is missing")
	}

	url, err := s.upload(ctx, media.KindCoverImage, userID, *upload)
	if err != nil {
		return model.PublicUser{}, uploadFailed(ctx, "Error while uploading cover image", err)
	}

	user, err := s.store.UpdateCoverImage(ctx, userID, url)
	if err != nil {
		return model.PublicUser{}, err
	}

	s.profileChanged(ctx, user, "coverImage")
	return user.Public(), nil
}

func (s *AccountService) upload(ctx context.Context, kind media.Kind, ownerID string, upload media.Upload) (string, error) {
	normalized, err := s.normalizer.Normalize(upload)
	if err != nil {
		return "", err
	}

	key := media.ObjectKey(kind, ownerID, s.normalizer.Extension())
	return s.media.Put(ctx, key, normalized.ContentType, normalized.Data)
}

func (s *AccountService) profileChanged(ctx context.Context, user model.User, field string) {
	if err := s.cache.Delete(ctx, user.UserName); err != nil {
		slog.WarnContext(ctx, "channel cache eviction failed", "user_name", user.UserName, "error", err)
	}
	s.bus.Publish(event.New(event.TypeUserProfileUpdated, user.ID, map[string]string{"field": field}))
}

// uploadFailed keeps client-caused media rejections (4xx) and turns
// everything else into a 500 with a generic message.
func uploadFailed(ctx context.Context, message string, err error) error {
	var apiErr *apierror.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatus < 500 {
		return apiErr
	}
	slog.ErrorContext(ctx, "media upload failed", "error", err)
	return apierror.Internal(message, err)
}
