package service

import (
	"context"
	"log/slog"
	"strings"

	"go-user-accounts/internal/model"
	"go-user-accounts/pkg/apierror"
)

type ChannelStore interface {
	ChannelByUserName(ctx context.Context, userName string) (model.ChannelProfile, error)
	IsSubscribed(ctx context.Context, channelID string, viewerID string) (bool, error)
	WatchHistory(ctx context.Context, userID string) ([]model.WatchedVideo, error)
}

// ProfileCache holds viewer-independent channel profiles.
// Get returns nil, nil on a miss.
type ProfileCache interface {
	Get(ctx context.Context, userName string) (*model.ChannelProfile, error)
	Set(ctx context.Context, profile model.ChannelProfile) error
	Delete(ctx context.Context, userName string) error
}

type noopCache struct{}

func (noopCache) Get(context.Context, string) (*model.ChannelProfile, error) { return nil, nil }
func (noopCache) Set(context.Context, model.ChannelProfile) error             { return nil }
func (noopCache) Delete(context.Context, string) error                        { return nil }

type ChannelService struct {
	store ChannelStore
	cache ProfileCache
}

func NewChannelService(store ChannelStore, cache ProfileCache) *ChannelService {
	if cache == nil {
		cache = noopCache{}
	}
	return &ChannelService{store: store, cache: cache}
}

func (s *ChannelService) ChannelProfile(ctx context.Context, userName string, viewerID string) (model.ChannelProfile, error) {
	userName = model.NormalizeUserName(userName)
	if userName == "" {
		return model.ChannelProfile{}, apierror.Validation("username is missing")
	}

	profile, err := s.cachedProfile(ctx, userName)
	if err != nil {
		return model.ChannelProfile{}, err
	}

	subscribed, err := s.store.IsSubscribed(ctx, profile.ID, strings.TrimSpace(viewerID))
	if err != nil {
		return model.ChannelProfile{}, err
	}
	profile.IsSubscribed = subscribed

	return profile, nil
}

func (s *ChannelService) WatchHistory(ctx context.Context, userID string) ([]model.WatchedVideo, error) {
	history, err := s.store.WatchHistory(ctx, userID)
	if err != nil {
		return nil, err
	}
	if history == nil {
		history = []model.WatchedVideo{}
	}
	return history, nil
}

// cachedProfile treats cache failures as misses.
func (s *ChannelService) cachedProfile(ctx context.Context, userName string) (model.ChannelProfile, error) {
	cached, err := s.cache.Get(ctx, userName)
	if err != nil {
		slog.WarnContext(ctx, "channel cache read failed", "user_name", userName, "error", err)
	}
	if cached != nil {
		return *cached, nil
	}

	profile, err := s.store.ChannelByUserName(ctx, userName)
	if err != nil {
		return model.ChannelProfile{}, err
	}

	if err := s.cache.Set(ctx, profile); err != nil {
		slog.WarnContext(ctx, "channel cache write failed", "user_name", userName, "error", err)
	}
	return profile, nil
}
