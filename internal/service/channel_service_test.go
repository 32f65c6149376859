package service

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-user-accounts/internal/model"
	"go-user-accounts/internal/repository/memory"
)

type mapCache struct {
	profiles map[string]model.ChannelProfile
	gets     int
	failGet  bool
}

func (c *mapCache) Get(_ context.Context, userName string) (*model.ChannelProfile, error) {
	c.gets++
	if c.failGet {
		return nil, errors.New("redis down")
	}
	p, ok := c.profiles[userName]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (c *mapCache) Set(_ context.Context, profile model.ChannelProfile) error {
	profile.IsSubscribed = false
	c.profiles[profile.UserName] = profile
	return nil
}

func (c *mapCache) Delete(_ context.Context, userName string) error {
	delete(c.profiles, userName)
	return nil
}

func TestChannelService_ChannelProfile(t *testing.T) {
	t.Parallel()

	store := memory.NewStore()
	ann := seedUser(t, store, "annlee", "ann@x.com", "secret123")
	bob := seedUser(t, store, "bob", "bob@x.com", "secret123")
	cat := seedUser(t, store, "cat", "cat@x.com", "secret123")
	store.Subscribe(bob.ID, ann.ID)
	store.Subscribe(cat.ID, ann.ID)
	store.Subscribe(ann.ID, bob.ID)

	cache := &mapCache{profiles: map[string]model.ChannelProfile{}}
	svc := NewChannelService(store, cache)
	ctx := context.Background()

	profile, err := svc.ChannelProfile(ctx, "AnnLee", bob.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), profile.SubscribersCount)
	assert.Equal(t, int64(1), profile.SubscribedToCount)
	assert.True(t, profile.IsSubscribed)
	assert.Contains(t, cache.profiles, "annlee")

	cached, err := svc.ChannelProfile(ctx, "annlee", ann.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), cached.SubscribersCount)
	assert.False(t, cached.IsSubscribed, "subscription state is computed per viewer")

	_, err = svc.ChannelProfile(ctx, " ", bob.ID)
	requireAPIError(t, err, http.StatusBadRequest, "username is missing")

	_, err = svc.ChannelProfile(ctx, "ghost", bob.ID)
	requireAPIError(t, err, http.StatusNotFound, "Channel not found")
}

func TestChannelService_CacheFailureFallsBackToStore(t *testing.T) {
	t.Parallel()

	store := memory.NewStore()
	seedUser(t, store, "annlee", "ann@x.com", "secret123")
	svc := NewChannelService(store, &mapCache{profiles: map[string]model.ChannelProfile{}, failGet: true})

	profile, err := svc.ChannelProfile(context.Background(), "annlee", "")
	require.NoError(t, err)
	assert.Equal(t, "annlee", profile.UserName)
}

func TestChannelService_WatchHistory(t *testing.T) {
	t.Parallel()

	store := memory.NewStore()
	ann := seedUser(t, store, "annlee", "ann@x.com", "secret123")
	bob := seedUser(t, store, "bob", "bob@x.com", "secret123")
	svc := NewChannelService(store, nil)
	ctx := context.Background()

	empty, err := svc.WatchHistory(ctx, ann.ID)
	require.NoError(t, err)
	require.NotNil(t, empty)
	assert.Empty(t, empty)

	first := store.AddVideo(bob.ID, model.WatchedVideo{Title: "First"})
	second := store.AddVideo(bob.ID, model.WatchedVideo{Title: "Second"})
	store.Watch(ann.ID, second)
	store.Watch(ann.ID, first)

	history, err := svc.WatchHistory(ctx, ann.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "Second", history[0].Title)
	assert.Equal(t, "First", history[1].Title)
	assert.Equal(t, model.VideoOwner{FullName: "Ann Lee", UserName: "bob", Avatar: bob.Avatar}, history[0].Owner)

	_, err = svc.WatchHistory(ctx, "missing")
	requireAPIError(t, err, http.StatusNotFound, "User does not exist")
}
