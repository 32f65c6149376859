//go:build integration

package integration

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-user-accounts/internal/model"
	"go-user-accounts/internal/repository"
	"go-user-accounts/pkg/apierror"
)

func newUser(userName string, email string) model.NewUser {
	return model.NewUser{
		UserName: userName,
		Email:    email,
		FullName: "Ann Lee",
		Password: "secret123",
		Avatar:   "http://cdn.example/a.jpg",
	}
}

func TestUserRepository(t *testing.T) {
	db := openDB(t)
	repo := repository.NewUserRepository(db.Pool)
	ctx := context.Background()

	ann, err := repo.Create(ctx, newUser("AnnLee", "Ann@X.com"))
	require.NoError(t, err)
	assert.Equal(t, "annlee", ann.UserName)
	assert.Equal(t, "ann@x.com", ann.Email)
	assert.True(t, ann.PasswordMatches("secret123"))

	t.Run("unique username and email", func(t *testing.T) {
		_, err := repo.Create(ctx, newUser("annlee", "other@x.com"))
		assert.True(t, errors.Is(err, model.ErrUserAlreadyExists))

		_, err = repo.Create(ctx, newUser("other", "ann@x.com"))
		assert.True(t, errors.Is(err, model.ErrUserAlreadyExists))
	})

	t.Run("find by login", func(t *testing.T) {
		found, err := repo.FindByLogin(ctx, "ANNLEE", "")
		require.NoError(t, err)
		assert.Equal(t, ann.ID, found.ID)

		_, err = repo.FindByLogin(ctx, "ghost", "ghost@x.com")
		assert.True(t, apierror.HasCode(err, apierror.CodeNotFound))

		_, err = repo.FindByID(ctx, "not-a-uuid")
		assert.True(t, apierror.HasCode(err, apierror.CodeNotFound))
	})

	t.Run("refresh token slot", func(t *testing.T) {
		require.NoError(t, repo.SetRefreshToken(ctx, ann.ID, "first"))

		require.ErrorIs(t, repo.RotateRefreshToken(ctx, ann.ID, "stale", "second"), model.ErrRefreshTokenMismatch)
		require.NoError(t, repo.RotateRefreshToken(ctx, ann.ID, "first", "second"))
		require.ErrorIs(t, repo.RotateRefreshToken(ctx, ann.ID, "first", "third"), model.ErrRefreshTokenMismatch)

		require.NoError(t, repo.ClearRefreshToken(ctx, ann.ID))
		require.NoError(t, repo.ClearRefreshToken(ctx, ann.ID))
		require.NoError(t, repo.ClearRefreshToken(ctx, uuid.NewString()))

		stored, err := repo.FindByID(ctx, ann.ID)
		require.NoError(t, err)
		assert.Empty(t, stored.RefreshToken)
	})

	t.Run("concurrent rotation has one winner", func(t *testing.T) {
		require.NoError(t, repo.SetRefreshToken(ctx, ann.ID, "shared"))

		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			wins int
		)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if repo.RotateRefreshToken(ctx, ann.ID, "shared", uuid.NewString()) == nil {
					mu.Lock()
					wins++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, wins)
	})

	t.Run("account updates", func(t *testing.T) {
		bob, err := repo.Create(ctx, newUser("bob", "bob@x.com"))
		require.NoError(t, err)

		taken, err := repo.EmailTakenByOther(ctx, "BOB@x.com", ann.ID)
		require.NoError(t, err)
		assert.True(t, taken)

		_, err = repo.UpdateAccount(ctx, ann.ID, "Ann", "bob@x.com")
		assert.True(t, errors.Is(err, model.ErrUserAlreadyExists))

		updated, err := repo.UpdateAvatar(ctx, bob.ID, "http://cdn.example/b.jpg")
		require.NoError(t, err)
		assert.Equal(t, "http://cdn.example/b.jpg", updated.Avatar)

		require.NoError(t, repo.UpdatePassword(ctx, bob.ID, "changed"))
		reloaded, err := repo.FindByID(ctx, bob.ID)
		require.NoError(t, err)
		assert.True(t, reloaded.PasswordMatches("changed"))
	})
}

func TestChannelRepository(t *testing.T) {
	db := openDB(t)
	users := repository.NewUserRepository(db.Pool)
	channels := repository.NewChannelRepository(db.Pool)
	ctx := context.Background()

	ann, err := users.Create(ctx, newUser("annlee", "ann@x.com"))
	require.NoError(t, err)
	bob, err := users.Create(ctx, newUser("bob", "bob@x.com"))
	require.NoError(t, err)

	insertSubscription(t, db, bob.ID, ann.ID)

	profile, err := channels.ChannelByUserName(ctx, "AnnLee")
	require.NoError(t, err)
	assert.Equal(t, int64(1), profile.SubscribersCount)
	assert.Equal(t, int64(0), profile.SubscribedToCount)

	subscribed, err := channels.IsSubscribed(ctx, ann.ID, bob.ID)
	require.NoError(t, err)
	assert.True(t, subscribed)

	subscribed, err = channels.IsSubscribed(ctx, ann.ID, "")
	require.NoError(t, err)
	assert.False(t, subscribed)

	_, err = channels.ChannelByUserName(ctx, "ghost")
	assert.True(t, apierror.HasCode(err, apierror.CodeNotFound))

	history, err := channels.WatchHistory(ctx, bob.ID)
	require.NoError(t, err)
	assert.NotNil(t, history)
	assert.Empty(t, history)

	first, second := uuid.NewString(), uuid.NewString()
	insertVideo(t, db, first, ann.ID, "First")
	insertVideo(t, db, second, ann.ID, "Second")
	insertWatch(t, db, bob.ID, second)
	insertWatch(t, db, bob.ID, first)

	history, err = channels.WatchHistory(ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "Second", history[0].Title)
	assert.Equal(t, "annlee", history[0].Owner.UserName)
	assert.Equal(t, 12.5, history[1].Duration)

	_, err = channels.WatchHistory(ctx, uuid.NewString())
	assert.True(t, apierror.HasCode(err, apierror.CodeNotFound))
}
