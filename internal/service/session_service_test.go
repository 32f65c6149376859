package service

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-user-accounts/internal/event"
	"go-user-accounts/internal/model"
	"go-user-accounts/internal/repository/memory"
	"go-user-accounts/pkg/apierror"
)

func requireAPIError(t *testing.T, err error, status int, message string) {
	t.Helper()

	var apiErr *apierror.APIError
	require.True(t, errors.As(err, &apiErr), "expected *apierror.APIError, got %v", err)
	assert.Equal(t, status, apiErr.HTTPStatus)
	assert.Equal(t, message, apiErr.Message)
}

func newSessionFixture(t *testing.T) (*SessionService, *memory.Store, *testClock) {
	t.Helper()

	store := memory.NewStore()
	clock := newTestClock()
	return NewSessionService(store, newTestCodec(t, clock), event.Discard{}), store, clock
}

func TestSessionService_Login(t *testing.T) {
	t.Parallel()

	svc, store, _ := newSessionFixture(t)
	user := seedUser(t, store, "annlee", "ann@x.com", "secret123")
	ctx := context.Background()

	t.Run("by username returns sanitized user and stores refresh token", func(t *testing.T) {
		result, err := svc.Login(ctx, LoginInput{UserName: "AnnLee", Password: "secret123"})
		require.NoError(t, err)
		assert.Equal(t, user.ID, result.User.ID)
		assert.NotEmpty(t, result.AccessToken)
		assert.NotEmpty(t, result.RefreshToken)

		stored, err := store.FindByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, result.RefreshToken, stored.RefreshToken)
	})

	t.Run("by email", func(t *testing.T) {
		_, err := svc.Login(ctx, LoginInput{Email: "ann@x.com", Password: "secret123"})
		require.NoError(t, err)
	})

	t.Run("requires an identifier", func(t *testing.T) {
		_, err := svc.Login(ctx, LoginInput{Password: "secret123"})
		requireAPIError(t, err, http.StatusBadRequest, "username or email is required")
	})

	t.Run("requires a password", func(t *testing.T) {
		_, err := svc.Login(ctx, LoginInput{UserName: "annlee"})
		requireAPIError(t, err, http.StatusBadRequest, "password is required")
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := svc.Login(ctx, LoginInput{UserName: "nobody", Password: "secret123"})
		requireAPIError(t, err, http.StatusNotFound, "User does not exist")
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := svc.Login(ctx, LoginInput{UserName: "annlee", Password: "wrong"})
		requireAPIError(t, err, http.StatusUnauthorized, "Invalid user credentials")
	})
}

func TestSessionService_LoginSupersedesPreviousSession(t *testing.T) {
	t.Parallel()

	svc, store, _ := newSessionFixture(t)
	seedUser(t, store, "annlee", "ann@x.com", "secret123")
	ctx := context.Background()

	first, err := svc.Login(ctx, LoginInput{UserName: "annlee", Password: "secret123"})
	require.NoError(t, err)
	second, err := svc.Login(ctx, LoginInput{UserName: "annlee", Password: "secret123"})
	require.NoError(t, err)
	require.NotEqual(t, first.RefreshToken, second.RefreshToken)

	_, err = svc.Refresh(ctx, first.RefreshToken)
	requireAPIError(t, err, http.StatusUnauthorized, "Refresh token used or expired")

	_, err = svc.Refresh(ctx, second.RefreshToken)
	require.NoError(t, err)
}

func TestSessionService_Refresh(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("succeeds exactly once per token", func(t *testing.T) {
		svc, store, _ := newSessionFixture(t)
		seedUser(t, store, "annlee", "ann@x.com", "secret123")

		login, err := svc.Login(ctx, LoginInput{UserName: "annlee", Password: "secret123"})
		require.NoError(t, err)

		pair, err := svc.Refresh(ctx, login.RefreshToken)
		require.NoError(t, err)
		assert.NotEqual(t, login.RefreshToken, pair.RefreshToken)
		assert.NotEmpty(t, pair.AccessToken)

		_, err = svc.Refresh(ctx, login.RefreshToken)
		requireAPIError(t, err, http.StatusUnauthorized, "Refresh token used or expired")

		_, err = svc.Refresh(ctx, pair.RefreshToken)
		require.NoError(t, err)
	})

	t.Run("empty token", func(t *testing.T) {
		svc, _, _ := newSessionFixture(t)
		_, err := svc.Refresh(ctx, "  ")
		requireAPIError(t, err, http.StatusUnauthorized, "Unauthorized request")
	})

	t.Run("garbage token", func(t *testing.T) {
		svc, _, _ := newSessionFixture(t)
		_, err := svc.Refresh(ctx, "not-a-jwt")
		requireAPIError(t, err, http.StatusUnauthorized, "Invalid refresh token")
	})

	t.Run("access token is not accepted", func(t *testing.T) {
		svc, store, _ := newSessionFixture(t)
		seedUser(t, store, "annlee", "ann@x.com", "secret123")

		login, err := svc.Login(ctx, LoginInput{UserName: "annlee", Password: "secret123"})
		require.NoError(t, err)

		_, err = svc.Refresh(ctx, login.AccessToken)
		requireAPIError(t, err, http.StatusUnauthorized, "Invalid refresh token")
	})

	t.Run("expired token fails even when still stored", func(t *testing.T) {
		svc, store, clock := newSessionFixture(t)
		user := seedUser(t, store, "annlee", "ann@x.com", "secret123")

		login, err := svc.Login(ctx, LoginInput{UserName: "annlee", Password: "secret123"})
		require.NoError(t, err)

		clock.Advance(25 * time.Hour)

		_, err = svc.Refresh(ctx, login.RefreshToken)
		requireAPIError(t, err, http.StatusUnauthorized, "Invalid refresh token")

		stored, err := store.FindByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, login.RefreshToken, stored.RefreshToken)
	})

	t.Run("deleted user", func(t *testing.T) {
		store := memory.NewStore()
		clock := newTestClock()
		codec := newTestCodec(t, clock)
		svc := NewSessionService(store, codec, nil)

		orphan, err := codec.IssueRefresh("0f8fad5b-d9cb-469f-a165-70867728950e")
		require.NoError(t, err)

		_, err = svc.Refresh(ctx, orphan)
		requireAPIError(t, err, http.StatusUnauthorized, "Invalid refresh token")
	})
}

func TestSessionService_ConcurrentRefreshHasOneWinner(t *testing.T) {
	t.Parallel()

	svc, store, _ := newSessionFixture(t)
	seedUser(t, store, "annlee", "ann@x.com", "secret123")
	ctx := context.Background()

	login, err := svc.Login(ctx, LoginInput{UserName: "annlee", Password: "secret123"})
	require.NoError(t, err)

	const callers = 16
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		wins     int
		rejected int
	)
	start := make(chan struct{})
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, refreshErr := svc.Refresh(ctx, login.RefreshToken)

			mu.Lock()
			defer mu.Unlock()
			if refreshErr == nil {
				wins++
				return
			}
			if apierror.HasCode(refreshErr, apierror.CodeUnauthorized) {
				rejected++
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, callers-1, rejected)
}

func TestSessionService_Logout(t *testing.T) {
	t.Parallel()

	svc, store, _ := newSessionFixture(t)
	user := seedUser(t, store, "annlee", "ann@x.com", "secret123")
	ctx := context.Background()

	login, err := svc.Login(ctx, LoginInput{UserName: "annlee", Password: "secret123"})
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, user.ID))
	require.NoError(t, svc.Logout(ctx, user.ID), "logout is idempotent")
	require.NoError(t, svc.Logout(ctx, "unknown-user"))

	stored, err := store.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.RefreshToken)

	_, err = svc.Refresh(ctx, login.RefreshToken)
	requireAPIError(t, err, http.StatusUnauthorized, "Refresh token used or expired")
}

func TestSessionService_ChangePassword(t *testing.T) {
	t.Parallel()

	svc, store, _ := newSessionFixture(t)
	user := seedUser(t, store, "annlee", "ann@x.com", "secret123")
	ctx := context.Background()

	err := svc.ChangePassword(ctx, user.ID, "", "next-secret")
	requireAPIError(t, err, http.StatusBadRequest, "All fields are required")

	err = svc.ChangePassword(ctx, user.ID, "wrong", "next-secret")
	requireAPIError(t, err, http.StatusUnauthorized, "Invalid current password")

	err = svc.ChangePassword(ctx, "missing", "secret123", "next-secret")
	requireAPIError(t, err, http.StatusNotFound, "User does not exist")

	require.NoError(t, svc.ChangePassword(ctx, user.ID, "secret123", "next-secret"))

	stored, err := store.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.NotEqual(t, "next-secret", stored.PasswordHash)
	assert.True(t, stored.PasswordMatches("next-secret"))

	_, err = svc.Login(ctx, LoginInput{UserName: "annlee", Password: "secret123"})
	requireAPIError(t, err, http.StatusUnauthorized, "Invalid user credentials")
}

type failingCodec struct {
	TokenCodec
}

func (failingCodec) IssueAccess(model.User) (string, error) {
	return "", errors.New("signer unavailable")
}

func TestSessionService_IssueFailureIsInternal(t *testing.T) {
	t.Parallel()

	store := memory.NewStore()
	user := seedUser(t, store, "annlee", "ann@x.com", "secret123")
	svc := NewSessionService(store, failingCodec{}, nil)

	_, err := svc.Issue(context.Background(), user.ID)
	requireAPIError(t, err, http.StatusInternalServerError, "Something went wrong while generating access and refresh token")
	assert.ErrorContains(t, errors.Unwrap(err), "signer unavailable")
}

func TestSessionService_PublishesEvents(t *testing.T) {
	t.Parallel()

	store := memory.NewStore()
	bus := event.NewBus()
	events, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	svc := NewSessionService(store, newTestCodec(t, newTestClock()), bus)
	user := seedUser(t, store, "annlee", "ann@x.com", "secret123")
	ctx := context.Background()

	login, err := svc.Login(ctx, LoginInput{UserName: "annlee", Password: "secret123"})
	require.NoError(t, err)
	_, err = svc.Refresh(ctx, login.RefreshToken)
	require.NoError(t, err)
	require.NoError(t, svc.Logout(ctx, user.ID))

	for _, want := range []event.Type{event.TypeUserLoggedIn, event.TypeSessionRefreshed, event.TypeUserLoggedOut} {
		select {
		case e := <-events:
			assert.Equal(t, want, e.Type)
			assert.Equal(t, user.ID, e.ActorID)
		case <-time.After(time.Second):
			t.Fatalf("missing %s event", want)
		}
	}
}
