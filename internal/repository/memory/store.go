// Package memory provides in-process stores with the same semantics as the
// Postgres repositories. Tests and local tooling use it in place of a database.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"go-user-accounts/internal/model"
	"go-user-accounts/pkg/apierror"
)

type watchEntry struct {
	videoID  string
	position int64
}

type Store struct {
	mu            sync.RWMutex
	users         map[string]model.User
	subscriptions map[string]map[string]struct{} // channel -> subscribers
	videos        map[string]video
	history       map[string][]watchEntry
	nextPosition  int64
	now           func() time.Time
}

type video struct {
	model.WatchedVideo
	ownerID string
}

func NewStore() *Store {
	return &Store{
		users:         map[string]model.User{},
		subscriptions: map[string]map[string]struct{}{},
		videos:        map[string]video{},
		history:       map[string][]watchEntry{},
		now:           func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) FindByID(_ context.Context, id string) (model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return model.User{}, apierror.NotFound("User does not exist", id)
	}
	return u, nil
}

func (s *Store) FindByLogin(_ context.Context, userName string, email string) (model.User, error) {
	userName = model.NormalizeUserName(userName)
	email = model.NormalizeEmail(email)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		match model.User
		found bool
	)
	for _, u := range s.sortedUsersLocked() {
		byName := userName != "" && u.UserName == userName
		byEmail := email != "" && u.Email == email
		if byName && byEmail {
			return u, nil
		}
		if (byName || byEmail) && !found {
			match, found = u, true
		}
	}
	if !found {
		return model.User{}, apierror.NotFound("User does not exist", userName+" "+email)
	}
	return match, nil
}

func (s *Store) ExistsByUserNameOrEmail(_ context.Context, userName string, email string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.existsLocked(model.NormalizeUserName(userName), model.NormalizeEmail(email), ""), nil
}

func (s *Store) EmailTakenByOther(_ context.Context, email string, userID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.existsLocked("", model.NormalizeEmail(email), userID), nil
}

func (s *Store) Create(_ context.Context, nu model.NewUser) (model.User, error) {
	hash, err := model.HashPassword(nu.Password)
	if err != nil {
		return model.User{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	userName := model.NormalizeUserName(nu.UserName)
	email := model.NormalizeEmail(nu.Email)
	if s.existsLocked(userName, email, "") {
		return model.User{}, model.ErrUserAlreadyExists
	}

	now := s.now()
	u := model.User{
		ID:           uuid.NewString(),
		UserName:     userName,
		Email:        email,
		FullName:     nu.FullName,
		Avatar:       nu.Avatar,
		CoverImage:   nu.CoverImage,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.users[u.ID] = u
	return u, nil
}

func (s *Store) SetRefreshToken(_ context.Context, userID string, token string) error {
	return s.mutate(userID, func(u *model.User) error {
		u.RefreshToken = token
		return nil
	})
}

func (s *Store) RotateRefreshToken(_ context.Context, userID string, expected string, next string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok || u.RefreshToken == "" || u.RefreshToken != expected {
		return model.ErrRefreshTokenMismatch
	}
	u.RefreshToken = next
	u.UpdatedAt = s.now()
	s.users[userID] = u
	return nil
}

func (s *Store) ClearRefreshToken(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u, ok := s.users[userID]; ok && u.RefreshToken != "" {
		u.RefreshToken = ""
		u.UpdatedAt = s.now()
		s.users[userID] = u
	}
	return nil
}

func (s *Store) UpdatePassword(_ context.Context, userID string, password string) error {
	hash, err := model.HashPassword(password)
	if err != nil {
		return err
	}
	return s.mutate(userID, func(u *model.User) error {
		u.PasswordHash = hash
		return nil
	})
}

func (s *Store) UpdateAccount(_ context.Context, userID string, fullName string, email string) (model.User, error) {
	email = model.NormalizeEmail(email)
	return s.mutateReturning(userID, func(u *model.User) error {
		if s.existsLocked("", email, userID) {
			return model.ErrUserAlreadyExists
		}
		u.FullName = fullName
		u.Email = email
		return nil
	})
}

func (s *Store) UpdateAvatar(_ context.Context, userID string, url string) (model.User, error) {
	return s.mutateReturning(userID, func(u *model.User) error {
		u.Avatar = url
		return nil
	})
}

func (s *Store) UpdateCoverImage(_ context.Context, userID string, url string) (model.User, error) {
	return s.mutateReturning(userID, func(u *model.User) error {
		u.CoverImage = url
		return nil
	})
}

func (s *Store) ChannelByUserName(_ context.Context, userName string) (model.ChannelProfile, error) {
	userName = model.NormalizeUserName(userName)

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.UserName != userName {
			continue
		}

		var subscribedTo int64
		for _, subscribers := range s.subscriptions {
			if _, ok := subscribers[u.ID]; ok {
				subscribedTo++
			}
		}

		return model.ChannelProfile{
			ID:                u.ID,
			FullName:          u.FullName,
			UserName:          u.UserName,
			Email:             u.Email,
			Avatar:            u.Avatar,
			CoverImage:        u.CoverImage,
			SubscribersCount:  int64(len(s.subscriptions[u.ID])),
			SubscribedToCount: subscribedTo,
		}, nil
	}

	return model.ChannelProfile{}, apierror.NotFound("Channel not found", userName)
}

func (s *Store) IsSubscribed(_ context.Context, channelID string, viewerID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.subscriptions[channelID][viewerID]
	return ok, nil
}

func (s *Store) WatchHistory(_ context.Context, userID string) ([]model.WatchedVideo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.users[userID]; !ok {
		return nil, apierror.NotFound("User does not exist", userID)
	}

	entries := append([]watchEntry(nil), s.history[userID]...)
	sort.Slice(entries, func(i, j int) bool { return entries[i].position < entries[j].position })

	videos := make([]model.WatchedVideo, 0, len(entries))
	for _, entry := range entries {
		v, ok := s.videos[entry.videoID]
		if !ok {
			continue
		}
		owner, ok := s.users[v.ownerID]
		if !ok {
			continue
		}
		watched := v.WatchedVideo
		watched.Owner = model.VideoOwner{FullName: owner.FullName, UserName: owner.UserName, Avatar: owner.Avatar}
		videos = append(videos, watched)
	}
	return videos, nil
}

// Subscribe records subscriberID as a subscriber of channelID.
func (s *Store) Subscribe(subscriberID string, channelID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.subscriptions[channelID] == nil {
		s.subscriptions[channelID] = map[string]struct{}{}
	}
	s.subscriptions[channelID][subscriberID] = struct{}{}
}

// AddVideo stores a video owned by ownerID and returns its identifier.
func (s *Store) AddVideo(ownerID string, v model.WatchedVideo) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = s.now()
	}
	s.videos[v.ID] = video{WatchedVideo: v, ownerID: ownerID}
	return v.ID
}

// Watch appends videoID to the user's watch history.
func (s *Store) Watch(userID string, videoID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextPosition++
	s.history[userID] = append(s.history[userID], watchEntry{videoID: videoID, position: s.nextPosition})
}

func (s *Store) mutate(userID string, fn func(*model.User) error) error {
	_, err := s.mutateReturning(userID, fn)
	return err
}

func (s *Store) mutateReturning(userID string, fn func(*model.User) error) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return model.User{}, apierror.NotFound("User does not exist", userID)
	}
	if err := fn(&u); err != nil {
		return model.User{}, err
	}
	u.UpdatedAt = s.now()
	s.users[userID] = u
	return u, nil
}

func (s *Store) existsLocked(userName string, email string, exceptID string) bool {
	for id, u := range s.users {
		if id == exceptID {
			continue
		}
		if (userName != "" && u.UserName == userName) || (email != "" && u.Email == email) {
			return true
		}
	}
	return false
}

func (s *Store) sortedUsersLocked() []model.User {
	users := make([]model.User, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].CreatedAt.Before(users[j].CreatedAt) })
	return users
}
