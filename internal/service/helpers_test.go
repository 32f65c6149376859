package service

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"go-user-accounts/internal/media"
	"go-user-accounts/internal/model"
	"go-user-accounts/internal/repository/memory"
	"go-user-accounts/internal/token"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestCodec(t *testing.T, clock *testClock) *token.Codec {
	t.Helper()

	codec, err := token.NewCodec(token.Config{
		AccessSecret:  "access-secret-for-tests",
		AccessTTL:     15 * time.Minute,
		RefreshSecret: "refresh-secret-for-tests",
		RefreshTTL:    24 * time.Hour,
		Issuer:        "go-user-accounts",
	}, token.WithClock(clock.Now))
	require.NoError(t, err)
	return codec
}

func seedUser(t *testing.T, store *memory.Store, userName string, email string, password string) model.User {
	t.Helper()

	user, err := store.Create(context.Background(), model.NewUser{
		UserName: userName,
		Email:    email,
		FullName: "Ann Lee",
		Password: password,
		Avatar:   "http://cdn.example/avatars/a.jpg",
	})
	require.NoError(t, err)
	return user
}

func pngUpload(t *testing.T, name string) *media.Upload {
	t.Helper()

	img := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	for x := 0; x < 8; x++ {
		for y := 0; y < 8; y++ {
			img.Set(x, y, color.NRGBA{R: 10, G: uint8(x * 20), B: uint8(y * 20), A: 255})
		}
	}

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return &media.Upload{Filename: name, ContentType: "image/png", Data: buf.Bytes()}
}

type recordingEvicter struct {
	mu      sync.Mutex
	evicted []string
}

func (r *recordingEvicter) Delete(_ context.Context, userName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evicted = append(r.evicted, userName)
	return nil
}
