//go:build integration

package integration

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"go-user-accounts/internal/database"
)

// openDB connects to TEST_DATABASE_URL, migrates, and empties every table.
func openDB(t *testing.T) *database.DB {
	t.Helper()

	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL is not set")
	}

	ctx := context.Background()
	db, err := database.New(ctx, url, 5, 0)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	require.NoError(t, db.Migrate(ctx))
	_, err = db.Pool.Exec(ctx, `TRUNCATE watch_history, videos, subscriptions, users CASCADE`)
	require.NoError(t, err)

	return db
}

func insertSubscription(t *testing.T, db *database.DB, subscriberID string, channelID string) {
	t.Helper()

	_, err := db.Pool.Exec(context.Background(),
		`INSERT INTO subscriptions (subscriber_id, channel_id) VALUES ($1, $2)`, subscriberID, channelID)
	require.NoError(t, err)
}

func insertVideo(t *testing.T, db *database.DB, id string, ownerID string, title string) {
	t.Helper()

	_, err := db.Pool.Exec(context.Background(),
		`INSERT INTO videos (id, owner_id, video_file, thumbnail, title, duration, views)
		 VALUES ($1, $2, 'http://cdn.example/v.mp4', 'http://cdn.example/t.jpg', $3, 12.5, 3)`,
		id, ownerID, title)
	require.NoError(t, err)
}

func insertWatch(t *testing.T, db *database.DB, userID string, videoID string) {
	t.Helper()

	_, err := db.Pool.Exec(context.Background(),
		`INSERT INTO watch_history (user_id, video_id) VALUES ($1, $2)`, userID, videoID)
	require.NoError(t, err)
}
