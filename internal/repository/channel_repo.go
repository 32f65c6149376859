package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"go-user-accounts/internal/model"
	"go-user-accounts/pkg/apierror"
)

type ChannelRepository struct {
	pool *pgxpool.Pool
}

func NewChannelRepository(pool *pgxpool.Pool) *ChannelRepository {
	return &ChannelRepository{pool: pool}
}

// ChannelByUserName returns the viewer-independent part of a channel profile.
func (r *ChannelRepository) ChannelByUserName(ctx context.Context, userName string) (model.ChannelProfile, error) {
	var p model.ChannelProfile
	err := r.pool.QueryRow(ctx,
		`SELECT u.id, u.full_name, u.username, u.email, u.avatar, u.cover_image,
		        (SELECT COUNT(*) FROM subscriptions s WHERE s.channel_id = u.id),
		        (SELECT COUNT(*) FROM subscriptions s WHERE s.subscriber_id = u.id)
		 FROM users u
		 WHERE u.username = $1`, model.NormalizeUserName(userName)).
		Scan(&p.ID, &p.FullName, &p.UserName, &p.Email, &p.Avatar, &p.CoverImage,
			&p.SubscribersCount, &p.SubscribedToCount)

	if errors.Is(err, pgx.ErrNoRows) {
		return model.ChannelProfile{}, apierror.NotFound("Channel not found", userName)
	}
	if err != nil {
		return model.ChannelProfile{}, fmt.Errorf("find channel: %w", err)
	}
	return p, nil
}

func (r *ChannelRepository) IsSubscribed(ctx context.Context, channelID string, viewerID string) (bool, error) {
	if _, err := uuid.Parse(viewerID); err != nil {
		return false, nil
	}

	var subscribed bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM subscriptions WHERE channel_id = $1 AND subscriber_id = $2)`,
		channelID, viewerID).Scan(&subscribed)
	if err != nil {
		return false, fmt.Errorf("check subscription: %w", err)
	}
	return subscribed, nil
}

// WatchHistory lists watched videos in the order they were appended.
func (r *ChannelRepository) WatchHistory(ctx context.Context, userID string) ([]model.WatchedVideo, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return nil, apierror.NotFound("User does not exist", userID)
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check user exists: %w", err)
	}
	if !exists {
		return nil, apierror.NotFound("User does not exist", userID)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT v.id, v.video_file, v.thumbnail, v.title, v.description, v.duration,
		        v.views, v.is_published, v.created_at,
		        o.full_name, o.username, o.avatar
		 FROM watch_history wh
		 JOIN videos v ON v.id = wh.video_id
		 JOIN users o ON o.id = v.owner_id
		 WHERE wh.user_id = $1
		 ORDER BY wh.position ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list watch history: %w", err)
	}
	defer rows.Close()

	videos := make([]model.WatchedVideo, 0)
	for rows.Next() {
		var v model.WatchedVideo
		if err := rows.Scan(&v.ID, &v.VideoFile, &v.Thumbnail, &v.Title, &v.Description, &v.Duration,
			&v.Views, &v.IsPublished, &v.CreatedAt,
			&v.Owner.FullName, &v.Owner.UserName, &v.Owner.Avatar); err != nil {
			return nil, fmt.Errorf("scan watched video: %w", err)
		}
		videos = append(videos, v)
	}
	return videos, rows.Err()
}
