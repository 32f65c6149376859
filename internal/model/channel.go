package model

import "time"

type ChannelProfile struct {
	ID                string `json:"_id"`
	FullName          string `json:"fullName"`
	UserName          string `json:"userName"`
	Email             string `json:"email"`
	Avatar            string `json:"avatar"`
	CoverImage        string `json:"coverImage"`
	SubscribersCount  int64  `json:"subscribersCount"`
	SubscribedToCount int64  `json:"subscribedToCount"`
	IsSubscribed      bool   `json:"isSubscribed"`
}

type VideoOwner struct {
	FullName string `json:"fullName"`
	UserName string `json:"userName"`
	Avatar   string `json:"avatar"`
}

type WatchedVideo struct {
	ID          string     `json:"_id"`
	VideoFile   string     `json:"videoFile"`
	Thumbnail   string     `json:"thumbnail"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Duration    float64    `json:"duration"`
	Views       int64      `json:"views"`
	IsPublished bool       `json:"isPublished"`
	CreatedAt   time.Time  `json:"createdAt"`
	Owner       VideoOwner `json:"owner"`
}
