package model

import (
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

const PasswordHashCost = 12

type User struct {
	ID           string    `json:"_id"`
	UserName     string    `json:"userName"`
	Email        string    `json:"email"`
	FullName     string    `json:"fullName"`
	Avatar       string    `json:"avatar"`
	CoverImage   string    `json:"coverImage"`
	PasswordHash string    `json:"-"`
	RefreshToken string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// PasswordMatches reports whether plain matches the stored bcrypt hash.
func (u User) PasswordMatches(plain string) bool {
	if u.PasswordHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(plain)) == nil
}

// Public returns the sanitized projection sent to clients.
func (u User) Public() PublicUser {
	return PublicUser{
		ID:         u.ID,
		UserName:   u.UserName,
		Email:      u.Email,
		FullName:   u.FullName,
		Avatar:     u.Avatar,
		CoverImage: u.CoverImage,
		CreatedAt:  u.CreatedAt,
		UpdatedAt:  u.UpdatedAt,
	}
}

type PublicUser struct {
	ID         string    `json:"_id"`
	UserName   string    `json:"userName"`
	Email      string    `json:"email"`
	FullName   string    `json:"fullName"`
	Avatar     string    `json:"avatar"`
	CoverImage string    `json:"coverImage"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// NewUser carries a plaintext password; stores hash it on write.
type NewUser struct {
	UserName   string
	Email      string
	FullName   string
	Password   string
	Avatar     string
	CoverImage string
}

type AuthClaims struct {
	UserID   string
	Email    string
	UserName string
	FullName string
	Type     string
	TokenID  string
}

type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type LoginResult struct {
	User         PublicUser `json:"user"`
	AccessToken  string     `json:"accessToken"`
	RefreshToken string     `json:"refreshToken"`
}

func HashPassword(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), PasswordHashCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func NormalizeUserName(userName string) string {
	return strings.ToLower(strings.TrimSpace(userName))
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
