package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"go-user-accounts/internal/model"
)

const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

var (
	ErrInvalid = errors.New("token is invalid")
	ErrExpired = errors.New("token is expired")
)

// Config holds both signing secrets and lifetimes. Access and refresh
// tokens never share a secret.
type Config struct {
	AccessSecret  string
	AccessTTL     time.Duration
	RefreshSecret string
	RefreshTTL    time.Duration
	Issuer        string
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.AccessSecret) == "" {
		return fmt.Errorf("access token secret is required")
	}
	if strings.TrimSpace(c.RefreshSecret) == "" {
		return fmt.Errorf("refresh token secret is required")
	}
	if c.AccessSecret == c.RefreshSecret {
		return fmt.Errorf("access and refresh token secrets must differ")
	}
	if c.AccessTTL <= 0 || c.RefreshTTL <= 0 {
		return fmt.Errorf("token lifetimes must be positive")
	}
	return nil
}

type Codec struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	issuer        string
	now           func() time.Time
}

type Option func(*Codec)

// WithClock replaces the time source used for both signing and verification.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		c.now = now
	}
}

func NewCodec(cfg Config, opts ...Option) (*Codec, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	codec := &Codec{
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(cfg.RefreshSecret),
		accessTTL:     cfg.AccessTTL,
		refreshTTL:    cfg.RefreshTTL,
		issuer:        cfg.Issuer,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(codec)
	}

	return codec, nil
}

func (c *Codec) AccessTTL() time.Duration {
	return c.accessTTL
}

func (c *Codec) RefreshTTL() time.Duration {
	return c.refreshTTL
}

func (c *Codec) IssueAccess(user model.User) (string, error) {
	return c.sign(jwt.MapClaims{
		"sub":      user.ID,
		"email":    user.Email,
		"userName": user.UserName,
		"fullName": user.FullName,
		"typ":      TypeAccess,
	}, c.accessSecret, c.accessTTL)
}

// IssueRefresh embeds only the user identifier.
func (c *Codec) IssueRefresh(userID string) (string, error) {
	return c.sign(jwt.MapClaims{
		"sub": userID,
		"typ": TypeRefresh,
	}, c.refreshSecret, c.refreshTTL)
}

func (c *Codec) VerifyAccess(tokenString string) (*model.AuthClaims, error) {
	return c.verify(tokenString, c.accessSecret, TypeAccess)
}

func (c *Codec) VerifyRefresh(tokenString string) (*model.AuthClaims, error) {
	return c.verify(tokenString, c.refreshSecret, TypeRefresh)
}

func (c *Codec) sign(claims jwt.MapClaims, secret []byte, ttl time.Duration) (string, error) {
	now := c.now().UTC()
	claims["jti"] = uuid.NewString()
	claims["iat"] = now.Unix()
	claims["exp"] = now.Add(ttl).Unix()
	if c.issuer != "" {
		claims["iss"] = c.issuer
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", claims["typ"], err)
	}
	return signed, nil
}

func (c *Codec) verify(tokenString string, secret []byte, expectedType string) (*model.AuthClaims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.now),
		jwt.WithExpirationRequired(),
	}
	if c.issuer != "" {
		options = append(options, jwt.WithIssuer(c.issuer))
	}

	parsed, err := jwt.NewParser(options...).Parse(tokenString, func(*jwt.Token) (any, error) {
		return secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, ErrInvalid
	}

	claimsMap, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalid
	}

	typ, _ := claimsMap["typ"].(string)
	if typ != expectedType {
		return nil, ErrInvalid
	}

	claims := &model.AuthClaims{Type: typ}
	claims.UserID, _ = claimsMap["sub"].(string)
	claims.Email, _ = claimsMap["email"].(string)
	claims.UserName, _ = claimsMap["userName"].(string)
	claims.FullName, _ = claimsMap["fullName"].(string)
	claims.TokenID, _ = claimsMap["jti"].(string)

	if claims.UserID == "" {
		return nil, ErrInvalid
	}

	return claims, nil
}
