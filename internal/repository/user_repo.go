package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"go-user-accounts/internal/model"
	"go-user-accounts/pkg/apierror"
)

const uniqueViolation = "23505"

const userColumns = `id, username, email, full_name, avatar, cover_image,
	password_hash, refresh_token, created_at, updated_at`

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (model.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return model.User{}, apierror.NotFound("User does not exist", id)
	}

	u, err := scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.User{}, apierror.NotFound("User does not exist", id)
	}
	if err != nil {
		return model.User{}, fmt.Errorf("find user by id: %w", err)
	}
	return u, nil
}

// FindByLogin matches either identifier. A row matching both wins.
func (r *UserRepository) FindByLogin(ctx context.Context, userName string, email string) (model.User, error) {
	userName = model.NormalizeUserName(userName)
	email = model.NormalizeEmail(email)

	u, err := scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+`
		 FROM users
		 WHERE ($1 <> '' AND username = $1) OR ($2 <> '' AND email = $2)
		 ORDER BY (username = $1 AND email = $2) DESC
		 LIMIT 1`, userName, email))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.User{}, apierror.NotFound("User does not exist", strings.TrimSpace(userName+" "+email))
	}
	if err != nil {
		return model.User{}, fmt.Errorf("find user by login: %w", err)
	}
	return u, nil
}

func (r *UserRepository) ExistsByUserNameOrEmail(ctx context.Context, userName string, email string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE username = $1 OR email = $2)`,
		model.NormalizeUserName(userName), model.NormalizeEmail(email)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check user exists: %w", err)
	}
	return exists, nil
}

func (r *UserRepository) EmailTakenByOther(ctx context.Context, email string, userID string) (bool, error) {
	var taken bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE email = $1 AND id <> $2)`,
		model.NormalizeEmail(email), userID).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("check email owner: %w", err)
	}
	return taken, nil
}

// Create hashes the plaintext password before insert.
func (r *UserRepository) Create(ctx context.Context, nu model.NewUser) (model.User, error) {
	hash, err := model.HashPassword(nu.Password)
	if err != nil {
		return model.User{}, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	u, err := scanUser(r.pool.QueryRow(ctx,
		`INSERT INTO users (id, username, email, full_name, avatar, cover_image, password_hash, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		 RETURNING `+userColumns,
		uuid.NewString(), model.NormalizeUserName(nu.UserName), model.NormalizeEmail(nu.Email),
		strings.TrimSpace(nu.FullName), nu.Avatar, nu.CoverImage, hash, now))
	if isUniqueViolation(err) {
		return model.User{}, fmt.Errorf("create user: %w", model.ErrUserAlreadyExists)
	}
	if err != nil {
		return model.User{}, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

func (r *UserRepository) SetRefreshToken(ctx context.Context, userID string, token string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET refresh_token = $2, updated_at = $3 WHERE id = $1`,
		userID, token, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set refresh token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apierror.NotFound("User does not exist", userID)
	}
	return nil
}

// RotateRefreshToken swaps the stored token only while it still equals expected.
func (r *UserRepository) RotateRefreshToken(ctx context.Context, userID string, expected string, next string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET refresh_token = $3, updated_at = $4
		 WHERE id = $1 AND refresh_token = $2`,
		userID, expected, next, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("rotate refresh token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrRefreshTokenMismatch
	}
	return nil
}

// ClearRefreshToken is a no-op for unknown users and empty slots.
func (r *UserRepository) ClearRefreshToken(ctx context.Context, userID string) error {
	if _, err := uuid.Parse(userID); err != nil {
		return nil
	}

	_, err := r.pool.Exec(ctx,
		`UPDATE users SET refresh_token = NULL, updated_at = $2
		 WHERE id = $1 AND refresh_token IS NOT NULL`,
		userID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("clear refresh token: %w", err)
	}
	return nil
}

// UpdatePassword hashes the plaintext password before storing it.
func (r *UserRepository) UpdatePassword(ctx context.Context, userID string, password string) error {
	hash, err := model.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1`,
		userID, hash, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apierror.NotFound("User does not exist", userID)
	}
	return nil
}

func (r *UserRepository) UpdateAccount(ctx context.Context, userID string, fullName string, email string) (model.User, error) {
	u, err := r.updateReturning(ctx,
		`UPDATE users SET full_name = $2, email = $3, updated_at = $4 WHERE id = $1 RETURNING `+userColumns,
		userID, strings.TrimSpace(fullName), model.NormalizeEmail(email), time.Now().UTC())
	if err != nil {
		return model.User{}, fmt.Errorf("update account: %w", err)
	}
	return u, nil
}

func (r *UserRepository) UpdateAvatar(ctx context.Context, userID string, url string) (model.User, error) {
	u, err := r.updateReturning(ctx,
		`UPDATE users SET avatar = $2, updated_at = $3 WHERE id = $1 RETURNING `+userColumns,
		userID, url, time.Now().UTC())
	if err != nil {
		return model.User{}, fmt.Errorf("update avatar: %w", err)
	}
	return u, nil
}

func (r *UserRepository) UpdateCoverImage(ctx context.Context, userID string, url string) (model.User, error) {
	u, err := r.updateReturning(ctx,
		`UPDATE users SET cover_image = $2, updated_at = $3 WHERE id = $1 RETURNING `+userColumns,
		userID, url, time.Now().UTC())
	if err != nil {
		return model.User{}, fmt.Errorf("update cover image: %w", err)
	}
	return u, nil
}

func (r *UserRepository) updateReturning(ctx context.Context, sql string, userID string, args ...any) (model.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, sql, append([]any{userID}, args...)...))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.User{}, apierror.NotFound("User does not exist", userID)
	}
	if isUniqueViolation(err) {
		return model.User{}, model.ErrUserAlreadyExists
	}
	return u, err
}

func scanUser(row pgx.Row) (model.User, error) {
	var (
		u            model.User
		refreshToken *string
	)
	err := row.Scan(&u.ID, &u.UserName, &u.Email, &u.FullName, &u.Avatar, &u.CoverImage,
		&u.PasswordHash, &refreshToken, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return model.User{}, err
	}
	if refreshToken != nil {
		u.RefreshToken = *refreshToken
	}
	return u, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
