package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/iliyamo/adspace-marketplace/internal/model"
	"github.com/iliyamo/adspace-marketplace/internal/utils"
)

const userColumns = "user_id,email,password_hash,github_id,created_at,updated_at"

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// Create inserts a password user and returns its generated id.
func (r *UserRepo) Create(ctx context.Context, email, password string, cost int) (string, error) {
	email = normalizeEmail(email)
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	_, err = r.DB.ExecContext(ctx,
		"INSERT INTO users (user_id, email, password_hash) VALUES (?,?,?)",
		id, email, hash)
	if err != nil {
		if isDuplicate(err) {
			return "", ErrEmailExists
		}
		return "", err
	}
	return id, nil
}

// CreateOrUpdate upserts a user row keyed by user_id, refreshing github_id
// and updated_at when the row exists.
func (r *UserRepo) CreateOrUpdate(ctx context.Context, userID string, githubID *string) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (user_id, github_id) VALUES (?,?) "+
			"ON DUPLICATE KEY UPDATE github_id=VALUES(github_id), updated_at=CURRENT_TIMESTAMP",
		userID, githubID)
	return err
}

// Delete removes a user.  Refresh tokens and rental rows cascade.
func (r *UserRepo) Delete(ctx context.Context, userID string) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM users WHERE user_id=?", userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", normalizeEmail(email))
	return scanUser(row)
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, userID string) (model.User, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE user_id=? LIMIT 1", userID)
	return scanUser(row)
}

func scanUser(row *sql.Row) (model.User, error) {
	var (
		u      model.User
		email  sql.NullString
		hash   sql.NullString
		github sql.NullString
	)
	err := row.Scan(&u.UserID, &email, &hash, &github, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return u, ErrNotFound
	}
	if err != nil {
		return u, err
	}
	u.Email = email.String
	u.PasswordHash = hash.String
	if github.Valid {
		u.GithubID = &github.String
	}
	return u, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
