package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"nimbus-portal/internal/models"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var (
	ErrUserNotFound     = errors.New("user not found")
	ErrDuplicateUser    = errors.New("user already exists")
	ErrStoreUnavailable = errors.New("credential store unavailable")
)

// TimestampLayout is how last_login is written: ISO 8601, UTC, no offset.
const TimestampLayout = "2006-01-02T15:04:05.000000"

// DBTX is the subset of sqlx used by the repositories. *sqlx.DB, *sqlx.Conn
// and *sqlx.Tx all satisfy it, so callers decide which handle a request uses.
type DBTX interface {
	sqlx.QueryerContext
	sqlx.ExecerContext
}

type UserRepository interface {
	FindByUsername(ctx context.Context, db DBTX, username string) (*models.User, error)
	Create(ctx context.Context, db DBTX, username, passwordHash string) (*models.User, error)
	UpdateLoginTimestamp(ctx context.Context, db DBTX, userID int64) error
	UpdateProfile(ctx context.Context, db DBTX, username string, profile models.Profile) error
	Ping(ctx context.Context, db DBTX) error
}

type userRepository struct {
	logger *zap.Logger
	now    func() time.Time
}

func NewUserRepository(logger *zap.Logger) UserRepository {
	return &userRepository{
		logger: logger,
		now:    time.Now,
	}
}

type userRow struct {
	ID              int64          `db:"id"`
	Username        string         `db:"username"`
	Password        string         `db:"password"`
	FirstName       sql.NullString `db:"first_name"`
	LastName        sql.NullString `db:"last_name"`
	Email           sql.NullString `db:"email"`
	JobTitle        sql.NullString `db:"job_title"`
	FavoriteService sql.NullString `db:"favorite_service"`
	Region          sql.NullString `db:"region"`
	Bio             sql.NullString `db:"bio"`
	LastLogin       sql.NullString `db:"last_login"`
}

func (r userRow) toModel() *models.User {
	user := &models.User{
		ID:           r.ID,
		Username:     r.Username,
		PasswordHash: r.Password,
		Profile: models.Profile{
			FirstName:       r.FirstName.String,
			LastName:        r.LastName.String,
			Email:           r.Email.String,
			JobTitle:        r.JobTitle.String,
			FavoriteService: r.FavoriteService.String,
			Region:          r.Region.String,
			Bio:             r.Bio.String,
		},
	}
	if r.LastLogin.Valid {
		if t, ok := ParseTimestamp(r.LastLogin.String); ok {
			user.LastLogin = &t
		}
	}
	return user
}

const selectUser = `
	SELECT id, username, password, first_name, last_name, email, job_title,
	       favorite_service, region, bio, last_login
	FROM users
`

func (r *userRepository) FindByUsername(ctx context.Context, db DBTX, username string) (*models.User, error) {
	var row userRow
	err := sqlx.GetContext(ctx, db, &row, selectUser+`WHERE lower(username) = lower(?)`, username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		r.logger.Error("Failed to get user by username", zap.String("username", username), zap.Error(err))
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return row.toModel(), nil
}

// Create inserts a new user. It does not check for an existing name first; a
// case-insensitive clash is reported by the unique index as ErrDuplicateUser.
func (r *userRepository) Create(ctx context.Context, db DBTX, username, passwordHash string) (*models.User, error) {
	now := r.now().UTC()
	query := `INSERT INTO users (username, password, last_login) VALUES (?, ?, ?)`

	result, err := db.ExecContext(ctx, query, username, passwordHash, FormatTimestamp(now))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateUser
		}
		r.logger.Error("Failed to create user", zap.String("username", username), zap.Error(err))
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get last insert id: %w", err)
	}

	lastLogin := now.Truncate(time.Microsecond)
	return &models.User{
		ID:           id,
		Username:     username,
		PasswordHash: passwordHash,
		LastLogin:    &lastLogin,
	}, nil
}

func (r *userRepository) UpdateLoginTimestamp(ctx context.Context, db DBTX, userID int64) error {
	_, err := db.ExecContext(ctx, `UPDATE users SET last_login = ? WHERE id = ?`, FormatTimestamp(r.now().UTC()), userID)
	if err != nil {
		r.logger.Error("Failed to update last login", zap.Int64("user_id", userID), zap.Error(err))
		return fmt.Errorf("failed to update last login: %w", err)
	}
	return nil
}

// UpdateProfile replaces every profile column of the matching user; blank
// fields overwrite previously saved values.
func (r *userRepository) UpdateProfile(ctx context.Context, db DBTX, username string, profile models.Profile) error {
	query := `
		UPDATE users
		   SET first_name = ?,
		       last_name = ?,
		       email = ?,
		       job_title = ?,
		       favorite_service = ?,
		       region = ?,
		       bio = ?
		 WHERE lower(username) = lower(?)
	`

	result, err := db.ExecContext(ctx, query,
		profile.FirstName,
		profile.LastName,
		profile.Email,
		profile.JobTitle,
		profile.FavoriteService,
		profile.Region,
		profile.Bio,
		username,
	)
	if err != nil {
		r.logger.Error("Failed to update profile", zap.String("username", username), zap.Error(err))
		return fmt.Errorf("failed to update profile: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *userRepository) Ping(ctx context.Context, db DBTX) error {
	var one int
	if err := sqlx.GetContext(ctx, db, &one, `SELECT 1`); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseTimestamp accepts both the layout written here and the shorter
// isoformat strings found in older rows.
func ParseTimestamp(s string) (time.Time, bool) {
	for _, layout := range []string{"2006-01-02T15:04:05.999999999", time.RFC3339Nano} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	switch sqliteErr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	case sqlite3.SQLITE_CONSTRAINT:
		return strings.Contains(sqliteErr.Error(), "UNIQUE")
	}
	return false
}
