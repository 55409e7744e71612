package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/hongminglow/dunes-blog/internal/models"
	"github.com/hongminglow/dunes-blog/internal/storage"
)

var _ storage.UserStore = (*Store)(nil)

// Store keeps users in an embedded SQLite database.
type Store struct {
	db        *sql.DB
	writeLock sync.Mutex // modernc sqlite does not handle concurrent writers well
}

// NewUserStore opens the database at path and creates the schema if needed.
func NewUserStore(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// One connection keeps the busy_timeout pragma in effect for every query.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			username      TEXT UNIQUE NOT NULL,
			password_hash TEXT NOT NULL,
			role          TEXT NOT NULL,
			created_at    TEXT NOT NULL,
			last_login    TEXT
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close db: %w", err)
	}
	return nil
}

// CreateUser inserts a new user row.
func (s *Store) CreateUser(ctx context.Context, user models.User) (models.User, error) {
	user, err := storage.PrepareNew(user, time.Now())
	if err != nil {
		return models.User{}, err
	}

	s.writeLock.Lock()
	defer s.writeLock.Unlock()

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO users (id, username, password_hash, role, created_at) VALUES (?, ?, ?, ?, ?)`,
		user.ID, user.Username, user.PasswordHash, user.Role, user.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		var liteErr *sqlite.Error
		if errors.As(err, &liteErr) {
			switch liteErr.Code() {
			case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
				return models.User{}, storage.ErrAlreadyExists
			}
		}
		return models.User{}, fmt.Errorf("insert user: %w", err)
	}
	return user, nil
}

// FindByUsername fetches a user by exact username.
func (s *Store) FindByUsername(ctx context.Context, username string) (models.User, error) {
	return s.queryOne(ctx, `SELECT id, username, password_hash, role, created_at, last_login FROM users WHERE username = ?`, username)
}

// FindByID fetches a user by identifier.
func (s *Store) FindByID(ctx context.Context, id string) (models.User, error) {
	return s.queryOne(ctx, `SELECT id, username, password_hash, role, created_at, last_login FROM users WHERE id = ?`, id)
}

// TouchLastLogin records the time of the latest successful login.
func (s *Store) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	return s.exec(ctx, `UPDATE users SET last_login = ? WHERE id = ?`, at.UTC().Format(time.RFC3339Nano), id)
}

// UpdatePassword replaces the stored password hash.
func (s *Store) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	return s.exec(ctx, `UPDATE users SET password_hash = ? WHERE id = ?`, passwordHash, id)
}

func (s *Store) exec(ctx context.Context, query string, args ...any) error {
	s.writeLock.Lock()
	defer s.writeLock.Unlock()

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) queryOne(ctx context.Context, query string, arg string) (models.User, error) {
	var (
		user      models.User
		createdAt string
		lastLogin sql.NullString
	)
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&user.ID, &user.Username, &user.PasswordHash, &user.Role, &createdAt, &lastLogin,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, storage.ErrNotFound
		}
		return models.User{}, fmt.Errorf("query user: %w", err)
	}

	user.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return models.User{}, fmt.Errorf("parse created_at: %w", err)
	}
	if lastLogin.Valid {
		t, err := time.Parse(time.RFC3339Nano, lastLogin.String)
		if err != nil {
			return models.User{}, fmt.Errorf("parse last_login: %w", err)
		}
		user.LastLogin = &t
	}
	return user, nil
}
