// Package jsonfile stores user records in a flat JSON array on disk, the same
// users.json layout the blog used before it had a database.
package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hongminglow/dunes-blog/internal/models"
	"github.com/hongminglow/dunes-blog/internal/storage"
)

var _ storage.UserStore = (*Store)(nil)

type record struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	PasswordHash string     `json:"passwordHash"`
	Role         string     `json:"role"`
	CreatedAt    time.Time  `json:"createdAt"`
	LastLogin    *time.Time `json:"lastLogin"`
}

// Store keeps users in a single JSON file. The file is re-read on every call
// so edits made by other tools are picked up without a restart.
type Store struct {
	path string
	mu   sync.RWMutex
}

// Open prepares the store at path, creating an empty user list if the file is missing.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		if err := os.WriteFile(path, []byte("[]\n"), 0o600); err != nil {
			return nil, fmt.Errorf("initialise %s: %w", path, err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	return &Store{path: path}, nil
}

// Close is a no-op; the file is not held open between calls.
func (s *Store) Close() error {
	return nil
}

// CreateUser appends a new user, rejecting duplicate usernames and IDs.
func (s *Store) CreateUser(ctx context.Context, user models.User) (models.User, error) {
	user, err := storage.PrepareNew(user, time.Now())
	if err != nil {
		return models.User{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.read()
	if err != nil {
		return models.User{}, err
	}
	for _, rec := range records {
		if rec.Username == user.Username || rec.ID == user.ID {
			return models.User{}, storage.ErrAlreadyExists
		}
	}
	records = append(records, toRecord(user))
	if err := s.write(records); err != nil {
		return models.User{}, err
	}
	return user, nil
}

// FindByUsername returns the user whose username matches exactly.
func (s *Store) FindByUsername(ctx context.Context, username string) (models.User, error) {
	return s.find(func(rec record) bool { return rec.Username == username })
}

// FindByID returns the user with the given identifier.
func (s *Store) FindByID(ctx context.Context, id string) (models.User, error) {
	return s.find(func(rec record) bool { return rec.ID == id })
}

// TouchLastLogin records the time of the latest successful login.
func (s *Store) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	at = at.UTC()
	return s.update(id, func(rec *record) { rec.LastLogin = &at })
}

// UpdatePassword replaces the stored password hash.
func (s *Store) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	return s.update(id, func(rec *record) { rec.PasswordHash = passwordHash })
}

func (s *Store) find(match func(record) bool) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records, err := s.read()
	if err != nil {
		return models.User{}, err
	}
	for _, rec := range records {
		if match(rec) {
			return rec.toUser(), nil
		}
	}
	return models.User{}, storage.ErrNotFound
}

func (s *Store) update(id string, apply func(*record)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.read()
	if err != nil {
		return err
	}
	for i := range records {
		if records[i].ID == id {
			apply(&records[i])
			return s.write(records)
		}
	}
	return storage.ErrNotFound
}

func (s *Store) read() ([]record, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	var records []record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.path, err)
	}
	return records, nil
}

// write replaces the file atomically so readers never observe a partial list.
func (s *Store) write(records []record) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode users: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".users-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace %s: %w", s.path, err)
	}
	return nil
}

func toRecord(user models.User) record {
	return record{
		ID:           user.ID,
		Username:     user.Username,
		PasswordHash: user.PasswordHash,
		Role:         user.Role,
		CreatedAt:    user.CreatedAt,
		LastLogin:    user.LastLogin,
	}
}

func (rec record) toUser() models.User {
	return models.User{
		ID:           rec.ID,
		Username:     rec.Username,
		PasswordHash: rec.PasswordHash,
		Role:         rec.Role,
		CreatedAt:    rec.CreatedAt,
		LastLogin:    rec.LastLogin,
	}
}
