package credential

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// fileSlots is the on-disk layout; keys match the slot names used by every
// other backend.
type fileSlots struct {
	Access   string `json:"accessToken,omitempty"`
	Refresh  string `json:"refreshToken,omitempty"`
	Identity string `json:"user_email,omitempty"`
}

// FileStore persists the credential slots as a 0600 JSON file so a session
// survives across CLI invocations. Writes go to a temp file that is renamed
// into place, so a reader never observes a half-written file.
type FileStore struct {
	path   string
	logger *slog.Logger

	mu sync.Mutex
}

// DefaultFilePath returns the credential file location under the user's
// config directory.
func DefaultFilePath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve user config dir: %w", err)
	}
	return filepath.Join(dir, "dashclient", "session.json"), nil
}

// NewFileStore creates a FileStore at path. The file is created on first Set.
func NewFileStore(path string, logger *slog.Logger) *FileStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileStore{path: path, logger: logger}
}

// Access returns the stored access token, or "" if absent or unreadable.
func (s *FileStore) Access(ctx context.Context) string {
	return s.read(ctx).Access
}

// Refresh returns the stored refresh token, or "" if absent or unreadable.
func (s *FileStore) Refresh(ctx context.Context) string {
	return s.read(ctx).Refresh
}

// Identity returns the stored identity hint, or "" if absent or unreadable.
func (s *FileStore) Identity(ctx context.Context) string {
	return s.read(ctx).Identity
}

// Set applies the non-empty fields of p and rewrites the file.
func (s *FileStore) Set(ctx context.Context, p Pair) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.load()
	if err != nil {
		// A corrupt file is replaced rather than blocking login.
		s.logger.WarnContext(ctx, "credential file unreadable, overwriting",
			"path", s.path, "error", err)
		current = Pair{}
	}

	return s.write(current.Merge(p))
}

// Clear deletes the credential file.
func (s *FileStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove credential file: %w", err)
	}
	return nil
}

func (s *FileStore) read(ctx context.Context) Pair {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.load()
	if err != nil {
		s.logger.WarnContext(ctx, "credential file unreadable, treating session as empty",
			"path", s.path, "error", err)
		return Pair{}
	}
	return p
}

// load must be called with mu held.
func (s *FileStore) load() (Pair, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return Pair{}, nil
	}
	if err != nil {
		return Pair{}, fmt.Errorf("read credential file: %w", err)
	}

	var slots fileSlots
	if err := json.Unmarshal(data, &slots); err != nil {
		return Pair{}, fmt.Errorf("decode credential file: %w", err)
	}
	return Pair{Access: slots.Access, Refresh: slots.Refresh, Identity: slots.Identity}, nil
}

// write must be called with mu held.
func (s *FileStore) write(p Pair) error {
	data, err := json.Marshal(fileSlots{Access: p.Access, Refresh: p.Refresh, Identity: p.Identity})
	if err != nil {
		return fmt.Errorf("encode credential file: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create credential dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".session-*.json")
	if err != nil {
		return fmt.Errorf("create temp credential file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod temp credential file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp credential file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp credential file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace credential file: %w", err)
	}
	return nil
}

var _ Store = (*FileStore)(nil)
