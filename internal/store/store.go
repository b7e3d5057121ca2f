// Package store persists engine state in a single SQLite key-value table.
// Keys are namespaced with a "flowdesk:" prefix and values are JSON, which
// keeps the schema stable while the payload shapes evolve. A version tag
// guards the namespace: on mismatch every namespaced key is cleared and the
// tag rewritten, a one-way migration with no downgrade path.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"flowdesk/internal/types"
)

// Namespace prefixes every key this package owns.
const Namespace = "flowdesk:"

// SchemaVersion tags the stored data layout. Bumping it wipes the namespace
// on next open.
const SchemaVersion = "1"

const (
	keyVersion    = Namespace + "schema_version"
	keyTasks      = Namespace + "tasks"
	keyActiveTask = Namespace + "active_task"
	keyScores     = Namespace + "quiz_scores"
	keyChatOpen   = Namespace + "chat_open"
)

// Store is a SQLite-backed key-value store. All access is serialized; SQLite
// is opened with a single connection and WAL journaling.
type Store struct {
	db     *sql.DB
	mu     sync.Mutex
	path   string
	logger *zap.Logger
}

// Open initializes the database at path, creating parent directories, the
// schema, and running the version check.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			logger.Debug("pragma failed", zap.String("pragma", pragma), zap.Error(err))
		}
	}

	s := &Store{db: db, path: path, logger: logger.Named("store")}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initialize() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS kv (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// migrate enforces the schema version. Unknown or stale versions clear every
// namespaced key; there is no incremental upgrade path.
func (s *Store) migrate() error {
	var stored string
	err := s.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, keyVersion).Scan(&stored)
	switch {
	case err == sql.ErrNoRows:
		stored = ""
	case err != nil:
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	if stored == SchemaVersion {
		return nil
	}

	if stored != "" {
		s.logger.Warn("schema version changed, clearing stored state",
			zap.String("old", stored), zap.String("new", SchemaVersion))
	}
	if _, err := s.db.Exec(`DELETE FROM kv WHERE key LIKE ?`, Namespace+"%"); err != nil {
		return fmt.Errorf("failed to clear stale keys: %w", err)
	}
	if _, err := s.db.Exec(`INSERT INTO kv (key, value) VALUES (?, ?)`, keyVersion, SchemaVersion); err != nil {
		return fmt.Errorf("failed to write schema version: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// setJSON marshals v and upserts it under key.
func (s *Store) setJSON(key string, v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	_, err = s.db.Exec(`INSERT INTO kv (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, string(data))
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

// getJSON loads key into out. A missing key leaves out untouched and
// returns found=false.
func (s *Store) getJSON(key string, out any) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var raw string
	err := s.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&raw)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return false, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return true, nil
}

// SaveTasks persists the full task list.
func (s *Store) SaveTasks(tasks []types.Task) error {
	return s.setJSON(keyTasks, tasks)
}

// LoadTasks returns the persisted task list, or an empty slice when none
// was saved yet.
func (s *Store) LoadTasks() ([]types.Task, error) {
	var tasks []types.Task
	if _, err := s.getJSON(keyTasks, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// SaveActiveTask records which task is currently locked.
func (s *Store) SaveActiveTask(id string) error {
	return s.setJSON(keyActiveTask, id)
}

// LoadActiveTask returns the locked task id, empty when none.
func (s *Store) LoadActiveTask() (string, error) {
	var id string
	if _, err := s.getJSON(keyActiveTask, &id); err != nil {
		return "", err
	}
	return id, nil
}

// SaveScores persists the quiz score history.
func (s *Store) SaveScores(scores []int) error {
	return s.setJSON(keyScores, scores)
}

// LoadScores returns the quiz score history in arrival order.
func (s *Store) LoadScores() ([]int, error) {
	var scores []int
	if _, err := s.getJSON(keyScores, &scores); err != nil {
		return nil, err
	}
	return scores, nil
}

// SaveChatOpen persists whether the assistant panel is expanded.
func (s *Store) SaveChatOpen(open bool) error {
	return s.setJSON(keyChatOpen, open)
}

// LoadChatOpen returns the persisted panel state, defaulting to open.
func (s *Store) LoadChatOpen() (bool, error) {
	open := true
	if _, err := s.getJSON(keyChatOpen, &open); err != nil {
		return true, err
	}
	return open, nil
}
