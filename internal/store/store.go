// Package store persists game snapshots to disk on a fixed interval.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/lox/fluxbux/internal/game"
)

// DefaultInterval is how often the writer loop checks for a pending
// snapshot.
const DefaultInterval = 5 * time.Second

// Store writes the latest enqueued snapshot to a primary JSON file and a
// date-stamped backup. Producers and the writer loop are fully decoupled:
// a failed write is logged and retried on the next tick, never propagated.
type Store struct {
	path      string
	backupDir string
	interval  time.Duration
	clock     quartz.Clock
	logger    *log.Logger
	pending   chan *game.Snapshot
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithClock replaces the ticker clock, used by tests.
func WithClock(clock quartz.Clock) StoreOption {
	return func(s *Store) { s.clock = clock }
}

// WithInterval overrides the write interval.
func WithInterval(d time.Duration) StoreOption {
	return func(s *Store) { s.interval = d }
}

// New creates a store writing to path, with daily backups under backupDir.
func New(path, backupDir string, logger *log.Logger, opts ...StoreOption) *Store {
	s := &Store{
		path:      path,
		backupDir: backupDir,
		interval:  DefaultInterval,
		clock:     quartz.NewReal(),
		logger:    logger.WithPrefix("store"),
		pending:   make(chan *game.Snapshot, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Enqueue replaces any pending snapshot with snap. Only the most recent
// snapshot matters, so older unwritten ones are dropped.
func (s *Store) Enqueue(snap *game.Snapshot) {
	for {
		select {
		case s.pending <- snap:
			return
		default:
			select {
			case <-s.pending:
			default:
			}
		}
	}
}

// Run writes pending snapshots until ctx is cancelled. It never returns on
// a write failure.
func (s *Store) Run(ctx context.Context) error {
	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			select {
			case snap := <-s.pending:
				if err := s.Write(snap); err != nil {
					s.logger.Error("snapshot write failed, will retry", "error", err)
				}
			default:
			}
		}
	}
}

// Write persists snap to the primary file, then to the daily backup. The
// backup is a checkpoint of a successful primary write: it is skipped
// entirely when the primary write fails.
func (s *Store) Write(snap *game.Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "    ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := writeFileAtomic(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", s.path, err)
	}
	if err := s.writeBackup(data); err != nil {
		s.logger.Error("backup write failed", "error", err)
	}
	s.logger.Debug("snapshot written", "path", s.path, "bytes", len(data))
	return nil
}

func (s *Store) writeBackup(data []byte) error {
	if s.backupDir == "" {
		return nil
	}
	if err := os.MkdirAll(s.backupDir, 0o755); err != nil {
		return fmt.Errorf("create backup dir: %w", err)
	}
	name := fmt.Sprintf("database_%s.json", s.clock.Now().Format("2006-01-02"))
	path := filepath.Join(s.backupDir, name)
	if err := writeFileAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// Load reads the primary snapshot file. A missing file is not an error; it
// returns a nil snapshot and the caller starts a fresh game.
func (s *Store) Load() (*game.Snapshot, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	var snap game.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.path, err)
	}
	return &snap, nil
}
