package store

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/fluxbux/internal/game"
)

func testLogger() *log.Logger {
	return log.New(io.Discard)
}

func sampleSnapshot() *game.Snapshot {
	round := game.NewRound()
	round.Options = []string{"x", "y"}
	round.Bets["alice"] = map[string]int{"x": 20}
	round.Pool["x"] = 20
	round.Claimed["alice"] = true
	return &game.Snapshot{
		Users:   map[string]int{"alice": 100, "house": 5},
		UserMap: map[string]game.ExternalID{"alice": "ext-1"},
		Weeks:   map[string]*game.Round{"12": round},
	}
}

func TestWriteAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := New(filepath.Join(dir, "database.json"), "", testLogger())

	snap := sampleSnapshot()
	require.NoError(t, s.Write(snap))

	loaded, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, snap, loaded)
}

func TestLoadMissingFileReturnsNil(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "database.json"), "", testLogger())

	snap, err := s.Load()
	require.NoError(t, err)
	assert.Nil(t, snap)
}

func TestLoadRejectsCorruptFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "database.json")
	require.NoError(t, writeFileAtomic(path, []byte("{not json"), 0o644))

	s := New(path, "", testLogger())
	_, err := s.Load()
	assert.Error(t, err)
}

func TestWriteCreatesDailyBackup(t *testing.T) {
	dir := t.TempDir()
	backupDir := filepath.Join(dir, "backup")
	clock := quartz.NewMock(t)
	clock.Set(time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC))
	s := New(filepath.Join(dir, "database.json"), backupDir, testLogger(), WithClock(clock))

	require.NoError(t, s.Write(sampleSnapshot()))

	backup := New(filepath.Join(backupDir, "database_2024-03-15.json"), "", testLogger())
	loaded, err := backup.Load()
	require.NoError(t, err)
	assert.Equal(t, sampleSnapshot(), loaded)
}

func TestWriteFailureSkipsBackup(t *testing.T) {
	dir := t.TempDir()
	backupDir := filepath.Join(dir, "backup")
	// Primary path points at a directory so the write must fail.
	s := New(dir, backupDir, testLogger())

	err := s.Write(sampleSnapshot())
	require.Error(t, err)

	assert.NoDirExists(t, backupDir, "backup is a checkpoint of a successful primary write")
}

func TestEnqueueKeepsLatest(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "database.json"), "", testLogger())

	first := sampleSnapshot()
	second := sampleSnapshot()
	second.Users["alice"] = 999

	s.Enqueue(first)
	s.Enqueue(second)

	got := <-s.pending
	assert.Equal(t, 999, got.Users["alice"])
}

func TestRunWritesPendingOnTick(t *testing.T) {
	dir := t.TempDir()
	clock := quartz.NewMock(t)
	s := New(filepath.Join(dir, "database.json"), "", testLogger(),
		WithClock(clock), WithInterval(time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	trap := clock.Trap().NewTicker()
	defer trap.Close()

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	// Wait for the loop to create its ticker before advancing.
	trap.MustWait(ctx).MustRelease(ctx)

	s.Enqueue(sampleSnapshot())
	clock.Advance(time.Second).MustWait(ctx)

	require.Eventually(t, func() bool {
		loaded, err := s.Load()
		return err == nil && loaded != nil
	}, time.Second, 10*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
