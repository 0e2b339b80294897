package journal_test

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"codeberg.org/mutker/tempstation/internal/journal"
	"codeberg.org/mutker/tempstation/internal/logger"
	"codeberg.org/mutker/tempstation/internal/scheduler"
	"codeberg.org/mutker/tempstation/internal/weather"
	"github.com/go-co-op/gocron"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) journal.Config {
	t.Helper()
	dir := t.TempDir()

	cfg := journal.DefaultConfig()
	cfg.Enabled = true
	cfg.DBPath = filepath.Join(dir, "journal.db")
	cfg.BackupDir = filepath.Join(dir, "backups")
	cfg.BatchSize = 3
	cfg.BatchTimeout = 0
	return cfg
}

func openJournal(t *testing.T, cfg journal.Config) journal.Journal {
	t.Helper()
	j, err := journal.NewService(cfg, logger.With("journal"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func entry(id string, n int, at time.Time, temp *float64) *journal.Entry {
	outcome := "transport_error"
	if temp != nil {
		outcome = "success"
	}
	return &journal.Entry{
		AttemptID:   id,
		CycleID:     "cycle-1",
		Attempt:     n,
		StartedAt:   at,
		Duration:    1500 * time.Millisecond,
		Outcome:     outcome,
		Temperature: temp,
		Received:    120,
	}
}

func TestDisabledJournalIsNoop(t *testing.T) {
	j, err := journal.NewService(journal.DefaultConfig(), nil)
	require.NoError(t, err)

	assert.False(t, j.Enabled())
	require.NoError(t, j.Record(context.Background(), nil))
	entries, err := j.Recent(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
	require.NoError(t, j.Close())
}

func TestEnabledJournalRequiresPath(t *testing.T) {
	cfg := journal.DefaultConfig()
	cfg.Enabled = true
	cfg.DBPath = ""

	_, err := journal.NewService(cfg, nil)
	require.Error(t, err)
}

func TestRecordAndRecent(t *testing.T) {
	j := openJournal(t, testConfig(t))
	ctx := context.Background()
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	temp := -3.5

	require.NoError(t, j.Record(ctx, entry("a1", 1, base, nil)))
	require.NoError(t, j.Record(ctx, entry("a2", 2, base.Add(10*time.Second), &temp)))

	// Below the batch size; Recent flushes pending entries first.
	entries, err := j.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "a2", entries[0].AttemptID)
	require.NotNil(t, entries[0].Temperature)
	assert.Equal(t, -3.5, *entries[0].Temperature)
	assert.Equal(t, "success", entries[0].Outcome)
	assert.True(t, base.Add(10*time.Second).Equal(entries[0].StartedAt))
	assert.Equal(t, 1500*time.Millisecond, entries[0].Duration)

	assert.Equal(t, "a1", entries[1].AttemptID)
	assert.Nil(t, entries[1].Temperature)
	assert.Equal(t, 120, entries[1].Received)

	entries, err = j.Recent(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestRecordRejectsInvalidEntry(t *testing.T) {
	j := openJournal(t, testConfig(t))

	err := j.Record(context.Background(), &journal.Entry{AttemptID: "x"})
	require.Error(t, err)

	err = j.Record(context.Background(), nil)
	require.Error(t, err)
}

func TestRecordHonorsCanceledContext(t *testing.T) {
	j := openJournal(t, testConfig(t))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := j.Record(ctx, entry("a1", 1, time.Now(), nil))
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestPrune(t *testing.T) {
	j := openJournal(t, testConfig(t))
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, j.Record(ctx, entry("old", 1, now.Add(-10*24*time.Hour), nil)))
	require.NoError(t, j.Record(ctx, entry("new", 1, now.Add(-time.Hour), nil)))

	journal.PruneOnce(ctx, j, 7*24*time.Hour, now, logger.With("journal"))

	entries, err := j.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "new", entries[0].AttemptID)
}

func TestEntriesSurviveReopen(t *testing.T) {
	cfg := testConfig(t)
	j, err := journal.NewService(cfg, nil)
	require.NoError(t, err)
	require.NoError(t, j.Record(context.Background(), entry("a1", 1, time.Now(), nil)))
	require.NoError(t, j.Close())

	reopened := openJournal(t, cfg)
	entries, err := reopened.Recent(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestSchemaMismatchBacksUp(t *testing.T) {
	cfg := testConfig(t)
	j, err := journal.NewService(cfg, nil)
	require.NoError(t, err)
	require.NoError(t, j.Record(context.Background(), entry("a1", 1, time.Now(), nil)))
	require.NoError(t, j.Close())

	db, err := sql.Open("sqlite3", cfg.DBPath)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO schema_versions (version, applied_at) VALUES (99, datetime('now'))`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	reopened := openJournal(t, cfg)
	entries, err := reopened.Recent(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, entries)

	backups, err := os.ReadDir(cfg.BackupDir)
	require.NoError(t, err)
	require.Len(t, backups, 1)
	assert.Contains(t, backups[0].Name(), "journal_v99_")
}

func TestRecorderWritesAttempts(t *testing.T) {
	j := openJournal(t, testConfig(t))
	rec := journal.NewRecorder(j, nil)

	rec.RecordAttempt(scheduler.Attempt{
		CycleID: "c1",
		ID:      "a1",
		Number:  1,
		Started: time.Now(),
		Outcome: weather.Outcome{Kind: weather.OutcomeParseError, Err: errors.New("missing field"), Received: 14},
	})
	rec.RecordAttempt(scheduler.Attempt{
		CycleID: "c1",
		ID:      "a2",
		Number:  2,
		Started: time.Now().Add(time.Second),
		Outcome: weather.Outcome{Kind: weather.OutcomeSuccess, Temperature: 7.25, Received: 90},
	})
	rec.RecordCycle(scheduler.Cycle{ID: "c1"})

	entries, err := j.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "success", entries[0].Outcome)
	require.NotNil(t, entries[0].Temperature)
	assert.Equal(t, 7.25, *entries[0].Temperature)

	assert.Equal(t, "parse_error", entries[1].Outcome)
	assert.Equal(t, "missing field", entries[1].Detail)
	assert.Equal(t, 14, entries[1].Received)
}

func TestSchedulePrune(t *testing.T) {
	j := openJournal(t, testConfig(t))
	s := gocron.NewScheduler(time.UTC)

	cfg := testConfig(t)
	cfg.PruneEvery = time.Hour
	job, err := journal.SchedulePrune(s, j, cfg, nil)
	require.NoError(t, err)
	assert.NotNil(t, job)
	assert.Equal(t, 1, s.Len())
}
