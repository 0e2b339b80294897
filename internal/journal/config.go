package journal

import (
	"path/filepath"
	"time"

	"codeberg.org/mutker/tempstation/internal/errors"
)

const (
	defaultDirPerm      = 0o755
	defaultDBPath       = "/var/lib/tempstation/journal.db"
	defaultBatchSize    = 10
	defaultBatchTimeout = 60 * time.Second
	defaultRetention    = 7 * 24 * time.Hour
	defaultPruneEvery   = time.Hour
)

type Config struct {
	Enabled bool
	DBPath  string
	// BackupDir receives a copy of the database before a schema rebuild.
	// Empty means a "backups" directory next to DBPath.
	BackupDir    string
	BatchSize    int
	BatchTimeout time.Duration
	Retention    time.Duration
	PruneEvery   time.Duration
}

func DefaultConfig() Config {
	return Config{
		Enabled:      false,
		DBPath:       defaultDBPath,
		BatchSize:    defaultBatchSize,
		BatchTimeout: defaultBatchTimeout,
		Retention:    defaultRetention,
		PruneEvery:   defaultPruneEvery,
	}
}

func (c Config) Validate() error {
	errFactory := errors.New()

	// Only validate storage settings if the journal is enabled
	if !c.Enabled {
		return nil
	}
	if c.DBPath == "" {
		return errFactory.New(ErrInvalidDBPath)
	}
	if c.BatchSize < 0 || c.BatchTimeout < 0 || c.Retention < 0 {
		return errFactory.WithData(ErrInvalidConfig, c)
	}
	return nil
}

func (c Config) backupDir() string {
	if c.BackupDir != "" {
		return c.BackupDir
	}
	return filepath.Join(filepath.Dir(c.DBPath), "backups")
}
