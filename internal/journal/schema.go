package journal

import (
	"database/sql"

	"codeberg.org/mutker/tempstation/internal/errors"
	"codeberg.org/mutker/tempstation/internal/logger"
)

const (
	SchemaVersion = 1

	createTablesSQL = `
	   CREATE TABLE IF NOT EXISTS schema_versions (
	       version     INTEGER PRIMARY KEY,
	       applied_at  TEXT NOT NULL
	   );
	   CREATE TABLE IF NOT EXISTS attempts (
	       attempt_id   TEXT PRIMARY KEY,
	       cycle_id     TEXT NOT NULL,
	       attempt      INTEGER NOT NULL CHECK (attempt > 0),
	       started_at   INTEGER NOT NULL CHECK (typeof(started_at) = 'integer'),
	       duration_ms  INTEGER NOT NULL CHECK (duration_ms >= 0),
	       outcome      TEXT NOT NULL CHECK (outcome IN ('success', 'transport_error', 'parse_error', 'empty_response')),
	       temperature  REAL,
	       received     INTEGER NOT NULL CHECK (received >= 0),
	       dropped      INTEGER NOT NULL CHECK (dropped >= 0),
	       detail       TEXT NOT NULL DEFAULT ''
	   );
	   CREATE INDEX IF NOT EXISTS attempts_started_at ON attempts (started_at);`

	insertAttemptSQL = `
    INSERT INTO attempts (
        attempt_id, cycle_id, attempt,
        started_at, duration_ms,
        outcome, temperature,
        received, dropped, detail
    ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	selectRecentSQL = `
    SELECT attempt_id, cycle_id, attempt, started_at, duration_ms,
           outcome, temperature, received, dropped, detail
    FROM attempts
    ORDER BY started_at DESC, attempt DESC
    LIMIT ?`

	pruneSQL = `DELETE FROM attempts WHERE started_at < ?`
)

// InitSchema creates a new database schema with the current version
func InitSchema(db *sql.DB, log logger.Logger) error {
	errFactory := errors.New()

	log.Debug().Msg("Creating journal database...")

	tx, err := db.Begin()
	if err != nil {
		return errFactory.Wrap(ErrSchemaInitFailed, err)
	}

	committed := false
	defer func() {
		if !committed {
			if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
				log.Debug().Err(err).Msg("Failed to rollback transaction")
			}
		}
	}()

	if _, err := tx.Exec(createTablesSQL); err != nil {
		return errFactory.WithData(ErrSchemaInitFailed, struct {
			Error string
			SQL   string
		}{
			Error: err.Error(),
			SQL:   createTablesSQL,
		})
	}

	if _, err := tx.Exec(`
        INSERT INTO schema_versions (version, applied_at)
        VALUES (?, datetime('now'))
    `, SchemaVersion); err != nil {
		return errFactory.WithData(ErrSchemaInitFailed, struct {
			Error string
			Phase string
		}{
			Error: err.Error(),
			Phase: "record_version",
		})
	}

	if err := tx.Commit(); err != nil {
		return errFactory.Wrap(ErrSchemaInitFailed, err)
	}
	committed = true

	log.Info().
		Int("version", SchemaVersion).
		Msg("Journal schema initialized")

	return nil
}

// GetSchemaVersion returns the current schema version, 0 for a new database.
func GetSchemaVersion(db *sql.DB) (int, error) {
	errFactory := errors.New()

	exists, err := TableExists(db, "schema_versions")
	if err != nil {
		return 0, errFactory.Wrap(ErrSchemaValidationFailed, err)
	}
	if !exists {
		return 0, nil
	}

	var version int
	err = db.QueryRow(`
        SELECT version
        FROM schema_versions
        ORDER BY version DESC
        LIMIT 1
    `).Scan(&version)

	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, errFactory.WithData(ErrSchemaValidationFailed, struct {
			Phase string
			Error string
		}{
			Phase: "get_version",
			Error: err.Error(),
		})
	}

	return version, nil
}

// TableExists checks if a table exists
func TableExists(db *sql.DB, tableName string) (bool, error) {
	var exists bool
	err := db.QueryRow(`
        SELECT EXISTS (
            SELECT 1 FROM sqlite_master
            WHERE type='table' AND name=?
        )
    `, tableName).Scan(&exists)
	if err != nil {
		return false, errors.New().WithData(ErrSchemaValidationFailed, struct {
			Phase string
			Table string
			Error string
		}{
			Phase: "check_table_exists",
			Table: tableName,
			Error: err.Error(),
		})
	}
	return exists, nil
}
