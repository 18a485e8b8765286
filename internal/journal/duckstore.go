package journal

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/imagedrop/backend/internal/models"
	"github.com/marcboeker/go-duckdb"
)

// DuckJournal keeps the upload journal in a DuckDB file.
type DuckJournal struct {
	db     *sql.DB
	dbPath string

	writeMu sync.Mutex // serializes inserts
}

// Open opens (or creates) the journal at dbPath. An empty path opens an
// in-memory database.
func Open(dbPath string) (*DuckJournal, error) {
	connector, err := duckdb.NewConnector(dbPath, func(execer driver.ExecerContext) error {
		pragmas := []string{
			"PRAGMA threads=2",
			"PRAGMA enable_progress_bar=false",
		}
		for _, pragma := range pragmas {
			if _, err := execer.ExecContext(context.Background(), pragma, nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create DuckDB connector: %w", err)
	}

	db := sql.OpenDB(connector)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS uploads (
			id           VARCHAR PRIMARY KEY,
			widget_id    VARCHAR NOT NULL,
			file_name    VARCHAR NOT NULL,
			content_type VARCHAR,
			size         BIGINT NOT NULL,
			sink         VARCHAR NOT NULL,
			storage_key  VARCHAR,
			status       VARCHAR NOT NULL,
			error        VARCHAR,
			duration_ms  BIGINT NOT NULL,
			created_at   BIGINT NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	return &DuckJournal{db: db, dbPath: dbPath}, nil
}

// Record inserts one attempt. A missing ID or timestamp is filled in.
func (j *DuckJournal) Record(ctx context.Context, rec models.JournalRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	j.writeMu.Lock()
	defer j.writeMu.Unlock()

	_, err := j.db.ExecContext(ctx, `
		INSERT INTO uploads (id, widget_id, file_name, content_type, size, sink,
			storage_key, status, error, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.WidgetID, rec.FileName, rec.ContentType, rec.Size, rec.Sink,
		rec.StorageKey, string(rec.Status), rec.Error, rec.DurationMs, rec.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert journal record: %w", err)
	}
	return nil
}

// Recent returns the newest records first.
func (j *DuckJournal) Recent(ctx context.Context, limit int) ([]models.JournalRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := j.db.QueryContext(ctx, `
		SELECT id, widget_id, file_name, content_type, size, sink,
			storage_key, status, error, duration_ms, created_at
		FROM uploads
		ORDER BY created_at DESC, id
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	records := make([]models.JournalRecord, 0, limit)
	for rows.Next() {
		var (
			rec         models.JournalRecord
			contentType sql.NullString
			storageKey  sql.NullString
			errMsg      sql.NullString
			status      string
			createdAt   int64
		)
		if err := rows.Scan(&rec.ID, &rec.WidgetID, &rec.FileName, &contentType, &rec.Size, &rec.Sink,
			&storageKey, &status, &errMsg, &rec.DurationMs, &createdAt); err != nil {
			return nil, fmt.Errorf("scan journal record: %w", err)
		}
		rec.ContentType = contentType.String
		rec.StorageKey = storageKey.String
		rec.Error = errMsg.String
		rec.Status = models.JournalStatus(status)
		rec.CreatedAt = time.UnixMilli(createdAt)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Close closes the underlying database.
func (j *DuckJournal) Close() error {
	return j.db.Close()
}
