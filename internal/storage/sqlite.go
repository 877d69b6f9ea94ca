// Package storage provides the SQLite implementation of the Storage interface.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/Larry-Leee/progressVisualisation/internal/models"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Upserts read the sequence before writing; one connection serializes
	// concurrent ingests instead of failing them with SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS progress_records (
		period TEXT NOT NULL,
		project_name TEXT NOT NULL,
		source_document TEXT NOT NULL,
		plan_amount REAL NOT NULL,
		actual_amount REAL NOT NULL,
		design_quantity REAL,
		cumulative_quantity REAL,
		seq INTEGER NOT NULL,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (period, project_name, source_document)
	);

	CREATE INDEX IF NOT EXISTS idx_records_period ON progress_records(period, seq);

	CREATE TABLE IF NOT EXISTS ingested_documents (
		id TEXT NOT NULL,
		period TEXT NOT NULL,
		name TEXT NOT NULL,
		table_index INTEGER NOT NULL,
		records INTEGER NOT NULL,
		dropped INTEGER NOT NULL,
		run_id TEXT,
		ingested_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (id, period)
	);

	CREATE INDEX IF NOT EXISTS idx_ingested_at ON ingested_documents(ingested_at);
	`
	_, err := db.Exec(schema)
	return err
}

// unavailable wraps a driver error as ErrStoreUnavailable.
func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", models.ErrStoreUnavailable, op, err)
}

// UpsertRecords writes records in one transaction. A record whose
// (period, project_name, source_document) key is already stored replaces the
// stored values, so re-ingesting a document never duplicates rows.
// Records sharing a key within the batch overwrite each other; callers merge
// them first.
func (s *SQLiteStorage) UpsertRecords(ctx context.Context, records []models.NormalizedRecord) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return unavailable("begin", err)
	}
	defer tx.Rollback()

	var seq int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM progress_records`).Scan(&seq); err != nil {
		return unavailable("read sequence", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO progress_records
		 (period, project_name, source_document, plan_amount, actual_amount, design_quantity, cumulative_quantity, seq, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (period, project_name, source_document) DO UPDATE SET
		   plan_amount = excluded.plan_amount,
		   actual_amount = excluded.actual_amount,
		   design_quantity = excluded.design_quantity,
		   cumulative_quantity = excluded.cumulative_quantity,
		   updated_at = excluded.updated_at`,
	)
	if err != nil {
		return unavailable("prepare upsert", err)
	}
	defer stmt.Close()

	now := time.Now()
	for _, r := range records {
		seq++
		if _, err := stmt.ExecContext(ctx,
			string(r.Period), r.ProjectName, r.SourceDocument,
			r.PlanAmount, r.ActualAmount,
			nullFloat(r.DesignQuantity), nullFloat(r.CumulativeQuantity),
			seq, now,
		); err != nil {
			return unavailable("upsert record", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return unavailable("commit", err)
	}
	return nil
}

const recordColumns = `period, project_name, source_document, plan_amount, actual_amount, design_quantity, cumulative_quantity`

// RecordsByPeriod returns the records of period in insertion order.
func (s *SQLiteStorage) RecordsByPeriod(ctx context.Context, period models.Period) ([]models.NormalizedRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM progress_records WHERE period = ? ORDER BY seq`, string(period))
	if err != nil {
		return nil, unavailable("query period", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// AllRecords returns every stored record ordered by period, then insertion order.
func (s *SQLiteStorage) AllRecords(ctx context.Context) ([]models.NormalizedRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM progress_records ORDER BY period, seq`)
	if err != nil {
		return nil, unavailable("query records", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

func scanRecords(rows *sql.Rows) ([]models.NormalizedRecord, error) {
	var out []models.NormalizedRecord
	for rows.Next() {
		var (
			r           models.NormalizedRecord
			period      string
			design, cum sql.NullFloat64
		)
		if err := rows.Scan(&period, &r.ProjectName, &r.SourceDocument, &r.PlanAmount, &r.ActualAmount, &design, &cum); err != nil {
			return nil, unavailable("scan record", err)
		}
		r.Period = models.Period(period)
		r.DesignQuantity = floatPtr(design)
		r.CumulativeQuantity = floatPtr(cum)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate records", err)
	}
	return out, nil
}

// Periods returns the distinct stored periods in ascending order.
func (s *SQLiteStorage) Periods(ctx context.Context) ([]models.Period, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT period FROM progress_records ORDER BY period`)
	if err != nil {
		return nil, unavailable("query periods", err)
	}
	defer rows.Close()
	var out []models.Period
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, unavailable("scan period", err)
		}
		out = append(out, models.Period(p))
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate periods", err)
	}
	return out, nil
}

// RecordIngest stores or replaces the ingest log entry for (doc.ID, doc.Period).
func (s *SQLiteStorage) RecordIngest(ctx context.Context, doc *models.IngestedDocument) error {
	if doc.IngestedAt.IsZero() {
		doc.IngestedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ingested_documents (id, period, name, table_index, records, dropped, run_id, ingested_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id, period) DO UPDATE SET
		   name = excluded.name,
		   table_index = excluded.table_index,
		   records = excluded.records,
		   dropped = excluded.dropped,
		   run_id = excluded.run_id,
		   ingested_at = excluded.ingested_at`,
		doc.ID, string(doc.Period), doc.Name, doc.TableIndex, doc.Records, doc.Dropped, doc.RunID, doc.IngestedAt,
	)
	if err != nil {
		return unavailable("record ingest", err)
	}
	return nil
}

// GetIngest returns the ingest log entry for a document content id and period.
// A missing entry yields models.ErrNotFound.
func (s *SQLiteStorage) GetIngest(ctx context.Context, id string, period models.Period) (*models.IngestedDocument, error) {
	var (
		doc models.IngestedDocument
		p   string
		run sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, period, name, table_index, records, dropped, run_id, ingested_at
		 FROM ingested_documents WHERE id = ? AND period = ?`, id, string(period),
	).Scan(&doc.ID, &p, &doc.Name, &doc.TableIndex, &doc.Records, &doc.Dropped, &run, &doc.IngestedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("ingest %s for %s: %w", id, period, models.ErrNotFound)
	}
	if err != nil {
		return nil, unavailable("get ingest", err)
	}
	doc.Period = models.Period(p)
	doc.RunID = run.String
	return &doc, nil
}

// ListIngests returns ingest log entries, newest first, with offset and limit.
func (s *SQLiteStorage) ListIngests(ctx context.Context, offset, limit int) ([]*models.IngestedDocument, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, period, name, table_index, records, dropped, run_id, ingested_at
		 FROM ingested_documents ORDER BY ingested_at DESC LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, unavailable("list ingests", err)
	}
	defer rows.Close()

	var docs []*models.IngestedDocument
	for rows.Next() {
		var (
			doc models.IngestedDocument
			p   string
			run sql.NullString
		)
		if err := rows.Scan(&doc.ID, &p, &doc.Name, &doc.TableIndex, &doc.Records, &doc.Dropped, &run, &doc.IngestedAt); err != nil {
			return nil, unavailable("scan ingest", err)
		}
		doc.Period = models.Period(p)
		doc.RunID = run.String
		docs = append(docs, &doc)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate ingests", err)
	}
	return docs, nil
}

// CountRecords returns the total number of stored records.
func (s *SQLiteStorage) CountRecords(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM progress_records`).Scan(&count); err != nil {
		return 0, unavailable("count records", err)
	}
	return count, nil
}

// CountDocuments returns the number of ingest log entries.
func (s *SQLiteStorage) CountDocuments(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ingested_documents`).Scan(&count); err != nil {
		return 0, unavailable("count documents", err)
	}
	return count, nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
