// Package storage provides the SQLite implementation of the Store interface.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/mrinoybanerjee/AyurBot/internal/models"
)

// SQLiteStore implements Store using SQLite. Embeddings are stored as
// little-endian float32 BLOBs alongside the passage text.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates a SQLite database at dbPath and initializes
// the schema. Parent directories are created if they do not exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS passages (
		id INTEGER PRIMARY KEY,
		text TEXT NOT NULL,
		embedding BLOB,
		dimension INTEGER,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS sources (
		path TEXT PRIMARY KEY,
		mtime_ns INTEGER NOT NULL,
		size INTEGER NOT NULL,
		passages INTEGER NOT NULL,
		ingested_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	`
	_, err := db.Exec(schema)
	return err
}

// InsertPassage inserts a passage. The embedding, when present, is encoded
// as a float32 blob.
func (s *SQLiteStore) InsertPassage(ctx context.Context, p *models.Passage) error {
	p.CreatedAt = time.Now()
	var blob []byte
	var dim interface{}
	if p.HasEmbedding() {
		blob = encodeVector(p.Embedding)
		dim = len(p.Embedding)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO passages (id, text, embedding, dimension, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.Text, blob, dim, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert passage %d: %w", p.ID, err)
	}
	return nil
}

// BatchInsertPassages inserts multiple passages in a single transaction.
func (s *SQLiteStore) BatchInsertPassages(ctx context.Context, passages []*models.Passage) error {
	if len(passages) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO passages (id, text, embedding, dimension, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now()
	for _, p := range passages {
		p.CreatedAt = now
		var blob []byte
		var dim interface{}
		if p.HasEmbedding() {
			blob = encodeVector(p.Embedding)
			dim = len(p.Embedding)
		}
		if _, err := stmt.ExecContext(ctx, p.ID, p.Text, blob, dim, p.CreatedAt); err != nil {
			return fmt.Errorf("insert passage %d: %w", p.ID, err)
		}
	}
	return tx.Commit()
}

// GetPassage returns a passage by id.
func (s *SQLiteStore) GetPassage(ctx context.Context, id int64) (*models.Passage, error) {
	var p models.Passage
	var blob []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT id, text, embedding, created_at FROM passages WHERE id = ?`, id,
	).Scan(&p.ID, &p.Text, &blob, &p.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("passage not found: %d", id)
	}
	if err != nil {
		return nil, err
	}
	if len(blob) > 0 {
		p.Embedding = decodeVector(blob)
	}
	return &p, nil
}

// ScanPassages invokes fn for every passage in ascending id order.
func (s *SQLiteStore) ScanPassages(ctx context.Context, fn func(*models.Passage) error) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, text, embedding, created_at FROM passages ORDER BY id`,
	)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var p models.Passage
		var blob []byte
		if err := rows.Scan(&p.ID, &p.Text, &blob, &p.CreatedAt); err != nil {
			return err
		}
		if len(blob) > 0 {
			p.Embedding = decodeVector(blob)
		}
		if err := fn(&p); err != nil {
			return err
		}
	}
	return rows.Err()
}

// SetEmbedding attaches an embedding to the passage with the given id.
// The passage text is left untouched. Returns an error when the vector's
// dimension conflicts with embeddings already in the store; mixing
// embeddings from different providers in one store is unsupported.
func (s *SQLiteStore) SetEmbedding(ctx context.Context, id int64, embedding []float32) error {
	if len(embedding) == 0 {
		return fmt.Errorf("cannot set empty embedding for passage %d", id)
	}
	existing, err := s.EmbeddingDimensions(ctx)
	if err != nil {
		return err
	}
	if existing != 0 && existing != len(embedding) {
		return fmt.Errorf("embedding dimension mismatch: store has %d, got %d", existing, len(embedding))
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE passages SET embedding = ?, dimension = ? WHERE id = ?`,
		encodeVector(embedding), len(embedding), id,
	)
	if err != nil {
		return fmt.Errorf("set embedding for passage %d: %w", id, err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("passage not found: %d", id)
	}
	return nil
}

// NextPassageID returns max(id)+1, or 0 for an empty store.
func (s *SQLiteStore) NextPassageID(ctx context.Context) (int64, error) {
	var next int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(id) + 1, 0) FROM passages`,
	).Scan(&next)
	return next, err
}

// GetSource returns the source record for path, or nil when the path has not
// been ingested.
func (s *SQLiteStore) GetSource(ctx context.Context, path string) (*models.SourceRecord, error) {
	var rec models.SourceRecord
	err := s.db.QueryRowContext(ctx,
		`SELECT path, mtime_ns, size, passages, ingested_at FROM sources WHERE path = ?`, path,
	).Scan(&rec.Path, &rec.MTimeNS, &rec.Size, &rec.Passages, &rec.IngestedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// UpsertSource records that a source file has been ingested.
func (s *SQLiteStore) UpsertSource(ctx context.Context, rec *models.SourceRecord) error {
	rec.IngestedAt = time.Now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sources (path, mtime_ns, size, passages, ingested_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET
		   mtime_ns = excluded.mtime_ns,
		   size = excluded.size,
		   passages = excluded.passages,
		   ingested_at = excluded.ingested_at`,
		rec.Path, rec.MTimeNS, rec.Size, rec.Passages, rec.IngestedAt,
	)
	return err
}

// CountPassages returns the total number of passages.
func (s *SQLiteStore) CountPassages(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM passages`).Scan(&count)
	return count, err
}

// CountEmbedded returns the number of passages with an embedding.
func (s *SQLiteStore) CountEmbedded(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM passages WHERE embedding IS NOT NULL`,
	).Scan(&count)
	return count, err
}

// EmbeddingDimensions returns the dimension of stored embeddings, or 0 when
// no passage has been embedded yet.
func (s *SQLiteStore) EmbeddingDimensions(ctx context.Context) (int, error) {
	var dim sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT dimension FROM passages WHERE embedding IS NOT NULL LIMIT 1`,
	).Scan(&dim)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return int(dim.Int64), nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
