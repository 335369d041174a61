package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/kirillkom/pageindex-recall/internal/core/domain"
	"github.com/kirillkom/pageindex-recall/internal/core/ports"
)

type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "pgx"
)

// Store reads the vectors and documents tables written by the indexing
// pipeline. It never writes.
type Store struct {
	db      *sql.DB
	dialect Dialect
	logger  *slog.Logger
}

func New(db *sql.DB, dialect Dialect, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, dialect: dialect, logger: logger}
}

// DialectFor picks the driver from the DSN: postgres URLs use pgx, anything
// else is treated as a SQLite path or URI.
func DialectFor(dsn string) (Dialect, string) {
	trimmed := strings.TrimSpace(dsn)
	lower := strings.ToLower(trimmed)
	switch {
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		return DialectPostgres, trimmed
	case strings.HasPrefix(lower, "sqlite://"):
		return DialectSQLite, trimmed[len("sqlite://"):]
	default:
		return DialectSQLite, trimmed
	}
}

func Open(dsn string) (*sql.DB, Dialect, error) {
	dialect, source := DialectFor(dsn)
	if source == "" {
		return nil, "", fmt.Errorf("vector store dsn is empty")
	}
	if dialect == DialectSQLite && !strings.Contains(source, "mode=") {
		sep := "?"
		if strings.Contains(source, "?") {
			sep = "&"
		}
		if !strings.HasPrefix(source, "file:") {
			source = "file:" + source
		}
		source += sep + "mode=ro"
	}

	db, err := sql.Open(string(dialect), source)
	if err != nil {
		return nil, "", fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, "", fmt.Errorf("db ping: %w", err)
	}
	return db, dialect, nil
}

func (s *Store) placeholder(n int) string {
	if s.dialect == DialectPostgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ScanVectors streams every stored vector to fn. Rows whose embedding does
// not decode are skipped.
func (s *Store) ScanVectors(ctx context.Context, fn func(ports.VectorRow) error) error {
	rows, err := s.db.QueryContext(ctx, `SELECT id, embedding, section_id FROM vectors`)
	if err != nil {
		return domain.WrapError(domain.ErrTemporary, "query vectors", err)
	}
	defer rows.Close()

	skipped := 0
	for rows.Next() {
		var (
			id, embedding, sectionID sql.NullString
		)
		if err := rows.Scan(&id, &embedding, &sectionID); err != nil {
			return fmt.Errorf("scan vector row: %w", err)
		}

		vector, err := decodeEmbedding(embedding.String)
		if err != nil {
			skipped++
			continue
		}
		if err := fn(ports.VectorRow{ID: id.String, SectionID: sectionID.String, Embedding: vector}); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate vector rows: %w", err)
	}
	if skipped > 0 {
		s.logger.Warn("vector_rows_skipped", "count", skipped)
	}
	return nil
}

func (s *Store) LookupFallback(ctx context.Context, id string) (*ports.FallbackDocument, bool, error) {
	query := `SELECT embedding_text, original_snippet, section_path FROM documents WHERE id = ` + s.placeholder(1)

	var embeddingText, snippet, sectionPath sql.NullString
	err := s.db.QueryRowContext(ctx, query, id).Scan(&embeddingText, &snippet, &sectionPath)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("lookup document %s: %w", id, err)
	}
	return &ports.FallbackDocument{
		ID:              id,
		EmbeddingText:   embeddingText.String,
		OriginalSnippet: snippet.String,
		SectionPath:     sectionPath.String,
	}, true, nil
}

func decodeEmbedding(raw string) ([]float32, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, errors.New("empty embedding")
	}
	var vector []float32
	if err := json.Unmarshal([]byte(raw), &vector); err != nil {
		return nil, fmt.Errorf("decode embedding: %w", err)
	}
	if len(vector) == 0 {
		return nil, errors.New("empty embedding")
	}
	return vector, nil
}
