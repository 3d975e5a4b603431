// Package sqlite provides a local SQLite-backed core.VersionStore.
//
// Notes:
//   - WAL is enabled to support concurrent reads while writing.
//   - A single write connection keeps version allocation serialized, so
//     numbering stays gap-free without application-level locking.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hupe1980/artifactmesh/artifact"
	"github.com/hupe1980/artifactmesh/core"
	_ "modernc.org/sqlite"
)

// Store is a SQLite-backed append-only version store.
type Store struct {
	db *sql.DB
}

// compile-time interface check
var _ core.VersionStore = (*Store)(nil)

// Open opens (or creates) the database at path and initializes the schema.
func Open(path string) (*Store, error) {
	p := filepath.Clean(strings.TrimSpace(path))
	if p == "" {
		return nil, errors.New("missing db path")
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o700); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", p)
	if err != nil {
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func initSchema(db *sql.DB) error {
	if db == nil {
		return errors.New("nil db")
	}
	if _, err := db.Exec(`PRAGMA journal_mode=WAL;`); err != nil {
		return fmt.Errorf("pragma journal_mode: %w", err)
	}
	if _, err := db.Exec(`PRAGMA busy_timeout=3000;`); err != nil {
		return fmt.Errorf("pragma busy_timeout: %w", err)
	}
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS artifact_versions (
  artifact_id        TEXT    NOT NULL,
  version_number     INTEGER NOT NULL,
  title              TEXT    NOT NULL DEFAULT '',
  kind               TEXT    NOT NULL,
  content            TEXT    NOT NULL,
  parent_version     INTEGER NOT NULL DEFAULT 0,
  op                 TEXT    NOT NULL,
  model              TEXT    NOT NULL DEFAULT '',
  owner              TEXT    NOT NULL DEFAULT '',
  reverted_from      INTEGER NOT NULL DEFAULT 0,
  reverted_to        INTEGER NOT NULL DEFAULT 0,
  created_at_unix_ms INTEGER NOT NULL,
  PRIMARY KEY (artifact_id, version_number)
);
`); err != nil {
		return fmt.Errorf("create artifact_versions: %w", err)
	}
	return nil
}

// GetCurrent implements core.VersionStore.
func (s *Store) GetCurrent(ctx context.Context, artifactID string) (core.Version, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT artifact_id, version_number, title, kind, content, parent_version,
       op, model, owner, reverted_from, reverted_to, created_at_unix_ms
FROM artifact_versions
WHERE artifact_id = ?
ORDER BY version_number DESC
LIMIT 1
`, artifactID)
	v, err := scanVersion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Version{}, artifact.ErrNotFound
	}
	return v, err
}

// GetVersion implements core.VersionStore.
func (s *Store) GetVersion(ctx context.Context, artifactID string, number int) (core.Version, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT artifact_id, version_number, title, kind, content, parent_version,
       op, model, owner, reverted_from, reverted_to, created_at_unix_ms
FROM artifact_versions
WHERE artifact_id = ? AND version_number = ?
`, artifactID, number)
	v, err := scanVersion(row)
	if !errors.Is(err, sql.ErrNoRows) {
		return v, err
	}

	// Distinguish a missing artifact from a missing version.
	var count int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM artifact_versions WHERE artifact_id = ?`, artifactID,
	).Scan(&count); err != nil {
		return core.Version{}, err
	}
	if count == 0 {
		return core.Version{}, artifact.ErrNotFound
	}
	return core.Version{}, artifact.ErrVersionNotFound
}

// ListVersions implements core.VersionStore.
func (s *Store) ListVersions(ctx context.Context, artifactID string) ([]core.Version, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT artifact_id, version_number, title, kind, content, parent_version,
       op, model, owner, reverted_from, reverted_to, created_at_unix_ms
FROM artifact_versions
WHERE artifact_id = ?
ORDER BY version_number ASC
`, artifactID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.Version
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, artifact.ErrNotFound
	}
	return out, nil
}

// SaveVersion implements core.VersionStore. The number is allocated inside
// one transaction, so a saved version becomes visible atomically with its
// allocated number and concurrent writers never produce gaps.
func (s *Store) SaveVersion(ctx context.Context, draft core.VersionDraft) (core.Version, error) {
	createdAt := draft.Metadata.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Version{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var number int
	if err := tx.QueryRowContext(ctx, `
SELECT COALESCE(MAX(version_number), 0) + 1
FROM artifact_versions
WHERE artifact_id = ?
`, draft.ArtifactID).Scan(&number); err != nil {
		return core.Version{}, err
	}

	if _, err := tx.ExecContext(ctx, `
INSERT INTO artifact_versions (
  artifact_id, version_number, title, kind, content, parent_version,
  op, model, owner, reverted_from, reverted_to, created_at_unix_ms
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
		draft.ArtifactID, number, draft.Title, string(draft.Kind), draft.Content, draft.Parent,
		draft.Metadata.Operation.String(), draft.Metadata.Model, draft.Metadata.Owner,
		draft.Metadata.RevertedFrom, draft.Metadata.RevertedTo, createdAt.UnixMilli(),
	); err != nil {
		return core.Version{}, fmt.Errorf("insert version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return core.Version{}, err
	}

	v := core.Version{
		ArtifactID: draft.ArtifactID,
		Number:     number,
		Title:      draft.Title,
		Kind:       draft.Kind,
		Content:    draft.Content,
		Parent:     draft.Parent,
		Metadata:   draft.Metadata,
	}
	v.Metadata.CreatedAt = createdAt
	return v, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVersion(row rowScanner) (core.Version, error) {
	var (
		v         core.Version
		kind      string
		op        string
		createdMs int64
	)
	if err := row.Scan(
		&v.ArtifactID, &v.Number, &v.Title, &kind, &v.Content, &v.Parent,
		&op, &v.Metadata.Model, &v.Metadata.Owner,
		&v.Metadata.RevertedFrom, &v.Metadata.RevertedTo, &createdMs,
	); err != nil {
		return core.Version{}, err
	}
	v.Kind = core.ArtifactKind(kind)
	parsedOp, err := core.ParseOperation(op)
	if err != nil {
		return core.Version{}, fmt.Errorf("stored operation: %w", err)
	}
	v.Metadata.Operation = parsedOp
	v.Metadata.CreatedAt = time.UnixMilli(createdMs).UTC()
	return v, nil
}
