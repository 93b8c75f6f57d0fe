// Package sqlite implements core.ArtifactRepository on sqlite via
// database/sql and the CGO-free modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/threatmesh/threatmesh/core"
)

const schema = `
CREATE TABLE IF NOT EXISTS artifacts (
	id          TEXT PRIMARY KEY,
	analysis_id TEXT NOT NULL,
	content     TEXT NOT NULL,
	metadata    TEXT NOT NULL DEFAULT '{}',
	created_at  TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_artifacts_analysis ON artifacts(analysis_id, created_at);
`

// Repository is a sqlite-backed ArtifactRepository.
type Repository struct {
	db *sql.DB
}

// Open creates (or opens) the database at path and ensures the schema.
func Open(path string) (*Repository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// modernc sqlite serializes writes; a single connection avoids
	// SQLITE_BUSY under concurrent analyses.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &Repository{db: db}, nil
}

// Close releases the underlying database handle.
func (r *Repository) Close() error { return r.db.Close() }

// Save implements core.ArtifactRepository.
func (r *Repository) Save(ctx context.Context, analysisID string, artifact core.Artifact) error {
	if artifact.ID == "" {
		artifact.ID = core.NewID()
	}
	metadata, err := json.Marshal(artifact.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO artifacts (id, analysis_id, content, metadata, created_at) VALUES (?, ?, ?, ?, ?)`,
		artifact.ID, analysisID, artifact.Content, string(metadata), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save artifact: %w", err)
	}
	return nil
}

// List implements core.ArtifactRepository, returning artifacts in save order.
func (r *Repository) List(ctx context.Context, analysisID string) ([]core.Artifact, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, content, metadata FROM artifacts WHERE analysis_id = ? ORDER BY created_at, id`,
		analysisID)
	if err != nil {
		return nil, fmt.Errorf("failed to list artifacts: %w", err)
	}
	defer rows.Close()

	var out []core.Artifact
	for rows.Next() {
		var a core.Artifact
		var metadata string
		if err := rows.Scan(&a.ID, &a.Content, &metadata); err != nil {
			return nil, fmt.Errorf("failed to scan artifact: %w", err)
		}
		if err := json.Unmarshal([]byte(metadata), &a.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode metadata: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
