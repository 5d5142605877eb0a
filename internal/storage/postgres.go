// Package storage provides the Postgres-backed version store used when a
// DATABASE_URL is configured. It satisfies design.VersionStore so the rest
// of the system does not care whether versions live in memory or in a table.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"canvasmith/internal/design"
)

const schema = `
CREATE TABLE IF NOT EXISTS design_versions (
	conversation_id TEXT        NOT NULL,
	version         INT         NOT NULL,
	name            TEXT        NOT NULL,
	saved_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	document        JSONB       NOT NULL,
	PRIMARY KEY (conversation_id, version)
)`

type PostgresVersionStore struct {
	pool *pgxpool.Pool
}

func NewPostgresVersionStore(ctx context.Context, url string) (*PostgresVersionStore, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &PostgresVersionStore{pool: pool}, nil
}

func (s *PostgresVersionStore) Close() {
	s.pool.Close()
}

func (s *PostgresVersionStore) Save(ctx context.Context, conversationID string, d *design.Design) (int, error) {
	conversationID = strings.TrimSpace(conversationID)
	doc, err := json.Marshal(d)
	if err != nil {
		return 0, err
	}
	var version int
	err = s.pool.QueryRow(ctx, `
		INSERT INTO design_versions (conversation_id, version, name, document)
		VALUES ($1, (SELECT COALESCE(MAX(version), 0) + 1 FROM design_versions WHERE conversation_id = $1), $2, $3)
		RETURNING version`,
		conversationID, d.Name, doc,
	).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("insert version: %w", err)
	}
	return version, nil
}

func (s *PostgresVersionStore) List(ctx context.Context, conversationID string) ([]design.VersionInfo, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT version, saved_at, name
		FROM design_versions
		WHERE conversation_id = $1
		ORDER BY version`,
		strings.TrimSpace(conversationID),
	)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	defer rows.Close()

	out := make([]design.VersionInfo, 0, 8)
	for rows.Next() {
		var info design.VersionInfo
		if err := rows.Scan(&info.Version, &info.SavedAt, &info.Name); err != nil {
			return nil, err
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

func (s *PostgresVersionStore) Load(ctx context.Context, conversationID string, version int) (*design.Design, error) {
	var doc []byte
	err := s.pool.QueryRow(ctx, `
		SELECT document
		FROM design_versions
		WHERE conversation_id = $1 AND version = $2`,
		strings.TrimSpace(conversationID), version,
	).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, design.ErrVersionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load version: %w", err)
	}
	var d design.Design
	if err := json.Unmarshal(doc, &d); err != nil {
		return nil, err
	}
	return &d, nil
}
