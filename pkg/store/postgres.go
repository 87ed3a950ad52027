package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/xhad/soilreport/internal/models"
	"github.com/xhad/soilreport/internal/types"
)

type PostgresConfig struct {
	ConnString string
	TableName  string
	// TTL hides sessions not updated within the window. Zero keeps them forever.
	TTL time.Duration
}

// PostgresStore keeps session summaries in a table so they survive restarts.
type PostgresStore struct {
	config PostgresConfig
	table  string
	pool   *pgxpool.Pool
}

var _ types.SessionStore = (*PostgresStore)(nil)

func NewPostgresStore(ctx context.Context, config PostgresConfig) (*PostgresStore, error) {
	if config.TableName == "" {
		config.TableName = "soil_sessions"
	}

	pool, err := pgxpool.New(ctx, config.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %v", err)
	}

	ps := &PostgresStore{
		config: config,
		table:  pgx.Identifier{config.TableName}.Sanitize(),
		pool:   pool,
	}

	if err := ps.initialize(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return ps, nil
}

func (ps *PostgresStore) initialize(ctx context.Context) error {
	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			summary TEXT NOT NULL,
			source_name TEXT NOT NULL DEFAULT '',
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, ps.table)

	if _, err := ps.pool.Exec(ctx, createTable); err != nil {
		return fmt.Errorf("failed to create table: %v", err)
	}
	return nil
}

func (ps *PostgresStore) Get(ctx context.Context, id string) (models.Session, bool, error) {
	query := fmt.Sprintf(`SELECT summary, source_name, updated_at FROM %s WHERE id = $1`, ps.table)

	s := models.Session{ID: id}
	err := ps.pool.QueryRow(ctx, query, id).Scan(&s.Summary, &s.SourceName, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Session{ID: id}, false, nil
	}
	if err != nil {
		return models.Session{}, false, fmt.Errorf("failed to load session: %v", err)
	}
	if ps.config.TTL > 0 && time.Since(s.UpdatedAt) > ps.config.TTL {
		return models.Session{ID: id}, false, nil
	}

	s.HasSummary = true
	return s, true, nil
}

// Set replaces the summary for id. Concurrent writers race on updated_at and
// the last one wins.
func (ps *PostgresStore) Set(ctx context.Context, id, summary, source string) error {
	stmt := fmt.Sprintf(`
		INSERT INTO %s (id, summary, source_name, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (id) DO UPDATE SET
			summary = EXCLUDED.summary,
			source_name = EXCLUDED.source_name,
			updated_at = EXCLUDED.updated_at`,
		ps.table)

	_, err := ps.pool.Exec(ctx, stmt, id, sanitizeText(summary), sanitizeText(source))
	if err != nil {
		return fmt.Errorf("failed to save session: %v", err)
	}

	log.Debug().Str("session", id).Int("bytes", len(summary)).Msg("Session saved")
	return nil
}

func (ps *PostgresStore) Delete(ctx context.Context, id string) error {
	stmt := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, ps.table)
	if _, err := ps.pool.Exec(ctx, stmt, id); err != nil {
		return fmt.Errorf("failed to delete session: %v", err)
	}
	return nil
}

func (ps *PostgresStore) Close() {
	if ps.pool != nil {
		ps.pool.Close()
	}
}

// sanitizeText drops invalid UTF-8 and NUL bytes, which Postgres TEXT rejects.
func sanitizeText(s string) string {
	s = strings.ReplaceAll(s, "\x00", "")
	if utf8.ValidString(s) {
		return s
	}
	v := make([]rune, 0, len(s))
	for i, r := range s {
		if r == utf8.RuneError {
			_, size := utf8.DecodeRuneInString(s[i:])
			if size == 1 {
				continue
			}
		}
		v = append(v, r)
	}
	return string(v)
}
