package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"

	"match-collector/internal/collector"
	"match-collector/internal/logger"
)

const insertBatchSize = 100

// SQLStore writes unit tables to a SQLite file or a Turso database
type SQLStore struct {
	db   *sql.DB
	name string
	log  *logger.Entry
}

// OpenSQLite opens (or creates) a local SQLite database file
func OpenSQLite(path string) (*SQLStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite %s: %w", path, err)
	}
	// single writer
	db.SetMaxOpenConns(1)
	return ping(db, "sqlite")
}

// OpenTurso connects to a Turso (libsql) database
func OpenTurso(url, authToken string) (*SQLStore, error) {
	connStr := url
	if authToken != "" {
		connStr = fmt.Sprintf("%s?authToken=%s", url, authToken)
	}

	db, err := sql.Open("libsql", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Turso: %w", err)
	}
	return ping(db, "turso")
}

func ping(db *sql.DB, name string) (*SQLStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping %s: %w", name, err)
	}
	return NewSQLStore(db, name), nil
}

// NewSQLStore wraps an open handle
func NewSQLStore(db *sql.DB, name string) *SQLStore {
	return &SQLStore{db: db, name: name, log: logger.Component(name)}
}

func (s *SQLStore) Name() string {
	return s.name
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

// CreateTables creates the required tables if they don't exist
func (s *SQLStore) CreateTables(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS matches (
			match_id TEXT PRIMARY KEY,
			run_id TEXT NOT NULL,
			unit TEXT NOT NULL,
			game_duration INTEGER NOT NULL,
			max_minute INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS participants (
			match_id TEXT NOT NULL,
			puuid TEXT NOT NULL,
			team_id INTEGER NOT NULL,
			win INTEGER NOT NULL,
			lane TEXT NOT NULL,
			champion TEXT NOT NULL,
			enemy_lane_champion TEXT,
			PRIMARY KEY (match_id, puuid)
		)`,
		`CREATE TABLE IF NOT EXISTS timeline_features (
			match_id TEXT NOT NULL,
			minute INTEGER NOT NULL,
			` + featureColumnDefs() + `,
			PRIMARY KEY (match_id, minute)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_matches_unit ON matches(unit)`,
		`CREATE INDEX IF NOT EXISTS idx_participants_champion ON participants(champion, lane)`,
	}

	for _, query := range queries {
		if _, err := s.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}
	return nil
}

// WriteUnit implements collector.Sink. Rows already present are ignored.
func (s *SQLStore) WriteUnit(ctx context.Context, res *collector.UnitResult) error {
	matches := unitMatches(res)
	matchArgs := make([][]interface{}, len(matches))
	for i, m := range matches {
		matchArgs[i] = []interface{}{m.MatchID, res.RunID, res.Label, m.GameDuration, m.MaxMinute}
	}
	if err := s.insertBatched(ctx,
		`INSERT OR IGNORE INTO matches (match_id, run_id, unit, game_duration, max_minute) VALUES (?, ?, ?, ?, ?)`,
		matchArgs); err != nil {
		return fmt.Errorf("insert matches: %w", err)
	}

	partArgs := make([][]interface{}, len(res.Rows))
	for i, r := range res.Rows {
		var opp interface{}
		if r.OpposingChampion != nil {
			opp = *r.OpposingChampion
		}
		win := 0
		if r.Win {
			win = 1
		}
		partArgs[i] = []interface{}{r.MatchID, r.PUUID, r.TeamID, win, r.Role, r.Champion, opp}
	}
	if err := s.insertBatched(ctx,
		`INSERT OR IGNORE INTO participants (match_id, puuid, team_id, win, lane, champion, enemy_lane_champion) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		partArgs); err != nil {
		return fmt.Errorf("insert participants: %w", err)
	}

	featArgs := make([][]interface{}, 0, res.FeatureRows())
	for _, mf := range res.Features {
		for _, r := range mf.Rows {
			featArgs = append(featArgs, featureArgs(r))
		}
	}
	if err := s.insertBatched(ctx,
		fmt.Sprintf(`INSERT OR IGNORE INTO timeline_features (%s) VALUES (%s)`,
			featureInsertColumns(), placeholders(len(featureColumns)+2, false)),
		featArgs); err != nil {
		return fmt.Errorf("insert timeline features: %w", err)
	}

	s.log.WithFields(logger.Fields{
		"unit":         res.Label,
		"matches":      len(matchArgs),
		"participants": len(partArgs),
		"features":     len(featArgs),
	}).Info("unit stored")
	return nil
}

// insertBatched runs query once per row, committing every insertBatchSize rows
func (s *SQLStore) insertBatched(ctx context.Context, query string, rows [][]interface{}) error {
	for i := 0; i < len(rows); i += insertBatchSize {
		end := i + insertBatchSize
		if end > len(rows) {
			end = len(rows)
		}

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}

		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			tx.Rollback()
			return err
		}

		for _, args := range rows[i:end] {
			if _, err := stmt.ExecContext(ctx, args...); err != nil {
				stmt.Close()
				tx.Rollback()
				return err
			}
		}

		stmt.Close()
		if err := tx.Commit(); err != nil {
			return err
		}
	}
	return nil
}

// Counts returns the row count of each table
func (s *SQLStore) Counts(ctx context.Context) (map[string]int, error) {
	out := make(map[string]int, 3)
	for _, table := range []string{"matches", "participants", "timeline_features"} {
		var n int
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
			return nil, fmt.Errorf("count %s: %w", table, err)
		}
		out[table] = n
	}
	return out, nil
}
