package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/trackvote/backend/internal/ledger"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore keeps the vote table in SQLite. Save rewrites every row in one
// transaction, so Load never sees a partially written table.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and applies migrations.
func OpenSQLite(path string) (*SQLiteStore, error) {
	dsn := "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer at a time; the ledger already serializes saves.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// RunMigrations applies the embedded schema migrations.
func RunMigrations(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}
	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Load(ctx context.Context) (ledger.Table, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM vote_meta WHERE id = 1`).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read vote metadata: %w", err)
	}

	t := ledger.Table{}
	rows, err := s.db.QueryContext(ctx, `SELECT item_id, likes, dislikes FROM vote_records`)
	if err != nil {
		return nil, fmt.Errorf("failed to query vote records: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		var rec ledger.Record
		if err := rows.Scan(&id, &rec.Likes, &rec.Dislikes); err != nil {
			return nil, fmt.Errorf("failed to scan vote record: %w", err)
		}
		rec.Voters = []string{}
		t[id] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate vote records: %w", err)
	}

	voterRows, err := s.db.QueryContext(ctx, `SELECT item_id, voter FROM vote_voters ORDER BY item_id, voter`)
	if err != nil {
		return nil, fmt.Errorf("failed to query voters: %w", err)
	}
	defer voterRows.Close()
	for voterRows.Next() {
		var id, voter string
		if err := voterRows.Scan(&id, &voter); err != nil {
			return nil, fmt.Errorf("failed to scan voter: %w", err)
		}
		rec := t[id]
		rec.Voters = append(rec.Voters, voter)
		t[id] = rec
	}
	if err := voterRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate voters: %w", err)
	}

	return t, nil
}

func (s *SQLiteStore) Save(ctx context.Context, t ledger.Table) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM vote_voters`); err != nil {
		return fmt.Errorf("failed to clear voters: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM vote_records`); err != nil {
		return fmt.Errorf("failed to clear vote records: %w", err)
	}

	recordStmt, err := tx.PrepareContext(ctx, `INSERT INTO vote_records (item_id, likes, dislikes) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare record insert: %w", err)
	}
	defer recordStmt.Close()
	voterStmt, err := tx.PrepareContext(ctx, `INSERT INTO vote_voters (item_id, voter) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare voter insert: %w", err)
	}
	defer voterStmt.Close()

	for id, rec := range t {
		if _, err := recordStmt.ExecContext(ctx, id, rec.Likes, rec.Dislikes); err != nil {
			return fmt.Errorf("failed to insert record %s: %w", id, err)
		}
		for _, v := range rec.Voters {
			if _, err := voterStmt.ExecContext(ctx, id, v); err != nil {
				return fmt.Errorf("failed to insert voter for %s: %w", id, err)
			}
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO vote_meta (id, saved_at) VALUES (1, ?) ON CONFLICT(id) DO UPDATE SET saved_at = excluded.saved_at`,
		time.Now().UTC(),
	); err != nil {
		return fmt.Errorf("failed to update vote metadata: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit vote state: %w", err)
	}
	return nil
}
