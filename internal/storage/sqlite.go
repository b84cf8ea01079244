package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dshills/curriculum-search/pkg/types"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = fmt.Errorf("storage: %w", types.ErrEntityNotFound)
)

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(1) // SQLite benefits from single writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// BeginTx starts a new transaction
func (s *SQLiteStorage) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqliteTx{tx: tx, storage: s}, nil
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// sqliteTx wraps a SQL transaction
type sqliteTx struct {
	tx      *sql.Tx
	storage *SQLiteStorage
}

func (t *sqliteTx) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTx) Rollback() error {
	return t.tx.Rollback()
}

func (t *sqliteTx) querier() querier {
	return t.tx
}

func (s *SQLiteStorage) querier() querier {
	return s.db
}

// withTx runs fn inside a transaction on the main handle
func (s *SQLiteStorage) withTx(ctx context.Context, fn func(q querier) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Goal operations

const goalColumns = `id, external_id, title, description, prefix, kind, ce, se, status`

// scanner is satisfied by *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanGoal(row scanner) (*types.Goal, error) {
	var goal types.Goal
	var prefix, kind, status sql.NullString
	var ce, se sql.NullInt64
	if err := row.Scan(&goal.ID, &goal.ExternalID, &goal.Title, &goal.Description,
		&prefix, &kind, &ce, &se, &status); err != nil {
		return nil, err
	}
	goal.Prefix = prefix.String
	goal.Kind = kind.String
	goal.Status = status.String
	if ce.Valid {
		v := int(ce.Int64)
		goal.CE = &v
	}
	if se.Valid {
		v := int(se.Int64)
		goal.SE = &v
	}
	return &goal, nil
}

func nullableInt(v *int) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

// upsertGoalWithQuerier inserts or updates a goal by external id and replaces its links
func (s *SQLiteStorage) upsertGoalWithQuerier(ctx context.Context, q querier, goal *types.Goal) error {
	query := `
		INSERT INTO goals (external_id, title, description, prefix, kind, ce, se, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(external_id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			prefix = excluded.prefix,
			kind = excluded.kind,
			ce = excluded.ce,
			se = excluded.se,
			status = excluded.status,
			updated_at = excluded.updated_at
		RETURNING id
	`
	now := time.Now()
	err := q.QueryRowContext(ctx, query,
		goal.ExternalID, goal.Title, goal.Description, goal.Prefix, goal.Kind,
		nullableInt(goal.CE), nullableInt(goal.SE), goal.Status, now, now).Scan(&goal.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert goal %s: %w", goal.ExternalID, err)
	}

	if _, err := q.ExecContext(ctx, `DELETE FROM goal_elaborations WHERE goal_id = ?`, goal.ID); err != nil {
		return fmt.Errorf("failed to clear links for goal %s: %w", goal.ExternalID, err)
	}

	for pos, extID := range goal.ElaborationIDs {
		_, err := q.ExecContext(ctx,
			`INSERT INTO goal_elaborations (goal_id, position, elaboration_external_id) VALUES (?, ?, ?)`,
			goal.ID, pos, extID)
		if err != nil {
			return fmt.Errorf("failed to link goal %s to %s: %w", goal.ExternalID, extID, err)
		}
	}

	return nil
}

func (s *SQLiteStorage) UpsertGoal(ctx context.Context, goal *types.Goal) error {
	return s.withTx(ctx, func(q querier) error {
		return s.upsertGoalWithQuerier(ctx, q, goal)
	})
}

// loadLinksWithQuerier fills ElaborationIDs for the given goals, in link order
func (s *SQLiteStorage) loadLinksWithQuerier(ctx context.Context, q querier, goals []*types.Goal) error {
	if len(goals) == 0 {
		return nil
	}

	byID := make(map[int64]*types.Goal, len(goals))
	for _, g := range goals {
		g.ElaborationIDs = []string{}
		byID[g.ID] = g
	}

	query := `SELECT goal_id, elaboration_external_id FROM goal_elaborations ORDER BY goal_id, position`
	var args []interface{}
	if len(goals) == 1 {
		query = `SELECT goal_id, elaboration_external_id FROM goal_elaborations WHERE goal_id = ? ORDER BY position`
		args = append(args, goals[0].ID)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var goalID int64
		var extID string
		if err := rows.Scan(&goalID, &extID); err != nil {
			return err
		}
		if g, ok := byID[goalID]; ok {
			g.ElaborationIDs = append(g.ElaborationIDs, extID)
		}
	}
	return rows.Err()
}

func (s *SQLiteStorage) getGoalWithQuerier(ctx context.Context, q querier, where string, arg interface{}) (*types.Goal, error) {
	goal, err := scanGoal(q.QueryRowContext(ctx, `SELECT `+goalColumns+` FROM goals WHERE `+where, arg))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := s.loadLinksWithQuerier(ctx, q, []*types.Goal{goal}); err != nil {
		return nil, err
	}
	return goal, nil
}

func (s *SQLiteStorage) GetGoal(ctx context.Context, id int64) (*types.Goal, error) {
	return s.getGoalWithQuerier(ctx, s.querier(), "id = ?", id)
}

func (s *SQLiteStorage) GetGoalByExternalID(ctx context.Context, externalID string) (*types.Goal, error) {
	return s.getGoalWithQuerier(ctx, s.querier(), "external_id = ?", externalID)
}

func (s *SQLiteStorage) listGoalsWithQuerier(ctx context.Context, q querier) ([]*types.Goal, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+goalColumns+` FROM goals ORDER BY id`)
	if err != nil {
		return nil, err
	}

	goals := make([]*types.Goal, 0)
	for rows.Next() {
		goal, err := scanGoal(rows)
		if err != nil {
			_ = rows.Close()
			return nil, err
		}
		goals = append(goals, goal)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	// Release the connection before the link query
	_ = rows.Close()

	if err := s.loadLinksWithQuerier(ctx, q, goals); err != nil {
		return nil, err
	}
	return goals, nil
}

func (s *SQLiteStorage) ListGoals(ctx context.Context) ([]*types.Goal, error) {
	return s.listGoalsWithQuerier(ctx, s.querier())
}

// Elaboration operations

const elaborationColumns = `id, external_id, title, description, prefix, level_ids, status`

func scanElaboration(row scanner) (*types.Elaboration, error) {
	var e types.Elaboration
	var title, prefix, levels, status sql.NullString
	if err := row.Scan(&e.ID, &e.ExternalID, &title, &e.Description, &prefix, &levels, &status); err != nil {
		return nil, err
	}
	e.Title = title.String
	e.Prefix = prefix.String
	e.Status = status.String
	e.LevelIDs = []string{}
	if levels.Valid && levels.String != "" {
		if err := json.Unmarshal([]byte(levels.String), &e.LevelIDs); err != nil {
			return nil, fmt.Errorf("decode level ids of %s: %w", e.ExternalID, err)
		}
	}
	return &e, nil
}

func (s *SQLiteStorage) upsertElaborationWithQuerier(ctx context.Context, q querier, e *types.Elaboration) error {
	levels := e.LevelIDs
	if levels == nil {
		levels = []string{}
	}
	levelJSON, err := json.Marshal(levels)
	if err != nil {
		return fmt.Errorf("encode level ids of %s: %w", e.ExternalID, err)
	}

	query := `
		INSERT INTO elaborations (external_id, title, description, prefix, level_ids, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(external_id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			prefix = excluded.prefix,
			level_ids = excluded.level_ids,
			status = excluded.status,
			updated_at = excluded.updated_at
		RETURNING id
	`
	now := time.Now()
	err = q.QueryRowContext(ctx, query,
		e.ExternalID, e.Title, e.Description, e.Prefix, string(levelJSON), e.Status, now, now).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert elaboration %s: %w", e.ExternalID, err)
	}
	return nil
}

func (s *SQLiteStorage) UpsertElaboration(ctx context.Context, e *types.Elaboration) error {
	return s.upsertElaborationWithQuerier(ctx, s.querier(), e)
}

func (s *SQLiteStorage) listElaborationsWithQuerier(ctx context.Context, q querier) ([]*types.Elaboration, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+elaborationColumns+` FROM elaborations ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := make([]*types.Elaboration, 0)
	for rows.Next() {
		e, err := scanElaboration(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLiteStorage) ListElaborations(ctx context.Context) ([]*types.Elaboration, error) {
	return s.listElaborationsWithQuerier(ctx, s.querier())
}

// getElaborationsByExternalIDsWithQuerier returns the elaborations that exist,
// in the order of externalIDs. Unknown ids are skipped.
func (s *SQLiteStorage) getElaborationsByExternalIDsWithQuerier(ctx context.Context, q querier, externalIDs []string) ([]*types.Elaboration, error) {
	if len(externalIDs) == 0 {
		return []*types.Elaboration{}, nil
	}

	placeholders := make([]string, len(externalIDs))
	args := make([]interface{}, len(externalIDs))
	for i, id := range externalIDs {
		placeholders[i] = "?"
		args[i] = id
	}

	query := `SELECT ` + elaborationColumns + ` FROM elaborations WHERE external_id IN (` +
		strings.Join(placeholders, ",") + `)`
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	byExt := make(map[string]*types.Elaboration, len(externalIDs))
	for rows.Next() {
		e, err := scanElaboration(rows)
		if err != nil {
			return nil, err
		}
		byExt[e.ExternalID] = e
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]*types.Elaboration, 0, len(byExt))
	for _, id := range externalIDs {
		if e, ok := byExt[id]; ok {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *SQLiteStorage) GetElaborationsByExternalIDs(ctx context.Context, externalIDs []string) ([]*types.Elaboration, error) {
	return s.getElaborationsByExternalIDsWithQuerier(ctx, s.querier(), externalIDs)
}

// Embedding operations

// upsertEmbeddingWithQuerier stores a vector. Re-embedding the same entity
// with the same model updates the row in place, keeping its load order.
func (s *SQLiteStorage) upsertEmbeddingWithQuerier(ctx context.Context, q querier, record *EmbeddingRecord) error {
	if !record.EntityKind.Valid() {
		return fmt.Errorf("%w: %q", types.ErrInvalidEntityKind, record.EntityKind)
	}
	if len(record.Vector) == 0 {
		return fmt.Errorf("empty vector for %s %d", record.EntityKind, record.EntityID)
	}
	record.Dimension = len(record.Vector)

	query := `
		INSERT INTO embeddings (entity_kind, entity_id, model, dimension, vector, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(entity_kind, entity_id, model) DO UPDATE SET
			dimension = excluded.dimension,
			vector = excluded.vector
		RETURNING id
	`
	err := q.QueryRowContext(ctx, query,
		string(record.EntityKind), record.EntityID, record.Model, record.Dimension,
		serializeVector(record.Vector), time.Now()).Scan(&record.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert embedding: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) UpsertEmbedding(ctx context.Context, record *EmbeddingRecord) error {
	return s.upsertEmbeddingWithQuerier(ctx, s.querier(), record)
}

// loadEmbeddingsWithQuerier returns vectors of one kind in insertion order.
// An empty model loads every model.
func (s *SQLiteStorage) loadEmbeddingsWithQuerier(ctx context.Context, q querier, kind types.EntityKind, model string) ([]*EmbeddingRecord, error) {
	query := `SELECT id, entity_kind, entity_id, model, dimension, vector FROM embeddings WHERE entity_kind = ?`
	args := []interface{}{string(kind)}
	if model != "" {
		query += ` AND model = ?`
		args = append(args, model)
	}
	query += ` ORDER BY id`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query embeddings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]*EmbeddingRecord, 0)
	for rows.Next() {
		var rec EmbeddingRecord
		var k string
		var blob []byte
		if err := rows.Scan(&rec.ID, &k, &rec.EntityID, &rec.Model, &rec.Dimension, &blob); err != nil {
			return nil, err
		}
		rec.EntityKind = types.EntityKind(k)
		rec.Vector, err = deserializeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("embedding %d: %w", rec.ID, err)
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}

func (s *SQLiteStorage) LoadEmbeddings(ctx context.Context, kind types.EntityKind, model string) ([]*EmbeddingRecord, error) {
	return s.loadEmbeddingsWithQuerier(ctx, s.querier(), kind, model)
}

// Status operations

func (s *SQLiteStorage) getStatsWithQuerier(ctx context.Context, q querier) (*Stats, error) {
	stats := &Stats{BuildMode: BuildMode, Models: []string{}}

	counts := []struct {
		dest  *int
		query string
	}{
		{&stats.Goals, `SELECT COUNT(*) FROM goals`},
		{&stats.Elaborations, `SELECT COUNT(*) FROM elaborations`},
		{&stats.Links, `SELECT COUNT(*) FROM goal_elaborations`},
		{&stats.GoalEmbeddings, `SELECT COUNT(DISTINCT entity_id) FROM embeddings WHERE entity_kind = 'goal'`},
		{&stats.ElaborationEmbeddings, `SELECT COUNT(DISTINCT entity_id) FROM embeddings WHERE entity_kind = 'elaboration'`},
	}
	for _, c := range counts {
		if err := q.QueryRowContext(ctx, c.query).Scan(c.dest); err != nil {
			return nil, err
		}
	}

	rows, err := q.QueryContext(ctx, `SELECT DISTINCT model FROM embeddings ORDER BY model`)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			_ = rows.Close()
			return nil, err
		}
		stats.Models = append(stats.Models, m)
	}
	_ = rows.Close()

	var version string
	if err := q.QueryRowContext(ctx, `SELECT version FROM schema_version ORDER BY applied_at DESC, version DESC LIMIT 1`).Scan(&version); err == nil {
		stats.SchemaVersion = version
	}

	var pageCount, pageSize int
	if err := q.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err == nil {
		_ = q.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize)
		stats.SizeMB = float64(pageCount*pageSize) / (1024 * 1024)
	}

	return stats, nil
}

func (s *SQLiteStorage) GetStats(ctx context.Context) (*Stats, error) {
	stats, err := s.getStatsWithQuerier(ctx, s.querier())
	if err != nil {
		return nil, err
	}
	if v, err := SchemaVersion(ctx, s.db); err == nil {
		stats.SchemaVersion = v
	}
	return stats, nil
}

// Transaction implementations

func (t *sqliteTx) UpsertGoal(ctx context.Context, goal *types.Goal) error {
	return t.storage.upsertGoalWithQuerier(ctx, t.querier(), goal)
}

func (t *sqliteTx) GetGoal(ctx context.Context, id int64) (*types.Goal, error) {
	return t.storage.getGoalWithQuerier(ctx, t.querier(), "id = ?", id)
}

func (t *sqliteTx) GetGoalByExternalID(ctx context.Context, externalID string) (*types.Goal, error) {
	return t.storage.getGoalWithQuerier(ctx, t.querier(), "external_id = ?", externalID)
}

func (t *sqliteTx) ListGoals(ctx context.Context) ([]*types.Goal, error) {
	return t.storage.listGoalsWithQuerier(ctx, t.querier())
}

func (t *sqliteTx) UpsertElaboration(ctx context.Context, e *types.Elaboration) error {
	return t.storage.upsertElaborationWithQuerier(ctx, t.querier(), e)
}

func (t *sqliteTx) ListElaborations(ctx context.Context) ([]*types.Elaboration, error) {
	return t.storage.listElaborationsWithQuerier(ctx, t.querier())
}

func (t *sqliteTx) GetElaborationsByExternalIDs(ctx context.Context, externalIDs []string) ([]*types.Elaboration, error) {
	return t.storage.getElaborationsByExternalIDsWithQuerier(ctx, t.querier(), externalIDs)
}

func (t *sqliteTx) UpsertEmbedding(ctx context.Context, record *EmbeddingRecord) error {
	return t.storage.upsertEmbeddingWithQuerier(ctx, t.querier(), record)
}

func (t *sqliteTx) LoadEmbeddings(ctx context.Context, kind types.EntityKind, model string) ([]*EmbeddingRecord, error) {
	return t.storage.loadEmbeddingsWithQuerier(ctx, t.querier(), kind, model)
}

func (t *sqliteTx) GetStats(ctx context.Context) (*Stats, error) {
	return t.storage.getStatsWithQuerier(ctx, t.querier())
}

func (t *sqliteTx) Close() error {
	// Transactions don't close the underlying connection
	return nil
}

func (t *sqliteTx) BeginTx(ctx context.Context) (Tx, error) {
	// SQLite does not support true nested transactions
	return nil, errors.New("nested transactions not supported")
}
