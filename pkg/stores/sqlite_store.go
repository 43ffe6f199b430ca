package stores

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements the Store interface using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	config *Config
	logger zerolog.Logger
}

// Config holds the SQLite store configuration.
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DefaultConfig returns a default SQLite configuration.
func DefaultConfig(path string) *Config {
	return &Config{
		Path:            path,
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
	}
}

// NewSQLiteStore creates a new SQLite store instance.
func NewSQLiteStore(config *Config, logger zerolog.Logger) *SQLiteStore {
	return &SQLiteStore{
		config: config,
		logger: logger.With().Str("component", "sqlite-store").Logger(),
	}
}

// Init initializes the database connection and applies settings.
func (s *SQLiteStore) Init(ctx context.Context) error {
	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_txlock=immediate",
		s.config.Path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(s.config.MaxOpenConns)
	db.SetMaxIdleConns(s.config.MaxIdleConns)
	db.SetConnMaxLifetime(s.config.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s.db = db
	s.logger.Info().Str("path", s.config.Path).Msg("SQLite store initialized")

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate runs the embedded database migrations.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	dbDriver, err := sqlite3.WithInstance(s.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", dbDriver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	s.logger.Info().Msg("Database migrations applied")

	return nil
}

// BeginTx starts a new serializable transaction.
func (s *SQLiteStore) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
}

// CommitTx commits a transaction.
func (s *SQLiteStore) CommitTx(tx *sql.Tx) error {
	return tx.Commit()
}

// RollbackTx rolls back a transaction.
func (s *SQLiteStore) RollbackTx(tx *sql.Tx) error {
	return tx.Rollback()
}

// CreateResolution inserts a new resolution record.
func (s *SQLiteStore) CreateResolution(ctx context.Context, res *Resolution) error {
	query := `
		INSERT INTO resolutions (id, project_path, catalog_version, status, selections, error, created_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		res.ID, res.ProjectPath, res.CatalogVersion, res.Status,
		res.Selections, res.Error, res.CreatedAt, res.CompletedAt)
	if err != nil {
		return fmt.Errorf("failed to create resolution: %w", err)
	}

	s.logger.Debug().Str("resolution_id", res.ID).Msg("Resolution created")

	return nil
}

// GetResolution retrieves a resolution by ID.
func (s *SQLiteStore) GetResolution(ctx context.Context, id string) (*Resolution, error) {
	query := `
		SELECT id, project_path, catalog_version, status, selections, error, created_at, completed_at
		FROM resolutions WHERE id = ?
	`
	res := &Resolution{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&res.ID, &res.ProjectPath, &res.CatalogVersion, &res.Status,
		&res.Selections, &res.Error, &res.CreatedAt, &res.CompletedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("resolution not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get resolution: %w", err)
	}

	return res, nil
}

// UpdateResolutionStatus updates the status of a resolution. Terminal
// statuses also stamp the completion time.
func (s *SQLiteStore) UpdateResolutionStatus(ctx context.Context, id string, status ResolutionStatus, errMsg *string) error {
	var completedAt *time.Time
	if status == ResolutionStatusPersisted || status == ResolutionStatusFailed {
		now := time.Now()
		completedAt = &now
	}

	query := `
		UPDATE resolutions
		SET status = ?, error = ?, completed_at = COALESCE(?, completed_at)
		WHERE id = ?
	`
	result, err := s.db.ExecContext(ctx, query, status, errMsg, completedAt, id)
	if err != nil {
		return fmt.Errorf("failed to update resolution status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("resolution not found: %s", id)
	}

	s.logger.Debug().
		Str("resolution_id", id).
		Str("status", string(status)).
		Msg("Resolution status updated")

	return nil
}

// ListResolutions lists resolutions, optionally filtered by project path,
// newest first.
func (s *SQLiteStore) ListResolutions(ctx context.Context, projectPath *string, limit, offset int) ([]*Resolution, error) {
	query := `
		SELECT id, project_path, catalog_version, status, selections, error, created_at, completed_at
		FROM resolutions
		WHERE (? IS NULL OR project_path = ?)
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`
	rows, err := s.db.QueryContext(ctx, query, projectPath, projectPath, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list resolutions: %w", err)
	}
	defer rows.Close()

	var resolutions []*Resolution
	for rows.Next() {
		res := &Resolution{}
		if err := rows.Scan(
			&res.ID, &res.ProjectPath, &res.CatalogVersion, &res.Status,
			&res.Selections, &res.Error, &res.CreatedAt, &res.CompletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan resolution: %w", err)
		}
		resolutions = append(resolutions, res)
	}

	return resolutions, rows.Err()
}

// DeleteResolution deletes a resolution and its plan operations.
func (s *SQLiteStore) DeleteResolution(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM resolutions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete resolution: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("resolution not found: %s", id)
	}

	return nil
}

// RecordPlanOperations inserts plan operation records in a single
// transaction so a plan is recorded in full or not at all.
func (s *SQLiteStore) RecordPlanOperations(ctx context.Context, ops []*PlanOperation) error {
	if len(ops) == 0 {
		return nil
	}

	tx, err := s.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `
		INSERT INTO plan_operations (resolution_id, plan_id, seq, kind, name, path, command, origin, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	for _, op := range ops {
		result, err := tx.ExecContext(ctx, query,
			op.ResolutionID, op.PlanID, op.Seq, op.Kind,
			op.Name, op.Path, op.Command, op.Origin, op.Status, op.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to record plan operation: %w", err)
		}

		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get operation ID: %w", err)
		}
		op.ID = id
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.Debug().
		Str("resolution_id", ops[0].ResolutionID).
		Int("operations", len(ops)).
		Msg("Plan operations recorded")

	return nil
}

// ListPlanOperations lists the operations recorded for a resolution in
// plan order.
func (s *SQLiteStore) ListPlanOperations(ctx context.Context, resolutionID string) ([]*PlanOperation, error) {
	query := `
		SELECT id, resolution_id, plan_id, seq, kind, name, path, command, origin, status, created_at
		FROM plan_operations
		WHERE resolution_id = ?
		ORDER BY seq ASC
	`
	rows, err := s.db.QueryContext(ctx, query, resolutionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list plan operations: %w", err)
	}
	defer rows.Close()

	var ops []*PlanOperation
	for rows.Next() {
		op := &PlanOperation{}
		if err := rows.Scan(
			&op.ID, &op.ResolutionID, &op.PlanID, &op.Seq, &op.Kind,
			&op.Name, &op.Path, &op.Command, &op.Origin, &op.Status, &op.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan plan operation: %w", err)
		}
		ops = append(ops, op)
	}

	return ops, rows.Err()
}

// UpdatePlanOperationStatus updates the status of a recorded operation.
func (s *SQLiteStore) UpdatePlanOperationStatus(ctx context.Context, id int64, status OperationStatus) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE plan_operations SET status = ? WHERE id = ?", status, id)
	if err != nil {
		return fmt.Errorf("failed to update operation status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("plan operation not found: %d", id)
	}

	return nil
}

// CreateAuditEntry inserts a new audit entry.
func (s *SQLiteStore) CreateAuditEntry(ctx context.Context, entry *AuditEntry) error {
	query := `
		INSERT INTO audit_entries (action, actor, target_id, details, timestamp)
		VALUES (?, ?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query,
		entry.Action, entry.Actor, entry.TargetID, entry.Details, entry.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to create audit entry: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get audit entry ID: %w", err)
	}
	entry.ID = id

	return nil
}

// ListAuditEntries lists audit entries with optional filters, newest first.
func (s *SQLiteStore) ListAuditEntries(ctx context.Context, action *string, actor *string, limit, offset int) ([]*AuditEntry, error) {
	query := `
		SELECT id, action, actor, target_id, details, timestamp
		FROM audit_entries
		WHERE (? IS NULL OR action = ?)
		AND (? IS NULL OR actor = ?)
		ORDER BY timestamp DESC
		LIMIT ? OFFSET ?
	`
	rows, err := s.db.QueryContext(ctx, query, action, action, actor, actor, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []*AuditEntry
	for rows.Next() {
		entry := &AuditEntry{}
		if err := rows.Scan(
			&entry.ID, &entry.Action, &entry.Actor,
			&entry.TargetID, &entry.Details, &entry.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

// HealthCheck verifies the database is reachable.
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}
	return s.db.PingContext(ctx)
}
