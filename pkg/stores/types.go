package stores

import (
	"context"
	"database/sql"
	"time"
)

// ResolutionStatus represents the lifecycle state of a resolution pass.
type ResolutionStatus string

const (
	ResolutionStatusResolved  ResolutionStatus = "resolved"
	ResolutionStatusPlanned   ResolutionStatus = "planned"
	ResolutionStatusPersisted ResolutionStatus = "persisted"
	ResolutionStatusFailed    ResolutionStatus = "failed"
)

// OperationStatus represents the state of a recorded plan operation.
type OperationStatus string

const (
	OperationStatusPlanned OperationStatus = "planned"
	OperationStatusApplied OperationStatus = "applied"
	OperationStatusSkipped OperationStatus = "skipped"
	OperationStatusFailed  OperationStatus = "failed"
)

// Resolution represents one completed resolve pass against a project.
type Resolution struct {
	ID             string           `json:"id"`
	ProjectPath    string           `json:"project_path"`
	CatalogVersion string           `json:"catalog_version"`
	Status         ResolutionStatus `json:"status"`
	Selections     string           `json:"selections"` // JSON blob
	Error          *string          `json:"error,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	CompletedAt    *time.Time       `json:"completed_at,omitempty"`
}

// PlanOperation represents one operation of a recorded plan.
type PlanOperation struct {
	ID           int64           `json:"id"`
	ResolutionID string          `json:"resolution_id"`
	PlanID       string          `json:"plan_id"`
	Seq          int             `json:"seq"`
	Kind         string          `json:"kind"`
	Name         *string         `json:"name,omitempty"`
	Path         *string         `json:"path,omitempty"`
	Command      *string         `json:"command,omitempty"`
	Origin       string          `json:"origin"`
	Status       OperationStatus `json:"status"`
	CreatedAt    time.Time       `json:"created_at"`
}

// AuditEntry represents an audit trail entry.
type AuditEntry struct {
	ID        int64     `json:"id"`
	Action    string    `json:"action"` // e.g. "resolution.created", "plan.recorded"
	Actor     string    `json:"actor"`
	TargetID  *string   `json:"target_id,omitempty"`
	Details   *string   `json:"details,omitempty"` // JSON blob
	Timestamp time.Time `json:"timestamp"`
}

// Store defines the interface for the history persistence layer.
type Store interface {
	// Lifecycle
	Init(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error

	// Transaction support
	BeginTx(ctx context.Context) (*sql.Tx, error)
	CommitTx(tx *sql.Tx) error
	RollbackTx(tx *sql.Tx) error

	// Resolution operations
	CreateResolution(ctx context.Context, res *Resolution) error
	GetResolution(ctx context.Context, id string) (*Resolution, error)
	UpdateResolutionStatus(ctx context.Context, id string, status ResolutionStatus, errMsg *string) error
	ListResolutions(ctx context.Context, projectPath *string, limit, offset int) ([]*Resolution, error)
	DeleteResolution(ctx context.Context, id string) error

	// Plan operation records
	RecordPlanOperations(ctx context.Context, ops []*PlanOperation) error
	ListPlanOperations(ctx context.Context, resolutionID string) ([]*PlanOperation, error)
	UpdatePlanOperationStatus(ctx context.Context, id int64, status OperationStatus) error

	// Audit operations
	CreateAuditEntry(ctx context.Context, entry *AuditEntry) error
	ListAuditEntries(ctx context.Context, action *string, actor *string, limit, offset int) ([]*AuditEntry, error)

	// Utility
	HealthCheck(ctx context.Context) error
}
