package stores

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/stackforge/stackforge/pkg/engine"
)

// Recorder writes resolution and plan history to a Store.
type Recorder struct {
	store  Store
	logger zerolog.Logger
}

// NewRecorder creates a new history recorder.
func NewRecorder(store Store, logger zerolog.Logger) *Recorder {
	return &Recorder{
		store:  store,
		logger: logger.With().Str("component", "history-recorder").Logger(),
	}
}

// RecordResolution stores a finalized snapshot as a resolution record and
// returns it.
func (r *Recorder) RecordResolution(ctx context.Context, projectPath, catalogVersion string, snapshot *engine.Snapshot) (*Resolution, error) {
	if snapshot == nil {
		return nil, fmt.Errorf("snapshot is required")
	}

	selections, err := json.Marshal(snapshot.Selections())
	if err != nil {
		return nil, fmt.Errorf("failed to encode selections: %w", err)
	}

	res := &Resolution{
		ID:             uuid.New().String(),
		ProjectPath:    projectPath,
		CatalogVersion: catalogVersion,
		Status:         ResolutionStatusResolved,
		Selections:     string(selections),
		CreatedAt:      snapshot.ResolvedAt(),
	}

	if err := r.store.CreateResolution(ctx, res); err != nil {
		return nil, err
	}

	if err := r.audit(ctx, "resolution.created", res.ID, map[string]interface{}{
		"project_path":    projectPath,
		"catalog_version": catalogVersion,
	}); err != nil {
		r.logger.Warn().Err(err).Msg("Failed to write audit entry")
	}

	return res, nil
}

// RecordPlan stores the operations of a plan against a resolution and
// advances its status to planned.
func (r *Recorder) RecordPlan(ctx context.Context, resolutionID string, plan *engine.OperationPlan) ([]*PlanOperation, error) {
	if plan == nil {
		return nil, fmt.Errorf("plan is required")
	}

	ops := make([]*PlanOperation, 0, len(plan.Operations))
	for i, op := range plan.Operations {
		record := &PlanOperation{
			ResolutionID: resolutionID,
			PlanID:       plan.ID,
			Seq:          i,
			Kind:         string(op.Kind),
			Origin:       op.Origin,
			Status:       OperationStatusPlanned,
			CreatedAt:    plan.CreatedAt,
		}
		if op.Name != "" {
			name := op.Name
			record.Name = &name
		}
		if op.Path != "" {
			path := op.Path
			record.Path = &path
		}
		if op.Command != "" {
			command := op.Command
			record.Command = &command
		}
		ops = append(ops, record)
	}

	if err := r.store.RecordPlanOperations(ctx, ops); err != nil {
		return nil, err
	}
	if err := r.store.UpdateResolutionStatus(ctx, resolutionID, ResolutionStatusPlanned, nil); err != nil {
		return nil, err
	}

	if err := r.audit(ctx, "plan.recorded", resolutionID, map[string]interface{}{
		"plan_id":    plan.ID,
		"operations": len(ops),
	}); err != nil {
		r.logger.Warn().Err(err).Msg("Failed to write audit entry")
	}

	return ops, nil
}

// MarkPersisted marks a resolution as persisted to the canonical config.
func (r *Recorder) MarkPersisted(ctx context.Context, resolutionID string) error {
	if err := r.store.UpdateResolutionStatus(ctx, resolutionID, ResolutionStatusPersisted, nil); err != nil {
		return err
	}
	return r.audit(ctx, "resolution.persisted", resolutionID, nil)
}

// MarkFailed marks a resolution as failed with the given cause.
func (r *Recorder) MarkFailed(ctx context.Context, resolutionID string, cause error) error {
	var errMsg *string
	if cause != nil {
		msg := cause.Error()
		errMsg = &msg
	}
	if err := r.store.UpdateResolutionStatus(ctx, resolutionID, ResolutionStatusFailed, errMsg); err != nil {
		return err
	}
	return r.audit(ctx, "resolution.failed", resolutionID, nil)
}

// DecodeSelections decodes the selections blob of a resolution record.
func DecodeSelections(res *Resolution) (engine.Selections, error) {
	var selections engine.Selections
	if err := json.Unmarshal([]byte(res.Selections), &selections); err != nil {
		return nil, fmt.Errorf("failed to decode selections: %w", err)
	}
	return selections, nil
}

func (r *Recorder) audit(ctx context.Context, action, targetID string, details map[string]interface{}) error {
	entry := &AuditEntry{
		Action:    action,
		Actor:     "stackforge",
		TargetID:  &targetID,
		Timestamp: time.Now(),
	}
	if details != nil {
		data, err := json.Marshal(details)
		if err != nil {
			return fmt.Errorf("failed to encode audit details: %w", err)
		}
		blob := string(data)
		entry.Details = &blob
	}
	return r.store.CreateAuditEntry(ctx, entry)
}
