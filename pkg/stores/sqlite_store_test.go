package stores

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store := NewSQLiteStore(DefaultConfig(filepath.Join(t.TempDir(), "history.db")), zerolog.Nop())
	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	return store
}

func testResolution(id string) *Resolution {
	return &Resolution{
		ID:             id,
		ProjectPath:    "/work/app",
		CatalogVersion: "1.0.0",
		Status:         ResolutionStatusResolved,
		Selections:     `{"language":["typescript"]}`,
		CreatedAt:      time.Now().UTC().Truncate(time.Second),
	}
}

func TestSQLiteStore_ResolutionLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	res := testResolution("res-1")
	if err := store.CreateResolution(ctx, res); err != nil {
		t.Fatalf("CreateResolution failed: %v", err)
	}

	got, err := store.GetResolution(ctx, "res-1")
	if err != nil {
		t.Fatalf("GetResolution failed: %v", err)
	}
	if got.ProjectPath != res.ProjectPath || got.Selections != res.Selections {
		t.Errorf("Round trip mismatch: %+v", got)
	}
	if got.Status != ResolutionStatusResolved {
		t.Errorf("Expected resolved status, got %s", got.Status)
	}
	if got.CompletedAt != nil {
		t.Error("Expected no completion time before a terminal status")
	}

	if err := store.UpdateResolutionStatus(ctx, "res-1", ResolutionStatusPersisted, nil); err != nil {
		t.Fatalf("UpdateResolutionStatus failed: %v", err)
	}
	got, err = store.GetResolution(ctx, "res-1")
	if err != nil {
		t.Fatalf("GetResolution failed: %v", err)
	}
	if got.Status != ResolutionStatusPersisted {
		t.Errorf("Expected persisted status, got %s", got.Status)
	}
	if got.CompletedAt == nil {
		t.Error("Expected completion time on terminal status")
	}

	if err := store.DeleteResolution(ctx, "res-1"); err != nil {
		t.Fatalf("DeleteResolution failed: %v", err)
	}
	if _, err := store.GetResolution(ctx, "res-1"); err == nil {
		t.Error("Expected error getting deleted resolution")
	}
}

func TestSQLiteStore_ResolutionNotFound(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.GetResolution(ctx, "missing"); err == nil {
		t.Error("Expected error for missing resolution")
	}
	if err := store.UpdateResolutionStatus(ctx, "missing", ResolutionStatusFailed, nil); err == nil {
		t.Error("Expected error updating missing resolution")
	}
	if err := store.DeleteResolution(ctx, "missing"); err == nil {
		t.Error("Expected error deleting missing resolution")
	}
}

func TestSQLiteStore_ListResolutions_FilterAndOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	older := testResolution("res-old")
	older.CreatedAt = time.Now().UTC().Add(-time.Hour)
	newer := testResolution("res-new")
	other := testResolution("res-other")
	other.ProjectPath = "/work/other"

	for _, res := range []*Resolution{older, newer, other} {
		if err := store.CreateResolution(ctx, res); err != nil {
			t.Fatalf("CreateResolution failed: %v", err)
		}
	}

	all, err := store.ListResolutions(ctx, nil, 10, 0)
	if err != nil {
		t.Fatalf("ListResolutions failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("Expected 3 resolutions, got %d", len(all))
	}

	project := "/work/app"
	filtered, err := store.ListResolutions(ctx, &project, 10, 0)
	if err != nil {
		t.Fatalf("ListResolutions failed: %v", err)
	}
	if len(filtered) != 2 {
		t.Fatalf("Expected 2 resolutions for project, got %d", len(filtered))
	}
	if filtered[0].ID != "res-new" || filtered[1].ID != "res-old" {
		t.Errorf("Expected newest first, got %s then %s", filtered[0].ID, filtered[1].ID)
	}
}

func TestSQLiteStore_PlanOperations(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	res := testResolution("res-1")
	if err := store.CreateResolution(ctx, res); err != nil {
		t.Fatalf("CreateResolution failed: %v", err)
	}

	name := "eslint"
	path := ".eslintrc.json"
	command := "biome check ."
	lint := "lint"
	now := time.Now().UTC().Truncate(time.Second)
	ops := []*PlanOperation{
		{ResolutionID: "res-1", PlanID: "plan-1", Seq: 0, Kind: "remove_dependency", Name: &name, Origin: "biome", Status: OperationStatusPlanned, CreatedAt: now},
		{ResolutionID: "res-1", PlanID: "plan-1", Seq: 1, Kind: "delete_file", Path: &path, Origin: "biome", Status: OperationStatusPlanned, CreatedAt: now},
		{ResolutionID: "res-1", PlanID: "plan-1", Seq: 2, Kind: "rewrite_script", Name: &lint, Command: &command, Origin: "biome", Status: OperationStatusPlanned, CreatedAt: now},
	}
	if err := store.RecordPlanOperations(ctx, ops); err != nil {
		t.Fatalf("RecordPlanOperations failed: %v", err)
	}
	for i, op := range ops {
		if op.ID == 0 {
			t.Errorf("Operation %d did not receive an ID", i)
		}
	}

	listed, err := store.ListPlanOperations(ctx, "res-1")
	if err != nil {
		t.Fatalf("ListPlanOperations failed: %v", err)
	}
	if len(listed) != 3 {
		t.Fatalf("Expected 3 operations, got %d", len(listed))
	}
	for i, op := range listed {
		if op.Seq != i {
			t.Errorf("Expected operations in plan order, got seq %d at index %d", op.Seq, i)
		}
	}
	if listed[2].Command == nil || *listed[2].Command != command {
		t.Errorf("Expected rewrite command round trip, got %+v", listed[2])
	}

	if err := store.UpdatePlanOperationStatus(ctx, listed[0].ID, OperationStatusApplied); err != nil {
		t.Fatalf("UpdatePlanOperationStatus failed: %v", err)
	}
	listed, err = store.ListPlanOperations(ctx, "res-1")
	if err != nil {
		t.Fatalf("ListPlanOperations failed: %v", err)
	}
	if listed[0].Status != OperationStatusApplied {
		t.Errorf("Expected applied status, got %s", listed[0].Status)
	}

	// Deleting the resolution cascades to its operations.
	if err := store.DeleteResolution(ctx, "res-1"); err != nil {
		t.Fatalf("DeleteResolution failed: %v", err)
	}
	listed, err = store.ListPlanOperations(ctx, "res-1")
	if err != nil {
		t.Fatalf("ListPlanOperations failed: %v", err)
	}
	if len(listed) != 0 {
		t.Errorf("Expected cascade delete, got %d operations", len(listed))
	}
}

func TestSQLiteStore_RecordPlanOperations_EmptyIsNoop(t *testing.T) {
	store := newTestStore(t)
	if err := store.RecordPlanOperations(context.Background(), nil); err != nil {
		t.Fatalf("Expected empty record to be a no-op, got %v", err)
	}
}

func TestSQLiteStore_AuditEntries(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	target := "res-1"
	entries := []*AuditEntry{
		{Action: "resolution.created", Actor: "stackforge", TargetID: &target, Timestamp: time.Now().UTC().Add(-time.Minute)},
		{Action: "plan.recorded", Actor: "stackforge", TargetID: &target, Timestamp: time.Now().UTC()},
		{Action: "resolution.created", Actor: "ci", Timestamp: time.Now().UTC()},
	}
	for _, entry := range entries {
		if err := store.CreateAuditEntry(ctx, entry); err != nil {
			t.Fatalf("CreateAuditEntry failed: %v", err)
		}
		if entry.ID == 0 {
			t.Error("Audit entry did not receive an ID")
		}
	}

	all, err := store.ListAuditEntries(ctx, nil, nil, 10, 0)
	if err != nil {
		t.Fatalf("ListAuditEntries failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("Expected 3 entries, got %d", len(all))
	}

	action := "resolution.created"
	actor := "stackforge"
	filtered, err := store.ListAuditEntries(ctx, &action, &actor, 10, 0)
	if err != nil {
		t.Fatalf("ListAuditEntries failed: %v", err)
	}
	if len(filtered) != 1 || filtered[0].TargetID == nil || *filtered[0].TargetID != target {
		t.Errorf("Unexpected filtered entries: %+v", filtered)
	}
}

func TestSQLiteStore_HealthCheck(t *testing.T) {
	store := newTestStore(t)
	if err := store.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck failed: %v", err)
	}

	uninitialized := NewSQLiteStore(DefaultConfig("unused.db"), zerolog.Nop())
	if err := uninitialized.HealthCheck(context.Background()); err == nil {
		t.Error("Expected error before Init")
	}
}
