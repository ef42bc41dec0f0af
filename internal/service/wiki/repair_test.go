package wiki

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"arbor/internal/domain"
	models "arbor/internal/domain/models/wiki"
	wikiSvc "arbor/internal/domain/services/wiki"
)

type repairFixture struct {
	*detectorFixture
	repair wikiSvc.RepairService
}

func newRepairFixture() *repairFixture {
	f := newDetectorFixture()
	f.logRepo.dismissed = newFakeDismissalRepo()
	tx := &fakeTxManager{nodeRepo: f.repo, logRepo: f.logRepo}
	return &repairFixture{
		detectorFixture: f,
		repair:          NewRepairService(f.repo, f.logRepo, tx, f.clock, testLogger()),
	}
}

func TestReplacePermissions(t *testing.T) {
	ctx := context.Background()

	t.Run("remaps identifiers and resolves the open entry", func(t *testing.T) {
		f := newRepairFixture()
		node := f.restrictedFolder(t, "Legacy", []string{"D-OLD", "D-HR"})
		if _, err := f.detector.Sweep(ctx); err != nil {
			t.Fatalf("Sweep: %v", err)
		}

		result, err := f.repair.ReplacePermissions(ctx, node.ID, &wikiSvc.RepairRequest{
			Departments: []wikiSvc.Remap{{OldID: "D-OLD", NewID: "D-NEW"}},
			Note:        "org restructure",
			OperatorID:  f.operator,
		})
		if err != nil {
			t.Fatalf("ReplacePermissions: %v", err)
		}
		if !result.Success || result.ReplacedDepartments != 1 {
			t.Errorf("result = %+v, want success with 1 department replaced", result)
		}

		updated, err := f.svc.GetByID(ctx, node.ID)
		if err != nil {
			t.Fatalf("GetByID: %v", err)
		}
		if want := []string{"D-NEW", "D-HR"}; !reflect.DeepEqual(updated.Folder.DepartmentIDs, want) {
			t.Errorf("departments = %v, want %v", updated.Folder.DepartmentIDs, want)
		}

		open, _ := f.logRepo.GetOpenByNode(ctx, node.ID)
		if open != nil {
			t.Errorf("open entry remains after repair: %+v", open)
		}
		entries, _ := f.logRepo.List(ctx, nil, 10)
		if len(entries) != 1 || !entries[0].IsResolved() {
			t.Fatalf("entries = %+v, want one RESOLVED row", entries)
		}
		if entries[0].ResolvedBy == nil || *entries[0].ResolvedBy != f.operator {
			t.Errorf("resolvedBy = %v, want the operator", entries[0].ResolvedBy)
		}
	})

	t.Run("without a prior detection writes a standalone RESOLVED entry", func(t *testing.T) {
		f := newRepairFixture()
		node := f.restrictedFolder(t, "Quiet", []string{"D-OLD"})

		if _, err := f.repair.ReplacePermissions(ctx, node.ID, &wikiSvc.RepairRequest{
			Departments: []wikiSvc.Remap{{OldID: "D-OLD", NewID: "D-NEW"}},
			OperatorID:  f.operator,
		}); err != nil {
			t.Fatalf("ReplacePermissions: %v", err)
		}

		entries, _ := f.logRepo.List(ctx, nil, 10)
		if len(entries) != 1 || entries[0].Action != models.LogActionResolved {
			t.Fatalf("entries = %+v, want a single RESOLVED row", entries)
		}
	})

	t.Run("log write failure rolls back the node update", func(t *testing.T) {
		f := newRepairFixture()
		node := f.restrictedFolder(t, "Atomic", []string{"D-OLD"})
		f.logRepo.createErr = errors.New("log storage down")

		_, err := f.repair.ReplacePermissions(ctx, node.ID, &wikiSvc.RepairRequest{
			Departments: []wikiSvc.Remap{{OldID: "D-OLD", NewID: "D-NEW"}},
			OperatorID:  f.operator,
		})
		if err == nil {
			t.Fatal("expected the repair to fail")
		}

		unchanged, getErr := f.svc.GetByID(ctx, node.ID)
		if getErr != nil {
			t.Fatalf("GetByID: %v", getErr)
		}
		if want := []string{"D-OLD"}; !reflect.DeepEqual(unchanged.Folder.DepartmentIDs, want) {
			t.Errorf("departments = %v after failed repair, want %v untouched", unchanged.Folder.DepartmentIDs, want)
		}
	})

	t.Run("deduplicates when the target id already exists", func(t *testing.T) {
		f := newRepairFixture()
		node := f.restrictedFolder(t, "Dup", []string{"D-OLD", "D-NEW"})

		result, err := f.repair.ReplacePermissions(ctx, node.ID, &wikiSvc.RepairRequest{
			Departments: []wikiSvc.Remap{{OldID: "D-OLD", NewID: "D-NEW"}},
			OperatorID:  f.operator,
		})
		if err != nil {
			t.Fatalf("ReplacePermissions: %v", err)
		}
		if result.ReplacedDepartments != 1 {
			t.Errorf("replaced = %d, want 1", result.ReplacedDepartments)
		}

		updated, _ := f.svc.GetByID(ctx, node.ID)
		if want := []string{"D-NEW"}; !reflect.DeepEqual(updated.Folder.DepartmentIDs, want) {
			t.Errorf("departments = %v, want %v", updated.Folder.DepartmentIDs, want)
		}
	})

	t.Run("rejects an empty request", func(t *testing.T) {
		f := newRepairFixture()
		node := f.restrictedFolder(t, "Empty", []string{"D-OLD"})

		_, err := f.repair.ReplacePermissions(ctx, node.ID, &wikiSvc.RepairRequest{OperatorID: f.operator})
		if !errors.Is(err, domain.ErrValidation) {
			t.Errorf("err = %v, want validation failure", err)
		}
	})

	t.Run("rejects public nodes", func(t *testing.T) {
		f := newRepairFixture()
		open := f.mustFolder(t, "Open", nil)

		_, err := f.repair.ReplacePermissions(ctx, open.ID, &wikiSvc.RepairRequest{
			Departments: []wikiSvc.Remap{{OldID: "D-OLD", NewID: "D-NEW"}},
			OperatorID:  f.operator,
		})
		if !errors.Is(err, domain.ErrValidation) {
			t.Errorf("err = %v, want validation failure", err)
		}
	})

	t.Run("note lands on the resolved entry", func(t *testing.T) {
		f := newRepairFixture()
		node := f.restrictedFolder(t, "Noted", []string{"D-OLD"})
		if _, err := f.detector.Sweep(ctx); err != nil {
			t.Fatalf("Sweep: %v", err)
		}
		f.clock.advance(30 * time.Minute)

		if _, err := f.repair.ReplacePermissions(ctx, node.ID, &wikiSvc.RepairRequest{
			Departments: []wikiSvc.Remap{{OldID: "D-OLD", NewID: "D-NEW"}},
			Note:        "quarterly cleanup",
			OperatorID:  f.operator,
		}); err != nil {
			t.Fatalf("ReplacePermissions: %v", err)
		}

		entries, _ := f.logRepo.List(ctx, nil, 10)
		if len(entries) != 1 {
			t.Fatalf("entries = %d, want 1", len(entries))
		}
		if got := entries[0].Note; !strings.Contains(got, "quarterly cleanup") {
			t.Errorf("note = %q, want it to include the operator note", got)
		}
	})
}
