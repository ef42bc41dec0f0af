package wiki

import (
	"context"
	"testing"

	models "arbor/internal/domain/models/wiki"
	wikiSvc "arbor/internal/domain/services/wiki"
)

type accessFixture struct {
	*nodeFixture
	access wikiSvc.AccessService
}

func newAccessFixture() *accessFixture {
	f := newNodeFixture()
	return &accessFixture{
		nodeFixture: f,
		access:      NewAccessService(f.repo, testLogger()),
	}
}

func (f *accessFixture) mustRestrictedFolder(t *testing.T, name string, parentID *string, departments []string) *models.Node {
	t.Helper()
	isPublic := false
	node, err := f.svc.CreateFolder(context.Background(), &wikiSvc.CreateFolderRequest{
		Name:          name,
		ParentID:      parentID,
		IsPublic:      &isPublic,
		DepartmentIDs: departments,
		OperatorID:    f.operator,
	})
	if err != nil {
		t.Fatalf("CreateFolder(%s): %v", name, err)
	}
	return node
}

func TestResolveCascade(t *testing.T) {
	f := newAccessFixture()
	ctx := context.Background()

	// Docs (public) / HR (restricted to D-HR) / policy.doc (public file)
	docs := f.mustFolder(t, "Docs", nil)
	hr := f.mustRestrictedFolder(t, "HR", &docs.ID, []string{"D-HR"})
	policy := f.mustFile(t, "policy.doc", &hr.ID)

	t.Run("public file inherits nearest ancestor folder", func(t *testing.T) {
		effective, err := f.access.Resolve(ctx, policy.ID)
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if !effective.IsInherited || effective.InheritedFrom != "HR" {
			t.Errorf("inheritance = %v from %q, want inherited from HR", effective.IsInherited, effective.InheritedFrom)
		}
		if len(effective.DepartmentIDs) != 1 || effective.DepartmentIDs[0] != "D-HR" {
			t.Errorf("departments = %v, want [D-HR]", effective.DepartmentIDs)
		}
	})

	t.Run("hr member allowed, others denied", func(t *testing.T) {
		decision, err := f.access.Check(ctx, policy.ID, &models.Principal{DepartmentIDs: []string{"D-HR"}})
		if err != nil {
			t.Fatalf("Check: %v", err)
		}
		if !decision.Allowed {
			t.Error("HR member should see the file")
		}

		decision, err = f.access.Check(ctx, policy.ID, &models.Principal{DepartmentIDs: []string{"D-ENG"}})
		if err != nil {
			t.Fatalf("Check: %v", err)
		}
		if decision.Allowed {
			t.Error("non-HR member should not see the file")
		}
	})

	t.Run("folders never defer upward", func(t *testing.T) {
		// HR sits under the public Docs folder, but its own restriction wins.
		effective, err := f.access.Resolve(ctx, hr.ID)
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if effective.AllowAll || effective.IsInherited {
			t.Errorf("effective = %+v, want HR's own restriction", effective)
		}
	})

	t.Run("private file denies everyone", func(t *testing.T) {
		isPublic := false
		private, err := f.svc.CreateFile(ctx, &wikiSvc.CreateFileRequest{
			Name:       "secret",
			ParentID:   &docs.ID,
			IsPublic:   &isPublic,
			Title:      "secret",
			OperatorID: f.operator,
		})
		if err != nil {
			t.Fatalf("CreateFile: %v", err)
		}

		decision, err := f.access.Check(ctx, private.ID, &models.Principal{DepartmentIDs: []string{"D-HR"}})
		if err != nil {
			t.Fatalf("Check: %v", err)
		}
		if decision.Allowed || !decision.Policy.DenyAll {
			t.Errorf("decision = %+v, want deny-all", decision)
		}
	})

	t.Run("root level public file allows everyone", func(t *testing.T) {
		loose := f.mustFile(t, "readme", nil)
		effective, err := f.access.Resolve(ctx, loose.ID)
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if !effective.AllowAll {
			t.Errorf("effective = %+v, want allow-all", effective)
		}
	})

	t.Run("deep descendant picks the nearest restricted ancestor", func(t *testing.T) {
		sub := f.mustRestrictedFolder(t, "Payroll", &hr.ID, []string{"D-PAYROLL"})
		nested := f.mustFile(t, "salaries.doc", &sub.ID)

		effective, err := f.access.Resolve(ctx, nested.ID)
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if effective.InheritedFrom != "Payroll" {
			t.Errorf("inherited from %q, want Payroll", effective.InheritedFrom)
		}
	})
}
