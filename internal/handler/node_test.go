package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"arbor/internal/domain/models/wiki"
	wikiSvc "arbor/internal/domain/services/wiki"
	"arbor/internal/httputil"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stubNodeService embeds the interface so each test overrides only the
// methods it exercises; calling anything else panics, which is the point.
type stubNodeService struct {
	wikiSvc.NodeService
	node    *wiki.Node
	moves   []*wikiSvc.MoveRequest
	renames []*wikiSvc.RenameRequest
}

func (s *stubNodeService) GetByID(_ context.Context, _ string) (*wiki.Node, error) {
	return s.node, nil
}

func (s *stubNodeService) Move(_ context.Context, _ string, req *wikiSvc.MoveRequest) (*wiki.Node, error) {
	s.moves = append(s.moves, req)
	return s.node, nil
}

func (s *stubNodeService) Rename(_ context.Context, _ string, req *wikiSvc.RenameRequest) (*wiki.Node, error) {
	s.renames = append(s.renames, req)
	return s.node, nil
}

type stubAccessService struct {
	wikiSvc.AccessService
	policy *wiki.EffectivePolicy
}

func (s *stubAccessService) Resolve(_ context.Context, _ string) (*wiki.EffectivePolicy, error) {
	return s.policy, nil
}

type stubDetector struct {
	wikiSvc.DetectorService
	nudged []string
}

func (s *stubDetector) Nudge(nodeID string) {
	s.nudged = append(s.nudged, nodeID)
}

func getNodeRequest(id string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/api/wiki/nodes/"+id, nil)
	r.SetPathValue("id", id)
	return r
}

func TestGetNode(t *testing.T) {
	newFolder := func(isPublic bool, policy *wiki.FolderPolicy) *wiki.Node {
		return &wiki.Node{
			ID:       uuid.NewString(),
			Type:     wiki.NodeTypeFolder,
			Name:     "Docs",
			IsPublic: isPublic,
			Folder:   policy,
		}
	}

	t.Run("nudges the detector for a restricted folder with no departments", func(t *testing.T) {
		node := newFolder(false, &wiki.FolderPolicy{RankIDs: []string{"R-STAFF"}})
		detector := &stubDetector{}
		h := NewNodeHandler(&stubNodeService{node: node}, &stubAccessService{}, detector, nil, testLogger())

		w := httptest.NewRecorder()
		h.GetNode(w, getNodeRequest(node.ID))

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", w.Code)
		}
		if len(detector.nudged) != 1 || detector.nudged[0] != node.ID {
			t.Errorf("nudged = %v, want [%s]", detector.nudged, node.ID)
		}
	})

	t.Run("skips the nudge when departments are listed", func(t *testing.T) {
		node := newFolder(false, &wiki.FolderPolicy{DepartmentIDs: []string{"D-HR"}})
		detector := &stubDetector{}
		h := NewNodeHandler(&stubNodeService{node: node}, &stubAccessService{}, detector, nil, testLogger())

		w := httptest.NewRecorder()
		h.GetNode(w, getNodeRequest(node.ID))

		if len(detector.nudged) != 0 {
			t.Errorf("nudged = %v, want none", detector.nudged)
		}
	})

	t.Run("skips the nudge for public folders", func(t *testing.T) {
		node := newFolder(true, &wiki.FolderPolicy{})
		detector := &stubDetector{}
		h := NewNodeHandler(&stubNodeService{node: node}, &stubAccessService{}, detector, nil, testLogger())

		w := httptest.NewRecorder()
		h.GetNode(w, getNodeRequest(node.ID))

		if len(detector.nudged) != 0 {
			t.Errorf("nudged = %v, want none", detector.nudged)
		}
	})

	t.Run("embeds the effective access policy", func(t *testing.T) {
		node := newFolder(true, &wiki.FolderPolicy{})
		h := NewNodeHandler(
			&stubNodeService{node: node},
			&stubAccessService{policy: &wiki.EffectivePolicy{AllowAll: true}},
			nil, nil, testLogger(),
		)

		w := httptest.NewRecorder()
		h.GetNode(w, getNodeRequest(node.ID))

		var resp struct {
			ID              string                `json:"id"`
			EffectiveAccess *wiki.EffectivePolicy `json:"effective_access"`
		}
		if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if resp.ID != node.ID {
			t.Errorf("id = %q, want %q", resp.ID, node.ID)
		}
		if resp.EffectiveAccess == nil || !resp.EffectiveAccess.AllowAll {
			t.Errorf("effective_access = %+v, want allow-all", resp.EffectiveAccess)
		}
	})
}

func TestUpdateNode(t *testing.T) {
	patchRequest := func(id, body string) *http.Request {
		r := httptest.NewRequest(http.MethodPatch, "/api/wiki/nodes/"+id, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
		r.SetPathValue("id", id)
		return httputil.WithOperatorID(r, uuid.NewString())
	}

	node := &wiki.Node{ID: uuid.NewString(), Type: wiki.NodeTypeFolder, Name: "Docs", IsPublic: true}

	t.Run("name and parent together issue one combined move", func(t *testing.T) {
		svc := &stubNodeService{node: node}
		h := NewNodeHandler(svc, &stubAccessService{}, nil, nil, testLogger())
		parentID := uuid.NewString()

		w := httptest.NewRecorder()
		h.UpdateNode(w, patchRequest(node.ID, `{"name":"New","parent_id":"`+parentID+`"}`))

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", w.Code)
		}
		if len(svc.renames) != 0 {
			t.Errorf("rename called %d times, want 0", len(svc.renames))
		}
		if len(svc.moves) != 1 {
			t.Fatalf("move called %d times, want 1", len(svc.moves))
		}
		req := svc.moves[0]
		if req.Name == nil || *req.Name != "New" {
			t.Errorf("move name = %v, want New", req.Name)
		}
		if req.ParentID == nil || *req.ParentID != parentID {
			t.Errorf("move parent = %v, want %s", req.ParentID, parentID)
		}
	})

	t.Run("name alone renames", func(t *testing.T) {
		svc := &stubNodeService{node: node}
		h := NewNodeHandler(svc, &stubAccessService{}, nil, nil, testLogger())

		w := httptest.NewRecorder()
		h.UpdateNode(w, patchRequest(node.ID, `{"name":"New"}`))

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", w.Code)
		}
		if len(svc.renames) != 1 || len(svc.moves) != 0 {
			t.Errorf("renames = %d moves = %d, want 1 and 0", len(svc.renames), len(svc.moves))
		}
	})

	t.Run("null parent moves to the root", func(t *testing.T) {
		svc := &stubNodeService{node: node}
		h := NewNodeHandler(svc, &stubAccessService{}, nil, nil, testLogger())

		w := httptest.NewRecorder()
		h.UpdateNode(w, patchRequest(node.ID, `{"parent_id":null}`))

		if len(svc.moves) != 1 {
			t.Fatalf("move called %d times, want 1", len(svc.moves))
		}
		if svc.moves[0].ParentID != nil {
			t.Errorf("move parent = %v, want nil", svc.moves[0].ParentID)
		}
	})

	t.Run("empty body is rejected", func(t *testing.T) {
		svc := &stubNodeService{node: node}
		h := NewNodeHandler(svc, &stubAccessService{}, nil, nil, testLogger())

		w := httptest.NewRecorder()
		h.UpdateNode(w, patchRequest(node.ID, `{}`))

		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", w.Code)
		}
	})
}
