package identity

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type stubLookup struct {
	snapshot *OrgSnapshot
	names    map[string]string
	err      error
	calls    int
}

func (s *stubLookup) ListMemberships(_ context.Context, _ bool) (*OrgSnapshot, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.snapshot, nil
}

func (s *stubLookup) ResolveNames(_ context.Context, ids []string) (map[string]string, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	out := make(map[string]string)
	for _, id := range ids {
		if name, ok := s.names[id]; ok {
			out[id] = name
		}
	}
	return out, nil
}

func newCacheFixture(t *testing.T) (*stubLookup, *CachedLookup, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	stub := &stubLookup{
		snapshot: &OrgSnapshot{
			Departments: []OrgUnit{{ID: "D-HR", Name: "Human Resources", Active: true}},
		},
		names: map[string]string{"D-HR": "Human Resources"},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return stub, NewCachedLookup(stub, client, time.Minute, logger), mr
}

func TestCachedListMemberships(t *testing.T) {
	ctx := context.Background()

	t.Run("second call is served from cache", func(t *testing.T) {
		stub, cached, _ := newCacheFixture(t)

		first, err := cached.ListMemberships(ctx, true)
		if err != nil {
			t.Fatalf("ListMemberships: %v", err)
		}
		second, err := cached.ListMemberships(ctx, true)
		if err != nil {
			t.Fatalf("ListMemberships: %v", err)
		}
		if stub.calls != 1 {
			t.Errorf("upstream called %d times, want 1", stub.calls)
		}
		if len(first.Departments) != 1 || len(second.Departments) != 1 {
			t.Errorf("snapshots = %+v / %+v, want one department each", first, second)
		}
	})

	t.Run("cache expiry refreshes upstream", func(t *testing.T) {
		stub, cached, mr := newCacheFixture(t)

		if _, err := cached.ListMemberships(ctx, true); err != nil {
			t.Fatalf("ListMemberships: %v", err)
		}
		mr.FastForward(2 * time.Minute)
		if _, err := cached.ListMemberships(ctx, true); err != nil {
			t.Fatalf("ListMemberships: %v", err)
		}
		if stub.calls != 2 {
			t.Errorf("upstream called %d times, want 2", stub.calls)
		}
	})

	t.Run("upstream outage serves the last known snapshot", func(t *testing.T) {
		stub, cached, mr := newCacheFixture(t)

		if _, err := cached.ListMemberships(ctx, true); err != nil {
			t.Fatalf("ListMemberships: %v", err)
		}

		// Freshness window passes, then the directory goes down.
		mr.FastForward(2 * time.Minute)
		stub.err = errors.New("directory down")

		snapshot, err := cached.ListMemberships(ctx, true)
		if err != nil {
			t.Fatalf("ListMemberships during outage: %v", err)
		}
		if len(snapshot.Departments) != 1 || snapshot.Departments[0].ID != "D-HR" {
			t.Errorf("stale snapshot = %+v, want the last known one", snapshot)
		}
	})

	t.Run("outage with no stored snapshot surfaces the error", func(t *testing.T) {
		stub, cached, _ := newCacheFixture(t)
		stub.err = errors.New("directory down")

		if _, err := cached.ListMemberships(ctx, true); err == nil {
			t.Fatal("expected the upstream error")
		}
	})

	t.Run("active and full snapshots are cached separately", func(t *testing.T) {
		stub, cached, _ := newCacheFixture(t)

		if _, err := cached.ListMemberships(ctx, false); err != nil {
			t.Fatalf("ListMemberships: %v", err)
		}
		if _, err := cached.ListMemberships(ctx, true); err != nil {
			t.Fatalf("ListMemberships: %v", err)
		}
		if stub.calls != 2 {
			t.Errorf("upstream called %d times, want 2 (one per key)", stub.calls)
		}
	})
}

func TestCachedResolveNames(t *testing.T) {
	ctx := context.Background()

	t.Run("caches per id", func(t *testing.T) {
		stub, cached, _ := newCacheFixture(t)

		names, err := cached.ResolveNames(ctx, []string{"D-HR"})
		if err != nil {
			t.Fatalf("ResolveNames: %v", err)
		}
		if names["D-HR"] != "Human Resources" {
			t.Errorf("names = %v, want D-HR resolved", names)
		}

		if _, err := cached.ResolveNames(ctx, []string{"D-HR"}); err != nil {
			t.Fatalf("ResolveNames: %v", err)
		}
		if stub.calls != 1 {
			t.Errorf("upstream called %d times, want 1", stub.calls)
		}
	})

	t.Run("unknown ids stay absent", func(t *testing.T) {
		_, cached, _ := newCacheFixture(t)

		names, err := cached.ResolveNames(ctx, []string{"D-NOPE"})
		if err != nil {
			t.Fatalf("ResolveNames: %v", err)
		}
		if _, ok := names["D-NOPE"]; ok {
			t.Errorf("names = %v, want D-NOPE absent", names)
		}
	})
}
