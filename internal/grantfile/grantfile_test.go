package grantfile_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/example/collab-sessions/internal/grantfile"
	"github.com/example/collab-sessions/internal/persistence"
	"github.com/example/collab-sessions/internal/testfixtures"
)

const sampleDocument = `
grants:
  - user_a: " coach-1 "
    user_b: member-7
    plan_id: plan-2024
    role: coach
  - user_a: coach-1
    user_b: member-8
    plan_id: "  "
    active: false
`

func TestParse_NormalizesEntries(t *testing.T) {
	t.Parallel()

	entries, err := grantfile.Parse([]byte(sampleDocument))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	first := entries[0]
	if first.UserA != "coach-1" || first.PlanID == nil || *first.PlanID != "plan-2024" || first.Role != "coach" {
		t.Fatalf("unexpected first entry %+v", first)
	}
	second := entries[1]
	if second.PlanID != nil {
		t.Fatalf("blank plan should mean every plan, got %q", *second.PlanID)
	}
	if second.Active == nil || *second.Active {
		t.Fatalf("active flag not decoded: %v", second.Active)
	}
}

func TestParse_RejectsInvalidDocuments(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		doc     string
		wantErr string
	}{
		{name: "empty", doc: "  \n", wantErr: "document is empty"},
		{name: "unknown key", doc: "grants:\n  - user_a: a\n    user_b: b\n    expires: soon\n", wantErr: "decode"},
		{name: "missing user", doc: "grants:\n  - user_a: a\n", wantErr: "grants[0]: user_a and user_b are required"},
		{name: "self grant", doc: "grants:\n  - user_a: a\n    user_b: b\n  - user_a: c\n    user_b: c\n", wantErr: "grants[1]: user_a and user_b must differ"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := grantfile.Parse([]byte(tc.doc))
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestLoad_ReadsFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "grants.yaml")
	if err := os.WriteFile(path, []byte(sampleDocument), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	entries, err := grantfile.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}

	if _, err := grantfile.Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestImport_UpsertsGrants(t *testing.T) {
	t.Parallel()

	testfixtures.ForEachStore(t, func(t *testing.T, h *testfixtures.StoreHarness) {
		ctx := context.Background()
		entries, err := grantfile.Parse([]byte(sampleDocument))
		if err != nil {
			t.Fatalf("Parse returned error: %v", err)
		}
		clock := testfixtures.NewClock(testfixtures.ReferenceTime())
		ids := testfixtures.NewIDGenerator("grant")

		n, err := grantfile.Import(ctx, h.Grants, entries, ids.NextFunc(), clock.NowFunc())
		if err != nil {
			t.Fatalf("Import returned error: %v", err)
		}
		if n != 2 {
			t.Fatalf("imported %d, want 2", n)
		}

		plan := "plan-2024"
		ok, err := h.Grants.HasActiveGrant(ctx, "member-7", "coach-1", &plan)
		if err != nil || !ok {
			t.Fatalf("expected active grant for plan, ok=%v err=%v", ok, err)
		}
		ok, err = h.Grants.HasActiveGrant(ctx, "coach-1", "member-8", nil)
		if err != nil || ok {
			t.Fatalf("inactive grant must not authorize, ok=%v err=%v", ok, err)
		}

		// Re-importing updates in place instead of duplicating.
		if _, err := grantfile.Import(ctx, h.Grants, entries, ids.NextFunc(), clock.NowFunc()); err != nil {
			t.Fatalf("second Import returned error: %v", err)
		}
		grants, err := h.Grants.ListGrantsForUser(ctx, "coach-1")
		if err != nil {
			t.Fatalf("ListGrantsForUser: %v", err)
		}
		if len(grants) != 2 {
			t.Fatalf("expected 2 grants after re-import, got %d", len(grants))
		}
	})
}

type failingGrants struct {
	persistence.GrantRepository
	err error
}

func (f failingGrants) PutGrant(context.Context, persistence.CollaborationGrant) error {
	return f.err
}

func TestImport_StopsOnStoreError(t *testing.T) {
	t.Parallel()

	entries, err := grantfile.Parse([]byte(sampleDocument))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	boom := errors.New("disk full")
	n, err := grantfile.Import(context.Background(), failingGrants{err: boom}, entries, func() string { return "g" }, nil)
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
	if n != 0 {
		t.Fatalf("imported %d before failure, want 0", n)
	}
}
