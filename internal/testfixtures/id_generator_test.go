package testfixtures

import (
	"reflect"
	"sync"
	"testing"
)

func TestIDGeneratorProducesSequentialIDs(t *testing.T) {
	t.Parallel()

	gen := NewIDGenerator("outcome")
	first := gen.Next()
	second := gen.NextFunc()()

	if first != "outcome-1" || second != "outcome-2" {
		t.Fatalf("unexpected identifiers: %q, %q", first, second)
	}
	if got := gen.Issued(); !reflect.DeepEqual(got, []string{"outcome-1", "outcome-2"}) {
		t.Fatalf("Issued = %v", got)
	}
}

func TestIDGeneratorDefaultsPrefix(t *testing.T) {
	t.Parallel()

	if got := NewIDGenerator("").Next(); got != "id-1" {
		t.Fatalf("expected id-1, got %q", got)
	}
}

func TestIDGeneratorIsSafeForConcurrentUse(t *testing.T) {
	t.Parallel()

	gen := NewIDGenerator("reminder")
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			gen.Next()
		}()
	}
	wg.Wait()

	seen := map[string]bool{}
	for _, id := range gen.Issued() {
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
	if len(seen) != 20 {
		t.Fatalf("expected 20 ids, got %d", len(seen))
	}
}
