package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

type widget struct {
	ID    string    `json:"id"`
	Kind  string    `json:"kind"`
	Tags  []string  `json:"tags"`
	Due   time.Time `json:"due"`
	Count uint      `json:"count"`
}

func TestMemoryInsertAndFindOne(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	w := widget{ID: "w1", Kind: "gadget", Count: 3}
	if err := m.Insert(ctx, "widgets", "w1", w); err != nil {
		t.Fatalf("insert: %v", err)
	}

	var got widget
	ver, err := m.FindOne(ctx, "widgets", Eq("id", "w1"), &got)
	if err != nil {
		t.Fatalf("find one: %v", err)
	}
	if ver != 1 {
		t.Errorf("version = %d, want 1", ver)
	}
	if got.Kind != "gadget" || got.Count != 3 {
		t.Errorf("round trip mismatch: %+v", got)
	}

	if _, err := m.FindOne(ctx, "widgets", Eq("id", "nope"), &got); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing doc: err = %v, want ErrNotFound", err)
	}
}

func TestMemoryDuplicateKey(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if err := m.Insert(ctx, "widgets", "w1", widget{ID: "w1"}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := m.Insert(ctx, "widgets", "w1", widget{ID: "w1"}); !errors.Is(err, ErrDuplicateKey) {
		t.Errorf("second insert: err = %v, want ErrDuplicateKey", err)
	}
}

func TestMemoryReplaceVersioning(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if err := m.Insert(ctx, "widgets", "w1", widget{ID: "w1", Count: 1}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	ver, err := m.Replace(ctx, "widgets", "w1", widget{ID: "w1", Count: 2}, 1)
	if err != nil {
		t.Fatalf("replace: %v", err)
	}
	if ver != 2 {
		t.Errorf("new version = %d, want 2", ver)
	}

	// Stale token loses.
	if _, err := m.Replace(ctx, "widgets", "w1", widget{ID: "w1", Count: 3}, 1); !errors.Is(err, ErrConflict) {
		t.Errorf("stale replace: err = %v, want ErrConflict", err)
	}
	if _, err := m.Replace(ctx, "widgets", "missing", widget{}, 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("absent replace: err = %v, want ErrNotFound", err)
	}

	var got widget
	if _, err := m.FindOne(ctx, "widgets", Eq("id", "w1"), &got); err != nil {
		t.Fatalf("find one: %v", err)
	}
	if got.Count != 2 {
		t.Errorf("count = %d, stale write must not apply", got.Count)
	}
}

func TestMemoryDelete(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if err := m.Insert(ctx, "widgets", "w1", widget{ID: "w1"}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := m.Delete(ctx, "widgets", "w1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := m.Delete(ctx, "widgets", "w1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete: err = %v, want ErrNotFound", err)
	}
}

func TestMemoryFilters(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	day := func(d int) time.Time {
		return time.Date(2026, 3, d, 10, 0, 0, 0, time.UTC)
	}

	docs := []widget{
		{ID: "w1", Kind: "gadget", Tags: []string{"red", "small"}, Due: day(1)},
		{ID: "w2", Kind: "gadget", Tags: []string{"blue"}, Due: day(5)},
		{ID: "w3", Kind: "gizmo", Tags: []string{"red"}, Due: day(9)},
	}
	for _, w := range docs {
		if err := m.Insert(ctx, "widgets", w.ID, w); err != nil {
			t.Fatalf("insert %s: %v", w.ID, err)
		}
	}

	var out []widget
	if err := m.Find(ctx, "widgets", Eq("kind", "gadget"), &out); err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(out) != 2 {
		t.Errorf("eq filter matched %d, want 2", len(out))
	}

	out = nil
	if err := m.Find(ctx, "widgets", Filter{Contains: map[string]any{"tags": "red"}}, &out); err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(out) != 2 {
		t.Errorf("contains filter matched %d, want 2", len(out))
	}

	// Half-open range: min inclusive, max exclusive.
	out = nil
	f := Filter{Range: map[string]Range{"due": {Min: day(1), Max: day(9)}}}
	if err := m.Find(ctx, "widgets", f, &out); err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(out) != 2 {
		t.Errorf("range filter matched %d, want 2", len(out))
	}
	for _, w := range out {
		if w.ID == "w3" {
			t.Error("range max must be exclusive, w3 matched")
		}
	}

	n, err := m.Count(ctx, "widgets", Eq("kind", "gizmo"))
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Errorf("count = %d, want 1", n)
	}
}

func TestMemoryCancelledContext(t *testing.T) {
	m := NewMemory()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := m.Insert(ctx, "widgets", "w1", widget{ID: "w1"}); !errors.Is(err, ErrTimeout) {
		t.Errorf("insert: err = %v, want ErrTimeout", err)
	}
	var got widget
	if _, err := m.FindOne(ctx, "widgets", Eq("id", "w1"), &got); !errors.Is(err, ErrTimeout) {
		t.Errorf("find one: err = %v, want ErrTimeout", err)
	}
}

func TestWithRetry(t *testing.T) {
	ctx := context.Background()

	t.Run("retries only conflicts", func(t *testing.T) {
		calls := 0
		err := WithRetry(ctx, 5, func() error {
			calls++
			if calls < 3 {
				return ErrConflict
			}
			return nil
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if calls != 3 {
			t.Errorf("calls = %d, want 3", calls)
		}
	})

	t.Run("other errors pass through immediately", func(t *testing.T) {
		calls := 0
		err := WithRetry(ctx, 5, func() error {
			calls++
			return ErrNotFound
		})
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("err = %v, want ErrNotFound", err)
		}
		if calls != 1 {
			t.Errorf("calls = %d, want 1", calls)
		}
	})

	t.Run("gives up after attempts", func(t *testing.T) {
		calls := 0
		err := WithRetry(ctx, 3, func() error {
			calls++
			return ErrConflict
		})
		if !errors.Is(err, ErrConflict) {
			t.Errorf("err = %v, want ErrConflict", err)
		}
		if calls != 3 {
			t.Errorf("calls = %d, want 3", calls)
		}
	})
}
