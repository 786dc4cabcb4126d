package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

// Memory is an in-process Store with the same optimistic-concurrency
// semantics as the Mongo implementation. It backs the test suites and local
// development without a database.
type Memory struct {
	mu    sync.Mutex
	colls map[string]map[string]memDoc
}

type memDoc struct {
	raw     []byte
	version Version
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{colls: make(map[string]map[string]memDoc)}
}

func (m *Memory) coll(name string) map[string]memDoc {
	c, ok := m.colls[name]
	if !ok {
		c = make(map[string]memDoc)
		m.colls[name] = c
	}
	return c
}

func (m *Memory) FindOne(ctx context.Context, collection string, f Filter, out any) (Version, error) {
	if err := ctx.Err(); err != nil {
		return 0, ErrTimeout
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.coll(collection) {
		if matches(d.raw, f) {
			if err := json.Unmarshal(d.raw, out); err != nil {
				return 0, err
			}
			return d.version, nil
		}
	}
	return 0, ErrNotFound
}

func (m *Memory) Find(ctx context.Context, collection string, f Filter, out any) error {
	if err := ctx.Err(); err != nil {
		return ErrTimeout
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var raws []json.RawMessage
	for _, d := range m.coll(collection) {
		if matches(d.raw, f) {
			raws = append(raws, d.raw)
		}
	}
	merged, err := json.Marshal(raws)
	if err != nil {
		return err
	}
	return json.Unmarshal(merged, out)
}

func (m *Memory) Count(ctx context.Context, collection string, f Filter) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, ErrTimeout
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, d := range m.coll(collection) {
		if matches(d.raw, f) {
			n++
		}
	}
	return n, nil
}

func (m *Memory) Insert(ctx context.Context, collection, key string, doc any) error {
	if err := ctx.Err(); err != nil {
		return ErrTimeout
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.coll(collection)
	if _, exists := c[key]; exists {
		return ErrDuplicateKey
	}
	c[key] = memDoc{raw: raw, version: 1}
	return nil
}

func (m *Memory) Replace(ctx context.Context, collection, key string, doc any, expected Version) (Version, error) {
	if err := ctx.Err(); err != nil {
		return 0, ErrTimeout
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.coll(collection)
	cur, exists := c[key]
	if !exists {
		return 0, ErrNotFound
	}
	if cur.version != expected {
		return 0, ErrConflict
	}
	next := cur.version + 1
	c[key] = memDoc{raw: raw, version: next}
	return next, nil
}

func (m *Memory) Delete(ctx context.Context, collection, key string) error {
	if err := ctx.Err(); err != nil {
		return ErrTimeout
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.coll(collection)
	if _, exists := c[key]; !exists {
		return ErrNotFound
	}
	delete(c, key)
	return nil
}

// matches evaluates a Filter against a JSON-encoded document. Values are
// compared through their JSON rendering, which keeps RFC 3339 timestamps
// ordered correctly for range predicates.
func matches(raw []byte, f Filter) bool {
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return false
	}
	for field, want := range f.Eq {
		if !scalarEq(doc[field], want) {
			return false
		}
	}
	for field, want := range f.Contains {
		arr, ok := doc[field].([]any)
		if !ok {
			return false
		}
		found := false
		for _, el := range arr {
			if scalarEq(el, want) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	for field, r := range f.Range {
		got := render(doc[field])
		if r.Min != nil && strings.Compare(got, render(r.Min)) < 0 {
			return false
		}
		if r.Max != nil && strings.Compare(got, render(r.Max)) >= 0 {
			return false
		}
	}
	return true
}

func scalarEq(got, want any) bool {
	return render(got) == render(want)
}

// render normalizes a value through JSON so that e.g. uint(3) from a filter
// equals float64(3) decoded from a stored document.
func render(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
