// Package vocab holds the closed group and tag vocabularies. The sets are
// injected configuration, loaded at startup and reloadable at runtime
// without a redeploy; reads are lock-guarded and cheap.
package vocab

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Loader produces the current vocabulary sets.
type Loader interface {
	Load(ctx context.Context) (groups, tags []string, err error)
}

// Static is a Loader over fixed slices, used as configuration fallback and
// in tests.
type Static struct {
	Groups []string
	Tags   []string
}

func (s Static) Load(context.Context) ([]string, []string, error) {
	return s.Groups, s.Tags, nil
}

// Redis keys holding the authoritative vocabulary sets.
const (
	redisGroupsKey = "vocab:groups"
	redisTagsKey   = "vocab:tags"
)

// RedisLoader reads vocabularies from Redis sets, falling back to a static
// loader when a set is empty or Redis is unreachable.
type RedisLoader struct {
	Client   *redis.Client
	Fallback Loader
}

func (l RedisLoader) Load(ctx context.Context) ([]string, []string, error) {
	groups, gerr := l.Client.SMembers(ctx, redisGroupsKey).Result()
	tags, terr := l.Client.SMembers(ctx, redisTagsKey).Result()
	if gerr != nil || terr != nil || (len(groups) == 0 && len(tags) == 0) {
		if l.Fallback != nil {
			return l.Fallback.Load(ctx)
		}
		if gerr != nil {
			return nil, nil, fmt.Errorf("load vocab from redis: %w", gerr)
		}
		return nil, nil, fmt.Errorf("load vocab from redis: %w", terr)
	}
	return groups, tags, nil
}

// Registry is the process-wide read-only view of the vocabularies.
type Registry struct {
	loader Loader

	mu      sync.RWMutex
	groups  map[string]struct{}
	tags    map[string]struct{}
	version int
}

// New builds a registry and performs the initial load.
func New(ctx context.Context, loader Loader) (*Registry, error) {
	r := &Registry{loader: loader}
	if err := r.Reload(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload re-reads both sets from the loader and swaps them in atomically.
func (r *Registry) Reload(ctx context.Context) error {
	groups, tags, err := r.loader.Load(ctx)
	if err != nil {
		return err
	}
	gs := make(map[string]struct{}, len(groups))
	for _, g := range groups {
		gs[g] = struct{}{}
	}
	ts := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		ts[t] = struct{}{}
	}
	r.mu.Lock()
	r.groups, r.tags = gs, ts
	r.version++
	r.mu.Unlock()
	return nil
}

// ValidGroup reports whether g is in the closed group vocabulary.
func (r *Registry) ValidGroup(g string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.groups[g]
	return ok
}

// ValidTag reports whether t is in the closed tag vocabulary.
func (r *Registry) ValidTag(t string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tags[t]
	return ok
}

// Groups returns the sorted group vocabulary.
func (r *Registry) Groups() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.groups)
}

// Tags returns the sorted tag vocabulary.
func (r *Registry) Tags() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.tags)
}

// Version increments on every successful reload.
func (r *Registry) Version() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.version
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
