// Package catalog implements the image-catalog support that sits above
// internal/db's plain row access: per-session exclusion so a draw never
// repeats an image within a session (spec.md §4.6), and an optional
// declarative seed manifest (spec.md SPEC_FULL.md §4.13/C13).
package catalog

import (
	"context"
	"sync"
	"time"

	"github.com/research-platform/imagedesc-core/internal/cache"
)

// ExclusionTTL is how long a served image stays excluded for its session,
// per spec.md §4.6 ("within the last 24 hours").
const ExclusionTTL = 24 * time.Hour

// Exclusion tracks, per session id, the set of image ids already served
// within ExclusionTTL. It is the in-process TTL map spec.md §5 calls out as
// process-local shared state; a Redis-backed mirror is used instead when
// one is configured, accepting the same process-local inconsistency spec.md
// §5 tolerates for the local map when Redis is absent.
type Exclusion struct {
	mu       sync.Mutex
	sessions map[string]map[string]time.Time
	redis    *cache.Cache
}

// NewExclusion constructs an Exclusion. redisCache may be nil or disabled;
// Seen/Mark fall back to the in-process map automatically.
func NewExclusion(redisCache *cache.Cache) *Exclusion {
	e := &Exclusion{
		sessions: make(map[string]map[string]time.Time),
		redis:    redisCache,
	}
	go e.sweepLoop()
	return e
}

func (e *Exclusion) sweepLoop() {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for range ticker.C {
		e.Sweep()
	}
}

// Sweep drops expired entries from the in-process map. Exposed so the
// scheduled-maintenance job can invoke it deterministically alongside its
// other housekeeping.
func (e *Exclusion) Sweep() {
	now := time.Now()
	e.mu.Lock()
	defer e.mu.Unlock()
	for sessionID, seen := range e.sessions {
		for imageID, at := range seen {
			if now.Sub(at) > ExclusionTTL {
				delete(seen, imageID)
			}
		}
		if len(seen) == 0 {
			delete(e.sessions, sessionID)
		}
	}
}

// Seen returns the image ids excluded for sessionID right now.
func (e *Exclusion) Seen(ctx context.Context, sessionID string) []string {
	if e.redis != nil && e.redis.IsEnabled() {
		if ids, err := e.redis.SMembers(ctx, cache.SeenImagesKey(sessionID)); err == nil {
			return ids
		}
	}

	now := time.Now()
	e.mu.Lock()
	defer e.mu.Unlock()
	seen := e.sessions[sessionID]
	ids := make([]string, 0, len(seen))
	for imageID, at := range seen {
		if now.Sub(at) <= ExclusionTTL {
			ids = append(ids, imageID)
		}
	}
	return ids
}

// Mark records imageID as served to sessionID.
func (e *Exclusion) Mark(ctx context.Context, sessionID, imageID string) {
	if e.redis != nil && e.redis.IsEnabled() {
		key := cache.SeenImagesKey(sessionID)
		if err := e.redis.SAdd(ctx, key, imageID); err == nil {
			e.redis.Expire(ctx, key, ExclusionTTL)
			return
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	seen, ok := e.sessions[sessionID]
	if !ok {
		seen = make(map[string]time.Time)
		e.sessions[sessionID] = seen
	}
	seen[imageID] = time.Now()
}

// Reset clears exclusion state for sessionID, the "catalog exhausted" reset
// spec.md §4.6 requires when every image has already been served.
func (e *Exclusion) Reset(ctx context.Context, sessionID string) {
	if e.redis != nil && e.redis.IsEnabled() {
		e.redis.Delete(ctx, cache.SeenImagesKey(sessionID))
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.sessions, sessionID)
}
