package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExclusionMarksAndTracksSeen(t *testing.T) {
	e := NewExclusion(nil)
	ctx := context.Background()

	assert.Empty(t, e.Seen(ctx, "session-a"))

	e.Mark(ctx, "session-a", "img-1")
	e.Mark(ctx, "session-a", "img-2")

	seen := e.Seen(ctx, "session-a")
	assert.ElementsMatch(t, []string{"img-1", "img-2"}, seen)
}

func TestExclusionIsolatesSessions(t *testing.T) {
	e := NewExclusion(nil)
	ctx := context.Background()

	e.Mark(ctx, "session-a", "img-1")

	assert.Empty(t, e.Seen(ctx, "session-b"))
}

func TestExclusionResetClearsSession(t *testing.T) {
	e := NewExclusion(nil)
	ctx := context.Background()

	e.Mark(ctx, "session-a", "img-1")
	e.Reset(ctx, "session-a")

	assert.Empty(t, e.Seen(ctx, "session-a"))
}

func TestExclusionSweepDropsExpiredEntries(t *testing.T) {
	e := NewExclusion(nil)
	ctx := context.Background()

	e.Mark(ctx, "session-a", "img-1")
	e.mu.Lock()
	for img := range e.sessions["session-a"] {
		e.sessions["session-a"][img] = e.sessions["session-a"][img].Add(-ExclusionTTL * 2)
	}
	e.mu.Unlock()

	e.Sweep()

	assert.Empty(t, e.Seen(ctx, "session-a"))
}
