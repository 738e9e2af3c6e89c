package antidetect

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHostThrottle_FirstRequestDoesNotWait(t *testing.T) {
	th := NewHostThrottle(time.Hour, 2*time.Hour)

	start := time.Now()
	require.NoError(t, th.Wait(context.Background(), "example.org"))
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestHostThrottle_SpacesSameHost(t *testing.T) {
	th := NewHostThrottle(50*time.Millisecond, 50*time.Millisecond)
	ctx := context.Background()

	require.NoError(t, th.Wait(ctx, "example.org"))
	start := time.Now()
	require.NoError(t, th.Wait(ctx, "example.org"))
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)

	// other hosts are independent
	start = time.Now()
	require.NoError(t, th.Wait(ctx, "other.org"))
	assert.Less(t, time.Since(start), 40*time.Millisecond)
}

func TestHostThrottle_HonoursContext(t *testing.T) {
	th := NewHostThrottle(time.Hour, time.Hour)
	require.NoError(t, th.Wait(context.Background(), "example.org"))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, th.Wait(ctx, "example.org"), context.DeadlineExceeded)
}

func TestUserAgentRotator_CyclesAll(t *testing.T) {
	agents := []string{"a", "b", "c"}
	r := NewUserAgentRotator(agents)

	seen := map[string]bool{}
	for range agents {
		seen[r.Next()] = true
	}
	assert.Len(t, seen, 3)
}

func TestUserAgentRotator_DefaultsWhenEmpty(t *testing.T) {
	r := NewUserAgentRotator(nil)
	assert.Contains(t, DefaultUserAgents(), r.Next())
}
