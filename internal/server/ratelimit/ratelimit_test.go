package ratelimit

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a settable time source.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestLimiter(config *Config) (*Limiter, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := NewLimiter(config)
	l.now = clock.Now
	return l, clock
}

func TestLimiter_Allow(t *testing.T) {
	limiter, _ := newTestLimiter(&Config{Enabled: true, Rate: 1, Burst: 10})
	defer limiter.Stop()

	for i := 0; i < 10; i++ {
		allowed, info := limiter.Allow("127.0.0.1", "/test", "GET")
		require.True(t, allowed, "request %d", i+1)
		assert.Equal(t, 10, info.Limit)
		assert.Equal(t, 9-i, info.Remaining)
	}

	allowed, info := limiter.Allow("127.0.0.1", "/test", "GET")
	assert.False(t, allowed)
	assert.Equal(t, 0, info.Remaining)
	assert.Equal(t, time.Second, info.RetryAfter)
}

func TestLimiter_Refill(t *testing.T) {
	limiter, clock := newTestLimiter(&Config{Enabled: true, Rate: 1, Burst: 2})
	defer limiter.Stop()

	for i := 0; i < 2; i++ {
		allowed, _ := limiter.Allow("c", "/x", "GET")
		require.True(t, allowed)
	}
	allowed, _ := limiter.Allow("c", "/x", "GET")
	require.False(t, allowed)

	clock.Advance(time.Second)
	allowed, _ = limiter.Allow("c", "/x", "GET")
	assert.True(t, allowed)
	allowed, _ = limiter.Allow("c", "/x", "GET")
	assert.False(t, allowed, "a denied request must not consume a token")
}

func TestLimiter_ClientsAreIndependent(t *testing.T) {
	limiter, _ := newTestLimiter(&Config{Enabled: true, Rate: 1, Burst: 1})
	defer limiter.Stop()

	allowed, _ := limiter.Allow("a", "/x", "GET")
	assert.True(t, allowed)
	allowed, _ = limiter.Allow("a", "/x", "GET")
	assert.False(t, allowed)
	allowed, _ = limiter.Allow("b", "/x", "GET")
	assert.True(t, allowed)
}

func TestLimiter_WhitelistAndDisabled(t *testing.T) {
	limiter, _ := newTestLimiter(&Config{Enabled: true, Rate: 1, Burst: 1, Whitelist: map[string]bool{"10.0.0.1": true}})
	defer limiter.Stop()
	for i := 0; i < 5; i++ {
		allowed, _ := limiter.Allow("10.0.0.1", "/x", "GET")
		assert.True(t, allowed)
	}

	disabled, _ := newTestLimiter(NewConfig(0, 0))
	defer disabled.Stop()
	for i := 0; i < 5; i++ {
		allowed, info := disabled.Allow("c", "/x", "POST")
		assert.True(t, allowed)
		assert.Zero(t, info.Limit)
	}
}

func TestLimiter_EndpointSpecific(t *testing.T) {
	limiter, _ := newTestLimiter(&Config{
		Enabled: true,
		Rate:    100,
		Burst:   100,
		EndpointConfigs: []EndpointConfig{
			{Path: "/users/", Method: "POST", Rate: 0.01, Burst: 2},
		},
	})
	defer limiter.Stop()

	for i := 0; i < 2; i++ {
		allowed, _ := limiter.Allow("c", fmt.Sprintf("/users/%d/evaluations", i), "POST")
		require.True(t, allowed)
	}
	allowed, info := limiter.Allow("c", "/users/9/evaluations/stream", "POST")
	assert.False(t, allowed)
	assert.Equal(t, 2, info.Limit)

	// Reads use the default bucket.
	allowed, _ = limiter.Allow("c", "/users/1/evaluations", "GET")
	assert.True(t, allowed)

	// Health is never limited.
	for i := 0; i < 200; i++ {
		allowed, _ := limiter.Allow("c", "/health", "GET")
		require.True(t, allowed)
	}
}

func TestLimiter_Concurrent(t *testing.T) {
	limiter, _ := newTestLimiter(&Config{Enabled: true, Rate: 1, Burst: 50})
	defer limiter.Stop()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := limiter.Allow("c", "/x", "GET"); ok {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, allowed)
}

func TestLimiter_Cleanup(t *testing.T) {
	limiter, clock := newTestLimiter(&Config{Enabled: true, Rate: 1, Burst: 1, IdleTTL: time.Minute})
	defer limiter.Stop()

	limiter.Allow("old", "/x", "GET")
	clock.Advance(2 * time.Minute)
	limiter.Allow("new", "/x", "GET")

	limiter.cleanupBuckets()

	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	assert.NotContains(t, limiter.buckets, "old")
	assert.Contains(t, limiter.buckets, "new")
}

func TestNewLimiter_NilConfig(t *testing.T) {
	limiter := NewLimiter(nil)
	defer limiter.Stop()
	limiter.Stop()

	allowed, _ := limiter.Allow("c", "/x", "GET")
	assert.True(t, allowed)
}

func TestMatchEndpoint(t *testing.T) {
	configs := DefaultEndpointConfigs()

	tests := []struct {
		path, method string
		wantPath     string
	}{
		{"/health", "GET", "/health"},
		{"/profile-sessions", "POST", "/profile-sessions"},
		{"/profile-sessions/s1/feedback", "POST", "/profile-sessions/"},
		{"/users", "POST", "/users"},
		{"/users", "GET", ""},
		{"/users/u1/evaluations", "POST", "/users/"},
		{"/users/u1/evaluations", "GET", ""},
		{"/evaluations/e1/rating", "PUT", ""},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			got := MatchEndpoint(tt.path, tt.method, configs)
			if tt.wantPath == "" {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.wantPath, got.Path)
		})
	}
}
