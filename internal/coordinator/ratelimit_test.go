package coordinator

import "testing"

func TestRateLimiterAllowsWithinBurst(t *testing.T) {
	rl := &RateLimiter{rate: 1, burst: 3, buckets: make(map[string]*ipBucket)}
	for i := 0; i < 3; i++ {
		if ok, _ := rl.allow("1.2.3.4"); !ok {
			t.Fatalf("request %d within burst should be allowed", i)
		}
	}
}

func TestRateLimiterRejectsPastBurst(t *testing.T) {
	rl := &RateLimiter{rate: 0.001, burst: 1, buckets: make(map[string]*ipBucket)}
	if ok, _ := rl.allow("1.2.3.4"); !ok {
		t.Fatalf("first request should be allowed")
	}
	if ok, retryAfter := rl.allow("1.2.3.4"); ok || retryAfter <= 0 {
		t.Fatalf("second immediate request should be rejected with a positive retry-after")
	}
}

func TestRateLimiterTracksIPsIndependently(t *testing.T) {
	rl := &RateLimiter{rate: 0.001, burst: 1, buckets: make(map[string]*ipBucket)}
	if ok, _ := rl.allow("1.1.1.1"); !ok {
		t.Fatalf("first IP's first request should be allowed")
	}
	if ok, _ := rl.allow("2.2.2.2"); !ok {
		t.Fatalf("second IP should have its own bucket and be allowed")
	}
}
