package host

import (
	"testing"
	"time"

	"github.com/xraph/stokvel/types"
)

func TestCallerLimiter(t *testing.T) {
	a := types.MustParseAddress("0x00000000000000000000000000000000000000a1")
	b := types.MustParseAddress("0x00000000000000000000000000000000000000b2")
	now := time.Unix(1_700_000_000, 0)

	l := newCallerLimiter(1, 1, time.Minute)
	if !l.Allow(a, now) {
		t.Fatal("first call should be allowed")
	}
	if l.Allow(a, now) {
		t.Fatal("burst exhausted, second call should be throttled")
	}
	if !l.Allow(b, now) {
		t.Fatal("callers must not share a bucket")
	}
	if !l.Allow(a, now.Add(time.Second)) {
		t.Fatal("bucket should refill after one second")
	}
}

func TestCallerLimiterDisabled(t *testing.T) {
	l := newCallerLimiter(0, 5, 0)
	if l != nil {
		t.Fatal("non-positive rate should disable the limiter")
	}
	for i := 0; i < 10; i++ {
		if !l.Allow(types.ZeroAddress, time.Now()) {
			t.Fatal("nil limiter must allow everything")
		}
	}
}

func TestCallerLimiterEvictsIdle(t *testing.T) {
	l := newCallerLimiter(100, 10, time.Minute)
	start := time.Unix(1_700_000_000, 0)
	idle := types.MustParseAddress("0x00000000000000000000000000000000000000d3")
	busy := types.MustParseAddress("0x00000000000000000000000000000000000000e4")

	l.Allow(idle, start)
	later := start.Add(time.Hour)
	for i := 0; i < 511; i++ {
		l.Allow(busy, later)
	}

	if got := l.size(); got != 1 {
		t.Fatalf("expected idle caller to be evicted, have %d entries", got)
	}
}
