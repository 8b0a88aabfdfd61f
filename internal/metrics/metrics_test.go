package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/dnsscience/stubresolver/internal/dnsname"
	"github.com/dnsscience/stubresolver/internal/rcache"
	"github.com/dnsscience/stubresolver/internal/wire"
)

func TestObserveResolveIncrementsOutcomeCounter(t *testing.T) {
	before := testutil.ToFloat64(QueriesTotal.WithLabelValues("answer"))
	ObserveResolve("answer", 5*time.Millisecond)
	after := testutil.ToFloat64(QueriesTotal.WithLabelValues("answer"))
	if after != before+1 {
		t.Errorf("QueriesTotal[answer] = %v, want %v", after, before+1)
	}
}

func TestSyncCacheStatsAddsDeltaNotSnapshot(t *testing.T) {
	cache := rcache.NewSimple(time.Minute)
	name := dnsname.MustFromText("example.com.")
	key := rcache.CacheKey{Name: name, Type: wire.TypeA, Class: wire.ClassINET}
	cache.Put(key, rcache.Answer{Qname: name, Rdtype: wire.TypeA, Expiration: time.Now().Add(time.Hour)})
	cache.Get(key)
	cache.Get(rcache.CacheKey{Name: dnsname.MustFromText("missing.example.com."), Type: wire.TypeA, Class: wire.ClassINET})

	before := testutil.ToFloat64(CacheHits)
	SyncCacheStats(cache)
	afterFirst := testutil.ToFloat64(CacheHits)
	if afterFirst <= before {
		t.Fatalf("expected CacheHits to advance, before=%v after=%v", before, afterFirst)
	}

	// A second sync with no new activity must not double-count.
	SyncCacheStats(cache)
	afterSecond := testutil.ToFloat64(CacheHits)
	if afterSecond != afterFirst {
		t.Errorf("expected no change on a no-op resync, got %v -> %v", afterFirst, afterSecond)
	}
}
