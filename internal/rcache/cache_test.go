package rcache

import (
	"testing"
	"time"

	"github.com/dnsscience/stubresolver/internal/dnsname"
	"github.com/dnsscience/stubresolver/internal/wire"
)

func key(t *testing.T, text string) CacheKey {
	t.Helper()
	n, err := dnsname.FromText(text, &dnsname.Root)
	if err != nil {
		t.Fatalf("FromText(%q): %v", text, err)
	}
	return CacheKey{Name: n, Type: wire.TypeA, Class: wire.ClassINET}
}

func answerExpiring(in time.Duration) Answer {
	return Answer{Expiration: time.Now().Add(in)}
}

func TestSimpleGetPutTTL(t *testing.T) {
	c := NewSimple(time.Hour)
	k := key(t, "www.example.com.")

	if _, ok := c.Get(k); ok {
		t.Fatal("expected miss before Put")
	}
	c.Put(k, answerExpiring(50*time.Millisecond))
	if _, ok := c.Get(k); !ok {
		t.Fatal("expected hit immediately after Put")
	}

	time.Sleep(60 * time.Millisecond)
	if _, ok := c.Get(k); ok {
		t.Fatal("expected miss after expiration")
	}
	stats := c.Stats()
	if stats.Misses != 2 {
		t.Fatalf("misses = %d, want 2", stats.Misses)
	}
	if stats.Hits != 1 {
		t.Fatalf("hits = %d, want 1", stats.Hits)
	}
}

func TestSimpleFlush(t *testing.T) {
	c := NewSimple(time.Hour)
	a, b := key(t, "a.test."), key(t, "b.test.")
	c.Put(a, answerExpiring(time.Hour))
	c.Put(b, answerExpiring(time.Hour))

	c.Flush(&a)
	if _, ok := c.Get(a); ok {
		t.Fatal("a should be flushed")
	}
	if _, ok := c.Get(b); !ok {
		t.Fatal("b should survive single-key flush")
	}

	c.Flush(nil)
	if _, ok := c.Get(b); ok {
		t.Fatal("b should be flushed by full flush")
	}
}

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	// SPEC_FULL.md §8 scenario 4: maxSize=2; put A, put B, get A, put C => {A, C}, B evicted.
	c := NewLRU(2)
	a, b, cc := key(t, "a.test."), key(t, "b.test."), key(t, "c.test.")

	c.Put(a, answerExpiring(time.Hour))
	c.Put(b, answerExpiring(time.Hour))
	if _, ok := c.Get(a); !ok {
		t.Fatal("expected hit on a")
	}
	c.Put(cc, answerExpiring(time.Hour))

	if _, ok := c.Get(b); ok {
		t.Fatal("b should have been evicted")
	}
	if _, ok := c.Get(a); !ok {
		t.Fatal("a should still be present")
	}
	if _, ok := c.Get(cc); !ok {
		t.Fatal("c should still be present")
	}
	if c.Stats().Size != 2 {
		t.Fatalf("size = %d, want 2", c.Stats().Size)
	}
}

func TestLRUNeverExceedsMaxSize(t *testing.T) {
	c := NewLRU(3)
	for i := 0; i < 50; i++ {
		k := key(t, string(rune('a'+i%26))+".test.")
		c.Put(k, answerExpiring(time.Hour))
		if c.Stats().Size > 3 {
			t.Fatalf("size %d exceeds maxSize 3 after %d puts", c.Stats().Size, i)
		}
	}
}

func TestLRUExpiryEviction(t *testing.T) {
	c := NewLRU(4)
	k := key(t, "ephemeral.test.")
	c.Put(k, answerExpiring(10*time.Millisecond))
	time.Sleep(20 * time.Millisecond)
	if _, ok := c.Get(k); ok {
		t.Fatal("expected expired entry to miss")
	}
	if c.Stats().Evictions == 0 {
		t.Fatal("expected an expiry-driven eviction to be counted")
	}
}
