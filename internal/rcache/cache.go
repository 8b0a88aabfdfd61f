// Package rcache implements the resolver's answer cache: a TTL-indexed,
// thread-safe store with two interchangeable backends (Simple and LRU),
// grounded on the teacher's sharded cache Config/Stats conventions
// (internal/cache/sharded.go) but reshaped around SPEC_FULL.md §4.4's
// single-map-plus-mutex (Simple) and slab-arena intrusive list (LRU)
// designs rather than sharding, since the spec does not call for it.
package rcache

import (
	"time"

	"github.com/dnsscience/stubresolver/internal/dnsname"
	"github.com/dnsscience/stubresolver/internal/wire"
)

// CacheKey identifies a cached answer by question tuple. Keys compare by
// value, matching SPEC_FULL.md §3.
type CacheKey struct {
	Name   dnsname.Name
	Type   wire.Type
	Class  wire.Class
}

// Answer is a resolved (or negatively-resolved) response, carrying enough
// of the original message to let callers inspect the full RRset and CNAME
// chain, plus the absolute wall-clock expiration the cache keys eviction on.
type Answer struct {
	Qname      dnsname.Name
	Rdtype     wire.Type
	Rdclass    wire.Class
	Response   *wire.Message
	Canonical  dnsname.Name // chain-resolved canonical name
	RRset      []wire.RR    // the RRset that answered, nil if NoAnswer
	Expiration time.Time

	// NXDomain marks this Answer as a cached negative (non-existence)
	// result rather than a positive one; Response holds the message that
	// produced it (NXDOMAIN vs a NOERROR/no-RRset NoAnswer case is
	// distinguished by the resolver, not the cache).
	NXDomain bool
}

// Expired reports whether a has passed its expiration as of now.
func (a Answer) Expired(now time.Time) bool {
	return !now.Before(a.Expiration)
}

// Stats is a point-in-time snapshot of cache activity, returned under the
// cache's lock so hits/misses/size are mutually consistent, matching the
// teacher's GetStats() convention.
type Stats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
	Size      int
}

// Cache is the capability both backends implement, so the resolver can be
// built against either interchangeably.
type Cache interface {
	Get(key CacheKey) (Answer, bool)
	Put(key CacheKey, answer Answer)
	Flush(key *CacheKey)
	Stats() Stats
}
