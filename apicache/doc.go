// Package apicache caches origin API responses in a docstore table and
// decides, per request, whether to answer from the cache, the origin, or
// both.
//
// Entries are keyed by GenerateCacheID(api, params...), so the same
// request always overwrites the same row. An entry is served only while
// cacheTime + ttl*1000 > now (milliseconds); expired rows stay in storage
// until overwritten or purged but are reported as misses.
//
// Fetch applies a Policy:
//
//	ReadCacheFirst      hit: cached value; miss: origin, then persist
//	ReadAPIOnly         origin only, never persisted
//	ReadAPIFirst        origin only, never persisted
//	ReadCacheOnly       hit: cached value; miss: nil, origin not called
//	ReadCacheAndDelete  hit: cached value (cacheTime 0) and the row is removed; miss: nil
package apicache
