// Package cache provides LRU caching for fixed-size index records.
//
// The engines address AVL nodes, B+Tree nodes and hash buckets by byte
// offset inside a file. A [BlockCache] keeps recently used records in memory
// so repeated descents through the upper levels of a tree do not hit the
// file again. The page file layer writes through: every record write updates
// the file first and the cache second, so a cache never holds bytes newer than
// the file.
//
// [ShardedLRUBlockCache] splits the key space over 64 shards to keep lock
// contention low when several engines share one cache. Memory can be bounded
// globally through a resource.Controller.
package cache
