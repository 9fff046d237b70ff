// Package redisstore is a docstore backend on Redis. Each document is a
// JSON string under <prefix>:<table>:<id>; conditional writes use
// WATCH/MULTI so a revision-tag check and the write happen atomically.
// Queries SCAN a table's key space and filter in process, which suits the
// small tables this store holds (cache rows, settings).
package redisstore
