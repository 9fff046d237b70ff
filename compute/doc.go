// Package compute exposes cached views of a scale set's instances and
// network interfaces. Each call builds a cache request, wraps exactly one
// origin call in a producer, and lets apicache.Fetch decide whether the
// origin is consulted. Origin calls pass through a token-bucket limiter
// because the management API behind Origin is itself rate limited.
package compute
