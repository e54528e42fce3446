// Package redis connects to the Redis instance backing the cross-process
// throttle index. The connection is optional: with no REDIS_URL configured
// the notification hub falls back to storage-only duplicate detection.
package redis
