// Caching of serialized values (JSON strings) with a fixed TTL and explicit purging.
//
// Includes an interface and implementations using redis and in-process memory. Each entry carries
// the version of the data it was built from. The engine caches each user's active punishments
// stamped with the store's punishment version and discards entries whose version is behind, so a
// fill that raced a write is never served.
package cachestore
