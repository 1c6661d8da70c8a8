// Package store provides SQLite-backed durable storage for chains.
//
// The store keeps:
//   - Chains: the binary encoding of a chain's blocks, parameters and
//     variables, keyed by chain name, with a content hash and a logical
//     version number
//   - Variable snapshots: numbered copies of a chain's variables, so a
//     host can persist state between runs and restore it later
//
// # Ordering
//
// All ordering uses seq INTEGER (logical clock), never timestamps, and
// names compare with COLLATE BINARY, so listings are identical across
// runs and platforms.
//
// # Caching
//
// Chain blobs are cached in memory by name (go-cache). Saves and
// deletes invalidate the entry; loads always decode a fresh chain, since
// a chain belongs to one engine at a time.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Snapshots are deleted with their chain
package store
