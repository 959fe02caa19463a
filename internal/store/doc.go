// Package store provides the SQLite-backed query library for the fql CLI.
//
// The store holds:
//   - Saved queries: named FQL text with a revision counter
//   - Compilations: an append-only history of compile attempts
//   - The compile cache: the newest successful compilation per fingerprint
//
// # Ordering
//
// History uses seq INTEGER (a logical clock assigned on insert), never
// timestamps, so listings are stable. Saved queries are listed by name.
//
// # Fingerprints
//
// Fingerprint hashes the NFC-normalized source and any primary-key
// overrides with SHA-256 under a versioned domain prefix.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
