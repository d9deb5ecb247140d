// Package repositories implements SQLite persistence for runs, accounts, and OAuth tokens.
//
// Key Implementations:
//   - [RunRepository] : run state keyed by (user, playlist, mode), with order and skipped sets as JSON columns
//   - [UserRepository] : accounts that completed the OAuth flow, looked up by Spotify user ID
//   - [TokenRepository] : one OAuth token per user, rewritten on every refresh
//
// Sequence numbers provide stable, human-readable ordering (e.g., run #42) independent of UUIDs and creation timestamps.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
