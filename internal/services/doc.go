// Package services implements the remote systems the playback engine and the shuffle-copy task talk to.
//
// # Spotify
//
// [SpotifyClient] performs authenticated Web API requests and turns every non-2xx reply into a
// [transport.StatusError] carrying the parsed Retry-After header, so retry policy lives in the transport
// middleware rather than here. On top of it:
//   - [SpotifyPlayer] : a [transport.Executor] for devices, start playback, add to queue, and playback state
//   - [SpotifyLibrary] : playlist ingestion with exclusion reasons, playlist creation, and batched track adds
//
// # Authentication
//
// [SpotifyAuth] wraps the [oauth2] authorization-code flow with PKCE. [CredentialStore] hands out bearer
// tokens per user, refreshing them shortly before expiry and persisting every refreshed token.
// A failed refresh surfaces as [transport.ErrAuthExpired].
//
// # Music Player Daemon
//
// [MPDPlayer] drives an MPD queue through gompd behind the same [transport.Executor] contract. Starting
// playback clears the MPD queue, which the engine learns through [transport.Response.QueueCleared].
package services
