// Package models defines the domain entities shared by the trueshuffle engine, its stores, and its remote backends.
//
// The package contains two categories of types:
//
// 1. Run state: the authoritative record of one shuffled playback session
//   - [Run] : play order, cursor, queue watermark, and status for one [RunKey]
//   - [Status] : closed set of run states driven by the reconcile loop
//   - [Mode] : controller (live playback) or utility (shuffled playlist copy)
//
// 2. Data Transfer Objects (DTOs): lightweight structs describing remote data
//   - [Device] : an addressable playback target
//   - [PlaybackState] : what the remote reports as currently playing
//   - [Playlist], [Track], [TrackList], [ExcludedTrack] : ingested playlist contents
//   - [User] : an account that completed the OAuth flow
//
// Track identifiers are remote URIs (spotify:track:... or an MPD file path) so an
// order entry is always directly playable.
package models
