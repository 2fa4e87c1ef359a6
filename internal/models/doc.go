// Package models defines the domain entities shared by the feed client, the harvest engine and the journal.
//
// The package contains two categories of types:
//
// 1. Values: immutable records passed between components
//   - [PlayEvent] : one broadcast of a track, decoded from a feed record
//   - [Page] / [PageInfo] : one fetched page of the history feed and its continuation cursor
//   - [RankedGroup] : all play events sharing a title, with the play count
//   - [TrackMatch] / [TrackMetadata] : catalog resolution of a ranked group
//   - [Playlist] : target playlist metadata from the catalog service
//
// 2. Persistent Entities: journal records with full lifecycle management
//   - [Run] : one harvest execution and its statistics
//   - [RunTrack] : a track published by a run, in playlist order
//
// [Run] implements [Model]; the journal store implements [Repository] for it.
package models
