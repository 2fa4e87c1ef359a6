// Package services defines the catalog interfaces the harvest depends on and implements them for Spotify.
//
// # Interfaces
//
// The harvest only needs three capabilities, each behind its own interface so tests can fake them
// independently:
//   - [CatalogResolver] finds at most one track for a title plus album or artist
//   - [PlaylistChecker] confirms a target playlist is reachable before any work is done
//   - [PlaylistPublisher] replaces a playlist's contents in full
//
// # Spotify Implementation
//
// [SpotifyService] uses OAuth2 for authentication with automatic token refresh.
// Refreshed tokens are reported through [SpotifyService.SetTokenRefreshCallback] so the CLI can
// persist them to the config file.
//
// # Error Handling
//
// Services use typed errors from shared package:
//   - [shared.ErrNotAuthenticated] : Authenticate() not called
//   - [shared.ErrTokenExpired] : HTTP 401, reauthorization needed
//   - [shared.ErrPlaylistNotFound] : HTTP 404
//   - [shared.ErrAPIRequest] : any other failed request
//   - [shared.ErrInvalidInput] : a replace with more than 100 tracks
package services
