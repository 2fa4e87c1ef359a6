// package services defines the catalog interfaces used to resolve and publish tracks
//
// Spotify
package services

import (
	"context"

	"github.com/desertthunder/fiply/internal/models"
	"golang.org/x/oauth2"
)

// Disambiguator selects the second search field used alongside the title.
type Disambiguator string

const (
	ByAlbum  Disambiguator = "album"
	ByArtist Disambiguator = "artist"
)

// ParseDisambiguator maps a configuration value to a [Disambiguator], defaulting to [ByAlbum].
func ParseDisambiguator(s string) Disambiguator {
	if Disambiguator(s) == ByArtist {
		return ByArtist
	}
	return ByAlbum
}

// CatalogResolver finds the best catalog track for a broadcast.
type CatalogResolver interface {
	// ResolveTrack returns the best match, or nil with no error when the catalog has none.
	ResolveTrack(ctx context.Context, title, disambiguator string, kind Disambiguator) (*models.TrackMatch, error)
}

// PlaylistPublisher overwrites a playlist's contents.
type PlaylistPublisher interface {
	// ReplacePlaylist sets the playlist to exactly uris, in order. Repeating the call is harmless.
	ReplacePlaylist(ctx context.Context, playlistID string, uris []string) error
}

// PlaylistChecker confirms a playlist exists and is reachable with the current credentials.
type PlaylistChecker interface {
	GetPlaylist(ctx context.Context, playlistID string) (*models.Playlist, error)
}

// Catalog is a music service that can resolve, check and publish.
type Catalog interface {
	CatalogResolver
	PlaylistPublisher
	PlaylistChecker

	// Name returns the name of the service (e.g., "Spotify")
	Name() string
}

// OAuthService is a [Catalog] authorized through the OAuth2 authorization code flow.
type OAuthService interface {
	Catalog

	// Authenticate installs a token from access_token/refresh_token or exchanges an auth_code.
	Authenticate(ctx context.Context, credentials map[string]string) error

	GetAuthURL(state string) string
	OAuthConfig() *oauth2.Config
	SetTokenRefreshCallback(callback func(*oauth2.Token))
}
