// Spotify API implementation of [Catalog]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/desertthunder/fiply/internal/models"
	"github.com/desertthunder/fiply/internal/shared"
	"golang.org/x/oauth2"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"

	// MaxReplaceTracks is the most URIs a single replace request accepts.
	MaxReplaceTracks = 100

	defaultRedirectURI = "http://127.0.0.1:3000/callback"
)

// SpotifyUser represents a Spotify user profile.
type SpotifyUser struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Country     string `json:"country"`
	Product     string `json:"product"` // premium, free, etc.
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Artists    []SpotifyArtist `json:"artists"`
	Album      SpotifyAlbum    `json:"album"`
	DurationMS int             `json:"duration_ms"`
	Popularity int             `json:"popularity"`
	URI        string          `json:"uri"`
}

// SpotifyArtist represents a Spotify artist.
type SpotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URI  string `json:"uri"`
}

// SpotifyAlbum represents a Spotify album.
type SpotifyAlbum struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ReleaseDate string `json:"release_date"`
	URI         string `json:"uri"`
}

type owner struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

type playlistTracks struct {
	Total int `json:"total"`
}

// SpotifyPlaylist represents a Spotify playlist.
type SpotifyPlaylist struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Owner       owner          `json:"owner"`
	Public      bool           `json:"public"`
	Tracks      playlistTracks `json:"tracks"`
	SnapshotID  string         `json:"snapshot_id"`
	URI         string         `json:"uri"`
}

// SpotifySearchResult is the tracks section of a search response.
type SpotifySearchResult struct {
	Tracks struct {
		Items []SpotifyTrack `json:"items"`
		Total int            `json:"total"`
	} `json:"tracks"`
}

type replaceTracksRequest struct {
	URIs []string `json:"uris"`
}

type snapshotResponse struct {
	SnapshotID string `json:"snapshot_id"`
}

// SpotifyService implements [OAuthService] for Spotify API interactions.
// Uses [oauth2] for authentication and provides methods for search and playlist operations.
type SpotifyService struct {
	config         *oauth2.Config
	token          *oauth2.Token
	httpClient     *http.Client
	baseURL        string
	credentials    map[string]string
	onTokenRefresh func(*oauth2.Token)
	mu             sync.RWMutex
}

// NewSpotifyService creates a new Spotify service with the given OAuth2 credentials.
func NewSpotifyService(credentials map[string]string) (*SpotifyService, error) {
	clientID, ok := credentials["client_id"]
	if !ok || clientID == "" {
		return nil, fmt.Errorf("%w: missing client_id in credentials", shared.ErrMissingCredentials)
	}

	clientSecret, ok := credentials["client_secret"]
	if !ok || clientSecret == "" {
		return nil, fmt.Errorf("%w: missing client_secret in credentials", shared.ErrMissingCredentials)
	}

	redirectURI, ok := credentials["redirect_uri"]
	if !ok || redirectURI == "" {
		redirectURI = defaultRedirectURI
	}

	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURI,
		Scopes: []string{
			"playlist-read-private",
			"playlist-modify-public",
			"playlist-modify-private",
		},
		Endpoint: oauth2.Endpoint{
			AuthURL:  spotifyAuthURL,
			TokenURL: spotifyTokenURL,
		},
	}

	return &SpotifyService{
		config:      config,
		httpClient:  http.DefaultClient,
		baseURL:     spotifyBaseURL,
		credentials: credentials,
	}, nil
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// SetBaseURL points API requests at a different host.
func (s *SpotifyService) SetBaseURL(u string) {
	s.baseURL = strings.TrimRight(u, "/")
}

// OAuthConfig returns the OAuth2 configuration used for the authorization code flow.
func (s *SpotifyService) OAuthConfig() *oauth2.Config {
	return s.config
}

// GetAuthURL returns the OAuth2 authorization URL for user login.
func (s *SpotifyService) GetAuthURL(state string) string {
	return s.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// SetTokenRefreshCallback registers a function called whenever the token source hands out a new token.
func (s *SpotifyService) SetTokenRefreshCallback(callback func(*oauth2.Token)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onTokenRefresh = callback
}

func (s *SpotifyService) notifyTokenRefresh(token *oauth2.Token) {
	s.mu.RLock()
	callback := s.onTokenRefresh
	s.mu.RUnlock()

	if callback != nil {
		callback(token)
	}
}

// Authenticate performs OAuth2 authentication with Spotify.
//
// Expects an "access_token" and/or "refresh_token", or an "auth_code" to exchange.
func (s *SpotifyService) Authenticate(ctx context.Context, credentials map[string]string) error {
	var token *oauth2.Token

	switch {
	case credentials["access_token"] != "" || credentials["refresh_token"] != "":
		token = &oauth2.Token{
			AccessToken:  credentials["access_token"],
			RefreshToken: credentials["refresh_token"],
			TokenType:    "Bearer",
		}
	case credentials["auth_code"] != "":
		exchanged, err := s.config.Exchange(ctx, credentials["auth_code"])
		if err != nil {
			return fmt.Errorf("%w: failed to exchange auth code: %v", shared.ErrAuthFailed, err)
		}
		token = exchanged
	default:
		return fmt.Errorf("%w: missing access_token, refresh_token or auth_code", shared.ErrMissingCredentials)
	}

	s.SetToken(ctx, token)
	return nil
}

// SetToken installs token and builds an HTTP client that refreshes it as needed.
func (s *SpotifyService) SetToken(ctx context.Context, token *oauth2.Token) {
	s.token = token
	source := &refreshableTokenSource{
		source:   s.config.TokenSource(ctx, token),
		callback: s.notifyTokenRefresh,
	}
	s.httpClient = oauth2.NewClient(ctx, source)
}

// refreshableTokenSource reports each token that differs from the last one it returned.
type refreshableTokenSource struct {
	source   oauth2.TokenSource
	callback func(*oauth2.Token)
	last     string
	mu       sync.Mutex
}

func (r *refreshableTokenSource) Token() (*oauth2.Token, error) {
	token, err := r.source.Token()
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	changed := token.AccessToken != r.last
	r.last = token.AccessToken
	r.mu.Unlock()

	if changed && r.callback != nil {
		r.safeCallback(token)
	}
	return token, nil
}

// safeCallback keeps a panicking callback from breaking the request that triggered it.
func (r *refreshableTokenSource) safeCallback(token *oauth2.Token) {
	defer func() { _ = recover() }()
	r.callback(token)
}

// doRequest performs an authenticated HTTP request to the Spotify API.
func (s *SpotifyService) doRequest(ctx context.Context, method, endpoint string, body any, result any) error {
	if s.token == nil {
		return fmt.Errorf("%w: call Authenticate first", shared.ErrNotAuthenticated)
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("spotify request cancelled: %w", ctx.Err())
		}
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%w: %s %s", shared.ErrTokenExpired, method, endpoint)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s %s", shared.ErrPlaylistNotFound, method, endpoint)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("%w: spotify API error: status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: failed to decode response: %v", shared.ErrAPIRequest, err)
		}
	}

	return nil
}

// UserProfile retrieves the current authenticated user's profile.
func (s *SpotifyService) UserProfile(ctx context.Context) (*SpotifyUser, error) {
	var user SpotifyUser
	if err := s.doRequest(ctx, http.MethodGet, "/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// SearchQuery builds the field-filtered search expression for a title and its disambiguator.
func SearchQuery(title, disambiguator string, kind Disambiguator) string {
	q := "track:" + title
	if disambiguator == "" {
		return q
	}
	if kind == ByArtist {
		return q + " artist:" + disambiguator
	}
	return q + " album:" + disambiguator
}

// Search returns up to limit tracks matching query.
func (s *SpotifyService) Search(ctx context.Context, query string, limit int) (*SpotifySearchResult, error) {
	if limit <= 0 {
		limit = 1
	}
	if limit > 50 {
		limit = 50
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("type", "track")
	params.Set("limit", fmt.Sprint(limit))

	var result SpotifySearchResult
	if err := s.doRequest(ctx, http.MethodGet, "/search?"+params.Encode(), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ResolveTrack returns the top search hit for title, or nil when nothing matches.
func (s *SpotifyService) ResolveTrack(ctx context.Context, title, disambiguator string, kind Disambiguator) (*models.TrackMatch, error) {
	if strings.TrimSpace(title) == "" {
		return nil, fmt.Errorf("%w: title is required", shared.ErrInvalidInput)
	}

	result, err := s.Search(ctx, SearchQuery(title, disambiguator, kind), 1)
	if err != nil {
		return nil, err
	}
	if len(result.Tracks.Items) == 0 {
		return nil, nil
	}

	track := result.Tracks.Items[0]
	uri := track.URI
	if uri == "" {
		uri = "spotify:track:" + track.ID
	}
	return &models.TrackMatch{
		ID:         track.ID,
		URI:        uri,
		Name:       track.Name,
		Popularity: track.Popularity,
	}, nil
}

// Playlist retrieves a playlist by ID.
func (s *SpotifyService) Playlist(ctx context.Context, playlistID string) (*SpotifyPlaylist, error) {
	endpoint := "/playlists/" + url.PathEscape(playlistID) + "?fields=id,name,description,owner,public,tracks.total,snapshot_id,uri"

	var playlist SpotifyPlaylist
	if err := s.doRequest(ctx, http.MethodGet, endpoint, nil, &playlist); err != nil {
		return nil, err
	}
	return &playlist, nil
}

// GetPlaylist retrieves a specific playlist by ID.
func (s *SpotifyService) GetPlaylist(ctx context.Context, playlistID string) (*models.Playlist, error) {
	if playlistID == "" {
		return nil, fmt.Errorf("%w: playlist id is required", shared.ErrInvalidInput)
	}

	sp, err := s.Playlist(ctx, playlistID)
	if err != nil {
		return nil, err
	}

	return &models.Playlist{
		ID:         sp.ID,
		Name:       sp.Name,
		TrackCount: sp.Tracks.Total,
		Public:     sp.Public,
	}, nil
}

// ReplacePlaylist overwrites the playlist's tracks with uris.
func (s *SpotifyService) ReplacePlaylist(ctx context.Context, playlistID string, uris []string) error {
	if playlistID == "" {
		return fmt.Errorf("%w: playlist id is required", shared.ErrInvalidInput)
	}
	if len(uris) > MaxReplaceTracks {
		return fmt.Errorf("%w: %d tracks exceeds the limit of %d", shared.ErrInvalidInput, len(uris), MaxReplaceTracks)
	}
	if uris == nil {
		uris = []string{}
	}

	endpoint := "/playlists/" + url.PathEscape(playlistID) + "/tracks"
	var snapshot snapshotResponse
	return s.doRequest(ctx, http.MethodPut, endpoint, replaceTracksRequest{URIs: uris}, &snapshot)
}
