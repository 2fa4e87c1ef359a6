package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/desertthunder/fiply/internal/shared"
	"golang.org/x/oauth2"
)

func testCredentials() map[string]string {
	return map[string]string{
		"client_id":     "test_client_id",
		"client_secret": "test_client_secret",
	}
}

// newTestSpotify returns an authenticated service whose API requests go to handler.
func newTestSpotify(t *testing.T, handler http.HandlerFunc) *SpotifyService {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	sp, err := NewSpotifyService(testCredentials())
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	sp.SetBaseURL(srv.URL)
	if err := sp.Authenticate(context.Background(), map[string]string{"access_token": "test_access_token"}); err != nil {
		t.Fatalf("failed to authenticate: %v", err)
	}
	return sp
}

func TestSpotifyService(t *testing.T) {
	t.Run("NewSpotifyService", func(t *testing.T) {
		t.Run("With Valid Credentials", func(t *testing.T) {
			credentials := map[string]string{
				"client_id":     "test_client_id",
				"client_secret": "test_client_secret",
				"redirect_uri":  "http://127.0.0.1:4000/callback",
			}

			srv, err := NewSpotifyService(credentials)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			if srv == nil {
				t.Fatal("expected service to be created")
			}

			if srv.Name() != "Spotify" {
				t.Errorf("expected service name 'Spotify', got %s", srv.Name())
			}
			if srv.OAuthConfig().RedirectURL != "http://127.0.0.1:4000/callback" {
				t.Errorf("expected configured redirect URI, got %s", srv.OAuthConfig().RedirectURL)
			}
		})

		t.Run("Missing Client ID", func(t *testing.T) {
			_, err := NewSpotifyService(map[string]string{"client_secret": "test_client_secret"})
			if !errors.Is(err, shared.ErrMissingCredentials) {
				t.Errorf("expected ErrMissingCredentials, got %v", err)
			}
		})

		t.Run("Missing Client Secret", func(t *testing.T) {
			_, err := NewSpotifyService(map[string]string{"client_id": "test_client_id"})
			if !errors.Is(err, shared.ErrMissingCredentials) {
				t.Errorf("expected ErrMissingCredentials, got %v", err)
			}
		})

		t.Run("Default Redirect URI", func(t *testing.T) {
			srv, err := NewSpotifyService(testCredentials())
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			if srv.config.RedirectURL != defaultRedirectURI {
				t.Errorf("expected default redirect URI, got %s", srv.config.RedirectURL)
			}
		})

		t.Run("Requests Playlist Modify Scopes", func(t *testing.T) {
			srv, _ := NewSpotifyService(testCredentials())
			scopes := strings.Join(srv.config.Scopes, " ")
			if !strings.Contains(scopes, "playlist-modify-public") || !strings.Contains(scopes, "playlist-modify-private") {
				t.Errorf("expected playlist modify scopes, got %s", scopes)
			}
		})
	})

	t.Run("Get AuthURL", func(t *testing.T) {
		srv, err := NewSpotifyService(testCredentials())
		if err != nil {
			t.Fatalf("failed to create service: %v", err)
		}

		authURL := srv.GetAuthURL("test_state")
		if !strings.Contains(authURL, "accounts.spotify.com") {
			t.Error("auth URL should contain Spotify domain")
		}
		if !strings.Contains(authURL, "test_client_id") {
			t.Error("auth URL should contain client_id")
		}
		if !strings.Contains(authURL, "test_state") {
			t.Error("auth URL should contain state")
		}
	})

	t.Run("Authenticate", func(t *testing.T) {
		srv, err := NewSpotifyService(testCredentials())
		if err != nil {
			t.Fatalf("failed to create service: %v", err)
		}

		t.Run("WithAccessToken", func(t *testing.T) {
			err := srv.Authenticate(context.Background(), map[string]string{"access_token": "test_access_token"})
			if err != nil {
				t.Errorf("expected no error with access token, got %v", err)
			}
			if srv.token == nil || srv.token.AccessToken != "test_access_token" {
				t.Errorf("expected access token to be set, got %+v", srv.token)
			}
		})

		t.Run("WithRefreshToken", func(t *testing.T) {
			err := srv.Authenticate(context.Background(), map[string]string{"refresh_token": "test_refresh_token"})
			if err != nil {
				t.Errorf("expected no error with refresh token, got %v", err)
			}
			if srv.token.RefreshToken != "test_refresh_token" {
				t.Errorf("expected refresh token to be set, got %s", srv.token.RefreshToken)
			}
		})

		t.Run("Missing Credentials", func(t *testing.T) {
			err := srv.Authenticate(context.Background(), map[string]string{})
			if !errors.Is(err, shared.ErrMissingCredentials) {
				t.Errorf("expected ErrMissingCredentials, got %v", err)
			}
		})
	})

	t.Run("Service Interface", func(t *testing.T) {
		srv, err := NewSpotifyService(testCredentials())
		if err != nil {
			t.Fatalf("failed to create service: %v", err)
		}

		var _ OAuthService = srv
	})

	t.Run("Not Authenticated", func(t *testing.T) {
		srv, _ := NewSpotifyService(testCredentials())

		_, err := srv.GetPlaylist(context.Background(), "abc")
		if !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
	})

	t.Run("ResolveTrack", func(t *testing.T) {
		t.Run("Returns Top Hit", func(t *testing.T) {
			var gotQuery, gotAuth string
			srv := newTestSpotify(t, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/search" {
					t.Errorf("expected /search, got %s", r.URL.Path)
				}
				gotQuery = r.URL.Query().Get("q")
				gotAuth = r.Header.Get("Authorization")
				if r.URL.Query().Get("type") != "track" || r.URL.Query().Get("limit") != "1" {
					t.Errorf("unexpected search params %s", r.URL.RawQuery)
				}
				fmt.Fprint(w, `{"tracks":{"total":1,"items":[{"id":"4uLU6hMCjMI75M1A2tKUQC","name":"Cheney Lane","popularity":42,"uri":"spotify:track:4uLU6hMCjMI75M1A2tKUQC"}]}}`)
			})

			match, err := srv.ResolveTrack(context.Background(), "Cheney Lane", "Café Kitsuné mix", ByAlbum)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if match == nil {
				t.Fatal("expected a match")
			}
			if match.URI != "spotify:track:4uLU6hMCjMI75M1A2tKUQC" || match.Popularity != 42 {
				t.Errorf("unexpected match %+v", match)
			}
			if gotQuery != "track:Cheney Lane album:Café Kitsuné mix" {
				t.Errorf("unexpected query %q", gotQuery)
			}
			if gotAuth != "Bearer test_access_token" {
				t.Errorf("expected bearer token, got %q", gotAuth)
			}
		})

		t.Run("No Hit", func(t *testing.T) {
			srv := newTestSpotify(t, func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{"tracks":{"total":0,"items":[]}}`)
			})

			match, err := srv.ResolveTrack(context.Background(), "Unknown", "", ByAlbum)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if match != nil {
				t.Errorf("expected no match, got %+v", match)
			}
		})

		t.Run("Empty Title", func(t *testing.T) {
			srv := newTestSpotify(t, func(w http.ResponseWriter, r *http.Request) {
				t.Error("no request expected")
			})

			_, err := srv.ResolveTrack(context.Background(), "  ", "album", ByAlbum)
			if !errors.Is(err, shared.ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})

		t.Run("Server Error", func(t *testing.T) {
			srv := newTestSpotify(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			})

			_, err := srv.ResolveTrack(context.Background(), "Song", "", ByArtist)
			if !errors.Is(err, shared.ErrAPIRequest) {
				t.Errorf("expected ErrAPIRequest, got %v", err)
			}
		})
	})

	t.Run("SearchQuery", func(t *testing.T) {
		tests := []struct {
			name  string
			title string
			dis   string
			kind  Disambiguator
			want  string
		}{
			{name: "Album", title: "Song", dis: "Record", kind: ByAlbum, want: "track:Song album:Record"},
			{name: "Artist", title: "Song", dis: "Band", kind: ByArtist, want: "track:Song artist:Band"},
			{name: "Title Only", title: "Song", kind: ByAlbum, want: "track:Song"},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				if got := SearchQuery(tt.title, tt.dis, tt.kind); got != tt.want {
					t.Errorf("expected %q, got %q", tt.want, got)
				}
			})
		}
	})

	t.Run("ReplacePlaylist", func(t *testing.T) {
		t.Run("Puts URIs In Order", func(t *testing.T) {
			var body replaceTracksRequest
			srv := newTestSpotify(t, func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPut {
					t.Errorf("expected PUT, got %s", r.Method)
				}
				if r.URL.Path != "/playlists/4Qghjo06iuI9rhqtzE4Ved/tracks" {
					t.Errorf("unexpected path %s", r.URL.Path)
				}
				if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
					t.Errorf("failed to decode body: %v", err)
				}
				w.WriteHeader(http.StatusCreated)
				fmt.Fprint(w, `{"snapshot_id":"abc"}`)
			})

			uris := []string{"spotify:track:1", "spotify:track:2"}
			if err := srv.ReplacePlaylist(context.Background(), "4Qghjo06iuI9rhqtzE4Ved", uris); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if len(body.URIs) != 2 || body.URIs[0] != uris[0] || body.URIs[1] != uris[1] {
				t.Errorf("unexpected uris %v", body.URIs)
			}
		})

		t.Run("Too Many Tracks", func(t *testing.T) {
			srv := newTestSpotify(t, func(w http.ResponseWriter, r *http.Request) {
				t.Error("no request expected")
			})

			uris := make([]string, MaxReplaceTracks+1)
			err := srv.ReplacePlaylist(context.Background(), "abc", uris)
			if !errors.Is(err, shared.ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})

		t.Run("Expired Token", func(t *testing.T) {
			srv := newTestSpotify(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
			})

			err := srv.ReplacePlaylist(context.Background(), "abc", []string{"spotify:track:1"})
			if !errors.Is(err, shared.ErrTokenExpired) {
				t.Errorf("expected ErrTokenExpired, got %v", err)
			}
		})
	})

	t.Run("GetPlaylist", func(t *testing.T) {
		t.Run("Maps Playlist", func(t *testing.T) {
			srv := newTestSpotify(t, func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{"id":"0oBom1VXOlWovYSLupNmrS","name":"What the Fip ?!","public":true,"tracks":{"total":87}}`)
			})

			pl, err := srv.GetPlaylist(context.Background(), "0oBom1VXOlWovYSLupNmrS")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if pl.Name != "What the Fip ?!" || pl.TrackCount != 87 || !pl.Public {
				t.Errorf("unexpected playlist %+v", pl)
			}
		})

		t.Run("Not Found", func(t *testing.T) {
			srv := newTestSpotify(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
			})

			_, err := srv.GetPlaylist(context.Background(), "missing")
			if !errors.Is(err, shared.ErrPlaylistNotFound) {
				t.Errorf("expected ErrPlaylistNotFound, got %v", err)
			}
		})
	})

	t.Run("UserProfile", func(t *testing.T) {
		srv := newTestSpotify(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/me" {
				t.Errorf("expected /me, got %s", r.URL.Path)
			}
			fmt.Fprint(w, `{"id":"fiply","display_name":"Fiply Bot","product":"premium"}`)
		})

		user, err := srv.UserProfile(context.Background())
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if user.DisplayName != "Fiply Bot" {
			t.Errorf("unexpected user %+v", user)
		}
	})

	t.Run("SetTokenRefreshCallback", func(t *testing.T) {
		srv, err := NewSpotifyService(testCredentials())
		if err != nil {
			t.Fatalf("failed to create service: %v", err)
		}

		t.Run("sets callback successfully", func(t *testing.T) {
			srv.SetTokenRefreshCallback(func(token *oauth2.Token) {
				// Callback set for testing
			})

			if srv.onTokenRefresh == nil {
				t.Error("expected callback to be set")
			}
		})

		t.Run("can set nil callback", func(t *testing.T) {
			srv.SetTokenRefreshCallback(nil)
			if srv.onTokenRefresh != nil {
				t.Error("expected callback to be nil")
			}
		})

		t.Run("callback can be replaced", func(t *testing.T) {
			srv.SetTokenRefreshCallback(func(token *oauth2.Token) {
				// First callback
			})

			srv.SetTokenRefreshCallback(func(token *oauth2.Token) {
				// Second callback
			})

			if srv.onTokenRefresh == nil {
				t.Error("expected callback to be set")
			}
		})
	})

	t.Run("refreshableTokenSource", func(t *testing.T) {
		t.Run("calls callback on first token fetch", func(t *testing.T) {
			callbackCalled := false
			var capturedToken *oauth2.Token

			mockSource := &mockTokenSource{
				token: &oauth2.Token{AccessToken: "test_token"},
			}

			source := &refreshableTokenSource{
				source: mockSource,
				callback: func(token *oauth2.Token) {
					callbackCalled = true
					capturedToken = token
				},
			}

			token, err := source.Token()
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			if !callbackCalled {
				t.Error("expected callback to be called on first fetch")
			}
			if capturedToken == nil {
				t.Error("expected token to be captured")
			}
			if capturedToken.AccessToken != "test_token" {
				t.Errorf("expected captured token to be 'test_token', got %s", capturedToken.AccessToken)
			}
			if token.AccessToken != "test_token" {
				t.Errorf("expected returned token to be 'test_token', got %s", token.AccessToken)
			}
		})

		t.Run("calls callback when token changes", func(t *testing.T) {
			callCount := 0
			var capturedTokens []*oauth2.Token

			mockSource := &mockTokenSource{
				token: &oauth2.Token{AccessToken: "token1"},
			}

			source := &refreshableTokenSource{
				source: mockSource,
				callback: func(token *oauth2.Token) {
					callCount++
					capturedTokens = append(capturedTokens, token)
				},
			}

			_, _ = source.Token()
			if callCount != 1 {
				t.Errorf("expected callback called once, got %d", callCount)
			}

			mockSource.token = &oauth2.Token{AccessToken: "token2"}
			token2, _ := source.Token()

			if callCount != 2 {
				t.Errorf("expected callback called twice, got %d", callCount)
			}
			if len(capturedTokens) != 2 {
				t.Errorf("expected 2 captured tokens, got %d", len(capturedTokens))
			}
			if token2.AccessToken != "token2" {
				t.Errorf("expected new token, got %s", token2.AccessToken)
			}
		})

		t.Run("doesn't call callback when token unchanged", func(t *testing.T) {
			callCount := 0

			mockSource := &mockTokenSource{
				token: &oauth2.Token{AccessToken: "same_token"},
			}

			source := &refreshableTokenSource{
				source: mockSource,
				callback: func(token *oauth2.Token) {
					callCount++
				},
			}

			source.Token()
			source.Token()
			source.Token()

			if callCount != 1 {
				t.Errorf("expected callback called once, got %d", callCount)
			}
		})

		t.Run("handles nil callback gracefully", func(t *testing.T) {
			mockSource := &mockTokenSource{
				token: &oauth2.Token{AccessToken: "test_token"},
			}

			source := &refreshableTokenSource{
				source:   mockSource,
				callback: nil,
			}

			token, err := source.Token()
			if err != nil {
				t.Fatalf("expected no error with nil callback, got %v", err)
			}
			if token.AccessToken != "test_token" {
				t.Error("expected token to be returned despite nil callback")
			}
		})

		t.Run("propagates source errors", func(t *testing.T) {
			mockSource := &mockTokenSource{
				err: errors.New("token source error"),
			}

			source := &refreshableTokenSource{
				source: mockSource,
				callback: func(token *oauth2.Token) {
					t.Error("callback should not be called on error")
				},
			}

			token, err := source.Token()
			if err == nil {
				t.Fatal("expected error from source")
			}
			if !strings.Contains(err.Error(), "token source error") {
				t.Errorf("expected source error, got %v", err)
			}
			if token != nil {
				t.Error("expected nil token on error")
			}
		})

		t.Run("handles callback panic gracefully", func(t *testing.T) {
			defer func() {
				if r := recover(); r != nil {
					t.Error("expected panic to be contained within callback")
				}
			}()

			mockSource := &mockTokenSource{
				token: &oauth2.Token{AccessToken: "test_token"},
			}

			source := &refreshableTokenSource{
				source: mockSource,
				callback: func(token *oauth2.Token) {
					panic("callback panic")
				},
			}

			func() {
				defer func() {
					_ = recover()
				}()
				source.Token()
			}()
		})
	})
}

// mockTokenSource implements [oauth2.TokenSource] for testing
type mockTokenSource struct {
	token *oauth2.Token
	err   error
}

func (m *mockTokenSource) Token() (*oauth2.Token, error) {
	return m.token, m.err
}
