package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/fiply/internal/server"
	"github.com/desertthunder/fiply/internal/services"
	"github.com/desertthunder/fiply/internal/shared"
)

// AuthLogin runs the authorization code flow against a local callback server and stores the
// resulting tokens in the config file.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	creds := r.config.Credentials.Spotify
	if creds.ClientID == "" || creds.ClientSecret == "" {
		return fmt.Errorf("%w: Spotify client_id and client_secret must be set in %s or .env", shared.ErrMissingCredentials, r.configPath)
	}

	svc, err := services.NewSpotifyService(creds.Map())
	if err != nil {
		return fmt.Errorf("failed to create Spotify service: %w", err)
	}

	state, err := shared.GenerateState()
	if err != nil {
		return fmt.Errorf("failed to generate state token: %w", err)
	}

	handler := server.NewOAuthHandler(svc.OAuthConfig(), state)
	srv := server.NewCallbackServer(r.config.Server, handler, r.logger)
	if err := srv.Start(); err != nil {
		return err
	}

	authURL := svc.GetAuthURL(state)
	if cmd.Bool("no-browser") {
		r.writePlain("Open this URL in your browser:\n%s\n\n", authURL)
	} else {
		r.writePlain("→ Opening browser for Spotify authorization...\n")
		if err := shared.OpenBrowser(authURL); err != nil {
			r.logger.Warnf("failed to open browser automatically %v", err)
			r.writePlainln("⚠ Could not open browser automatically.")
			r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
		}
	}

	timeout := cmd.Duration("timeout")
	r.writePlain("→ Waiting for authorization (%s timeout)...\n", timeout)

	token, err := srv.Wait(ctx, timeout)
	if err != nil {
		return err
	}

	if err := r.saveTokens(token); err != nil {
		return err
	}

	svc.SetToken(ctx, token)
	if user, err := svc.UserProfile(ctx); err == nil {
		r.writePlainln("✓ Authorized as %s", displayName(user))
	} else {
		r.logger.Warn("authorized, but the profile lookup failed", "error", err)
		r.writePlainln("✓ Authorization successful")
	}
	r.writePlain("✓ Tokens saved to %s\n\n", r.configPath)
	r.writePlain("You can now use: fiply run --dry-run\n")
	return nil
}

// AuthStatus checks that the stored token still works.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	svc, err := r.spotifyService(ctx)
	if err != nil {
		return err
	}

	user, err := svc.UserProfile(ctx)
	if err != nil {
		return err
	}

	r.writePlain("✓ Authorized as %s\n", displayName(user))
	if user.Product != "" {
		r.writePlain("Account: %s\n", user.Product)
	}
	return nil
}

func displayName(u *services.SpotifyUser) string {
	if u.DisplayName != "" {
		return fmt.Sprintf("%s (%s)", u.DisplayName, u.ID)
	}
	return u.ID
}
