// Package server runs the short-lived local HTTP server that completes the Spotify authorization
// code flow.
//
// # Router
//
// The [Router] interface defines HTTP routing with middleware support. [Middleware] wraps handlers
// in reverse order (last added executes first). [BasicRouter] uses [http.ServeMux] internally with
// method filtering. [Logging] and [Recover] are the middleware the CLI installs.
//
// # OAuth callback
//
// [OAuthHandler] validates the state parameter, exchanges the authorization code for a token and
// delivers exactly one [OAuthResult]. Later callbacks are rejected.
//
// [CallbackServer] binds the handler to the configured host and port, waits for the result or a
// timeout, then shuts the listener down. `fiply auth` is its only caller.
package server
