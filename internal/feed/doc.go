// Package feed reads the station's paged play-history feed.
//
// # Cursor Codec
//
// The feed paginates backward in time with an opaque continuation token: the base64 encoding of
// the decimal count of seconds since epoch. [EncodeCursor] and [DecodeCursor] convert between the
// token and a [time.Time]. Decoding fails with [shared.ErrMalformedCursor]; no range check is done.
//
// # History Fetcher
//
// [Client.Fetch] issues exactly one GraphQL GET (persisted query) for the events at or before a
// point in time and returns a [models.Page]. Failures are classified for the caller's retry policy:
//   - [shared.ErrTransport] : connection error, timeout or non-2xx status
//   - [shared.ErrMalformedResponse] : body is not JSON or the edges/pageInfo envelope is missing
//
// Individual records that fail to decode are dropped with a warning and never fail the page.
// The client performs no retry.
package feed
