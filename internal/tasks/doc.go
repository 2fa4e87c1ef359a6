// Package tasks turns a window of broadcast history into ranked playlists, with real-time progress reporting.
//
// # Core Operations
//
//  1. [Collector.CollectSince] : backward walk through the history feed
//     - Starts at now and follows each page's end cursor into the past
//     - Stops after the page cap, when the feed has no next page, or past the lookback boundary
//     - Retries each page under a [RetryPolicy]; exhausted retries abort the walk
//
//  2. [Rank] : occurrence ranking
//     - Groups events by exact title and counts them
//     - Orders by count descending, ties by first appearance
//     - Splits out the titles heard exactly once
//
//  3. [Harvester.Run] : the full pipeline
//     - Collects and ranks, then checks both target playlists are reachable
//     - Resolves candidates against the catalog at a limited rate
//     - Orders by plays and popularity, then replaces each playlist's contents
//
// # Progress Reporting
//
// All operations use non-blocking channels for progress updates.
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data for advanced UI rendering.
// Updates use select with default to prevent blocking.
//
// # Run Journal
//
// The optional [RunJournal] records each run and the tracks it published (repositories.RunRepository).
// Journal errors are logged and never fail a run. Nothing in the journal is read back into a ranking.
package tasks
