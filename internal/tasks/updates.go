package tasks

import (
	"fmt"
	"time"

	"github.com/desertthunder/fiply/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase, 0 when unknown
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	FetchHistory Phase = iota
	RankTracks
	CheckPlaylists
	ResolveTracks
	PublishPlaylist
)

func (p Phase) String() string {
	switch p {
	case FetchHistory:
		return "fetch_history"
	case RankTracks:
		return "rank_tracks"
	case CheckPlaylists:
		return "check_playlists"
	case ResolveTracks:
		return "resolve_tracks"
	case PublishPlaylist:
		return "publish_playlist"
	default:
		return ""
	}
}

// sendProgress sends a progress update through the channel without blocking.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
		// Channel full, skip this update
	}
}

func fetchPageUpdate(step, total, events int, reached time.Time) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchHistory,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Fetched page %d (%d events, back to %s)", step, events, reached.Format("2006-01-02 15:04")),
		Data:    reached,
	}
}

func rankUpdate(events int, ranking Ranking) ProgressUpdate {
	return ProgressUpdate{
		Phase:   RankTracks,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Ranked %d events into %d titles (%d played once)", events, len(ranking.MostPlayed), len(ranking.PlayedOnce)),
		Data:    ranking,
	}
}

func checkPlaylistUpdate(step, total int, pl *models.Playlist) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CheckPlaylists,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Playlist reachable: %s (%d tracks)", pl.Name, pl.TrackCount),
		Data:    pl,
	}
}

func resolveUpdate(step, total int, group models.RankedGroup, match *models.TrackMatch) ProgressUpdate {
	mark := "✗"
	if match != nil {
		mark = "✓"
	}
	return ProgressUpdate{
		Phase:   ResolveTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s %s - %s", step, total, mark, group.Event.PrimaryInterpreter(), group.Event.Title),
		Data:    match,
	}
}

func publishUpdate(step, total int, name string, tracks int, dryRun bool) ProgressUpdate {
	msg := fmt.Sprintf("Published %d tracks to %s", tracks, name)
	if dryRun {
		msg = fmt.Sprintf("Dry run: would publish %d tracks to %s", tracks, name)
	}
	return ProgressUpdate{
		Phase:   PublishPlaylist,
		Step:    step,
		Total:   total,
		Message: msg,
	}
}
