package models

import "time"

// PlayEvent is one historical broadcast of a track.
//
// Title is the grouping key for ranking. It is not globally unique: two different
// tracks sharing a title are counted together.
type PlayEvent struct {
	Album        string   `json:"album"`
	Title        string   `json:"title"`
	Interpreters []string `json:"interpreters"`
	Year         *int     `json:"year,omitempty"`
	StartTime    int64    `json:"start_time"` // seconds since epoch
}

// PrimaryInterpreter returns the first performer, or "" when none is listed.
func (e PlayEvent) PrimaryInterpreter() string {
	if len(e.Interpreters) == 0 {
		return ""
	}
	return e.Interpreters[0]
}

// Started returns StartTime as a [time.Time].
func (e PlayEvent) Started() time.Time {
	return time.Unix(e.StartTime, 0)
}

// Cursor is the feed's opaque continuation token. Its decoded form is a point in time.
type Cursor string

// PageInfo carries the continuation state returned with a page.
type PageInfo struct {
	EndCursor   Cursor `json:"endCursor"`
	HasNextPage bool   `json:"hasNextPage"`
}

// Page is the result of one history fetch. Events keep the order returned by the feed.
type Page struct {
	Events []PlayEvent
	Info   PageInfo
}

// RankedGroup aggregates all events sharing a title.
//
// Event is one representative occurrence, not a merge: its album and interpreters
// come from a single broadcast.
type RankedGroup struct {
	Event PlayEvent `json:"event"`
	Count int       `json:"count"`
}

// TrackMatch is the best catalog match for a ranked group.
type TrackMatch struct {
	ID         string `json:"id"`
	URI        string `json:"uri"`
	Name       string `json:"name"`
	Popularity int    `json:"popularity"`
}

// TrackMetadata joins a ranked group with its catalog match.
type TrackMetadata struct {
	Event      PlayEvent `json:"event"`
	Plays      int       `json:"plays"`
	URI        string    `json:"uri"`
	Popularity int       `json:"popularity"`
}

// Playlist represents playlist metadata from the catalog service.
type Playlist struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	TrackCount int    `json:"track_count"`
	Public     bool   `json:"public"`
}
