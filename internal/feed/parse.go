package feed

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/fiply/internal/models"
	"github.com/desertthunder/fiply/internal/shared"
)

// historyEnvelope locates data.timelineCursor in the GraphQL response.
type historyEnvelope struct {
	Data *struct {
		TimelineCursor *struct {
			Edges    json.RawMessage `json:"edges"`
			PageInfo json.RawMessage `json:"pageInfo"`
		} `json:"timelineCursor"`
	} `json:"data"`
}

type rawPageInfo struct {
	EndCursor   *string `json:"endCursor"`
	HasNextPage *bool   `json:"hasNextPage"`
}

type rawEdge struct {
	Node *rawNode `json:"node"`
}

type rawNode struct {
	Album        *string  `json:"album"`
	Subtitle     *string  `json:"subtitle"`
	Interpreters []string `json:"interpreters"`
	Year         *int     `json:"year"`
	StartTime    *int64   `json:"start_time"`
}

// parseHistory decodes a feed response body into a [models.Page].
//
// Envelope problems fail the whole page with [shared.ErrMalformedResponse]. Records that do not
// decode are logged and skipped; dropped reports how many.
func parseHistory(body []byte, logger *log.Logger) (page *models.Page, dropped int, err error) {
	var env historyEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, 0, fmt.Errorf("%w: invalid JSON: %v", shared.ErrMalformedResponse, err)
	}
	if env.Data == nil || env.Data.TimelineCursor == nil {
		return nil, 0, fmt.Errorf("%w: data.timelineCursor not found", shared.ErrMalformedResponse)
	}
	cursor := env.Data.TimelineCursor

	info, err := parsePageInfo(cursor.PageInfo)
	if err != nil {
		return nil, 0, err
	}

	edges, err := splitEdges(cursor.Edges)
	if err != nil {
		return nil, 0, err
	}

	events := make([]models.PlayEvent, 0, len(edges))
	for i, raw := range edges {
		ev, err := parseRecord(raw)
		if err != nil {
			dropped++
			if logger != nil {
				logger.Warn("dropping feed record", "index", i, "error", err, "record", string(raw))
			}
			continue
		}
		events = append(events, ev)
	}

	return &models.Page{Events: events, Info: info}, dropped, nil
}

func parsePageInfo(raw json.RawMessage) (models.PageInfo, error) {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return models.PageInfo{}, fmt.Errorf("%w: pageInfo not found", shared.ErrMalformedResponse)
	}

	var info rawPageInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return models.PageInfo{}, fmt.Errorf("%w: invalid pageInfo: %v", shared.ErrMalformedResponse, err)
	}
	if info.EndCursor == nil || info.HasNextPage == nil {
		return models.PageInfo{}, fmt.Errorf("%w: pageInfo requires endCursor and hasNextPage", shared.ErrMalformedResponse)
	}

	return models.PageInfo{EndCursor: models.Cursor(*info.EndCursor), HasNextPage: *info.HasNextPage}, nil
}

// splitEdges returns the raw elements of the edges array. A null array is an empty page.
func splitEdges(raw json.RawMessage) ([]json.RawMessage, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: edges not found", shared.ErrMalformedResponse)
	}
	if bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	var edges []json.RawMessage
	if err := json.Unmarshal(raw, &edges); err != nil {
		return nil, fmt.Errorf("%w: edges is not an array: %v", shared.ErrMalformedResponse, err)
	}
	return edges, nil
}

// parseRecord decodes one edge. subtitle and start_time are required; album and interpreters may be null.
func parseRecord(raw json.RawMessage) (models.PlayEvent, error) {
	var edge rawEdge
	if err := json.Unmarshal(raw, &edge); err != nil {
		return models.PlayEvent{}, fmt.Errorf("%w: %v", shared.ErrMalformedRecord, err)
	}

	node := edge.Node
	switch {
	case node == nil:
		return models.PlayEvent{}, fmt.Errorf("%w: missing node", shared.ErrMalformedRecord)
	case node.Subtitle == nil:
		return models.PlayEvent{}, fmt.Errorf("%w: missing subtitle", shared.ErrMalformedRecord)
	case node.StartTime == nil:
		return models.PlayEvent{}, fmt.Errorf("%w: missing start_time", shared.ErrMalformedRecord)
	case *node.StartTime < 0:
		return models.PlayEvent{}, fmt.Errorf("%w: negative start_time %d", shared.ErrMalformedRecord, *node.StartTime)
	}

	ev := models.PlayEvent{
		Title:        *node.Subtitle,
		Interpreters: node.Interpreters,
		Year:         node.Year,
		StartTime:    *node.StartTime,
	}
	if node.Album != nil {
		ev.Album = *node.Album
	}
	if ev.Interpreters == nil {
		ev.Interpreters = []string{}
	}
	return ev, nil
}
