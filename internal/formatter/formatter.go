// Package formatter renders ranking and harvest reports as JSON, CSV, Markdown or plain text.
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/fiply/internal/models"
	"github.com/desertthunder/fiply/internal/shared"
	"github.com/desertthunder/fiply/internal/tasks"
)

// Format names an output encoding for a report.
type Format string

const (
	FormatJSON     Format = "json"
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
	FormatText     Format = "text"
)

// ParseFormat accepts a format name or its common file extension.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "text", "txt", "":
		return FormatText, nil
	}
	return "", fmt.Errorf("%w: unknown report format %q", shared.ErrInvalidArgument, s)
}

// Extension returns the file extension used for the format, without the dot.
func (f Format) Extension() string {
	switch f {
	case FormatMarkdown:
		return "md"
	case FormatText:
		return "txt"
	default:
		return string(f)
	}
}

// Entry is one ranked title in a report.
type Entry struct {
	Rank         int      `json:"rank"`
	Title        string   `json:"title"`
	Plays        int      `json:"plays"`
	Album        string   `json:"album,omitempty"`
	Interpreters []string `json:"interpreters,omitempty"`
	Year         *int     `json:"year,omitempty"`
	LastPlayed   int64    `json:"last_played"`
	URI          string   `json:"uri,omitempty"`
	Popularity   *int     `json:"popularity,omitempty"`
}

// Section is a titled list of entries, either ranking candidates or published tracks.
type Section struct {
	Name       string   `json:"name"`
	PlaylistID string   `json:"playlist_id,omitempty"`
	Published  bool     `json:"published"`
	Entries    []Entry  `json:"entries"`
	Misses     []string `json:"misses,omitempty"`
}

// Report summarizes a ranking, and the publishing outcome when a harvest ran.
type Report struct {
	GeneratedAt time.Time `json:"generated_at"`
	RunID       string    `json:"run_id,omitempty"`
	Boundary    time.Time `json:"boundary"`
	Pages       int       `json:"pages"`
	Events      int       `json:"events"`
	Titles      int       `json:"titles"`
	Partial     bool      `json:"partial"`
	DryRun      bool      `json:"dry_run"`
	Sections    []Section `json:"sections"`
}

// NewRankingReport builds a report from the ranking alone.
//
// The most played section holds the candidates at rank; the played once section is truncated to
// once entries when once is positive.
func NewRankingReport(ranking tasks.Ranking, stats *tasks.CollectStats, rank, once int, at time.Time) *Report {
	r := newReport(stats, ranking, at)
	r.Sections = []Section{
		{Name: "Most played", Entries: groupEntries(ranking.MostPlayedCandidates(rank))},
		{Name: "Played once", Entries: groupEntries(ranking.PlayedOnceCandidates(once))},
	}
	return r
}

// NewHarvestReport builds a report of the tracks each playlist received.
func NewHarvestReport(result *tasks.HarvestResult, at time.Time) *Report {
	r := newReport(result.Stats, result.Ranking, at)
	r.RunID = result.RunID
	r.DryRun = result.DryRun
	r.Sections = []Section{playlistSection(result.MostPlayed), playlistSection(result.PlayedOnce)}
	return r
}

func newReport(stats *tasks.CollectStats, ranking tasks.Ranking, at time.Time) *Report {
	r := &Report{GeneratedAt: at.UTC(), Titles: len(ranking.MostPlayed), Events: ranking.Plays()}
	if stats != nil {
		r.Boundary = stats.Boundary.UTC()
		r.Pages = stats.Pages
		r.Partial = stats.Partial
	}
	return r
}

func groupEntries(groups []models.RankedGroup) []Entry {
	entries := make([]Entry, len(groups))
	for i, g := range groups {
		entries[i] = eventEntry(i+1, g.Event, g.Count)
	}
	return entries
}

func playlistSection(p tasks.PlaylistResult) Section {
	s := Section{
		Name:       p.Target.Name,
		PlaylistID: p.Target.ID,
		Published:  p.Published,
		Entries:    make([]Entry, len(p.Tracks)),
	}
	if s.Name == "" {
		s.Name = p.Target.ID
	}
	for i, t := range p.Tracks {
		e := eventEntry(i+1, t.Event, t.Plays)
		e.URI = t.URI
		pop := t.Popularity
		e.Popularity = &pop
		s.Entries[i] = e
	}
	for _, m := range p.Misses {
		s.Misses = append(s.Misses, m.Group.Event.Title)
	}
	return s
}

func eventEntry(rank int, ev models.PlayEvent, plays int) Entry {
	return Entry{
		Rank:         rank,
		Title:        ev.Title,
		Plays:        plays,
		Album:        ev.Album,
		Interpreters: ev.Interpreters,
		Year:         ev.Year,
		LastPlayed:   ev.StartTime,
	}
}

// ExportToJSON renders the report as indented JSON.
func ExportToJSON(report *Report) ([]byte, error) {
	return shared.MarshalJSON(report, true)
}

// ExportToCSV renders every entry with columns: Section, Rank, Title, Plays, Artist, Album, Year, URI, Popularity
func ExportToCSV(report *Report) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Section", "Rank", "Title", "Plays", "Artist", "Album", "Year", "URI", "Popularity"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, section := range report.Sections {
		for _, e := range section.Entries {
			record := []string{
				section.Name,
				strconv.Itoa(e.Rank),
				e.Title,
				strconv.Itoa(e.Plays),
				strings.Join(e.Interpreters, ", "),
				e.Album,
				optionalInt(e.Year),
				e.URI,
				optionalInt(e.Popularity),
			}
			if err := writer.Write(record); err != nil {
				return nil, fmt.Errorf("failed to write CSV record: %w", err)
			}
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown renders the report with one numbered list per section.
func ExportToMarkdown(report *Report) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString("# FIP play history\n\n")
	if report.RunID != "" {
		buf.WriteString(fmt.Sprintf("**Run**: %s\n", report.RunID))
	}
	buf.WriteString(fmt.Sprintf("**Since**: %s\n", report.Boundary.Format(time.RFC3339)))
	buf.WriteString(fmt.Sprintf("**Pages**: %d\n", report.Pages))
	buf.WriteString(fmt.Sprintf("**Plays**: %d\n", report.Events))
	buf.WriteString(fmt.Sprintf("**Titles**: %d\n", report.Titles))
	if report.Partial {
		buf.WriteString("**Partial**: yes\n")
	}
	if report.DryRun {
		buf.WriteString("**Dry run**: yes\n")
	}

	for _, section := range report.Sections {
		buf.WriteString(fmt.Sprintf("\n## %s\n\n", section.Name))
		if len(section.Entries) == 0 {
			buf.WriteString("_No tracks._\n")
		}
		for _, e := range section.Entries {
			line := fmt.Sprintf("%d. %s", e.Rank, e.Title)
			if artist := strings.Join(e.Interpreters, ", "); artist != "" {
				line = fmt.Sprintf("%d. %s - %s", e.Rank, artist, e.Title)
			}
			if e.Album != "" {
				line += fmt.Sprintf(" (%s)", e.Album)
			}
			line += fmt.Sprintf(" [%s]", playsLabel(e.Plays))
			buf.WriteString(line + "\n")
		}
		if len(section.Misses) > 0 {
			buf.WriteString(fmt.Sprintf("\n**Unresolved**: %s\n", strings.Join(section.Misses, "; ")))
		}
	}

	return buf.Bytes(), nil
}

// ExportToText renders the report as plain text.
func ExportToText(report *Report) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Since: %s\n", report.Boundary.Format(time.RFC3339)))
	buf.WriteString(fmt.Sprintf("Plays: %d across %d titles (%d pages)\n", report.Events, report.Titles, report.Pages))

	for _, section := range report.Sections {
		buf.WriteString(fmt.Sprintf("\n%s: %d\n", section.Name, len(section.Entries)))
		for _, e := range section.Entries {
			buf.WriteString(fmt.Sprintf("%d. %s - %s (%s)\n", e.Rank, strings.Join(e.Interpreters, ", "), e.Title, playsLabel(e.Plays)))
		}
		if len(section.Misses) > 0 {
			buf.WriteString(fmt.Sprintf("Unresolved: %d\n", len(section.Misses)))
		}
	}

	return buf.Bytes(), nil
}

// Export renders the report in the given format.
func Export(report *Report, format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		return ExportToJSON(report)
	case FormatCSV:
		return ExportToCSV(report)
	case FormatMarkdown:
		return ExportToMarkdown(report)
	case FormatText:
		return ExportToText(report)
	}
	return nil, fmt.Errorf("%w: unknown report format %q", shared.ErrInvalidArgument, format)
}

// WriteReport renders the report and writes it to w.
func WriteReport(w io.Writer, format Format, report *Report) error {
	data, err := Export(report, format)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// WriteReportFile writes the report to path and returns the path written.
//
// Defaults to fiply_{generated date}.{ext} as the filename.
func WriteReportFile(format Format, report *Report, path string) (string, error) {
	if path == "" {
		path = fmt.Sprintf("fiply_%s.%s", report.GeneratedAt.Format("20060102"), format.Extension())
	}

	data, err := Export(report, format)
	if err != nil {
		return "", err
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write report file: %w", err)
	}

	return path, nil
}

func optionalInt(n *int) string {
	if n == nil {
		return ""
	}
	return strconv.Itoa(*n)
}

func playsLabel(n int) string {
	if n == 1 {
		return "1 play"
	}
	return fmt.Sprintf("%d plays", n)
}
