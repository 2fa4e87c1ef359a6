package tasks

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/fiply/internal/models"
	"github.com/desertthunder/fiply/internal/services"
	"github.com/desertthunder/fiply/internal/shared"
	"golang.org/x/time/rate"
)

const (
	DefaultCandidateRank = 150
	DefaultMaxTracks     = 100
	DefaultSearchDelay   = 50 * time.Millisecond
	DefaultLookback      = 7 * 24 * time.Hour
)

// RunJournal records harvest runs and the tracks they publish. Nothing read from it feeds a ranking.
type RunJournal interface {
	Create(run *models.Run) error
	Update(run *models.Run) error
	AddTracks(runID string, tracks []models.RunTrack) error
}

// PlaylistTarget names a playlist the harvest writes to.
type PlaylistTarget struct {
	ID   string
	Name string
}

// HarvestOptions controls a single [Harvester.Run].
type HarvestOptions struct {
	Lookback       time.Duration
	MostPlayed     PlaylistTarget
	PlayedOnce     PlaylistTarget
	CandidateRank  int // 1-based position whose play count is the most-played cutoff
	OnceCandidates int // 0 keeps every played-once title
	MaxTracks      int
	Disambiguator  services.Disambiguator
	SearchDelay    time.Duration
	DryRun         bool
}

// HarvestOptionsFromConfig builds [HarvestOptions] from the loaded configuration.
func HarvestOptionsFromConfig(cfg *shared.Config) HarvestOptions {
	return HarvestOptions{
		Lookback:       cfg.Harvest.Lookback.Duration,
		MostPlayed:     PlaylistTarget{ID: cfg.Playlists.MostPlayedID, Name: cfg.Playlists.MostPlayedName},
		PlayedOnce:     PlaylistTarget{ID: cfg.Playlists.PlayedOnceID, Name: cfg.Playlists.PlayedOnceName},
		CandidateRank:  cfg.Playlists.CandidateRank,
		OnceCandidates: cfg.Playlists.OnceCandidates,
		MaxTracks:      cfg.Playlists.MaxTracks,
		Disambiguator:  services.ParseDisambiguator(cfg.Catalog.Disambiguator),
		SearchDelay:    cfg.Catalog.SearchDelay.Duration,
	}
}

func (o *HarvestOptions) applyDefaults() {
	if o.Lookback <= 0 {
		o.Lookback = DefaultLookback
	}
	if o.CandidateRank <= 0 {
		o.CandidateRank = DefaultCandidateRank
	}
	if o.MaxTracks <= 0 || o.MaxTracks > services.MaxReplaceTracks {
		o.MaxTracks = DefaultMaxTracks
	}
	if o.Disambiguator == "" {
		o.Disambiguator = services.ByAlbum
	}
	if o.SearchDelay < 0 {
		o.SearchDelay = 0
	}
}

// Miss is a candidate that produced no playlist entry. Err is nil when the catalog had no match.
type Miss struct {
	Group models.RankedGroup
	Err   error
}

// PlaylistResult is the outcome for one target playlist.
type PlaylistResult struct {
	Target     PlaylistTarget
	Playlist   *models.Playlist // preflight view before publishing
	Candidates int
	Tracks     []models.TrackMetadata // published order
	Misses     []Miss
	Published  bool
}

// URIs returns the track URIs in published order.
func (p PlaylistResult) URIs() []string {
	uris := make([]string, len(p.Tracks))
	for i, t := range p.Tracks {
		uris[i] = t.URI
	}
	return uris
}

// HarvestResult contains everything a run produced.
type HarvestResult struct {
	RunID      string
	Stats      *CollectStats
	Ranking    Ranking
	MostPlayed PlaylistResult
	PlayedOnce PlaylistResult
	DryRun     bool
}

// Harvester turns a window of broadcast history into two published playlists.
type Harvester struct {
	collector *Collector
	catalog   services.Catalog
	journal   RunJournal
	policy    RetryPolicy
	logger    *log.Logger
	now       func() time.Time
}

// NewHarvester creates a [Harvester]. journal may be nil.
func NewHarvester(collector *Collector, catalog services.Catalog, journal RunJournal, logger *log.Logger) *Harvester {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Harvester{
		collector: collector,
		catalog:   catalog,
		journal:   journal,
		policy:    DefaultRetryPolicy(),
		logger:    shared.WithLogger(logger, "component", "harvester"),
		now:       time.Now,
	}
}

// SetRetryPolicy replaces the policy used for catalog calls.
func (h *Harvester) SetRetryPolicy(p RetryPolicy) {
	h.policy = p
}

// Run collects, ranks, resolves and publishes.
//
// Collection and preflight failures abort before any playlist is touched. A playlist whose
// candidates all fail to resolve is left as it was and reported with [shared.ErrNoTracksResolved].
func (h *Harvester) Run(ctx context.Context, opts HarvestOptions, progress chan<- ProgressUpdate) (*HarvestResult, error) {
	if h.collector == nil {
		return nil, fmt.Errorf("%w: collector not initialized", shared.ErrServiceUnavailable)
	}
	if h.catalog == nil {
		return nil, fmt.Errorf("%w: catalog service not initialized", shared.ErrServiceUnavailable)
	}
	opts.applyDefaults()

	if opts.MostPlayed.ID == "" || opts.PlayedOnce.ID == "" {
		return nil, fmt.Errorf("%w: both playlist ids are required", shared.ErrMissingArgument)
	}

	result := &HarvestResult{
		DryRun:     opts.DryRun,
		MostPlayed: PlaylistResult{Target: opts.MostPlayed},
		PlayedOnce: PlaylistResult{Target: opts.PlayedOnce},
	}
	run := h.beginRun(opts)
	if run != nil {
		result.RunID = run.ID()
	}

	err := h.run(ctx, opts, result, progress)
	h.finishRun(run, result, err)
	return result, err
}

func (h *Harvester) run(ctx context.Context, opts HarvestOptions, result *HarvestResult, progress chan<- ProgressUpdate) error {
	events, stats, err := h.collector.CollectSince(ctx, opts.Lookback, progress)
	result.Stats = stats
	if err != nil {
		return fmt.Errorf("collecting history: %w", err)
	}

	result.Ranking = Rank(events)
	sendProgress(progress, rankUpdate(len(events), result.Ranking))
	h.logger.Info("ranked history", "events", len(events), "titles", len(result.Ranking.MostPlayed), "played_once", len(result.Ranking.PlayedOnce))

	targets := []*PlaylistResult{&result.MostPlayed, &result.PlayedOnce}
	for i, target := range targets {
		pl, err := Retry(ctx, h.policy, func(ctx context.Context, _ int) (*models.Playlist, error) {
			return h.catalog.GetPlaylist(ctx, target.Target.ID)
		})
		if err != nil {
			return fmt.Errorf("checking playlist %s: %w", target.Target.label(), err)
		}
		target.Playlist = pl
		sendProgress(progress, checkPlaylistUpdate(i+1, len(targets), pl))
	}

	mostPlayed := result.Ranking.MostPlayedCandidates(opts.CandidateRank)
	playedOnce := result.Ranking.PlayedOnceCandidates(opts.OnceCandidates)
	result.MostPlayed.Candidates = len(mostPlayed)
	result.PlayedOnce.Candidates = len(playedOnce)
	h.logger.Info("selected candidates",
		"most_played", len(mostPlayed),
		"cutoff", result.Ranking.CandidateLimit(opts.CandidateRank),
		"played_once", len(playedOnce),
	)

	limiter := rate.NewLimiter(rate.Every(opts.SearchDelay), 1)

	total := len(mostPlayed) + len(playedOnce)
	step := 0
	for _, job := range []struct {
		target *PlaylistResult
		groups []models.RankedGroup
	}{
		{&result.MostPlayed, mostPlayed},
		{&result.PlayedOnce, playedOnce},
	} {
		tracks, misses, err := h.resolve(ctx, limiter, opts.Disambiguator, job.groups, &step, total, progress)
		job.target.Misses = misses
		if err != nil {
			return err
		}
		job.target.Tracks = tracks
	}

	result.MostPlayed.Tracks = orderTracks(result.MostPlayed.Tracks, true, opts.MaxTracks)
	result.PlayedOnce.Tracks = orderTracks(result.PlayedOnce.Tracks, false, opts.MaxTracks)

	var errs []error
	for i, target := range targets {
		if err := h.publish(ctx, target, opts.DryRun); err != nil {
			errs = append(errs, err)
			continue
		}
		sendProgress(progress, publishUpdate(i+1, len(targets), target.Target.label(), len(target.Tracks), opts.DryRun))
	}
	return errors.Join(errs...)
}

// resolve looks up each group in the catalog, one rate-limited call at a time.
//
// A group with no match, or whose search still fails after retries, becomes a [Miss]. Cancellation
// and expired credentials stop the whole run since every later search would fail the same way.
func (h *Harvester) resolve(
	ctx context.Context,
	limiter *rate.Limiter,
	kind services.Disambiguator,
	groups []models.RankedGroup,
	step *int,
	total int,
	progress chan<- ProgressUpdate,
) ([]models.TrackMetadata, []Miss, error) {
	tracks := make([]models.TrackMetadata, 0, len(groups))
	misses := make([]Miss, 0)

	for _, group := range groups {
		*step++
		title, disambiguator, k := searchTerms(group.Event, kind)

		match, err := Retry(ctx, h.policy, func(ctx context.Context, _ int) (*models.TrackMatch, error) {
			if err := limiter.Wait(ctx); err != nil {
				return nil, err
			}
			return h.catalog.ResolveTrack(ctx, title, disambiguator, k)
		})
		sendProgress(progress, resolveUpdate(*step, total, group, match))

		switch {
		case ctx.Err() != nil:
			return tracks, misses, fmt.Errorf("resolving tracks cancelled: %w", ctx.Err())
		case errors.Is(err, shared.ErrTokenExpired):
			return tracks, misses, fmt.Errorf("resolving %q: %w", group.Event.Title, err)
		case err != nil:
			h.logger.Warn("track search failed", "title", title, "disambiguator", disambiguator, "error", err)
			misses = append(misses, Miss{Group: group, Err: err})
		case match == nil:
			h.logger.Debug("no catalog match", "title", title, "disambiguator", disambiguator)
			misses = append(misses, Miss{Group: group})
		default:
			tracks = append(tracks, models.TrackMetadata{
				Event:      group.Event,
				Plays:      group.Count,
				URI:        match.URI,
				Popularity: match.Popularity,
			})
		}
	}

	return tracks, misses, nil
}

// searchTerms picks the disambiguating field, falling back to the other one when it is empty.
func searchTerms(ev models.PlayEvent, kind services.Disambiguator) (string, string, services.Disambiguator) {
	album, artist := ev.Album, ev.PrimaryInterpreter()
	if kind == services.ByArtist {
		if artist == "" && album != "" {
			return ev.Title, album, services.ByAlbum
		}
		return ev.Title, artist, services.ByArtist
	}
	if album == "" && artist != "" {
		return ev.Title, artist, services.ByArtist
	}
	return ev.Title, album, services.ByAlbum
}

// orderTracks sorts by (plays, popularity), drops repeated URIs and keeps the first max entries.
func orderTracks(tracks []models.TrackMetadata, descending bool, max int) []models.TrackMetadata {
	ordered := slices.Clone(tracks)
	slices.SortStableFunc(ordered, func(a, b models.TrackMetadata) int {
		c := cmp.Or(cmp.Compare(a.Plays, b.Plays), cmp.Compare(a.Popularity, b.Popularity))
		if descending {
			return -c
		}
		return c
	})

	seen := make(map[string]bool, len(ordered))
	out := make([]models.TrackMetadata, 0, min(len(ordered), max))
	for _, t := range ordered {
		if seen[t.URI] {
			continue
		}
		seen[t.URI] = true
		out = append(out, t)
		if len(out) == max {
			break
		}
	}
	return out
}

func (h *Harvester) publish(ctx context.Context, target *PlaylistResult, dryRun bool) error {
	label := target.Target.label()
	if len(target.Tracks) == 0 {
		h.logger.Warn("nothing to publish, leaving playlist unchanged", "playlist", label, "candidates", target.Candidates)
		return fmt.Errorf("%w: %s", shared.ErrNoTracksResolved, label)
	}
	if dryRun {
		h.logger.Info("dry run, not publishing", "playlist", label, "tracks", len(target.Tracks))
		return nil
	}

	uris := target.URIs()
	_, err := Retry(ctx, h.policy, func(ctx context.Context, _ int) (struct{}, error) {
		return struct{}{}, h.catalog.ReplacePlaylist(ctx, target.Target.ID, uris)
	})
	if err != nil {
		return fmt.Errorf("publishing %s: %w", label, err)
	}

	target.Published = true
	h.logger.Info("published playlist", "playlist", label, "tracks", len(uris), "misses", len(target.Misses))
	return nil
}

func (t PlaylistTarget) label() string {
	if t.Name != "" {
		return t.Name
	}
	return t.ID
}

func (h *Harvester) beginRun(opts HarvestOptions) *models.Run {
	if h.journal == nil {
		return nil
	}

	run := models.NewRun(0, opts.Lookback, h.now())
	if err := h.journal.Create(run); err != nil {
		h.logger.Warn("failed to record run start", "error", err)
		return nil
	}
	return run
}

func (h *Harvester) finishRun(run *models.Run, result *HarvestResult, runErr error) {
	if run == nil {
		return
	}

	stats := models.RunStats{DistinctTitles: len(result.Ranking.MostPlayed)}
	if result.Stats != nil {
		stats.PagesFetched = result.Stats.Pages
		stats.EventsCollected = result.Stats.Events
		stats.Partial = result.Stats.Partial
	}
	run.SetStats(stats)

	status := models.RunCompleted
	if result.DryRun {
		status = models.RunDryRun
	}
	run.Finish(status, runErr, h.now())

	if err := h.journal.Update(run); err != nil {
		h.logger.Warn("failed to record run result", "run", run.ID(), "error", err)
		return
	}

	var tracks []models.RunTrack
	for _, target := range []PlaylistResult{result.MostPlayed, result.PlayedOnce} {
		if !target.Published {
			continue
		}
		for i, t := range target.Tracks {
			tracks = append(tracks, models.RunTrack{
				RunID:      run.ID(),
				PlaylistID: target.Target.ID,
				Position:   i,
				URI:        t.URI,
				Title:      t.Event.Title,
				Plays:      t.Plays,
				Popularity: t.Popularity,
			})
		}
	}
	if len(tracks) == 0 {
		return
	}
	if err := h.journal.AddTracks(run.ID(), tracks); err != nil {
		h.logger.Warn("failed to record published tracks", "run", run.ID(), "error", err)
	}
}
