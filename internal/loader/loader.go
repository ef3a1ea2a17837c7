// Package loader runs the read-through load of a project: cache, data
// source, decoding and snapshot build.
package loader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/trogers1052/options-monitor/internal/cache"
	"github.com/trogers1052/options-monitor/internal/csvparse"
	"github.com/trogers1052/options-monitor/internal/models"
	"github.com/trogers1052/options-monitor/internal/pipeline"
)

// ErrUnknownProject is returned for a project name missing from the registry
var ErrUnknownProject = errors.New("unknown project")

// LoadTimeout bounds one shared load of a project
const LoadTimeout = time.Minute

// DefaultProjects is the registry used when none is configured
func DefaultProjects() []models.Project {
	return []models.Project{
		{
			Name:        "IBIT_Call_Monitor",
			Title:       "IBIT Call Monitor",
			Description: "Monitoring IBIT call options with real-time pricing and Greeks analysis",
			DataFile:    "ibit_calls.csv",
			Source:      models.SourceCSV,
		},
	}
}

// Config holds the collaborators of a Loader
type Config struct {
	Projects []models.Project
	// Sources maps a Project.Source value to its implementation
	Sources map[string]RowSource
	Cache   cache.Cache
	TTL     time.Duration
	// Options is passed to pipeline.Build as given; a zero threshold keeps
	// every unexpired row
	Options pipeline.Options
}

// Loader builds project snapshots. Concurrent loads of the same project
// share one fetch.
type Loader struct {
	projects []models.Project
	sources  map[string]RowSource
	cache    cache.Cache
	ttl      time.Duration
	opts     pipeline.Options
	group    singleflight.Group
	log      zerolog.Logger
}

// New creates a Loader
func New(cfg Config, log zerolog.Logger) *Loader {
	projects := cfg.Projects
	if len(projects) == 0 {
		projects = DefaultProjects()
	}
	c := cfg.Cache
	if c == nil {
		c = cache.NewMemory()
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = cache.DefaultTTL
	}

	return &Loader{
		projects: projects,
		sources:  cfg.Sources,
		cache:    c,
		ttl:      ttl,
		opts:     cfg.Options,
		log:      log.With().Str("component", "loader").Logger(),
	}
}

// Projects returns the registry
func (l *Loader) Projects() []models.Project {
	out := make([]models.Project, len(l.projects))
	copy(out, l.projects)
	return out
}

// Project looks up a project by name
func (l *Loader) Project(name string) (models.Project, error) {
	for _, p := range l.projects {
		if p.Name == name {
			return p, nil
		}
	}
	return models.Project{}, fmt.Errorf("%w: %s", ErrUnknownProject, name)
}

// LoadProject returns the snapshot of the named project, served from the
// cache when it holds the project's rows. It returns pipeline.ErrNoData when
// nothing usable could be loaded.
func (l *Loader) LoadProject(ctx context.Context, name string) (*models.ProjectSnapshot, error) {
	return l.load(ctx, name, true)
}

// Refresh rebuilds the snapshot from the data source, skipping the cache
// read, and stores the fresh rows in the cache
func (l *Loader) Refresh(ctx context.Context, name string) (*models.ProjectSnapshot, error) {
	return l.load(ctx, name, false)
}

func (l *Loader) load(ctx context.Context, name string, useCache bool) (*models.ProjectSnapshot, error) {
	p, err := l.Project(name)
	if err != nil {
		return nil, err
	}

	flight := "load:" + name
	if !useCache {
		flight = "refresh:" + name
	}

	// The shared load outlives any single caller; each caller only stops
	// waiting when its own context ends.
	ch := l.group.DoChan(flight, func() (interface{}, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), LoadTimeout)
		defer cancel()

		rows, err := l.LoadRows(loadCtx, p, useCache)
		if err != nil {
			return nil, err
		}
		snap, err := pipeline.Build(p, rows, l.opts)
		if errors.Is(err, pipeline.ErrNoData) {
			l.log.Warn().Str("project", name).Msg("no long dated data found")
		}
		return snap, err
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*models.ProjectSnapshot), nil
	}
}

// LoadRows returns the decoded rows of p. A failing data source is logged and
// reported as an empty dataset. Parse policy violations are returned.
func (l *Loader) LoadRows(ctx context.Context, p models.Project, useCache bool) ([]models.OptionRow, error) {
	src, ok := l.sources[p.Source]
	if !ok {
		return nil, fmt.Errorf("no data source %q configured for project %s", p.Source, p.Name)
	}
	key := src.Key(p)

	if useCache {
		if rows, ok := l.cached(ctx, key); ok {
			return rows, nil
		}
	}

	rows, err := src.Rows(ctx, p)
	if err != nil {
		if errors.Is(err, csvparse.ErrRowMismatch) || errors.Is(err, csvparse.ErrUnparsableNumber) {
			return nil, err
		}
		l.log.Error().Err(err).Str("project", p.Name).Str("source", key).Msg("failed to load data")
		return []models.OptionRow{}, nil
	}

	data, err := json.Marshal(rows)
	if err != nil {
		l.log.Warn().Err(err).Str("key", key).Msg("failed to encode rows for cache")
		return rows, nil
	}
	if err := l.cache.Set(ctx, key, data, l.ttl); err != nil {
		l.log.Warn().Err(err).Str("key", key).Msg("failed to write cache")
	}

	l.log.Debug().Str("project", p.Name).Int("rows", len(rows)).Msg("loaded rows from source")
	return rows, nil
}

func (l *Loader) cached(ctx context.Context, key string) ([]models.OptionRow, bool) {
	data, ok, err := l.cache.Get(ctx, key)
	if err != nil {
		l.log.Warn().Err(err).Str("key", key).Msg("failed to read cache")
		return nil, false
	}
	if !ok {
		return nil, false
	}

	var rows []models.OptionRow
	if err := json.Unmarshal(data, &rows); err != nil {
		l.log.Warn().Err(err).Str("key", key).Msg("failed to decode cached rows")
		return nil, false
	}
	return rows, true
}
