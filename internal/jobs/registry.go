// Package jobs loads and queries the YAML job catalog.
package jobs

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/gobwas/glob"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/mvarela/gapfill/internal/backfill"
)

var (
	// ErrUnknownJob is returned in strict mode for jobs not in the catalog.
	ErrUnknownJob = errors.New("unknown job")

	// ErrIntervalTooSmall is returned when a backfill interval is below
	// the job's minimum.
	ErrIntervalTooSmall = errors.New("interval below job minimum")

	// ErrRangeTooLarge is returned when a backfill range exceeds the
	// job's maximum.
	ErrRangeTooLarge = errors.New("range exceeds job maximum")
)

// Job describes one entry in the catalog. Match patterns are globs; a job
// with no patterns matches its ID exactly.
type Job struct {
	ID              string   `yaml:"id"`
	Description     string   `yaml:"description"`
	Match           []string `yaml:"match"`
	DefaultInterval string   `yaml:"default_interval"`
	MinInterval     string   `yaml:"min_interval"`
	MaxRange        string   `yaml:"max_range"`
	Timezone        string   `yaml:"timezone"`

	globs []glob.Glob
}

type catalog struct {
	Jobs []*Job `yaml:"jobs"`
}

// Registry holds the compiled job catalog.
type Registry struct {
	jobs   []*Job
	strict bool
}

// Load reads and compiles the catalog at path. An empty path yields an
// empty registry, which accepts every job unless strict is set.
func Load(path string, strict bool) (*Registry, error) {
	if path == "" {
		return &Registry{strict: strict}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading job catalog: %w", err)
	}

	var cat catalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("parsing job catalog: %w", err)
	}

	reg, err := NewRegistry(cat.Jobs, strict)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("path", path).
		Int("jobs", len(cat.Jobs)).
		Bool("strict", strict).
		Msg("Job catalog loaded")

	return reg, nil
}

// NewRegistry compiles the given jobs into a registry.
func NewRegistry(jobs []*Job, strict bool) (*Registry, error) {
	for _, job := range jobs {
		if job.ID == "" {
			return nil, fmt.Errorf("job catalog entry is missing an id")
		}

		patterns := job.Match
		if len(patterns) == 0 {
			patterns = []string{job.ID}
		}

		for _, pattern := range patterns {
			g, err := glob.Compile(pattern)
			if err != nil {
				return nil, fmt.Errorf("compiling pattern %q for job %q: %w", pattern, job.ID, err)
			}
			job.globs = append(job.globs, g)
		}

		if job.DefaultInterval != "" {
			if _, err := backfill.ParseDuration(job.DefaultInterval); err != nil {
				return nil, fmt.Errorf("job %q default_interval: %w", job.ID, err)
			}
		}
		if job.MinInterval != "" {
			if _, err := backfill.ParseDuration(job.MinInterval); err != nil {
				return nil, fmt.Errorf("job %q min_interval: %w", job.ID, err)
			}
		}
		if job.MaxRange != "" {
			if _, err := backfill.ParseDuration(job.MaxRange); err != nil {
				return nil, fmt.Errorf("job %q max_range: %w", job.ID, err)
			}
		}
		if job.Timezone != "" {
			if _, err := time.LoadLocation(job.Timezone); err != nil {
				return nil, fmt.Errorf("job %q timezone: %w", job.ID, err)
			}
		}
	}

	return &Registry{jobs: jobs, strict: strict}, nil
}

// Lookup returns the first catalog entry whose patterns match jobID.
func (r *Registry) Lookup(jobID string) (*Job, bool) {
	for _, job := range r.jobs {
		for _, g := range job.globs {
			if g.Match(jobID) {
				return job, true
			}
		}
	}
	return nil, false
}

// Jobs returns every catalog entry.
func (r *Registry) Jobs() []*Job {
	return r.jobs
}

// Validate checks a proposed backfill against the catalog. In strict mode
// unmatched jobs are rejected; matched jobs enforce their interval and
// range limits.
func (r *Registry) Validate(jobID, interval string, start, end time.Time) error {
	job, ok := r.Lookup(jobID)
	if !ok {
		if r.strict {
			return fmt.Errorf("%w: %q", ErrUnknownJob, jobID)
		}
		return nil
	}

	if job.MinInterval != "" && interval != "" {
		min, err := backfill.ParseDuration(job.MinInterval)
		if err != nil {
			return err
		}
		d, err := backfill.ParseDuration(interval)
		if err != nil {
			return err
		}
		if d < min {
			return fmt.Errorf("%w: %s < %s for job %q", ErrIntervalTooSmall, interval, job.MinInterval, jobID)
		}
	}

	if job.MaxRange != "" {
		max, err := backfill.ParseDuration(job.MaxRange)
		if err != nil {
			return err
		}
		if end.Sub(start) > max {
			return fmt.Errorf("%w: %s > %s for job %q",
				ErrRangeTooLarge, backfill.FormatDuration(end.Sub(start)), job.MaxRange, jobID)
		}
	}

	return nil
}

// ApplyDefaults fills the backfill's interval and timezone from the
// matched catalog entry when they are unset.
func (r *Registry) ApplyDefaults(b *backfill.Backfill) {
	job, ok := r.Lookup(b.JobID)
	if !ok {
		return
	}

	if b.Interval == "" && b.Cron == "" && job.DefaultInterval != "" {
		b.Interval = job.DefaultInterval
	}
	if b.Timezone == "" && job.Timezone != "" {
		b.Timezone = job.Timezone
	}
}
