// Package walker drives the page cursor for one (country, time-slice)
// pair: it fetches pages at increasing offsets, applies the "updated
// since" filter in server or client mode with automatic fallback, and
// reports progress after every page so the run can be resumed.
package walker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/eaeu-tools/odata-export/pkg/client"
	"github.com/eaeu-tools/odata-export/pkg/normalize"
	"github.com/eaeu-tools/odata-export/pkg/pacing"
)

var (
	walkerPagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eaeu_export_pages_total",
		Help: "Pages fetched per country",
	}, []string{"country"})

	walkerRowsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eaeu_export_rows_written_total",
		Help: "Rows written per country",
	}, []string{"country"})

	walkerFilterFallbacksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "eaeu_export_filter_fallbacks_total",
		Help: "Downgrades from server-side to client-side update filtering",
	})

	walkerAbortsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eaeu_export_walk_aborts_total",
		Help: "Fatal walk aborts by reason",
	}, []string{"reason"})
)

const (
	// DefaultMaxConsecutiveErrors bounds how long a stuck partition can
	// stall the export before the walk aborts.
	DefaultMaxConsecutiveErrors = 8

	// DefaultErrorPause is the minimum cool-down after a failed page
	// fetch or a filter fallback, regardless of the configured pacing.
	DefaultErrorPause = 2 * time.Second
)

// ErrTooManyErrors is returned when the consecutive-failure budget for a
// single walk is exhausted.
var ErrTooManyErrors = errors.New("too many consecutive page errors")

// PageFetcher fetches one page of raw records. *client.Client satisfies it.
type PageFetcher interface {
	FetchPage(ctx context.Context, req client.PageRequest) ([]any, error)
}

// Config holds walker configuration.
type Config struct {
	// Fetcher retrieves pages from the upstream service.
	Fetcher PageFetcher

	// Limit is the fixed page size.
	Limit int

	// OrderBy keeps pagination stable; defaults to client.DefaultOrderBy.
	OrderBy string

	// MaxConsecutiveErrors aborts the walk when that many page fetches
	// fail in a row. Defaults to DefaultMaxConsecutiveErrors.
	MaxConsecutiveErrors int

	// Pacer applies the pause between page fetches.
	Pacer pacing.Pacer

	// ErrorPause is the minimum cool-down after a failed fetch or a
	// filter fallback. Defaults to DefaultErrorPause.
	ErrorPause time.Duration

	Logger zerolog.Logger
}

// Walker walks one cursor at a time. It is not safe for concurrent use,
// matching the strictly sequential processing model of the export.
type Walker struct {
	fetcher    PageFetcher
	limit      int
	orderBy    string
	maxErrors  int
	pacer      pacing.Pacer
	errorPause time.Duration
	logger     zerolog.Logger
}

// New creates a Walker from the given configuration.
func New(cfg Config) (*Walker, error) {
	if cfg.Fetcher == nil {
		return nil, fmt.Errorf("fetcher is required")
	}
	if cfg.Limit <= 0 {
		return nil, fmt.Errorf("page limit must be positive (got %d)", cfg.Limit)
	}
	if cfg.OrderBy == "" {
		cfg.OrderBy = client.DefaultOrderBy
	}
	if cfg.MaxConsecutiveErrors <= 0 {
		cfg.MaxConsecutiveErrors = DefaultMaxConsecutiveErrors
	}
	if cfg.ErrorPause <= 0 {
		cfg.ErrorPause = DefaultErrorPause
	}
	return &Walker{
		fetcher:    cfg.Fetcher,
		limit:      cfg.Limit,
		orderBy:    cfg.OrderBy,
		maxErrors:  cfg.MaxConsecutiveErrors,
		pacer:      cfg.Pacer,
		errorPause: cfg.ErrorPause,
		logger:     cfg.Logger,
	}, nil
}

// Task describes one (country, time-slice) cursor to walk.
type Task struct {
	// Country is the partition key value.
	Country string

	// Label identifies the time slice ("all", "2024", "2024-06").
	Label string

	// SliceClauses are the date-range filter clauses for this slice.
	SliceClauses []string

	// UpdatedFrom is the "updated since" threshold; nil disables the
	// update filter entirely.
	UpdatedFrom *time.Time

	// UpdatedFromValue is the normalized timestamp literal used in the
	// server-side filter clause.
	UpdatedFromValue string

	// ServerUpdatedFilter applies the threshold server-side. When false
	// (or after a fallback) records are filtered client-side instead.
	ServerUpdatedFilter bool

	// AllowFilterFallback permits the one-way downgrade to client-side
	// filtering on a gateway timeout. Off in explicit server mode, where
	// a 504 is just another retryable error.
	AllowFilterFallback bool

	// StartOffset resumes the walk at a saved offset.
	StartOffset int

	// ClientFilterActive restores a fallback that happened before the
	// walk was interrupted, so resuming does not retry server filtering.
	ClientFilterActive bool
}

// Progress is reported to the caller after every page, carrying exactly
// what must be persisted to make the walk resumable.
type Progress struct {
	Country            string
	Label              string
	NextSkip           int
	Written            int
	Done               bool
	ClientFilterActive bool
}

// WriteFunc receives each surviving normalized record.
type WriteFunc func(record map[string]any) error

// ProgressFunc receives a progress report after every page. An error
// aborts the walk; persistence failures must not silently lose offsets.
type ProgressFunc func(p Progress) error

// Walk runs the cursor to completion and returns the rows written during
// this walk. A resumed walk counts from zero; rows written before the
// interruption are already in their output file.
//
// Error policy: gateway timeouts while server-side update filtering is
// active downgrade to client-side filtering and retry the same offset
// (one-way, never reverted within this walk). Non-retryable client
// errors abort immediately. Everything else counts against the
// consecutive-failure budget with a cool-down between attempts.
func (w *Walker) Walk(ctx context.Context, task Task, write WriteFunc, report ProgressFunc) (int, error) {
	offset := task.StartOffset
	written := 0
	clientFilter := task.ClientFilterActive || (task.UpdatedFrom != nil && !task.ServerUpdatedFilter)
	consecutiveErrors := 0

	logger := w.logger.With().
		Str("country", task.Country).
		Str("slice", task.Label).
		Logger()

	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}

		serverSide := task.ServerUpdatedFilter && !clientFilter
		req := client.PageRequest{
			Filter:  client.BuildFilter(task.Country, task.UpdatedFromValue, serverSide, task.SliceClauses),
			OrderBy: w.orderBy,
			Skip:    offset,
			Top:     w.limit,
		}

		items, err := w.fetcher.FetchPage(ctx, req)
		if err != nil {
			if ctx.Err() != nil {
				return written, ctx.Err()
			}

			if serverSide && task.AllowFilterFallback && client.IsGatewayTimeout(err) {
				// The service times out on the server-side update clause.
				// Downgrade to client-side filtering and retry this offset.
				clientFilter = true
				walkerFilterFallbacksTotal.Inc()
				logger.Warn().Int("skip", offset).
					Msg("Gateway timeout with server-side update filter, switching to client-side filtering")
				if perr := w.pacer.PauseAtLeast(ctx, w.errorPause); perr != nil {
					return written, perr
				}
				continue
			}

			if client.IsFatal(err) {
				walkerAbortsTotal.WithLabelValues("client_error").Inc()
				return written, fmt.Errorf("walk %s/%s aborted at skip %d: %w",
					task.Country, task.Label, offset, err)
			}

			consecutiveErrors++
			logger.Warn().Err(err).Int("skip", offset).
				Int("consecutive_errors", consecutiveErrors).
				Msg("Page fetch failed")
			if consecutiveErrors >= w.maxErrors {
				walkerAbortsTotal.WithLabelValues("error_budget").Inc()
				return written, fmt.Errorf("walk %s/%s at skip %d: %w (%d failures)",
					task.Country, task.Label, offset, ErrTooManyErrors, consecutiveErrors)
			}
			if perr := w.pacer.PauseAtLeast(ctx, w.errorPause); perr != nil {
				return written, perr
			}
			continue
		}

		consecutiveErrors = 0
		walkerPagesTotal.WithLabelValues(task.Country).Inc()

		if len(items) == 0 {
			if err := report(Progress{
				Country:            task.Country,
				Label:              task.Label,
				NextSkip:           offset,
				Written:            written,
				Done:               true,
				ClientFilterActive: clientFilter,
			}); err != nil {
				return written, err
			}
			logger.Info().Int("written", written).Msg("Cursor exhausted")
			return written, nil
		}

		for _, item := range items {
			record := normalize.NormalizeRecord(item, task.Country)
			if clientFilter && task.UpdatedFrom != nil &&
				!normalize.MatchesUpdatedFrom(record, task.UpdatedFrom) {
				continue
			}
			if err := write(record); err != nil {
				walkerAbortsTotal.WithLabelValues("write_error").Inc()
				return written, fmt.Errorf("write row: %w", err)
			}
			written++
			walkerRowsTotal.WithLabelValues(task.Country).Inc()
		}

		// Offsets track items received, not rows written, so resuming
		// stays aligned with the server's pages under client filtering.
		offset += len(items)
		done := len(items) < w.limit

		if err := report(Progress{
			Country:            task.Country,
			Label:              task.Label,
			NextSkip:           offset,
			Written:            written,
			Done:               done,
			ClientFilterActive: clientFilter,
		}); err != nil {
			return written, err
		}

		logger.Debug().
			Int("skip", offset).
			Int("page_items", len(items)).
			Int("written", written).
			Bool("client_filter", clientFilter).
			Msg("Page processed")

		if done {
			logger.Info().Int("written", written).Msg("Short page, cursor complete")
			return written, nil
		}

		if err := w.pacer.Pause(ctx); err != nil {
			return written, err
		}
	}
}
