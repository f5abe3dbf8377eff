// Package export orchestrates a full run: it validates the run options,
// derives the country and time-slice work list, wires the HTTP client,
// cursor walker, resume state store and CSV writer together, and
// aggregates the totals.
package export

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/eaeu-tools/odata-export/pkg/client"
	"github.com/eaeu-tools/odata-export/pkg/csvout"
	"github.com/eaeu-tools/odata-export/pkg/normalize"
	"github.com/eaeu-tools/odata-export/pkg/pacing"
	"github.com/eaeu-tools/odata-export/pkg/state"
	"github.com/eaeu-tools/odata-export/pkg/timeslice"
	"github.com/eaeu-tools/odata-export/pkg/walker"
)

// Date filter modes for the "updated since" threshold.
const (
	// FilterModeAuto filters server-side, falling back to client-side
	// on a gateway timeout.
	FilterModeAuto = "auto"

	// FilterModeServer filters server-side only.
	FilterModeServer = "server"

	// FilterModeClient filters locally after download.
	FilterModeClient = "client"
)

// Defaults for optional run parameters.
const (
	DefaultLimit          = 30
	MaxLimit              = 10000
	DefaultMaxRowsPerFile = 10000
	DefaultSliceStart     = "2015-01-01"
	DefaultSliceDateField = "docStartDate"
	DefaultStateFile      = ".eaeu_export_state.json"

	// DefaultUserAgent mirrors a desktop browser; the service throttles
	// obviously scripted agents harder.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
)

// ValidCountries are the member-state codes the service recognizes.
var ValidCountries = []string{"AM", "BY", "KG", "KZ", "RU"}

// ParseCountries parses a comma-separated country list. "ALL" selects
// every member state; duplicates are removed preserving first occurrence.
func ParseCountries(raw string) ([]string, error) {
	value := strings.ToUpper(strings.TrimSpace(raw))
	if value == "ALL" {
		return slices.Clone(ValidCountries), nil
	}

	var countries []string
	seen := make(map[string]bool)
	var unknown []string
	for _, item := range strings.Split(value, ",") {
		code := strings.TrimSpace(item)
		if code == "" {
			continue
		}
		if !slices.Contains(ValidCountries, code) {
			unknown = append(unknown, code)
			continue
		}
		if !seen[code] {
			seen[code] = true
			countries = append(countries, code)
		}
	}
	if len(unknown) > 0 {
		return nil, fmt.Errorf("unknown country codes %s (valid: %s)",
			strings.Join(unknown, ", "), strings.Join(ValidCountries, ", "))
	}
	if len(countries) == 0 {
		return nil, fmt.Errorf("country list is empty")
	}
	return countries, nil
}

// Options configures one export run.
type Options struct {
	// Countries to export, already parsed (see ParseCountries).
	Countries []string

	// UpdatedFrom restricts the export to records updated at or after
	// this moment. Accepts 24.06.2024, 2024-06-24 or a full timestamp;
	// empty disables the filter.
	UpdatedFrom string

	// DateFilterMode is one of the FilterMode constants.
	DateFilterMode string

	// Limit is the page size, 1..MaxLimit.
	Limit int

	// Sleep is the base pause between page fetches; JitterMin/JitterMax
	// bound the random component added on top.
	Sleep     time.Duration
	JitterMin time.Duration
	JitterMax time.Duration

	// Output is the explicit output filename; empty generates one.
	Output string

	// MaxRowsPerFile caps each CSV part.
	MaxRowsPerFile int

	// RequestTimeout bounds a single HTTP request.
	RequestTimeout time.Duration

	// RequestRetries is the network-level attempt budget of the HTTP
	// client, including the initial request. Zero means a single attempt.
	RequestRetries int

	// SliceBy splits the export window: none, year or month.
	SliceBy string

	// SliceDateField is the record date the slices filter on.
	SliceDateField string

	// SliceStart and SliceEnd bound the window, YYYY-MM-DD. An empty
	// SliceEnd means the current UTC date.
	SliceStart string
	SliceEnd   string

	// UserAgent header for upstream requests.
	UserAgent string

	// Resume continues from the offsets in Store; ResetState clears the
	// store before starting.
	Resume     bool
	ResetState bool

	// Store persists resume state. Required.
	Store state.Store

	// BaseURL overrides the upstream endpoint (for testing).
	BaseURL string

	Logger zerolog.Logger
}

// Summary reports what a run produced.
type Summary struct {
	// RunID identifies the run in logs.
	RunID string

	// TotalRows counts the data rows written across all countries and slices.
	TotalRows int

	// Files lists every output part created, in order.
	Files []string
}

// plan is the validated, normalized form of Options.
type plan struct {
	opts          Options
	updatedFrom   string     // normalized timestamp literal, "" when off
	updatedFromDt *time.Time // parsed threshold
	slices        []timeslice.Slice
	sliceEndDay   string
	signature     state.Signature
	output        string
	serverFilter  bool
	allowFallback bool
}

func validate(opts Options) (*plan, error) {
	if len(opts.Countries) == 0 {
		return nil, fmt.Errorf("at least one country is required")
	}
	for _, code := range opts.Countries {
		if !slices.Contains(ValidCountries, code) {
			return nil, fmt.Errorf("unknown country code %q", code)
		}
	}
	if opts.Limit <= 0 {
		return nil, fmt.Errorf("limit must be positive (got %d)", opts.Limit)
	}
	if opts.Limit > MaxLimit {
		return nil, fmt.Errorf("limit must not exceed %d (got %d)", MaxLimit, opts.Limit)
	}
	if opts.MaxRowsPerFile <= 0 {
		return nil, fmt.Errorf("max rows per file must be positive (got %d)", opts.MaxRowsPerFile)
	}
	if opts.RequestTimeout <= 0 {
		return nil, fmt.Errorf("request timeout must be positive (got %v)", opts.RequestTimeout)
	}
	if opts.RequestRetries < 0 {
		return nil, fmt.Errorf("request retries must not be negative (got %d)", opts.RequestRetries)
	}
	if opts.Sleep < 0 {
		return nil, fmt.Errorf("sleep must not be negative (got %v)", opts.Sleep)
	}
	if opts.JitterMin < 0 || opts.JitterMax < 0 {
		return nil, fmt.Errorf("sleep jitter bounds must not be negative")
	}
	if opts.JitterMin > opts.JitterMax {
		return nil, fmt.Errorf("minimum sleep jitter %v exceeds maximum %v", opts.JitterMin, opts.JitterMax)
	}
	switch opts.DateFilterMode {
	case FilterModeAuto, FilterModeServer, FilterModeClient:
	default:
		return nil, fmt.Errorf("date filter mode must be auto, server or client (got %q)", opts.DateFilterMode)
	}
	switch opts.SliceDateField {
	case "docStartDate", "docCreationDate":
	default:
		return nil, fmt.Errorf("slice date field must be docStartDate or docCreationDate (got %q)", opts.SliceDateField)
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("state store is required")
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}

	p := &plan{opts: opts}

	if opts.UpdatedFrom != "" {
		normalized, err := normalize.NormalizeUTCTimestamp(opts.UpdatedFrom)
		if err != nil {
			return nil, fmt.Errorf("updated-from: %w", err)
		}
		p.updatedFrom = normalized
		if dt, ok := normalize.ParseISOUTC(normalized); ok {
			p.updatedFromDt = &dt
		}
	}
	p.serverFilter = p.updatedFrom != "" && opts.DateFilterMode != FilterModeClient
	p.allowFallback = opts.DateFilterMode == FilterModeAuto

	mode, err := timeslice.ParseMode(opts.SliceBy)
	if err != nil {
		return nil, err
	}
	start, err := normalize.ParseDay(opts.SliceStart)
	if err != nil {
		return nil, fmt.Errorf("slice-start: %w", err)
	}
	p.sliceEndDay = opts.SliceEnd
	if p.sliceEndDay == "" {
		p.sliceEndDay = time.Now().UTC().Format("2006-01-02")
	}
	end, err := normalize.ParseDay(p.sliceEndDay)
	if err != nil {
		return nil, fmt.Errorf("slice-end: %w", err)
	}
	p.slices, err = timeslice.Split(mode, start, end)
	if err != nil {
		return nil, err
	}

	p.signature = state.Signature{
		Countries:      opts.Countries,
		UpdatedFrom:    p.updatedFrom,
		DateFilterMode: opts.DateFilterMode,
		SliceBy:        opts.SliceBy,
		SliceDateField: opts.SliceDateField,
		SliceStart:     opts.SliceStart,
		SliceEnd:       p.sliceEndDay,
	}
	p.output = OutputName(opts.Countries, p.updatedFrom, opts.Output)
	return p, nil
}

// OutputName generates the output filename when none is given explicitly:
// export_odata_<countries>_[updated_]<stamp>.csv, with ALL standing in
// for the full member-state set.
func OutputName(countries []string, updatedFrom, explicit string) string {
	if explicit != "" {
		return explicit
	}

	suffix := strings.Join(countries, "_")
	if len(countries) == len(ValidCountries) {
		all := true
		for _, code := range ValidCountries {
			if !slices.Contains(countries, code) {
				all = false
				break
			}
		}
		if all {
			suffix = "ALL"
		}
	}

	stamp := time.Now().Format("20060102_150405")
	if updatedFrom != "" {
		return fmt.Sprintf("export_odata_%s_updated_%s.csv", suffix, stamp)
	}
	return fmt.Sprintf("export_odata_%s_%s.csv", suffix, stamp)
}

// Run executes one export end to end and returns the totals. The CSV
// writer is closed on every exit path; resume state is persisted after
// every page, so an interrupted run can continue with Resume set.
func Run(ctx context.Context, opts Options) (*Summary, error) {
	p, err := validate(opts)
	if err != nil {
		return nil, err
	}
	opts = p.opts

	runID := uuid.NewString()
	logger := opts.Logger.With().Str("run_id", runID).Logger()
	logger.Info().
		Strs("countries", opts.Countries).
		Str("updated_from", p.updatedFrom).
		Str("date_filter_mode", opts.DateFilterMode).
		Str("slice_by", opts.SliceBy).
		Str("slice_window", opts.SliceStart+".."+p.sliceEndDay).
		Int("limit", opts.Limit).
		Bool("resume", opts.Resume).
		Msg("Export run starting")

	if opts.ResetState {
		if err := opts.Store.Reset(ctx); err != nil {
			return nil, fmt.Errorf("reset state: %w", err)
		}
		logger.Info().Msg("Resume state cleared")
	}

	runState := state.NewState()
	if opts.Resume {
		runState, err = opts.Store.Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("load state: %w", err)
		}
		if err := runState.VerifySignature(p.signature); err != nil {
			return nil, err
		}
	}
	runState.Signature = &p.signature

	if opts.Resume && opts.Output != "" {
		if _, err := os.Stat(p.output); err == nil {
			return nil, fmt.Errorf("output %s already exists; choose another name so resumed rows are not overwritten", p.output)
		}
	}

	writer, err := csvout.NewPartWriter(p.output, opts.MaxRowsPerFile, OutputColumns)
	if err != nil {
		return nil, err
	}
	defer writer.Close()

	retry := client.DefaultRetryConfig()
	retry.MaxAttempts = max(opts.RequestRetries, 1)
	httpClient, err := client.New(client.Config{
		BaseURL:        opts.BaseURL,
		UserAgent:      opts.UserAgent,
		RequestTimeout: opts.RequestTimeout,
		Retry:          retry,
	})
	if err != nil {
		return nil, err
	}

	pageWalker, err := walker.New(walker.Config{
		Fetcher: httpClient,
		Limit:   opts.Limit,
		Pacer: pacing.Pacer{
			Base:      opts.Sleep,
			JitterMin: opts.JitterMin,
			JitterMax: opts.JitterMax,
		},
		Logger: logger,
	})
	if err != nil {
		return nil, err
	}

	total := 0
	for _, country := range opts.Countries {
		for _, slice := range p.slices {
			entry, known := runState.Entry(country, slice.Label)
			if opts.Resume && known && entry.Done {
				logger.Info().Str("country", country).Str("slice", slice.Label).
					Msg("Slice already complete, skipping")
				continue
			}

			task := walker.Task{
				Country:             country,
				Label:               slice.Label,
				SliceClauses:        client.SliceClauses(opts.SliceDateField, slice.StartDay(), slice.EndDay()),
				UpdatedFrom:         p.updatedFromDt,
				UpdatedFromValue:    p.updatedFrom,
				ServerUpdatedFilter: p.serverFilter,
				AllowFilterFallback: p.allowFallback,
			}
			if opts.Resume && known {
				task.StartOffset = entry.NextSkip
				task.ClientFilterActive = entry.ClientFilterActive
				if task.StartOffset > 0 {
					logger.Info().Str("country", country).Str("slice", slice.Label).
						Int("skip", task.StartOffset).Msg("Resuming slice from saved offset")
				}
			}

			written, err := pageWalker.Walk(ctx, task,
				func(record map[string]any) error {
					return writer.WriteRow(SelectedRow(record))
				},
				func(progress walker.Progress) error {
					runState.SetEntry(country, slice.Label, state.CursorState{
						NextSkip:           progress.NextSkip,
						WrittenInRun:       progress.Written,
						Done:               progress.Done,
						ClientFilterActive: progress.ClientFilterActive,
					})
					return opts.Store.Save(ctx, runState)
				})
			total += written
			if err != nil {
				return nil, err
			}
		}
	}

	if err := writer.Close(); err != nil {
		return nil, err
	}

	logger.Info().Int("rows", total).Int("files", len(writer.FilesCreated)).
		Msg("Export run complete")

	return &Summary{
		RunID:     runID,
		TotalRows: total,
		Files:     writer.FilesCreated,
	}, nil
}
