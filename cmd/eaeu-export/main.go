// Command eaeu-export streams EAEU open-data conformity documents into
// sharded CSV files, with resumable per-country cursors.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/eaeu-tools/odata-export/pkg/config"
	"github.com/eaeu-tools/odata-export/pkg/csvout"
	"github.com/eaeu-tools/odata-export/pkg/export"
	"github.com/eaeu-tools/odata-export/pkg/logging"
	"github.com/eaeu-tools/odata-export/pkg/metrics"
	"github.com/eaeu-tools/odata-export/pkg/state"
)

type exportFlags struct {
	countries      string
	updatedFrom    string
	dateFilterMode string
	limit          int
	sleep          float64
	jitterMin      float64
	jitterMax      float64
	output         string
	maxRowsPerFile int
	requestTimeout float64
	requestRetries int
	sliceBy        string
	sliceDateField string
	sliceStart     string
	sliceEnd       string
	userAgent      string
	resume         bool
	resetState     bool
	stateBackend   string
	stateFile      string
	redisAddr      string
	redisKey       string
	logLevel       string
	logFile        string
	metricsAddr    string
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	root := &cobra.Command{
		Use:           "eaeu-export",
		Short:         "Stream EAEU open-data conformity documents into CSV",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newExportCmd(cfg), newMergeCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newExportCmd(cfg *config.Config) *cobra.Command {
	flags := &exportFlags{}

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Run a (resumable) export",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runExport(cmd.Context(), flags)
		},
	}

	f := cmd.Flags()
	f.StringVar(&flags.countries, "countries", cfg.Countries,
		"Comma-separated country codes (e.g. RU,BY) or ALL")
	f.StringVar(&flags.updatedFrom, "updated-from", cfg.UpdatedFrom,
		"Only records updated at or after this date (24.06.2024, 2024-06-24 or full timestamp)")
	f.StringVar(&flags.dateFilterMode, "date-filter-mode", cfg.DateFilterMode,
		"Updated-from filter mode: auto, server or client")
	f.IntVar(&flags.limit, "limit", cfg.Limit, "Page size of one request (max 10000)")
	f.Float64Var(&flags.sleep, "sleep", cfg.SleepSeconds, "Base pause between requests, seconds")
	f.Float64Var(&flags.jitterMin, "sleep-jitter-min", cfg.SleepJitterMinSeconds,
		"Minimum random pause between requests, seconds")
	f.Float64Var(&flags.jitterMax, "sleep-jitter-max", cfg.SleepJitterMaxSeconds,
		"Maximum random pause between requests, seconds")
	f.StringVar(&flags.output, "output", cfg.Output,
		"Output CSV filename (generated when empty)")
	f.IntVar(&flags.maxRowsPerFile, "max-rows-per-file", cfg.MaxRowsPerFile,
		"Maximum rows per CSV part")
	f.Float64Var(&flags.requestTimeout, "request-timeout", cfg.RequestTimeoutSeconds,
		"Timeout of one HTTP request, seconds")
	f.IntVar(&flags.requestRetries, "request-retries", cfg.RequestRetries,
		"Connect-level HTTP retry attempts (status errors are never retried here)")
	f.StringVar(&flags.sliceBy, "slice-by", cfg.SliceBy,
		"Split the export window: none, year or month")
	f.StringVar(&flags.sliceDateField, "slice-date-field", cfg.SliceDateField,
		"Date field for slicing: docStartDate or docCreationDate")
	f.StringVar(&flags.sliceStart, "slice-start", cfg.SliceStart,
		"Window start, YYYY-MM-DD")
	f.StringVar(&flags.sliceEnd, "slice-end", cfg.SliceEnd,
		"Window end, YYYY-MM-DD (default: current UTC date)")
	f.StringVar(&flags.userAgent, "user-agent", cfg.UserAgent, "User-Agent header")
	f.BoolVar(&flags.resume, "resume", false, "Continue from the saved resume state")
	f.BoolVar(&flags.resetState, "reset-state", false, "Clear the resume state before starting")
	f.StringVar(&flags.stateBackend, "state-backend", cfg.StateBackend,
		"Resume state backend: file or redis")
	f.StringVar(&flags.stateFile, "state-file", cfg.StateFile,
		"Resume state path (file backend)")
	f.StringVar(&flags.redisAddr, "redis-addr", cfg.RedisAddr,
		"Redis address (redis backend)")
	f.StringVar(&flags.redisKey, "redis-key", cfg.RedisKey,
		"Redis key holding the resume state (redis backend)")
	f.StringVar(&flags.logLevel, "log-level", cfg.LogLevel,
		"Log level: debug, info, warn or error")
	f.StringVar(&flags.logFile, "log-file", cfg.LogFile,
		"Also write logs to this file")
	f.StringVar(&flags.metricsAddr, "metrics-addr", cfg.MetricsAddr,
		"Expose Prometheus metrics on this address (e.g. :9184)")

	return cmd
}

func runExport(ctx context.Context, flags *exportFlags) error {
	logCfg := logging.DefaultConfig()
	logCfg.Level = logging.LogLevel(flags.logLevel)
	logCfg.File = flags.logFile
	logger, err := logging.Setup(logCfg)
	if err != nil {
		return err
	}

	countries, err := export.ParseCountries(flags.countries)
	if err != nil {
		return err
	}

	store, closeStore, err := buildStore(ctx, flags, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	if flags.metricsAddr != "" {
		srv := metrics.NewServer(flags.metricsAddr)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Msg("Metrics server failed")
			}
		}()
		defer srv.Close()
		logger.Info().Str("addr", flags.metricsAddr).Msg("Metrics endpoint started")
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, err := export.Run(ctx, export.Options{
		Countries:      countries,
		UpdatedFrom:    flags.updatedFrom,
		DateFilterMode: flags.dateFilterMode,
		Limit:          flags.limit,
		Sleep:          secondsToDuration(flags.sleep),
		JitterMin:      secondsToDuration(flags.jitterMin),
		JitterMax:      secondsToDuration(flags.jitterMax),
		Output:         flags.output,
		MaxRowsPerFile: flags.maxRowsPerFile,
		RequestTimeout: secondsToDuration(flags.requestTimeout),
		RequestRetries: flags.requestRetries,
		SliceBy:        flags.sliceBy,
		SliceDateField: flags.sliceDateField,
		SliceStart:     flags.sliceStart,
		SliceEnd:       flags.sliceEnd,
		UserAgent:      flags.userAgent,
		Resume:         flags.resume,
		ResetState:     flags.resetState,
		Store:          store,
		Logger:         logger,
	})
	if err != nil {
		return err
	}

	printSummary(summary)
	return nil
}

func buildStore(ctx context.Context, flags *exportFlags, logger zerolog.Logger) (state.Store, func(), error) {
	switch flags.stateBackend {
	case "file":
		return state.NewFileStore(flags.stateFile), func() {}, nil
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: flags.redisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("connect to redis at %s: %w", flags.redisAddr, err)
		}
		logger.Info().Str("addr", flags.redisAddr).Str("key", flags.redisKey).
			Msg("Using redis resume state")
		return state.NewRedisStore(client, flags.redisKey), func() { client.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("state backend must be file or redis (got %q)", flags.stateBackend)
	}
}

func printSummary(summary *export.Summary) {
	if summary.TotalRows == 0 {
		fmt.Println("No data received.")
		return
	}
	if len(summary.Files) == 1 {
		fmt.Printf("Done: %d rows saved to %s\n", summary.TotalRows, summary.Files[0])
		return
	}
	fmt.Printf("Done: %d rows saved to %d files.\n", summary.TotalRows, len(summary.Files))
	for _, path := range summary.Files {
		fmt.Printf(" - %s\n", path)
	}
}

func newMergeCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "merge <glob>",
		Short: "Merge CSV part files into a single file",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			if output == "" {
				return fmt.Errorf("--output is required")
			}
			result, err := csvout.MergeParts(args[0], output)
			if err != nil {
				return err
			}
			fmt.Printf("Merged %d files (%d data rows) into %s\n",
				len(result.Files), result.DataRows, output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Merged output filename")
	return cmd
}

func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}
