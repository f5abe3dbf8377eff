// Package config loads run defaults from EAEU_EXPORT_* environment
// variables. Command-line flags override these values; the environment
// is for containerized and scheduled runs where flags are awkward.
package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Config carries the environment-provided defaults for an export run.
type Config struct {
	// Countries is a comma-separated country list or ALL.
	Countries string `envconfig:"COUNTRIES" default:"ALL"`

	// UpdatedFrom restricts the export to records updated at or after
	// this date/timestamp. Empty disables the filter.
	UpdatedFrom string `envconfig:"UPDATED_FROM" default:""`

	// DateFilterMode is auto, server or client.
	DateFilterMode string `envconfig:"DATE_FILTER_MODE" default:"auto"`

	// Limit is the page size of one request.
	Limit int `envconfig:"LIMIT" default:"30"`

	// SleepSeconds is the base pause between requests.
	SleepSeconds float64 `envconfig:"SLEEP" default:"0"`

	// SleepJitterMinSeconds and SleepJitterMaxSeconds bound the random
	// pause added on top of the base pause.
	SleepJitterMinSeconds float64 `envconfig:"SLEEP_JITTER_MIN" default:"1.0"`
	SleepJitterMaxSeconds float64 `envconfig:"SLEEP_JITTER_MAX" default:"3.0"`

	// Output is the explicit output filename; empty generates one.
	Output string `envconfig:"OUTPUT" default:""`

	// MaxRowsPerFile caps each CSV part.
	MaxRowsPerFile int `envconfig:"MAX_ROWS_PER_FILE" default:"10000"`

	// RequestTimeoutSeconds bounds one HTTP request.
	RequestTimeoutSeconds float64 `envconfig:"REQUEST_TIMEOUT" default:"60"`

	// RequestRetries is the connect-level retry attempt count of the
	// HTTP client. Status errors are never retried there.
	RequestRetries int `envconfig:"REQUEST_RETRIES" default:"6"`

	// SliceBy splits the export window: none, year or month.
	SliceBy string `envconfig:"SLICE_BY" default:"year"`

	// SliceDateField is docStartDate or docCreationDate.
	SliceDateField string `envconfig:"SLICE_DATE_FIELD" default:"docStartDate"`

	// SliceStart and SliceEnd bound the window, YYYY-MM-DD. An empty
	// SliceEnd means the current UTC date.
	SliceStart string `envconfig:"SLICE_START" default:"2015-01-01"`
	SliceEnd   string `envconfig:"SLICE_END" default:""`

	// UserAgent header for upstream requests; empty uses the default.
	UserAgent string `envconfig:"USER_AGENT" default:""`

	// StateBackend is file or redis.
	StateBackend string `envconfig:"STATE_BACKEND" default:"file"`

	// StateFile is the resume state path for the file backend.
	StateFile string `envconfig:"STATE_FILE" default:".eaeu_export_state.json"`

	// RedisAddr and RedisKey configure the redis state backend.
	RedisAddr string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisKey  string `envconfig:"REDIS_KEY" default:"eaeu:export:state"`

	// LogLevel is debug, info, warn or error; LogFile tees logs into a
	// file when set.
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	LogFile  string `envconfig:"LOG_FILE" default:""`

	// MetricsAddr exposes Prometheus metrics over HTTP when set
	// (e.g. ":9184").
	MetricsAddr string `envconfig:"METRICS_ADDR" default:""`
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("EAEU_EXPORT", &cfg); err != nil {
		return nil, fmt.Errorf("load environment config: %w", err)
	}
	return &cfg, nil
}
