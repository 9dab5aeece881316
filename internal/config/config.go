// Package config handles configuration loading and validation for the
// comparison harness.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

var durationRe = regexp.MustCompile(`^\s*(\d+(?:\.\d+)?)\s*(ms|s|m)\s*$`)

// Error reports invalid CLI/env configuration values.
type Error struct {
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func errorf(format string, args ...any) *Error {
	return &Error{Message: fmt.Sprintf(format, args...)}
}

// Ratios holds the ratio gate thresholds.
//
// Semantics: wrk gates are inclusive (wrkr_rps >= wrk_rps * ratio), k6 gates
// are strict (wrkr_rps > k6_rps * ratio).
type Ratios struct {
	GetHello         float64
	PostJSON         float64
	WfbJSONAggregate float64

	WrkrOverK6                 float64
	GrpcWrkrOverK6             float64
	WfbGrpcAggregateWrkrOverK6 float64

	GrpcWrkrOverWrkHello float64
}

// DefaultRatios returns the stock gate thresholds.
func DefaultRatios() Ratios {
	return Ratios{
		GetHello:                   0.90,
		PostJSON:                   0.90,
		WfbJSONAggregate:           0.90,
		WrkrOverK6:                 1.40,
		GrpcWrkrOverK6:             2.00,
		WfbGrpcAggregateWrkrOverK6: 1.20,
		GrpcWrkrOverWrkHello:       0.70,
	}
}

// Requirements states which optional external tools must be present.
type Requirements struct {
	RequireWrk bool
	RequireK6  bool
}

// Tuning holds the load parameters shared by all cases.
type Tuning struct {
	// Duration stays a string for passing through to wrk/k6/wrkr; it must
	// parse via ParseDuration.
	Duration string

	WrkrVUs int
	K6VUs   int // 0 means "same as WrkrVUs"

	WrkThreads     int
	WrkConnections int

	Build  bool
	Native bool
}

// DefaultTuning returns the stock load parameters.
func DefaultTuning() Tuning {
	return Tuning{
		Duration:       "5s",
		WrkrVUs:        256,
		WrkThreads:     8,
		WrkConnections: 256,
		Build:          true,
		Native:         true,
	}
}

// Config is the resolved harness configuration.
type Config struct {
	// Root is the wrkr repository root: where tools/perf/* scripts live and
	// where cargo builds target/release binaries.
	Root string

	Tuning       Tuning
	Ratios       Ratios
	Requirements Requirements

	// CasesFile optionally replaces the default case set (YAML).
	CasesFile string
}

// EffectiveK6VUs returns the k6 VU count, defaulting to the wrkr VU count.
func (c *Config) EffectiveK6VUs() int {
	if c.Tuning.K6VUs > 0 {
		return c.Tuning.K6VUs
	}
	return c.Tuning.WrkrVUs
}

// Load builds a Config from environment variables (and .env when present),
// with stock defaults for anything unset. Flags layer on top of this.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("loading .env file: %w", err)
	}

	cfg := &Config{
		Root:   getEnv("WRKR_ROOT", "."),
		Tuning: DefaultTuning(),
		Ratios: DefaultRatios(),
	}

	cfg.Tuning.Duration = getEnv("PERF_DURATION", cfg.Tuning.Duration)

	var err error
	if cfg.Tuning.WrkrVUs, err = envInt("PERF_WRKR_VUS", cfg.Tuning.WrkrVUs); err != nil {
		return nil, err
	}
	if cfg.Tuning.K6VUs, err = envInt("PERF_K6_VUS", cfg.Tuning.K6VUs); err != nil {
		return nil, err
	}
	if cfg.Tuning.WrkThreads, err = envInt("PERF_WRK_THREADS", cfg.Tuning.WrkThreads); err != nil {
		return nil, err
	}
	if cfg.Tuning.WrkConnections, err = envInt("PERF_WRK_CONNECTIONS", cfg.Tuning.WrkConnections); err != nil {
		return nil, err
	}
	if cfg.Tuning.Build, err = envBool("PERF_BUILD", cfg.Tuning.Build); err != nil {
		return nil, err
	}
	if cfg.Tuning.Native, err = envBool("PERF_NATIVE", cfg.Tuning.Native); err != nil {
		return nil, err
	}
	if cfg.Requirements.RequireWrk, err = envBool("PERF_REQUIRE_WRK", false); err != nil {
		return nil, err
	}
	if cfg.Requirements.RequireK6, err = envBool("PERF_REQUIRE_K6", false); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks tuning and ratio values; the harness refuses to start on
// invalid settings rather than failing mid-run.
func (c *Config) Validate() error {
	if c.Root == "" {
		return errorf("root must not be empty")
	}
	if _, err := os.Stat(c.Root); err != nil {
		return errorf("wrkr root does not exist: %s", c.Root)
	}

	if err := ValidateTuning(c.Tuning); err != nil {
		return err
	}

	return ValidateRatios(c.Ratios)
}

// ParseDuration parses durations like "5s", "2.5s", "200ms", "1m" to seconds.
// It intentionally supports only what the load tools accept, not the full
// time.ParseDuration grammar.
func ParseDuration(value string) (float64, error) {
	m := durationRe.FindStringSubmatch(value)
	if m == nil {
		return 0, errorf("invalid duration %q: expected formats like '200ms', '5s', '1m' (decimals allowed)", value)
	}

	amount, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, errorf("invalid duration %q: %v", value, err)
	}

	switch m[2] {
	case "ms":
		return amount / 1000.0, nil
	case "s":
		return amount, nil
	case "m":
		return amount * 60.0, nil
	default:
		return 0, errorf("unsupported duration unit in %q", value)
	}
}

// ValidateRatios checks that every gate threshold is positive. Values above
// 1.0 are allowed (common for the wrkr-over-k6 gates).
func ValidateRatios(r Ratios) error {
	fields := []struct {
		name  string
		value float64
	}{
		{"ratio_ok_get_hello", r.GetHello},
		{"ratio_ok_post_json", r.PostJSON},
		{"ratio_ok_wfb_json_aggregate", r.WfbJSONAggregate},
		{"ratio_ok_wrkr_over_k6", r.WrkrOverK6},
		{"ratio_ok_grpc_wrkr_over_k6", r.GrpcWrkrOverK6},
		{"ratio_ok_wfb_grpc_aggregate_wrkr_over_k6", r.WfbGrpcAggregateWrkrOverK6},
		{"ratio_ok_grpc_wrkr_over_wrk_hello", r.GrpcWrkrOverWrkHello},
	}

	for _, f := range fields {
		if f.value <= 0 {
			return errorf("%s must be > 0, got %v", f.name, f.value)
		}
	}

	return nil
}

// ValidateTuning checks the load parameters: the duration must parse and
// VUs/threads/connections must be positive.
func ValidateTuning(t Tuning) error {
	if _, err := ParseDuration(t.Duration); err != nil {
		return err
	}

	if t.WrkrVUs <= 0 {
		return errorf("wrkr_vus must be > 0, got %d", t.WrkrVUs)
	}
	if t.K6VUs < 0 {
		return errorf("k6_vus must be >= 0, got %d", t.K6VUs)
	}
	if t.WrkThreads <= 0 {
		return errorf("wrk_threads must be > 0, got %d", t.WrkThreads)
	}
	if t.WrkConnections <= 0 {
		return errorf("wrk_connections must be > 0, got %d", t.WrkConnections)
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// envBool parses boolean env vars in a predictable way.
// Truthy: 1, true, yes, y, on. Falsy: 0, false, no, n, off. Unset: default.
func envBool(name string, defaultValue bool) (bool, error) {
	raw, ok := os.LookupEnv(name)
	if !ok {
		return defaultValue, nil
	}

	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "y", "on":
		return true, nil
	case "0", "false", "no", "n", "off":
		return false, nil
	default:
		return false, errorf("invalid boolean value for %s: %q (expected 'true/false', '1/0', 'yes/no', 'on/off')", name, raw)
	}
}

func envInt(name string, defaultValue int) (int, error) {
	raw, ok := os.LookupEnv(name)
	if !ok || strings.TrimSpace(raw) == "" {
		return defaultValue, nil
	}

	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, errorf("invalid integer value for %s: %q", name, raw)
	}

	return v, nil
}

func (c *Config) String() string {
	casesDisplay := c.CasesFile
	if casesDisplay == "" {
		casesDisplay = "(built-in defaults)"
	}

	return fmt.Sprintf(`Current Configuration:
======================
Root:              %s
Duration:          %s
wrkr VUs:          %d
k6 VUs:            %d
wrk Threads:       %d
wrk Connections:   %d
Build:             %t
Native CPU:        %t
Require wrk:       %t
Require k6:        %t
Cases:             %s`,
		c.Root,
		c.Tuning.Duration,
		c.Tuning.WrkrVUs,
		c.EffectiveK6VUs(),
		c.Tuning.WrkThreads,
		c.Tuning.WrkConnections,
		c.Tuning.Build,
		c.Tuning.Native,
		c.Requirements.RequireWrk,
		c.Requirements.RequireK6,
		casesDisplay,
	)
}
