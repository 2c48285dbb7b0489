package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// LookupFunc resolves one environment variable.
type LookupFunc func(key string) (string, bool)

// Load reads configuration from the process environment, applies defaults
// and validates the result.
func Load() (*Config, error) {
	return LoadFrom(os.LookupEnv)
}

// LoadFrom is Load with a custom variable source.
func LoadFrom(lookup LookupFunc) (*Config, error) {
	cfg := &Config{}

	if err := populate(reflect.ValueOf(cfg).Elem(), lookup); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// MapLookup serves variables from a map.
func MapLookup(vars map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

var durationType = reflect.TypeOf(time.Duration(0))

// populate fills tagged fields of a struct, recursing into nested structs.
func populate(v reflect.Value, lookup LookupFunc) error {
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fv := v.Field(i)
		if !fv.CanSet() {
			continue
		}

		if field.Type.Kind() == reflect.Struct {
			if err := populate(fv, lookup); err != nil {
				return err
			}
			continue
		}

		name := field.Tag.Get("env")
		if name == "" {
			continue
		}

		value := get(lookup, name)
		if value == "" {
			value = get(lookup, field.Tag.Get("envAlt"))
		}
		if value == "" {
			if field.Tag.Get("required") == "true" {
				return fmt.Errorf("required environment variable %s is not set", name)
			}
			value = field.Tag.Get("default")
		}
		if value == "" {
			continue
		}

		if err := assign(fv, value); err != nil {
			return fmt.Errorf("invalid value for %s=%q: %w", name, value, err)
		}
	}

	return nil
}

func get(lookup LookupFunc, key string) string {
	if key == "" {
		return ""
	}
	v, _ := lookup(key)
	return strings.TrimSpace(v)
}

// assign parses value into a field of kind string, int, duration, bool or []string.
func assign(fv reflect.Value, value string) error {
	if fv.Type() == durationType {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration: %w", err)
		}
		fv.SetInt(int64(d))
		return nil
	}

	switch fv.Kind() {
	case reflect.String:
		fv.SetString(value)

	case reflect.Int, reflect.Int64:
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid integer: %w", err)
		}
		fv.SetInt(n)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		fv.SetBool(b)

	case reflect.Slice:
		if fv.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type: %s", fv.Type().Elem().Kind())
		}
		var items []string
		for _, p := range strings.Split(value, ",") {
			if p = strings.TrimSpace(p); p != "" {
				items = append(items, p)
			}
		}
		fv.Set(reflect.ValueOf(items))

	default:
		return fmt.Errorf("unsupported field type: %s", fv.Kind())
	}

	return nil
}

// Validate checks the configuration and reports every problem at once.
func (c *Config) Validate() error {
	var errs []string
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Sprintf(format, args...))
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		add("SERVER_PORT (%d) must be 1-65535", c.Server.Port)
	}
	if c.Server.ReadTimeout < 0 {
		add("SERVER_READ_TIMEOUT must be non-negative")
	}
	if c.Server.ShutdownTimeout <= 0 {
		add("SERVER_SHUTDOWN_TIMEOUT must be positive")
	}

	if c.Database.Enabled() {
		if c.Database.MaxConns <= 0 {
			add("DB_MAX_CONNS must be positive")
		}
		if c.Database.MinConns < 0 {
			add("DB_MIN_CONNS must be non-negative")
		}
		if c.Database.MaxConns < c.Database.MinConns {
			add("DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)", c.Database.MaxConns, c.Database.MinConns)
		}
	}

	if c.Merge.MaxFileSize <= 0 {
		add("MERGE_MAX_FILE_SIZE must be positive")
	}
	if c.Merge.MaxConcurrent <= 0 {
		add("MERGE_MAX_CONCURRENT must be positive")
	}
	if c.Merge.MaxWaitTime <= 0 {
		add("MERGE_MAX_WAIT_TIME must be positive")
	}
	if c.Merge.Timeout <= 0 {
		add("MERGE_TIMEOUT must be positive")
	}
	if c.Merge.ResultTTL <= 0 {
		add("MERGE_RESULT_TTL must be positive")
	}
	if c.Merge.YieldEvery < 0 {
		add("MERGE_YIELD_EVERY must be non-negative")
	}
	if c.Merge.GuarantorStartRow < -1 {
		add("MERGE_GUARANTOR_START_ROW (%d) must be >= 0, or -1 to use the layout", c.Merge.GuarantorStartRow)
	}
	if c.Merge.ClientStartRow < -1 {
		add("MERGE_CLIENT_START_ROW (%d) must be >= 0, or -1 to use the layout", c.Merge.ClientStartRow)
	}
	if strings.TrimSpace(c.Merge.OutputName) == "" {
		add("MERGE_OUTPUT_NAME must not be empty")
	}

	if c.Store.BatchSize <= 0 {
		add("STORE_BATCH_SIZE must be positive")
	}

	if c.Sync.Interval < 0 {
		add("SYNC_INTERVAL must be non-negative")
	}
	if c.Sync.Interval > 0 && c.Sync.FeedURL == "" {
		add("SYNC_INTERVAL is set but SYNC_FEED_URL is empty")
	}
	if c.Sync.FeedURL != "" && !strings.HasPrefix(c.Sync.FeedURL, "http://") && !strings.HasPrefix(c.Sync.FeedURL, "https://") {
		add("SYNC_FEED_URL (%q) must be an http(s) URL", c.Sync.FeedURL)
	}
	if c.Sync.Timeout <= 0 {
		add("SYNC_TIMEOUT must be positive")
	}

	if c.Rate.Enabled && c.Rate.RequestsPerMinute <= 0 {
		add("RATE_LIMIT_REQUESTS_PER_MINUTE must be positive when rate limiting is enabled")
	}
	if c.Rate.Enabled && c.Rate.MergeLimit <= 0 {
		add("RATE_LIMIT_MERGE must be positive when rate limiting is enabled")
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		add("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		add("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format)
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// String returns a loggable summary with the database URL masked.
func (c *Config) String() string {
	db := "memory"
	if c.Database.Enabled() {
		db = "[MASKED]"
	}
	return fmt.Sprintf(
		"Config{Server: {Addr: %q}, Database: {URL: %s, MaxConns: %d}, "+
			"Merge: {MaxFileSize: %d, MaxConcurrent: %d, Timeout: %s, LayoutFile: %q}, "+
			"Sync: {FeedURL: %q, Interval: %s}, Rate: {Enabled: %v, RequestsPerMinute: %d}, "+
			"Logging: {Level: %q, Format: %q}}",
		c.Server.Addr(), db, c.Database.MaxConns,
		c.Merge.MaxFileSize, c.Merge.MaxConcurrent, c.Merge.Timeout, c.Merge.LayoutFile,
		c.Sync.FeedURL, c.Sync.Interval, c.Rate.Enabled, c.Rate.RequestsPerMinute,
		c.Logging.Level, c.Logging.Format,
	)
}
