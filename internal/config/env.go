package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/aadesh/autotagger/internal/tags"
)

// FromEnv builds the base configuration from the process environment, after
// loading a .env file from the working directory when one exists.
func FromEnv() (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}
	return FromLookup(os.LookupEnv)
}

// loadDotEnv loads path into the process environment. A missing file is not
// an error; an unreadable or malformed one is.
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("load %s: %w", path, err)
}

// FromLookup builds the base configuration from lookup, which has the
// signature of os.LookupEnv.
func FromLookup(lookup func(string) (string, bool)) (*Config, error) {
	get := func(key, def string) string {
		if v, _ := lookup(key); strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		return def
	}
	var errs []string
	getInt := func(key string, def int) int {
		raw, _ := lookup(key)
		if strings.TrimSpace(raw) == "" {
			return def
		}
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
			return def
		}
		return n
	}
	// An unset tag variable takes the default; one set to empty disables it.
	getTags := func(key, def string) map[string]string {
		raw, ok := lookup(key)
		if !ok {
			raw = def
		}
		set, err := tags.Parse(raw)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
			return map[string]string{}
		}
		return set
	}

	cfg := &Config{
		LogLevel:         strings.ToLower(get("LOG_LEVEL", DefaultLogLevel)),
		LogFormat:        strings.ToLower(get("LOG_FORMAT", DefaultLogFormat)),
		Region:           get("AWS_REGION", DefaultRegion),
		HTTPAddr:         get("HTTP_ADDR", DefaultHTTPAddr),
		ExcludedServices: splitList(get("EXCLUDED_SERVICES", DefaultExcludedServices)),
		DefaultTags:      getTags("DEFAULT_TAGS", DefaultDefaultTags),
		OverrideTags:     getTags("OVERRIDE_TAGS", ""),
		Engine: EngineConf{
			Workers:           getInt("BATCH_WORKERS", DefaultWorkers),
			QueueDepth:        getInt("QUEUE_DEPTH", DefaultQueueDepth),
			DispatchTimeoutMs: getInt("DISPATCH_TIMEOUT_MS", DefaultDispatchTimeoutMs),
		},
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("config env errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
