package config

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookupFrom(env map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
}

func TestFromLookupDefaults(t *testing.T) {
	cfg, err := FromLookup(lookupFrom(nil))
	require.NoError(t, err)

	assert.Equal(t, DefaultLogLevel, cfg.LogLevel)
	assert.Equal(t, DefaultRegion, cfg.Region)
	assert.Equal(t, []string{"cloudtrail", "logs"}, cfg.ExcludedServices)
	assert.Equal(t, map[string]string{"AutoTagged": "true", "ManagedBy": "AutoTagger"}, cfg.DefaultTags)
	assert.Empty(t, cfg.OverrideTags)
	assert.Equal(t, DefaultWorkers, cfg.Engine.Workers)
	require.NoError(t, Validate(cfg))
}

func TestFromLookupOverrides(t *testing.T) {
	cfg, err := FromLookup(lookupFrom(map[string]string{
		"LOG_LEVEL":         "DEBUG",
		"AWS_REGION":        "eu-central-1",
		"EXCLUDED_SERVICES": " cloudtrail , , config ",
		"DEFAULT_TAGS":      "",
		"OVERRIDE_TAGS":     "Owner=platform",
		"BATCH_WORKERS":     "3",
	}))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "eu-central-1", cfg.Region)
	assert.Equal(t, []string{"cloudtrail", "config"}, cfg.ExcludedServices)
	assert.Empty(t, cfg.DefaultTags, "an empty DEFAULT_TAGS disables the defaults")
	assert.Equal(t, map[string]string{"Owner": "platform"}, cfg.OverrideTags)
	assert.Equal(t, 3, cfg.Engine.Workers)
}

func TestFromLookupCollectsErrors(t *testing.T) {
	_, err := FromLookup(lookupFrom(map[string]string{
		"QUEUE_DEPTH":   "lots",
		"OVERRIDE_TAGS": "broken",
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "QUEUE_DEPTH")
	assert.Contains(t, err.Error(), "OVERRIDE_TAGS")
}

func TestValidate(t *testing.T) {
	base, err := FromLookup(lookupFrom(nil))
	require.NoError(t, err)

	cfg := base.clone()
	cfg.LogLevel = "loud"
	cfg.Engine.Workers = 0
	cfg.DefaultTags["aws:owner"] = "x"
	cfg.OverrideTags[strings.Repeat("k", 129)] = "v"
	cfg.OverrideTags["Long"] = strings.Repeat("v", 257)

	err = Validate(cfg)
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "LogLevel")
	assert.Contains(t, msg, "Workers")
	assert.Contains(t, msg, "reserved")
	assert.Contains(t, msg, "key longer than 128")
	assert.Contains(t, msg, "value longer than 256")
}

func TestValidateTooManyStaticTags(t *testing.T) {
	base, err := FromLookup(lookupFrom(map[string]string{"DEFAULT_TAGS": ""}))
	require.NoError(t, err)
	for i := 0; i < 46; i++ {
		base.DefaultTags[strings.Repeat("k", i+1)] = "v"
	}
	assert.ErrorContains(t, Validate(base), "distinct keys")
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoaderOverlaysFile(t *testing.T) {
	base, err := FromLookup(lookupFrom(nil))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "autotagger.yaml")
	writeFile(t, path, `
log_level: warn
excluded_services: [cloudtrail, logs, config]
override_tags:
  CostCenter: "42"
engine:
  workers: 2
`)

	l, err := NewLoader(base, path)
	require.NoError(t, err)
	cfg := l.Config()

	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, []string{"cloudtrail", "logs", "config"}, cfg.ExcludedServices)
	assert.Equal(t, "42", cfg.OverrideTags["CostCenter"])
	assert.Equal(t, 2, cfg.Engine.Workers)
	assert.Equal(t, DefaultQueueDepth, cfg.Engine.QueueDepth)
	assert.Equal(t, "true", cfg.DefaultTags["AutoTagged"])

	// base is not mutated by the overlay
	assert.Equal(t, DefaultLogLevel, base.LogLevel)
	assert.Empty(t, base.OverrideTags)
}

func TestLoaderWithoutFile(t *testing.T) {
	base, err := FromLookup(lookupFrom(nil))
	require.NoError(t, err)

	l, err := NewLoader(base, "")
	require.NoError(t, err)
	assert.Equal(t, base.Region, l.Config().Region)

	_, err = l.Watch()
	assert.Error(t, err)
}

func TestLoaderRejectsInvalidFile(t *testing.T) {
	base, err := FromLookup(lookupFrom(nil))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "autotagger.yaml")
	writeFile(t, path, "log_format: xml\n")
	_, err = NewLoader(base, path)
	assert.ErrorContains(t, err, "LogFormat")

	writeFile(t, path, "engine: [1, 2\n")
	_, err = NewLoader(base, path)
	assert.ErrorContains(t, err, "parse config")
}

func TestLoaderReload(t *testing.T) {
	base, err := FromLookup(lookupFrom(nil))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "autotagger.yaml")
	writeFile(t, path, "excluded_services: [cloudtrail]\n")
	l, err := NewLoader(base, path)
	require.NoError(t, err)

	var seen *Config
	l.OnChange(func(c *Config) { seen = c })

	writeFile(t, path, "excluded_services: [cloudtrail, s3]\n")
	cfg, err := l.Reload()
	require.NoError(t, err)
	require.NotNil(t, seen)
	assert.Equal(t, []string{"cloudtrail", "s3"}, seen.ExcludedServices)
	assert.Same(t, cfg, l.Config())

	// A broken file leaves the previous config in force.
	writeFile(t, path, "log_level: shouty\n")
	_, err = l.Reload()
	require.Error(t, err)
	assert.Same(t, cfg, l.Config())
}

func TestLoaderWatchFollowsWritesAndRenames(t *testing.T) {
	base, err := FromLookup(lookupFrom(nil))
	require.NoError(t, err)

	dir := t.TempDir()
	path := filepath.Join(dir, "autotagger.yaml")
	writeFile(t, path, "excluded_services: [cloudtrail]\n")
	l, err := NewLoader(base, path)
	require.NoError(t, err)

	var (
		mu      sync.Mutex
		changes int
		errs    []error
	)
	l.OnChange(func(*Config) {
		mu.Lock()
		changes++
		mu.Unlock()
	})
	l.OnError(func(err error) {
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	})
	changeCount := func() int {
		mu.Lock()
		defer mu.Unlock()
		return changes
	}

	stop, err := l.Watch()
	require.NoError(t, err)
	defer stop()

	expectExcluded := func(save func(), want ...string) {
		t.Helper()
		before := changeCount()
		save()
		assert.Eventually(t, func() bool {
			return changeCount() > before && assert.ObjectsAreEqual(want, l.Config().ExcludedServices)
		}, 2*time.Second, 10*time.Millisecond)
	}

	expectExcluded(func() {
		writeFile(t, path, "excluded_services: [cloudtrail, s3]\n")
	}, "cloudtrail", "s3")

	// An editor-style save: write elsewhere, then rename over the config.
	tmp := filepath.Join(dir, ".autotagger.yaml.swp")
	writeFile(t, tmp, "excluded_services: [cloudtrail, ec2]\n")
	expectExcluded(func() {
		require.NoError(t, os.Rename(tmp, path))
	}, "cloudtrail", "ec2")

	// The watch survives the rename.
	expectExcluded(func() {
		writeFile(t, path, "excluded_services: [lambda]\n")
	}, "lambda")

	// Unrelated files in the directory are ignored.
	time.Sleep(50 * time.Millisecond)
	before := changeCount()
	writeFile(t, filepath.Join(dir, "other.yaml"), "log_level: debug\n")
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, before, changeCount())

	writeFile(t, path, "log_level: shouty\n")
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(errs) > 0
	}, 2*time.Second, 10*time.Millisecond)
	assert.NotEqual(t, "shouty", l.Config().LogLevel)
	assert.NoError(t, Validate(l.Config()))
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()

	assert.NoError(t, loadDotEnv(filepath.Join(dir, "missing.env")))

	bad := filepath.Join(dir, "bad.env")
	writeFile(t, bad, "BAD-KEY=1\n")
	err := loadDotEnv(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load "+bad)

	// A directory exists but cannot be read as a dotenv file.
	assert.Error(t, loadDotEnv(dir))
}
