package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/aadesh/autotagger/internal/awsclient"
	"github.com/aadesh/autotagger/internal/config"
	"github.com/aadesh/autotagger/internal/dispatch"
	"github.com/aadesh/autotagger/internal/logging"
	"github.com/aadesh/autotagger/internal/metrics"
	"github.com/aadesh/autotagger/internal/routing"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "autotagger",
	Short: "Tag newly created cloud resources with their creator",
	Long: `autotagger reacts to audit-trail events announcing that a resource was
created, works out who created it, and writes provenance tags onto the
resource.

Examples:
  autotagger lambda
  autotagger serve --config autotagger.yaml
  autotagger dispatch testdata/run_instances.json`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", os.Getenv("CONFIG_FILE"), "YAML config file overlaying the environment (hot-reloaded)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(lambdaCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(dispatchCmd)
}

// app is the wiring shared by every host.
type app struct {
	loader     *config.Loader
	log        *zap.Logger
	flush      func()
	dispatcher *dispatch.Dispatcher
}

func setup() (*app, error) {
	base, err := config.FromEnv()
	if err != nil {
		return nil, err
	}
	loader, err := config.NewLoader(base, cfgFile)
	if err != nil {
		return nil, err
	}
	cfg := loader.Config()

	level := cfg.LogLevel
	if verbose {
		level = "debug"
	}
	log, flush := logging.Install(logging.Config{Level: level, Format: cfg.LogFormat})

	// The client cache lives for the whole process so warm invocations reuse
	// clients.
	clients := awsclient.New(awsclient.DefaultLoad)
	d, err := dispatch.New(routing.Default(), clients.Registry(), dispatch.PolicyFromConfig(cfg), log.Named("dispatch"))
	if err != nil {
		flush()
		return nil, fmt.Errorf("build dispatcher: %w", err)
	}

	loader.OnChange(func(newCfg *config.Config) {
		d.SwapPolicy(dispatch.PolicyFromConfig(newCfg))
		metrics.PolicyReloads.WithLabelValues("ok").Inc()
		log.Info("policy reloaded", zap.Strings("excluded_services", newCfg.ExcludedServices))
	})
	loader.OnError(func(err error) {
		metrics.PolicyReloads.WithLabelValues("error").Inc()
		log.Warn("policy reload skipped: config invalid", zap.Error(err))
	})

	log.Info("dispatcher ready",
		zap.Strings("excluded_services", cfg.ExcludedServices),
		zap.String("fallback_region", cfg.Region),
		zap.String("config_file", cfgFile),
	)
	return &app{loader: loader, log: log, flush: flush, dispatcher: d}, nil
}

// watch starts hot-reload when a config file is in use.
func (a *app) watch() func() {
	if a.loader.Path() == "" {
		return func() {}
	}
	stop, err := a.loader.Watch()
	if err != nil {
		a.log.Warn("config watcher unavailable (hot-reload disabled)", zap.Error(err))
		return func() {}
	}
	return stop
}
