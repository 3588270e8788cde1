package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/floodwatch/internal/adapter/floodapi"
	"github.com/couchcryptid/floodwatch/internal/config"
	"github.com/couchcryptid/floodwatch/internal/domain"
	"github.com/couchcryptid/floodwatch/internal/observability"
	"github.com/couchcryptid/floodwatch/internal/session"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"
)

// app is the process-wide wiring shared by every command.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	metrics  *observability.Metrics
	clock    clockwork.Clock
	regions  []domain.Region
	resolver *domain.RegionResolver
	client   *floodapi.Client
	parsers  *domain.Parsers
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(&app{}).ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "floodwatch",
		Short: "Browse active Australian flood warnings",
		Long: `floodwatch lists the active flood warnings for an Australian state or
territory, shows individual bulletins, and can keep a region refreshed
while exposing health and metrics endpoints.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd.Name() == watchCmdName)
		},
	}

	rootCmd.AddCommand(
		newRegionsCmd(a),
		newWarningsCmd(a),
		newShowCmd(a),
		newLocateCmd(a),
		newWatchCmd(a),
	)
	return rootCmd
}

// init loads configuration and builds the shared dependencies. Long-running
// watch mode logs like a service; one-shot commands keep stdout for output.
// Metrics already set, as in tests, are kept.
func (a *app) init(service bool) error {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return err
	}

	a.cfg = cfg
	if service {
		a.logger = observability.NewServiceLogger(cfg)
	} else {
		a.logger = observability.NewLogger(cfg)
	}
	if a.metrics == nil {
		a.metrics = observability.NewMetrics()
	}
	a.clock = clockwork.NewRealClock()
	a.parsers = domain.DefaultParsers()

	a.regions = domain.DefaultRegions()
	if cfg.RegionsFile != "" {
		regions, err := domain.LoadRegionsFile(cfg.RegionsFile)
		if err != nil {
			return fmt.Errorf("load regions: %w", err)
		}
		a.regions = regions
		a.logger.Info("regions loaded", "file", cfg.RegionsFile, "count", len(regions))
	}
	a.resolver = domain.NewRegionResolver(a.regions)
	a.client = floodapi.NewClient(cfg.APIURL, cfg.APITimeout, a.metrics, a.logger)
	return nil
}

func (a *app) newSession() *session.Session {
	return session.New(a.client, a.parsers, a.logger, a.metrics)
}

// locator returns the configured home locator, or nil when none is set.
func (a *app) locator() domain.Locator {
	if !a.cfg.HasHome() {
		return nil
	}
	return domain.StaticLocator{Position: domain.Coordinates{Lat: *a.cfg.HomeLat, Lng: *a.cfg.HomeLng}}
}

// regionFromArgs returns the region named on the command line, or the
// region containing the configured home location.
func (a *app) regionFromArgs(ctx context.Context, args []string) (string, error) {
	if len(args) > 0 {
		return lookupRegion(a.regions, args[0])
	}

	code, ok := session.DefaultRegion(ctx, a.clock, a.locator(), a.resolver, a.cfg.GeolocationTimeout, a.logger)
	if !ok {
		return "", fmt.Errorf("no region given and no home location inside a known region; pass one of %s", regionCodes(a.regions))
	}
	a.logger.Info("using home region", "region", code)
	return code, nil
}
