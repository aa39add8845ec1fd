package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/maxwell-dev/maxwell-master/pkg/config"
	"github.com/maxwell-dev/maxwell-master/pkg/dispatcher"
	"github.com/maxwell-dev/maxwell-master/pkg/log"
	"github.com/maxwell-dev/maxwell-master/pkg/metrics"
	"github.com/maxwell-dev/maxwell-master/pkg/registry"
	"github.com/maxwell-dev/maxwell-master/pkg/routemgr"
	"github.com/maxwell-dev/maxwell-master/pkg/store"
	"github.com/maxwell-dev/maxwell-master/pkg/topicmgr"
	"github.com/maxwell-dev/maxwell-master/pkg/transport"
)

// Version is set via ldflags at build time.
var Version = "dev"

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "maxwell-master",
	Short:   "maxwell-master is the control-plane master for frontends, backends, and services",
	Version: Version,
	RunE:    run,
}

func init() {
	rootCmd.Flags().String("config", "./maxwell-master.yaml", "Path to the configuration file")
	rootCmd.Flags().String("log-level", "", "Override the configured log level (debug, info, warn, error)")
	rootCmd.Flags().Bool("log-json", false, "Force JSON log output regardless of configuration")
}

func run(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	logLevel, _ := cmd.Flags().GetString("log-level")
	forceJSON, _ := cmd.Flags().GetBool("log-json")

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if forceJSON {
		cfg.LogJSON = true
	}
	log.Init(log.Config{Level: log.Level(cfg.LogLevel), JSONOutput: cfg.LogJSON})

	kv, err := store.OpenBoltStore(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer kv.Close()

	servicesTable, err := kv.Table("service_mgr.services")
	if err != nil {
		return fmt.Errorf("open services table: %w", err)
	}
	routesTable, err := kv.Table("route_mgr.routes")
	if err != nil {
		return fmt.Errorf("open routes table: %w", err)
	}
	topicsTable, err := kv.Table("topic_mgr.topics")
	if err != nil {
		return fmt.Errorf("open topics table: %w", err)
	}
	topicInfoTable, err := kv.Table("topic_mgr.infos")
	if err != nil {
		return fmt.Errorf("open topic info table: %w", err)
	}

	frontends := registry.NewFrontendManager(cfg.Frontends)
	backends := registry.NewBackendManager(cfg.Backends)
	services, err := registry.NewServiceManager(servicesTable, cfg.UnhealthyThresholdSeconds, cfg.StaleThresholdSeconds)
	if err != nil {
		return fmt.Errorf("start service manager: %w", err)
	}
	routes, err := routemgr.NewRouteManager(routesTable)
	if err != nil {
		return fmt.Errorf("start route manager: %w", err)
	}
	topics, err := topicmgr.NewTopicManager(topicsTable, topicInfoTable, backends)
	if err != nil {
		return fmt.Errorf("start topic manager: %w", err)
	}

	metrics.FrontendsTotal.Set(float64(len(cfg.Frontends)))
	metrics.BackendsTotal.Set(float64(len(cfg.Backends)))

	disp := dispatcher.New(frontends, backends, services, routes, topics)
	srv := transport.NewServer(cfg, disp)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		log.Logger.Info().Msg("shutting down")
	case err := <-errCh:
		return fmt.Errorf("listener error: %w", err)
	}

	return nil
}
