// Package cmd implements the octowatt command line.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/kilianp07/octowatt/api"
	"github.com/kilianp07/octowatt/app"
	"github.com/kilianp07/octowatt/config"
	"github.com/kilianp07/octowatt/infra/logger"
	"github.com/kilianp07/octowatt/infra/metrics"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "octowatt",
	Short: "Octopus Energy consumption sync and appliance start times",
	Long: "octowatt keeps a local copy of smart meter readings and the Agile tariff, " +
		"reports missing readings and recommends the cheapest appliance start times.",
	RunE:          serve,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "config.yaml", "configuration file (yaml or json)")
}

// Execute runs the CLI.
func Execute() error { return rootCmd.Execute() }

// setup loads the configuration, configures logging and builds the service.
func setup() (*config.Config, *app.Service, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if err := logger.Configure(cfg.Logging.Options()); err != nil {
		return nil, nil, fmt.Errorf("configure logging: %w", err)
	}
	svc, err := app.New(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, svc, nil
}

func closeService(svc *app.Service) {
	if err := svc.Close(); err != nil {
		logger.New("main").Errorf("service close: %v", err)
	}
	if err := logger.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "close log file: %v\n", err)
	}
}

func serve(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, svc, err := setup()
	if err != nil {
		return err
	}
	defer closeService(svc)
	log := logger.New("serve")

	go func() {
		if err := svc.Run(ctx); err != nil {
			log.Errorf("publisher: %v", err)
		}
	}()
	if addr := cfg.Metrics.PrometheusAddr; addr != "" {
		go func() {
			if err := metrics.StartPromServer(ctx, addr, logger.New("prom")); err != nil {
				log.Errorf("prom server: %v", err)
			}
		}()
	}
	if cfg.Sync.Schedule != "" {
		c := cron.New()
		if _, err := c.AddFunc(cfg.Sync.Schedule, func() { update(ctx, svc, log) }); err != nil {
			return fmt.Errorf("schedule: %w", err)
		}
		c.Start()
		defer c.Stop()
		log.Infof("scheduled refresh %q", cfg.Sync.Schedule)
	}
	go update(ctx, svc, log)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.NewRouter(svc, cfg.Server, logger.New("api")),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second,
		WriteTimeout:      time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warnf("http shutdown: %v", err)
		}
	}()
	log.Infof("listening on %s", cfg.Server.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func update(ctx context.Context, svc *app.Service, log logger.Logger) {
	if _, err := svc.Update(ctx); err != nil && ctx.Err() == nil {
		log.Errorf("update cycle: %v", err)
	}
}
