// Command arbitrage-core runs the detection core: it loads configuration,
// starts the engine (discovery, venue connections, detection sweeps), and
// serves the local health/stats/metrics surface until told to stop.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/arbitrage-core/arbitrage-core/internal/config"
	"github.com/arbitrage-core/arbitrage-core/internal/engine"
	"github.com/arbitrage-core/arbitrage-core/internal/transport/httpapi"
	"github.com/arbitrage-core/arbitrage-core/pkg/utils"
)

func main() {
	var configPath string
	pflag.StringVar(&configPath, "config", "", "optional YAML config file overlaying environment variables")
	pflag.Parse()

	if configPath != "" {
		if err := applyConfigOverlay(configPath); err != nil {
			log.Fatalf("failed to apply config overlay: %v", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := utils.InitGlobalLogger(utils.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	eng, err := engine.New(*cfg, logger)
	if err != nil {
		logger.Error("failed to construct engine", utils.Err(err))
		os.Exit(1)
	}

	startedAt := time.Now()
	router := httpapi.NewRouter(httpapi.Dependencies{
		Stats:       eng,
		StartedAt:   startedAt,
		EnablePprof: cfg.HTTP.EnablePprof,
		Logger:      logger.Logger,
	})
	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler: router,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := eng.Start(ctx); err != nil {
		logger.Error("failed to start engine", utils.Err(err))
		os.Exit(1)
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server failed", utils.Err(err))
		}
	}()

	logger.Info("arbitrage-core started",
		utils.String("http_addr", server.Addr),
		utils.Int("min_premium_bps", int(cfg.Detector.MinPremiumBPS)),
		utils.Int("discovery_min_venues", cfg.Discovery.MinVenues),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logger.Info("received shutdown signal", utils.String("signal", sig.String()))

	cancel()
	eng.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server forced to shutdown", utils.Err(err))
	}

	logger.Info("arbitrage-core stopped")
}

// applyConfigOverlay reads a YAML file via viper and exports every key as
// an environment variable in config.Load's recognized shape (upper-cased,
// dots to underscores), so the overlay only has to add a layer on top of
// config.Load rather than duplicate its defaulting logic.
func applyConfigOverlay(path string) error {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	for _, key := range v.AllKeys() {
		envKey := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if os.Getenv(envKey) != "" {
			continue // environment variables take precedence over the file overlay
		}
		if err := os.Setenv(envKey, fmt.Sprintf("%v", v.Get(key))); err != nil {
			return fmt.Errorf("setting %s: %w", envKey, err)
		}
	}
	return nil
}
