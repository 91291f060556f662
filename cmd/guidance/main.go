package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kawanjalan/guidance/internal/api"
	"github.com/kawanjalan/guidance/internal/cache"
	"github.com/kawanjalan/guidance/internal/clients/directions"
	"github.com/kawanjalan/guidance/internal/clients/hazards"
	"github.com/kawanjalan/guidance/internal/clients/places"
	"github.com/kawanjalan/guidance/internal/config"
	"github.com/kawanjalan/guidance/internal/lib/catalog"
	"github.com/kawanjalan/guidance/internal/lib/geo"
	"github.com/kawanjalan/guidance/internal/lib/overlay"
	"github.com/kawanjalan/guidance/internal/services"
)

var (
	configPath string
	verbose    bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "guidance",
		Short: "Kawan Jalan guidance engine - route advisories for safer trips",
		Long: `Runs the Kawan Jalan guidance session: places advisory zones along a
route, watches the position feed, and surfaces one advisory at a time
through the overlay, speech, and notification channels.`,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Enable debug logging")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(simulateCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger() (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func overlayConfig(cfg *config.Config) overlay.Config {
	oc := overlay.DefaultConfig()
	oc.DedupWindow = cfg.Guidance.DedupWindow
	oc.SpeakDedupWindow = cfg.Guidance.SpeakDedupWindow
	oc.DismissAfter = cfg.Guidance.DismissAfter
	oc.TypeInterval = cfg.Guidance.TypeInterval
	if cfg.Guidance.SpeechLanguage != "" {
		oc.Speech.Language = cfg.Guidance.SpeechLanguage
	}
	return oc
}

// buildService assembles a guidance session from configuration. Clients for
// backends without credentials are simply left unwired.
func buildService(cfg *config.Config, origin geo.Point, mode catalog.VehicleMode, log *zap.Logger) *services.GuidanceService {
	arb := overlay.New(overlayConfig(cfg),
		services.NewLoggingSpeaker(log),
		services.NewLoggingNotifier(log),
		log)

	var opts []services.Option
	if cfg.Places.APIKey != "" {
		opts = append(opts, services.WithPlaceSource(places.NewClient(cfg.Places.APIKey, cfg.Places.BaseURL)))
	}
	if cfg.Hazards.FeedURL != "" {
		opts = append(opts, services.WithHazardSource(hazards.NewFeedParser(cfg.Hazards.FeedURL)))
	}

	var routeSrc services.RouteSource
	if cfg.Directions.APIKey != "" {
		routeSrc = directions.NewClient(cfg.Directions.APIKey, cfg.Directions.BaseURL)
	}

	return services.NewGuidanceService(cfg, routeSrc, cache.New(), arb, origin, mode, log, opts...)
}

func serveCmd() *cobra.Command {
	var originLat, originLng float64
	var modeName string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the guidance session and its HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			log, err := newLogger()
			if err != nil {
				return err
			}
			defer log.Sync()

			mode, err := catalog.ParseMode(modeName)
			if err != nil {
				return err
			}
			origin := geo.Point{Latitude: originLat, Longitude: originLng}
			if !geo.Valid(origin) {
				return fmt.Errorf("invalid origin %v", origin)
			}

			svc := buildService(cfg, origin, mode, log)
			defer svc.Close()

			addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
			server := &http.Server{
				Addr:    addr,
				Handler: api.NewServer(svc, log).Router(),
			}

			errCh := make(chan error, 1)
			go func() {
				log.Info("guidance server listening", zap.String("addr", addr))
				errCh <- server.ListenAndServe()
			}()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

			select {
			case err := <-errCh:
				return err
			case sig := <-sigCh:
				log.Info("shutting down", zap.String("signal", sig.String()))
			}

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return server.Shutdown(ctx)
		},
	}

	cmd.Flags().Float64Var(&originLat, "origin-lat", -6.2088, "Session origin latitude")
	cmd.Flags().Float64Var(&originLng, "origin-lng", 106.8456, "Session origin longitude")
	cmd.Flags().StringVar(&modeName, "mode", "motor", "Vehicle mode (motor, mobil, sepeda, jalan_kaki, angkutan_umum)")
	return cmd
}

func simulateCmd() *cobra.Command {
	var originLat, originLng, destLat, destLng float64
	var modeName string
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a simulated trip and print the advisories it fires",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			log, err := newLogger()
			if err != nil {
				return err
			}
			defer log.Sync()

			mode, err := catalog.ParseMode(modeName)
			if err != nil {
				return err
			}
			origin := geo.Point{Latitude: originLat, Longitude: originLng}
			dest := geo.Point{Latitude: destLat, Longitude: destLng}

			svc := buildService(cfg, origin, mode, log)
			defer svc.Close()

			if err := svc.SetDestination(cmd.Context(), dest); err != nil {
				return err
			}

			status := svc.Status()
			log.Info("simulation started",
				zap.String("feed", string(status.Feed)),
				zap.Int("zones", status.ZoneCount))

			deadline := time.After(timeout)
			ticker := time.NewTicker(500 * time.Millisecond)
			defer ticker.Stop()

			for {
				select {
				case <-cmd.Context().Done():
					return nil
				case <-deadline:
					return fmt.Errorf("trip did not arrive within %v", timeout)
				case <-ticker.C:
					status := svc.Status()
					if status.Arrived {
						log.Info("trip complete",
							zap.Strings("triggered", status.TriggeredIDs))
						return nil
					}
				}
			}
		},
	}

	cmd.Flags().Float64Var(&originLat, "origin-lat", -6.2088, "Trip origin latitude")
	cmd.Flags().Float64Var(&originLng, "origin-lng", 106.8456, "Trip origin longitude")
	cmd.Flags().Float64Var(&destLat, "dest-lat", -6.1754, "Trip destination latitude")
	cmd.Flags().Float64Var(&destLng, "dest-lng", 106.8272, "Trip destination longitude")
	cmd.Flags().StringVar(&modeName, "mode", "motor", "Vehicle mode")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Minute, "Give up if the trip has not arrived")
	return cmd
}
