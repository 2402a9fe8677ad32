// Command halctl lists audio endpoints and plays, records and monitors through the alsahal device.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/gen2brain/alsahal"
	"github.com/gen2brain/alsahal/internal/logging"
)

type globalOptions struct {
	configFile  string
	logLevel    string
	metricsAddr string
}

func main() {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:           "halctl",
		Short:         "Audio HAL control tool",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "TOML configuration file")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level override (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9100")

	root.AddCommand(
		createCardsCmd(opts),
		createPlayCmd(opts),
		createRecordCmd(opts),
		createMonitorCmd(opts),
		createMixerCmd(opts),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the configuration file, if any, and initializes logging from it.
func (o *globalOptions) loadConfig() (alsahal.Config, error) {
	cfg := alsahal.DefaultConfig()

	if o.configFile != "" {
		var err error

		cfg, err = alsahal.LoadConfig(o.configFile)
		if err != nil {
			return cfg, err
		}
	}

	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}

	logging.Initialize(cfg.Logging)

	return cfg, nil
}

// openDevice loads the configuration, opens the device and starts the metrics endpoint.
func (o *globalOptions) openDevice() (*alsahal.Device, *slog.Logger, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, nil, err
	}

	logger := logging.GetLogger("halctl")

	dev, err := alsahal.Open(alsahal.WithConfig(cfg))
	if err != nil {
		return nil, nil, err
	}

	if o.metricsAddr != "" {
		serveMetrics(o.metricsAddr, logger)
	}

	return dev, logger, nil
}

func serveMetrics(addr string, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info("Serving metrics", "addr", addr)

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", "error", err)
		}
	}()
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
