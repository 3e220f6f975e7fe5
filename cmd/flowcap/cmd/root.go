// Package cmd contains the flowcap command line interface implementation
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/flowmetrics/flowcap/pkg/capture"
	"github.com/flowmetrics/flowcap/pkg/conf"
	"github.com/flowmetrics/flowcap/pkg/driver"
	"github.com/flowmetrics/flowcap/pkg/logging"
	"github.com/flowmetrics/flowcap/pkg/publisher"
	"github.com/flowmetrics/flowcap/pkg/version"

	fcconfig "github.com/flowmetrics/flowcap/cmd/flowcap/config"
)

const shutdownGracePeriod = 30 * time.Second

// Execute builds and runs the flowcap root command.
func Execute() error {
	rootCmd, err := newRootCmd(run)
	if err != nil {
		return err
	}

	rootCmd.AddCommand(newVersionCmd())

	return rootCmd.Execute()
}

// runFunc is the type of the function that is called when the root
// command is executed. It's defined mainly for testing purposes.
type runFunc func(ctx context.Context, cfg *fcconfig.Config) error

func newRootCmd(run runFunc) (*cobra.Command, error) {
	cfg := fcconfig.New()

	rootCmd := &cobra.Command{
		Use:   "flowcap",
		Short: "flowcap captures packets and publishes per-flow feature vectors",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if err := initConfig(cfg); err != nil {
				return fmt.Errorf("failed to initialize configuration: %w", err)
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			return initLogging(cfg)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), cfg)
		},
	}

	if err := registerFlags(rootCmd, cfg); err != nil {
		return nil, fmt.Errorf("failed to register flags: %w", err)
	}

	return rootCmd, nil
}

const (
	captureKey               = "capture"
	flagCaptureIface         = captureKey + ".interface"
	flagCapturePromisc       = captureKey + ".promiscuous"
	flagCapturePortID        = captureKey + ".port_id"
	flagCaptureNbMbufs       = captureKey + ".nb_mbufs"
	flagCaptureCacheSize     = captureKey + ".cache_size"
	flagCaptureBurstSize     = captureKey + ".burst_size"
	flagCaptureRxRingSize    = captureKey + ".rx_ring_size"
	flagCaptureTxRingSize    = captureKey + ".tx_ring_size"
	flagCaptureIdleExpiry    = captureKey + ".idle_expiry"
	flagCaptureSweepInterval = captureKey + ".sweep_interval"

	busKey                  = "bus"
	flagBusBootstrapServers = busKey + ".bootstrap_servers"
	flagBusTopic            = busKey + ".topic"
	flagBusClientID         = busKey + ".client_id"
)

func registerFlags(cmd *cobra.Command, cfg *fcconfig.Config) error {
	if cfg == nil {
		return fmt.Errorf("configuration must not be nil")
	}

	pflags := cmd.PersistentFlags()

	if err := conf.RegisterFlags(cmd); err != nil {
		return err
	}

	pflags.StringVar(&cfg.Capture.Interface, flagCaptureIface, "", "interface to capture from")
	pflags.BoolVar(&cfg.Capture.Promiscuous, flagCapturePromisc, false, "put the interface into promiscuous mode")
	pflags.Uint16Var(&cfg.Capture.PortID, flagCapturePortID, cfg.Capture.PortID, "driver port identifier")
	pflags.IntVar(&cfg.Capture.NbMbufs, flagCaptureNbMbufs, cfg.Capture.NbMbufs, "buffer pool size")
	pflags.IntVar(&cfg.Capture.CacheSize, flagCaptureCacheSize, cfg.Capture.CacheSize, "per-core buffer pool cache size")
	pflags.IntVar(&cfg.Capture.BurstSize, flagCaptureBurstSize, cfg.Capture.BurstSize, "maximum buffers drained per burst")
	pflags.IntVar(&cfg.Capture.RxRingSize, flagCaptureRxRingSize, cfg.Capture.RxRingSize, "receive queue descriptor depth")
	pflags.IntVar(&cfg.Capture.TxRingSize, flagCaptureTxRingSize, cfg.Capture.TxRingSize, "transmit queue descriptor depth")
	pflags.StringVar(&cfg.Capture.IdleExpiry, flagCaptureIdleExpiry, "", "flow idle timeout before eviction (e.g. 300s)")
	pflags.StringVar(&cfg.Capture.SweepInterval, flagCaptureSweepInterval, "", "minimum spacing between flow table sweeps (e.g. 60s)")

	pflags.StringSliceVar(&cfg.Bus.BootstrapServers, flagBusBootstrapServers, cfg.Bus.BootstrapServers, "bus bootstrap server addresses")
	pflags.StringVar(&cfg.Bus.Topic, flagBusTopic, cfg.Bus.Topic, "bus topic feature vectors are published to")
	pflags.StringVar(&cfg.Bus.ClientID, flagBusClientID, cfg.Bus.ClientID, "bus client identifier")

	return viper.BindPFlags(pflags)
}

// initConfig reads in config file and ENV variables if set.
func initConfig(cfg *fcconfig.Config) error {
	if cfg == nil {
		return fmt.Errorf("configuration must not be nil")
	}

	path := viper.GetString(conf.ConfigFile)
	if path != "" {
		viper.SetConfigFile(path)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read configuration file: %w", err)
		}
	}

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "__"))
	viper.AutomaticEnv()

	if err := viper.Unmarshal(cfg); err != nil {
		return fmt.Errorf("failed to parse configuration: %w", err)
	}

	return nil
}

func initLogging(cfg *fcconfig.Config) error {
	appVersion := version.Version()
	loggerOpts := []logging.Option{
		logging.WithVersion(appVersion),
	}

	if cfg.Logging.Destination != "" {
		loggerOpts = append(loggerOpts, logging.WithFileOutput(cfg.Logging.Destination))
	}

	return logging.Init(
		logging.LevelFromString(cfg.Logging.Level),
		logging.Encoding(cfg.Logging.Encoding),
		loggerOpts...,
	)
}

func run(ctx context.Context, cfg *fcconfig.Config) error {
	logger := logging.FromContext(ctx)
	logger.Info("loaded configuration")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()

	idleExpiry, sweepInterval, err := parseTableTimings(cfg.Capture)
	if err != nil {
		return fmt.Errorf("invalid flow table timing configuration: %w", err)
	}

	adapter := driver.NewAFPacketAdapter(cfg.Capture.Interface, cfg.Capture.Promiscuous)

	loopCfg := capture.Config{
		PortID:        cfg.Capture.PortID,
		NbMbufs:       cfg.Capture.NbMbufs,
		CacheSize:     cfg.Capture.CacheSize,
		BurstSize:     cfg.Capture.BurstSize,
		RxRingSize:    cfg.Capture.RxRingSize,
		TxRingSize:    cfg.Capture.TxRingSize,
		IdleExpiry:    idleExpiry,
		SweepInterval: sweepInterval,
	}
	loop := capture.New(adapter, loopCfg)

	if err := loop.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize capture loop: %w", err)
	}

	pub, err := publisher.New(publisher.Config{
		BootstrapServers: cfg.Bus.BootstrapServers,
		Topic:            cfg.Bus.Topic,
		ClientID:         cfg.Bus.ClientID,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to bus: %w", err)
	}

	runErrCh := make(chan error, 1)
	go func() {
		runErrCh <- loop.Run(ctx, pub)
	}()

	logger.Info("started flowcap")

	select {
	case <-ctx.Done():
		stop()
		logger.Info("shutting down gracefully")
		loop.Stop()
	case err := <-runErrCh:
		if closeErr := pub.Close(); closeErr != nil {
			logger.Errorf("failed to close bus publisher: %v", closeErr)
		}
		return err
	}

	fallbackCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
	defer cancel()

	select {
	case err := <-runErrCh:
		if err != nil {
			logger.Errorf("capture loop stopped with error: %v", err)
		}
	case <-fallbackCtx.Done():
		logger.Errorf("capture loop did not stop within the shutdown grace period")
	}

	if err := pub.Close(); err != nil {
		logger.Errorf("failed to close bus publisher: %v", err)
	}
	logger.Info("graceful shut down completed")

	return nil
}

func parseTableTimings(cfg fcconfig.CaptureConfig) (idleExpiry, sweepInterval time.Duration, err error) {
	if cfg.IdleExpiry != "" {
		idleExpiry, err = time.ParseDuration(cfg.IdleExpiry)
		if err != nil {
			return 0, 0, fmt.Errorf("idle_expiry: %w", err)
		}
	}
	if cfg.SweepInterval != "" {
		sweepInterval, err = time.ParseDuration(cfg.SweepInterval)
		if err != nil {
			return 0, 0, fmt.Errorf("sweep_interval: %w", err)
		}
	}
	return idleExpiry, sweepInterval, nil
}
