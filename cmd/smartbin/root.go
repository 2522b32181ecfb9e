package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/teslashibe/smartbin/internal/config"
	"github.com/teslashibe/smartbin/internal/log"
	"github.com/teslashibe/smartbin/pkg/calibration"
	"github.com/teslashibe/smartbin/pkg/servo"
)

var rootCmd = &cobra.Command{
	Use:           "smartbin",
	Short:         "Camera-driven waste sorting bin",
	Long:          `smartbin classifies items held in front of the camera and opens the lid of the matching bin.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("servo-backend", "", "Servo backend (auto, firmata, noop)")
}

// loadConfig reads the config file named by --config and applies the
// persistent flag overrides. It also initialises logging.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}

	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel, _ = cmd.Flags().GetString("log-level")
	}
	if cmd.Flags().Changed("servo-backend") {
		b, _ := cmd.Flags().GetString("servo-backend")
		cfg.Servo.Backend = servo.Backend(b)
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}

	log.Init(cfg.LogLevel)
	return cfg, nil
}

// openRegistry connects the servo driver and calibration store and homes
// every actuator. Closing the returned registry also closes the store.
func openRegistry(ctx context.Context, cfg config.Config, logger *slog.Logger) (*servo.Registry, func() error, error) {
	driver, err := servo.NewDriver(cfg.Servo, logger)
	if err != nil {
		return nil, nil, err
	}

	store, err := calibration.Open(cfg.Calibration, logger)
	if err != nil {
		driver.Close()
		return nil, nil, err
	}

	reg, err := servo.NewRegistry(ctx, driver, store, cfg.Servo, servo.WithLogger(logger))
	if err != nil {
		store.Close()
		driver.Close()
		return nil, nil, fmt.Errorf("servo registry: %w", err)
	}

	closeFn := func() error {
		rerr := reg.Close()
		if serr := store.Close(); rerr == nil {
			rerr = serr
		}
		return rerr
	}
	return reg, closeFn, nil
}
