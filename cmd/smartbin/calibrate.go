package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/teslashibe/smartbin/internal/log"
)

var calibrateCmd = &cobra.Command{
	Use:   "calibrate <actuator> <offset>",
	Short: "Set and persist an actuator's zero offset",
	Long: `Stores a new zero offset for one lid servo and immediately re-drives the
servo with it, so the effect can be checked by eye.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		offset, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("offset %q: %w", args[1], err)
		}

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		reg, closeRegistry, err := openRegistry(cmd.Context(), cfg, log.Component("servo"))
		if err != nil {
			return err
		}
		defer closeRegistry()

		a, err := reg.Actuator(args[0])
		if err != nil {
			return err
		}
		previous := a.Offset
		if err := reg.Calibrate(cmd.Context(), a, offset); err != nil {
			return err
		}

		log.With("actuator", a.ID).Info("offset stored", "previous", previous, "offset", a.Offset)
		fmt.Printf("🔧 %s offset %.1f → %.1f (commanded %.1f)\n", a.ID, previous, a.Offset, a.Commanded())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(calibrateCmd)
}
