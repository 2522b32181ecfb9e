package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/teslashibe/smartbin/internal/log"
	"github.com/teslashibe/smartbin/pkg/servo"
)

var servoTestCmd = &cobra.Command{
	Use:   "servo-test",
	Short: "Cycle every lid open and closed",
	RunE: func(cmd *cobra.Command, args []string) error {
		cycles, _ := cmd.Flags().GetInt("cycles")
		only, _ := cmd.Flags().GetString("actuator")

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		reg, closeRegistry, err := openRegistry(ctx, cfg, log.Component("servo"))
		if err != nil {
			return err
		}
		defer closeRegistry()

		actuators := reg.Actuators()
		if only != "" {
			a, err := reg.Actuator(only)
			if err != nil {
				return err
			}
			actuators = []*servo.Actuator{a}
		}

		for i := 0; i < cycles; i++ {
			for _, a := range actuators {
				if ctx.Err() != nil {
					fmt.Println("👋 interrupted")
					return nil
				}
				fmt.Printf("🔄 cycle %d/%d: %s (pin %d)\n", i+1, cycles, a.ID, a.Pin)
				if err := reg.DriveOpenClose(a); err != nil {
					return err
				}
			}
		}
		fmt.Println("✅ done")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(servoTestCmd)

	servoTestCmd.Flags().Int("cycles", 1, "Number of open/close cycles per actuator")
	servoTestCmd.Flags().String("actuator", "", "Only cycle this actuator")
}
