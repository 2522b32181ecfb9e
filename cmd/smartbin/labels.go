package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/teslashibe/smartbin/pkg/labels"
)

var labelsCmd = &cobra.Command{
	Use:   "labels",
	Short: "List classes and the actuator each one drives",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		resolver, err := labels.Load(cfg.LabelsPath)
		if err != nil {
			return err
		}

		for i, name := range resolver.Names() {
			id, ok := cfg.Servo.Classes[name]
			if !ok {
				id = "-"
			}
			fmt.Printf("%3d  %-16s %s\n", i, name, id)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(labelsCmd)
}
