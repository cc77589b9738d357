// cmd/hvsup/set.go
package main

import (
	"strconv"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/tamzrod/hv-supervisor/internal/api"
)

func NewSetVoltageCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set-voltage <device-id> <volts>",
		Short: "Request a new target voltage",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			volts, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return errors.Wrapf(err, "bad voltage %q", args[1])
			}
			if err := api.NewClient(daemonAddr).SetVoltage(args[0], volts); err != nil {
				return err
			}
			cmd.Printf("%s: voltage %.1f V requested\n", args[0], volts)
			return nil
		},
	}
}

func NewSetCurrentLimitCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set-current-limit <device-id> <uA>",
		Short: "Request a new current limit",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return errors.Wrapf(err, "bad current limit %q", args[1])
			}
			if err := api.NewClient(daemonAddr).SetCurrentLimit(args[0], limit); err != nil {
				return err
			}
			cmd.Printf("%s: current limit %.1f uA requested\n", args[0], limit)
			return nil
		},
	}
}

func NewSetPowerCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set-power <device-id> <on|off>",
		Short: "Request the output on or off",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var on bool
			switch args[1] {
			case "on", "true", "1":
				on = true
			case "off", "false", "0":
				on = false
			default:
				return errors.Errorf("bad power state %q, want on or off", args[1])
			}
			if err := api.NewClient(daemonAddr).SetPower(args[0], on); err != nil {
				return err
			}
			cmd.Printf("%s: power %s requested\n", args[0], args[1])
			return nil
		},
	}
}
