// cmd/hvsup/status.go
package main

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/tamzrod/hv-supervisor/internal/api"
	"github.com/tamzrod/hv-supervisor/internal/channel"
	"github.com/tamzrod/hv-supervisor/internal/check"
	"github.com/tamzrod/hv-supervisor/internal/supervisor"
)

func NewStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status [device-id]",
		Short: "Show the latest state of every device, or one device",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(daemonAddr)

			var snaps []supervisor.Snapshot
			if len(args) == 1 {
				snap, err := client.Device(args[0])
				if err != nil {
					return err
				}
				snaps = []supervisor.Snapshot{snap}
			} else {
				var err error
				snaps, err = client.Devices()
				if err != nil {
					return err
				}
			}

			for _, snap := range snaps {
				printSnapshot(cmd, snap)
			}
			return nil
		},
	}
}

func printSnapshot(cmd *cobra.Command, snap supervisor.Snapshot) {
	cmd.Println(bold(snap.DeviceID))
	cmd.Printf("  Link: %s\n", statusText(snap.StatusStr))
	if snap.LastError != "" {
		cmd.Printf("  Last error: %s\n", color.RedString(snap.LastError))
	}
	if !snap.HasResult {
		cmd.Println("  No poll completed yet.")
		cmd.Println()
		return
	}

	r := snap.Result.Reading
	cmd.Printf("  Output: %s\n", onOffText(r.Enabled))
	cmd.Printf("  Voltage: %s set, %s measured\n",
		bold("%.1f V", r.SetVoltage), bold("%.1f V", r.MeasuredVoltage))
	cmd.Printf("  Current: %s measured, limit %s\n",
		bold("%.1f uA", r.MeasuredCurrent), bold("%.1f uA", r.CurrentLimit))
	cmd.Printf("  Verdict: %s\n", verdictText(snap.Result.Verdict))
	cmd.Printf("  Polled: %s\n", snap.Result.At.Local().Format("15:04:05"))
	cmd.Println()
}

func statusText(s string) string {
	if s == channel.Ready.String() {
		return color.GreenString(s)
	}
	return color.RedString(s)
}

func onOffText(on bool) string {
	if on {
		return color.New(color.Bold, color.FgGreen).Sprint("on")
	}
	return color.New(color.Bold).Sprint("off")
}

func verdictText(v check.Verdict) string {
	if v == check.Ok {
		return color.New(color.Bold, color.FgGreen).Sprint(v.String())
	}
	return color.New(color.Bold, color.FgRed).Sprint(v.String())
}

func bold(format string, a ...interface{}) string {
	return color.New(color.Bold).Sprintf(format, a...)
}
