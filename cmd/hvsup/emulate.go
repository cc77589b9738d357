// cmd/hvsup/emulate.go
package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/tamzrod/hv-supervisor/internal/emulator"
)

var emulateListen = []string{"127.0.0.1:4100"}

// NewEmulateCommand serves one emulated power source per listen address.
func NewEmulateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "emulate",
		Short: "Serve emulated power sources for testing",
		RunE: func(_ *cobra.Command, _ []string) error {
			servers := make([]*emulator.Server, 0, len(emulateListen))
			for _, addr := range emulateListen {
				srv, err := emulator.Listen(addr, emulator.NewSource())
				if err != nil {
					for _, s := range servers {
						_ = s.Close()
					}
					return err
				}
				logrus.Infof("emulated device listening on %s", srv.Addr())
				servers = append(servers, srv)
			}

			sigc := make(chan os.Signal, 1)
			signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
			sig := <-sigc
			logrus.Infof("caught signal %q: shutting down", sig)

			for _, s := range servers {
				if err := s.Close(); err != nil {
					logrus.Errorf("failed to close emulator: %v", err)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&emulateListen, "listen", emulateListen,
		"addresses to serve emulated devices on (repeatable)")

	return cmd
}
