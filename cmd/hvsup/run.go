// cmd/hvsup/run.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/tamzrod/hv-supervisor/internal/api"
	"github.com/tamzrod/hv-supervisor/internal/config"
	"github.com/tamzrod/hv-supervisor/internal/history"
	"github.com/tamzrod/hv-supervisor/internal/supervisor"
)

var profilePath = ""

func NewRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [config.yaml]",
		Short: "Run the supervisor daemon in the foreground",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			if len(args) == 1 {
				configPath = args[0]
			}
			return runDaemon()
		},
	}

	cmd.Flags().StringVarP(&profilePath, "profile", "p", "",
		"startup profile applied once the daemon is up (yaml)")

	return cmd
}

func runDaemon() error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}
	config.Normalize(cfg)

	// The flag wins over the config file entry.
	path := profilePath
	if path == "" {
		path = cfg.Supervisor.Profile
	}
	var profile *config.Profile
	if path != "" {
		profile, err = config.LoadProfile(path, cfg)
		if err != nil {
			return err
		}
	}

	recorder, err := history.NewFileRecorder(cfg.Supervisor.HistoryFile)
	if err != nil {
		return err
	}

	worker, err := supervisor.Build(*cfg, recorder)
	if err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"devices": len(cfg.Supervisor.Devices),
		"listen":  cfg.Supervisor.Listen,
	}).Info("supervisor starting")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Run(ctx)
	}()

	if profile != nil {
		applyProfile(worker, profile)
	}

	srv := &http.Server{
		Addr:    cfg.Supervisor.Listen,
		Handler: api.Routes(worker),
	}
	go func() {
		logrus.Infof("http server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatal(err)
		}
	}()

	// Wait for a SIGINT or SIGTERM.
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigc
	logrus.Infof("caught signal %q: shutting down", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("failed to shutdown http server: %v", err)
	}
	shutdownCancel()

	cancel()
	wg.Wait()

	if err := recorder.Close(); err != nil {
		logrus.Errorf("failed to close history recorder: %v", err)
	}

	logrus.Info("exiting")
	return nil
}

func applyProfile(worker *supervisor.Worker, profile *config.Profile) {
	for id, entry := range profile.Devices {
		if entry.Voltage != nil {
			if err := worker.SetVoltage(id, *entry.Voltage); err != nil {
				logrus.Errorf("profile: %s: set voltage: %v", id, err)
			}
		}
		if entry.CurrentLimit != nil {
			if err := worker.SetCurrentLimit(id, *entry.CurrentLimit); err != nil {
				logrus.Errorf("profile: %s: set current limit: %v", id, err)
			}
		}
		if entry.Enable != nil {
			if err := worker.SetPower(id, *entry.Enable); err != nil {
				logrus.Errorf("profile: %s: set power: %v", id, err)
			}
		}
	}
	logrus.WithField("devices", len(profile.Devices)).Info("startup profile applied")
}
