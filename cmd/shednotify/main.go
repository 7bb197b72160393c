package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"shednotify/internal/app"
	"shednotify/internal/esp"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:           "shednotify",
	Short:         "Load-shedding status poller and notifier",
	Long:          "shednotify polls the EskomSePush status API within the token's daily allowance and sends a notification shortly before load shedding is expected.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the polling daemon until SIGINT or SIGTERM",
	RunE:  runDaemon,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "./config.yaml", "path to the config file (.yaml, .yml or .json)")
	rootCmd.AddCommand(runCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", describe(err))
		os.Exit(1)
	}
}

func runDaemon(cmd *cobra.Command, _ []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(ctx, cfgPath)
	if err != nil {
		return err
	}
	if err := a.Start(ctx); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
	case <-a.Done():
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	_ = a.Stop(stopCtx)
	return a.Err()
}

// describe prefers the friendly message for API errors.
func describe(err error) string {
	var e *esp.Error
	if errors.As(err, &e) {
		return fmt.Sprintf("%s (%v)", esp.Message(err), err)
	}
	return err.Error()
}
