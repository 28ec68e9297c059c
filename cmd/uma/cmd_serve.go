package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"umaai/internal/logging"
	"umaai/internal/server"
)

var serveAddr string

// serveCmd runs the HTTP API
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the analysis API over HTTP",
	Long: `Endpoints:
  POST /api/analyze                 run an analysis
  POST /api/prompt                  assemble the document only
  GET  /api/races/{race}/result     latest cached result
  GET  /api/races/{race}/history    cached results, newest first
  GET  /api/races/{race}/share      share text of the latest result
  GET  /healthz`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Timeouts.Validate(); err != nil {
			return err
		}
		addr := cfg.Server.Addr
		if serveAddr != "" {
			addr = serveAddr
		}

		results, err := openStore()
		if err != nil {
			return err
		}
		defer results.Close()

		srv := server.New(server.Config{
			Addr:           addr,
			AllowedOrigins: cfg.Server.AllowedOrigins,
			RequestTimeout: cfg.GetRequestTimeout(),
			Service:        newService(results),
			Loader:         newLoader(),
		})

		errCh := make(chan error, 1)
		go func() { errCh <- srv.Start() }()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigCh)

		select {
		case err := <-errCh:
			if err != nil {
				return fmt.Errorf("server failed: %w", err)
			}
			return nil
		case sig := <-sigCh:
			logging.Boot("received %s, shutting down", sig)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from config)")
}
