package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"bunseki/pkg/aozora"
	"bunseki/pkg/extractor"
	"bunseki/pkg/queue"
	"bunseki/pkg/schema"
	"bunseki/pkg/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the extraction API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cmd.Flags().Changed("addr") {
			if port := os.Getenv("PORT"); port != "" {
				serveAddr = ":" + port
			}
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		ctx, done := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer done()

		ex, err := newExtractor(ctx, cfg)
		if err != nil {
			return err
		}

		srv := server.NewServer(ctx, aozora.NewFetcher(cfg.Fetch), ex, server.Options{
			AfterRun: func(ctx context.Context, req queue.Request, b schema.Batch, r *extractor.Report) {
				if req.Work == "" {
					return
				}
				if err := persist(ctx, cfg, req.Work, b, r, os.Stderr); err != nil {
					log.Error("saving job results", "work", req.Work, "error", err)
				}
			},
		})
		srv.SetLogLevel(cfg.LogLevel)

		finishedShutDown := make(chan struct{})
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Error("shutdown", "error", err)
			}
			close(finishedShutDown)
		}()

		if err := srv.Start(serveAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		<-finishedShutDown
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "Address to listen on")
	rootCmd.AddCommand(serveCmd)
}
