package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/notefold/notefold/internal/config"
	"github.com/notefold/notefold/internal/kv"
)

const srvShutdownTimeout = 5 * time.Second

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Run the reconciliation daemon",
		Long:  "Keeps this device's replica current: watches the synced area for snapshots written by other devices, applies them, and serves Prometheus metrics.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			svc, syncArea, database, err := newService(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = database.Close() }()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := svc.Initialize(ctx); err != nil {
				return err
			}

			watcher, err := kv.NewWatcher(syncArea, kv.AreaSync)
			if err != nil {
				return err
			}
			defer func() { _ = watcher.Close() }()
			unsubscribe := watcher.Subscribe(svc.HandleAreaChange)
			defer unsubscribe()

			router := chi.NewRouter()
			router.Handle("/metrics", promhttp.Handler())
			router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte("ok"))
			})

			srv := &http.Server{Addr: cfg.Metrics.Addr, Handler: router}
			go func() {
				log.Printf("metrics listening on %s", cfg.Metrics.Addr)
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Printf("metrics server: %v", err)
				}
			}()

			log.Printf("watching %s (mode %s)", syncArea.Path(), svc.StorageMode())
			<-ctx.Done()

			shutdownCtx, cancel := context.WithTimeout(context.Background(), srvShutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
}
