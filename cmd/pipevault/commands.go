package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Bushels/PipeVault-sub009/internal/app"
	"github.com/Bushels/PipeVault-sub009/internal/clock"
	transporthttp "github.com/Bushels/PipeVault-sub009/internal/transport/http"
	"github.com/Bushels/PipeVault-sub009/migrations"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func (p *program) serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the admin API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return p.serve(ctx)
		},
	}
}

func (p *program) serve(ctx context.Context) error {
	be, err := p.openStore(ctx, true)
	if err != nil {
		return err
	}
	defer be.close()

	if p.cfg.SeedFile != "" {
		if _, err := p.seed(ctx, be.store, p.cfg.SeedFile); err != nil {
			return fmt.Errorf("seed: %w", err)
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	var wf app.Workflow = p.coordinator(be.store)
	wf = app.NewMetricsWorkflow(reg, wf)
	wf = app.NewLoggingWorkflow(p.log, wf)
	racks := app.NewRackRegistry(be.store, clock.NewSystem())

	var opts []transporthttp.Option
	if be.ping != nil {
		opts = append(opts, transporthttp.WithReadiness(be.ping))
	}
	api := transporthttp.NewHandler(p.log, wf, racks, opts...)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.Handle("/", api)

	server := &http.Server{
		Addr:              p.cfg.HTTPAddr,
		Handler:           transporthttp.RequestLogger(transporthttp.CORS(parseCSV(p.cfg.CORSOrigins), mux), p.log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p.log.Info("Listening", zap.String("addr", p.cfg.HTTPAddr), zap.String("store", p.cfg.Store))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		p.log.Info("Stopping server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	if p.cfg.ActivateInterval > 0 {
		g.Go(func() error {
			p.activateEvery(gctx, wf, p.cfg.ActivateInterval)
			return nil
		})
	}

	err = g.Wait()
	p.log.Info("Server stopped")
	return err
}

// activateEvery runs ActivateDue on every tick until ctx ends. Failures are
// already logged by the workflow wrapper and are retried on the next tick.
func (p *program) activateEvery(ctx context.Context, wf app.Workflow, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = wf.ActivateDue(app.WithActor(ctx, "scheduler"))
		}
	}
}

func (p *program) migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending postgres schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if p.cfg.Store != storePostgres {
				return fmt.Errorf("migrate needs --store=%s", storePostgres)
			}
			pool, err := p.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()

			applied, err := migrations.Apply(cmd.Context(), pool, p.log)
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
			}
			for _, name := range applied {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

func (p *program) seedCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "seed [catalog.yaml]",
		Short: "Create or update racks from a YAML catalog",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := p.cfg.SeedFile
			if len(args) == 1 {
				path = args[0]
			}
			if path == "" {
				return errors.New("no catalog given; pass a file or set --seed-file")
			}

			be, err := p.openStore(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer be.close()

			res, err := p.seed(cmd.Context(), be.store, path)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %d, updated %d racks\n", len(res.Created), len(res.Updated))
			return nil
		},
	}
}

func (p *program) activateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "activate",
		Short: "Apply occupancy for reservations whose start date has arrived",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			be, err := p.openStore(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer be.close()

			wf := app.NewLoggingWorkflow(p.log, p.coordinator(be.store))
			res, err := wf.ActivateDue(app.WithActor(cmd.Context(), "scheduler"))
			fmt.Fprintf(cmd.OutOrStdout(), "activated %d, failed %d reservations\n", len(res.Activated), len(res.Failed))
			return err
		},
	}
}
