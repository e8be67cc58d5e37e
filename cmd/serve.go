package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/MimeLyc/video-note/internal/httpapi"
	"github.com/MimeLyc/video-note/internal/jobs"
	"github.com/MimeLyc/video-note/internal/service"
	"github.com/MimeLyc/video-note/pkg/log"
)

const shutdownTimeout = 10 * time.Second

type scheduler interface {
	Schedule(ctx context.Context) error
}

type cronEngine interface {
	Start()
	Stop() context.Context
}

type httpServer interface {
	ListenAndServe(addr string) error
	Shutdown(ctx context.Context) error
}

// sweepScheduler registers the upload sweep on the cron engine.
type sweepScheduler struct {
	svc      *service.Service
	cron     *cron.Cron
	cronExpr string
}

func (s sweepScheduler) Schedule(context.Context) error {
	_, err := s.svc.ScheduleSweep(s.cron, s.cronExpr)
	return err
}

func newServeCommand(ctx *commandContext) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the job worker and the scheduled sweep",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.HTTP.Addr = addr
			}

			lock := flock.New(cfg.LockPath())
			ok, err := lock.TryLock()
			if err != nil {
				return fmt.Errorf("acquire lock: %w", err)
			}
			if !ok {
				return fmt.Errorf("another videonote server is using %s", cfg.Storage.DataDir)
			}
			defer func() { _ = lock.Unlock() }()

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := ctx.ensureApp(runCtx)
			if err != nil {
				return err
			}

			queue := jobs.NewQueue(1, a.history)
			queue.Start(a.svc.RunJob)
			defer queue.Stop()

			c := cron.New()
			server := httpapi.NewServer(a.svc, queue,
				httpapi.WithMaxUploadBytes(cfg.HTTP.MaxUploadBytes()),
				httpapi.WithUI(cfg.HTTP.StaticDir),
			)
			return runWithComponents(runCtx, cfg.HTTP.Addr,
				sweepScheduler{svc: a.svc, cron: c, cronExpr: cfg.Sweep.CronExpr}, c, server)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides HTTP_ADDR)")
	return cmd
}

// runWithComponents serves until ctx is cancelled or the server fails.
func runWithComponents(ctx context.Context, addr string, sched scheduler, cronEng cronEngine, srv httpServer) error {
	if err := sched.Schedule(ctx); err != nil {
		return fmt.Errorf("schedule sweep: %w", err)
	}
	cronEng.Start()
	defer func() {
		<-cronEng.Stop().Done()
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
