package acquisition

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/eegstream/eegstream-go/internal/acqcore"
	"github.com/eegstream/eegstream-go/internal/conf"
	"github.com/eegstream/eegstream-go/internal/errors"
	"github.com/eegstream/eegstream-go/internal/httpcontroller"
	"github.com/eegstream/eegstream-go/internal/logger"
)

// stopTimeout bounds the final Stop, drain timeout included
const stopTimeout = 30 * time.Second

// RotateFunc reopens log files, usually CentralLogger.Rotate
type RotateFunc func() error

// Run starts a session and blocks until ctx is cancelled. Without the web
// server it also returns once a finite device is exhausted; with it, the
// process stays up so sessions can be restarted over the API.
func Run(ctx context.Context, settings *conf.Settings, rotate RotateFunc) error {
	log := logger.Global().Module("acquisition")

	p, err := NewPipeline(settings, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := p.Close(); err != nil {
			log.Warn("failed to close pipeline", logger.Error(err))
		}
	}()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	// Sessions end through Stop so queued blocks are drained, never by
	// cancellation of the run context.
	sessionCtx := context.WithoutCancel(ctx)
	if err := p.Controller.Start(sessionCtx); err != nil {
		return err
	}
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), stopTimeout)
		defer stopCancel()
		if err := p.Controller.Stop(stopCtx); err != nil {
			log.Warn("failed to stop acquisition cleanly", logger.Error(err))
		}
	}()

	if p.MQTT != nil {
		g.Go(func() error {
			// Blocks are skipped until the broker is reachable
			if err := p.MQTT.Connect(gctx); err != nil {
				log.Warn("MQTT connection failed, statistics will not be published until it recovers",
					logger.Error(err))
			}
			return nil
		})
	}

	if settings.WebServer.Enabled {
		server, err := p.newServer(sessionCtx)
		if err != nil {
			return err
		}
		g.Go(func() error { return server.Start(gctx) })
	} else {
		g.Go(func() error {
			err := p.Controller.Wait(gctx)
			switch {
			case err == nil:
				log.Info("device exhausted, shutting down")
				cancel()
			case errors.Is(err, acqcore.ErrNotRunning), gctx.Err() != nil:
			default:
				return err
			}
			return nil
		})
	}

	if rotate != nil {
		g.Go(func() error {
			watchRotateSignal(gctx, rotate, log)
			return nil
		})
	}

	return g.Wait()
}

func (p *Pipeline) newServer(sessionCtx context.Context) (*httpcontroller.Server, error) {
	deps := httpcontroller.Dependencies{
		Controller:     p.Controller,
		SessionContext: sessionCtx,
		View:           p.View,
		Stats:          p.Stats,
		Store:          p.Store,
	}
	if p.Settings.Metrics.Enabled {
		deps.Metrics = p.Metrics.Handler()
	}
	return httpcontroller.New(p.Settings, deps, p.logger.Module("http"))
}

// watchRotateSignal reopens log files on SIGHUP until ctx is done
func watchRotateSignal(ctx context.Context, rotate RotateFunc, log logger.Logger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			if err := rotate(); err != nil {
				log.Warn("log rotation failed", logger.Error(err))
			} else {
				log.Info("log files reopened")
			}
		}
	}
}
