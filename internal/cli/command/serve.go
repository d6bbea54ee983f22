package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/webhost-go/internal/infra/buildinfo"
	"github.com/yndnr/webhost-go/internal/infra/confloader"
	"github.com/yndnr/webhost-go/internal/infra/shutdown"
	"github.com/yndnr/webhost-go/internal/server/httpserver"
	"github.com/yndnr/webhost-go/internal/telemetry/metric"
)

// ServeCommand returns the serve command.
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:   "serve",
		Usage:  "bind the planned listeners and serve until stopped (default)",
		Action: runServe,
	}
}

func runServe(c *cli.Context) error {
	metrics := metric.Global()

	env, err := bootstrap(c, bootstrapOptions{fileLog: true, recorder: metrics})
	if err != nil {
		return err
	}
	log := env.log.Logger
	defer env.log.Close()

	log.Info("starting "+buildinfo.Name, buildinfo.Get().LogAttrs()...)

	bound, err := env.plan.Bind(c.Context)
	if err != nil {
		log.Error("failed to bind listeners", "error", err)
		env.policies.Close()
		return err
	}

	ws := env.settings.WebServer
	router := httpserver.NewRouter(&httpserver.RouterConfig{
		Logger:      log,
		Recorder:    metrics,
		Metrics:     metrics.Handler(),
		MetricsPath: ws.MetricsPath,
		Policies:    env.policies,
		HSTS:        ws.HSTS,
		StaticRoot:  ws.StaticRoot,
	})
	srv := httpserver.New(router, log, metrics)

	// Hooks run in reverse registration order.
	h := shutdown.NewHandler(shutdown.DefaultTimeout, log)
	h.OnShutdown("admission policies", func(context.Context) error {
		env.policies.Close()
		return nil
	})

	if w, err := confloader.NewWatcher(env.path, confloader.WithWatcherLogger(log)); err != nil {
		log.Warn("settings watcher unavailable", "path", env.path, "error", err)
	} else {
		w.OnChange(confloader.RestartRequired(log))
		w.StartAsync()
		h.OnShutdown("settings watcher", func(context.Context) error { return w.Stop() })
	}

	h.OnShutdown("http server", srv.Shutdown)

	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()

	failed := make(chan error, 1)
	errCh := srv.Serve(bound)
	go func() {
		for err := range errCh {
			select {
			case failed <- err:
			default:
			}
			cancel()
		}
	}()

	log.Info("server started", "listeners", len(bound), "profile", string(env.profile))

	shutdownErr := h.Wait(ctx)

	select {
	case err := <-failed:
		return errors.Join(fmt.Errorf("serve: %w", err), shutdownErr)
	default:
	}
	if shutdownErr != nil {
		return fmt.Errorf("shutdown: %w", shutdownErr)
	}
	log.Info("server stopped gracefully")
	return nil
}
