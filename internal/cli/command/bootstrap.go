package command

import (
	"fmt"
	"log/slog"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/webhost-go/internal/infra/confloader"
	"github.com/yndnr/webhost-go/internal/infra/tlscert"
	"github.com/yndnr/webhost-go/internal/server/admission"
	"github.com/yndnr/webhost-go/internal/server/config"
	"github.com/yndnr/webhost-go/internal/server/listener"
	"github.com/yndnr/webhost-go/internal/telemetry/logger"
)

// environment is everything resolved from settings before binding.
type environment struct {
	path     string
	profile  config.Profile
	settings *config.Settings
	log      *logger.Logger
	policies *admission.Policies
	plan     *listener.Plan
}

type bootstrapOptions struct {
	// fileLog enables the rotated file sink from the log section.
	fileLog bool
	// recorder receives admission metrics. May be nil.
	recorder admission.Recorder
}

// bootstrap loads settings, starts logging, builds the admission policies
// and plans the listeners. Nothing is bound.
func bootstrap(c *cli.Context, opts bootstrapOptions) (*environment, error) {
	flags := ParseGlobalFlags(c)

	profile, err := config.ParseProfile(flags.Profile)
	if err != nil {
		return nil, err
	}

	early := slog.New(slog.NewTextHandler(c.App.ErrWriter, nil))
	store := confloader.NewStore(
		confloader.WithProfile(profile),
		confloader.WithEnvPrefix(flags.EnvPrefix),
		confloader.WithLogger(early),
	)

	settings, err := store.Load(flags.Config)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	logCfg := logger.FromSettings(settings.Log)
	logCfg.Output = c.App.ErrWriter
	if !opts.fileLog {
		logCfg.File = ""
	}
	l, err := logger.New(logCfg)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	logger.SetDefault(l.Logger)
	log := l.Logger

	policies, err := admission.Build(&settings.WebServer, log, opts.recorder)
	if err != nil {
		l.Close()
		return nil, fmt.Errorf("build admission policies: %w", err)
	}

	resolver := tlscert.NewResolver(tlscert.WithLogger(log))
	plan, err := listener.NewPlanner(resolver, log).Plan(&settings.WebServer)
	if err != nil {
		policies.Close()
		l.Close()
		return nil, fmt.Errorf("plan listeners: %w", err)
	}

	return &environment{
		path:     flags.Config,
		profile:  profile,
		settings: settings,
		log:      l,
		policies: policies,
		plan:     plan,
	}, nil
}

// close releases what bootstrap acquired.
func (e *environment) close() {
	e.policies.Close()
	e.log.Close()
}
