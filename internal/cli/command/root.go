package command

import (
	"github.com/urfave/cli/v2"

	"github.com/yndnr/webhost-go/internal/infra/buildinfo"
	"github.com/yndnr/webhost-go/internal/infra/confloader"
	"github.com/yndnr/webhost-go/internal/server/config"
)

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:    buildinfo.Name,
		Usage:   "serve HTTP and HTTPS from a declarative settings document",
		Version: buildinfo.String(),
		Flags:   globalFlags(),
		Action:  runServe,
		Commands: []*cli.Command{
			ServeCommand(),
			CheckCommand(),
		},
	}
}

// globalFlags returns the global CLI flags.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "settings document; created with profile defaults when missing",
			EnvVars: []string{"WEBHOST_CONFIG"},
			Value:   confloader.DefaultSettingsFile,
		},
		&cli.StringFlag{
			Name:    "profile",
			Aliases: []string{"p"},
			Usage:   "defaults profile: production or development",
			EnvVars: []string{"WEBHOST_PROFILE"},
			Value:   string(config.ProfileProduction),
		},
		&cli.StringFlag{
			Name:  "env-prefix",
			Usage: "environment override prefix; empty disables overrides",
			Value: confloader.DefaultEnvPrefix,
		},
	}
}

// GlobalFlags defines flags available to all commands.
type GlobalFlags struct {
	Config    string
	Profile   string
	EnvPrefix string
}

// ParseGlobalFlags extracts global flags from context.
func ParseGlobalFlags(c *cli.Context) *GlobalFlags {
	return &GlobalFlags{
		Config:    c.String("config"),
		Profile:   c.String("profile"),
		EnvPrefix: c.String("env-prefix"),
	}
}
