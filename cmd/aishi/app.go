package main

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

// Build information, set via ldflags.
var (
	Version = "dev"
	Commit  = "unknown"
)

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:     "aishi",
		Usage:    "time-locked token registry",
		Version:  fmt.Sprintf("%s (commit: %s)", Version, Commit),
		Flags:    globalFlags(),
		Metadata: map[string]interface{}{},
		Commands: []*cli.Command{
			initCommand(),
			hashCommand(),
			mintCommand(),
			unlockCommand(),
			statusCommand(),
			tokenCommand(),
			uriCommand(),
			ownerCommand(),
			balanceCommand(),
			transferCommand(),
			grantMinterCommand(),
			revokeMinterCommand(),
			revealCommand(),
			serveCommand(),
		},
		After: closeRuntime,
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "path to YAML config file",
			EnvVars: []string{"AISHI_CONFIG"},
		},
		&cli.StringFlag{
			Name:  "data-dir",
			Usage: "registry data directory",
		},
		&cli.StringFlag{
			Name:  "store",
			Usage: "store backend: memory, file, badger",
		},
		&cli.StringFlag{
			Name:  "authority",
			Usage: "time authority: system, drand",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "log level: debug, info, warn, error",
		},
		&cli.StringFlag{
			Name:    "as",
			Usage:   "caller address (0x-prefixed, 40 hex digits)",
			EnvVars: []string{"AISHI_CALLER"},
		},
		&cli.BoolFlag{
			Name:  "json",
			Usage: "print JSON output",
		},
	}
}
