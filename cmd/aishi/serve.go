package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"aishi/internal/api"
	"aishi/internal/config"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "serve the registry over HTTP until interrupted",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Usage: "listen address (overrides http.addr)"},
		},
		Action: func(c *cli.Context) error {
			var extra []config.Option
			if c.IsSet("addr") {
				extra = append(extra, config.WithOverride("http.addr", c.String("addr")))
			}

			rt, err := openRuntime(c, extra...)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			return serve(ctx, rt)
		},
	}
}

func serve(ctx context.Context, rt *runtime) error {
	h := api.NewHandler(rt.registry, rt.promReg, rt.logger.Named("api"))
	return api.Serve(ctx, rt.cfg.HTTP.Addr, h)
}
