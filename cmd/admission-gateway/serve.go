package main

import (
	"context"
	"fmt"

	"github.com/KOMKZ/go-yogan-admission/application"
	"github.com/KOMKZ/go-yogan-admission/di"
	"github.com/KOMKZ/go-yogan-admission/flagx"
	"github.com/KOMKZ/go-yogan-admission/middleware"
	"github.com/KOMKZ/go-yogan-admission/redis"
	"github.com/KOMKZ/go-yogan-admission/telemetry"
	"github.com/samber/do/v2"
	"github.com/spf13/cobra"
)

// serveFlags override the configuration files when set.
type serveFlags struct {
	Port   int    `flag:"port" usage:"listen port" config:"api_server.port"`
	Mode   string `flag:"mode" usage:"gin mode: debug, release or test" config:"api_server.mode"`
	Policy string `flag:"policy" usage:"policy guarding every route" config:"middleware.rate_limit.policy"`
}

func newServeCmd(root *rootFlags) *cobra.Command {
	flags := &serveFlags{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve HTTP behind the default admission policy",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := flagx.ParseFlags(cmd, flags); err != nil {
				return err
			}
			return runServe(root, flags)
		},
	}
	if err := flagx.BindFlags(cmd, flags); err != nil {
		panic(err)
	}
	return cmd
}

func runServe(root *rootFlags, flags *serveFlags) error {
	var server *application.HTTPServer

	app := di.NewDoApplication(
		di.WithName("admission-gateway"),
		di.WithVersion(version),
		di.WithConfigPath(root.ConfigDir),
		di.WithEnvPrefix(root.EnvPrefix),
		di.WithFlags(flags),
		di.WithOnReady(func(app *di.DoApplication) error {
			var err error
			server, err = newServer(app)
			if err != nil {
				return err
			}
			return server.Start()
		}),
		di.WithOnShutdown(func(ctx context.Context) error {
			if server == nil {
				return nil
			}
			return server.Shutdown(ctx)
		}),
	)
	return app.Run()
}

func newServer(app *di.DoApplication) (*application.HTTPServer, error) {
	var cfg application.AppConfig
	if err := app.ConfigLoader().Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode server config: %w", err)
	}

	deps := application.HTTPServerDeps{
		Factory:   app.Factory(),
		Admission: app.AdmissionConfig(),
		Logger:    app.Logger(),
	}

	tel, err := do.Invoke[*telemetry.Manager](app.Injector())
	if err != nil {
		return nil, err
	}
	deps.Telemetry = tel

	redisMgr, err := do.Invoke[*redis.Manager](app.Injector())
	if err != nil {
		return nil, err
	}
	if redisMgr != nil {
		deps.HealthCheckers = append(deps.HealthCheckers, middleware.HealthChecker(redis.NewHealthChecker(redisMgr)))
	}

	return application.NewHTTPServer(cfg, deps)
}
