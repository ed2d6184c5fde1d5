package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/veilcampus/warden/moderation/engine"
	"github.com/veilcampus/warden/util/cliutil"

	"github.com/carlmjohnson/versioninfo"
	_ "github.com/joho/godotenv/autoload"
	cli "github.com/urfave/cli/v2"
	_ "go.uber.org/automaxprocs"
)

func main() {
	if err := run(os.Args); err != nil {
		slog.Error("exiting", "err", err)
		os.Exit(-1)
	}
}

func run(args []string) error {

	app := cli.App{
		Name:    "warden",
		Usage:   "campus moderation authority and sanctions engine",
		Version: versioninfo.Short(),
	}

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "database-url",
			Usage:   "database connection string for punishments, moderators and the audit log",
			Value:   "sqlite://data/warden/warden.sqlite",
			EnvVars: []string{"WARDEN_DATABASE_URL", "DATABASE_URL"},
		},
		&cli.IntFlag{
			Name:    "max-db-connections",
			EnvVars: []string{"WARDEN_MAX_DB_CONNECTIONS"},
			Value:   40,
		},
		&cli.BoolFlag{
			Name:    "db-tracing",
			Usage:   "emit a trace span for every database query",
			EnvVars: []string{"WARDEN_DB_TRACING"},
		},
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "redis server for counters, flags, caches and locks; in-process state is used if empty",
			EnvVars: []string{"WARDEN_REDIS_URL", "REDIS_URL"},
		},
		&cli.StringFlag{
			Name:    "territories-file",
			Usage:   "JSON file mapping dominion ids to territory ids, imported into the database at startup",
			EnvVars: []string{"WARDEN_TERRITORIES_FILE"},
		},
		&cli.StringFlag{
			Name:    "ladder-durations",
			Usage:   `override sanction lengths per level, eg "1=48h,2=12h"`,
			EnvVars: []string{"WARDEN_LADDER_DURATIONS"},
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "log verbosity level (eg: warn, info, debug)",
			EnvVars: []string{"WARDEN_LOG_LEVEL", "LOG_LEVEL"},
		},
		&cli.StringFlag{
			Name:    "log-format",
			Usage:   "log format (text or json)",
			EnvVars: []string{"WARDEN_LOG_FMT"},
		},
	}

	app.Commands = []*cli.Command{
		serveCmd,
		bootstrapCmd,
		mintTokenCmd,
		hashIdentityCmd,
		rolesCmd,
		auditCmd,
		territoriesCmd,
	}

	app.Before = func(cctx *cli.Context) error {
		_, err := cliutil.SetupSlog(cliutil.LogOptions{
			LogLevel:  cctx.String("log-level"),
			LogFormat: cctx.String("log-format"),
		})
		return err
	}

	return app.Run(args)
}

var serveCmd = &cli.Command{
	Name:  "serve",
	Usage: "run the moderation API daemon",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "bind",
			Usage:   "IP or address, and port, to listen on for HTTP APIs",
			Value:   ":3911",
			EnvVars: []string{"WARDEN_BIND"},
		},
		&cli.StringFlag{
			Name:    "metrics-listen",
			Usage:   "IP or address, and port, to listen on for metrics APIs",
			Value:   ":3912",
			EnvVars: []string{"WARDEN_METRICS_LISTEN"},
		},
		&cli.StringFlag{
			Name:     "jwt-secret",
			Usage:    "HS256 secret for moderator session tokens",
			Required: true,
			EnvVars:  []string{"WARDEN_JWT_SECRET"},
		},
		&cli.StringFlag{
			Name:     "service-token",
			Usage:    "shared secret for internal enforcement endpoints",
			Required: true,
			EnvVars:  []string{"WARDEN_SERVICE_TOKEN"},
		},
		&cli.StringFlag{
			Name:    "slack-webhook-url",
			Usage:   "full URL of slack webhook for permanent ban and moderator removal notifications",
			EnvVars: []string{"SLACK_WEBHOOK_URL"},
		},
		&cli.Int64Flag{
			Name:    "actions-per-minute",
			Usage:   "per-moderator limit on mutating requests per minute (0 disables)",
			Value:   30,
			EnvVars: []string{"WARDEN_ACTIONS_PER_MINUTE"},
		},
		&cli.Int64Flag{
			Name:    "actions-per-hour",
			Usage:   "per-moderator limit on mutating requests per hour (0 disables)",
			Value:   600,
			EnvVars: []string{"WARDEN_ACTIONS_PER_HOUR"},
		},
		&cli.IntFlag{
			Name:    "permanent-ban-quota",
			Usage:   "permanent bans a single moderator may issue per day (0 disables)",
			Value:   10,
			EnvVars: []string{"WARDEN_PERMANENT_BAN_QUOTA"},
		},
	},
	Action: func(cctx *cli.Context) error {
		ctx := cctx.Context
		logger := slog.Default().With("system", "warden")

		shutdownOTEL, err := cliutil.ConfigOTEL(ctx, "warden")
		if err != nil {
			return fmt.Errorf("failed to create trace exporter: %w", err)
		}
		defer shutdownOTEL()

		eng, err := setupEngine(cctx, logger)
		if err != nil {
			return err
		}
		eng.PermanentBanQuota = cctx.Int("permanent-ban-quota")
		if cctx.Int64("actions-per-minute") > 0 || cctx.Int64("actions-per-hour") > 0 {
			eng.Limits = engine.NewRateLimits(cctx.Int64("actions-per-minute"), cctx.Int64("actions-per-hour"))
		}
		if u := cctx.String("slack-webhook-url"); u != "" {
			eng.Notifier = engine.NewSlackNotifier(u)
		}

		srv := NewServer(eng, Config{
			Logger:       logger,
			Bind:         cctx.String("bind"),
			JWTSecret:    []byte(cctx.String("jwt-secret")),
			ServiceToken: cctx.String("service-token"),
		})
		return srv.Run(ctx, cctx.String("metrics-listen"))
	},
}
