package main

import (
	"context"
	"fmt"
	"os"
	"runtime/debug"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/suevga/suvega-darkstore-sub001/internal/commands"
	"github.com/suevga/suvega-darkstore-sub001/internal/core/config"
	"github.com/suevga/suvega-darkstore-sub001/internal/darkstore"
	"github.com/suevga/suvega-darkstore-sub001/pkg/logutils"
)

var (
	// Build information. Populated at build-time via -ldflags flag.
	// When installed via `go install module@version`, init() populates
	// these from runtime/debug.BuildInfo instead.
	version = "dev"
	commit  = "HEAD"
	date    = "now"
)

func build() string {
	v, c, d := version, commit, date

	// When installed via `go install module@version`, ldflags aren't set
	// so version remains "dev". Fall back to runtime/debug.BuildInfo which
	// Go populates automatically with the module version and VCS metadata.
	if v == "dev" {
		if info, ok := debug.ReadBuildInfo(); ok {
			if mv := info.Main.Version; mv != "" && mv != "(devel)" {
				v = mv
			}
			for _, s := range info.Settings {
				switch s.Key {
				case "vcs.revision":
					c = s.Value
				case "vcs.time":
					d = s.Value
				}
			}
		}
	}

	short := c
	if len(c) > 7 {
		short = c[:7]
	}

	return fmt.Sprintf("%s (%s) %s", v, short, d)
}

func main() {
	ctx := context.Background()

	// A .env in the working directory is optional.
	_ = godotenv.Load()

	var (
		logCloser     func()
		storageCloser func() error
		dsApp         = &darkstore.App{}
	)

	flags := &commands.Flags{}

	app := &cli.Command{
		Name:      "darkstore",
		Usage:     "Keep a dark store's live orders in sync",
		UsageText: "darkstore [global options] command [command options]",
		Description: `darkstore mirrors the order ledger, rider positions and operator notifications
of one dark store on this machine.

Run 'darkstore sync' to fetch orders and follow realtime order events.
Run 'darkstore orders ls' or 'darkstore notifications watch' from another
terminal to read what sync has cached.`,
		Version: build(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "log level (debug, info, warn, error, fatal, panic)",
				Sources:     cli.EnvVars("DARKSTORE_LOG_LEVEL"),
				Value:       "info",
				Destination: &flags.LogLevel,
			},
			&cli.StringFlag{
				Name:        "log-file",
				Usage:       "path to log file (logs go to stderr when unset)",
				Sources:     cli.EnvVars("DARKSTORE_LOG_FILE"),
				Destination: &flags.LogFile,
			},
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "path to config file",
				Sources:     cli.EnvVars("DARKSTORE_CONFIG"),
				Value:       commands.DefaultConfigPath(),
				Destination: &flags.ConfigPath,
			},
			&cli.StringFlag{
				Name:        "data-dir",
				Usage:       "path to data directory",
				Sources:     cli.EnvVars("DARKSTORE_DATA_DIR"),
				Value:       commands.DefaultDataDir(),
				Destination: &flags.DataDir,
			},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			logger, closer, err := logutils.New(flags.LogLevel, flags.LogFile)
			if err != nil {
				return ctx, fmt.Errorf("setup logger: %w", err)
			}
			log.Logger = logger
			logCloser = closer

			cfg, err := config.Load(flags.ConfigPath, flags.DataDir)
			if err != nil {
				return ctx, fmt.Errorf("load config: %w", err)
			}
			flags.Config = cfg

			storage, closeStorage, err := darkstore.OpenStorage(cfg)
			if err != nil {
				return ctx, err
			}
			storageCloser = closeStorage

			// Populate the pre-allocated App struct (commands already hold a pointer to it)
			*dsApp = *darkstore.NewApp(cfg, storage)

			// Drops cached data of a previously configured dark store before any
			// command reads it.
			if _, err := dsApp.Session(); err != nil {
				log.Debug().Err(err).Msg("no session, cached stores left unbound")
			}

			log.Debug().
				Str("driver", cfg.Storage.Driver).
				Str("data_dir", cfg.DataDir).
				Int("orders", dsApp.Registry.Ledger.TotalOrderCount()).
				Msg("stores rehydrated")

			return ctx, nil
		},
		After: func(ctx context.Context, c *cli.Command) error {
			// Close storage
			if storageCloser != nil {
				if err := storageCloser(); err != nil {
					log.Error().Err(err).Msg("failed to close storage")
					return err
				}
			}

			// Close log file
			if logCloser != nil {
				logCloser()
			}
			return nil
		},
	}

	app = commands.NewSyncCmd(flags, dsApp).Register(app)
	app = commands.NewOrdersCmd(flags, dsApp).Register(app)
	app = commands.NewNotificationsCmd(flags, dsApp).Register(app)
	app = commands.NewRidersCmd(flags, dsApp).Register(app)
	app = commands.NewPushCmd(flags, dsApp).Register(app)
	app = commands.NewEventsCmd(flags, dsApp).Register(app)
	app = commands.NewConfigValidateCmd(flags).Register(app)

	exitCode := 0
	runErr := app.Run(ctx, os.Args)
	if runErr != nil {
		fmt.Println()
		fmt.Println(runErr.Error())
		exitCode = 1
	}

	os.Exit(exitCode)
}
