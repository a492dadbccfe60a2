package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/suevga/suvega-darkstore-sub001/internal/darkstore"
	"github.com/suevga/suvega-darkstore-sub001/internal/printer"
	"github.com/suevga/suvega-darkstore-sub001/internal/push"
	"github.com/suevga/suvega-darkstore-sub001/pkg/iojson"
)

type PushCmd struct {
	flags *Flags
	app   *darkstore.App

	token      string
	jsonOutput bool
}

// NewPushCmd creates a new push command
func NewPushCmd(flags *Flags, app *darkstore.App) *PushCmd {
	return &PushCmd{flags: flags, app: app}
}

// Register adds the push command to the application
func (cmd *PushCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "push",
		Usage: "Manage the push token registration",
		Commands: []*cli.Command{
			{
				Name:      "register",
				Usage:     "Associate the device push token with the dark store",
				UsageText: "darkstore push register [--token <token>]",
				Description: `Registers the configured push token (or --token) with the backend for the
current dark store and records the association locally.`,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:        "token",
						Usage:       "push token (defaults to push.token / DARKSTORE_PUSH_TOKEN)",
						Destination: &cmd.token,
					},
				},
				Action: cmd.runRegister,
			},
			{
				Name:      "status",
				Usage:     "Show the recorded registration",
				UsageText: "darkstore push status [--json]",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:        "json",
						Usage:       "output as JSON",
						Destination: &cmd.jsonOutput,
					},
				},
				Action: cmd.runStatus,
			},
		},
	})

	return app
}

func (cmd *PushCmd) runRegister(ctx context.Context, _ *cli.Command) error {
	token := cmd.token
	if token == "" {
		token = cmd.app.Config.Push.Token
	}
	if token == "" {
		return fmt.Errorf("no push token; pass --token or set push.token")
	}

	sess, err := cmd.app.Session()
	if err != nil {
		return fmt.Errorf("resolve session: %w", err)
	}
	client, err := cmd.app.Client(sess)
	if err != nil {
		return err
	}

	lifecycle := push.NewLifecycle(
		push.NewStaticProvider(token, nil),
		client,
		cmd.app.Registry.Push,
		push.WithMetrics(cmd.app.Metrics),
	)
	if !lifecycle.Sync(ctx, sess.DarkStoreID) {
		return fmt.Errorf("push registration failed; see log for details")
	}

	printer.Ctx(ctx).Successf("Push token registered for dark store %s", sess.DarkStoreID)
	return nil
}

func (cmd *PushCmd) runStatus(ctx context.Context, c *cli.Command) error {
	reg := cmd.app.Registry.Push.Get()

	if cmd.jsonOutput {
		return iojson.Write(c.Root().Writer, reg)
	}

	p := printer.Ctx(ctx)
	if reg.Token == "" {
		p.Infof("No push token registered")
		return nil
	}

	if reg.Synced {
		p.Successf("Registered for %s", reg.OwnerID)
	} else {
		p.Warnf("Token saved for %s, not yet accepted by the backend", reg.OwnerID)
	}
	p.Printf("  Token: %s", maskToken(reg.Token))
	if reg.Synced {
		p.Printf("  Since: %s", reg.RegisteredAt.Local().Format(time.RFC1123))
	}
	return nil
}

func maskToken(token string) string {
	if len(token) <= 8 {
		return "****"
	}
	return token[:4] + "…" + token[len(token)-4:]
}
