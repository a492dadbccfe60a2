package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/suevga/suvega-darkstore-sub001/internal/darkstore"
	"github.com/suevga/suvega-darkstore-sub001/internal/printer"
	"github.com/suevga/suvega-darkstore-sub001/internal/realtime"
	"github.com/suevga/suvega-darkstore-sub001/pkg/iojson"
)

type EventsCmd struct {
	flags *Flags
	app   *darkstore.App

	input iojson.FileReader[[]realtime.Envelope]
}

// NewEventsCmd creates a new events command
func NewEventsCmd(flags *Flags, app *darkstore.App) *EventsCmd {
	return &EventsCmd{flags: flags, app: app}
}

// Register adds the events command to the application
func (cmd *EventsCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "events",
		Usage: "Work with realtime order events offline",
		Commands: []*cli.Command{
			{
				Name:      "replay",
				Usage:     "Apply recorded events to the local stores",
				UsageText: "darkstore events replay [-f events.json]",
				Description: `Reads a JSON array of {"event": ..., "data": ...} envelopes and applies
them in order, exactly as a live connection would.

Example:
  [{"event":"order:status-changed","data":{"orderId":"abc","orderStatus":"accepted"}}]`,
				Flags:  []cli.Flag{cmd.input.Flag()},
				Action: cmd.runReplay,
			},
		},
	})

	return app
}

func (cmd *EventsCmd) runReplay(ctx context.Context, _ *cli.Command) error {
	envs, err := cmd.input.Read()
	if err != nil {
		return err
	}

	bridge := realtime.New(realtime.Config{}, cmd.app.Registry.Stores(), realtime.WithMetrics(cmd.app.Metrics))

	p := printer.Ctx(ctx)
	applied := 0
	for i, env := range envs {
		err := bridge.Dispatch(ctx, env)
		var invalid *realtime.InvalidPayloadError
		switch {
		case err == nil:
			applied++
		case errors.Is(err, realtime.ErrUnknownEvent):
			p.Warnf("event %d: unknown event %q", i, env.Event)
		case errors.As(err, &invalid):
			p.Warnf("event %d: %s rejected (%s): %v", i, invalid.Event, invalid.Reason, invalid.Err)
		default:
			return fmt.Errorf("event %d: %w", i, err)
		}
	}

	p.Successf("Applied %d of %d event(s)", applied, len(envs))
	return nil
}
