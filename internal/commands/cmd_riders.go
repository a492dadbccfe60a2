package commands

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"github.com/suevga/suvega-darkstore-sub001/internal/core/order"
	"github.com/suevga/suvega-darkstore-sub001/internal/darkstore"
	"github.com/suevga/suvega-darkstore-sub001/internal/printer"
	"github.com/suevga/suvega-darkstore-sub001/pkg/iojson"
)

type RidersCmd struct {
	flags *Flags
	app   *darkstore.App

	jsonOutput bool
}

// NewRidersCmd creates a new riders command
func NewRidersCmd(flags *Flags, app *darkstore.App) *RidersCmd {
	return &RidersCmd{flags: flags, app: app}
}

// Register adds the riders command to the application
func (cmd *RidersCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "riders",
		Usage:     "List riders seen on this dark store's orders",
		UsageText: "darkstore riders [--json]",
		Description: `Shows each rider's current order and last reported location, as recorded
from rider assignment and location events.`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "output as JSON lines",
				Destination: &cmd.jsonOutput,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *RidersCmd) run(ctx context.Context, c *cli.Command) error {
	riders := cmd.app.Registry.Roster.Riders()
	out := c.Root().Writer

	if cmd.jsonOutput {
		for _, e := range riders {
			if err := iojson.WriteLine(out, e); err != nil {
				return fmt.Errorf("encode rider: %w", err)
			}
		}
		return nil
	}

	if len(riders) == 0 {
		printer.Ctx(ctx).Infof("No riders seen")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "RIDER\tPHONE\tORDER\tLOCATION\tUPDATED")
	for _, e := range riders {
		loc := "-"
		if e.LastLocation != nil {
			loc = fmt.Sprintf("%.5f,%.5f", e.LastLocation.Latitude, e.LastLocation.Longitude)
		}
		phone := e.Rider.Phone
		if phone == "" {
			phone = "-"
		}
		assigned := "-"
		if e.OrderID != "" {
			assigned = "#" + order.ShortID(e.OrderID)
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			e.Rider.Name, phone, assigned, loc, age(e.UpdatedAt))
	}
	return w.Flush()
}
