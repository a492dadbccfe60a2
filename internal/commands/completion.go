package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/suevga/suvega-darkstore-sub001/internal/core/order"
	"github.com/suevga/suvega-darkstore-sub001/internal/darkstore"
)

// OrderIDCompleter returns a ShellCompleteFunc that suggests the ids of
// cached orders as positional completions.
//
// When the user's last typed argument starts with "-", it falls back to the
// default flag completion behavior.
func OrderIDCompleter(app *darkstore.App) cli.ShellCompleteFunc {
	return func(ctx context.Context, cmd *cli.Command) {
		if typingFlag(cmd) {
			cli.DefaultCompleteWithFlags(ctx, cmd)
			return
		}
		if app.Registry == nil {
			return
		}

		w := cmd.Root().Writer
		for _, o := range app.Registry.Ledger.Orders() {
			_, _ = fmt.Fprintln(w, o.ID)
		}
	}
}

// StatusCompleter suggests order statuses.
func StatusCompleter() cli.ShellCompleteFunc {
	return func(ctx context.Context, cmd *cli.Command) {
		if typingFlag(cmd) {
			cli.DefaultCompleteWithFlags(ctx, cmd)
			return
		}

		w := cmd.Root().Writer
		for _, s := range order.AllStatuses {
			_, _ = fmt.Fprintln(w, s)
		}
	}
}

func typingFlag(cmd *cli.Command) bool {
	args := cmd.Args()
	if !args.Present() {
		return false
	}
	last := args.Slice()[args.Len()-1]
	return len(last) > 0 && last[0] == '-'
}

// OrderStatusCompleter completes an order id first, then a status.
func OrderStatusCompleter(app *darkstore.App) cli.ShellCompleteFunc {
	ids, statuses := OrderIDCompleter(app), StatusCompleter()
	return func(ctx context.Context, cmd *cli.Command) {
		if cmd.Args().Len() >= 1 {
			statuses(ctx, cmd)
			return
		}
		ids(ctx, cmd)
	}
}
