package commands

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"github.com/suevga/suvega-darkstore-sub001/internal/core/order"
	"github.com/suevga/suvega-darkstore-sub001/internal/core/styles"
	"github.com/suevga/suvega-darkstore-sub001/internal/darkstore"
	"github.com/suevga/suvega-darkstore-sub001/internal/printer"
	"github.com/suevga/suvega-darkstore-sub001/pkg/iojson"
)

type OrdersCmd struct {
	flags *Flags
	app   *darkstore.App

	// ls flags
	status     string
	jsonOutput bool
}

// NewOrdersCmd creates a new orders command
func NewOrdersCmd(flags *Flags, app *darkstore.App) *OrdersCmd {
	return &OrdersCmd{flags: flags, app: app}
}

// Register adds the orders command to the application
func (cmd *OrdersCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "orders",
		Usage: "Inspect and act on the cached order ledger",
		Description: `Orders are cached locally by 'darkstore sync' and by 'darkstore orders refresh'.

Listing commands read the cache only. refresh, status and rm call the backend.`,
		Commands: []*cli.Command{
			{
				Name:      "ls",
				Usage:     "List cached orders, newest first",
				UsageText: "darkstore orders ls [--status <status>] [--json]",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:        "status",
						Aliases:     []string{"s"},
						Usage:       "only show orders with this status",
						Destination: &cmd.status,
					},
					&cli.BoolFlag{
						Name:        "json",
						Usage:       "output as JSON lines",
						Destination: &cmd.jsonOutput,
					},
				},
				Action: cmd.runLs,
			},
			{
				Name:      "counts",
				Usage:     "Show delivered, rejected and cancelled totals",
				UsageText: "darkstore orders counts [--json]",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:        "json",
						Usage:       "output as JSON",
						Destination: &cmd.jsonOutput,
					},
				},
				Action: cmd.runCounts,
			},
			{
				Name:      "refresh",
				Usage:     "Replace the cache with the server's order list",
				UsageText: "darkstore orders refresh",
				Action:    cmd.runRefresh,
			},
			{
				Name:          "status",
				Usage:         "Change the status of an order",
				UsageText:     "darkstore orders status <order-id> <status>",
				ShellComplete: OrderStatusCompleter(cmd.app),
				Action:        cmd.runStatus,
			},
			{
				Name:          "rm",
				Usage:         "Delete an order on the server and from the cache",
				UsageText:     "darkstore orders rm <order-id>",
				ShellComplete: OrderIDCompleter(cmd.app),
				Action:        cmd.runRm,
			},
			{
				Name:      "clear",
				Usage:     "Drop every cached order",
				UsageText: "darkstore orders clear",
				Action:    cmd.runClear,
			},
		},
	})

	return app
}

func (cmd *OrdersCmd) runLs(ctx context.Context, c *cli.Command) error {
	ledger := cmd.app.Registry.Ledger

	orders := ledger.Orders()
	if cmd.status != "" {
		s, ok := order.ParseStatus(cmd.status)
		if !ok {
			return fmt.Errorf("unknown status %q", cmd.status)
		}
		orders = ledger.GetOrdersByStatus(s)
	}

	out := c.Root().Writer

	if cmd.jsonOutput {
		for _, o := range orders {
			if err := iojson.WriteLine(out, o); err != nil {
				return fmt.Errorf("encode order: %w", err)
			}
		}
		return nil
	}

	p := printer.Ctx(ctx)
	if msg := ledger.Err(); msg != "" {
		p.Warnf("last sync error: %s", msg)
	}
	if len(orders) == 0 {
		p.Infof("No orders found")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tNUMBER\tSTATUS\tITEMS\tTOTAL\tRIDER\tCREATED")
	for _, o := range orders {
		rider := "-"
		if o.DeliveryRider != nil {
			rider = o.DeliveryRider.Name
		}
		number := o.OrderNumber
		if number == "" {
			number = "#" + o.ShortID()
		}
		created := "-"
		if !o.CreatedAt.IsZero() {
			created = o.CreatedAt.Local().Format("Jan 02 15:04")
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%.2f\t%s\t%s\n",
			o.ID, number, styles.RenderStatus(o.OrderStatus), len(o.Items), o.TotalPrice, rider, created)
	}

	return w.Flush()
}

type countsOutput struct {
	Total int `json:"total"`
	order.Counts
}

func (cmd *OrdersCmd) runCounts(_ context.Context, c *cli.Command) error {
	ledger := cmd.app.Registry.Ledger
	res := countsOutput{
		Total:  ledger.TotalOrderCount(),
		Counts: ledger.GetOrderCounts(),
	}

	out := c.Root().Writer
	if cmd.jsonOutput {
		return iojson.Write(out, res)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "total\t%d\n", res.Total)
	_, _ = fmt.Fprintf(w, "%s\t%d\n", styles.RenderStatus(order.StatusDelivered), res.Delivered)
	_, _ = fmt.Fprintf(w, "%s\t%d\n", styles.RenderStatus(order.StatusRejected), res.Rejected)
	_, _ = fmt.Fprintf(w, "%s\t%d\n", styles.RenderStatus(order.StatusCancelled), res.Cancelled)
	return w.Flush()
}

func (cmd *OrdersCmd) runRefresh(ctx context.Context, _ *cli.Command) error {
	svc, sess, err := cmd.app.Service()
	if err != nil {
		return err
	}
	if err := svc.Refresh(ctx); err != nil {
		return err
	}

	printer.Ctx(ctx).Successf("%d order(s) cached for dark store %s",
		cmd.app.Registry.Ledger.TotalOrderCount(), sess.DarkStoreID)
	return nil
}

func (cmd *OrdersCmd) runStatus(ctx context.Context, c *cli.Command) error {
	if c.Args().Len() != 2 {
		return fmt.Errorf("expected <order-id> <status>")
	}
	id := c.Args().Get(0)
	status, ok := order.ParseStatus(c.Args().Get(1))
	if !ok {
		return fmt.Errorf("unknown status %q", c.Args().Get(1))
	}

	svc, _, err := cmd.app.Service()
	if err != nil {
		return err
	}

	cached, err := svc.UpdateOrderStatus(ctx, id, status)
	if err != nil {
		return err
	}

	p := printer.Ctx(ctx)
	p.Successf("Order %s is now %s", order.ShortID(id), status.Label())
	if !cached {
		p.Infof("order %s is not cached; run 'darkstore orders refresh' to fetch it", id)
	}
	return nil
}

func (cmd *OrdersCmd) runRm(ctx context.Context, c *cli.Command) error {
	if c.Args().Len() != 1 {
		return fmt.Errorf("expected <order-id>")
	}
	id := c.Args().First()

	svc, _, err := cmd.app.Service()
	if err != nil {
		return err
	}
	if err := svc.DeleteOrder(ctx, id); err != nil {
		return err
	}

	printer.Ctx(ctx).Successf("Deleted order %s", order.ShortID(id))
	return nil
}

func (cmd *OrdersCmd) runClear(ctx context.Context, _ *cli.Command) error {
	n := cmd.app.Registry.Ledger.TotalOrderCount()
	cmd.app.Registry.Ledger.ClearOrders()
	printer.Ctx(ctx).Successf("Cleared %d cached order(s)", n)
	return nil
}
