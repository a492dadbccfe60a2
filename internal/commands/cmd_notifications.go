package commands

import (
	"context"
	"fmt"
	"io"
	"slices"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/suevga/suvega-darkstore-sub001/internal/core/notify"
	"github.com/suevga/suvega-darkstore-sub001/internal/core/styles"
	"github.com/suevga/suvega-darkstore-sub001/internal/darkstore"
	"github.com/suevga/suvega-darkstore-sub001/internal/printer"
	"github.com/suevga/suvega-darkstore-sub001/internal/store/jsonfile"
	"github.com/suevga/suvega-darkstore-sub001/pkg/iojson"
)

type NotificationsCmd struct {
	flags *Flags
	app   *darkstore.App

	jsonOutput bool
	limit      int
	interval   time.Duration
}

// NewNotificationsCmd creates a new notifications command
func NewNotificationsCmd(flags *Flags, app *darkstore.App) *NotificationsCmd {
	return &NotificationsCmd{flags: flags, app: app}
}

// Register adds the notifications command to the application
func (cmd *NotificationsCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:    "notifications",
		Aliases: []string{"n"},
		Usage:   "Read the operator notification queue",
		Description: fmt.Sprintf(`The queue keeps the %d most recent alerts raised by order events and
push messages, newest first.`, notify.Capacity),
		Commands: []*cli.Command{
			{
				Name:      "ls",
				Usage:     "List queued notifications, newest first",
				UsageText: "darkstore notifications ls [--limit N] [--json]",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:        "limit",
						Aliases:     []string{"n"},
						Usage:       "show at most N notifications (0 = all)",
						Destination: &cmd.limit,
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
				Name:      "rm",
				Usage:     "Remove a notification",
				UsageText: "darkstore notifications rm <id>",
				Action:    cmd.runRm,
			},
			{
				Name:      "clear",
				Usage:     "Remove every notification",
				UsageText: "darkstore notifications clear",
				Action:    cmd.runClear,
			},
			{
				Name:      "watch",
				Usage:     "Print notifications as a running sync queues them",
				UsageText: "darkstore notifications watch [--interval 2s]",
				Description: `With the jsonfile storage driver the queue file is watched for changes.
Other drivers are polled at --interval.`,
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:        "interval",
						Usage:       "poll interval for non-file storage",
						Value:       2 * time.Second,
						Destination: &cmd.interval,
					},
				},
				Action: cmd.runWatch,
			},
		},
	})

	return app
}

func (cmd *NotificationsCmd) runLs(ctx context.Context, c *cli.Command) error {
	list := cmd.app.Registry.Queue.List()
	if cmd.limit > 0 && len(list) > cmd.limit {
		list = list[:cmd.limit]
	}

	out := c.Root().Writer

	if cmd.jsonOutput {
		for _, n := range list {
			if err := iojson.WriteLine(out, n); err != nil {
				return fmt.Errorf("encode notification: %w", err)
			}
		}
		return nil
	}

	if len(list) == 0 {
		printer.Ctx(ctx).Infof("No notifications")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tTYPE\tTITLE\tMESSAGE\tAGE")
	for _, n := range list {
		style, icon := styles.Notification(n.Type)
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			n.ID, style.Render(icon+" "+string(n.Type)), n.Title, n.Message, age(n.CreatedAt))
	}
	return w.Flush()
}

func (cmd *NotificationsCmd) runRm(ctx context.Context, c *cli.Command) error {
	if c.Args().Len() != 1 {
		return fmt.Errorf("expected <id>")
	}
	id := c.Args().First()

	if !cmd.app.Registry.Queue.Remove(id) {
		return fmt.Errorf("notification %q not found", id)
	}
	printer.Ctx(ctx).Successf("Removed notification %s", id)
	return nil
}

func (cmd *NotificationsCmd) runClear(ctx context.Context, _ *cli.Command) error {
	n := cmd.app.Registry.Queue.Len()
	cmd.app.Registry.Queue.Clear()
	printer.Ctx(ctx).Successf("Cleared %d notification(s)", n)
	return nil
}

func (cmd *NotificationsCmd) runWatch(ctx context.Context, c *cli.Command) error {
	storage := cmd.app.Registry.Storage
	out := c.Root().Writer

	seen := make(map[string]struct{})
	for _, n := range cmd.app.Registry.Queue.List() {
		seen[n.ID] = struct{}{}
	}

	// A fresh queue re-reads storage written by another process.
	emit := func() {
		fresh := notify.NewQueue(storage).List()
		for _, n := range slices.Backward(fresh) {
			if _, ok := seen[n.ID]; ok {
				continue
			}
			seen[n.ID] = struct{}{}
			writeNotification(out, n)
		}
	}

	p := printer.Ctx(ctx)

	if fk, ok := storage.(*jsonfile.KV); ok {
		w, err := jsonfile.NewWatcher(fk.Dir())
		if err != nil {
			return fmt.Errorf("watch %s: %w", fk.Dir(), err)
		}
		defer func() { _ = w.Close() }()

		p.Infof("Watching %s", fk.Path(notify.Key))
		events := w.Watch(ctx, notify.Key)
		for {
			select {
			case <-ctx.Done():
				return nil
			case _, ok := <-events:
				if !ok {
					return nil
				}
				emit()
			}
		}
	}

	interval := cmd.interval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	p.Infof("Polling notifications every %s", interval)
	log.Debug().Dur("interval", interval).Msg("notification watch polling")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			emit()
		}
	}
}

func writeNotification(w io.Writer, n notify.Notification) {
	style, icon := styles.Notification(n.Type)
	_, _ = fmt.Fprintf(w, "%s %s %s  %s\n",
		styles.Muted.Render(n.CreatedAt.Local().Format(time.Kitchen)),
		style.Render(icon),
		styles.Bold.Render(n.Title),
		n.Message)
}

func age(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	d := time.Since(t).Round(time.Second)
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}
