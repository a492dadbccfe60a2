package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/suevga/suvega-darkstore-sub001/internal/core/notify"
	"github.com/suevga/suvega-darkstore-sub001/internal/darkstore"
	"github.com/suevga/suvega-darkstore-sub001/internal/metrics"
	"github.com/suevga/suvega-darkstore-sub001/internal/printer"
	"github.com/suevga/suvega-darkstore-sub001/internal/push"
	"github.com/suevga/suvega-darkstore-sub001/internal/realtime"
)

type SyncCmd struct {
	flags *Flags
	app   *darkstore.App

	refreshOnReconnect bool
	noPush             bool
	metricsAddr        string
	quiet              bool
}

// NewSyncCmd creates a new sync command
func NewSyncCmd(flags *Flags, app *darkstore.App) *SyncCmd {
	return &SyncCmd{flags: flags, app: app}
}

// Register adds the sync command to the application
func (cmd *SyncCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "sync",
		Usage:     "Keep the local order ledger in sync with the dark store",
		UsageText: "darkstore sync [options]",
		Description: `Fetches the current order list, then holds a realtime connection open and
applies order events to the local stores until interrupted.

New notifications are printed as they are queued. The connection is redialed
with exponential backoff when it drops; cached orders are kept meanwhile.`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "refresh-on-reconnect",
				Usage:       "refetch the order list after every reconnect (default from config)",
				Destination: &cmd.refreshOnReconnect,
			},
			&cli.BoolFlag{
				Name:        "no-push",
				Usage:       "skip push token registration",
				Destination: &cmd.noPush,
			},
			&cli.StringFlag{
				Name:        "metrics-addr",
				Usage:       "serve Prometheus metrics on host:port (default from config)",
				Sources:     cli.EnvVars("DARKSTORE_METRICS_ADDR"),
				Destination: &cmd.metricsAddr,
			},
			&cli.BoolFlag{
				Name:        "quiet",
				Aliases:     []string{"q"},
				Usage:       "do not print notifications",
				Destination: &cmd.quiet,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *SyncCmd) run(ctx context.Context, c *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		cfg = cmd.app.Config
		reg = cmd.app.Registry
		m   = cmd.app.Metrics
		p   = printer.Ctx(ctx)
	)

	sess, err := cmd.app.Session()
	if err != nil {
		return fmt.Errorf("resolve session: %w", err)
	}
	if sess.Expired(time.Now()) {
		p.Warnf("session token expired at %s; the backend will reject it", sess.ExpiresAt.Local().Format(time.RFC1123))
	}

	client, err := cmd.app.Client(sess)
	if err != nil {
		return err
	}

	var svc *darkstore.Service

	bridgeOpts := []realtime.Option{realtime.WithMetrics(m)}
	if cmd.refreshOnReconnect || cfg.Realtime.RefreshOnReconnect {
		bridgeOpts = append(bridgeOpts, realtime.WithOnReconnect(func(ctx context.Context) {
			if err := svc.Refresh(ctx); err != nil {
				log.Warn().Err(err).Msg("refresh after reconnect failed")
			}
		}))
	}

	bridge := realtime.New(realtime.Config{
		URL:            cfg.Realtime.URL,
		DarkStoreID:    sess.DarkStoreID,
		Token:          sess.Token,
		PingInterval:   cfg.Realtime.PingInterval,
		PongWait:       cfg.Realtime.PongWait,
		BackoffInitial: cfg.Realtime.BackoffInitial,
		BackoffMax:     cfg.Realtime.BackoffMax,
	}, reg.Stores(), bridgeOpts...)

	svcOpts := []darkstore.ServiceOption{
		darkstore.WithBridge(bridge),
		darkstore.WithMetrics(m),
	}
	if cfg.Push.Enabled && !cmd.noPush {
		lifecycle := push.NewLifecycle(
			push.NewStaticProvider(cfg.Push.Token, nil),
			client,
			reg.Push,
			push.WithMetrics(m),
			push.WithQueue(reg.Queue),
		)
		svcOpts = append(svcOpts, darkstore.WithPush(lifecycle))
	}

	svc = darkstore.NewService(reg, client, sess.DarkStoreID, svcOpts...)

	addr := cmd.metricsAddr
	if addr == "" {
		addr = cfg.Metrics.Addr
	}
	if addr != "" {
		if err := metrics.NewServer(addr, m).Start(ctx); err != nil {
			return fmt.Errorf("start metrics server: %w", err)
		}
	}

	if !cmd.quiet {
		unsubscribe := reg.Queue.Subscribe(newNotificationEcho(c.Root().Writer, reg.Queue.List()))
		defer unsubscribe()
	}

	if ttl := cfg.Realtime.RiderTTL; ttl > 0 {
		sweepCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go darkstore.SweepRiders(sweepCtx, reg.Roster, min(ttl, 5*time.Minute), ttl)
	}

	p.Infof("Syncing dark store %s (%d cached orders)", sess.DarkStoreID, reg.Ledger.TotalOrderCount())

	if err := svc.Run(ctx); err != nil {
		return fmt.Errorf("sync: %w", err)
	}

	p.Successf("Stopped; %d order(s) cached", reg.Ledger.TotalOrderCount())
	return nil
}

// newNotificationEcho returns a queue subscriber that writes each newly
// queued notification to w once, oldest first.
func newNotificationEcho(w io.Writer, existing []notify.Notification) func(notify.State) {
	var mu sync.Mutex
	seen := make(map[string]struct{}, len(existing))
	for _, n := range existing {
		seen[n.ID] = struct{}{}
	}

	return func(st notify.State) {
		mu.Lock()
		defer mu.Unlock()

		var fresh []notify.Notification
		for _, n := range st.Notifications {
			if _, ok := seen[n.ID]; ok {
				break
			}
			fresh = append(fresh, n)
		}
		for i := len(fresh) - 1; i >= 0; i-- {
			seen[fresh[i].ID] = struct{}{}
			writeNotification(w, fresh[i])
		}

		if len(seen) > 2*notify.Capacity {
			clear(seen)
			for _, n := range st.Notifications {
				seen[n.ID] = struct{}{}
			}
		}
	}
}
