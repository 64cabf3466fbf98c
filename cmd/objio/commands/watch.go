package commands

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/marmos91/objio/internal/logger"
	"github.com/marmos91/objio/pkg/config"
	"github.com/marmos91/objio/pkg/objectstore"
	"github.com/marmos91/objio/pkg/transport"
	"github.com/marmos91/objio/pkg/transport/local"
	"github.com/marmos91/objio/pkg/watcher"
)

var (
	watchObject    string
	watchWatchers  int
	watchNotifies  int
	watchBreak     bool
	watchBlocklist bool
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Exercise watch, notify and rewatch on an object",
	Long: `Register watchers on an object, notify them, and inject session faults.

Each watcher runs on its own client and acknowledges notifies with its index.
With --break the first watcher's session is broken and the command waits for
the automatic rewatch. With --blocklist the last watcher's client is fenced,
which ends its watch with a fatal error.

Examples:
  objio watch --watchers 3 --notifies 2
  objio watch --break --blocklist -o json`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&watchObject, "object", "objio.header", "Object to watch")
	watchCmd.Flags().IntVar(&watchWatchers, "watchers", 2, "Number of watchers")
	watchCmd.Flags().IntVar(&watchNotifies, "notifies", 1, "Notifies sent per round")
	watchCmd.Flags().BoolVar(&watchBreak, "break", true, "Break the first watch session and wait for the rewatch")
	watchCmd.Flags().BoolVar(&watchBlocklist, "blocklist", false, "Blocklist the last watcher's client")
}

// watchOptions describes one watch run.
type watchOptions struct {
	Object    string
	Watchers  int
	Notifies  int
	Break     bool
	Blocklist bool
	Watcher   watcher.Config
}

// watchEvent is one observed step of a run.
type watchEvent struct {
	Elapsed time.Duration `json:"elapsed" yaml:"elapsed"`
	Watcher string        `json:"watcher" yaml:"watcher"`
	Event   string        `json:"event" yaml:"event"`
	Detail  string        `json:"detail" yaml:"detail"`
}

// watchReport lists the events of a run in order.
type watchReport struct {
	Object string       `json:"object" yaml:"object"`
	Events []watchEvent `json:"events" yaml:"events"`

	start time.Time
}

func (r *watchReport) add(who, event, detail string) {
	r.Events = append(r.Events, watchEvent{
		Elapsed: time.Since(r.start),
		Watcher: who,
		Event:   event,
		Detail:  detail,
	})
	logger.Debug("Watch event", "watcher", who, "event", event, "detail", detail)
}

func (r *watchReport) Headers() []string {
	return []string{"Elapsed", "Watcher", "Event", "Detail"}
}

func (r *watchReport) Rows() [][]string {
	rows := make([][]string, 0, len(r.Events))
	for _, e := range r.Events {
		rows = append(rows, []string{e.Elapsed.Round(time.Microsecond).String(), e.Watcher, e.Event, e.Detail})
	}
	return rows
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	printer, err := newPrinter(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	stopTelemetry, err := initTelemetry(ctx, cfg)
	if err != nil {
		return err
	}
	defer stopTelemetry()

	reg := newRegistry(cfg)
	cluster, err := config.CreateCluster(ctx, cfg, registerer(reg))
	if err != nil {
		return err
	}
	defer func() { _ = cluster.Close() }()

	queue := config.CreateWorkQueue("watch", cfg.WorkQueue)
	defer queue.Stop(cfg.ShutdownTimeout)

	startMonitoring(ctx, cfg, cluster.Store(), reg)

	var metrics *watcher.Metrics
	if reg != nil {
		metrics = watcher.NewMetrics(reg)
	}

	report, err := watchRun(ctx, cluster, queue, watchOptions{
		Object:    watchObject,
		Watchers:  watchWatchers,
		Notifies:  watchNotifies,
		Break:     watchBreak,
		Blocklist: watchBlocklist,
		Watcher:   cfg.Watcher.Watcher(),
	}, metrics)
	if err != nil {
		return err
	}
	return printer.Print(report)
}

// watchRun registers opts.Watchers watchers, notifies them, injects the
// requested faults and unregisters everything.
func watchRun(ctx context.Context, cluster *local.Cluster, queue watcher.WorkQueue, opts watchOptions, metrics *watcher.Metrics) (*watchReport, error) {
	if opts.Watchers < 1 {
		return nil, fmt.Errorf("at least one watcher is required: %w", transport.ErrInvalid)
	}
	report := &watchReport{Object: opts.Object, start: time.Now()}

	if err := ensureObject(ctx, cluster.Store(), opts.Object); err != nil {
		return nil, err
	}

	watchers := make([]*watcher.Watcher, opts.Watchers)
	rewatched := make([]chan error, opts.Watchers)
	for i := range opts.Watchers {
		client, err := cluster.Connect()
		if err != nil {
			return nil, err
		}
		defer client.Close()

		reply := []byte("ack:" + strconv.Itoa(i))
		handler := watcher.HandlerFunc(func(n *watcher.Notification) { n.Ack(reply) })

		done := make(chan error, 1)
		wcfg := opts.Watcher
		wcfg.OnRewatchComplete = func(err error) {
			select {
			case done <- err:
			default:
			}
		}
		rewatched[i] = done
		watchers[i] = watcher.New(client, queue, opts.Object, handler, wcfg, metrics)

		if err := watchers[i].Register(ctx); err != nil {
			return nil, fmt.Errorf("register watcher %d: %w", i, err)
		}
		report.add(strconv.Itoa(i), "registered", fmt.Sprintf("handle=%d", watchers[i].Handle()))
	}

	sender, err := cluster.Connect()
	if err != nil {
		return nil, err
	}
	defer sender.Close()
	notifier := watcher.NewNotifier(sender, queue, opts.Object, opts.Watcher.NotifyTimeout, metrics)

	notifyRound := func(round string) error {
		for n := range opts.Notifies {
			resp := &transport.NotifyResponse{}
			err := notifyWait(ctx, notifier, []byte(fmt.Sprintf("%s-%d", round, n)), resp)
			if err != nil && !errors.Is(err, transport.ErrTimedOut) {
				return fmt.Errorf("notify: %w", err)
			}
			report.add("-", "notify", fmt.Sprintf("round=%s acks=%d timeouts=%d", round, len(resp.Acks), len(resp.Timeouts)))
		}
		return nil
	}

	if err := notifyRound("initial"); err != nil {
		return nil, err
	}

	if opts.Break {
		w := watchers[0]
		old := w.Handle()
		if err := cluster.BreakWatch(old, transport.ErrNotConnected); err != nil {
			return nil, err
		}
		report.add("0", "session broken", fmt.Sprintf("handle=%d", old))

		if err := awaitRewatch(ctx, rewatched[0]); err != nil {
			report.add("0", "rewatch failed", err.Error())
		} else {
			report.add("0", "rewatched", fmt.Sprintf("handle=%d state=%s", w.Handle(), w.State()))
		}
	}

	if opts.Blocklist {
		last := len(watchers) - 1
		w := watchers[last]
		cluster.Blocklist(w.ClientID())
		report.add(strconv.Itoa(last), "blocklisted", fmt.Sprintf("client=%d", w.ClientID()))

		err := awaitRewatch(ctx, rewatched[last])
		report.add(strconv.Itoa(last), "watch ended", fmt.Sprintf("error=%v blocklisted=%t state=%s", err, w.IsBlocklisted(), w.State()))
	}

	if opts.Break || opts.Blocklist {
		if err := notifyRound("after-faults"); err != nil {
			return nil, err
		}
	}

	for i, w := range watchers {
		if err := w.Unregister(ctx); err != nil {
			report.add(strconv.Itoa(i), "unregister failed", err.Error())
			continue
		}
		report.add(strconv.Itoa(i), "unregistered", w.State().String())
	}
	return report, nil
}

// ensureObject creates an empty object when it does not exist yet.
func ensureObject(ctx context.Context, store objectstore.Store, object string) error {
	_, err := store.StatObject(ctx, object)
	if errors.Is(err, objectstore.ErrObjectNotFound) {
		return store.PutObject(ctx, object, nil)
	}
	return err
}

func notifyWait(ctx context.Context, n *watcher.Notifier, payload []byte, resp *transport.NotifyResponse) error {
	done := make(chan error, 1)
	n.Notify(ctx, payload, resp, func(err error) { done <- err })
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func awaitRewatch(ctx context.Context, ch <-chan error) error {
	select {
	case err := <-ch:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
