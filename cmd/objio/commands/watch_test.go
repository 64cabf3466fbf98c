package commands

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/objio/pkg/objectstore/memory"
	"github.com/marmos91/objio/pkg/transport/local"
	"github.com/marmos91/objio/pkg/watcher"
	"github.com/marmos91/objio/pkg/workqueue"
)

func newWatchEnv(t *testing.T) (*local.Cluster, *workqueue.Queue) {
	t.Helper()
	cl := local.NewCluster(memory.New(), local.Config{})
	q := workqueue.New("watch-test", workqueue.Config{Workers: 2, QueueSize: 100})
	q.Start()
	t.Cleanup(func() {
		q.Stop(time.Second)
		_ = cl.Close()
	})
	return cl, q
}

func eventsNamed(r *watchReport, name string) []watchEvent {
	var out []watchEvent
	for _, e := range r.Events {
		if e.Event == name {
			out = append(out, e)
		}
	}
	return out
}

func testWatcherConfig() watcher.Config {
	return watcher.Config{
		RewatchDelay:    5 * time.Millisecond,
		MaxRewatchDelay: 50 * time.Millisecond,
		NotifyTimeout:   time.Second,
	}
}

func TestWatchRun_BreakAndBlocklist(t *testing.T) {
	t.Parallel()

	cl, q := newWatchEnv(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	reg := prometheus.NewRegistry()
	report, err := watchRun(ctx, cl, q, watchOptions{
		Object:    "img.header",
		Watchers:  3,
		Notifies:  2,
		Break:     true,
		Blocklist: true,
		Watcher:   testWatcherConfig(),
	}, watcher.NewMetrics(reg))
	require.NoError(t, err)

	assert.Len(t, eventsNamed(report, "registered"), 3)
	require.Len(t, eventsNamed(report, "rewatched"), 1)
	assert.Contains(t, eventsNamed(report, "rewatched")[0].Detail, "state=REGISTERED")

	ended := eventsNamed(report, "watch ended")
	require.Len(t, ended, 1)
	assert.Equal(t, "2", ended[0].Watcher)
	assert.Contains(t, ended[0].Detail, "blocklisted=true")

	notifies := eventsNamed(report, "notify")
	require.Len(t, notifies, 4)
	assert.Contains(t, notifies[0].Detail, "acks=3 timeouts=0")
	assert.Contains(t, notifies[3].Detail, "acks=2 timeouts=0", "blocklisted watcher no longer acks")

	assert.Len(t, eventsNamed(report, "unregistered"), 3)
	assert.Equal(t, 0, cl.WatchCount("img.header"))
}

func TestWatchRun_NoFaults(t *testing.T) {
	t.Parallel()

	cl, q := newWatchEnv(t)
	report, err := watchRun(context.Background(), cl, q, watchOptions{
		Object:   "obj",
		Watchers: 1,
		Notifies: 1,
		Watcher:  testWatcherConfig(),
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"registered", "notify", "unregistered"}, func() []string {
		var names []string
		for _, e := range report.Events {
			names = append(names, e.Event)
		}
		return names
	}())
	assert.Equal(t, []string{"Elapsed", "Watcher", "Event", "Detail"}, report.Headers())
	assert.Len(t, report.Rows(), 3)
}

func TestWatchRun_RequiresWatcher(t *testing.T) {
	t.Parallel()

	cl, q := newWatchEnv(t)
	_, err := watchRun(context.Background(), cl, q, watchOptions{Object: "obj"}, nil)
	assert.Error(t, err)
}
