package metrics

import (
	"time"

	"github.com/fenwick-io/taskpulse/pkg/aggregator"
)

// Collector polls an Aggregator's activity counters on a fixed
// interval, via StatsCmd over the same command channel the transport
// layer uses, and republishes them as Prometheus series. Aggregator
// counters are monotonic; this turns the delta since the last poll
// into the *_total counters, and copies the point-in-time fields
// straight into gauges. Each successful poll also registers the
// "aggregator" component as healthy for GetReadiness/ReadyHandler; a
// poll that times out registers it unhealthy, so /ready reflects the
// same signal the collector already uses for its own metrics.
type Collector struct {
	commands chan<- aggregator.Command
	stopCh   chan struct{}

	prevEvents    uint64
	prevCommands  uint64
	prevPublishes uint64
	prevEvictions uint64
	prevFlushes   uint64
}

// NewCollector creates a new metrics collector that sends StatsCmd on
// commands, the same channel the aggregator's transport layer uses.
func NewCollector(commands chan<- aggregator.Command) *Collector {
	return &Collector{commands: commands, stopCh: make(chan struct{})}
}

// Start begins collecting metrics every 5 seconds.
func (c *Collector) Start() {
	ticker := time.NewTicker(5 * time.Second)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	reply := make(chan aggregator.Counters, 1)

	select {
	case c.commands <- aggregator.StatsCmd{Reply: reply}:
	case <-time.After(5 * time.Second):
		RegisterComponent("aggregator", false, "command channel is not draining")
		return
	}

	var snap aggregator.Counters
	select {
	case snap = <-reply:
	case <-time.After(5 * time.Second):
		RegisterComponent("aggregator", false, "did not respond to a stats request")
		return
	}
	RegisterComponent("aggregator", true, "")

	EventsAppliedTotal.Add(float64(snap.EventsApplied - c.prevEvents))
	CommandsHandledTotal.Add(float64(snap.CommandsHandled - c.prevCommands))
	PublishesTotal.Add(float64(snap.PublishesTotal - c.prevPublishes))
	TasksEvictedTotal.Add(float64(snap.EvictionsTotal - c.prevEvictions))
	FlushTriggersTotal.Add(float64(snap.FlushesTotal - c.prevFlushes))

	c.prevEvents = snap.EventsApplied
	c.prevCommands = snap.CommandsHandled
	c.prevPublishes = snap.PublishesTotal
	c.prevEvictions = snap.EvictionsTotal
	c.prevFlushes = snap.FlushesTotal

	WatchersActive.Set(float64(snap.Watchers))
	DetailWatchersActive.Set(float64(snap.DetailWatchers))
	TasksLive.Set(float64(snap.Tasks))
}
