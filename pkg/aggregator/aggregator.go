package aggregator

import (
	"context"
	"time"

	"github.com/fenwick-io/taskpulse/pkg/ids"
	"github.com/fenwick-io/taskpulse/pkg/shrink"
	"github.com/fenwick-io/taskpulse/pkg/taskdata"
	"github.com/fenwick-io/taskpulse/pkg/watch"
)

// Recorder receives every event the aggregator applies, for optional
// persistence. It must not block: the aggregator calls it inline on
// the drain path.
type Recorder interface {
	Record(Event)
}

// Config carries the tunables an aggregator is constructed with.
type Config struct {
	// PublishInterval is the cadence of the periodic publisher.
	PublishInterval time.Duration
	// Retention is how long a closed task's stats survive past its
	// close time. A closed task with unpublished changes and no
	// watcher is dropped without waiting for it.
	Retention time.Duration
	// Recorder, if non-nil, observes every applied event.
	Recorder Recorder
	// EventDrainObserver, if non-nil, is called once per Run iteration
	// with how long the non-blocking event drain took. This is the
	// seam pkg/metrics uses to populate EventDrainDuration without the
	// aggregator importing the metrics package.
	EventDrainObserver func(time.Duration)
	// PublishObserver, if non-nil, is called once per publish with how
	// long building and delivering that TaskUpdate/TaskDetails batch
	// took.
	PublishObserver func(time.Duration)
}

// Counters is a point-in-time snapshot of the aggregator's internal
// activity counts, polled by pkg/metrics.
type Counters struct {
	EventsApplied     uint64
	CommandsHandled   uint64
	PublishesTotal    uint64
	EvictionsTotal    uint64
	FlushesTotal      uint64
	Watchers          int
	DetailWatchers    int
	Tasks             int
}

// Aggregator is the single-threaded core: every method below except
// Flush must only be called from the goroutine running Run.
type Aggregator struct {
	events   <-chan Event
	commands <-chan Command

	publishInterval time.Duration
	retention       time.Duration
	recorder        Recorder
	drainObserver   func(time.Duration)
	publishObserver func(time.Duration)

	flush *watch.Flush

	temporality Temporality

	ids   *ids.Allocator
	tasks taskdata.Map[TaskID, Task]
	stats taskdata.Map[TaskID, Stats]

	allMetadata shrink.Vec[Metadata]
	newMetadata []Metadata

	watchers        shrink.Vec[watch.Watch[TaskUpdate]]
	detailsWatchers shrink.Map[TaskID, []watch.Watch[TaskDetails]]

	counters Counters
}

// New constructs an Aggregator reading events from events and commands
// from commands. Both channels are owned by the caller; the aggregator
// never closes them, but treats either being closed as a shutdown
// signal for Run.
func New(events <-chan Event, commands <-chan Command, cfg Config) *Aggregator {
	return &Aggregator{
		events:          events,
		commands:        commands,
		publishInterval: cfg.PublishInterval,
		retention:       cfg.Retention,
		recorder:        cfg.Recorder,
		drainObserver:   cfg.EventDrainObserver,
		publishObserver: cfg.PublishObserver,
		flush:           watch.NewFlush(),
		temporality:     Live,
		ids:             ids.New(),
		tasks:           taskdata.New[TaskID, Task](),
		stats:           taskdata.New[TaskID, Stats](),
		allMetadata:     shrink.Vec[Metadata]{},
		detailsWatchers: shrink.NewMap[TaskID, []watch.Watch[TaskDetails]](),
	}
}

// Flush returns the edge-triggered signal producers use to request an
// extra, non-publishing event drain when their event queue is filling
// up.
func (a *Aggregator) Flush() *watch.Flush { return a.flush }

// Counters returns a snapshot of the aggregator's activity counts.
// Only safe to call from the goroutine running Run — StatsCmd is the
// cross-goroutine way to read this.
func (a *Aggregator) Counters() Counters {
	c := a.counters
	c.Watchers = a.watchers.Len()
	c.DetailWatchers = a.detailsWatchers.Len()
	c.Tasks = a.tasks.Len()
	return c
}

// Run drives the aggregator until ctx is cancelled or either input
// channel is closed. Each iteration services exactly one of: the
// publish ticker, a flush notification, or a single command, then
// drains every currently queued event without blocking, then
// (depending on temporality and whether anything was serviced)
// publishes and runs retention GC.
func (a *Aggregator) Run(ctx context.Context) {
	ticker := time.NewTicker(a.publishInterval)
	defer ticker.Stop()

	for {
		shouldPublish := false

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			shouldPublish = a.temporality == Live
		case <-a.flush.C():
			a.flush.Clear()
			a.counters.FlushesTotal++
		case cmd, ok := <-a.commands:
			if !ok {
				return
			}
			a.handleCommand(cmd)
			a.counters.CommandsHandled++
		}

		drainStart := time.Now()
		closed := !a.drainEvents()
		if a.drainObserver != nil {
			a.drainObserver(time.Since(drainStart))
		}
		if closed {
			return
		}

		if shouldPublish && a.watchers.Len() > 0 {
			a.publish()
		}

		a.gcClosedTasks()
	}
}

// drainEvents applies every event currently queued without blocking,
// so the aggregator never waits on its own producers (which would
// self-wake them). It returns false if the event channel was closed.
func (a *Aggregator) drainEvents() bool {
	for {
		select {
		case ev, ok := <-a.events:
			if !ok {
				return false
			}
			if a.recorder != nil {
				a.recorder.Record(ev)
			}
			a.applyEvent(ev)
			a.counters.EventsApplied++
		default:
			return true
		}
	}
}

func (a *Aggregator) handleCommand(cmd Command) {
	switch c := cmd.(type) {
	case WatchTasksCmd:
		a.addTaskSubscription(c.Sink)
	case WatchTaskDetailCmd:
		a.addTaskDetailSubscription(c)
	case PauseCmd:
		a.temporality = Paused
	case ResumeCmd:
		a.temporality = Live
	case StatsCmd:
		c.Reply <- a.Counters()
	}
}

func (a *Aggregator) applyEvent(ev Event) {
	switch e := ev.(type) {
	case EventMetadata:
		a.allMetadata.Push(e.Metadata)
		a.newMetadata = append(a.newMetadata, e.Metadata)

	case EventSpawn:
		taskID := a.ids.IDFor(e.Span)
		a.tasks.Insert(taskID, Task{Metadata: e.Metadata, Fields: e.Fields})
		a.stats.Insert(taskID, newStats(e.At))

	case EventEnter:
		taskID := a.ids.IDFor(e.Span)
		h := a.stats.UpdateOrDefault(taskID, func() Stats { return newStats(time.Time{}) })
		s := h.Value()
		if s.CurrentPolls == 0 {
			if s.FirstPoll.IsZero() {
				s.FirstPoll = e.At
			}
			s.LastPollStarted = e.At
			s.Polls++
		}
		s.CurrentPolls++

	case EventExit:
		taskID := a.ids.IDFor(e.Span)
		h := a.stats.UpdateOrDefault(taskID, func() Stats { return newStats(time.Time{}) })
		s := h.Value()
		if s.CurrentPolls > 0 {
			s.CurrentPolls--
		}
		if s.CurrentPolls == 0 && !s.LastPollStarted.IsZero() {
			elapsed := e.At.Sub(s.LastPollStarted)
			if elapsed < 0 {
				elapsed = 0
			}
			s.LastPollEnded = e.At
			s.BusyTime += elapsed
			recordPoll(s.PollTimes, elapsed)
		}

	case EventClose:
		taskID := a.ids.IDFor(e.Span)
		h := a.stats.UpdateOrDefault(taskID, func() Stats { return newStats(time.Time{}) })
		h.Value().ClosedAt = e.At

	case EventWaker:
		taskID := a.ids.IDFor(e.Span)
		h, ok := a.stats.Update(taskID)
		if !ok {
			// A waker event against an id the aggregator never saw
			// spawned (e.g. it arrived before the corresponding Spawn
			// due to reordering, or the task was already GC'd):
			// ignored rather than materializing a bare stats record.
			return
		}
		s := h.Value()
		switch e.Op {
		case WakeOpWake:
			s.Wakes++
			s.LastWake = e.At
			// Consuming a waker by value also drops it, without
			// separately invoking the drop handler.
			s.WakerDrops++
		case WakeOpWakeByRef:
			s.Wakes++
			s.LastWake = e.At
		case WakeOpClone:
			s.WakerClones++
		case WakeOpDrop:
			s.WakerDrops++
		}
	}
}

func (a *Aggregator) addTaskSubscription(sink chan TaskUpdate) {
	w := watch.New(sink)
	update := TaskUpdate{
		NewMetadata: append([]Metadata(nil), a.allMetadata.All()...),
		NewTasks:    a.allTaskRecords(),
		StatsUpdate: a.allStatsSnapshots(),
		Now:         time.Now(),
	}
	if w.Update(update) {
		a.watchers.Push(w)
	}
}

func (a *Aggregator) addTaskDetailSubscription(c WatchTaskDetailCmd) {
	defer close(c.Reply)

	stats, ok := a.stats.Get(c.ID)
	if !ok {
		return
	}

	ch := make(chan TaskDetails, c.Buffer)
	w := watch.New(ch)
	details := TaskDetails{
		TaskID:             c.ID,
		Now:                time.Now(),
		PollTimesHistogram: serializeHistogram(stats.PollTimes),
	}
	if !w.Update(details) {
		return
	}

	c.Reply <- ch

	existing, _ := a.detailsWatchers.Get(c.ID)
	a.detailsWatchers.Set(c.ID, append(existing, w))
}

func (a *Aggregator) allTaskRecords() []TaskRecord {
	var out []TaskRecord
	a.tasks.Range(func(id TaskID, t Task) {
		out = append(out, toTaskRecord(id, t))
	})
	return out
}

func (a *Aggregator) allStatsSnapshots() map[TaskID]StatsSnapshot {
	out := make(map[TaskID]StatsSnapshot)
	a.stats.Range(func(id TaskID, s Stats) {
		out[id] = toStatsSnapshot(s)
	})
	return out
}

// publish delivers one differential TaskUpdate to every global
// watcher, then delivers per-task TaskDetails to every detail
// watcher. Watchers that reject a delivery (a full or closed sink)
// are dropped.
func (a *Aggregator) publish() {
	start := time.Now()
	if a.publishObserver != nil {
		defer func() { a.publishObserver(time.Since(start)) }()
	}

	now := start

	var newMeta []Metadata
	if len(a.newMetadata) > 0 {
		newMeta = a.newMetadata
		a.newMetadata = nil
	}

	var newTasks []TaskRecord
	a.tasks.SinceLastUpdate(func(id TaskID, t Task) {
		newTasks = append(newTasks, toTaskRecord(id, t))
	})

	statsUpdate := make(map[TaskID]StatsSnapshot)
	a.stats.SinceLastUpdate(func(id TaskID, s Stats) {
		statsUpdate[id] = toStatsSnapshot(s)
	})

	update := TaskUpdate{NewMetadata: newMeta, NewTasks: newTasks, StatsUpdate: statsUpdate, Now: now}

	a.watchers.RetainAndShrink(func(w watch.Watch[TaskUpdate]) bool {
		return w.Update(update)
	})

	a.publishDetails(now)
	a.counters.PublishesTotal++
}

func (a *Aggregator) publishDetails(now time.Time) {
	type subscription struct {
		id       TaskID
		watchers []watch.Watch[TaskDetails]
	}
	var all []subscription
	a.detailsWatchers.Range(func(id TaskID, ws []watch.Watch[TaskDetails]) {
		all = append(all, subscription{id, ws})
	})

	for _, sub := range all {
		stats, ok := a.stats.Get(sub.id)
		if !ok {
			a.detailsWatchers.Delete(sub.id)
			continue
		}
		details := TaskDetails{
			TaskID:             sub.id,
			Now:                now,
			PollTimesHistogram: serializeHistogram(stats.PollTimes),
		}

		kept := sub.watchers[:0]
		for _, w := range sub.watchers {
			if w.Update(details) {
				kept = append(kept, w)
			}
		}
		if len(kept) == 0 {
			a.detailsWatchers.Delete(sub.id)
		} else {
			a.detailsWatchers.Set(sub.id, kept)
		}
	}
}

// gcClosedTasks drops stats for tasks that are both closed and either
// dirty with no subscriber left to see the final state, or past the
// retention window regardless of dirtiness. It then drops the
// corresponding static Task record and compacts the id allocator.
func (a *Aggregator) gcClosedTasks() {
	now := time.Now()
	hasWatchers := a.watchers.Len() > 0
	droppedAny := false

	a.stats.RetainAndShrink(func(id TaskID, s Stats, dirty bool) bool {
		if s.ClosedAt.IsZero() {
			return true
		}
		closedFor := now.Sub(s.ClosedAt)
		drop := (dirty && !hasWatchers) || closedFor > a.retention
		if drop {
			droppedAny = true
			a.counters.EvictionsTotal++
		}
		return !drop
	})

	if !droppedAny {
		return
	}

	a.tasks.RetainAndShrink(func(id TaskID, _ Task, _ bool) bool {
		return a.stats.Contains(id)
	})
	a.ids.RetainOnly(func(id TaskID) bool { return a.tasks.Contains(id) })
}

func toTaskRecord(id TaskID, t Task) TaskRecord {
	return TaskRecord{ID: id, Metadata: t.Metadata, Fields: t.Fields}
}

func toStatsSnapshot(s Stats) StatsSnapshot {
	snap := StatsSnapshot{
		Polls:           s.Polls,
		CreatedAt:       s.CreatedAt,
		FirstPoll:       s.FirstPoll,
		LastPollStarted: s.LastPollStarted,
		LastPollEnded:   s.LastPollEnded,
		BusyTime:        s.BusyTime,
		Wakes:           s.Wakes,
		WakerClones:     s.WakerClones,
		WakerDrops:      s.WakerDrops,
		LastWake:        s.LastWake,
	}
	if !s.ClosedAt.IsZero() {
		total := s.ClosedAt.Sub(s.CreatedAt)
		snap.TotalTime = &total
	}
	return snap
}
