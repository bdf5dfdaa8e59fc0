package api

import (
	"context"
	"fmt"

	"github.com/fenwick-io/taskpulse/pkg/aggregator"
	"github.com/fenwick-io/taskpulse/pkg/log"
)

// Service turns subscription requests into Aggregator Commands. It is
// the filled-in version of the teacher's own stubbed WatchTasks RPC
// ("WatchTasks not yet implemented"): instead of taking a generated
// gRPC server-stream type, each method here takes a plain Go sink so
// the wire encoding can be swapped in later without touching this
// file (see pkg/api's doc comment for why no protobuf is generated
// here).
type Service struct {
	commands chan<- aggregator.Command
}

// NewService creates a Service that dispatches onto commands, the
// same channel the Aggregator's Run loop reads from.
func NewService(commands chan<- aggregator.Command) *Service {
	return &Service{commands: commands}
}

// WatchTasks subscribes sink to the global differential task stream
// until ctx is done. sink must be a buffered channel; a slow or dead
// receiver is evicted by the aggregator's publisher rather than
// blocking it (see pkg/watch.Watch.Update).
func (s *Service) WatchTasks(ctx context.Context, sink chan aggregator.TaskUpdate) error {
	select {
	case s.commands <- aggregator.WatchTasksCmd{Sink: sink}:
	case <-ctx.Done():
		return ctx.Err()
	}
	<-ctx.Done()
	return ctx.Err()
}

// WatchTaskDetail subscribes to the per-task histogram detail stream
// for id. It returns the receive end of a buffer-sized channel, or an
// error if the task is unknown to the aggregator right now.
func (s *Service) WatchTaskDetail(ctx context.Context, id aggregator.TaskID, buffer int) (<-chan aggregator.TaskDetails, error) {
	reply := make(chan chan aggregator.TaskDetails, 1)
	cmd := aggregator.WatchTaskDetailCmd{ID: id, Buffer: buffer, Reply: reply}

	select {
	case s.commands <- cmd:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case ch, ok := <-reply:
		if !ok {
			log.WithTaskID(id).Debug().Msg("detail subscription rejected: unknown task")
			return nil, fmt.Errorf("task %d: %w", id, ErrTaskNotFound)
		}
		log.WithTaskID(id).Debug().Msg("detail subscription registered")
		return ch, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Pause stops the periodic publisher. Resume restarts it. Both are
// fire-and-forget: the aggregator applies them on its next command
// poll, there is nothing to wait for.
func (s *Service) Pause() {
	log.WithComponent("api").Debug().Msg("pausing aggregator publisher")
	s.commands <- aggregator.PauseCmd{}
}

func (s *Service) Resume() {
	log.WithComponent("api").Debug().Msg("resuming aggregator publisher")
	s.commands <- aggregator.ResumeCmd{}
}

// ErrTaskNotFound is returned by WatchTaskDetail when the aggregator
// has no record of the requested task, closed or otherwise.
var ErrTaskNotFound = fmt.Errorf("task not found")
