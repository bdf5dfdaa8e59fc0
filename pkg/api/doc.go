/*
Package api is the transport boundary between the aggregator core and
the outside world. The core never imports gRPC (see SPEC_FULL.md
§4.10); everything on the other side of that boundary lives here.

# What's real and what isn't

Server starts an actual google.golang.org/grpc server and registers
the standard grpc.health.v1.Health service against it, so any
grpcurl or Kubernetes gRPC probe gets a wire-compatible answer with
no bespoke protobuf involved.

Service, by contrast, exposes WatchTasks and WatchTaskDetail as plain
Go methods rather than generated gRPC stubs: hand-writing the
task-update/task-detail protobuf messages without protoc is out of
scope the same way wire encoding is out of scope for the aggregator
itself. A production build would point protoc-gen-go-grpc at a
.proto mirroring aggregator.TaskUpdate/TaskDetails and swap Service's
sinks for the generated server-stream types; nothing else in this
package would need to change.

This is, in effect, the teacher's own stubbed WatchTasks RPC filled
in, just decoupled from the wire format it used to assume.

# Usage

	commands := make(chan aggregator.Command, 64)
	srv := api.NewServer(commands)

	go func() {
		if err := srv.Start(":9090"); err != nil {
			log.Errorf("api server stopped", err)
		}
	}()
	defer srv.Stop()

	srv.MarkServing()

	sink := make(chan aggregator.TaskUpdate, 16)
	go srv.Service.WatchTasks(ctx, sink)
	for update := range sink {
		// ...
	}

# Observability

LoggingUnaryInterceptor and LoggingStreamInterceptor record every RPC
to pkg/metrics's GRPCRequestsTotal/GRPCRequestDuration and log failures
at debug level; there is no read/write permission split left to
enforce here, since every call this API exposes is already a
subscription.

Process-level HTTP liveness and readiness probes (/health, /ready,
/live, /metrics) live in pkg/metrics, not here: that package's
Collector already round-trips a StatsCmd to the aggregator on a fixed
interval for its own counters, so it registers the "aggregator"
component's health as a side effect of that same poll instead of
running a second, separate check.
*/
package api
