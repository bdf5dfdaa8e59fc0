/*
Package log provides structured logging for taskpulse using zerolog.

It wraps zerolog to give JSON or console-formatted output, a
configurable severity threshold, and component-scoped child loggers,
so the aggregator, transport, and CLI layers can tag their log lines
without repeating fields by hand.

# Usage

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

	aggLog := log.WithComponent("aggregator")
	aggLog.Info().Int("watchers", 3).Msg("publish tick")

	log.WithTaskID(taskID).Warn().Msg("poll exceeded budget")

# Design notes

A single package-level Logger is initialized once in main and read
from everywhere else; component and task-id loggers are just that
Logger with extra fields attached, never a separate sink. Don't log in
the aggregator's event-drain loop — it runs per event and will drown
out everything else; log from the publish tick or command handlers
instead.
*/
package log
