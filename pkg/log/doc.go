/*
Package log provides structured logging for the master process using zerolog.

It wraps zerolog to give JSON or console output, a configurable level, and a
small set of context-logger helpers for the fields that recur across the
registries and the dispatcher: component, node id, connection id, and topic.

# Usage

Initializing the logger, typically once in main before anything else runs:

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

	log.Info("master starting")

Component and context loggers:

	regLog := log.WithComponent("service_mgr")
	regLog.Info().Str("node_id", id).Msg("service registered")

	connLog := log.WithConnID(connID)
	connLog.Warn().Msg("frame exceeded max_frame_size, dropping connection")

# Design

A single package-level zerolog.Logger is initialized once via Init and read
from everywhere else; With* helpers return a derived child logger rather than
mutating global state, so call sites can freely narrow context without
affecting other goroutines' loggers.
*/
package log
