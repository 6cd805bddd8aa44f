// Package logging builds the slog logger shared by the critic and fanout
// binaries and carries it through a context.Context.
//
// Records go to stderr in text form at warn level by default. Debug output is
// enabled with --debug or CRITIC_DEBUG=1, and CRITIC_LOG_FILE additionally
// appends JSON records to a file. Every record carries a run_id.
package logging
