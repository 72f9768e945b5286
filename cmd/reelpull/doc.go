// Package main hosts the reelpull CLI entrypoint and command graph.
//
// The Cobra command tree runs the daemon in the foreground, controls a
// detached daemon, and translates job, metadata, and subtitle commands into
// IPC calls against the daemon socket. Configuration resolution and socket
// discovery live here so subcommands only format results.
//
// Add functionality to the internal packages first, then surface it through
// a command or flag here.
package main
