// Package main hosts the aimatrix CLI entrypoint and command graph.
//
// The Cobra-based command tree translates terminal invocations into IPC
// calls against the daemon: workflow submission and tracking, novel text
// splitting, asset queries, daemon lifecycle control, and configuration
// scaffolding. It centralizes configuration resolution and socket discovery
// so subcommands can focus on user experience instead of wiring.
package main
