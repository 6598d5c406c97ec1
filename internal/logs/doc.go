// Package logs provides bounded log file tailing for daemon diagnostics.
//
// It supports "last N lines" reads via a negative offset, forward reads from
// a saved offset, and follow-mode waits that block briefly for new lines.
// Callers supply context deadlines so polling shuts down cleanly when the
// CLI exits.
package logs
