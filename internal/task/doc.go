// Package task runs independent background work with a bounded concurrency
// ceiling.
//
// The pool exists for fan-out workloads like generating one image per scene:
// create N tasks, then wait on all of them inside one shared timeout window.
// Batch waits preserve result ordering against the input ids and keep the
// outcomes of tasks that finished even when another task times out.
package task
