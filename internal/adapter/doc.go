// Package adapter defines the backend capability contract the workflow
// manager dispatches to, plus the shared Runner that implements the job
// lifecycle once for every backend.
//
// A Backend is the blocking half (subprocess, HTTP call, tool invocation); a
// Runner wraps it with the asynchronous job machinery: accept-and-return
// submission, a private job table with sticky terminal states, cooperative
// cancellation via stored cancel functions, advisory progress estimates, and
// force-cancel at cleanup. Concrete adapters in the subpackages supply only
// their Backend and configuration.
//
// Keeping the state machine here means it is tested once against a
// deterministic fake backend rather than re-implemented per integration.
package adapter
