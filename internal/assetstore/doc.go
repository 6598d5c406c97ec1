// Package assetstore persists generated assets and workflow definitions in
// SQLite.
//
// Jobs themselves are never persisted; they live in adapter memory for the
// daemon's lifetime. The store holds the artifacts jobs produce and the
// reusable workflow definitions users save between sessions.
package assetstore
