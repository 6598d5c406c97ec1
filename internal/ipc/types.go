package ipc

import (
	"aimatrix/internal/job"
	"aimatrix/internal/segment"
)

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// BackendHealth describes readiness of one backend adapter.
type BackendHealth struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// StatusResponse represents combined daemon/backend status information.
type StatusResponse struct {
	Running      bool            `json:"running"`
	PID          int             `json:"pid"`
	SocketPath   string          `json:"socket_path"`
	LockPath     string          `json:"lock_path"`
	DatabasePath string          `json:"database_path"`
	Backends     []BackendHealth `json:"backends"`
	Jobs         []job.Snapshot  `json:"jobs"`
}

// StopRequest stops the daemon.
type StopRequest struct{}

// StopResponse indicates stop result.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// WorkflowExecuteRequest dispatches a workflow to its backend.
type WorkflowExecuteRequest struct {
	Workflow job.Workflow `json:"workflow"`
}

// WorkflowExecuteResponse carries the submission result.
type WorkflowExecuteResponse struct {
	Result job.Result `json:"result"`
}

// WorkflowStatusRequest fetches one job's snapshot.
type WorkflowStatusRequest struct {
	JobID string `json:"job_id"`
}

// WorkflowStatusResponse carries the snapshot.
type WorkflowStatusResponse struct {
	Job job.Snapshot `json:"job"`
}

// WorkflowCancelRequest requests a best-effort stop of one job.
type WorkflowCancelRequest struct {
	JobID string `json:"job_id"`
}

// WorkflowCancelResponse indicates the cancel request was accepted.
type WorkflowCancelResponse struct {
	Cancelled bool `json:"cancelled"`
}

// WorkflowListRequest lists every tracked job.
type WorkflowListRequest struct{}

// WorkflowListResponse contains job snapshots.
type WorkflowListResponse struct {
	Jobs []job.Snapshot `json:"jobs"`
}

// WorkflowSaveRequest persists a workflow definition.
type WorkflowSaveRequest struct {
	Workflow job.Workflow `json:"workflow"`
}

// WorkflowSaveResponse indicates the definition was stored.
type WorkflowSaveResponse struct {
	Saved bool `json:"saved"`
}

// WorkflowLoadRequest fetches a saved definition by id.
type WorkflowLoadRequest struct {
	ID string `json:"id"`
}

// WorkflowLoadResponse carries the definition.
type WorkflowLoadResponse struct {
	Workflow job.Workflow `json:"workflow"`
}

// WorkflowDefinitionsRequest lists every saved definition.
type WorkflowDefinitionsRequest struct{}

// WorkflowDefinitionsResponse contains saved definitions.
type WorkflowDefinitionsResponse struct {
	Workflows []job.Workflow `json:"workflows"`
}

// SplitRequest divides novel text into scenes. ChunkSize zero means the
// daemon's configured threshold.
type SplitRequest struct {
	Text      string `json:"text"`
	ChunkSize int    `json:"chunk_size,omitempty"`
}

// SplitResponse contains the resulting scenes.
type SplitResponse struct {
	Scenes []segment.Scene `json:"scenes"`
}

// LogTailRequest fetches daemon log lines based on offset and follow semantics.
type LogTailRequest struct {
	Offset     int64 `json:"offset"`
	Limit      int   `json:"limit"`
	Follow     bool  `json:"follow"`
	WaitMillis int   `json:"wait_millis"`
}

// LogTailResponse returns log lines and the next offset.
type LogTailResponse struct {
	Lines  []string `json:"lines"`
	Offset int64    `json:"offset"`
}

// AssetsRequest filters persisted assets. Empty fields match everything.
type AssetsRequest struct {
	JobID   string `json:"job_id,omitempty"`
	SceneID string `json:"scene_id,omitempty"`
	Kind    string `json:"kind,omitempty"`
}

// AssetRecord is the wire form of one persisted asset.
type AssetRecord struct {
	ID        int64  `json:"id"`
	JobID     string `json:"job_id"`
	SceneID   string `json:"scene_id,omitempty"`
	Kind      string `json:"kind"`
	Path      string `json:"path"`
	Metadata  string `json:"metadata,omitempty"`
	CreatedAt string `json:"created_at"`
}

// AssetsResponse contains matching assets.
type AssetsResponse struct {
	Assets []AssetRecord `json:"assets"`
}
