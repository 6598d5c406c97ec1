package assetstore

import (
	"encoding/json"
	"time"

	"aimatrix/internal/job"
)

// Asset is one generated artifact persisted for a job: an image, a voice
// clip, a rendered video, or an intermediate text file.
type Asset struct {
	ID        int64           `json:"id"`
	JobID     string          `json:"job_id"`
	SceneID   string          `json:"scene_id,omitempty"`
	Kind      job.PortType    `json:"kind"`
	Path      string          `json:"path"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Spec describes an asset to persist.
type Spec struct {
	JobID    string          `json:"job_id"`
	SceneID  string          `json:"scene_id,omitempty"`
	Kind     job.PortType    `json:"kind"`
	Path     string          `json:"path"`
	Metadata json.RawMessage `json:"metadata,omitempty"`
}

// Filter narrows a query. Zero-value fields match everything.
type Filter struct {
	JobID   string
	SceneID string
	Kind    job.PortType
}
