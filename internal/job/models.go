package job

import (
	"encoding/json"
	"strings"
	"time"
)

// Type selects the backend adapter a workflow executes on.
type Type string

const (
	TypeLocalPipeline Type = "local-pipeline"
	TypeAutomation    Type = "remote-automation"
	TypeToolCall      Type = "tool-call"
)

var allTypes = []Type{TypeLocalPipeline, TypeAutomation, TypeToolCall}

// AllTypes returns the ordered list of known workflow types.
func AllTypes() []Type {
	cp := make([]Type, len(allTypes))
	copy(cp, allTypes)
	return cp
}

// ParseType converts a string into a known workflow Type.
func ParseType(value string) (Type, bool) {
	normalized := Type(strings.ToLower(strings.TrimSpace(value)))
	for _, t := range allTypes {
		if t == normalized {
			return t, true
		}
	}
	return "", false
}

// PortType classifies workflow inputs and outputs.
type PortType string

const (
	PortText  PortType = "text"
	PortImage PortType = "image"
	PortVideo PortType = "video"
	PortAudio PortType = "audio"
	PortFile  PortType = "file"
)

// Port describes one workflow input or output slot.
type Port struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Type         PortType `json:"type"`
	Required     bool     `json:"required,omitempty"`
	DefaultValue string   `json:"default_value,omitempty"`
}

// Workflow is a caller-supplied execution request. Immutable once submitted;
// the manager and adapters treat it as read-only.
type Workflow struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Type    Type            `json:"type"`
	Params  json.RawMessage `json:"params,omitempty"`
	Inputs  []Port          `json:"inputs"`
	Outputs []Port          `json:"outputs"`
}

// Result reports the submission outcome of Execute. Success means the job was
// accepted and dispatched, not that it finished; callers poll by JobID.
type Result struct {
	Success       bool            `json:"success"`
	JobID         string          `json:"job_id,omitempty"`
	Output        json.RawMessage `json:"output,omitempty"`
	Error         string          `json:"error,omitempty"`
	ExecutionTime time.Duration   `json:"execution_time"`
}

// Status represents the lifecycle of a job.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// ShutdownCancelMessage is set on jobs force-cancelled by adapter Cleanup.
const ShutdownCancelMessage = "cancelled at shutdown"

var allStatuses = []Status{
	StatusPending,
	StatusRunning,
	StatusCompleted,
	StatusFailed,
	StatusCancelled,
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	for _, s := range allStatuses {
		if s == normalized {
			return normalized, true
		}
	}
	return "", false
}

// Terminal reports whether a status admits no further transitions.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// rank orders statuses for the non-decreasing lifecycle invariant:
// pending < running < terminal.
func (s Status) rank() int {
	switch s {
	case StatusPending:
		return 0
	case StatusRunning:
		return 1
	case StatusCompleted, StatusFailed, StatusCancelled:
		return 2
	default:
		return -1
	}
}

// CanTransition reports whether moving from s to next is a legal lifecycle
// step. Terminal states are sticky; pending may jump straight to cancelled.
func (s Status) CanTransition(next Status) bool {
	if s.Terminal() {
		return false
	}
	return next.rank() > s.rank()
}

// Job is one unit of execution tracked by an adapter. Mutable, owned by
// exactly one adapter's table; everything else sees Snapshot copies.
type Job struct {
	ID         string
	WorkflowID string
	Backend    Type
	Status     Status
	Progress   int
	Message    string
	StartedAt  time.Time
	EndedAt    time.Time
	Result     json.RawMessage
}

// Snapshot is an immutable copy of a job's state at one point in time.
// Callers must treat it as eventually consistent with in-flight work.
type Snapshot struct {
	ID         string          `json:"id"`
	WorkflowID string          `json:"workflow_id"`
	Backend    Type            `json:"backend"`
	Status     Status          `json:"status"`
	Progress   int             `json:"progress"`
	Message    string          `json:"message,omitempty"`
	StartedAt  time.Time       `json:"started_at"`
	EndedAt    time.Time       `json:"ended_at,omitzero"`
	Result     json.RawMessage `json:"result,omitempty"`
}

func (j *Job) snapshot() Snapshot {
	var result json.RawMessage
	if len(j.Result) > 0 {
		result = append(json.RawMessage(nil), j.Result...)
	}
	return Snapshot{
		ID:         j.ID,
		WorkflowID: j.WorkflowID,
		Backend:    j.Backend,
		Status:     j.Status,
		Progress:   j.Progress,
		Message:    j.Message,
		StartedAt:  j.StartedAt,
		EndedAt:    j.EndedAt,
		Result:     result,
	}
}
