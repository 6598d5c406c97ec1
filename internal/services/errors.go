package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation marks malformed caller input (missing inputs/outputs,
	// bad parameters). Never retried.
	ErrValidation = errors.New("validation error")
	// ErrUnsupportedType marks a workflow type with no registered adapter.
	ErrUnsupportedType = errors.New("unsupported workflow type")
	// ErrJobNotFound marks a job id unknown to the manager registry.
	ErrJobNotFound = errors.New("job not found")
	// ErrNotFound marks an id unknown to an adapter's own job table. Seeing
	// it for an id the registry knows about indicates a bookkeeping bug.
	ErrNotFound = errors.New("not found")
	// ErrBackendUnavailable marks an adapter initialization failure and is
	// fatal to manager startup.
	ErrBackendUnavailable = errors.New("backend unavailable")
	// ErrExecutionFailed wraps ordinary backend failures. It is captured in
	// results and job messages rather than returned from Execute.
	ErrExecutionFailed = errors.New("execution failed")
	// ErrTimeout marks an exceeded wait deadline in the fan-out helper.
	ErrTimeout = errors.New("timeout")
	// ErrTaskFailed wraps the underlying error of a failed fan-out task.
	ErrTaskFailed = errors.New("task failed")
	// ErrNotImplemented marks an operation whose collaborator is not wired,
	// such as definition persistence without a store.
	ErrNotImplemented = errors.New("not implemented")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrExecutionFailed
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// UserMessage strips the sentinel prefix from an error so job messages and
// results carry readable text without the taxonomy marker duplicated.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	for _, sentinel := range []error{
		ErrValidation, ErrUnsupportedType, ErrJobNotFound, ErrNotFound,
		ErrBackendUnavailable, ErrExecutionFailed, ErrTimeout, ErrTaskFailed,
		ErrNotImplemented,
	} {
		prefix := sentinel.Error() + ": "
		if strings.HasPrefix(msg, prefix) {
			return strings.TrimPrefix(msg, prefix)
		}
	}
	return msg
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
