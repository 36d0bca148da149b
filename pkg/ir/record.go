package ir

import (
	"fmt"

	"github.com/google/uuid"
)

// TaskLaunchRecord is one submitted launch of a task body. The graph treats
// it as opaque except for the body fingerprint and the metadata resolved
// through the bank; the execution engine consumes records in the order the
// graph emits them.
type TaskLaunchRecord struct {
	// ID identifies this particular launch across the pipeline.
	ID uuid.UUID

	Body        *Body
	Fingerprint string

	// LaunchID is the per-kernel-name launch counter, assigned by the
	// graph on first insertion. Negative until then.
	LaunchID int
}

// NewLaunchRecord wraps a body into a fresh launch record.
func NewLaunchRecord(body *Body) TaskLaunchRecord {
	return TaskLaunchRecord{
		ID:          uuid.New(),
		Body:        body,
		Fingerprint: body.Fingerprint(),
		LaunchID:    -1,
	}
}

func (r TaskLaunchRecord) String() string {
	return fmt.Sprintf("%s#%d", r.Body.KernelName, r.LaunchID)
}
