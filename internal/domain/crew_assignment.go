package domain

import (
	"time"

	"github.com/google/uuid"
)

type CrewAssignment struct {
	TenantID   uuid.UUID `json:"tenantID"`
	JobID      uuid.UUID `json:"jobID"`
	UserID     uuid.UUID `json:"userID"`
	AssignedAt time.Time `json:"assignedAt"`
	AssignedBy uuid.UUID `json:"assignedBy"`
}

// Violation records why one user of a bulk request was rejected.
type Violation struct {
	UserID  uuid.UUID      `json:"userID"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Detail  map[string]any `json:"detail,omitempty"`
}

// BulkAssignmentResult partitions a bulk request into accepted users and rejections.
// Created lists the accepted users whose assignment was written by this
// request; it excludes pairs that already existed.
type BulkAssignmentResult struct {
	JobID      uuid.UUID   `json:"jobID"`
	Accepted   []uuid.UUID `json:"accepted"`
	Created    []uuid.UUID `json:"created,omitempty"`
	Violations []Violation `json:"violations"`
}

// Reject appends a violation built from err. Errors outside the domain
// taxonomy are not violations and must be returned to the caller instead.
func (r *BulkAssignmentResult) Reject(userID uuid.UUID, err *Error) {
	r.Violations = append(r.Violations, Violation{
		UserID:  userID,
		Code:    err.Code,
		Message: err.Message,
		Detail:  err.Detail,
	})
}
