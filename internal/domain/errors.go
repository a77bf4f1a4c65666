package domain

import (
	"errors"
	"fmt"
)

// ErrorKind groups rejections by how a caller is expected to react to them.
type ErrorKind int

const (
	KindValidation ErrorKind = iota + 1
	KindConflict
	KindNotFound
	KindState
	KindForbidden
	KindInfrastructure
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindState:
		return "state"
	case KindForbidden:
		return "forbidden"
	case KindInfrastructure:
		return "infrastructure"
	default:
		return "unknown"
	}
}

// Error is the typed failure returned by every scheduler operation.
// Two errors match under errors.Is when their codes are equal, so the
// sentinels below can be compared against values carrying Detail.
type Error struct {
	Kind      ErrorKind      `json:"kind"`
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Detail    map[string]any `json:"detail,omitempty"`
	Retryable bool           `json:"-"`
	Err       error          `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// With returns a copy of e carrying the given detail entries.
func (e *Error) With(kv ...any) *Error {
	cp := *e
	cp.Detail = make(map[string]any, len(e.Detail)+len(kv)/2)
	for k, v := range e.Detail {
		cp.Detail[k] = v
	}
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		cp.Detail[key] = kv[i+1]
	}
	return &cp
}

// Wrap returns a copy of e with cause attached.
func (e *Error) Wrap(cause error) *Error {
	cp := *e
	cp.Err = cause
	return &cp
}

// Withf returns a copy of e with a formatted message.
func (e *Error) Withf(format string, args ...any) *Error {
	cp := *e
	cp.Message = fmt.Sprintf(format, args...)
	return &cp
}

var (
	ErrInvalidEventSpec = &Error{Kind: KindValidation, Code: "invalid_event_spec", Message: "invalid event specification"}
	ErrInvalidPosition  = &Error{Kind: KindValidation, Code: "invalid_position", Message: "position is out of range"}
	ErrInvalidRequest   = &Error{Kind: KindValidation, Code: "invalid_request", Message: "invalid request"}

	ErrCapacityExceeded    = &Error{Kind: KindConflict, Code: "capacity_exceeded", Message: "day plan already holds the maximum number of job events"}
	ErrDuplicatePlan       = &Error{Kind: KindConflict, Code: "duplicate_plan", Message: "a day plan already exists for this technician and date"}
	ErrDuplicateAssignment = &Error{Kind: KindConflict, Code: "duplicate_assignment", Message: "user is already assigned to this job"}
	ErrScheduleConflict    = &Error{Kind: KindConflict, Code: "schedule_conflict", Message: "user already has a job overlapping this time window"}

	ErrPlanNotFound       = &Error{Kind: KindNotFound, Code: "plan_not_found", Message: "day plan not found"}
	ErrEventNotFound      = &Error{Kind: KindNotFound, Code: "event_not_found", Message: "schedule event not found"}
	ErrJobNotFound        = &Error{Kind: KindNotFound, Code: "job_not_found", Message: "job not found"}
	ErrUserNotFound       = &Error{Kind: KindNotFound, Code: "user_not_found", Message: "user not found"}
	ErrAssignmentNotFound = &Error{Kind: KindNotFound, Code: "assignment_not_found", Message: "crew assignment not found"}

	ErrPlanNotMutable    = &Error{Kind: KindState, Code: "plan_not_mutable", Message: "day plan is completed or cancelled"}
	ErrJobNotAssignable  = &Error{Kind: KindState, Code: "job_not_assignable", Message: "job is completed or cancelled"}
	ErrEmptyPlan         = &Error{Kind: KindState, Code: "empty_plan", Message: "cannot publish a day plan without events"}
	ErrInvalidTransition = &Error{Kind: KindState, Code: "invalid_transition", Message: "status transition is not allowed"}

	ErrNotSupervisor = &Error{Kind: KindForbidden, Code: "not_supervisor", Message: "only supervisors can assign crew"}
	ErrForbidden     = &Error{Kind: KindForbidden, Code: "forbidden", Message: "not allowed to access this resource"}

	ErrTxConflict      = &Error{Kind: KindInfrastructure, Code: "tx_conflict", Message: "concurrent write conflict", Retryable: true}
	ErrOptimisticLock  = &Error{Kind: KindInfrastructure, Code: "optimistic_lock", Message: "day plan was modified by another operation", Retryable: true}
	ErrLockUnavailable = &Error{Kind: KindInfrastructure, Code: "lock_unavailable", Message: "could not acquire lock", Retryable: true}
	ErrInternal        = &Error{Kind: KindInfrastructure, Code: "internal", Message: "internal error"}
)

// AsError extracts the *Error from err's chain.
func AsError(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// KindOf reports the kind of err, or 0 for errors outside the taxonomy.
func KindOf(err error) ErrorKind {
	if de, ok := AsError(err); ok {
		return de.Kind
	}
	return 0
}

// IsRetryable reports whether err is a transient infrastructure failure.
func IsRetryable(err error) bool {
	de, ok := AsError(err)
	return ok && de.Retryable
}
