package events

import (
	"context"
	"time"
)

// TaskPublished is emitted when a task is published to a class. Optional
// fields override the assignment metadata derived from the task.
// ExplicitClass marks that the publisher named the target class itself, so
// the provisioner must not reject a target differing from the task's owning
// class.
type TaskPublished struct {
	TaskID        uint       `json:"task_id"`
	ClassID       uint       `json:"class_id"`
	ExplicitClass bool       `json:"explicit_class,omitempty"`
	Title         string     `json:"title,omitempty"`
	Description   string     `json:"description,omitempty"`
	DueDate       *time.Time `json:"due_date,omitempty"`
	EmittedAt     time.Time  `json:"emitted_at"`
}

// EnrollmentChanged is emitted when a student joins a class or an enrollment
// status flips. ResultingStatus is the status after the change; handlers
// only act on transitions into active.
type EnrollmentChanged struct {
	StudentID       uint      `json:"student_id"`
	ClassID         uint      `json:"class_id"`
	ResultingStatus string    `json:"resulting_status"`
	EmittedAt       time.Time `json:"emitted_at"`
}

// Handler receives provisioning events. Exactly one implementation (the
// provision service) is registered at startup; there is no ambient listener
// discovery. Delivery is at-least-once, so handlers must be idempotent.
type Handler interface {
	HandleTaskPublished(ctx context.Context, event TaskPublished) error
	HandleEnrollmentChanged(ctx context.Context, event EnrollmentChanged) error
}

// Dispatcher routes events from emitters to the registered handler.
type Dispatcher interface {
	DispatchTaskPublished(ctx context.Context, event TaskPublished) error
	DispatchEnrollmentChanged(ctx context.Context, event EnrollmentChanged) error
}

// InProcessDispatcher invokes the handler synchronously on the caller's
// goroutine. Used in tests and when no broker is configured; the handler's
// idempotency makes the two modes interchangeable.
type InProcessDispatcher struct {
	handler Handler
}

// NewInProcessDispatcher wires the dispatcher to its single handler.
func NewInProcessDispatcher(handler Handler) *InProcessDispatcher {
	return &InProcessDispatcher{handler: handler}
}

// DispatchTaskPublished hands the event straight to the handler.
func (d *InProcessDispatcher) DispatchTaskPublished(ctx context.Context, event TaskPublished) error {
	return d.handler.HandleTaskPublished(ctx, event)
}

// DispatchEnrollmentChanged hands the event straight to the handler.
func (d *InProcessDispatcher) DispatchEnrollmentChanged(ctx context.Context, event EnrollmentChanged) error {
	return d.handler.HandleEnrollmentChanged(ctx, event)
}
