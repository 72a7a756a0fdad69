package repository

import (
	"context"

	"gorm.io/gorm"
)

// Atomic bundles repositories bound to one open transaction. Writes made
// through it commit or roll back together.
type Atomic struct {
	Assignments AssignmentRepository
	Submissions SubmissionRepository
}

// TxRunner runs multi-repository write sequences inside a single database
// transaction, so a failed step never leaves a half-applied transition
// behind.
type TxRunner interface {
	InTransaction(ctx context.Context, fn func(repos Atomic) error) error
}

type txRunner struct {
	db *gorm.DB
}

// NewTxRunner instantiates a GORM-backed transaction runner.
func NewTxRunner(db *gorm.DB) TxRunner {
	return &txRunner{db: db}
}

func (r *txRunner) InTransaction(ctx context.Context, fn func(repos Atomic) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(Atomic{
			Assignments: NewAssignmentRepository(tx),
			Submissions: NewSubmissionRepository(tx),
		})
	})
}
