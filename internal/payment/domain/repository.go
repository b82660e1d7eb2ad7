package domain

import (
	"context"
	"iter"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	// WithTx returns a Repository whose statements run on tx.
	WithTx(tx *gorm.DB) Repository
	// Create stores the payment and its details in one transaction.
	Create(ctx context.Context, payment *Payment) error
	// Update applies fields to one payment row and reports whether a row
	// changed. A bank_order_id already set to a different value is left
	// untouched and reported as false.
	Update(ctx context.Context, id snowflake.ID, fields map[string]any) (bool, error)
	UpdateDetails(ctx context.Context, id snowflake.ID, system System, fields map[string]any) (bool, error)
	FindByID(ctx context.Context, id snowflake.ID) (*Payment, error)
	// FindByStatuses lazily yields matching payments ordered by id.
	// Each call starts a fresh scan.
	FindByStatuses(ctx context.Context, statuses []Status, batchSize int) iter.Seq2[*Payment, error]
}
