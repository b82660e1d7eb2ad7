package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/acquiring/pkg/db/pagination"
	"gorm.io/gorm"
)

type ListOperationsRequest struct {
	pagination.Pagination
	PaymentID snowflake.ID
	Type      string
}

type ListOperationsResponse struct {
	pagination.PageInfo
	Operations []OperationEntry `json:"operations"`
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, entry *OperationEntry) error
	// SetResponse and SetError only touch entries that are still pending
	// and report whether a row was written.
	SetResponse(ctx context.Context, db *gorm.DB, id snowflake.ID, response []byte, at time.Time) (bool, error)
	SetError(ctx context.Context, db *gorm.DB, id snowflake.ID, message string, at time.Time) (bool, error)
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*OperationEntry, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*OperationEntry, error)
}

type Service interface {
	// WithTx returns a Service whose writes go through tx.
	WithTx(tx *gorm.DB) Service
	// Begin durably records an attempted call. The request is stored masked.
	Begin(ctx context.Context, paymentID snowflake.ID, actorID *string, opType OperationType, request map[string]any) (*OperationEntry, error)
	// Complete stores the gateway reply. raw is stored as-is when it is JSON
	// and wrapped otherwise.
	Complete(ctx context.Context, id snowflake.ID, raw []byte) error
	// Fail records a transport failure; the response stays empty.
	Fail(ctx context.Context, id snowflake.ID, reason string) error
	Get(ctx context.Context, id snowflake.ID) (*OperationEntry, error)
	ListByPayment(ctx context.Context, req ListOperationsRequest) (ListOperationsResponse, error)
}

var (
	ErrInvalidPayment       = errors.New("invalid_payment")
	ErrInvalidOperationType = errors.New("invalid_operation_type")
	ErrInvalidPageToken     = errors.New("invalid_page_token")
	ErrEntryNotFound        = errors.New("operation_not_found")
	ErrAlreadyRecorded      = errors.New("operation_outcome_already_recorded")
)
