package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/acquiring/internal/gateway"
)

// Service drives payments through the bank gateway. Every operation records
// an audit entry before the gateway is contacted. Once the gateway has been
// called, the returned payment reflects local state even when err is non-nil.
type Service interface {
	Register(ctx context.Context, actorID *string, amount int64, params map[string]any) (*Payment, error)
	RegisterPreAuth(ctx context.Context, actorID *string, amount int64, params map[string]any) (*Payment, error)
	Deposit(ctx context.Context, actorID *string, paymentID snowflake.ID, amount int64, params map[string]any) (*Payment, error)
	Reverse(ctx context.Context, actorID *string, paymentID snowflake.ID, params map[string]any) (*Payment, error)
	Refund(ctx context.Context, actorID *string, paymentID snowflake.ID, amount int64, params map[string]any) (*Payment, error)
	QueryStatus(ctx context.Context, actorID *string, paymentID snowflake.ID, params map[string]any) (*Payment, error)

	PayWithApplePay(ctx context.Context, actorID *string, paymentToken string, params map[string]any) (*Payment, error)
	PayWithSamsungPay(ctx context.Context, actorID *string, paymentToken string, params map[string]any) (*Payment, error)
	PayWithGooglePay(ctx context.Context, actorID *string, paymentToken string, amount int64, params map[string]any) (*Payment, error)

	// Pass-through calls never change payment status. When paymentID is set
	// the call is audited against that payment.
	GetReceiptStatus(ctx context.Context, actorID *string, paymentID *snowflake.ID, params map[string]any) (*gateway.Response, error)
	BindCard(ctx context.Context, actorID *string, paymentID *snowflake.ID, params map[string]any) (*gateway.Response, error)
	UnbindCard(ctx context.Context, actorID *string, paymentID *snowflake.ID, params map[string]any) (*gateway.Response, error)
	GetBindings(ctx context.Context, actorID *string, paymentID *snowflake.ID, params map[string]any) (*gateway.Response, error)
	GetBindingsByCardOrID(ctx context.Context, actorID *string, paymentID *snowflake.ID, params map[string]any) (*gateway.Response, error)
	ExtendBinding(ctx context.Context, actorID *string, paymentID *snowflake.ID, params map[string]any) (*gateway.Response, error)
	VerifyEnrollment(ctx context.Context, actorID *string, paymentID *snowflake.ID, params map[string]any) (*gateway.Response, error)

	Get(ctx context.Context, paymentID snowflake.ID) (*Payment, error)
}
