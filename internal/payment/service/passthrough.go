package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/acquiring/internal/audit/domain"
	"github.com/smallbiznis/acquiring/internal/gateway"
	paymentdomain "github.com/smallbiznis/acquiring/internal/payment/domain"
)

func (s *Service) GetReceiptStatus(ctx context.Context, actorID *string, paymentID *snowflake.ID, params map[string]any) (*gateway.Response, error) {
	return s.passThrough(ctx, actorID, paymentID, auditdomain.OperationGetReceiptStatus, gateway.OpGetReceiptStatus, params)
}

func (s *Service) BindCard(ctx context.Context, actorID *string, paymentID *snowflake.ID, params map[string]any) (*gateway.Response, error) {
	return s.passThrough(ctx, actorID, paymentID, auditdomain.OperationBindCard, gateway.OpBindCard, params)
}

func (s *Service) UnbindCard(ctx context.Context, actorID *string, paymentID *snowflake.ID, params map[string]any) (*gateway.Response, error) {
	return s.passThrough(ctx, actorID, paymentID, auditdomain.OperationUnbindCard, gateway.OpUnbindCard, params)
}

func (s *Service) GetBindings(ctx context.Context, actorID *string, paymentID *snowflake.ID, params map[string]any) (*gateway.Response, error) {
	return s.passThrough(ctx, actorID, paymentID, auditdomain.OperationGetBindings, gateway.OpGetBindings, params)
}

func (s *Service) GetBindingsByCardOrID(ctx context.Context, actorID *string, paymentID *snowflake.ID, params map[string]any) (*gateway.Response, error) {
	return s.passThrough(ctx, actorID, paymentID, auditdomain.OperationGetBindingsByCardOrID, gateway.OpGetBindingsByCardOrID, params)
}

func (s *Service) ExtendBinding(ctx context.Context, actorID *string, paymentID *snowflake.ID, params map[string]any) (*gateway.Response, error) {
	return s.passThrough(ctx, actorID, paymentID, auditdomain.OperationExtendBinding, gateway.OpExtendBinding, params)
}

func (s *Service) VerifyEnrollment(ctx context.Context, actorID *string, paymentID *snowflake.ID, params map[string]any) (*gateway.Response, error) {
	return s.passThrough(ctx, actorID, paymentID, auditdomain.OperationVerifyEnrollment, gateway.OpVerifyEnrollment, params)
}

// passThrough forwards a call whose reply is returned to the caller as-is.
// Without a payment id nothing is stored. With one, the call is audited but
// the payment itself is never written.
func (s *Service) passThrough(
	ctx context.Context,
	actorID *string,
	paymentID *snowflake.ID,
	opType auditdomain.OperationType,
	op gateway.Operation,
	params map[string]any,
) (*gateway.Response, error) {
	if err := s.requireCredentials(); err != nil {
		return nil, err
	}
	request := cloneParams(params)
	auth := s.gatewayCfg.AuthParams()

	if paymentID == nil {
		return s.gateway.Call(ctx, op, gateway.Params(request).Merge(auth))
	}

	payment, err := s.repo.FindByID(ctx, *paymentID)
	if err != nil {
		return nil, err
	}
	if _, ok := request["orderId"]; !ok && op == gateway.OpGetReceiptStatus && payment.BankOrderID != nil {
		request["orderId"] = *payment.BankOrderID
	}

	entry, err := s.auditSvc.Begin(ctx, payment.ID, actorID, opType, request)
	if err != nil {
		return nil, err
	}

	rec := s.newLedger(ctx, call{payment: payment, opType: opType, op: op})
	resp, err := s.gateway.Call(ctx, op, gateway.Params(request).Merge(auth))
	if err != nil {
		rec.check(paymentdomain.WriteAudit, s.auditSvc.Fail(ctx, entry.ID, err.Error()))
		return nil, combine(err, rec.err(""))
	}
	rec.check(paymentdomain.WriteAudit, s.auditSvc.Complete(ctx, entry.ID, resp.Bytes()))
	return resp, rec.err(resp.RawBody())
}
