package service

import (
	"context"
	"errors"
	"fmt"

	auditdomain "github.com/smallbiznis/acquiring/internal/audit/domain"
	"github.com/smallbiznis/acquiring/internal/gateway"
	"github.com/smallbiznis/acquiring/internal/observability/logger"
	paymentdomain "github.com/smallbiznis/acquiring/internal/payment/domain"
	"go.uber.org/zap"
)

// call describes one audited gateway call against a stored payment.
type call struct {
	payment *paymentdomain.Payment
	opType  auditdomain.OperationType
	op      gateway.Operation
	// request is what gets audited. auth is sent with it but never stored.
	request map[string]any
	auth    map[string]any
	// onSuccess turns a successful reply into local writes.
	onSuccess func(*gateway.Response) (writes, error)
}

type writes struct {
	payment map[string]any
	details map[string]any
}

// execute records the attempt and dispatches the call.
func (s *Service) execute(ctx context.Context, actorID *string, c call) error {
	entry, err := s.auditSvc.Begin(ctx, c.payment.ID, actorID, c.opType, c.request)
	if err != nil {
		return fmt.Errorf("record %s attempt: %w", c.opType, err)
	}
	return s.dispatch(ctx, entry, c)
}

// dispatch calls the gateway for an already recorded attempt and applies the
// outcome. Local writes after the call go payment, details, audit; any that
// fail are reported as a ReconciliationError next to the call's own error.
func (s *Service) dispatch(ctx context.Context, entry *auditdomain.OperationEntry, c call) error {
	resp, err := s.gateway.Call(ctx, c.op, gateway.Params(c.request).Merge(c.auth))
	if err != nil {
		rec := s.newLedger(ctx, c)
		rec.check(paymentdomain.WritePayment, s.applyPayment(ctx, c.payment, statusWrite(paymentdomain.StatusError).payment))
		rec.check(paymentdomain.WriteAudit, s.auditSvc.Fail(ctx, entry.ID, err.Error()))
		return combine(err, rec.err(""))
	}

	var (
		result     writes
		outcomeErr error
	)
	switch {
	case !resp.IsSuccessful():
		outcomeErr = rejection(c.op, resp)
		result = statusWrite(paymentdomain.StatusError)
	default:
		result, outcomeErr = c.onSuccess(resp)
		if outcomeErr != nil {
			var unrecognized *paymentdomain.UnrecognizedStatusError
			if errors.As(outcomeErr, &unrecognized) {
				result = writes{}
			} else {
				result = statusWrite(paymentdomain.StatusError)
			}
		}
	}

	rec := s.newLedger(ctx, c)
	if len(result.payment) > 0 {
		rec.check(paymentdomain.WritePayment, s.applyPayment(ctx, c.payment, result.payment))
	}
	if len(result.details) > 0 {
		rec.check(paymentdomain.WriteDetails, s.applyDetails(ctx, c.payment, result.details))
	}
	rec.check(paymentdomain.WriteAudit, s.auditSvc.Complete(ctx, entry.ID, resp.Bytes()))

	if outcomeErr != nil {
		logger.WithContext(ctx, s.log).Warn("gateway operation did not succeed",
			zap.String("operation", string(c.op)),
			zap.String("payment_id", c.payment.ID.String()),
			zap.Error(outcomeErr),
		)
	}
	return combine(outcomeErr, rec.err(resp.RawBody()))
}

// rejection classifies an unsuccessful reply. A body that is not a JSON
// object is a ParseError; anything else is a business rejection.
func rejection(op gateway.Operation, resp *gateway.Response) error {
	if _, err := resp.Data(); err != nil {
		return err
	}
	return &paymentdomain.GatewayBusinessError{
		Operation: string(op),
		Code:      resp.ErrorCode(),
		Message:   resp.ErrorMessage(),
		RawBody:   resp.RawBody(),
	}
}

func (s *Service) applyPayment(ctx context.Context, payment *paymentdomain.Payment, fields map[string]any) error {
	ok, err := s.repo.Update(ctx, payment.ID, fields)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("payment %s: no row updated", payment.ID)
	}

	if status, ok := fields[paymentdomain.ColumnStatus].(paymentdomain.Status); ok && status != payment.Status {
		s.obsMetrics.RecordStatusTransition(ctx, string(payment.System), string(payment.Status), string(status))
		payment.Status = status
	}
	if orderID, ok := fields[paymentdomain.ColumnBankOrderID].(string); ok {
		payment.BankOrderID = &orderID
	}
	return nil
}

func (s *Service) applyDetails(ctx context.Context, payment *paymentdomain.Payment, fields map[string]any) error {
	ok, err := s.repo.UpdateDetails(ctx, payment.ID, payment.System, fields)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("payment %s: no details row updated", payment.ID)
	}
	if direct, isDirect := payment.Details.(*paymentdomain.GatewayDirectDetails); isDirect {
		if formURL, ok := fields[paymentdomain.ColumnBankFormURL].(string); ok {
			direct.BankFormURL = &formURL
		}
	}
	return nil
}

// ledger collects local writes that failed after a gateway call.
type ledger struct {
	ctx    context.Context
	svc    *Service
	call   call
	failed []string
	errs   []error
}

func (s *Service) newLedger(ctx context.Context, c call) *ledger {
	return &ledger{ctx: ctx, svc: s, call: c}
}

func (l *ledger) check(write string, err error) {
	if err == nil {
		return
	}
	l.failed = append(l.failed, write)
	l.errs = append(l.errs, fmt.Errorf("%s write: %w", write, err))
	l.svc.obsMetrics.RecordLedgerWriteFailure(l.ctx, string(l.call.opType), write)
	logger.WithContext(l.ctx, l.svc.log).Error("local write failed after gateway call",
		zap.String("operation", string(l.call.op)),
		zap.String("payment_id", l.call.payment.ID.String()),
		zap.String("write", write),
		zap.Error(err),
	)
}

func (l *ledger) err(rawBody string) error {
	if len(l.failed) == 0 {
		return nil
	}
	return &paymentdomain.ReconciliationError{
		PaymentID:    l.call.payment.ID,
		FailedWrites: l.failed,
		RawBody:      rawBody,
		Err:          errors.Join(l.errs...),
	}
}

// combine joins errors but returns a lone error unchanged.
func combine(errs ...error) error {
	var nonNil []error
	for _, err := range errs {
		if err != nil {
			nonNil = append(nonNil, err)
		}
	}
	switch len(nonNil) {
	case 0:
		return nil
	case 1:
		return nonNil[0]
	default:
		return errors.Join(nonNil...)
	}
}
