package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/acquiring/internal/config"
)

var (
	ErrNotFound           = errors.New("payment_not_found")
	ErrInvalidAmount      = errors.New("invalid_amount")
	ErrInvalidStatus      = errors.New("invalid_status")
	ErrInvalidSystem      = errors.New("invalid_payment_system")
	ErrInvalidToken       = errors.New("invalid_payment_token")
	ErrUnrecognizedStatus = errors.New("unrecognized_bank_status")
	ErrGatewayRejected    = errors.New("gateway_rejected")
	ErrReconciliation     = errors.New("reconciliation_failed")
	ErrDuplicateOrderID   = errors.New("duplicate_bank_order_id")
	ErrConfiguration      = config.ErrConfiguration
)

// ConfigurationError names a required setting that is absent.
type ConfigurationError = config.ConfigurationError

// GatewayBusinessError is a well-formed gateway reply that rejected the operation.
type GatewayBusinessError struct {
	Operation string
	Code      string
	Message   string
	RawBody   string
}

func (e *GatewayBusinessError) Error() string {
	msg := fmt.Sprintf("gateway rejected %s", e.Operation)
	if e.Code != "" {
		msg += ": code " + e.Code
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

func (e *GatewayBusinessError) Unwrap() error { return ErrGatewayRejected }

// Write names used in ReconciliationError.FailedWrites.
const (
	WritePayment = "payment"
	WriteDetails = "details"
	WriteAudit   = "audit"
)

// ReconciliationError reports that the gateway outcome is known but at least
// one local write capturing it did not succeed. RawBody carries the gateway
// reply so the record can be repaired by hand.
type ReconciliationError struct {
	PaymentID    snowflake.ID
	FailedWrites []string
	RawBody      string
	Err          error
}

func (e *ReconciliationError) Error() string {
	msg := fmt.Sprintf("payment %s: local writes failed after gateway call: %s",
		e.PaymentID, strings.Join(e.FailedWrites, ", "))
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ReconciliationError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrReconciliation}
	}
	return []error{ErrReconciliation, e.Err}
}

// Failed reports whether the named write is among the failed ones.
func (e *ReconciliationError) Failed(write string) bool {
	for _, w := range e.FailedWrites {
		if w == write {
			return true
		}
	}
	return false
}

// UnrecognizedStatusError is returned when a status reply carries a bank code
// with no local mapping. Code is empty when the reply had no usable code.
type UnrecognizedStatusError struct {
	Code    string
	RawBody string
}

func (e *UnrecognizedStatusError) Error() string {
	if e.Code == "" {
		return "status reply carries no orderStatus"
	}
	return fmt.Sprintf("unknown orderStatus %q in status reply", e.Code)
}

func (e *UnrecognizedStatusError) Unwrap() error { return ErrUnrecognizedStatus }
