package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type OperationType string

const (
	OperationRegister              OperationType = "REGISTER"
	OperationRegisterPreAuth       OperationType = "REGISTER_PRE_AUTH"
	OperationDeposit               OperationType = "DEPOSIT"
	OperationReverse               OperationType = "REVERSE"
	OperationRefund                OperationType = "REFUND"
	OperationGetExtendedStatus     OperationType = "GET_EXTENDED_STATUS"
	OperationApplePayPayment       OperationType = "APPLE_PAY_PAYMENT"
	OperationSamsungPayPayment     OperationType = "SAMSUNG_PAY_PAYMENT"
	OperationGooglePayPayment      OperationType = "GOOGLE_PAY_PAYMENT"
	OperationGetReceiptStatus      OperationType = "GET_RECEIPT_STATUS"
	OperationBindCard              OperationType = "BIND_CARD"
	OperationUnbindCard            OperationType = "UNBIND_CARD"
	OperationGetBindings           OperationType = "GET_BINDINGS"
	OperationGetBindingsByCardOrID OperationType = "GET_BINDINGS_BY_CARD_OR_ID"
	OperationExtendBinding         OperationType = "EXTEND_BINDING"
	OperationVerifyEnrollment      OperationType = "VERIFY_ENROLLMENT"
)

var operationTypes = map[OperationType]struct{}{
	OperationRegister:              {},
	OperationRegisterPreAuth:       {},
	OperationDeposit:               {},
	OperationReverse:               {},
	OperationRefund:                {},
	OperationGetExtendedStatus:     {},
	OperationApplePayPayment:       {},
	OperationSamsungPayPayment:     {},
	OperationGooglePayPayment:      {},
	OperationGetReceiptStatus:      {},
	OperationBindCard:              {},
	OperationUnbindCard:            {},
	OperationGetBindings:           {},
	OperationGetBindingsByCardOrID: {},
	OperationExtendBinding:         {},
	OperationVerifyEnrollment:      {},
}

func (t OperationType) Valid() bool {
	_, ok := operationTypes[t]
	return ok
}

// OperationEntry is the durable record of one gateway call made for a payment.
// It is inserted before the call with a nil Response; afterwards either
// Response or ErrorMessage is written exactly once.
type OperationEntry struct {
	ID           snowflake.ID   `json:"id" gorm:"primaryKey"`
	PaymentID    snowflake.ID   `json:"payment_id"`
	ActorID      *string        `json:"actor_id,omitempty"`
	Type         OperationType  `json:"type"`
	Request      datatypes.JSON `json:"request" gorm:"column:request_json"`
	Response     datatypes.JSON `json:"response,omitempty" gorm:"column:response_json"`
	ErrorMessage *string        `json:"error_message,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

func (OperationEntry) TableName() string { return "acquiring_payment_operations" }

// HasResponse reports whether a gateway reply was stored. A NULL column
// scans as the JSON literal null.
func (e OperationEntry) HasResponse() bool {
	return len(e.Response) > 0 && string(e.Response) != "null"
}

// Pending reports whether the call outcome has not been recorded yet.
func (e OperationEntry) Pending() bool {
	return !e.HasResponse() && e.ErrorMessage == nil
}

type Cursor struct {
	ID        snowflake.ID
	CreatedAt time.Time
}

type ListFilter struct {
	PaymentID snowflake.ID
	Type      OperationType
	Cursor    *Cursor
	Limit     int
}
