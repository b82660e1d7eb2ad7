package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// System identifies the payment method family and selects the Details variant.
type System string

const (
	SystemGatewayDirect System = "GATEWAY_DIRECT"
	SystemApplePay      System = "APPLE_PAY"
	SystemSamsungPay    System = "SAMSUNG_PAY"
	SystemGooglePay     System = "GOOGLE_PAY"
)

func (s System) Valid() bool {
	switch s {
	case SystemGatewayDirect, SystemApplePay, SystemSamsungPay, SystemGooglePay:
		return true
	default:
		return false
	}
}

// Payment is the aggregate root. BankOrderID stays nil until the first
// successful registering call and never changes afterwards.
type Payment struct {
	ID          snowflake.ID `json:"id" gorm:"primaryKey"`
	BankOrderID *string      `json:"bank_order_id"`
	System      System       `json:"system" gorm:"type:text;not null"`
	Status      Status       `json:"status" gorm:"type:text;not null;index"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`

	Details Details `json:"details" gorm:"-"`
}

func (Payment) TableName() string { return "acquiring_payments" }

// Column names accepted by Repository.Update and Repository.UpdateDetails.
const (
	ColumnStatus      = "status"
	ColumnBankOrderID = "bank_order_id"
	ColumnBankFormURL = "bank_form_url"
)
