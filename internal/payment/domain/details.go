package domain

import (
	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Details is the per-system variant attached to a Payment for its whole lifetime.
type Details interface {
	System() System
	TableName() string
	AttachTo(paymentID snowflake.ID)
}

type GatewayDirectDetails struct {
	PaymentID          snowflake.ID   `json:"payment_id" gorm:"primaryKey"`
	OrderNumber        *string        `json:"order_number"`
	Amount             int64          `json:"amount"`
	Currency           *string        `json:"currency"`
	ReturnURL          string         `json:"return_url" gorm:"column:return_url"`
	FailURL            *string        `json:"fail_url" gorm:"column:fail_url"`
	Description        *string        `json:"description"`
	ClientID           *string        `json:"client_id"`
	Language           *string        `json:"language"`
	PageView           *string        `json:"page_view"`
	JSONParams         datatypes.JSON `json:"json_params" gorm:"column:json_params"`
	SessionTimeoutSecs *int64         `json:"session_timeout_secs"`
	ExpirationDate     *string        `json:"expiration_date"`
	Features           *string        `json:"features"`
	BankFormURL        *string        `json:"bank_form_url" gorm:"column:bank_form_url"`
}

func (GatewayDirectDetails) System() System     { return SystemGatewayDirect }
func (GatewayDirectDetails) TableName() string { return "gateway_direct_payments" }
func (d *GatewayDirectDetails) AttachTo(id snowflake.ID) {
	d.PaymentID = id
}

// WalletDetails holds the fields shared by every device-wallet variant.
// PaymentToken is a secret and never leaves the process in serialized form.
type WalletDetails struct {
	PaymentID            snowflake.ID   `json:"payment_id" gorm:"primaryKey"`
	OrderNumber          string         `json:"order_number"`
	Description          *string        `json:"description"`
	Language             *string        `json:"language"`
	AdditionalParameters datatypes.JSON `json:"additional_parameters"`
	PreAuth              *bool          `json:"pre_auth"`
	PaymentToken         string         `json:"-"`
}

func (d *WalletDetails) AttachTo(id snowflake.ID) {
	d.PaymentID = id
}

type ApplePayDetails struct {
	WalletDetails `gorm:"embedded"`
}

func (ApplePayDetails) System() System     { return SystemApplePay }
func (ApplePayDetails) TableName() string { return "apple_pay_payments" }

type SamsungPayDetails struct {
	WalletDetails `gorm:"embedded"`
}

func (SamsungPayDetails) System() System     { return SystemSamsungPay }
func (SamsungPayDetails) TableName() string { return "samsung_pay_payments" }

type GooglePayDetails struct {
	WalletDetails `gorm:"embedded"`

	ClientID     *string `json:"client_id"`
	IP           *string `json:"ip" gorm:"column:ip"`
	Amount       int64   `json:"amount"`
	CurrencyCode *string `json:"currency_code"`
	Email        *string `json:"email"`
	Phone        *string `json:"phone"`
	ReturnURL    string  `json:"return_url" gorm:"column:return_url"`
	FailURL      *string `json:"fail_url" gorm:"column:fail_url"`
}

func (GooglePayDetails) System() System     { return SystemGooglePay }
func (GooglePayDetails) TableName() string { return "google_pay_payments" }

// EmptyDetails returns a zero variant for the given system, used when loading.
func EmptyDetails(system System) (Details, error) {
	switch system {
	case SystemGatewayDirect:
		return &GatewayDirectDetails{}, nil
	case SystemApplePay:
		return &ApplePayDetails{}, nil
	case SystemSamsungPay:
		return &SamsungPayDetails{}, nil
	case SystemGooglePay:
		return &GooglePayDetails{}, nil
	default:
		return nil, ErrInvalidSystem
	}
}

// SetPaymentToken stores the wallet token on the details row.
func (d *WalletDetails) SetPaymentToken(token string) {
	d.PaymentToken = token
}

// TokenHolder is implemented by the wallet variants.
type TokenHolder interface {
	SetPaymentToken(token string)
}
