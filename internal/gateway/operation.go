package gateway

type Operation string

const (
	OpRegister               Operation = "register"
	OpRegisterPreAuth        Operation = "registerPreAuth"
	OpDeposit                Operation = "deposit"
	OpReverse                Operation = "reverse"
	OpRefund                 Operation = "refund"
	OpGetOrderStatusExtended Operation = "getOrderStatusExtended"
	OpApplePay               Operation = "applePay"
	OpSamsungPay             Operation = "samsungPay"
	OpGooglePay              Operation = "googlePay"
	OpGetReceiptStatus       Operation = "getReceiptStatus"
	OpBindCard               Operation = "bindCard"
	OpUnbindCard             Operation = "unBindCard"
	OpGetBindings            Operation = "getBindings"
	OpGetBindingsByCardOrID  Operation = "getBindingsByCardOrId"
	OpExtendBinding          Operation = "extendBinding"
	OpVerifyEnrollment       Operation = "verifyEnrollment"
)

var operationPaths = map[Operation]string{
	OpRegister:               "/payment/rest/register.do",
	OpRegisterPreAuth:        "/payment/rest/registerPreAuth.do",
	OpDeposit:                "/payment/rest/deposit.do",
	OpReverse:                "/payment/rest/reverse.do",
	OpRefund:                 "/payment/rest/refund.do",
	OpGetOrderStatusExtended: "/payment/rest/getOrderStatusExtended.do",
	OpApplePay:               "/payment/applepay/payment.do",
	OpSamsungPay:             "/payment/samsung/payment.do",
	OpGooglePay:              "/payment/google/payment.do",
	OpGetReceiptStatus:       "/payment/rest/getReceiptStatus.do",
	OpBindCard:               "/payment/rest/bindCard.do",
	OpUnbindCard:             "/payment/rest/unBindCard.do",
	OpGetBindings:            "/payment/rest/getBindings.do",
	OpGetBindingsByCardOrID:  "/payment/rest/getBindingsByCardOrId.do",
	OpExtendBinding:          "/payment/rest/extendBinding.do",
	OpVerifyEnrollment:       "/payment/rest/verifyEnrollment.do",
}

func (o Operation) Valid() bool {
	_, ok := operationPaths[o]
	return ok
}

func (o Operation) Path() string {
	return operationPaths[o]
}

// Wallet reports whether the operation is a device-wallet payment, which the
// gateway accepts as a JSON body instead of a form.
func (o Operation) Wallet() bool {
	switch o {
	case OpApplePay, OpSamsungPay, OpGooglePay:
		return true
	default:
		return false
	}
}

func (o Operation) String() string { return string(o) }
